package directory

import (
	"errors"
	"fmt"
	"sync"

	"courier/internal/models"

	"github.com/samber/lo"
)

var (
	ErrNotFound        = errors.New("user not found")
	ErrInvalidSnapshot = errors.New("invalid snapshot")
)

// Directory 是用户 ID 到记录的并发安全映射。结构性操作（注册、删除）持有写锁，
// 单个用户的队列与通道由记录自身的锁保护。
type Directory struct {
	mu       sync.RWMutex
	users    map[models.UserID]*Record
	newID    func() (models.UserID, error)
	newToken func() (string, error)
}

type Option func(*Directory)

// WithIDSource 替换 ID 生成器，主要用于测试冲突重抽。
func WithIDSource(fn func() (models.UserID, error)) Option {
	return func(d *Directory) { d.newID = fn }
}

// WithTokenSource 替换令牌生成器。
func WithTokenSource(fn func() (string, error)) Option {
	return func(d *Directory) { d.newToken = fn }
}

func New(opts ...Option) *Directory {
	d := &Directory{
		users:    make(map[models.UserID]*Record),
		newID:    NewID,
		newToken: NewToken,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Register 生成新凭据并插入目录，ID 冲突时重新抽取。
func (d *Directory) Register() (*Record, error) {
	token, err := d.newToken()
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for {
		id, err := d.newID()
		if err != nil {
			return nil, fmt.Errorf("generate id: %w", err)
		}
		if _, taken := d.users[id]; taken {
			continue
		}
		rec := newRecord(id, token, nil)
		d.users[id] = rec
		return rec, nil
	}
}

func (d *Directory) Lookup(id models.UserID) (*Record, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	rec, ok := d.users[id]
	return rec, ok
}

func (d *Directory) Exists(id models.UserID) bool {
	_, ok := d.Lookup(id)
	return ok
}

func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.users)
}

// Remove 删除用户并关闭其实时通道。删除不存在的 ID 是空操作。
func (d *Directory) Remove(id models.UserID) bool {
	d.mu.Lock()
	rec, ok := d.users[id]
	if ok {
		delete(d.users, id)
	}
	d.mu.Unlock()
	if !ok {
		return false
	}
	if ch := rec.markRemoved(); ch != nil {
		_ = ch.Close()
	}
	return true
}

// ListIDs 返回当前所有用户 ID，顺序不固定。
func (d *Directory) ListIDs() []models.UserID {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return lo.Keys(d.users)
}

// UpdateInPlace 在记录锁内修改仍然存在的记录。记录不存在或已被并发删除时返回 false。
func (d *Directory) UpdateInPlace(id models.UserID, fn func(*State)) bool {
	rec, ok := d.Lookup(id)
	if !ok {
		return false
	}
	return rec.update(fn)
}
