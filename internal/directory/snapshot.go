package directory

import (
	"fmt"
	"sort"
	"unicode/utf8"

	"courier/internal/models"

	"github.com/samber/lo"
)

// Snapshot 先复制记录指针再逐个加锁拷贝，得到一致的快照，按 ID 升序排列。
func (d *Directory) Snapshot() []models.PersistedUser {
	d.mu.RLock()
	recs := lo.Values(d.users)
	d.mu.RUnlock()

	out := lo.FilterMap(recs, func(r *Record, _ int) (models.PersistedUser, bool) {
		return r.snapshot()
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Restore 用快照替换目录内容。原有记录被视为删除，其通道会被关闭。
func (d *Directory) Restore(users []models.PersistedUser) error {
	next := make(map[models.UserID]*Record, len(users))
	for _, u := range users {
		if u.ID < 0 {
			return fmt.Errorf("%w: negative id %d", ErrInvalidSnapshot, u.ID)
		}
		if !ValidToken(u.Token) {
			return fmt.Errorf("%w: malformed token for id %d", ErrInvalidSnapshot, u.ID)
		}
		if _, dup := next[u.ID]; dup {
			return fmt.Errorf("%w: duplicate id %d", ErrInvalidSnapshot, u.ID)
		}
		for _, m := range u.Messages {
			if !utf8.ValidString(m.Content) {
				return fmt.Errorf("%w: invalid utf-8 content for id %d", ErrInvalidSnapshot, u.ID)
			}
		}
		queue := make([]models.Message, len(u.Messages))
		copy(queue, u.Messages)
		next[u.ID] = newRecord(u.ID, u.Token, queue)
	}

	d.mu.Lock()
	prev := d.users
	d.users = next
	d.mu.Unlock()

	for _, rec := range prev {
		if ch := rec.markRemoved(); ch != nil {
			_ = ch.Close()
		}
	}
	return nil
}
