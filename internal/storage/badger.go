package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"courier/internal/models"

	"github.com/dgraph-io/badger/v4"
)

const userKeyPrefix = "user:"

// BadgerStore 每个用户一个键，值为该用户快照的 JSON。
type BadgerStore struct {
	db *badger.DB
}

func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

func OpenBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLoggingLevel(badger.WARNING)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return NewBadgerStore(db), nil
}

func userKey(id models.UserID) []byte {
	return []byte(userKeyPrefix + strconv.FormatInt(int64(id), 10))
}

func (s *BadgerStore) Load(ctx context.Context) ([]models.PersistedUser, error) {
	var users []models.PersistedUser
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(userKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			err := it.Item().Value(func(val []byte) error {
				var u models.PersistedUser
				if err := json.Unmarshal(val, &u); err != nil {
					return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
				}
				users = append(users, u)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return users, nil
}

// Save 写入全部用户并删除快照中已不存在的键。
func (s *BadgerStore) Save(ctx context.Context, users []models.PersistedUser) error {
	keep := make(map[string]struct{}, len(users))
	for _, u := range users {
		keep[string(userKey(u.ID))] = struct{}{}
	}

	var stale [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		prefix := []byte(userKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			k := it.Item().KeyCopy(nil)
			if _, ok := keep[string(k)]; !ok {
				stale = append(stale, k)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range stale {
		if err := wb.Delete(k); err != nil {
			return err
		}
	}
	for _, u := range users {
		if err := ctx.Err(); err != nil {
			return err
		}
		val, err := json.Marshal(u)
		if err != nil {
			return fmt.Errorf("encode user %d: %w", u.ID, err)
		}
		if err := wb.Set(userKey(u.ID), val); err != nil {
			return err
		}
	}
	return wb.Flush()
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}
