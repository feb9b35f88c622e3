package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"courier/internal/config"
	"courier/internal/models"
)

// Store 负责快照的读写，不关心目录的并发细节。
type Store interface {
	Load(ctx context.Context) ([]models.PersistedUser, error)
	Save(ctx context.Context, users []models.PersistedUser) error
	Close() error
}

// Open 根据配置选择快照存储后端。
func Open(cfg config.Config) (Store, error) {
	switch cfg.StoreDriver {
	case "file", "":
		return NewFileStore(cfg.StorePath), nil
	case "badger":
		s, err := OpenBadgerStore(cfg.StorePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "postgres":
		s, err := OpenPostgresStore(cfg.DatabaseDSN, 10)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// Encode 把快照编码为缩进 4 空格的 JSON，便于人工比对。
func Encode(users []models.PersistedUser) ([]byte, error) {
	if users == nil {
		users = []models.PersistedUser{}
	}
	return json.MarshalIndent(users, "", "    ")
}

func Decode(data []byte) ([]models.PersistedUser, error) {
	var users []models.PersistedUser
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return users, nil
}
