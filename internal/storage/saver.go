package storage

import (
	"context"
	"fmt"
	"time"

	"courier/internal/directory"
	"courier/internal/metrics"

	"github.com/rs/zerolog/log"
)

// Saver 在启动时把快照载入目录，运行期间按间隔保存，停服时再保存一次。
type Saver struct {
	dir      *directory.Directory
	store    Store
	interval time.Duration
}

func NewSaver(dir *directory.Directory, store Store, interval time.Duration) *Saver {
	return &Saver{dir: dir, store: store, interval: interval}
}

func (s *Saver) Load(ctx context.Context) error {
	users, err := s.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if err := s.dir.Restore(users); err != nil {
		return fmt.Errorf("restore snapshot: %w", err)
	}
	metrics.Users.Set(float64(s.dir.Len()))
	log.Info().Int("users", len(users)).Msg("snapshot loaded")
	return nil
}

func (s *Saver) Save(ctx context.Context) error {
	users := s.dir.Snapshot()
	if err := s.store.Save(ctx, users); err != nil {
		metrics.SnapshotSavesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("save snapshot: %w", err)
	}
	metrics.SnapshotSavesTotal.WithLabelValues("ok").Inc()
	log.Debug().Int("users", len(users)).Msg("snapshot saved")
	return nil
}

// Run 周期性保存快照直到 ctx 结束；interval 不大于 0 时直接返回。
func (s *Saver) Run(ctx context.Context) {
	if s.interval <= 0 {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Save(ctx); err != nil {
				log.Error().Err(err).Msg("periodic snapshot")
			}
		}
	}
}
