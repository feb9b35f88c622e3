package storage

import (
	"context"
	"fmt"
	"time"

	"courier/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type userRow struct {
	ID        int32  `gorm:"primaryKey;autoIncrement:false"`
	Token     string `gorm:"size:24;not null"`
	CreatedAt time.Time
}

func (userRow) TableName() string { return "users" }

type messageRow struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    int32     `gorm:"index:idx_msg_user_seq,priority:1;not null"`
	Seq       int       `gorm:"index:idx_msg_user_seq,priority:2;not null"`
	Author    int32     `gorm:"not null"`
	Timestamp time.Time `gorm:"not null"`
	Content   string    `gorm:"type:text;not null"`
}

func (messageRow) TableName() string { return "messages" }

// PostgresStore 用 users/messages 两张表保存快照，每次保存整体替换。
type PostgresStore struct {
	db *gorm.DB
}

// Connect 建立到 Postgres 的连接，并带有简单的重试来等待容器就绪。
func Connect(dsn string, attempts int) (*gorm.DB, error) {
	if attempts <= 0 {
		attempts = 1
	}
	var gdb *gorm.DB
	var err error
	for i := 0; i < attempts; i++ {
		gdb, err = gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
		if err == nil {
			sqlDB, err2 := gdb.DB()
			if err2 == nil {
				sqlDB.SetMaxIdleConns(2)
				sqlDB.SetMaxOpenConns(5)
				sqlDB.SetConnMaxLifetime(time.Hour)
				return gdb, nil
			}
			err = err2
		}
		if i < attempts-1 {
			time.Sleep(time.Duration(500+i*200) * time.Millisecond)
		}
	}
	return nil, err
}

// Migrate 自动迁移快照涉及的表结构。
func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(&userRow{}, &messageRow{})
}

func OpenPostgresStore(dsn string, attempts int) (*PostgresStore, error) {
	gdb, err := Connect(dsn, attempts)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	if err := Migrate(gdb); err != nil {
		return nil, fmt.Errorf("db migrate: %w", err)
	}
	return &PostgresStore{db: gdb}, nil
}

func (s *PostgresStore) Load(ctx context.Context) ([]models.PersistedUser, error) {
	db := s.db.WithContext(ctx)
	var users []userRow
	if err := db.Order("id").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	var msgs []messageRow
	if err := db.Order("user_id, seq").Find(&msgs).Error; err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}

	byUser := make(map[int32][]models.Message, len(users))
	for _, m := range msgs {
		byUser[m.UserID] = append(byUser[m.UserID], models.Message{
			Author:    models.UserID(m.Author),
			Timestamp: m.Timestamp.UTC(),
			Content:   m.Content,
		})
	}
	out := make([]models.PersistedUser, 0, len(users))
	for _, u := range users {
		queue := byUser[u.ID]
		if queue == nil {
			queue = []models.Message{}
		}
		out = append(out, models.PersistedUser{ID: models.UserID(u.ID), Token: u.Token, Messages: queue})
	}
	return out, nil
}

func (s *PostgresStore) Save(ctx context.Context, users []models.PersistedUser) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		all := tx.Session(&gorm.Session{AllowGlobalUpdate: true})
		if err := all.Delete(&messageRow{}).Error; err != nil {
			return err
		}
		if err := all.Delete(&userRow{}).Error; err != nil {
			return err
		}
		if len(users) == 0 {
			return nil
		}
		rows := make([]userRow, 0, len(users))
		var msgs []messageRow
		for _, u := range users {
			rows = append(rows, userRow{ID: int32(u.ID), Token: u.Token})
			for i, m := range u.Messages {
				msgs = append(msgs, messageRow{
					UserID:    int32(u.ID),
					Seq:       i,
					Author:    int32(m.Author),
					Timestamp: m.Timestamp,
					Content:   m.Content,
				})
			}
		}
		if err := tx.CreateInBatches(rows, 500).Error; err != nil {
			return err
		}
		if len(msgs) > 0 {
			if err := tx.CreateInBatches(msgs, 500).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
