package service

import (
	"courier/internal/directory"
	"courier/internal/metrics"
	"courier/internal/models"

	"github.com/rs/zerolog/log"
)

// ChannelService 管理用户的实时通道。每个用户最多一个通道，后挂载者覆盖先挂载者。
type ChannelService struct {
	dir *directory.Directory
}

func NewChannelService(dir *directory.Directory) *ChannelService {
	return &ChannelService{dir: dir}
}

// Attach 挂载通道并返回被替换的旧通道。旧通道不会被关闭，由调用方处理。
func (s *ChannelService) Attach(id models.UserID, ch directory.Channel) (directory.Channel, error) {
	rec, ok := s.dir.Lookup(id)
	if !ok {
		return nil, ErrUserNotFound
	}
	prev, err := rec.SetChannel(ch)
	if err != nil {
		return nil, ErrUserNotFound
	}
	return prev, nil
}

// Detach 仅当 ch 仍是用户当前通道时将其移除，连接断开时调用。
func (s *ChannelService) Detach(id models.UserID, ch directory.Channel) bool {
	rec, ok := s.dir.Lookup(id)
	if !ok {
		return false
	}
	return rec.ClearChannel(ch)
}

// Push 尽力投递信号。没有通道不是错误；投递失败时清除并关闭失效的通道。
func (s *ChannelService) Push(id models.UserID, signal []byte) {
	rec, ok := s.dir.Lookup(id)
	if !ok {
		return
	}
	ch := rec.Channel()
	if ch == nil {
		return
	}
	if err := ch.Push(signal); err != nil {
		metrics.PushFailuresTotal.Inc()
		log.Debug().Err(err).Int32("user_id", int32(id)).Msg("push failed, dropping channel")
		if rec.ClearChannel(ch) {
			_ = ch.Close()
		}
		return
	}
	metrics.PushesTotal.Inc()
}
