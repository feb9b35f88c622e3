package service

import (
	"encoding/json"
	"time"
	"unicode/utf8"

	"courier/internal/directory"
	"courier/internal/metrics"
	"courier/internal/models"
)

// Notification 是新消息到达时推送到实时通道的信号，客户端收到后拉取队列。
type Notification struct {
	Type      string        `json:"type"`
	Author    models.UserID `json:"author"`
	Timestamp time.Time     `json:"timestamp"`
}

// MessageService 负责消息投递与队列拉取。时间戳精度为微秒，与 Postgres 存储一致。
type MessageService struct {
	dir      *directory.Directory
	channels *ChannelService
	now      func() time.Time
}

func NewMessageService(dir *directory.Directory, channels *ChannelService) *MessageService {
	return &MessageService{
		dir:      dir,
		channels: channels,
		now:      func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// WithClock 替换服务端时钟，测试使用。
func (s *MessageService) WithClock(now func() time.Time) *MessageService {
	s.now = now
	return s
}

// Send 先把消息写入目标队列，再尝试推送通知。推送失败不影响返回值。
// 目标在请求过程中被删除时消息被丢弃并返回 ErrTargetNotFound。
// 内容必须是合法 UTF-8，否则无法原样写入 JSON 快照。
func (s *MessageService) Send(from, to models.UserID, content string) (models.Message, error) {
	if content == "" {
		return models.Message{}, ErrEmptyContent
	}
	if !utf8.ValidString(content) {
		return models.Message{}, ErrMalformedRequest
	}
	rec, ok := s.dir.Lookup(to)
	if !ok {
		return models.Message{}, ErrTargetNotFound
	}
	msg := models.Message{Author: from, Timestamp: s.now(), Content: content}
	if err := rec.Append(msg); err != nil {
		return models.Message{}, ErrTargetNotFound
	}
	metrics.MessagesSentTotal.Inc()

	if s.channels != nil {
		signal, err := json.Marshal(Notification{Type: "message", Author: from, Timestamp: msg.Timestamp})
		if err == nil {
			s.channels.Push(to, signal)
		}
	}
	return msg, nil
}

// Drain 原子地取出并清空用户队列。
func (s *MessageService) Drain(id models.UserID) ([]models.Message, error) {
	rec, ok := s.dir.Lookup(id)
	if !ok {
		return nil, ErrUserNotFound
	}
	msgs, err := rec.Drain()
	if err != nil {
		return nil, ErrUserNotFound
	}
	metrics.MessagesDrainedTotal.Add(float64(len(msgs)))
	return msgs, nil
}
