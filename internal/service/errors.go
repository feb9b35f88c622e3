package service

import "errors"

// 业务层通用错误，handler 根据错误类型映射到合适的 HTTP 状态码。
var (
	ErrUserNotFound           = errors.New("user not found")
	ErrTargetNotFound         = errors.New("target not found")
	ErrEmptyContent           = errors.New("empty content")
	ErrUnauthenticated        = errors.New("unauthenticated")
	ErrMalformedRequest       = errors.New("malformed request")
	ErrChannelUpgradeRejected = errors.New("channel upgrade rejected")
	ErrTransportAborted       = errors.New("transport aborted")
)
