package models

import "time"

// UserID 是 31 位非负整数，由注册时的密码学随机源生成。
type UserID int32

// User 是注册成功后返回给客户端的凭据。
type User struct {
	ID    UserID `json:"id"`
	Token string `json:"token"`
}

// Message 是一条排队等待拉取的消息，Timestamp 取服务端时钟。
type Message struct {
	Author    UserID    `json:"author"`
	Timestamp time.Time `json:"timestamp"`
	Content   string    `json:"content"`
}

// PersistedUser 是快照中的一个用户，不包含实时通道。
type PersistedUser struct {
	ID       UserID    `json:"id"`
	Token    string    `json:"token"`
	Messages []Message `json:"messages"`
}
