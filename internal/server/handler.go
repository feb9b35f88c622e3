package server

import (
	"errors"
	"io"
	"net/http"

	"courier/internal/auth"
	"courier/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const maxContentBytes = 64 << 10

// Handler 聚合所有 HTTP handler，依赖注入 service 层。
type Handler struct {
	userSvc *service.UserService
	msgSvc  *service.MessageService
	chSvc   *service.ChannelService
}

func NewHandler(userSvc *service.UserService, msgSvc *service.MessageService, chSvc *service.ChannelService) *Handler {
	return &Handler{userSvc: userSvc, msgSvc: msgSvc, chSvc: chSvc}
}

// statusFor 把业务错误映射为 HTTP 状态码。
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrEmptyContent),
		errors.Is(err, service.ErrMalformedRequest),
		errors.Is(err, service.ErrChannelUpgradeRejected):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrTargetNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrUnauthenticated):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, err error, msg string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg(msg)
	}
	c.AbortWithStatus(status)
}

// Register 创建匿名用户，返回 {id, token}。
func (h *Handler) Register(c *gin.Context) {
	u, err := h.userSvc.Register()
	if err != nil {
		fail(c, err, "register")
		return
	}
	c.IndentedJSON(http.StatusOK, u)
}

// ListUsers 返回全部用户 ID，无需鉴权。
func (h *Handler) ListUsers(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, h.userSvc.List())
}

// DeleteSelf 删除调用方自己。
func (h *Handler) DeleteSelf(c *gin.Context) {
	id, ok := auth.GetUserID(c)
	if !ok {
		fail(c, service.ErrUnauthenticated, "delete")
		return
	}
	h.userSvc.Delete(id)
	c.Status(http.StatusOK)
}

// GetMessages 拉取并清空调用方的消息队列。
func (h *Handler) GetMessages(c *gin.Context) {
	id, ok := auth.GetUserID(c)
	if !ok {
		fail(c, service.ErrUnauthenticated, "get messages")
		return
	}
	msgs, err := h.msgSvc.Drain(id)
	if err != nil {
		fail(c, err, "get messages")
		return
	}
	c.IndentedJSON(http.StatusOK, msgs)
}

// SendMessage 把请求体作为消息投递给 Target 头指定的用户。
func (h *Handler) SendMessage(c *gin.Context) {
	from, ok := auth.GetUserID(c)
	if !ok {
		fail(c, service.ErrUnauthenticated, "send")
		return
	}
	target, ok := auth.ParseUserID(c.GetHeader(auth.HeaderTarget))
	if !ok {
		fail(c, service.ErrMalformedRequest, "send")
		return
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxContentBytes+1))
	if err != nil {
		fail(c, service.ErrMalformedRequest, "send")
		return
	}
	if len(body) > maxContentBytes {
		c.AbortWithStatus(http.StatusRequestEntityTooLarge)
		return
	}
	if _, err := h.msgSvc.Send(from, target, string(body)); err != nil {
		fail(c, err, "send")
		return
	}
	c.Status(http.StatusAccepted)
}

// RequireUpgrade 拒绝非 websocket 升级的 /ws 请求。
func (h *Handler) RequireUpgrade(c *gin.Context) {
	if !websocket.IsWebSocketUpgrade(c.Request) {
		fail(c, service.ErrChannelUpgradeRejected, "ws")
		return
	}
	c.Next()
}
