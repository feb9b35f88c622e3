package ws

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"courier/internal/auth"
	"courier/internal/models"
	"courier/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 1 << 20
)

var (
	ErrClientClosed = errors.New("client closed")
	ErrSlowConsumer = errors.New("client send buffer full")
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Client 是一条 websocket 连接，实现 directory.Channel。
// Push 只向缓冲区投递，由 writePump 负责真正写出。
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	userID models.UserID

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func newClient(h *Hub, conn *websocket.Conn, id models.UserID, buffer int) *Client {
	if buffer <= 0 {
		buffer = 16
	}
	return &Client{hub: h, conn: conn, userID: id, send: make(chan []byte, buffer)}
}

// Push 非阻塞地投递信号，缓冲区满或连接已关闭时返回错误。
func (c *Client) Push(signal []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClientClosed
	}
	select {
	case c.send <- signal:
		return nil
	default:
		return ErrSlowConsumer
	}
}

// Close 通知 writePump 发送关闭帧并断开连接。可重复调用。
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
	return nil
}

// Serve 把已鉴权的请求升级为 websocket 并挂载为用户的实时通道。
// 新连接替换旧连接时，旧连接在这里被显式关闭。
func Serve(h *Hub, channels *service.ChannelService, buffer int) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := auth.GetUserID(c)
		if !ok {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		if !websocket.IsWebSocketUpgrade(c.Request) {
			_ = c.AbortWithError(http.StatusBadRequest, service.ErrChannelUpgradeRejected)
			return
		}
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Warn().Err(err).Int32("user_id", int32(id)).Msg("ws upgrade")
			return
		}
		client := newClient(h, conn, id, buffer)
		prev, err := channels.Attach(id, client)
		if err != nil {
			log.Info().Err(err).Int32("user_id", int32(id)).Msg("ws attach")
			_ = conn.Close()
			return
		}
		if prev != nil {
			_ = prev.Close()
		}
		if !h.add(client) {
			channels.Detach(id, client)
			_ = conn.Close()
			return
		}
		log.Debug().Int32("user_id", int32(id)).Msg("ws attached")

		go client.writePump()
		client.readPump(channels)
	}
}

func (c *Client) readPump(channels *service.ChannelService) {
	defer func() {
		if channels.Detach(c.userID, c) {
			log.Debug().Int32("user_id", int32(c.userID)).Msg("ws detached")
		}
		c.hub.remove(c)
		_ = c.Close()
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		// 客户端上行帧没有语义，只用于保持连接。
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
