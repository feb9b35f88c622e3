package ws

import (
	"sync"
	"sync/atomic"

	"courier/internal/metrics"
)

// Hub 跟踪所有在线的 websocket 客户端，停服时统一关闭。
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	stop       chan struct{}
	done       chan struct{}
	once       sync.Once
	online     int32
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Run 处理注册与注销，直到 Close 被调用。
func (h *Hub) Run() {
	defer close(h.done)
	for {
		select {
		case c := <-h.register:
			h.clients[c] = true
			atomic.StoreInt32(&h.online, int32(len(h.clients)))
			metrics.WsConnections.Inc()
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				atomic.StoreInt32(&h.online, int32(len(h.clients)))
				metrics.WsConnections.Dec()
			}
		case <-h.stop:
			for c := range h.clients {
				_ = c.Close()
				delete(h.clients, c)
				metrics.WsConnections.Dec()
			}
			atomic.StoreInt32(&h.online, 0)
			return
		}
	}
}

func (h *Hub) add(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.stop:
		return false
	}
}

func (h *Hub) remove(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.stop:
	}
}

// Close 关闭所有客户端并停止 Run 循环。可重复调用。
func (h *Hub) Close() {
	h.once.Do(func() { close(h.stop) })
}

// Done 在 Run 循环退出后关闭。
func (h *Hub) Done() <-chan struct{} { return h.done }

// Online 返回当前在线客户端数量。
func (h *Hub) Online() int { return int(atomic.LoadInt32(&h.online)) }
