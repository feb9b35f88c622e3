package directory

import (
	"sync"

	"courier/internal/models"
)

// Channel 是用户的实时推送通道，ws.Client 实现了该接口。
type Channel interface {
	Push(signal []byte) error
	Close() error
}

// State 是 UpdateInPlace 回调可以修改的记录状态，只在持有记录锁期间有效。
type State struct {
	Queue   []models.Message
	Channel Channel
}

// Record 是目录中的一个用户。所有持有者共享同一个 *Record，
// 队列与通道的读写都经过记录锁串行化。
type Record struct {
	ID    models.UserID
	Token string

	mu      sync.Mutex
	queue   []models.Message
	channel Channel
	removed bool
}

func newRecord(id models.UserID, token string, queue []models.Message) *Record {
	return &Record{ID: id, Token: token, queue: queue}
}

// update 在记录锁内执行 fn；记录已被删除时返回 false。
func (r *Record) update(fn func(*State)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.removed {
		return false
	}
	st := State{Queue: r.queue, Channel: r.channel}
	fn(&st)
	r.queue, r.channel = st.Queue, st.Channel
	return true
}

// Append 将消息追加到队尾。
func (r *Record) Append(msg models.Message) error {
	if !r.update(func(st *State) { st.Queue = append(st.Queue, msg) }) {
		return ErrNotFound
	}
	return nil
}

// Drain 原子地取出并清空整个队列，没有消息时返回空切片而不是 nil。
func (r *Record) Drain() ([]models.Message, error) {
	var out []models.Message
	ok := r.update(func(st *State) {
		out = st.Queue
		st.Queue = nil
	})
	if !ok {
		return nil, ErrNotFound
	}
	if out == nil {
		out = []models.Message{}
	}
	return out, nil
}

// Pending 返回当前排队的消息数。
func (r *Record) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}

// Channel 返回当前挂载的通道，可能为 nil。
func (r *Record) Channel() Channel {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.channel
}

// SetChannel 替换通道并返回旧通道。旧通道不会在这里关闭，由调用方决定是否关闭。
func (r *Record) SetChannel(ch Channel) (Channel, error) {
	var prev Channel
	if !r.update(func(st *State) {
		prev = st.Channel
		st.Channel = ch
	}) {
		return nil, ErrNotFound
	}
	return prev, nil
}

// ClearChannel 仅当 ch 仍是当前通道时才将其清除。
func (r *Record) ClearChannel(ch Channel) bool {
	cleared := false
	r.update(func(st *State) {
		if st.Channel != nil && st.Channel == ch {
			st.Channel = nil
			cleared = true
		}
	})
	return cleared
}

func (r *Record) markRemoved() Channel {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = true
	ch := r.channel
	r.channel = nil
	return ch
}

func (r *Record) snapshot() (models.PersistedUser, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.removed {
		return models.PersistedUser{}, false
	}
	msgs := make([]models.Message, len(r.queue))
	copy(msgs, r.queue)
	return models.PersistedUser{ID: r.ID, Token: r.Token, Messages: msgs}, true
}
