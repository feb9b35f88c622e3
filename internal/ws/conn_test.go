package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"courier/internal/auth"
	"courier/internal/directory"
	"courier/internal/models"
	"courier/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	*httptest.Server
	dir      *directory.Directory
	hub      *Hub
	channels *service.ChannelService
	messages *service.MessageService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dir := directory.New()
	hub := NewHub()
	go hub.Run()
	channels := service.NewChannelService(dir)

	r := gin.New()
	r.GET("/ws", auth.NewGuard(dir).Middleware(), Serve(hub, channels, 8))
	ts := &testServer{
		Server:   httptest.NewServer(r),
		dir:      dir,
		hub:      hub,
		channels: channels,
		messages: service.NewMessageService(dir, channels),
	}
	t.Cleanup(func() {
		hub.Close()
		ts.Close()
	})
	return ts
}

func (ts *testServer) dial(t *testing.T, rec *directory.Record) *websocket.Conn {
	t.Helper()
	h := http.Header{}
	h.Set(auth.HeaderID, strconv.Itoa(int(rec.ID)))
	h.Set(auth.HeaderToken, rec.Token)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, h)
	require.NoError(t, err)
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitAttached(t *testing.T, rec *directory.Record) directory.Channel {
	t.Helper()
	var ch directory.Channel
	require.Eventually(t, func() bool {
		ch = rec.Channel()
		return ch != nil
	}, time.Second, 5*time.Millisecond)
	return ch
}

func TestServe_PushesNotification(t *testing.T) {
	ts := newTestServer(t)
	sender, err := ts.dir.Register()
	require.NoError(t, err)
	target, err := ts.dir.Register()
	require.NoError(t, err)

	conn := ts.dial(t, target)
	waitAttached(t, target)

	_, err = ts.messages.Send(sender.ID, target.ID, "hello")
	require.NoError(t, err)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var n service.Notification
	require.NoError(t, json.Unmarshal(data, &n))
	assert.Equal(t, "message", n.Type)
	assert.Equal(t, sender.ID, n.Author)

	msgs, err := ts.messages.Drain(target.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello", msgs[0].Content)
}

func TestServe_RejectsPlainRequest(t *testing.T) {
	ts := newTestServer(t)
	rec, err := ts.dir.Register()
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/ws", nil)
	require.NoError(t, err)
	req.Header.Set(auth.HeaderID, strconv.Itoa(int(rec.ID)))
	req.Header.Set(auth.HeaderToken, rec.Token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Nil(t, rec.Channel())
}

func TestServe_Unauthenticated(t *testing.T) {
	ts := newTestServer(t)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServe_ReplacementClosesPrevious(t *testing.T) {
	ts := newTestServer(t)
	rec, err := ts.dir.Register()
	require.NoError(t, err)

	first := ts.dial(t, rec)
	firstCh := waitAttached(t, rec)

	ts.dial(t, rec)
	require.Eventually(t, func() bool {
		ch := rec.Channel()
		return ch != nil && ch != firstCh
	}, time.Second, 5*time.Millisecond)

	_ = first.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = first.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestServe_DeleteClosesConnection(t *testing.T) {
	ts := newTestServer(t)
	rec, err := ts.dir.Register()
	require.NoError(t, err)

	conn := ts.dial(t, rec)
	waitAttached(t, rec)

	ts.dir.Remove(rec.ID)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
}

func TestServe_ClientDisconnectDetaches(t *testing.T) {
	ts := newTestServer(t)
	rec, err := ts.dir.Register()
	require.NoError(t, err)

	conn := ts.dial(t, rec)
	waitAttached(t, rec)
	require.Eventually(t, func() bool { return ts.hub.Online() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool { return rec.Channel() == nil }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return ts.hub.Online() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestHub_CloseDisconnectsClients(t *testing.T) {
	ts := newTestServer(t)
	rec, err := ts.dir.Register()
	require.NoError(t, err)
	conn := ts.dial(t, rec)
	require.Eventually(t, func() bool { return ts.hub.Online() == 1 }, time.Second, 5*time.Millisecond)

	ts.hub.Close()
	select {
	case <-ts.hub.Done():
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}
	assert.Equal(t, 0, ts.hub.Online())

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
}

func TestClient_PushAfterClose(t *testing.T) {
	c := newClient(NewHub(), nil, models.UserID(1), 1)
	require.NoError(t, c.Push([]byte("a")))
	assert.ErrorIs(t, c.Push([]byte("b")), ErrSlowConsumer)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.ErrorIs(t, c.Push([]byte("c")), ErrClientClosed)
}
