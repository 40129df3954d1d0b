package core

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fricon-core/internal/config"
	"fricon-core/internal/delivery"
	"fricon-core/internal/models"
	"fricon-core/internal/realtime"
)

// backend fakes the FriCon hub and REST API on one server.
type backend struct {
	srv      *httptest.Server
	statuses chan models.UpdateStatusRequest
	seen     chan []models.SeenPost

	mu   sync.Mutex
	conn *websocket.Conn
	wmu  sync.Mutex
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	b := &backend{
		statuses: make(chan models.UpdateStatusRequest, 16),
		seen:     make(chan []models.SeenPost, 4),
	}
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	mux := http.NewServeMux()
	mux.HandleFunc("/hubs/chat", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		b.mu.Lock()
		b.conn = conn
		b.mu.Unlock()
		b.serve(conn)
	})
	mux.HandleFunc("/api/message/getUnreadMessages", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"data": 1})
	})
	mux.HandleFunc("/api/notification/getUnreadNotis", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"data": 2})
	})
	mux.HandleFunc("/api/conversation/getAllConversationsByUser", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"data": []models.Conversation{
			{ID: "c1", NewestMessage: &models.Message{ID: "m0", ConversationID: "c1", SenderID: "u2", Status: models.StatusDelivered}},
			{ID: "c2"},
		}})
	})
	mux.HandleFunc("/api/post/seen", func(w http.ResponseWriter, r *http.Request) {
		var batch []models.SeenPost
		_ = json.NewDecoder(r.Body).Decode(&batch)
		b.seen <- batch
		_ = json.NewEncoder(w).Encode(map[string]any{"message": "ok"})
	})

	b.srv = httptest.NewServer(mux)
	t.Cleanup(b.srv.Close)
	return b
}

func (b *backend) serve(conn *websocket.Conn) {
	defer conn.Close()
	for {
		var f realtime.Frame
		if err := conn.ReadJSON(&f); err != nil {
			return
		}
		var reply any
		switch f.Target {
		case realtime.ProcSendMessage:
			var req models.SendMessageRequest
			_ = json.Unmarshal(f.Payload, &req)
			reply = models.Message{ID: "srv-1", ConversationID: req.ConversationID, SenderID: req.SenderID, Content: req.Content, Status: models.StatusSent}
		case realtime.ProcUpdateMessageStatus:
			var req models.UpdateStatusRequest
			_ = json.Unmarshal(f.Payload, &req)
			b.statuses <- req
			reply = true
		}
		body, _ := json.Marshal(reply)
		b.wmu.Lock()
		_ = conn.WriteJSON(realtime.Frame{Kind: realtime.KindResult, ID: f.ID, Payload: body})
		b.wmu.Unlock()
	}
}

func (b *backend) push(t *testing.T, event string, payload any) {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	var conn *websocket.Conn
	require.Eventually(t, func() bool {
		b.mu.Lock()
		defer b.mu.Unlock()
		conn = b.conn
		return conn != nil
	}, 2*time.Second, 10*time.Millisecond)
	b.wmu.Lock()
	defer b.wmu.Unlock()
	require.NoError(t, conn.WriteJSON(realtime.Frame{Kind: realtime.KindEvent, Target: event, Payload: body}))
}

func newCore(t *testing.T, b *backend) *Core {
	t.Helper()
	var cfg config.Config
	cfg.User.ID = "me"
	cfg.Realtime.URL = "ws" + strings.TrimPrefix(b.srv.URL, "http") + "/hubs/chat"
	cfg.Realtime.AccessToken = "tok"
	cfg.Realtime.DialTimeout = 2 * time.Second
	cfg.Realtime.InvokeTimeout = 2 * time.Second
	cfg.REST.BaseURL = b.srv.URL + "/api/"
	cfg.REST.Timeout = 2 * time.Second
	cfg.Core.BaseTitle = "FriCon"
	cfg.Core.SeenBatchSize = 4
	cfg.Core.PageSize = 20

	c, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Shutdown(context.Background()) })
	return c
}

func TestNewPassesReconnectPolicy(t *testing.T) {
	b := newBackend(t)
	var cfg config.Config
	cfg.User.ID = "me"
	cfg.Realtime.URL = "ws" + strings.TrimPrefix(b.srv.URL, "http") + "/hubs/chat"
	cfg.Realtime.ReconnectInitialInterval = 250 * time.Millisecond
	cfg.Realtime.ReconnectMaxInterval = 5 * time.Second
	cfg.REST.BaseURL = b.srv.URL + "/api/"

	c, err := New(cfg)
	require.NoError(t, err)
	opts := c.Realtime.Options()
	assert.Equal(t, 250*time.Millisecond, opts.ReconnectInitialInterval)
	assert.Equal(t, 5*time.Second, opts.ReconnectMaxInterval)
	assert.Equal(t, realtime.StateIdle, c.Realtime.State())
}

func TestStartSeedsState(t *testing.T) {
	b := newBackend(t)
	c := newCore(t, b)

	require.NoError(t, c.Start(context.Background()))
	assert.Equal(t, realtime.StateConnected, c.Realtime.State())
	assert.Equal(t, 2, c.Unread.NotificationCount())
	assert.Equal(t, "(1) FriCon", c.Unread.Title())
	assert.Equal(t, 1, c.Unread.MessageCount())
	assert.Len(t, c.Conversations.List(), 2)
}

func TestReceiveWhileNotViewingThenSend(t *testing.T) {
	b := newBackend(t)
	c := newCore(t, b)
	require.NoError(t, c.Start(context.Background()))

	b.push(t, realtime.EventReceivePrivateMessage, models.Message{ID: "m5", ConversationID: "c2", SenderID: "u3", Status: models.StatusSent})

	select {
	case req := <-b.statuses:
		assert.Equal(t, models.UpdateStatusRequest{MessageID: "m5", Status: models.StatusDelivered}, req)
	case <-time.After(2 * time.Second):
		t.Fatal("delivered ack not sent")
	}
	assert.Eventually(t, func() bool { return c.Unread.MessageCount() == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "(2) FriCon", c.Unread.Title())
	assert.Equal(t, "c2", c.Conversations.List()[0].ID)
	assert.Equal(t, 0, c.Messages.Len())

	sent, err := c.Delivery.Send(context.Background(), delivery.SendRequest{ConversationID: "c1", Content: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "srv-1", sent.ID)

	conv, err := c.Conversations.Get("c1")
	require.NoError(t, err)
	assert.Equal(t, "srv-1", conv.NewestMessage.ID)
	assert.Equal(t, 1, c.Unread.MessageCount())
	assert.Equal(t, "(1) FriCon", c.Unread.Title())
}

func TestNotificationPushRaisesTitle(t *testing.T) {
	b := newBackend(t)
	c := newCore(t, b)
	require.NoError(t, c.Start(context.Background()))

	b.push(t, realtime.EventSendPrivateNoti, models.Notification{ID: "n1", Content: "Linh liked your post", Unread: true})
	assert.Eventually(t, func() bool { return c.Unread.NotificationCount() == 3 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "(1) FriCon", c.Unread.Title())
	assert.Len(t, c.Relay.List(), 1)
}

func TestShutdownFlushesSeenPosts(t *testing.T) {
	b := newBackend(t)
	c := newCore(t, b)
	require.NoError(t, c.Start(context.Background()))

	_, err := c.Seen.Add(context.Background(), models.SeenPost{FeedID: "f1", CreatedAt: 1, PostID: "p1"})
	require.NoError(t, err)
	require.NoError(t, c.Shutdown(context.Background()))

	select {
	case batch := <-b.seen:
		assert.Len(t, batch, 1)
	case <-time.After(2 * time.Second):
		t.Fatal("seen batch not flushed on shutdown")
	}
	assert.Equal(t, realtime.StateStopped, c.Realtime.State())
}
