package realtime

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type serverConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *serverConn) send(f Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(f)
}

// fakeBackend is an in-process messaging backend speaking the frame protocol.
type fakeBackend struct {
	srv     *httptest.Server
	dials   atomic.Int32
	headers chan http.Header
	invokes chan Frame

	mu    sync.Mutex
	conns []*serverConn
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	b := &fakeBackend{
		headers: make(chan http.Header, 16),
		invokes: make(chan Frame, 16),
	}
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	b.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.dials.Add(1)
		select {
		case b.headers <- r.Header.Clone():
		default:
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		sc := &serverConn{conn: conn}
		b.mu.Lock()
		b.conns = append(b.conns, sc)
		b.mu.Unlock()
		b.serve(sc)
	}))
	t.Cleanup(func() {
		b.drop()
		b.srv.Close()
	})
	return b
}

func (b *fakeBackend) url() string {
	return "ws" + strings.TrimPrefix(b.srv.URL, "http")
}

func (b *fakeBackend) serve(sc *serverConn) {
	defer sc.conn.Close()
	for {
		var f Frame
		if err := sc.conn.ReadJSON(&f); err != nil {
			return
		}
		select {
		case b.invokes <- f:
		default:
		}
		switch f.Target {
		case "Echo":
			_ = sc.send(Frame{Kind: KindResult, ID: f.ID, Payload: f.Payload})
		case "Reject":
			_ = sc.send(Frame{Kind: KindResult, ID: f.ID, Error: "not allowed"})
		case "Hang":
		default:
			_ = sc.send(Frame{Kind: KindResult, ID: f.ID, Payload: json.RawMessage(`true`)})
		}
	}
}

// push emits an event on the newest connection.
func (b *fakeBackend) push(t *testing.T, event string, payload any) {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	sc := b.newest(t)
	if err := sc.send(Frame{Kind: KindEvent, Target: event, Payload: body}); err != nil {
		t.Fatalf("push %s: %v", event, err)
	}
}

// newest waits for the latest accepted connection to be registered.
func (b *fakeBackend) newest(t *testing.T) *serverConn {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		b.mu.Lock()
		if n := len(b.conns); n > 0 {
			sc := b.conns[n-1]
			b.mu.Unlock()
			return sc
		}
		b.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("no backend connection")
	return nil
}

// drop closes every server-side connection.
func (b *fakeBackend) drop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sc := range b.conns {
		_ = sc.conn.Close()
	}
	b.conns = nil
}
