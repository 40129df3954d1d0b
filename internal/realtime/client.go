package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"fricon-core/internal/observability"
)

const (
	maxFrameBytes = 1 << 20
	writeWait     = 5 * time.Second
)

// ErrNotConfirmed marks every invoke whose outcome the backend never confirmed:
// not started, disconnected, write failure, deadline or connection loss.
var ErrNotConfirmed = errors.New("realtime: not confirmed")

var (
	errNotConnected   = errors.New("not connected")
	errConnectionLost = errors.New("connection lost while pending")
	errStopped        = errors.New("client stopped")
)

// RemoteError is an application-level rejection carried by a result frame.
type RemoteError struct {
	Procedure string
	Message   string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("realtime: %s rejected: %s", e.Procedure, e.Message)
}

// State is the lifecycle state of the connection.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

type Options struct {
	URL                      string
	AccessToken              string
	DialTimeout              time.Duration
	InvokeTimeout            time.Duration
	ReconnectInitialInterval time.Duration
	ReconnectMaxInterval     time.Duration
	InvokeRate               float64
	InvokeBurst              int
}

// Client owns the single duplex connection to the messaging backend.
type Client struct {
	opts    Options
	dialer  *websocket.Dialer
	limiter *rate.Limiter
	group   singleflight.Group
	bus     *bus

	mu      sync.Mutex
	conn    *websocket.Conn
	state   State
	pending map[string]chan Frame
	hooks   []func(context.Context)

	writeMu sync.Mutex

	stopCtx  context.Context
	stop     context.CancelFunc
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewClient builds an idle client. Nothing is dialed until Start.
func NewClient(opts Options) *Client {
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 10 * time.Second
	}
	if opts.ReconnectInitialInterval <= 0 {
		opts.ReconnectInitialInterval = 500 * time.Millisecond
	}
	if opts.ReconnectMaxInterval <= 0 {
		opts.ReconnectMaxInterval = 30 * time.Second
	}
	limit := rate.Inf
	if opts.InvokeRate > 0 {
		limit = rate.Limit(opts.InvokeRate)
	}
	if opts.InvokeBurst <= 0 {
		opts.InvokeBurst = 1
	}

	stopCtx, stop := context.WithCancel(context.Background())
	return &Client{
		opts:    opts,
		dialer:  &websocket.Dialer{HandshakeTimeout: opts.DialTimeout, Proxy: http.ProxyFromEnvironment},
		limiter: rate.NewLimiter(limit, opts.InvokeBurst),
		bus:     newBus(),
		pending: make(map[string]chan Frame),
		stopCtx: stopCtx,
		stop:    stop,
	}
}

// Options returns the effective options, defaults applied.
func (c *Client) Options() Options {
	return c.opts
}

// Start dials the backend once. Concurrent callers share the in-flight dial and
// calls after a successful start return immediately.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateConnected, StateReconnecting:
		c.mu.Unlock()
		return nil
	case StateStopped:
		c.mu.Unlock()
		return fmt.Errorf("start: %w: %w", ErrNotConfirmed, errStopped)
	}
	c.mu.Unlock()

	_, err, _ := c.group.Do("start", func() (interface{}, error) {
		c.mu.Lock()
		if c.state == StateConnected || c.state == StateReconnecting {
			c.mu.Unlock()
			return nil, nil
		}
		c.state = StateConnecting
		c.mu.Unlock()

		conn, err := c.dial(ctx)
		if err != nil {
			c.setState(StateIdle)
			log.Error().Err(err).Str("url", c.opts.URL).Msg("realtime connection failed")
			return nil, err
		}
		if !c.install(conn) {
			_ = conn.Close()
			return nil, fmt.Errorf("start: %w: %w", ErrNotConfirmed, errStopped)
		}
		log.Info().Str("url", c.opts.URL).Msg("realtime connected")
		return nil, nil
	})
	return err
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if c.opts.AccessToken != "" {
		header.Set("Authorization", "Bearer "+c.opts.AccessToken)
		header.Set("Cookie", (&http.Cookie{Name: "accessToken", Value: c.opts.AccessToken}).String())
	}

	conn, resp, err := c.dialer.DialContext(ctx, c.opts.URL, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.opts.URL, err)
	}
	conn.SetReadLimit(maxFrameBytes)
	return conn, nil
}

// install makes conn the active connection and starts its read loop. It
// reports false when the client was stopped meanwhile.
func (c *Client) install(conn *websocket.Conn) bool {
	c.mu.Lock()
	if c.state == StateStopped {
		c.mu.Unlock()
		return false
	}
	c.conn = conn
	c.state = StateConnected
	c.wg.Add(1)
	c.mu.Unlock()

	observability.SetConnected(true)
	go c.readLoop(conn)
	return true
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	if c.state != StateStopped {
		c.state = s
	}
	c.mu.Unlock()
}

// State reports the current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// On subscribes handler to a push event. Several handlers may share an event;
// the returned func removes only this one.
func (c *Client) On(event string, handler Handler) func() {
	return c.bus.on(event, handler)
}

// Off removes every handler of event.
func (c *Client) Off(event string) {
	c.bus.off(event)
}

// OnReconnect registers a hook run after each successful redial.
func (c *Client) OnReconnect(hook func(context.Context)) {
	c.mu.Lock()
	c.hooks = append(c.hooks, hook)
	c.mu.Unlock()
}

// Subscribe decodes the event payload into T before calling fn.
func Subscribe[T any](c *Client, event string, fn func(T)) func() {
	return c.On(event, Typed(event, fn))
}

// Invoke calls procedure and decodes the result payload into reply when reply
// is non-nil.
func (c *Client) Invoke(ctx context.Context, procedure string, payload, reply any) (err error) {
	start := time.Now()
	ctx, span := otel.Tracer("fricon-core/realtime").Start(ctx, "realtime.invoke", trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(attribute.String("procedure", procedure))
	defer func() {
		outcome := "ok"
		var remote *RemoteError
		switch {
		case errors.Is(err, ErrNotConfirmed):
			outcome = "not_confirmed"
		case errors.As(err, &remote):
			outcome = "rejected"
		case err != nil:
			outcome = "error"
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		}
		span.End()
		observability.ObserveInvoke(procedure, outcome, time.Since(start))
	}()

	if c.opts.InvokeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.InvokeTimeout)
		defer cancel()
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return notConfirmed(procedure, err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", procedure, err)
	}
	id, err := newFrameID(time.Now())
	if err != nil {
		return fmt.Errorf("frame id: %w", err)
	}

	ch := make(chan Frame, 1)
	c.mu.Lock()
	conn := c.conn
	if conn == nil || c.state != StateConnected {
		c.mu.Unlock()
		return notConfirmed(procedure, errNotConnected)
	}
	c.pending[id] = ch
	c.mu.Unlock()
	defer c.forget(id)

	if err := c.write(conn, Frame{Kind: KindInvoke, ID: id, Target: procedure, Payload: body}); err != nil {
		return notConfirmed(procedure, err)
	}

	select {
	case <-ctx.Done():
		return notConfirmed(procedure, ctx.Err())
	case result, ok := <-ch:
		if !ok {
			return notConfirmed(procedure, errConnectionLost)
		}
		if result.Error != "" {
			return &RemoteError{Procedure: procedure, Message: result.Error}
		}
		if reply != nil && len(result.Payload) > 0 {
			if err := json.Unmarshal(result.Payload, reply); err != nil {
				return fmt.Errorf("decode %s result: %w", procedure, err)
			}
		}
		return nil
	}
}

func notConfirmed(procedure string, cause error) error {
	return fmt.Errorf("invoke %s: %w: %w", procedure, ErrNotConfirmed, cause)
}

func (c *Client) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) write(conn *websocket.Conn, f Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(f)
}

func (c *Client) readLoop(conn *websocket.Conn) {
	defer c.wg.Done()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleDisconnect(conn, err)
			return
		}

		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			log.Warn().Err(err).Msg("realtime frame decode failed")
			continue
		}
		if err := f.Validate(); err != nil {
			log.Warn().Err(err).Msg("realtime frame rejected")
			continue
		}

		switch f.Kind {
		case KindResult:
			c.mu.Lock()
			ch, ok := c.pending[f.ID]
			delete(c.pending, f.ID)
			c.mu.Unlock()
			if ok {
				ch <- f
			}
		case KindEvent:
			observability.IncRealtimeEvent(f.Target)
			if c.bus.dispatch(f.Target, f.Payload) == 0 {
				log.Debug().Str("event", f.Target).Msg("realtime event without subscribers")
			}
		default:
			log.Debug().Str("kind", string(f.Kind)).Msg("realtime frame ignored")
		}
	}
}

// failPending closes every pending channel. Callers hold c.mu.
func (c *Client) failPending() {
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
}

func (c *Client) handleDisconnect(conn *websocket.Conn, cause error) {
	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.failPending()
	if c.state == StateStopped {
		c.mu.Unlock()
		return
	}
	c.state = StateReconnecting
	c.mu.Unlock()

	_ = conn.Close()
	observability.SetConnected(false)
	if websocket.IsCloseError(cause, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		log.Info().Err(cause).Msg("realtime connection closed by server")
	} else {
		log.Warn().Err(cause).Msg("realtime connection lost")
	}

	c.reconnect()
}

func (c *Client) reconnect() {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.opts.ReconnectInitialInterval
	policy.MaxInterval = c.opts.ReconnectMaxInterval
	policy.MaxElapsedTime = 0

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		if c.stopCtx.Err() != nil {
			return backoff.Permanent(errStopped)
		}
		ctx, cancel := context.WithTimeout(c.stopCtx, c.opts.DialTimeout)
		defer cancel()
		conn, err := c.dial(ctx)
		if err != nil {
			log.Debug().Err(err).Int("attempt", attempt).Msg("realtime redial failed")
			return err
		}
		if !c.install(conn) {
			_ = conn.Close()
			return backoff.Permanent(errStopped)
		}
		return nil
	}, backoff.WithContext(policy, c.stopCtx))
	if err != nil {
		return
	}

	observability.IncReconnect()
	log.Info().Int("attempts", attempt).Msg("realtime reconnected")
	_ = observability.PublishEvent(c.stopCtx, observability.RouteReconnect, "ws_reconnect", map[string]interface{}{
		"attempts": attempt,
		"url":      c.opts.URL,
	}, nil)

	c.mu.Lock()
	hooks := make([]func(context.Context), len(c.hooks))
	copy(hooks, c.hooks)
	c.mu.Unlock()
	for _, hook := range hooks {
		hook(c.stopCtx)
	}
}

// Stop closes the connection with a normal-closure frame and stops
// reconnecting. Safe to call more than once.
func (c *Client) Stop() {
	c.stopOnce.Do(func() {
		c.mu.Lock()
		c.state = StateStopped
		conn := c.conn
		c.conn = nil
		c.failPending()
		c.mu.Unlock()

		c.stop()
		if conn != nil {
			c.writeMu.Lock()
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client stopped"),
				time.Now().Add(writeWait))
			c.writeMu.Unlock()
			_ = conn.Close()
		}
		observability.SetConnected(false)
		c.wg.Wait()
		log.Info().Msg("realtime stopped")
	})
}
