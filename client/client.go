// Package client connects to a remote job-execution platform over
// WebSocket. One Client serves two roles for any number of tracked
// runs: it is a poll.StatusSource (request/response status and cancel
// calls) and a notify.Channel (server-pushed run events routed through
// an internal mux).
//
// Usage:
//
//	c, err := client.Dial("wss://platform.example.com/rpc",
//	    client.WithToken("pk_..."),
//	)
//	defer c.Close()
//
//	f, err := future.Track(ctx, c, identity, future.WithChannel(c))
//	status, err := f.Result(ctx)
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/xraph/await/backoff"
	"github.com/xraph/await/notify"
	"github.com/xraph/await/wire"
)

// Client is a platform client multiplexing many trackers over one
// WebSocket connection.
type Client struct {
	url    string
	token  string
	logger *slog.Logger

	// Reconnection.
	reconnect  bool
	maxRetries int
	redial     backoff.Strategy

	// Connection state.
	conn      net.Conn
	mu        sync.Mutex
	closed    atomic.Bool
	sessionID string

	// Request-response correlation.
	pending sync.Map // frameID → chan *wire.Frame

	// Push routing.
	mux *notify.Mux
}

// Dial connects to the platform and authenticates.
func Dial(url string, opts ...Option) (*Client, error) {
	return DialContext(context.Background(), url, opts...)
}

// DialContext connects to the platform with a context.
func DialContext(ctx context.Context, url string, opts ...Option) (*Client, error) {
	c := &Client{
		url:        url,
		logger:     slog.Default(),
		maxRetries: 5,
		redial:     backoff.NewExponentialWithJitter(time.Second, 30*time.Second),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.mux = notify.NewMux(notify.WithMuxLogger(c.logger))

	if err := c.connect(ctx); err != nil {
		return nil, fmt.Errorf("await/client: dial: %w", err)
	}

	go c.readLoop()

	return c, nil
}

// connect establishes the WebSocket connection and sends the auth
// frame. It reads the auth response directly since the readLoop hasn't
// started yet.
func (c *Client) connect(ctx context.Context) error {
	conn, _, _, err := ws.Dial(ctx, c.url)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}
	c.mu.Lock()
	if c.conn != nil {
		// Drop the broken connection being replaced.
		_ = c.conn.Close()
	}
	c.conn = conn
	c.mu.Unlock()

	authFrame, err := wire.NewRequestFrame(wire.GenerateFrameID(), wire.MethodAuth, wire.AuthRequest{
		Token: c.token,
	})
	if err != nil {
		_ = conn.Close()
		return err
	}
	authFrame.Token = c.token

	if writeErr := c.writeFrame(authFrame); writeErr != nil {
		_ = conn.Close()
		return fmt.Errorf("write auth frame: %w", writeErr)
	}

	type readResult struct {
		resp *wire.Frame
		err  error
	}
	resultCh := make(chan readResult, 1)

	go func() {
		data, readErr := wsutil.ReadServerText(conn)
		if readErr != nil {
			resultCh <- readResult{err: fmt.Errorf("read auth response: %w", readErr)}
			return
		}
		var frame wire.Frame
		if unmarshalErr := json.Unmarshal(data, &frame); unmarshalErr != nil {
			resultCh <- readResult{err: fmt.Errorf("unmarshal auth response: %w", unmarshalErr)}
			return
		}
		resultCh <- readResult{resp: &frame}
	}()

	select {
	case result := <-resultCh:
		if result.err != nil {
			_ = conn.Close()
			return result.err
		}
		resp := result.resp
		if resp.Type == wire.FrameErr {
			_ = conn.Close()
			msg := "unknown error"
			if resp.Error != nil {
				msg = resp.Error.Message
			}
			return fmt.Errorf("auth failed: %s", msg)
		}
		var authResp wire.AuthResponse
		if len(resp.Data) > 0 {
			if unmarshalErr := json.Unmarshal(resp.Data, &authResp); unmarshalErr != nil {
				c.logger.Warn("failed to unmarshal auth response", slog.String("error", unmarshalErr.Error()))
			}
		}
		c.sessionID = authResp.SessionID
		c.logger.Info("platform client connected",
			slog.String("session_id", c.sessionID),
		)
		return nil
	case <-ctx.Done():
		_ = conn.Close()
		return ctx.Err()
	case <-time.After(10 * time.Second):
		_ = conn.Close()
		return fmt.Errorf("auth timeout")
	}
}

// readLoop reads frames from the WebSocket and dispatches them.
func (c *Client) readLoop() {
	for {
		if c.closed.Load() {
			return
		}

		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()

		data, err := wsutil.ReadServerText(conn)
		if err != nil {
			if c.closed.Load() {
				return
			}
			c.logger.Warn("platform client read error", slog.String("error", err.Error()))
			if c.reconnect {
				c.tryReconnect()
			} else {
				c.mux.MarkDisconnected()
			}
			return
		}

		var frame wire.Frame
		if unmarshalErr := json.Unmarshal(data, &frame); unmarshalErr != nil {
			c.logger.Warn("platform client: invalid frame", slog.String("error", unmarshalErr.Error()))
			continue
		}

		switch frame.Type {
		case wire.FrameResponse, wire.FrameErr:
			// Correlate with pending request.
			if val, ok := c.pending.Load(frame.CorrelID); ok {
				ch := val.(chan *wire.Frame) //nolint:errcheck // pending map always stores chan *wire.Frame
				select {
				case ch <- &frame:
				default:
				}
			}
		case wire.FrameEvent:
			c.routeEvent(&frame)
		case wire.FramePong:
			// Ignore pong frames.
		}
	}
}

// routeEvent turns a server push into a wakeup for the trackers
// watching that run. The event's state claim is advisory only; the
// poll confirms it.
func (c *Client) routeEvent(frame *wire.Frame) {
	id, ok := wire.ParseRunChannel(frame.Channel)
	if !ok {
		c.logger.Warn("platform client: event on unknown channel",
			slog.String("channel", frame.Channel),
		)
		return
	}
	ev := notify.Event{Identity: id, At: frame.Timestamp}
	if len(frame.Data) > 0 {
		var payload wire.RunEvent
		if json.Unmarshal(frame.Data, &payload) == nil {
			ev.State = payload.State
		}
	}
	c.mux.Publish(ev)
}

// tryReconnect attempts to reconnect with backoff, resubscribing every
// watched run channel on success. Trackers fall back to their
// disconnected polling cadence in the meantime.
func (c *Client) tryReconnect() {
	c.mux.MarkDisconnected()

	for i := range c.maxRetries {
		delay := c.redial.Delay(i + 1)
		c.logger.Info("platform client reconnecting",
			slog.Int("attempt", i+1),
			slog.Duration("delay", delay),
		)
		time.Sleep(delay)
		if c.closed.Load() {
			return
		}

		if err := c.connect(context.Background()); err != nil {
			c.logger.Warn("platform client reconnect failed", slog.String("error", err.Error()))
			continue
		}

		go c.readLoop()
		c.resubscribeAll()
		c.mux.MarkConnected()
		c.logger.Info("platform client reconnected")
		return
	}
	c.logger.Error("platform client: max reconnection attempts reached")
}

// resubscribeAll re-registers interest in every run the mux still has
// subscribers for.
func (c *Client) resubscribeAll() {
	for _, id := range c.mux.Identities() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_, err := c.request(ctx, wire.MethodSubscribe, wire.SubscribeRequest{
			Channel: wire.RunChannel(id),
		})
		cancel()
		if err != nil {
			c.logger.Warn("resubscribe failed",
				slog.String("run", id.String()),
				slog.String("error", err.Error()),
			)
		}
	}
}

// request sends a request frame and waits for the correlated response.
// Protocol errors come back as *wire.Error.
func (c *Client) request(ctx context.Context, method string, data any) (*wire.Frame, error) {
	frame, err := wire.NewRequestFrame(wire.GenerateFrameID(), method, data)
	if err != nil {
		return nil, err
	}

	respCh := make(chan *wire.Frame, 1)
	c.pending.Store(frame.ID, respCh)
	defer c.pending.Delete(frame.ID)

	if err := c.writeFrame(frame); err != nil {
		return nil, err
	}

	select {
	case resp := <-respCh:
		if resp.Type == wire.FrameErr {
			if err := resp.Error.Err(); err != nil {
				return nil, err
			}
			return nil, &wire.Error{Code: wire.ErrCodeInternal, Message: "unknown error"}
		}
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// writeFrame JSON-encodes and sends a frame over the WebSocket.
func (c *Client) writeFrame(frame *wire.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	return wsutil.WriteClientText(c.conn, data)
}

// SessionID returns the session ID assigned by the platform.
func (c *Client) SessionID() string { return c.sessionID }

// Connected reports whether the push side of the client is believed
// healthy.
func (c *Client) Connected() bool { return c.mux.Connected() }

// Close closes the client connection and drops all subscriptions.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil // already closed
	}

	c.mux.Close()

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn != nil {
		return conn.Close()
	}
	return nil
}
