package channel

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/example/inspection-dispatch/internal/models"
	"github.com/example/inspection-dispatch/internal/observability"
)

// State of the reconnect machine. The progression is
// disconnected -> connecting -> connected -> backoff -> connecting, with
// failed as the terminal state after retry exhaustion. failed clears only
// when Connect is called again with a session (re-login).
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateBackoff
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateBackoff:
		return "backoff"
	case StateFailed:
		return "failed"
	default:
		return "disconnected"
	}
}

const (
	maxReconnectAttempts = 5
	reconnectDelay       = time.Second
)

// Dialer abstracts websocket dialing so tests can intercept it.
type Dialer func(url string) (*websocket.Conn, error)

func defaultDialer(url string) (*websocket.Conn, error) {
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	return c, err
}

// Conn owns one duplex event channel per authenticated session. Publish is
// best-effort, at-most-once: anything written while not connected is
// dropped, never queued.
type Conn struct {
	url        string
	logger     *slog.Logger
	dial       Dialer
	retryDelay time.Duration

	mu      sync.Mutex
	state   State
	session *models.Session
	ws      *websocket.Conn
	gen     int
	subs    map[string]map[int]func(models.Event)
	nextSub int

	writeMu sync.Mutex
}

func New(url string, logger *slog.Logger) *Conn {
	return &Conn{
		url:        url,
		logger:     logger,
		dial:       defaultDialer,
		retryDelay: reconnectDelay,
		subs:       make(map[string]map[int]func(models.Event)),
	}
}

// SetDialer replaces the websocket dialer. Test hook.
func (c *Conn) SetDialer(d Dialer) { c.dial = d }

// SetRetryDelay shortens the reconnect spacing. Test hook.
func (c *Conn) SetRetryDelay(d time.Duration) {
	if d > 0 {
		c.retryDelay = d
	}
}

// Connect establishes the channel for the given session. A nil session is
// silently ignored: no handle, no error. An existing channel (any state) is
// torn down first, so a session change always starts from a fresh connect
// with a reset retry budget.
func (c *Conn) Connect(session *models.Session) {
	if session == nil {
		return
	}
	c.teardown()

	c.mu.Lock()
	c.session = session
	c.state = StateConnecting
	gen := c.gen
	c.mu.Unlock()

	if !c.dialOnce(gen) {
		c.retryLoop(gen)
	}
}

// Disconnect tears the channel down immediately and unconditionally.
// Subscriptions survive; they resume on the next Connect.
func (c *Conn) Disconnect() {
	c.teardown()
}

func (c *Conn) teardown() {
	c.mu.Lock()
	c.gen++
	c.session = nil
	c.state = StateDisconnected
	ws := c.ws
	c.ws = nil
	c.mu.Unlock()
	if ws != nil {
		_ = ws.Close()
	}
}

// State reports the reconnect machine's current state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connected reports whether publishes would currently be delivered.
func (c *Conn) Connected() bool { return c.State() == StateConnected }

// Session returns the session the channel is keyed by, nil when torn down.
func (c *Conn) Session() *models.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// dialOnce attempts a single dial for generation gen. On success it joins
// the addressing rooms and starts the read loop.
func (c *Conn) dialOnce(gen int) bool {
	c.mu.Lock()
	if c.gen != gen || c.session == nil {
		c.mu.Unlock()
		return true // superseded; stop trying
	}
	session := *c.session
	url := c.url + "?token=" + session.AuthToken
	c.mu.Unlock()

	ws, err := c.dial(url)
	if err != nil {
		c.logger.Warn("channel dial failed", "error", err)
		return false
	}

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		_ = ws.Close()
		return true
	}
	c.ws = ws
	c.state = StateConnected
	c.mu.Unlock()

	observability.ChannelConnects.Inc()
	c.logger.Info("channel connected", "user_id", session.UserID, "role", string(session.Role))

	c.Publish(models.EventJoinUserRoom, models.JoinRoom{UserID: session.UserID})
	if session.Role == models.RoleDriver {
		c.Publish(models.EventJoinDriverRoom, models.JoinRoom{UserID: session.UserID})
	}

	go c.readLoop(gen, ws)
	return true
}

// retryLoop runs the bounded backoff: fixed 1s spacing, 5 attempts, then
// the failed state. Failure is silent by contract; it surfaces only as
// "not connected".
func (c *Conn) retryLoop(gen int) {
	go func() {
		for attempt := 1; attempt <= maxReconnectAttempts; attempt++ {
			c.mu.Lock()
			if c.gen != gen {
				c.mu.Unlock()
				return
			}
			c.state = StateBackoff
			c.mu.Unlock()

			time.Sleep(c.retryDelay)

			c.mu.Lock()
			if c.gen != gen {
				c.mu.Unlock()
				return
			}
			c.state = StateConnecting
			c.mu.Unlock()

			observability.ChannelReconnects.Inc()
			if c.dialOnce(gen) {
				return
			}
		}
		c.mu.Lock()
		if c.gen == gen {
			c.state = StateFailed
		}
		c.mu.Unlock()
		c.logger.Warn("channel retries exhausted", "attempts", maxReconnectAttempts)
	}()
}

func (c *Conn) readLoop(gen int, ws *websocket.Conn) {
	for {
		var ev models.Event
		if err := ws.ReadJSON(&ev); err != nil {
			c.mu.Lock()
			stale := c.gen != gen
			if !stale {
				c.ws = nil
				c.state = StateDisconnected
			}
			c.mu.Unlock()
			_ = ws.Close()
			if stale {
				return
			}
			c.logger.Warn("channel read failed, reconnecting", "error", err)
			c.retryLoop(gen)
			return
		}
		c.dispatch(ev)
	}
}

func (c *Conn) dispatch(ev models.Event) {
	c.mu.Lock()
	listeners := make([]func(models.Event), 0, len(c.subs[ev.Name]))
	for _, fn := range c.subs[ev.Name] {
		listeners = append(listeners, fn)
	}
	c.mu.Unlock()
	for _, fn := range listeners {
		fn(ev)
	}
}

// Publish sends an event, best effort. Dropped without error when the
// channel is not currently connected; there is no delivery confirmation.
func (c *Conn) Publish(name string, payload any) {
	c.mu.Lock()
	ws := c.ws
	connected := c.state == StateConnected
	c.mu.Unlock()
	if !connected || ws == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		c.logger.Error("channel publish marshal failed", "event", name, "error", err)
		return
	}
	c.writeMu.Lock()
	err = ws.WriteJSON(models.Event{Name: name, Data: data})
	c.writeMu.Unlock()
	if err != nil {
		c.logger.Warn("channel publish failed", "event", name, "error", err)
		return
	}
	observability.EventsPublished.WithLabelValues(name).Inc()
}

// Subscribe registers a listener for an event name and returns its
// disposer. The disposer is safe to call more than once.
func (c *Conn) Subscribe(name string, fn func(models.Event)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.subs[name] == nil {
		c.subs[name] = make(map[int]func(models.Event))
	}
	id := c.nextSub
	c.nextSub++
	c.subs[name][id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs[name], id)
	}
}
