package stream

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/claimgraph/internal/telemetry"
)

// State of the channel's connection state machine
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateOpen
	StateReconnectScheduled
	StateGivenUp
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateReconnectScheduled:
		return "reconnect-scheduled"
	case StateGivenUp:
		return "given-up"
	default:
		return "unknown"
	}
}

const (
	DefaultMaxAttempts = 5
	DefaultBaseDelay   = time.Second
)

var pingMessage = []byte(`{"type":"ping"}`)

// Handler receives decoded events in arrival order
type Handler func(Event)

type timer interface {
	Stop() bool
}

type subscriber struct {
	id uint64
	fn Handler
}

// Channel keeps a connection to the event endpoint open, reconnecting with
// exponential backoff, and fans decoded events out to subscribers.
type Channel struct {
	transport    Transport
	endpoint     string
	logger       *slog.Logger
	metrics      *telemetry.Metrics
	maxAttempts  int
	baseDelay    time.Duration
	pingInterval time.Duration
	onState      func(State)
	afterFunc    func(time.Duration, func()) timer

	mu         sync.Mutex
	state      State
	conn       Conn
	gen        uint64 // Bumped whenever the current connection or timer is abandoned
	attempt    int
	wantOpen   bool
	timer      timer
	cancelConn context.CancelFunc
	session    string
	pending    []State

	emitMu sync.Mutex

	subMu   sync.RWMutex
	subs    []subscriber
	nextSub uint64

	seq atomic.Uint64
}

// Option configures a Channel
type Option func(*Channel)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Channel) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithMetrics(m *telemetry.Metrics) Option {
	return func(c *Channel) { c.metrics = m }
}

// WithBackoff overrides the attempt limit and the first reconnect delay
func WithBackoff(maxAttempts int, base time.Duration) Option {
	return func(c *Channel) {
		if maxAttempts > 0 {
			c.maxAttempts = maxAttempts
		}
		if base > 0 {
			c.baseDelay = base
		}
	}
}

// WithPingInterval sends a keep-alive ping while open. Zero disables it.
func WithPingInterval(d time.Duration) Option {
	return func(c *Channel) { c.pingInterval = d }
}

// WithStateListener is called on every state transition, in order
func WithStateListener(fn func(State)) Option {
	return func(c *Channel) { c.onState = fn }
}

// NewChannel creates a disconnected channel
func NewChannel(transport Transport, endpoint string, opts ...Option) *Channel {
	c := &Channel{
		transport:   transport,
		endpoint:    endpoint,
		logger:      slog.Default(),
		maxAttempts: DefaultMaxAttempts,
		baseDelay:   DefaultBaseDelay,
		afterFunc: func(d time.Duration, f func()) timer {
			return time.AfterFunc(d, f)
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BackoffDelay is the wait before reconnect attempt n (1-based)
func BackoffDelay(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return base << (attempt - 1)
}

// State returns the current connection state
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect starts connecting. It is a no-op while connecting, open or
// waiting to reconnect. After the channel gave up, Connect starts over
// with a fresh attempt budget.
func (c *Channel) Connect() {
	c.mu.Lock()
	defer c.unlock()

	c.wantOpen = true
	switch c.state {
	case StateConnecting, StateOpen, StateReconnectScheduled:
		return
	case StateGivenUp:
		c.attempt = 0
	}
	c.dialLocked()
}

// Disconnect closes the connection and cancels any pending reconnect
func (c *Channel) Disconnect() {
	c.mu.Lock()
	defer c.unlock()

	c.wantOpen = false
	c.gen++
	c.attempt = 0
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.dropConnLocked()
	c.setStateLocked(StateDisconnected)
}

// Send writes a raw message. Not being connected is logged, never an error.
func (c *Channel) Send(data []byte) {
	c.mu.Lock()
	conn, state, session := c.conn, c.state, c.session
	c.mu.Unlock()

	if state != StateOpen || conn == nil {
		c.logger.Warn("stream send while not connected", "state", state.String())
		return
	}
	if err := conn.Write(data); err != nil {
		c.logger.Warn("stream send failed", "session", session, "error", err)
	}
}

// Ping sends a keep-alive message
func (c *Channel) Ping() {
	c.Send(pingMessage)
}

// Subscribe registers a handler. The returned func removes it and is safe
// to call more than once.
func (c *Channel) Subscribe(fn Handler) (unsubscribe func()) {
	c.subMu.Lock()
	c.nextSub++
	id := c.nextSub
	c.subs = append(c.subs, subscriber{id: id, fn: fn})
	c.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.subMu.Lock()
			defer c.subMu.Unlock()
			for i, s := range c.subs {
				if s.id == id {
					c.subs = append(c.subs[:i:i], c.subs[i+1:]...)
					return
				}
			}
		})
	}
}

func (c *Channel) dialLocked() {
	c.gen++
	gen := c.gen
	ctx, cancel := context.WithCancel(context.Background())
	c.cancelConn = cancel
	c.setStateLocked(StateConnecting)
	go c.dial(ctx, gen)
}

func (c *Channel) dial(ctx context.Context, gen uint64) {
	conn, err := c.transport.Dial(ctx, c.endpoint)

	c.mu.Lock()
	if gen != c.gen || !c.wantOpen {
		c.unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	if err != nil {
		c.logger.Debug("stream dial failed", "endpoint", c.endpoint, "attempt", c.attempt, "error", err)
		c.connectionLostLocked()
		c.unlock()
		return
	}

	c.conn = conn
	c.attempt = 0
	c.session = uuid.NewString()[:8]
	session := c.session
	c.setStateLocked(StateOpen)
	c.unlock()

	c.logger.Info("stream connected", "endpoint", c.endpoint, "session", session)
	if c.pingInterval > 0 {
		go c.keepAlive(ctx)
	}
	c.readLoop(conn, gen, session)
}

func (c *Channel) readLoop(conn Conn, gen uint64, session string) {
	for {
		raw, err := conn.Read()
		if err != nil {
			c.mu.Lock()
			if gen == c.gen {
				c.logger.Info("stream connection closed", "session", session, "error", err)
				c.connectionLostLocked()
			}
			c.unlock()
			return
		}

		ev, err := Decode(raw)
		if err != nil {
			c.logger.Warn("dropping stream message", "session", session, "bytes", len(raw), "error", err)
			c.metrics.MessageMalformed()
			continue
		}
		ev.Seq = c.seq.Add(1)
		c.metrics.MessageReceived(ev.Type)
		c.dispatch(ev)
	}
}

func (c *Channel) dispatch(ev Event) {
	c.subMu.RLock()
	subs := make([]subscriber, len(c.subs))
	copy(subs, c.subs)
	c.subMu.RUnlock()

	for _, s := range subs {
		c.deliver(s, ev)
	}
}

func (c *Channel) deliver(s subscriber, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("stream handler panicked", "subscriber", s.id, "type", ev.Type, "panic", r)
			c.metrics.HandlerPanicked()
		}
	}()
	s.fn(ev)
}

// connectionLostLocked runs the close/error transition
func (c *Channel) connectionLostLocked() {
	c.dropConnLocked()
	if !c.wantOpen {
		c.setStateLocked(StateDisconnected)
		return
	}
	if c.attempt >= c.maxAttempts {
		c.logger.Warn("stream gave up reconnecting", "endpoint", c.endpoint, "attempts", c.attempt)
		c.setStateLocked(StateGivenUp)
		return
	}

	c.attempt++
	delay := BackoffDelay(c.baseDelay, c.attempt)
	c.gen++
	gen := c.gen
	c.timer = c.afterFunc(delay, func() { c.reconnect(gen) })
	c.metrics.ReconnectScheduled()
	c.logger.Info("stream reconnect scheduled", "attempt", c.attempt, "max", c.maxAttempts, "delay", delay)
	c.setStateLocked(StateReconnectScheduled)
}

func (c *Channel) reconnect(gen uint64) {
	c.mu.Lock()
	defer c.unlock()

	if gen != c.gen || c.state != StateReconnectScheduled || !c.wantOpen {
		return
	}
	c.timer = nil
	c.dialLocked()
}

func (c *Channel) dropConnLocked() {
	if c.cancelConn != nil {
		c.cancelConn()
		c.cancelConn = nil
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.session = ""
}

func (c *Channel) keepAlive(ctx context.Context) {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Ping()
		}
	}
}

func (c *Channel) setStateLocked(s State) {
	if c.state == s {
		return
	}
	c.state = s
	c.metrics.ChannelState(int(s))
	if c.onState != nil {
		c.pending = append(c.pending, s)
	}
}

// unlock releases mu and delivers queued state transitions outside the lock
func (c *Channel) unlock() {
	c.mu.Unlock()
	if c.onState == nil {
		return
	}

	c.emitMu.Lock()
	defer c.emitMu.Unlock()
	c.mu.Lock()
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()
	for _, s := range pending {
		c.onState(s)
	}
}
