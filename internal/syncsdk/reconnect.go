package syncsdk

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"
)

// ConnState tracks the transport connection, independently of the job
// phase: a job can still be processing files while the connection is
// disconnected and retrying.
type ConnState string

const (
	ConnStateConnecting   ConnState = "connecting"
	ConnStateConnected    ConnState = "connected"
	ConnStateDisconnected ConnState = "disconnected"
)

// ReconnectConfig bounds the retry behavior after an abnormal closure.
// The bound and the jitter are configuration, not constants.
type ReconnectConfig struct {
	// MaxAttempts is the number of reconnects tried before giving up.
	MaxAttempts int
	// BaseDelay seeds the exponential backoff: BaseDelay * 2^attempt.
	BaseDelay time.Duration
	// MaxDelay caps a single backoff delay; 0 means uncapped.
	MaxDelay time.Duration
	// Jitter spreads each delay by ±Jitter/2 of itself; 0 disables it.
	Jitter float64
	// DialTimeout bounds each reconnect's transport open.
	DialTimeout time.Duration
}

const (
	defaultMaxAttempts = 5
	defaultBaseDelay   = 1 * time.Second
	defaultDialTimeout = 10 * time.Second
)

func (c ReconnectConfig) withDefaults() ReconnectConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = defaultBaseDelay
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = defaultDialTimeout
	}
	return c
}

// Delay computes the backoff before reconnect attempt number `attempt`,
// counted from zero.
func (c ReconnectConfig) Delay(attempt int) time.Duration {
	d := c.BaseDelay << uint(attempt)
	if c.MaxDelay > 0 && d > c.MaxDelay {
		d = c.MaxDelay
	}
	if c.Jitter > 0 {
		f := 1 + c.Jitter*(rand.Float64()-0.5)
		d = time.Duration(float64(d) * f)
	}
	return d
}

// Reconnector owns one transport's lifecycle: connect, watch for
// failure, retry with backoff, give up after the bound. Frames, state
// changes and errors flow out through the hooks, which must be set
// before Connect.
type Reconnector struct {
	dialer TransportDialer
	creds  CredentialProvider
	cfg    ReconnectConfig

	onFrame func([]byte)
	onState func(ConnState)
	onError func(*StreamError)

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	state      ConnState
	attempts   int
	transport  Transport
	retryTimer *time.Timer
	closed     bool
	exhausted  bool
}

func NewReconnector(dialer TransportDialer, creds CredentialProvider, cfg ReconnectConfig) *Reconnector {
	ctx, cancel := context.WithCancel(context.Background())
	return &Reconnector{
		dialer: dialer,
		creds:  creds,
		cfg:    cfg.withDefaults(),
		state:  ConnStateDisconnected,
		ctx:    ctx,
		cancel: cancel,
	}
}

func (r *Reconnector) OnFrame(fn func([]byte))       { r.onFrame = fn }
func (r *Reconnector) OnState(fn func(ConnState))    { r.onState = fn }
func (r *Reconnector) OnError(fn func(*StreamError)) { r.onError = fn }

// State returns the current connection state.
func (r *Reconnector) State() ConnState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Attempts returns the reconnect attempts consumed since the last
// successful open.
func (r *Reconnector) Attempts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempts
}

// Connect opens the transport. Idempotent: a connect while connected or
// already connecting changes nothing. A missing credential fails with
// an authentication error before any transport is dialed.
func (r *Reconnector) Connect(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClientClosed
	}
	if r.state == ConnStateConnected || r.state == ConnStateConnecting {
		r.mu.Unlock()
		return nil
	}
	r.state = ConnStateConnecting
	r.mu.Unlock()

	r.emitState(ConnStateConnecting)
	return r.dial(ctx)
}

// dial performs one connect attempt: credential read, transport open,
// watcher start. Dial failures count as abnormal closures and feed the
// retry schedule.
func (r *Reconnector) dial(ctx context.Context) error {
	token, err := r.creds.Token(ctx)
	if err != nil || token == "" {
		r.setState(ConnStateDisconnected)
		authErr := newStreamError(ErrKindAuth, "no credential available", err)
		r.emitError(authErr)
		return authErr
	}

	t, err := r.dialer.Dial(ctx, token)
	if err != nil {
		r.setState(ConnStateDisconnected)
		dialErr := newStreamError(ErrKindTransport, "transport open failed", err)
		r.emitError(dialErr)
		r.scheduleRetry()
		return dialErr
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		t.Close()
		return ErrClientClosed
	}
	r.transport = t
	r.attempts = 0
	r.exhausted = false
	r.state = ConnStateConnected
	r.mu.Unlock()

	r.emitState(ConnStateConnected)
	go r.watch(t)
	return nil
}

// watch drains one transport until it stops, then decides retry vs
// give-up. Frames are always delivered before the close status so the
// final snapshot of a job is never dropped.
func (r *Reconnector) watch(t Transport) {
	for frame := range t.Frames() {
		r.emitFrame(frame)
	}

	status, ok := <-t.Closed()
	if !ok {
		status = CloseStatus{Code: CloseCodeNormal}
	}

	r.mu.Lock()
	if r.transport == t {
		r.transport = nil
	}
	wasClosed := r.closed
	r.state = ConnStateDisconnected
	r.mu.Unlock()

	if wasClosed {
		return
	}

	r.emitState(ConnStateDisconnected)

	if status.Normal() {
		slog.Debug("stream closed", "code", status.Code, "reason", status.Reason)
		return
	}

	r.emitError(newStreamError(ErrKindTransport, status.Reason, status.Err))
	r.scheduleRetry()
}

func (r *Reconnector) scheduleRetry() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}

	if r.attempts >= r.cfg.MaxAttempts {
		alreadyReported := r.exhausted
		r.exhausted = true
		r.mu.Unlock()

		if !alreadyReported {
			r.emitError(newStreamError(ErrKindReconnectExhausted, "reconnect attempts exhausted", nil))
		}
		return
	}

	attempt := r.attempts
	r.attempts++
	delay := r.cfg.Delay(attempt)

	r.retryTimer = time.AfterFunc(delay, func() {
		r.mu.Lock()
		if r.closed {
			r.mu.Unlock()
			return
		}
		r.state = ConnStateConnecting
		r.mu.Unlock()

		r.emitState(ConnStateConnecting)

		ctx, cancel := context.WithTimeout(r.ctx, r.cfg.DialTimeout)
		defer cancel()
		_ = r.dial(ctx)
	})
	r.mu.Unlock()

	slog.Debug("stream reconnect scheduled", "attempt", attempt+1, "delay", delay)
}

// Ping forwards a keepalive to the live transport. Harmless when
// disconnected.
func (r *Reconnector) Ping(ctx context.Context) error {
	r.mu.Lock()
	t := r.transport
	connected := r.state == ConnStateConnected
	r.mu.Unlock()

	if !connected || t == nil {
		return ErrNotConnected
	}
	return t.Ping(ctx)
}

// Close tears the controller down intentionally: the retry timer is
// cancelled, the transport closes normally, and no further callbacks
// are delivered. A closed Reconnector stays inert; manual retry means
// constructing a fresh one.
func (r *Reconnector) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	if r.retryTimer != nil {
		r.retryTimer.Stop()
		r.retryTimer = nil
	}
	t := r.transport
	r.transport = nil
	r.state = ConnStateDisconnected
	r.mu.Unlock()

	r.cancel()
	if t != nil {
		t.Close()
	}
}

func (r *Reconnector) setState(s ConnState) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
	r.emitState(s)
}

func (r *Reconnector) emitFrame(frame []byte) {
	r.mu.Lock()
	fn := r.onFrame
	suppressed := r.closed
	r.mu.Unlock()

	if suppressed || fn == nil {
		return
	}
	fn(frame)
}

func (r *Reconnector) emitState(s ConnState) {
	r.mu.Lock()
	fn := r.onState
	suppressed := r.closed
	r.mu.Unlock()

	if suppressed || fn == nil {
		return
	}
	fn(s)
}

func (r *Reconnector) emitError(err *StreamError) {
	r.mu.Lock()
	fn := r.onError
	suppressed := r.closed
	r.mu.Unlock()

	if suppressed || fn == nil {
		return
	}
	fn(err)
}
