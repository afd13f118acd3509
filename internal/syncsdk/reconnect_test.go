package syncsdk

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	frames    chan []byte
	closed    chan CloseStatus
	closeOnce sync.Once
	pings     atomic.Int32
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		frames: make(chan []byte, 16),
		closed: make(chan CloseStatus, 1),
	}
}

func (t *fakeTransport) Frames() <-chan []byte       { return t.frames }
func (t *fakeTransport) Closed() <-chan CloseStatus  { return t.closed }
func (t *fakeTransport) Ping(_ context.Context) error {
	t.pings.Add(1)
	return nil
}

func (t *fakeTransport) Close() error {
	t.shutdown(CloseStatus{Code: CloseCodeNormal, Reason: "client disconnect"})
	return nil
}

func (t *fakeTransport) shutdown(status CloseStatus) {
	t.closeOnce.Do(func() {
		close(t.frames)
		t.closed <- status
		close(t.closed)
	})
}

func (t *fakeTransport) emit(frame []byte) {
	t.frames <- frame
}

func (t *fakeTransport) fail() {
	t.shutdown(CloseStatus{Code: CloseCodeAbnormal, Reason: "connection lost", Err: errors.New("boom")})
}

type fakeDialer struct {
	mu         sync.Mutex
	dialErr    error
	dials      int
	tokens     []string
	transports []*fakeTransport
}

func (d *fakeDialer) Dial(_ context.Context, token string) (Transport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.dials++
	d.tokens = append(d.tokens, token)
	if d.dialErr != nil {
		return nil, d.dialErr
	}

	t := newFakeTransport()
	d.transports = append(d.transports, t)
	return t, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) transport(i int) *fakeTransport {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i >= len(d.transports) {
		return nil
	}
	return d.transports[i]
}

type errorCollector struct {
	mu   sync.Mutex
	errs []*StreamError
}

func (c *errorCollector) collect(err *StreamError) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs = append(c.errs, err)
}

func (c *errorCollector) kinds() []ErrorKind {
	c.mu.Lock()
	defer c.mu.Unlock()
	kinds := make([]ErrorKind, 0, len(c.errs))
	for _, e := range c.errs {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

func (c *errorCollector) countKind(kind ErrorKind) int {
	n := 0
	for _, k := range c.kinds() {
		if k == kind {
			n++
		}
	}
	return n
}

func fastReconnect() ReconnectConfig {
	return ReconnectConfig{
		MaxAttempts: 5,
		BaseDelay:   5 * time.Millisecond,
		DialTimeout: time.Second,
	}
}

func TestConnectIdempotent(t *testing.T) {
	d := &fakeDialer{}
	rc := NewReconnector(d, StaticToken("tok"), fastReconnect())
	defer rc.Close()

	require.NoError(t, rc.Connect(context.Background()))
	require.NoError(t, rc.Connect(context.Background()))
	require.NoError(t, rc.Connect(context.Background()))

	assert.Equal(t, 1, d.dialCount(), "no new transport while connected")
	assert.Equal(t, ConnStateConnected, rc.State())
	assert.Equal(t, []string{"tok"}, d.tokens)
}

func TestConnectWithoutCredential(t *testing.T) {
	d := &fakeDialer{}
	errs := &errorCollector{}
	rc := NewReconnector(d, StaticToken(""), fastReconnect())
	rc.OnError(errs.collect)
	defer rc.Close()

	err := rc.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, IsAuthError(err))

	assert.Equal(t, 0, d.dialCount(), "no transport constructed")
	assert.Equal(t, ConnStateDisconnected, rc.State())
	assert.Equal(t, 1, errs.countKind(ErrKindAuth))

	// auth failures are not retried
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, d.dialCount())
}

func TestBackoffDelaySchedule(t *testing.T) {
	cfg := ReconnectConfig{BaseDelay: time.Second}
	for k, want := range []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
	} {
		assert.Equal(t, want, cfg.Delay(k), "attempt %d", k)
	}
}

func TestBackoffDelayCap(t *testing.T) {
	cfg := ReconnectConfig{BaseDelay: time.Second, MaxDelay: 5 * time.Second}
	assert.Equal(t, 4*time.Second, cfg.Delay(2))
	assert.Equal(t, 5*time.Second, cfg.Delay(3))
	assert.Equal(t, 5*time.Second, cfg.Delay(10))
}

func TestBackoffDelayJitter(t *testing.T) {
	cfg := ReconnectConfig{BaseDelay: time.Second, Jitter: 0.5}
	for range 50 {
		d := cfg.Delay(0)
		assert.GreaterOrEqual(t, d, 750*time.Millisecond)
		assert.LessOrEqual(t, d, 1250*time.Millisecond)
	}
}

func TestRetryBoundExhausted(t *testing.T) {
	d := &fakeDialer{dialErr: errors.New("connection refused")}
	errs := &errorCollector{}
	rc := NewReconnector(d, StaticToken("tok"), fastReconnect())
	rc.OnError(errs.collect)
	defer rc.Close()

	err := rc.Connect(context.Background())
	require.Error(t, err)

	// 1 initial + 5 reconnects, then nothing
	require.Eventually(t, func() bool {
		return d.dialCount() == 6 && errs.countKind(ErrKindReconnectExhausted) == 1
	}, 2*time.Second, 10*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 6, d.dialCount(), "no dial past the bound")
	assert.Equal(t, 1, errs.countKind(ErrKindReconnectExhausted), "exhaustion reported once")
	assert.Equal(t, ConnStateDisconnected, rc.State())
}

func TestAbnormalCloseSchedulesOneReconnect(t *testing.T) {
	d := &fakeDialer{}
	errs := &errorCollector{}
	cfg := fastReconnect()
	cfg.BaseDelay = 150 * time.Millisecond
	rc := NewReconnector(d, StaticToken("tok"), cfg)
	rc.OnError(errs.collect)
	defer rc.Close()

	require.NoError(t, rc.Connect(context.Background()))
	d.transport(0).fail()

	// attempt counter moves to 1 before the timer fires
	require.Eventually(t, func() bool {
		return rc.Attempts() == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, d.dialCount(), "reconnect waits out the backoff")

	// after the delay the dial happens and the counter resets on open
	require.Eventually(t, func() bool {
		return d.dialCount() == 2 && rc.State() == ConnStateConnected
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, rc.Attempts())
	assert.GreaterOrEqual(t, errs.countKind(ErrKindTransport), 1)
}

func TestNormalCloseNeverReconnects(t *testing.T) {
	d := &fakeDialer{}
	rc := NewReconnector(d, StaticToken("tok"), fastReconnect())
	defer rc.Close()

	require.NoError(t, rc.Connect(context.Background()))
	d.transport(0).shutdown(CloseStatus{Code: CloseCodeNormal, Reason: "server done"})

	require.Eventually(t, func() bool {
		return rc.State() == ConnStateDisconnected
	}, time.Second, 5*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, d.dialCount())
}

func TestCloseCancelsPendingReconnect(t *testing.T) {
	d := &fakeDialer{dialErr: errors.New("connection refused")}
	cfg := fastReconnect()
	cfg.BaseDelay = 100 * time.Millisecond
	rc := NewReconnector(d, StaticToken("tok"), cfg)

	_ = rc.Connect(context.Background())
	require.Equal(t, 1, d.dialCount())

	rc.Close()
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, 1, d.dialCount(), "pending retry timer cancelled")

	assert.ErrorIs(t, rc.Connect(context.Background()), ErrClientClosed)
}

func TestFramesForwardedInOrder(t *testing.T) {
	d := &fakeDialer{}
	rc := NewReconnector(d, StaticToken("tok"), fastReconnect())
	defer rc.Close()

	var mu sync.Mutex
	var got []string
	rc.OnFrame(func(b []byte) {
		mu.Lock()
		got = append(got, string(b))
		mu.Unlock()
	})

	require.NoError(t, rc.Connect(context.Background()))

	tr := d.transport(0)
	tr.emit([]byte("one"))
	tr.emit([]byte("two"))
	tr.emit([]byte("three"))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 3
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	assert.Equal(t, []string{"one", "two", "three"}, got)
	mu.Unlock()
}

func TestFinalFrameSurvivesTeardownRace(t *testing.T) {
	d := &fakeDialer{}
	rc := NewReconnector(d, StaticToken("tok"), fastReconnect())
	defer rc.Close()

	var frames atomic.Int32
	rc.OnFrame(func([]byte) { frames.Add(1) })

	require.NoError(t, rc.Connect(context.Background()))

	// last message races channel teardown; it must still be delivered
	tr := d.transport(0)
	tr.emit([]byte(`{"type":"progress","data":{"sourceId":"s","phase":"completed"}}`))
	tr.shutdown(CloseStatus{Code: CloseCodeNormal, Reason: "job finished"})

	require.Eventually(t, func() bool {
		return frames.Load() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestPingWhileDisconnected(t *testing.T) {
	d := &fakeDialer{}
	rc := NewReconnector(d, StaticToken("tok"), fastReconnect())
	defer rc.Close()

	assert.ErrorIs(t, rc.Ping(context.Background()), ErrNotConnected)
}
