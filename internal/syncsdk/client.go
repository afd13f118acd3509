package syncsdk

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/docboxhq/docbox/internal/progress"
	"github.com/docboxhq/docbox/internal/syncmsg"
)

const keepaliveTimeout = 5 * time.Second

// ProgressClient observes one sync job's live progress. A UI panel
// constructs one per job, registers its callbacks, then calls Connect.
// Construction opens nothing; Disconnect must be called to release the
// transport and any pending reconnect timer.
//
// Callbacks fire on the goroutine that delivered the transport event,
// in arrival order, with no buffering or replay: a late subscriber only
// sees snapshots emitted after registration. Clients are independent;
// nothing is shared between two ProgressClient instances.
type ProgressClient struct {
	sourceID string
	rc       *Reconnector
	stats    *streamStats

	mu         sync.RWMutex
	onSnapshot []func(*progress.Snapshot)
	onState    []func(ConnState)
	onError    []func(*StreamError)
}

// NewProgressClient wires a client around a transport dialer and a
// credential provider. Most callers go through SDK.Progress instead.
func NewProgressClient(sourceID string, dialer TransportDialer, creds CredentialProvider, cfg ReconnectConfig) *ProgressClient {
	c := &ProgressClient{
		sourceID: sourceID,
		stats:    newStreamStats(),
	}

	rc := NewReconnector(dialer, creds, cfg)
	rc.OnFrame(c.handleFrame)
	rc.OnState(c.handleState)
	rc.OnError(c.handleError)
	c.rc = rc

	return c
}

// SourceID returns the job this client observes.
func (c *ProgressClient) SourceID() string {
	return c.sourceID
}

// Connect starts the stream. Idempotent while connected or connecting.
func (c *ProgressClient) Connect(ctx context.Context) error {
	return c.rc.Connect(ctx)
}

// Disconnect closes the stream intentionally: no reconnect is
// attempted, the backoff timer is cancelled, and no callbacks fire
// afterwards even if frames are still in flight.
func (c *ProgressClient) Disconnect() {
	c.rc.Close()
}

// State returns the current connection state.
func (c *ProgressClient) State() ConnState {
	return c.rc.State()
}

// OnSnapshot registers a callback for every decoded progress snapshot.
func (c *ProgressClient) OnSnapshot(fn func(*progress.Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onSnapshot = append(c.onSnapshot, fn)
}

// OnConnectionState registers a callback for connection state changes.
func (c *ProgressClient) OnConnectionState(fn func(ConnState)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onState = append(c.onState, fn)
}

// OnError registers a callback for all error kinds; the Kind field
// tells transient problems apart from terminal ones.
func (c *ProgressClient) OnError(fn func(*StreamError)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = append(c.onError, fn)
}

// SendKeepalive forwards a ping to the duplex transport when connected
// and does nothing otherwise. It never fails the caller; a dead
// connection surfaces through the close path instead.
func (c *ProgressClient) SendKeepalive() {
	ctx, cancel := context.WithTimeout(context.Background(), keepaliveTimeout)
	defer cancel()

	if err := c.rc.Ping(ctx); err != nil {
		slog.Debug("keepalive skipped", "source", c.sourceID, "error", err)
	}
}

// Stats returns a point-in-time view of stream telemetry.
func (c *ProgressClient) Stats() StreamStatsSnapshot {
	return StreamStatsSnapshot{
		State:            c.rc.State(),
		ReconnectAttempt: c.rc.Attempts(),
		Reconnects:       c.stats.reconnects.Load(),
		FramesRecvTotal:  c.stats.framesRecv.Load(),
		BytesRecvTotal:   c.stats.bytesRecv.Load(),
		Snapshots:        c.stats.snapshots.Load(),
		Heartbeats:       c.stats.heartbeats.Load(),
		DecodeErrors:     c.stats.decodeErrors.Load(),
		ConnectedAtNs:    c.stats.connectedAtNs.Load(),
		DisconnectedAtNs: c.stats.disconnAtNs.Load(),
		LastRecvAtNs:     c.stats.lastRecvNs.Load(),
		LastHeartbeatNs:  c.stats.lastHeartbeatNs.Load(),
		LastError:        c.stats.lastErrorValue.Load().(string),
	}
}

func (c *ProgressClient) handleFrame(frame []byte) {
	c.stats.onRecv(len(frame))

	msg, err := syncmsg.Decode(frame)
	if err != nil {
		c.stats.onDecodeError()
		c.emitError(newStreamError(ErrKindDecode, "frame decode failed", err))
		return
	}

	switch data := msg.Data.(type) {
	case *progress.Snapshot:
		c.stats.onSnapshot()
		c.emitSnapshot(data)
	case syncmsg.Heartbeat:
		c.stats.onHeartbeat()
	case syncmsg.Connected:
		slog.Debug("stream subscription accepted", "source", data.SourceID)
	case syncmsg.Error:
		c.emitError(newStreamError(ErrKindServer, data.Message, nil))
	}
}

func (c *ProgressClient) handleState(s ConnState) {
	switch s {
	case ConnStateConnected:
		c.stats.onConnected()
	case ConnStateDisconnected:
		c.stats.onDisconnected()
	}

	c.mu.RLock()
	fns := c.onState
	c.mu.RUnlock()

	for _, fn := range fns {
		invoke(func() { fn(s) })
	}
}

func (c *ProgressClient) handleError(err *StreamError) {
	c.stats.setLastError(err)
	c.emitError(err)
}

func (c *ProgressClient) emitSnapshot(snap *progress.Snapshot) {
	c.mu.RLock()
	fns := c.onSnapshot
	c.mu.RUnlock()

	for _, fn := range fns {
		invoke(func() { fn(snap) })
	}
}

func (c *ProgressClient) emitError(err *StreamError) {
	c.mu.RLock()
	fns := c.onError
	c.mu.RUnlock()

	for _, fn := range fns {
		invoke(func() { fn(err) })
	}
}

// invoke shields the transport loop from a panicking subscriber.
func invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("subscriber callback panicked", "panic", r)
		}
	}()
	fn()
}
