package syncsdk

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docboxhq/docbox/internal/progress"
)

func progressFrame(sourceID string, phase progress.Phase, filesDone int64) []byte {
	return []byte(fmt.Sprintf(
		`{"type":"progress","data":{"sourceId":%q,"phase":%q,"filesProcessed":%d,"isActive":true}}`,
		sourceID, phase, filesDone,
	))
}

func newTestClient(t *testing.T, d *fakeDialer) *ProgressClient {
	t.Helper()
	c := NewProgressClient("src-1", d, StaticToken("tok"), fastReconnect())
	t.Cleanup(c.Disconnect)
	return c
}

func TestClientPhaseProgression(t *testing.T) {
	d := &fakeDialer{}
	c := newTestClient(t, d)

	var mu sync.Mutex
	var snaps []*progress.Snapshot
	c.OnSnapshot(func(s *progress.Snapshot) {
		mu.Lock()
		snaps = append(snaps, s)
		mu.Unlock()
	})

	require.NoError(t, c.Connect(context.Background()))

	phases := []progress.Phase{
		progress.PhaseInitializing,
		progress.PhaseEvaluating,
		progress.PhaseDiscoveringDirectories,
		progress.PhaseDiscoveringFiles,
		progress.PhaseProcessingFiles,
		progress.PhaseSavingMetadata,
		progress.PhaseCompleted,
	}
	tr := d.transport(0)
	for i, p := range phases {
		tr.emit(progressFrame("src-1", p, int64(i)))
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(snaps) == len(phases)
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	for i, s := range snaps {
		assert.Equal(t, phases[i], s.Phase, "arrival order preserved")
		assert.Equal(t, int64(i), s.FilesProcessed)
	}
	// activity is derived from the phase, the wire flag is ignored
	for _, s := range snaps[:6] {
		assert.True(t, s.IsActive, "phase %s", s.Phase)
	}
	assert.False(t, snaps[6].IsActive)
}

func TestClientMalformedFrame(t *testing.T) {
	d := &fakeDialer{}
	c := newTestClient(t, d)

	errs := &errorCollector{}
	var snapshots atomic.Int32
	c.OnError(errs.collect)
	c.OnSnapshot(func(*progress.Snapshot) { snapshots.Add(1) })

	require.NoError(t, c.Connect(context.Background()))

	tr := d.transport(0)
	tr.emit([]byte(`{not json`))
	tr.emit([]byte(`{"type":"teleport","data":{}}`))
	tr.emit([]byte(`{"type":"progress","data":{"sourceId":"src-1","phase":"warping"}}`))

	require.Eventually(t, func() bool {
		return errs.countKind(ErrKindDecode) == 3
	}, time.Second, 5*time.Millisecond)

	assert.Zero(t, snapshots.Load())
	// decode errors are not fatal, the stream stays up
	assert.Equal(t, ConnStateConnected, c.State())
	assert.Equal(t, int64(3), c.Stats().DecodeErrors)
}

func TestClientServerErrorFrame(t *testing.T) {
	d := &fakeDialer{}
	c := newTestClient(t, d)

	errs := &errorCollector{}
	c.OnError(errs.collect)

	require.NoError(t, c.Connect(context.Background()))
	d.transport(0).emit([]byte(`{"type":"error","data":{"message":"scan worker crashed"}}`))

	require.Eventually(t, func() bool {
		return errs.countKind(ErrKindServer) == 1
	}, time.Second, 5*time.Millisecond)

	errs.mu.Lock()
	assert.Equal(t, "scan worker crashed", errs.errs[0].Message)
	errs.mu.Unlock()
	assert.Equal(t, ConnStateConnected, c.State())
}

func TestClientHeartbeatIsNotASnapshot(t *testing.T) {
	d := &fakeDialer{}
	c := newTestClient(t, d)

	var snapshots atomic.Int32
	c.OnSnapshot(func(*progress.Snapshot) { snapshots.Add(1) })

	require.NoError(t, c.Connect(context.Background()))
	d.transport(0).emit([]byte(`{"type":"heartbeat","data":{"sourceId":"src-1","isActive":true}}`))

	require.Eventually(t, func() bool {
		return c.Stats().Heartbeats == 1
	}, time.Second, 5*time.Millisecond)
	assert.Zero(t, snapshots.Load())
}

func TestClientLateSubscriber(t *testing.T) {
	d := &fakeDialer{}
	c := newTestClient(t, d)
	require.NoError(t, c.Connect(context.Background()))

	tr := d.transport(0)
	tr.emit(progressFrame("src-1", progress.PhaseEvaluating, 0))
	require.Eventually(t, func() bool {
		return c.Stats().Snapshots == 1
	}, time.Second, 5*time.Millisecond)

	// no replay: the subscriber only sees what arrives after it
	var mu sync.Mutex
	var seen []progress.Phase
	c.OnSnapshot(func(s *progress.Snapshot) {
		mu.Lock()
		seen = append(seen, s.Phase)
		mu.Unlock()
	})

	tr.emit(progressFrame("src-1", progress.PhaseProcessingFiles, 3))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 1
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	assert.Equal(t, []progress.Phase{progress.PhaseProcessingFiles}, seen)
	mu.Unlock()
}

func TestClientPanickingSubscriber(t *testing.T) {
	d := &fakeDialer{}
	c := newTestClient(t, d)

	var after atomic.Int32
	c.OnSnapshot(func(*progress.Snapshot) { panic("subscriber bug") })
	c.OnSnapshot(func(*progress.Snapshot) { after.Add(1) })

	require.NoError(t, c.Connect(context.Background()))
	tr := d.transport(0)
	tr.emit(progressFrame("src-1", progress.PhaseEvaluating, 0))
	tr.emit(progressFrame("src-1", progress.PhaseProcessingFiles, 1))

	require.Eventually(t, func() bool {
		return c.Stats().Snapshots == 2
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, int32(2), after.Load(), "later subscribers still run")
	assert.Equal(t, ConnStateConnected, c.State())
}

func TestClientKeepalive(t *testing.T) {
	d := &fakeDialer{}
	c := newTestClient(t, d)

	// disconnected: a no-op, never an error to the caller
	c.SendKeepalive()
	assert.Equal(t, 0, d.dialCount())

	require.NoError(t, c.Connect(context.Background()))
	c.SendKeepalive()
	c.SendKeepalive()
	assert.Equal(t, int32(2), d.transport(0).pings.Load())
}

func TestClientDisconnectSuppressesCallbacks(t *testing.T) {
	d := &fakeDialer{}
	c := NewProgressClient("src-1", d, StaticToken("tok"), fastReconnect())

	errs := &errorCollector{}
	c.OnError(errs.collect)
	require.NoError(t, c.Connect(context.Background()))

	c.Disconnect()
	require.Eventually(t, func() bool {
		return c.State() == ConnStateDisconnected
	}, time.Second, 5*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, errs.kinds(), "intentional close is silent")
	assert.Equal(t, 1, d.dialCount(), "no reconnect after Disconnect")

	assert.ErrorIs(t, c.Connect(context.Background()), ErrClientClosed)
}

func TestClientStatsAccumulate(t *testing.T) {
	d := &fakeDialer{}
	c := newTestClient(t, d)
	require.NoError(t, c.Connect(context.Background()))

	frame := progressFrame("src-1", progress.PhaseProcessingFiles, 10)
	tr := d.transport(0)
	tr.emit(frame)
	tr.emit(frame)

	require.Eventually(t, func() bool {
		return c.Stats().Snapshots == 2
	}, time.Second, 5*time.Millisecond)

	st := c.Stats()
	assert.Equal(t, int64(2), st.FramesRecvTotal)
	assert.Equal(t, int64(2*len(frame)), st.BytesRecvTotal)
	assert.Equal(t, ConnStateConnected, st.State)
	assert.NotZero(t, st.ConnectedAtNs)
	assert.NotZero(t, st.LastRecvAtNs)
}
