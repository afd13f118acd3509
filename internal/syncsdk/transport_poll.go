package syncsdk

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/docboxhq/docbox/internal/progress"
	"github.com/docboxhq/docbox/internal/syncmsg"
)

const (
	pollDefaultInterval = 2 * time.Second
	pollRequestTimeout  = 10 * time.Second
	pollFrameBufferSize = 16
)

// PollDialer drives the request/response fallback on a timer,
// re-wrapping each snapshot in its wire envelope so all three
// transports produce the same decoded event stream.
type PollDialer struct {
	Status   *StatusAPI
	SourceID string
	Interval time.Duration // 0 = pollDefaultInterval
}

func (d *PollDialer) Dial(ctx context.Context, _ string) (Transport, error) {
	// probe once so an unreachable server fails the connect attempt
	snap, err := d.Status.Get(ctx, d.SourceID)
	if err != nil {
		return nil, fmt.Errorf("sdk: poll: %w", err)
	}

	interval := d.Interval
	if interval <= 0 {
		interval = pollDefaultInterval
	}

	t := newPollTransport(d.Status, d.SourceID, interval)
	t.start(snap)
	return t, nil
}

type pollTransport struct {
	status    *StatusAPI
	sourceID  string
	interval  time.Duration
	frames    chan []byte
	closed    chan CloseStatus
	closing   chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
}

func newPollTransport(status *StatusAPI, sourceID string, interval time.Duration) *pollTransport {
	ctx, cancel := context.WithCancel(context.Background())
	return &pollTransport{
		status:   status,
		sourceID: sourceID,
		interval: interval,
		frames:   make(chan []byte, pollFrameBufferSize),
		closed:   make(chan CloseStatus, 1),
		closing:  make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (t *pollTransport) start(initial *progress.Snapshot) {
	t.wg.Add(1)
	go t.loop(initial)
}

func (t *pollTransport) Frames() <-chan []byte {
	return t.frames
}

func (t *pollTransport) Closed() <-chan CloseStatus {
	return t.closed
}

// Ping is a no-op; every poll already proves liveness.
func (t *pollTransport) Ping(_ context.Context) error {
	return nil
}

func (t *pollTransport) Close() error {
	t.finish(CloseStatus{Code: CloseCodeNormal, Reason: "client disconnect"})
	return nil
}

func (t *pollTransport) finish(status CloseStatus) {
	t.closeOnce.Do(func() {
		close(t.closing)
		t.cancel()

		go func() {
			t.wg.Wait()
			close(t.frames)
			t.closed <- status
			close(t.closed)
		}()
	})
}

func (t *pollTransport) loop(initial *progress.Snapshot) {
	defer t.wg.Done()

	if initial != nil {
		if !t.deliver(initial) {
			return
		}
		if initial.Phase.Terminal() {
			t.finish(CloseStatus{Code: CloseCodeNormal, Reason: "job finished"})
			return
		}
	}

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.closing:
			return
		case <-ticker.C:
			reqCtx, cancel := context.WithTimeout(t.ctx, pollRequestTimeout)
			snap, err := t.status.Get(reqCtx, t.sourceID)
			cancel()

			if err != nil {
				select {
				case <-t.closing:
					return
				default:
				}
				t.finish(CloseStatus{Code: CloseCodeAbnormal, Reason: "poll failed", Err: err})
				return
			}

			if snap == nil {
				// no active job yet, keep polling
				continue
			}

			if !t.deliver(snap) {
				return
			}
			if snap.Phase.Terminal() {
				t.finish(CloseStatus{Code: CloseCodeNormal, Reason: "job finished"})
				return
			}
		}
	}
}

func (t *pollTransport) deliver(snap *progress.Snapshot) bool {
	frame, err := syncmsg.Encode(syncmsg.NewProgress(snap))
	if err != nil {
		t.finish(CloseStatus{Code: CloseCodeAbnormal, Reason: "encode failed", Err: err})
		return false
	}

	select {
	case t.frames <- frame:
		return true
	case <-t.closing:
		return false
	}
}
