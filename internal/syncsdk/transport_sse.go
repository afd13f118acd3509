package syncsdk

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"

	"github.com/imroc/req/v3"

	"github.com/docboxhq/docbox/internal/progress"
	"github.com/docboxhq/docbox/internal/syncmsg"
)

const (
	sseFrameBufferSize = 64
	sseMaxLineSize     = 1 * 1024 * 1024 // 1MB
)

// SSEDialer opens the one-way push stream for one source. Credentials
// ride the ambient session on the shared HTTP client, not the URL.
type SSEDialer struct {
	Client   *req.Client
	SourceID string
}

func (d *SSEDialer) Dial(_ context.Context, _ string) (Transport, error) {
	// The stream outlives the connect call, so it gets its own
	// cancelable context rather than the dial one.
	ctx, cancel := context.WithCancel(context.Background())

	resp, err := d.Client.R().
		SetContext(ctx).
		DisableAutoReadResponse().
		SetHeader("Accept", "text/event-stream").
		SetHeader("Cache-Control", "no-cache").
		Get(fmt.Sprintf("/api/sources/%s/sync/progress", url.PathEscape(d.SourceID)))

	if err != nil {
		cancel()
		return nil, fmt.Errorf("sdk: sse: request failed: %w", err)
	}

	if resp.IsErrorState() {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("sdk: sse: server returned %s", resp.Status)
	}

	t := newSSETransport(resp.Body, cancel)
	t.start()
	return t, nil
}

type sseTransport struct {
	body      io.ReadCloser
	cancel    context.CancelFunc
	frames    chan []byte
	closed    chan CloseStatus
	closing   chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func newSSETransport(body io.ReadCloser, cancel context.CancelFunc) *sseTransport {
	return &sseTransport{
		body:    body,
		cancel:  cancel,
		frames:  make(chan []byte, sseFrameBufferSize),
		closed:  make(chan CloseStatus, 1),
		closing: make(chan struct{}),
	}
}

func (t *sseTransport) start() {
	t.wg.Add(1)
	go t.readLoop()
}

func (t *sseTransport) Frames() <-chan []byte {
	return t.frames
}

func (t *sseTransport) Closed() <-chan CloseStatus {
	return t.closed
}

// Ping is a no-op; the push stream is one-way.
func (t *sseTransport) Ping(_ context.Context) error {
	return nil
}

func (t *sseTransport) Close() error {
	t.finish(CloseStatus{Code: CloseCodeNormal, Reason: "client disconnect"})
	return nil
}

func (t *sseTransport) finish(status CloseStatus) {
	t.closeOnce.Do(func() {
		close(t.closing)
		t.cancel()
		t.body.Close()

		go func() {
			t.wg.Wait()
			close(t.frames)
			t.closed <- status
			close(t.closed)
		}()
	})
}

func (t *sseTransport) readLoop() {
	defer t.wg.Done()

	var dataLines []string
	var sawTerminal bool
	scanner := bufio.NewScanner(t.body)
	scanner.Buffer(make([]byte, 0, 64*1024), sseMaxLineSize)

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			// blank line dispatches the accumulated event
			if len(dataLines) == 0 {
				continue
			}
			frame := []byte(strings.Join(dataLines, "\n"))
			dataLines = dataLines[:0]
			sawTerminal = frameIsTerminal(frame)

			select {
			case t.frames <- frame:
			case <-t.closing:
				return
			}
		case strings.HasPrefix(line, "data:"):
			dataLines = append(dataLines, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		default:
			// event:/id:/retry: fields and comments carry no payload
		}
	}

	err := scanner.Err()
	if err == nil {
		err = io.EOF
	}

	select {
	case <-t.closing:
		// Close initiated the teardown and already set the status
		return
	default:
	}

	if errors.Is(err, context.Canceled) {
		t.finish(CloseStatus{Code: CloseCodeNormal, Reason: "client disconnect", Err: err})
		return
	}
	if sawTerminal {
		// the job already finished; the hangup is the end of the stream
		t.finish(CloseStatus{Code: CloseCodeNormal, Reason: "job finished"})
		return
	}
	t.finish(CloseStatus{Code: CloseCodeAbnormal, Reason: "stream ended", Err: err})
}

// frameIsTerminal reports whether a frame carries a terminal-phase
// snapshot. A server hangup right after one ends the stream normally
// instead of triggering a reconnect.
func frameIsTerminal(frame []byte) bool {
	msg, err := syncmsg.Decode(frame)
	if err != nil {
		return false
	}
	snap, ok := msg.Data.(*progress.Snapshot)
	return ok && snap.Phase.Terminal()
}
