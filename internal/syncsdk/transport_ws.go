package syncsdk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
)

const (
	wsFrameBufferSize = 64
	wsPingPeriod      = 15 * time.Second
	wsPingTimeout     = 5 * time.Second
	wsMaxMessageSize  = 1 * 1024 * 1024 // 1MB
)

// WSDialer opens the duplex progress stream for one source. The bearer
// credential travels as a query parameter because the websocket
// handshake precedes any custom-header opportunity in browser clients.
type WSDialer struct {
	BaseURL    string
	SourceID   string
	PingPeriod time.Duration // outbound keepalive interval, 0 = default
}

func (d *WSDialer) Dial(ctx context.Context, token string) (Transport, error) {
	u, err := wsProgressURL(d.BaseURL, d.SourceID, token)
	if err != nil {
		return nil, fmt.Errorf("sdk: ws: %w", err)
	}

	conn, _, err := websocket.Dial(ctx, u, nil)
	if err != nil {
		return nil, fmt.Errorf("sdk: ws: dial failed: %w", err)
	}
	conn.SetReadLimit(wsMaxMessageSize)

	period := d.PingPeriod
	if period <= 0 {
		period = wsPingPeriod
	}

	t := newWSTransport(conn, period)
	t.start()
	return t, nil
}

type wsTransport struct {
	conn       *websocket.Conn
	frames     chan []byte
	closed     chan CloseStatus
	closing    chan struct{}
	pingPeriod time.Duration
	closeOnce  sync.Once
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
}

func newWSTransport(conn *websocket.Conn, pingPeriod time.Duration) *wsTransport {
	ctx, cancel := context.WithCancel(context.Background())
	return &wsTransport{
		conn:       conn,
		frames:     make(chan []byte, wsFrameBufferSize),
		closed:     make(chan CloseStatus, 1),
		closing:    make(chan struct{}),
		pingPeriod: pingPeriod,
		ctx:        ctx,
		cancel:     cancel,
	}
}

func (t *wsTransport) start() {
	t.wg.Add(2)
	go t.readLoop()
	go t.pingLoop()
}

func (t *wsTransport) Frames() <-chan []byte {
	return t.frames
}

func (t *wsTransport) Closed() <-chan CloseStatus {
	return t.closed
}

func (t *wsTransport) Ping(ctx context.Context) error {
	select {
	case <-t.closing:
		return ErrNotConnected
	default:
	}

	ctx, cancel := context.WithTimeout(ctx, wsPingTimeout)
	defer cancel()
	return t.conn.Ping(ctx)
}

func (t *wsTransport) Close() error {
	t.finish(CloseStatus{Code: CloseCodeNormal, Reason: "client disconnect"})
	return nil
}

// finish tears the connection down exactly once. The first caller's
// status wins; frames are drained before the status is delivered.
func (t *wsTransport) finish(status CloseStatus) {
	t.closeOnce.Do(func() {
		close(t.closing)
		t.cancel()

		if status.Normal() {
			t.conn.Close(websocket.StatusNormalClosure, status.Reason)
		} else {
			t.conn.CloseNow()
		}

		go func() {
			t.wg.Wait()
			close(t.frames)
			t.closed <- status
			close(t.closed)
		}()
	})
}

func (t *wsTransport) readLoop() {
	defer t.wg.Done()

	for {
		typ, raw, err := t.conn.Read(t.ctx)
		if err != nil {
			t.finish(wsCloseStatus(err))
			return
		}

		if typ != websocket.MessageText {
			slog.Warn("ws RECV unexpected frame type", "type", typ)
			continue
		}

		select {
		case t.frames <- raw:
		case <-t.closing:
			return
		}
	}
}

func (t *wsTransport) pingLoop() {
	ticker := time.NewTicker(t.pingPeriod)
	defer func() {
		ticker.Stop()
		t.wg.Done()
	}()

	for {
		select {
		case <-t.closing:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(t.ctx, wsPingTimeout)
			err := t.conn.Ping(ctx)
			cancel()

			if err != nil {
				t.finish(CloseStatus{Code: CloseCodeAbnormal, Reason: "keepalive failed", Err: err})
				return
			}
		}
	}
}

// wsCloseStatus maps a read error to the close status the reconnect
// policy evaluates. Code 1000 means the far side closed intentionally.
func wsCloseStatus(err error) CloseStatus {
	code := websocket.CloseStatus(err)
	switch {
	case code == websocket.StatusNormalClosure:
		return CloseStatus{Code: CloseCodeNormal, Reason: "server closed"}
	case code != -1:
		return CloseStatus{Code: int(code), Reason: "abnormal closure", Err: err}
	case errors.Is(err, context.Canceled):
		// local teardown raced the read; Close already reported the status
		return CloseStatus{Code: CloseCodeNormal, Reason: "client disconnect", Err: err}
	default:
		return CloseStatus{Code: CloseCodeAbnormal, Reason: "connection lost", Err: err}
	}
}

func wsProgressURL(baseURL, sourceID, token string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}

	u = u.JoinPath("api", "sources", sourceID, "sync", "progress", "ws")
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	return toWebsocketURL(u.String()), nil
}

// toWebsocketURL converts an HTTP URL to a WebSocket URL
func toWebsocketURL(url string) string {
	if strings.HasPrefix(url, "https://") {
		return "wss://" + url[8:]
	} else if strings.HasPrefix(url, "http://") {
		return "ws://" + url[7:]
	}
	return url
}
