package syncsdk

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWSProgressURL(t *testing.T) {
	u, err := wsProgressURL("https://docbox.net", "src-1", "tok123")
	require.NoError(t, err)
	assert.Equal(t, "wss://docbox.net/api/sources/src-1/sync/progress/ws?token=tok123", u)

	u, err = wsProgressURL("http://localhost:8080", "src-1", "tok123")
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8080/api/sources/src-1/sync/progress/ws?token=tok123", u)
}

func TestToWebsocketURL(t *testing.T) {
	assert.Equal(t, "wss://example.com/x", toWebsocketURL("https://example.com/x"))
	assert.Equal(t, "ws://example.com/x", toWebsocketURL("http://example.com/x"))
	assert.Equal(t, "ws://already", toWebsocketURL("ws://already"))
}

// wsEcho is the server side of one accepted connection.
type wsEcho func(ctx context.Context, conn *websocket.Conn, r *http.Request)

func newWSServer(t *testing.T, handler wsEcho) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		handler(r.Context(), conn, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestWSDialSendsTokenAndPath(t *testing.T) {
	gotPath := make(chan string, 1)
	gotToken := make(chan string, 1)

	srv := newWSServer(t, func(ctx context.Context, conn *websocket.Conn, r *http.Request) {
		gotPath <- r.URL.Path
		gotToken <- r.URL.Query().Get("token")
		conn.Close(websocket.StatusNormalClosure, "done")
	})

	d := &WSDialer{BaseURL: srv.URL, SourceID: "src-1"}
	tr, err := d.Dial(context.Background(), "tok123")
	require.NoError(t, err)
	defer tr.Close()

	assert.Equal(t, "/api/sources/src-1/sync/progress/ws", <-gotPath)
	assert.Equal(t, "tok123", <-gotToken)
}

func TestWSTransportDeliversFramesThenNormalClose(t *testing.T) {
	srv := newWSServer(t, func(ctx context.Context, conn *websocket.Conn, _ *http.Request) {
		conn.Write(ctx, websocket.MessageText, []byte(`{"type":"heartbeat","data":{}}`))
		conn.Write(ctx, websocket.MessageText, []byte(`{"type":"progress","data":{"sourceId":"s","phase":"completed"}}`))
		conn.Close(websocket.StatusNormalClosure, "job finished")
	})

	d := &WSDialer{BaseURL: srv.URL, SourceID: "src-1"}
	tr, err := d.Dial(context.Background(), "tok")
	require.NoError(t, err)

	var frames [][]byte
	for f := range tr.Frames() {
		frames = append(frames, f)
	}
	require.Len(t, frames, 2, "both frames arrive before the close status")

	select {
	case status := <-tr.Closed():
		assert.True(t, status.Normal())
	case <-time.After(2 * time.Second):
		t.Fatal("close status never delivered")
	}
}

func TestWSTransportAbnormalClose(t *testing.T) {
	srv := newWSServer(t, func(ctx context.Context, conn *websocket.Conn, _ *http.Request) {
		conn.Write(ctx, websocket.MessageText, []byte(`{"type":"heartbeat","data":{}}`))
		// drop the tcp connection without a close frame
		conn.CloseNow()
	})

	d := &WSDialer{BaseURL: srv.URL, SourceID: "src-1"}
	tr, err := d.Dial(context.Background(), "tok")
	require.NoError(t, err)

	for range tr.Frames() {
	}

	select {
	case status := <-tr.Closed():
		assert.False(t, status.Normal(), "a dropped connection is abnormal")
	case <-time.After(2 * time.Second):
		t.Fatal("close status never delivered")
	}
}

func TestWSTransportClientClose(t *testing.T) {
	srv := newWSServer(t, func(ctx context.Context, conn *websocket.Conn, _ *http.Request) {
		// keep the connection open until the client hangs up
		ctx = conn.CloseRead(ctx)
		<-ctx.Done()
	})

	d := &WSDialer{BaseURL: srv.URL, SourceID: "src-1"}
	tr, err := d.Dial(context.Background(), "tok")
	require.NoError(t, err)

	require.NoError(t, tr.Ping(context.Background()))
	require.NoError(t, tr.Close())

	select {
	case status := <-tr.Closed():
		assert.True(t, status.Normal(), "local close is intentional")
	case <-time.After(2 * time.Second):
		t.Fatal("close status never delivered")
	}

	assert.ErrorIs(t, tr.Ping(context.Background()), ErrNotConnected)
}

func TestWSDialUnreachable(t *testing.T) {
	d := &WSDialer{BaseURL: "http://127.0.0.1:1", SourceID: "src-1"}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := d.Dial(ctx, "tok")
	require.Error(t, err)
}
