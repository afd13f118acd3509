package devserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"

	"github.com/docboxhq/docbox/internal/syncmsg"
	"github.com/docboxhq/docbox/internal/utils"
)

const (
	wsWriteTimeout   = 20 * time.Second
	wsMaxMessageSize = 1 * 1024 * 1024 // 1MB
)

// SyncHandler serves the three progress surfaces: the websocket stream,
// the SSE stream, and the poll endpoint.
type SyncHandler struct {
	hub     *Hub
	service *SyncService
	cfg     *Config
}

func NewSyncHandler(hub *Hub, service *SyncService, cfg *Config) *SyncHandler {
	return &SyncHandler{hub: hub, service: service, cfg: cfg}
}

// Status returns the latest snapshot for a source, or a JSON null when
// no job has run yet.
func (h *SyncHandler) Status(c *gin.Context) {
	sourceID := c.Param("sourceId")

	snap, ok := h.hub.Latest(sourceID)
	if !ok {
		c.Data(http.StatusOK, "application/json", []byte("null"))
		return
	}
	c.PureJSON(http.StatusOK, snap)
}

// Start kicks off a simulated sync job for a source.
func (h *SyncHandler) Start(c *gin.Context) {
	sourceID := c.Param("sourceId")

	var body struct {
		Scenario string `json:"scenario"`
	}
	// an empty body means the default scenario
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		AbortWithError(c, http.StatusBadRequest, CodeInvalidRequest, err)
		return
	}

	scenario, err := h.resolveScenario(body.Scenario)
	if err != nil {
		AbortWithError(c, http.StatusBadRequest, CodeInvalidRequest, err)
		return
	}

	if err := h.service.Start(context.Background(), sourceID, scenario); err != nil {
		AbortWithError(c, http.StatusConflict, CodeSourceBusy, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "started", "scenario": scenario.Name})
}

// Cancel aborts a running job.
func (h *SyncHandler) Cancel(c *gin.Context) {
	sourceID := c.Param("sourceId")
	if !h.service.Cancel(sourceID) {
		AbortWithError(c, http.StatusNotFound, CodeSourceNotFound, fmt.Errorf("no running job for source %s", sourceID))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

func (h *SyncHandler) resolveScenario(name string) (*Scenario, error) {
	switch name {
	case "", "default":
		if h.cfg.ScenarioPath != "" {
			return LoadScenario(h.cfg.ScenarioPath)
		}
		return DefaultScenario(), nil
	case "failing":
		return FailingScenario(), nil
	default:
		return nil, fmt.Errorf("unknown scenario %q", name)
	}
}

// Events streams progress frames over server-sent events until the job
// finishes or the subscriber goes away.
func (h *SyncHandler) Events(c *gin.Context) {
	sourceID := c.Param("sourceId")

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	sub := h.hub.Subscribe(sourceID)
	defer h.hub.Unsubscribe(sub.ID)

	// confirm the subscription before the first tick; until the first
	// flush the client is still waiting on response headers
	if frame, err := syncmsg.Encode(syncmsg.NewConnected(sourceID)); err == nil {
		c.SSEvent("progress", string(frame))
	}
	if snap, ok := h.hub.Latest(sourceID); ok {
		if frame, err := syncmsg.Encode(syncmsg.NewProgress(snap)); err == nil {
			c.SSEvent("progress", string(frame))
		}
	}
	c.Writer.Flush()

	ctx := c.Request.Context()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case frame, ok := <-sub.Frames:
			if !ok {
				// terminal phase already delivered; end the stream
				return false
			}
			c.SSEvent("progress", string(frame))
			return true
		}
	})
}

// Websocket upgrades the connection and pushes progress frames. The
// credential rides the token query parameter because the handshake
// precedes any custom-header opportunity in browser clients.
func (h *SyncHandler) Websocket(c *gin.Context) {
	sourceID := c.Param("sourceId")

	if !tokenAccepted(h.cfg.AuthToken, c.Query("token")) {
		AbortWithError(c, http.StatusUnauthorized, CodeAccessDenied, errors.New("missing or invalid token"))
		return
	}

	conn, err := websocket.Accept(c.Writer, c.Request, nil)
	if err != nil {
		AbortWithError(c, http.StatusBadRequest, CodeInvalidRequest, fmt.Errorf("websocket accept failed: %w", err))
		return
	}
	conn.SetReadLimit(wsMaxMessageSize)

	sub := h.hub.Subscribe(sourceID)
	defer h.hub.Unsubscribe(sub.ID)
	slog.Debug("ws subscribe", "source", sourceID, "conn", sub.ID, "token", utils.MaskSecret(c.Query("token")))

	// reads only control frames; cancels when the peer goes away
	ctx := conn.CloseRead(c.Request.Context())

	if err := h.writeMessage(ctx, conn, syncmsg.NewConnected(sourceID)); err != nil {
		conn.CloseNow()
		return
	}

	// replay the latest snapshot so a late subscriber is not blind
	// until the next tick
	if snap, ok := h.hub.Latest(sourceID); ok {
		if err := h.writeMessage(ctx, conn, syncmsg.NewProgress(snap)); err != nil {
			conn.CloseNow()
			return
		}
	}

	for {
		select {
		case <-ctx.Done():
			conn.CloseNow()
			return
		case frame, ok := <-sub.Frames:
			if !ok {
				// job reached a terminal phase; intentional shutdown
				conn.Close(websocket.StatusNormalClosure, "job finished")
				return
			}
			if err := h.writeFrame(ctx, conn, frame); err != nil {
				slog.Warn("ws writer failed", "source", sourceID, "conn", sub.ID, "error", err)
				conn.CloseNow()
				return
			}
		}
	}
}

func (h *SyncHandler) writeMessage(ctx context.Context, conn *websocket.Conn, msg *syncmsg.Message) error {
	frame, err := syncmsg.Encode(msg)
	if err != nil {
		return err
	}
	return h.writeFrame(ctx, conn, frame)
}

func (h *SyncHandler) writeFrame(ctx context.Context, conn *websocket.Conn, frame []byte) error {
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, frame)
}
