package syncsdk

import (
	"sync/atomic"
	"time"
)

// streamStats tracks stream telemetry across reconnects.
type streamStats struct {
	framesRecv      atomic.Int64
	bytesRecv       atomic.Int64
	snapshots       atomic.Int64
	heartbeats      atomic.Int64
	decodeErrors    atomic.Int64
	reconnects      atomic.Int64
	connectedAtNs   atomic.Int64
	disconnAtNs     atomic.Int64
	lastRecvNs      atomic.Int64
	lastHeartbeatNs atomic.Int64
	lastErrorValue  atomic.Value // string
}

func newStreamStats() *streamStats {
	s := &streamStats{}
	s.lastErrorValue.Store("")
	return s
}

func (s *streamStats) onConnected() {
	s.connectedAtNs.Store(time.Now().UnixNano())
}

func (s *streamStats) onDisconnected() {
	s.disconnAtNs.Store(time.Now().UnixNano())
	s.reconnects.Add(1)
}

func (s *streamStats) onRecv(n int) {
	if n <= 0 {
		return
	}
	s.framesRecv.Add(1)
	s.bytesRecv.Add(int64(n))
	s.lastRecvNs.Store(time.Now().UnixNano())
}

func (s *streamStats) onSnapshot() {
	s.snapshots.Add(1)
}

func (s *streamStats) onHeartbeat() {
	s.heartbeats.Add(1)
	s.lastHeartbeatNs.Store(time.Now().UnixNano())
}

func (s *streamStats) onDecodeError() {
	s.decodeErrors.Add(1)
}

func (s *streamStats) setLastError(err error) {
	if err == nil {
		return
	}
	s.lastErrorValue.Store(err.Error())
}

// StreamStatsSnapshot is a stable, JSON-friendly view of stream state.
type StreamStatsSnapshot struct {
	State            ConnState `json:"state"`
	ReconnectAttempt int       `json:"reconnect_attempt"`
	Reconnects       int64     `json:"reconnects"`
	FramesRecvTotal  int64     `json:"frames_recv_total"`
	BytesRecvTotal   int64     `json:"bytes_recv_total"`
	Snapshots        int64     `json:"snapshots"`
	Heartbeats       int64     `json:"heartbeats"`
	DecodeErrors     int64     `json:"decode_errors"`
	ConnectedAtNs    int64     `json:"connected_at_ns,omitempty"`
	DisconnectedAtNs int64     `json:"disconnected_at_ns,omitempty"`
	LastRecvAtNs     int64     `json:"last_recv_at_ns,omitempty"`
	LastHeartbeatNs  int64     `json:"last_heartbeat_at_ns,omitempty"`
	LastError        string    `json:"last_error,omitempty"`
}
