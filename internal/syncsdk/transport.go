package syncsdk

import (
	"context"
)

// CloseCodeNormal is the intentional-closure status code. Anything else
// reported on close is abnormal and triggers the reconnect evaluation.
const CloseCodeNormal = 1000

// CloseCodeAbnormal is used by transports that have no native close
// codes (SSE, poll) when they stop for any reason other than an
// intentional Close.
const CloseCodeAbnormal = 1006

// CloseStatus describes why a transport stopped delivering frames.
type CloseStatus struct {
	Code   int
	Reason string
	Err    error
}

// Normal reports whether the closure was intentional.
func (c CloseStatus) Normal() bool {
	return c.Code == CloseCodeNormal
}

// Transport is one live connection delivering raw progress frames.
// A Transport is created already open by its dialer and cannot be
// reopened; reconnection dials a fresh one.
//
// Frames is closed when the transport stops; after that, Closed yields
// exactly one CloseStatus. Frames already received are always drained
// before the close status, so a final snapshot racing teardown is never
// lost.
type Transport interface {
	Frames() <-chan []byte
	Closed() <-chan CloseStatus

	// Ping sends a keepalive where the transport supports one, and is
	// a no-op otherwise.
	Ping(ctx context.Context) error

	// Close stops the transport with a normal closure.
	Close() error
}

// TransportDialer opens one Transport per connection attempt, scoped to
// a single source. The token is the bearer credential read for this
// attempt; push-stream and poll dialers carry ambient session auth on
// their HTTP client and may ignore it.
type TransportDialer interface {
	Dial(ctx context.Context, token string) (Transport, error)
}

// TransportKind selects which delivery mechanism a ProgressClient uses.
// The choice belongs to the caller, not to runtime feature detection.
type TransportKind string

const (
	TransportWebSocket TransportKind = "websocket"
	TransportSSE       TransportKind = "sse"
	TransportPoll      TransportKind = "poll"
)
