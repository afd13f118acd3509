package syncmsg

import "fmt"

// MessageType is the discriminant carried in the "type" field of every
// frame the progress stream produces.
type MessageType string

const (
	MsgProgress  MessageType = "progress"
	MsgHeartbeat MessageType = "heartbeat"
	MsgConnected MessageType = "connected"
	MsgError     MessageType = "error"
)

// Valid reports whether the type is one the protocol knows about.
func (t MessageType) Valid() bool {
	switch t {
	case MsgProgress, MsgHeartbeat, MsgConnected, MsgError:
		return true
	default:
		return false
	}
}

func (t MessageType) String() string {
	if !t.Valid() {
		return fmt.Sprintf("???(%s)", string(t))
	}
	return string(t)
}
