package syncmsg

import "time"

// Heartbeat confirms liveness of the stream. It never updates the
// stored progress snapshot.
type Heartbeat struct {
	SourceID  string    `json:"sourceId"`
	IsActive  bool      `json:"isActive"`
	Timestamp time.Time `json:"timestamp"`
}

func NewHeartbeat(sourceID string, active bool) *Message {
	return &Message{
		Type: MsgHeartbeat,
		Data: Heartbeat{
			SourceID:  sourceID,
			IsActive:  active,
			Timestamp: time.Now().UTC(),
		},
	}
}
