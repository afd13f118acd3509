package syncmsg

import "time"

// Connected confirms the server accepted a progress subscription.
// Purely informational.
type Connected struct {
	SourceID  string    `json:"sourceId"`
	Timestamp time.Time `json:"timestamp"`
}

func NewConnected(sourceID string) *Message {
	return &Message{
		Type: MsgConnected,
		Data: Connected{
			SourceID:  sourceID,
			Timestamp: time.Now().UTC(),
		},
	}
}
