package syncmsg

import (
	"github.com/docboxhq/docbox/internal/progress"
)

// DecodeSnapshot parses a bare snapshot payload, rejecting unknown
// phases and recomputing the derived isActive flag so transport code
// can never set it independently. The poll endpoint returns this shape
// without the envelope.
func DecodeSnapshot(data []byte) (*progress.Snapshot, error) {
	var snap progress.Snapshot
	if err := jsonUnmarshal(data, &snap); err != nil {
		return nil, err
	}

	if _, err := progress.ParsePhase(string(snap.Phase)); err != nil {
		return nil, err
	}

	snap.Normalize()
	return &snap, nil
}

// NewProgress wraps a snapshot in its wire envelope.
func NewProgress(snap *progress.Snapshot) *Message {
	return &Message{
		Type: MsgProgress,
		Data: snap,
	}
}
