package syncmsg

import (
	"encoding/json"
	"fmt"
)

// Message is the envelope every progress-stream frame travels in:
// {"type": "...", "data": {...}}. Data holds the typed payload for the
// message type after decoding.
type Message struct {
	Type MessageType `json:"type"`
	Data any         `json:"data"`
}

// UnmarshalJSON decodes the envelope and dispatches the payload to the
// concrete type for the discriminant. Anything unparseable, including
// an unknown type string or an unknown phase inside a progress payload,
// comes back as an error and leaves no partial state behind.
func (m *Message) UnmarshalJSON(data []byte) error {
	type tempMessage struct {
		Type MessageType     `json:"type"`
		Data json.RawMessage `json:"data"`
	}

	var temp tempMessage
	if err := jsonUnmarshal(data, &temp); err != nil {
		return err
	}

	m.Type = temp.Type

	switch temp.Type {
	case MsgProgress:
		prog, err := DecodeSnapshot(temp.Data)
		if err != nil {
			return err
		}
		m.Data = prog
	case MsgHeartbeat:
		var hb Heartbeat
		if err := jsonUnmarshal(temp.Data, &hb); err != nil {
			return err
		}
		m.Data = hb
	case MsgConnected:
		var conn Connected
		if err := jsonUnmarshal(temp.Data, &conn); err != nil {
			return err
		}
		m.Data = conn
	case MsgError:
		var srvErr Error
		if err := jsonUnmarshal(temp.Data, &srvErr); err != nil {
			return err
		}
		m.Data = srvErr
	default:
		return fmt.Errorf("unknown message type: %q", string(temp.Type))
	}

	return nil
}

// Decode parses one raw frame into a typed Message.
func Decode(frame []byte) (*Message, error) {
	var msg Message
	if err := jsonUnmarshal(frame, &msg); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	return &msg, nil
}

// Encode serializes a Message back into its wire form.
func Encode(msg *Message) ([]byte, error) {
	return jsonMarshal(msg)
}
