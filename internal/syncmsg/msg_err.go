package syncmsg

// Error reports a server-side problem with the stream itself, e.g. a
// serialization failure. It does not close the transport.
type Error struct {
	Message string `json:"message"`
}

func NewError(msg string) *Message {
	return &Message{
		Type: MsgError,
		Data: Error{
			Message: msg,
		},
	}
}
