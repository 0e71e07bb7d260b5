package ws

import (
	"github.com/garagedesk/internal/transport"
)

// Outgoing is one frame pushed to a connected session. The wire shape is
// transport.Frame; Payload is a typed struct from the transport package so
// both ends share a single format definition.
type Outgoing struct {
	Type    transport.EventType `json:"type"`
	Payload any                 `json:"payload,omitempty"`
}

func errorFrame(msg string) Outgoing {
	return Outgoing{Type: transport.EventError, Payload: msg}
}
