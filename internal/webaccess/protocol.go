package webaccess

import (
	"encoding/json"
	"fmt"
)

// Frames on the wire are JSON objects tagged by "type".

// ClientMessage is one of Auth, Invoke, Subscribe or Unsubscribe.
type ClientMessage interface {
	clientMessage()
}

type Auth struct {
	Token string `json:"token"`
}

type Invoke struct {
	ID      uint64          `json:"id"`
	Command string          `json:"command"`
	Args    json.RawMessage `json:"args"`
}

type Subscribe struct {
	Event string `json:"event"`
}

type Unsubscribe struct {
	Event string `json:"event"`
}

func (Auth) clientMessage()        {}
func (Invoke) clientMessage()      {}
func (Subscribe) clientMessage()   {}
func (Unsubscribe) clientMessage() {}

// DecodeClientMessage parses a client frame into its concrete variant.
func DecodeClientMessage(data []byte) (ClientMessage, error) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}

	var (
		msg ClientMessage
		err error
	)
	switch env.Type {
	case "Auth":
		var m Auth
		err = json.Unmarshal(data, &m)
		msg = m
	case "Invoke":
		var m Invoke
		err = json.Unmarshal(data, &m)
		if len(m.Args) == 0 {
			m.Args = json.RawMessage("null")
		}
		msg = m
	case "Subscribe":
		var m Subscribe
		err = json.Unmarshal(data, &m)
		msg = m
	case "Unsubscribe":
		var m Unsubscribe
		err = json.Unmarshal(data, &m)
		msg = m
	default:
		return nil, fmt.Errorf("unknown message type %q", env.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", env.Type, err)
	}
	return msg, nil
}

// ServerMessage is one of AuthResult, InvokeResult or EventMessage.
type ServerMessage interface {
	serverMessage()
}

type AuthResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type InvokeResult struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// EventMessage is a forwarded bus event; its wire tag is "Event".
type EventMessage struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

func (AuthResult) serverMessage()   {}
func (InvokeResult) serverMessage() {}
func (EventMessage) serverMessage() {}

// EncodeServerMessage renders m with its "type" tag.
func EncodeServerMessage(m ServerMessage) ([]byte, error) {
	switch v := m.(type) {
	case AuthResult:
		return json.Marshal(struct {
			Type string `json:"type"`
			AuthResult
		}{"AuthResult", v})
	case InvokeResult:
		return json.Marshal(struct {
			Type string `json:"type"`
			InvokeResult
		}{"InvokeResult", v})
	case EventMessage:
		if v.Payload == nil {
			v.Payload = json.RawMessage("null")
		}
		return json.Marshal(struct {
			Type string `json:"type"`
			EventMessage
		}{"Event", v})
	default:
		return nil, fmt.Errorf("unknown server message %T", m)
	}
}
