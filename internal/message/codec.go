package message

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// maxWireSize bounds a single encoded message (64KB).
const maxWireSize = 64 << 10

// wireMessage is the JSON form of a Message.
//
// Example:
//
//	{"sender":3,"type":"result","payload":42}
type wireMessage struct {
	Sender  int             `json:"sender"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Encode validates m and returns its JSON wire form.
func Encode(m Message) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	w := wireMessage{
		Sender: m.Sender,
		Type:   m.Type.String(),
	}
	if m.Payload != nil {
		raw, err := json.Marshal(m.Payload)
		if err != nil {
			return nil, fmt.Errorf("%w: encoding payload: %w", ErrInvalidPayload, err)
		}
		w.Payload = raw
	}

	data, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("encoding message: %w", err)
	}
	return data, nil
}

// Decode parses JSON wire data into a validated Message.
//
// Status and ID payloads are decoded as Status; Result and Show payloads
// keep whatever JSON type they arrived as (numbers become float64).
func Decode(data []byte) (Message, error) {
	if len(data) == 0 {
		return Message{}, fmt.Errorf("%w: empty", ErrMalformed)
	}
	if len(data) > maxWireSize {
		return Message{}, fmt.Errorf("%w: %d bytes exceeds %d", ErrMalformed, len(data), maxWireSize)
	}

	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return Message{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if w.Sender < 0 {
		return Message{}, fmt.Errorf("%w: negative sender %d", ErrMalformed, w.Sender)
	}

	t, err := ParseType(w.Type)
	if err != nil {
		return Message{}, err
	}

	m := Message{Sender: w.Sender, Type: t}
	if hasPayload(w.Payload) {
		switch t {
		case TypeStatus, TypeID:
			var s Status
			if err := json.Unmarshal(w.Payload, &s); err != nil {
				return Message{}, fmt.Errorf("%w: status: %w", ErrInvalidPayload, err)
			}
			if s == nil {
				s = Status{}
			}
			m.Payload = s
		default:
			var v any
			if err := json.Unmarshal(w.Payload, &v); err != nil {
				return Message{}, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
			}
			m.Payload = v
		}
	} else if t == TypeStatus || t == TypeID {
		m.Payload = Status{}
	}

	if err := m.Validate(); err != nil {
		return Message{}, err
	}
	return m, nil
}

// hasPayload reports whether raw holds something other than nothing or null.
func hasPayload(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}
