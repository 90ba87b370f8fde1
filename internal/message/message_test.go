package message

import (
	"errors"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		msg     Message
		wantErr error
	}{
		{name: "execute", msg: NewExecute(1)},
		{name: "result", msg: NewResult(1, "done")},
		{name: "show", msg: NewShow(1, 3.5)},
		{name: "status", msg: NewStatus(1, Status{"battery": 80})},
		{name: "status nil becomes empty", msg: NewStatus(1, nil)},
		{name: "identity", msg: NewIdentity(2, Status{"name": "tablet"})},
		{name: "leave lightweight", msg: NewLeaveLightweight(4)},
		{
			name:    "execute with payload",
			msg:     Message{Sender: 1, Type: TypeExecute, Payload: "x"},
			wantErr: ErrInvalidPayload,
		},
		{
			name:    "result without value",
			msg:     Message{Sender: 1, Type: TypeResult},
			wantErr: ErrInvalidPayload,
		},
		{
			name:    "status with wrong payload",
			msg:     Message{Sender: 1, Type: TypeStatus, Payload: 12},
			wantErr: ErrInvalidPayload,
		},
		{
			name:    "unknown type",
			msg:     Message{Sender: 1, Type: Type(99)},
			wantErr: ErrUnknownType,
		},
		{
			name:    "zero type",
			msg:     Message{Sender: 1},
			wantErr: ErrUnknownType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewStatus_CopiesPayload(t *testing.T) {
	status := Status{"nested": map[string]any{"level": 1}}
	msg := NewStatus(7, status)

	status["nested"].(map[string]any)["level"] = 2

	got, ok := msg.StatusPayload()
	if !ok {
		t.Fatal("StatusPayload() ok = false")
	}
	if level := got["nested"].(map[string]any)["level"]; level != 1 {
		t.Errorf("nested level = %v, want 1 (payload must not alias caller map)", level)
	}
}

func TestParseType(t *testing.T) {
	tests := []struct {
		input string
		want  Type
	}{
		{"execute", TypeExecute},
		{"RESULT", TypeResult},
		{" show ", TypeShow},
		{"status", TypeStatus},
		{"id", TypeID},
		{"leave_lightweight", TypeLeaveLightweight},
	}
	for _, tt := range tests {
		got, err := ParseType(tt.input)
		if err != nil {
			t.Errorf("ParseType(%q) error = %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseType(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}

	if _, err := ParseType("teleport"); !errors.Is(err, ErrUnknownType) {
		t.Errorf("ParseType(teleport) error = %v, want ErrUnknownType", err)
	}
}

func TestTypeString_Unknown(t *testing.T) {
	if got := Type(42).String(); got != "unknown(42)" {
		t.Errorf("String() = %q, want %q", got, "unknown(42)")
	}
	if Type(42).Valid() {
		t.Error("Valid() = true for unknown type")
	}
}
