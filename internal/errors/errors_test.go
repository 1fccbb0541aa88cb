package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestPulseError_Error(t *testing.T) {
	err := &PulseError{
		Code:    ErrNotFound,
		Message: "file not found: a.txt",
	}

	expected := "NOT_FOUND: file not found: a.txt"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestNewNotFound(t *testing.T) {
	err := NewNotFound("data/raw/a.npz")

	if err.Code != ErrNotFound {
		t.Errorf("Code = %q, want %q", err.Code, ErrNotFound)
	}
	if err.Details["path"] != "data/raw/a.npz" {
		t.Errorf("Details[path] = %v, want %q", err.Details["path"], "data/raw/a.npz")
	}
}

func TestNewParseLine(t *testing.T) {
	cause := fmt.Errorf("bad float")
	err := NewParseLine("pulses.txt", 7, "1\tx\t3", cause)

	if err.Code != ErrFormat {
		t.Errorf("Code = %q, want %q", err.Code, ErrFormat)
	}
	if err.Details["line"] != 7 {
		t.Errorf("Details[line] = %v, want 7", err.Details["line"])
	}
	if !strings.Contains(err.Message, "pulses.txt:7") {
		t.Errorf("Message = %q, want it to name file and line", err.Message)
	}
	if !stderrors.Is(err, cause) {
		t.Error("expected cause to be reachable via errors.Is")
	}
}

func TestNewLengthMismatch(t *testing.T) {
	err := NewLengthMismatch(3, 2)

	if err.Code != ErrFormat {
		t.Errorf("Code = %q, want %q", err.Code, ErrFormat)
	}
	if err.Details["expected"] != 3 {
		t.Errorf("Details[expected] = %v, want 3", err.Details["expected"])
	}
	if err.Details["actual"] != 2 {
		t.Errorf("Details[actual] = %v, want 2", err.Details["actual"])
	}
}

func TestNewNoMatchingGroup(t *testing.T) {
	err := NewNoMatchingGroup("b.txt")

	if err.Code != ErrFormat {
		t.Errorf("Code = %q, want %q", err.Code, ErrFormat)
	}
	if !strings.Contains(err.Message, "no matching group") {
		t.Errorf("Message = %q", err.Message)
	}
}

func TestNewInternal_NilError(t *testing.T) {
	err := NewInternal(nil)
	if err.Message != "internal error" {
		t.Errorf("Message = %q, want %q", err.Message, "internal error")
	}
}

func TestIs(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code ErrorCode
		want bool
	}{
		{"matching code", NewValidation("empty pulse"), ErrValidation, true},
		{"different code", NewValidation("empty pulse"), ErrFormat, false},
		{"wrapped", fmt.Errorf("loading: %w", NewNotFound("x")), ErrNotFound, true},
		{"plain error", fmt.Errorf("boom"), ErrInternal, false},
		{"nil", nil, ErrInternal, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.want {
				t.Errorf("Is() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPulseError_Status(t *testing.T) {
	tests := []struct {
		err  *PulseError
		want int
	}{
		{NewNotFound("a.txt"), 404},
		{NewInvalidRequest("bad"), 400},
		{NewFormat("a.txt", "bad header"), 422},
		{NewValidation("empty"), 422},
		{NewCancelled("extract"), 499},
		{NewInternal(nil), 500},
	}

	for _, tt := range tests {
		if got := tt.err.Status(); got != tt.want {
			t.Errorf("%s: Status() = %d, want %d", tt.err.Code, got, tt.want)
		}
	}
}
