package errors

import (
	"log/slog"
	"strings"
	"testing"
)

func TestCLIErrorAdapter_ExitCodeFor(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, slog.Default())

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{name: "nil error", err: nil, expected: 0},
		{name: "validation", err: ValidationError("invalid input").Build(), expected: 2},
		{name: "not found", err: NotFoundError("no such backup").Build(), expected: 3},
		{name: "config", err: ConfigError("bad config").Build(), expected: 7},
		{name: "relay timeout", err: TimeoutError("idle").Build(), expected: 8},
		{name: "storage", err: StorageError("disk full").Build(), expected: 11},
		{name: "internal", err: InternalError("boom").Build(), expected: 10},
		{name: "unclassified error", err: &customError{msg: "unknown error"}, expected: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := adapter.ExitCodeFor(tt.err); got != tt.expected {
				t.Errorf("ExitCodeFor() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestCLIErrorAdapter_FormatError(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, slog.Default())

	tests := []struct {
		name     string
		err      error
		contains string
	}{
		{name: "nil error", err: nil, contains: ""},
		{name: "internal hidden", err: InternalError("internal issue").Build(), contains: "Internal error occurred"},
		{name: "config message only", err: ConfigError("bad config").Build(), contains: "bad config"},
		{name: "category prefix", err: StorageError("write failed").Build(), contains: "storage: write failed"},
		{name: "unclassified error", err: &customError{msg: "unknown error"}, contains: "Error: unknown error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := adapter.FormatError(tt.err)
			if tt.contains == "" {
				if got != "" {
					t.Errorf("FormatError() = %q, want empty string", got)
				}
				return
			}
			if !strings.Contains(got, tt.contains) {
				t.Errorf("FormatError() = %q, want to contain %q", got, tt.contains)
			}
		})
	}
}

// customError is a test helper for unclassified errors
type customError struct {
	msg string
}

func (e *customError) Error() string {
	return e.msg
}
