package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassifiedError(t *testing.T) {
	t.Run("Basic error creation", func(t *testing.T) {
		err := NewError(CategoryConfig, "invalid configuration").
			WithSeverity(SeverityFatal).
			WithContext("file", "config.yaml").
			Build()

		if err.Category() != CategoryConfig {
			t.Errorf("expected category %s, got %s", CategoryConfig, err.Category())
		}
		if err.Severity() != SeverityFatal {
			t.Errorf("expected severity %s, got %s", SeverityFatal, err.Severity())
		}
		if err.Message() != "invalid configuration" {
			t.Errorf("expected message 'invalid configuration', got %s", err.Message())
		}

		file, exists := err.Context().GetString("file")
		if !exists || file != "config.yaml" {
			t.Errorf("expected context file=config.yaml, got %v", file)
		}
	})

	t.Run("Wrapped classified errors are found in the chain", func(t *testing.T) {
		inner := TimeoutError("idle window elapsed").WithContext("relay", "wss://a").Build()
		wrapped := fmt.Errorf("fetch: %w", inner)

		if !HasCategory(wrapped, CategoryTimeout) {
			t.Error("expected wrapped error to carry timeout category")
		}
		if GetCategory(errors.New("plain")) != CategoryInternal {
			t.Error("expected unclassified error to map to internal")
		}
	})

	t.Run("Sentinels match by category and message", func(t *testing.T) {
		sentinel := RejectionError("event rejected").Build()
		instance := RejectionError("event rejected").WithContext("relay", "wss://b").Build()

		if !errors.Is(instance, sentinel) {
			t.Error("expected instance to match sentinel")
		}
		if errors.Is(ProtocolError("event rejected").Build(), sentinel) {
			t.Error("expected different category not to match")
		}
	})
}

func TestErrorBuilder(t *testing.T) {
	t.Run("Fluent API", func(t *testing.T) {
		originalErr := errors.New("dial tcp: connection refused")
		err := WrapError(originalErr, CategoryConnection, "relay unreachable").
			Warning().
			Retryable().
			WithContext("relay", "wss://relay.example.com").
			Build()

		if err.Category() != CategoryConnection {
			t.Errorf("expected category %s, got %s", CategoryConnection, err.Category())
		}
		if err.Severity() != SeverityWarning {
			t.Errorf("expected severity %s, got %s", SeverityWarning, err.Severity())
		}
		if !errors.Is(err, originalErr) {
			t.Error("expected error to wrap original error")
		}
		if !CanRetry(err) {
			t.Error("expected backoff strategy to be retryable")
		}
	})

	t.Run("Convenience constructors", func(t *testing.T) {
		tests := []struct {
			name     string
			builder  *ErrorBuilder
			category ErrorCategory
			severity ErrorSeverity
			retry    RetryStrategy
		}{
			{"ConfigError", ConfigError("test"), CategoryConfig, SeverityFatal, RetryUserAction},
			{"ValidationError", ValidationError("test"), CategoryValidation, SeverityFatal, RetryUserAction},
			{"NotFoundError", NotFoundError("test"), CategoryNotFound, SeverityError, RetryNever},
			{"ConnectionError", ConnectionError("test"), CategoryConnection, SeverityWarning, RetryNever},
			{"TimeoutError", TimeoutError("test"), CategoryTimeout, SeverityWarning, RetryNever},
			{"ProtocolError", ProtocolError("test"), CategoryProtocol, SeverityWarning, RetryNever},
			{"RejectionError", RejectionError("test"), CategoryRejection, SeverityWarning, RetryNever},
			{"StorageError", StorageError("test"), CategoryStorage, SeverityError, RetryBackoff},
			{"RuntimeError", RuntimeError("test"), CategoryRuntime, SeverityFatal, RetryNever},
			{"DaemonError", DaemonError("test"), CategoryDaemon, SeverityFatal, RetryNever},
			{"InternalError", InternalError("test"), CategoryInternal, SeverityFatal, RetryNever},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				err := tt.builder.Build()
				if err.Category() != tt.category {
					t.Errorf("expected category %s, got %s", tt.category, err.Category())
				}
				if err.Severity() != tt.severity {
					t.Errorf("expected severity %s, got %s", tt.severity, err.Severity())
				}
				if err.RetryStrategy() != tt.retry {
					t.Errorf("expected retry strategy %s, got %s", tt.retry, err.RetryStrategy())
				}
			})
		}
	})
}

func TestErrorContextMerge(t *testing.T) {
	ctx1 := ErrorContext{"key1": "value1", "shared": "original"}
	ctx2 := ErrorContext{"key2": "value2", "shared": "overridden"}

	merged := ctx1.Merge(ctx2)

	if v, _ := merged.GetString("key1"); v != "value1" {
		t.Errorf("expected key1=value1, got %s", v)
	}
	if v, _ := merged.GetString("key2"); v != "value2" {
		t.Errorf("expected key2=value2, got %s", v)
	}
	if v, _ := merged.GetString("shared"); v != "overridden" {
		t.Errorf("expected shared=overridden, got %s", v)
	}
	if _, ok := ctx1.Get("key2"); ok {
		t.Error("merge must not mutate the receiver")
	}
}
