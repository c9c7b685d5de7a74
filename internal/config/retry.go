package config

import "strings"

// RetryBackoffMode enumerates supported backoff strategies for retries.
type RetryBackoffMode string

const (
	RetryBackoffFixed       RetryBackoffMode = "fixed"
	RetryBackoffLinear      RetryBackoffMode = "linear"
	RetryBackoffExponential RetryBackoffMode = "exponential"
)

// NormalizeRetryBackoff converts user input (case-insensitive) into a typed mode, returning empty string for unknown.
func NormalizeRetryBackoff(raw string) RetryBackoffMode {
	switch m := RetryBackoffMode(strings.ToLower(strings.TrimSpace(raw))); m {
	case RetryBackoffFixed, RetryBackoffLinear, RetryBackoffExponential:
		return m
	default:
		return ""
	}
}
