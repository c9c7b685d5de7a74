// Package errors provides the classified error type used across nostrbackup.
//
// Relay exchanges fail in one of four ways (connection, timeout, protocol,
// rejection); local concerns add config, validation, storage and runtime
// categories. A ClassifiedError carries its category, severity, retry hint
// and structured context, and the CLI and HTTP adapters turn it into exit
// codes and status codes.
//
// Example usage:
//
//	err := errors.TimeoutError("no message within idle window").
//		WithContext("relay", url).
//		Build()
package errors
