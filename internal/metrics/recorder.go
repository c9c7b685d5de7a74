package metrics

import "time"

// ResultLabel enumerates relay session results for counters.
type ResultLabel string

const (
	ResultSuccess    ResultLabel = "success"
	ResultConnection ResultLabel = "connection"
	ResultTimeout    ResultLabel = "timeout"
	ResultProtocol   ResultLabel = "protocol"
	ResultRejection  ResultLabel = "rejection"
	ResultFailed     ResultLabel = "failed"
)

// Operation labels.
const (
	OperationFetch   = "fetch"
	OperationPublish = "publish"
)

// Recorder defines observability hooks for relay exchanges. Implementations
// may forward to Prometheus or elsewhere.
type Recorder interface {
	ObserveSessionDuration(operation string, d time.Duration, result ResultLabel)
	IncSessionResult(operation string, result ResultLabel)
	ObserveWaveDuration(operation string, d time.Duration)
	ObserveOperationDuration(operation string, d time.Duration)
	SetWaveSize(n int)
	AddTransferred(operation string, n int)
	IncStatusChange(operation, phase string)
	IncSinkRetry()
	IncSinkRetryExhausted()
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveSessionDuration(string, time.Duration, ResultLabel) {}
func (NoopRecorder) IncSessionResult(string, ResultLabel)                      {}
func (NoopRecorder) ObserveWaveDuration(string, time.Duration)                 {}
func (NoopRecorder) ObserveOperationDuration(string, time.Duration)            {}
func (NoopRecorder) SetWaveSize(int)                                           {}
func (NoopRecorder) AddTransferred(string, int)                                {}
func (NoopRecorder) IncStatusChange(string, string)                            {}
func (NoopRecorder) IncSinkRetry()                                             {}
func (NoopRecorder) IncSinkRetryExhausted()                                    {}
