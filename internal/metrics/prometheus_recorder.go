package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once              sync.Once
	sessionDuration   *prom.HistogramVec
	sessionResults    *prom.CounterVec
	waveDuration      *prom.HistogramVec
	operationDuration *prom.HistogramVec
	waveSize          prom.Gauge
	transferred       *prom.CounterVec
	statusChanges     *prom.CounterVec
	sinkRetries       prom.Counter
	sinkExhausted     prom.Counter
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.sessionDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "nostrbackup",
			Name:      "relay_session_duration_seconds",
			Help:      "Duration of single relay exchanges",
			Buckets:   prom.DefBuckets,
		}, []string{"operation", "result"})
		pr.sessionResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "nostrbackup",
			Name:      "relay_session_results_total",
			Help:      "Relay exchange results by failure kind",
		}, []string{"operation", "result"})
		pr.waveDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "nostrbackup",
			Name:      "wave_duration_seconds",
			Help:      "Duration of one batch of concurrent relay exchanges",
			Buckets:   prom.DefBuckets,
		}, []string{"operation"})
		pr.operationDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "nostrbackup",
			Name:      "operation_duration_seconds",
			Help:      "Total fetch or publish duration across all relays",
			Buckets:   prom.DefBuckets,
		}, []string{"operation"})
		pr.waveSize = prom.NewGauge(prom.GaugeOpts{
			Namespace: "nostrbackup",
			Name:      "wave_size",
			Help:      "Relays in the most recent wave",
		})
		pr.transferred = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "nostrbackup",
			Name:      "events_transferred_total",
			Help:      "Events accepted from or acknowledged by relays",
		}, []string{"operation"})
		pr.statusChanges = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "nostrbackup",
			Name:      "relay_status_changes_total",
			Help:      "Relay status phase transitions",
		}, []string{"operation", "phase"})
		pr.sinkRetries = prom.NewCounter(prom.CounterOpts{
			Namespace: "nostrbackup",
			Name:      "backup_write_retries_total",
			Help:      "Retried backup writes",
		})
		pr.sinkExhausted = prom.NewCounter(prom.CounterOpts{
			Namespace: "nostrbackup",
			Name:      "backup_write_retry_exhausted_total",
			Help:      "Backup writes that failed after all retries",
		})
		reg.MustRegister(pr.sessionDuration, pr.sessionResults, pr.waveDuration, pr.operationDuration,
			pr.waveSize, pr.transferred, pr.statusChanges, pr.sinkRetries, pr.sinkExhausted)
	})
	return pr
}

func (p *PrometheusRecorder) ObserveSessionDuration(operation string, d time.Duration, result ResultLabel) {
	if p == nil || p.sessionDuration == nil {
		return
	}
	p.sessionDuration.WithLabelValues(operation, string(result)).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncSessionResult(operation string, result ResultLabel) {
	if p == nil || p.sessionResults == nil {
		return
	}
	p.sessionResults.WithLabelValues(operation, string(result)).Inc()
}

func (p *PrometheusRecorder) ObserveWaveDuration(operation string, d time.Duration) {
	if p == nil || p.waveDuration == nil {
		return
	}
	p.waveDuration.WithLabelValues(operation).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveOperationDuration(operation string, d time.Duration) {
	if p == nil || p.operationDuration == nil {
		return
	}
	p.operationDuration.WithLabelValues(operation).Observe(d.Seconds())
}

func (p *PrometheusRecorder) SetWaveSize(n int) {
	if p == nil || p.waveSize == nil {
		return
	}
	p.waveSize.Set(float64(n))
}

func (p *PrometheusRecorder) AddTransferred(operation string, n int) {
	if p == nil || p.transferred == nil || n <= 0 {
		return
	}
	p.transferred.WithLabelValues(operation).Add(float64(n))
}

func (p *PrometheusRecorder) IncStatusChange(operation, phase string) {
	if p == nil || p.statusChanges == nil {
		return
	}
	p.statusChanges.WithLabelValues(operation, phase).Inc()
}

func (p *PrometheusRecorder) IncSinkRetry() {
	if p == nil || p.sinkRetries == nil {
		return
	}
	p.sinkRetries.Inc()
}

func (p *PrometheusRecorder) IncSinkRetryExhausted() {
	if p == nil || p.sinkExhausted == nil {
		return
	}
	p.sinkExhausted.Inc()
}
