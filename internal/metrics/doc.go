// Package metrics records relay exchange metrics.
//
// Components receive a Recorder and default to NoopRecorder, so metrics stay
// optional:
//
//	recorder := metrics.NewPrometheusRecorder(registry)
//	engine := exchange.New(cfg, dialer).WithRecorder(recorder)
//
// StatusObserver plugs the same recorder into a status.Tracker.
package metrics
