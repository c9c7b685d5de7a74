package metrics

import "git.home.luguber.info/inful/nostrbackup/internal/status"

// StatusObserver counts status transitions and transferred events.
type StatusObserver struct {
	Recorder  Recorder
	Operation string
}

func (o StatusObserver) OnStatusChange(_ string, phase status.Phase, delta int) {
	if o.Recorder == nil {
		return
	}
	if delta > 0 {
		o.Recorder.AddTransferred(o.Operation, delta)
		return
	}
	o.Recorder.IncStatusChange(o.Operation, string(phase))
}
