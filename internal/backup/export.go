package backup

import (
	"encoding/json"
	"os"

	"git.home.luguber.info/inful/nostrbackup/internal/event"
)

// ExportFile writes events to path as indented JSON.
func ExportFile(path string, events []event.Event) error {
	if events == nil {
		events = []event.Event{}
	}
	data, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return wrap(ErrEncodeFailed, err, path)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
		return wrap(ErrSaveFailed, err, path)
	}
	return nil
}

// ReadFile reads an event list written by ExportFile or any JSON array of
// events.
func ReadFile(path string) ([]event.Event, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, wrap(ErrNotFound, err, path)
		}
		return nil, wrap(ErrQueryFailed, err, path)
	}
	events, err := event.ParseList(data)
	if err != nil {
		return nil, wrap(ErrDecodeFailed, err, path)
	}
	return events, nil
}
