package exchange

import (
	"context"
	"sync"
	"time"
)

// DefaultBatchSize is the number of relays contacted concurrently.
const DefaultBatchSize = 10

// Task runs one relay exchange.
type Task func(ctx context.Context, relay string) error

// Outcome is the settled result of one relay exchange.
type Outcome struct {
	Relay    string
	Wave     int
	Err      error
	Duration time.Duration
}

// OK reports whether the exchange succeeded.
func (o Outcome) OK() bool { return o.Err == nil }

// WaveFunc is called after each wave settles with that wave's outcomes.
type WaveFunc func(wave, waves int, outcomes []Outcome)

// Waves returns how many waves RunBatches uses for n relays.
func Waves(n, size int) int {
	if n <= 0 {
		return 0
	}
	if size < 1 {
		size = 1
	}
	return (n + size - 1) / size
}

// RunBatches runs task for every relay, size relays at a time. A wave starts
// only after every exchange of the previous wave has settled, and a failed
// exchange never stops the others. Outcomes are returned in relay order.
func RunBatches(ctx context.Context, relays []string, size int, task Task, onWave WaveFunc) []Outcome {
	if len(relays) == 0 {
		return nil
	}
	if size < 1 {
		size = DefaultBatchSize
	}

	outcomes := make([]Outcome, len(relays))
	waves := Waves(len(relays), size)

	for cursor, wave := 0, 1; cursor < len(relays); cursor, wave = cursor+size, wave+1 {
		end := min(cursor+size, len(relays))

		var wg sync.WaitGroup
		for i := cursor; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				start := time.Now()
				err := task(ctx, relays[i])
				outcomes[i] = Outcome{Relay: relays[i], Wave: wave, Err: err, Duration: time.Since(start)}
			}(i)
		}
		wg.Wait()

		if onWave != nil {
			onWave(wave, waves, outcomes[cursor:end])
		}
	}
	return outcomes
}
