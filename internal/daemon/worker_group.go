package daemon

import (
	"context"
	"sync"
)

// WorkerGroup tracks daemon-owned goroutines and provides a safe shutdown
// boundary so we never call WaitGroup.Add concurrently with Wait.
type WorkerGroup struct {
	mu       sync.Mutex
	wg       sync.WaitGroup
	stopping bool
	active   int
}

// Go starts fn unless the group is stopping.
func (g *WorkerGroup) Go(fn func()) bool {
	if fn == nil {
		return false
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stopping {
		return false
	}

	g.wg.Add(1)
	g.active++
	go func() {
		defer func() {
			g.mu.Lock()
			g.active--
			g.mu.Unlock()
			g.wg.Done()
		}()
		fn()
	}()
	return true
}

// Active returns the number of running workers.
func (g *WorkerGroup) Active() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}

// StopAndWait refuses new workers and waits for running ones, bounded by ctx.
func (g *WorkerGroup) StopAndWait(ctx context.Context) error {
	g.mu.Lock()
	g.stopping = true
	g.mu.Unlock()

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
