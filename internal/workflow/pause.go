// Package workflow drives plan execution: dependency-ordered step
// scheduling, credit admission, pause/resume, and status snapshots.
package workflow

import (
	"context"
	"fmt"
	"log"
	"sync"
)

// PauseController holds the pause/stop state for one executing plan.
// Pausing is cooperative: running steps finish, new steps wait here.
type PauseController struct {
	paused  bool
	stopped bool
	mu      sync.RWMutex
	cond    *sync.Cond
}

// NewPauseController creates a PauseController.
func NewPauseController() *PauseController {
	p := &PauseController{}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Pause halts scheduling of new steps. Running steps are not touched.
func (p *PauseController) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.paused {
		p.paused = true
		log.Printf("[workflow] paused, no new steps will start")
	}
}

// Resume lifts a pause and wakes anything waiting to schedule.
func (p *PauseController) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.paused {
		p.paused = false
		log.Printf("[workflow] resumed, step scheduling enabled")
		p.cond.Broadcast()
	}
}

// Stop ends execution permanently and unblocks any WaitIfPaused callers.
func (p *PauseController) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.stopped {
		p.stopped = true
		p.cond.Broadcast()
	}
}

// IsPaused reports whether scheduling is currently paused.
func (p *PauseController) IsPaused() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.paused
}

// IsStopped reports whether the controller has been stopped.
func (p *PauseController) IsStopped() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stopped
}

// WaitIfPaused blocks while paused. Returns an error when the context is
// cancelled or the controller is stopped.
func (p *PauseController) WaitIfPaused(ctx context.Context) error {
	p.mu.Lock()
	if p.paused && !p.stopped {
		// One goroutine to wake the cond on context cancellation.
		done := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				p.mu.Lock()
				p.cond.Broadcast()
				p.mu.Unlock()
			case <-done:
			}
		}()

		for p.paused && !p.stopped {
			p.cond.Wait()
			if ctx.Err() != nil {
				close(done)
				p.mu.Unlock()
				return ctx.Err()
			}
		}
		close(done)
	}
	if p.stopped {
		p.mu.Unlock()
		return fmt.Errorf("execution stopped")
	}
	p.mu.Unlock()
	return nil
}
