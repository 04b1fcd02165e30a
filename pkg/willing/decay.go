package willing

import (
	"context"
	"sync"
	"time"
)

// Default decay parameters.
const (
	DefaultDecayInterval = 5 * time.Second
	DefaultDecayFactor   = 0.6
)

// decayTarget is the store surface the decay loop needs.
type decayTarget interface {
	DecayAll(factor float64) int
}

// DecayLoop periodically attenuates every stored score toward zero.
type DecayLoop struct {
	mu       sync.Mutex
	target   decayTarget
	interval time.Duration
	factor   float64
	onCycle  func(conversations int)
	cancel   context.CancelFunc
	done     chan struct{}

	cycles int64
}

// NewDecayLoop creates a decay loop over target. Non-positive interval or a
// factor outside (0, 1] fall back to the defaults.
func NewDecayLoop(target decayTarget, interval time.Duration, factor float64) *DecayLoop {
	if interval <= 0 {
		interval = DefaultDecayInterval
	}
	if factor <= 0 || factor > 1 {
		factor = DefaultDecayFactor
	}
	return &DecayLoop{
		target:   target,
		interval: interval,
		factor:   factor,
		done:     make(chan struct{}),
	}
}

// OnCycle registers a callback invoked after each decay pass with the number
// of conversations touched. Must be called before Start.
func (d *DecayLoop) OnCycle(fn func(conversations int)) {
	d.onCycle = fn
}

// Start launches the background goroutine. It runs until ctx is cancelled or
// Stop is called.
func (d *DecayLoop) Start(parentCtx context.Context) {
	ctx, cancel := context.WithCancel(parentCtx)
	d.mu.Lock()
	d.cancel = cancel
	d.mu.Unlock()

	go func() {
		defer close(d.done)
		ticker := time.NewTicker(d.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				d.RunOnce()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// RunOnce performs a single decay pass.
func (d *DecayLoop) RunOnce() {
	n := d.target.DecayAll(d.factor)
	d.mu.Lock()
	d.cycles++
	d.mu.Unlock()
	if d.onCycle != nil {
		d.onCycle(n)
	}
}

// Stop cancels the loop and waits for the goroutine to exit.
func (d *DecayLoop) Stop() {
	d.mu.Lock()
	cancel := d.cancel
	d.mu.Unlock()
	if cancel != nil {
		cancel()
		<-d.done
	}
}

// Cycles returns the number of completed decay passes.
func (d *DecayLoop) Cycles() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cycles
}

// Interval returns the decay period.
func (d *DecayLoop) Interval() time.Duration {
	return d.interval
}

// Factor returns the multiplicative decay factor.
func (d *DecayLoop) Factor() float64 {
	return d.factor
}
