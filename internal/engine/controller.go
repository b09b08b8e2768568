// Stepping controller: one-period advancement, frame history and the driver
// loop that paces steps for external consumers.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrTainted is returned by Step after a failed step until Reset or Seek.
var ErrTainted = errors.New("simulation state is unusable after a failed step")

// Controller wraps a Simulation with pause, resume, reset and seek. It is
// safe for concurrent use.
type Controller struct {
	Interval time.Duration // Pace of Run between steps
	OnFrame  func(*Result) // Called after every successful step
	OnError  func(error)   // Called when Run hits a failed step

	mu      sync.Mutex
	runID   uuid.UUID
	params  Params
	catalog *Catalog
	sim     *Simulation
	frames  []*Result
	paused  bool
	failed  error
}

// NewController builds the initial simulation. The resolved seed is kept so
// Reset and Seek replay the same run.
func NewController(p Params, cat *Catalog) (*Controller, error) {
	sim, err := Build(p, cat)
	if err != nil {
		return nil, err
	}
	return &Controller{
		Interval: time.Second,
		runID:    uuid.New(),
		params:   sim.Params,
		catalog:  cat,
		sim:      sim,
	}, nil
}

// RunID identifies the current run. Reset starts a new one.
func (c *Controller) RunID() uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runID
}

// Params returns the run parameters with the seed resolved.
func (c *Controller) Params() Params {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.params
}

// Step advances one period and records its frame. Beyond the horizon it
// returns nil, nil. A failed step records nothing.
func (c *Controller) Step() (*Result, error) {
	c.mu.Lock()
	r, err := c.stepLocked()
	cb := c.OnFrame
	c.mu.Unlock()

	if r != nil && cb != nil {
		cb(r)
	}
	return r, err
}

func (c *Controller) stepLocked() (*Result, error) {
	if c.failed != nil {
		return nil, fmt.Errorf("%w: %w", ErrTainted, c.failed)
	}
	r, err := advance(c.sim)
	if err != nil {
		c.failed = err
		slog.Error("step failed", "run", c.runID, "step", c.sim.Step, "error", err)
		return nil, err
	}
	if r != nil {
		c.frames = append(c.frames, r)
	}
	return r, nil
}

// advance runs one step, turning a panic into ErrStepFailed.
func advance(sim *Simulation) (r *Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			r, err = nil, fmt.Errorf("%w: step %d: %v", ErrStepFailed, sim.Step, p)
		}
	}()
	r, err = sim.Advance()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStepFailed, err)
	}
	return r, nil
}

// Reset rebuilds the simulation at step 0 under a new run id.
func (c *Controller) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.rebuild(); err != nil {
		return err
	}
	c.runID = uuid.New()
	return nil
}

func (c *Controller) rebuild() error {
	sim, err := Build(c.params, c.catalog)
	if err != nil {
		return err
	}
	c.sim = sim
	c.frames = nil
	c.failed = nil
	return nil
}

// Seek moves to the given step. Going backwards replays from the start with
// the same seed, so the frames match the originals.
func (c *Controller) Seek(step int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if step < 0 {
		step = 0
	}
	step = min(step, c.sim.Horizon())
	if step < c.sim.Step || c.failed != nil {
		if err := c.rebuild(); err != nil {
			return err
		}
	}
	for c.sim.Step < step {
		if _, err := c.stepLocked(); err != nil {
			return err
		}
	}
	return nil
}

// Pause stops Run from stepping.
func (c *Controller) Pause() {
	c.mu.Lock()
	c.paused = true
	c.mu.Unlock()
}

// Resume lets Run step again.
func (c *Controller) Resume() {
	c.mu.Lock()
	c.paused = false
	c.mu.Unlock()
}

// Paused reports whether Run is paused.
func (c *Controller) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// Done reports whether the horizon has been reached.
func (c *Controller) Done() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sim.Done()
}

// CurrentStep is the number of completed periods.
func (c *Controller) CurrentStep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sim.Step
}

// Frames returns every recorded frame, oldest first.
func (c *Controller) Frames() []*Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Result(nil), c.frames...)
}

// Frame returns the frame for a 1-based step.
func (c *Controller) Frame(step int) (*Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if step < 1 || step > len(c.frames) {
		return nil, false
	}
	return c.frames[step-1], true
}

// Latest returns the most recent frame.
func (c *Controller) Latest() (*Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.frames) == 0 {
		return nil, false
	}
	return c.frames[len(c.frames)-1], true
}

// View calls fn with the simulation under the controller's lock. fn must not
// retain or modify it.
func (c *Controller) View(fn func(*Simulation)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c.sim)
}

// Run steps at Interval until the horizon, a failed step or ctx is done.
func (c *Controller) Run(ctx context.Context) error {
	slog.Info("controller started", "run", c.RunID(), "step", c.CurrentStep(), "interval", c.Interval)
	defer func() { slog.Info("controller stopped", "run", c.RunID(), "step", c.CurrentStep()) }()

	for {
		if c.Paused() {
			// Paused; check again shortly.
			if err := sleep(ctx, 100*time.Millisecond); err != nil {
				return nil
			}
			continue
		}

		start := time.Now()
		r, err := c.Step()
		if err != nil {
			if c.OnError != nil {
				c.OnError(err)
			}
			return err
		}
		if r == nil {
			return nil
		}

		if elapsed := time.Since(start); elapsed < c.Interval {
			if err := sleep(ctx, c.Interval-elapsed); err != nil {
				return nil
			}
		} else if ctx.Err() != nil {
			return nil
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
