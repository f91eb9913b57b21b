// Package scheduler runs the worker's periodic drivers. Each job ticks on
// its own fixed interval with no ordering between jobs; the only
// cross-job coordination is the lease manager's two gates. A fault in one
// tick is contained to that tick and never stops the loop.
package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/easelkit/easel/internal/lease"
	"github.com/easelkit/easel/internal/metrics"
)

// Job is one periodic driver.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Driver runs a set of jobs until its context is cancelled.
type Driver struct {
	jobs []Job
	met  *metrics.Metrics
	wg   sync.WaitGroup
}

// New creates a driver over the given jobs.
func New(met *metrics.Metrics, jobs ...Job) *Driver {
	return &Driver{jobs: jobs, met: met}
}

// Start launches one goroutine per job and blocks until the context is
// cancelled and every loop has exited.
func (d *Driver) Start(ctx context.Context) error {
	log.Printf("[Driver] starting %d periodic jobs", len(d.jobs))
	for _, job := range d.jobs {
		d.wg.Add(1)
		go d.loop(ctx, job)
	}
	<-ctx.Done()
	d.wg.Wait()
	log.Printf("[Driver] all job loops exited")
	return nil
}

func (d *Driver) loop(ctx context.Context, job Job) {
	defer d.wg.Done()

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	// First tick immediately rather than waiting a full interval.
	d.tick(ctx, job)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.tick(ctx, job)
		}
	}
}

func (d *Driver) tick(ctx context.Context, job Job) {
	start := time.Now()
	err := job.Run(ctx)

	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, lease.ErrUnassigned), errors.Is(err, lease.ErrNoLease):
		// Expected steady idle state, not an error condition.
		outcome = "idle"
	case errors.Is(err, context.Canceled):
		return
	default:
		outcome = "error"
	}

	if d.met != nil {
		d.met.RecordTick(job.Name, outcome)
	}
	d.logTick(job.Name, outcome, time.Since(start), err)
}

// logTick emits one structured JSON line per tick.
func (d *Driver) logTick(job, outcome string, elapsed time.Duration, err error) {
	if outcome == "ok" || outcome == "idle" {
		// Healthy ticks stay quiet apart from metrics.
		return
	}
	event := map[string]any{
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"level":      "error",
		"component":  "driver",
		"event_type": "tick_failed",
		"job":        job,
		"elapsed_ms": elapsed.Milliseconds(),
		"error":      err.Error(),
	}
	line, marshalErr := json.Marshal(event)
	if marshalErr != nil {
		log.Printf("[Driver] %s tick failed: %v", job, err)
		return
	}
	log.Println(string(line))
}
