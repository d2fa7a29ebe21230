package pipeline

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/dgallion1/naromat/internal/metrics"
	"github.com/dgallion1/naromat/internal/parser"
)

// CleanupInterval is how often expired results are evicted.
const CleanupInterval = time.Minute

// Orchestrator formats uploaded documents and keeps their results for
// later download.
type Orchestrator struct {
	results *ResultStore
	worker  *Worker
	log     *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOrchestrator creates an orchestrator whose results live for ttl.
func NewOrchestrator(opts parser.Options, ttl time.Duration, m *metrics.Metrics, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		results: NewResultStore(ttl),
		worker:  NewWorker(opts, m, io.Discard, log),
		log:     log,
	}
}

// Start launches the result cleanup loop.
func (o *Orchestrator) Start(ctx context.Context) {
	loopCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				o.results.Cleanup()
			}
		}
	}()
}

// Stop ends the cleanup loop and waits for it.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()
}

// Format formats data read from filename without keeping the result.
func (o *Orchestrator) Format(filename string, data []byte) (*Job, error) {
	job := NewJob(filename, "")
	if err := o.worker.FormatData(job, data); err != nil {
		return job, err
	}
	return job, nil
}

// Submit formats data like Format and stores the finished job. Failed
// jobs are not stored.
func (o *Orchestrator) Submit(filename string, data []byte) (*Job, error) {
	job, err := o.Format(filename, data)
	if err != nil {
		return job, err
	}
	o.results.Put(job)
	return job, nil
}

// GetJob returns a stored job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.results.Get(id)
}

// Stored returns the number of results currently kept.
func (o *Orchestrator) Stored() int {
	return o.results.Len()
}
