package pipeline

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/dgallion1/naromat/internal/metrics"
	"github.com/dgallion1/naromat/internal/parser"
	"github.com/dgallion1/naromat/internal/textfile"
)

// Worker formats one document per job.
type Worker struct {
	opts    parser.Options
	metrics *metrics.Metrics
	log     *slog.Logger
	stdout  io.Writer
}

// NewWorker returns a worker that writes jobs without a destination to
// stdout.
func NewWorker(opts parser.Options, m *metrics.Metrics, stdout io.Writer, log *slog.Logger) *Worker {
	return &Worker{
		opts:    opts,
		metrics: m,
		log:     log,
		stdout:  stdout,
	}
}

// Process loads job.Source, formats it and writes it to job.Dest.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "source", job.Source)
	start := time.Now()

	if err := ctx.Err(); err != nil {
		w.fail(log, job, "queued", err)
		return
	}

	// Phase 1: Read
	job.SetStatus(StatusReading, "reading")
	log.Info("processing")
	tf, err := textfile.Load(job.Source, w.opts)
	if err != nil {
		w.fail(log, job, "reading", err)
		return
	}
	job.SetTitle(tf.Title())
	log.Debug("loaded", "title", tf.Title())

	// Phase 2: Format
	job.SetStatus(StatusFormatting, "formatting")
	ch := tf.Chapter()
	job.SetCounts(len(ch.Lines()), ch.DroppedComments())

	// Phase 3: Write
	job.SetStatus(StatusWriting, "writing")
	if job.Dest == "" {
		_, err = tf.WriteTo(w.stdout)
	} else {
		err = tf.FormatAndSave(job.Dest)
	}
	if err != nil {
		w.fail(log, job, "writing", err)
		return
	}

	job.SetStatus(StatusCompleted, "done")
	snap := job.Snapshot()
	w.metrics.ObserveDocument(metrics.OutcomeCompleted, snap.Progress.Lines, snap.Progress.CommentLines, time.Since(start))
	log.Info("saved",
		"dest", destLabel(job.Dest),
		"lines", snap.Progress.Lines,
		"comment_lines", snap.Progress.CommentLines,
		"duration", time.Since(start),
	)
}

// FormatData formats an uploaded document in memory and keeps the result
// on the job.
func (w *Worker) FormatData(job *Job, data []byte) error {
	log := w.log.With("job_id", job.ID, "source", job.Source)
	start := time.Now()

	job.SetStatus(StatusReading, "reading")
	tf, err := textfile.Read(bytes.NewReader(data), job.Source, w.opts)
	if err != nil {
		w.fail(log, job, "reading", err)
		return err
	}
	job.SetTitle(tf.Title())

	job.SetStatus(StatusFormatting, "formatting")
	ch := tf.Chapter()
	job.SetCounts(len(ch.Lines()), ch.DroppedComments())
	job.SetResult(tf.Formatted() + "\n")

	job.SetStatus(StatusCompleted, "done")
	w.metrics.ObserveDocument(metrics.OutcomeCompleted, len(ch.Lines()), ch.DroppedComments(), time.Since(start))
	log.Info("formatted upload", "lines", len(ch.Lines()), "comment_lines", ch.DroppedComments())
	return nil
}

// Skip marks a job that was deliberately not processed.
func (w *Worker) Skip(job *Job, reason string) {
	job.SetStatus(StatusSkipped, reason)
	w.metrics.ObserveDocument(metrics.OutcomeSkipped, 0, 0, 0)
	w.log.Debug("skipped", "job_id", job.ID, "source", job.Source, "reason", reason)
}

func (w *Worker) fail(log *slog.Logger, job *Job, phase string, err error) {
	job.Fail(phase, err)
	w.metrics.ObserveDocument(metrics.OutcomeFailed, 0, 0, 0)
	log.Error("format failed", "phase", phase, "error", err)
}

func destLabel(dest string) string {
	if dest == "" {
		return "stdout"
	}
	return dest
}
