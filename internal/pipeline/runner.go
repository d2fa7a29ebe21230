package pipeline

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/dgallion1/naromat/internal/metrics"
	"github.com/dgallion1/naromat/internal/parser"
	"github.com/dgallion1/naromat/internal/textfile"
)

// DestSuffix is appended to a source directory to name the default
// destination directory.
const DestSuffix = "_narou"

// DefaultInclude matches every file below the source directory.
var DefaultInclude = []string{"**/*"}

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	Parser  parser.Options
	Include []string  // doublestar patterns matched against slash-separated relative paths
	Stdout  io.Writer // receives output when a single file has no destination
}

// Runner formats a single file or a whole directory tree.
type Runner struct {
	include []string
	worker  *Worker
	log     *slog.Logger
}

func NewRunner(cfg RunnerConfig, m *metrics.Metrics, log *slog.Logger) *Runner {
	include := cfg.Include
	if len(include) == 0 {
		include = DefaultInclude
	}
	stdout := cfg.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	return &Runner{
		include: include,
		worker:  NewWorker(cfg.Parser, m, stdout, log),
		log:     log,
	}
}

// Report summarizes one Run.
type Report struct {
	Jobs      []JobSnapshot
	Completed int
	Failed    int
	Skipped   int
}

// OK reports whether no file failed.
func (r *Report) OK() bool {
	return r.Failed == 0
}

func (r *Report) add(job *Job) {
	snap := job.Snapshot()
	r.Jobs = append(r.Jobs, snap)
	switch snap.Status {
	case StatusCompleted:
		r.Completed++
	case StatusSkipped:
		r.Skipped++
	default:
		r.Failed++
	}
}

// Run formats source into dest. A file source with an empty dest is
// written to stdout; a file source whose dest is an existing directory is
// written inside it. A directory source is mirrored below dest, which
// defaults to the source path plus DestSuffix.
//
// The returned error covers problems with source or dest themselves;
// per-file failures are only recorded in the report.
func (r *Runner) Run(ctx context.Context, source, dest string) (*Report, error) {
	if !utf8.ValidString(source) {
		return nil, &textfile.LoadError{Path: source, Err: textfile.ErrInvalidPath}
	}
	info, err := os.Stat(source)
	if err != nil {
		return nil, &textfile.LoadError{Path: source, Err: err}
	}

	report := &Report{}
	if !info.IsDir() {
		job := NewJob(source, fileDest(source, dest))
		r.worker.Process(ctx, job)
		report.add(job)
		return report, nil
	}

	if dest == "" {
		dest = filepath.Clean(source) + DestSuffix
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return nil, &textfile.OutputError{Op: textfile.OpCreate, Path: dest, Err: err}
	}
	destAbs, err := filepath.Abs(dest)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", dest, err)
	}

	r.log.Info("formatting directory", "source", source, "dest", dest, "include", r.include)
	err = filepath.WalkDir(source, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			job := NewJob(path, "")
			r.worker.fail(r.log.With("job_id", job.ID, "source", path), job, "reading", walkErr)
			report.add(job)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if abs, err := filepath.Abs(path); err == nil && abs == destAbs {
				return fs.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(source, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, textfile.OutputName(rel))
		job := NewJob(path, target)
		defer report.add(job)

		if !d.Type().IsRegular() && d.Type()&fs.ModeSymlink == 0 {
			r.worker.Skip(job, "not a regular file")
			return nil
		}
		if !r.matches(filepath.ToSlash(rel)) {
			r.worker.Skip(job, "excluded")
			return nil
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			r.worker.fail(r.log.With("job_id", job.ID, "source", path), job, "writing",
				&textfile.OutputError{Op: textfile.OpCreate, Path: filepath.Dir(target), Err: err})
			return nil
		}
		r.worker.Process(ctx, job)
		return nil
	})
	r.log.Info("directory done",
		"completed", report.Completed,
		"failed", report.Failed,
		"skipped", report.Skipped,
	)
	return report, err
}

func (r *Runner) matches(rel string) bool {
	for _, pattern := range r.include {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

func fileDest(source, dest string) string {
	if dest == "" {
		return ""
	}
	if info, err := os.Stat(dest); err == nil && info.IsDir() {
		return filepath.Join(dest, textfile.OutputName(filepath.Base(source)))
	}
	return dest
}
