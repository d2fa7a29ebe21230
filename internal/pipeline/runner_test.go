package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/naromat/internal/metrics"
	"github.com/dgallion1/naromat/internal/parser"
	"github.com/dgallion1/naromat/internal/textfile"
)

const (
	chapterText   = "我が輩は猫である。\n// メモ\n「こんにちは！」\n"
	chapterOutput = "　我が輩は猫である。\n 「こんにちは！」\n"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func newTestRunner(include []string, stdout io.Writer) (*Runner, *metrics.Metrics) {
	m := metrics.New()
	return NewRunner(RunnerConfig{Include: include, Stdout: stdout}, m, discardLogger()), m
}

func TestRunner_FileToStdout(t *testing.T) {
	src := filepath.Join(t.TempDir(), "ch1.txt")
	writeFile(t, src, chapterText)

	var out bytes.Buffer
	r, m := newTestRunner(nil, &out)
	report, err := r.Run(context.Background(), src, "")
	require.NoError(t, err)

	assert.True(t, report.OK())
	assert.Equal(t, 1, report.Completed)
	assert.Equal(t, chapterOutput, out.String())
	require.Len(t, report.Jobs, 1)
	assert.Equal(t, 2, report.Jobs[0].Progress.Lines)
	assert.Equal(t, 1, report.Jobs[0].Progress.CommentLines)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Lines))
}

func TestRunner_FileToPath(t *testing.T) {
	src := filepath.Join(t.TempDir(), "ch1.txt")
	dest := filepath.Join(t.TempDir(), "out.txt")
	writeFile(t, src, chapterText)

	r, _ := newTestRunner(nil, nil)
	report, err := r.Run(context.Background(), src, dest)
	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.Equal(t, chapterOutput, readFile(t, dest))
}

func TestRunner_FileIntoDirectory(t *testing.T) {
	src := filepath.Join(t.TempDir(), "ch1.md")
	destDir := t.TempDir()
	writeFile(t, src, "本文です。\n")

	r, _ := newTestRunner(nil, nil)
	report, err := r.Run(context.Background(), src, destDir)
	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.Equal(t, "　本文です。\n", readFile(t, filepath.Join(destDir, "ch1.txt")))
}

func TestRunner_FileDestinationExists(t *testing.T) {
	src := filepath.Join(t.TempDir(), "ch1.txt")
	dest := filepath.Join(t.TempDir(), "out.txt")
	writeFile(t, src, chapterText)
	writeFile(t, dest, "keep")

	r, m := newTestRunner(nil, nil)
	report, err := r.Run(context.Background(), src, dest)
	require.NoError(t, err)

	assert.False(t, report.OK())
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, StatusFailed, report.Jobs[0].Status)
	assert.Equal(t, "writing", report.Jobs[0].Phase)
	assert.Equal(t, "keep", readFile(t, dest))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Documents.WithLabelValues(metrics.OutcomeFailed)))
}

func TestRunner_SourceMissing(t *testing.T) {
	r, _ := newTestRunner(nil, nil)
	_, err := r.Run(context.Background(), filepath.Join(t.TempDir(), "nope.txt"), "")

	var loadErr *textfile.LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestRunner_DirectoryMirrorsTree(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "novel")
	writeFile(t, filepath.Join(src, "ch1.txt"), chapterText)
	writeFile(t, filepath.Join(src, "part2", "ch2.txt"), "二章。\n")

	r, _ := newTestRunner(nil, nil)
	report, err := r.Run(context.Background(), src, "")
	require.NoError(t, err)

	dest := src + DestSuffix
	assert.True(t, report.OK())
	assert.Equal(t, 2, report.Completed)
	assert.Equal(t, chapterOutput, readFile(t, filepath.Join(dest, "ch1.txt")))
	assert.Equal(t, "　二章。\n", readFile(t, filepath.Join(dest, "part2", "ch2.txt")))
}

func TestRunner_DirectoryIncludeFilter(t *testing.T) {
	src := t.TempDir()
	dest := filepath.Join(t.TempDir(), "out")
	writeFile(t, filepath.Join(src, "ch1.txt"), chapterText)
	writeFile(t, filepath.Join(src, "notes", "plot.md"), "# メモ\n")

	r, m := newTestRunner([]string{"**/*.txt"}, nil)
	report, err := r.Run(context.Background(), src, dest)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Completed)
	assert.Equal(t, 1, report.Skipped)
	assert.True(t, report.OK())
	assert.FileExists(t, filepath.Join(dest, "ch1.txt"))
	assert.NoFileExists(t, filepath.Join(dest, "notes", "plot.txt"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Documents.WithLabelValues(metrics.OutcomeSkipped)))
}

func TestRunner_DirectorySkipsDestinationInsideSource(t *testing.T) {
	src := t.TempDir()
	dest := filepath.Join(src, "out")
	writeFile(t, filepath.Join(src, "ch1.txt"), chapterText)
	writeFile(t, filepath.Join(dest, "old.txt"), "old")

	r, _ := newTestRunner(nil, nil)
	report, err := r.Run(context.Background(), src, dest)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Completed)
	assert.NoDirExists(t, filepath.Join(dest, "out"))
}

func TestRunner_DirectoryContinuesAfterFailure(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()
	writeFile(t, filepath.Join(src, "a.txt"), "一。\n")
	writeFile(t, filepath.Join(src, "b.txt"), "二。\n")
	writeFile(t, filepath.Join(dest, "a.txt"), "existing")

	r, _ := newTestRunner(nil, nil)
	report, err := r.Run(context.Background(), src, dest)
	require.NoError(t, err)

	assert.False(t, report.OK())
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Completed)
	assert.Equal(t, "existing", readFile(t, filepath.Join(dest, "a.txt")))
	assert.Equal(t, "　二。\n", readFile(t, filepath.Join(dest, "b.txt")))
}

func TestRunner_CancelledContext(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "a.txt"), "一。\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r, _ := newTestRunner(nil, nil)
	report, err := r.Run(ctx, src, filepath.Join(t.TempDir(), "out"))
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, report.Completed)
}

func TestOrchestrator_SubmitAndGet(t *testing.T) {
	o := NewOrchestrator(parser.Options{}, time.Hour, metrics.New(), discardLogger())
	o.Start(context.Background())
	defer o.Stop()

	job, err := o.Submit("upload.txt", []byte(chapterText))
	require.NoError(t, err)

	got := o.GetJob(job.ID)
	require.NotNil(t, got)
	assert.Equal(t, chapterOutput, got.Result())
	assert.Equal(t, StatusCompleted, got.Snapshot().Status)
	assert.Equal(t, 1, o.Stored())
}

func TestOrchestrator_SubmitFailureNotStored(t *testing.T) {
	o := NewOrchestrator(parser.Options{Encoding: "klingon"}, time.Hour, nil, discardLogger())

	job, err := o.Submit("upload.txt", []byte("本文"))
	require.Error(t, err)
	assert.Equal(t, StatusFailed, job.Snapshot().Status)
	assert.Nil(t, o.GetJob(job.ID))
}
