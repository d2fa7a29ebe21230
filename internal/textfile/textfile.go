// Package textfile loads a manuscript from disk, formats it and saves the
// result without ever overwriting an existing file.
package textfile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/naromat/internal/parser"
	"github.com/dgallion1/naromat/internal/typeset"
)

var (
	// ErrInvalidPath is returned when a path is not valid UTF-8 text.
	ErrInvalidPath = errors.New("path is not valid text")

	// ErrAlreadyExists is returned when the destination is already present.
	ErrAlreadyExists = errors.New("destination already exists")
)

// LoadError reports a source that could not be opened, read or parsed.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("cannot load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Output operations named by OutputError.
const (
	OpCreate = "create"
	OpWrite  = "write"
	OpFlush  = "flush"
)

// OutputError reports a failure while creating, writing or flushing the
// destination file.
type OutputError struct {
	Op   string
	Path string
	Err  error
}

func (e *OutputError) Error() string {
	return fmt.Sprintf("cannot %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *OutputError) Unwrap() error { return e.Err }

// TextFile is a loaded manuscript and its formatted chapter.
type TextFile struct {
	path       string
	manuscript *parser.Manuscript
	chapter    *typeset.Chapter
}

// Load reads path with the reader matching its extension. Unknown
// extensions are read as plain text.
func Load(path string, opts parser.Options) (*TextFile, error) {
	if !utf8.ValidString(path) {
		return nil, &LoadError{Path: path, Err: ErrInvalidPath}
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	defer f.Close()

	return Read(f, path, opts)
}

// Read builds a TextFile from r; name selects the reader and the title.
func Read(r io.Reader, name string, opts parser.Options) (*TextFile, error) {
	ms, err := parser.ForFileOrText(name, opts).Parse(r, name)
	if err != nil {
		return nil, &LoadError{Path: name, Err: err}
	}
	return &TextFile{
		path:       name,
		manuscript: ms,
		chapter:    typeset.NewChapter(parser.NormalizeLineBreaks(ms.Text)),
	}, nil
}

// Path is the source path or name the file was read from.
func (t *TextFile) Path() string { return t.path }

// Title is the manuscript title from metadata or the filename.
func (t *TextFile) Title() string { return t.manuscript.Title }

// Chapter exposes the parsed chapter.
func (t *TextFile) Chapter() *typeset.Chapter { return t.chapter }

// Formatted renders the whole manuscript without a trailing newline.
func (t *TextFile) Formatted() string {
	return t.chapter.String()
}

// WriteTo writes the formatted manuscript followed by one newline.
func (t *TextFile) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, t.Formatted()+"\n")
	return int64(n), err
}

// FormatAndSave writes the formatted manuscript to dest. An existing dest
// is never touched. A dest this call created is removed again if writing
// it fails.
func (t *TextFile) FormatAndSave(dest string) error {
	if !utf8.ValidString(dest) {
		return &OutputError{Op: OpCreate, Path: dest, Err: ErrInvalidPath}
	}
	f, err := touch(dest)
	if err != nil {
		return err
	}
	return t.save(dest, f)
}

// destFile is the part of *os.File that save needs.
type destFile interface {
	io.Writer
	Sync() error
	Close() error
}

func (t *TextFile) save(dest string, f destFile) error {
	err := t.write(dest, f)
	if cerr := f.Close(); cerr != nil && err == nil {
		err = &OutputError{Op: OpFlush, Path: dest, Err: cerr}
	}
	if err != nil {
		os.Remove(dest)
		return err
	}
	return nil
}

func (t *TextFile) write(dest string, f destFile) error {
	w := bufio.NewWriter(f)
	if _, err := t.WriteTo(w); err != nil {
		return &OutputError{Op: OpWrite, Path: dest, Err: err}
	}
	if err := w.Flush(); err != nil {
		return &OutputError{Op: OpFlush, Path: dest, Err: err}
	}
	if err := f.Sync(); err != nil {
		return &OutputError{Op: OpFlush, Path: dest, Err: err}
	}
	return nil
}

// touch creates dest exclusively so a file appearing between the check and
// the create is still reported as existing.
func touch(dest string) (*os.File, error) {
	if _, err := os.Lstat(dest); err == nil {
		return nil, fmt.Errorf("%s: %w", dest, ErrAlreadyExists)
	}
	f, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("%s: %w", dest, ErrAlreadyExists)
	}
	if err != nil {
		return nil, &OutputError{Op: OpCreate, Path: dest, Err: err}
	}
	return f, nil
}

// OutputName maps a source file name to the name of its formatted copy.
// Plain text keeps its name; other readers produce a .txt file.
func OutputName(name string) string {
	if parser.IsPlainText(name) {
		return name
	}
	return strings.TrimSuffix(name, filepath.Ext(name)) + ".txt"
}
