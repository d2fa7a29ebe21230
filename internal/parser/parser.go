package parser

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// ErrUnsupported is returned by ForFile for extensions without a reader.
var ErrUnsupported = errors.New("unsupported file extension")

// Manuscript is the annotated source text extracted from one document.
type Manuscript struct {
	Title string // From metadata or filename
	Text  string // Lines separated by '\n'
}

// Parser extracts manuscript text from raw document bytes.
type Parser interface {
	Parse(r io.Reader, filename string) (*Manuscript, error)
}

// Options tune the readers that deal with raw text.
type Options struct {
	Encoding          string // auto, utf-8, shift_jis or euc-jp
	NormalizeNFC      bool
	FallbackPdftotext bool
}

// SupportedExtensions lists file extensions with a dedicated reader.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string, opts Options) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextParser{Encoding: opts.Encoding, NormalizeNFC: opts.NormalizeNFC}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".pdf":
		return &PDFParser{FallbackPdftotext: opts.FallbackPdftotext}, nil
	case ".docx":
		return &DOCXParser{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, ext)
	}
}

// ForFileOrText is ForFile with plain text as the fallback, so manuscripts
// without an extension (or with an unusual one) are still read.
func ForFileOrText(filename string, opts Options) Parser {
	p, err := ForFile(filename, opts)
	if err != nil {
		return &TextParser{Encoding: opts.Encoding, NormalizeNFC: opts.NormalizeNFC}
	}
	return p
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// IsPlainText reports whether filename is read by the TextParser. Output
// names keep their extension only in that case.
func IsPlainText(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return ext == ".txt" || !SupportedExtensions[ext]
}

func baseTitle(filename string, exts ...string) string {
	title := filepath.Base(filename)
	for _, ext := range exts {
		title = strings.TrimSuffix(title, ext)
	}
	return title
}

// joinBlocks joins non-empty blocks with a blank line between them.
func joinBlocks(blocks []string) string {
	kept := blocks[:0]
	for _, b := range blocks {
		if strings.TrimSpace(b) != "" {
			kept = append(kept, b)
		}
	}
	return strings.Join(kept, "\n\n")
}
