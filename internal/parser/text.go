package parser

import (
	"fmt"
	"io"
)

// TextParser handles plain text manuscripts. Lines are kept exactly as
// written, comment lines included; filtering them is the formatter's job.
type TextParser struct {
	Encoding     string
	NormalizeNFC bool
}

func (p *TextParser) Parse(r io.Reader, filename string) (*Manuscript, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read text: %w", err)
	}

	text, err := DecodeText(data, p.Encoding)
	if err != nil {
		return nil, err
	}
	text = NormalizeLineBreaks(text)
	if p.NormalizeNFC {
		text = NormalizeNFC(text)
	}

	return &Manuscript{
		Title: baseTitle(filename, ".txt"),
		Text:  text,
	}, nil
}
