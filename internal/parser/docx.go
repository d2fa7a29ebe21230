package parser

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/fumiama/go-docx"
)

// DOCXParser handles .docx manuscripts. Each paragraph is one line; the
// first Heading1/Title paragraph also names the manuscript.
type DOCXParser struct{}

func (p *DOCXParser) Parse(r io.Reader, filename string) (*Manuscript, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read docx: %w", err)
	}

	doc, err := docx.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}

	ms := &Manuscript{
		Title: baseTitle(filename, ".docx"),
	}

	var lines []string
	titled := false
	for _, item := range doc.Document.Body.Items {
		para, ok := item.(*docx.Paragraph)
		if !ok {
			continue
		}
		text := docxParagraphText(para)
		if !titled && text != "" && docxIsTitle(para) {
			ms.Title = text
			titled = true
		}
		lines = append(lines, text)
	}

	ms.Text = strings.Join(lines, "\n")
	return ms, nil
}

func docxIsTitle(para *docx.Paragraph) bool {
	if para.Properties == nil || para.Properties.Style == nil {
		return false
	}
	style := para.Properties.Style.Val
	return strings.EqualFold(style, "Title") ||
		strings.EqualFold(style, "Heading1") ||
		strings.EqualFold(style, "heading 1")
}

func docxParagraphText(para *docx.Paragraph) string {
	var buf strings.Builder
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range run.Children {
			if t, ok := rc.(*docx.Text); ok {
				buf.WriteString(t.Text)
			}
		}
	}
	return strings.TrimSpace(buf.String())
}
