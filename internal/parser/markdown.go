package parser

import (
	"bytes"
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownParser handles Markdown manuscripts using goldmark. Headings and
// paragraphs become text blocks separated by a blank line; block quotes are
// author notes and are skipped, matching the '>' comment-line convention.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) (*Manuscript, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	src = []byte(NormalizeLineBreaks(string(src)))

	md := goldmark.New()
	reader := text.NewReader(src)
	doc := md.Parser().Parse(reader)

	ms := &Manuscript{
		Title: baseTitle(filename, ".md", ".markdown"),
	}

	var blocks []string
	titled := false
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			title := extractText(node, src)
			if !titled && node.Level == 1 && title != "" {
				ms.Title = title
				titled = true
			}
			blocks = append(blocks, title)
		case *ast.Blockquote, *ast.ThematicBreak, *ast.HTMLBlock:
			continue
		default:
			blocks = append(blocks, extractText(n, src))
		}
	}

	ms.Text = joinBlocks(blocks)
	return ms, nil
}

// extractText gets the text content of a goldmark AST node, keeping soft
// and hard line breaks as '\n'.
func extractText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	if n.Type() == ast.TypeBlock && !n.HasChildren() {
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			buf.Write(line.Value(src))
		}
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *ast.Text:
			buf.Write(t.Segment.Value(src))
			if t.HardLineBreak() || t.SoftLineBreak() {
				buf.WriteByte('\n')
			}
		case *ast.String:
			buf.Write(t.Value)
		default:
			if c.Type() == ast.TypeBlock && buf.Len() > 0 {
				buf.WriteByte('\n')
			}
			buf.WriteString(extractText(c, src))
		}
	}
	return strings.TrimSpace(buf.String())
}
