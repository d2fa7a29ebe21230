package typeset

import (
	"io"
	"strings"
)

// Chapter is the ordered set of lines built from one input text.
type Chapter struct {
	lines   []*Line
	dropped int
}

// NewChapter splits text on '\n' and builds a Line for every line that is
// not a comment. A trailing newline does not produce an empty last line.
func NewChapter(text string) *Chapter {
	c := &Chapter{}
	for _, raw := range splitTerminator(text, "\n") {
		if IsComment(raw) {
			c.dropped++
			continue
		}
		c.lines = append(c.lines, NewLine(raw))
	}
	return c
}

// Lines returns the lines in source order.
func (c *Chapter) Lines() []*Line {
	return c.lines
}

// DroppedComments is the number of comment lines filtered out.
func (c *Chapter) DroppedComments() int {
	return c.dropped
}

// String renders the chapter with lines joined by '\n' and no trailing
// newline.
func (c *Chapter) String() string {
	rendered := make([]string, len(c.lines))
	for i, l := range c.lines {
		rendered[i] = l.String()
	}
	return strings.Join(rendered, "\n")
}

// WriteTo writes each rendered line followed by '\n'.
func (c *Chapter) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, l := range c.lines {
		n, err := io.WriteString(w, l.String()+"\n")
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func splitTerminator(s, sep string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, sep)
	if parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return parts
}
