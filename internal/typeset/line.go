package typeset

import (
	"regexp"
	"strings"
)

// sentencePattern matches greedily up to a terminator or the end of the
// text, so a terminator inside an annotation such as [X:.] never splits it.
var sentencePattern = regexp.MustCompile(`.*(?:` + alternation(Terminators) + `|\z)`)

// Line is one non-comment source line broken into sentences.
type Line struct {
	sentences []*Sentence
}

// NewLine trims raw, prefixes the speech or narration indent and splits the
// result into sentences.
func NewLine(raw string) *Line {
	text := indent(strings.TrimSpace(raw))
	parts := sentencePattern.FindAllString(text, -1)
	sentences := make([]*Sentence, 0, len(parts))
	for _, part := range parts {
		sentences = append(sentences, NewSentence(part))
	}
	return &Line{sentences: sentences}
}

// Sentences returns the sentences in source order.
func (l *Line) Sentences() []*Sentence {
	return l.sentences
}

// String renders every sentence and joins them without a separator.
func (l *Line) String() string {
	var b strings.Builder
	for _, s := range l.sentences {
		b.WriteString(s.String())
	}
	return b.String()
}

func indent(text string) string {
	if IsSpeech(text) {
		return SpeechIndent + text
	}
	return NarrationIndent + text
}
