package typeset

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/rivo/uniseg"
)

// Pass is one rewrite step of the sentence pipeline.
type Pass struct {
	Name  string
	Apply func(string) string
}

// Passes run left to right on every sentence. Emphasis must stay ahead of
// ruby, and both ahead of comment removal.
var Passes = []Pass{
	{Name: "exclamation-spacing", Apply: SpaceExclamations},
	{Name: "emphasis", Apply: ConvertEmphasis},
	{Name: "ruby", Apply: ConvertRuby},
	{Name: "comment", Apply: DropComments},
}

var (
	exclamationPattern = regexp.MustCompile(alternation(Exclamations))

	// Base and gloss may be empty but never contain brackets. A span such
	// as [#注:ちゅう] is ruby, not a comment, since ruby runs first.
	emphasisPattern = regexp.MustCompile(`\[([^\[\]]*?):\.\]`)
	rubyPattern     = regexp.MustCompile(`\[([^\[\]]*?):([^\[\]]*?)\]`)
	commentPattern  = regexp.MustCompile(`\[#[^\]]*\]`)
)

// Sentence is a run of text ending at a terminator or at the end of a line.
type Sentence struct {
	raw string
}

// NewSentence keeps raw with trailing whitespace removed.
func NewSentence(raw string) *Sentence {
	return &Sentence{raw: trimRight(raw)}
}

// Raw returns the untransformed text.
func (s *Sentence) Raw() string {
	return s.raw
}

// String renders the sentence through Passes.
func (s *Sentence) String() string {
	return Render(s.raw)
}

// Render applies every pass in order. Trailing whitespace is trimmed after
// each pass, so a space added after a sentence-final mark is dropped.
func Render(raw string) string {
	text := trimRight(raw)
	for _, p := range Passes {
		text = trimRight(p.Apply(text))
	}
	return text
}

// SpaceExclamations inserts FullWidthSpace after each exclamation or
// question mark not directly followed by a closing bracket.
func SpaceExclamations(text string) string {
	matches := exclamationPattern.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return text
	}
	var b strings.Builder
	b.Grow(len(text) + len(matches)*len(FullWidthSpace))
	last := 0
	for _, m := range matches {
		b.WriteString(text[last:m[1]])
		last = m[1]
		if !startsWithClosingBracket(text[m[1]:]) {
			b.WriteString(FullWidthSpace)
		}
	}
	b.WriteString(text[last:])
	return b.String()
}

// ConvertEmphasis rewrites [TEXT:.] to ｜TEXT《・・》 with one dot per
// user-perceived character of TEXT.
func ConvertEmphasis(text string) string {
	return emphasisPattern.ReplaceAllStringFunc(text, func(span string) string {
		base := emphasisPattern.FindStringSubmatch(span)[1]
		dots := strings.Repeat(EmphasisDot, uniseg.GraphemeClusterCount(base))
		return annotate(base, dots)
	})
}

// ConvertRuby rewrites [BASE:GLOSS] to ｜BASE《GLOSS》. Unbalanced brackets
// are left as they are.
func ConvertRuby(text string) string {
	return rubyPattern.ReplaceAllString(text, RubySeparator+"${1}"+RubyOpen+"${2}"+RubyClose)
}

// DropComments deletes every [#...] span.
func DropComments(text string) string {
	return commentPattern.ReplaceAllString(text, "")
}

func annotate(base, payload string) string {
	return RubySeparator + base + RubyOpen + payload + RubyClose
}

func startsWithClosingBracket(s string) bool {
	if s == "" {
		return false
	}
	r, _ := utf8.DecodeRuneInString(s)
	return strings.ContainsRune(ClosingBrackets, r)
}

func alternation(tokens []string) string {
	quoted := make([]string, len(tokens))
	for i, t := range tokens {
		quoted[i] = regexp.QuoteMeta(t)
	}
	return strings.Join(quoted, "|")
}
