// Package typeset converts annotated manuscript text into the typeset
// plain-text convention of the Narou web-novel site.
//
// A document is split into a Chapter of Lines, each Line into Sentences, and
// every Sentence is rendered through a fixed, ordered list of rewrite passes.
// Nothing in this package fails: syntax it does not recognize is emitted
// unchanged.
package typeset

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Indentation and speech detection.
const (
	// SpeechOpener marks a line as dialogue when it is the first character.
	SpeechOpener = '「'
	// SpeechIndent prefixes dialogue lines.
	SpeechIndent = " "
	// NarrationIndent prefixes every other line.
	NarrationIndent = "　"
)

// Annotation markup emitted for ruby and emphasis spans.
const (
	RubySeparator = "｜"
	RubyOpen      = "《"
	RubyClose     = "》"
	EmphasisDot   = "・"
)

// FullWidthSpace is inserted after exclamation and question marks.
const FullWidthSpace = "　"

// ClosingBrackets suppress the space after an exclamation or question mark.
const ClosingBrackets = "」』)）"

// Exclamations are the marks that receive a trailing FullWidthSpace. The
// two-character forms are listed first so they win over a lone mark.
var Exclamations = []string{"!?", "?!", "！", "？"}

// Terminators end a sentence.
var Terminators = []string{"」", "。", ".", "？", "！", "!?", "?!"}

// CommentMarkers start a comment line once leading whitespace is trimmed.
var CommentMarkers = []string{"//", ">", "#"}

// Format renders a whole document in one call.
func Format(text string) string {
	return NewChapter(text).String()
}

// IsComment reports whether a raw line is an author comment line.
func IsComment(line string) bool {
	head := firstRunes(strings.TrimSpace(line), 2)
	for _, marker := range CommentMarkers {
		if strings.HasPrefix(head, marker) {
			return true
		}
	}
	return false
}

// IsSpeech reports whether a trimmed line opens with SpeechOpener.
func IsSpeech(line string) bool {
	r, _ := utf8.DecodeRuneInString(line)
	return r == SpeechOpener
}

func firstRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

func trimRight(s string) string {
	return strings.TrimRightFunc(s, unicode.IsSpace)
}
