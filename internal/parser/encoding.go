package parser

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/unicode/norm"
)

// Source encodings accepted by DecodeText.
const (
	EncodingAuto     = "auto"
	EncodingUTF8     = "utf-8"
	EncodingShiftJIS = "shift_jis"
	EncodingEUCJP    = "euc-jp"
)

// Encodings lists every accepted encoding name.
var Encodings = []string{EncodingAuto, EncodingUTF8, EncodingShiftJIS, EncodingEUCJP}

// ErrUnknownEncoding is returned for encoding names not in Encodings.
var ErrUnknownEncoding = errors.New("unknown encoding")

// DecodeText converts raw bytes to a UTF-8 string. In auto mode valid UTF-8
// is kept and anything else is read as Shift_JIS, the usual encoding of
// Japanese manuscripts written on Windows. A UTF-8 BOM is always dropped.
func DecodeText(data []byte, enc string) (string, error) {
	var dec encoding.Encoding
	switch strings.ToLower(enc) {
	case "", EncodingAuto:
		if utf8.Valid(data) {
			dec = unicode.UTF8BOM
		} else {
			dec = japanese.ShiftJIS
		}
	case EncodingUTF8, "utf8":
		dec = unicode.UTF8BOM
	case EncodingShiftJIS, "sjis", "cp932":
		dec = japanese.ShiftJIS
	case EncodingEUCJP, "eucjp":
		dec = japanese.EUCJP
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownEncoding, enc)
	}
	out, err := dec.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", enc, err)
	}
	return string(out), nil
}

// IsKnownEncoding reports whether DecodeText accepts enc.
func IsKnownEncoding(enc string) bool {
	_, err := DecodeText(nil, enc)
	return err == nil
}

// NormalizeLineBreaks converts "\r\n" and lone "\r" to "\n".
func NormalizeLineBreaks(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}

// NormalizeNFC composes characters such as か + U+3099 into が.
func NormalizeNFC(text string) string {
	return norm.NFC.String(text)
}
