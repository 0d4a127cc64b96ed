package latex

import (
	"fmt"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"cvix/internal/generr"
)

// RuleUnsupportedCharacter is the validation rule reported for text the
// bundled templates cannot typeset.
const RuleUnsupportedCharacter = "unsupported_character"

// t1Text covers what pdflatex typesets with fontenc T1 and inputenc utf8:
// Latin-1, most of Latin Extended-A, the comma-accented Romanian letters
// and the common typographic punctuation.
var t1Text = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x0020, Hi: 0x007e, Stride: 1},
		{Lo: 0x00a0, Hi: 0x00ff, Stride: 1},
		{Lo: 0x0100, Hi: 0x0137, Stride: 1},
		{Lo: 0x0139, Hi: 0x013e, Stride: 1},
		{Lo: 0x0141, Hi: 0x0148, Stride: 1},
		{Lo: 0x014a, Hi: 0x017e, Stride: 1},
		{Lo: 0x0218, Hi: 0x021b, Stride: 1},
		{Lo: 0x0237, Hi: 0x0237, Stride: 1},
		{Lo: 0x02c6, Hi: 0x02c7, Stride: 1},
		{Lo: 0x02dc, Hi: 0x02dc, Stride: 1},
		{Lo: 0x2013, Hi: 0x2014, Stride: 1},
		{Lo: 0x2018, Hi: 0x201a, Stride: 1},
		{Lo: 0x201c, Hi: 0x201e, Stride: 1},
		{Lo: 0x2020, Hi: 0x2022, Stride: 1},
		{Lo: 0x2026, Hi: 0x2026, Stride: 1},
		{Lo: 0x2030, Hi: 0x2030, Stride: 1},
		{Lo: 0x2039, Hi: 0x203a, Stride: 1},
		{Lo: 0x20ac, Hi: 0x20ac, Stride: 1},
		{Lo: 0x2116, Hi: 0x2116, Stride: 1},
		{Lo: 0x2122, Hi: 0x2122, Stride: 1},
		{Lo: 0x2190, Hi: 0x2193, Stride: 1},
	},
	LatinOffset: 2,
}

// Typesettable reports whether r survives Escape and compiles under the
// bundled templates. Control characters count since Escape drops them.
func Typesettable(r rune) bool {
	if r < 0x20 || r == 0x7f {
		return true
	}
	return unicode.Is(t1Text, r)
}

// CheckCharset returns a validation error naming the first rune of text
// that cannot be typeset. text is expected in NFC.
func CheckCharset(field, text string) error {
	for _, r := range text {
		if !Typesettable(r) {
			return generr.Validation(
				fmt.Sprintf("%s contains a character the document engine cannot typeset", field),
				generr.FieldError{Field: field, Rule: RuleUnsupportedCharacter, Param: fmt.Sprintf("U+%04X", r)},
			).WithOp("latex.charset")
		}
	}
	return nil
}

// normalize composes combining sequences so that "é" reaches the
// compiler as the single letter it stands for.
func normalize(text string) string {
	if norm.NFC.IsNormalString(text) {
		return text
	}
	return norm.NFC.String(text)
}
