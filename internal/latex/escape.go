package latex

import "strings"

// replacements maps every character with special meaning in LaTeX body text
// to a form that typesets the character literally.
var replacements = map[rune]string{
	'&':  `\&`,
	'%':  `\%`,
	'$':  `\$`,
	'#':  `\#`,
	'_':  `\_`,
	'{':  `\{`,
	'}':  `\}`,
	'~':  `\textasciitilde{}`,
	'^':  `\textasciicircum{}`,
	'\\': `\textbackslash{}`,
}

// Escape rewrites text so that the compiler renders it verbatim.
// It runs in one pass, so braces emitted for a replacement are never escaped
// again. Control characters other than tab and newline are dropped.
func Escape(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/8)
	for _, r := range text {
		if rep, ok := replacements[r]; ok {
			b.WriteString(rep)
			continue
		}
		if (r < 0x20 && r != '\t' && r != '\n') || r == 0x7f {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
