// Package latex guards free text before it is bound into LaTeX source.
//
// The template engine performs no escaping and the compiler can read files
// or run shell commands through certain control sequences, so every value a
// template receives must come out of Guard.Field: scan first, then escape.
package latex

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"cvix/internal/generr"
)

// Mode selects how strictly free text is screened.
type Mode string

const (
	// ModeDenyList rejects the fixed set of control sequences below.
	ModeDenyList Mode = "denylist"
	// ModeAllowList additionally rejects every character outside a
	// conservative allow-list of letters, digits, spaces and punctuation.
	ModeAllowList Mode = "allowlist"
)

// ParseMode validates a configured mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeDenyList:
		return ModeDenyList, nil
	case ModeAllowList:
		return ModeAllowList, nil
	}
	return "", fmt.Errorf("unknown guard mode %q", s)
}

// forbiddenCommands are control sequences able to include files, run shell
// commands, perform I/O or redefine macros.
var forbiddenCommands = []string{
	"input", "include", "includeonly", "InputIfFileExists", "@input", "@@input",
	"write", "write18", "immediate", "openin", "openout", "read", "readline",
	"newread", "newwrite", "closein", "closeout",
	"def", "edef", "gdef", "xdef", "let", "futurelet",
	"newcommand", "renewcommand", "providecommand", "DeclareRobustCommand",
	"newenvironment", "renewenvironment",
	"catcode", "csname", "endcsname", "expandafter",
	"usepackage", "RequirePackage", "documentclass",
	"special", "directlua", "luaexec", "ShellEscape",
	"scantokens", "pdffiledump", "pdfmdfivesum", "IfFileExists", "filecontents",
	"verbatiminput", "lstinputlisting", "includegraphics",
	"jobname", "loop", "makeatletter",
}

// ForbiddenPatterns returns the deny-list as it is matched, for diagnostics.
func ForbiddenPatterns() []string {
	out := make([]string, 0, len(forbiddenCommands)+1)
	for _, c := range forbiddenCommands {
		out = append(out, `\`+c)
	}
	return append(out, "^^")
}

// commandPattern matches a backslash, optional whitespace and one of the
// forbidden names, ending at a non-letter. Matching is case-insensitive.
var commandPattern = buildCommandPattern()

func buildCommandPattern() *regexp.Regexp {
	names := make([]string, len(forbiddenCommands))
	for i, c := range forbiddenCommands {
		names[i] = regexp.QuoteMeta(c)
	}
	// longest first so that \write18 is reported as such rather than as \write
	sort.SliceStable(names, func(i, j int) bool { return len(names[i]) > len(names[j]) })
	return regexp.MustCompile(`(?i)\\\s*(` + strings.Join(names, "|") + `)(?:[^a-z@]|$)`)
}

// allowedPunctuation lists the non-alphanumeric characters accepted in allowlist mode.
// The LaTeX special characters stay here because Escape neutralises them.
const allowedPunctuation = " \t\n.,;:!?'\"()[]-–—/&%$#_{}~^+*=@|<>•·€£¥©®°…‘’“”«»"

// Guard screens and escapes free text.
type Guard struct {
	mode Mode
}

// NewGuard returns a Guard in mode.
func NewGuard(mode Mode) *Guard {
	if mode == "" {
		mode = ModeDenyList
	}
	return &Guard{mode: mode}
}

// Mode reports the configured mode.
func (g *Guard) Mode() Mode { return g.mode }

// Scan returns a security error if text contains a forbidden token.
// field is the dotted path reported back to the caller.
func (g *Guard) Scan(field, text string) error {
	if m := commandPattern.FindStringSubmatch(text); m != nil {
		return generr.Security(field, `\`+m[1]).WithOp("latex.scan")
	}
	if strings.Contains(text, "^^") {
		return generr.Security(field, "^^").WithOp("latex.scan")
	}
	if g.mode == ModeAllowList {
		if strings.ContainsRune(text, '\\') {
			return generr.Security(field, `\`).WithOp("latex.scan")
		}
		for _, r := range text {
			if !allowedRune(r) {
				return generr.Security(field, fmt.Sprintf("U+%04X", r)).WithOp("latex.scan")
			}
		}
	}
	return nil
}

// Field scans text and, if it is clean and typesettable, returns its
// NFC-normalized escaped form. A forbidden token wins over an unsupported
// character.
func (g *Guard) Field(field, text string) (string, error) {
	if err := g.Scan(field, text); err != nil {
		return "", err
	}
	text = normalize(text)
	if err := CheckCharset(field, text); err != nil {
		return "", err
	}
	return Escape(text), nil
}

func allowedRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r) {
		return true
	}
	return strings.ContainsRune(allowedPunctuation, r)
}

// Scan applies the deny-list without a Guard.
func Scan(field, text string) error {
	return NewGuard(ModeDenyList).Scan(field, text)
}
