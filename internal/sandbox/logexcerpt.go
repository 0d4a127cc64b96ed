package sandbox

import (
	"bufio"
	"bytes"
	"strings"
)

const (
	excerptMaxLines = 12
	excerptMaxBytes = 2 << 10
)

// LogExcerpt extracts TeX error lines ("! ..." and the "l.<n>" line that
// locates them) from a compiler log. It returns "" when none are found.
func LogExcerpt(log []byte) string {
	var out []string
	size := 0
	add := func(s string) bool {
		if len(out) >= excerptMaxLines || size+len(s) > excerptMaxBytes {
			return false
		}
		out = append(out, s)
		size += len(s) + 1
		return true
	}

	sc := bufio.NewScanner(bytes.NewReader(log))
	sc.Buffer(make([]byte, 0, 4096), 1<<20)
	inError := false
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r ")
		switch {
		case strings.HasPrefix(line, "! "):
			inError = true
			if !add(line) {
				return strings.Join(out, "\n")
			}
		case inError && strings.HasPrefix(line, "l."):
			inError = false
			if !add(line) {
				return strings.Join(out, "\n")
			}
		}
	}
	return strings.Join(out, "\n")
}
