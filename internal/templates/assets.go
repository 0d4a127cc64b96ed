package templates

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"text/template"
)

//go:embed assets
var embedded embed.FS

// ErrInvalidAssetName is returned for template ids or locales that could
// escape their directory when joined into a path.
var ErrInvalidAssetName = errors.New("invalid asset name")

// ValidateAssetName rejects empty names and names containing separators or dots.
func ValidateAssetName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidAssetName)
	}
	if strings.ContainsAny(name, `/\. `) {
		return fmt.Errorf("%w: %q", ErrInvalidAssetName, name)
	}
	return nil
}

// Embedded returns the packaged templates.
func Embedded() fs.FS {
	sub, err := fs.Sub(embedded, "assets")
	if err != nil {
		panic(err)
	}
	return sub
}

// LoadDir loads templates from dir, or the packaged set when dir is empty.
func LoadDir(dir string) (*Registry, error) {
	if dir == "" {
		return Load(Embedded())
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("templates dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("templates dir %q is not a directory", dir)
	}
	return Load(os.DirFS(dir))
}

// funcs operate on values the renderer has already escaped.
var funcs = template.FuncMap{
	"join": func(items []string, sep string) string { return strings.Join(items, sep) },
	"period": func(start, end, present string) string {
		switch {
		case start == "" && end == "":
			return ""
		case end == "":
			return start + " -- " + present
		case start == "":
			return end
		}
		return start + " -- " + end
	},
}
