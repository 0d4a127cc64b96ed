// Package templates loads the packaged LaTeX résumé templates and resolves
// (template id, locale) pairs to parsed instances.
//
// A Registry is built once at start and never mutated afterwards, so it can be
// shared by every request without locking.
package templates

import (
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"text/template"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"cvix/internal/generr"
	"cvix/internal/latex"
)

// Template sources use << >> as action delimiters; braces belong to LaTeX.
const (
	LeftDelim  = "<<"
	RightDelim = ">>"
)

// Metadata describes one registered template.
type Metadata struct {
	ID      string   `yaml:"id" json:"id"`
	Name    string   `yaml:"name" json:"name"`
	Version string   `yaml:"version" json:"version"`
	Entry   string   `yaml:"entry" json:"entry"`
	Locales []string `yaml:"locales" json:"locales"`
}

// Instance is a template bound to one locale.
type Instance struct {
	Meta   Metadata
	Locale string
	// Labels are the localized section headings, already escaped for LaTeX.
	Labels map[string]string

	tmpl *template.Template
}

// Template returns the parsed template. It is safe for concurrent Execute calls.
func (i *Instance) Template() *template.Template { return i.tmpl }

type key struct {
	id     string
	locale string
}

// Registry is a read-only template index built once at startup.
type Registry struct {
	byKey map[key]*Instance
	meta  map[string]Metadata
}

// Load reads every <id>/manifest.yaml found at the top level of fsys.
func Load(fsys fs.FS) (*Registry, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read template root: %w", err)
	}

	r := &Registry{byKey: make(map[key]*Instance), meta: make(map[string]Metadata)}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if err := r.loadOne(fsys, e.Name()); err != nil {
			return nil, fmt.Errorf("load template %q: %w", e.Name(), err)
		}
	}
	if len(r.meta) == 0 {
		return nil, fmt.Errorf("no templates found")
	}
	return r, nil
}

func (r *Registry) loadOne(fsys fs.FS, dir string) error {
	raw, err := fs.ReadFile(fsys, path.Join(dir, "manifest.yaml"))
	if err != nil {
		return fmt.Errorf("read manifest: %w", err)
	}
	var m Metadata
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return fmt.Errorf("parse manifest: %w", err)
	}
	if err := validateManifest(dir, &m); err != nil {
		return err
	}

	src, err := fs.ReadFile(fsys, path.Join(dir, m.Entry))
	if err != nil {
		return fmt.Errorf("read entry: %w", err)
	}
	tmpl, err := template.New(m.ID).
		Delims(LeftDelim, RightDelim).
		Option("missingkey=error").
		Funcs(funcs).
		Parse(string(src))
	if err != nil {
		return fmt.Errorf("parse entry: %w", err)
	}

	for _, loc := range m.Locales {
		labels, err := loadLabels(fsys, dir, loc)
		if err != nil {
			return err
		}
		r.byKey[key{m.ID, loc}] = &Instance{Meta: m, Locale: loc, Labels: labels, tmpl: tmpl}
	}
	r.meta[m.ID] = m
	return nil
}

func validateManifest(dir string, m *Metadata) error {
	if err := ValidateAssetName(m.ID); err != nil {
		return err
	}
	if m.ID != dir {
		return fmt.Errorf("manifest id %q does not match directory %q", m.ID, dir)
	}
	if m.Entry == "" || strings.ContainsAny(m.Entry, `/\`) || strings.Contains(m.Entry, "..") {
		return fmt.Errorf("invalid entry %q", m.Entry)
	}
	if len(m.Locales) == 0 {
		return fmt.Errorf("no locales declared")
	}
	seen := make(map[string]bool, len(m.Locales))
	for i, loc := range m.Locales {
		if err := ValidateAssetName(loc); err != nil {
			return err
		}
		loc = PrimarySubtag(loc)
		if seen[loc] {
			return fmt.Errorf("duplicate locale %q", loc)
		}
		seen[loc] = true
		m.Locales[i] = loc
	}
	if m.Name == "" {
		m.Name = m.ID
	}
	return nil
}

func loadLabels(fsys fs.FS, dir, locale string) (map[string]string, error) {
	raw, err := fs.ReadFile(fsys, path.Join(dir, "locales", locale+".yaml"))
	if err != nil {
		return nil, fmt.Errorf("locale %q: %w", locale, err)
	}
	var labels map[string]string
	if err := yaml.Unmarshal(raw, &labels); err != nil {
		return nil, fmt.Errorf("locale %q: %w", locale, err)
	}
	for k, v := range labels {
		labels[k] = latex.Escape(v)
	}
	return labels, nil
}

// Resolve returns the instance registered for templateID and the primary
// subtag of locale. There is no fallback to another locale.
func (r *Registry) Resolve(templateID, locale string) (*Instance, error) {
	if _, ok := r.meta[templateID]; !ok {
		return nil, generr.Template(fmt.Sprintf("unknown template %q", templateID), nil).WithOp("templates.resolve")
	}
	loc := PrimarySubtag(locale)
	inst, ok := r.byKey[key{templateID, loc}]
	if !ok {
		return nil, generr.TemplateLocale(templateID, loc).WithOp("templates.resolve")
	}
	return inst, nil
}

// Templates lists metadata of every template, sorted by id.
func (r *Registry) Templates() []Metadata {
	out := make([]Metadata, 0, len(r.meta))
	for _, m := range r.meta {
		m.Locales = append([]string(nil), m.Locales...)
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// PrimarySubtag reduces a BCP 47 tag to its lower-case primary language
// subtag: "en-US" -> "en". Unparseable input is lower-cased up to the first
// separator so that it still names itself in errors.
func PrimarySubtag(locale string) string {
	locale = strings.TrimSpace(locale)
	if tag, err := language.Parse(locale); err == nil {
		base, _ := tag.Base()
		if s := base.String(); s != "und" {
			return s
		}
	}
	if i := strings.IndexAny(locale, "-_"); i >= 0 {
		locale = locale[:i]
	}
	return strings.ToLower(locale)
}
