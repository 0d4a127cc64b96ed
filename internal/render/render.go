// Package render binds validated résumé data into a template instance and
// produces LaTeX source.
package render

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"cvix/internal/generr"
	"cvix/internal/latex"
	"cvix/internal/resume"
	"cvix/internal/templates"
)

// Renderer turns a Resume into LaTeX source. It is safe for concurrent use.
type Renderer struct {
	guard *latex.Guard
}

// New returns a Renderer screening every value through guard.
func New(guard *latex.Guard) *Renderer {
	if guard == nil {
		guard = latex.NewGuard(latex.ModeDenyList)
	}
	return &Renderer{guard: guard}
}

// Render returns the LaTeX source of r rendered with inst.
// A forbidden token anywhere in r yields the guard's security error and
// nothing is rendered. Text the engine cannot typeset yields a validation
// error naming the field.
func (rd *Renderer) Render(ctx context.Context, inst *templates.Instance, r *resume.Resume) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", generr.Context(err).WithOp("render")
	}
	if inst == nil || r == nil {
		return "", generr.Template("nothing to render", nil).WithOp("render")
	}

	b := &binder{guard: rd.guard}
	data := b.document(inst, r)
	if b.err != nil {
		return "", b.err
	}

	var buf bytes.Buffer
	buf.Grow(8 << 10)
	if err := inst.Template().Execute(&buf, data); err != nil {
		return "", generr.Template("execute template", err).WithOp("render")
	}
	return buf.String(), nil
}

// binder collects escaped values and keeps the first guard failure.
// A security failure replaces an earlier unsupported character.
type binder struct {
	guard *latex.Guard
	err   error
}

func (b *binder) text(path, s string) string {
	if generr.KindOf(b.err) == generr.KindSecurity {
		return ""
	}
	out, err := b.guard.Field(path, s)
	if err != nil {
		if b.err == nil || generr.KindOf(err) == generr.KindSecurity {
			b.err = err
		}
		return ""
	}
	return out
}

func (b *binder) list(path string, items []string) []string {
	out := make([]string, len(items))
	for i, s := range items {
		out[i] = b.text(fmt.Sprintf("%s[%d]", path, i), s)
	}
	return out
}

func (b *binder) document(inst *templates.Instance, r *resume.Resume) map[string]any {
	return map[string]any{
		"basics":       b.basics(&r.Basics),
		"work":         b.work(r.Work),
		"education":    b.education(r.Education),
		"skills":       b.skills(r.Skills),
		"languages":    b.languages(r.Languages),
		"projects":     b.projects(r.Projects),
		"certificates": b.certificates(r.Certificates),
		"awards":       b.awards(r.Awards),
		"interests":    b.interests(r.Interests),
		"labels":       inst.Labels,
		"meta": map[string]any{
			"templateId": latex.Escape(inst.Meta.ID),
			"version":    latex.Escape(inst.Meta.Version),
			"locale":     latex.Escape(inst.Locale),
		},
	}
}

func (b *binder) basics(in *resume.Basics) map[string]any {
	loc := map[string]any{
		"address":     b.text("basics.location.address", in.Location.Address),
		"postalCode":  b.text("basics.location.postalCode", in.Location.PostalCode),
		"city":        b.text("basics.location.city", in.Location.City),
		"countryCode": b.text("basics.location.countryCode", in.Location.CountryCode),
		"region":      b.text("basics.location.region", in.Location.Region),
	}
	profiles := make([]map[string]any, len(in.Profiles))
	for i, p := range in.Profiles {
		path := fmt.Sprintf("basics.profiles[%d]", i)
		profiles[i] = map[string]any{
			"network":  b.text(path+".network", p.Network),
			"username": b.text(path+".username", p.Username),
			"url":      b.text(path+".url", p.URL),
		}
	}

	out := map[string]any{
		"name":     b.text("basics.name", in.Name),
		"label":    b.text("basics.label", in.Label),
		"email":    b.text("basics.email", in.Email),
		"phone":    b.text("basics.phone", in.Phone),
		"url":      b.text("basics.url", in.URL),
		"summary":  b.text("basics.summary", in.Summary),
		"location": loc,
		"profiles": profiles,
	}
	out["contact"] = contactLine(out, loc)
	return out
}

// contactLine lists the non-empty contact items in a fixed order.
func contactLine(basics, loc map[string]any) []string {
	var line []string
	for _, v := range []any{basics["email"], basics["phone"], basics["url"]} {
		if s, _ := v.(string); s != "" {
			line = append(line, s)
		}
	}
	var place []string
	for _, v := range []any{loc["city"], loc["region"]} {
		if s, _ := v.(string); s != "" {
			place = append(place, s)
		}
	}
	if len(place) > 0 {
		line = append(line, strings.Join(place, ", "))
	}
	return line
}

func (b *binder) work(in []resume.Work) []map[string]any {
	out := make([]map[string]any, len(in))
	for i, w := range in {
		path := fmt.Sprintf("work[%d]", i)
		out[i] = map[string]any{
			"company":    b.text(path+".company", w.Company),
			"position":   b.text(path+".position", w.Position),
			"url":        b.text(path+".url", w.URL),
			"startDate":  b.text(path+".startDate", w.StartDate),
			"endDate":    b.text(path+".endDate", w.EndDate),
			"summary":    b.text(path+".summary", w.Summary),
			"highlights": b.list(path+".highlights", w.Highlights),
		}
	}
	return out
}

func (b *binder) education(in []resume.Education) []map[string]any {
	out := make([]map[string]any, len(in))
	for i, e := range in {
		path := fmt.Sprintf("education[%d]", i)
		out[i] = map[string]any{
			"institution": b.text(path+".institution", e.Institution),
			"area":        b.text(path+".area", e.Area),
			"studyType":   b.text(path+".studyType", e.StudyType),
			"startDate":   b.text(path+".startDate", e.StartDate),
			"endDate":     b.text(path+".endDate", e.EndDate),
			"score":       b.text(path+".score", e.Score),
			"courses":     b.list(path+".courses", e.Courses),
		}
	}
	return out
}

func (b *binder) skills(in []resume.Skill) []map[string]any {
	out := make([]map[string]any, len(in))
	for i, s := range in {
		path := fmt.Sprintf("skills[%d]", i)
		out[i] = map[string]any{
			"name":     b.text(path+".name", s.Name),
			"level":    b.text(path+".level", s.Level),
			"keywords": b.list(path+".keywords", s.Keywords),
		}
	}
	return out
}

func (b *binder) languages(in []resume.Language) []map[string]any {
	out := make([]map[string]any, len(in))
	for i, l := range in {
		path := fmt.Sprintf("languages[%d]", i)
		out[i] = map[string]any{
			"language": b.text(path+".language", l.Language),
			"fluency":  b.text(path+".fluency", l.Fluency),
		}
	}
	return out
}

func (b *binder) projects(in []resume.Project) []map[string]any {
	out := make([]map[string]any, len(in))
	for i, p := range in {
		path := fmt.Sprintf("projects[%d]", i)
		out[i] = map[string]any{
			"name":        b.text(path+".name", p.Name),
			"description": b.text(path+".description", p.Description),
			"url":         b.text(path+".url", p.URL),
			"startDate":   b.text(path+".startDate", p.StartDate),
			"endDate":     b.text(path+".endDate", p.EndDate),
			"highlights":  b.list(path+".highlights", p.Highlights),
		}
	}
	return out
}

func (b *binder) certificates(in []resume.Certificate) []map[string]any {
	out := make([]map[string]any, len(in))
	for i, c := range in {
		path := fmt.Sprintf("certificates[%d]", i)
		out[i] = map[string]any{
			"name":   b.text(path+".name", c.Name),
			"date":   b.text(path+".date", c.Date),
			"issuer": b.text(path+".issuer", c.Issuer),
			"url":    b.text(path+".url", c.URL),
		}
	}
	return out
}

func (b *binder) awards(in []resume.Award) []map[string]any {
	out := make([]map[string]any, len(in))
	for i, a := range in {
		path := fmt.Sprintf("awards[%d]", i)
		out[i] = map[string]any{
			"title":   b.text(path+".title", a.Title),
			"date":    b.text(path+".date", a.Date),
			"awarder": b.text(path+".awarder", a.Awarder),
			"summary": b.text(path+".summary", a.Summary),
		}
	}
	return out
}

func (b *binder) interests(in []resume.Interest) []map[string]any {
	out := make([]map[string]any, len(in))
	for i, n := range in {
		path := fmt.Sprintf("interests[%d]", i)
		out[i] = map[string]any{
			"name":     b.text(path+".name", n.Name),
			"keywords": b.list(path+".keywords", n.Keywords),
		}
	}
	return out
}
