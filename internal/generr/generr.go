// Package generr defines the error taxonomy of résumé generation.
//
// Every failure that leaves the pipeline is a *Error carrying exactly one Kind.
// The value is returned unchanged from the stage that produced it up to the
// HTTP boundary, which maps the kind to a response without inspecting messages.
package generr

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an error; boundaries map each kind to exactly one response.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindSecurity
	KindTemplate
	KindCompilation
	KindTimeout
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindSecurity:
		return "security"
	case KindTemplate:
		return "template"
	case KindCompilation:
		return "compilation"
	case KindTimeout:
		return "timeout"
	case KindCanceled:
		return "canceled"
	case KindUnknown:
		return "unknown"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// FieldError points at a single offending input field.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

// Error is the single error type of the generation subsystem.
type Error struct {
	Kind    Kind
	Op      string
	Message string

	// Fields is set for validation and security errors.
	Fields []FieldError
	// Pattern is the deny-list token that triggered a security error. Server side only.
	Pattern string
	// Locale is the locale a template error could not resolve.
	Locale string
	// Detail holds diagnostics such as a compiler log excerpt. Server side only.
	Detail string

	Err error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.String())
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is a *Error of the same kind, so that
// errors.Is(err, &generr.Error{Kind: generr.KindTimeout}) works.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Message == ""
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// As extracts the *Error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Validation reports a business-rule violation in the input.
func Validation(message string, fields ...FieldError) *Error {
	return &Error{Kind: KindValidation, Message: message, Fields: fields}
}

// Security reports a forbidden control sequence found in field.
func Security(field, pattern string) *Error {
	return &Error{
		Kind:    KindSecurity,
		Message: "forbidden control sequence",
		Fields:  []FieldError{{Field: field, Rule: "forbidden_sequence"}},
		Pattern: pattern,
	}
}

// Template reports a missing or broken template or binding.
func Template(message string, err error) *Error {
	return &Error{Kind: KindTemplate, Message: message, Err: err}
}

// TemplateLocale reports that templateID is registered without locale.
func TemplateLocale(templateID, locale string) *Error {
	return &Error{
		Kind:    KindTemplate,
		Message: fmt.Sprintf("template %q has no locale %q", templateID, locale),
		Locale:  locale,
	}
}

// Compilation reports an external toolchain failure.
func Compilation(message, detail string, err error) *Error {
	return &Error{Kind: KindCompilation, Message: message, Detail: detail, Err: err}
}

// Timeout reports an exhausted time budget.
func Timeout(message string, err error) *Error {
	return &Error{Kind: KindTimeout, Message: message, Err: err}
}

// Canceled reports that the caller abandoned the request.
func Canceled(err error) *Error {
	return &Error{Kind: KindCanceled, Message: "request canceled", Err: err}
}

// Context classifies a context error: an expired deadline is a Timeout,
// anything else a cancellation.
func Context(err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout("deadline exceeded", err)
	}
	return Canceled(err)
}

// WithOp sets the operation that produced e and returns it.
func (e *Error) WithOp(op string) *Error {
	e.Op = op
	return e
}
