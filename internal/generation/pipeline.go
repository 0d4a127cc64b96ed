// Package generation drives one résumé from request to compiled PDF.
//
// The flow is linear: Received, Validated, Rendered, Compiled, Delivered.
// Any stage may exit with a *generr.Error, which is returned unchanged; there
// are no retries.
package generation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"cvix/internal/generr"
	"cvix/internal/metrics"
	"cvix/internal/pdfinfo"
	"cvix/internal/render"
	"cvix/internal/resume"
	"cvix/internal/sandbox"
	"cvix/internal/templates"
)

// DefaultLocale is used when a request names none.
const DefaultLocale = "en"

// Stage is a state of the generation state machine.
type Stage string

const (
	StageReceived  Stage = "received"
	StageValidated Stage = "validated"
	StageRendered  Stage = "rendered"
	StageCompiled  Stage = "compiled"
	StageDelivered Stage = "delivered"
)

// Request is one generation attempt. It lives only for the call.
type Request struct {
	TemplateID    string
	Locale        string
	Resume        *resume.Resume
	CallerID      string
	CorrelationID string
	ReceivedAt    time.Time
	PayloadBytes  int
}

// Document is the compiled result. It is handed to the caller once and never stored.
type Document struct {
	PDF        []byte
	Duration   time.Duration
	Pages      int
	TemplateID string
	Locale     string
}

// Resolver looks up a template instance.
type Resolver interface {
	Resolve(templateID, locale string) (*templates.Instance, error)
}

// Pipeline chains validation, rendering, compilation and output checks.
// It is safe for concurrent use.
type Pipeline struct {
	templates Resolver
	renderer  *render.Renderer
	compiler  sandbox.Compiler
	logger    *slog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

func New(reg Resolver, renderer *render.Renderer, compiler sandbox.Compiler, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		templates: reg,
		renderer:  renderer,
		compiler:  compiler,
		logger:    logger,
		tracer:    otel.Tracer("cvix/generation"),
		now:       time.Now,
	}
}

// Generate runs req through every stage and returns the compiled document.
func (p *Pipeline) Generate(ctx context.Context, req Request) (*Document, error) {
	if req.ReceivedAt.IsZero() {
		req.ReceivedAt = p.now()
	}
	if req.Locale == "" {
		req.Locale = DefaultLocale
	}

	ctx, span := p.tracer.Start(ctx, "generation.generate", trace.WithAttributes(
		attribute.String("template.id", req.TemplateID),
		attribute.String("template.locale", req.Locale),
		attribute.String("correlation_id", req.CorrelationID),
	))
	defer span.End()

	att := &attempt{req: req, stage: StageReceived, templateLabel: "unknown"}
	doc, err := p.run(ctx, att)
	att.duration = p.now().Sub(req.ReceivedAt)
	if doc != nil {
		doc.Duration = att.duration
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, generr.KindOf(err).String())
	}
	p.record(ctx, att, err)
	return doc, err
}

type attempt struct {
	req           Request
	stage         Stage
	templateLabel string
	duration      time.Duration
	pages         int
}

func (p *Pipeline) run(ctx context.Context, att *attempt) (*Document, error) {
	req := att.req

	err := p.stage(ctx, "validate", func(context.Context) error {
		if err := resume.CheckPayloadSize(req.PayloadBytes); err != nil {
			return err
		}
		return resume.Validate(req.Resume)
	})
	if err != nil {
		return nil, err
	}
	att.stage = StageValidated

	var source string
	err = p.stage(ctx, "render", func(ctx context.Context) error {
		inst, err := p.templates.Resolve(req.TemplateID, req.Locale)
		if err != nil {
			return err
		}
		att.templateLabel = inst.Meta.ID
		att.req.Locale = inst.Locale
		source, err = p.renderer.Render(ctx, inst, req.Resume)
		return err
	})
	if err != nil {
		return nil, err
	}
	att.stage = StageRendered

	var pdf []byte
	err = p.stage(ctx, "compile", func(ctx context.Context) error {
		var err error
		pdf, err = p.compiler.Compile(ctx, source)
		return err
	})
	if err != nil {
		return nil, err
	}
	att.stage = StageCompiled

	pages, err := pdfinfo.PageCount(pdf)
	if err != nil {
		p.logger.Warn("page count unavailable",
			slog.String("correlation_id", req.CorrelationID),
			slog.Any("error", err),
		)
	}
	att.pages = pages
	att.stage = StageDelivered

	return &Document{
		PDF:        pdf,
		Pages:      pages,
		TemplateID: att.templateLabel,
		Locale:     att.req.Locale,
	}, nil
}

// stage runs fn inside its own span and records its duration.
func (p *Pipeline) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := p.tracer.Start(ctx, "generation."+name)
	defer span.End()

	start := p.now()
	err := fn(ctx)
	metrics.ObserveStage(name, p.now().Sub(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, generr.KindOf(err).String())
	}
	return err
}

// record writes the audit entry, the diagnostic entry for failures, and metrics.
func (p *Pipeline) record(ctx context.Context, att *attempt, err error) {
	outcome := "ok"
	if err != nil {
		outcome = generr.KindOf(err).String()
	}
	metrics.ObserveGeneration(att.templateLabel, outcome, att.duration)

	attrs := []slog.Attr{
		slog.String("outcome", outcome),
		slog.String("stage", string(att.stage)),
		slog.Int64("duration_ms", att.duration.Milliseconds()),
		slog.String("template_id", att.templateLabel),
		slog.String("locale", att.req.Locale),
		slog.String("caller", HashCaller(att.req.CallerID)),
		slog.String("correlation_id", att.req.CorrelationID),
	}
	if err == nil {
		attrs = append(attrs, slog.Int("pages", att.pages))
	} else {
		attrs = append(attrs, slog.String("error_kind", outcome))
	}
	p.logger.LogAttrs(ctx, slog.LevelInfo, "generation audit", attrs...)

	if err == nil || generr.KindOf(err) == generr.KindCanceled {
		return
	}
	p.diagnose(ctx, att, err)
}

func (p *Pipeline) diagnose(ctx context.Context, att *attempt, err error) {
	attrs := []slog.Attr{
		slog.String("correlation_id", att.req.CorrelationID),
		slog.String("error", err.Error()),
	}
	level := slog.LevelWarn
	if gerr, ok := generr.As(err); ok {
		switch gerr.Kind {
		case generr.KindSecurity:
			if len(gerr.Fields) > 0 {
				attrs = append(attrs, slog.String("field", gerr.Fields[0].Field))
			}
			attrs = append(attrs, slog.String("pattern", gerr.Pattern))
		case generr.KindValidation:
			attrs = append(attrs, slog.Int("field_count", len(gerr.Fields)))
		case generr.KindTemplate:
			level = slog.LevelError
			if gerr.Locale != "" {
				attrs = append(attrs, slog.String("requested_locale", gerr.Locale))
			}
		case generr.KindCompilation:
			level = slog.LevelError
			attrs = append(attrs, slog.String("compiler_log", gerr.Detail))
		case generr.KindTimeout:
			level = slog.LevelError
		case generr.KindCanceled, generr.KindUnknown:
		}
	} else {
		level = slog.LevelError
	}
	p.logger.LogAttrs(ctx, level, "generation failed", attrs...)
}

// HashCaller returns a short stable pseudonym for callerID.
func HashCaller(callerID string) string {
	if callerID == "" {
		return "anonymous"
	}
	sum := sha256.Sum256([]byte(callerID))
	return hex.EncodeToString(sum[:8])
}
