package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cvix/internal/generr"
	"cvix/internal/render"
	"cvix/internal/resume"
	"cvix/internal/templates"
	"cvix/internal/testutil"
)

type fakeCompiler struct {
	mu      sync.Mutex
	sources []string
	out     []byte
	err     error
}

func (f *fakeCompiler) Compile(_ context.Context, source string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sources = append(f.sources, source)
	return f.out, f.err
}

func (f *fakeCompiler) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sources)
}

type fixture struct {
	pipeline *Pipeline
	compiler *fakeCompiler
	logs     *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	reg, err := templates.Load(templates.Embedded())
	require.NoError(t, err)

	logs := &bytes.Buffer{}
	logger := slog.New(slog.NewJSONHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	fc := &fakeCompiler{out: testutil.MinimalPDF(2)}
	return &fixture{
		pipeline: New(reg, render.New(nil), fc, logger),
		compiler: fc,
		logs:     logs,
	}
}

func (f *fixture) entries(t *testing.T) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(f.logs.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func (f *fixture) audit(t *testing.T) map[string]any {
	t.Helper()
	for _, e := range f.entries(t) {
		if e["msg"] == "generation audit" {
			return e
		}
	}
	t.Fatal("no audit entry")
	return nil
}

func request(r *resume.Resume) Request {
	return Request{
		TemplateID:    "classic",
		Locale:        "en-US",
		Resume:        r,
		CallerID:      "user-42",
		CorrelationID: "corr-1",
		PayloadBytes:  2048,
	}
}

func TestGenerate_Success(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	doc, err := f.pipeline.Generate(context.Background(), request(testutil.SampleResume()))
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(doc.PDF, []byte("%PDF")))
	assert.Equal(t, 2, doc.Pages)
	assert.Equal(t, "classic", doc.TemplateID)
	assert.Equal(t, "en", doc.Locale)
	require.Equal(t, 1, f.compiler.calls())
	assert.Contains(t, f.compiler.sources[0], `John \& Jane \$ Doe`)
	assert.Contains(t, f.compiler.sources[0], `A\&B Corp`)

	audit := f.audit(t)
	assert.Equal(t, "ok", audit["outcome"])
	assert.Equal(t, string(StageDelivered), audit["stage"])
	assert.Equal(t, HashCaller("user-42"), audit["caller"])
	assert.Equal(t, "corr-1", audit["correlation_id"])
	assert.NotContains(t, f.logs.String(), "user-42")
	assert.NotContains(t, f.logs.String(), "Jane")
}

func TestGenerate_SecurityErrorSkipsCompiler(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	r := testutil.SampleResume()
	r.Work[0].Summary = `Nice \input{/etc/passwd}`

	doc, err := f.pipeline.Generate(context.Background(), request(r))
	assert.Nil(t, doc)
	gerr, ok := generr.As(err)
	require.True(t, ok)
	assert.Equal(t, generr.KindSecurity, gerr.Kind)
	assert.Equal(t, "work[0].summary", gerr.Fields[0].Field)
	assert.Zero(t, f.compiler.calls())

	audit := f.audit(t)
	assert.Equal(t, "security", audit["outcome"])
	assert.Equal(t, string(StageValidated), audit["stage"])
	assert.NotContains(t, audit, "pattern")

	var diag map[string]any
	for _, e := range f.entries(t) {
		if e["msg"] == "generation failed" {
			diag = e
		}
	}
	require.NotNil(t, diag)
	assert.Equal(t, `\input`, diag["pattern"])
	assert.Equal(t, "work[0].summary", diag["field"])
}

func TestGenerate_ReturnsErrorsUnchanged(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	want := generr.Compilation("compiler exited with code 1", "! Undefined control sequence.", nil)
	f.compiler.err = want
	f.compiler.out = nil

	_, err := f.pipeline.Generate(context.Background(), request(testutil.SampleResume()))
	assert.Same(t, want, err)
	assert.Equal(t, string(StageRendered), f.audit(t)["stage"])
	assert.Contains(t, f.logs.String(), "Undefined control sequence")
}

func TestGenerate_ValidationStopsEarly(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	r := testutil.SampleResume()
	r.Basics.Name = ""

	_, err := f.pipeline.Generate(context.Background(), request(r))
	assert.Equal(t, generr.KindValidation, generr.KindOf(err))
	assert.Zero(t, f.compiler.calls())
	assert.Equal(t, string(StageReceived), f.audit(t)["stage"])
}

func TestGenerate_OversizedPayload(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	req := request(testutil.SampleResume())
	req.PayloadBytes = resume.MaxPayloadBytes + 1

	_, err := f.pipeline.Generate(context.Background(), req)
	gerr, ok := generr.As(err)
	require.True(t, ok)
	assert.Equal(t, generr.KindValidation, gerr.Kind)
	assert.Equal(t, "body", gerr.Fields[0].Field)
	assert.Zero(t, f.compiler.calls())
}

func TestGenerate_UnsupportedLocale(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	req := request(testutil.SampleResume())
	req.Locale = "de"

	_, err := f.pipeline.Generate(context.Background(), req)
	gerr, ok := generr.As(err)
	require.True(t, ok)
	assert.Equal(t, generr.KindTemplate, gerr.Kind)
	assert.Equal(t, "de", gerr.Locale)
	assert.Zero(t, f.compiler.calls())
}

func TestGenerate_DefaultLocale(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	req := request(testutil.SampleResume())
	req.Locale = ""

	doc, err := f.pipeline.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, DefaultLocale, doc.Locale)
}

func TestGenerate_UnparseableOutputStillDelivered(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.compiler.out = []byte("%PDF-1.4 truncated")

	doc, err := f.pipeline.Generate(context.Background(), request(testutil.SampleResume()))
	require.NoError(t, err)
	assert.Zero(t, doc.Pages)
	assert.Contains(t, f.logs.String(), "page count unavailable")
}

func TestGenerate_SourceOrderReachesCompiler(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	r := testutil.SampleResume()
	r.Work = []resume.Work{{Company: "Third Co"}, {Company: "First Co"}, {Company: "Second Co"}}

	_, err := f.pipeline.Generate(context.Background(), request(r))
	require.NoError(t, err)
	src := f.compiler.sources[0]
	assert.Less(t, strings.Index(src, "Third Co"), strings.Index(src, "First Co"))
	assert.Less(t, strings.Index(src, "First Co"), strings.Index(src, "Second Co"))
}

func TestHashCaller(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "anonymous", HashCaller(""))
	assert.Len(t, HashCaller("someone"), 16)
	assert.Equal(t, HashCaller("a"), HashCaller("a"))
	assert.NotEqual(t, HashCaller("a"), HashCaller("b"))
}
