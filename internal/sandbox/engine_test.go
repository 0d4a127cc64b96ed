//go:build linux

package sandbox

import (
	"context"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cvix/internal/latex"
	"cvix/internal/pdfinfo"
	"cvix/internal/render"
	"cvix/internal/templates"
	"cvix/internal/testutil"
)

// TestProcessCompiler_RealEngine compiles every bundled template with the
// installed pdflatex.
func TestProcessCompiler_RealEngine(t *testing.T) {
	if testing.Short() {
		t.Skip("compiles with a real TeX engine")
	}
	binary, err := exec.LookPath("pdflatex")
	if err != nil {
		t.Skip("pdflatex not installed")
	}

	reg, err := templates.Load(templates.Embedded())
	require.NoError(t, err)
	renderer := render.New(latex.NewGuard(latex.ModeDenyList))

	c, err := NewProcessCompiler(ProcessOptions{
		Binary:   binary,
		Args:     []string{"-no-shell-escape", "-interaction=nonstopmode", "-halt-on-error", "main.tex"},
		WorkRoot: t.TempDir(),
		Timeout:  time.Minute,
		Limits:   Limits{MaxOutputMB: 20},
		Logger:   testutil.DiscardLogger(),
	})
	require.NoError(t, err)

	tests := []struct {
		template string
		locale   string
	}{
		{"classic", "en"},
		{"classic", "es"},
		{"compact", "en"},
	}

	for _, tt := range tests {
		t.Run(filepath.Join(tt.template, tt.locale), func(t *testing.T) {
			t.Parallel()

			inst, err := reg.Resolve(tt.template, tt.locale)
			require.NoError(t, err)

			r := testutil.SampleResume()
			r.Basics.Name = "Zoë Ødegård-Łukasz Șerban"
			r.Work[0].Highlights = append(r.Work[0].Highlights, "“Quoted” – 10 € … ~/bin & 50% ^ #1 {x} \\ ok")

			src, err := renderer.Render(context.Background(), inst, r)
			require.NoError(t, err)

			pdf, err := c.Compile(context.Background(), src)
			require.NoError(t, err)
			assert.True(t, pdfinfo.IsPDF(pdf))

			pages, err := pdfinfo.PageCount(pdf)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, pages, 1)
		})
	}
}
