package templates

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cvix/internal/generr"
)

func TestLoad_Embedded(t *testing.T) {
	t.Parallel()

	r, err := Load(Embedded())
	require.NoError(t, err)

	list := r.Templates()
	require.Len(t, list, 2)
	assert.Equal(t, "classic", list[0].ID)
	assert.Equal(t, []string{"en", "es"}, list[0].Locales)
	assert.Equal(t, "compact", list[1].ID)
	assert.Equal(t, []string{"en"}, list[1].Locales)
}

func TestResolve(t *testing.T) {
	t.Parallel()

	r, err := Load(Embedded())
	require.NoError(t, err)

	t.Run("region subtag is ignored", func(t *testing.T) {
		a, err := r.Resolve("classic", "en-US")
		require.NoError(t, err)
		b, err := r.Resolve("classic", "en")
		require.NoError(t, err)
		assert.Same(t, a, b)
		assert.Equal(t, "en", a.Locale)
	})

	t.Run("spanish labels", func(t *testing.T) {
		inst, err := r.Resolve("classic", "es-MX")
		require.NoError(t, err)
		assert.Equal(t, "Experiencia", inst.Labels["work"])
	})

	t.Run("missing locale names the locale", func(t *testing.T) {
		_, err := r.Resolve("classic", "de")
		require.Error(t, err)
		gerr, ok := generr.As(err)
		require.True(t, ok)
		assert.Equal(t, generr.KindTemplate, gerr.Kind)
		assert.Equal(t, "de", gerr.Locale)
		assert.Contains(t, err.Error(), `"de"`)
	})

	t.Run("no fallback across templates", func(t *testing.T) {
		_, err := r.Resolve("compact", "es")
		assert.Equal(t, generr.KindTemplate, generr.KindOf(err))
	})

	t.Run("unknown template", func(t *testing.T) {
		_, err := r.Resolve("fancy", "en")
		assert.Equal(t, generr.KindTemplate, generr.KindOf(err))
	})
}

func TestPrimarySubtag(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"en":       "en",
		"en-US":    "en",
		"EN-gb":    "en",
		"es-419":   "es",
		"pt_BR":    "pt",
		" de ":     "de",
		"zh-Hant":  "zh",
		"xx-bogus": "xx",
	}
	for in, want := range tests {
		assert.Equal(t, want, PrimarySubtag(in), in)
	}
}

func manifestFS(manifest string) fstest.MapFS {
	return fstest.MapFS{
		"plain/manifest.yaml":   {Data: []byte(manifest)},
		"plain/main.tex.tmpl":   {Data: []byte(`<< .labels.title >>`)},
		"plain/locales/en.yaml": {Data: []byte("title: A & B\n")},
		"notes.txt":             {Data: []byte("ignored")},
	}
}

func TestLoad_CustomFS(t *testing.T) {
	t.Parallel()

	r, err := Load(manifestFS("id: plain\nversion: 0.1.0\nentry: main.tex.tmpl\nlocales: [en]\n"))
	require.NoError(t, err)

	inst, err := r.Resolve("plain", "en")
	require.NoError(t, err)
	assert.Equal(t, "plain", inst.Meta.Name)
	assert.Equal(t, `A \& B`, inst.Labels["title"])
}

func TestLoad_RejectsBadManifests(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"id mismatch":     "id: other\nentry: main.tex.tmpl\nlocales: [en]\n",
		"traversal entry": "id: plain\nentry: ../main.tex.tmpl\nlocales: [en]\n",
		"no locales":      "id: plain\nentry: main.tex.tmpl\n",
		"missing labels":  "id: plain\nentry: main.tex.tmpl\nlocales: [en, fr]\n",
		"bad locale":      "id: plain\nentry: main.tex.tmpl\nlocales: [../en]\n",
		"missing entry":   "id: plain\nentry: other.tex.tmpl\nlocales: [en]\n",
	}
	for name, manifest := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := Load(manifestFS(manifest))
			assert.Error(t, err)
		})
	}
}

func TestLoad_Empty(t *testing.T) {
	t.Parallel()

	_, err := Load(fstest.MapFS{})
	assert.Error(t, err)
}

func TestValidateAssetName(t *testing.T) {
	t.Parallel()

	assert.NoError(t, ValidateAssetName("classic"))
	for _, name := range []string{"", "a/b", `a\b`, "..", "a.b"} {
		assert.ErrorIs(t, ValidateAssetName(name), ErrInvalidAssetName, name)
	}
}
