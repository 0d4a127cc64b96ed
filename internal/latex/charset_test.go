package latex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cvix/internal/generr"
)

func TestTypesettable(t *testing.T) {
	t.Parallel()

	for _, r := range "Aa0 ~^\\{}éñüßøÆŁłŠšŽžȘșțı€“”‘’–—…•™→\t\n\x01" {
		assert.True(t, Typesettable(r), "U+%04X", r)
	}
	for _, r := range "東京李😀Ωжה☃\u0301ĸ" {
		assert.False(t, Typesettable(r), "U+%04X", r)
	}
}

func TestCheckCharset(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		text  string
		param string
	}{
		{"cjk", "Engineer at 東京", "U+6771"},
		{"emoji", "Ship it 🚀", "U+1F680"},
		{"greek", "Ωmega", "U+03A9"},
		{"combining mark", "e\u0301", "U+0301"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := CheckCharset("work[0].summary", tt.text)
			require.Error(t, err)
			gerr, ok := generr.As(err)
			require.True(t, ok)
			assert.Equal(t, generr.KindValidation, gerr.Kind)
			require.Len(t, gerr.Fields, 1)
			assert.Equal(t, "work[0].summary", gerr.Fields[0].Field)
			assert.Equal(t, RuleUnsupportedCharacter, gerr.Fields[0].Rule)
			assert.Equal(t, tt.param, gerr.Fields[0].Param)
		})
	}

	assert.NoError(t, CheckCharset("basics.name", "Zoë Ødegård-Łukasz"))
}

func TestGuard_FieldCharset(t *testing.T) {
	t.Parallel()

	g := NewGuard(ModeDenyList)

	// decomposed é folds into the precomposed letter
	out, err := g.Field("basics.name", "Jose\u0301")
	require.NoError(t, err)
	assert.Equal(t, "Jos\u00e9", out)

	_, err = g.Field("basics.name", "李雷")
	require.Error(t, err)
	assert.Equal(t, generr.KindValidation, generr.KindOf(err))

	_, err = g.Field("basics.name", `李 \input{x}`)
	assert.Equal(t, generr.KindSecurity, generr.KindOf(err))
}
