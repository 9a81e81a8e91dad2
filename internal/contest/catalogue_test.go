package contest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "entrygate/pkg/domain"
)

const sample = `
strict: true
defaults:
  locales: [en, fr]
contests:
  summer-2026:
    requiredFields: [firstName, " lastName ", firstName, postalCode]
    phoneRegion: CA
    reminderOffset: 48h
  quiz-night:
    requireConsent: false
    locales: [EN]
`

func TestParse(t *testing.T) {
	cat, err := Parse([]byte(sample))
	require.NoError(t, err)

	summer, ok := cat.Lookup("summer-2026")
	require.True(t, ok)
	assert.True(t, summer.RequireConsent, "inherits the built-in default")
	assert.Equal(t, []string{"firstName", "lastName", "postalCode"}, summer.RequiredFields)
	assert.Equal(t, "CA", summer.PhoneRegion)
	assert.Equal(t, 48*time.Hour, summer.ReminderOffset)
	assert.True(t, summer.SupportsLocale(id.LocaleFR))

	quiz, ok := cat.Lookup("quiz-night")
	require.True(t, ok)
	assert.False(t, quiz.RequireConsent)
	assert.False(t, quiz.SupportsLocale(id.LocaleFR))

	_, ok = cat.Lookup("unlisted")
	assert.False(t, ok, "strict catalogues reject unknown contests")
}

func TestParse_Errors(t *testing.T) {
	tests := map[string]string{
		"bad locale":      "contests:\n  c1:\n    locales: [de]\n",
		"bad offset":      "contests:\n  c1:\n    reminderOffset: soon\n",
		"negative offset": "contests:\n  c1:\n    reminderOffset: -1h\n",
		"separator in id": "contests:\n  \"a#b\":\n    phoneRegion: CA\n",
		"malformed yaml":  "contests: [",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	t.Run("empty path gives permissive defaults", func(t *testing.T) {
		cat, err := Load("")
		require.NoError(t, err)
		rules, ok := cat.Lookup("anything")
		require.True(t, ok)
		assert.True(t, rules.RequireConsent)
		assert.Equal(t, []id.Locale{id.LocaleEN, id.LocaleFR}, rules.Locales)
	})

	t.Run("reads file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "contests.yaml")
		require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))
		cat, err := Load(path)
		require.NoError(t, err)
		_, ok := cat.Lookup("summer-2026")
		assert.True(t, ok)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}
