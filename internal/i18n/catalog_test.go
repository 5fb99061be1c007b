package i18n

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadShippedLocales(t *testing.T) {
	c, err := Load([]string{"en", "fa", "ar"})
	require.NoError(t, err)

	assert.Equal(t, []string{"en", "fa", "ar"}, c.Languages())
	assert.Equal(t, []string{"English", "فارسی", "العربية"}, c.LanguageLabels())
	assert.True(t, c.Supports("fa"))
	assert.False(t, c.Supports("de"))
}

func TestLoadRejectsUnknownLocale(t *testing.T) {
	_, err := Load([]string{"en", "xx"})
	assert.Error(t, err)

	_, err = Load(nil)
	assert.Error(t, err)
}

func TestMatchLanguage(t *testing.T) {
	c, err := Load([]string{"en", "fa", "ar"})
	require.NoError(t, err)

	lang, ok := c.MatchLanguage("فارسی")
	assert.True(t, ok)
	assert.Equal(t, "fa", lang)

	_, ok = c.MatchLanguage("Deutsch")
	assert.False(t, ok)
	_, ok = c.MatchLanguage("")
	assert.False(t, ok)
}

func TestTableLookups(t *testing.T) {
	c, err := Load([]string{"en", "fa"})
	require.NoError(t, err)

	en := c.For("en")
	assert.Equal(t, "en", en.Lang())
	assert.Equal(t, "Back to menu", en.Text("MENU_BACK_HOME"))
	assert.Equal(t, "Language set to English.", en.Textf("MSG_LANGUAGE_CHANGED", "English"))

	assert.Equal(t, "en", c.For("de").Lang(), "unknown language falls back to the first one")
	assert.NotEqual(t, en.Text("MENU_BACK_HOME"), c.For("fa").Text("MENU_BACK_HOME"))
}

func TestMissingKeyPanics(t *testing.T) {
	c, err := Load([]string{"en"})
	require.NoError(t, err)

	assert.Panics(t, func() { c.For("en").Text("NO_SUCH_KEY") })
}

func TestMenuLabelsAreDistinctPerLanguage(t *testing.T) {
	c, err := Load([]string{"en", "fa", "ar"})
	require.NoError(t, err)

	for _, lang := range c.Languages() {
		seen := map[string]string{}
		for key, val := range c.tables[lang] {
			if len(key) < 5 || key[:5] != "MENU_" {
				continue
			}
			if prev, dup := seen[val]; dup {
				t.Fatalf("%s: %s and %s share label %q", lang, prev, key, val)
			}
			seen[val] = key
		}
	}
}
