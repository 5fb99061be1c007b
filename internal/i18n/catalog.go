// Package i18n holds the localized texts and menu labels of the bot.
//
// Every supported language ships as an embedded TOML table under locales/. All tables
// must define the same keys; Load refuses a catalog where they drift apart.
package i18n

import (
	"embed"
	"fmt"
	"sort"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// LanguageNameKey names each language in its own script. The language picker shows it.
const LanguageNameKey = "LANGUAGE_NAME"

//go:embed locales/*.toml
var localeFS embed.FS

// Catalog is the immutable set of loaded language tables.
type Catalog struct {
	langs  []string
	tables map[string]map[string]string
}

// Load parses the embedded tables of langs. The first entry of langs is the fallback
// for lookups of unknown languages.
func Load(langs []string) (*Catalog, error) {
	if len(langs) == 0 {
		return nil, fmt.Errorf("i18n: no languages configured")
	}
	c := &Catalog{tables: make(map[string]map[string]string, len(langs))}
	for _, lang := range langs {
		lang = strings.ToLower(strings.TrimSpace(lang))
		if _, dup := c.tables[lang]; dup {
			continue
		}
		raw, err := localeFS.ReadFile("locales/" + lang + ".toml")
		if err != nil {
			return nil, fmt.Errorf("i18n: locale %q: %w", lang, err)
		}
		table := map[string]string{}
		if err := toml.Unmarshal(raw, &table); err != nil {
			return nil, fmt.Errorf("i18n: parse locale %q: %w", lang, err)
		}
		if table[LanguageNameKey] == "" {
			return nil, fmt.Errorf("i18n: locale %q lacks %s", lang, LanguageNameKey)
		}
		c.langs = append(c.langs, lang)
		c.tables[lang] = table
	}
	if err := c.checkKeys(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Catalog) checkKeys() error {
	ref := c.langs[0]
	for _, lang := range c.langs[1:] {
		if missing := diffKeys(c.tables[ref], c.tables[lang]); len(missing) > 0 {
			return fmt.Errorf("i18n: locale %q misses keys %v", lang, missing)
		}
		if extra := diffKeys(c.tables[lang], c.tables[ref]); len(extra) > 0 {
			return fmt.Errorf("i18n: locale %q has keys unknown to %q: %v", lang, ref, extra)
		}
	}
	return nil
}

// diffKeys lists keys of a that are absent from b.
func diffKeys(a, b map[string]string) []string {
	var out []string
	for k := range a {
		if _, ok := b[k]; !ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// Languages returns the loaded language codes in configured order.
func (c *Catalog) Languages() []string {
	return append([]string(nil), c.langs...)
}

// Supports reports whether lang has a loaded table.
func (c *Catalog) Supports(lang string) bool {
	_, ok := c.tables[lang]
	return ok
}

// For returns the table of lang, or of the first configured language when lang is unknown.
func (c *Catalog) For(lang string) Table {
	if t, ok := c.tables[lang]; ok {
		return Table{lang: lang, texts: t}
	}
	return Table{lang: c.langs[0], texts: c.tables[c.langs[0]]}
}

// LanguageLabels returns every language's own name, in configured order.
func (c *Catalog) LanguageLabels() []string {
	out := make([]string, 0, len(c.langs))
	for _, lang := range c.langs {
		out = append(out, c.tables[lang][LanguageNameKey])
	}
	return out
}

// MatchLanguage resolves a picker label back to its language code.
func (c *Catalog) MatchLanguage(label string) (string, bool) {
	label = strings.TrimSpace(label)
	if label == "" {
		return "", false
	}
	for _, lang := range c.langs {
		if c.tables[lang][LanguageNameKey] == label {
			return lang, true
		}
	}
	return "", false
}

// Table is the text lookup of a single language.
type Table struct {
	lang  string
	texts map[string]string
}

// Lang returns the language code of t.
func (t Table) Lang() string { return t.lang }

// Text returns the localized text of key. A missing key is a programming error and panics.
func (t Table) Text(key string) string {
	v, ok := t.texts[key]
	if !ok {
		panic(fmt.Sprintf("i18n: key %q missing in locale %q", key, t.lang))
	}
	return v
}

// Textf formats the localized text of key with args.
func (t Table) Textf(key string, args ...any) string {
	return fmt.Sprintf(t.Text(key), args...)
}
