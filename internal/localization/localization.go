// Package localization loads user-facing strings from per-language JSON
// files and resolves them with an English fallback.
package localization

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Fallback is the language every lookup falls back to. Its file must be
// present in the locale directory.
const Fallback = "en"

// Localizer holds one translation table per language code.
type Localizer struct {
	mu           sync.RWMutex
	translations map[string]map[string]string
}

// NewLocalizer loads every <lang>.json file from dir. Loading fails when
// the directory is unreadable, a file is malformed, or the fallback
// language is missing.
func NewLocalizer(dir string) (*Localizer, error) {
	l := &Localizer{translations: make(map[string]map[string]string)}

	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read locale directory: %w", err)
	}

	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") {
			continue
		}
		lang := strings.TrimSuffix(file.Name(), ".json")

		data, err := os.ReadFile(filepath.Join(dir, file.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read locale file %s: %w", file.Name(), err)
		}
		var table map[string]string
		if err := json.Unmarshal(data, &table); err != nil {
			return nil, fmt.Errorf("failed to parse locale file %s: %w", file.Name(), err)
		}
		l.translations[lang] = table
	}

	if _, ok := l.translations[Fallback]; !ok {
		return nil, fmt.Errorf("locale directory %s is missing %s.json", dir, Fallback)
	}
	return l, nil
}

// Get returns the string for key in lang, falling back to English and
// finally to the key itself so a missing translation never blanks a
// message.
func (l *Localizer) Get(lang, key string) string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if table, ok := l.translations[lang]; ok {
		if value, ok := table[key]; ok {
			return value
		}
	}
	if lang != Fallback {
		if value, ok := l.translations[Fallback][key]; ok {
			return value
		}
	}
	return key
}

// Format resolves key in lang and interpolates args into its printf
// placeholders.
func (l *Localizer) Format(lang, key string, args ...interface{}) string {
	template := l.Get(lang, key)
	if len(args) == 0 {
		return template
	}
	return fmt.Sprintf(template, args...)
}

// Has reports whether a language file was loaded.
func (l *Localizer) Has(lang string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.translations[lang]
	return ok
}

// Languages lists the loaded language codes in sorted order.
func (l *Localizer) Languages() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	langs := make([]string, 0, len(l.translations))
	for lang := range l.translations {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}
