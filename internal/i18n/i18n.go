package i18n

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"strings"

	"golang.org/x/text/language"
)

// Bundle holds the translations of every supported locale.
type Bundle struct {
	dict      map[string]map[string]string
	fallback  string
	supported []string
	matcher   language.Matcher
}

// Load reads <lang>.json for each supported locale from fsys. Only the fallback
// locale is mandatory.
func Load(fsys fs.FS, fallback string, supported []string) (*Bundle, error) {
	fallback = normalize(fallback)
	if fallback == "" {
		fallback = "en"
	}
	if len(supported) == 0 {
		supported = []string{fallback}
	}
	b := &Bundle{
		dict:     map[string]map[string]string{},
		fallback: fallback,
	}
	// The fallback goes first so the matcher defaults to it.
	ordered := []string{fallback}
	for _, l := range supported {
		if l = normalize(l); l != "" && l != fallback {
			ordered = append(ordered, l)
		}
	}
	tags := make([]language.Tag, 0, len(ordered))
	for _, l := range ordered {
		tag, err := language.Parse(l)
		if err != nil {
			return nil, fmt.Errorf("i18n: parse locale %s: %w", l, err)
		}
		raw, err := fs.ReadFile(fsys, l+".json")
		if err != nil {
			if l == fallback {
				return nil, fmt.Errorf("i18n: load locale %s: %w", l, err)
			}
			continue
		}
		var m map[string]string
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("i18n: unmarshal %s: %w", l, err)
		}
		b.dict[l] = m
		b.supported = append(b.supported, l)
		tags = append(tags, tag)
	}
	b.matcher = language.NewMatcher(tags)
	return b, nil
}

// Supported lists loaded locales, fallback first.
func (b *Bundle) Supported() []string {
	return append([]string(nil), b.supported...)
}

// Fallback returns the default locale.
func (b *Bundle) Fallback() string { return b.fallback }

// IsSupported reports whether lang has a loaded bundle.
func (b *Bundle) IsSupported(lang string) bool {
	_, ok := b.dict[normalize(lang)]
	return ok
}

// T translates key in lang, falling back to the default locale and finally the key.
// Arguments are applied with fmt.Sprintf.
func (b *Bundle) T(lang, key string, args ...any) string {
	msg, ok := b.lookup(normalize(lang), key)
	if !ok {
		msg, ok = b.lookup(b.fallback, key)
	}
	if !ok {
		return key
	}
	if len(args) > 0 {
		return fmt.Sprintf(msg, args...)
	}
	return msg
}

func (b *Bundle) lookup(lang, key string) (string, bool) {
	m, ok := b.dict[lang]
	if !ok {
		return "", false
	}
	v, ok := m[key]
	return v, ok
}

// Resolve picks the best supported locale for an Accept-Language header.
func (b *Bundle) Resolve(acceptLang string) string {
	prefs, _, err := language.ParseAcceptLanguage(acceptLang)
	if err != nil || len(prefs) == 0 {
		return b.fallback
	}
	return b.match(prefs...)
}

// Match maps a single requested locale such as "fr-CA" onto a supported one.
func (b *Bundle) Match(raw string) (string, bool) {
	tag, err := language.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", false
	}
	_, idx, conf := b.matcher.Match(tag)
	if conf == language.No {
		return "", false
	}
	return b.supported[idx], true
}

func (b *Bundle) match(prefs ...language.Tag) string {
	_, idx, conf := b.matcher.Match(prefs...)
	if conf == language.No || idx >= len(b.supported) {
		return b.fallback
	}
	return b.supported[idx]
}

// Localizer binds a bundle to one locale.
func (b *Bundle) Localizer(lang string) Localizer {
	if !b.IsSupported(lang) {
		lang = b.fallback
	}
	return Localizer{bundle: b, Lang: normalize(lang)}
}

// Localizer translates for a single locale.
type Localizer struct {
	bundle *Bundle
	Lang   string
}

// T translates key.
func (l Localizer) T(key string, args ...any) string {
	if l.bundle == nil {
		return key
	}
	return l.bundle.T(l.Lang, key, args...)
}

// Dir returns the text direction of the locale.
func (l Localizer) Dir() string {
	return Direction(l.Lang)
}

// Direction returns "rtl" for locales written in a right-to-left script, else "ltr".
func Direction(lang string) string {
	tag, err := language.Parse(strings.TrimSpace(lang))
	if err != nil {
		return "ltr"
	}
	script, _ := tag.Script()
	switch script.String() {
	case "Arab", "Hebr", "Thaa", "Syrc", "Nkoo", "Adlm", "Rohg":
		return "rtl"
	default:
		return "ltr"
	}
}

func normalize(lang string) string {
	return strings.ToLower(strings.TrimSpace(lang))
}
