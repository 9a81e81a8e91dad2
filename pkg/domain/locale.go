package domain

import (
	"strings"

	dErrors "entrygate/pkg/domain-errors"
)

// Locale is a supported message language.
type Locale string

const (
	LocaleEN Locale = "en"
	LocaleFR Locale = "fr"
)

// DefaultLocale is used when a submission or payload omits one.
const DefaultLocale = LocaleEN

var knownLocales = map[Locale]struct{}{
	LocaleEN: {},
	LocaleFR: {},
}

// ParseLocale accepts "en", "fr" and region variants such as "fr-CA".
// An empty string yields the default locale.
func ParseLocale(s string) (Locale, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DefaultLocale, nil
	}
	if i := strings.IndexAny(s, "-_"); i > 0 {
		s = s[:i]
	}
	l := Locale(s)
	if _, ok := knownLocales[l]; !ok {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid locale")
	}
	return l, nil
}

func (l Locale) String() string { return string(l) }
