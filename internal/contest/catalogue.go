// Package contest holds per-contest admission rules loaded from a YAML catalogue.
//
//	strict: false
//	defaults:
//	  requireConsent: true
//	  locales: [en, fr]
//	contests:
//	  summer-2026:
//	    requiredFields: [firstName, lastName, postalCode]
//	    phoneRegion: CA
//	    reminderOffset: 48h
//
// Contests not listed use the defaults unless strict is set, in which case
// they are rejected.
package contest

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	id "entrygate/pkg/domain"
	pstrings "entrygate/pkg/platform/strings"
)

// Rules are the admission rules of one contest.
type Rules struct {
	RequireConsent bool
	RequiredFields []string
	Locales        []id.Locale
	PhoneRegion    string
	// ReminderOffset overrides the service default when non-zero.
	ReminderOffset time.Duration
}

// SupportsLocale reports whether messages can be sent in l for this contest.
func (r Rules) SupportsLocale(l id.Locale) bool {
	for _, known := range r.Locales {
		if known == l {
			return true
		}
	}
	return false
}

// Catalogue resolves rules by contest id.
type Catalogue struct {
	strict   bool
	defaults Rules
	contests map[id.ContestID]Rules
}

// DefaultRules match the behavior of a deployment without a catalogue file.
func DefaultRules() Rules {
	return Rules{
		RequireConsent: true,
		Locales:        []id.Locale{id.LocaleEN, id.LocaleFR},
	}
}

// NewCatalogue returns a permissive catalogue that applies defaults to every contest.
func NewCatalogue(defaults Rules) *Catalogue {
	return &Catalogue{defaults: defaults, contests: map[id.ContestID]Rules{}}
}

// Lookup returns the rules for a contest; ok is false only for unknown
// contests in a strict catalogue.
func (c *Catalogue) Lookup(contestID id.ContestID) (Rules, bool) {
	if r, ok := c.contests[contestID]; ok {
		return r, true
	}
	if c.strict {
		return Rules{}, false
	}
	return c.defaults, true
}

type rulesDoc struct {
	RequireConsent *bool    `yaml:"requireConsent"`
	RequiredFields []string `yaml:"requiredFields"`
	Locales        []string `yaml:"locales"`
	PhoneRegion    string   `yaml:"phoneRegion"`
	ReminderOffset string   `yaml:"reminderOffset"`
}

type catalogueDoc struct {
	Strict   bool                `yaml:"strict"`
	Defaults rulesDoc            `yaml:"defaults"`
	Contests map[string]rulesDoc `yaml:"contests"`
}

// Load reads a catalogue file. An empty path yields the default catalogue.
func Load(path string) (*Catalogue, error) {
	if path == "" {
		return NewCatalogue(DefaultRules()), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read contest catalogue: %w", err)
	}
	return Parse(raw)
}

// Parse decodes catalogue YAML.
func Parse(raw []byte) (*Catalogue, error) {
	var doc catalogueDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode contest catalogue: %w", err)
	}

	defaults, err := doc.Defaults.resolve(DefaultRules())
	if err != nil {
		return nil, fmt.Errorf("defaults: %w", err)
	}

	cat := &Catalogue{
		strict:   doc.Strict,
		defaults: defaults,
		contests: make(map[id.ContestID]Rules, len(doc.Contests)),
	}
	for rawID, rd := range doc.Contests {
		contestID, err := id.ParseContestID(rawID)
		if err != nil {
			return nil, fmt.Errorf("contest %q: %w", rawID, err)
		}
		rules, err := rd.resolve(defaults)
		if err != nil {
			return nil, fmt.Errorf("contest %q: %w", rawID, err)
		}
		cat.contests[contestID] = rules
	}
	return cat, nil
}

// resolve overlays the document on base.
func (d rulesDoc) resolve(base Rules) (Rules, error) {
	out := base
	if d.RequireConsent != nil {
		out.RequireConsent = *d.RequireConsent
	}
	if len(d.RequiredFields) > 0 {
		out.RequiredFields = pstrings.DedupeAndTrim(d.RequiredFields)
	}
	if len(d.Locales) > 0 {
		out.Locales = nil
		for _, raw := range pstrings.DedupeAndTrimLower(d.Locales) {
			l, err := id.ParseLocale(raw)
			if err != nil {
				return Rules{}, fmt.Errorf("locale %q: %w", raw, err)
			}
			out.Locales = append(out.Locales, l)
		}
	}
	if d.PhoneRegion != "" {
		out.PhoneRegion = d.PhoneRegion
	}
	if d.ReminderOffset != "" {
		offset, err := time.ParseDuration(d.ReminderOffset)
		if err != nil {
			return Rules{}, fmt.Errorf("reminderOffset: %w", err)
		}
		if offset <= 0 {
			return Rules{}, fmt.Errorf("reminderOffset must be positive")
		}
		out.ReminderOffset = offset
	}
	return out, nil
}
