// Package validator turns a raw submission into a normalized admission candidate.
//
// Checks run in a fixed order and the first failure wins, so a client always
// sees the same message for the same body. A field that arrived with the wrong
// JSON type fails as "invalid <field>" at the point where that field is first
// checked. Nothing here touches a store.
package validator

import (
	"net/mail"
	"strings"
	"time"

	"github.com/nyaruka/phonenumbers"

	"entrygate/internal/contest"
	"entrygate/internal/entry/identity"
	"entrygate/internal/entry/models"
	id "entrygate/pkg/domain"
	dErrors "entrygate/pkg/domain-errors"
)

// Validator checks submissions against the contest catalogue.
type Validator struct {
	catalogue     *contest.Catalogue
	defaultLocale id.Locale
}

type Option func(*Validator)

// WithDefaultLocale sets the locale used when a submission omits one.
func WithDefaultLocale(l id.Locale) Option {
	return func(v *Validator) {
		if l != "" {
			v.defaultLocale = l
		}
	}
}

func New(catalogue *contest.Catalogue, opts ...Option) *Validator {
	if catalogue == nil {
		catalogue = contest.NewCatalogue(contest.DefaultRules())
	}
	v := &Validator{catalogue: catalogue, defaultLocale: id.DefaultLocale}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate returns the candidate and the rules of its contest, or an
// invalid_input error naming the first failing field.
func (v *Validator) Validate(sub *models.Submission) (*models.Candidate, contest.Rules, error) {
	if sub == nil {
		return nil, contest.Rules{}, invalid("request body is required")
	}

	if sub.Mistyped("contestId") {
		return nil, contest.Rules{}, invalid("invalid contestId")
	}
	contestID, err := id.ParseContestID(sub.ContestID)
	if err != nil {
		return nil, contest.Rules{}, err
	}
	rules, ok := v.catalogue.Lookup(contestID)
	if !ok {
		return nil, contest.Rules{}, invalid("unknown contest")
	}

	if sub.Mistyped("drawAtIso") {
		return nil, rules, invalid("invalid drawAtIso")
	}
	if strings.TrimSpace(sub.DrawAtISO) == "" {
		return nil, rules, invalid("drawAtIso required")
	}
	if rules.RequireConsent && !sub.Consent {
		return nil, rules, invalid("consent required")
	}

	if sub.Mistyped("email") {
		return nil, rules, invalid("invalid email")
	}
	email := identity.NormalizeEmail(sub.Email)
	if email == "" {
		return nil, rules, invalid("email required")
	}
	if sub.Mistyped("phone") {
		return nil, rules, invalid("invalid phone")
	}
	phone := identity.NormalizePhone(sub.Phone)
	if !identity.HasDigits(phone) {
		return nil, rules, invalid("phone required")
	}

	for _, field := range models.ProfileFieldNames {
		if sub.Mistyped(field) {
			return nil, rules, invalid("invalid " + field)
		}
	}
	profile := trimProfile(sub.ProfileFields())
	for _, field := range rules.RequiredFields {
		if requiredElsewhere(field) {
			continue
		}
		if profile[field] == "" {
			return nil, rules, invalid(field + " required")
		}
	}

	drawAt, err := parseTimestamp(sub.DrawAtISO)
	if err != nil {
		return nil, rules, invalid("invalid drawAtIso")
	}
	if sub.Mistyped("reminderAtIso") {
		return nil, rules, invalid("invalid reminderAtIso")
	}
	var reminderAt *time.Time
	if strings.TrimSpace(sub.ReminderAtISO) != "" {
		t, err := parseTimestamp(sub.ReminderAtISO)
		if err != nil {
			return nil, rules, invalid("invalid reminderAtIso")
		}
		reminderAt = &t
	}

	if !validEmail(email) {
		return nil, rules, invalid("invalid email")
	}
	if rules.PhoneRegion != "" && !possiblePhone(phone, rules.PhoneRegion) {
		return nil, rules, invalid("invalid phone")
	}

	if sub.Mistyped("locale") {
		return nil, rules, invalid("invalid locale")
	}
	locale := v.defaultLocale
	if strings.TrimSpace(sub.Locale) != "" {
		locale, err = id.ParseLocale(sub.Locale)
		if err != nil {
			return nil, rules, err
		}
	}
	if !rules.SupportsLocale(locale) {
		return nil, rules, invalid("invalid locale")
	}

	return &models.Candidate{
		ContestID:  contestID,
		DrawAt:     drawAt,
		ReminderAt: reminderAt,
		Locale:     locale,
		Email:      email,
		Phone:      phone,
		Profile:    profile,
		Flags:      copyFlags(sub.Opts),
		Consent:    sub.Consent,
	}, rules, nil
}

func invalid(msg string) error {
	return dErrors.New(dErrors.CodeInvalidInput, msg)
}

// requiredElsewhere lists fields with their own dedicated checks.
func requiredElsewhere(field string) bool {
	switch field {
	case "email", "phone", "consent", "contestId", "drawAtIso":
		return true
	}
	return false
}

func parseTimestamp(raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// validEmail accepts a bare addr-spec only; display names and angle brackets are rejected.
func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return false
	}
	return addr.Name == "" && strings.EqualFold(addr.Address, email)
}

func possiblePhone(phone, region string) bool {
	num, err := phonenumbers.Parse(phone, strings.ToUpper(region))
	if err != nil {
		return false
	}
	return phonenumbers.IsPossibleNumber(num)
}

func trimProfile(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out[k] = v
		}
	}
	return out
}

func copyFlags(in map[string]bool) map[string]bool {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]bool, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
