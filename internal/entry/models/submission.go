package models

import (
	"bytes"
	"encoding/json"
)

// Submission is the raw admission request body.
//
// Known fields map to struct fields. Any other string field is kept in Extra
// and any other boolean (marketing opt-ins and similar) in Opts, so contest
// forms can add fields without a code change.
type Submission struct {
	ContestID     string `json:"contestId"`
	DrawAtISO     string `json:"drawAtIso"`
	ReminderAtISO string `json:"reminderAtIso,omitempty"`
	Locale        string `json:"locale,omitempty"`
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	Address1      string `json:"address1"`
	City          string `json:"city"`
	ProvinceState string `json:"provinceState"`
	PostalCode    string `json:"postalCode"`
	Country       string `json:"country"`
	Consent       bool   `json:"consent"`

	Extra map[string]string `json:"-"`
	Opts  map[string]bool   `json:"-"`

	// mistyped holds known fields whose JSON value was not a string.
	mistyped map[string]bool
}

// ProfileFieldNames lists the known profile fields in the order the
// validator reports them.
var ProfileFieldNames = []string{
	FieldFirstName,
	FieldLastName,
	"address1",
	"city",
	"provinceState",
	"postalCode",
	"country",
}

// Mistyped reports whether the known field arrived with a non-string value.
func (s *Submission) Mistyped(field string) bool {
	return s != nil && s.mistyped[field]
}

// MarkMistyped flags a known field as having had the wrong JSON type.
func (s *Submission) MarkMistyped(field string) {
	if s.mistyped == nil {
		s.mistyped = map[string]bool{}
	}
	s.mistyped[field] = true
}

// maxExtraFields bounds what an arbitrary client can make us store.
const maxExtraFields = 32

// UnmarshalJSON accepts the known fields with their JSON types and sorts the
// rest into Extra or Opts. A known field of the wrong type is left empty and
// flagged for the validator, which reports it in its fixed check order.
// Consent is true only for a JSON true.
func (s *Submission) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	strFields := map[string]*string{
		"contestId":     &s.ContestID,
		"drawAtIso":     &s.DrawAtISO,
		"reminderAtIso": &s.ReminderAtISO,
		"locale":        &s.Locale,
		"firstName":     &s.FirstName,
		"lastName":      &s.LastName,
		"email":         &s.Email,
		"phone":         &s.Phone,
		"address1":      &s.Address1,
		"city":          &s.City,
		"provinceState": &s.ProvinceState,
		"postalCode":    &s.PostalCode,
		"country":       &s.Country,
	}

	for key, value := range raw {
		if isNull(value) {
			continue
		}
		if dst, ok := strFields[key]; ok {
			if err := json.Unmarshal(value, dst); err != nil {
				s.MarkMistyped(key)
			}
			continue
		}
		if key == "consent" {
			var b bool
			if json.Unmarshal(value, &b) == nil {
				s.Consent = b
			}
			continue
		}

		if len(s.Extra)+len(s.Opts) >= maxExtraFields {
			continue
		}
		var str string
		if json.Unmarshal(value, &str) == nil {
			if s.Extra == nil {
				s.Extra = map[string]string{}
			}
			s.Extra[key] = str
			continue
		}
		var b bool
		if json.Unmarshal(value, &b) == nil {
			if s.Opts == nil {
				s.Opts = map[string]bool{}
			}
			s.Opts[key] = b
		}
	}
	return nil
}

func isNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

// ProfileFields returns the non-identity personal fields keyed by their wire name.
func (s *Submission) ProfileFields() map[string]string {
	profile := map[string]string{
		FieldFirstName:  s.FirstName,
		FieldLastName:   s.LastName,
		"address1":      s.Address1,
		"city":          s.City,
		"provinceState": s.ProvinceState,
		"postalCode":    s.PostalCode,
		"country":       s.Country,
	}
	for k, v := range s.Extra {
		profile[k] = v
	}
	return profile
}
