// Package domain holds the typed identifiers shared by every module.
// Parsing happens once at the trust boundary; past that point code passes typed
// values and never re-validates.
package domain

import (
	"strings"
	"unicode"

	"github.com/google/uuid"

	dErrors "entrygate/pkg/domain-errors"
)

// maxContestIDLen keeps the store partition key well inside backend key limits.
const maxContestIDLen = 128

// ContestID names a contest. It becomes part of the store partition key.
type ContestID string

// EntryID identifies an admitted entry. Always a random (v4) UUID.
type EntryID uuid.UUID

// ParseContestID validates a contest identifier. Surrounding whitespace is
// trimmed, but a value that is only whitespace is invalid rather than missing.
// '#' is reserved as the key separator.
func ParseContestID(raw string) (ContestID, error) {
	if raw == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "contestId required")
	}
	s := strings.TrimSpace(raw)
	if s == "" || len(s) > maxContestIDLen || strings.ContainsRune(s, '#') || strings.IndexFunc(s, unicode.IsSpace) >= 0 {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid contestId")
	}
	return ContestID(s), nil
}

func (c ContestID) String() string { return string(c) }

// NewEntryID returns a fresh random entry identifier.
func NewEntryID() EntryID {
	return EntryID(uuid.New())
}

// ParseEntryID parses a non-nil UUID.
func ParseEntryID(s string) (EntryID, error) {
	if s == "" {
		return EntryID{}, dErrors.New(dErrors.CodeInvalidInput, "entryId required")
	}
	u, err := uuid.Parse(s)
	if err != nil || u == uuid.Nil {
		return EntryID{}, dErrors.New(dErrors.CodeInvalidInput, "invalid entryId")
	}
	return EntryID(u), nil
}

func (e EntryID) String() string { return uuid.UUID(e).String() }

func (e EntryID) IsNil() bool { return uuid.UUID(e) == uuid.Nil }

// MarshalText lets EntryID appear as a plain string in JSON and attribute maps.
func (e EntryID) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

func (e *EntryID) UnmarshalText(b []byte) error {
	u, err := uuid.ParseBytes(b)
	if err != nil {
		return err
	}
	*e = EntryID(u)
	return nil
}
