package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Entry stores and schedulers return
// these (optionally wrapped) so services can translate them into domain errors.
//
// - ErrNotFound: record does not exist in the store
// - ErrConflict: a conditional write lost because a key already exists
// - ErrUnavailable: backend temporarily unreachable or throttled
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("unavailable")
)
