// Package store holds the entry store backends. Each one commits an admission
// (entry record plus both dedupe markers) as a single conditional write: either
// every key was absent and all three records land, or nothing is written and
// the call fails with sentinel.ErrConflict.
//
//   - memory:   process-local, for tests and single-instance development
//   - dynamo:   DynamoDB TransactWriteItems on a single table
//   - postgres: one SQL transaction over contest_records and entries
package store
