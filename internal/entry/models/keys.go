package models

import (
	"strings"

	id "entrygate/pkg/domain"
)

// Key layout shared by every store backend:
//
//	pk = CONTEST#<contestId>
//	sk = ENTRY#<entryId> | DEDUPE#EMAIL#<hash> | DEDUPE#PHONE#<hash>
const (
	contestPrefix = "CONTEST#"
	entryPrefix   = "ENTRY#"
	dedupePrefix  = "DEDUPE#"
)

// PartitionKey is the partition of every record belonging to a contest.
func PartitionKey(contestID id.ContestID) string {
	return contestPrefix + string(contestID)
}

// EntrySortKey addresses the entry record.
func EntrySortKey(entryID id.EntryID) string {
	return entryPrefix + entryID.String()
}

// SortKey addresses the marker record.
func (m DedupeMarker) SortKey() string {
	return dedupePrefix + strings.ToUpper(string(m.Kind)) + "#" + m.Hash
}
