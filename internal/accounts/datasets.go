// Package accounts fetches complete Drift account datasets from an RPC node.
package accounts

import (
	"driftexport/pkg/drift"
)

// Snapshot prefixes, one per dataset.
const (
	DatasetUserStats = "userstats"
	DatasetUsers     = "users"
)

// UserStatsSet is every UserStats account at (roughly) one slot.
type UserStatsSet struct {
	Slot     uint64            `json:"slot"`
	Accounts []drift.UserStats `json:"accounts"`
	Stats    BatchStats        `json:"stats"`
}

// UserSet is every User account at (roughly) one slot.
type UserSet struct {
	Slot     uint64       `json:"slot"`
	Accounts []drift.User `json:"accounts"`
	Stats    BatchStats   `json:"stats"`
}
