package models

import "time"

// ConflictType classifies the divergence shape between two asset versions.
type ConflictType string

const (
	ConflictCreate ConflictType = "create"
	ConflictUpdate ConflictType = "update"
	ConflictDelete ConflictType = "delete"
)

// Strategy selects how a detected conflict is resolved.
type Strategy string

const (
	// StrategyLocalWins applies the local version unconditionally.
	StrategyLocalWins Strategy = "local_wins"
	// StrategyRemoteWins applies the remote version unconditionally.
	StrategyRemoteWins Strategy = "remote_wins"
	// StrategyLastModifiedWins applies the strictly later version;
	// a timestamp tie falls back to local.
	StrategyLastModifiedWins Strategy = "last_modified_wins"
	// StrategyManual persists the conflict for human resolution and applies
	// neither version.
	StrategyManual Strategy = "manual"
)

// Conflict is a detected divergence between a local and remote version of
// the same asset: both sides mutated it since the last confirmed sync point.
type Conflict struct {
	LocalVersion  *Asset
	RemoteVersion *Asset
	LastSync      time.Time
	Type          ConflictType
}
