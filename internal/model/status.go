package model

import (
	"context"
	"slices"
	"time"
)

// RoundStatus is the derived state of one participant in one round.
type RoundStatus string

const (
	StatusPending RoundStatus = "PENDING"
	StatusWon     RoundStatus = "WON"
	StatusBid     RoundStatus = "BID"
	StatusPaid    RoundStatus = "PAID"
	StatusUnpaid  RoundStatus = "UNPAID"
)

// RoundFlags are the raw per-round facts read from the ledger.
type RoundFlags struct {
	Round   int  `json:"round"`
	HasPaid bool `json:"hasPaid"`
	HasBid  bool `json:"hasBid"`
}

// RoundState is a round's raw flags together with the derived status.
type RoundState struct {
	RoundFlags
	Status RoundStatus `json:"status"`
}

// StatusStore defines persistence operations for per user and ledger statuses.
type StatusStore interface {
	Upsert(ctx context.Context, patch StatusPatch) (Status, error)
	Get(ctx context.Context, userAddress, contractAddress string) (Status, error)
	ListByContract(ctx context.Context, contractAddress string) ([]Status, error)
}

// Status is the participation record of a user in a ledger.
type Status struct {
	UserAddress         string       `json:"userAddress"`
	ContractAddress     string       `json:"contractAddress"`
	Rounds              []RoundState `json:"rounds"`
	ParticipantWonRound int          `json:"participantWonRound"`
	HasWon              bool         `json:"hasWon"`
	UserContributions   int64        `json:"userContributions"`
	LastUpdated         time.Time    `json:"lastUpdated"`
}

// Flags returns the raw flags of every stored round.
func (s Status) Flags() []RoundFlags {
	flags := make([]RoundFlags, 0, len(s.Rounds))
	for _, r := range s.Rounds {
		flags = append(flags, r.RoundFlags)
	}
	return flags
}

// StatusPatch is a partial status update. Nil fields and a zero LastUpdated
// keep the stored value.
type StatusPatch struct {
	UserAddress         string
	ContractAddress     string
	Rounds              []RoundState
	ParticipantWonRound *int
	HasWon              *bool
	UserContributions   *int64
	LastUpdated         time.Time
}

// Apply merges the patch into s and reports whether anything changed.
func (p StatusPatch) Apply(s Status) (Status, bool) {
	merged := s
	merged.UserAddress = NormalizeAddress(p.UserAddress)
	merged.ContractAddress = NormalizeAddress(p.ContractAddress)
	if p.Rounds != nil {
		merged.Rounds = slices.Clone(p.Rounds)
	}
	if p.ParticipantWonRound != nil {
		merged.ParticipantWonRound = *p.ParticipantWonRound
	}
	if p.HasWon != nil {
		merged.HasWon = *p.HasWon
	}
	if p.UserContributions != nil {
		merged.UserContributions = *p.UserContributions
	}
	if !p.LastUpdated.IsZero() {
		merged.LastUpdated = p.LastUpdated
	}

	changed := merged.UserAddress != s.UserAddress ||
		merged.ContractAddress != s.ContractAddress ||
		!slices.Equal(merged.Rounds, s.Rounds) ||
		merged.ParticipantWonRound != s.ParticipantWonRound ||
		merged.HasWon != s.HasWon ||
		merged.UserContributions != s.UserContributions ||
		!merged.LastUpdated.Equal(s.LastUpdated)

	return merged, changed
}
