package model

import (
	"context"
	"slices"
	"time"
)

// LedgerStore defines persistence operations for ledgers.
type LedgerStore interface {
	Upsert(ctx context.Context, patch LedgerPatch) (Ledger, error)
	GetByAddress(ctx context.Context, address string) (Ledger, error)
	List(ctx context.Context) ([]Ledger, error)
	ListByParticipant(ctx context.Context, address string) ([]Ledger, error)
}

// LedgerSource reads the view functions of a ledger contract.
type LedgerSource interface {
	SlotCount(ctx context.Context, contract string) (int, error)
	CurrentRound(ctx context.Context, contract string) (int, error)
	Participants(ctx context.Context, contract string) ([]string, error)
	HasPaidRound(ctx context.Context, contract, user string, round int) (bool, error)
	HasBidRound(ctx context.Context, contract, user string, round int) (bool, error)
	WonRound(ctx context.Context, contract, user string) (int, error)
	HasWon(ctx context.Context, contract, user string) (bool, error)
	TotalContributions(ctx context.Context, contract, user string) (int64, error)
}

// LedgerRef is the registry's view of a ledger: its id and contract address.
type LedgerRef struct {
	ID              int64  `json:"id"`
	ContractAddress string `json:"contractAddress"`
}

// Ledger is a rotating-savings contract mirrored from the chain.
// Slots and CurrentRound are nil until the chain has been read successfully.
type Ledger struct {
	ID              int64     `json:"id"`
	ContractAddress string    `json:"contractAddress"`
	Slots           *int      `json:"slots"`
	CurrentRound    *int      `json:"currentRound"`
	Participants    []string  `json:"participants"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// HasParticipant reports whether address takes part in the ledger.
func (l Ledger) HasParticipant(address string) bool {
	return slices.Contains(l.Participants, NormalizeAddress(address))
}

// LedgerPatch is a partial ledger update. Nil fields keep the stored value.
type LedgerPatch struct {
	ContractAddress string
	ID              *int64
	Slots           *int
	CurrentRound    *int
	Participants    []string
}

// PatchFromRef builds a patch carrying only the registry fields.
func PatchFromRef(ref LedgerRef) LedgerPatch {
	return LedgerPatch{
		ContractAddress: NormalizeAddress(ref.ContractAddress),
		ID:              &ref.ID,
	}
}

// Apply merges the patch into l and reports whether anything changed.
func (p LedgerPatch) Apply(l Ledger) (Ledger, bool) {
	merged := l
	merged.ContractAddress = NormalizeAddress(p.ContractAddress)
	if p.ID != nil {
		merged.ID = *p.ID
	}
	if p.Slots != nil {
		v := *p.Slots
		merged.Slots = &v
	}
	if p.CurrentRound != nil {
		v := *p.CurrentRound
		merged.CurrentRound = &v
	}
	if p.Participants != nil {
		merged.Participants = slices.Clone(p.Participants)
	}

	changed := merged.ContractAddress != l.ContractAddress ||
		merged.ID != l.ID ||
		!equalIntPtr(merged.Slots, l.Slots) ||
		!equalIntPtr(merged.CurrentRound, l.CurrentRound) ||
		!slices.Equal(merged.Participants, l.Participants)

	return merged, changed
}

func equalIntPtr(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
