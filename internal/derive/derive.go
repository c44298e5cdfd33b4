// Package derive turns raw per-round ledger flags into participation statuses.
//
// Precedence for a single round, first match wins:
//
//	round > currentRound   PENDING
//	round == wonRound      WON
//	hasBid                 BID
//	hasPaid                PAID
//	otherwise              UNPAID
package derive

import (
	"fmt"
	"time"

	"github.com/dtroode/kurisync/internal/model"
)

// Round derives the status of a single round. wonRound 0 means the
// participant has not won any round.
func Round(round, currentRound int, flags model.RoundFlags, wonRound int) model.RoundStatus {
	switch {
	case round > currentRound:
		return model.StatusPending
	case wonRound > 0 && round == wonRound:
		return model.StatusWon
	case flags.HasBid:
		return model.StatusBid
	case flags.HasPaid:
		return model.StatusPaid
	default:
		return model.StatusUnpaid
	}
}

// Rounds derives every round of a ledger with the given slot count. flags
// must hold exactly one entry per round in 1..slots, in any order.
func Rounds(slots, currentRound int, flags []model.RoundFlags, wonRound int) ([]model.RoundState, error) {
	if slots < 1 {
		return nil, model.ErrSlotsUnknown
	}

	byRound := make([]*model.RoundFlags, slots+1)
	for i := range flags {
		f := flags[i]
		if f.Round < 1 || f.Round > slots {
			return nil, fmt.Errorf("%w: round %d of %d", model.ErrRoundOutOfRange, f.Round, slots)
		}
		if byRound[f.Round] != nil {
			return nil, fmt.Errorf("%w: round %d given twice", model.ErrRoundOutOfRange, f.Round)
		}
		byRound[f.Round] = &f
	}

	states := make([]model.RoundState, 0, slots)
	for r := 1; r <= slots; r++ {
		f := byRound[r]
		if f == nil {
			return nil, fmt.Errorf("%w: round %d", model.ErrMissingRound, r)
		}
		states = append(states, model.RoundState{
			RoundFlags: *f,
			Status:     Round(r, currentRound, *f, wonRound),
		})
	}

	return states, nil
}

// Available derives the rounds of 1..slots present in flags, in round
// order, and ignores the rest.
func Available(slots, currentRound int, flags []model.RoundFlags, wonRound int) []model.RoundState {
	byRound := make(map[int]model.RoundFlags, len(flags))
	for _, f := range flags {
		if f.Round >= 1 && f.Round <= slots {
			byRound[f.Round] = f
		}
	}

	states := make([]model.RoundState, 0, len(byRound))
	for r := 1; r <= slots; r++ {
		if f, ok := byRound[r]; ok {
			states = append(states, model.RoundState{RoundFlags: f, Status: Round(r, currentRound, f, wonRound)})
		}
	}
	return states
}

// Input carries everything a status computation needs. Nil aggregates were
// not read successfully and stay untouched in the store.
type Input struct {
	UserAddress       string
	ContractAddress   string
	Slots             int
	CurrentRound      int
	Flags             []model.RoundFlags
	WonRound          *int
	UserContributions *int64
	Now               time.Time

	// StoredWonRound is the won round already on record. It drives the
	// derivation when WonRound is nil.
	StoredWonRound int
}

// EffectiveWonRound is the won round the rounds are derived with.
func (in Input) EffectiveWonRound() int {
	if in.WonRound != nil {
		return *in.WonRound
	}
	return in.StoredWonRound
}

// Compute builds the status patch for one user in one ledger. HasWon is
// always derived from the won round so the two cannot disagree. An unread
// won round leaves both fields nil and the stored won round is used to
// derive the rounds.
func Compute(in Input) (model.StatusPatch, error) {
	states, err := Rounds(in.Slots, in.CurrentRound, in.Flags, in.EffectiveWonRound())
	if err != nil {
		return model.StatusPatch{}, fmt.Errorf("failed to derive rounds for %s in %s: %w", in.UserAddress, in.ContractAddress, err)
	}

	patch := model.StatusPatch{
		UserAddress:       model.NormalizeAddress(in.UserAddress),
		ContractAddress:   model.NormalizeAddress(in.ContractAddress),
		Rounds:            states,
		UserContributions: in.UserContributions,
		LastUpdated:       in.Now,
	}
	if in.WonRound != nil {
		won := *in.WonRound
		hasWon := won > 0
		patch.ParticipantWonRound = &won
		patch.HasWon = &hasWon
	}

	return patch, nil
}

// Statuses returns only the derived status of every round, in order.
func Statuses(states []model.RoundState) []model.RoundStatus {
	out := make([]model.RoundStatus, 0, len(states))
	for _, s := range states {
		out = append(out, s.Status)
	}
	return out
}
