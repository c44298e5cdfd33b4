package derive

import (
	"github.com/dtroode/kurisync/internal/model"
)

// Project re-derives a stored status against the latest ledger metadata.
// Aggregates are carried over unchanged. When the ledger's round is unknown
// every round is reported as PENDING. Rounds missing from the stored record
// are read as all-false flags.
func Project(status model.Status, ledger model.Ledger) model.Status {
	if ledger.Slots == nil || *ledger.Slots < 1 {
		return status
	}

	current := 0
	if ledger.CurrentRound != nil {
		current = *ledger.CurrentRound
	}

	stored := make(map[int]model.RoundFlags, len(status.Rounds))
	for _, r := range status.Rounds {
		stored[r.Round] = r.RoundFlags
	}

	out := status
	out.Rounds = make([]model.RoundState, 0, *ledger.Slots)
	for r := 1; r <= *ledger.Slots; r++ {
		f, ok := stored[r]
		if !ok {
			f = model.RoundFlags{Round: r}
		}
		out.Rounds = append(out.Rounds, model.RoundState{
			RoundFlags: f,
			Status:     Round(r, current, f, status.ParticipantWonRound),
		})
	}

	return out
}
