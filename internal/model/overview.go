package model

// Overview is a participant's view of every ledger they take part in.
type Overview struct {
	WalletAddress string           `json:"walletAddress"`
	User          OverviewUser     `json:"user"`
	Ledgers       []LedgerOverview `json:"kuris"`
}

type OverviewUser struct {
	ID      int64   `json:"id"`
	Name    string  `json:"name"`
	Balance float64 `json:"balance"`
	Points  int64   `json:"points"`
}

// LedgerOverview holds the viewer's contributions and the derived statuses
// of every participant in one ledger.
type LedgerOverview struct {
	ID              int64      `json:"id"`
	ContractAddress string     `json:"contractAddress"`
	Contributions   int64      `json:"contributions"`
	TruthTable      TruthTable `json:"truthTable"`
}

type TruthTable struct {
	Periods      int              `json:"periods"`
	Participants []ParticipantRow `json:"participants"`
}

type ParticipantRow struct {
	Name     string        `json:"name"`
	Address  string        `json:"address"`
	Statuses []RoundStatus `json:"statuses"`
}

// UnknownParticipant names participants missing from the registry.
const UnknownParticipant = "Unknown"
