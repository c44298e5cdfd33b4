package orm

import (
	"time"

	"github.com/dtroode/kurisync/internal/model"
)

type userRow struct {
	WalletAddress string    `gorm:"primaryKey"`
	RegistryID    int64     `gorm:"not null"`
	Name          string    `gorm:"not null"`
	Balance       float64   `gorm:"not null"`
	Points        int64     `gorm:"not null"`
	Ledgers       []string  `gorm:"serializer:json"`
	CreatedAt     time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime:false"`
}

func (userRow) TableName() string { return "users" }

func newUserRow(u model.User) userRow {
	return userRow{
		WalletAddress: u.WalletAddress,
		RegistryID:    u.ID,
		Name:          u.Name,
		Balance:       u.Balance,
		Points:        u.Points,
		Ledgers:       orEmpty(u.Ledgers),
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

func (r userRow) toModel() model.User {
	return model.User{
		ID:            r.RegistryID,
		WalletAddress: r.WalletAddress,
		Name:          r.Name,
		Balance:       r.Balance,
		Points:        r.Points,
		Ledgers:       orEmpty(r.Ledgers),
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

type ledgerRow struct {
	ContractAddress string `gorm:"primaryKey"`
	RegistryID      int64  `gorm:"not null"`
	Slots           *int
	CurrentRound    *int
	Participants    []string  `gorm:"serializer:json"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime:false"`
}

func (ledgerRow) TableName() string { return "ledgers" }

func newLedgerRow(l model.Ledger) ledgerRow {
	return ledgerRow{
		ContractAddress: l.ContractAddress,
		RegistryID:      l.ID,
		Slots:           l.Slots,
		CurrentRound:    l.CurrentRound,
		Participants:    orEmpty(l.Participants),
		UpdatedAt:       l.UpdatedAt,
	}
}

func (r ledgerRow) toModel() model.Ledger {
	return model.Ledger{
		ID:              r.RegistryID,
		ContractAddress: r.ContractAddress,
		Slots:           r.Slots,
		CurrentRound:    r.CurrentRound,
		Participants:    orEmpty(r.Participants),
		UpdatedAt:       r.UpdatedAt,
	}
}

type statusRow struct {
	UserAddress         string             `gorm:"primaryKey"`
	ContractAddress     string             `gorm:"primaryKey;index"`
	Rounds              []model.RoundState `gorm:"serializer:json"`
	ParticipantWonRound int                `gorm:"not null"`
	HasWon              bool               `gorm:"not null"`
	UserContributions   int64              `gorm:"not null"`
	LastUpdated         time.Time
}

func (statusRow) TableName() string { return "user_ledger_statuses" }

func newStatusRow(s model.Status) statusRow {
	return statusRow{
		UserAddress:         s.UserAddress,
		ContractAddress:     s.ContractAddress,
		Rounds:              orEmpty(s.Rounds),
		ParticipantWonRound: s.ParticipantWonRound,
		HasWon:              s.HasWon,
		UserContributions:   s.UserContributions,
		LastUpdated:         s.LastUpdated,
	}
}

func (r statusRow) toModel() model.Status {
	return model.Status{
		UserAddress:         r.UserAddress,
		ContractAddress:     r.ContractAddress,
		Rounds:              orEmpty(r.Rounds),
		ParticipantWonRound: r.ParticipantWonRound,
		HasWon:              r.HasWon,
		UserContributions:   r.UserContributions,
		LastUpdated:         r.LastUpdated,
	}
}
