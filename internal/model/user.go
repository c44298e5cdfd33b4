package model

import (
	"context"
	"slices"
	"time"
)

// UserStore defines persistence operations for registry users.
type UserStore interface {
	Upsert(ctx context.Context, patch UserPatch) (User, error)
	GetByAddress(ctx context.Context, address string) (User, error)
	List(ctx context.Context) ([]User, error)
	ListByAddresses(ctx context.Context, addresses []string) ([]User, error)
}

// User represents a registry participant keyed by wallet address.
type User struct {
	ID            int64     `json:"id"`
	WalletAddress string    `json:"walletAddress"`
	Name          string    `json:"name"`
	Balance       float64   `json:"balance"`
	Points        int64     `json:"points"`
	Ledgers       []string  `json:"roscas"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// UserPatch is a partial user update. Nil fields keep the stored value.
type UserPatch struct {
	WalletAddress string
	ID            *int64
	Name          *string
	Balance       *float64
	Points        *int64
	Ledgers       []string
}

// PatchFromUser builds a patch where every field of u is known.
func PatchFromUser(u User) UserPatch {
	ledgers := u.Ledgers
	if ledgers == nil {
		ledgers = []string{}
	}
	return UserPatch{
		WalletAddress: NormalizeAddress(u.WalletAddress),
		ID:            &u.ID,
		Name:          &u.Name,
		Balance:       &u.Balance,
		Points:        &u.Points,
		Ledgers:       NormalizeAddresses(ledgers),
	}
}

// Apply merges the patch into u and reports whether anything changed.
func (p UserPatch) Apply(u User) (User, bool) {
	merged := u
	merged.WalletAddress = NormalizeAddress(p.WalletAddress)
	if p.ID != nil {
		merged.ID = *p.ID
	}
	if p.Name != nil {
		merged.Name = *p.Name
	}
	if p.Balance != nil {
		merged.Balance = *p.Balance
	}
	if p.Points != nil {
		merged.Points = *p.Points
	}
	if p.Ledgers != nil {
		merged.Ledgers = slices.Clone(p.Ledgers)
	}

	changed := merged.WalletAddress != u.WalletAddress ||
		merged.ID != u.ID ||
		merged.Name != u.Name ||
		merged.Balance != u.Balance ||
		merged.Points != u.Points ||
		!slices.Equal(merged.Ledgers, u.Ledgers)

	return merged, changed
}
