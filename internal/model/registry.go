package model

import (
	"context"
	"time"
)

// RegistrySource reads the spreadsheet-backed registry of users and ledgers.
type RegistrySource interface {
	Fetch(ctx context.Context) (Registry, error)
}

// Registry is a consistent snapshot of both registry ranges.
type Registry struct {
	Users     []User      `json:"users"`
	Ledgers   []LedgerRef `json:"roscas"`
	FetchedAt time.Time   `json:"fetchedAt"`
}
