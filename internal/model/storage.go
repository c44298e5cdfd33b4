package model

import (
	"context"
	"io"
)

// Storage is an object store used to archive registry snapshots.
type Storage interface {
	Upload(ctx context.Context, key string, reader io.Reader) error
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// EventPublisher emits domain events to interested consumers.
type EventPublisher interface {
	Publish(ctx context.Context, subject string, payload any) error
}

const (
	SubjectStatusUpdated      = "status.updated"
	SubjectLedgerRoundAdvance = "ledger.round_advanced"
)

// StatusUpdatedEvent is published when the derived rounds of a status change.
type StatusUpdatedEvent struct {
	UserAddress     string        `json:"userAddress"`
	ContractAddress string        `json:"contractAddress"`
	Statuses        []RoundStatus `json:"statuses"`
	HasWon          bool          `json:"hasWon"`
}

// RoundAdvancedEvent is published when a ledger's current round grows.
type RoundAdvancedEvent struct {
	ContractAddress string `json:"contractAddress"`
	From            int    `json:"from"`
	To              int    `json:"to"`
}
