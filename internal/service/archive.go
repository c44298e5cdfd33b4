package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"regexp"

	"github.com/dtroode/kurisync/internal/logger"
	"github.com/dtroode/kurisync/internal/model"
)

var snapshotKey = regexp.MustCompile(`^[0-9a-f]{64}$`)

// Archive keeps registry snapshots in object storage under the SHA-256 of
// their content, so an unchanged registry is stored once.
type Archive struct {
	storage model.Storage
	logger  *logger.Logger
}

func NewArchive(storage model.Storage, logger *logger.Logger) *Archive {
	return &Archive{storage: storage, logger: logger}
}

type snapshot struct {
	Users   []model.User      `json:"users"`
	Ledgers []model.LedgerRef `json:"roscas"`
}

func objectName(key string) string {
	return "registry/" + key + ".json"
}

// Store uploads reg unless an identical snapshot exists and returns its key.
func (a *Archive) Store(ctx context.Context, reg model.Registry) (string, error) {
	data, err := json.Marshal(snapshot{Users: reg.Users, Ledgers: reg.Ledgers})
	if err != nil {
		return "", fmt.Errorf("failed to encode snapshot: %w", err)
	}

	sum := sha256.Sum256(data)
	key := hex.EncodeToString(sum[:])

	exists, err := a.storage.Exists(ctx, objectName(key))
	if err != nil {
		return "", fmt.Errorf("failed to check snapshot: %w", err)
	}
	if exists {
		return key, nil
	}

	if err := a.storage.Upload(ctx, objectName(key), bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("failed to upload snapshot: %w", err)
	}
	a.logger.Info("registry snapshot stored", "key", key, "users", len(reg.Users), "ledgers", len(reg.Ledgers))

	return key, nil
}

// Open returns the snapshot stored under key.
func (a *Archive) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if !snapshotKey.MatchString(key) {
		return nil, model.ErrNotFound
	}

	exists, err := a.storage.Exists(ctx, objectName(key))
	if err != nil {
		return nil, fmt.Errorf("failed to check snapshot: %w", err)
	}
	if !exists {
		return nil, model.ErrNotFound
	}

	return a.storage.Download(ctx, objectName(key))
}
