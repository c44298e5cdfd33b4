package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/dtroode/kurisync/internal/model"
)

var _ model.StatusStore = (*StatusRepository)(nil)

type StatusRepository struct {
	db *Connection
}

func NewStatusRepository(db *Connection) *StatusRepository {
	return &StatusRepository{
		db: db,
	}
}

const statusColumns = `user_address, contract_address, rounds, participant_won_round, has_won, user_contributions, last_updated`

func scanStatus(row pgx.Row) (model.Status, error) {
	var (
		s      model.Status
		rounds []byte
	)
	if err := row.Scan(&s.UserAddress, &s.ContractAddress, &rounds, &s.ParticipantWonRound, &s.HasWon, &s.UserContributions, &s.LastUpdated); err != nil {
		return model.Status{}, err
	}
	if err := json.Unmarshal(rounds, &s.Rounds); err != nil {
		return model.Status{}, fmt.Errorf("failed to decode rounds: %w", err)
	}
	return s, nil
}

// Upsert creates or updates the status of a user in a ledger.
func (r *StatusRepository) Upsert(ctx context.Context, patch model.StatusPatch) (model.Status, error) {
	var rounds any
	if patch.Rounds != nil {
		raw, err := json.Marshal(patch.Rounds)
		if err != nil {
			return model.Status{}, fmt.Errorf("failed to encode rounds: %w", err)
		}
		rounds = string(raw)
	}

	var lastUpdated any
	if !patch.LastUpdated.IsZero() {
		lastUpdated = patch.LastUpdated
	}

	query := `
		WITH upserted AS (
			INSERT INTO user_ledger_statuses AS s
				(user_address, contract_address, rounds, participant_won_round, has_won, user_contributions, last_updated)
			VALUES ($1, $2, COALESCE($3::JSONB, '[]'), COALESCE($4::INTEGER, 0), COALESCE($5::BOOLEAN, FALSE),
			        COALESCE($6::BIGINT, 0), COALESCE($7::TIMESTAMPTZ, NOW()))
			ON CONFLICT (user_address, contract_address) DO UPDATE SET
				rounds                = COALESCE($3::JSONB, s.rounds),
				participant_won_round = COALESCE($4::INTEGER, s.participant_won_round),
				has_won               = COALESCE($5::BOOLEAN, s.has_won),
				user_contributions    = COALESCE($6::BIGINT, s.user_contributions),
				last_updated          = COALESCE($7::TIMESTAMPTZ, s.last_updated)
			WHERE (s.rounds, s.participant_won_round, s.has_won, s.user_contributions, s.last_updated) IS DISTINCT FROM
			      (COALESCE($3::JSONB, s.rounds), COALESCE($4::INTEGER, s.participant_won_round), COALESCE($5::BOOLEAN, s.has_won),
			       COALESCE($6::BIGINT, s.user_contributions), COALESCE($7::TIMESTAMPTZ, s.last_updated))
			RETURNING ` + statusColumns + `
		)
		SELECT ` + statusColumns + ` FROM upserted
		UNION ALL
		SELECT ` + statusColumns + ` FROM user_ledger_statuses
		WHERE user_address = $1 AND contract_address = $2 AND NOT EXISTS (SELECT 1 FROM upserted)`

	s, err := scanStatus(r.db.QueryRow(ctx, query,
		model.NormalizeAddress(patch.UserAddress),
		model.NormalizeAddress(patch.ContractAddress),
		rounds, patch.ParticipantWonRound, patch.HasWon, patch.UserContributions, lastUpdated,
	))
	if err != nil {
		return model.Status{}, wrapError("upsert status", err)
	}

	return s, nil
}

func (r *StatusRepository) Get(ctx context.Context, userAddress, contractAddress string) (model.Status, error) {
	query := `SELECT ` + statusColumns + ` FROM user_ledger_statuses WHERE user_address = $1 AND contract_address = $2`

	s, err := scanStatus(r.db.QueryRow(ctx, query, model.NormalizeAddress(userAddress), model.NormalizeAddress(contractAddress)))
	if err != nil {
		return model.Status{}, wrapError("get status", err)
	}

	return s, nil
}

func (r *StatusRepository) ListByContract(ctx context.Context, contractAddress string) ([]model.Status, error) {
	query := `SELECT ` + statusColumns + ` FROM user_ledger_statuses WHERE contract_address = $1 ORDER BY user_address`

	rows, err := r.db.Query(ctx, query, model.NormalizeAddress(contractAddress))
	if err != nil {
		return nil, wrapError("list statuses by contract", err)
	}
	defer rows.Close()

	statuses := []model.Status{}
	for rows.Next() {
		s, err := scanStatus(rows)
		if err != nil {
			return nil, wrapError("list statuses by contract", err)
		}
		statuses = append(statuses, s)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError("list statuses by contract", err)
	}

	return statuses, nil
}
