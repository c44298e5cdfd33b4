package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/dtroode/kurisync/internal/model"
)

var _ model.LedgerStore = (*LedgerRepository)(nil)

type LedgerRepository struct {
	db *Connection
}

func NewLedgerRepository(db *Connection) *LedgerRepository {
	return &LedgerRepository{
		db: db,
	}
}

const ledgerColumns = `contract_address, registry_id, slots, current_round, participants, updated_at`

func scanLedger(row pgx.Row) (model.Ledger, error) {
	var l model.Ledger
	err := row.Scan(&l.ContractAddress, &l.ID, &l.Slots, &l.CurrentRound, &l.Participants, &l.UpdatedAt)
	return l, err
}

// Upsert creates or updates a ledger by contract address. A nil slot count
// or round never overwrites a stored value.
func (r *LedgerRepository) Upsert(ctx context.Context, patch model.LedgerPatch) (model.Ledger, error) {
	query := `
		WITH upserted AS (
			INSERT INTO ledgers AS l (contract_address, registry_id, slots, current_round, participants)
			VALUES ($1, COALESCE($2::BIGINT, 0), $3::INTEGER, $4::INTEGER, COALESCE($5::TEXT[], '{}'))
			ON CONFLICT (contract_address) DO UPDATE SET
				registry_id   = COALESCE($2::BIGINT, l.registry_id),
				slots         = COALESCE($3::INTEGER, l.slots),
				current_round = COALESCE($4::INTEGER, l.current_round),
				participants  = COALESCE($5::TEXT[], l.participants),
				updated_at    = NOW()
			WHERE (l.registry_id, l.slots, l.current_round, l.participants) IS DISTINCT FROM
			      (COALESCE($2::BIGINT, l.registry_id), COALESCE($3::INTEGER, l.slots),
			       COALESCE($4::INTEGER, l.current_round), COALESCE($5::TEXT[], l.participants))
			RETURNING ` + ledgerColumns + `
		)
		SELECT ` + ledgerColumns + ` FROM upserted
		UNION ALL
		SELECT ` + ledgerColumns + ` FROM ledgers
		WHERE contract_address = $1 AND NOT EXISTS (SELECT 1 FROM upserted)`

	l, err := scanLedger(r.db.QueryRow(ctx, query,
		model.NormalizeAddress(patch.ContractAddress),
		patch.ID, patch.Slots, patch.CurrentRound, nullable(patch.Participants),
	))
	if err != nil {
		return model.Ledger{}, wrapError("upsert ledger", err)
	}

	return l, nil
}

func (r *LedgerRepository) GetByAddress(ctx context.Context, address string) (model.Ledger, error) {
	query := `SELECT ` + ledgerColumns + ` FROM ledgers WHERE contract_address = $1`

	l, err := scanLedger(r.db.QueryRow(ctx, query, model.NormalizeAddress(address)))
	if err != nil {
		return model.Ledger{}, wrapError("get ledger by address", err)
	}

	return l, nil
}

func (r *LedgerRepository) List(ctx context.Context) ([]model.Ledger, error) {
	query := `SELECT ` + ledgerColumns + ` FROM ledgers ORDER BY registry_id, contract_address`

	return r.list(ctx, "list ledgers", query)
}

func (r *LedgerRepository) ListByParticipant(ctx context.Context, address string) ([]model.Ledger, error) {
	query := `SELECT ` + ledgerColumns + ` FROM ledgers WHERE $1 = ANY(participants) ORDER BY registry_id, contract_address`

	return r.list(ctx, "list ledgers by participant", query, model.NormalizeAddress(address))
}

func (r *LedgerRepository) list(ctx context.Context, action, query string, args ...any) ([]model.Ledger, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapError(action, err)
	}
	defer rows.Close()

	ledgers := []model.Ledger{}
	for rows.Next() {
		l, err := scanLedger(rows)
		if err != nil {
			return nil, wrapError(action, err)
		}
		ledgers = append(ledgers, l)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError(action, err)
	}

	return ledgers, nil
}
