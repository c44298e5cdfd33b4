package orm

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dtroode/kurisync/internal/model"
)

var _ model.LedgerStore = (*LedgerRepository)(nil)

type LedgerRepository struct {
	db *DB
}

func NewLedgerRepository(db *DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

func (r *LedgerRepository) Upsert(ctx context.Context, patch model.LedgerPatch) (model.Ledger, error) {
	key := model.NormalizeAddress(patch.ContractAddress)

	var saved ledgerRow
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current ledgerRow
		err := tx.Where("contract_address = ?", key).Take(&current).Error
		exists := err == nil
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		merged, changed := patch.Apply(current.toModel())
		if exists && !changed {
			saved = current
			return nil
		}
		merged.UpdatedAt = r.db.now()

		row := newLedgerRow(merged)
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
			return err
		}
		return tx.Where("contract_address = ?", key).Take(&saved).Error
	})
	if err != nil {
		return model.Ledger{}, wrapError("upsert ledger", err)
	}

	return saved.toModel(), nil
}

func (r *LedgerRepository) GetByAddress(ctx context.Context, address string) (model.Ledger, error) {
	var row ledgerRow
	err := r.db.WithContext(ctx).Where("contract_address = ?", model.NormalizeAddress(address)).Take(&row).Error
	if err != nil {
		return model.Ledger{}, wrapError("get ledger by address", err)
	}
	return row.toModel(), nil
}

func (r *LedgerRepository) List(ctx context.Context) ([]model.Ledger, error) {
	var rows []ledgerRow
	if err := r.db.WithContext(ctx).Order("registry_id, contract_address").Find(&rows).Error; err != nil {
		return nil, wrapError("list ledgers", err)
	}

	ledgers := make([]model.Ledger, 0, len(rows))
	for _, row := range rows {
		ledgers = append(ledgers, row.toModel())
	}
	return ledgers, nil
}

// ListByParticipant filters in memory: participants are stored as a JSON
// column that SQLite cannot index.
func (r *LedgerRepository) ListByParticipant(ctx context.Context, address string) ([]model.Ledger, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}

	ledgers := []model.Ledger{}
	for _, l := range all {
		if l.HasParticipant(address) {
			ledgers = append(ledgers, l)
		}
	}
	return ledgers, nil
}
