package orm

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dtroode/kurisync/internal/model"
)

var _ model.StatusStore = (*StatusRepository)(nil)

type StatusRepository struct {
	db *DB
}

func NewStatusRepository(db *DB) *StatusRepository {
	return &StatusRepository{db: db}
}

func (r *StatusRepository) Upsert(ctx context.Context, patch model.StatusPatch) (model.Status, error) {
	user := model.NormalizeAddress(patch.UserAddress)
	contract := model.NormalizeAddress(patch.ContractAddress)

	var saved statusRow
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current statusRow
		err := tx.Where("user_address = ? AND contract_address = ?", user, contract).Take(&current).Error
		exists := err == nil
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		merged, changed := patch.Apply(current.toModel())
		if exists && !changed {
			saved = current
			return nil
		}
		if merged.LastUpdated.IsZero() {
			merged.LastUpdated = r.db.now()
		}

		row := newStatusRow(merged)
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
			return err
		}
		return tx.Where("user_address = ? AND contract_address = ?", user, contract).Take(&saved).Error
	})
	if err != nil {
		return model.Status{}, wrapError("upsert status", err)
	}

	return saved.toModel(), nil
}

func (r *StatusRepository) Get(ctx context.Context, userAddress, contractAddress string) (model.Status, error) {
	var row statusRow
	err := r.db.WithContext(ctx).
		Where("user_address = ? AND contract_address = ?", model.NormalizeAddress(userAddress), model.NormalizeAddress(contractAddress)).
		Take(&row).Error
	if err != nil {
		return model.Status{}, wrapError("get status", err)
	}
	return row.toModel(), nil
}

func (r *StatusRepository) ListByContract(ctx context.Context, contractAddress string) ([]model.Status, error) {
	var rows []statusRow
	err := r.db.WithContext(ctx).
		Where("contract_address = ?", model.NormalizeAddress(contractAddress)).
		Order("user_address").
		Find(&rows).Error
	if err != nil {
		return nil, wrapError("list statuses by contract", err)
	}

	statuses := make([]model.Status, 0, len(rows))
	for _, row := range rows {
		statuses = append(statuses, row.toModel())
	}
	return statuses, nil
}
