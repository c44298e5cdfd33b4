package orm

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dtroode/kurisync/internal/model"
)

var _ model.UserStore = (*UserRepository)(nil)

type UserRepository struct {
	db *DB
}

func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// Upsert merges the patch into the stored user inside one transaction.
// Nothing is written when the merge changes nothing.
func (r *UserRepository) Upsert(ctx context.Context, patch model.UserPatch) (model.User, error) {
	key := model.NormalizeAddress(patch.WalletAddress)

	var saved userRow
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current userRow
		err := tx.Where("wallet_address = ?", key).Take(&current).Error
		exists := err == nil
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		merged, changed := patch.Apply(current.toModel())
		if exists && !changed {
			saved = current
			return nil
		}

		now := r.db.now()
		if !exists {
			merged.CreatedAt = now
		}
		merged.UpdatedAt = now

		row := newUserRow(merged)
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
			return err
		}
		return tx.Where("wallet_address = ?", key).Take(&saved).Error
	})
	if err != nil {
		return model.User{}, wrapError("upsert user", err)
	}

	return saved.toModel(), nil
}

func (r *UserRepository) GetByAddress(ctx context.Context, address string) (model.User, error) {
	var row userRow
	err := r.db.WithContext(ctx).Where("wallet_address = ?", model.NormalizeAddress(address)).Take(&row).Error
	if err != nil {
		return model.User{}, wrapError("get user by address", err)
	}
	return row.toModel(), nil
}

func (r *UserRepository) List(ctx context.Context) ([]model.User, error) {
	var rows []userRow
	if err := r.db.WithContext(ctx).Order("registry_id, wallet_address").Find(&rows).Error; err != nil {
		return nil, wrapError("list users", err)
	}
	return usersFromRows(rows), nil
}

func (r *UserRepository) ListByAddresses(ctx context.Context, addresses []string) ([]model.User, error) {
	if len(addresses) == 0 {
		return []model.User{}, nil
	}

	var rows []userRow
	err := r.db.WithContext(ctx).
		Where("wallet_address IN ?", model.NormalizeAddresses(addresses)).
		Order("registry_id, wallet_address").
		Find(&rows).Error
	if err != nil {
		return nil, wrapError("list users by addresses", err)
	}
	return usersFromRows(rows), nil
}

func usersFromRows(rows []userRow) []model.User {
	users := make([]model.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.toModel())
	}
	return users
}
