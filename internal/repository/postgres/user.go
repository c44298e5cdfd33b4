package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/dtroode/kurisync/internal/model"
)

var _ model.UserStore = (*UserRepository)(nil)

type UserRepository struct {
	db *Connection
}

func NewUserRepository(db *Connection) *UserRepository {
	return &UserRepository{
		db: db,
	}
}

const userColumns = `wallet_address, registry_id, name, balance, points, ledgers, created_at, updated_at`

func scanUser(row pgx.Row) (model.User, error) {
	var u model.User
	err := row.Scan(&u.WalletAddress, &u.ID, &u.Name, &u.Balance, &u.Points, &u.Ledgers, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// Upsert creates or updates a user by wallet address. Nil patch fields keep
// the stored value and a patch that changes nothing leaves updated_at alone.
func (r *UserRepository) Upsert(ctx context.Context, patch model.UserPatch) (model.User, error) {
	query := `
		WITH upserted AS (
			INSERT INTO users AS u (wallet_address, registry_id, name, balance, points, ledgers)
			VALUES ($1, COALESCE($2::BIGINT, 0), COALESCE($3::TEXT, ''), COALESCE($4::DOUBLE PRECISION, 0),
			        COALESCE($5::BIGINT, 0), COALESCE($6::TEXT[], '{}'))
			ON CONFLICT (wallet_address) DO UPDATE SET
				registry_id = COALESCE($2::BIGINT, u.registry_id),
				name        = COALESCE($3::TEXT, u.name),
				balance     = COALESCE($4::DOUBLE PRECISION, u.balance),
				points      = COALESCE($5::BIGINT, u.points),
				ledgers     = COALESCE($6::TEXT[], u.ledgers),
				updated_at  = NOW()
			WHERE (u.registry_id, u.name, u.balance, u.points, u.ledgers) IS DISTINCT FROM
			      (COALESCE($2::BIGINT, u.registry_id), COALESCE($3::TEXT, u.name), COALESCE($4::DOUBLE PRECISION, u.balance),
			       COALESCE($5::BIGINT, u.points), COALESCE($6::TEXT[], u.ledgers))
			RETURNING ` + userColumns + `
		)
		SELECT ` + userColumns + ` FROM upserted
		UNION ALL
		SELECT ` + userColumns + ` FROM users
		WHERE wallet_address = $1 AND NOT EXISTS (SELECT 1 FROM upserted)`

	u, err := scanUser(r.db.QueryRow(ctx, query,
		model.NormalizeAddress(patch.WalletAddress),
		patch.ID, patch.Name, patch.Balance, patch.Points, nullable(patch.Ledgers),
	))
	if err != nil {
		return model.User{}, wrapError("upsert user", err)
	}

	return u, nil
}

func (r *UserRepository) GetByAddress(ctx context.Context, address string) (model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE wallet_address = $1`

	u, err := scanUser(r.db.QueryRow(ctx, query, model.NormalizeAddress(address)))
	if err != nil {
		return model.User{}, wrapError("get user by address", err)
	}

	return u, nil
}

func (r *UserRepository) List(ctx context.Context) ([]model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY registry_id, wallet_address`

	return r.list(ctx, "list users", query)
}

func (r *UserRepository) ListByAddresses(ctx context.Context, addresses []string) ([]model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE wallet_address = ANY($1) ORDER BY registry_id, wallet_address`

	return r.list(ctx, "list users by addresses", query, model.NormalizeAddresses(addresses))
}

func (r *UserRepository) list(ctx context.Context, action, query string, args ...any) ([]model.User, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapError(action, err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, wrapError(action, err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError(action, err)
	}

	return users, nil
}
