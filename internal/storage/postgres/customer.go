package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/customer"
)

const getUserSQL = `SELECT user_id, first_name, last_name, email FROM users WHERE user_id = $1`

var _ customer.Directory = (*CustomerRepository)(nil)

// CustomerRepository implements customer.Directory backed by PostgreSQL.
type CustomerRepository struct {
	pool *pgxpool.Pool
}

// NewCustomerRepository returns a CustomerRepository that uses the given pool.
func NewCustomerRepository(pool *pgxpool.Pool) *CustomerRepository {
	return &CustomerRepository{pool: pool}
}

// User returns a user by ID.
func (r *CustomerRepository) User(ctx context.Context, id uuid.UUID) (*customer.User, error) {
	var u customer.User
	err := r.pool.QueryRow(ctx, getUserSQL, id).Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, customer.ErrUserNotFound
		}
		return nil, errors.Wrapf(err, "get user %s", id)
	}
	return &u, nil
}
