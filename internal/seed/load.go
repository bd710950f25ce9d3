package seed

import (
	"context"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"
)

const (
	upsertCategorySQL = `INSERT INTO categories (category_id, name, description, parent_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (category_id) DO UPDATE
		SET name = EXCLUDED.name, description = EXCLUDED.description, parent_id = EXCLUDED.parent_id`

	upsertProductSQL = `INSERT INTO products
			(product_id, name, description, base_price, vat_rate, category_id, stock_level, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (product_id) DO UPDATE
		SET name = EXCLUDED.name, description = EXCLUDED.description, base_price = EXCLUDED.base_price,
			vat_rate = EXCLUDED.vat_rate, category_id = EXCLUDED.category_id,
			stock_level = EXCLUDED.stock_level, is_active = EXCLUDED.is_active`

	upsertVariantSQL = `INSERT INTO product_variants
			(variant_id, product_id, variant_name, variant_value, stock_level, additional_price)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (variant_id) DO UPDATE
		SET variant_name = EXCLUDED.variant_name, variant_value = EXCLUDED.variant_value,
			stock_level = EXCLUDED.stock_level, additional_price = EXCLUDED.additional_price`

	// Existing users keep their password hash.
	upsertUserSQL = `INSERT INTO users (user_id, first_name, last_name, email, hashed_password, role)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE
		SET first_name = EXCLUDED.first_name, last_name = EXCLUDED.last_name,
			email = EXCLUDED.email, role = EXCLUDED.role`

	upsertAddressSQL = `INSERT INTO addresses (address_id, user_id, street, city, zip_code, country, address_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (address_id) DO UPDATE
		SET street = EXCLUDED.street, city = EXCLUDED.city, zip_code = EXCLUDED.zip_code,
			country = EXCLUDED.country, address_type = EXCLUDED.address_type`
)

// DB is implemented by *pgxpool.Pool.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Loader writes fixtures in one transaction.
type Loader struct {
	db         DB
	bcryptCost int
	hashers    int
}

// NewLoader creates a Loader. Passwords are hashed by up to hashers
// goroutines.
func NewLoader(db DB, bcryptCost, hashers int) *Loader {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	if hashers <= 0 {
		hashers = 1
	}
	return &Loader{db: db, bcryptCost: bcryptCost, hashers: hashers}
}

// Stats counts upserted rows.
type Stats struct {
	Categories, Products, Variants, Users, Addresses int
}

// Validate rejects fixtures the schema would refuse.
func Validate(fx *Fixture) error {
	for _, p := range fx.Products {
		if p.BasePrice.IsNegative() {
			return errors.Errorf("product %s: negative base price", p.ID)
		}
	}
	for _, u := range fx.Users {
		if u.Email == "" {
			return errors.Errorf("user %s: email is required", u.ID)
		}
	}
	if dups := duplicateEmails(fx.Users); len(dups) > 0 {
		return errors.Errorf("email used by more than one user: %v", dups)
	}
	for _, a := range fx.Addresses {
		if !a.Type.Valid() {
			return errors.Errorf("address %s: unknown address type %q", a.ID, a.Type)
		}
	}
	return nil
}

// duplicateEmails returns emails shared by users with different IDs. Merged
// fixtures may repeat a user, which is an update rather than a conflict.
// A bloom filter screens every email; only its hits are checked exactly.
func duplicateEmails(users []User) []string {
	filter := bloom.NewWithEstimates(uint(max(len(users), 1)), 0.001)
	suspects := make(map[string]struct{})
	for _, u := range users {
		if filter.TestAndAddString(u.Email) {
			suspects[u.Email] = struct{}{}
		}
	}
	if len(suspects) == 0 {
		return nil
	}

	owners := make(map[string]uuid.UUID, len(suspects))
	var dups []string
	for _, u := range users {
		if _, ok := suspects[u.Email]; !ok {
			continue
		}
		owner, seen := owners[u.Email]
		if !seen {
			owners[u.Email] = u.ID
			continue
		}
		if owner != u.ID {
			dups = append(dups, u.Email)
			delete(suspects, u.Email)
		}
	}
	return dups
}

// HashPasswords returns bcrypt hashes for users, index-aligned.
func (l *Loader) HashPasswords(ctx context.Context, users []User) ([]string, error) {
	hashes := make([]string, len(users))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(l.hashers)
	for i, u := range users {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if u.Password == "" {
				return nil
			}
			h, err := bcrypt.GenerateFromPassword([]byte(u.Password), l.bcryptCost)
			if err != nil {
				return errors.Wrapf(err, "hash password of %s", u.Email)
			}
			hashes[i] = string(h)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return hashes, nil
}

// Load upserts fx in dependency order.
func (l *Loader) Load(ctx context.Context, fx *Fixture) (_ Stats, rerr error) {
	if err := Validate(fx); err != nil {
		return Stats{}, err
	}
	hashes, err := l.HashPasswords(ctx, fx.Users)
	if err != nil {
		return Stats{}, err
	}

	tx, err := l.db.Begin(ctx)
	if err != nil {
		return Stats{}, errors.Wrap(err, "begin")
	}
	defer func() {
		if rerr != nil {
			if err := tx.Rollback(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
				zctx.From(ctx).Warn("Rollback failed", zap.Error(err))
			}
		}
	}()

	b := &pgx.Batch{}
	for _, c := range fx.Categories {
		b.Queue(upsertCategorySQL, c.ID, c.Name, c.Description, c.ParentID)
	}
	for _, p := range fx.Products {
		b.Queue(upsertProductSQL, p.ID, p.Name, p.Description, p.BasePrice, p.VATRate, p.CategoryID, p.StockLevel, p.Active)
	}
	for _, v := range fx.Variants {
		b.Queue(upsertVariantSQL, v.ID, v.ProductID, v.Name, v.Value, v.StockLevel, v.AdditionalPrice)
	}
	for i, u := range fx.Users {
		b.Queue(upsertUserSQL, u.ID, u.FirstName, u.LastName, u.Email, hashes[i], u.Role)
	}
	for _, a := range fx.Addresses {
		b.Queue(upsertAddressSQL, a.ID, a.UserID, a.Street, a.City, a.ZipCode, a.Country, string(a.Type))
	}
	if err := tx.SendBatch(ctx, b).Close(); err != nil {
		return Stats{}, errors.Wrap(err, "upsert fixtures")
	}
	if err := tx.Commit(ctx); err != nil {
		return Stats{}, errors.Wrap(err, "commit")
	}

	return Stats{
		Categories: len(fx.Categories),
		Products:   len(fx.Products),
		Variants:   len(fx.Variants),
		Users:      len(fx.Users),
		Addresses:  len(fx.Addresses),
	}, nil
}
