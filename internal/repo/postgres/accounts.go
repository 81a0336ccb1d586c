package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mkowalczyk/svchub/internal/domain/account"
	"github.com/mkowalczyk/svchub/internal/observability"
)

type AccountsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewAccountsRepo(pool *pgxpool.Pool, prom *observability.Prom) *AccountsRepo {
	return &AccountsRepo{pool: pool, prom: prom}
}

func (r *AccountsRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func (r *AccountsRepo) Create(ctx context.Context, name string) (account.Account, error) {
	now := time.Now().UTC()

	a := account.Account{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := r.observe("accounts.create", func() error {
		_, e := r.pool.Exec(ctx,
			`INSERT INTO accounts (id, name, created_at, updated_at) VALUES ($1,$2,$3,$4)`,
			a.ID, a.Name, a.CreatedAt, a.UpdatedAt,
		)
		return e
	})

	if err != nil {
		return account.Account{}, err
	}

	return a, nil
}

func (r *AccountsRepo) GetByID(ctx context.Context, id string) (account.Account, error) {
	var a account.Account

	err := r.observe("accounts.get_by_id", func() error {
		return r.pool.QueryRow(ctx,
			`SELECT id, name, created_at, updated_at FROM accounts WHERE id = $1`,
			id,
		).Scan(&a.ID, &a.Name, &a.CreatedAt, &a.UpdatedAt)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return account.Account{}, account.ErrNotFound
		}

		return account.Account{}, err
	}

	return a, nil
}

func (r *AccountsRepo) GetByName(ctx context.Context, name string) (account.Account, error) {
	var a account.Account

	err := r.observe("accounts.get_by_name", func() error {
		return r.pool.QueryRow(ctx,
			`SELECT id, name, created_at, updated_at FROM accounts WHERE name = $1`,
			name,
		).Scan(&a.ID, &a.Name, &a.CreatedAt, &a.UpdatedAt)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return account.Account{}, account.ErrNotFound
		}

		return account.Account{}, err
	}

	return a, nil
}

// Delete removes the account; users and services (and their versions) go
// with it via the ON DELETE CASCADE constraints.
func (r *AccountsRepo) Delete(ctx context.Context, id string) error {
	var rows int64

	err := r.observe("accounts.delete", func() error {
		tag, e := r.pool.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
		rows = tag.RowsAffected()
		return e
	})

	if err != nil {
		return err
	}

	if rows == 0 {
		return account.ErrNotFound
	}

	return nil
}
