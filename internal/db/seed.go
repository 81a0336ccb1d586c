package db

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mkowalczyk/svchub/internal/config"
	"github.com/mkowalczyk/svchub/internal/domain/user"
)

// EnsureBootstrapAccount creates the configured seed account and its first
// user when neither exists yet. This is an explicit startup step driven by
// SEED_* env vars; nothing in the login flow ever creates credentials.
func EnsureBootstrapAccount(ctx context.Context, pool *pgxpool.Pool, cfg config.Config) error {
	if cfg.SeedEmail == "" || cfg.SeedPassword == "" || cfg.SeedAccountName == "" {
		return nil
	}

	var dummy string

	err := pool.QueryRow(ctx, `SELECT id FROM users WHERE email = $1`, cfg.SeedEmail).Scan(&dummy)

	if err == nil {
		return nil
	}

	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	var accountID string

	err = pool.QueryRow(ctx, `SELECT id FROM accounts WHERE name = $1`, cfg.SeedAccountName).Scan(&accountID)

	if errors.Is(err, pgx.ErrNoRows) {
		accountID = uuid.NewString()
		now := time.Now().UTC()

		_, err = pool.Exec(ctx,
			`INSERT INTO accounts (id, name, created_at, updated_at) VALUES ($1,$2,$3,$4)`,
			accountID, cfg.SeedAccountName, now, now,
		)

		if err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	u, err := user.New(accountID, cfg.SeedUserName, cfg.SeedEmail, cfg.SeedPassword)

	if err != nil {
		return err
	}

	_, err = pool.Exec(ctx,
		`INSERT INTO users (id, account_id, name, email, password_hash, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		u.ID, u.AccountID, u.Name, u.Email, u.PasswordHash, u.CreatedAt, u.UpdatedAt,
	)

	return err
}
