package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mkowalczyk/svchub/internal/domain/catalog"
	"github.com/mkowalczyk/svchub/internal/observability"
)

type VersionsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewVersionsRepo(pool *pgxpool.Pool, prom *observability.Prom) *VersionsRepo {
	return &VersionsRepo{pool: pool, prom: prom}
}

func (r *VersionsRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

// Create inserts a version. Uniqueness of (service_id, name) is enforced by
// the DB constraint, not pre-checked: concurrent inserts of the same name
// surface as ErrDuplicateVersionName from the constraint violation.
func (r *VersionsRepo) Create(ctx context.Context, v catalog.Version) (catalog.Version, error) {
	err := r.observe("versions.create", func() error {
		_, e := r.pool.Exec(ctx,
			`INSERT INTO versions (id, service_id, name, description, created_at, updated_at)
			 VALUES ($1,$2,$3,$4,$5,$6)`,
			v.ID, v.ServiceID, v.Name, v.Description, v.CreatedAt, v.UpdatedAt,
		)
		return e
	})

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "versions_service_name_uniq" {
			return catalog.Version{}, catalog.ErrDuplicateVersionName
		}
		return catalog.Version{}, err
	}

	return v, nil
}

func (r *VersionsRepo) Update(ctx context.Context, id, name, description string) (catalog.Version, error) {
	var v catalog.Version

	err := r.observe("versions.update", func() error {
		return r.pool.QueryRow(ctx,
			`UPDATE versions
			 SET name = $2,
			     description = $3,
			     updated_at = NOW()
			 WHERE id = $1
			 RETURNING id, service_id, name, COALESCE(description, ''), created_at, updated_at`,
			id, name, description,
		).Scan(&v.ID, &v.ServiceID, &v.Name, &v.Description, &v.CreatedAt, &v.UpdatedAt)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidUUID(err) {
			return catalog.Version{}, catalog.ErrNotFound
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "versions_service_name_uniq" {
			return catalog.Version{}, catalog.ErrDuplicateVersionName
		}

		return catalog.Version{}, err
	}

	return v, nil
}

func (r *VersionsRepo) Delete(ctx context.Context, id string) error {
	var rows int64

	err := r.observe("versions.delete", func() error {
		tag, e := r.pool.Exec(ctx, `DELETE FROM versions WHERE id = $1`, id)
		rows = tag.RowsAffected()
		return e
	})

	if err != nil {
		if isInvalidUUID(err) {
			return catalog.ErrNotFound
		}

		return err
	}

	if rows == 0 {
		return catalog.ErrNotFound
	}

	return nil
}
