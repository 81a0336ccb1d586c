package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mkowalczyk/svchub/internal/domain/catalog"
	"github.com/mkowalczyk/svchub/internal/observability"
)

type ServicesRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewServicesRepo(pool *pgxpool.Pool, prom *observability.Prom) *ServicesRepo {
	return &ServicesRepo{pool: pool, prom: prom}
}

func (r *ServicesRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

// List returns one page of the account's services with versions attached.
//
// The account filter is always the first clause; no code path can query
// services outside the caller's account. The fetch is two-phase: first the
// ordered page of matching ids (with the total via a window count), then the
// services plus their versions for those ids. Both phases order by
// updated_at DESC, id ASC so the version join cannot reorder the page.
func (r *ServicesRepo) List(ctx context.Context, accountID string, filter catalog.ListFilter) (catalog.ListResult, error) {
	page := filter.Page
	if page < 1 {
		page = 1
	}

	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = catalog.DefaultPageSize
	}

	where := `WHERE account_id = $1`
	filterArgs := []interface{}{accountID}

	if filter.Search != "" {
		where += ` AND (LOWER(name) LIKE $2 OR LOWER(description) LIKE $2)`
		filterArgs = append(filterArgs, "%"+strings.ToLower(filter.Search)+"%")
	}

	n := len(filterArgs)

	// stable ordering: ties on updated_at fall back to id
	query := fmt.Sprintf(
		`SELECT id, COUNT(*) OVER() AS total FROM services %s ORDER BY updated_at DESC, id ASC LIMIT $%d OFFSET $%d`,
		where, n+1, n+2,
	)
	pageArgs := append(filterArgs[:n:n], pageSize, (page-1)*pageSize)

	var (
		ids   []string
		total int
	)

	err := r.observe("services.list.page_ids", func() error {
		rows, e := r.pool.Query(ctx, query, pageArgs...)

		if e != nil {
			return e
		}

		defer rows.Close()

		for rows.Next() {
			var id string
			var t int

			if e := rows.Scan(&id, &t); e != nil {
				return e
			}

			total = t
			ids = append(ids, id)
		}

		return rows.Err()
	})

	if err != nil {
		return catalog.ListResult{}, err
	}

	if len(ids) == 0 {
		// An offset past the match set yields no rows, so the window count
		// never surfaces. Count separately under the same filters to keep
		// total and last_page identical on every page.
		err := r.observe("services.list.count", func() error {
			return r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM services `+where, filterArgs...).Scan(&total)
		})

		if err != nil {
			return catalog.ListResult{}, err
		}
	}

	result := catalog.ListResult{
		Items:    []catalog.Service{},
		Total:    total,
		Page:     page,
		PageSize: pageSize,
		LastPage: catalog.LastPage(total, pageSize),
	}

	if len(ids) == 0 {
		return result, nil
	}

	services, err := r.servicesByIDs(ctx, ids)

	if err != nil {
		return catalog.ListResult{}, err
	}

	result.Items = services

	return result, nil
}

// GetByID resolves a service only when both the id and the owning account
// match. An id that exists under another account is indistinguishable from
// one that does not exist.
func (r *ServicesRepo) GetByID(ctx context.Context, accountID, id string) (catalog.Service, error) {
	var s catalog.Service

	err := r.observe("services.get_by_id", func() error {
		return r.pool.QueryRow(ctx,
			`SELECT id, account_id, name, COALESCE(description, ''), created_at, updated_at
			 FROM services
			 WHERE id = $1 AND account_id = $2`,
			id, accountID,
		).Scan(&s.ID, &s.AccountID, &s.Name, &s.Description, &s.CreatedAt, &s.UpdatedAt)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidUUID(err) {
			return catalog.Service{}, catalog.ErrNotFound
		}

		return catalog.Service{}, err
	}

	versions, err := r.versionsByServiceIDs(ctx, []string{s.ID})

	if err != nil {
		return catalog.Service{}, err
	}

	s.Versions = versions[s.ID]

	if s.Versions == nil {
		s.Versions = []catalog.Version{}
	}

	return s, nil
}

func (r *ServicesRepo) Create(ctx context.Context, s catalog.Service) (catalog.Service, error) {
	err := r.observe("services.create", func() error {
		_, e := r.pool.Exec(ctx,
			`INSERT INTO services (id, account_id, name, description, created_at, updated_at)
			 VALUES ($1,$2,$3,$4,$5,$6)`,
			s.ID, s.AccountID, s.Name, s.Description, s.CreatedAt, s.UpdatedAt,
		)
		return e
	})

	if err != nil {
		return catalog.Service{}, err
	}

	return s, nil
}

// Update rewrites the scalar columns and bumps updated_at. Tenant scoping
// applies the same way as on reads: a foreign service id is a not-found.
func (r *ServicesRepo) Update(ctx context.Context, accountID, id, name, description string) (catalog.Service, error) {
	var s catalog.Service

	err := r.observe("services.update", func() error {
		return r.pool.QueryRow(ctx,
			`UPDATE services
			 SET name = $3,
			     description = $4,
			     updated_at = NOW()
			 WHERE id = $1 AND account_id = $2
			 RETURNING id, account_id, name, COALESCE(description, ''), created_at, updated_at`,
			id, accountID, name, description,
		).Scan(&s.ID, &s.AccountID, &s.Name, &s.Description, &s.CreatedAt, &s.UpdatedAt)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidUUID(err) {
			return catalog.Service{}, catalog.ErrNotFound
		}

		return catalog.Service{}, err
	}

	return s, nil
}

func (r *ServicesRepo) Delete(ctx context.Context, accountID, id string) error {
	var rows int64

	err := r.observe("services.delete", func() error {
		tag, e := r.pool.Exec(ctx,
			`DELETE FROM services WHERE id = $1 AND account_id = $2`,
			id, accountID,
		)
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

// servicesByIDs is the second phase of List: fetch the page's services under
// the same ordering as the id query, then attach versions.
func (r *ServicesRepo) servicesByIDs(ctx context.Context, ids []string) ([]catalog.Service, error) {
	services := make([]catalog.Service, 0, len(ids))

	err := r.observe("services.list.by_ids", func() error {
		rows, e := r.pool.Query(ctx,
			`SELECT id, account_id, name, COALESCE(description, ''), created_at, updated_at
			 FROM services
			 WHERE id = ANY($1::uuid[])
			 ORDER BY updated_at DESC, id ASC`,
			ids,
		)

		if e != nil {
			return e
		}

		defer rows.Close()

		for rows.Next() {
			var s catalog.Service

			if e := rows.Scan(&s.ID, &s.AccountID, &s.Name, &s.Description, &s.CreatedAt, &s.UpdatedAt); e != nil {
				return e
			}

			services = append(services, s)
		}

		return rows.Err()
	})

	if err != nil {
		return nil, err
	}

	byService, err := r.versionsByServiceIDs(ctx, ids)

	if err != nil {
		return nil, err
	}

	for i := range services {
		versions := byService[services[i].ID]

		if versions == nil {
			versions = []catalog.Version{}
		}

		services[i].Versions = versions
	}

	return services, nil
}

func (r *ServicesRepo) versionsByServiceIDs(ctx context.Context, serviceIDs []string) (map[string][]catalog.Version, error) {
	byService := make(map[string][]catalog.Version, len(serviceIDs))

	err := r.observe("services.versions_by_service_ids", func() error {
		rows, e := r.pool.Query(ctx,
			`SELECT id, service_id, name, COALESCE(description, ''), created_at, updated_at
			 FROM versions
			 WHERE service_id = ANY($1::uuid[])
			 ORDER BY updated_at DESC, id ASC`,
			serviceIDs,
		)

		if e != nil {
			return e
		}

		defer rows.Close()

		for rows.Next() {
			var v catalog.Version

			if e := rows.Scan(&v.ID, &v.ServiceID, &v.Name, &v.Description, &v.CreatedAt, &v.UpdatedAt); e != nil {
				return e
			}

			byService[v.ServiceID] = append(byService[v.ServiceID], v)
		}

		return rows.Err()
	})

	if err != nil {
		return nil, err
	}

	return byService, nil
}

// 22P02: the path parameter was not a valid uuid. The row cannot exist, so
// callers see the same not-found as for a well-formed unknown id.
func isInvalidUUID(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "22P02"
}
