package postgres_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mkowalczyk/svchub/internal/domain/catalog"
	"github.com/mkowalczyk/svchub/internal/domain/user"
	"github.com/mkowalczyk/svchub/internal/repo/postgres"
)

func setupPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("TEST_DB_DSN")

	if dsn == "" {
		t.Skip("TEST_DB_DSN not set, skipping DB integration tests")
	}

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, dsn)

	if err != nil {
		t.Fatalf("failed to create pgx pool: %v", err)
	}

	t.Cleanup(pool.Close)

	schema, err := os.ReadFile("../../../migrations/001_init.sql")

	if err != nil {
		t.Fatalf("failed to read schema: %v", err)
	}

	if _, err := pool.Exec(ctx, string(schema)); err != nil {
		t.Fatalf("failed to apply schema: %v", err)
	}

	return pool
}

func resetDB(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	_, err := pool.Exec(context.Background(), `
		TRUNCATE versions, services, users, accounts
		RESTART IDENTITY CASCADE
	`)
	if err != nil {
		t.Fatalf("failed to truncate tables: %v", err)
	}
}

// setUpdatedAt pins a service's updated_at so ordering tests are not at the
// mercy of insert timing.
func setUpdatedAt(t *testing.T, pool *pgxpool.Pool, serviceID string, at time.Time) {
	t.Helper()

	_, err := pool.Exec(context.Background(), `UPDATE services SET updated_at = $2 WHERE id = $1`, serviceID, at)

	if err != nil {
		t.Fatalf("failed to pin updated_at: %v", err)
	}
}

func TestServicesRepoTenantScoping(t *testing.T) {
	pool := setupPool(t)
	resetDB(t, pool)

	ctx := context.Background()

	accounts := postgres.NewAccountsRepo(pool, nil)
	services := postgres.NewServicesRepo(pool, nil)

	accountOne, err := accounts.Create(ctx, "Account 1")
	if err != nil {
		t.Fatalf("create account: %v", err)
	}

	accountTwo, err := accounts.Create(ctx, "AnotherAccount")
	if err != nil {
		t.Fatalf("create account: %v", err)
	}

	foreign, err := services.Create(ctx, catalog.NewService(accountTwo.ID, "Service 1", ""))
	if err != nil {
		t.Fatalf("create service: %v", err)
	}

	mine, err := services.Create(ctx, catalog.NewService(accountOne.ID, "Service 3", ""))
	if err != nil {
		t.Fatalf("create service: %v", err)
	}

	result, err := services.List(ctx, accountOne.ID, catalog.ListFilter{})

	if err != nil {
		t.Fatalf("list: %v", err)
	}

	if result.Total != 1 || len(result.Items) != 1 || result.Items[0].ID != mine.ID {
		t.Fatalf("list leaked across accounts: %+v", result)
	}

	// a foreign id resolves exactly like a nonexistent one
	_, err = services.GetByID(ctx, accountOne.ID, foreign.ID)

	if !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("cross-tenant get: err = %v, want ErrNotFound", err)
	}

	_, err = services.GetByID(ctx, accountOne.ID, "00000000-0000-0000-0000-000000000000")

	if !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("unknown id get: err = %v, want ErrNotFound", err)
	}

	_, err = services.GetByID(ctx, accountOne.ID, "not-a-uuid")

	if !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("malformed id get: err = %v, want ErrNotFound", err)
	}
}

func TestServicesRepoOrderingAndPagination(t *testing.T) {
	pool := setupPool(t)
	resetDB(t, pool)

	ctx := context.Background()

	accounts := postgres.NewAccountsRepo(pool, nil)
	services := postgres.NewServicesRepo(pool, nil)

	account, err := accounts.Create(ctx, "Account 1")
	if err != nil {
		t.Fatalf("create account: %v", err)
	}

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 20; i++ {
		svc, err := services.Create(ctx, catalog.NewService(account.ID, fmt.Sprintf("Service %d", i+1), "this is a description"))
		if err != nil {
			t.Fatalf("create service: %v", err)
		}

		setUpdatedAt(t, pool, svc.ID, base.Add(time.Duration(i)*time.Minute))
	}

	pageOne, err := services.List(ctx, account.ID, catalog.ListFilter{})

	if err != nil {
		t.Fatalf("list page 1: %v", err)
	}

	if pageOne.Total != 20 || pageOne.Page != 1 || pageOne.PageSize != 12 || pageOne.LastPage != 2 {
		t.Fatalf("page 1 envelope = %+v", pageOne)
	}

	if len(pageOne.Items) != 12 {
		t.Fatalf("page 1 has %d items, want 12", len(pageOne.Items))
	}

	// most recently updated first: Service 20 down to Service 9
	if pageOne.Items[0].Name != "Service 20" || pageOne.Items[11].Name != "Service 9" {
		t.Fatalf("page 1 order = [%s ... %s]", pageOne.Items[0].Name, pageOne.Items[11].Name)
	}

	pageTwo, err := services.List(ctx, account.ID, catalog.ListFilter{Page: 2})

	if err != nil {
		t.Fatalf("list page 2: %v", err)
	}

	if pageTwo.Total != 20 || pageTwo.LastPage != 2 || len(pageTwo.Items) != 8 {
		t.Fatalf("page 2 envelope = %+v with %d items", pageTwo, len(pageTwo.Items))
	}

	if pageTwo.Items[0].Name != "Service 8" || pageTwo.Items[7].Name != "Service 1" {
		t.Fatalf("page 2 order = [%s ... %s]", pageTwo.Items[0].Name, pageTwo.Items[7].Name)
	}

	beyond, err := services.List(ctx, account.ID, catalog.ListFilter{Page: 9})

	if err != nil {
		t.Fatalf("list beyond last page: %v", err)
	}

	if len(beyond.Items) != 0 || beyond.Total != 20 || beyond.LastPage != 2 {
		t.Fatalf("beyond-last-page envelope = %+v with %d items", beyond, len(beyond.Items))
	}
}

func TestServicesRepoTieBreakOnEqualTimestamps(t *testing.T) {
	pool := setupPool(t)
	resetDB(t, pool)

	ctx := context.Background()

	accounts := postgres.NewAccountsRepo(pool, nil)
	services := postgres.NewServicesRepo(pool, nil)

	account, err := accounts.Create(ctx, "Account 1")
	if err != nil {
		t.Fatalf("create account: %v", err)
	}

	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		svc, err := services.Create(ctx, catalog.NewService(account.ID, fmt.Sprintf("Service %d", i+1), ""))
		if err != nil {
			t.Fatalf("create service: %v", err)
		}
		setUpdatedAt(t, pool, svc.ID, at)
	}

	first, err := services.List(ctx, account.ID, catalog.ListFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	second, err := services.List(ctx, account.ID, catalog.ListFilter{})
	if err != nil {
		t.Fatalf("list again: %v", err)
	}

	for i := range first.Items {
		if first.Items[i].ID != second.Items[i].ID {
			t.Fatalf("ordering not deterministic at index %d", i)
		}

		// ties resolved by id ascending
		if i > 0 && first.Items[i-1].ID > first.Items[i].ID {
			t.Fatalf("equal timestamps not ordered by id asc at index %d", i)
		}
	}
}

func TestServicesRepoSearch(t *testing.T) {
	pool := setupPool(t)
	resetDB(t, pool)

	ctx := context.Background()

	accounts := postgres.NewAccountsRepo(pool, nil)
	services := postgres.NewServicesRepo(pool, nil)

	account, err := accounts.Create(ctx, "Account 1")
	if err != nil {
		t.Fatalf("create account: %v", err)
	}

	descriptions := map[string]string{
		"Service 1":  "A service that satisfies search",
		"Service 2":  "A service that satisfies search for service 1",
		"Service 3":  "A service that satisfies search for service 3 instead of 1",
		"Service 41": "A service that does not satisfies search",
	}

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	offset := 0

	for _, name := range []string{"Service 1", "Service 2", "Service 3", "Service 41"} {
		svc, err := services.Create(ctx, catalog.NewService(account.ID, name, descriptions[name]))
		if err != nil {
			t.Fatalf("create service: %v", err)
		}
		setUpdatedAt(t, pool, svc.ID, base.Add(time.Duration(offset)*time.Minute))
		offset++
	}

	result, err := services.List(ctx, account.ID, catalog.ListFilter{Search: "service 1"})

	if err != nil {
		t.Fatalf("search list: %v", err)
	}

	// "Service 1" matches on name, "Service 2" on description; "Service 3"'s
	// description contains "service 3 instead of 1" which has no "service 1"
	// substring. Most recently updated first.
	if result.Total != 2 || len(result.Items) != 2 {
		t.Fatalf("search matched %d/%d, want 2/2", len(result.Items), result.Total)
	}

	if result.Items[0].Name != "Service 2" || result.Items[1].Name != "Service 1" {
		t.Fatalf("search order = [%s %s], want [Service 2 Service 1]", result.Items[0].Name, result.Items[1].Name)
	}

	// case folding applies to both the term and the columns
	upper, err := services.List(ctx, account.ID, catalog.ListFilter{Search: "SERVICE 1"})

	if err != nil {
		t.Fatalf("upper search: %v", err)
	}

	if upper.Total != 2 {
		t.Fatalf("upper-case search matched %d, want 2", upper.Total)
	}

	// whitespace is part of the term, not stripped: a padded or blank search
	// is a literal substring search, never "no filter"
	padded, err := services.List(ctx, account.ID, catalog.ListFilter{Search: " service 1 "})

	if err != nil {
		t.Fatalf("padded search: %v", err)
	}

	if padded.Total != 0 || len(padded.Items) != 0 {
		t.Fatalf("padded search matched %d/%d, want 0/0", len(padded.Items), padded.Total)
	}

	blank, err := services.List(ctx, account.ID, catalog.ListFilter{Search: "   "})

	if err != nil {
		t.Fatalf("blank search: %v", err)
	}

	if blank.Total != 0 || len(blank.Items) != 0 {
		t.Fatalf("blank search matched %d/%d, want 0/0", len(blank.Items), blank.Total)
	}

	// total and last_page hold on pages past the end of the filtered set
	beyond, err := services.List(ctx, account.ID, catalog.ListFilter{Search: "service 1", Page: 5})

	if err != nil {
		t.Fatalf("search beyond last page: %v", err)
	}

	if beyond.Total != 2 || beyond.LastPage != 1 || len(beyond.Items) != 0 {
		t.Fatalf("search beyond last page envelope = %+v with %d items", beyond, len(beyond.Items))
	}
}

func TestVersionsAttachAndConstraints(t *testing.T) {
	pool := setupPool(t)
	resetDB(t, pool)

	ctx := context.Background()

	accounts := postgres.NewAccountsRepo(pool, nil)
	services := postgres.NewServicesRepo(pool, nil)
	versions := postgres.NewVersionsRepo(pool, nil)

	account, err := accounts.Create(ctx, "Account 1")
	if err != nil {
		t.Fatalf("create account: %v", err)
	}

	svc, err := services.Create(ctx, catalog.NewService(account.ID, "Service 1", ""))
	if err != nil {
		t.Fatalf("create service: %v", err)
	}

	if _, err := versions.Create(ctx, catalog.NewVersion(svc.ID, "Version 1", "first cut")); err != nil {
		t.Fatalf("create version: %v", err)
	}

	// same name under the same service is a constraint violation, reported
	// from the insert, not pre-checked
	_, err = versions.Create(ctx, catalog.NewVersion(svc.ID, "Version 1", "again"))

	if !errors.Is(err, catalog.ErrDuplicateVersionName) {
		t.Fatalf("duplicate version: err = %v, want ErrDuplicateVersionName", err)
	}

	// same name under a different service is fine
	other, err := services.Create(ctx, catalog.NewService(account.ID, "Service 2", ""))
	if err != nil {
		t.Fatalf("create service: %v", err)
	}

	if _, err := versions.Create(ctx, catalog.NewVersion(other.ID, "Version 1", "")); err != nil {
		t.Fatalf("same version name under another service: %v", err)
	}

	got, err := services.GetByID(ctx, account.ID, svc.ID)

	if err != nil {
		t.Fatalf("get by id: %v", err)
	}

	if len(got.Versions) != 1 || got.Versions[0].Name != "Version 1" {
		t.Fatalf("versions not attached: %+v", got.Versions)
	}
}

func TestUsersRepoConstraintsAndCascade(t *testing.T) {
	pool := setupPool(t)
	resetDB(t, pool)

	ctx := context.Background()

	accounts := postgres.NewAccountsRepo(pool, nil)
	users := postgres.NewUsersRepo(pool, nil)
	services := postgres.NewServicesRepo(pool, nil)

	account, err := accounts.Create(ctx, "Account 1")
	if err != nil {
		t.Fatalf("create account: %v", err)
	}

	u, err := user.New(account.ID, "name", "aa@aa.com", "pass")
	if err != nil {
		t.Fatalf("new user: %v", err)
	}

	if _, err := users.Create(ctx, u); err != nil {
		t.Fatalf("create user: %v", err)
	}

	dup, err := user.New(account.ID, "other", "aa@aa.com", "pass")
	if err != nil {
		t.Fatalf("new user: %v", err)
	}

	_, err = users.Create(ctx, dup)

	if !errors.Is(err, user.ErrDuplicateEmail) {
		t.Fatalf("duplicate email: err = %v, want ErrDuplicateEmail", err)
	}

	svc, err := services.Create(ctx, catalog.NewService(account.ID, "Service 1", ""))
	if err != nil {
		t.Fatalf("create service: %v", err)
	}

	// deleting the account cascades to users and services
	if err := accounts.Delete(ctx, account.ID); err != nil {
		t.Fatalf("delete account: %v", err)
	}

	if _, err := users.GetByEmail(ctx, "aa@aa.com"); !errors.Is(err, user.ErrNotFound) {
		t.Fatalf("user survived account delete: err = %v", err)
	}

	if _, err := services.GetByID(ctx, account.ID, svc.ID); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("service survived account delete: err = %v", err)
	}
}
