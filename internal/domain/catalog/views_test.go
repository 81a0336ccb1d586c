package catalog_test

import (
	"encoding/json"
	"reflect"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mkowalczyk/svchub/internal/domain/catalog"
)

func baseTime() time.Time {
	return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
}

func serviceWithVersions(versions ...catalog.Version) catalog.Service {
	now := baseTime()

	return catalog.Service{
		ID:          uuid.NewString(),
		AccountID:   uuid.NewString(),
		Name:        "Service 1",
		Description: "this is a description",
		CreatedAt:   now,
		UpdatedAt:   now,
		Versions:    versions,
	}
}

func versionUpdatedAt(name string, updatedAt time.Time) catalog.Version {
	return catalog.Version{
		ID:          uuid.NewString(),
		ServiceID:   "svc",
		Name:        name,
		Description: "notes for " + name,
		CreatedAt:   updatedAt.Add(-time.Hour),
		UpdatedAt:   updatedAt,
	}
}

func TestProjectListingVersionsSummary(t *testing.T) {
	now := baseTime()

	// 13 versions, most recently updated last in the input slice
	versions := make([]catalog.Version, 0, 13)
	for i := 0; i < 13; i++ {
		versions = append(versions, versionUpdatedAt("v"+strconv.Itoa(i), now.Add(time.Duration(i)*time.Minute)))
	}

	got := catalog.ProjectListing(serviceWithVersions(versions...))

	if got.Versions.Count != 13 {
		t.Fatalf("count = %d, want 13 (true total, not the truncated slice)", got.Versions.Count)
	}

	if len(got.Versions.RecentVersions) != catalog.RecentVersionsLimit {
		t.Fatalf("recentVersions has %d entries, want %d", len(got.Versions.RecentVersions), catalog.RecentVersionsLimit)
	}

	// most recently updated first
	if got.Versions.RecentVersions[0].Name != "v12" {
		t.Errorf("first recent version = %q, want v12", got.Versions.RecentVersions[0].Name)
	}

	for i := 1; i < len(got.Versions.RecentVersions); i++ {
		prev := got.Versions.RecentVersions[i-1].UpdatedAt
		cur := got.Versions.RecentVersions[i].UpdatedAt

		if cur.After(prev) {
			t.Fatalf("recentVersions not in updated_at desc order at index %d", i)
		}
	}
}

func TestProjectListingStableTies(t *testing.T) {
	now := baseTime()

	// equal updated_at: relative input order must be preserved
	versions := []catalog.Version{
		versionUpdatedAt("first", now),
		versionUpdatedAt("second", now),
		versionUpdatedAt("third", now),
	}

	got := catalog.ProjectListing(serviceWithVersions(versions...))

	wantOrder := []string{"first", "second", "third"}

	for i, want := range wantOrder {
		if got.Versions.RecentVersions[i].Name != want {
			t.Fatalf("tie order broken: index %d = %q, want %q", i, got.Versions.RecentVersions[i].Name, want)
		}
	}
}

func TestProjectListingJSONShape(t *testing.T) {
	now := baseTime()
	svc := serviceWithVersions(versionUpdatedAt("v1", now))

	raw, err := json.Marshal(catalog.ProjectListing(svc))

	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded map[string]any

	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if _, ok := decoded["account"]; ok {
		t.Error("listing view must not serialize the account relation")
	}
	if _, ok := decoded["account_id"]; ok {
		t.Error("listing view must not serialize account_id")
	}

	versions, ok := decoded["versions"].(map[string]any)

	if !ok {
		t.Fatalf("versions field is %T, want an object with count/recentVersions", decoded["versions"])
	}

	if _, ok := versions["count"]; !ok {
		t.Error("versions summary missing count")
	}

	recent, ok := versions["recentVersions"].([]any)

	if !ok {
		t.Fatalf("recentVersions is %T, want an array", versions["recentVersions"])
	}

	entry := recent[0].(map[string]any)

	if _, ok := entry["description"]; ok {
		t.Error("listing view must not include version descriptions")
	}
}

func TestProjectFull(t *testing.T) {
	now := baseTime()

	versions := []catalog.Version{
		versionUpdatedAt("older", now.Add(-time.Hour)),
		versionUpdatedAt("newer", now),
	}

	got := catalog.ProjectFull(serviceWithVersions(versions...))

	if len(got.Versions) != 2 {
		t.Fatalf("full view has %d versions, want 2 (never truncated)", len(got.Versions))
	}

	if got.Versions[0].Name != "newer" || got.Versions[1].Name != "older" {
		t.Fatalf("full view order = [%s %s], want [newer older]", got.Versions[0].Name, got.Versions[1].Name)
	}

	for _, v := range got.Versions {
		if v.Description == "" {
			t.Errorf("full view version %q lost its description", v.Name)
		}
	}

	raw, err := json.Marshal(got)

	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded map[string]any

	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if _, ok := decoded["account"]; ok {
		t.Error("full view must not serialize the account relation")
	}
}

func TestProjectEmptyDescriptionKeepsKey(t *testing.T) {
	now := baseTime()

	v := versionUpdatedAt("v1", now)
	v.Description = ""

	svc := serviceWithVersions(v)
	svc.Description = ""

	// clients get a stable shape: the key is present even when blank
	for _, tc := range []struct {
		name string
		view catalog.View
	}{
		{"listing", catalog.ViewListing},
		{"full", catalog.ViewFull},
	} {
		t.Run(tc.name, func(t *testing.T) {
			raw, err := json.Marshal(catalog.Project(svc, tc.view))

			if err != nil {
				t.Fatalf("marshal: %v", err)
			}

			var decoded map[string]any

			if err := json.Unmarshal(raw, &decoded); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}

			if _, ok := decoded["description"]; !ok {
				t.Error("empty service description dropped from output")
			}
		})
	}

	full := catalog.ProjectFull(svc)

	raw, err := json.Marshal(full.Versions[0])

	if err != nil {
		t.Fatalf("marshal version: %v", err)
	}

	var decoded map[string]any

	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal version: %v", err)
	}

	if _, ok := decoded["description"]; !ok {
		t.Error("empty version description dropped from full view")
	}
}

func TestProjectIsPure(t *testing.T) {
	now := baseTime()

	// deliberately unsorted input
	versions := []catalog.Version{
		versionUpdatedAt("b", now.Add(-time.Minute)),
		versionUpdatedAt("a", now),
	}

	svc := serviceWithVersions(versions...)

	first := catalog.Project(svc, catalog.ViewListing)
	second := catalog.Project(svc, catalog.ViewListing)

	if !reflect.DeepEqual(first, second) {
		t.Error("projecting twice with the same view produced different output")
	}

	// input slice must keep its original order
	if svc.Versions[0].Name != "b" || svc.Versions[1].Name != "a" {
		t.Error("projection mutated the input versions slice")
	}

	fullFirst := catalog.Project(svc, catalog.ViewFull)
	fullSecond := catalog.Project(svc, catalog.ViewFull)

	if !reflect.DeepEqual(fullFirst, fullSecond) {
		t.Error("full projection is not deterministic")
	}
}

func TestLastPage(t *testing.T) {
	tests := []struct {
		name     string
		total    int
		pageSize int
		want     int
	}{
		{"empty", 0, 12, 0},
		{"single_partial_page", 5, 12, 1},
		{"exact_boundary", 24, 12, 2},
		{"one_over_boundary", 25, 12, 3},
		{"twenty_default", 20, 12, 2},
		{"zero_page_size", 10, 0, 0},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			got := catalog.LastPage(tt.total, tt.pageSize)

			if got != tt.want {
				t.Fatalf("LastPage(%d, %d) = %d, want %d", tt.total, tt.pageSize, got, tt.want)
			}
		})
	}
}
