// internal/store/store_test.go
package store

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/nettolabs/netto/internal/core/db"
	"github.com/nettolabs/netto/internal/types"
)

// newTestStore opens a file-backed sqlite database under t.TempDir().
// In-memory sqlite breaks with pooled connections (each connection gets
// its own empty database), so tests use a real file.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "store.db")
	conn, err := db.Open("sqlite://" + path)
	if err != nil {
		t.Fatalf("Open() error = %v, want nil", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := db.MigrateUp(conn); err != nil {
		t.Fatalf("MigrateUp() error = %v, want nil", err)
	}
	queries, err := db.LoadQueries(conn)
	if err != nil {
		t.Fatalf("LoadQueries() error = %v, want nil", err)
	}
	return New(queries)
}

const doc = `{"rules": [{"id": "tax", "type": "percentage", "rate": 0.15}]}`

func TestStorePutGet(t *testing.T) {
	s := newTestStore(t)

	put, err := s.Put("CZ", 2025, doc)
	if err != nil {
		t.Fatalf("Put() error = %v, want nil", err)
	}
	if put.Country != "cz" {
		t.Errorf("Country = %q, want normalized %q", put.Country, "cz")
	}
	if put.RulesetID == "" {
		t.Error("RulesetID is empty, want generated id")
	}

	got, err := s.Get("cz", 2025)
	if err != nil {
		t.Fatalf("Get() error = %v, want nil", err)
	}
	if got.Document != doc {
		t.Errorf("Document = %q, want stored verbatim", got.Document)
	}
	if got.RulesetID != put.RulesetID {
		t.Errorf("RulesetID = %q, want %q", got.RulesetID, put.RulesetID)
	}
}

func TestStorePutUpsertsKeepingID(t *testing.T) {
	s := newTestStore(t)

	first, err := s.Put("cz", 2025, doc)
	if err != nil {
		t.Fatalf("Put() error = %v, want nil", err)
	}
	updated := `{"rules": []}`
	second, err := s.Put("cz", 2025, updated)
	if err != nil {
		t.Fatalf("Put() upsert error = %v, want nil", err)
	}
	if second.RulesetID != first.RulesetID {
		t.Errorf("RulesetID changed on upsert: %q -> %q", first.RulesetID, second.RulesetID)
	}
	if second.Document != updated {
		t.Errorf("Document = %q, want replacement", second.Document)
	}
	if second.CreatedAt != first.CreatedAt {
		t.Errorf("CreatedAt changed on upsert: %q -> %q", first.CreatedAt, second.CreatedAt)
	}
}

func TestStoreGetMissing(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get("cz", 1999)
	if !errors.Is(err, types.ErrRulesetNotFound) {
		t.Fatalf("Get() error = %v, want ErrRulesetNotFound", err)
	}
}

func TestStoreList(t *testing.T) {
	s := newTestStore(t)
	for _, put := range []struct {
		country string
		year    int
	}{{"sk", 2024}, {"cz", 2025}, {"cz", 2024}} {
		if _, err := s.Put(put.country, put.year, doc); err != nil {
			t.Fatalf("Put(%s/%d) error = %v, want nil", put.country, put.year, err)
		}
	}

	list, err := s.List()
	if err != nil {
		t.Fatalf("List() error = %v, want nil", err)
	}
	if len(list) != 3 {
		t.Fatalf("len(List()) = %d, want 3", len(list))
	}
	// Ordered by country then year.
	if list[0].Country != "cz" || list[0].Year != 2024 ||
		list[1].Country != "cz" || list[1].Year != 2025 ||
		list[2].Country != "sk" {
		t.Errorf("List() order = %v, want cz/2024, cz/2025, sk/2024", list)
	}
}

func TestStoreDelete(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Put("cz", 2025, doc); err != nil {
		t.Fatalf("Put() error = %v, want nil", err)
	}
	if err := s.Delete("cz", 2025); err != nil {
		t.Fatalf("Delete() error = %v, want nil", err)
	}
	if _, err := s.Get("cz", 2025); !errors.Is(err, types.ErrRulesetNotFound) {
		t.Fatalf("Get() after delete error = %v, want ErrRulesetNotFound", err)
	}
	if err := s.Delete("cz", 2025); !errors.Is(err, types.ErrRulesetNotFound) {
		t.Fatalf("Delete() missing error = %v, want ErrRulesetNotFound", err)
	}
}

func TestMigrateUpIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.db")
	conn, err := db.Open("sqlite://" + path)
	if err != nil {
		t.Fatalf("Open() error = %v, want nil", err)
	}
	defer conn.Close()

	if err := db.MigrateUp(conn); err != nil {
		t.Fatalf("first MigrateUp() error = %v, want nil", err)
	}
	if err := db.MigrateUp(conn); err != nil {
		t.Fatalf("second MigrateUp() error = %v, want nil", err)
	}

	statuses, err := db.MigrateStatus(conn)
	if err != nil {
		t.Fatalf("MigrateStatus() error = %v, want nil", err)
	}
	for _, s := range statuses {
		if !s.Applied {
			t.Errorf("migration %s not applied after MigrateUp", s.ID)
		}
	}
}
