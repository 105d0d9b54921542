package persistence

import (
	"database/sql"
	"testing"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/accredia/stepgate/internal/testutil"
)

func TestPostgresStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	dsn := testutil.GetPostgresEndpoint(t)

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("sql.Open failed: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})

	store, err := NewPostgresStore(db)
	if err != nil {
		t.Fatalf("NewPostgresStore failed: %v", err)
	}

	runStoreSuite(t, func(t *testing.T) fullStore {
		// The container is shared; start each behavior from empty tables.
		for _, table := range []string{"approvals", "participants", "snapshot_steps", "snapshots"} {
			if _, err := db.Exec("TRUNCATE TABLE " + table + " CASCADE"); err != nil {
				t.Fatalf("truncating %s: %v", table, err)
			}
		}
		return store
	})
}
