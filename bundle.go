package stepgate

import (
	"database/sql"

	sweeperpkg "github.com/accredia/stepgate/pkg/sweeper"
)

// Bundle wires together an Engine and a Sweeper that enforces SLAs against
// the same store.
type Bundle struct {
	Engine  Engine
	Sweeper *sweeperpkg.Sweeper
}

// NewSQLiteBundle constructs a durable Engine + Sweeper combo sharing the
// same SQLite database.
//
// Typical usage:
//
//	db, _ := sql.Open("sqlite", "file:stepgate.db?_journal=WAL")
//	bundle, err := stepgate.NewSQLiteBundle(db, sweeper.Config{Interval: time.Minute})
//	// register snapshots on bundle.Engine
//	_ = bundle.Sweeper.Start(ctx)
func NewSQLiteBundle(db *sql.DB, cfg sweeperpkg.Config) (*Bundle, error) {
	eng, err := NewSQLiteEngine(db)
	if err != nil {
		return nil, err
	}
	return &Bundle{
		Engine:  eng,
		Sweeper: sweeperpkg.New(eng, cfg),
	}, nil
}

// NewPostgresBundle constructs a durable Engine + Sweeper combo sharing
// the same PostgreSQL database.
func NewPostgresBundle(db *sql.DB, cfg sweeperpkg.Config) (*Bundle, error) {
	eng, err := NewPostgresEngine(db)
	if err != nil {
		return nil, err
	}
	return &Bundle{
		Engine:  eng,
		Sweeper: sweeperpkg.New(eng, cfg),
	}, nil
}
