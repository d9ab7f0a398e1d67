// Package storage opens the shared SQLite database used by every
// subsystem (plan engine, memory, activity projections).
//
// The engine's correctness depends on the storage layer's transactional
// guarantees, not on in-process locking — callers may be separate OS
// processes sharing the same database file. WAL mode plus a busy
// timeout lets concurrent writers serialize at the SQLite level.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DBFile is the database filename inside the data directory.
const DBFile = "stride.db"

// Open creates the data directory if needed and opens the SQLite
// database with the pragmas the engine relies on.
func Open(dataDir string) (*sql.DB, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("storage: create data dir: %w", err)
	}

	// The pragmas ride in the DSN because database/sql pools
	// connections: an Exec'd PRAGMA lands on one connection while
	// foreign_keys and busy_timeout are per-connection settings. The
	// driver replays DSN _pragma values on every connection it opens,
	// so cascades and busy handling hold no matter which pooled
	// connection serves a query.
	//
	// _txlock=immediate makes every transaction take the write lock up
	// front. Read-then-write transactions otherwise risk a snapshot
	// upgrade failure under WAL; with immediate locking, contending
	// writers serialize on busy_timeout and losers observe committed
	// state instead of an error.
	dbPath := filepath.Join(dataDir, DBFile)
	dsn := fmt.Sprintf("file:%s?_txlock=immediate"+
		"&_pragma=journal_mode(WAL)"+
		"&_pragma=busy_timeout(5000)"+
		"&_pragma=synchronous(NORMAL)"+
		"&_pragma=foreign_keys(1)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: open database: %w", err)
	}

	return db, nil
}
