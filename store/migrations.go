package store

import (
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// migration is one forward schema step, applied in order inside a single
// transaction on open.
type migration struct {
	version int
	sql     string
}

// ErrSchemaTooNew is returned when a database's recorded schema version is
// higher than the version this binary knows how to read.
var ErrSchemaTooNew = fmt.Errorf("store: schema version newer than supported")

// runMigrations opens (creating if absent) db_metadata, compares its
// recorded version against the tail of migrations, and applies any
// migrations whose version exceeds what's recorded, all inside one
// immediate transaction so a failure can't leave a partially-applied schema.
func runMigrations(conn *sqlite.Conn, migrations []migration) error {
	if err := sqlitex.ExecuteTransient(conn,
		`CREATE TABLE IF NOT EXISTS db_metadata (key TEXT PRIMARY KEY, value TEXT NOT NULL)`,
		nil); err != nil {
		return fmt.Errorf("store: creating db_metadata: %w", err)
	}

	current := 0
	err := sqlitex.ExecuteTransient(conn,
		`SELECT value FROM db_metadata WHERE key = 'schema_version'`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				_, scanErr := fmt.Sscanf(stmt.ColumnText(0), "%d", &current)
				return scanErr
			},
		})
	if err != nil {
		return fmt.Errorf("store: reading schema_version: %w", err)
	}

	target := 0
	for _, m := range migrations {
		if m.version > target {
			target = m.version
		}
	}
	if current > target {
		return fmt.Errorf("%w: db has version %d, binary supports up to %d", ErrSchemaTooNew, current, target)
	}

	if current == target {
		return nil
	}

	endFn, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("store: starting migration transaction: %w", err)
	}
	defer func() { endFn(&err) }()

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err = sqlitex.ExecuteScript(conn, m.sql, nil); err != nil {
			err = fmt.Errorf("store: applying migration %d: %w", m.version, err)
			return err
		}
	}

	if err = sqlitex.ExecuteTransient(conn,
		`INSERT INTO db_metadata(key, value) VALUES ('schema_version', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		&sqlitex.ExecOptions{Args: []interface{}{fmt.Sprintf("%d", target)}}); err != nil {
		err = fmt.Errorf("store: recording schema_version: %w", err)
		return err
	}

	return nil
}
