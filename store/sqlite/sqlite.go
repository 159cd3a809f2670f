/*
Package sqlite provides the SQLite row source for the fleet engine.

PURPOSE:
  Opens the database with the pragmas the engine relies on and migrates the
  schema. The engine itself only ever sees *sql.DB - in production the same
  patterns apply to PostgreSQL with minor dialect differences.

PRAGMAS:
  - foreign_keys=on: dependent rows block parent deletion; the engine
    classifies the rejection as "in use"
  - journal_mode=WAL: readers don't block the single writer

IMMUTABILITY:
  No UPDATE/DELETE statements reach the movements table: triggers reject
  both, so ledger history can only grow. Corrections are offsetting posts.

KEY TABLES:
  vehicles, maintenance_orders:     fleet state and service history
  society_accounts, movements:      the shareholder ledger
  missions, insurance_policies:     vehicle assignments and coverage
  personnel, functions, services:   people and org tables
  notifications:                    persisted message records
  ledger_audits:                    consistency-check runs

MIGRATION:
  Schema is auto-migrated on Open(). For production, use a proper migration
  tool (golang-migrate, goose) with versioned migrations.

USAGE:
  db, err := sqlite.Open("./data/fleet.db")
  if err != nil {
      log.Fatal(err)
  }
  defer db.Close()

SEE ALSO:
  - generic/store.go: The engine issuing statements against this source
  - fleet/descriptors.go, finance/types.go: Column orders matching this schema
*/
package sqlite

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Open opens (or creates) the database at path and migrates the schema.
// Use ":memory:" for an in-memory database.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// An in-memory database exists per connection; pin the pool to one so
	// every statement sees the same schema and data.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return db, nil
}

func migrate(db *sql.DB) error {
	schema := `
	-- Vehicles
	CREATE TABLE IF NOT EXISTS vehicles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		state TEXT NOT NULL,
		energy TEXT NOT NULL,
		chassis_number TEXT NOT NULL UNIQUE,
		plate_number TEXT NOT NULL UNIQUE,
		odometer_km INTEGER NOT NULL DEFAULT 0,
		price TEXT NOT NULL DEFAULT '0',
		acquired_at TEXT,
		commissioned_at TEXT,
		depreciated_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_vehicles_state ON vehicles(state);

	-- Maintenance orders (service history; feeds the due computation)
	CREATE TABLE IF NOT EXISTS maintenance_orders (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		vehicle_id INTEGER NOT NULL REFERENCES vehicles(id),
		entered_at TEXT NOT NULL,
		exited_at TEXT,
		service_odometer INTEGER,
		cost TEXT NOT NULL DEFAULT '0',
		type TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'open'
	);

	-- Hot path: due computation and range queries per vehicle
	CREATE INDEX IF NOT EXISTS idx_maintenance_vehicle_entered
		ON maintenance_orders(vehicle_id, entered_at);
	CREATE INDEX IF NOT EXISTS idx_maintenance_status
		ON maintenance_orders(status);

	-- Org tables
	CREATE TABLE IF NOT EXISTS functions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		label TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS services (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		label TEXT NOT NULL UNIQUE
	);

	-- Personnel
	CREATE TABLE IF NOT EXISTS personnel (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		last_name TEXT NOT NULL,
		first_name TEXT NOT NULL DEFAULT '',
		function_id INTEGER NOT NULL REFERENCES functions(id),
		service_id INTEGER NOT NULL REFERENCES services(id),
		shareholder INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_personnel_function ON personnel(function_id);
	CREATE INDEX IF NOT EXISTS idx_personnel_service ON personnel(service_id);

	-- Missions
	CREATE TABLE IF NOT EXISTS missions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		vehicle_id INTEGER NOT NULL REFERENCES vehicles(id),
		personnel_id INTEGER NOT NULL REFERENCES personnel(id),
		label TEXT NOT NULL,
		destination TEXT NOT NULL DEFAULT '',
		starts_at TEXT NOT NULL,
		ends_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_missions_vehicle ON missions(vehicle_id);

	-- Insurance policies
	CREATE TABLE IF NOT EXISTS insurance_policies (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		vehicle_id INTEGER NOT NULL REFERENCES vehicles(id),
		contract_number TEXT NOT NULL UNIQUE,
		insurer TEXT NOT NULL DEFAULT '',
		premium TEXT NOT NULL DEFAULT '0',
		starts_at TEXT NOT NULL,
		ends_at TEXT
	);

	-- Society accounts (shareholder ledger)
	CREATE TABLE IF NOT EXISTS society_accounts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		personnel_id INTEGER NOT NULL REFERENCES personnel(id),
		account_number TEXT NOT NULL UNIQUE,
		balance TEXT NOT NULL DEFAULT '0',
		allow_overdraft INTEGER NOT NULL DEFAULT 0
	);

	-- Movements (immutable postings; never updated or deleted)
	CREATE TABLE IF NOT EXISTS movements (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		account_id INTEGER NOT NULL REFERENCES society_accounts(id),
		type TEXT NOT NULL,
		amount TEXT NOT NULL,
		recorded_at TEXT NOT NULL
	);

	-- Hot path: balance recomputation
	CREATE INDEX IF NOT EXISTS idx_movements_account_recorded
		ON movements(account_id, recorded_at);

	-- Immutability enforced at the row source: corrections are offsetting
	-- posts. No code path, present or future, can edit movement history.
	CREATE TRIGGER IF NOT EXISTS movements_no_update
	BEFORE UPDATE ON movements
	BEGIN
		SELECT RAISE(ABORT, 'movements are immutable');
	END;

	CREATE TRIGGER IF NOT EXISTS movements_no_delete
	BEFORE DELETE ON movements
	BEGIN
		SELECT RAISE(ABORT, 'movements are immutable');
	END;

	-- Notifications
	CREATE TABLE IF NOT EXISTS notifications (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		personnel_id INTEGER NOT NULL REFERENCES personnel(id),
		message TEXT NOT NULL,
		sent_at TEXT,
		read INTEGER NOT NULL DEFAULT 0
	);

	-- Ledger audit runs (consistency checks)
	CREATE TABLE IF NOT EXISTS ledger_audits (
		id TEXT PRIMARY KEY,
		account_id INTEGER NOT NULL,
		stored_balance TEXT NOT NULL DEFAULT '',
		computed_balance TEXT NOT NULL DEFAULT '',
		drift TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		checked_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_ledger_audits_account
		ON ledger_audits(account_id, checked_at);
	`

	_, err := db.Exec(schema)
	return err
}
