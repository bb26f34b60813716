// Package persistence provides SQLite-based snapshot storage for the
// faction, territory, and war registries.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/rossicka/imperium/internal/faction"
	"github.com/rossicka/imperium/internal/territory"
	"github.com/rossicka/imperium/internal/war"
)

// DB wraps a SQLite connection for state snapshots.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS factions (
		id TEXT PRIMARY KEY,
		description TEXT NOT NULL,
		owner_id TEXT NOT NULL,
		members_json TEXT NOT NULL,
		tax_rate REAL NOT NULL,
		tax_chest_id TEXT,
		treasury INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS areas (
		id TEXT PRIMARY KEY,
		name TEXT,
		type INTEGER NOT NULL,
		faction_id TEXT,
		monument TEXT,
		mayor_id TEXT,
		claimed_at INTEGER,
		next_upkeep_at INTEGER,
		in_default_since INTEGER
	);

	CREATE TABLE IF NOT EXISTS wars (
		id TEXT PRIMARY KEY,
		attacker_id TEXT NOT NULL,
		defender_id TEXT NOT NULL,
		cassus_belli TEXT NOT NULL,
		declared_at INTEGER NOT NULL,
		state INTEGER NOT NULL,
		ended_at INTEGER
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_areas_faction ON areas(faction_id);
	CREATE INDEX IF NOT EXISTS idx_wars_state ON wars(state);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// HasState reports whether a previous snapshot exists.
func (db *DB) HasState() bool {
	var count int
	if err := db.conn.Get(&count, "SELECT COUNT(*) FROM meta WHERE key = 'saved_at'"); err != nil {
		return false
	}
	return count > 0
}

// SaveSnapshot writes all three registries' records in one transaction,
// replacing the prior snapshot.
func (db *DB) SaveSnapshot(factions []faction.Record, areas []territory.Record, wars []war.Record) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := saveFactions(tx, factions); err != nil {
		return fmt.Errorf("save factions: %w", err)
	}
	if err := saveAreas(tx, areas); err != nil {
		return fmt.Errorf("save areas: %w", err)
	}
	if err := saveWars(tx, wars); err != nil {
		return fmt.Errorf("save wars: %w", err)
	}

	savedAt := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.Exec("INSERT OR REPLACE INTO meta (key, value) VALUES ('saved_at', ?)", savedAt); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	slog.Info("snapshot saved", "factions", len(factions), "areas", len(areas), "wars", len(wars))
	return nil
}

func saveFactions(tx *sqlx.Tx, records []faction.Record) error {
	if _, err := tx.Exec("DELETE FROM factions"); err != nil {
		return err
	}
	stmt, err := tx.Preparex(`INSERT INTO factions
		(id, description, owner_id, members_json, tax_rate, tax_chest_id, treasury)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, rec := range records {
		membersJSON, err := json.Marshal(rec.Members)
		if err != nil {
			return fmt.Errorf("encode members of %q: %w", rec.ID, err)
		}
		if _, err := stmt.Exec(rec.ID, rec.Description, rec.OwnerID,
			string(membersJSON), rec.TaxRate, rec.TaxChestID, rec.Treasury); err != nil {
			return fmt.Errorf("insert faction %q: %w", rec.ID, err)
		}
	}
	return nil
}

func saveAreas(tx *sqlx.Tx, records []territory.Record) error {
	if _, err := tx.Exec("DELETE FROM areas"); err != nil {
		return err
	}
	stmt, err := tx.Preparex(`INSERT INTO areas
		(id, name, type, faction_id, monument, mayor_id, claimed_at, next_upkeep_at, in_default_since)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, rec := range records {
		var inDefault any
		if rec.InDefaultSince != nil {
			inDefault = rec.InDefaultSince.Unix()
		}
		if _, err := stmt.Exec(rec.ID, rec.Name, rec.Type, rec.FactionID, rec.Monument,
			rec.MayorID, unixOrZero(rec.ClaimedAt), unixOrZero(rec.NextUpkeepAt), inDefault); err != nil {
			return fmt.Errorf("insert area %q: %w", rec.ID, err)
		}
	}
	return nil
}

func saveWars(tx *sqlx.Tx, records []war.Record) error {
	if _, err := tx.Exec("DELETE FROM wars"); err != nil {
		return err
	}
	stmt, err := tx.Preparex(`INSERT INTO wars
		(id, attacker_id, defender_id, cassus_belli, declared_at, state, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, rec := range records {
		if _, err := stmt.Exec(rec.ID, rec.AttackerID, rec.DefenderID, rec.CassusBelli,
			rec.DeclaredAt.Unix(), rec.State, unixOrZero(rec.EndedAt)); err != nil {
			return fmt.Errorf("insert war %q: %w", rec.ID, err)
		}
	}
	return nil
}

// LoadFactions reads the faction snapshot.
func (db *DB) LoadFactions() ([]faction.Record, error) {
	rows, err := db.conn.Queryx("SELECT id, description, owner_id, members_json, tax_rate, tax_chest_id, treasury FROM factions")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []faction.Record
	for rows.Next() {
		var rec faction.Record
		var membersJSON string
		var chest sql.NullString
		if err := rows.Scan(&rec.ID, &rec.Description, &rec.OwnerID, &membersJSON, &rec.TaxRate, &chest, &rec.Treasury); err != nil {
			return nil, fmt.Errorf("scan faction: %w", err)
		}
		if err := json.Unmarshal([]byte(membersJSON), &rec.Members); err != nil {
			return nil, fmt.Errorf("decode members of %q: %w", rec.ID, err)
		}
		rec.TaxChestID = chest.String
		records = append(records, rec)
	}
	return records, rows.Err()
}

// LoadAreas reads the area snapshot.
func (db *DB) LoadAreas() ([]territory.Record, error) {
	rows, err := db.conn.Queryx("SELECT id, name, type, faction_id, monument, mayor_id, claimed_at, next_upkeep_at, in_default_since FROM areas")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []territory.Record
	for rows.Next() {
		var rec territory.Record
		var name, factionID, monument, mayorID sql.NullString
		var claimedAt, nextUpkeepAt, inDefault sql.NullInt64
		if err := rows.Scan(&rec.ID, &name, &rec.Type, &factionID, &monument, &mayorID,
			&claimedAt, &nextUpkeepAt, &inDefault); err != nil {
			return nil, fmt.Errorf("scan area: %w", err)
		}
		rec.Name = name.String
		rec.FactionID = factionID.String
		rec.Monument = monument.String
		rec.MayorID = mayorID.String
		rec.ClaimedAt = timeOrZero(claimedAt)
		rec.NextUpkeepAt = timeOrZero(nextUpkeepAt)
		if inDefault.Valid && inDefault.Int64 != 0 {
			t := time.Unix(inDefault.Int64, 0)
			rec.InDefaultSince = &t
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// LoadWars reads the war snapshot.
func (db *DB) LoadWars() ([]war.Record, error) {
	rows, err := db.conn.Queryx("SELECT id, attacker_id, defender_id, cassus_belli, declared_at, state, ended_at FROM wars")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []war.Record
	for rows.Next() {
		var rec war.Record
		var declaredAt int64
		var endedAt sql.NullInt64
		if err := rows.Scan(&rec.ID, &rec.AttackerID, &rec.DefenderID, &rec.CassusBelli,
			&declaredAt, &rec.State, &endedAt); err != nil {
			return nil, fmt.Errorf("scan war: %w", err)
		}
		rec.DeclaredAt = time.Unix(declaredAt, 0)
		rec.EndedAt = timeOrZero(endedAt)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// GetMeta retrieves a metadata value. Missing keys return "".
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM meta WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

// SetMeta stores a key-value pair in snapshot metadata.
func (db *DB) SetMeta(key, value string) error {
	_, err := db.conn.Exec("INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)", key, value)
	return err
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func timeOrZero(v sql.NullInt64) time.Time {
	if !v.Valid || v.Int64 == 0 {
		return time.Time{}
	}
	return time.Unix(v.Int64, 0)
}
