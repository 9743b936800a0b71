package main

import (
	"database/sql"
	"encoding/json"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore is the default single-binary persistence backend
type SQLiteStore struct {
	conn *sql.DB
}

// OpenSQLite opens (or creates) the SQLite database at path
func OpenSQLite(path string) (*SQLiteStore, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// WAL for concurrent readers while the journal writes
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, err
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, err
	}

	s := &SQLiteStore{conn: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}

// migrate creates tables if they don't exist
func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS maps (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		size INTEGER NOT NULL,
		mode TEXT NOT NULL DEFAULT 'classical',
		visible INTEGER NOT NULL DEFAULT 1,
		tiles TEXT NOT NULL,
		updated_at TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS matches (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		code TEXT NOT NULL,
		mode TEXT NOT NULL,
		duration_sec INTEGER NOT NULL DEFAULT 0,
		turns INTEGER NOT NULL DEFAULT 0,
		winners TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS match_players (
		match_id INTEGER NOT NULL REFERENCES matches(id),
		name TEXT NOT NULL,
		victories INTEGER NOT NULL DEFAULT 0,
		defeats INTEGER NOT NULL DEFAULT 0,
		evasions INTEGER NOT NULL DEFAULT 0,
		combats INTEGER NOT NULL DEFAULT 0,
		damage_dealt INTEGER NOT NULL DEFAULT 0,
		damage_taken INTEGER NOT NULL DEFAULT 0,
		objects INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (match_id, name)
	);

	CREATE TABLE IF NOT EXISTS game_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		event_type TEXT NOT NULL,
		code TEXT NOT NULL DEFAULT '',
		data TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_match_players_match ON match_players(match_id);
	CREATE INDEX IF NOT EXISTS idx_game_events_type ON game_events(event_type);
	`
	_, err := s.conn.Exec(schema)
	return err
}

// Maps returns stored maps, hidden ones only when includeHidden is set
func (s *SQLiteStore) Maps(includeHidden bool) ([]*GameMap, error) {
	query := "SELECT id, name, description, size, mode, visible, tiles, updated_at FROM maps"
	if !includeHidden {
		query += " WHERE visible = 1"
	}
	query += " ORDER BY name"
	rows, err := s.conn.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*GameMap
	for rows.Next() {
		m, err := scanMap(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMap(row rowScanner) (*GameMap, error) {
	m := &GameMap{}
	var visible int
	var tilesJSON, updated string
	err := row.Scan(&m.ID, &m.Name, &m.Description, &m.Size, &m.Mode, &visible, &tilesJSON, &updated)
	if err != nil {
		return nil, err
	}
	m.Visible = visible != 0
	m.UpdatedAt, _ = time.Parse(time.RFC3339, updated)
	if err := json.Unmarshal([]byte(tilesJSON), &m.Tiles); err != nil {
		return nil, err
	}
	return m, nil
}

// MapByID returns a map by ID, nil when absent
func (s *SQLiteStore) MapByID(id string) (*GameMap, error) {
	row := s.conn.QueryRow(
		"SELECT id, name, description, size, mode, visible, tiles, updated_at FROM maps WHERE id = ?",
		id,
	)
	m, err := scanMap(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return m, err
}

// SaveMap inserts or replaces a map. Assigns an ID when the map has none.
func (s *SQLiteStore) SaveMap(m *GameMap) error {
	if m.ID == "" {
		m.ID = GenerateID(8)
	}
	m.UpdatedAt = time.Now().UTC()
	tilesJSON, err := json.Marshal(m.Tiles)
	if err != nil {
		return err
	}
	visible := 0
	if m.Visible {
		visible = 1
	}
	_, err = s.conn.Exec(`
		INSERT INTO maps (id, name, description, size, mode, visible, tiles, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			size = excluded.size,
			mode = excluded.mode,
			visible = excluded.visible,
			tiles = excluded.tiles,
			updated_at = excluded.updated_at`,
		m.ID, m.Name, m.Description, m.Size, m.Mode, visible, string(tilesJSON), m.UpdatedAt.Format(time.RFC3339),
	)
	return err
}

// SetMapVisibility toggles whether a map is offered for new games
func (s *SQLiteStore) SetMapVisibility(id string, visible bool) error {
	v := 0
	if visible {
		v = 1
	}
	_, err := s.conn.Exec("UPDATE maps SET visible = ?, updated_at = ? WHERE id = ?",
		v, time.Now().UTC().Format(time.RFC3339), id)
	return err
}

// DeleteMap removes a map
func (s *SQLiteStore) DeleteMap(id string) error {
	_, err := s.conn.Exec("DELETE FROM maps WHERE id = ?", id)
	return err
}

// GetSetting returns a settings value, "" when absent
func (s *SQLiteStore) GetSetting(key string) (string, error) {
	var value string
	err := s.conn.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// SetSetting upserts a settings value
func (s *SQLiteStore) SetSetting(key, value string) error {
	_, err := s.conn.Exec(`
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return err
}

// RecordMatch writes a finished game and its per-player lines
func (s *SQLiteStore) RecordMatch(rec MatchRecord) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		"INSERT INTO matches (code, mode, duration_sec, turns, winners) VALUES (?, ?, ?, ?, ?)",
		rec.Code, rec.Mode, rec.DurationSec, rec.Turns, rec.Winners,
	)
	if err != nil {
		return err
	}
	matchID, err := res.LastInsertId()
	if err != nil {
		return err
	}
	for _, p := range rec.Players {
		_, err := tx.Exec(`
			INSERT INTO match_players (match_id, name, victories, defeats, evasions, combats, damage_dealt, damage_taken, objects)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			matchID, p.Name, p.Victories, p.Defeats, p.Evasions, p.Combats, p.DamageDealt, p.DamageTaken, p.Objects,
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// RecentMatches returns the latest finished games, newest first
func (s *SQLiteStore) RecentMatches(limit int) ([]MatchRecord, error) {
	rows, err := s.conn.Query(`
		SELECT id, code, mode, duration_sec, turns, winners, created_at
		FROM matches ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []MatchRecord
	for rows.Next() {
		var r MatchRecord
		if err := rows.Scan(&r.ID, &r.Code, &r.Mode, &r.DurationSec, &r.Turns, &r.Winners, &r.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// WriteEvents persists a journal batch in one transaction
func (s *SQLiteStore) WriteEvents(events []GameEvent) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := s.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare("INSERT INTO game_events (event_type, code, data, created_at) VALUES (?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, evt := range events {
		if _, err := stmt.Exec(evt.Type, evt.Code, evt.Data, evt.Timestamp.Format(time.RFC3339)); err != nil {
			return err
		}
	}
	return tx.Commit()
}
