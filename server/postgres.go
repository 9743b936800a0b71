package main

import (
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/lib/pq"
)

// PostgresStore backs multi-instance deployments sharing one database.
// It mirrors SQLiteStore behind the Store interface.
type PostgresStore struct {
	conn *sql.DB
}

// OpenPostgres connects to Postgres with the given DSN
func OpenPostgres(dsn string) (*PostgresStore, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, err
	}
	s := &PostgresStore{conn: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.conn.Close()
}

func (s *PostgresStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS maps (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		size INTEGER NOT NULL,
		mode TEXT NOT NULL DEFAULT 'classical',
		visible BOOLEAN NOT NULL DEFAULT TRUE,
		tiles TEXT NOT NULL,
		updated_at TIMESTAMPTZ DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS matches (
		id BIGSERIAL PRIMARY KEY,
		code TEXT NOT NULL,
		mode TEXT NOT NULL,
		duration_sec INTEGER NOT NULL DEFAULT 0,
		turns INTEGER NOT NULL DEFAULT 0,
		winners TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS match_players (
		match_id BIGINT NOT NULL REFERENCES matches(id),
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
		id BIGSERIAL PRIMARY KEY,
		event_type TEXT NOT NULL,
		code TEXT NOT NULL DEFAULT '',
		data TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_match_players_match ON match_players(match_id);
	CREATE INDEX IF NOT EXISTS idx_game_events_type ON game_events(event_type);
	`
	_, err := s.conn.Exec(schema)
	return err
}

// Maps returns stored maps, hidden ones only when includeHidden is set
func (s *PostgresStore) Maps(includeHidden bool) ([]*GameMap, error) {
	query := "SELECT id, name, description, size, mode, visible, tiles, updated_at FROM maps"
	if !includeHidden {
		query += " WHERE visible"
	}
	query += " ORDER BY name"
	rows, err := s.conn.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*GameMap
	for rows.Next() {
		m, err := scanPGMap(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

func scanPGMap(row rowScanner) (*GameMap, error) {
	m := &GameMap{}
	var tilesJSON string
	err := row.Scan(&m.ID, &m.Name, &m.Description, &m.Size, &m.Mode, &m.Visible, &tilesJSON, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tilesJSON), &m.Tiles); err != nil {
		return nil, err
	}
	return m, nil
}

// MapByID returns a map by ID, nil when absent
func (s *PostgresStore) MapByID(id string) (*GameMap, error) {
	row := s.conn.QueryRow(
		"SELECT id, name, description, size, mode, visible, tiles, updated_at FROM maps WHERE id = $1",
		id,
	)
	m, err := scanPGMap(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return m, err
}

// SaveMap inserts or replaces a map
func (s *PostgresStore) SaveMap(m *GameMap) error {
	if m.ID == "" {
		m.ID = GenerateID(8)
	}
	m.UpdatedAt = time.Now().UTC()
	tilesJSON, err := json.Marshal(m.Tiles)
	if err != nil {
		return err
	}
	_, err = s.conn.Exec(`
		INSERT INTO maps (id, name, description, size, mode, visible, tiles, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			size = EXCLUDED.size,
			mode = EXCLUDED.mode,
			visible = EXCLUDED.visible,
			tiles = EXCLUDED.tiles,
			updated_at = EXCLUDED.updated_at`,
		m.ID, m.Name, m.Description, m.Size, m.Mode, m.Visible, string(tilesJSON), m.UpdatedAt,
	)
	return err
}

// SetMapVisibility toggles whether a map is offered for new games
func (s *PostgresStore) SetMapVisibility(id string, visible bool) error {
	_, err := s.conn.Exec("UPDATE maps SET visible = $1, updated_at = $2 WHERE id = $3",
		visible, time.Now().UTC(), id)
	return err
}

// DeleteMap removes a map
func (s *PostgresStore) DeleteMap(id string) error {
	_, err := s.conn.Exec("DELETE FROM maps WHERE id = $1", id)
	return err
}

// GetSetting returns a settings value, "" when absent
func (s *PostgresStore) GetSetting(key string) (string, error) {
	var value string
	err := s.conn.QueryRow("SELECT value FROM settings WHERE key = $1", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// SetSetting upserts a settings value
func (s *PostgresStore) SetSetting(key, value string) error {
	_, err := s.conn.Exec(`
		INSERT INTO settings (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
		key, value,
	)
	return err
}

// RecordMatch writes a finished game and its per-player lines
func (s *PostgresStore) RecordMatch(rec MatchRecord) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var matchID int64
	err = tx.QueryRow(
		"INSERT INTO matches (code, mode, duration_sec, turns, winners) VALUES ($1, $2, $3, $4, $5) RETURNING id",
		rec.Code, rec.Mode, rec.DurationSec, rec.Turns, rec.Winners,
	).Scan(&matchID)
	if err != nil {
		return err
	}
	for _, p := range rec.Players {
		_, err := tx.Exec(`
			INSERT INTO match_players (match_id, name, victories, defeats, evasions, combats, damage_dealt, damage_taken, objects)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			matchID, p.Name, p.Victories, p.Defeats, p.Evasions, p.Combats, p.DamageDealt, p.DamageTaken, p.Objects,
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// RecentMatches returns the latest finished games, newest first
func (s *PostgresStore) RecentMatches(limit int) ([]MatchRecord, error) {
	rows, err := s.conn.Query(`
		SELECT id, code, mode, duration_sec, turns, winners, created_at
		FROM matches ORDER BY created_at DESC LIMIT $1`, limit)
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
func (s *PostgresStore) WriteEvents(events []GameEvent) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := s.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare("INSERT INTO game_events (event_type, code, data, created_at) VALUES ($1, $2, $3, $4)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, evt := range events {
		if _, err := stmt.Exec(evt.Type, evt.Code, evt.Data, evt.Timestamp); err != nil {
			return err
		}
	}
	return tx.Commit()
}
