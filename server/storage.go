package main

import "time"

// MatchRecord is a finished game written to storage
type MatchRecord struct {
	ID          int64
	Code        string
	Mode        string
	DurationSec int
	Turns       int
	Winners     string // comma-separated player IDs
	Players     []MatchPlayerRecord
	CreatedAt   time.Time
}

// MatchPlayerRecord is one participant's line in a match record
type MatchPlayerRecord struct {
	Name        string
	Victories   int
	Defeats     int
	Evasions    int
	Combats     int
	DamageDealt int
	DamageTaken int
	Objects     int
}

// GameEvent is one journaled game occurrence
type GameEvent struct {
	Type      string
	Code      string
	Data      string
	Timestamp time.Time
}

// Store is the persistence boundary. The SQLite implementation is the
// default; a Postgres one exists for shared deployments.
type Store interface {
	// Maps
	Maps(includeHidden bool) ([]*GameMap, error)
	MapByID(id string) (*GameMap, error)
	SaveMap(m *GameMap) error
	SetMapVisibility(id string, visible bool) error
	DeleteMap(id string) error

	// Settings (admin credentials, signing secret)
	GetSetting(key string) (string, error)
	SetSetting(key, value string) error

	// Match history
	RecordMatch(rec MatchRecord) error
	RecentMatches(limit int) ([]MatchRecord, error)

	// Event journal (batched writes from Journal)
	WriteEvents(events []GameEvent) error

	Close() error
}
