package main

import "testing"

func TestJournalFlushesOnStop(t *testing.T) {
	s := openTestStore(t)
	j := NewJournal(s)
	j.Track(EvtRoomCreate, "1234", "m1")
	j.Track(EvtGameStart, "1234", "classical")
	j.Stop()

	var n int
	if err := s.conn.QueryRow("SELECT COUNT(*) FROM game_events").Scan(&n); err != nil {
		t.Fatalf("count events: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 flushed events, got %d", n)
	}
}

func TestJournalTrackAfterStop(t *testing.T) {
	s := openTestStore(t)
	j := NewJournal(s)
	j.Stop()
	// A straggling room must not crash; the event is simply dropped
	j.Track(EvtDisconnect, "1234", "p1")

	var n int
	if err := s.conn.QueryRow("SELECT COUNT(*) FROM game_events").Scan(&n); err != nil {
		t.Fatalf("count events: %v", err)
	}
	if n != 0 {
		t.Errorf("expected no events, got %d", n)
	}
}
