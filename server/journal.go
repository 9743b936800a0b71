package main

import (
	"log"
	"sync"
	"time"
)

// Journaled event types
const (
	EvtRoomCreate = "room_create"
	EvtPlayerJoin = "player_join"
	EvtGameStart  = "game_start"
	EvtGameOver   = "game_over"
	EvtCombatEnd  = "combat_end"
	EvtDoorToggle = "door_toggle"
	EvtDisconnect = "disconnect"
)

// Journal records game events with batched background writes. Tracking is
// non-blocking: a full queue drops the event rather than stalling a room.
type Journal struct {
	store  Store
	events chan GameEvent
	stop   chan struct{}
	wg     sync.WaitGroup
}

// NewJournal creates and starts the journal background writer
func NewJournal(store Store) *Journal {
	j := &Journal{
		store:  store,
		events: make(chan GameEvent, 1024),
		stop:   make(chan struct{}),
	}
	j.wg.Add(1)
	go j.writer()
	return j
}

// Track enqueues an event for async persistence
func (j *Journal) Track(evtType, code, data string) {
	select {
	case j.events <- GameEvent{
		Type:      evtType,
		Code:      code,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}:
	default:
	}
}

// Stop flushes pending events and shuts the writer down
func (j *Journal) Stop() {
	close(j.stop)
	j.wg.Wait()
}

// writer batches events and flushes on size or interval
func (j *Journal) writer() {
	defer j.wg.Done()

	batch := make([]GameEvent, 0, 64)
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case evt := <-j.events:
			batch = append(batch, evt)
			if len(batch) >= 50 {
				j.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				j.flush(batch)
				batch = batch[:0]
			}
		case <-j.stop:
			// Drain without closing: rooms may still be inside Track
			for {
				select {
				case evt := <-j.events:
					batch = append(batch, evt)
				default:
					if len(batch) > 0 {
						j.flush(batch)
					}
					return
				}
			}
		}
	}
}

func (j *Journal) flush(events []GameEvent) {
	if j.store == nil {
		return
	}
	if err := j.store.WriteEvents(events); err != nil {
		log.Printf("journal: flush: %v", err)
	}
}
