package main

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
)

// fakeClient records everything a room sends to it
type fakeClient struct {
	mu       sync.Mutex
	pid      string
	sent     []Envelope
	bins     [][]byte
	detached bool
}

func (f *fakeClient) SendJSON(msg interface{}) {
	f.mu.Lock()
	f.sent = append(f.sent, msg.(Envelope))
	f.mu.Unlock()
}

func (f *fakeClient) SendBinary(data []byte) {
	f.mu.Lock()
	f.bins = append(f.bins, data)
	f.mu.Unlock()
}

func (f *fakeClient) PlayerID() string { return f.pid }

func (f *fakeClient) Detach() {
	f.mu.Lock()
	f.detached = true
	f.mu.Unlock()
}

func (f *fakeClient) isDetached() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.detached
}

func (f *fakeClient) received(msgType string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.sent {
		if e.T == msgType {
			n++
		}
	}
	return n
}

func (f *fakeClient) lastRedirect() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.sent) - 1; i >= 0; i-- {
		if f.sent[i].T == MsgRedirect {
			return f.sent[i].Data.(RedirectMsg).Route
		}
	}
	return ""
}

func testRegistry() *RoomRegistry {
	return NewRoomRegistry(nil, nil, func(gb GameBase) ([]byte, error) {
		return json.Marshal(gb)
	})
}

// join adds a human client and wires the fake's player ID
func join(t *testing.T, room *Room, c *fakeClient, name string) *Player {
	t.Helper()
	p, err := room.AddPlayer(c, name, "a1", true, true)
	if err != nil {
		t.Fatalf("AddPlayer %s: %v", name, err)
	}
	c.pid = p.ID
	return p
}

func TestRegistryCreateAndGet(t *testing.T) {
	reg := testRegistry()
	room := reg.CreateRoom(basicMap(10, "classical"))
	if room == nil {
		t.Fatal("CreateRoom returned nil")
	}
	if len(room.Code) != 4 {
		t.Errorf("expected 4-digit code, got %q", room.Code)
	}
	if reg.Get(room.Code) != room {
		t.Error("Get should return the created room")
	}
	if reg.Count() != 1 {
		t.Errorf("expected 1 room, got %d", reg.Count())
	}
	reg.Remove(room.Code)
	if reg.Get(room.Code) != nil {
		t.Error("removed room should be gone")
	}
}

func TestRoomFirstJoinerIsAdmin(t *testing.T) {
	reg := testRegistry()
	room := reg.CreateRoom(basicMap(10, "classical"))
	c1, c2 := &fakeClient{}, &fakeClient{}
	p1 := join(t, room, c1, "Ug")
	p2 := join(t, room, c2, "Ug")

	if !p1.Flags.Has(FlagAdmin) {
		t.Error("first joiner should be admin")
	}
	if p2.Flags.Has(FlagAdmin) {
		t.Error("second joiner should not be admin")
	}
	if p2.Name != "Ug-2" {
		t.Errorf("duplicate name should be suffixed, got %q", p2.Name)
	}
	if c1.received(MsgRoster) < 2 {
		t.Error("each join should broadcast the roster")
	}
}

func TestRoomCapacityEnforced(t *testing.T) {
	reg := testRegistry()
	room := reg.CreateRoom(basicMap(10, "classical")) // capacity 2
	join(t, room, &fakeClient{}, "A")
	join(t, room, &fakeClient{}, "B")

	if _, err := room.AddPlayer(&fakeClient{}, "C", "", true, true); err == nil {
		t.Error("third player should be rejected on a size-10 map")
	}
}

func TestRoomLockBlocksJoin(t *testing.T) {
	reg := testRegistry()
	room := reg.CreateRoom(basicMap(15, "classical"))
	admin := join(t, room, &fakeClient{}, "A")
	other := join(t, room, &fakeClient{}, "B")

	if _, err := room.ToggleLock(other.ID); err == nil {
		t.Error("non-admin lock toggle should be rejected")
	}
	locked, err := room.ToggleLock(admin.ID)
	if err != nil || !locked {
		t.Fatalf("ToggleLock: locked %v err %v", locked, err)
	}
	if _, err := room.AddPlayer(&fakeClient{}, "C", "", true, true); err == nil {
		t.Error("joining a locked room should be rejected")
	}
	if locked, _ := room.ToggleLock(admin.ID); locked {
		t.Error("second toggle should unlock")
	}
}

func TestRoomKick(t *testing.T) {
	reg := testRegistry()
	room := reg.CreateRoom(basicMap(15, "classical"))
	c1, c2 := &fakeClient{}, &fakeClient{}
	admin := join(t, room, c1, "A")
	other := join(t, room, c2, "B")

	if err := room.Kick(other.ID, admin.ID); err == nil {
		t.Error("non-admin kick should be rejected")
	}
	if err := room.Kick(admin.ID, admin.ID); err == nil {
		t.Error("kicking the admin should be rejected")
	}
	if err := room.Kick(admin.ID, other.ID); err != nil {
		t.Fatalf("Kick: %v", err)
	}
	if got := c2.lastRedirect(); got != RouteHome {
		t.Errorf("kicked client should go home, got %q", got)
	}
	if !c2.isDetached() {
		t.Error("kicked client should be detached so it can join elsewhere")
	}
	roster := room.Roster()
	if len(roster.Players) != 1 {
		t.Errorf("expected 1 player after kick, got %d", len(roster.Players))
	}
}

func TestRoomAddVirtual(t *testing.T) {
	reg := testRegistry()
	room := reg.CreateRoom(basicMap(15, "classical"))
	admin := join(t, room, &fakeClient{}, "A")

	if _, err := room.AddVirtual("nobody", "aggressive"); err == nil {
		t.Error("non-admin add should be rejected")
	}
	bot, err := room.AddVirtual(admin.ID, "defensive")
	if err != nil {
		t.Fatalf("AddVirtual: %v", err)
	}
	if !bot.Flags.Has(FlagVirtualDefensive) {
		t.Error("expected defensive profile flag")
	}
	bot2, err := room.AddVirtual(admin.ID, "aggressive")
	if err != nil {
		t.Fatalf("AddVirtual: %v", err)
	}
	if !bot2.Flags.Has(FlagVirtualAggressive) {
		t.Error("expected aggressive profile flag")
	}
	if bot.Name == bot2.Name {
		t.Error("bot names should differ")
	}
}

func TestRoomStartRequirements(t *testing.T) {
	reg := testRegistry()
	room := reg.CreateRoom(basicMap(15, "classical"))
	admin := join(t, room, &fakeClient{}, "A")

	if err := room.Start("nobody"); err == nil {
		t.Error("non-admin start should be rejected")
	}
	if err := room.Start(admin.ID); err == nil {
		t.Error("starting with one player should be rejected")
	}
}

func TestRoomStartCTFNeedsEvenCount(t *testing.T) {
	reg := testRegistry()
	room := reg.CreateRoom(basicMap(15, "ctf"))
	admin := join(t, room, &fakeClient{}, "A")
	join(t, room, &fakeClient{}, "B")
	if _, err := room.AddVirtual(admin.ID, "aggressive"); err != nil {
		t.Fatalf("AddVirtual: %v", err)
	}
	if err := room.Start(admin.ID); err == nil {
		t.Error("odd player count should be rejected in ctf")
	}
}

func TestRoomStartBroadcasts(t *testing.T) {
	reg := testRegistry()
	room := reg.CreateRoom(basicMap(10, "classical"))
	c1, c2 := &fakeClient{}, &fakeClient{}
	admin := join(t, room, c1, "A")
	join(t, room, c2, "B")

	if err := room.Start(admin.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if room.Game() == nil {
		t.Fatal("game should exist after start")
	}
	for _, c := range []*fakeClient{c1, c2} {
		if got := c.lastRedirect(); got != RouteGame {
			t.Errorf("client should be sent to the game, got %q", got)
		}
		c.mu.Lock()
		frames := len(c.bins)
		c.mu.Unlock()
		if frames == 0 {
			t.Error("client should receive a binary snapshot")
		}
	}
	if err := room.Start(admin.ID); err == nil {
		t.Error("double start should be rejected")
	}
	room.Close("")
}

func TestRoomDispatchIsolatesFailures(t *testing.T) {
	reg := testRegistry()
	room := reg.CreateRoom(basicMap(10, "classical"))
	c := &fakeClient{}
	join(t, room, c, "A")

	room.Dispatch(c, func() error { return illegalf("not your turn") })
	if c.received(MsgNotify) != 1 || c.received(MsgRedirect) != 0 {
		t.Error("illegal action should notify without redirecting")
	}

	room.Dispatch(c, func() error { return errors.New("db exploded") })
	if c.lastRedirect() != RouteHome {
		t.Error("internal error should redirect home")
	}

	before := c.received(MsgNotify)
	room.Dispatch(c, func() error { panic("boom") })
	if c.received(MsgNotify) != before+1 || c.lastRedirect() != RouteHome {
		t.Error("panic should notify and redirect home")
	}
}

func TestRoomLeaveWaiting(t *testing.T) {
	reg := testRegistry()
	room := reg.CreateRoom(basicMap(15, "classical"))
	c1, c2 := &fakeClient{}, &fakeClient{}
	join(t, room, c1, "A")
	join(t, room, c2, "B")

	room.Leave(c2)
	if got := len(room.Roster().Players); got != 1 {
		t.Errorf("expected 1 player after leave, got %d", got)
	}
	if reg.Get(room.Code) == nil {
		t.Error("room should survive a non-admin leave")
	}
}

func TestRoomAdminLeaveDissolvesWaitingRoom(t *testing.T) {
	reg := testRegistry()
	room := reg.CreateRoom(basicMap(15, "classical"))
	c1, c2 := &fakeClient{}, &fakeClient{}
	join(t, room, c1, "A")
	join(t, room, c2, "B")

	room.Leave(c1)
	if reg.Get(room.Code) != nil {
		t.Error("admin leave should remove the room")
	}
	if c2.lastRedirect() != RouteHome {
		t.Error("remaining player should be sent home")
	}
	if !c2.isDetached() {
		t.Error("survivor of a dissolved room should be detached")
	}
}

func TestRoomCloseIdempotent(t *testing.T) {
	reg := testRegistry()
	room := reg.CreateRoom(basicMap(10, "classical"))
	c := &fakeClient{}
	join(t, room, c, "A")

	room.Close("shutting down")
	room.Close("shutting down")
	if c.received(MsgRedirect) != 1 {
		t.Errorf("close should redirect once, got %d", c.received(MsgRedirect))
	}
	if reg.Count() != 0 {
		t.Errorf("expected empty registry, got %d", reg.Count())
	}
}
