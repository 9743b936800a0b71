package main

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
)

const (
	maxRooms     = 100
	RouteHome    = "/home"
	RouteGame    = "/game"
	RouteStats   = "/stats"
	RouteWaiting = "/waiting"
)

// SubRoom partitions a room's connected channels
type SubRoom int

const (
	SubWaiting SubRoom = 0
	SubGame    SubRoom = 1
	SubStats   SubRoom = 2
)

// RoomClient is the transport side of a connected participant. Detach is
// called on server-initiated removals (kick, room close) so the connection
// drops its room binding and can create or join another room.
type RoomClient interface {
	SendJSON(msg interface{})
	SendBinary(data []byte)
	PlayerID() string
	Detach()
}

// StateEncoder turns a snapshot into the binary frame pushed to game rooms
type StateEncoder func(GameBase) ([]byte, error)

var virtualNames = []string{
	"Grok", "Oona", "Thag", "Zuba", "Krag", "Mila", "Dorn", "Ayla",
}

// Room groups the participants sharing one game code. It owns the Game and
// its Scheduler, and is the sole writer of the membership sets.
type Room struct {
	mu       sync.Mutex
	Code     string
	mapModel *GameMap

	members map[RoomClient]SubRoom
	players []*Player // join order
	adminID string
	locked  bool
	started bool
	closed  bool

	game  *Game
	sched *Scheduler

	encode   StateEncoder
	store    Store
	journal  *Journal
	teardown func(code string)
	seed     func() int64
}

// RoomRegistry maps game codes to rooms. Created at process start and
// passed to every handler; there is no global.
type RoomRegistry struct {
	mu      sync.RWMutex
	rooms   map[string]*Room
	store   Store
	journal *Journal
	encode  StateEncoder
	seed    func() int64
}

// NewRoomRegistry creates an empty registry
func NewRoomRegistry(store Store, journal *Journal, encode StateEncoder) *RoomRegistry {
	return &RoomRegistry{
		rooms:   make(map[string]*Room),
		store:   store,
		journal: journal,
		encode:  encode,
		seed:    func() int64 { return time.Now().UnixNano() },
	}
}

// CreateRoom opens a waiting room for the given map. Returns nil when the
// room limit is reached.
func (r *RoomRegistry) CreateRoom(m *GameMap) *Room {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.rooms) >= maxRooms {
		return nil
	}
	code := GenerateGameCode()
	for r.rooms[code] != nil {
		code = GenerateGameCode()
	}
	room := &Room{
		Code:     code,
		mapModel: m,
		members:  make(map[RoomClient]SubRoom),
		encode:   r.encode,
		store:    r.store,
		journal:  r.journal,
		teardown: r.Remove,
		seed:     r.seed,
	}
	r.rooms[code] = room
	return room
}

// Get returns the room with the given code, or nil
func (r *RoomRegistry) Get(code string) *Room {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rooms[code]
}

// Remove drops a room from the registry
func (r *RoomRegistry) Remove(code string) {
	r.mu.Lock()
	delete(r.rooms, code)
	r.mu.Unlock()
}

// Count returns the number of live rooms
func (r *RoomRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// Dispatch wraps an inbound action so a failure only affects its sender:
// illegal actions surface as a notify, anything unexpected notifies and
// redirects the offending client home, and the room state stays intact.
func (room *Room) Dispatch(c RoomClient, action func() error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("room %s: handler panic: %v", room.Code, r)
			c.SendJSON(Envelope{T: MsgNotify, Data: NotifyMsg{Message: "something went wrong", IsError: true}})
			c.SendJSON(Envelope{T: MsgRedirect, Data: RedirectMsg{Route: RouteHome}})
		}
	}()
	err := action()
	if err == nil {
		return
	}
	var actionErr ActionError
	if ok := asActionError(err, &actionErr); ok {
		c.SendJSON(Envelope{T: MsgNotify, Data: NotifyMsg{Message: actionErr.Error()}})
		return
	}
	log.Printf("room %s: internal error: %v", room.Code, err)
	c.SendJSON(Envelope{T: MsgNotify, Data: NotifyMsg{Message: "server error", IsError: true}})
	c.SendJSON(Envelope{T: MsgRedirect, Data: RedirectMsg{Route: RouteHome}})
}

func asActionError(err error, target *ActionError) bool {
	ae, ok := err.(ActionError)
	if ok {
		*target = ae
	}
	return ok
}

// --- membership ---

// AddPlayer joins a human participant to the waiting room. The first
// player to join administers the room.
func (room *Room) AddPlayer(c RoomClient, name, avatar string, attackD6, bonusOnHealth bool) (*Player, error) {
	room.mu.Lock()
	defer room.mu.Unlock()
	if room.closed || room.started {
		return nil, illegalf("game already started")
	}
	if room.locked {
		return nil, illegalf("room is locked")
	}
	capacity := CapacityForSize(room.mapModel.Size)
	if len(room.players) >= capacity {
		return nil, illegalf("room is full")
	}
	p := NewPlayer(GenerateID(4), room.uniqueName(name), avatar, attackD6, bonusOnHealth)
	if len(room.players) == 0 {
		p.Flags.Set(FlagAdmin)
		room.adminID = p.ID
	}
	room.players = append(room.players, p)
	room.members[c] = SubWaiting
	room.broadcastRosterLocked()
	return p, nil
}

// AddVirtual adds a bot to the waiting room; admin only
func (room *Room) AddVirtual(pid, profile string) (*Player, error) {
	room.mu.Lock()
	defer room.mu.Unlock()
	if err := room.requireAdmin(pid); err != nil {
		return nil, err
	}
	if room.started {
		return nil, illegalf("game already started")
	}
	capacity := CapacityForSize(room.mapModel.Size)
	if len(room.players) >= capacity {
		return nil, illegalf("room is full")
	}
	name := virtualNames[len(room.players)%len(virtualNames)]
	bot := NewPlayer(GenerateID(4), room.uniqueName(name), "bot", len(room.players)%2 == 0, len(room.players)%2 == 1)
	switch profile {
	case "defensive":
		bot.Flags.Set(FlagVirtualDefensive)
	default:
		bot.Flags.Set(FlagVirtualAggressive)
	}
	room.players = append(room.players, bot)
	room.broadcastRosterLocked()
	return bot, nil
}

// Kick removes a waiting-room player; admin only
func (room *Room) Kick(pid, targetID string) error {
	room.mu.Lock()
	if err := room.requireAdmin(pid); err != nil {
		room.mu.Unlock()
		return err
	}
	if room.started {
		room.mu.Unlock()
		return illegalf("game already started")
	}
	if targetID == room.adminID {
		room.mu.Unlock()
		return illegalf("cannot kick the room admin")
	}
	var kicked RoomClient
	for i, p := range room.players {
		if p.ID == targetID {
			room.players = append(room.players[:i], room.players[i+1:]...)
			kicked = room.clientForLocked(targetID)
			break
		}
	}
	if kicked != nil {
		delete(room.members, kicked)
	}
	room.broadcastRosterLocked()
	room.mu.Unlock()

	if kicked != nil {
		kicked.Detach()
		kicked.SendJSON(Envelope{T: MsgNotify, Data: NotifyMsg{Message: "you were removed from the room"}})
		kicked.SendJSON(Envelope{T: MsgRedirect, Data: RedirectMsg{Route: RouteHome}})
	}
	return nil
}

// ToggleLock flips the join lock; admin only
func (room *Room) ToggleLock(pid string) (bool, error) {
	room.mu.Lock()
	defer room.mu.Unlock()
	if err := room.requireAdmin(pid); err != nil {
		return false, err
	}
	room.locked = !room.locked
	room.broadcastRosterLocked()
	return room.locked, nil
}

func (room *Room) requireAdmin(pid string) error {
	if pid != room.adminID {
		return illegalf("admin only")
	}
	return nil
}

// uniqueName suffixes duplicate names so every roster entry is distinct
func (room *Room) uniqueName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Caveman"
	}
	taken := func(n string) bool {
		for _, p := range room.players {
			if p.Name == n {
				return true
			}
		}
		return false
	}
	candidate := name
	for i := 2; taken(candidate); i++ {
		candidate = fmt.Sprintf("%s-%d", name, i)
	}
	return candidate
}

// Leave handles a participant disconnecting or quitting
func (room *Room) Leave(c RoomClient) {
	room.mu.Lock()
	if room.closed {
		room.mu.Unlock()
		return
	}
	pid := c.PlayerID()
	delete(room.members, c)

	if !room.started {
		for i, p := range room.players {
			if p.ID == pid {
				room.players = append(room.players[:i], room.players[i+1:]...)
				break
			}
		}
		// Admin leaving dissolves the waiting room
		if pid == room.adminID {
			room.mu.Unlock()
			room.Close("the room was closed by its admin")
			return
		}
		room.broadcastRosterLocked()
		room.mu.Unlock()
		return
	}
	room.mu.Unlock()

	ev, end := room.game.Disconnect(pid)
	if end != nil {
		room.BroadcastToGame(Envelope{T: MsgCombatEnd, Data: end})
	}
	room.broadcastSnapshot()
	room.applyEvent(ev)

	if room.game.ConnectedHumans() == 0 {
		room.Close("")
	}
}

// Close tears the room down: timers cancelled, members redirected home,
// registry entry removed
func (room *Room) Close(notice string) {
	room.mu.Lock()
	if room.closed {
		room.mu.Unlock()
		return
	}
	room.closed = true
	clients := room.clientsLocked(nil)
	room.mu.Unlock()

	if room.sched != nil {
		room.sched.Stop()
	}
	for _, c := range clients {
		c.Detach()
		if notice != "" {
			c.SendJSON(Envelope{T: MsgNotify, Data: NotifyMsg{Message: notice}})
		}
		c.SendJSON(Envelope{T: MsgRedirect, Data: RedirectMsg{Route: RouteHome}})
	}
	room.teardown(room.Code)
}

// --- game lifecycle ---

// Start transitions the waiting room into a running game; admin only
func (room *Room) Start(pid string) error {
	room.mu.Lock()
	if err := room.requireAdmin(pid); err != nil {
		room.mu.Unlock()
		return err
	}
	if room.started {
		room.mu.Unlock()
		return illegalf("game already started")
	}
	if len(room.players) < 2 {
		room.mu.Unlock()
		return illegalf("at least 2 players required")
	}
	mode := ParseGameMode(room.mapModel.Mode)
	if mode == ModeCTF && len(room.players)%2 != 0 {
		room.mu.Unlock()
		return illegalf("capture the flag needs an even player count")
	}

	cfg := DefaultConfig(mode)
	game, err := NewGame(room.Code, room.mapModel, room.players, cfg, room.seed())
	if err != nil {
		room.mu.Unlock()
		return err
	}
	room.game = game
	room.sched = NewScheduler(cfg, room)
	room.started = true
	room.locked = true
	for c := range room.members {
		room.members[c] = SubGame
	}
	room.mu.Unlock()

	if room.journal != nil {
		room.journal.Track(EvtGameStart, room.Code, mode.String())
	}
	for _, c := range room.clients(nil) {
		c.SendJSON(Envelope{T: MsgRedirect, Data: RedirectMsg{Route: RouteGame}})
	}
	room.broadcastSnapshot()
	room.applyEvent(game.Start())
	return nil
}

// Game returns the room's game, nil before start
func (room *Room) Game() *Game {
	room.mu.Lock()
	defer room.mu.Unlock()
	return room.game
}

// --- action handlers ---

// HandleMove executes a move for the sending player
func (room *Room) HandleMove(pid string, dest Position) error {
	result, ev, err := room.game.MovePlayer(pid, dest)
	if err != nil {
		return err
	}
	if result.SelectionPending {
		p := room.game.PlayerByID(pid)
		if c := room.clientFor(pid); c != nil && p != nil {
			c.SendJSON(Envelope{T: MsgSelect, Data: SelectPromptMsg{Held: p.Inventory, Picked: p.pending}})
		}
	}
	room.afterMutation(ev)
	return nil
}

// HandleDoor toggles a door for the sending player
func (room *Room) HandleDoor(pid string, pos Position) error {
	if _, err := room.game.InteractDoor(pid, pos); err != nil {
		return err
	}
	if room.journal != nil {
		room.journal.Track(EvtDoorToggle, room.Code, pid)
	}
	room.afterMutation(nil)
	return nil
}

// HandleCombat starts a combat session for the sending player
func (room *Room) HandleCombat(pid string, pos Position) error {
	msg, ev, err := room.game.InitiateCombat(pid, pos)
	if err != nil {
		return err
	}
	room.BroadcastToGame(Envelope{T: MsgCombatStart, Data: msg})
	room.afterMutation(ev)
	return nil
}

// HandleAttack resolves a combat attack from the sending player
func (room *Room) HandleAttack(pid string) error {
	res, end, ev, err := room.game.Attack(pid)
	if err != nil {
		return err
	}
	room.finishCombatStep(Envelope{T: MsgAttackRes, Data: res}, end, ev)
	return nil
}

// HandleEvade resolves an escape attempt from the sending player
func (room *Room) HandleEvade(pid string) error {
	res, end, ev, err := room.game.Evade(pid)
	if err != nil {
		return err
	}
	room.finishCombatStep(Envelope{T: MsgEvadeRes, Data: res}, end, ev)
	return nil
}

func (room *Room) finishCombatStep(result Envelope, end *CombatEndMsg, ev *PhaseEvent) {
	room.BroadcastToGame(result)
	if end != nil {
		room.BroadcastToGame(Envelope{T: MsgCombatEnd, Data: end})
		if room.journal != nil {
			room.journal.Track(EvtCombatEnd, room.Code, end.WinnerID)
		}
	}
	room.afterMutation(ev)
}

// HandleEndTurn passes the turn for the sending player
func (room *Room) HandleEndTurn(pid string) error {
	ev, err := room.game.EndTurn(pid, false)
	if err != nil {
		return err
	}
	room.afterMutation(ev)
	return nil
}

// HandleToggleDebug flips debug mode for the room admin
func (room *Room) HandleToggleDebug(pid string) error {
	on, err := room.game.ToggleDebug(pid)
	if err != nil {
		return err
	}
	msg := "debug mode off"
	if on {
		msg = "debug mode on"
	}
	room.BroadcastToGame(Envelope{T: MsgNotify, Data: NotifyMsg{Message: msg}})
	room.afterMutation(nil)
	return nil
}

// HandleSelectObject resolves a pending pickup for the sending player
func (room *Room) HandleSelectObject(pid, drop string) error {
	if err := room.game.SelectObject(pid, drop); err != nil {
		return err
	}
	room.afterMutation(nil)
	return nil
}

// afterMutation pushes the authoritative state and lets the scheduler react
// to any phase change
func (room *Room) afterMutation(ev *PhaseEvent) {
	room.broadcastSnapshot()
	room.pushAccessible()
	room.applyEvent(ev)
}

// applyEvent forwards a phase change to the scheduler, handling game over
// itself
func (room *Room) applyEvent(ev *PhaseEvent) {
	if ev == nil {
		return
	}
	if ev.Phase == PhaseOver {
		room.onGameOver(ev)
		return
	}
	room.sched.Apply(ev)
}

// onGameOver records the match and moves everyone to the stats room
func (room *Room) onGameOver(ev *PhaseEvent) {
	room.sched.Stop()

	snapshot := room.game.Snapshot()
	room.BroadcastToGame(Envelope{T: MsgGameOver, Data: GameOverMsg{
		WinnerIDs: ev.Winners,
		Stats:     snapshot.Stats,
		Players:   snapshot.Players,
	}})

	room.mu.Lock()
	for c := range room.members {
		room.members[c] = SubStats
	}
	room.mu.Unlock()
	room.BroadcastToStats(Envelope{T: MsgRedirect, Data: RedirectMsg{Route: RouteStats}})

	if room.store != nil {
		rec := MatchRecord{
			Code:        room.Code,
			Mode:        snapshot.Mode,
			DurationSec: int(snapshot.Stats.DurationSec),
			Turns:       snapshot.Stats.Turns,
			Winners:     strings.Join(ev.Winners, ","),
		}
		for _, ps := range snapshot.Players {
			rec.Players = append(rec.Players, MatchPlayerRecord{
				Name:        ps.Name,
				Victories:   ps.Stats.Victories,
				Defeats:     ps.Stats.Defeats,
				Evasions:    ps.Stats.Evasions,
				Combats:     ps.Stats.Combats,
				DamageDealt: ps.Stats.DamageDealt,
				DamageTaken: ps.Stats.DamageTaken,
				Objects:     ps.Stats.ObjectsPicked,
			})
		}
		if err := room.store.RecordMatch(rec); err != nil {
			log.Printf("room %s: record match: %v", room.Code, err)
		}
	}
	if room.journal != nil {
		room.journal.Track(EvtGameOver, room.Code, strings.Join(ev.Winners, ","))
	}
}

// --- scheduler hooks ---

func (room *Room) OnTick(secondsLeft int) {
	room.BroadcastToGame(Envelope{T: MsgTimerTick, Data: TimerTickMsg{SecondsLeft: secondsLeft}})
}

func (room *Room) OnTransitionDone() {
	if room.roomGone() {
		return
	}
	ev := room.game.BeginTurn()
	if ev.Phase == PhaseActing {
		room.BroadcastToGame(Envelope{T: MsgTurnChange, Data: TurnChangeMsg{
			PlayerID: ev.Actor.ID,
			Turn:     room.game.Snapshot().Turn,
		}})
	}
	room.afterMutation(ev)
}

func (room *Room) OnTurnExpired() {
	if room.roomGone() {
		return
	}
	ev, err := room.game.EndTurn("", true)
	if err != nil {
		return
	}
	room.afterMutation(ev)
}

func (room *Room) OnCombatExpired() {
	if room.roomGone() {
		return
	}
	actorID := room.game.CombatActorID()
	if actorID == "" {
		return
	}
	res, end, ev, err := room.game.Attack(actorID)
	if err != nil {
		return
	}
	room.finishCombatStep(Envelope{T: MsgAttackRes, Data: res}, end, ev)
}

func (room *Room) OnVirtualTurn() {
	if room.roomGone() {
		return
	}
	// A bot turn is a short sequence: chase an objective, maybe start a
	// fight, then pass
	for steps := 0; steps < 4; steps++ {
		if room.game.Over() {
			return
		}
		decision := room.game.VirtualDecision()
		actor := room.game.ActivePlayer()
		switch decision.Action {
		case ActMove:
			if err := room.HandleMove(actor.ID, decision.Target); err != nil {
				break
			}
			continue
		case ActCombat:
			room.HandleCombat(actor.ID, decision.Target)
			return // combat hooks drive the rest
		}
		break
	}
	if room.game.Over() {
		return
	}
	actor := room.game.ActivePlayer()
	if actor.Flags.IsVirtual() {
		room.HandleEndTurn(actor.ID)
	}
}

func (room *Room) OnVirtualCombat() {
	if room.roomGone() {
		return
	}
	actorID := room.game.CombatActorID()
	if actorID == "" {
		return
	}
	if room.game.VirtualCombatChoice() == "evade" {
		room.HandleEvade(actorID)
		return
	}
	room.HandleAttack(actorID)
}

func (room *Room) roomGone() bool {
	room.mu.Lock()
	defer room.mu.Unlock()
	return room.closed || room.game == nil
}

// --- broadcast primitives ---

// clients returns the members of the given sub-rooms (nil = all)
func (room *Room) clients(subs []SubRoom) []RoomClient {
	room.mu.Lock()
	defer room.mu.Unlock()
	return room.clientsLocked(subs)
}

func (room *Room) clientsLocked(subs []SubRoom) []RoomClient {
	var list []RoomClient
	for c, sub := range room.members {
		if subs == nil {
			list = append(list, c)
			continue
		}
		for _, want := range subs {
			if sub == want {
				list = append(list, c)
				break
			}
		}
	}
	return list
}

// BroadcastToGame sends a JSON envelope to every game-room member
func (room *Room) BroadcastToGame(msg Envelope) {
	for _, c := range room.clients([]SubRoom{SubGame}) {
		c.SendJSON(msg)
	}
}

// BroadcastToWaiting sends a JSON envelope to every waiting-room member
func (room *Room) BroadcastToWaiting(msg Envelope) {
	for _, c := range room.clients([]SubRoom{SubWaiting}) {
		c.SendJSON(msg)
	}
}

// BroadcastToStats sends a JSON envelope to every stats-room member
func (room *Room) BroadcastToStats(msg Envelope) {
	for _, c := range room.clients([]SubRoom{SubStats}) {
		c.SendJSON(msg)
	}
}

// BroadcastWhere sends to the sub-room members matching pred
func (room *Room) BroadcastWhere(sub SubRoom, pred func(RoomClient) bool, msg Envelope) {
	for _, c := range room.clients([]SubRoom{sub}) {
		if pred(c) {
			c.SendJSON(msg)
		}
	}
}

// broadcastSnapshot pushes the authoritative state as a binary frame to the
// game room
func (room *Room) broadcastSnapshot() {
	game := room.Game()
	if game == nil {
		return
	}
	data, err := room.encode(game.Snapshot())
	if err != nil {
		log.Printf("room %s: encode snapshot: %v", room.Code, err)
		return
	}
	for _, c := range room.clients([]SubRoom{SubGame}) {
		c.SendBinary(data)
	}
}

// pushAccessible sends the reachable-tile highlight to the active player
// only
func (room *Room) pushAccessible() {
	game := room.Game()
	if game == nil || game.Over() {
		return
	}
	actorID, tiles := game.Accessible()
	room.BroadcastWhere(SubGame, func(c RoomClient) bool {
		return c.PlayerID() == actorID
	}, Envelope{T: MsgAccessible, Data: AccessibleMsg{Tiles: tiles}})
}

// broadcastRosterLocked pushes the waiting-room roster. Caller holds the lock.
func (room *Room) broadcastRosterLocked() {
	msg := room.rosterLocked()
	for c, sub := range room.members {
		if sub == SubWaiting {
			c.SendJSON(Envelope{T: MsgRoster, Data: msg})
		}
	}
}

// Roster returns the current waiting-room view
func (room *Room) Roster() RosterMsg {
	room.mu.Lock()
	defer room.mu.Unlock()
	return room.rosterLocked()
}

func (room *Room) rosterLocked() RosterMsg {
	players := make([]PlayerState, 0, len(room.players))
	for _, p := range room.players {
		players = append(players, p.ToState())
	}
	return RosterMsg{
		Code:     room.Code,
		MapName:  room.mapModel.Name,
		Capacity: CapacityForSize(room.mapModel.Size),
		Locked:   room.locked,
		Players:  players,
	}
}

func (room *Room) clientFor(pid string) RoomClient {
	room.mu.Lock()
	defer room.mu.Unlock()
	return room.clientForLocked(pid)
}

func (room *Room) clientForLocked(pid string) RoomClient {
	for c := range room.members {
		if c.PlayerID() == pid {
			return c
		}
	}
	return nil
}
