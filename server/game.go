package main

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// GameFlag is one global transient flag of a running game
type GameFlag uint32

const (
	DataDebugging GameFlag = 1 << iota
	DataTransitioning
	DataTurnEnding
	DataSelectionPending
	DataGameOver
)

// GameFlagSet is the set of global game flags
type GameFlagSet uint32

func (s GameFlagSet) Has(f GameFlag) bool { return uint32(s)&uint32(f) != 0 }
func (s *GameFlagSet) Set(f GameFlag)     { *s = GameFlagSet(uint32(*s) | uint32(f)) }
func (s *GameFlagSet) Clear(f GameFlag)   { *s = GameFlagSet(uint32(*s) &^ uint32(f)) }

// ActionError marks an illegal player action: rejected with no state
// change, surfaced to the caller as a notify event only.
type ActionError string

func (e ActionError) Error() string { return string(e) }

func illegalf(format string, args ...interface{}) error {
	return ActionError(fmt.Sprintf(format, args...))
}

// MoveResult describes an executed move
type MoveResult struct {
	Path             []Position
	PickedUp         string
	SelectionPending bool
}

// Game is the authoritative model of one running match. The owning Room is
// the only caller; all mutation goes through these methods.
type Game struct {
	mu     sync.Mutex
	Code   string
	Config GameConfig

	mapModel *GameMap
	grid     [][]*Tile
	players  []*Player // speed-descending turn order
	active   int
	turn     int
	data     GameFlagSet
	combat   *CombatSession
	dice     *DiceRoller
	resume   bool // next BeginTurn continues the same turn, budget intact

	startedAt    time.Time
	doorsTouched map[Position]bool
	totalDoors   int
	visited      map[Position]bool
	flagCarriers map[string]bool
}

// NewGame builds a game from a validated map and the waiting-room players.
// Turn order is speed-descending; ties keep join order so the ordering is
// reproducible.
func NewGame(code string, m *GameMap, players []*Player, cfg GameConfig, seed int64) (*Game, error) {
	grid, err := BuildGrid(m)
	if err != nil {
		return nil, err
	}
	spawns := SpawnPoints(grid)
	if len(spawns) < len(players) {
		return nil, fmt.Errorf("map %s: %d spawn points for %d players", m.ID, len(spawns), len(players))
	}

	ordered := append([]*Player(nil), players...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Attributes.Speed > ordered[j].Attributes.Speed
	})

	g := &Game{
		Code:         code,
		Config:       cfg,
		mapModel:     m,
		grid:         grid,
		players:      ordered,
		dice:         NewDiceRoller(seed),
		startedAt:    time.Now(),
		doorsTouched: make(map[Position]bool),
		visited:      make(map[Position]bool),
		flagCarriers: make(map[string]bool),
	}

	for i, p := range ordered {
		spawn := spawns[i]
		p.Pos = spawn
		p.SpawnPoint = &Position{X: spawn.X, Y: spawn.Y}
		grid[spawn.Y][spawn.X].Player = p
		p.MarkVisited(spawn)
		g.visited[spawn] = true
	}
	for y := range grid {
		for x := range grid[y] {
			if grid[y][x].Type.IsDoor() {
				g.totalDoors++
			}
		}
	}
	if cfg.Mode == ModeCTF {
		AssignTeams(ordered)
	}
	return g, nil
}

// Start marks the first transition window. The scheduler begins the first
// actionable turn after the delay.
func (g *Game) Start() *PhaseEvent {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.players[g.active].Flags.Set(FlagActive)
	g.data.Set(DataTransitioning)
	g.turn = 1
	return &PhaseEvent{Phase: PhaseTransition, Actor: g.players[g.active]}
}

// BeginTurn makes the pending active player actionable
func (g *Game) BeginTurn() *PhaseEvent {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.data.Has(DataGameOver) {
		return &PhaseEvent{Phase: PhaseOver}
	}
	g.data.Clear(DataTransitioning)
	g.data.Clear(DataTurnEnding)
	actor := g.players[g.active]
	if !g.resume {
		actor.ResetTurn()
	}
	g.resume = false
	return &PhaseEvent{Phase: PhaseActing, Actor: actor}
}

// EndTurn advances the active player to the next eligible one. Called by
// the acting player, or forced by the scheduler on expiry or disconnect.
// Two successive calls advance exactly two steps.
func (g *Game) EndTurn(pid string, forced bool) (*PhaseEvent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.data.Has(DataGameOver) {
		return nil, illegalf("game is over")
	}
	if !forced {
		if err := g.checkActor(pid); err != nil {
			return nil, err
		}
	}
	if g.combat != nil {
		if forced {
			// A turn expiry raced a freshly opened combat; the combat
			// timers own the flow until the session closes.
			return nil, nil
		}
		return nil, illegalf("cannot end turn during combat")
	}
	return g.advanceTurn(forced), nil
}

// advanceTurn moves to the next eligible player. Caller holds the lock.
func (g *Game) advanceTurn(forced bool) *PhaseEvent {
	cur := g.players[g.active]
	cur.Flags.Clear(FlagActive)
	g.resolveStaleSelection(cur)
	g.resume = false

	next := g.nextEligible(g.active)
	if next < 0 {
		return g.finish(nil)
	}
	g.active = next
	g.turn++
	actor := g.players[g.active]
	actor.Flags.Set(FlagActive)
	g.data.Set(DataTransitioning)
	if forced {
		g.data.Set(DataTurnEnding)
	}
	return &PhaseEvent{Phase: PhaseTransition, Actor: actor}
}

// resolveStaleSelection drops an unresolved pickup back onto the actor's
// tile when their turn ends before SelectObject arrives, so the next player
// is not locked out of moving
func (g *Game) resolveStaleSelection(p *Player) {
	if !g.data.Has(DataSelectionPending) {
		return
	}
	if p.pending != "" {
		TileAt(g.grid, p.Pos).Object = p.pending
		p.pending = ""
	}
	g.data.Clear(DataSelectionPending)
}

// nextEligible returns the index of the next player able to act after from,
// or -1 when nobody is left
func (g *Game) nextEligible(from int) int {
	for i := 1; i <= len(g.players); i++ {
		idx := (from + i) % len(g.players)
		if g.players[idx].Eligible() {
			return idx
		}
	}
	return -1
}

func (g *Game) checkActor(pid string) error {
	actor := g.players[g.active]
	if actor.ID != pid {
		return illegalf("not your turn")
	}
	if g.data.Has(DataTransitioning) {
		return illegalf("turn not started yet")
	}
	return nil
}

// Accessible returns the active player's ID and reachable tiles with costs
func (g *Game) Accessible() (string, []AccessibleTile) {
	g.mu.Lock()
	defer g.mu.Unlock()
	actor := g.players[g.active]
	reached := ReachableTiles(g.grid, actor.Pos, actor.MovesLeft, actor)
	tiles := make([]AccessibleTile, 0, len(reached))
	for pos, cost := range reached {
		tiles = append(tiles, AccessibleTile{Pos: pos, Cost: cost})
	}
	sort.Slice(tiles, func(i, j int) bool {
		if tiles[i].Pos.Y != tiles[j].Pos.Y {
			return tiles[i].Pos.Y < tiles[j].Pos.Y
		}
		return tiles[i].Pos.X < tiles[j].Pos.X
	})
	return actor.ID, tiles
}

// MovePlayer moves the active player to dest along the cheapest path,
// deducting its cost. Debug mode and a bird holder without the flag bypass
// the reachability check entirely.
func (g *Game) MovePlayer(pid string, dest Position) (*MoveResult, *PhaseEvent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.data.Has(DataGameOver) {
		return nil, nil, illegalf("game is over")
	}
	if err := g.checkActor(pid); err != nil {
		return nil, nil, err
	}
	if g.combat != nil {
		return nil, nil, illegalf("cannot move during combat")
	}
	if g.data.Has(DataSelectionPending) {
		return nil, nil, illegalf("resolve your pickup first")
	}
	actor := g.players[g.active]
	target := TileAt(g.grid, dest)
	if target == nil {
		return nil, nil, illegalf("tile out of bounds")
	}

	if g.data.Has(DataDebugging) || actor.FreeMovement() {
		if _, walkable := target.Type.Cost(); !walkable || (target.Player != nil && target.Player != actor) {
			return nil, nil, illegalf("tile not free")
		}
		g.relocate(actor, dest)
		result := &MoveResult{Path: []Position{dest}}
		g.afterStep(actor, dest, result)
		return result, g.postMoveEvent(actor), nil
	}

	if actor.MovesLeft <= 0 {
		return nil, nil, illegalf("no moves left")
	}
	path := ShortestPath(g.grid, actor.Pos, dest, actor.MovesLeft, actor)
	if path == nil {
		return nil, nil, illegalf("tile not reachable")
	}
	if len(path) == 0 {
		return nil, nil, illegalf("already there")
	}

	result := &MoveResult{}
	for _, step := range path {
		cost, _ := TileAt(g.grid, step).Type.Cost()
		actor.MovesLeft -= cost
		g.relocate(actor, step)
		result.Path = append(result.Path, step)
		g.afterStep(actor, step, result)
		if result.PickedUp != "" || result.SelectionPending {
			break // a pickup interrupts the walk
		}
	}
	if g.Config.IceSlide {
		g.slide(actor, result)
	}
	return result, g.postMoveEvent(actor), nil
}

// relocate moves a player's tile occupancy. Caller holds the lock.
func (g *Game) relocate(p *Player, dest Position) {
	if old := TileAt(g.grid, p.Pos); old != nil && old.Player == p {
		old.Player = nil
	}
	tile := TileAt(g.grid, dest)
	tile.Player = p
	p.Pos = dest
	if tile.Type == TileIce {
		p.Flags.Set(FlagOnIce)
	} else {
		p.Flags.Clear(FlagOnIce)
	}
}

// afterStep updates stats and collects objects on the tile just entered
func (g *Game) afterStep(p *Player, pos Position, result *MoveResult) {
	p.MarkVisited(pos)
	g.visited[pos] = true

	tile := TileAt(g.grid, pos)
	if tile.Object == "" {
		return
	}
	name := tile.Object
	if len(p.Inventory) >= MaxInventory {
		p.pending = name
		tile.Object = ""
		g.data.Set(DataSelectionPending)
		result.SelectionPending = true
		return
	}
	tile.Object = ""
	p.Inventory = append(p.Inventory, name)
	p.Stats.ObjectsPicked++
	fireOnPickup(p, name)
	if name == ObjectFlag {
		g.flagCarriers[p.ID] = true
	}
	result.PickedUp = name
}

// slide pushes a player standing on ice along their last move direction
// until a non-ice tile or an obstacle stops them. Zero cost.
func (g *Game) slide(p *Player, result *MoveResult) {
	if len(result.Path) == 0 {
		return
	}
	last := result.Path[len(result.Path)-1]
	if TileAt(g.grid, last).Type != TileIce {
		return
	}
	if len(result.Path) < 2 {
		return // single-step path: slide direction unknown
	}
	from := result.Path[len(result.Path)-2]
	dx, dy := last.X-from.X, last.Y-from.Y
	cur := last
	for {
		next := Position{X: cur.X + dx, Y: cur.Y + dy}
		tile := TileAt(g.grid, next)
		if tile == nil || tile.Type != TileIce || tile.Player != nil {
			break
		}
		g.relocate(p, next)
		result.Path = append(result.Path, next)
		g.afterStep(p, next, result)
		cur = next
	}
}

// postMoveEvent runs the win check after a move. Caller holds the lock.
func (g *Game) postMoveEvent(actor *Player) *PhaseEvent {
	if g.Config.Mode == ModeCTF && actor.HasObject(ObjectFlag) &&
		actor.SpawnPoint != nil && actor.Pos == *actor.SpawnPoint {
		return g.finish(g.teamMembers(actor.Team()))
	}
	return nil
}

// teamMembers returns the IDs of every player on the given team
func (g *Game) teamMembers(team PlayerFlag) []string {
	var ids []string
	for _, p := range g.players {
		if p.Flags.Has(team) {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

// InteractDoor toggles an adjacent unoccupied door, spending the action
func (g *Game) InteractDoor(pid string, pos Position) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.data.Has(DataGameOver) {
		return false, illegalf("game is over")
	}
	if err := g.checkActor(pid); err != nil {
		return false, err
	}
	if g.combat != nil {
		return false, illegalf("cannot interact during combat")
	}
	actor := g.players[g.active]
	if actor.ActionsLeft <= 0 {
		return false, illegalf("no actions left")
	}
	if !adjacent(actor.Pos, pos) {
		return false, illegalf("door not adjacent")
	}
	tile := TileAt(g.grid, pos)
	if tile == nil || !tile.Type.IsDoor() {
		return false, illegalf("no door there")
	}
	if tile.Player != nil {
		return false, illegalf("door is blocked")
	}
	if tile.Type == TileClosedDoor {
		tile.Type = TileOpenDoor
	} else {
		tile.Type = TileClosedDoor
	}
	actor.ActionsLeft--
	g.doorsTouched[pos] = true
	return tile.Type == TileOpenDoor, nil
}

// InitiateCombat opens a combat session against an adjacent opponent. The
// faster participant attacks first; ties favor the initiator.
func (g *Game) InitiateCombat(pid string, pos Position) (*CombatStartMsg, *PhaseEvent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.data.Has(DataGameOver) {
		return nil, nil, illegalf("game is over")
	}
	if err := g.checkActor(pid); err != nil {
		return nil, nil, err
	}
	if g.combat != nil {
		return nil, nil, illegalf("combat already in progress")
	}
	actor := g.players[g.active]
	if actor.ActionsLeft <= 0 {
		return nil, nil, illegalf("no actions left")
	}
	if !adjacent(actor.Pos, pos) {
		return nil, nil, illegalf("target not adjacent")
	}
	tile := TileAt(g.grid, pos)
	if tile == nil || tile.Player == nil {
		return nil, nil, illegalf("no opponent there")
	}
	target := tile.Player
	if g.Config.Mode == ModeCTF && target.Team() == actor.Team() {
		return nil, nil, illegalf("cannot attack a teammate")
	}

	actor.ActionsLeft--
	g.combat = NewCombatSession(actor, target)
	actor.Flags.Set(FlagInCombat)
	target.Flags.Set(FlagInCombat)
	actor.Stats.Combats++
	target.Stats.Combats++

	msg := &CombatStartMsg{AttackerID: actor.ID, DefenderID: target.ID}
	return msg, &PhaseEvent{Phase: PhaseCombat, Actor: g.combat.Actor()}, nil
}

// Attack resolves one combat exchange by the current combat actor
func (g *Game) Attack(pid string) (*AttackResultMsg, *CombatEndMsg, *PhaseEvent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.combat == nil {
		return nil, nil, nil, illegalf("no combat in progress")
	}
	if g.combat.Actor().ID != pid {
		return nil, nil, nil, illegalf("not your combat turn")
	}
	outcome := g.combat.Attack(g.dice)
	res := &AttackResultMsg{
		AttackerID:  outcome.Attacker.ID,
		DefenderID:  outcome.Defender.ID,
		AttackRoll:  outcome.AttackRoll,
		DefenseRoll: outcome.DefenseRoll,
		Damage:      outcome.Damage,
		Health:      outcome.Defender.Attributes.Health,
	}
	if outcome.DefenderDown {
		end, ev := g.endCombat(outcome.Attacker, outcome.Defender)
		return res, end, ev, nil
	}
	g.combat.NextTurn()
	return res, nil, &PhaseEvent{Phase: PhaseCombat, Actor: g.combat.Actor()}, nil
}

// Evade attempts an escape by the current combat actor
func (g *Game) Evade(pid string) (*EvadeResultMsg, *CombatEndMsg, *PhaseEvent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.combat == nil {
		return nil, nil, nil, illegalf("no combat in progress")
	}
	actor := g.combat.Actor()
	if actor.ID != pid {
		return nil, nil, nil, illegalf("not your combat turn")
	}
	success, left, err := g.combat.Evade(g.dice)
	if err != nil {
		return nil, nil, nil, err
	}
	res := &EvadeResultMsg{PlayerID: actor.ID, Success: success, AttemptsLeft: left}
	if success {
		end, ev := g.endCombatEvaded()
		return res, end, ev, nil
	}
	g.combat.NextTurn()
	return res, nil, &PhaseEvent{Phase: PhaseCombat, Actor: g.combat.Actor()}, nil
}

// endCombatEvaded closes the session with no winner. Caller holds the lock.
func (g *Game) endCombatEvaded() (*CombatEndMsg, *PhaseEvent) {
	a, b := g.combat.A, g.combat.B
	g.closeCombat(a, b)
	end := &CombatEndMsg{Evaded: true}
	return end, g.resumeAfterCombat(nil)
}

// endCombat resolves a decided fight. Caller holds the lock.
func (g *Game) endCombat(winner, loser *Player) (*CombatEndMsg, *PhaseEvent) {
	suppressed := fireOnCombatEnd(loser, winner)
	if !suppressed {
		winner.Stats.Victories++
	}
	loser.Stats.Defeats++

	// Flag carriers drop the flag where they fell
	if loser.RemoveObject(ObjectFlag) {
		TileAt(g.grid, loser.Pos).Object = ObjectFlag
	}

	origin := loser.Pos
	loser.Attributes.Health = loser.Attributes.MaxHealth
	g.relocate(loser, g.safeTile(origin, loser))

	g.closeCombat(winner, loser)

	if g.Config.Mode == ModeClassical && loser.Stats.Defeats >= g.Config.EliminationDefeats {
		g.eliminate(loser)
	}
	end := &CombatEndMsg{WinnerID: winner.ID, LoserID: loser.ID}
	return end, g.resumeAfterCombat(loser)
}

// closeCombat clears combat-scoped state on both players
func (g *Game) closeCombat(a, b *Player) {
	for _, p := range []*Player{a, b} {
		p.Flags.Clear(FlagInCombat)
		p.EvasionAttempts = 0
	}
	g.combat = nil
}

// resumeAfterCombat returns turn flow to the game: the active player keeps
// their turn unless they lost (or were eliminated), which forces a pass.
// The resumption goes through a transition window so combat-end messages
// settle before acting restarts; the budget is not reset.
func (g *Game) resumeAfterCombat(loser *Player) *PhaseEvent {
	if ev := g.checkElimination(); ev != nil {
		return ev
	}
	actor := g.players[g.active]
	if loser != nil && loser == actor {
		return g.advanceTurn(true)
	}
	g.data.Set(DataTransitioning)
	g.resume = true
	return &PhaseEvent{Phase: PhaseTransition, Actor: actor, Resume: true}
}

// eliminate removes a defeated player from the board permanently
func (g *Game) eliminate(p *Player) {
	p.Flags.Set(FlagDeadInCombat)
	if tile := TileAt(g.grid, p.Pos); tile != nil && tile.Player == p {
		tile.Player = nil
	}
	g.dropInventory(p)
}

// checkElimination ends a classical game when one player remains
func (g *Game) checkElimination() *PhaseEvent {
	if g.Config.Mode != ModeClassical {
		return nil
	}
	var standing []*Player
	for _, p := range g.players {
		if p.Eligible() {
			standing = append(standing, p)
		}
	}
	if len(standing) > 1 {
		return nil
	}
	var winners []string
	if len(standing) == 1 {
		winners = []string{standing[0].ID}
	}
	return g.finish(winners)
}

// safeTile returns the nearest free walkable tile to origin, the player's
// spawn point as fallback, or origin itself when everything is blocked.
func (g *Game) safeTile(origin Position, p *Player) Position {
	visited := map[Position]bool{origin: true}
	queue := []Position{origin}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		tile := TileAt(g.grid, cur)
		if _, walkable := tile.Type.Cost(); walkable && (tile.Player == nil || tile.Player == p) {
			return cur
		}
		for _, n := range Neighbors(g.grid, cur) {
			if !visited[n] {
				visited[n] = true
				queue = append(queue, n)
			}
		}
	}
	if p.SpawnPoint != nil {
		return *p.SpawnPoint
	}
	return origin
}

// SelectObject resolves a pending full-inventory pickup: drop names the
// object to leave on the tile (either a held one or the picked-up one).
func (g *Game) SelectObject(pid, drop string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.checkActor(pid); err != nil {
		return err
	}
	actor := g.players[g.active]
	if !g.data.Has(DataSelectionPending) || actor.pending == "" {
		return illegalf("nothing to select")
	}
	tile := TileAt(g.grid, actor.Pos)
	picked := actor.pending
	if drop == picked {
		tile.Object = picked
	} else {
		if !actor.RemoveObject(drop) {
			return illegalf("object %s not held", drop)
		}
		fireOnDrop(actor, drop)
		if drop == ObjectFlag {
			tile.Object = ObjectFlag
		} else {
			tile.Object = drop
		}
		actor.Inventory = append(actor.Inventory, picked)
		actor.Stats.ObjectsPicked++
		fireOnPickup(actor, picked)
		if picked == ObjectFlag {
			g.flagCarriers[actor.ID] = true
		}
	}
	actor.pending = ""
	g.data.Clear(DataSelectionPending)
	return nil
}

// ToggleDebug flips debug mode; admin only
func (g *Game) ToggleDebug(pid string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p := g.playerByID(pid)
	if p == nil || !p.Flags.Has(FlagAdmin) {
		return false, illegalf("debug mode is admin-only")
	}
	if g.data.Has(DataDebugging) {
		g.data.Clear(DataDebugging)
		g.dice.Debug = false
	} else {
		g.data.Set(DataDebugging)
		g.dice.Debug = true
	}
	return g.data.Has(DataDebugging), nil
}

// Disconnect marks a player gone and keeps the game live: an active
// disconnector forfeits the turn, a combat participant forfeits the fight.
func (g *Game) Disconnect(pid string) (*PhaseEvent, *CombatEndMsg) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p := g.playerByID(pid)
	if p == nil || p.Flags.Has(FlagDisconnected) || g.data.Has(DataGameOver) {
		return nil, nil
	}
	p.Flags.Set(FlagDisconnected)

	var end *CombatEndMsg
	var ev *PhaseEvent
	if g.combat != nil && (g.combat.A == p || g.combat.B == p) {
		winner := g.combat.Opponent(p)
		end, ev = g.endCombat(winner, p)
	}

	if tile := TileAt(g.grid, p.Pos); tile != nil && tile.Player == p {
		tile.Player = nil
	}
	g.dropInventory(p)

	if ev == nil {
		if over := g.checkElimination(); over != nil {
			ev = over
		} else if g.players[g.active] == p {
			ev = g.advanceTurn(true)
		}
	}
	return ev, end
}

// dropInventory scatters a leaving player's objects onto free tiles
func (g *Game) dropInventory(p *Player) {
	for _, name := range p.Inventory {
		fireOnDrop(p, name)
		pos := g.freeObjectTile(p.Pos)
		TileAt(g.grid, pos).Object = name
	}
	p.Inventory = nil
}

// freeObjectTile finds the nearest walkable tile without an object
func (g *Game) freeObjectTile(origin Position) Position {
	visited := map[Position]bool{origin: true}
	queue := []Position{origin}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		tile := TileAt(g.grid, cur)
		if _, walkable := tile.Type.Cost(); walkable && tile.Object == "" {
			return cur
		}
		for _, n := range Neighbors(g.grid, cur) {
			if !visited[n] {
				visited[n] = true
				queue = append(queue, n)
			}
		}
	}
	return origin
}

// finish marks the game over. Caller holds the lock.
func (g *Game) finish(winners []string) *PhaseEvent {
	g.data.Set(DataGameOver)
	for _, p := range g.players {
		fireOnPlayerReset(p)
	}
	return &PhaseEvent{Phase: PhaseOver, Winners: winners}
}

// Over reports whether the game has ended
func (g *Game) Over() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.data.Has(DataGameOver)
}

// ActivePlayer returns the player currently authorized to act
func (g *Game) ActivePlayer() *Player {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.players[g.active]
}

// CombatActorID returns the ID of the player whose combat turn it is, or
// "" when no combat is running
func (g *Game) CombatActorID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.combat == nil {
		return ""
	}
	return g.combat.Actor().ID
}

// PlayerByID returns the player with the given ID, or nil
func (g *Game) PlayerByID(pid string) *Player {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.playerByID(pid)
}

func (g *Game) playerByID(pid string) *Player {
	for _, p := range g.players {
		if p.ID == pid {
			return p
		}
	}
	return nil
}

// ConnectedHumans counts connected non-virtual players
func (g *Game) ConnectedHumans() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, p := range g.players {
		if !p.Flags.IsVirtual() && !p.Flags.Has(FlagDisconnected) {
			n++
		}
	}
	return n
}

// statsState computes the global stats. Caller holds the lock.
func (g *Game) statsState() GameStatsState {
	size := g.mapModel.Size
	doors := 0.0
	if g.totalDoors > 0 {
		doors = float64(len(g.doorsTouched)) / float64(g.totalDoors) * 100
	}
	return GameStatsState{
		DurationSec:  time.Since(g.startedAt).Seconds(),
		Turns:        g.turn,
		DoorsPercent: doors,
		TilesPercent: float64(len(g.visited)) / float64(size*size) * 100,
		FlagHolders:  len(g.flagCarriers),
	}
}

// StatsState returns the current global stats
func (g *Game) StatsState() GameStatsState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.statsState()
}

// Snapshot builds the full authoritative state for broadcast
func (g *Game) Snapshot() GameBase {
	g.mu.Lock()
	defer g.mu.Unlock()
	size := g.mapModel.Size
	tiles := make([][]TileState, size)
	for y := 0; y < size; y++ {
		tiles[y] = make([]TileState, size)
		for x := 0; x < size; x++ {
			t := g.grid[y][x]
			ts := TileState{Type: t.Type, Object: t.Object, Spawn: t.Spawn}
			if t.Player != nil {
				ts.Player = t.Player.ID
			}
			tiles[y][x] = ts
		}
	}
	players := make([]PlayerState, 0, len(g.players))
	for _, p := range g.players {
		ps := p.ToState()
		ps.TilesPercent = p.VisitedPercent(size)
		players = append(players, ps)
	}
	return GameBase{
		Code:    g.Code,
		Mode:    g.Config.Mode.String(),
		Size:    size,
		Tiles:   tiles,
		Players: players,
		Data:    uint32(g.data),
		Stats:   g.statsState(),
		Active:  g.players[g.active].ID,
		Turn:    g.turn,
	}
}

// adjacent reports orthogonal adjacency (distance 1)
func adjacent(a, b Position) bool {
	dx := a.X - b.X
	dy := a.Y - b.Y
	if dx < 0 {
		dx = -dx
	}
	if dy < 0 {
		dy = -dy
	}
	return dx+dy == 1
}
