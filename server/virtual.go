package main

// VirtualAction is one decision of the bot driver
type VirtualAction int

const (
	ActEndTurn VirtualAction = 0
	ActMove    VirtualAction = 1
	ActCombat  VirtualAction = 2
)

// VirtualDecision is what a bot wants to do next. Bots issue the same game
// operations as human clients; there is no separate mutation path.
type VirtualDecision struct {
	Action VirtualAction
	Target Position
}

// Item priority tables per profile. Higher is more wanted; zero is ignored.
var aggressiveItemPriority = map[string]int{
	ObjectFlag:      5,
	ObjectBone:      4,
	ObjectSaberFang: 3,
	ObjectBird:      2,
	ObjectMeat:      1,
}

var defensiveItemPriority = map[string]int{
	ObjectFlag:        5,
	ObjectMeat:        4,
	ObjectTurtleShell: 3,
	ObjectBird:        2,
	ObjectBone:        1,
}

func itemPriority(p *Player, name string) int {
	if p.Flags.Has(FlagVirtualAggressive) {
		return aggressiveItemPriority[name]
	}
	return defensiveItemPriority[name]
}

// VirtualDecision computes the active virtual player's next action
func (g *Game) VirtualDecision() VirtualDecision {
	g.mu.Lock()
	defer g.mu.Unlock()

	actor := g.players[g.active]
	if !actor.Flags.IsVirtual() || g.data.Has(DataGameOver) {
		return VirtualDecision{Action: ActEndTurn}
	}

	// A flag carrier heads home regardless of profile
	if actor.HasObject(ObjectFlag) && actor.SpawnPoint != nil {
		if dest, ok := g.stepToward(actor, *actor.SpawnPoint); ok {
			return VirtualDecision{Action: ActMove, Target: dest}
		}
		return VirtualDecision{Action: ActEndTurn}
	}

	aggressive := actor.Flags.Has(FlagVirtualAggressive)

	if aggressive && actor.ActionsLeft > 0 {
		if opp := g.adjacentOpponent(actor); opp != nil {
			return VirtualDecision{Action: ActCombat, Target: opp.Pos}
		}
	}

	reached := ReachableTiles(g.grid, actor.Pos, actor.MovesLeft, actor)

	// Reachable item with the best profile priority wins
	if dest, ok := g.bestItemTile(actor, reached); ok {
		return VirtualDecision{Action: ActMove, Target: dest}
	}

	if aggressive {
		if dest, ok := g.closeOnOpponent(actor, reached); ok {
			return VirtualDecision{Action: ActMove, Target: dest}
		}
	} else {
		if dest, ok := g.retreatTile(actor, reached); ok {
			return VirtualDecision{Action: ActMove, Target: dest}
		}
	}
	return VirtualDecision{Action: ActEndTurn}
}

// VirtualCombatChoice decides the bot's combat action: "evade" or "attack"
func (g *Game) VirtualCombatChoice() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.combat == nil {
		return ""
	}
	actor := g.combat.Actor()
	if actor.Flags.Has(FlagVirtualDefensive) && g.combat.CanEvade() {
		return "evade"
	}
	return "attack"
}

// adjacentOpponent returns an attackable player next to p, or nil
func (g *Game) adjacentOpponent(p *Player) *Player {
	for _, n := range Neighbors(g.grid, p.Pos) {
		tile := TileAt(g.grid, n)
		if tile.Player == nil || tile.Player == p {
			continue
		}
		if g.Config.Mode == ModeCTF && tile.Player.Team() == p.Team() {
			continue
		}
		return tile.Player
	}
	return nil
}

// bestItemTile picks the reachable object tile with the highest priority,
// cheapest path breaking ties
func (g *Game) bestItemTile(p *Player, reached map[Position]int) (Position, bool) {
	bestPriority := 0
	bestCost := 0
	var best Position
	found := false
	for pos, cost := range reached {
		tile := TileAt(g.grid, pos)
		if tile.Object == "" {
			continue
		}
		prio := itemPriority(p, tile.Object)
		if prio == 0 {
			continue
		}
		if !found || prio > bestPriority || (prio == bestPriority && cost < bestCost) {
			best, bestPriority, bestCost, found = pos, prio, cost, true
		}
	}
	return best, found
}

// closeOnOpponent picks the reachable tile nearest to the closest opponent
func (g *Game) closeOnOpponent(p *Player, reached map[Position]int) (Position, bool) {
	opp := g.nearestOpponent(p)
	if opp == nil {
		return Position{}, false
	}
	best := p.Pos
	bestDist := manhattan(p.Pos, opp.Pos)
	for pos := range reached {
		if d := manhattan(pos, opp.Pos); d < bestDist {
			best, bestDist = pos, d
		}
	}
	if best == p.Pos {
		return Position{}, false
	}
	return best, true
}

// retreatTile picks the reachable tile farthest from the closest opponent,
// moving only when it actually gains distance
func (g *Game) retreatTile(p *Player, reached map[Position]int) (Position, bool) {
	opp := g.nearestOpponent(p)
	if opp == nil {
		return Position{}, false
	}
	const safeDistance = 4
	cur := manhattan(p.Pos, opp.Pos)
	if cur >= safeDistance {
		return Position{}, false
	}
	best := p.Pos
	bestDist := cur
	for pos := range reached {
		if d := manhattan(pos, opp.Pos); d > bestDist {
			best, bestDist = pos, d
		}
	}
	if best == p.Pos {
		return Position{}, false
	}
	return best, true
}

// stepToward picks the cheapest reachable tile closest to goal
func (g *Game) stepToward(p *Player, goal Position) (Position, bool) {
	reached := ReachableTiles(g.grid, p.Pos, p.MovesLeft, p)
	best := p.Pos
	bestDist := manhattan(p.Pos, goal)
	for pos := range reached {
		if d := manhattan(pos, goal); d < bestDist {
			best, bestDist = pos, d
		}
	}
	if best == p.Pos {
		return Position{}, false
	}
	return best, true
}

// nearestOpponent returns the closest attackable player on the board
func (g *Game) nearestOpponent(p *Player) *Player {
	var nearest *Player
	bestDist := 0
	for _, other := range g.players {
		if other == p || !other.Eligible() {
			continue
		}
		if g.Config.Mode == ModeCTF && other.Team() == p.Team() {
			continue
		}
		d := manhattan(p.Pos, other.Pos)
		if nearest == nil || d < bestDist {
			nearest, bestDist = other, d
		}
	}
	return nearest
}

func manhattan(a, b Position) int {
	dx := a.X - b.X
	dy := a.Y - b.Y
	if dx < 0 {
		dx = -dx
	}
	if dy < 0 {
		dy = -dy
	}
	return dx + dy
}
