package main

// Base attribute values assigned at player creation
const (
	BaseHealth      = 4
	BaseSpeed       = 4
	BaseAttack      = 4
	BaseDefense     = 4
	BonusAttribute  = 2 // added to either health or speed, player's choice
	MaxInventory    = 2
	IceCombatDebuff = 2 // attack/defense penalty while standing on ice
)

// PlayerFlag is one status flag; a player carries a set of them
type PlayerFlag uint32

const (
	FlagAdmin PlayerFlag = 1 << iota
	FlagRedTeam
	FlagBlueTeam
	FlagActive
	FlagInCombat
	FlagOnIce
	FlagDisconnected
	FlagDeadInCombat
	FlagVirtualAggressive
	FlagVirtualDefensive
)

// FlagSet is a set of player status flags. Flags are not mutually
// exclusive: a player can be on ice and in combat at the same time.
type FlagSet uint32

func (s FlagSet) Has(f PlayerFlag) bool { return uint32(s)&uint32(f) != 0 }
func (s *FlagSet) Set(f PlayerFlag)     { *s = FlagSet(uint32(*s) | uint32(f)) }
func (s *FlagSet) Clear(f PlayerFlag)   { *s = FlagSet(uint32(*s) &^ uint32(f)) }
func (s *FlagSet) Toggle(f PlayerFlag)  { *s = FlagSet(uint32(*s) ^ uint32(f)) }

// IsVirtual reports whether the set marks a bot-controlled player
func (s FlagSet) IsVirtual() bool {
	return s.Has(FlagVirtualAggressive) || s.Has(FlagVirtualDefensive)
}

// AttributeDie pairs an attribute value with the die rolled on top of it
type AttributeDie struct {
	Value int     `json:"value" msgpack:"value"`
	Die   DieType `json:"die" msgpack:"die"`
}

// Attributes holds a player's combat and movement attributes
type Attributes struct {
	MaxHealth int          `json:"maxHealth" msgpack:"maxHealth"`
	Health    int          `json:"health" msgpack:"health"`
	Speed     int          `json:"speed" msgpack:"speed"`
	Attack    AttributeDie `json:"attack" msgpack:"attack"`
	Defense   AttributeDie `json:"defense" msgpack:"defense"`
}

// PlayerStats accumulates per-match statistics
type PlayerStats struct {
	Victories     int `json:"victories" msgpack:"victories"`
	Defeats       int `json:"defeats" msgpack:"defeats"`
	Evasions      int `json:"evasions" msgpack:"evasions"`
	Combats       int `json:"combats" msgpack:"combats"`
	DamageDealt   int `json:"damageDealt" msgpack:"damageDealt"`
	DamageTaken   int `json:"damageTaken" msgpack:"damageTaken"`
	ObjectsPicked int `json:"objectsPicked" msgpack:"objectsPicked"`
	TilesVisited  int `json:"tilesVisited" msgpack:"tilesVisited"`
}

// Player is one participant of a game, human or virtual
type Player struct {
	ID         string
	Name       string
	Avatar     string
	Attributes Attributes
	Stats      PlayerStats
	Inventory  []string // object names, bounded by MaxInventory
	Flags      FlagSet
	Pos        Position
	SpawnPoint *Position

	MovesLeft   int
	ActionsLeft int

	// Combat-scoped, reset when a combat session ends
	EvasionAttempts int

	visited map[Position]bool
	pending string // object awaiting an inventory slot decision
}

// NewPlayer creates a player. attackD6 picks the d6 for attack and the d4
// for defense; false is the reverse. bonusOnHealth applies the creation
// bonus to health instead of speed.
func NewPlayer(id, name, avatar string, attackD6, bonusOnHealth bool) *Player {
	attrs := Attributes{
		MaxHealth: BaseHealth,
		Health:    BaseHealth,
		Speed:     BaseSpeed,
		Attack:    AttributeDie{Value: BaseAttack, Die: D4},
		Defense:   AttributeDie{Value: BaseDefense, Die: D6},
	}
	if attackD6 {
		attrs.Attack.Die = D6
		attrs.Defense.Die = D4
	}
	if bonusOnHealth {
		attrs.MaxHealth += BonusAttribute
		attrs.Health += BonusAttribute
	} else {
		attrs.Speed += BonusAttribute
	}
	return &Player{
		ID:         id,
		Name:       name,
		Avatar:     avatar,
		Attributes: attrs,
		visited:    make(map[Position]bool),
	}
}

// ResetTurn restores the per-turn movement and action budgets
func (p *Player) ResetTurn() {
	p.MovesLeft = p.Attributes.Speed
	p.ActionsLeft = 1
}

// HasObject reports whether the player holds the named object
func (p *Player) HasObject(name string) bool {
	for _, o := range p.Inventory {
		if o == name {
			return true
		}
	}
	return false
}

// RemoveObject drops the named object from the inventory, returning whether
// it was held
func (p *Player) RemoveObject(name string) bool {
	for i, o := range p.Inventory {
		if o == name {
			p.Inventory = append(p.Inventory[:i], p.Inventory[i+1:]...)
			return true
		}
	}
	return false
}

// FreeMovement reports whether the player may ignore movement cost and
// accessibility. Holding the flag revokes the bird's privilege.
func (p *Player) FreeMovement() bool {
	return p.HasObject(ObjectBird) && !p.HasObject(ObjectFlag)
}

// AttackValue returns the effective attack attribute, ice debuff applied
func (p *Player) AttackValue() int {
	v := p.Attributes.Attack.Value
	if p.Flags.Has(FlagOnIce) {
		v -= IceCombatDebuff
	}
	return v
}

// DefenseValue returns the effective defense attribute, ice debuff applied
func (p *Player) DefenseValue() int {
	v := p.Attributes.Defense.Value
	if p.Flags.Has(FlagOnIce) {
		v -= IceCombatDebuff
	}
	return v
}

// TakeDamage lowers current health, flooring at zero, and returns whether
// the player dropped to zero
func (p *Player) TakeDamage(dmg int) bool {
	if dmg <= 0 {
		return false
	}
	p.Attributes.Health -= dmg
	p.Stats.DamageTaken += dmg
	if p.Attributes.Health <= 0 {
		p.Attributes.Health = 0
		return true
	}
	return false
}

// MarkVisited records a visited tile for the coverage stat
func (p *Player) MarkVisited(pos Position) {
	if !p.visited[pos] {
		p.visited[pos] = true
		p.Stats.TilesVisited = len(p.visited)
	}
}

// VisitedPercent returns the share of the grid this player has stepped on
func (p *Player) VisitedPercent(gridSize int) float64 {
	if gridSize == 0 {
		return 0
	}
	return float64(len(p.visited)) / float64(gridSize*gridSize) * 100
}

// Eligible reports whether the player can take a turn
func (p *Player) Eligible() bool {
	return !p.Flags.Has(FlagDisconnected) && !p.Flags.Has(FlagDeadInCombat)
}

// Team returns the team flag held, or 0 in free-for-all
func (p *Player) Team() PlayerFlag {
	if p.Flags.Has(FlagRedTeam) {
		return FlagRedTeam
	}
	if p.Flags.Has(FlagBlueTeam) {
		return FlagBlueTeam
	}
	return 0
}

// ToState converts to the protocol representation
func (p *Player) ToState() PlayerState {
	return PlayerState{
		ID:          p.ID,
		Name:        p.Name,
		Avatar:      p.Avatar,
		Attributes:  p.Attributes,
		Stats:       p.Stats,
		Inventory:   append([]string(nil), p.Inventory...),
		Flags:       uint32(p.Flags),
		Pos:         p.Pos,
		MovesLeft:   p.MovesLeft,
		ActionsLeft: p.ActionsLeft,
	}
}
