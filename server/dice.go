package main

import "math/rand"

// DieType is the number of faces on a die
type DieType int

const (
	D4 DieType = 4
	D6 DieType = 6
)

// EvasionChance is the fixed probability that an escape attempt succeeds,
// independent of player attributes.
const EvasionChance = 0.3

// DiceRoller produces dice rolls and evasion outcomes for one game. Debug
// mode makes results deterministic: attackers roll max, defenders roll min.
type DiceRoller struct {
	rnd   *rand.Rand
	Debug bool
}

// NewDiceRoller creates a roller from the given seed
func NewDiceRoller(seed int64) *DiceRoller {
	return &DiceRoller{rnd: rand.New(rand.NewSource(seed))}
}

// RollAttack rolls an attack die (max face in debug mode)
func (d *DiceRoller) RollAttack(die DieType) int {
	if d.Debug {
		return int(die)
	}
	return d.rnd.Intn(int(die)) + 1
}

// RollDefense rolls a defense die (min face in debug mode)
func (d *DiceRoller) RollDefense(die DieType) int {
	if d.Debug {
		return 1
	}
	return d.rnd.Intn(int(die)) + 1
}

// RollEvasion returns whether an escape attempt succeeds
func (d *DiceRoller) RollEvasion() bool {
	return d.rnd.Float64() < EvasionChance
}
