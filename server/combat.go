package main

// MaxEvasionAttempts bounds escape attempts per player per combat
const MaxEvasionAttempts = 2

// CombatSession is an isolated 1v1 encounter. The faster participant acts
// first; ties favor the initiator. Created by Game.InitiateCombat and
// destroyed when one side is defeated, evades, or forfeits.
type CombatSession struct {
	A     *Player // initiator
	B     *Player // target
	actor *Player
}

// NewCombatSession opens a combat between initiator and target
func NewCombatSession(initiator, target *Player) *CombatSession {
	first := initiator
	if target.Attributes.Speed > initiator.Attributes.Speed {
		first = target
	}
	return &CombatSession{A: initiator, B: target, actor: first}
}

// Actor returns the participant whose combat turn it is
func (c *CombatSession) Actor() *Player {
	return c.actor
}

// Opponent returns the other participant
func (c *CombatSession) Opponent(p *Player) *Player {
	if p == c.A {
		return c.B
	}
	return c.A
}

// NextTurn hands the combat turn to the other participant
func (c *CombatSession) NextTurn() {
	c.actor = c.Opponent(c.actor)
}

// AttackOutcome is the result of one exchange
type AttackOutcome struct {
	Attacker     *Player
	Defender     *Player
	AttackRoll   int
	DefenseRoll  int
	Damage       int
	DefenderDown bool
	InstantWin   bool
}

// Attack rolls the exchange for the current actor. Damage is the positive
// difference between the attack and defense totals, never negative, and
// defender health floors at zero. Item hooks may decide the fight before
// any die is cast.
func (c *CombatSession) Attack(dice *DiceRoller) AttackOutcome {
	attacker := c.actor
	defender := c.Opponent(attacker)

	if fireBeforeAttack(attacker, defender) {
		defender.Attributes.Health = 0
		return AttackOutcome{
			Attacker:     attacker,
			Defender:     defender,
			DefenderDown: true,
			InstantWin:   true,
		}
	}

	attackRoll := attacker.AttackValue() + dice.RollAttack(attacker.Attributes.Attack.Die)
	defenseRoll := defender.DefenseValue() + dice.RollDefense(defender.Attributes.Defense.Die)
	damage := attackRoll - defenseRoll
	if damage < 0 {
		damage = 0
	}

	down := defender.TakeDamage(damage)
	attacker.Stats.DamageDealt += damage

	return AttackOutcome{
		Attacker:     attacker,
		Defender:     defender,
		AttackRoll:   attackRoll,
		DefenseRoll:  defenseRoll,
		Damage:       damage,
		DefenderDown: down,
	}
}

// Evade attempts an escape for the current actor. Success probability is
// the fixed EvasionChance regardless of attributes.
func (c *CombatSession) Evade(dice *DiceRoller) (bool, int, error) {
	actor := c.actor
	if actor.EvasionAttempts >= MaxEvasionAttempts {
		return false, 0, illegalf("no evasion attempts left")
	}
	actor.EvasionAttempts++
	left := MaxEvasionAttempts - actor.EvasionAttempts
	if dice.RollEvasion() {
		actor.Stats.Evasions++
		return true, left, nil
	}
	return false, left, nil
}

// CanEvade reports whether the current actor still has escape attempts
func (c *CombatSession) CanEvade() bool {
	return c.actor.EvasionAttempts < MaxEvasionAttempts
}
