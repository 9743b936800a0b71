package main

import "testing"

// adjacentMap puts the two spawns next to each other
func adjacentMap(mode string) *GameMap {
	m := basicMap(10, mode)
	m.Tiles[9][9].Spawn = false
	m.Tiles[0][1].Spawn = true
	return m
}

func debugRoller() *DiceRoller {
	d := NewDiceRoller(1)
	d.Debug = true
	return d
}

func TestCombatFasterActsFirst(t *testing.T) {
	fast := NewPlayer("fast", "A", "", true, true) // speed 4
	fast.Attributes.Speed = 6
	slow := NewPlayer("slow", "B", "", true, true)

	c := NewCombatSession(slow, fast)
	if c.Actor() != fast {
		t.Error("faster participant should act first")
	}
}

func TestCombatTieFavorsInitiator(t *testing.T) {
	a := NewPlayer("a", "A", "", true, true)
	b := NewPlayer("b", "B", "", true, true)
	c := NewCombatSession(a, b)
	if c.Actor() != a {
		t.Error("speed tie should favor the initiator")
	}
}

func TestAttackDamageIsDifference(t *testing.T) {
	attacker := NewPlayer("a", "A", "", true, true) // attack d6
	defender := NewPlayer("b", "B", "", false, true)
	c := NewCombatSession(attacker, defender)

	outcome := c.Attack(debugRoller())
	// Debug: attacker rolls max (6), defender rolls 1
	wantAttack := attacker.Attributes.Attack.Value + 6
	wantDefense := defender.Attributes.Defense.Value + 1
	if outcome.AttackRoll != wantAttack || outcome.DefenseRoll != wantDefense {
		t.Errorf("expected rolls %d/%d, got %d/%d", wantAttack, wantDefense, outcome.AttackRoll, outcome.DefenseRoll)
	}
	if outcome.Damage != wantAttack-wantDefense {
		t.Errorf("expected damage %d, got %d", wantAttack-wantDefense, outcome.Damage)
	}
	if attacker.Stats.DamageDealt != outcome.Damage {
		t.Errorf("expected damage dealt stat %d, got %d", outcome.Damage, attacker.Stats.DamageDealt)
	}
}

func TestAttackDamageNeverNegative(t *testing.T) {
	attacker := NewPlayer("a", "A", "", false, true) // attack d4
	attacker.Attributes.Attack.Value = 0
	defender := NewPlayer("b", "B", "", true, true)
	defender.Attributes.Defense.Value = 10
	c := NewCombatSession(attacker, defender)

	outcome := c.Attack(debugRoller())
	if outcome.Damage != 0 {
		t.Errorf("expected damage clamped to 0, got %d", outcome.Damage)
	}
	if defender.Attributes.Health != defender.Attributes.MaxHealth {
		t.Error("defender should take no damage")
	}
}

func TestHealthFloorsAtZero(t *testing.T) {
	p := NewPlayer("p", "P", "", true, true)
	down := p.TakeDamage(99)
	if !down {
		t.Error("expected the player to drop")
	}
	if p.Attributes.Health != 0 {
		t.Errorf("expected health 0, got %d", p.Attributes.Health)
	}
}

func TestEvasionAttemptLimit(t *testing.T) {
	a := NewPlayer("a", "A", "", true, true)
	b := NewPlayer("b", "B", "", true, true)
	c := NewCombatSession(a, b)
	dice := NewDiceRoller(7)

	if _, left, err := c.Evade(dice); err != nil || left != 1 {
		t.Fatalf("first attempt: left %d err %v", left, err)
	}
	if _, left, err := c.Evade(dice); err != nil || left != 0 {
		t.Fatalf("second attempt: left %d err %v", left, err)
	}
	if _, _, err := c.Evade(dice); err == nil {
		t.Error("third attempt should be rejected")
	}
	if c.CanEvade() {
		t.Error("CanEvade should be false after both attempts")
	}
}

func TestEvasionRateConverges(t *testing.T) {
	dice := NewDiceRoller(99)
	hits := 0
	const n = 10000
	for i := 0; i < n; i++ {
		if dice.RollEvasion() {
			hits++
		}
	}
	rate := float64(hits) / n
	if rate < 0.27 || rate > 0.33 {
		t.Errorf("expected evasion rate near %.2f, got %.4f", EvasionChance, rate)
	}
}

func TestSaberFangInstantWin(t *testing.T) {
	holder := NewPlayer("a", "A", "", true, true)
	holder.Inventory = []string{ObjectSaberFang}
	holder.Attributes.Health = 1 // below half of 4
	opponent := NewPlayer("b", "B", "", true, true)
	c := NewCombatSession(holder, opponent)

	outcome := c.Attack(debugRoller())
	if !outcome.InstantWin || !outcome.DefenderDown {
		t.Errorf("expected instant win, got %+v", outcome)
	}
	if opponent.Attributes.Health != 0 {
		t.Errorf("opponent should be at 0 health, got %d", opponent.Attributes.Health)
	}
}

func TestSaberFangInactiveAboveHalfHealth(t *testing.T) {
	holder := NewPlayer("a", "A", "", true, true)
	holder.Inventory = []string{ObjectSaberFang}
	opponent := NewPlayer("b", "B", "", true, true)
	c := NewCombatSession(holder, opponent)

	outcome := c.Attack(debugRoller())
	if outcome.InstantWin {
		t.Error("saber fang should stay dormant at full health")
	}
}

// debugCombat starts a game, enables debug dice and opens combat p1 -> p2
func debugCombat(t *testing.T, m *GameMap) (*Game, *Player, *Player) {
	t.Helper()
	g, p1, p2 := startedGame(t, m)
	p1.Flags.Set(FlagAdmin)
	if _, err := g.ToggleDebug("p1"); err != nil {
		t.Fatalf("ToggleDebug: %v", err)
	}
	p1.Attributes.Attack.Value = 10 // guarantee a one-hit decision
	if _, _, err := g.InitiateCombat("p1", p2.Pos); err != nil {
		t.Fatalf("InitiateCombat: %v", err)
	}
	return g, p1, p2
}

func TestCombatVictoryResetsLoser(t *testing.T) {
	g, p1, p2 := debugCombat(t, adjacentMap("classical"))

	res, end, ev, err := g.Attack("p1")
	if err != nil {
		t.Fatalf("Attack: %v", err)
	}
	if res.Damage < p2.Attributes.MaxHealth {
		t.Fatalf("debug attack should one-shot, damage %d", res.Damage)
	}
	if end == nil || end.WinnerID != "p1" || end.LoserID != "p2" {
		t.Fatalf("expected decided combat, got %+v", end)
	}
	if p2.Attributes.Health != p2.Attributes.MaxHealth {
		t.Errorf("loser should heal to max, got %d", p2.Attributes.Health)
	}
	if p1.Stats.Victories != 1 || p2.Stats.Defeats != 1 {
		t.Errorf("expected 1 victory / 1 defeat, got %d/%d", p1.Stats.Victories, p2.Stats.Defeats)
	}
	if p1.Flags.Has(FlagInCombat) || p2.Flags.Has(FlagInCombat) {
		t.Error("combat flags should clear")
	}
	// Winner keeps the turn after a short resume window
	if ev == nil || ev.Phase != PhaseTransition || ev.Actor != p1 || !ev.Resume {
		t.Errorf("expected a resume transition for p1, got %+v", ev)
	}
}

func TestCombatWinnerResumesWithBudget(t *testing.T) {
	g, p1, _ := debugCombat(t, adjacentMap("classical"))
	p1.MovesLeft = 2 // partially spent turn

	_, end, ev, err := g.Attack("p1")
	if err != nil || end == nil {
		t.Fatalf("Attack: end %+v err %v", end, err)
	}
	if ev == nil || ev.Phase != PhaseTransition || !ev.Resume {
		t.Fatalf("expected resume transition, got %+v", ev)
	}
	// Acting blocked until the window elapses
	if _, _, err := g.MovePlayer("p1", Position{0, 1}); err == nil {
		t.Error("moves should wait for the resume window")
	}

	resumed := g.BeginTurn()
	if resumed.Phase != PhaseActing || resumed.Actor != p1 {
		t.Fatalf("expected p1 to resume acting, got %+v", resumed)
	}
	if p1.MovesLeft != 2 {
		t.Errorf("resume should keep the remaining budget, got %d", p1.MovesLeft)
	}
	if _, _, err := g.MovePlayer("p1", Position{0, 1}); err != nil {
		t.Errorf("winner should act after the resume: %v", err)
	}
}

func TestForcedEndTurnIgnoredDuringCombat(t *testing.T) {
	g, p1, _ := debugCombat(t, adjacentMap("classical"))

	ev, err := g.EndTurn("", true)
	if err != nil || ev != nil {
		t.Fatalf("expected a silent no-op, got ev %+v err %v", ev, err)
	}
	if g.ActivePlayer() != p1 {
		t.Errorf("active player should not advance mid-combat, got %s", g.ActivePlayer().ID)
	}
	if g.CombatActorID() != p1.ID {
		t.Errorf("combat actor should stay %s, got %s", p1.ID, g.CombatActorID())
	}
}

func TestTurtleShellSuppressesVictory(t *testing.T) {
	g, p1, p2 := debugCombat(t, adjacentMap("classical"))
	p2.Inventory = []string{ObjectTurtleShell}

	_, end, _, err := g.Attack("p1")
	if err != nil || end == nil {
		t.Fatalf("Attack: end %+v err %v", end, err)
	}
	if p1.Stats.Victories != 0 {
		t.Errorf("turtle shell should suppress the victory, got %d", p1.Stats.Victories)
	}
	if p2.Stats.Defeats != 1 {
		t.Errorf("defeat still counts, got %d", p2.Stats.Defeats)
	}
}

func TestLoserDropsFlagWhereFallen(t *testing.T) {
	g, _, p2 := debugCombat(t, adjacentMap("ctf"))
	p2.Inventory = []string{ObjectFlag}
	fallPos := p2.Pos

	if _, _, _, err := g.Attack("p1"); err != nil {
		t.Fatalf("Attack: %v", err)
	}
	if p2.HasObject(ObjectFlag) {
		t.Error("loser should drop the flag")
	}
	if TileAt(g.grid, fallPos).Object != ObjectFlag {
		t.Errorf("flag should lie at %v", fallPos)
	}
}

func TestEliminationAfterThreeDefeats(t *testing.T) {
	g, p1, p2 := debugCombat(t, adjacentMap("classical"))
	p2.Stats.Defeats = 2

	_, end, ev, err := g.Attack("p1")
	if err != nil || end == nil {
		t.Fatalf("Attack: %v", err)
	}
	if !p2.Flags.Has(FlagDeadInCombat) {
		t.Error("third defeat should eliminate")
	}
	if ev == nil || ev.Phase != PhaseOver {
		t.Fatalf("expected game over, got %+v", ev)
	}
	if len(ev.Winners) != 1 || ev.Winners[0] != p1.ID {
		t.Errorf("expected winner p1, got %v", ev.Winners)
	}
}

func TestCombatBlocksMovesAndEndTurn(t *testing.T) {
	g, _, _ := debugCombat(t, adjacentMap("classical"))
	if _, _, err := g.MovePlayer("p1", Position{0, 1}); err == nil {
		t.Error("moves should be blocked during combat")
	}
	if _, err := g.EndTurn("p1", false); err == nil {
		t.Error("ending the turn should be blocked during combat")
	}
}

func TestCombatTeammateRejected(t *testing.T) {
	m := basicMap(15, "ctf")
	m.Tiles[0][0].Spawn = true
	m.Tiles[0][1].Spawn = true
	m.Tiles[1][0].Spawn = true
	m.Tiles[5][5].Spawn = true
	m.Tiles[14][14].Spawn = false
	players := []*Player{
		NewPlayer("p1", "A", "", true, true),
		NewPlayer("p2", "B", "", true, true),
		NewPlayer("p3", "C", "", true, true),
		NewPlayer("p4", "D", "", true, true),
	}
	g, err := NewGame("1234", m, players, DefaultConfig(ModeCTF), 42)
	if err != nil {
		t.Fatalf("NewGame: %v", err)
	}
	g.Start()
	g.BeginTurn()

	// Join order holds (equal speeds): p1 red at (0,0), p3 red at (0,1)
	if players[0].Team() != FlagRedTeam || players[2].Team() != FlagRedTeam {
		t.Fatalf("expected p1 and p3 on red, got %v/%v", players[0].Team(), players[2].Team())
	}
	if _, _, err := g.InitiateCombat("p1", players[2].Pos); err == nil {
		t.Error("attacking a teammate should be rejected")
	}
	if _, _, err := g.InitiateCombat("p1", players[1].Pos); err != nil {
		t.Errorf("attacking an opponent should work: %v", err)
	}
}

func TestIceDebuffAppliesInCombat(t *testing.T) {
	p := NewPlayer("p", "P", "", true, true)
	base := p.AttackValue()
	p.Flags.Set(FlagOnIce)
	if got := p.AttackValue(); got != base-IceCombatDebuff {
		t.Errorf("expected attack %d on ice, got %d", base-IceCombatDebuff, got)
	}
	if got := p.DefenseValue(); got != BaseDefense-IceCombatDebuff {
		t.Errorf("expected defense %d on ice, got %d", BaseDefense-IceCombatDebuff, got)
	}
}

func TestCombatForfeitOnDisconnect(t *testing.T) {
	g, p1, p2 := debugCombat(t, adjacentMap("classical"))
	ev, end := g.Disconnect("p2")
	if end == nil || end.WinnerID != p1.ID {
		t.Fatalf("expected forfeit win for p1, got %+v", end)
	}
	if p2.Stats.Defeats != 1 {
		t.Errorf("forfeit should count as defeat, got %d", p2.Stats.Defeats)
	}
	if ev == nil || ev.Phase != PhaseOver {
		t.Errorf("last opponent gone, expected game over, got %+v", ev)
	}
}
