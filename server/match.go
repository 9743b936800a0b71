package main

// GamePhase represents where a game sits in its turn lifecycle
type GamePhase int

const (
	PhaseWaiting    GamePhase = 0 // room open, game not started
	PhaseTransition GamePhase = 1 // delay window before the next actionable turn
	PhaseActing     GamePhase = 2 // active player may move/act
	PhaseCombat     GamePhase = 3 // combat session in progress
	PhaseOver       GamePhase = 4
)

// GameMode defines the win condition
type GameMode int

const (
	ModeClassical GameMode = 0
	ModeCTF       GameMode = 1
)

func (m GameMode) String() string {
	if m == ModeCTF {
		return "ctf"
	}
	return "classical"
}

// ParseGameMode maps the persisted map mode to a GameMode
func ParseGameMode(s string) GameMode {
	if s == "ctf" {
		return ModeCTF
	}
	return ModeClassical
}

// Timer durations, in seconds
const (
	TurnSeconds          = 60
	CombatSeconds        = 5
	CombatSecondsNoEvade = 3
	TransitionSeconds    = 3
)

// GameConfig holds settings for a match
type GameConfig struct {
	Mode                 GameMode
	TurnSeconds          int
	CombatSeconds        int
	CombatSecondsNoEvade int
	TransitionSeconds    int
	EliminationDefeats   int  // Classical: defeats before a player is out
	IceSlide             bool // landing on ice forces a slide along the move direction
}

// DefaultConfig returns the default config for the given mode
func DefaultConfig(mode GameMode) GameConfig {
	return GameConfig{
		Mode:                 mode,
		TurnSeconds:          TurnSeconds,
		CombatSeconds:        CombatSeconds,
		CombatSecondsNoEvade: CombatSecondsNoEvade,
		TransitionSeconds:    TransitionSeconds,
		EliminationDefeats:   3,
	}
}

// PhaseEvent describes the phase a mutation moved the game into. Mutations
// never arm timers themselves; the scheduler reads these and decides.
type PhaseEvent struct {
	Phase   GamePhase
	Actor   *Player  // the player the phase concerns (next actor, combat actor)
	Winners []string // player IDs, set when Phase == PhaseOver
	Resume  bool     // transition continues the same turn, budget intact
}

// AssignTeams alternates red/blue over the given players in order, keeping
// the two teams balanced. Only used in CTF mode.
func AssignTeams(players []*Player) {
	red := 0
	blue := 0
	for _, p := range players {
		p.Flags.Clear(FlagRedTeam)
		p.Flags.Clear(FlagBlueTeam)
		if red <= blue {
			p.Flags.Set(FlagRedTeam)
			red++
		} else {
			p.Flags.Set(FlagBlueTeam)
			blue++
		}
	}
}
