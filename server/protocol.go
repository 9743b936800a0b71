package main

import "encoding/json"

// Client -> Server message types
const (
	MsgCreateRoom   = "create_room"
	MsgJoinRoom     = "join_room"
	MsgLeaveRoom    = "leave_room"
	MsgToggleLock   = "toggle_lock"
	MsgKickPlayer   = "kick_player"
	MsgAddVirtual   = "add_virtual"
	MsgStartGame    = "start_game"
	MsgMove         = "move"
	MsgDoor         = "door"
	MsgCombat       = "combat" // initiate combat against an adjacent player
	MsgAttack       = "attack"
	MsgEvade        = "evade"
	MsgEndTurn      = "end_turn"
	MsgToggleDebug  = "toggle_debug"
	MsgSelectObject = "select_object" // resolve a full-inventory pickup
)

// Server -> Client message types
const (
	MsgState       = "state" // binary msgpack GameBase, see Client.SendBinary
	MsgRoster      = "roster"
	MsgCreated     = "created"
	MsgJoined      = "joined"
	MsgAccessible  = "accessible"
	MsgCombatStart = "combat_start"
	MsgAttackRes   = "attack_result"
	MsgEvadeRes    = "evade_result"
	MsgCombatEnd   = "combat_end"
	MsgTurnChange  = "turn_change"
	MsgTimerTick   = "timer_tick"
	MsgNotify      = "notify"
	MsgRedirect    = "redirect"
	MsgGameOver    = "game_over"
	MsgSelect      = "select_prompt"
	MsgError       = "error"
)

// Envelope wraps all outgoing JSON messages with a type field
type Envelope struct {
	T    string      `json:"t"`
	Data interface{} `json:"d,omitempty"`
}

// InEnvelope is used for incoming messages — json.RawMessage avoids double-unmarshal
type InEnvelope struct {
	T string          `json:"t"`
	D json.RawMessage `json:"d,omitempty"`
}

// CreateRoomMsg starts a waiting room for the given map
type CreateRoomMsg struct {
	MapID         string `json:"mapId"`
	Name          string `json:"name"`
	Avatar        string `json:"avatar"`
	AttackD6      bool   `json:"attackD6"`
	BonusOnHealth bool   `json:"bonusOnHealth"`
}

// JoinRoomMsg joins an existing waiting room by code
type JoinRoomMsg struct {
	Code          string `json:"code"`
	Name          string `json:"name"`
	Avatar        string `json:"avatar"`
	AttackD6      bool   `json:"attackD6"`
	BonusOnHealth bool   `json:"bonusOnHealth"`
}

// TileMsg carries a target tile for move/door/combat actions
type TileMsg struct {
	Pos Position `json:"pos"`
}

// KickMsg names the player to remove from the waiting room
type KickMsg struct {
	PlayerID string `json:"pid"`
}

// AddVirtualMsg adds a bot with the given profile to the waiting room
type AddVirtualMsg struct {
	Profile string `json:"profile"` // "aggressive" or "defensive"
}

// SelectObjectMsg resolves a pending pickup by naming the object to keep out
// of the inventory
type SelectObjectMsg struct {
	Drop string `json:"drop"`
}

// PlayerState is the wire representation of a player
type PlayerState struct {
	ID          string      `json:"id" msgpack:"id"`
	Name        string      `json:"name" msgpack:"name"`
	Avatar      string      `json:"avatar" msgpack:"avatar"`
	Attributes  Attributes  `json:"attributes" msgpack:"attributes"`
	Stats       PlayerStats `json:"stats" msgpack:"stats"`
	Inventory   []string    `json:"inventory" msgpack:"inventory"`
	Flags       uint32      `json:"flags" msgpack:"flags"`
	Pos         Position    `json:"pos" msgpack:"pos"`
	MovesLeft   int         `json:"movesLeft" msgpack:"movesLeft"`
	ActionsLeft int         `json:"actionsLeft" msgpack:"actionsLeft"`

	// Share of the grid this player has stepped on, 0-100
	TilesPercent float64 `json:"tilesPercent" msgpack:"tilesPercent"`
}

// TileState is the wire representation of one grid cell
type TileState struct {
	Type   TileType `json:"type" msgpack:"type"`
	Object string   `json:"object,omitempty" msgpack:"object,omitempty"`
	Spawn  bool     `json:"spawn,omitempty" msgpack:"spawn,omitempty"`
	Player string   `json:"player,omitempty" msgpack:"player,omitempty"` // occupying player ID
}

// GameStatsState is the wire representation of global game stats
type GameStatsState struct {
	DurationSec   float64 `json:"durationSec" msgpack:"durationSec"`
	Turns         int     `json:"turns" msgpack:"turns"`
	DoorsPercent  float64 `json:"doorsPercent" msgpack:"doorsPercent"`
	TilesPercent  float64 `json:"tilesPercent" msgpack:"tilesPercent"`
	FlagHolders   int     `json:"flagHolders" msgpack:"flagHolders"`
}

// GameBase is the full authoritative snapshot pushed to a game room. It is
// msgpack-encoded and sent as a binary frame.
type GameBase struct {
	Code    string         `json:"code" msgpack:"code"`
	Mode    string         `json:"mode" msgpack:"mode"`
	Size    int            `json:"size" msgpack:"size"`
	Tiles   [][]TileState  `json:"tiles" msgpack:"tiles"`
	Players []PlayerState  `json:"players" msgpack:"players"`
	Data    uint32         `json:"data" msgpack:"data"` // GameData flag bits
	Stats   GameStatsState `json:"stats" msgpack:"stats"`
	Active  string         `json:"active" msgpack:"active"` // active player ID
	Turn    int            `json:"turn" msgpack:"turn"`
}

// RosterMsg is the waiting-room membership update
type RosterMsg struct {
	Code     string        `json:"code"`
	MapName  string        `json:"mapName"`
	Capacity int           `json:"capacity"`
	Locked   bool          `json:"locked"`
	Players  []PlayerState `json:"players"`
}

// AccessibleMsg carries the active player's reachable tiles and their costs
type AccessibleMsg struct {
	Tiles []AccessibleTile `json:"tiles"`
}

// AccessibleTile is one reachable position with its path cost
type AccessibleTile struct {
	Pos  Position `json:"pos"`
	Cost int      `json:"cost"`
}

// CombatStartMsg announces a new combat session
type CombatStartMsg struct {
	AttackerID string `json:"aid"`
	DefenderID string `json:"did"`
}

// AttackResultMsg reports one attack exchange
type AttackResultMsg struct {
	AttackerID  string `json:"aid"`
	DefenderID  string `json:"did"`
	AttackRoll  int    `json:"attackRoll"`
	DefenseRoll int    `json:"defenseRoll"`
	Damage      int    `json:"damage"`
	Health      int    `json:"health"` // defender health after the hit
}

// EvadeResultMsg reports an escape attempt
type EvadeResultMsg struct {
	PlayerID     string `json:"pid"`
	Success      bool   `json:"success"`
	AttemptsLeft int    `json:"attemptsLeft"`
}

// CombatEndMsg closes a combat session. Winner/Loser are empty on evasion.
type CombatEndMsg struct {
	WinnerID string `json:"wid,omitempty"`
	LoserID  string `json:"lid,omitempty"`
	Evaded   bool   `json:"evaded,omitempty"`
}

// TurnChangeMsg announces the next active player
type TurnChangeMsg struct {
	PlayerID string `json:"pid"`
	Turn     int    `json:"turn"`
}

// TimerTickMsg is pushed once per second of an armed countdown
type TimerTickMsg struct {
	SecondsLeft int `json:"secondsLeft"`
}

// NotifyMsg is a generic user-facing notification
type NotifyMsg struct {
	Message string `json:"message"`
	IsError bool   `json:"isError,omitempty"`
}

// RedirectMsg tells a client to navigate to a route
type RedirectMsg struct {
	Route string `json:"route"`
}

// GameOverMsg announces the match outcome
type GameOverMsg struct {
	WinnerIDs []string       `json:"winnerIds"`
	Stats     GameStatsState `json:"stats"`
	Players   []PlayerState  `json:"players"`
}

// SelectPromptMsg asks a player to resolve a full-inventory pickup
type SelectPromptMsg struct {
	Held   []string `json:"held"`
	Picked string   `json:"picked"`
}

// ErrorMsg sends an error to the client
type ErrorMsg struct {
	Msg string `json:"msg"`
}
