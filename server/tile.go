package main

import (
	"fmt"
	"time"
)

// TileType identifies the terrain of a map cell
type TileType int

const (
	TileBase       TileType = 0
	TileWater      TileType = 1
	TileIce        TileType = 2
	TileWall       TileType = 3
	TileClosedDoor TileType = 4
	TileOpenDoor   TileType = 5
)

// Movement costs per tile type
const (
	CostBase     = 1
	CostWater    = 2
	CostIce      = 0
	CostOpenDoor = 1
)

// Cost returns the movement cost of a tile type and whether it is walkable
func (t TileType) Cost() (int, bool) {
	switch t {
	case TileBase:
		return CostBase, true
	case TileWater:
		return CostWater, true
	case TileIce:
		return CostIce, true
	case TileOpenDoor:
		return CostOpenDoor, true
	default:
		return 0, false
	}
}

// IsDoor returns true for open or closed door tiles
func (t TileType) IsDoor() bool {
	return t == TileClosedDoor || t == TileOpenDoor
}

// Position is a grid coordinate (x = column, y = row)
type Position struct {
	X int `json:"x" msgpack:"x"`
	Y int `json:"y" msgpack:"y"`
}

// Tile is one cell of the in-memory game grid. At most one player occupies
// a tile; an object and a player may co-occupy.
type Tile struct {
	Type   TileType
	Object string // object name, "" if none
	Spawn  bool
	Player *Player
}

// GameMap is the persisted map model consumed at game creation. Tiles is
// indexed [y][x].
type GameMap struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Size        int          `json:"size"`
	Mode        string       `json:"mode"` // "classical" or "ctf"
	Visible     bool         `json:"visible"`
	Tiles       [][]TileSpec `json:"tiles"`
	UpdatedAt   time.Time    `json:"updatedAt,omitempty"`
}

// TileSpec is one persisted map cell
type TileSpec struct {
	Type   TileType `json:"type"`
	Object string   `json:"object,omitempty"`
	Spawn  bool     `json:"spawn,omitempty"`
}

// Map sizes and the player capacity each allows
const (
	MapSizeSmall  = 10
	MapSizeMedium = 15
	MapSizeLarge  = 20
)

// CapacityForSize returns the max player count for a map size
func CapacityForSize(size int) int {
	switch size {
	case MapSizeSmall:
		return 2
	case MapSizeMedium:
		return 4
	case MapSizeLarge:
		return 6
	default:
		return 0
	}
}

// BuildGrid constructs the runtime grid from a persisted map
func BuildGrid(m *GameMap) ([][]*Tile, error) {
	if len(m.Tiles) != m.Size {
		return nil, fmt.Errorf("map %s: expected %d rows, got %d", m.ID, m.Size, len(m.Tiles))
	}
	grid := make([][]*Tile, m.Size)
	for y, row := range m.Tiles {
		if len(row) != m.Size {
			return nil, fmt.Errorf("map %s: row %d has %d cells, expected %d", m.ID, y, len(row), m.Size)
		}
		grid[y] = make([]*Tile, m.Size)
		for x, spec := range row {
			grid[y][x] = &Tile{Type: spec.Type, Object: spec.Object, Spawn: spec.Spawn}
		}
	}
	return grid, nil
}

// TileAt returns the tile at pos, or nil when out of bounds
func TileAt(grid [][]*Tile, pos Position) *Tile {
	if pos.Y < 0 || pos.Y >= len(grid) || pos.X < 0 || pos.X >= len(grid[pos.Y]) {
		return nil
	}
	return grid[pos.Y][pos.X]
}

// SpawnPoints returns all spawn positions of the grid in row-major order
func SpawnPoints(grid [][]*Tile) []Position {
	var spawns []Position
	for y := range grid {
		for x := range grid[y] {
			if grid[y][x].Spawn {
				spawns = append(spawns, Position{X: x, Y: y})
			}
		}
	}
	return spawns
}
