package main

import "fmt"

// ValidateMap checks a map before it can be saved or hosted. Every problem
// is reported, not just the first one.
func ValidateMap(m *GameMap) []string {
	var errs []string

	if m.Name == "" {
		errs = append(errs, "map name is required")
	}
	if m.Size != MapSizeSmall && m.Size != MapSizeMedium && m.Size != MapSizeLarge {
		errs = append(errs, fmt.Sprintf("size must be %d, %d or %d", MapSizeSmall, MapSizeMedium, MapSizeLarge))
		return errs
	}
	if len(m.Tiles) != m.Size {
		errs = append(errs, fmt.Sprintf("grid has %d rows, want %d", len(m.Tiles), m.Size))
		return errs
	}
	for y, row := range m.Tiles {
		if len(row) != m.Size {
			errs = append(errs, fmt.Sprintf("row %d has %d tiles, want %d", y, len(row), m.Size))
			return errs
		}
	}

	grid, err := BuildGrid(m)
	if err != nil {
		errs = append(errs, err.Error())
		return errs
	}

	mode := ParseGameMode(m.Mode)
	errs = append(errs, validateTerrain(m, grid)...)
	errs = append(errs, validateDoors(grid)...)
	errs = append(errs, validateSpawns(m, grid, mode)...)
	errs = append(errs, validateObjects(grid, mode)...)
	errs = append(errs, validateConnectivity(grid)...)
	return errs
}

// validateTerrain enforces the walkable-area floor: at least half the grid
// must be traversable
func validateTerrain(m *GameMap, grid [][]*Tile) []string {
	walkable := 0
	for _, row := range grid {
		for _, t := range row {
			if _, ok := t.Type.Cost(); ok || t.Type == TileClosedDoor {
				walkable++
			}
		}
	}
	total := m.Size * m.Size
	if walkable*2 < total {
		return []string{fmt.Sprintf("only %d of %d tiles are traversable, need at least half", walkable, total)}
	}
	return nil
}

// validateDoors requires each door to sit in a wall gap: walls on one axis,
// traversable tiles on the other. Doors on the map edge are rejected
// outright since one side of the gap would be missing.
func validateDoors(grid [][]*Tile) []string {
	var errs []string
	size := len(grid)
	wallAt := func(x, y int) bool {
		return grid[y][x].Type == TileWall
	}
	openAt := func(x, y int) bool {
		t := grid[y][x].Type
		_, ok := t.Cost()
		return ok || t == TileClosedDoor
	}
	for y, row := range grid {
		for x, t := range row {
			if !t.Type.IsDoor() {
				continue
			}
			if x == 0 || y == 0 || x == size-1 || y == size-1 {
				errs = append(errs, fmt.Sprintf("door at (%d,%d) cannot sit on the map edge", x, y))
				continue
			}
			horizontal := wallAt(x-1, y) && wallAt(x+1, y) && openAt(x, y-1) && openAt(x, y+1)
			vertical := wallAt(x, y-1) && wallAt(x, y+1) && openAt(x-1, y) && openAt(x+1, y)
			if !horizontal && !vertical {
				errs = append(errs, fmt.Sprintf("door at (%d,%d) must bridge two walls with open tiles on the other axis", x, y))
			}
		}
	}
	return errs
}

// validateSpawns requires enough spawn points for the map's capacity, on
// traversable tiles
func validateSpawns(m *GameMap, grid [][]*Tile, mode GameMode) []string {
	var errs []string
	capacity := CapacityForSize(m.Size)
	spawns := SpawnPoints(grid)
	if len(spawns) < capacity {
		errs = append(errs, fmt.Sprintf("%d spawn points for capacity %d", len(spawns), capacity))
	}
	for _, pos := range spawns {
		t := TileAt(grid, pos)
		if _, ok := t.Type.Cost(); !ok {
			errs = append(errs, fmt.Sprintf("spawn point at (%d,%d) is not traversable", pos.X, pos.Y))
		}
	}
	return errs
}

// validateObjects checks object placement and the mode's flag requirement
func validateObjects(grid [][]*Tile, mode GameMode) []string {
	var errs []string
	flags := 0
	for y, row := range grid {
		for x, t := range row {
			if t.Object == "" {
				continue
			}
			if _, known := ObjectCatalogMap[t.Object]; !known {
				errs = append(errs, fmt.Sprintf("unknown object %q at (%d,%d)", t.Object, x, y))
				continue
			}
			if _, ok := t.Type.Cost(); !ok {
				errs = append(errs, fmt.Sprintf("object %q at (%d,%d) is not on a traversable tile", t.Object, x, y))
			}
			if t.Spawn {
				errs = append(errs, fmt.Sprintf("object %q at (%d,%d) overlaps a spawn point", t.Object, x, y))
			}
			if t.Object == ObjectFlag {
				flags++
			}
		}
	}
	if mode == ModeCTF && flags != 1 {
		errs = append(errs, fmt.Sprintf("capture the flag needs exactly one flag, found %d", flags))
	}
	if mode == ModeClassical && flags > 0 {
		errs = append(errs, "classical maps cannot place flags")
	}
	return errs
}

// validateConnectivity requires every traversable tile to be reachable from
// every other; closed doors count as passable for this check
func validateConnectivity(grid [][]*Tile) []string {
	var start *Position
	traversable := 0
	for y, row := range grid {
		for x, t := range row {
			_, ok := t.Type.Cost()
			if !ok && t.Type != TileClosedDoor {
				continue
			}
			traversable++
			if start == nil {
				start = &Position{X: x, Y: y}
			}
		}
	}
	if start == nil {
		return []string{"map has no traversable tiles"}
	}
	reached := BFSConnectivity(grid, *start)
	if len(reached) != traversable {
		return []string{fmt.Sprintf("%d traversable tiles are unreachable", traversable-len(reached))}
	}
	return nil
}
