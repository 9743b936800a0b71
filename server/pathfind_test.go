package main

import "testing"

func openGrid(size int) [][]*Tile {
	grid := make([][]*Tile, size)
	for y := range grid {
		grid[y] = make([]*Tile, size)
		for x := range grid[y] {
			grid[y][x] = &Tile{Type: TileBase}
		}
	}
	return grid
}

func TestShortestPathStraightLine(t *testing.T) {
	grid := openGrid(5)
	path := ShortestPath(grid, Position{0, 0}, Position{3, 0}, 10, nil)
	if len(path) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(path))
	}
	if path[2] != (Position{3, 0}) {
		t.Errorf("expected path to end at (3,0), got %v", path[2])
	}
	if path[0] == (Position{0, 0}) {
		t.Error("path should exclude the start tile")
	}
}

func TestShortestPathSameTile(t *testing.T) {
	grid := openGrid(5)
	path := ShortestPath(grid, Position{2, 2}, Position{2, 2}, 10, nil)
	if path == nil || len(path) != 0 {
		t.Errorf("expected empty path for start==goal, got %v", path)
	}
}

func TestShortestPathTieBreakDeterministic(t *testing.T) {
	grid := openGrid(5)
	// Two equal-cost routes to (1,1); the fixed neighbor order must always
	// discover the down-first one
	for i := 0; i < 10; i++ {
		path := ShortestPath(grid, Position{0, 0}, Position{1, 1}, 10, nil)
		if len(path) != 2 {
			t.Fatalf("expected 2 steps, got %d", len(path))
		}
		if path[0] != (Position{0, 1}) {
			t.Fatalf("expected first step (0,1), got %v", path[0])
		}
	}
}

func TestShortestPathAroundWall(t *testing.T) {
	grid := openGrid(5)
	grid[0][1].Type = TileWall
	grid[1][1].Type = TileWall
	path := ShortestPath(grid, Position{0, 0}, Position{2, 0}, 10, nil)
	if path == nil {
		t.Fatal("path should exist around the wall")
	}
	for _, pos := range path {
		if TileAt(grid, pos).Type == TileWall {
			t.Errorf("path crosses wall at %v", pos)
		}
	}
}

func TestShortestPathBudgetExceeded(t *testing.T) {
	grid := openGrid(5)
	if path := ShortestPath(grid, Position{0, 0}, Position{4, 4}, 3, nil); path != nil {
		t.Errorf("expected nil path for out-of-budget goal, got %v", path)
	}
}

func TestShortestPathBlockedByPlayer(t *testing.T) {
	grid := openGrid(3)
	mover := &Player{ID: "a"}
	other := &Player{ID: "b"}
	grid[0][1].Player = other
	grid[1][0].Player = other
	grid[1][1].Player = other
	if path := ShortestPath(grid, Position{0, 0}, Position{2, 2}, 10, mover); path != nil {
		t.Errorf("players should block movement, got %v", path)
	}
}

func TestWaterCostsDouble(t *testing.T) {
	grid := openGrid(5)
	grid[0][1].Type = TileWater
	reached := ReachableTiles(grid, Position{0, 0}, 10, nil)
	if got := reached[Position{1, 0}]; got != 2 {
		t.Errorf("expected cost 2 through water, got %d", got)
	}
	if got := reached[Position{0, 1}]; got != 1 {
		t.Errorf("expected cost 1 on base tile, got %d", got)
	}
}

func TestIceCostsNothing(t *testing.T) {
	grid := openGrid(4)
	grid[0][1].Type = TileIce
	grid[0][2].Type = TileIce
	reached := ReachableTiles(grid, Position{0, 0}, 0, nil)
	if _, ok := reached[Position{2, 0}]; !ok {
		t.Error("ice tiles should be reachable with zero budget")
	}
	if _, ok := reached[Position{0, 1}]; ok {
		t.Error("base tile should not be reachable with zero budget")
	}
	if reached[Position{0, 0}] != 0 {
		t.Error("start tile should be included at cost 0")
	}
}

func TestReachableTilesIncludesStart(t *testing.T) {
	grid := openGrid(3)
	reached := ReachableTiles(grid, Position{1, 1}, 2, nil)
	if cost, ok := reached[Position{1, 1}]; !ok || cost != 0 {
		t.Errorf("expected start at cost 0, got %d (present %v)", cost, ok)
	}
}

func TestBFSConnectivityDoorsPassable(t *testing.T) {
	grid := openGrid(3)
	grid[1][0].Type = TileWall
	grid[1][1].Type = TileClosedDoor
	grid[1][2].Type = TileWall
	reached := BFSConnectivity(grid, Position{0, 0})
	if !reached[Position{0, 2}] {
		t.Error("closed door should connect the two halves")
	}
	if reached[Position{0, 1}] {
		t.Error("wall should not be reachable")
	}
}

func TestBFSConnectivityWallsBlock(t *testing.T) {
	grid := openGrid(3)
	grid[1][0].Type = TileWall
	grid[1][1].Type = TileWall
	grid[1][2].Type = TileWall
	reached := BFSConnectivity(grid, Position{0, 0})
	if reached[Position{0, 2}] {
		t.Error("solid wall row should disconnect the halves")
	}
}
