package main

import "container/heap"

// PositionedTile is a transient search node: a tile annotated with its grid
// position, the accumulated path cost to reach it, and a parent pointer for
// path reconstruction. Rebuilt on every search, never persisted.
type PositionedTile struct {
	Pos    Position
	Cost   int
	Parent *PositionedTile
	seq    int // insertion order, breaks cost ties deterministically
	index  int // heap index
}

type searchQueue []*PositionedTile

func (q searchQueue) Len() int { return len(q) }
func (q searchQueue) Less(i, j int) bool {
	if q[i].Cost != q[j].Cost {
		return q[i].Cost < q[j].Cost
	}
	return q[i].seq < q[j].seq
}
func (q searchQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i]; q[i].index = i; q[j].index = j }
func (q *searchQueue) Push(x any) {
	n := x.(*PositionedTile)
	n.index = len(*q)
	*q = append(*q, n)
}
func (q *searchQueue) Pop() any {
	old := *q
	n := old[len(old)-1]
	old[len(old)-1] = nil
	*q = old[:len(old)-1]
	return n
}

// Neighbor order is fixed (up, down, left, right) so equal-cost paths are
// always discovered in the same order.
var neighborDirs = [4][2]int{{0, -1}, {0, 1}, {-1, 0}, {1, 0}}

// Neighbors returns the orthogonally adjacent in-bounds positions of pos
func Neighbors(grid [][]*Tile, pos Position) []Position {
	result := make([]Position, 0, 4)
	for _, d := range neighborDirs {
		n := Position{X: pos.X + d[0], Y: pos.Y + d[1]}
		if TileAt(grid, n) != nil {
			result = append(result, n)
		}
	}
	return result
}

// stepCost returns the cost of stepping onto pos, or false when the step is
// blocked. Other players are obstacles; the mover's own start tile is not.
func stepCost(grid [][]*Tile, pos Position, mover *Player) (int, bool) {
	tile := TileAt(grid, pos)
	if tile == nil {
		return 0, false
	}
	cost, walkable := tile.Type.Cost()
	if !walkable {
		return 0, false
	}
	if tile.Player != nil && tile.Player != mover {
		return 0, false
	}
	return cost, true
}

// ShortestPath runs a Dijkstra search from start to goal and returns the
// minimum-cost path (start excluded, goal included), or nil when the goal is
// unreachable within budget. Ties between equal-cost paths resolve by
// discovery order, which the fixed neighbor ordering keeps deterministic.
func ShortestPath(grid [][]*Tile, start, goal Position, budget int, mover *Player) []Position {
	if start == goal {
		return []Position{}
	}
	startNode := &PositionedTile{Pos: start}
	queue := &searchQueue{startNode}
	heap.Init(queue)

	best := map[Position]int{start: 0}
	seq := 0

	for queue.Len() > 0 {
		cur := heap.Pop(queue).(*PositionedTile)
		if cur.Pos == goal {
			return reconstructPath(cur)
		}
		if cur.Cost > best[cur.Pos] {
			continue
		}
		for _, n := range Neighbors(grid, cur.Pos) {
			cost, ok := stepCost(grid, n, mover)
			if !ok {
				continue
			}
			total := cur.Cost + cost
			if total > budget {
				continue
			}
			if prev, seen := best[n]; seen && prev <= total {
				continue
			}
			best[n] = total
			seq++
			heap.Push(queue, &PositionedTile{Pos: n, Cost: total, Parent: cur, seq: seq})
		}
	}
	return nil
}

func reconstructPath(node *PositionedTile) []Position {
	var path []Position
	for n := node; n.Parent != nil; n = n.Parent {
		path = append(path, n.Pos)
	}
	// Reverse in place: built goal-first
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// ReachableTiles flood-fills from start and returns every position whose
// cumulative path cost fits within budget, mapped to that cost. The start
// tile itself is included at cost 0.
func ReachableTiles(grid [][]*Tile, start Position, budget int, mover *Player) map[Position]int {
	reached := map[Position]int{start: 0}
	startNode := &PositionedTile{Pos: start}
	queue := &searchQueue{startNode}
	heap.Init(queue)
	seq := 0

	for queue.Len() > 0 {
		cur := heap.Pop(queue).(*PositionedTile)
		if cur.Cost > reached[cur.Pos] {
			continue
		}
		for _, n := range Neighbors(grid, cur.Pos) {
			cost, ok := stepCost(grid, n, mover)
			if !ok {
				continue
			}
			total := cur.Cost + cost
			if total > budget {
				continue
			}
			if prev, seen := reached[n]; seen && prev <= total {
				continue
			}
			reached[n] = total
			seq++
			heap.Push(queue, &PositionedTile{Pos: n, Cost: total, Parent: cur, seq: seq})
		}
	}
	return reached
}

// BFSConnectivity returns every position reachable from start ignoring
// movement cost and occupancy. Closed doors count as passable: map
// validation treats a door as a connection, not a barrier.
func BFSConnectivity(grid [][]*Tile, start Position) map[Position]bool {
	visited := map[Position]bool{start: true}
	queue := []Position{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, n := range Neighbors(grid, cur) {
			if visited[n] {
				continue
			}
			tile := TileAt(grid, n)
			if tile.Type == TileWall {
				continue
			}
			visited[n] = true
			queue = append(queue, n)
		}
	}
	return visited
}
