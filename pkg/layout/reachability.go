package layout

import "github.com/zyedidia/generic/mapset"

var neighbourOffsets = [4]Coord{{X: 0, Y: -1}, {X: 1, Y: 0}, {X: 0, Y: 1}, {X: -1, Y: 0}}

func walkable(grid []string, p Coord) bool {
	if p.Y < 0 || p.Y >= len(grid) || p.X < 0 || p.X >= len(grid[p.Y]) {
		return false
	}
	return grid[p.Y][p.X] != SymbolWall
}

// Reachable reports whether start can reach any of targets by moving
// up/down/left/right through non-wall cells. An empty target list is
// trivially reachable. Each cell is visited at most once.
func Reachable(grid []string, start Coord, targets []Coord) bool {
	if len(targets) == 0 {
		return true
	}
	if !walkable(grid, start) {
		return false
	}

	goals := mapset.New[Coord]()
	for _, t := range targets {
		goals.Put(t)
	}

	visited := mapset.New[Coord]()
	visited.Put(start)
	queue := []Coord{start}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if goals.Has(current) {
			return true
		}

		for _, off := range neighbourOffsets {
			next := Coord{X: current.X + off.X, Y: current.Y + off.Y}
			if visited.Has(next) || !walkable(grid, next) {
				continue
			}
			visited.Put(next)
			queue = append(queue, next)
		}
	}

	return false
}
