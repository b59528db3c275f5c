package mapgen

import "math"

// graphNode is a mutable search node; disabled nodes are skipped by the
// pathfinder so repeated searches carve distinct routes.
type graphNode struct {
	id        int
	pos       Point
	neighbors []int
	disabled  bool
}

type graph struct {
	nodes []*graphNode
}

// buildGraph links every point to its nearest neighbors, both ways, so
// the field is traversable without a full triangulation.
func buildGraph(points []Point) *graph {
	g := &graph{nodes: make([]*graphNode, len(points))}
	for i, p := range points {
		g.nodes[i] = &graphNode{id: i, pos: p}
	}
	for i := range points {
		for _, j := range nearest(points, i, neighborK) {
			g.link(i, j)
		}
	}
	return g
}

func (g *graph) link(a, b int) {
	if a == b || contains(g.nodes[a].neighbors, b) {
		return
	}
	g.nodes[a].neighbors = append(g.nodes[a].neighbors, b)
	g.nodes[b].neighbors = append(g.nodes[b].neighbors, a)
}

// shortestPath runs A* between two node ids, honoring disabled flags.
// Returns nil when no route survives.
func (g *graph) shortestPath(startID, endID int) []int {
	n := len(g.nodes)
	gScore := make([]float64, n)
	fScore := make([]float64, n)
	cameFrom := make([]int, n)
	inOpen := make([]bool, n)
	for i := range gScore {
		gScore[i] = math.Inf(1)
		fScore[i] = math.Inf(1)
		cameFrom[i] = -1
	}
	gScore[startID] = 0
	fScore[startID] = dist(g.nodes[startID].pos, g.nodes[endID].pos)
	inOpen[startID] = true
	open := 1

	for open > 0 {
		current := -1
		best := math.Inf(1)
		for i, in := range inOpen {
			if in && fScore[i] < best {
				best = fScore[i]
				current = i
			}
		}
		if current == -1 {
			break
		}
		if current == endID {
			return reconstruct(cameFrom, current)
		}
		inOpen[current] = false
		open--

		for _, nb := range g.nodes[current].neighbors {
			if g.nodes[nb].disabled {
				continue
			}
			tentative := gScore[current] + dist(g.nodes[current].pos, g.nodes[nb].pos)
			if tentative < gScore[nb] {
				cameFrom[nb] = current
				gScore[nb] = tentative
				fScore[nb] = tentative + dist(g.nodes[nb].pos, g.nodes[endID].pos)
				if !inOpen[nb] {
					inOpen[nb] = true
					open++
				}
			}
		}
	}
	return nil
}

func reconstruct(cameFrom []int, current int) []int {
	path := []int{current}
	for cameFrom[current] != -1 {
		current = cameFrom[current]
		path = append([]int{current}, path...)
	}
	return path
}

func dist(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// nearest returns the k closest point indices to points[i].
func nearest(points []Point, i, k int) []int {
	type cand struct {
		id int
		d  float64
	}
	var cands []cand
	for j, p := range points {
		if j == i {
			continue
		}
		cands = append(cands, cand{j, dist(points[i], p)})
	}
	for a := 0; a < len(cands); a++ {
		for b := a + 1; b < len(cands); b++ {
			if cands[b].d < cands[a].d {
				cands[a], cands[b] = cands[b], cands[a]
			}
		}
	}
	if k > len(cands) {
		k = len(cands)
	}
	out := make([]int, 0, k)
	for _, c := range cands[:k] {
		out = append(out, c.id)
	}
	return out
}

func contains(xs []int, x int) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
