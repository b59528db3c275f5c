// Package mapgen generates the run's node graph: a DAG from a start node
// to a single boss sink, carved out of a random point field by repeated
// shortest-path searches. Self-contained and pure.
package mapgen

import (
	"fmt"
	"math/rand"
)

// NodeType classifies what happens when the party lands on a node.
type NodeType string

const (
	TypeStart  NodeType = "Start"
	TypeNormal NodeType = "Normal Battle"
	TypeElite  NodeType = "Elite Battle"
	TypeBoss   NodeType = "Boss"
	TypeRest   NodeType = "Rest Site"
	TypeShop   NodeType = "Shop"
	TypeEvent  NodeType = "Unknown Event"
)

// Point is a node's layout position on the map plane.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is one stop on the generated map.
type Node struct {
	ID   string   `json:"id"`
	Pos  Point    `json:"pos"`
	Type NodeType `json:"type"`
}

// Connection is a directed edge between two nodes.
type Connection struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Map is the generated node graph.
type Map struct {
	Nodes       map[string]Node `json:"nodes"`
	Connections []Connection    `json:"connections"`
}

// Generation tuning.
const (
	planeWidth  = 25.0
	planeHeight = 40.0
	minDistance = 5.0
	pathCount   = 12
	neighborK   = 4
)

// nonBattleWeights drives the random retyping of interior nodes.
var nonBattleWeights = []struct {
	t NodeType
	w int
}{
	{TypeNormal, 45},
	{TypeElite, 15},
	{TypeRest, 14},
	{TypeShop, 13},
	{TypeEvent, 13},
}

// Generate builds a fresh map. Point 0 is the start (top of the plane),
// point 1 the boss sink. The graph is the union of repeated A* paths
// between them, with a random interior node knocked out after each pass
// to force branching.
func Generate(rng *rand.Rand) Map {
	points := []Point{
		{X: planeWidth / 2, Y: 0},
		{X: planeWidth / 2, Y: planeHeight},
	}

	nodeCount := int(planeWidth*planeHeight) / 15
	attempts := 0
	for i := 0; i < nodeCount && attempts < 2000; i++ {
		for attempts < 2000 {
			attempts++
			p := Point{
				X: float64(rng.Intn(int(planeWidth))),
				Y: float64(rng.Intn(int(planeHeight))),
			}
			if !tooClose(points, p) {
				points = append(points, p)
				break
			}
		}
	}

	g := buildGraph(points)
	var paths [][]int
	for i := 0; i < pathCount; i++ {
		path := g.shortestPath(0, 1)
		if len(path) == 0 {
			break
		}
		paths = append(paths, path)
		if len(path) > 2 {
			// Disable a random interior hop so the next pass diverges.
			g.nodes[path[1+rng.Intn(len(path)-2)]].disabled = true
		}
	}
	for _, n := range g.nodes {
		n.disabled = false
	}

	m := Map{Nodes: map[string]Node{}}
	for _, path := range paths {
		for _, id := range path {
			key := nodeKey(id)
			if _, ok := m.Nodes[key]; !ok {
				m.Nodes[key] = Node{ID: key, Pos: points[id], Type: rollType(rng)}
			}
		}
		for i := 0; i < len(path)-1; i++ {
			conn := Connection{From: nodeKey(path[i]), To: nodeKey(path[i+1])}
			if !hasConnection(m.Connections, conn) {
				m.Connections = append(m.Connections, conn)
			}
		}
	}

	start := m.Nodes[nodeKey(0)]
	start.Type = TypeStart
	m.Nodes[nodeKey(0)] = start
	boss := m.Nodes[nodeKey(1)]
	boss.Type = TypeBoss
	m.Nodes[nodeKey(1)] = boss

	return m
}

// StartID is the entry node's key.
func (m Map) StartID() string { return nodeKey(0) }

// BossID is the boss sink's key.
func (m Map) BossID() string { return nodeKey(1) }

// Successors returns the ids reachable one hop from a node.
func (m Map) Successors(id string) []string {
	var out []string
	for _, c := range m.Connections {
		if c.From == id {
			out = append(out, c.To)
		}
	}
	return out
}

func nodeKey(id int) string { return fmt.Sprintf("node-%d", id) }

func tooClose(points []Point, p Point) bool {
	for _, q := range points {
		dx, dy := q.X-p.X, q.Y-p.Y
		if dx*dx+dy*dy < minDistance*minDistance {
			return true
		}
	}
	return false
}

func hasConnection(conns []Connection, c Connection) bool {
	for _, e := range conns {
		if e == c {
			return true
		}
	}
	return false
}

func rollType(rng *rand.Rand) NodeType {
	total := 0
	for _, nw := range nonBattleWeights {
		total += nw.w
	}
	r := rng.Intn(total)
	for _, nw := range nonBattleWeights {
		if r < nw.w {
			return nw.t
		}
		r -= nw.w
	}
	return TypeNormal
}
