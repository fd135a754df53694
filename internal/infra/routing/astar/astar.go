// Package astar implements the time-aware A* single-source shortest
// path search (spec.md §4.6): edge cost combines free-flow travel time
// with the conflict estimator's delay, and the resulting path carries
// an absolute arrival time at every node.
//
// The open set is a binary heap over container/heap, grounded on the
// teacher's pmtiles.priorityQueue/dijkstraNode — the same
// heap.Interface shape, generalized from a single scalar distance to
// the (g, f, tAbs) triple spec.md §4.6 requires, with a best-g map so
// stale heap entries are skipped instead of removed (lazy deletion,
// per spec.md §9 DESIGN NOTES).
package astar

import (
	"container/heap"
	"math"

	"fleetplanner/internal/infra/geo"
	"fleetplanner/internal/infra/routing/conflict"
	"fleetplanner/internal/infra/routing/graph"
	"fleetplanner/internal/infra/routing/reservation"
)

// Node is one reconstructed step of a planned path.
type Node struct {
	Key     string
	AbsTime float64
}

// Result is the outcome of a single A* search.
type Result struct {
	Path      []Node
	TotalCost float64 // elapsed effective time from start, in seconds
	Found     bool
	// Expansions is the number of nodes popped from the open set,
	// exposed so callers can enforce spec.md §5's expansion-budget cap.
	Expansions int
}

// openEntry is one entry in the priority queue.
type openEntry struct {
	node    string
	g       float64
	f       float64
	tAbs    float64
	index   int
}

type openQueue []*openEntry

func (q openQueue) Len() int            { return len(q) }
func (q openQueue) Less(i, j int) bool  { return q[i].f < q[j].f }
func (q openQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i]; q[i].index = i; q[j].index = j }
func (q *openQueue) Push(x any) {
	e := x.(*openEntry)
	e.index = len(*q)
	*q = append(*q, e)
}

func (q *openQueue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*q = old[:n-1]

	return e
}

// Search runs the time-aware A* search from start to goal on g,
// against the given reservation table, for the given vehicle
// (spec.md §4.6). maxExpansions <= 0 means unbounded.
func Search(
	g *graph.Graph,
	gc geo.Config,
	cc conflict.Config,
	tbl *reservation.Table,
	veh conflict.Vehicle,
	startKey, goalKey string,
	startTime float64,
	maxExpansions int,
) Result {
	goalPt, ok := g.Coordinate(goalKey)
	if !ok {
		return Result{}
	}
	if _, ok := g.Coordinate(startKey); !ok {
		return Result{}
	}
	if veh.SpeedMPS <= 0 {
		return Result{}
	}

	heuristic := func(key string) float64 {
		p, ok := g.Coordinate(key)
		if !ok {
			return math.Inf(1)
		}

		return gc.Distance(p, goalPt) / veh.SpeedMPS
	}

	bestG := map[string]float64{startKey: 0}
	parent := map[string]string{}
	tAbsOf := map[string]float64{startKey: startTime}

	pq := &openQueue{}
	heap.Init(pq)
	heap.Push(pq, &openEntry{node: startKey, g: 0, f: heuristic(startKey), tAbs: startTime})

	expansions := 0

	for pq.Len() > 0 {
		current := heap.Pop(pq).(*openEntry)

		if current.g > bestG[current.node] {
			continue // stale entry, lazy deletion
		}

		expansions++
		if maxExpansions > 0 && expansions > maxExpansions {
			return Result{Expansions: expansions}
		}

		if current.node == goalKey {
			return Result{
				Path:       reconstruct(parent, tAbsOf, startKey, goalKey),
				TotalCost:  current.g,
				Found:      true,
				Expansions: expansions,
			}
		}

		relax(g, gc, cc, tbl, veh, current, bestG, parent, tAbsOf, pq, heuristic)
	}

	return Result{Expansions: expansions}
}

func relax(
	g *graph.Graph,
	gc geo.Config,
	cc conflict.Config,
	tbl *reservation.Table,
	veh conflict.Vehicle,
	current *openEntry,
	bestG map[string]float64,
	parent map[string]string,
	tAbsOf map[string]float64,
	pq *openQueue,
	heuristic func(string) float64,
) {
	for v, d := range g.Neighbors(current.node) {
		travel := d / veh.SpeedMPS
		tDep := current.tAbs
		tArrNoWait := tDep + travel

		penalty := cc.Estimate(tbl, current.node, v, tDep, tArrNoWait, veh, d)
		step := travel + penalty

		gv := current.g + step
		if existing, ok := bestG[v]; ok && gv >= existing {
			continue
		}

		bestG[v] = gv
		parent[v] = current.node
		tAbsOf[v] = current.tAbs + step

		heap.Push(pq, &openEntry{node: v, g: gv, f: gv + heuristic(v), tAbs: tAbsOf[v]})
	}
}

func reconstruct(parent map[string]string, tAbsOf map[string]float64, start, goal string) []Node {
	var reversed []Node

	node := goal
	for {
		reversed = append(reversed, Node{Key: node, AbsTime: tAbsOf[node]})
		if node == start {
			break
		}

		prev, ok := parent[node]
		if !ok {
			break
		}
		node = prev
	}

	path := make([]Node, len(reversed))
	for i, n := range reversed {
		path[len(reversed)-1-i] = n
	}

	return path
}
