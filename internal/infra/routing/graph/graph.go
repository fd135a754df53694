// Package graph builds and mutates the planar connectivity graph used
// by the planner: turning road polylines into an undirected weighted
// graph with intersections materialized as nodes (spec.md §4.2), and
// projecting arbitrary coordinates onto it (projector.go, spec.md §4.3).
//
// Node identity follows the teacher's pmtiles.RoadGraph convention of
// deduplicating nodes by a string key rather than an integer index —
// kept here because the graph is keyed by the fixed-precision decimal
// node key spec.md §3/§6 mandates, not an opaque handle.
package graph

import (
	"math"
	"sort"

	"github.com/paulmach/orb"

	"fleetplanner/internal/domain/entity"
	"fleetplanner/internal/infra/geo"
)

// Graph is an undirected weighted adjacency map: node-key -> neighbor
// node-key -> edge weight in meters. Self-loops are forbidden.
type Graph struct {
	geo   geo.Config
	nodes map[string]orb.Point
	adj   map[string]map[string]float64
}

// New creates an empty graph using the given geometry configuration.
func New(gc geo.Config) *Graph {
	return &Graph{
		geo:   gc,
		nodes: make(map[string]orb.Point),
		adj:   make(map[string]map[string]float64),
	}
}

// Clone returns a deep copy suitable as a per-session working graph
// (spec.md §4.7 step 2: projections must not mutate the base graph).
func (g *Graph) Clone() *Graph {
	clone := New(g.geo)
	for k, p := range g.nodes {
		clone.nodes[k] = p
	}
	for u, neighbors := range g.adj {
		clone.adj[u] = make(map[string]float64, len(neighbors))
		for v, w := range neighbors {
			clone.adj[u][v] = w
		}
	}

	return clone
}

// NodeCount returns the number of nodes in the graph.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// Coordinate returns the coordinate of a node key.
func (g *Graph) Coordinate(key string) (orb.Point, bool) {
	p, ok := g.nodes[key]

	return p, ok
}

// Neighbors returns the neighbor map for a node key (nil if absent).
// Callers must not mutate the returned map.
func (g *Graph) Neighbors(key string) map[string]float64 {
	return g.adj[key]
}

// Nodes returns every node key currently in the graph.
func (g *Graph) Nodes() []string {
	keys := make([]string, 0, len(g.nodes))
	for k := range g.nodes {
		keys = append(keys, k)
	}

	return keys
}

// EdgeWeight returns the weight of edge {u,v}, if present.
func (g *Graph) EdgeWeight(u, v string) (float64, bool) {
	neighbors, ok := g.adj[u]
	if !ok {
		return 0, false
	}
	w, ok := neighbors[v]

	return w, ok
}

// addNode registers a node's coordinate, first-write wins (later
// projections may re-add the same node key without disturbing it).
func (g *Graph) addNode(key string, p orb.Point) {
	if _, exists := g.nodes[key]; !exists {
		g.nodes[key] = p
	}
}

// AddEdge inserts an undirected edge {u,v} with the given weight. It
// is a no-op for self-loops (spec.md §3 invariant).
func (g *Graph) AddEdge(uKey string, uPt orb.Point, vKey string, vPt orb.Point, weight float64) {
	if uKey == vKey {
		return
	}

	g.addNode(uKey, uPt)
	g.addNode(vKey, vPt)

	if g.adj[uKey] == nil {
		g.adj[uKey] = make(map[string]float64)
	}
	if g.adj[vKey] == nil {
		g.adj[vKey] = make(map[string]float64)
	}

	g.adj[uKey][vKey] = weight
	g.adj[vKey][uKey] = weight
}

// RemoveEdge deletes the undirected edge {u,v}, if present.
func (g *Graph) RemoveEdge(u, v string) {
	if neighbors, ok := g.adj[u]; ok {
		delete(neighbors, v)
	}
	if neighbors, ok := g.adj[v]; ok {
		delete(neighbors, u)
	}
}

// HasEdge reports whether the undirected edge {u,v} currently exists.
func (g *Graph) HasEdge(u, v string) bool {
	_, ok := g.adj[u][v]

	return ok
}

// segment is a normalized polyline edge before intersection discovery.
// chain tracks the sequence of nodes this original edge has been split
// into so far, in order from a to b — splitAt consults and extends it
// instead of the stale aKey/bKey pair, since a segment crossed by two
// or more other roads is split more than once.
type segment struct {
	polyIdx int
	segIdx  int
	a, b    orb.Point
	aKey    string
	bKey    string
	chain   []chainNode
}

// chainNode is one waypoint (original endpoint or prior split point) of
// a segment's chain.
type chainNode struct {
	key string
	pt  orb.Point
}

// intersectionRecord ties a discovered intersection point to the two
// segments it splits.
type intersectionRecord struct {
	point orb.Point
	segA  *segment
	segB  *segment
}

// Build constructs the base graph from a set of road features,
// following spec.md §4.2's four-step algorithm: normalize, seed edges,
// discover intersections, materialize splits. Blocked/non-road
// features are filtered out up front (spec.md §4.2 "Blocked roads").
func Build(features []entity.RoadFeature, gc geo.Config) *Graph {
	g := New(gc)

	polylines := make([][]orb.Point, 0, len(features))
	loopFlags := make([]bool, 0, len(features))

	for _, f := range features {
		if !f.Eligible() {
			continue
		}

		pts, isLoop, ok := normalizePolyline(f.Polyline, gc)
		if !ok {
			continue
		}

		polylines = append(polylines, pts)
		loopFlags = append(loopFlags, isLoop)
	}

	segments := seedEdges(g, polylines, loopFlags, gc)
	records := discoverIntersections(polylines, loopFlags, segments, gc)
	materializeSplits(g, records, gc)

	return g
}

// normalizePolyline drops consecutive duplicates and detects loops
// (spec.md §4.2 step 1).
func normalizePolyline(coords []entity.Coordinate, gc geo.Config) ([]orb.Point, bool, bool) {
	if len(coords) == 0 {
		return nil, false, false
	}

	pts := make([]orb.Point, 0, len(coords))
	for _, c := range coords {
		p := c.Point()
		if len(pts) > 0 && gc.Equals(pts[len(pts)-1], p) {
			continue
		}
		pts = append(pts, p)
	}

	if len(pts) < 2 {
		return nil, false, false
	}

	isLoop := false
	if len(pts) >= 3 && gc.Equals(pts[0], pts[len(pts)-1]) {
		isLoop = true
		pts = pts[:len(pts)-1]
	}

	return pts, isLoop, true
}

// seedEdges adds each polyline's consecutive-vertex edges (and the
// wrap-around edge for loops) to the graph, per spec.md §4.2 step 2,
// and returns the flat per-polyline segment list step 3 needs.
func seedEdges(g *Graph, polylines [][]orb.Point, loopFlags []bool, gc geo.Config) [][]segment {
	all := make([][]segment, len(polylines))

	for pi, pts := range polylines {
		segs := make([]segment, 0, len(pts))
		n := len(pts)

		for i := 0; i < n-1; i++ {
			a, b := pts[i], pts[i+1]
			aKey, bKey := gc.NodeKey(a), gc.NodeKey(b)
			g.AddEdge(aKey, a, bKey, b, gc.Distance(a, b))
			segs = append(segs, segment{
				polyIdx: pi, segIdx: i, a: a, b: b, aKey: aKey, bKey: bKey,
				chain: []chainNode{{aKey, a}, {bKey, b}},
			})
		}

		if loopFlags[pi] && n >= 3 {
			a, b := pts[n-1], pts[0]
			aKey, bKey := gc.NodeKey(a), gc.NodeKey(b)
			g.AddEdge(aKey, a, bKey, b, gc.Distance(a, b))
			segs = append(segs, segment{
				polyIdx: pi, segIdx: n - 1, a: a, b: b, aKey: aKey, bKey: bKey,
				chain: []chainNode{{aKey, a}, {bKey, b}},
			})
		}

		all[pi] = segs
	}

	return all
}

// discoverIntersections iterates every ordered pair of polylines
// (i<=j), skipping adjacent/self segment pairs, and records every
// intersection point found (spec.md §4.2 step 3).
func discoverIntersections(polylines [][]orb.Point, loopFlags []bool, segments [][]segment, gc geo.Config) []intersectionRecord {
	var records []intersectionRecord

	for i := range segments {
		for j := i; j < len(segments); j++ {
			segsI := segments[i]
			segsJ := segments[j]

			for a := range segsI {
				for b := range segsJ {
					if i == j {
						if adjacentSelf(a, b, len(segsI), loopFlags[i]) {
							continue
						}
						if b <= a {
							continue
						}
					}

					sa, sb := &segsI[a], &segsJ[b]
					pt, ok := gc.Intersect(sa.a, sa.b, sb.a, sb.b)
					if !ok {
						continue
					}

					pt = snapToExistingVertex(pt, polylines, gc)
					records = append(records, intersectionRecord{point: pt, segA: sa, segB: sb})
				}
			}
		}
	}

	return records
}

// adjacentSelf reports whether two segment indices within the same
// polyline share a vertex (consecutive indices, or first-vs-last on a
// loop) and should be skipped per spec.md §4.2 step 3.
func adjacentSelf(a, b, segCount int, isLoop bool) bool {
	if a == b {
		return true
	}
	if abs(a-b) == 1 {
		return true
	}
	if isLoop && ((a == 0 && b == segCount-1) || (b == 0 && a == segCount-1)) {
		return true
	}

	return false
}

func abs(x int) int {
	if x < 0 {
		return -x
	}

	return x
}

// snapToExistingVertex snaps an intersection point to any existing
// polyline vertex within equality tolerance (spec.md §4.2 step 3).
func snapToExistingVertex(pt orb.Point, polylines [][]orb.Point, gc geo.Config) orb.Point {
	for _, pts := range polylines {
		for _, v := range pts {
			if gc.Equals(pt, v) {
				return v
			}
		}
	}

	return pt
}

// materializeSplits inserts every recorded intersection point as a
// node, splitting the hosting edge when the point is interior to it
// (spec.md §4.2 step 4).
func materializeSplits(g *Graph, records []intersectionRecord, gc geo.Config) {
	for _, r := range records {
		splitAt(g, r.point, r.segA, gc)
		splitAt(g, r.point, r.segB, gc)
	}
}

// splitAt inserts x as a node on the sub-edge of s's chain that
// currently hosts it. A segment crossed by two or more other roads is
// split more than once, so the chain — not the segment's original
// (aKey, bKey) endpoints — is the source of truth for which edge is
// live at the time of this call.
func splitAt(g *Graph, x orb.Point, s *segment, gc geo.Config) {
	if gc.Equals(x, s.a) || gc.Equals(x, s.b) {
		return
	}

	xKey := gc.NodeKey(x)

	idx, ok := locateChainEdge(s.chain, x, gc)
	if !ok {
		return
	}

	u, v := s.chain[idx], s.chain[idx+1]
	if xKey == u.key || xKey == v.key {
		return
	}

	if !g.HasEdge(u.key, v.key) {
		return
	}

	g.RemoveEdge(u.key, v.key)
	g.AddEdge(u.key, u.pt, xKey, x, gc.Distance(u.pt, x))
	g.AddEdge(xKey, x, v.key, v.pt, gc.Distance(x, v.pt))

	extended := make([]chainNode, 0, len(s.chain)+1)
	extended = append(extended, s.chain[:idx+1]...)
	extended = append(extended, chainNode{xKey, x})
	extended = append(extended, s.chain[idx+1:]...)
	s.chain = extended
}

// locateChainEdge finds the consecutive pair of chain waypoints whose
// span currently contains x, identified by du+dv summing back to the
// span's own length within a small tolerance (all chain points lie on
// the same original straight segment).
func locateChainEdge(chain []chainNode, x orb.Point, gc geo.Config) (int, bool) {
	for i := 0; i < len(chain)-1; i++ {
		u, v := chain[i], chain[i+1]
		d := gc.Distance(u.pt, v.pt)
		du := gc.Distance(u.pt, x)
		dv := gc.Distance(x, v.pt)

		if du+dv <= d+math.Max(d*1e-9, 1e-6) {
			return i, true
		}
	}

	return 0, false
}

// SortedNodeKeys returns every node key in deterministic ascending
// order, used by tests that assert on graph shape.
func (g *Graph) SortedNodeKeys() []string {
	keys := g.Nodes()
	sort.Strings(keys)

	return keys
}
