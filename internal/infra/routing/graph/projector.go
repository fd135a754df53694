package graph

import (
	"math"
	"sort"

	"github.com/paulmach/orb"

	"fleetplanner/internal/infra/geo"
)

// ProjectionResult is the outcome of snapping a coordinate onto a
// graph (spec.md §4.3).
type ProjectionResult struct {
	NodeKey  string
	Point    orb.Point
	Distance float64
	// Inserted reports whether a new node was created (the point was
	// strictly interior to an edge).
	Inserted bool
}

// candidate tracks the running best locus during the nearest search.
// Nodes beat segments at equal distance; among segments, first-seen
// wins (spec.md §4.3 step 1 tie-break).
type candidate struct {
	dist    float64
	isNode  bool
	nodeKey string
	point   orb.Point
	edgeA   string
	edgeB   string
	set     bool
}

func (c *candidate) considerNode(key string, p orb.Point, dist float64) {
	if !c.set || dist < c.dist || (dist == c.dist && !c.isNode) {
		*c = candidate{dist: dist, isNode: true, nodeKey: key, point: p, set: true}
	}
}

func (c *candidate) considerSegment(a, b string, p orb.Point, dist float64) {
	if !c.set || dist < c.dist {
		*c = candidate{dist: dist, isNode: false, point: p, edgeA: a, edgeB: b, set: true}
	}
}

// Project snaps a target coordinate onto the graph, inserting a new
// node when the nearest locus lies strictly interior to an edge
// (spec.md §4.3). It mutates g. Returns ok=false when the graph has no
// nodes to project against.
func Project(g *Graph, target orb.Point, gc geo.Config) (ProjectionResult, bool) {
	if g.NodeCount() == 0 {
		return ProjectionResult{}, false
	}

	best := findNearestLocus(g, target, gc)
	if !best.set {
		return ProjectionResult{}, false
	}

	if best.isNode {
		return ProjectionResult{NodeKey: best.nodeKey, Point: best.point, Distance: best.dist}, true
	}

	xKey := gc.NodeKey(best.point)
	if _, exists := g.nodes[xKey]; !exists {
		insertProjectedNode(g, best, xKey, gc)

		return ProjectionResult{NodeKey: xKey, Point: best.point, Distance: best.dist, Inserted: true}, true
	}

	return ProjectionResult{NodeKey: xKey, Point: best.point, Distance: best.dist}, true
}

// findNearestLocus scans every node then every undirected edge once,
// tracking the minimum-distance locus (spec.md §4.3 step 1).
func findNearestLocus(g *Graph, target orb.Point, gc geo.Config) candidate {
	var best candidate

	for key, p := range g.nodes {
		best.considerNode(key, p, gc.Distance(target, p))
	}

	visited := make(map[string]bool)
	for u, neighbors := range g.adj {
		up := g.nodes[u]
		for v := range neighbors {
			key := gc.SegmentKey(u, v)
			if visited[key] {
				continue
			}
			visited[key] = true

			vp := g.nodes[v]
			proj := geo.ProjectOntoSegment(up, vp, target)
			best.considerSegment(u, v, proj, gc.Distance(target, proj))
		}
	}

	return best
}

// insertProjectedNode deletes the host edge and inserts (A,P),(P,B)
// with haversine weights (spec.md §4.3 step 3 / §3 split invariant).
func insertProjectedNode(g *Graph, best candidate, xKey string, gc geo.Config) {
	a, b := best.edgeA, best.edgeB
	aPt, bPt := g.nodes[a], g.nodes[b]

	g.RemoveEdge(a, b)
	g.AddEdge(a, aPt, xKey, best.point, gc.Distance(aPt, best.point))
	g.AddEdge(xKey, best.point, b, bPt, gc.Distance(best.point, bPt))
}

// Locate performs the same nearest-locus search as Project but never
// mutates g — used by the fleet orchestrator's concurrent
// pre-validation pass, where many goroutines read the base graph
// before any request's authoritative projection runs. Returns ok=false
// only when the graph has no nodes.
func Locate(g *Graph, target orb.Point, gc geo.Config) (float64, bool) {
	if g.NodeCount() == 0 {
		return 0, false
	}

	best := findNearestLocus(g, target, gc)
	if !best.set {
		return 0, false
	}

	return best.dist, true
}

// NearestK is a diagnostic helper (not on the planning hot path) that
// returns up to k node keys closest to target, sorted by distance.
// Grounded on ch.GridIndex.NearestK (spatial.go): a grid cell index
// built over the graph's current nodes, searched in expanding rings
// around target's cell with the same early-termination rule (stop once
// the next ring's minimum possible distance can't beat the k-th
// candidate found so far).
func NearestK(g *Graph, target orb.Point, k int, gc geo.Config) []string {
	idx := newGridIndex(g)

	return idx.nearestK(target, k)
}

// gridCell identifies one cell of gridIndex's lat/lng grid.
type gridCell struct {
	latCell int
	lngCell int
}

// gridIndex is a lightweight ring-expansion spatial index over a
// graph's node set, adapted from ch.GridIndex for NearestK's
// diagnostic lookups. Rebuilt per call since NearestK targets
// already-small per-session working graphs, not the base graph.
type gridIndex struct {
	keys        []string
	points      []orb.Point
	cells       map[gridCell][]int
	cellSizeLat float64
	cellSizeLng float64
	minLat      float64
	minLng      float64
	maxLat      float64
	maxLng      float64
}

// nearestKCellMeters mirrors ch.NewGridIndex's cellSizeKm parameter.
const nearestKCellMeters = 250.0

func newGridIndex(g *Graph) *gridIndex {
	idx := &gridIndex{cells: make(map[gridCell][]int)}
	if len(g.nodes) == 0 {
		return idx
	}

	idx.keys = make([]string, 0, len(g.nodes))
	idx.points = make([]orb.Point, 0, len(g.nodes))
	for key, p := range g.nodes {
		idx.keys = append(idx.keys, key)
		idx.points = append(idx.points, p)
	}

	idx.minLat, idx.maxLat = idx.points[0][1], idx.points[0][1]
	idx.minLng, idx.maxLng = idx.points[0][0], idx.points[0][0]
	for _, p := range idx.points {
		idx.minLat = math.Min(idx.minLat, p[1])
		idx.maxLat = math.Max(idx.maxLat, p[1])
		idx.minLng = math.Min(idx.minLng, p[0])
		idx.maxLng = math.Max(idx.maxLng, p[0])
	}

	// 1 degree latitude is ~111km everywhere; longitude shrinks with
	// cos(latitude), same approximation ch.NewGridIndex uses.
	midLatRad := (idx.minLat + idx.maxLat) / 2 * math.Pi / 180
	lngScale := math.Max(math.Cos(midLatRad), 0.01)
	idx.cellSizeLat = nearestKCellMeters / 111000.0
	idx.cellSizeLng = nearestKCellMeters / (111000.0 * lngScale)

	for i, p := range idx.points {
		key := idx.cellKey(p)
		idx.cells[key] = append(idx.cells[key], i)
	}

	return idx
}

func (idx *gridIndex) cellKey(p orb.Point) gridCell {
	return gridCell{
		latCell: int(math.Floor((p[1] - idx.minLat) / idx.cellSizeLat)),
		lngCell: int(math.Floor((p[0] - idx.minLng) / idx.cellSizeLng)),
	}
}

func (idx *gridIndex) maxSearchRing() int {
	latCells := int(math.Ceil((idx.maxLat - idx.minLat) / idx.cellSizeLat))
	lngCells := int(math.Ceil((idx.maxLng - idx.minLng) / idx.cellSizeLng))

	return max(latCells, lngCells) + 1
}

func (idx *gridIndex) minDistanceToRingSq(ring int) float64 {
	d := float64(ring-1) * math.Min(idx.cellSizeLat, idx.cellSizeLng)

	return d * d
}

type gridCandidate struct {
	idx    int
	distSq float64
}

func (idx *gridIndex) collectRing(target orb.Point, center gridCell, ring int) []gridCandidate {
	var results []gridCandidate

	visit := func(cell gridCell) {
		for _, i := range idx.cells[cell] {
			p := idx.points[i]
			dLat, dLng := p[1]-target[1], p[0]-target[0]
			results = append(results, gridCandidate{idx: i, distSq: dLat*dLat + dLng*dLng})
		}
	}

	if ring == 0 {
		visit(center)

		return results
	}

	for dLat := -ring; dLat <= ring; dLat++ {
		for dLng := -ring; dLng <= ring; dLng++ {
			if abs(dLat) != ring && abs(dLng) != ring {
				continue
			}
			visit(gridCell{latCell: center.latCell + dLat, lngCell: center.lngCell + dLng})
		}
	}

	return results
}

// nearestK runs ch.GridIndex.NearestK's ring-expansion search: grow the
// search radius one ring at a time, stopping once enough candidates are
// in hand and the next ring cannot possibly contain anything closer.
func (idx *gridIndex) nearestK(target orb.Point, k int) []string {
	if len(idx.points) == 0 || k <= 0 {
		return nil
	}

	center := idx.cellKey(target)
	var candidates []gridCandidate

	for ring := 0; ring <= idx.maxSearchRing(); ring++ {
		candidates = append(candidates, idx.collectRing(target, center, ring)...)

		if len(candidates) >= k && ring > 0 {
			sort.Slice(candidates, func(i, j int) bool { return candidates[i].distSq < candidates[j].distSq })
			kth := candidates[min(k, len(candidates))-1].distSq
			if idx.minDistanceToRingSq(ring+1) >= kth {
				break
			}
		}
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].distSq < candidates[j].distSq })

	k = min(k, len(candidates))
	out := make([]string, k)
	for i := 0; i < k; i++ {
		out[i] = idx.keys[candidates[i].idx]
	}

	return out
}
