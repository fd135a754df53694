package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetplanner/internal/domain/entity"
	"fleetplanner/internal/infra/geo"
)

func coord(lat, lng float64) entity.Coordinate {
	return entity.Coordinate{Lat: lat, Lng: lng}
}

func TestBuild_SimplePolyline_ProducesUndirectedGraph(t *testing.T) {
	gc := geo.DefaultConfig()

	features := []entity.RoadFeature{
		{
			ID:       "road-1",
			Kind:     entity.FeatureKindRoad,
			Polyline: []entity.Coordinate{coord(0, 0), coord(0, 1), coord(0, 2)},
		},
	}

	g := Build(features, gc)

	assert.Equal(t, 3, g.NodeCount())

	keys := g.SortedNodeKeys()
	require.Len(t, keys, 3)

	// undirected: every edge weight is symmetric
	for _, u := range keys {
		for v, w := range g.Neighbors(u) {
			w2, ok := g.EdgeWeight(v, u)
			require.True(t, ok)
			assert.InDelta(t, w, w2, 1e-9)
		}
	}
}

func TestBuild_BlockedFeature_ExcludedFromGraph(t *testing.T) {
	gc := geo.DefaultConfig()

	features := []entity.RoadFeature{
		{ID: "blocked", Kind: entity.FeatureKindRoad, IsBlocked: true, Polyline: []entity.Coordinate{coord(0, 0), coord(0, 1)}},
	}

	g := Build(features, gc)

	assert.Equal(t, 0, g.NodeCount())
}

func TestBuild_NonRoadFeature_ExcludedFromGraph(t *testing.T) {
	gc := geo.DefaultConfig()

	features := []entity.RoadFeature{
		{ID: "marker", Kind: entity.FeatureKindMarker, Polyline: []entity.Coordinate{coord(0, 0), coord(0, 1)}},
	}

	g := Build(features, gc)

	assert.Equal(t, 0, g.NodeCount())
}

func TestBuild_CrossingRoads_SplitAtIntersection(t *testing.T) {
	gc := geo.DefaultConfig()

	features := []entity.RoadFeature{
		{ID: "horizontal", Kind: entity.FeatureKindRoad, Polyline: []entity.Coordinate{coord(0, -1), coord(0, 1)}},
		{ID: "vertical", Kind: entity.FeatureKindRoad, Polyline: []entity.Coordinate{coord(-1, 0), coord(1, 0)}},
	}

	g := Build(features, gc)

	// four original endpoints plus the crossing point
	assert.Equal(t, 5, g.NodeCount())

	crossing := gc.NodeKey(coord(0, 0).Point())
	neighbors := g.Neighbors(crossing)
	assert.Len(t, neighbors, 4)
}

func TestBuild_ThreeRoadsCrossOneCorridor_SplitsAtBothPoints(t *testing.T) {
	gc := geo.DefaultConfig()

	// main runs along the equator so haversine distance is additive
	// along its length; crosser1 and crosser2 each cross it once, at
	// two distinct interior points.
	main := coord(0, -2)
	x1 := coord(0, -1)
	x2 := coord(0, 1)
	mainEnd := coord(0, 2)

	features := []entity.RoadFeature{
		{ID: "main", Kind: entity.FeatureKindRoad, Polyline: []entity.Coordinate{main, mainEnd}},
		{ID: "crosser1", Kind: entity.FeatureKindRoad, Polyline: []entity.Coordinate{coord(-1, -1), coord(1, -1)}},
		{ID: "crosser2", Kind: entity.FeatureKindRoad, Polyline: []entity.Coordinate{coord(-1, 1), coord(1, 1)}},
	}

	g := Build(features, gc)

	// 2 endpoints each for main/crosser1/crosser2, plus 2 crossing points
	assert.Equal(t, 8, g.NodeCount())

	mainKey := gc.NodeKey(main.Point())
	x1Key := gc.NodeKey(x1.Point())
	x2Key := gc.NodeKey(x2.Point())
	mainEndKey := gc.NodeKey(mainEnd.Point())

	// both crossings must be materialized as nodes with degree 4
	// (two neighbors along main, two along the crossing road)
	assert.Len(t, g.Neighbors(x1Key), 4)
	assert.Len(t, g.Neighbors(x2Key), 4)

	// main's original edge must be fully replaced by its three-hop
	// chain — the stale (main, mainEnd) edge, and the edge from the
	// first split point straight to mainEnd, must both be gone.
	assert.False(t, g.HasEdge(mainKey, mainEndKey))
	assert.False(t, g.HasEdge(x1Key, mainEndKey))
	assert.True(t, g.HasEdge(mainKey, x1Key))
	assert.True(t, g.HasEdge(x1Key, x2Key))
	assert.True(t, g.HasEdge(x2Key, mainEndKey))

	// split weight conservation (spec.md §8 property #4): the three
	// sub-edge distances along main must sum back to the original.
	w1, ok := g.EdgeWeight(mainKey, x1Key)
	require.True(t, ok)
	w2, ok := g.EdgeWeight(x1Key, x2Key)
	require.True(t, ok)
	w3, ok := g.EdgeWeight(x2Key, mainEndKey)
	require.True(t, ok)

	total := gc.Distance(main.Point(), mainEnd.Point())
	assert.InDelta(t, total, w1+w2+w3, 1e-6)
}

func TestBuild_LoopPolyline_WrapsAround(t *testing.T) {
	gc := geo.DefaultConfig()

	features := []entity.RoadFeature{
		{
			ID:   "loop",
			Kind: entity.FeatureKindRoad,
			Polyline: []entity.Coordinate{
				coord(0, 0), coord(0, 1), coord(1, 1), coord(1, 0), coord(0, 0),
			},
		},
	}

	g := Build(features, gc)

	assert.Equal(t, 4, g.NodeCount())
	for _, k := range g.SortedNodeKeys() {
		assert.Len(t, g.Neighbors(k), 2)
	}
}

func TestGraph_AddEdge_RejectsSelfLoop(t *testing.T) {
	gc := geo.DefaultConfig()
	g := New(gc)

	p := coord(0, 0).Point()
	key := gc.NodeKey(p)

	g.AddEdge(key, p, key, p, 5)

	assert.False(t, g.HasEdge(key, key))
}

func TestGraph_Clone_IsIndependent(t *testing.T) {
	gc := geo.DefaultConfig()
	g := New(gc)

	a, b := coord(0, 0).Point(), coord(0, 1).Point()
	aKey, bKey := gc.NodeKey(a), gc.NodeKey(b)
	g.AddEdge(aKey, a, bKey, b, 10)

	clone := g.Clone()
	clone.RemoveEdge(aKey, bKey)

	assert.True(t, g.HasEdge(aKey, bKey))
	assert.False(t, clone.HasEdge(aKey, bKey))
}
