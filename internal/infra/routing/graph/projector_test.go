package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetplanner/internal/domain/entity"
	"fleetplanner/internal/infra/geo"
)

func straightRoadGraph(gc geo.Config) *Graph {
	features := []entity.RoadFeature{
		{ID: "road", Kind: entity.FeatureKindRoad, Polyline: []entity.Coordinate{coord(0, 0), coord(0, 2)}},
	}

	return Build(features, gc)
}

func TestProject_OnExistingNode_ReturnsThatNode(t *testing.T) {
	gc := geo.DefaultConfig()
	g := straightRoadGraph(gc)

	target := coord(0, 0).Point()
	res, ok := Project(g, target, gc)

	require.True(t, ok)
	assert.Equal(t, gc.NodeKey(target), res.NodeKey)
	assert.False(t, res.Inserted)
}

func TestProject_InteriorPoint_InsertsSplitNode(t *testing.T) {
	gc := geo.DefaultConfig()
	g := straightRoadGraph(gc)

	before := g.NodeCount()

	target := coord(0.5, 1).Point() // off the line but nearest locus is the midpoint of the road
	res, ok := Project(g, target, gc)

	require.True(t, ok)
	assert.True(t, res.Inserted)
	assert.Equal(t, before+1, g.NodeCount())

	// the inserted node splits the original edge into two
	aKey := gc.NodeKey(coord(0, 0).Point())
	bKey := gc.NodeKey(coord(0, 2).Point())
	assert.True(t, g.HasEdge(aKey, res.NodeKey))
	assert.True(t, g.HasEdge(res.NodeKey, bKey))
	assert.False(t, g.HasEdge(aKey, bKey))
}

func TestProject_SamePointTwice_DoesNotDuplicateNode(t *testing.T) {
	gc := geo.DefaultConfig()
	g := straightRoadGraph(gc)

	target := coord(0.5, 1).Point()

	res1, ok := Project(g, target, gc)
	require.True(t, ok)

	countAfterFirst := g.NodeCount()

	res2, ok := Project(g, target, gc)
	require.True(t, ok)

	assert.Equal(t, res1.NodeKey, res2.NodeKey)
	assert.Equal(t, countAfterFirst, g.NodeCount())
	assert.False(t, res2.Inserted)
}

func TestProject_EmptyGraph_Fails(t *testing.T) {
	gc := geo.DefaultConfig()
	g := New(gc)

	_, ok := Project(g, coord(0, 0).Point(), gc)
	assert.False(t, ok)
}

func TestLocate_DoesNotMutateGraph(t *testing.T) {
	gc := geo.DefaultConfig()
	g := straightRoadGraph(gc)

	before := g.NodeCount()

	dist, ok := Locate(g, coord(0.5, 1).Point(), gc)
	require.True(t, ok)
	assert.True(t, dist >= 0)
	assert.Equal(t, before, g.NodeCount())
}

func TestNearestK_ReturnsClosestFirst(t *testing.T) {
	gc := geo.DefaultConfig()
	g := straightRoadGraph(gc)

	keys := NearestK(g, coord(0, 0).Point(), 2, gc)
	require.Len(t, keys, 2)
	assert.Equal(t, gc.NodeKey(coord(0, 0).Point()), keys[0])
}
