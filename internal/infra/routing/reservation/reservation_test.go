package reservation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"fleetplanner/internal/infra/geo"
)

func TestTable_ReserveSegment_UndirectedLookup(t *testing.T) {
	tbl := New(geo.DefaultConfig())

	tbl.ReserveSegment("v1", "A", "B", 0, 10)

	assert.Len(t, tbl.SegmentReservations("A", "B"), 1)
	assert.Len(t, tbl.SegmentReservations("B", "A"), 1)
}

func TestTable_ReserveSegment_KeepsDirection(t *testing.T) {
	tbl := New(geo.DefaultConfig())

	tbl.ReserveSegment("v1", "A", "B", 0, 10)

	res := tbl.SegmentReservations("A", "B")
	assert.Equal(t, "A", res[0].From)
	assert.Equal(t, "B", res[0].To)
}

func TestTable_ReserveSegment_AppendOnly(t *testing.T) {
	tbl := New(geo.DefaultConfig())

	tbl.ReserveSegment("v1", "A", "B", 0, 10)
	tbl.ReserveSegment("v2", "B", "A", 5, 15)

	assert.Len(t, tbl.SegmentReservations("A", "B"), 2)
}

func TestTable_ReserveNode(t *testing.T) {
	tbl := New(geo.DefaultConfig())

	tbl.ReserveNode("v1", "X", 0, 10)
	tbl.ReserveNode("v2", "X", 20, 30)

	assert.Len(t, tbl.NodeReservations("X"), 2)
	assert.Empty(t, tbl.NodeReservations("Y"))
}

func TestTable_CustomSeparator_DoesNotCollide(t *testing.T) {
	gc := geo.DefaultConfig()
	gc.SegmentKeySeparator = "::"

	tbl := New(gc)
	tbl.ReserveSegment("v1", "A", "B", 0, 10)

	assert.Len(t, tbl.SegmentReservations("A", "B"), 1)
	assert.Empty(t, tbl.SegmentReservations("A", "C"))
}
