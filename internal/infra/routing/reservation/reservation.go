// Package reservation implements the space-time reservation table
// (spec.md §4.4): append-only segment and node occupation lists, keyed
// the way the graph itself is keyed, queried by linear scan.
//
// Record shape is grounded on the teacher pack's
// LukasLovas-VirtualPlatooningIntersectionControl IntersectionReservation
// (vehicle/edge/direction/start/end), adapted from wall-clock time.Time
// to the planner's absolute-seconds simulation clock.
package reservation

import "fleetplanner/internal/infra/geo"

// SegmentOccupation records one vehicle's claim on a directed
// traversal of an undirected edge (spec.md §3).
type SegmentOccupation struct {
	VehicleID string
	From      string // node-key the front enters first
	To        string // node-key the tail clears last
	EnterTime float64
	ExitTime  float64
}

// NodeOccupation records one vehicle's claim on an intersection node
// (spec.md §3).
type NodeOccupation struct {
	VehicleID string
	NodeKey   string
	EntryTime float64
	ExitTime  float64
}

// Table is the reservation table: two append-only maps, no removal, no
// compaction (spec.md §4.4).
type Table struct {
	geo      geo.Config
	segments map[string][]SegmentOccupation
	nodes    map[string][]NodeOccupation
}

// New creates an empty reservation table, keyed using gc's configured
// separators.
func New(gc geo.Config) *Table {
	return &Table{
		geo:      gc,
		segments: make(map[string][]SegmentOccupation),
		nodes:    make(map[string][]NodeOccupation),
	}
}

// ReserveSegment appends a segment occupation under the canonical
// undirected key of {from,to}.
func (t *Table) ReserveSegment(vehicleID, from, to string, enter, exit float64) {
	key := t.geo.SegmentKey(from, to)
	t.segments[key] = append(t.segments[key], SegmentOccupation{
		VehicleID: vehicleID,
		From:      from,
		To:        to,
		EnterTime: enter,
		ExitTime:  exit,
	})
}

// ReserveNode appends a node occupation.
func (t *Table) ReserveNode(vehicleID, nodeKey string, entry, exit float64) {
	t.nodes[nodeKey] = append(t.nodes[nodeKey], NodeOccupation{
		VehicleID: vehicleID,
		NodeKey:   nodeKey,
		EntryTime: entry,
		ExitTime:  exit,
	})
}

// SegmentReservations returns every occupation recorded against the
// undirected edge {a,b}.
func (t *Table) SegmentReservations(a, b string) []SegmentOccupation {
	return t.segments[t.geo.SegmentKey(a, b)]
}

// NodeReservations returns every occupation recorded against node n.
func (t *Table) NodeReservations(n string) []NodeOccupation {
	return t.nodes[n]
}
