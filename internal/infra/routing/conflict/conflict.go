// Package conflict implements the conflict estimator (spec.md §4.5):
// given a candidate edge traversal, estimate the induced delay and
// head-on penalty against the current reservation table.
package conflict

import "fleetplanner/internal/infra/routing/reservation"

// Config bundles the estimator's tunable constants (spec.md §4.5/§6).
type Config struct {
	NodeClearanceSeconds        float64
	NodeSafetyWindowSeconds     float64
	InconveniencePenaltySeconds float64
	HeadOnPenaltySeconds        float64
	HugePenaltySeconds          float64
}

// DefaultConfig matches spec.md §6's documented defaults.
func DefaultConfig() Config {
	huge := 1e9

	return Config{
		NodeClearanceSeconds:        10,
		NodeSafetyWindowSeconds:     15,
		InconveniencePenaltySeconds: 30,
		HeadOnPenaltySeconds:        huge / 1000,
		HugePenaltySeconds:          huge,
	}
}

// Vehicle carries the identity/kinematics the estimator needs.
type Vehicle struct {
	ID       string
	LengthM  float64
	SpeedMPS float64
}

// Estimate returns the additive delay (seconds) to add to the edge's
// free-flow traversal time when moving vehicle from u to v, given
// tDep (front departure from u) and tArrNoWait (front arrival at v
// with no conflict), and edge length d(u,v) (spec.md §4.5).
func (c Config) Estimate(tbl *reservation.Table, u, v string, tDep, tArrNoWait float64, veh Vehicle, edgeLen float64) float64 {
	segWait := c.segmentConflict(tbl, u, v, tDep, veh, edgeLen)
	nodeWait := c.nodeConflict(tbl, v, tArrNoWait, veh)

	maxWait := segWait
	if nodeWait > maxWait {
		maxWait = nodeWait
	}

	if maxWait <= 0 {
		return 0
	}

	return maxWait + c.InconveniencePenaltySeconds
}

// segmentConflict evaluates the current vehicle's occupation window for
// edge {u,v} against every other-vehicle reservation on that key,
// applying the head-on surcharge when a reservation runs v->u
// (spec.md §4.5 "Segment-conflict evaluation").
func (c Config) segmentConflict(tbl *reservation.Table, u, v string, tDep float64, veh Vehicle, edgeLen float64) float64 {
	enter := tDep
	exit := tDep + (edgeLen+veh.LengthM)/veh.SpeedMPS

	var maxWait float64
	for _, r := range tbl.SegmentReservations(u, v) {
		if r.VehicleID == veh.ID {
			continue
		}
		if !overlaps(enter, exit, r.EnterTime, r.ExitTime) {
			continue
		}

		wait := r.ExitTime - enter
		if wait < 0 {
			wait = 0
		}

		if r.From == v && r.To == u && wait > 0 {
			wait += c.HeadOnPenaltySeconds
		}

		if wait > maxWait {
			maxWait = wait
		}
	}

	return maxWait
}

// nodeConflict evaluates the current vehicle's window at v against
// every other-vehicle node reservation (spec.md §4.5 "Node-conflict
// evaluation at v").
func (c Config) nodeConflict(tbl *reservation.Table, v string, tArr float64, veh Vehicle) float64 {
	arrive := tArr
	clearUntil := tArr + c.NodeClearanceSeconds

	var maxWait float64
	for _, r := range tbl.NodeReservations(v) {
		if r.VehicleID == veh.ID {
			continue
		}
		if !overlaps(arrive, clearUntil, r.EntryTime, r.ExitTime) {
			continue
		}

		wait := r.ExitTime - arrive
		if wait < 0 {
			wait = 0
		}
		if wait > maxWait {
			maxWait = wait
		}
	}

	return maxWait
}

func overlaps(aStart, aEnd, bStart, bEnd float64) bool {
	return aStart < bEnd && bStart < aEnd
}
