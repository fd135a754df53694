package conflict

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"fleetplanner/internal/infra/geo"
	"fleetplanner/internal/infra/routing/reservation"
)

func TestEstimate_NoReservations_IsZero(t *testing.T) {
	c := DefaultConfig()
	tbl := reservation.New(geo.DefaultConfig())
	veh := Vehicle{ID: "v1", LengthM: 5, SpeedMPS: 10}

	got := c.Estimate(tbl, "A", "B", 0, 10, veh, 100)

	assert.Equal(t, 0.0, got)
}

func TestEstimate_SameVehicleReservation_Ignored(t *testing.T) {
	c := DefaultConfig()
	tbl := reservation.New(geo.DefaultConfig())
	veh := Vehicle{ID: "v1", LengthM: 5, SpeedMPS: 10}

	tbl.ReserveSegment("v1", "A", "B", 0, 20)

	got := c.Estimate(tbl, "A", "B", 0, 10, veh, 100)

	assert.Equal(t, 0.0, got)
}

func TestEstimate_OverlappingSameDirection_AddsWaitPlusInconvenience(t *testing.T) {
	c := DefaultConfig()
	tbl := reservation.New(geo.DefaultConfig())
	veh := Vehicle{ID: "v2", LengthM: 5, SpeedMPS: 10}

	tbl.ReserveSegment("v1", "A", "B", 0, 20)

	got := c.Estimate(tbl, "A", "B", 5, 15, veh, 100)

	assert.InDelta(t, (20-5)+c.InconveniencePenaltySeconds, got, 1e-9)
}

func TestEstimate_HeadOnConflict_AddsSurcharge(t *testing.T) {
	c := DefaultConfig()
	tbl := reservation.New(geo.DefaultConfig())
	veh := Vehicle{ID: "v2", LengthM: 5, SpeedMPS: 10}

	tbl.ReserveSegment("v1", "B", "A", 0, 20)

	got := c.Estimate(tbl, "A", "B", 5, 15, veh, 100)

	wantWait := (20 - 5) + c.HeadOnPenaltySeconds
	assert.InDelta(t, wantWait+c.InconveniencePenaltySeconds, got, 1e-9)
}

func TestEstimate_NodeConflict_UsesClearanceWindow(t *testing.T) {
	c := DefaultConfig()
	tbl := reservation.New(geo.DefaultConfig())
	veh := Vehicle{ID: "v2", LengthM: 5, SpeedMPS: 10}

	// starts after the arrival instant but inside arrival+clearance
	tbl.ReserveNode("v1", "B", 15, 25)

	got := c.Estimate(tbl, "A", "B", 0, 10, veh, 100)

	assert.InDelta(t, (25-10)+c.InconveniencePenaltySeconds, got, 1e-9)
}

func TestEstimate_NonOverlappingReservation_IsZero(t *testing.T) {
	c := DefaultConfig()
	tbl := reservation.New(geo.DefaultConfig())
	veh := Vehicle{ID: "v2", LengthM: 5, SpeedMPS: 10}

	tbl.ReserveSegment("v1", "A", "B", 100, 120)

	got := c.Estimate(tbl, "A", "B", 0, 10, veh, 100)

	assert.Equal(t, 0.0, got)
}
