// Package usecase defines the planner's outward-facing interface,
// mirroring the teacher's usecase/impl split (usecase.RoutingUsecase /
// impl.routingService) generalized from single-pair routing to
// sequential fleet orchestration (spec.md §4.7).
package usecase

import (
	"context"

	"fleetplanner/internal/domain/entity"
)

// FleetPlanner is the planner's single entry point (spec.md §6):
// given a snapshot of road features and vehicle requests, produce one
// plan per request, in priority order.
type FleetPlanner interface {
	Plan(ctx context.Context, roadFeatures []entity.RoadFeature, requests []entity.VehicleRequest) []entity.Plan
}
