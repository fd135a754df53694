// Package fleetplanner is the module's public entry point: a single
// Plan call that turns a set of road features and vehicle requests
// into one timed plan per request (spec.md §6).
package fleetplanner

import (
	"context"
	"log/slog"

	"fleetplanner/config"
	"fleetplanner/internal/domain/entity"
	"fleetplanner/internal/usecase/impl"
)

// PlannerConfig is the tunable surface documented in SPEC_FULL.md §6.
// It is an alias of config.PlannerConfig so callers embedding this
// module don't need to import the config package just to build one.
type PlannerConfig = config.PlannerConfig

// DefaultPlannerConfig returns spec.md §6's documented defaults.
func DefaultPlannerConfig() PlannerConfig {
	return config.DefaultPlannerConfig()
}

// Plan builds the road graph from roadFeatures, projects every
// request's origin and destination onto it, and plans each request in
// ascending start-time order against a growing reservation table
// (spec.md §4.7). It returns one plan per request, ordered to match
// the internal priority sort, never an error — per-request failures
// surface as entity.Plan.Status == entity.StatusFailedNoPath.
func Plan(ctx context.Context, roadFeatures []entity.RoadFeature, requests []entity.VehicleRequest, cfg PlannerConfig) []entity.Plan {
	planner := impl.NewFleetPlanner(&cfg, slog.Default())

	return planner.Plan(ctx, roadFeatures, requests)
}
