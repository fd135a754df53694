// Package impl implements the usecase interfaces declared in
// internal/usecase, mirroring the teacher's usecase/impl split
// (impl.routingService -> impl.fleetPlanner).
package impl

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/paulmach/orb"

	"fleetplanner/config"
	"fleetplanner/internal/domain/entity"
	domainerrors "fleetplanner/internal/domain/errors"
	"fleetplanner/internal/infra/geo"
	"fleetplanner/internal/infra/routing/astar"
	"fleetplanner/internal/infra/routing/conflict"
	"fleetplanner/internal/infra/routing/graph"
	"fleetplanner/internal/infra/routing/reservation"
	"fleetplanner/internal/usecase"

	"github.com/pkg/errors"
)

const prevalidationWorkers = 8

// fleetPlanner implements usecase.FleetPlanner: build the base graph,
// project every request's origin/destination, plan sequentially in
// ascending start-time order against a growing reservation table
// (spec.md §4.7).
type fleetPlanner struct {
	geo      geo.Config
	conflict conflict.Config
	cfg      config.PlannerConfig
	logger   *slog.Logger
}

// NewFleetPlanner constructs a usecase.FleetPlanner from a
// config.PlannerConfig, mirroring impl.NewRoutingService's
// config-with-fallback-defaults pattern.
func NewFleetPlanner(cfg *config.PlannerConfig, logger *slog.Logger) usecase.FleetPlanner {
	if cfg == nil {
		defaults := config.DefaultPlannerConfig()
		cfg = &defaults
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &fleetPlanner{
		geo: geo.Config{
			EarthRadiusMeters:           cfg.EarthRadiusMeters,
			CoordinateEqualityTolerance: cfg.CoordinateEqualityTolerance,
			IntersectionEpsilon:         cfg.IntersectionEpsilon,
			NodeKeyDecimalDigits:        cfg.NodeKeyDecimalDigits,
			NodeKeySeparator:            cfg.NodeKeySeparator,
			SegmentKeySeparator:         cfg.SegmentKeySeparator,
		},
		conflict: conflict.Config{
			NodeClearanceSeconds:        cfg.NodeClearanceSeconds,
			NodeSafetyWindowSeconds:     cfg.NodeSafetyWindowSeconds,
			InconveniencePenaltySeconds: cfg.InconveniencePenaltySeconds,
			HeadOnPenaltySeconds:        cfg.HeadOnPenaltySeconds,
			HugePenaltySeconds:          cfg.HugePenaltySeconds,
		},
		cfg:    *cfg,
		logger: logger,
	}
}

// projected carries a request's snapped start/end node keys, or the
// reason projection failed.
type projected struct {
	req        entity.VehicleRequest
	startKey   string
	endKey     string
	failed     bool
	failReason string
}

// Plan implements usecase.FleetPlanner. Every invocation gets its own
// correlation ID, the same request-scoped-UUID idiom the teacher's
// request-ID middleware uses for HTTP calls, generalized here to a
// batch orchestrator run.
func (p *fleetPlanner) Plan(ctx context.Context, roadFeatures []entity.RoadFeature, requests []entity.VehicleRequest) []entity.Plan {
	runID := uuid.New().String()
	logger := p.logger.With("runId", runID)

	base := graph.Build(roadFeatures, p.geo)

	if base.NodeCount() == 0 {
		logger.Warn("plan: empty road graph", "requests", len(requests))

		return p.failAll(requests, domainerrors.ErrNoGraph.Message())
	}

	logger.Info("plan: graph built", "nodes", base.NodeCount(), "requests", len(requests))
	p.prevalidate(logger, requests, base)

	working := base.Clone()
	items := p.projectInInputOrder(working, requests)

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].req.StartTime < items[j].req.StartTime
	})

	tbl := reservation.New(p.geo)
	plans := make([]entity.Plan, 0, len(items))

	for _, it := range items {
		if ctx.Err() != nil {
			plans = append(plans, entity.Plan{
				VehicleID:     it.req.ID,
				Status:        entity.StatusFailedNoPath,
				FailureReason: errors.Wrap(ctx.Err(), "fleet planning canceled").Error(),
			})

			continue
		}

		if it.failed {
			plans = append(plans, entity.Plan{
				VehicleID:     it.req.ID,
				Status:        entity.StatusFailedNoPath,
				FailureReason: it.failReason,
			})

			continue
		}

		plans = append(plans, p.planOne(ctx, working, tbl, it))
	}

	return plans
}

// failAll materializes a FAILED_NO_PATH plan for every request when
// the road features yielded an empty graph (spec.md §7 NoGraph).
func (p *fleetPlanner) failAll(requests []entity.VehicleRequest, reason string) []entity.Plan {
	sorted := append([]entity.VehicleRequest(nil), requests...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StartTime < sorted[j].StartTime
	})

	plans := make([]entity.Plan, len(sorted))
	for i, r := range sorted {
		plans[i] = entity.Plan{VehicleID: r.ID, Status: entity.StatusFailedNoPath, FailureReason: reason}
	}

	return plans
}

// prevalidate fans a bounded worker pool out over the base graph
// (read-only — no node is inserted here) to log each request's
// nearest-locus snap distance before the sequential, mutating
// projection pass runs. Grounded on ch.Engine.OneToMany's
// channel/WaitGroup worker pool, generalized from routing queries to
// diagnostic snap-distance lookups (SPEC_FULL.md §4.7).
func (p *fleetPlanner) prevalidate(logger *slog.Logger, requests []entity.VehicleRequest, base *graph.Graph) {
	if len(requests) == 0 {
		return
	}

	type job struct {
		vehicleID string
		point     orb.Point
		label     string
	}

	jobs := make(chan job, len(requests)*2)
	var wg sync.WaitGroup

	workers := prevalidationWorkers
	if workers > len(requests) {
		workers = len(requests)
	}

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				dist, ok := graph.Locate(base, j.point, p.geo)
				if !ok {
					logger.Warn("prevalidation: graph empty", "vehicle", j.vehicleID)

					continue
				}
				logger.Debug("prevalidation: nearest locus", "vehicle", j.vehicleID, "point", j.label, "distanceMeters", dist)
			}
		}()
	}

	for _, r := range requests {
		jobs <- job{vehicleID: r.ID, point: r.Origin.Point(), label: "origin"}
		jobs <- job{vehicleID: r.ID, point: r.Destination.Point(), label: "destination"}
	}
	close(jobs)

	wg.Wait()
}

// projectInInputOrder attempts start/end projection for every request
// in input order, mutating working (spec.md §4.7 step 3: "subsequent
// requests see them").
func (p *fleetPlanner) projectInInputOrder(working *graph.Graph, requests []entity.VehicleRequest) []projected {
	items := make([]projected, 0, len(requests))

	for _, r := range requests {
		startRes, ok := graph.Project(working, r.Origin.Point(), p.geo)
		if !ok {
			items = append(items, projected{req: r, failed: true, failReason: domainerrors.ErrProjectionFailed.Message()})

			continue
		}

		endRes, ok := graph.Project(working, r.Destination.Point(), p.geo)
		if !ok {
			items = append(items, projected{req: r, failed: true, failReason: domainerrors.ErrProjectionFailed.Message()})

			continue
		}

		if !r.Valid() {
			items = append(items, projected{req: r, failed: true, failReason: domainerrors.ErrInvalidVehicle.Message()})

			continue
		}

		items = append(items, projected{req: r, startKey: startRes.NodeKey, endKey: endRes.NodeKey})
	}

	return items
}

// planOne runs the time-aware A* search for a single request and, on
// success, extends the reservation table with its occupations
// (spec.md §4.7 steps 6a/6b).
func (p *fleetPlanner) planOne(_ context.Context, working *graph.Graph, tbl *reservation.Table, it projected) entity.Plan {
	veh := conflict.Vehicle{ID: it.req.ID, LengthM: it.req.LengthM, SpeedMPS: it.req.SpeedMPS}

	budget := p.cfg.MaxExpansionsPerNode * working.NodeCount()

	result := astar.Search(working, p.geo, p.conflict, tbl, veh, it.startKey, it.endKey, it.req.StartTime, budget)
	if !result.Found {
		reason := domainerrors.ErrUnreachable.Message()
		if budget > 0 && result.Expansions > budget {
			reason = domainerrors.ErrBudgetExceeded.Message()
		}

		return entity.Plan{VehicleID: it.req.ID, Status: entity.StatusFailedNoPath, FailureReason: reason}
	}

	path := toTimedPath(working, result.Path)
	p.extendReservations(tbl, working, veh, result.Path)

	var total float64
	if len(path) > 0 {
		total = path[len(path)-1].AbsTime - path[0].AbsTime
	}

	return entity.Plan{
		VehicleID:        it.req.ID,
		Status:           entity.StatusSuccess,
		Path:             path,
		TotalTimeSeconds: total,
	}
}

// extendReservations reserves every hop's segment and the "A" node of
// every hop, plus the final "B" node — spec.md §4.7 step 6b / Open
// Question 2's decision (DESIGN.md).
func (p *fleetPlanner) extendReservations(tbl *reservation.Table, g *graph.Graph, veh conflict.Vehicle, path []astar.Node) {
	for i := 0; i < len(path)-1; i++ {
		a, b := path[i], path[i+1]

		d, ok := g.EdgeWeight(a.Key, b.Key)
		if !ok {
			continue
		}

		exit := a.AbsTime + (d+veh.LengthM)/veh.SpeedMPS
		tbl.ReserveSegment(veh.ID, a.Key, b.Key, a.AbsTime, exit)

		half := p.conflict.NodeSafetyWindowSeconds / 2
		tbl.ReserveNode(veh.ID, a.Key, a.AbsTime-half, a.AbsTime+p.conflict.NodeClearanceSeconds+half)

		if i == len(path)-2 {
			half := p.conflict.NodeSafetyWindowSeconds / 2
			tbl.ReserveNode(veh.ID, b.Key, b.AbsTime-half, b.AbsTime+p.conflict.NodeClearanceSeconds+half)
		}
	}
}

// toTimedPath converts A* nodes into the caller-facing timed path.
func toTimedPath(g *graph.Graph, nodes []astar.Node) []entity.TimedNode {
	out := make([]entity.TimedNode, 0, len(nodes))
	for _, n := range nodes {
		pt, ok := g.Coordinate(n.Key)
		if !ok {
			continue
		}

		out = append(out, entity.TimedNode{
			NodeKey:    n.Key,
			Coordinate: entity.FromPoint(pt),
			AbsTime:    n.AbsTime,
		})
	}

	return out
}
