// Command planner runs the fleet route planner against a JSON snapshot
// of road features and vehicle requests, printing the resulting plans.
// Wired with go.uber.org/fx, mirroring cmd/radar's provide/invoke
// wiring style, generalized from an HTTP server to a one-shot batch job
// (SPEC_FULL.md §6).
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"fleetplanner/config"
	"fleetplanner/internal/domain/entity"
	logs "fleetplanner/internal/infra/log"
	"fleetplanner/internal/usecase"
	"fleetplanner/internal/usecase/impl"
	"fleetplanner/internal/util"

	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// snapshot is the input document read from -snapshot: a flattened map
// state plus the fleet's route requests.
type snapshot struct {
	RoadFeatures    []entity.RoadFeature    `json:"roadFeatures"`
	VehicleRequests []entity.VehicleRequest `json:"vehicleRequests"`
}

func main() {
	snapshotPath := flag.String("snapshot", "", "path to a JSON snapshot of road features and vehicle requests")
	flag.Parse()

	if *snapshotPath == "" {
		fmt.Fprintln(os.Stderr, "Error: -snapshot is required")
		os.Exit(1)
	}

	app := fx.New(
		fx.Provide(
			config.New,
			logs.New,
			context.Background,
			newFleetPlanner,
		),
		fx.Invoke(
			func(ctx context.Context, logger *slog.Logger, planner usecase.FleetPlanner) {
				runPlanner(ctx, logger, planner, *snapshotPath)
			},
		),
	)
	if err := app.Err(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newFleetPlanner(cfg *config.Config, logger *slog.Logger) usecase.FleetPlanner {
	return impl.NewFleetPlanner(cfg.Planner, logger)
}

func runPlanner(ctx context.Context, logger *slog.Logger, planner usecase.FleetPlanner, path string) {
	snap, size, err := loadSnapshot(path)
	if err != nil {
		logger.Error("failed to load snapshot", "error", err)
		os.Exit(1)
	}

	logger.Info("snapshot loaded", "path", path, "size", util.FormatBytes(size),
		"roadFeatures", len(snap.RoadFeatures), "vehicleRequests", len(snap.VehicleRequests))

	plans := planner.Plan(ctx, snap.RoadFeatures, snap.VehicleRequests)

	succeeded := 0
	for _, p := range plans {
		if p.Status == entity.StatusSuccess {
			succeeded++
		}

		elapsed := util.FormatDuration(time.Duration(p.TotalTimeSeconds) * time.Second)
		fmt.Printf("%s\t%s\t%s\t%s\n", p.VehicleID, p.Status, elapsed, p.FailureReason)
	}

	fmt.Printf("planned %d/%d vehicle requests\n", succeeded, len(plans))
}

func loadSnapshot(path string) (*snapshot, int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "stat snapshot %s", path)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "read snapshot %s", path)
	}

	var snap snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, 0, errors.Wrapf(err, "unmarshal snapshot %s", path)
	}

	return &snap, info.Size(), nil
}
