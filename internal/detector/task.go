package detector

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/thejerf/suture/v4"
	"go.uber.org/multierr"

	"github.com/angelmondragon/smartpark-backend/pkg/logger"
	"github.com/angelmondragon/smartpark-backend/pkg/metrics"
)

// parkTask polls one park's detector on a fixed interval. It implements
// suture.Service; tick errors are logged and the loop keeps going.
type parkTask struct {
	parkID   uuid.UUID
	detector Detector
	reporter Reporter
	interval time.Duration
	logg     *logger.Logger
	metrics  *metrics.ParkingMetrics
	done     chan struct{}
}

func (t *parkTask) Serve(ctx context.Context) error {
	ctx = t.logg.WithParkID(ctx, t.parkID.String())
	t.logg.Info(ctx, "detector.task.started")

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.logg.Info(ctx, "detector.task.stopped")
			return ctx.Err()
		case <-t.done:
			t.logg.Info(ctx, "detector.task.stopped")
			return suture.ErrDoNotRestart
		case <-ticker.C:
			if err := t.tick(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				t.metrics.IncDetectorTick("failed")
				t.logg.Error(ctx, "detector.tick.failed", err)
				continue
			}
			t.metrics.IncDetectorTick("ok")
		}
	}
}

func (t *parkTask) tick(ctx context.Context) error {
	slots, err := t.reporter.ListSlots(ctx, t.parkID)
	if err != nil {
		return fmt.Errorf("list slots: %w", err)
	}
	observations, err := t.detector.Detect(ctx, t.parkID, slots)
	if err != nil {
		return fmt.Errorf("detect: %w", err)
	}

	var errs error
	for _, obs := range observations {
		if _, err := t.reporter.ReportOccupancy(ctx, t.parkID, obs.SlotID, obs.Occupied); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("report slot %s: %w", obs.SlotID, err))
		}
	}
	return errs
}

func (t *parkTask) String() string {
	return "detector:" + t.parkID.String()
}
