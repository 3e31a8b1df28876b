package detector

import (
	"context"

	"github.com/thejerf/suture/v4"

	"github.com/angelmondragon/smartpark-backend/pkg/logger"
)

// eventHook forwards supervisor events into the service logger.
func eventHook(logg *logger.Logger) suture.EventHook {
	return func(ev suture.Event) {
		ctx := logg.WithFields(context.Background(), ev.Map())
		switch e := ev.(type) {
		case suture.EventServicePanic:
			logg.Error(ctx, "detector.supervisor.panic", nil)
		case suture.EventServiceTerminate:
			if e.Restarting {
				logg.Warn(ctx, "detector.supervisor.restart")
				return
			}
			logg.Warn(ctx, "detector.supervisor.terminate")
		case suture.EventBackoff:
			logg.Warn(ctx, "detector.supervisor.backoff")
		case suture.EventResume:
			logg.Info(ctx, "detector.supervisor.resume")
		case suture.EventStopTimeout:
			logg.Warn(ctx, "detector.supervisor.stop_timeout")
		default:
			logg.Info(ctx, ev.String())
		}
	}
}
