package detector

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/thejerf/suture/v4"

	"github.com/angelmondragon/smartpark-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/smartpark-backend/pkg/errors"
	"github.com/angelmondragon/smartpark-backend/pkg/logger"
	"github.com/angelmondragon/smartpark-backend/pkg/metrics"
)

const supervisorName = "detector"

type SupervisorParams struct {
	Config   config.DetectorConfig
	Factory  Factory
	Reporter Reporter
	Logger   *logger.Logger
	Metrics  *metrics.ParkingMetrics
}

// Supervisor runs one detection task per park under a suture supervisor.
type Supervisor struct {
	sup      *suture.Supervisor
	factory  Factory
	reporter Reporter
	interval time.Duration
	timeout  time.Duration
	logg     *logger.Logger
	metrics  *metrics.ParkingMetrics

	mu    sync.Mutex
	tasks map[uuid.UUID]taskHandle
}

type taskHandle struct {
	token suture.ServiceToken
	task  *parkTask
}

func NewSupervisor(params SupervisorParams) (*Supervisor, error) {
	if params.Factory == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "detector factory required")
	}
	if params.Reporter == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "occupancy reporter required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}

	cfg := params.Config
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	s := &Supervisor{
		factory:  params.Factory,
		reporter: params.Reporter,
		interval: cfg.Interval,
		timeout:  cfg.ShutdownTimeout,
		logg:     params.Logger,
		metrics:  params.Metrics,
		tasks:    make(map[uuid.UUID]taskHandle),
	}
	s.sup = suture.New(supervisorName, suture.Spec{
		EventHook:        eventHook(params.Logger),
		FailureThreshold: cfg.FailureThreshold,
		FailureDecay:     cfg.FailureDecay,
		FailureBackoff:   cfg.FailureBackoff,
		Timeout:          cfg.ShutdownTimeout,
	})
	return s, nil
}

// Serve blocks until ctx is cancelled.
func (s *Supervisor) Serve(ctx context.Context) error {
	return s.sup.Serve(ctx)
}

// ServeBackground starts the supervisor and returns once it accepts tasks.
func (s *Supervisor) ServeBackground(ctx context.Context) <-chan error {
	return s.sup.ServeBackground(ctx)
}

// Start launches detection for parkID. It is a no-op when a task already runs.
func (s *Supervisor) Start(ctx context.Context, parkID uuid.UUID, source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[parkID]; ok {
		return nil
	}
	det, err := s.factory(parkID, source)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build detector")
	}
	task := &parkTask{
		parkID:   parkID,
		detector: det,
		reporter: s.reporter,
		interval: s.interval,
		logg:     s.logg,
		metrics:  s.metrics,
		done:     make(chan struct{}),
	}
	s.tasks[parkID] = taskHandle{token: s.sup.Add(task), task: task}
	s.metrics.SetDetectorTasks(len(s.tasks))
	s.logg.Info(s.logg.WithParkID(ctx, parkID.String()), "detector.started")
	return nil
}

// Stop removes the park's task and waits for it to halt. Unknown parks are
// ignored. A task stopped before the supervisor serves exits on its first run.
func (s *Supervisor) Stop(ctx context.Context, parkID uuid.UUID) error {
	s.mu.Lock()
	handle, ok := s.tasks[parkID]
	if ok {
		delete(s.tasks, parkID)
	}
	running := len(s.tasks)
	s.mu.Unlock()

	if !ok {
		return nil
	}
	s.metrics.SetDetectorTasks(running)

	close(handle.task.done)
	err := s.sup.RemoveAndWait(handle.token, s.timeout)
	if err != nil && !errors.Is(err, suture.ErrSupervisorNotStarted) && !errors.Is(err, suture.ErrSupervisorNotRunning) {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "stop detector")
	}
	s.logg.Info(s.logg.WithParkID(ctx, parkID.String()), "detector.stopped")
	return nil
}

func (s *Supervisor) IsRunning(parkID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[parkID]
	return ok
}

// Running lists parks with an active task in a stable order.
func (s *Supervisor) Running() []uuid.UUID {
	s.mu.Lock()
	ids := make([]uuid.UUID, 0, len(s.tasks))
	for id := range s.tasks {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}
