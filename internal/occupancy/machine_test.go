package occupancy

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/smartpark-backend/internal/eventlog"
	"github.com/angelmondragon/smartpark-backend/internal/realtime"
	"github.com/angelmondragon/smartpark-backend/pkg/db"
	"github.com/angelmondragon/smartpark-backend/pkg/db/dbtest"
	"github.com/angelmondragon/smartpark-backend/pkg/db/models"
	"github.com/angelmondragon/smartpark-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/smartpark-backend/pkg/errors"
	"github.com/angelmondragon/smartpark-backend/pkg/logger"
	"github.com/angelmondragon/smartpark-backend/pkg/metrics"
)

type capturePublisher struct {
	mu   sync.Mutex
	msgs []realtime.Message
}

func (p *capturePublisher) Publish(_ context.Context, msgs ...realtime.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msgs...)
}

type machineFixture struct {
	client    *db.Client
	machine   *Machine
	publisher *capturePublisher
	registry  *prometheus.Registry
	now       time.Time
}

func newMachineFixture(t *testing.T) *machineFixture {
	t.Helper()
	client := dbtest.NewSQLite(t)
	f := &machineFixture{
		client:    client,
		publisher: &capturePublisher{},
		registry:  prometheus.NewRegistry(),
		now:       time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}
	machine, err := NewMachine(MachineParams{
		Repo:      NewRepository(client.DB()),
		Logs:      eventlog.NewRepository(client.DB()),
		Tx:        client,
		Publisher: f.publisher,
		Metrics:   metrics.NewParkingMetrics(f.registry),
		Logger:    logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Now:       func() time.Time { return f.now },
	})
	require.NoError(t, err)
	f.machine = machine
	return f
}

func (f *machineFixture) seedPark(t *testing.T, owner string, slots int) models.Park {
	t.Helper()
	park := models.Park{
		OwnerID:    owner,
		Name:       "Lot",
		Location:   "Somewhere",
		TotalSlots: slots,
		HourlyRate: decimal.NewFromInt(5),
	}
	for i := 1; i <= slots; i++ {
		park.Slots = append(park.Slots, models.Slot{
			SlotNumber:  "A" + string(rune('0'+i)),
			Position:    i,
			LastUpdated: f.now,
		})
	}
	require.NoError(t, f.client.DB().Create(&park).Error)
	return park
}

func (f *machineFixture) logs(t *testing.T, parkID uuid.UUID) []models.Log {
	t.Helper()
	var rows []models.Log
	require.NoError(t, f.client.DB().Where("park_id = ?", parkID).Order(`"timestamp" ASC`).Find(&rows).Error)
	return rows
}

func TestUpdateSlotStatusIsIdempotent(t *testing.T) {
	f := newMachineFixture(t)
	ctx := context.Background()
	park := f.seedPark(t, "owner", 1)
	slotID := park.Slots[0].ID

	f.now = f.now.Add(time.Minute)
	first, err := f.machine.UpdateSlotStatus(ctx, slotID, true, enums.TriggerManual)
	require.NoError(t, err)
	assert.True(t, first.Changed)
	require.NotNil(t, first.Log)
	assert.Equal(t, enums.LogEventEntry, first.Log.EventType)

	f.now = f.now.Add(time.Minute)
	second, err := f.machine.UpdateSlotStatus(ctx, slotID, true, enums.TriggerManual)
	require.NoError(t, err)
	assert.False(t, second.Changed)
	assert.Nil(t, second.Log)

	slot, err := f.machine.FindSlot(ctx, slotID)
	require.NoError(t, err)
	assert.True(t, slot.IsOccupied)
	assert.True(t, slot.LastUpdated.Equal(f.now), "same-state report refreshes last_updated")
	assert.Len(t, f.logs(t, park.ID), 1)
}

func TestTransitionsLogEntryAndExit(t *testing.T) {
	f := newMachineFixture(t)
	ctx := context.Background()
	park := f.seedPark(t, "owner", 2)
	slotID := park.Slots[1].ID

	_, err := f.machine.UpdateSlotStatus(ctx, slotID, true, enums.TriggerDetector)
	require.NoError(t, err)
	f.now = f.now.Add(time.Minute)
	_, err = f.machine.UpdateSlotStatus(ctx, slotID, false, enums.TriggerDetector)
	require.NoError(t, err)

	logs := f.logs(t, park.ID)
	require.Len(t, logs, 2)
	assert.Equal(t, enums.LogEventEntry, logs[0].EventType)
	assert.Equal(t, enums.LogEventExit, logs[1].EventType)
	assert.Equal(t, "Vehicle detected: slot A2 vacated", logs[1].Description)

	series, err := testutil.GatherAndCount(f.registry, "smartpark_slots_transitions_total")
	require.NoError(t, err)
	assert.Equal(t, 2, series)
}

func TestUpdateSlotStatusMissingSlot(t *testing.T) {
	f := newMachineFixture(t)
	_, err := f.machine.UpdateSlotStatus(context.Background(), uuid.New(), true, enums.TriggerManual)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}

func TestReportOccupancyChecksPark(t *testing.T) {
	f := newMachineFixture(t)
	ctx := context.Background()
	a := f.seedPark(t, "owner", 1)
	b := f.seedPark(t, "owner", 1)

	_, err := f.machine.ReportOccupancy(ctx, b.ID, a.Slots[0].ID, true)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))

	result, err := f.machine.ReportOccupancy(ctx, a.ID, a.Slots[0].ID, true)
	require.NoError(t, err)
	assert.True(t, result.Changed)
	assert.Equal(t, enums.TriggerDetector, result.Trigger)
}

func TestClaimTakesLowestFreePosition(t *testing.T) {
	f := newMachineFixture(t)
	ctx := context.Background()
	park := f.seedPark(t, "owner", 3)

	_, err := f.machine.UpdateSlotStatus(ctx, park.Slots[0].ID, true, enums.TriggerManual)
	require.NoError(t, err)

	var claimed *Transition
	err = f.client.WithTx(ctx, func(tx *gorm.DB) error {
		claimed, err = f.machine.Claim(ctx, tx, park.ID, enums.TriggerBooking)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, "A2", claimed.Slot.SlotNumber)
	assert.Equal(t, "Slot A2 reserved by booking", claimed.Log.Description)
}

// rivalRepo occupies the first free candidate right after it is listed, the
// way a concurrent booking committing between the read and the update would.
type rivalRepo struct {
	Repository
	rival *rivalState
}

type rivalState struct {
	now   time.Time
	taken string
}

func (r rivalRepo) WithTx(tx *gorm.DB) Repository {
	return rivalRepo{Repository: r.Repository.WithTx(tx), rival: r.rival}
}

func (r rivalRepo) FreeSlots(ctx context.Context, parkID uuid.UUID) ([]models.Slot, error) {
	slots, err := r.Repository.FreeSlots(ctx, parkID)
	if err != nil || len(slots) == 0 || r.rival.taken != "" {
		return slots, err
	}
	won, err := r.Repository.CompareAndSetOccupied(ctx, slots[0].ID, false, true, r.rival.now)
	if err != nil {
		return nil, err
	}
	if won {
		r.rival.taken = slots[0].SlotNumber
	}
	return slots, nil
}

func TestClaimMovesPastSlotTakenAfterListing(t *testing.T) {
	f := newMachineFixture(t)
	ctx := context.Background()
	park := f.seedPark(t, "owner", 3)

	rival := &rivalState{now: f.now}
	machine, err := NewMachine(MachineParams{
		Repo:      rivalRepo{Repository: NewRepository(f.client.DB()), rival: rival},
		Logs:      eventlog.NewRepository(f.client.DB()),
		Tx:        f.client,
		Publisher: f.publisher,
		Logger:    logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Now:       func() time.Time { return f.now },
	})
	require.NoError(t, err)

	var claimed *Transition
	err = f.client.WithTx(ctx, func(tx *gorm.DB) error {
		claimed, err = machine.Claim(ctx, tx, park.ID, enums.TriggerBooking)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, "A1", rival.taken)
	assert.Equal(t, "A2", claimed.Slot.SlotNumber)

	slots, err := f.machine.ListSlots(ctx, park.ID)
	require.NoError(t, err)
	occupied := map[string]bool{}
	for _, slot := range slots {
		occupied[slot.SlotNumber] = slot.IsOccupied
	}
	assert.Equal(t, map[string]bool{"A1": true, "A2": true, "A3": false}, occupied)

	logs := f.logs(t, park.ID)
	require.Len(t, logs, 1)
	require.NotNil(t, logs[0].SlotID)
	assert.Equal(t, claimed.Slot.ID, *logs[0].SlotID)
}

func TestClaimOnFullParkLeavesStateUntouched(t *testing.T) {
	f := newMachineFixture(t)
	ctx := context.Background()
	park := f.seedPark(t, "owner", 1)

	_, err := f.machine.UpdateSlotStatus(ctx, park.Slots[0].ID, true, enums.TriggerManual)
	require.NoError(t, err)
	before := len(f.logs(t, park.ID))

	err = f.client.WithTx(ctx, func(tx *gorm.DB) error {
		_, err := f.machine.Claim(ctx, tx, park.ID, enums.TriggerBooking)
		return err
	})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNoSlot))
	assert.Len(t, f.logs(t, park.ID), before)
}

func TestOccupiedCountMatchesSlots(t *testing.T) {
	f := newMachineFixture(t)
	ctx := context.Background()
	park := f.seedPark(t, "owner", 4)

	for _, step := range []struct {
		index    int
		occupied bool
	}{{0, true}, {2, true}, {0, false}, {3, true}, {3, true}} {
		f.now = f.now.Add(time.Second)
		_, err := f.machine.UpdateSlotStatus(ctx, park.Slots[step.index].ID, step.occupied, enums.TriggerManual)
		require.NoError(t, err)
	}

	slots, err := f.machine.ListSlots(ctx, park.ID)
	require.NoError(t, err)
	occupied := 0
	for _, s := range slots {
		if s.IsOccupied {
			occupied++
		}
	}
	assert.Equal(t, 2, occupied)
	assert.Len(t, f.logs(t, park.ID), 4)
}

func TestPublishAfterTransition(t *testing.T) {
	f := newMachineFixture(t)
	park := f.seedPark(t, "owner", 1)

	_, err := f.machine.UpdateSlotStatus(context.Background(), park.Slots[0].ID, true, enums.TriggerManual)
	require.NoError(t, err)

	require.Len(t, f.publisher.msgs, 2)
	assert.Equal(t, realtime.MessageSlotUpdated, f.publisher.msgs[0].Type)
	assert.Equal(t, realtime.MessageLogCreated, f.publisher.msgs[1].Type)
	assert.Equal(t, park.ID.String(), f.publisher.msgs[0].ParkID)
}

type stubParks struct {
	owner string
}

func (s stubParks) OwnedPark(_ context.Context, ownerID string, parkID uuid.UUID) (*models.Park, error) {
	if ownerID != s.owner {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "Not authorized")
	}
	return &models.Park{ID: parkID, OwnerID: ownerID}, nil
}

func TestManualServiceChecksOwner(t *testing.T) {
	f := newMachineFixture(t)
	ctx := context.Background()
	park := f.seedPark(t, "owner-1", 1)

	manual, err := NewManualService(f.machine, stubParks{owner: "owner-1"})
	require.NoError(t, err)

	_, err = manual.SetSlot(ctx, "owner-2", park.Slots[0].ID, true)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeForbidden))

	result, err := manual.SetSlot(ctx, "owner-1", park.Slots[0].ID, true)
	require.NoError(t, err)
	assert.Equal(t, enums.TriggerManual, result.Trigger)

	_, err = manual.SetSlot(ctx, "owner-1", uuid.New(), true)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}
