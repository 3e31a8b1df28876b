package eventlog

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/smartpark-backend/pkg/db/dbtest"
	"github.com/angelmondragon/smartpark-backend/pkg/db/models"
	"github.com/angelmondragon/smartpark-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/smartpark-backend/pkg/errors"
)

type ownerOnly string

func (o ownerOnly) OwnedPark(_ context.Context, ownerID string, parkID uuid.UUID) (*models.Park, error) {
	if ownerID != string(o) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "Not authorized")
	}
	return &models.Park{ID: parkID, OwnerID: ownerID}, nil
}

func TestRecentNewestFirstWithSlotNumbers(t *testing.T) {
	client := dbtest.NewSQLite(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	park := models.Park{
		OwnerID:    "owner-1",
		Name:       "Lot",
		Location:   "Here",
		TotalSlots: 1,
		HourlyRate: decimal.NewFromInt(2),
		Slots:      []models.Slot{{SlotNumber: "A1", Position: 1, LastUpdated: base}},
	}
	require.NoError(t, client.DB().Create(&park).Error)

	repo := NewRepository(client.DB())
	slotID := park.Slots[0].ID
	require.NoError(t, repo.Append(ctx, &models.Log{ParkID: park.ID, SlotID: &slotID, Timestamp: base, EventType: enums.LogEventEntry, Description: "in"}))
	require.NoError(t, repo.Append(ctx, &models.Log{ParkID: park.ID, Timestamp: base.Add(time.Minute), EventType: enums.LogEventAlert, Description: "camera offline"}))
	require.NoError(t, repo.Append(ctx, &models.Log{ParkID: park.ID, SlotID: &slotID, Timestamp: base.Add(2 * time.Minute), EventType: enums.LogEventExit, Description: "out"}))

	svc, err := NewService(repo, ownerOnly("owner-1"))
	require.NoError(t, err)

	entries, err := svc.Recent(ctx, "owner-1", park.ID, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "out", entries[0].Description)
	assert.Equal(t, "A1", entries[0].SlotNumber)
	assert.Equal(t, "N/A", entries[1].SlotNumber)
	assert.Equal(t, "alert", entries[1].EventType)
	assert.Equal(t, "in", entries[2].Description)

	limited, err := svc.Recent(ctx, "owner-1", park.ID, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "out", limited[0].Description)

	_, err = svc.Recent(ctx, "owner-2", park.ID, 10)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeForbidden))
}

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, NormalizeLimit(0))
	assert.Equal(t, DefaultLimit, NormalizeLimit(-5))
	assert.Equal(t, 10, NormalizeLimit(10))
	assert.Equal(t, MaxLimit, NormalizeLimit(MaxLimit*3))
}
