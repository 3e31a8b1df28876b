package detector

import (
	"context"
	"math/rand/v2"
	"sync"

	"github.com/google/uuid"

	"github.com/angelmondragon/smartpark-backend/internal/occupancy"
	"github.com/angelmondragon/smartpark-backend/pkg/db/models"
)

// Observation is one slot reading produced by a detector.
type Observation struct {
	SlotID   uuid.UUID
	Occupied bool
}

// Detector turns a camera frame into slot observations.
type Detector interface {
	Detect(ctx context.Context, parkID uuid.UUID, slots []models.Slot) ([]Observation, error)
}

// Factory builds a Detector for a park's camera source.
type Factory func(parkID uuid.UUID, source string) (Detector, error)

// Reporter applies observations to slot state. *occupancy.Machine satisfies it.
type Reporter interface {
	ListSlots(ctx context.Context, parkID uuid.UUID) ([]models.Slot, error)
	ReportOccupancy(ctx context.Context, parkID, slotID uuid.UUID, occupied bool) (*occupancy.Transition, error)
}

// MockDetector flips one random slot per call. It stands in for real inference.
type MockDetector struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewMockDetector(seed uint64) *MockDetector {
	return &MockDetector{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// MockFactory ignores the camera source.
func MockFactory(seed uint64) Factory {
	return func(uuid.UUID, string) (Detector, error) {
		return NewMockDetector(seed), nil
	}
}

func (m *MockDetector) Detect(_ context.Context, _ uuid.UUID, slots []models.Slot) ([]Observation, error) {
	if len(slots) == 0 {
		return nil, nil
	}
	m.mu.Lock()
	pick := slots[m.rng.IntN(len(slots))]
	m.mu.Unlock()
	return []Observation{{SlotID: pick.ID, Occupied: !pick.IsOccupied}}, nil
}
