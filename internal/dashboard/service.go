package dashboard

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/smartpark-backend/internal/occupancy"
	"github.com/angelmondragon/smartpark-backend/pkg/db/models"
	"github.com/angelmondragon/smartpark-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/smartpark-backend/pkg/errors"
)

const (
	DefaultDays = 7
	MaxDays     = 90
	TopSlots    = 5

	hoursPerDay = 24
)

// ParkAccess resolves a park for its owner, failing with NOT_FOUND or
// FORBIDDEN.
type ParkAccess interface {
	OwnedPark(ctx context.Context, ownerID string, parkID uuid.UUID) (*models.Park, error)
}

type Service interface {
	Dashboard(ctx context.Context, ownerID string, parkID uuid.UUID) (*Overview, error)
	Analytics(ctx context.Context, ownerID string, parkID uuid.UUID, days int) (*Analytics, error)
}

// Overview is the live state of one park.
type Overview struct {
	ParkID         uuid.UUID            `json:"park_id"`
	ParkName       string               `json:"park_name"`
	TotalSlots     int                  `json:"total_slots"`
	OccupiedSlots  int                  `json:"occupied_slots"`
	AvailableSlots int                  `json:"available_slots"`
	TotalRevenue   float64              `json:"total_revenue"`
	ActiveBookings int64                `json:"active_bookings"`
	Slots          []occupancy.SlotView `json:"slots"`
}

// Analytics summarizes the last Days UTC days ending today.
type Analytics struct {
	ParkID        uuid.UUID  `json:"park_id"`
	Days          int        `json:"days"`
	From          time.Time  `json:"from"`
	To            time.Time  `json:"to"`
	Trend         []DayStats `json:"trend"`
	TopSlots      []SlotRank `json:"top_slots"`
	TotalRevenue  float64    `json:"total_revenue"`
	TotalBookings int        `json:"total_bookings"`
}

// DayStats is one daily bucket. Occupancy is a percentage of slot-hours.
type DayStats struct {
	Name      string  `json:"name"`
	Date      string  `json:"date"`
	Revenue   float64 `json:"revenue"`
	Bookings  int     `json:"bookings"`
	Occupancy float64 `json:"occupancy"`
}

type SlotRank struct {
	Slot  string `json:"slot"`
	Count int    `json:"count"`
}

type service struct {
	repo  Repository
	parks ParkAccess
	now   func() time.Time
}

func NewService(repo Repository, parks ParkAccess, now func() time.Time) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "dashboard repository required")
	}
	if parks == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "park access required")
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{repo: repo, parks: parks, now: now}, nil
}

func (s *service) Dashboard(ctx context.Context, ownerID string, parkID uuid.UUID) (*Overview, error) {
	park, err := s.parks.OwnedPark(ctx, ownerID, parkID)
	if err != nil {
		return nil, err
	}

	slots, err := s.repo.ListSlots(ctx, park.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list slots")
	}
	revenue, err := s.repo.Revenue(ctx, park.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum revenue")
	}
	active, err := s.repo.ActiveBookings(ctx, park.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count active bookings")
	}

	occupied := 0
	for _, slot := range slots {
		if slot.IsOccupied {
			occupied++
		}
	}
	return &Overview{
		ParkID:         park.ID,
		ParkName:       park.Name,
		TotalSlots:     park.TotalSlots,
		OccupiedSlots:  occupied,
		AvailableSlots: park.TotalSlots - occupied,
		TotalRevenue:   revenue.Round(2).InexactFloat64(),
		ActiveBookings: active,
		Slots:          occupancy.NewSlotViews(slots),
	}, nil
}

// Analytics buckets the park's bookings by UTC day. Revenue and counts go to
// the day a booking starts; occupancy spreads booked hours across every day
// the booking overlaps. Cancelled bookings are ignored.
func (s *service) Analytics(ctx context.Context, ownerID string, parkID uuid.UUID, days int) (*Analytics, error) {
	if days == 0 {
		days = DefaultDays
	}
	if days < 1 || days > MaxDays {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "days must be between 1 and 90")
	}
	park, err := s.parks.OwnedPark(ctx, ownerID, parkID)
	if err != nil {
		return nil, err
	}

	today := truncateDay(s.now())
	from := today.AddDate(0, 0, -(days - 1))
	to := today.AddDate(0, 0, 1)

	bookings, err := s.repo.BookingsOverlapping(ctx, park.ID, from, to)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list bookings")
	}
	return aggregate(park, bookings, from, days), nil
}

func aggregate(park *models.Park, bookings []models.Booking, from time.Time, days int) *Analytics {
	type bucket struct {
		revenue decimal.Decimal
		count   int
		hours   float64
	}
	buckets := make([]bucket, days)
	ranks := map[string]int{}
	total := decimal.Zero
	totalCount := 0
	to := from.AddDate(0, 0, days)

	for _, b := range bookings {
		if b.Status == enums.BookingStatusCancelled {
			continue
		}
		start := b.StartTime.UTC()
		end := b.EndTime.UTC()
		if b.ClosedAt != nil && b.ClosedAt.Before(end) {
			end = b.ClosedAt.UTC()
		}

		if !start.Before(from) && start.Before(to) {
			idx := int(truncateDay(start).Sub(from) / (hoursPerDay * time.Hour))
			buckets[idx].revenue = buckets[idx].revenue.Add(b.Amount)
			buckets[idx].count++
			total = total.Add(b.Amount)
			totalCount++
			if b.Slot != nil {
				ranks[b.Slot.SlotNumber]++
			}
		}

		for i := range buckets {
			dayStart := from.AddDate(0, 0, i)
			buckets[i].hours += overlapHours(start, end, dayStart, dayStart.AddDate(0, 0, 1))
		}
	}

	capacity := float64(park.TotalSlots * hoursPerDay)
	trend := make([]DayStats, 0, days)
	for i, bk := range buckets {
		day := from.AddDate(0, 0, i)
		occ := 0.0
		if capacity > 0 {
			occ = bk.hours / capacity * 100
		}
		if occ > 100 {
			occ = 100
		}
		trend = append(trend, DayStats{
			Name:      day.Format("Mon"),
			Date:      day.Format(time.DateOnly),
			Revenue:   bk.revenue.Round(2).InexactFloat64(),
			Bookings:  bk.count,
			Occupancy: decimal.NewFromFloat(occ).Round(1).InexactFloat64(),
		})
	}

	return &Analytics{
		ParkID:        park.ID,
		Days:          days,
		From:          from,
		To:            to,
		Trend:         trend,
		TopSlots:      topSlots(ranks, TopSlots),
		TotalRevenue:  total.Round(2).InexactFloat64(),
		TotalBookings: totalCount,
	}
}

// topSlots orders by count desc then slot number.
func topSlots(counts map[string]int, n int) []SlotRank {
	out := make([]SlotRank, 0, len(counts))
	for slot, count := range counts {
		out = append(out, SlotRank{Slot: slot, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Slot < out[j].Slot
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func overlapHours(start, end, from, to time.Time) float64 {
	if start.Before(from) {
		start = from
	}
	if end.After(to) {
		end = to
	}
	if !end.After(start) {
		return 0
	}
	return end.Sub(start).Hours()
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
