package parks

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/smartpark-backend/internal/occupancy"
	"github.com/angelmondragon/smartpark-backend/pkg/db"
	"github.com/angelmondragon/smartpark-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/smartpark-backend/pkg/errors"
	"github.com/angelmondragon/smartpark-backend/pkg/geo"
	"github.com/angelmondragon/smartpark-backend/pkg/logger"
)

const (
	DefaultRadiusKm = 5.0
	MaxRadiusKm     = 500.0
	MaxTotalSlots   = 500

	slotPrefix = "A"
)

// DetectorControl starts and stops per-park occupancy detection.
type DetectorControl interface {
	Start(ctx context.Context, parkID uuid.UUID, source string) error
	Stop(ctx context.Context, parkID uuid.UUID) error
	IsRunning(parkID uuid.UUID) bool
}

// Sealer encrypts camera sources at rest.
type Sealer interface {
	Seal(plaintext, aad string) (string, error)
	Open(sealed, aad string) (string, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service manages parks for owners and park discovery for drivers.
type Service interface {
	Create(ctx context.Context, ownerID string, input CreateInput) (*ParkView, error)
	ListOwned(ctx context.Context, ownerID string) ([]ParkView, error)
	Update(ctx context.Context, ownerID string, parkID uuid.UUID, input UpdateInput) (*ParkView, error)
	Detail(ctx context.Context, parkID uuid.UUID) (*ParkView, error)
	Nearby(ctx context.Context, query NearbyQuery) ([]ParkView, error)
	OwnedPark(ctx context.Context, ownerID string, parkID uuid.UUID) (*models.Park, error)
	Get(ctx context.Context, parkID uuid.UUID) (*models.Park, error)
	RestoreDetection(ctx context.Context) (int, error)
}

// ServiceParams wire the parks service.
type ServiceParams struct {
	Repo     Repository
	Tx       txRunner
	Detector DetectorControl
	Sealer   Sealer
	Logger   *logger.Logger
	Now      func() time.Time
}

type service struct {
	repo     Repository
	tx       txRunner
	detector DetectorControl
	sealer   Sealer
	logg     *logger.Logger
	now      func() time.Time
}

// CreateInput describes a new park.
type CreateInput struct {
	Name          string
	Location      string
	Latitude      float64
	Longitude     float64
	TotalSlots    int
	HourlyRate    decimal.Decimal
	CameraRTSPURL *string
	PaymentLink   *string
}

// UpdateInput carries optional park changes. total_slots is fixed at creation.
// An empty CameraRTSPURL clears the camera and stops detection.
type UpdateInput struct {
	Name          *string
	Location      *string
	Latitude      *float64
	Longitude     *float64
	HourlyRate    *decimal.Decimal
	CameraRTSPURL *string
	PaymentLink   *string
}

// NearbyQuery locates parks around a point. RadiusKm must be positive; callers
// fall back to DefaultRadiusKm when the client omits it.
type NearbyQuery struct {
	Lat      float64
	Lon      float64
	RadiusKm float64
}

// ParkView is the API shape of a park.
type ParkView struct {
	ID              uuid.UUID            `json:"id"`
	OwnerID         string               `json:"owner_id"`
	Name            string               `json:"name"`
	Location        string               `json:"location"`
	Latitude        *float64             `json:"latitude"`
	Longitude       *float64             `json:"longitude"`
	TotalSlots      int                  `json:"total_slots"`
	HourlyRate      float64              `json:"hourly_rate"`
	PaymentLink     *string              `json:"payment_link,omitempty"`
	HasCamera       bool                 `json:"has_camera"`
	DetectionActive *bool                `json:"detection_active,omitempty"`
	AvailableSlots  int                  `json:"available_slots"`
	Distance        *float64             `json:"distance,omitempty"`
	Slots           []occupancy.SlotView `json:"slots,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
}

// NewService validates dependencies and builds the parks service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "parks repository required")
	}
	if params.Tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if params.Sealer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "camera sealer required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		repo:     params.Repo,
		tx:       params.Tx,
		detector: params.Detector,
		sealer:   params.Sealer,
		logg:     params.Logger,
		now:      now,
	}, nil
}

func (s *service) Create(ctx context.Context, ownerID string, input CreateInput) (*ParkView, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "owner required")
	}
	if !(geo.Point{Lat: input.Latitude, Lon: input.Longitude}).Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coordinates out of range")
	}
	if input.TotalSlots <= 0 || input.TotalSlots > MaxTotalSlots {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("total_slots must be between 1 and %d", MaxTotalSlots))
	}
	if strings.TrimSpace(input.Name) == "" || strings.TrimSpace(input.Location) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name and location are required")
	}
	if input.HourlyRate.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "hourly_rate must not be negative")
	}

	now := s.now()
	lat, lon := input.Latitude, input.Longitude
	park := &models.Park{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		Name:        strings.TrimSpace(input.Name),
		Location:    strings.TrimSpace(input.Location),
		Latitude:    &lat,
		Longitude:   &lon,
		TotalSlots:  input.TotalSlots,
		HourlyRate:  input.HourlyRate.Round(2),
		PaymentLink: trimmedOrNil(input.PaymentLink),
		Slots:       buildSlots(input.TotalSlots, now),
	}

	source := ""
	if input.CameraRTSPURL != nil && strings.TrimSpace(*input.CameraRTSPURL) != "" {
		source = strings.TrimSpace(*input.CameraRTSPURL)
		sealed, err := s.sealer.Seal(source, park.ID.String())
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "seal camera url")
		}
		park.CameraRTSPURLEncrypted = &sealed
	}

	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).Create(ctx, park)
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create park")
	}

	ctx = s.logg.WithParkID(ctx, park.ID.String())
	s.logg.Info(s.logg.WithField(ctx, "total_slots", park.TotalSlots), "park.created")

	if source != "" {
		s.startDetection(ctx, park.ID, source)
	}

	view := s.ownerView(*park, park.TotalSlots)
	view.Slots = occupancy.NewSlotViews(park.Slots)
	return &view, nil
}

func (s *service) ListOwned(ctx context.Context, ownerID string) ([]ParkView, error) {
	parks, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list owned parks")
	}
	counts, err := s.repo.AvailableCounts(ctx, parkIDs(parks))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count available slots")
	}

	views := make([]ParkView, 0, len(parks))
	for _, park := range parks {
		views = append(views, s.ownerView(park, counts[park.ID]))
	}
	return views, nil
}

func (s *service) Update(ctx context.Context, ownerID string, parkID uuid.UUID, input UpdateInput) (*ParkView, error) {
	park, err := s.OwnedPark(ctx, ownerID, parkID)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "name must not be empty")
		}
		fields["name"] = name
		park.Name = name
	}
	if input.Location != nil {
		location := strings.TrimSpace(*input.Location)
		if location == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "location must not be empty")
		}
		fields["location"] = location
		park.Location = location
	}
	if input.Latitude != nil || input.Longitude != nil {
		lat, lon := park.Latitude, park.Longitude
		if input.Latitude != nil {
			lat = input.Latitude
		}
		if input.Longitude != nil {
			lon = input.Longitude
		}
		if lat == nil || lon == nil || !(geo.Point{Lat: *lat, Lon: *lon}).Valid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "coordinates out of range")
		}
		fields["latitude"], fields["longitude"] = *lat, *lon
		park.Latitude, park.Longitude = lat, lon
	}
	if input.HourlyRate != nil {
		if input.HourlyRate.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "hourly_rate must not be negative")
		}
		fields["hourly_rate"] = input.HourlyRate.Round(2)
		park.HourlyRate = input.HourlyRate.Round(2)
	}
	if input.PaymentLink != nil {
		link := trimmedOrNil(input.PaymentLink)
		fields["payment_link"] = link
		park.PaymentLink = link
	}

	cameraChanged := false
	source := ""
	if input.CameraRTSPURL != nil {
		cameraChanged = true
		source = strings.TrimSpace(*input.CameraRTSPURL)
		if source == "" {
			fields["camera_rtsp_url_encrypted"] = nil
			park.CameraRTSPURLEncrypted = nil
		} else {
			sealed, err := s.sealer.Seal(source, park.ID.String())
			if err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "seal camera url")
			}
			fields["camera_rtsp_url_encrypted"] = sealed
			park.CameraRTSPURLEncrypted = &sealed
		}
	}

	if len(fields) > 0 {
		fields["updated_at"] = s.now()
		if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			return s.repo.WithTx(tx).Update(ctx, park.ID, fields)
		}); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update park")
		}
	}

	ctx = s.logg.WithParkID(ctx, park.ID.String())
	if cameraChanged {
		s.stopDetection(ctx, park.ID)
		if source != "" {
			s.startDetection(ctx, park.ID, source)
		}
	}

	counts, err := s.repo.AvailableCounts(ctx, []uuid.UUID{park.ID})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count available slots")
	}
	view := s.ownerView(*park, counts[park.ID])
	return &view, nil
}

func (s *service) Detail(ctx context.Context, parkID uuid.UUID) (*ParkView, error) {
	park, err := s.Get(ctx, parkID)
	if err != nil {
		return nil, err
	}
	slots, err := s.repo.ListSlots(ctx, park.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list slots")
	}

	available := 0
	for _, slot := range slots {
		if !slot.IsOccupied {
			available++
		}
	}
	view := publicView(*park, available)
	view.Slots = occupancy.NewSlotViews(slots)
	return &view, nil
}

// Nearby scans every located park and keeps those within the radius,
// nearest first.
func (s *service) Nearby(ctx context.Context, query NearbyQuery) ([]ParkView, error) {
	radius := query.RadiusKm
	origin := geo.Point{Lat: query.Lat, Lon: query.Lon}
	if !origin.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coordinates out of range")
	}
	if math.IsNaN(radius) || radius <= 0 || radius > MaxRadiusKm {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("radius must be greater than 0 and at most %.0f km", MaxRadiusKm))
	}

	parks, err := s.repo.ListLocated(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list parks")
	}

	type hit struct {
		park     models.Park
		distance float64
	}
	hits := make([]hit, 0, len(parks))
	for _, park := range parks {
		if !park.HasCoordinates() {
			continue
		}
		point := geo.Point{Lat: *park.Latitude, Lon: *park.Longitude}
		if !point.Valid() {
			continue
		}
		d := geo.DistanceKm(origin, point)
		if d <= radius {
			hits = append(hits, hit{park: park, distance: d})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].distance < hits[j].distance })

	ids := make([]uuid.UUID, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.park.ID)
	}
	counts, err := s.repo.AvailableCounts(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count available slots")
	}

	views := make([]ParkView, 0, len(hits))
	for _, h := range hits {
		view := publicView(h.park, counts[h.park.ID])
		d := h.distance
		view.Distance = &d
		views = append(views, view)
	}
	return views, nil
}

func (s *service) Get(ctx context.Context, parkID uuid.UUID) (*models.Park, error) {
	if parkID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "park id required")
	}
	park, err := s.repo.FindByID(ctx, parkID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Park not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load park")
	}
	return park, nil
}

func (s *service) OwnedPark(ctx context.Context, ownerID string, parkID uuid.UUID) (*models.Park, error) {
	park, err := s.Get(ctx, parkID)
	if err != nil {
		return nil, err
	}
	if park.OwnerID != ownerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "Not authorized")
	}
	return park, nil
}

// RestoreDetection starts detection for every park with a stored camera.
// Parks whose sealed source cannot be opened are skipped.
func (s *service) RestoreDetection(ctx context.Context) (int, error) {
	if s.detector == nil {
		return 0, nil
	}
	parks, err := s.repo.ListWithCamera(ctx)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list camera parks")
	}

	started := 0
	for _, park := range parks {
		parkCtx := s.logg.WithParkID(ctx, park.ID.String())
		source, err := s.sealer.Open(*park.CameraRTSPURLEncrypted, park.ID.String())
		if err != nil {
			s.logg.Error(parkCtx, "detector.restore.open_failed", err)
			continue
		}
		if s.startDetection(parkCtx, park.ID, source) {
			started++
		}
	}
	return started, nil
}

func (s *service) startDetection(ctx context.Context, parkID uuid.UUID, source string) bool {
	if s.detector == nil {
		return false
	}
	if err := s.detector.Start(ctx, parkID, source); err != nil {
		s.logg.Error(ctx, "detector.start_failed", err)
		return false
	}
	return true
}

func (s *service) stopDetection(ctx context.Context, parkID uuid.UUID) {
	if s.detector == nil {
		return
	}
	if err := s.detector.Stop(ctx, parkID); err != nil {
		s.logg.Error(ctx, "detector.stop_failed", err)
	}
}

func (s *service) ownerView(park models.Park, available int) ParkView {
	view := publicView(park, available)
	view.PaymentLink = park.PaymentLink
	if s.detector != nil {
		running := s.detector.IsRunning(park.ID)
		view.DetectionActive = &running
	}
	return view
}

func publicView(park models.Park, available int) ParkView {
	return ParkView{
		ID:             park.ID,
		OwnerID:        park.OwnerID,
		Name:           park.Name,
		Location:       park.Location,
		Latitude:       park.Latitude,
		Longitude:      park.Longitude,
		TotalSlots:     park.TotalSlots,
		HourlyRate:     park.HourlyRate.Round(2).InexactFloat64(),
		PaymentLink:    park.PaymentLink,
		HasCamera:      park.HasCamera(),
		AvailableSlots: available,
		CreatedAt:      park.CreatedAt,
	}
}

// buildSlots names slots A1..An in position order.
func buildSlots(total int, now time.Time) []models.Slot {
	slots := make([]models.Slot, 0, total)
	for i := 1; i <= total; i++ {
		slots = append(slots, models.Slot{
			ID:          uuid.New(),
			SlotNumber:  fmt.Sprintf("%s%d", slotPrefix, i),
			Position:    i,
			LastUpdated: now,
		})
	}
	return slots
}

func parkIDs(parks []models.Park) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(parks))
	for _, park := range parks {
		ids = append(ids, park.ID)
	}
	return ids
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
