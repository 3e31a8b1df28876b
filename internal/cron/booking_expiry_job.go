package cron

import (
	"context"
	"time"

	"github.com/angelmondragon/smartpark-backend/pkg/errors"
	"github.com/angelmondragon/smartpark-backend/pkg/logger"
)

// BookingExpiryJobName labels the job in logs and metrics.
const BookingExpiryJobName = "booking-expiry"

type bookingExpirer interface {
	ExpireDue(ctx context.Context, now time.Time) (int, error)
}

type BookingExpiryJobParams struct {
	Logger   *logger.Logger
	Bookings bookingExpirer
	Now      func() time.Time
}

// NewBookingExpiryJob completes active bookings whose end time has passed
// and frees their slots.
func NewBookingExpiryJob(params BookingExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, errors.New(errors.CodeDependency, "logger required")
	}
	if params.Bookings == nil {
		return nil, errors.New(errors.CodeDependency, "bookings service required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &bookingExpiryJob{logg: params.Logger, bookings: params.Bookings, now: now}, nil
}

type bookingExpiryJob struct {
	logg     *logger.Logger
	bookings bookingExpirer
	now      func() time.Time
}

func (j *bookingExpiryJob) Name() string { return BookingExpiryJobName }

func (j *bookingExpiryJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	expired, err := j.bookings.ExpireDue(ctx, now)
	if expired > 0 {
		j.logg.Info(j.logg.WithFields(ctx, map[string]any{
			"expired": expired,
			"cutoff":  now,
		}), "bookings.expired")
	}
	if err != nil {
		return errors.Wrap(errors.CodeInternal, err, "expire bookings")
	}
	return nil
}
