package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/smartpark-backend/api/controllers"
	"github.com/angelmondragon/smartpark-backend/api/middleware"
	"github.com/angelmondragon/smartpark-backend/internal/bookings"
	"github.com/angelmondragon/smartpark-backend/internal/dashboard"
	"github.com/angelmondragon/smartpark-backend/internal/eventlog"
	"github.com/angelmondragon/smartpark-backend/internal/parks"
	"github.com/angelmondragon/smartpark-backend/pkg/config"
	"github.com/angelmondragon/smartpark-backend/pkg/enums"
	"github.com/angelmondragon/smartpark-backend/pkg/logger"
	"github.com/angelmondragon/smartpark-backend/pkg/metrics"
)

// Params carries every dependency the HTTP surface needs.
type Params struct {
	Config      *config.Config
	Logger      *logger.Logger
	DB          controllers.Pinger
	Redis       controllers.Pinger
	Throttle    middleware.WindowCounter
	Users       middleware.UserSyncer
	Parks       parks.Service
	Bookings    bookings.Service
	Slots       controllers.SlotOverrider
	Dashboard   dashboard.Service
	EventLog    eventlog.Service
	Hub         controllers.RoomAttacher
	Gatherer    prometheus.Gatherer
	HTTPMetrics *metrics.HTTPMetrics
}

func NewRouter(p Params) http.Handler {
	cfg, logg := p.Config, p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, p.HTTPMetrics),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.DB, p.Redis))
	})
	if p.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(p.Gatherer, promhttp.HandlerOpts{}))
	}

	upgrader := controllers.NewUpgrader(cfg.CORS.AllowedOrigins)

	r.Group(func(r chi.Router) {
		r.Use(middleware.IPRateLimit(cfg.RateLimit.IPLimit, cfg.RateLimit.Window, logg))
		r.Use(middleware.Auth(cfg.Auth, p.Users, logg))

		r.Get("/auth/me", controllers.AuthMe(logg))

		r.Route("/owner", func(r chi.Router) {
			r.Use(middleware.RequireRole(enums.UserRoleOwner, logg))
			r.Post("/parks", controllers.OwnerCreatePark(p.Parks, logg))
			r.Get("/parks", controllers.OwnerListParks(p.Parks, logg))
			r.Patch("/parks/{parkId}", controllers.OwnerUpdatePark(p.Parks, logg))
			r.Get("/dashboard/{parkId}", controllers.OwnerDashboard(p.Dashboard, logg))
			r.Get("/analytics/{parkId}", controllers.OwnerAnalytics(p.Dashboard, logg))
			r.Get("/logs/{parkId}", controllers.OwnerLogs(p.EventLog, logg))
			r.Patch("/slots/{slotId}", controllers.OwnerUpdateSlot(p.Slots, logg))
		})

		r.Route("/user", func(r chi.Router) {
			r.Get("/parks/nearby", controllers.UserNearbyParks(p.Parks, logg))
			r.Get("/parks/{parkId}", controllers.UserParkDetail(p.Parks, logg))
			r.With(middleware.BookingRateLimit(p.Throttle, cfg.RateLimit.BookingLimitByUser, cfg.RateLimit.BookingWindow, logg)).
				Post("/bookings", controllers.UserCreateBooking(p.Bookings, logg))
			r.Get("/bookings", controllers.UserListBookings(p.Bookings, logg))
			r.Post("/bookings/{bookingId}/complete", controllers.UserCompleteBooking(p.Bookings, logg))
			r.Post("/bookings/{bookingId}/cancel", controllers.UserCancelBooking(p.Bookings, logg))
		})

		socket := controllers.ParkSocket(p.Parks, p.Hub, upgrader, logg)
		r.Get("/ws/parks/{parkId}", socket)
		r.Get("/ws/logs/{parkId}", socket)
	})

	return r
}
