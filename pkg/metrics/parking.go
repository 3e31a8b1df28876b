package metrics

import "github.com/prometheus/client_golang/prometheus"

// ParkingMetrics tracks slot transitions, bookings and detector activity.
// A nil receiver is a no-op so services can run without a registry.
type ParkingMetrics struct {
	transitions   *prometheus.CounterVec
	bookings      *prometheus.CounterVec
	detectorTicks *prometheus.CounterVec
	detectorTasks prometheus.Gauge
	realtimeConns prometheus.Gauge
	realtimeDrops prometheus.Counter
}

// NewParkingMetrics registers the parking metrics on reg.
func NewParkingMetrics(reg prometheus.Registerer) *ParkingMetrics {
	if reg == nil {
		return &ParkingMetrics{}
	}
	m := &ParkingMetrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "slots",
			Name:      "transitions_total",
			Help:      "Slot state transitions by trigger and resulting state.",
		}, []string{"trigger", "state"}),
		bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bookings",
			Name:      "outcomes_total",
			Help:      "Booking operations by outcome.",
		}, []string{"outcome"}),
		detectorTicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detector",
			Name:      "ticks_total",
			Help:      "Detector ticks by result.",
		}, []string{"result"}),
		detectorTasks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "detector",
			Name:      "running_tasks",
			Help:      "Parks with an active detection task.",
		}),
		realtimeConns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "connections",
			Help:      "Open realtime websocket connections.",
		}),
		realtimeDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "dropped_clients_total",
			Help:      "Clients disconnected because their send buffer was full.",
		}),
	}
	reg.MustRegister(m.transitions, m.bookings, m.detectorTicks, m.detectorTasks, m.realtimeConns, m.realtimeDrops)
	return m
}

// ObserveTransition counts a slot entering state (occupied|free).
func (m *ParkingMetrics) ObserveTransition(trigger string, occupied bool) {
	if m == nil || m.transitions == nil {
		return
	}
	state := "free"
	if occupied {
		state = "occupied"
	}
	m.transitions.WithLabelValues(normalizeLabel(trigger), state).Inc()
}

// IncBooking counts a booking outcome (created, no_slot, completed, cancelled, expired).
func (m *ParkingMetrics) IncBooking(outcome string) {
	if m == nil || m.bookings == nil {
		return
	}
	m.bookings.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncDetectorTick counts a detector tick by result (ok, failed).
func (m *ParkingMetrics) IncDetectorTick(result string) {
	if m == nil || m.detectorTicks == nil {
		return
	}
	m.detectorTicks.WithLabelValues(normalizeLabel(result)).Inc()
}

// SetDetectorTasks records the number of running detection tasks.
func (m *ParkingMetrics) SetDetectorTasks(n int) {
	if m == nil || m.detectorTasks == nil {
		return
	}
	m.detectorTasks.Set(float64(n))
}

// AddRealtimeConnections adjusts the open websocket gauge.
func (m *ParkingMetrics) AddRealtimeConnections(delta int) {
	if m == nil || m.realtimeConns == nil {
		return
	}
	m.realtimeConns.Add(float64(delta))
}

// IncRealtimeDrop counts a slow client eviction.
func (m *ParkingMetrics) IncRealtimeDrop() {
	if m == nil || m.realtimeDrops == nil {
		return
	}
	m.realtimeDrops.Inc()
}
