package enums

// OccupancyTrigger names what caused a slot transition. It is rendered into
// log descriptions and metric labels.
type OccupancyTrigger string

const (
	TriggerBooking  OccupancyTrigger = "booking"
	TriggerDetector OccupancyTrigger = "detector"
	TriggerManual   OccupancyTrigger = "manual"
	TriggerComplete OccupancyTrigger = "booking_completed"
	TriggerCancel   OccupancyTrigger = "booking_cancelled"
	TriggerExpiry   OccupancyTrigger = "booking_expired"
)

// String implements fmt.Stringer.
func (t OccupancyTrigger) String() string {
	return string(t)
}
