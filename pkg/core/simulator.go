// pkg/core/simulator.go
package core

import "fmt"

// AlertLevel is the ship-wide readiness condition, "5" (normal) down to "1".
type AlertLevel string

const (
	AlertLevel1 AlertLevel = "1"
	AlertLevel2 AlertLevel = "2"
	AlertLevel3 AlertLevel = "3"
	AlertLevel4 AlertLevel = "4"
	AlertLevel5 AlertLevel = "5"

	DefaultAlertLevel = AlertLevel5
	DefaultLayout     = "LayoutDefault"
)

// ParseAlertLevel validates a raw alert level.
func ParseAlertLevel(s string) (AlertLevel, error) {
	switch AlertLevel(s) {
	case AlertLevel1, AlertLevel2, AlertLevel3, AlertLevel4, AlertLevel5:
		return AlertLevel(s), nil
	}
	return "", fmt.Errorf("%w: alert level %q must be between 1 and 5", ErrValidation, s)
}

// Simulator is one crew's interactive session, either a reusable template or a
// live instance spawned for a flight.
type Simulator struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Template     bool           `json:"template"`
	MissionID    string         `json:"mission,omitempty"`
	FlightID     string         `json:"flight,omitempty"`
	Stations     []Station      `json:"stations"`
	Layout       string         `json:"layout"`
	AlertLevel   AlertLevel     `json:"alertlevel"`
	CrewCount    int            `json:"crewCount"`
	Timeline     []TimelineStep `json:"timeline"`
	TimelineStep int            `json:"timelineStep"`
}

// StationNames returns the simulator's station names in order.
func (s *Simulator) StationNames() []string {
	names := make([]string, len(s.Stations))
	for i, st := range s.Stations {
		names[i] = st.Name
	}
	return names
}
