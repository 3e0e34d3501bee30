// pkg/core/mission.go
package core

// MissionSimulator links a mission to one of the simulators it spawned.
type MissionSimulator struct {
	SimulatorID   string `json:"simulatorId"`
	SimulatorName string `json:"simulatorName"`
}

// Mission is a top-level scenario grouping simulators and its own timeline.
type Mission struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Simulators  []MissionSimulator `json:"simulators"`
	Timeline    []TimelineStep     `json:"timeline"`
}

// HasSimulator reports whether simulatorID is linked to the mission.
func (m *Mission) HasSimulator(simulatorID string) bool {
	for _, s := range m.Simulators {
		if s.SimulatorID == simulatorID {
			return true
		}
	}
	return false
}

// Flight is a launched group of simulators cloned from templates.
type Flight struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Simulators []string `json:"simulators"`
}
