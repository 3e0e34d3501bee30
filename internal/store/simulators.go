package store

import (
	"fmt"

	"github.com/brunoga/deep"
	"github.com/thorium-sim/thorium-core/pkg/core"
)

// SimulatorSpec describes a simulator created by createSimulator.
type SimulatorSpec struct {
	ID           string
	Name         string
	Template     bool
	FlightID     string
	StationSetID string
	Timeline     []core.TimelineStep
}

func newSimulator(id, name string) *core.Simulator {
	return &core.Simulator{
		ID:         id,
		Name:       name,
		Stations:   []core.Station{},
		Layout:     core.DefaultLayout,
		AlertLevel: core.DefaultAlertLevel,
		Timeline:   []core.TimelineStep{},
	}
}

// CreateSimulator appends a simulator. A flight id attaches the simulator to
// that flight, and a station set id seeds its stations.
func (s *Store) CreateSimulator(spec SimulatorSpec) (core.Simulator, error) {
	if err := requireName("simulator", spec.Name); err != nil {
		return core.Simulator{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var flight *core.Flight
	if spec.FlightID != "" {
		f, ok := s.flights.get(spec.FlightID)
		if !ok {
			return core.Simulator{}, notFound("flight", spec.FlightID)
		}
		flight = f
	}

	var stationSet *core.StationSet
	if spec.StationSetID != "" {
		ss, ok := s.stationSets.get(spec.StationSetID)
		if !ok {
			return core.Simulator{}, notFound("station set", spec.StationSetID)
		}
		stationSet = ss
	}

	timeline, err := s.buildTimeline(spec.Timeline)
	if err != nil {
		return core.Simulator{}, err
	}

	id, err := s.assignID("simulator", spec.ID, s.simulators.has)
	if err != nil {
		return core.Simulator{}, err
	}

	sim := newSimulator(id, spec.Name)
	sim.Template = spec.Template
	sim.Timeline = timeline
	if stationSet != nil {
		sim.Stations = deep.MustCopy(stationSet.Stations)
	}
	if flight != nil {
		sim.FlightID = flight.ID
		flight.Simulators = append(flight.Simulators, id)
	}

	s.simulators.add(id, sim)
	return deep.MustCopy(*sim), nil
}

// buildTimeline copies an initial timeline, generating missing step and item
// ids and rejecting duplicates.
func (s *Store) buildTimeline(steps []core.TimelineStep) ([]core.TimelineStep, error) {
	out := deep.MustCopy(steps)
	if out == nil {
		return []core.TimelineStep{}, nil
	}

	stepIDs := make(map[string]struct{}, len(out))
	for i := range out {
		step := &out[i]
		id, err := s.assignID("timeline step", step.ID, func(id string) bool {
			_, ok := stepIDs[id]
			return ok
		})
		if err != nil {
			return nil, err
		}
		step.ID = id
		stepIDs[id] = struct{}{}

		itemIDs := make(map[string]struct{}, len(step.TimelineItems))
		for j := range step.TimelineItems {
			item := &step.TimelineItems[j]
			id, err := s.assignID("timeline item", item.ID, func(id string) bool {
				_, ok := itemIDs[id]
				return ok
			})
			if err != nil {
				return nil, err
			}
			item.ID = id
			itemIDs[id] = struct{}{}
		}
		if step.TimelineItems == nil {
			step.TimelineItems = []core.TimelineItem{}
		}
	}
	renumber(out)
	return out, nil
}

// RemoveSimulator deletes a simulator. Unknown ids are ignored.
func (s *Store) RemoveSimulator(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.simulators.remove(id)
}

func (s *Store) updateSimulator(id string, fn func(*core.Simulator) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sim, ok := s.simulators.get(id)
	if !ok {
		return notFound("simulator", id)
	}
	return fn(sim)
}

// RenameSimulator sets the simulator name.
func (s *Store) RenameSimulator(id, name string) error {
	if err := requireName("simulator", name); err != nil {
		return err
	}
	return s.updateSimulator(id, func(sim *core.Simulator) error {
		sim.Name = name
		return nil
	})
}

// SetSimulatorLayout sets the simulator layout tag.
func (s *Store) SetSimulatorLayout(id, layout string) error {
	if layout == "" {
		return fmt.Errorf("%w: layout is required", core.ErrValidation)
	}
	return s.updateSimulator(id, func(sim *core.Simulator) error {
		sim.Layout = layout
		return nil
	})
}

// SetSimulatorAlertLevel sets the simulator alert level.
func (s *Store) SetSimulatorAlertLevel(id string, level core.AlertLevel) error {
	if _, err := core.ParseAlertLevel(string(level)); err != nil {
		return err
	}
	return s.updateSimulator(id, func(sim *core.Simulator) error {
		sim.AlertLevel = level
		return nil
	})
}

// SetSimulatorCrewCount sets the simulator crew count.
func (s *Store) SetSimulatorCrewCount(id string, crewCount int) error {
	if crewCount < 0 {
		return fmt.Errorf("%w: crew count %d is negative", core.ErrValidation, crewCount)
	}
	return s.updateSimulator(id, func(sim *core.Simulator) error {
		sim.CrewCount = crewCount
		return nil
	})
}

// AdvanceSimulatorTimeline moves the timeline cursor one step forward. The
// cursor stops at the timeline length.
func (s *Store) AdvanceSimulatorTimeline(id string) (int, error) {
	var cursor int
	err := s.updateSimulator(id, func(sim *core.Simulator) error {
		if sim.TimelineStep < len(sim.Timeline) {
			sim.TimelineStep++
		}
		cursor = sim.TimelineStep
		return nil
	})
	return cursor, err
}
