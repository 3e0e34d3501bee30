package store

import (
	"fmt"

	"github.com/brunoga/deep"
	"github.com/thorium-sim/thorium-core/pkg/core"
)

// MissionEdit carries the fields of editMission. Nil fields are unchanged.
type MissionEdit struct {
	Name        *string
	Description *string
	Simulators  *[]core.MissionSimulator
}

// CreateMission appends a new mission.
func (s *Store) CreateMission(id, name string) (core.Mission, error) {
	if err := requireName("mission", name); err != nil {
		return core.Mission{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.assignID("mission", id, s.missions.has)
	if err != nil {
		return core.Mission{}, err
	}

	m := &core.Mission{
		ID:         id,
		Name:       name,
		Simulators: []core.MissionSimulator{},
		Timeline:   []core.TimelineStep{},
	}
	s.missions.add(id, m)
	return deep.MustCopy(*m), nil
}

// RemoveMission deletes a mission. Unknown ids are ignored.
func (s *Store) RemoveMission(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.missions.remove(id)
}

// EditMission merges the set fields of edit into the mission. A replacement
// simulator list must reference existing simulators, each at most once.
// Simulators gained by the list point back at the mission; those dropped
// from it lose their mission id.
func (s *Store) EditMission(id string, edit MissionEdit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.missions.get(id)
	if !ok {
		return notFound("mission", id)
	}

	if edit.Simulators != nil {
		seen := make(map[string]struct{}, len(*edit.Simulators))
		for _, ms := range *edit.Simulators {
			if _, dup := seen[ms.SimulatorID]; dup {
				return fmt.Errorf("%w: simulator %q listed twice", core.ErrValidation, ms.SimulatorID)
			}
			seen[ms.SimulatorID] = struct{}{}
			if !s.simulators.has(ms.SimulatorID) {
				return notFound("simulator", ms.SimulatorID)
			}
		}
	}

	if edit.Name != nil {
		m.Name = *edit.Name
	}
	if edit.Description != nil {
		m.Description = *edit.Description
	}
	if edit.Simulators != nil {
		for _, ms := range m.Simulators {
			if sim, ok := s.simulators.get(ms.SimulatorID); ok && sim.MissionID == m.ID {
				sim.MissionID = ""
			}
		}
		m.Simulators = append([]core.MissionSimulator{}, *edit.Simulators...)
		for _, ms := range m.Simulators {
			sim, _ := s.simulators.get(ms.SimulatorID)
			sim.MissionID = m.ID
		}
	}
	return nil
}

// AddSimulatorToMission creates a simulator named "<mission> : <name>" and
// links it to the mission. Both collections change together.
func (s *Store) AddSimulatorToMission(missionID, simulatorName string) (core.Simulator, error) {
	if err := requireName("simulator", simulatorName); err != nil {
		return core.Simulator{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.missions.get(missionID)
	if !ok {
		return core.Simulator{}, notFound("mission", missionID)
	}

	id, err := s.assignID("simulator", "", s.simulators.has)
	if err != nil {
		return core.Simulator{}, err
	}

	sim := newSimulator(id, fmt.Sprintf("%s : %s", m.Name, simulatorName))
	sim.MissionID = m.ID

	m.Simulators = append(m.Simulators, core.MissionSimulator{SimulatorID: id, SimulatorName: simulatorName})
	s.simulators.add(id, sim)
	return deep.MustCopy(*sim), nil
}

// RemoveSimulatorToMission unlinks a simulator from the mission and deletes
// it. The pair must be linked; a simulator already deleted elsewhere only
// has its link removed.
func (s *Store) RemoveSimulatorToMission(missionID, simulatorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.missions.get(missionID)
	if !ok {
		return notFound("mission", missionID)
	}
	if !m.HasSimulator(simulatorID) {
		return fmt.Errorf("%w: simulator %q is not part of mission %q", core.ErrNotFound, simulatorID, missionID)
	}

	kept := m.Simulators[:0]
	for _, ms := range m.Simulators {
		if ms.SimulatorID != simulatorID {
			kept = append(kept, ms)
		}
	}
	m.Simulators = kept
	s.simulators.remove(simulatorID)
	return nil
}
