package store

import (
	"github.com/brunoga/deep"
	"github.com/thorium-sim/thorium-core/pkg/core"
)

// FlightSimulator selects the source simulator, mission and station set for
// one simulator of a flight.
type FlightSimulator struct {
	SimulatorID  string
	MissionID    string
	StationSetID string
}

// StartFlight clones one live simulator per descriptor and records a flight
// holding the clone ids in input order. Each clone is a deep copy of its
// source with a fresh id, the template flag cleared, the mission and flight
// bound, and stations copied from the station set. An empty station set id
// keeps the source's stations. The mission id is recorded as given; it need
// not name an existing mission.
func (s *Store) StartFlight(id, name string, sims []FlightSimulator) (core.Flight, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	flightID, err := s.assignID("flight", id, s.flights.has)
	if err != nil {
		return core.Flight{}, err
	}

	type source struct {
		sim        *core.Simulator
		stationSet *core.StationSet
		missionID  string
	}
	sources := make([]source, 0, len(sims))
	for _, fs := range sims {
		src, ok := s.simulators.get(fs.SimulatorID)
		if !ok {
			return core.Flight{}, notFound("simulator", fs.SimulatorID)
		}
		var ss *core.StationSet
		if fs.StationSetID != "" {
			ss, ok = s.stationSets.get(fs.StationSetID)
			if !ok {
				return core.Flight{}, notFound("station set", fs.StationSetID)
			}
		}
		sources = append(sources, source{sim: src, stationSet: ss, missionID: fs.MissionID})
	}

	flight := &core.Flight{ID: flightID, Name: name, Simulators: make([]string, 0, len(sources))}
	for _, src := range sources {
		simID, err := s.assignID("simulator", "", s.simulators.has)
		if err != nil {
			return core.Flight{}, err
		}

		clone := deep.MustCopy(*src.sim)
		clone.ID = simID
		clone.Template = false
		clone.MissionID = src.missionID
		clone.FlightID = flightID
		clone.TimelineStep = 0
		if src.stationSet != nil {
			clone.Stations = deep.MustCopy(src.stationSet.Stations)
		}

		s.simulators.add(simID, &clone)
		flight.Simulators = append(flight.Simulators, simID)
	}

	s.flights.add(flightID, flight)
	return deep.MustCopy(*flight), nil
}
