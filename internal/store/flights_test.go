package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thorium-sim/thorium-core/pkg/core"
)

// seedFlightFixtures creates template "tmplA", mission "m1" and station set
// "ss1" with stations Helm and Comm.
func seedFlightFixtures(t *testing.T, s *Store) {
	t.Helper()
	_, err := s.CreateSimulator(SimulatorSpec{
		ID:       "tmplA",
		Name:     "Template A",
		Template: true,
		Timeline: []core.TimelineStep{{ID: "t1", Name: "Launch"}},
	})
	require.NoError(t, err)
	require.NoError(t, s.SetSimulatorCrewCount("tmplA", 6))
	_, err = s.CreateMission("m1", "Rescue")
	require.NoError(t, err)
	_, err = s.CreateStationSet("ss1", "Bridge", "tmplA")
	require.NoError(t, err)
	require.NoError(t, s.AddStation("ss1", "Helm"))
	require.NoError(t, s.AddStation("ss1", "Comm"))
	require.NoError(t, s.AddCard("ss1", "Helm", core.Card{Name: "Navigation", Component: "Navigation"}))
}

func TestStartFlight(t *testing.T) {
	s := newTestStore(t)
	seedFlightFixtures(t, s)

	flight, err := s.StartFlight("f1", "Flight 1", []FlightSimulator{
		{SimulatorID: "tmplA", MissionID: "m1", StationSetID: "ss1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "f1", flight.ID)
	assert.Equal(t, "Flight 1", flight.Name)
	require.Len(t, flight.Simulators, 1)

	sims := s.Simulators()
	require.Len(t, sims, 2)
	clone := sims[1]
	assert.Equal(t, flight.Simulators[0], clone.ID)
	assert.NotEqual(t, "tmplA", clone.ID)
	assert.False(t, clone.Template)
	assert.Equal(t, "m1", clone.MissionID)
	assert.Equal(t, "f1", clone.FlightID)
	assert.Equal(t, []string{"Helm", "Comm"}, clone.StationNames())
	assert.Equal(t, "Template A", clone.Name)
	assert.Equal(t, 6, clone.CrewCount)
	require.Len(t, clone.Timeline, 1)
	assert.Equal(t, "t1", clone.Timeline[0].ID)

	template := sims[0]
	assert.True(t, template.Template)
	assert.Empty(t, template.Stations)

	flights := s.Flights()
	require.Len(t, flights, 1)
	assert.Equal(t, flight, flights[0])
}

func TestStartFlight_WithoutMission(t *testing.T) {
	s := newTestStore(t)
	_, err := s.CreateSimulator(SimulatorSpec{ID: "tmplA", Name: "Template A", Template: true})
	require.NoError(t, err)
	_, err = s.CreateStationSet("ss1", "Bridge", "tmplA")
	require.NoError(t, err)
	require.NoError(t, s.AddStation("ss1", "Helm"))
	require.NoError(t, s.AddStation("ss1", "Comm"))

	flight, err := s.StartFlight("f1", "Flight 1", []FlightSimulator{
		{SimulatorID: "tmplA", MissionID: "m1", StationSetID: "ss1"},
	})
	require.NoError(t, err)
	require.Len(t, flight.Simulators, 1)
	assert.Len(t, s.Flights(), 1)

	sims := s.Simulators()
	require.Len(t, sims, 2)
	clone := sims[1]
	assert.Equal(t, "m1", clone.MissionID)
	assert.Equal(t, "f1", clone.FlightID)
	assert.False(t, clone.Template)
	assert.Equal(t, []string{"Helm", "Comm"}, clone.StationNames())
	assert.Empty(t, s.Missions())
}

func TestStartFlight_PreservesOrder(t *testing.T) {
	s := newTestStore(t)
	seedFlightFixtures(t, s)
	_, err := s.CreateSimulator(SimulatorSpec{ID: "tmplB", Name: "Template B", Template: true})
	require.NoError(t, err)

	flight, err := s.StartFlight("f1", "Flight 1", []FlightSimulator{
		{SimulatorID: "tmplB", StationSetID: "ss1"},
		{SimulatorID: "tmplA", MissionID: "m1", StationSetID: "ss1"},
	})
	require.NoError(t, err)
	require.Len(t, flight.Simulators, 2)

	byID := map[string]core.Simulator{}
	for _, sim := range s.Simulators() {
		byID[sim.ID] = sim
	}
	assert.Equal(t, "Template B", byID[flight.Simulators[0]].Name)
	assert.Equal(t, "Template A", byID[flight.Simulators[1]].Name)
}

func TestStartFlight_ClonesAreIndependent(t *testing.T) {
	s := newTestStore(t)
	seedFlightFixtures(t, s)

	flight, err := s.StartFlight("f1", "Flight 1", []FlightSimulator{
		{SimulatorID: "tmplA", MissionID: "m1", StationSetID: "ss1"},
		{SimulatorID: "tmplA", MissionID: "m1", StationSetID: "ss1"},
	})
	require.NoError(t, err)
	require.Len(t, flight.Simulators, 2)
	assert.NotEqual(t, flight.Simulators[0], flight.Simulators[1])

	first := core.SimulatorOwner(flight.Simulators[0])
	require.NoError(t, s.UpdateTimelineStep(first, "t1", StepEdit{Name: strPtr("Changed")}))
	require.NoError(t, s.RenameStation("ss1", "Helm", "Pilot"))

	for _, sim := range s.Simulators() {
		if sim.ID == flight.Simulators[0] {
			assert.Equal(t, "Changed", sim.Timeline[0].Name)
			continue
		}
		assert.Equal(t, "Launch", sim.Timeline[0].Name, sim.ID)
		if !sim.Template {
			assert.Equal(t, []string{"Helm", "Comm"}, sim.StationNames())
		}
	}
}

func TestStartFlight_Failures(t *testing.T) {
	s := newTestStore(t)
	seedFlightFixtures(t, s)
	_, err := s.StartFlight("f1", "Flight 1", nil)
	require.NoError(t, err)

	tests := []struct {
		name    string
		id      string
		sims    []FlightSimulator
		wantErr error
	}{
		{name: "duplicate flight", id: "f1", wantErr: core.ErrValidation},
		{
			name: "unknown simulator",
			id:   "f2",
			sims: []FlightSimulator{
				{SimulatorID: "tmplA", StationSetID: "ss1"},
				{SimulatorID: "ghost", StationSetID: "ss1"},
			},
			wantErr: core.ErrNotFound,
		},
		{
			name:    "unknown station set",
			id:      "f2",
			sims:    []FlightSimulator{{SimulatorID: "tmplA", StationSetID: "ss9"}},
			wantErr: core.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.StartFlight(tt.id, "Flight", tt.sims)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Len(t, s.Simulators(), 1)
			assert.Len(t, s.Flights(), 1)
		})
	}
}

func TestStartFlight_KeepsSourceStationsWithoutStationSet(t *testing.T) {
	s := newTestStore(t)
	seedFlightFixtures(t, s)
	_, err := s.CreateSimulator(SimulatorSpec{ID: "tmplC", Name: "Template C", StationSetID: "ss1"})
	require.NoError(t, err)

	flight, err := s.StartFlight("", "Flight", []FlightSimulator{{SimulatorID: "tmplC"}})
	require.NoError(t, err)
	assert.NotEmpty(t, flight.ID)

	sims := s.Simulators()
	clone := sims[len(sims)-1]
	assert.Equal(t, []string{"Helm", "Comm"}, clone.StationNames())
	assert.Empty(t, clone.MissionID)
}

func TestSimulatorIDsStayUnique(t *testing.T) {
	s := newTestStore(t)
	seedFlightFixtures(t, s)

	for i := 0; i < 3; i++ {
		_, err := s.StartFlight("", "Flight", []FlightSimulator{
			{SimulatorID: "tmplA", MissionID: "m1", StationSetID: "ss1"},
			{SimulatorID: "tmplA", StationSetID: "ss1"},
		})
		require.NoError(t, err)
		_, err = s.AddSimulatorToMission("m1", "Extra")
		require.NoError(t, err)
	}

	seen := map[string]bool{}
	for _, sim := range s.Simulators() {
		assert.False(t, seen[sim.ID], "duplicate simulator id %s", sim.ID)
		seen[sim.ID] = true
	}
	assert.Len(t, seen, 10)
}
