package store

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thorium-sim/thorium-core/pkg/core"
	"github.com/thorium-sim/thorium-core/pkg/streaming"
)

// newTestStore returns a store whose generated ids are "id-1", "id-2", ...
func newTestStore(t *testing.T) *Store {
	t.Helper()
	n := 0
	return New(WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}))
}

func strPtr(s string) *string { return &s }

func TestStore_Empty(t *testing.T) {
	s := newTestStore(t)

	assert.Empty(t, s.Missions())
	assert.NotNil(t, s.Missions())
	assert.Empty(t, s.Simulators())
	assert.Empty(t, s.Flights())
	assert.Empty(t, s.StationSets())
	assert.Equal(t, map[string]int{
		streaming.TopicMissions:    0,
		streaming.TopicSimulators:  0,
		streaming.TopicStationSets: 0,
		streaming.TopicFlights:     0,
	}, s.Counts())
}

func TestStore_Snapshot(t *testing.T) {
	s := newTestStore(t)
	_, err := s.CreateMission("m1", "Rescue")
	require.NoError(t, err)

	snap, err := s.Snapshot(streaming.TopicMissions)
	require.NoError(t, err)
	missions, ok := snap.([]core.Mission)
	require.True(t, ok)
	require.Len(t, missions, 1)
	assert.Equal(t, "m1", missions[0].ID)

	for _, topic := range streaming.Topics {
		_, err := s.Snapshot(topic)
		assert.NoError(t, err, topic)
	}

	_, err = s.Snapshot("bogus")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestStore_ReadsAreCopies(t *testing.T) {
	s := newTestStore(t)
	_, err := s.CreateStationSet("ss1", "Bridge", "")
	require.NoError(t, err)
	require.NoError(t, s.AddStation("ss1", "Helm"))

	sets := s.StationSets()
	sets[0].Name = "Mutated"
	sets[0].Stations[0].Name = "Mutated"

	fresh := s.StationSets()
	assert.Equal(t, "Bridge", fresh[0].Name)
	assert.Equal(t, "Helm", fresh[0].Stations[0].Name)
}

func TestStore_InsertionOrder(t *testing.T) {
	s := newTestStore(t)
	for _, name := range []string{"A", "B", "C", "D"} {
		_, err := s.CreateMission("", name)
		require.NoError(t, err)
	}
	s.RemoveMission("id-2")

	var names []string
	for _, m := range s.Missions() {
		names = append(names, m.Name)
	}
	assert.Equal(t, []string{"A", "C", "D"}, names)
}

func TestStore_GeneratedIDSkipsTaken(t *testing.T) {
	s := newTestStore(t)
	_, err := s.CreateMission("id-1", "Explicit")
	require.NoError(t, err)

	m, err := s.CreateMission("", "Generated")
	require.NoError(t, err)
	assert.Equal(t, "id-2", m.ID)
}
