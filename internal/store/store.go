package store

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/thorium-sim/thorium-core/pkg/core"
	"github.com/thorium-sim/thorium-core/pkg/streaming"
)

// Store owns every Mission, Simulator, Flight and StationSet of the process.
// Entities are only reachable through its methods; reads hand out deep copies.
// Every mutating method validates all of its preconditions before touching
// any collection, so a failed call leaves the store unchanged.
type Store struct {
	mu sync.RWMutex

	missions    *collection[core.Mission]
	simulators  *collection[core.Simulator]
	flights     *collection[core.Flight]
	stationSets *collection[core.StationSet]

	newID func() string
}

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator overrides the generator used for ids omitted by callers.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) {
		s.newID = fn
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		missions:    newCollection[core.Mission](),
		simulators:  newCollection[core.Simulator](),
		flights:     newCollection[core.Flight](),
		stationSets: newCollection[core.StationSet](),
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Missions returns a copy of all missions in insertion order.
func (s *Store) Missions() []core.Mission {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.missions.list()
}

// Simulators returns a copy of all simulators in insertion order.
func (s *Store) Simulators() []core.Simulator {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.simulators.list()
}

// Flights returns a copy of all flights in insertion order.
func (s *Store) Flights() []core.Flight {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.flights.list()
}

// StationSets returns a copy of all station sets in insertion order.
func (s *Store) StationSets() []core.StationSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stationSets.list()
}

// Snapshot returns the full collection published on topic.
func (s *Store) Snapshot(topic string) (any, error) {
	switch topic {
	case streaming.TopicMissions:
		return s.Missions(), nil
	case streaming.TopicSimulators:
		return s.Simulators(), nil
	case streaming.TopicStationSets:
		return s.StationSets(), nil
	case streaming.TopicFlights:
		return s.Flights(), nil
	default:
		return nil, fmt.Errorf("%w: topic %q", core.ErrNotFound, topic)
	}
}

// Counts returns the size of each collection keyed by topic.
func (s *Store) Counts() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]int{
		streaming.TopicMissions:    s.missions.len(),
		streaming.TopicSimulators:  s.simulators.len(),
		streaming.TopicStationSets: s.stationSets.len(),
		streaming.TopicFlights:     s.flights.len(),
	}
}

// assignID returns id, or a generated one when empty. An explicit id that is
// already taken is a validation error.
func (s *Store) assignID(kind, id string, taken func(string) bool) (string, error) {
	if id == "" {
		for {
			id = s.newID()
			if !taken(id) {
				return id, nil
			}
		}
	}
	if taken(id) {
		return "", fmt.Errorf("%w: %s id %q already exists", core.ErrValidation, kind, id)
	}
	return id, nil
}

func notFound(kind, id string) error {
	return fmt.Errorf("%w: %s %q", core.ErrNotFound, kind, id)
}

func requireName(kind, name string) error {
	if name == "" {
		return fmt.Errorf("%w: %s name is required", core.ErrValidation, kind)
	}
	return nil
}
