package store

import (
	"fmt"

	"github.com/brunoga/deep"
	"github.com/thorium-sim/thorium-core/pkg/core"
)

// CardEdit carries the fields of editCardInStationSet. Nil fields are
// unchanged.
type CardEdit struct {
	Name      *string
	Icon      *string
	Component *string
}

// CreateStationSet appends an empty station set, optionally authored against
// an existing simulator.
func (s *Store) CreateStationSet(id, name, simulatorID string) (core.StationSet, error) {
	if err := requireName("station set", name); err != nil {
		return core.StationSet{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if simulatorID != "" && !s.simulators.has(simulatorID) {
		return core.StationSet{}, notFound("simulator", simulatorID)
	}

	id, err := s.assignID("station set", id, s.stationSets.has)
	if err != nil {
		return core.StationSet{}, err
	}

	ss := &core.StationSet{ID: id, Name: name, SimulatorID: simulatorID, Stations: []core.Station{}}
	s.stationSets.add(id, ss)
	return deep.MustCopy(*ss), nil
}

// RemoveStationSet deletes a station set. Unknown ids are ignored.
func (s *Store) RemoveStationSet(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stationSets.remove(id)
}

func (s *Store) updateStationSet(id string, fn func(*core.StationSet) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ss, ok := s.stationSets.get(id)
	if !ok {
		return notFound("station set", id)
	}
	return fn(ss)
}

// updateStation resolves a station by name before calling fn.
func (s *Store) updateStation(setID, stationName string, fn func(*core.StationSet, *core.Station) error) error {
	return s.updateStationSet(setID, func(ss *core.StationSet) error {
		i := ss.StationIndex(stationName)
		if i < 0 {
			return notFound("station", stationName)
		}
		return fn(ss, &ss.Stations[i])
	})
}

// RenameStationSet sets the station set name.
func (s *Store) RenameStationSet(id, name string) error {
	if err := requireName("station set", name); err != nil {
		return err
	}
	return s.updateStationSet(id, func(ss *core.StationSet) error {
		ss.Name = name
		return nil
	})
}

// AddStation appends an empty station. Station names are unique per set.
func (s *Store) AddStation(setID, stationName string) error {
	if err := requireName("station", stationName); err != nil {
		return err
	}
	return s.updateStationSet(setID, func(ss *core.StationSet) error {
		if ss.StationIndex(stationName) >= 0 {
			return fmt.Errorf("%w: station %q already exists in %q", core.ErrValidation, stationName, ss.Name)
		}
		ss.Stations = append(ss.Stations, core.Station{Name: stationName, Cards: []core.Card{}})
		return nil
	})
}

// RemoveStation deletes a station by name, keeping the order of the rest.
func (s *Store) RemoveStation(setID, stationName string) error {
	return s.updateStationSet(setID, func(ss *core.StationSet) error {
		i := ss.StationIndex(stationName)
		if i < 0 {
			return notFound("station", stationName)
		}
		ss.Stations = append(ss.Stations[:i], ss.Stations[i+1:]...)
		return nil
	})
}

// RenameStation renames a station in place.
func (s *Store) RenameStation(setID, stationName, newName string) error {
	if err := requireName("station", newName); err != nil {
		return err
	}
	return s.updateStation(setID, stationName, func(ss *core.StationSet, st *core.Station) error {
		if newName != stationName && ss.StationIndex(newName) >= 0 {
			return fmt.Errorf("%w: station %q already exists in %q", core.ErrValidation, newName, ss.Name)
		}
		st.Name = newName
		return nil
	})
}

// AddCard appends a card to a station. Card names are unique per station.
func (s *Store) AddCard(setID, stationName string, card core.Card) error {
	if err := requireName("card", card.Name); err != nil {
		return err
	}
	return s.updateStation(setID, stationName, func(_ *core.StationSet, st *core.Station) error {
		if st.CardIndex(card.Name) >= 0 {
			return fmt.Errorf("%w: card %q already exists on station %q", core.ErrValidation, card.Name, st.Name)
		}
		st.Cards = append(st.Cards, card)
		return nil
	})
}

// RemoveCard deletes a card by name.
func (s *Store) RemoveCard(setID, stationName, cardName string) error {
	return s.updateStation(setID, stationName, func(_ *core.StationSet, st *core.Station) error {
		i := st.CardIndex(cardName)
		if i < 0 {
			return notFound("card", cardName)
		}
		st.Cards = append(st.Cards[:i], st.Cards[i+1:]...)
		return nil
	})
}

// EditCard merges the set fields of edit into a card.
func (s *Store) EditCard(setID, stationName, cardName string, edit CardEdit) error {
	return s.updateStation(setID, stationName, func(_ *core.StationSet, st *core.Station) error {
		i := st.CardIndex(cardName)
		if i < 0 {
			return notFound("card", cardName)
		}
		if edit.Name != nil {
			if *edit.Name == "" {
				return fmt.Errorf("%w: card name is required", core.ErrValidation)
			}
			if *edit.Name != cardName && st.CardIndex(*edit.Name) >= 0 {
				return fmt.Errorf("%w: card %q already exists on station %q", core.ErrValidation, *edit.Name, st.Name)
			}
		}

		card := &st.Cards[i]
		if edit.Name != nil {
			card.Name = *edit.Name
		}
		if edit.Icon != nil {
			card.Icon = *edit.Icon
		}
		if edit.Component != nil {
			card.Component = *edit.Component
		}
		return nil
	})
}
