package handlers

import (
	"context"

	"github.com/thorium-sim/thorium-core/internal/dispatcher"
	"github.com/thorium-sim/thorium-core/internal/store"
	"github.com/thorium-sim/thorium-core/pkg/core"
)

type createStationSetPayload struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	SimulatorID string `json:"simulatorId"`
}

type stationSetPayload struct {
	StationSetID string `json:"stationSetID"`
	Name         string `json:"name"`
}

type stationPayload struct {
	StationSetID   string `json:"stationSetID"`
	StationName    string `json:"stationName"`
	NewStationName string `json:"newStationName"`
}

type cardPayload struct {
	StationSetID  string  `json:"stationSetID"`
	StationName   string  `json:"stationName"`
	CardName      string  `json:"cardName"`
	NewCardName   *string `json:"newCardName"`
	CardComponent *string `json:"cardComponent"`
	CardIcon      *string `json:"cardIcon"`
}

func (s *Service) handleCreateStationSet(_ context.Context, e dispatcher.Event) (any, error) {
	p, err := decode[createStationSetPayload](e)
	if err != nil {
		return nil, err
	}
	ss, err := s.store.CreateStationSet(p.ID, p.Name, p.SimulatorID)
	if err != nil {
		return nil, err
	}
	return Created{ID: ss.ID}, nil
}

func (s *Service) handleRemoveStationSet(_ context.Context, e dispatcher.Event) (any, error) {
	p, err := decode[stationSetPayload](e)
	if err != nil {
		return nil, err
	}
	s.store.RemoveStationSet(p.StationSetID)
	return nil, nil
}

func (s *Service) handleRenameStationSet(_ context.Context, e dispatcher.Event) (any, error) {
	p, err := decode[stationSetPayload](e)
	if err != nil {
		return nil, err
	}
	return nil, s.store.RenameStationSet(p.StationSetID, p.Name)
}

func (s *Service) handleAddStation(_ context.Context, e dispatcher.Event) (any, error) {
	p, err := decode[stationPayload](e)
	if err != nil {
		return nil, err
	}
	return nil, s.store.AddStation(p.StationSetID, p.StationName)
}

func (s *Service) handleRemoveStation(_ context.Context, e dispatcher.Event) (any, error) {
	p, err := decode[stationPayload](e)
	if err != nil {
		return nil, err
	}
	return nil, s.store.RemoveStation(p.StationSetID, p.StationName)
}

func (s *Service) handleEditStation(_ context.Context, e dispatcher.Event) (any, error) {
	p, err := decode[stationPayload](e)
	if err != nil {
		return nil, err
	}
	return nil, s.store.RenameStation(p.StationSetID, p.StationName, p.NewStationName)
}

func (s *Service) handleAddCard(_ context.Context, e dispatcher.Event) (any, error) {
	p, err := decode[cardPayload](e)
	if err != nil {
		return nil, err
	}
	return nil, s.store.AddCard(p.StationSetID, p.StationName, core.Card{
		Name:      p.CardName,
		Icon:      deref(p.CardIcon),
		Component: deref(p.CardComponent),
	})
}

func (s *Service) handleRemoveCard(_ context.Context, e dispatcher.Event) (any, error) {
	p, err := decode[cardPayload](e)
	if err != nil {
		return nil, err
	}
	return nil, s.store.RemoveCard(p.StationSetID, p.StationName, p.CardName)
}

func (s *Service) handleEditCard(_ context.Context, e dispatcher.Event) (any, error) {
	p, err := decode[cardPayload](e)
	if err != nil {
		return nil, err
	}
	return nil, s.store.EditCard(p.StationSetID, p.StationName, p.CardName, store.CardEdit{
		Name:      p.NewCardName,
		Icon:      p.CardIcon,
		Component: p.CardComponent,
	})
}
