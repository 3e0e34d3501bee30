package handlers

import (
	"context"

	"github.com/thorium-sim/thorium-core/internal/dispatcher"
	"github.com/thorium-sim/thorium-core/internal/store"
	"github.com/thorium-sim/thorium-core/pkg/core"
)

type createMissionPayload struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type missionIDPayload struct {
	MissionID string `json:"missionId"`
}

type editMissionPayload struct {
	MissionID   string                   `json:"missionId"`
	Name        *string                  `json:"name"`
	Description *string                  `json:"description"`
	Simulators  *[]core.MissionSimulator `json:"simulators"`
}

type addSimulatorToMissionPayload struct {
	MissionID     string `json:"missionId"`
	SimulatorName string `json:"simulatorName"`
}

type removeSimulatorToMissionPayload struct {
	MissionID   string `json:"missionId"`
	SimulatorID string `json:"simulatorId"`
}

func (s *Service) handleCreateMission(_ context.Context, e dispatcher.Event) (any, error) {
	p, err := decode[createMissionPayload](e)
	if err != nil {
		return nil, err
	}
	m, err := s.store.CreateMission(p.ID, p.Name)
	if err != nil {
		return nil, err
	}
	return Created{ID: m.ID}, nil
}

func (s *Service) handleRemoveMission(_ context.Context, e dispatcher.Event) (any, error) {
	p, err := decode[missionIDPayload](e)
	if err != nil {
		return nil, err
	}
	s.store.RemoveMission(p.MissionID)
	return nil, nil
}

func (s *Service) handleEditMission(_ context.Context, e dispatcher.Event) (any, error) {
	p, err := decode[editMissionPayload](e)
	if err != nil {
		return nil, err
	}
	return nil, s.store.EditMission(p.MissionID, store.MissionEdit{
		Name:        p.Name,
		Description: p.Description,
		Simulators:  p.Simulators,
	})
}

func (s *Service) handleAddSimulatorToMission(_ context.Context, e dispatcher.Event) (any, error) {
	p, err := decode[addSimulatorToMissionPayload](e)
	if err != nil {
		return nil, err
	}
	sim, err := s.store.AddSimulatorToMission(p.MissionID, p.SimulatorName)
	if err != nil {
		return nil, err
	}
	return Created{ID: sim.ID}, nil
}

func (s *Service) handleRemoveSimulatorToMission(_ context.Context, e dispatcher.Event) (any, error) {
	p, err := decode[removeSimulatorToMissionPayload](e)
	if err != nil {
		return nil, err
	}
	return nil, s.store.RemoveSimulatorToMission(p.MissionID, p.SimulatorID)
}
