package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/thorium-sim/thorium-core/internal/dispatcher"
	"github.com/thorium-sim/thorium-core/internal/store"
	"github.com/thorium-sim/thorium-core/pkg/core"
)

type flightSimulatorPayload struct {
	SimulatorID string `json:"simulatorId"`
	MissionID   string `json:"missionId"`
	StationSet  string `json:"stationSet"`
}

type startFlightPayload struct {
	ID         string                   `json:"id"`
	Name       string                   `json:"name"`
	Simulators []flightSimulatorPayload `json:"simulators"`
}

type createSimulatorPayload struct {
	ID         string              `json:"id"`
	Name       string              `json:"name"`
	Template   bool                `json:"template"`
	FlightID   string              `json:"flightId"`
	Timeline   []core.TimelineStep `json:"timeline"`
	StationSet string              `json:"stationSet"`
}

type simulatorIDPayload struct {
	SimulatorID string `json:"simulatorId"`
}

type renameSimulatorPayload struct {
	SimulatorID string `json:"simulatorId"`
	Name        string `json:"name"`
}

type changeLayoutPayload struct {
	SimulatorID string `json:"simulatorId"`
	Layout      string `json:"layout"`
}

type changeAlertLevelPayload struct {
	SimulatorID string     `json:"simulatorId"`
	AlertLevel  alertLevel `json:"alertLevel"`
}

type changeCrewCountPayload struct {
	SimulatorID string `json:"simulatorId"`
	CrewCount   int    `json:"crewCount"`
}

// alertLevel accepts both "3" and 3 on the wire.
type alertLevel string

func (a *alertLevel) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = alertLevel(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("alert level must be a string or number: %w", err)
	}
	*a = alertLevel(n.String())
	return nil
}

// TimelineCursor is the result of advanceSimulatorTimeline.
type TimelineCursor struct {
	SimulatorID  string `json:"simulatorId"`
	TimelineStep int    `json:"timelineStep"`
}

func (s *Service) handleStartFlight(ctx context.Context, e dispatcher.Event) (any, error) {
	p, err := decode[startFlightPayload](e)
	if err != nil {
		return nil, err
	}

	sims := make([]store.FlightSimulator, len(p.Simulators))
	for i, fs := range p.Simulators {
		sims[i] = store.FlightSimulator{
			SimulatorID:  fs.SimulatorID,
			MissionID:    fs.MissionID,
			StationSetID: fs.StationSet,
		}
	}

	flight, err := s.store.StartFlight(p.ID, p.Name, sims)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "Flight started", "flightId", flight.ID, "name", flight.Name, "simulators", len(flight.Simulators))
	return flight, nil
}

func (s *Service) handleCreateSimulator(_ context.Context, e dispatcher.Event) (any, error) {
	p, err := decode[createSimulatorPayload](e)
	if err != nil {
		return nil, err
	}
	sim, err := s.store.CreateSimulator(store.SimulatorSpec{
		ID:           p.ID,
		Name:         p.Name,
		Template:     p.Template,
		FlightID:     p.FlightID,
		StationSetID: p.StationSet,
		Timeline:     p.Timeline,
	})
	if err != nil {
		return nil, err
	}
	return Created{ID: sim.ID}, nil
}

func (s *Service) handleRemoveSimulator(_ context.Context, e dispatcher.Event) (any, error) {
	p, err := decode[simulatorIDPayload](e)
	if err != nil {
		return nil, err
	}
	s.store.RemoveSimulator(p.SimulatorID)
	return nil, nil
}

func (s *Service) handleRenameSimulator(_ context.Context, e dispatcher.Event) (any, error) {
	p, err := decode[renameSimulatorPayload](e)
	if err != nil {
		return nil, err
	}
	return nil, s.store.RenameSimulator(p.SimulatorID, p.Name)
}

func (s *Service) handleChangeSimulatorLayout(_ context.Context, e dispatcher.Event) (any, error) {
	p, err := decode[changeLayoutPayload](e)
	if err != nil {
		return nil, err
	}
	return nil, s.store.SetSimulatorLayout(p.SimulatorID, p.Layout)
}

func (s *Service) handleChangeSimulatorAlertLevel(_ context.Context, e dispatcher.Event) (any, error) {
	p, err := decode[changeAlertLevelPayload](e)
	if err != nil {
		return nil, err
	}
	level, err := core.ParseAlertLevel(string(p.AlertLevel))
	if err != nil {
		return nil, err
	}
	return nil, s.store.SetSimulatorAlertLevel(p.SimulatorID, level)
}

func (s *Service) handleChangeSimulatorCrewCount(_ context.Context, e dispatcher.Event) (any, error) {
	p, err := decode[changeCrewCountPayload](e)
	if err != nil {
		return nil, err
	}
	return nil, s.store.SetSimulatorCrewCount(p.SimulatorID, p.CrewCount)
}

func (s *Service) handleAdvanceSimulatorTimeline(_ context.Context, e dispatcher.Event) (any, error) {
	p, err := decode[simulatorIDPayload](e)
	if err != nil {
		return nil, err
	}
	cursor, err := s.store.AdvanceSimulatorTimeline(p.SimulatorID)
	if err != nil {
		return nil, err
	}
	return TimelineCursor{SimulatorID: p.SimulatorID, TimelineStep: cursor}, nil
}
