package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/thorium-sim/thorium-core/internal/dispatcher"
	"github.com/thorium-sim/thorium-core/internal/store"
	"github.com/thorium-sim/thorium-core/pkg/core"
	"github.com/thorium-sim/thorium-core/pkg/streaming"
)

// Command names accepted by the dispatcher.
const (
	CmdCreateMission            = "createMission"
	CmdRemoveMission            = "removeMission"
	CmdEditMission              = "editMission"
	CmdAddSimulatorToMission    = "addSimulatorToMission"
	CmdRemoveSimulatorToMission = "removeSimulatorToMission"

	CmdStartFlight = "startFlight"

	CmdCreateSimulator           = "createSimulator"
	CmdRemoveSimulator           = "removeSimulator"
	CmdRenameSimulator           = "renameSimulator"
	CmdChangeSimulatorLayout     = "changeSimulatorLayout"
	CmdChangeSimulatorAlertLevel = "changeSimulatorAlertLevel"
	CmdChangeSimulatorCrewCount  = "changeSimulatorCrewCount"
	CmdAdvanceSimulatorTimeline  = "advanceSimulatorTimeline"

	CmdAddTimelineStep               = "addTimelineStep"
	CmdRemoveTimelineStep            = "removeTimelineStep"
	CmdReorderTimelineStep           = "reorderTimelineStep"
	CmdUpdateTimelineStep            = "updateTimelineStep"
	CmdAddTimelineItemToTimelineStep = "addTimelineItemToTimelineStep"
	CmdRemoveTimelineStepItem        = "removeTimelineStepItem"
	CmdUpdateTimelineStepItem        = "updateTimelineStepItem"

	CmdCreateStationSet            = "createStationSet"
	CmdRemoveStationSet            = "removeStationSet"
	CmdRenameStationSet            = "renameStationSet"
	CmdAddStationToStationSet      = "addStationToStationSet"
	CmdRemoveStationFromStationSet = "removeStationFromStationSet"
	CmdEditStationInStationSet     = "editStationInStationSet"
	CmdAddCardToStation            = "addCardToStation"
	CmdRemoveCardFromStation       = "removeCardFromStation"
	CmdEditCardInStationSet        = "editCardInStationSet"
)

// Created is the result of commands that create an entity or sub-object.
type Created struct {
	ID string `json:"id"`
}

// Service turns decoded command payloads into store operations.
type Service struct {
	store  *store.Store
	logger *slog.Logger
}

// NewService creates a handler service over s.
func NewService(s *store.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: s, logger: logger}
}

// RegisterHandlers registers every command with the dispatcher together with
// the topics it may affect.
func (s *Service) RegisterHandlers(d *dispatcher.Dispatcher) {
	missions := dispatcher.Publishes(streaming.TopicMissions)
	simulators := dispatcher.Publishes(streaming.TopicSimulators)
	stationSets := dispatcher.Publishes(streaming.TopicStationSets)
	// Timeline owners and mission links live in both collections.
	both := dispatcher.Publishes(streaming.TopicMissions, streaming.TopicSimulators)

	// Missions
	d.Register(CmdCreateMission, s.handleCreateMission, missions, dispatcher.Logged())
	d.Register(CmdRemoveMission, s.handleRemoveMission, missions, dispatcher.Logged())
	d.Register(CmdEditMission, s.handleEditMission, missions, dispatcher.Logged())
	d.Register(CmdAddSimulatorToMission, s.handleAddSimulatorToMission, both, dispatcher.Logged())
	d.Register(CmdRemoveSimulatorToMission, s.handleRemoveSimulatorToMission, both, dispatcher.Logged())

	// Flights
	d.Register(CmdStartFlight, s.handleStartFlight,
		dispatcher.Publishes(streaming.TopicSimulators, streaming.TopicFlights), dispatcher.Logged())

	// Simulators
	d.Register(CmdCreateSimulator, s.handleCreateSimulator,
		dispatcher.Publishes(streaming.TopicSimulators, streaming.TopicFlights), dispatcher.Logged())
	d.Register(CmdRemoveSimulator, s.handleRemoveSimulator, simulators, dispatcher.Logged())
	d.Register(CmdRenameSimulator, s.handleRenameSimulator, simulators, dispatcher.Logged())
	d.Register(CmdChangeSimulatorLayout, s.handleChangeSimulatorLayout, simulators, dispatcher.Logged())
	d.Register(CmdChangeSimulatorAlertLevel, s.handleChangeSimulatorAlertLevel, simulators, dispatcher.Logged())
	d.Register(CmdChangeSimulatorCrewCount, s.handleChangeSimulatorCrewCount, simulators, dispatcher.Logged())
	d.Register(CmdAdvanceSimulatorTimeline, s.handleAdvanceSimulatorTimeline, simulators, dispatcher.Logged())

	// Timelines
	d.Register(CmdAddTimelineStep, s.handleAddTimelineStep, both, dispatcher.Logged())
	d.Register(CmdRemoveTimelineStep, s.handleRemoveTimelineStep, both, dispatcher.Logged())
	d.Register(CmdReorderTimelineStep, s.handleReorderTimelineStep, both, dispatcher.Logged())
	d.Register(CmdUpdateTimelineStep, s.handleUpdateTimelineStep, both, dispatcher.Logged())
	d.Register(CmdAddTimelineItemToTimelineStep, s.handleAddTimelineItem, both, dispatcher.Logged())
	d.Register(CmdRemoveTimelineStepItem, s.handleRemoveTimelineItem, both, dispatcher.Logged())
	d.Register(CmdUpdateTimelineStepItem, s.handleUpdateTimelineItem, both, dispatcher.Logged())

	// Station sets
	d.Register(CmdCreateStationSet, s.handleCreateStationSet, stationSets, dispatcher.Logged())
	d.Register(CmdRemoveStationSet, s.handleRemoveStationSet, stationSets, dispatcher.Logged())
	d.Register(CmdRenameStationSet, s.handleRenameStationSet, stationSets, dispatcher.Logged())
	d.Register(CmdAddStationToStationSet, s.handleAddStation, stationSets, dispatcher.Logged())
	d.Register(CmdRemoveStationFromStationSet, s.handleRemoveStation, stationSets, dispatcher.Logged())
	d.Register(CmdEditStationInStationSet, s.handleEditStation, stationSets, dispatcher.Logged())
	d.Register(CmdAddCardToStation, s.handleAddCard, stationSets, dispatcher.Logged())
	d.Register(CmdRemoveCardFromStation, s.handleRemoveCard, stationSets, dispatcher.Logged())
	d.Register(CmdEditCardInStationSet, s.handleEditCard, stationSets, dispatcher.Logged())
}

// decode unmarshals the event payload into T. An empty payload decodes as
// the zero value.
func decode[T any](e dispatcher.Event) (T, error) {
	var p T
	raw := bytes.TrimSpace(e.Payload)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return p, nil
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("%w: decode %s payload: %v", core.ErrValidation, e.Command, err)
	}
	return p, nil
}
