package handlers

import (
	"context"

	"github.com/thorium-sim/thorium-core/internal/dispatcher"
	"github.com/thorium-sim/thorium-core/internal/store"
	"github.com/thorium-sim/thorium-core/pkg/core"
)

// timelineTarget is embedded by every timeline payload. Exactly one of the
// two ids must be set.
type timelineTarget struct {
	SimulatorID string `json:"simulatorId"`
	MissionID   string `json:"missionId"`
}

func (t timelineTarget) owner() (core.TimelineOwner, error) {
	return core.ResolveOwner(t.SimulatorID, t.MissionID)
}

type timelineStepPayload struct {
	timelineTarget
	TimelineStepID string  `json:"timelineStepId"`
	Name           *string `json:"name"`
	Description    *string `json:"description"`
	Order          int     `json:"order"`
}

type timelineItemPayload struct {
	timelineTarget
	TimelineStepID     string                  `json:"timelineStepId"`
	TimelineItemID     string                  `json:"timelineItemId"`
	TimelineItem       core.TimelineItem       `json:"timelineItem"`
	UpdateTimelineItem core.TimelineItemUpdate `json:"updateTimelineItem"`
}

// decodeTimeline decodes a timeline payload and resolves its owner before
// anything else runs.
func decodeTimeline[T interface{ owner() (core.TimelineOwner, error) }](e dispatcher.Event) (T, core.TimelineOwner, error) {
	p, err := decode[T](e)
	if err != nil {
		return p, core.TimelineOwner{}, err
	}
	owner, err := p.owner()
	return p, owner, err
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (s *Service) handleAddTimelineStep(_ context.Context, e dispatcher.Event) (any, error) {
	p, owner, err := decodeTimeline[timelineStepPayload](e)
	if err != nil {
		return nil, err
	}
	id, err := s.store.AddTimelineStep(owner, p.TimelineStepID, deref(p.Name), deref(p.Description))
	if err != nil {
		return nil, err
	}
	return Created{ID: id}, nil
}

func (s *Service) handleRemoveTimelineStep(_ context.Context, e dispatcher.Event) (any, error) {
	p, owner, err := decodeTimeline[timelineStepPayload](e)
	if err != nil {
		return nil, err
	}
	return nil, s.store.RemoveTimelineStep(owner, p.TimelineStepID)
}

func (s *Service) handleReorderTimelineStep(_ context.Context, e dispatcher.Event) (any, error) {
	p, owner, err := decodeTimeline[timelineStepPayload](e)
	if err != nil {
		return nil, err
	}
	return nil, s.store.ReorderTimelineStep(owner, p.TimelineStepID, p.Order)
}

func (s *Service) handleUpdateTimelineStep(_ context.Context, e dispatcher.Event) (any, error) {
	p, owner, err := decodeTimeline[timelineStepPayload](e)
	if err != nil {
		return nil, err
	}
	return nil, s.store.UpdateTimelineStep(owner, p.TimelineStepID, store.StepEdit{
		Name:        p.Name,
		Description: p.Description,
	})
}

func (s *Service) handleAddTimelineItem(_ context.Context, e dispatcher.Event) (any, error) {
	p, owner, err := decodeTimeline[timelineItemPayload](e)
	if err != nil {
		return nil, err
	}
	id, err := s.store.AddTimelineItem(owner, p.TimelineStepID, p.TimelineItemID, p.TimelineItem)
	if err != nil {
		return nil, err
	}
	return Created{ID: id}, nil
}

func (s *Service) handleRemoveTimelineItem(_ context.Context, e dispatcher.Event) (any, error) {
	p, owner, err := decodeTimeline[timelineItemPayload](e)
	if err != nil {
		return nil, err
	}
	return nil, s.store.RemoveTimelineItem(owner, p.TimelineStepID, p.TimelineItemID)
}

func (s *Service) handleUpdateTimelineItem(_ context.Context, e dispatcher.Event) (any, error) {
	p, owner, err := decodeTimeline[timelineItemPayload](e)
	if err != nil {
		return nil, err
	}
	return nil, s.store.UpdateTimelineItem(owner, p.TimelineStepID, p.TimelineItemID, p.UpdateTimelineItem)
}
