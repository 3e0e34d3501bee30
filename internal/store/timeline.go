package store

import (
	"fmt"

	"github.com/brunoga/deep"
	"github.com/thorium-sim/thorium-core/pkg/core"
)

// StepEdit carries the fields of updateTimelineStep. Nil fields are unchanged.
type StepEdit struct {
	Name        *string
	Description *string
}

// updateTimeline resolves the owner's timeline and hands it to fn under the
// write lock.
func (s *Store) updateTimeline(owner core.TimelineOwner, fn func(*[]core.TimelineStep) error) error {
	if !owner.Valid() {
		return fmt.Errorf("%w: %s", core.ErrInvalidTarget, owner)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch owner.Kind {
	case core.OwnerSimulator:
		sim, ok := s.simulators.get(owner.ID)
		if !ok {
			return notFound("simulator", owner.ID)
		}
		return fn(&sim.Timeline)
	default:
		m, ok := s.missions.get(owner.ID)
		if !ok {
			return notFound("mission", owner.ID)
		}
		return fn(&m.Timeline)
	}
}

// Timeline returns a copy of the owner's timeline.
func (s *Store) Timeline(owner core.TimelineOwner) ([]core.TimelineStep, error) {
	var out []core.TimelineStep
	err := s.updateTimeline(owner, func(steps *[]core.TimelineStep) error {
		out = deep.MustCopy(*steps)
		return nil
	})
	return out, err
}

func stepIndex(steps []core.TimelineStep, id string) int {
	for i := range steps {
		if steps[i].ID == id {
			return i
		}
	}
	return -1
}

func itemIndex(items []core.TimelineItem, id string) int {
	for i := range items {
		if items[i].ID == id {
			return i
		}
	}
	return -1
}

// renumber keeps each step's Order equal to its position.
func renumber(steps []core.TimelineStep) {
	for i := range steps {
		steps[i].Order = i
	}
}

// AddTimelineStep appends a step to the owner's timeline and returns its id.
func (s *Store) AddTimelineStep(owner core.TimelineOwner, stepID, name, description string) (string, error) {
	var id string
	err := s.updateTimeline(owner, func(steps *[]core.TimelineStep) error {
		var err error
		id, err = s.assignID("timeline step", stepID, func(id string) bool {
			return stepIndex(*steps, id) >= 0
		})
		if err != nil {
			return err
		}
		*steps = append(*steps, core.TimelineStep{
			ID:            id,
			Name:          name,
			Description:   description,
			Order:         len(*steps),
			TimelineItems: []core.TimelineItem{},
		})
		return nil
	})
	return id, err
}

// RemoveTimelineStep deletes a step. Unknown step ids are ignored.
func (s *Store) RemoveTimelineStep(owner core.TimelineOwner, stepID string) error {
	return s.updateTimeline(owner, func(steps *[]core.TimelineStep) error {
		i := stepIndex(*steps, stepID)
		if i < 0 {
			return nil
		}
		*steps = append((*steps)[:i], (*steps)[i+1:]...)
		renumber(*steps)
		return nil
	})
}

// ReorderTimelineStep moves a step to position order, clamped to the
// timeline bounds. The other steps keep their relative order.
func (s *Store) ReorderTimelineStep(owner core.TimelineOwner, stepID string, order int) error {
	return s.updateTimeline(owner, func(steps *[]core.TimelineStep) error {
		from := stepIndex(*steps, stepID)
		if from < 0 {
			return notFound("timeline step", stepID)
		}
		to := max(0, min(order, len(*steps)-1))
		if from == to {
			return nil
		}

		step := (*steps)[from]
		rest := append((*steps)[:from:from], (*steps)[from+1:]...)
		reordered := make([]core.TimelineStep, 0, len(*steps))
		reordered = append(reordered, rest[:to]...)
		reordered = append(reordered, step)
		reordered = append(reordered, rest[to:]...)
		renumber(reordered)
		*steps = reordered
		return nil
	})
}

// UpdateTimelineStep merges name and description into a step.
func (s *Store) UpdateTimelineStep(owner core.TimelineOwner, stepID string, edit StepEdit) error {
	return s.updateTimeline(owner, func(steps *[]core.TimelineStep) error {
		i := stepIndex(*steps, stepID)
		if i < 0 {
			return notFound("timeline step", stepID)
		}
		if edit.Name != nil {
			(*steps)[i].Name = *edit.Name
		}
		if edit.Description != nil {
			(*steps)[i].Description = *edit.Description
		}
		return nil
	})
}

// updateStep resolves a step of the owner's timeline before calling fn.
func (s *Store) updateStep(owner core.TimelineOwner, stepID string, fn func(*core.TimelineStep) error) error {
	return s.updateTimeline(owner, func(steps *[]core.TimelineStep) error {
		i := stepIndex(*steps, stepID)
		if i < 0 {
			return notFound("timeline step", stepID)
		}
		return fn(&(*steps)[i])
	})
}

// AddTimelineItem appends an item to a step and returns its id. An empty
// itemID is generated.
func (s *Store) AddTimelineItem(owner core.TimelineOwner, stepID, itemID string, item core.TimelineItem) (string, error) {
	var id string
	err := s.updateStep(owner, stepID, func(step *core.TimelineStep) error {
		var err error
		id, err = s.assignID("timeline item", itemID, func(id string) bool {
			return itemIndex(step.TimelineItems, id) >= 0
		})
		if err != nil {
			return err
		}
		item.ID = id
		step.TimelineItems = append(step.TimelineItems, item)
		return nil
	})
	return id, err
}

// RemoveTimelineItem deletes an item from a step. Unknown item ids are
// ignored.
func (s *Store) RemoveTimelineItem(owner core.TimelineOwner, stepID, itemID string) error {
	return s.updateStep(owner, stepID, func(step *core.TimelineStep) error {
		i := itemIndex(step.TimelineItems, itemID)
		if i < 0 {
			return nil
		}
		step.TimelineItems = append(step.TimelineItems[:i], step.TimelineItems[i+1:]...)
		return nil
	})
}

// UpdateTimelineItem merges the set fields of update into an item.
func (s *Store) UpdateTimelineItem(owner core.TimelineOwner, stepID, itemID string, update core.TimelineItemUpdate) error {
	return s.updateStep(owner, stepID, func(step *core.TimelineStep) error {
		i := itemIndex(step.TimelineItems, itemID)
		if i < 0 {
			return notFound("timeline item", itemID)
		}
		update.Apply(&step.TimelineItems[i])
		return nil
	})
}
