// pkg/core/timeline.go
package core

import "fmt"

// TimelineItem is a single scripted action inside a timeline step. Args is an
// opaque JSON document interpreted by whatever system handles Event.
type TimelineItem struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Type  string `json:"type"`
	Event string `json:"event"`
	Args  string `json:"args"`
	Delay int    `json:"delay"`
}

// TimelineItemUpdate carries the fields of a partial item update. Nil fields
// are left untouched.
type TimelineItemUpdate struct {
	Name  *string `json:"name,omitempty"`
	Type  *string `json:"type,omitempty"`
	Event *string `json:"event,omitempty"`
	Args  *string `json:"args,omitempty"`
	Delay *int    `json:"delay,omitempty"`
}

// Apply merges the set fields into item. The item id never changes.
func (u TimelineItemUpdate) Apply(item *TimelineItem) {
	if u.Name != nil {
		item.Name = *u.Name
	}
	if u.Type != nil {
		item.Type = *u.Type
	}
	if u.Event != nil {
		item.Event = *u.Event
	}
	if u.Args != nil {
		item.Args = *u.Args
	}
	if u.Delay != nil {
		item.Delay = *u.Delay
	}
}

// TimelineStep is one ordered step of a mission or simulator timeline.
type TimelineStep struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Description   string         `json:"description"`
	Order         int            `json:"order"`
	TimelineItems []TimelineItem `json:"timelineItems"`
}

// OwnerKind tags which collection owns a timeline.
type OwnerKind int

const (
	OwnerMission OwnerKind = iota + 1
	OwnerSimulator
)

func (k OwnerKind) String() string {
	switch k {
	case OwnerMission:
		return "mission"
	case OwnerSimulator:
		return "simulator"
	default:
		return "unknown"
	}
}

// TimelineOwner identifies the single Mission or Simulator whose timeline a
// command targets. The zero value is invalid.
type TimelineOwner struct {
	Kind OwnerKind
	ID   string
}

// MissionOwner targets a mission timeline.
func MissionOwner(id string) TimelineOwner {
	return TimelineOwner{Kind: OwnerMission, ID: id}
}

// SimulatorOwner targets a simulator timeline.
func SimulatorOwner(id string) TimelineOwner {
	return TimelineOwner{Kind: OwnerSimulator, ID: id}
}

// ResolveOwner builds an owner from the two optional ids carried by timeline
// commands. Exactly one of them must be set.
func ResolveOwner(simulatorID, missionID string) (TimelineOwner, error) {
	switch {
	case simulatorID != "" && missionID != "":
		return TimelineOwner{}, fmt.Errorf("%w: both simulatorId and missionId supplied", ErrInvalidTarget)
	case simulatorID != "":
		return SimulatorOwner(simulatorID), nil
	case missionID != "":
		return MissionOwner(missionID), nil
	default:
		return TimelineOwner{}, fmt.Errorf("%w: one of simulatorId or missionId is required", ErrInvalidTarget)
	}
}

// Valid reports whether the owner was built by one of the constructors.
func (o TimelineOwner) Valid() bool {
	return (o.Kind == OwnerMission || o.Kind == OwnerSimulator) && o.ID != ""
}

func (o TimelineOwner) String() string {
	return o.Kind.String() + ":" + o.ID
}
