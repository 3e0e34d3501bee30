package streaming

import "encoding/json"

// Topics carrying full collection snapshots.
const (
	TopicMissions    = "missionsUpdate"
	TopicSimulators  = "simulatorsUpdate"
	TopicStationSets = "stationSetUpdate"
	TopicFlights     = "flightsUpdate"
)

// Topics lists every topic the hub serves, in publication order.
var Topics = []string{TopicMissions, TopicSimulators, TopicStationSets, TopicFlights}

// KnownTopic reports whether topic is served by the hub.
func KnownTopic(topic string) bool {
	for _, t := range Topics {
		if t == topic {
			return true
		}
	}
	return false
}

// Message type constants for the client protocol.
const (
	TypeCommand     = "command"
	TypeResult      = "result"
	TypeSubscribe   = "subscribe"
	TypeUnsubscribe = "unsubscribe"
	TypeError       = "error"
)

// Envelope wraps all messages sent over the WebSocket. Snapshot envelopes use
// the topic name as Type.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// NewEnvelope marshals v as the payload of a typed envelope.
func NewEnvelope(typ string, v any) (Envelope, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: typ, Payload: payload}, nil
}

// CommandMessage asks the server to dispatch a named command. ID is echoed in
// the matching ResultMessage.
type CommandMessage struct {
	ID      string          `json:"id,omitempty"`
	Command string          `json:"command"`
	Payload json.RawMessage `json:"payload"`
}

// ResultMessage reports the outcome of a CommandMessage.
type ResultMessage struct {
	ID      string `json:"id,omitempty"`
	Command string `json:"command"`
	OK      bool   `json:"ok"`
	Result  any    `json:"result,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Error   string `json:"error,omitempty"`
}

// SubscribeMessage adds or removes topic subscriptions.
type SubscribeMessage struct {
	Topics []string `json:"topics"`
}

// ErrorMessage reports a protocol-level failure not tied to a command.
type ErrorMessage struct {
	Error string `json:"error"`
}
