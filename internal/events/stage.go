package events

import (
	"encoding/json"
	"strings"
)

// Kind tags a stage event.
type Kind string

const (
	KindExtract Kind = "extract"
	KindNews    Kind = "news"
	KindMarket  Kind = "market"
	KindFinal   Kind = "final"
	KindDone    Kind = "done"
	KindError   Kind = "error"

	// KindSentinel is never serialized as JSON; it renders as Sentinel.
	KindSentinel Kind = "sentinel"
)

// Sentinel is the literal end-of-stream token written after done.
const Sentinel = "[DONE]"

// UnknownError is the message used when a failure carries none.
const UnknownError = "unknown error"

// StageEvent is one item of a pipeline stream.
type StageEvent struct {
	Kind Kind
	Data any
}

// ErrorPayload is the data of an error event.
type ErrorPayload struct {
	Message string `json:"message"`
}

type wireEvent struct {
	Type Kind `json:"type"`
	Data any  `json:"data,omitempty"`
}

// MarshalJSON renders {"type":..., "data":...}; data is omitted when nil.
func (e StageEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireEvent{Type: e.Kind, Data: e.Data})
}

// Encode returns the wire form of the event: JSON, or Sentinel for the terminal token.
func (e StageEvent) Encode() (string, error) {
	if e.Kind == KindSentinel {
		return Sentinel, nil
	}
	b, err := json.Marshal(e)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ErrorEvent builds an error event from err.
func ErrorEvent(err error) StageEvent {
	msg := ""
	if err != nil {
		msg = strings.TrimSpace(err.Error())
	}
	if msg == "" {
		msg = UnknownError
	}
	return StageEvent{Kind: KindError, Data: ErrorPayload{Message: msg}}
}

// Decode parses one wire item. The sentinel decodes to a KindSentinel event;
// Data is left as raw JSON for the caller to unmarshal.
func Decode(item string) (StageEvent, error) {
	item = strings.TrimSpace(item)
	if item == Sentinel {
		return StageEvent{Kind: KindSentinel}, nil
	}
	var w struct {
		Type Kind            `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal([]byte(item), &w); err != nil {
		return StageEvent{}, err
	}
	ev := StageEvent{Kind: w.Type}
	if len(w.Data) > 0 {
		ev.Data = w.Data
	}
	return ev, nil
}
