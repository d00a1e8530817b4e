package checklist

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"
)

type EventType string

const (
	EventTypeAdd    EventType = "add"
	EventTypeEdit   EventType = "edit"
	EventTypeDelete EventType = "delete"
	EventTypeToggle EventType = "toggle"
)

func (self EventType) Valid() bool {
	switch self {
	case EventTypeAdd, EventTypeEdit, EventTypeDelete, EventTypeToggle:
		return true
	default:
		return false
	}
}

type EventData struct {
	Uid             string `json:"uid"`
	Name            string `json:"name,omitempty"`
	Category        string `json:"category,omitempty"`
	IsChecked       bool   `json:"is_checked"`
	NamespacePrefix string `json:"namespace_prefix"`
	Namespace       string `json:"namespace"`
}

func (self *EventData) NamespaceKey() NamespaceKey {
	return NamespaceKey{
		Prefix: self.NamespacePrefix,
		Name:   self.Namespace,
	}
}

func (self *EventData) Item() *Item {
	return &Item{
		Uid:       self.Uid,
		Name:      self.Name,
		Category:  self.Category,
		IsChecked: self.IsChecked,
	}
}

// the push envelope `{type, data}`
type Event struct {
	// the originating client, when the server includes it
	ClientId string     `json:"client_id,omitempty"`
	Type     EventType  `json:"type"`
	Data     *EventData `json:"data"`
}

func (self *Event) String() string {
	if self.Data == nil {
		return fmt.Sprintf("%s()", self.Type)
	}
	return fmt.Sprintf("%s(%s %s)", self.Type, self.Data.NamespaceKey(), self.Data.Uid)
}

func DecodeEvent(message []byte) (*Event, error) {
	event := &Event{}
	if err := json.Unmarshal(message, event); err != nil {
		return nil, &ProtocolError{
			Reason:  err.Error(),
			Payload: message,
		}
	}
	if !event.Type.Valid() {
		return nil, &ProtocolError{
			Reason:  fmt.Sprintf("unknown event type %q", event.Type),
			Payload: message,
		}
	}
	if event.Data == nil || event.Data.Uid == "" {
		return nil, &ProtocolError{
			Reason:  "event data has no uid",
			Payload: message,
		}
	}
	return event, nil
}

// one frame may batch several envelopes separated by newlines.
// malformed envelopes are returned as errors and do not affect the others
func DecodeEvents(frame []byte) ([]*Event, []error) {
	events := []*Event{}
	var errs []error
	for _, message := range bytes.Split(frame, []byte{'\n'}) {
		message = bytes.TrimSpace(message)
		if len(message) == 0 {
			continue
		}
		event, err := DecodeEvent(message)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		events = append(events, event)
	}
	return events, errs
}
