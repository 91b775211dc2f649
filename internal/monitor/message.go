package monitor

import (
	"time"

	"github.com/muurk/essp/internal/device"
)

// Message is the JSON form of one poll result.
type Message struct {
	Time      time.Time `json:"time"`
	Device    string    `json:"device,omitempty"`
	Encrypted bool      `json:"encrypted"`
	Status    string    `json:"status,omitempty"`
	Events    []Event   `json:"events,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Event is one decoded poll event.
type Event struct {
	Code byte   `json:"code"`
	Name string `json:"name"`
	Data []byte `json:"data,omitempty"`
}

// NewMessage converts a poll result.
func NewMessage(name string, r device.PollResult) Message {
	m := Message{
		Time:      r.Time,
		Device:    name,
		Encrypted: r.Encrypted,
	}
	if r.Err != nil {
		m.Error = r.Err.Error()
		return m
	}
	if r.Response == nil {
		return m
	}
	m.Status = r.Response.Status.String()
	for _, e := range r.Response.Events {
		m.Events = append(m.Events, Event{Code: byte(e.Code), Name: e.Code.String(), Data: e.Data})
	}
	return m
}
