package notification

import (
	"context"
	"time"
)

const (
	KindInfo      = "info"
	KindMotion    = "motion"
	KindPhoto     = "photo"
	KindRecording = "recording"
)

// Notification is one user-facing event. Message is what the in-app feed
// shows; Title and Body, when set, are pushed to registered devices.
type Notification struct {
	ID        string         `json:"id"`
	Kind      string         `json:"kind"`
	Message   string         `json:"message"`
	Title     string         `json:"title,omitempty"`
	Body      string         `json:"body,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Pushable reports whether the notification should reach push sinks.
func (n Notification) Pushable() bool { return n.Title != "" }

// Notifier accepts notifications without blocking. It reports false when the
// notification was dropped.
type Notifier interface {
	Notify(n Notification) bool
}

// Sink delivers notifications to one destination.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, n Notification) error
}
