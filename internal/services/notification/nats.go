package notification

import (
	"context"
)

// Publisher is satisfied by the messaging service.
type Publisher interface {
	Publish(subject string, data interface{}) error
}

// NATSSink mirrors every notification onto the event bus.
type NATSSink struct {
	publisher Publisher
	subject   string
	deviceID  string
}

func NewNATSSink(publisher Publisher, subject, deviceID string) *NATSSink {
	return &NATSSink{publisher: publisher, subject: subject, deviceID: deviceID}
}

func (s *NATSSink) Name() string { return "nats" }

type busEvent struct {
	DeviceID string `json:"device_id"`
	Notification
}

func (s *NATSSink) Deliver(ctx context.Context, n Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.publisher.Publish(s.subject, busEvent{DeviceID: s.deviceID, Notification: n})
}
