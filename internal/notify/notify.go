package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/pvries86/hass-ga-autoexpose/internal/infrastructure/config"
	"github.com/pvries86/hass-ga-autoexpose/internal/infrastructure/mqtt"
)

// BroadcastChannel is the WebSocket channel notifications are sent on.
const BroadcastChannel = "notification"

// ErrEmptyID is returned for a notification without an ID.
var ErrEmptyID = errors.New("notify: notification id is required")

// Notification is a persistent user notification.
type Notification struct {
	ID      string `json:"notification_id"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// FromConfig builds the export notification from configuration.
func FromConfig(cfg config.NotificationConfig) Notification {
	return Notification{ID: cfg.ID, Title: cfg.Title, Message: cfg.Message}
}

// Notifier delivers notifications.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Publisher is the subset of the MQTT client used for notifications.
type Publisher interface {
	PublishJSON(topic string, v any, retained bool) error
}

// MQTTNotifier publishes notifications to the MQTT notification topic.
type MQTTNotifier struct {
	pub   Publisher
	topic string
}

// NewMQTTNotifier creates a notifier publishing through pub.
func NewMQTTNotifier(pub Publisher) *MQTTNotifier {
	return &MQTTNotifier{pub: pub, topic: mqtt.Topics{}.Notification()}
}

// Notify publishes n. The message is not retained; a restarted platform
// should not see a stale notification.
func (m *MQTTNotifier) Notify(ctx context.Context, n Notification) error {
	if n.ID == "" {
		return ErrEmptyID
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.pub.PublishJSON(m.topic, n, false); err != nil {
		return fmt.Errorf("publishing notification %s: %w", n.ID, err)
	}
	return nil
}

// Broadcaster is the subset of the WebSocket hub used for notifications.
type Broadcaster interface {
	Broadcast(channel string, payload any)
}

// BroadcastNotifier pushes notifications to WebSocket subscribers.
type BroadcastNotifier struct {
	hub Broadcaster
}

// NewBroadcastNotifier creates a notifier sending through hub.
func NewBroadcastNotifier(hub Broadcaster) *BroadcastNotifier {
	return &BroadcastNotifier{hub: hub}
}

// Notify broadcasts n on BroadcastChannel.
func (b *BroadcastNotifier) Notify(_ context.Context, n Notification) error {
	if n.ID == "" {
		return ErrEmptyID
	}
	b.hub.Broadcast(BroadcastChannel, n)
	return nil
}

// Multi delivers to every notifier in order. A failing notifier does not
// stop the others; all errors are joined.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, notifier := range m {
		if err := notifier.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
