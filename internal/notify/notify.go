// Package notify fans a single alert payload out across configured
// destination channels (email, Slack instant-message), collecting a
// per-channel success/failure record without ever raising on a partial
// failure.
package notify

import (
	"context"
	"fmt"

	"github.com/ignite/adcontrol/internal/metrics"
	"github.com/ignite/adcontrol/internal/pkg/logger"
)

// Message is a logical alert payload: a title, a body, and the
// organization it concerns. Destinations come from each channel's own
// configuration, set when the channel is built, unless overridden
// per-message below.
type Message struct {
	Title          string
	Body           string
	OrganizationID string

	// Channels restricts delivery to the named channels (as returned by
	// Channel.Name) when non-empty; empty means every configured channel.
	Channels []string
	// EmailTo, when set, overrides the email channel's configured
	// recipient list for this message only.
	EmailTo string
	// IMTo, when set, overrides the Slack channel's configured destination
	// for this message only.
	IMTo string
}

// wantsChannel reports whether msg should go to channel name: always when
// Channels is empty, otherwise only when name is listed.
func (m Message) wantsChannel(name string) bool {
	if len(m.Channels) == 0 {
		return true
	}
	for _, c := range m.Channels {
		if c == name {
			return true
		}
	}
	return false
}

// Channel delivers a Message to one kind of destination.
type Channel interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// DeliveryResult records whether one channel accepted a Message.
type DeliveryResult struct {
	Channel string `json:"channel"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Fanout delivers a Message across every configured Channel. A channel
// failure is logged and recorded but never aborts the remaining channels or
// returns an error to the caller — per the spec, a partial success is not a
// failure of the fanout operation.
type Fanout struct {
	channels []Channel
}

// NewFanout creates a Fanout over the given channels.
func NewFanout(channels ...Channel) *Fanout {
	return &Fanout{channels: channels}
}

// Send delivers msg across every channel and returns the per-channel
// outcome.
func (f *Fanout) Send(ctx context.Context, msg Message) []DeliveryResult {
	results := make([]DeliveryResult, 0, len(f.channels))
	for _, ch := range f.channels {
		if !msg.wantsChannel(ch.Name()) {
			continue
		}
		err := ch.Send(ctx, msg)
		res := DeliveryResult{Channel: ch.Name(), Success: err == nil}
		outcome := "success"
		if err != nil {
			outcome = "failed"
			res.Error = err.Error()
			logger.Warn("notify: channel delivery failed", "channel", ch.Name(), "org_id", msg.OrganizationID, "error", err.Error())
		}
		metrics.RecordNotificationSent(ch.Name(), outcome)
		results = append(results, res)
	}
	return results
}

// FormatMetric renders a metric value per the family-specific display rule:
// percentages as x.xx%, currencies with 2 decimals, ratios as x.xxx.
func FormatMetric(family string, value float64) string {
	switch family {
	case "percent":
		return fmt.Sprintf("%.2f%%", value)
	case "currency":
		return fmt.Sprintf("%.2f", value)
	case "ratio":
		return fmt.Sprintf("%.3f", value)
	default:
		return fmt.Sprintf("%.2f", value)
	}
}
