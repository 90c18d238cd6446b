package notify

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
)

// SlackChannel delivers Messages as instant messages through the Slack Web
// API, the messaging-provider destination referenced alongside email in the
// Notification Fanout's destination set.
type SlackChannel struct {
	client   *slack.Client
	channels []string
}

// NewSlackChannel creates a SlackChannel posting to the given channel IDs
// (or user IDs, for DMs) with a bot token from the Settings Store.
func NewSlackChannel(botToken string, channels []string) *SlackChannel {
	return &SlackChannel{
		client:   slack.New(botToken),
		channels: channels,
	}
}

func (c *SlackChannel) Name() string { return "slack" }

func (c *SlackChannel) Send(ctx context.Context, msg Message) error {
	destinations := c.channels
	if msg.IMTo != "" {
		destinations = []string{msg.IMTo}
	}
	if len(destinations) == 0 {
		return fmt.Errorf("notify: slack channel has no destinations configured")
	}
	text := msg.Body
	if msg.Title != "" {
		text = fmt.Sprintf("*%s*\n%s", msg.Title, msg.Body)
	}

	var failures []string
	for _, dest := range destinations {
		_, _, err := c.client.PostMessageContext(ctx, dest, slack.MsgOptionText(text, false))
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", dest, err))
		}
	}
	if len(failures) > 0 {
		return fmt.Errorf("notify: slack delivery failed for %d/%d destinations: %v", len(failures), len(destinations), failures)
	}
	return nil
}
