package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// EmailChannel delivers Messages as plain-text email through AWS SES v2.
type EmailChannel struct {
	client     *sesv2.Client
	fromAddr   string
	recipients []string
}

// NewEmailChannel creates an EmailChannel. Credentials resolve through the
// default AWS credential chain (IAM role in ECS, profile locally), matching
// every other AWS client in this service.
func NewEmailChannel(ctx context.Context, region, profile, fromAddr string, recipients []string) (*EmailChannel, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("notify: load aws config: %w", err)
	}
	return &EmailChannel{
		client:     sesv2.NewFromConfig(awsCfg),
		fromAddr:   fromAddr,
		recipients: recipients,
	}, nil
}

func (c *EmailChannel) Name() string { return "email" }

func (c *EmailChannel) Send(ctx context.Context, msg Message) error {
	recipients := c.recipients
	if msg.EmailTo != "" {
		recipients = []string{msg.EmailTo}
	}
	if len(recipients) == 0 {
		return fmt.Errorf("notify: email channel has no recipients configured")
	}
	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(c.fromAddr),
		Destination:      &types.Destination{ToAddresses: recipients},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Title)},
				Body:    &types.Body{Text: &types.Content{Data: aws.String(msg.Body)}},
			},
		},
	}
	_, err := c.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("notify: ses send email: %w", err)
	}
	return nil
}
