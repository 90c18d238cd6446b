package aiadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/ignite/adcontrol/internal/reportcatalog"
)

// bedrockMessage mirrors the Anthropic-on-Bedrock Converse message shape.
type bedrockMessage struct {
	Role    string                 `json:"role"`
	Content []bedrockContentBlock  `json:"content"`
}

type bedrockContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type bedrockRequest struct {
	AnthropicVersion string           `json:"anthropic_version"`
	MaxTokens        int              `json:"max_tokens"`
	System           string           `json:"system,omitempty"`
	Messages         []bedrockMessage `json:"messages"`
	Temperature      float64          `json:"temperature,omitempty"`
}

type bedrockResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

// BedrockAdapter analyzes report rows through AWS Bedrock's Converse-style
// InvokeModel API, mirroring the request/response shape a Claude model
// expects there.
type BedrockAdapter struct {
	client  *bedrockruntime.Client
	modelID string
}

// NewBedrockAdapter creates a BedrockAdapter. Credentials resolve through
// the default AWS credential chain.
func NewBedrockAdapter(ctx context.Context, region, profile, modelID string) (*BedrockAdapter, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, &Error{Stage: "configuration", Reason: err.Error()}
	}
	if modelID == "" {
		modelID = "anthropic.claude-3-sonnet-20240229-v1:0"
	}
	return &BedrockAdapter{client: bedrockruntime.NewFromConfig(cfg), modelID: modelID}, nil
}

// Analyze summarizes templateName's rows via the configured Bedrock model.
func (b *BedrockAdapter) Analyze(ctx context.Context, templateName string, rows []reportcatalog.Row) (string, error) {
	count, spend, conversions, revenue := summarize(rows)

	var sample strings.Builder
	limit := count
	if limit > 20 {
		limit = 20
	}
	for i := 0; i < limit; i++ {
		fmt.Fprintf(&sample, "%v\n", rows[i])
	}

	prompt := fmt.Sprintf(
		"You are an ad-operations analyst. Summarize the performance of the %q report in 3-5 sentences.\n"+
			"Totals: %d rows, spend=%.2f, conversions=%.0f, revenue=%.2f.\nSample rows:\n%s",
		templateName, count, spend, conversions, revenue, sample.String(),
	)

	req := bedrockRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        600,
		System:           "Respond with plain prose only, no markdown headers.",
		Messages: []bedrockMessage{
			{Role: "user", Content: []bedrockContentBlock{{Type: "text", Text: prompt}}},
		},
		Temperature: 0.3,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", &Error{Stage: "request", Reason: err.Error()}
	}

	out, err := b.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(b.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return "", &Error{Stage: "request", Reason: err.Error()}
	}

	var resp bedrockResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return "", &Error{Stage: "response", Reason: err.Error()}
	}

	var text strings.Builder
	for _, c := range resp.Content {
		if c.Type == "text" {
			text.WriteString(c.Text)
		}
	}
	if text.Len() == 0 {
		return "", &Error{Stage: "response", Reason: "bedrock returned no text content"}
	}
	return text.String(), nil
}
