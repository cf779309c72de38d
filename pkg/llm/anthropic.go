package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Anthropic requires an explicit output cap on every request.
const anthropicMaxTokens = 4096

// AnthropicClient implements Client via the Anthropic Messages API.
type AnthropicClient struct {
	client      anthropic.Client
	model       anthropic.Model
	temperature float64
}

// NewAnthropicClient creates a raw Anthropic client (timeout middleware
// applied at a higher level).
func NewAnthropicClient(apiKey, model string, temperature float64) *AnthropicClient {
	return &AnthropicClient{
		client:      anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:       anthropic.Model(model),
		temperature: temperature,
	}
}

// Complete implements the Client interface. The Messages API demands strict
// user/assistant alternation starting and ending with user, so consecutive
// same-role entries are merged before sending.
func (c *AnthropicClient) Complete(ctx context.Context, system string, msgs []Message) (string, error) {
	merged := mergeConsecutive(msgs)
	if len(merged) == 0 || merged[0].Role != RoleUser {
		return "", fmt.Errorf("anthropic request must start with a user message")
	}

	messages := make([]anthropic.MessageParam, 0, len(merged))
	for i := range merged {
		msg := &merged[i]
		block := anthropic.NewTextBlock(msg.Content)
		if msg.Role == RoleAssistant {
			messages = append(messages, anthropic.NewAssistantMessage(block))
		} else {
			messages = append(messages, anthropic.NewUserMessage(block))
		}
	}

	params := anthropic.MessageNewParams{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   anthropicMaxTokens,
		Temperature: anthropic.Float(c.temperature),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system, Type: "text"}}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic message request failed: %w", err)
	}
	if resp == nil || len(resp.Content) == 0 {
		return "", fmt.Errorf("empty response from Anthropic API")
	}

	var text strings.Builder
	for i := range resp.Content {
		block := &resp.Content[i]
		if block.Type == "text" {
			text.WriteString(block.AsText().Text)
		}
	}
	return text.String(), nil
}

// mergeConsecutive joins runs of same-role messages into one message each.
func mergeConsecutive(msgs []Message) []Message {
	var merged []Message
	for i := range msgs {
		msg := &msgs[i]
		if n := len(merged); n > 0 && merged[n-1].Role == msg.Role {
			merged[n-1].Content += "\n\n" + msg.Content
			continue
		}
		merged = append(merged, *msg)
	}
	return merged
}
