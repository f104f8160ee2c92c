package llm

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicClient adapts anthropic-sdk-go's Messages API to the Client
// contract. Anthropic separates the system prompt from the turn history, so
// Complete pulls any RoleSystem messages out of the sequence before calling.
type AnthropicClient struct {
	api       anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

func NewAnthropicClient(apiKey string, model anthropic.Model, maxTokens int64) *AnthropicClient {
	return &AnthropicClient{
		api:       anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:     model,
		maxTokens: maxTokens,
	}
}

func (c *AnthropicClient) Complete(ctx context.Context, req Request) (Response, error) {
	var system strings.Builder
	var turns []anthropic.MessageParam

	for _, m := range req.EffectiveMessages() {
		switch m.Role {
		case RoleSystem:
			if system.Len() > 0 {
				system.WriteString("\n\n")
			}
			system.WriteString(m.Content)
		case RoleAssistant:
			turns = append(turns, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			turns = append(turns, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages:  turns,
	}
	if system.Len() > 0 {
		params.System = []anthropic.TextBlockParam{{Text: system.String()}}
	}

	msg, err := c.api.Messages.New(ctx, params)
	if err != nil {
		if isContextLengthError(err) {
			return Response{}, ErrContextTooLong
		}
		return Response{}, err
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return Response{
		Text:      text.String(),
		Citations: extractCitations(text.String()),
	}, nil
}
