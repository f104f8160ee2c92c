package llm

import (
	"context"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAIClient adapts openai-go/v3 to the Client contract. It is
// intentionally thin: all orchestration logic (retries, ancestor assembly)
// lives above this package.
type OpenAIClient struct {
	api   openai.Client
	model openai.ChatModel
}

// NewOpenAIClient builds a Client bound to a single chat model name (e.g.
// openai.ChatModelGPT4o).
func NewOpenAIClient(apiKey string, model openai.ChatModel) *OpenAIClient {
	return &OpenAIClient{
		api:   openai.NewClient(option.WithAPIKey(apiKey)),
		model: model,
	}
}

func (c *OpenAIClient) Complete(ctx context.Context, req Request) (Response, error) {
	params := openai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: toOpenAIMessages(req.EffectiveMessages()),
	}

	completion, err := c.api.Chat.Completions.New(ctx, params)
	if err != nil {
		if isContextLengthError(err) {
			return Response{}, ErrContextTooLong
		}
		return Response{}, err
	}
	if len(completion.Choices) == 0 {
		return Response{}, nil
	}

	choice := completion.Choices[0]
	return Response{
		Text:      choice.Message.Content,
		Citations: extractCitations(choice.Message.Content),
	}, nil
}

func toOpenAIMessages(msgs []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

// isContextLengthError recognizes the backend's context-window error
// without depending on an exported sentinel from the SDK.
func isContextLengthError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "context_length_exceeded") ||
		strings.Contains(msg, "maximum context length") ||
		strings.Contains(msg, "context length exceeded")
}

// extractCitations is a conservative best-effort parser for inline URL
// references the model may emit when web-search grounding is enabled; the
// orchestrator's own citation-merge logic treats an empty result the same
// as "no citations".
func extractCitations(text string) []Citation {
	var citations []Citation
	for _, word := range strings.Fields(text) {
		if strings.HasPrefix(word, "http://") || strings.HasPrefix(word, "https://") {
			citations = append(citations, Citation{URL: strings.Trim(word, ".,)")})
		}
	}
	return citations
}
