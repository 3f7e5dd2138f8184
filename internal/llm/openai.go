package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIClient adapts openai-go to the narrow Client contract. It exists as
// a second concrete LLMClient so the hybrid extractor and schema generator
// can be exercised against either provider without code changes — the
// point of modeling the LLM as an interface (DESIGN NOTES).
type OpenAIClient struct {
	client openai.Client
	model  string
}

func NewOpenAIClient(apiKey, model string) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("llm: openai api key required")
	}
	if model == "" {
		model = string(openai.ChatModelGPT4o)
	}
	c := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIClient{client: c, model: model}, nil
}

func (o *OpenAIClient) Complete(ctx context.Context, prompt string, params Params) (string, error) {
	model := o.model
	if params.Model != "" {
		model = params.Model
	}
	maxTokens := params.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(model),
		Messages:    []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
		MaxTokens:   openai.Int(int64(maxTokens)),
		Temperature: openai.Float(params.Temperature),
	})
	if err != nil {
		return "", fmt.Errorf("llm: openai request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm: openai returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
