package llm

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicClient adapts anthropic-sdk-go to the narrow Client contract the
// core depends on. Unlike a general-purpose provider wrapper, it has no
// notion of tools, streaming or cost tracking — the core only ever needs a
// single prompt in, a single string out.
type AnthropicClient struct {
	client anthropic.Client
	model  string
}

// NewAnthropicClient builds a Client backed by the Anthropic API. apiKey
// must be non-empty; model defaults to Claude Sonnet when empty.
func NewAnthropicClient(apiKey, model string) (*AnthropicClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("llm: anthropic api key required")
	}
	if model == "" {
		model = string(anthropic.ModelClaudeSonnet4_20250514)
	}
	c := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicClient{client: c, model: model}, nil
}

func (a *AnthropicClient) Complete(ctx context.Context, prompt string, params Params) (string, error) {
	model := a.model
	if params.Model != "" {
		model = params.Model
	}
	maxTokens := params.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	resp, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("llm: anthropic request failed: %w", err)
	}

	var out string
	for _, block := range resp.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			out += tb.Text
		}
	}
	return out, nil
}
