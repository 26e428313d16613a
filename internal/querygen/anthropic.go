package querygen

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/serp-scraper/pkg/anthropic"
)

// AnthropicCompleter completes prompts with the Anthropic Messages API.
type AnthropicCompleter struct {
	client anthropic.Client
	model  string
}

// NewAnthropic creates a Completer for the given model.
func NewAnthropic(client anthropic.Client, model string) *AnthropicCompleter {
	return &AnthropicCompleter{client: client, model: model}
}

// Complete implements Completer.
func (c *AnthropicCompleter) Complete(ctx context.Context, p Prompt) (string, error) {
	temp := p.Temperature
	resp, err := c.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       c.model,
		MaxTokens:   int64(p.MaxTokens),
		System:      p.System,
		Messages:    []anthropic.Message{{Role: "user", Content: p.User}},
		Temperature: &temp,
	})
	if err != nil {
		return "", eris.Wrap(err, "querygen: anthropic")
	}
	resp.Usage.LogCost(c.model, "querygen")
	return resp.Text(), nil
}
