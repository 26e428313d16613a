package querygen

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

// contentGenerator is the slice of llms.Model the completer uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// LangChainCompleter completes prompts through any langchaingo chat model,
// typically a small local model served by Ollama.
type LangChainCompleter struct {
	model contentGenerator
}

// NewLangChain wraps an existing langchaingo model.
func NewLangChain(model contentGenerator) *LangChainCompleter {
	return &LangChainCompleter{model: model}
}

// NewOllama connects to an Ollama server and serves the named model.
func NewOllama(serverURL, model string) (*LangChainCompleter, error) {
	opts := []ollama.Option{ollama.WithModel(model)}
	if serverURL != "" {
		opts = append(opts, ollama.WithServerURL(serverURL))
	}
	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, eris.Wrap(err, "querygen: create ollama model")
	}
	return NewLangChain(llm), nil
}

// Complete implements Completer.
func (c *LangChainCompleter) Complete(ctx context.Context, p Prompt) (string, error) {
	msgs := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, p.System),
		llms.TextParts(llms.ChatMessageTypeHuman, p.User),
	}
	resp, err := c.model.GenerateContent(ctx, msgs,
		llms.WithTemperature(p.Temperature),
		llms.WithMaxTokens(p.MaxTokens),
	)
	if err != nil {
		return "", eris.Wrap(err, "querygen: langchain")
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Content, nil
}
