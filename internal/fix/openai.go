package fix

import (
	"context"
	"errors"
	"log/slog"

	"github.com/sashabaranov/go-openai"

	"github.com/jeryldev/patingin/internal/ir"
)

const (
	DefaultOpenAIModel = "gpt-4o-mini"
	systemPrompt       = "You are a code fixer. Reply with replacement code only."
)

// OpenAIFixer asks an OpenAI-compatible chat completion endpoint for a fix.
type OpenAIFixer struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

// NewOpenAIFixer needs an API key. baseURL selects a compatible server and may
// be empty.
func NewOpenAIFixer(apiKey, baseURL, model string, logger *slog.Logger) (*OpenAIFixer, error) {
	if apiKey == "" {
		return nil, errors.Join(ErrFixerUnavailable, errors.New("OPENAI_API_KEY not set"))
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	if logger == nil {
		logger = slog.Default()
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	logger.Debug("initializing openai fixer", "model", model)
	return &OpenAIFixer{client: openai.NewClientWithConfig(cfg), model: model, logger: logger}, nil
}

func (o *OpenAIFixer) Fix(ctx context.Context, req ir.FixRequest) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: BuildPrompt(req)},
		},
	})
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", ErrFixTimeout
		}
		return "", &FixerError{Backend: "openai", Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &FixerError{Backend: "openai", Err: errors.New("no choices returned")}
	}
	o.logger.Debug("openai fix received", "rule", req.Violation.RuleID, "finish_reason", resp.Choices[0].FinishReason)
	code := ExtractCode(resp.Choices[0].Message.Content)
	if code == "" {
		return "", &FixerError{Backend: "openai", Err: errors.New("empty response")}
	}
	return code, nil
}
