package bedrock

import (
	"context"
)

type TextResult struct {
	Text string

	Usage Usage
}

// GenerateText generates a complete text response. Errors are logged and
// returned unchanged.
func (a *Adapter) GenerateText(ctx context.Context, r *TextRequest) (*TextResult, error) {
	a.logger.DebugContext(ctx, "generating bedrock text", "model", r.ModelID)

	model, err := a.model(ctx, r)

	if err != nil {
		a.logFailure(ctx, "generateText", err, "model", r.ModelID)
		return nil, err
	}

	result, err := a.generator.GenerateText(ctx, r.textOptions(model))

	if err != nil {
		a.logFailure(ctx, "generateText", err, "model", r.ModelID)
		return nil, err
	}

	a.logger.DebugContext(ctx, "bedrock generateText result received",
		"model", r.ModelID,
		"prompt_tokens", result.Usage.PromptTokens,
		"completion_tokens", result.Usage.CompletionTokens,
	)

	return &TextResult{
		Text:  result.Text,
		Usage: toUsage(result.Usage),
	}, nil
}
