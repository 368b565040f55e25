package generate

import (
	"context"

	"github.com/adrianliechti/wingman-bedrock/pkg/provider"
)

type TextResult struct {
	Text string

	Reason provider.CompletionReason

	Usage Usage
}

// GenerateText runs a single completion and returns its text.
func GenerateText(ctx context.Context, options TextOptions) (*TextResult, error) {
	if options.Model == nil {
		return nil, ErrMissingModel
	}

	completion, err := complete(ctx, options.Model, options.Messages, options.completeOptions())

	if err != nil {
		return nil, err
	}

	result := &TextResult{
		Reason: completion.Reason,
	}

	if completion.Message != nil {
		result.Text = completion.Message.Text()
	}

	result.Usage.add(completion.Usage)

	return result, nil
}
