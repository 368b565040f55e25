// Package generate provides model independent text and object generation on
// top of provider.Completer.
package generate

import (
	"context"
	"errors"

	"github.com/adrianliechti/wingman-bedrock/pkg/provider"
)

var ErrMissingModel = errors.New("generate: model is required")

// Usage reports token consumption in prompt and completion terms.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

func (u Usage) TotalTokens() int {
	return u.PromptTokens + u.CompletionTokens
}

func (u *Usage) add(val *provider.Usage) {
	if val == nil {
		return
	}

	u.PromptTokens += val.InputTokens
	u.CompletionTokens += val.OutputTokens
}

type TextOptions struct {
	Model provider.Completer

	Messages []provider.Message

	MaxTokens   *int
	Temperature *float32
}

func (o TextOptions) completeOptions() *provider.CompleteOptions {
	return &provider.CompleteOptions{
		MaxTokens:   o.MaxTokens,
		Temperature: o.Temperature,
	}
}

func complete(ctx context.Context, model provider.Completer, messages []provider.Message, options *provider.CompleteOptions) (*provider.Completion, error) {
	var acc provider.CompletionAccumulator

	for completion, err := range model.Complete(ctx, messages, options) {
		if err != nil {
			return nil, err
		}

		if completion == nil {
			continue
		}

		acc.Add(*completion)
	}

	return acc.Result(), nil
}
