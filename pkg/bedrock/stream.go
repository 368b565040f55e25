package bedrock

import (
	"context"

	"github.com/adrianliechti/wingman-bedrock/pkg/generate"
)

// StreamText starts a streaming generation and hands the stream to the
// caller untouched. The caller must close it.
func (a *Adapter) StreamText(ctx context.Context, r *TextRequest) (*generate.TextStream, error) {
	a.logger.DebugContext(ctx, "streaming bedrock text", "model", r.ModelID)

	model, err := a.model(ctx, r)

	if err != nil {
		a.logFailure(ctx, "streamText", err, "model", r.ModelID)
		return nil, err
	}

	a.logger.DebugContext(ctx, "bedrock streamText parameters",
		"model", r.ModelID,
		"messages", len(r.Messages),
		"max_tokens", value(r.MaxTokens),
		"temperature", value(r.Temperature),
	)

	stream, err := a.generator.StreamText(ctx, r.textOptions(model))

	if err != nil {
		a.logFailure(ctx, "streamText", err, "model", r.ModelID)
		return nil, err
	}

	return stream, nil
}
