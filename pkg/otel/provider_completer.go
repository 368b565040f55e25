package otel

import (
	"context"
	"iter"
	"time"

	"github.com/adrianliechti/wingman-bedrock/pkg/provider"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/semconv/v1.38.0/genaiconv"
)

type Completer interface {
	Observable
	provider.Completer
}

type observableCompleter struct {
	model    string
	provider string

	completer provider.Completer

	tokenUsageMetric        genaiconv.ClientTokenUsage
	operationDurationMetric genaiconv.ClientOperationDuration
}

func NewCompleter(provider, model string, p provider.Completer) Completer {
	meter := otel.Meter(instrumentationName)

	tokenUsageMetric, _ := genaiconv.NewClientTokenUsage(meter)
	operationDurationMetric, _ := genaiconv.NewClientOperationDuration(meter)

	return &observableCompleter{
		completer: p,

		model:    model,
		provider: provider,

		tokenUsageMetric:        tokenUsageMetric,
		operationDurationMetric: operationDurationMetric,
	}
}

func (p *observableCompleter) otelSetup() {
}

func (p *observableCompleter) Complete(ctx context.Context, messages []provider.Message, options *provider.CompleteOptions) iter.Seq2[*provider.Completion, error] {
	return func(yield func(*provider.Completion, error) bool) {
		ctx, span := otel.Tracer(instrumentationName).Start(ctx, "chat "+p.model)
		defer span.End()

		timestamp := time.Now()

		var acc provider.CompletionAccumulator

		for completion, err := range p.completer.Complete(ctx, messages, options) {
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())

				yield(nil, err)
				return
			}

			if completion != nil {
				acc.Add(*completion)
			}

			if !yield(completion, nil) {
				return
			}
		}

		p.record(ctx, time.Since(timestamp), acc.Result())
	}
}

func (p *observableCompleter) record(ctx context.Context, duration time.Duration, result *provider.Completion) {
	providerName := genaiconv.ProviderNameAttr(p.provider)
	providerModel := p.model

	if result.Model != "" {
		providerModel = result.Model
	}

	p.operationDurationMetric.Record(ctx, duration.Seconds(),
		genaiconv.OperationNameChat,
		providerName,
		p.operationDurationMetric.AttrRequestModel(p.model),
		p.operationDurationMetric.AttrResponseModel(providerModel),
	)

	if result.Usage == nil {
		return
	}

	if result.Usage.InputTokens > 0 {
		p.tokenUsageMetric.Record(ctx, int64(result.Usage.InputTokens),
			genaiconv.OperationNameChat,
			providerName,
			genaiconv.TokenTypeInput,
			p.tokenUsageMetric.AttrRequestModel(p.model),
			p.tokenUsageMetric.AttrResponseModel(providerModel),
		)
	}

	if result.Usage.OutputTokens > 0 {
		p.tokenUsageMetric.Record(ctx, int64(result.Usage.OutputTokens),
			genaiconv.OperationNameChat,
			providerName,
			genaiconv.TokenTypeOutput,
			p.tokenUsageMetric.AttrRequestModel(p.model),
			p.tokenUsageMetric.AttrResponseModel(providerModel),
		)
	}
}
