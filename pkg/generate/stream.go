package generate

import (
	"context"
	"iter"

	"github.com/adrianliechti/wingman-bedrock/pkg/provider"
)

// TextStream is a started completion stream. It is not safe for concurrent
// use.
type TextStream struct {
	next func() (*provider.Completion, error, bool)
	stop func()

	pending *provider.Completion

	acc provider.CompletionAccumulator

	err  error
	done bool
}

// StreamText starts a completion and waits for its first event, so a request
// the model rejects fails here and not while reading.
func StreamText(ctx context.Context, options TextOptions) (*TextStream, error) {
	if options.Model == nil {
		return nil, ErrMissingModel
	}

	completeOptions := options.completeOptions()
	completeOptions.Stream = true

	seq := options.Model.Complete(ctx, options.Messages, completeOptions)

	next, stop := iter.Pull2(seq)

	first, err, ok := next()

	if err != nil {
		stop()
		return nil, err
	}

	s := &TextStream{
		next: next,
		stop: stop,
	}

	if ok {
		s.pending = first
	} else {
		s.Close()
	}

	return s, nil
}

func (s *TextStream) read() (*provider.Completion, bool) {
	if s.pending != nil {
		c := s.pending
		s.pending = nil

		s.acc.Add(*c)
		return c, true
	}

	if s.done {
		return nil, false
	}

	for {
		c, err, ok := s.next()

		if err != nil {
			s.err = err
			s.Close()

			return nil, false
		}

		if !ok {
			s.Close()
			return nil, false
		}

		if c == nil {
			continue
		}

		s.acc.Add(*c)
		return c, true
	}
}

// Chunks yields text deltas as they arrive. A read error is yielded once as
// the last element.
func (s *TextStream) Chunks() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for {
			c, ok := s.read()

			if !ok {
				if s.err != nil {
					yield("", s.err)
				}

				return
			}

			if c.Message == nil {
				continue
			}

			text := c.Message.Text()

			if text == "" {
				continue
			}

			if !yield(text, nil) {
				return
			}
		}
	}
}

// Result drains the stream and returns the accumulated completion.
func (s *TextStream) Result() (*TextResult, error) {
	for {
		if _, ok := s.read(); !ok {
			break
		}
	}

	if s.err != nil {
		return nil, s.err
	}

	return s.result(), nil
}

func (s *TextStream) result() *TextResult {
	completion := s.acc.Result()

	result := &TextResult{
		Reason: completion.Reason,
	}

	if completion.Message != nil {
		result.Text = completion.Message.Text()
	}

	result.Usage.add(completion.Usage)

	return result
}

// Text returns the text received so far.
func (s *TextStream) Text() string {
	return s.result().Text
}

// Usage returns the usage reported so far. Bedrock reports usage at the end of
// the stream.
func (s *TextStream) Usage() Usage {
	return s.result().Usage
}

func (s *TextStream) Err() error {
	return s.err
}

func (s *TextStream) Close() error {
	if s.done {
		return nil
	}

	s.done = true
	s.pending = nil

	if s.stop != nil {
		s.stop()
	}

	return nil
}
