package pipeline

import "context"

// Processor handles one exchange. Expected failures travel as returned
// errors, not panics; a non-nil error is terminal for the exchange.
type Processor interface {
	Process(ctx context.Context, ex *Exchange) error
}

// ProcessorFunc adapts a function to the Processor interface.
type ProcessorFunc func(ctx context.Context, ex *Exchange) error

// Process calls f.
func (f ProcessorFunc) Process(ctx context.Context, ex *Exchange) error {
	return f(ctx, ex)
}

// chain runs processors in order, stopping at the first failure.
type chain struct {
	processors []Processor
}

// Chain composes processors into a single Processor that runs them in
// order. The first error stops the chain and is recorded on the exchange.
func Chain(processors ...Processor) Processor {
	return &chain{processors: processors}
}

func (c *chain) Process(ctx context.Context, ex *Exchange) error {
	for _, p := range c.processors {
		if err := p.Process(ctx, ex); err != nil {
			if !ex.Failed() {
				ex.SetError(err)
			}
			return err
		}
	}
	return nil
}
