package layout

import (
	"context"
	"errors"
	"fmt"
)

// DefaultMaxAttempts is used when ProduceValidLayout gets a non-positive limit.
const DefaultMaxAttempts = 3

// Generator produces a fresh layout candidate on every call. A returned
// error means the attempt produced nothing usable; errors wrapping
// ErrInvalidFormat are reported as invalid_format, anything else as
// generation_failed.
type Generator interface {
	Generate(ctx context.Context) (*Layout, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context) (*Layout, error)

func (f GeneratorFunc) Generate(ctx context.Context) (*Layout, error) {
	return f(ctx)
}

// Outcome is what ProduceValidLayout settled on. When Result.Valid is false,
// Layout is the most recent candidate any attempt produced (nil if none did)
// and Result describes the final attempt.
type Outcome struct {
	Layout   *Layout           `json:"layout"`
	Result   *ValidationResult `json:"result"`
	Attempts int               `json:"attempts"`
}

// ProduceValidLayout asks gen for candidates until one validates or
// maxAttempts is reached. Running out of attempts is not an error: the last
// candidate is returned with its diagnostics. Errors are only returned for
// unusable constraints or a cancelled context.
func ProduceValidLayout(ctx context.Context, c *Constraints, gen Generator, maxAttempts int) (*Outcome, error) {
	if err := c.Check(); err != nil {
		return nil, err
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	out := &Outcome{}
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		out.Attempts = attempt

		candidate, err := gen.Generate(ctx)
		if err != nil {
			if errors.Is(err, ErrInvalidFormat) {
				out.Result = InvalidFormat(err)
			} else {
				out.Result = failed(CodeGenerationFailed, "attempt %d: %v", attempt, err)
			}
			continue
		}

		res, err := Validate(c, candidate)
		if err != nil {
			return out, fmt.Errorf("validate attempt %d: %w", attempt, err)
		}
		out.Layout = candidate
		out.Result = res
		if res.Valid {
			return out, nil
		}
	}
	return out, nil
}
