package layout

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sequence returns each layout in turn, then keeps returning the last one.
type sequence struct {
	layouts []*Layout
	errs    []error
	calls   int
}

func (s *sequence) Generate(ctx context.Context) (*Layout, error) {
	i := s.calls
	s.calls++
	if i >= len(s.layouts) {
		i = len(s.layouts) - 1
	}
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	return s.layouts[i], err
}

func invalidCandidate(tag string) *Layout {
	return &Layout{
		GridMeta:  GridMeta{Width: 6, Height: 4},
		GridASCII: []string{tag},
	}
}

func TestProduceValidLayout_FirstValidWins(t *testing.T) {
	c, good := crypt()
	gen := &sequence{layouts: []*Layout{invalidCandidate("a"), good, invalidCandidate("c")}}

	out, err := ProduceValidLayout(context.Background(), c, gen, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, gen.calls)
	assert.Equal(t, 2, out.Attempts)
	assert.Same(t, good, out.Layout)
	assert.True(t, out.Result.Valid)
}

func TestProduceValidLayout_FallsBackToLastCandidate(t *testing.T) {
	c, _ := crypt()
	first, second, third := invalidCandidate("1"), invalidCandidate("2"), invalidCandidate("3")
	gen := &sequence{layouts: []*Layout{first, second, third}}

	out, err := ProduceValidLayout(context.Background(), c, gen, 3)
	require.NoError(t, err, "exhausted retries must not be an error")
	assert.Equal(t, 3, gen.calls)
	assert.Equal(t, 3, out.Attempts)
	assert.Same(t, third, out.Layout)
	assert.False(t, out.Result.Valid)
	require.Len(t, out.Result.Errors, 1)
	assert.Equal(t, CodeHeightMismatch, out.Result.Errors[0].Code)
}

func TestProduceValidLayout_DefaultAttempts(t *testing.T) {
	c, _ := crypt()
	gen := &sequence{layouts: []*Layout{invalidCandidate("x")}}

	out, err := ProduceValidLayout(context.Background(), c, gen, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxAttempts, gen.calls)
	assert.Equal(t, DefaultMaxAttempts, out.Attempts)
}

func TestProduceValidLayout_GeneratorErrorsAreFailedAttempts(t *testing.T) {
	c, good := crypt()
	boom := errors.New("provider timeout")
	gen := &sequence{
		layouts: []*Layout{nil, good},
		errs:    []error{boom, nil},
	}

	out, err := ProduceValidLayout(context.Background(), c, gen, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, gen.calls)
	assert.True(t, out.Result.Valid)
}

func TestProduceValidLayout_AllGenerationsFail(t *testing.T) {
	c, _ := crypt()
	calls := 0
	gen := GeneratorFunc(func(ctx context.Context) (*Layout, error) {
		calls++
		return nil, errors.New("no usable candidate")
	})

	out, err := ProduceValidLayout(context.Background(), c, gen, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Nil(t, out.Layout)
	require.Len(t, out.Result.Errors, 1)
	assert.Equal(t, CodeGenerationFailed, out.Result.Errors[0].Code)
}

func TestProduceValidLayout_DecodeFailureIsInvalidFormat(t *testing.T) {
	c, _ := crypt()
	gen := GeneratorFunc(func(ctx context.Context) (*Layout, error) {
		return DecodeLayout([]byte(`["not", "an", "object"]`))
	})

	out, err := ProduceValidLayout(context.Background(), c, gen, 1)
	require.NoError(t, err)
	assert.False(t, out.Result.Valid)
	assert.Equal(t, CodeInvalidFormat, out.Result.Errors[0].Code)
}

func TestProduceValidLayout_KeepsLastCandidateAfterGenerationError(t *testing.T) {
	c, _ := crypt()
	candidate := invalidCandidate("only")
	gen := &sequence{
		layouts: []*Layout{candidate, nil},
		errs:    []error{nil, errors.New("rate limited")},
	}

	out, err := ProduceValidLayout(context.Background(), c, gen, 2)
	require.NoError(t, err)
	assert.Same(t, candidate, out.Layout)
	assert.Equal(t, CodeGenerationFailed, out.Result.Errors[0].Code)
}

func TestProduceValidLayout_BadConstraints(t *testing.T) {
	gen := &sequence{layouts: []*Layout{invalidCandidate("x")}}

	_, err := ProduceValidLayout(context.Background(), doorConstraints(0, 0, 0), gen, 3)
	assert.ErrorIs(t, err, ErrInvalidConstraints)
	assert.Zero(t, gen.calls)
}

func TestProduceValidLayout_CancelledContext(t *testing.T) {
	c, _ := crypt()
	ctx, cancel := context.WithCancel(context.Background())
	gen := GeneratorFunc(func(ctx context.Context) (*Layout, error) {
		cancel()
		return invalidCandidate("x"), nil
	})

	out, err := ProduceValidLayout(ctx, c, gen, 3)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, out.Attempts)
}
