package codegen

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-url-platform/shortener/internal/codec"
)

type fakeChecker struct {
	taken map[string]bool
}

func (f *fakeChecker) ExistsShortCode(ctx context.Context, code string) (bool, error) {
	return f.taken[code], nil
}

func TestRandomGeneratorProducesUnseenCode(t *testing.T) {
	checker := &fakeChecker{taken: map[string]bool{}}
	gen := NewRandomGenerator(checker, 62*62*62-1, 100)

	code, err := gen.Next(context.Background())
	require.NoError(t, err)
	assert.True(t, codec.Valid(code))
}

func TestRandomGeneratorExhaustsBudget(t *testing.T) {
	checker := &alwaysTakenChecker{}
	gen := NewRandomGenerator(checker, 10, 5)

	_, err := gen.Next(context.Background())
	assert.ErrorIs(t, err, ErrCapacityExhausted)
}

type alwaysTakenChecker struct{}

func (alwaysTakenChecker) ExistsShortCode(ctx context.Context, code string) (bool, error) {
	return true, nil
}

func TestSnowflakeGeneratorNeverCollidesAcrossCalls(t *testing.T) {
	gen, err := NewSnowflakeGenerator(1)
	require.NoError(t, err)

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		code, err := gen.Next(context.Background())
		require.NoError(t, err)
		assert.False(t, seen[code], "duplicate code %s", code)
		seen[code] = true
	}
}
