// Package codegen implements the Code Generator (C2): pluggable strategies
// that produce a short code not currently present in the Mapping Store.
package codegen

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"github.com/go-url-platform/shortener/internal/codec"
	"github.com/go-url-platform/shortener/internal/obs"
)

// ErrCapacityExhausted is returned when a strategy cannot find a free code
// within its attempt budget.
var ErrCapacityExhausted = errors.New("codegen: capacity exhausted")

// ExistenceChecker consults the Mapping Store for a collision.
type ExistenceChecker interface {
	ExistsShortCode(ctx context.Context, code string) (bool, error)
}

// Generator produces a short code guaranteed (by collision-retry) not to
// collide with an existing mapping at the time it is returned.
type Generator interface {
	Next(ctx context.Context) (string, error)
}

// RandomGenerator draws a uniform integer in [1, ceiling], Base62-encodes
// it, and retries against the store's existence predicate.
type RandomGenerator struct {
	store         ExistenceChecker
	ceiling       uint64
	attemptBudget int
}

func NewRandomGenerator(store ExistenceChecker, ceiling uint64, attemptBudget int) *RandomGenerator {
	return &RandomGenerator{store: store, ceiling: ceiling, attemptBudget: attemptBudget}
}

func (g *RandomGenerator) Next(ctx context.Context) (string, error) {
	bigCeiling := new(big.Int).SetUint64(g.ceiling)

	for attempt := 1; attempt <= g.attemptBudget; attempt++ {
		n, err := rand.Int(rand.Reader, bigCeiling)
		if err != nil {
			return "", fmt.Errorf("codegen: draw random: %w", err)
		}
		candidate := n.Uint64() + 1 // shift [0, ceiling) to [1, ceiling]

		code := codec.Encode(candidate)

		exists, err := g.store.ExistsShortCode(ctx, code)
		if err != nil {
			return "", fmt.Errorf("codegen: existence check: %w", err)
		}
		if !exists {
			obs.CodeGenerationAttempts.WithLabelValues("random", "success").Observe(float64(attempt))
			return code, nil
		}
	}

	obs.CodeGenerationAttempts.WithLabelValues("random", "exhausted").Observe(float64(g.attemptBudget))
	return "", ErrCapacityExhausted
}
