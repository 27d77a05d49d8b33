package codegen

import (
	"context"
	"fmt"

	"github.com/sony/sonyflake"

	"github.com/go-url-platform/shortener/internal/codec"
	"github.com/go-url-platform/shortener/internal/obs"
)

// SnowflakeGenerator substitutes a distributed monotonic ID (sonyflake:
// 39-bit time in 10 ms units, 8-bit sequence, 16-bit machine ID) for the
// random-draw strategy,
// eliminating contention entirely at the cost of predictable ordering. The
// observable contract — a unique Base62 string up to 10 symbols — is
// unchanged.
type SnowflakeGenerator struct {
	flake *sonyflake.Sonyflake
}

func NewSnowflakeGenerator(nodeID uint16) (*SnowflakeGenerator, error) {
	flake, err := sonyflake.New(sonyflake.Settings{
		MachineID: func() (uint16, error) { return nodeID, nil },
	})
	if err != nil {
		return nil, fmt.Errorf("codegen: init sonyflake: %w", err)
	}
	return &SnowflakeGenerator{flake: flake}, nil
}

// Next never collides by construction, so it consults no existence check and
// never retries.
func (g *SnowflakeGenerator) Next(ctx context.Context) (string, error) {
	id, err := g.flake.NextID()
	if err != nil {
		return "", fmt.Errorf("codegen: next snowflake id: %w", err)
	}

	code := codec.Encode(id)
	obs.CodeGenerationAttempts.WithLabelValues("snowflake", "success").Observe(1)
	return code, nil
}
