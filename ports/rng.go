package ports

import (
	"context"
	"math/rand"
)

// RNGPort provides seeded random number generation for deterministic
// analyses.
type RNGPort interface {
	// SeededStream creates a deterministic generator for a named operation.
	SeededStream(ctx context.Context, name string, seed int64) (*rand.Rand, error)

	// Stream derives a generator for one channel pair inside a run, so a
	// sweep assigns every pair the same sub-stream regardless of the order
	// pairs are scheduled in.
	Stream(ctx context.Context, runID, operation, channelKey string, baseSeed int64) (*rand.Rand, error)

	// ValidateSeed checks that the named stream reproduces the expected
	// leading draws.
	ValidateSeed(ctx context.Context, name string, seed int64, expected []float64) error
}
