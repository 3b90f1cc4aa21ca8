// Package testkit bundles in-memory adapters and seeded synthetic
// recordings for tests: a ledger that forgets on process exit, the
// deterministic RNG adapter, and generators for series with known coupling
// structure.
package testkit

import (
	"infodyn/adapters/memory"
	"infodyn/adapters/rng"
	"infodyn/app"
	"infodyn/internal"
	"infodyn/ports"
)

// TestKit provides the adapter set tests wire services against.
type TestKit struct {
	ledger *memory.Ledger
	rng    *rng.Adapter
	logger *internal.Logger
}

// NewTestKit creates a kit with fresh in-memory adapters and a quiet
// logger.
func NewTestKit() *TestKit {
	return &TestKit{
		ledger: memory.NewLedger(),
		rng:    rng.New(),
		logger: internal.NewLogger(internal.LogLevelError),
	}
}

// LedgerAdapter returns the shared in-memory ledger.
func (t *TestKit) LedgerAdapter() ports.LedgerPort { return t.ledger }

// RNGAdapter returns the deterministic stream adapter.
func (t *TestKit) RNGAdapter() ports.RNGPort { return t.rng }

// Logger returns the kit's logger.
func (t *TestKit) Logger() *internal.Logger { return t.logger }

// AnalysisService wires an analysis service against the kit's adapters.
func (t *TestKit) AnalysisService() *app.AnalysisService {
	return app.NewAnalysisService(t.ledger, t.rng, t.logger)
}

// SweepService wires a sweep service against the kit's adapters.
func (t *TestKit) SweepService() *app.SweepService {
	return app.NewSweepService(t.ledger, t.rng, t.logger)
}
