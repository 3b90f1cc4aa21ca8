package testkit

import (
	exprand "golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"infodyn/domain/series"
)

// CoupledSystemConfig configures the synthetic recording generator.
type CoupledSystemConfig struct {
	Samples    int     `json:"samples"`
	Epochs     int     `json:"epochs"`
	Coupling   float64 `json:"coupling"`
	NoiseSigma float64 `json:"noise_sigma"`
	Seed       int64   `json:"seed"`
}

// DefaultCoupledSystemConfig returns a medium-length single-epoch system
// with moderate coupling.
func DefaultCoupledSystemConfig() CoupledSystemConfig {
	return CoupledSystemConfig{
		Samples:    500,
		Epochs:     1,
		Coupling:   0.5,
		NoiseSigma: 1.0,
		Seed:       42,
	}
}

// SeriesGenerator produces recordings with known directed structure, so
// tests can assert which links an estimator should and should not find.
type SeriesGenerator struct {
	config CoupledSystemConfig
	noise  distuv.Normal
}

// NewSeriesGenerator creates a generator drawing innovations from a seeded
// normal distribution.
func NewSeriesGenerator(config CoupledSystemConfig) *SeriesGenerator {
	if config.Samples <= 0 {
		config.Samples = DefaultCoupledSystemConfig().Samples
	}
	if config.Epochs <= 0 {
		config.Epochs = 1
	}
	if config.NoiseSigma <= 0 {
		config.NoiseSigma = 1.0
	}
	return &SeriesGenerator{
		config: config,
		noise: distuv.Normal{
			Mu:    0,
			Sigma: config.NoiseSigma,
			Src:   exprand.NewSource(uint64(config.Seed)),
		},
	}
}

// CoupledRecording generates three channels: response follows driver at lag
// one with the configured coupling, bystander is independent noise.
func (g *SeriesGenerator) CoupledRecording() (*series.Recording, error) {
	epochs := make([]*series.Multi, g.config.Epochs)
	for e := range epochs {
		driver := g.drawSeries()
		bystander := g.drawSeries()
		response := g.drawSeries()
		for t := 1; t < len(response); t++ {
			response[t] += g.config.Coupling * driver[t-1]
		}
		m, err := series.FromColumns([][]float64{driver, response, bystander})
		if err != nil {
			return nil, err
		}
		epochs[e] = m
	}
	return series.NewRecording([]string{"driver", "response", "bystander"}, epochs)
}

// ChainRecording generates a lag-one chain a -> b -> c. Information flows
// from a to c only through b, so conditioning on b should remove the
// apparent a -> c link.
func (g *SeriesGenerator) ChainRecording() (*series.Recording, error) {
	epochs := make([]*series.Multi, g.config.Epochs)
	for e := range epochs {
		a := g.drawSeries()
		b := g.drawSeries()
		c := g.drawSeries()
		for t := 1; t < len(b); t++ {
			b[t] += g.config.Coupling * a[t-1]
		}
		for t := 1; t < len(c); t++ {
			c[t] += g.config.Coupling * b[t-1]
		}
		m, err := series.FromColumns([][]float64{a, b, c})
		if err != nil {
			return nil, err
		}
		epochs[e] = m
	}
	return series.NewRecording([]string{"a", "b", "c"}, epochs)
}

// IndependentRecording generates the named channels as mutually independent
// noise.
func (g *SeriesGenerator) IndependentRecording(names ...string) (*series.Recording, error) {
	epochs := make([]*series.Multi, g.config.Epochs)
	for e := range epochs {
		cols := make([][]float64, len(names))
		for i := range cols {
			cols[i] = g.drawSeries()
		}
		m, err := series.FromColumns(cols)
		if err != nil {
			return nil, err
		}
		epochs[e] = m
	}
	return series.NewRecording(names, epochs)
}

func (g *SeriesGenerator) drawSeries() []float64 {
	vals := make([]float64, g.config.Samples)
	for t := range vals {
		vals[t] = g.noise.Rand()
	}
	return vals
}
