package app_test

import (
	"context"
	"math"
	"testing"

	"infodyn/app"
	"infodyn/domain/core"
	"infodyn/domain/embedding"
	"infodyn/domain/measure"
	"infodyn/domain/run"
	"infodyn/domain/series"
	"infodyn/internal/testkit"
	"infodyn/ports"
)

func teParams(spec embedding.Spec) run.Parameters {
	return run.Parameters{
		Estimator: "gaussian",
		Measure:   measure.TransferEntropy,
		Embedding: spec,
	}
}

func TestAnalysisServiceStoresCompletedRun(t *testing.T) {
	kit := testkit.NewTestKit()
	svc := kit.AnalysisService()

	cfg := testkit.DefaultCoupledSystemConfig()
	cfg.Samples = 600
	rec, err := testkit.NewSeriesGenerator(cfg).CoupledRecording()
	if err != nil {
		t.Fatal(err)
	}

	record, err := svc.Run(context.Background(), rec, app.AnalysisRequest{
		Channels: run.ChannelSet{Source: "driver", Dest: "response"},
		Params:   teParams(embedding.Default(1)),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if record.Status != run.StatusCompleted {
		t.Fatalf("status = %s, want completed", record.Status)
	}
	if record.Result.AverageValue < 0.05 {
		t.Errorf("coupled TE = %v, want > 0.05", record.Result.AverageValue)
	}
	if record.Result.NumObservations != 599 {
		t.Errorf("observations = %d, want 599", record.Result.NumObservations)
	}
	if record.Fingerprint == "" {
		t.Error("record missing fingerprint")
	}

	stored, err := kit.LedgerAdapter().GetRun(context.Background(), record.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if stored.Result.AverageValue != record.Result.AverageValue {
		t.Error("stored record differs from returned record")
	}
}

func TestAnalysisServicePoolsEpochs(t *testing.T) {
	kit := testkit.NewTestKit()
	svc := kit.AnalysisService()

	cfg := testkit.DefaultCoupledSystemConfig()
	cfg.Samples = 300
	cfg.Epochs = 2
	rec, err := testkit.NewSeriesGenerator(cfg).CoupledRecording()
	if err != nil {
		t.Fatal(err)
	}

	record, err := svc.Run(context.Background(), rec, app.AnalysisRequest{
		Channels: run.ChannelSet{Source: "driver", Dest: "response"},
		Params:   teParams(embedding.Default(1)),
	})
	if err != nil {
		t.Fatal(err)
	}
	if record.Result.NumObservations != 2*299 {
		t.Errorf("pooled observations = %d, want 598", record.Result.NumObservations)
	}
}

func TestAnalysisServiceConditionalRemovesMediatedLink(t *testing.T) {
	kit := testkit.NewTestKit()
	svc := kit.AnalysisService()

	cfg := testkit.DefaultCoupledSystemConfig()
	cfg.Samples = 1500
	cfg.Coupling = 0.8
	rec, err := testkit.NewSeriesGenerator(cfg).ChainRecording()
	if err != nil {
		t.Fatal(err)
	}

	// The chain couples a to c at lag two, so the source past must reach
	// back two steps.
	spec := embedding.Default(1)
	spec.CausalDelay = 2

	direct, err := svc.Run(context.Background(), rec, app.AnalysisRequest{
		Channels: run.ChannelSet{Source: "a", Dest: "c"},
		Params:   teParams(spec),
	})
	if err != nil {
		t.Fatal(err)
	}
	if direct.Result.AverageValue < 0.05 {
		t.Fatalf("unconditioned chain TE = %v, want > 0.05", direct.Result.AverageValue)
	}

	cteParams := teParams(spec)
	cteParams.Measure = measure.ConditionalTransferEntropy
	conditioned, err := svc.Run(context.Background(), rec, app.AnalysisRequest{
		Channels: run.ChannelSet{Source: "a", Dest: "c", Conds: []string{"b"}},
		Params:   cteParams,
	})
	if err != nil {
		t.Fatal(err)
	}
	if conditioned.Status != run.StatusCompleted {
		t.Fatalf("conditioned run failed: %s", conditioned.Error)
	}
	if conditioned.Result.AverageValue > 0.02 {
		t.Errorf("conditioned chain TE = %v, want < 0.02", conditioned.Result.AverageValue)
	}
	if conditioned.Result.AverageValue > direct.Result.AverageValue/3 {
		t.Errorf("conditioning should collapse the mediated link: %v vs %v",
			conditioned.Result.AverageValue, direct.Result.AverageValue)
	}
}

func TestAnalysisServiceStoresFailedRunOnDegeneracy(t *testing.T) {
	kit := testkit.NewTestKit()
	svc := kit.AnalysisService()

	x := []float64{0.3, -1.2, 0.8, 0.1, -0.5, 1.4, -0.9, 0.6, -0.2, 0.7, 1.1, -0.4, 0.2, -1.0, 0.5, 0.9, -0.6, 0.4, -0.8, 1.2}
	y := []float64{1.0, 0.2, -0.7, 1.3, -0.1, 0.5, -1.1, 0.8, 0.3, -0.9, 0.6, -0.3, 1.0, -0.5, 0.1, -1.2, 0.7, 0.9, -0.4, 0.2}
	m, err := series.FromColumns([][]float64{x, y, y})
	if err != nil {
		t.Fatal(err)
	}
	rec, err := series.NewRecording([]string{"x", "y", "y_copy"}, []*series.Multi{m})
	if err != nil {
		t.Fatal(err)
	}

	params := teParams(embedding.Default(1))
	params.Measure = measure.ConditionalTransferEntropy
	record, err := svc.Run(context.Background(), rec, app.AnalysisRequest{
		Channels: run.ChannelSet{Source: "x", Dest: "y", Conds: []string{"y_copy"}},
		Params:   params,
	})
	if err != nil {
		t.Fatalf("degenerate run should store a failed record, got error: %v", err)
	}
	if record.Status != run.StatusFailed {
		t.Fatalf("status = %s, want failed", record.Status)
	}
	if record.Error == "" {
		t.Error("failed record missing error text")
	}

	stored, err := kit.LedgerAdapter().GetRun(context.Background(), record.ID)
	if err != nil {
		t.Fatalf("failed record not stored: %v", err)
	}
	if stored.Status != run.StatusFailed {
		t.Error("stored record lost failure status")
	}
}

func TestAnalysisServiceSignificanceReplaysWithSameSeed(t *testing.T) {
	cfg := testkit.DefaultCoupledSystemConfig()
	cfg.Samples = 300
	rec, err := testkit.NewSeriesGenerator(cfg).CoupledRecording()
	if err != nil {
		t.Fatal(err)
	}

	params := teParams(embedding.Default(1))
	params.Permutations = 50
	params.Seed = 7
	req := app.AnalysisRequest{
		Channels: run.ChannelSet{Source: "driver", Dest: "response"},
		Params:   params,
	}

	first, err := testkit.NewTestKit().AnalysisService().Run(context.Background(), rec, req)
	if err != nil {
		t.Fatal(err)
	}
	second, err := testkit.NewTestKit().AnalysisService().Run(context.Background(), rec, req)
	if err != nil {
		t.Fatal(err)
	}

	if first.Significance == nil || second.Significance == nil {
		t.Fatal("significance missing")
	}
	if first.Significance.PValue != second.Significance.PValue {
		t.Errorf("replay p-values differ: %v vs %v", first.Significance.PValue, second.Significance.PValue)
	}
	if first.Significance.Seed != second.Significance.Seed {
		t.Errorf("replay seeds differ: %d vs %d", first.Significance.Seed, second.Significance.Seed)
	}
	if first.Fingerprint != second.Fingerprint {
		t.Error("replays of identical configuration should share a fingerprint")
	}
}

func TestAnalysisServiceWithLocals(t *testing.T) {
	kit := testkit.NewTestKit()
	svc := kit.AnalysisService()

	cfg := testkit.DefaultCoupledSystemConfig()
	cfg.Samples = 200
	rec, err := testkit.NewSeriesGenerator(cfg).CoupledRecording()
	if err != nil {
		t.Fatal(err)
	}

	record, err := svc.Run(context.Background(), rec, app.AnalysisRequest{
		Channels:   run.ChannelSet{Source: "driver", Dest: "response"},
		Params:     teParams(embedding.Default(1)),
		WithLocals: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	locals := record.Result.LocalValues
	if len(locals) != record.Result.NumObservations {
		t.Fatalf("locals = %d values, want %d", len(locals), record.Result.NumObservations)
	}
	var sum float64
	for _, v := range locals {
		sum += v
	}
	if math.Abs(sum/float64(len(locals))-record.Result.AverageValue) > 1e-10 {
		t.Error("stored locals do not average to the stored estimate")
	}
}

func TestAnalysisServiceMutualInformation(t *testing.T) {
	kit := testkit.NewTestKit()
	svc := kit.AnalysisService()

	cfg := testkit.DefaultCoupledSystemConfig()
	cfg.Samples = 1000
	gen := testkit.NewSeriesGenerator(cfg)
	base, err := gen.IndependentRecording("x", "noise")
	if err != nil {
		t.Fatal(err)
	}
	// y = x + noise gives correlation 1/sqrt(2) and MI of 0.5*ln(2).
	x := base.Epochs[0].Column(0)
	noise := base.Epochs[0].Column(1)
	y := make([]float64, len(x))
	for i := range y {
		y[i] = x[i] + noise[i]
	}
	m, err := series.FromColumns([][]float64{x, y})
	if err != nil {
		t.Fatal(err)
	}
	rec, err := series.NewRecording([]string{"x", "y"}, []*series.Multi{m})
	if err != nil {
		t.Fatal(err)
	}

	params := teParams(embedding.Default(1))
	params.Measure = measure.MutualInformation
	record, err := svc.Run(context.Background(), rec, app.AnalysisRequest{
		Channels: run.ChannelSet{Source: "x", Dest: "y"},
		Params:   params,
	})
	if err != nil {
		t.Fatal(err)
	}
	if record.Result.NumObservations != 1000 {
		t.Errorf("MI observations = %d, want 1000", record.Result.NumObservations)
	}
	want := 0.5 * math.Ln2
	if math.Abs(record.Result.AverageValue-want) > 0.1 {
		t.Errorf("MI = %v, want about %.4f", record.Result.AverageValue, want)
	}
}

func TestAnalysisServiceRejectsUnknownChannel(t *testing.T) {
	kit := testkit.NewTestKit()
	svc := kit.AnalysisService()

	cfg := testkit.DefaultCoupledSystemConfig()
	cfg.Samples = 50
	rec, err := testkit.NewSeriesGenerator(cfg).CoupledRecording()
	if err != nil {
		t.Fatal(err)
	}

	_, err = svc.Run(context.Background(), rec, app.AnalysisRequest{
		Channels: run.ChannelSet{Source: "driver", Dest: "absent"},
		Params:   teParams(embedding.Default(1)),
	})
	if !core.IsNotFoundError(err) {
		t.Fatalf("unknown channel: got %v, want not-found error", err)
	}

	runs, err := kit.LedgerAdapter().ListRuns(context.Background(), ports.RunFilters{})
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 0 {
		t.Errorf("rejected request stored %d runs, want 0", len(runs))
	}
}
