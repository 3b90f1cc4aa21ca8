package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"infodyn/adapters/excel"
	"infodyn/adapters/memory"
	"infodyn/adapters/postgres"
	"infodyn/adapters/report"
	"infodyn/adapters/rng"
	"infodyn/app"
	"infodyn/domain/core"
	"infodyn/domain/embedding"
	"infodyn/domain/measure"
	"infodyn/domain/run"
	"infodyn/domain/series"
	"infodyn/internal"
	"infodyn/internal/config"
	"infodyn/internal/errors"
	"infodyn/ports"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	_ "github.com/lib/pq"
)

func main() {
	// Load environment variables from .env when present
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "infodyn",
		Short: "Information dynamics CLI for transfer entropy and mutual information",
	}

	rootCmd.AddCommand(
		newAnalyzeCmd(),
		newSweepCmd(),
		newReportCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// estimatorFlags is the shared flag set of analyze and sweep.
type estimatorFlags struct {
	dataFile      string
	sheet         string
	measureName   string
	history       int
	delay         int
	sourceHistory int
	sourceDelay   int
	causalDelay   int
	logBase       float64
	normalise     bool
	permutations  int
	seed          int64
	asJSON        bool
	saveReport    bool
}

func (f *estimatorFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.dataFile, "data", "", "CSV or XLSX data file (defaults to DATA_FILE)")
	cmd.Flags().StringVar(&f.sheet, "sheet", "", "Workbook sheet to read (XLSX only)")
	cmd.Flags().IntVarP(&f.history, "history", "k", 1, "Destination embedding length")
	cmd.Flags().IntVar(&f.delay, "delay", 1, "Destination embedding delay")
	cmd.Flags().IntVarP(&f.sourceHistory, "source-history", "l", 1, "Source embedding length")
	cmd.Flags().IntVar(&f.sourceDelay, "source-delay", 1, "Source embedding delay")
	cmd.Flags().IntVarP(&f.causalDelay, "causal-delay", "u", 1, "Source-destination lag")
	cmd.Flags().Float64Var(&f.logBase, "log-base", 0, "Logarithm base: 0 for nats, 2 for bits")
	cmd.Flags().BoolVar(&f.normalise, "normalise", true, "Normalise each series to zero mean, unit variance")
	cmd.Flags().IntVarP(&f.permutations, "permutations", "p", 0, "Surrogate count for the significance test; 0 skips it")
	cmd.Flags().Int64Var(&f.seed, "seed", 0, "Master seed for deterministic surrogates; 0 seeds from the clock")
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "Print the stored record as JSON")
	cmd.Flags().BoolVar(&f.saveReport, "save-report", false, "Write a Markdown report to REPORT_DIR")
}

// params assembles run parameters from the flags. The measure defaults to
// conditional transfer entropy when conditioning channels are named.
func (f *estimatorFlags) params(conds int) (run.Parameters, error) {
	name := f.measureName
	if name == "" {
		name = string(measure.TransferEntropy)
		if conds > 0 {
			name = string(measure.ConditionalTransferEntropy)
		}
	}
	m, err := measure.ParseMeasure(name)
	if err != nil {
		return run.Parameters{}, err
	}
	return run.Parameters{
		Estimator: "gaussian",
		Measure:   m,
		Embedding: embedding.Spec{
			EmbeddingDimension:       f.history,
			Delay:                    f.delay,
			SourceEmbeddingDimension: f.sourceHistory,
			SourceDelay:              f.sourceDelay,
			CausalDelay:              f.causalDelay,
		},
		Normalise:    f.normalise,
		LogBase:      f.logBase,
		Permutations: f.permutations,
		Seed:         f.seed,
	}, nil
}

func newAnalyzeCmd() *cobra.Command {
	var flags estimatorFlags
	var conds []string
	var withLocals bool

	cmd := &cobra.Command{
		Use:   "analyze [source] [dest]",
		Short: "Estimate an information measure for one directed channel pair",
		Long: `Estimate transfer entropy, conditional transfer entropy, or mutual
information from a source channel to a destination channel.

The measure defaults to transfer_entropy, or conditional_transfer_entropy
when --cond names conditioning channels. Every run is stored in the ledger
with a determinism fingerprint covering the configuration and input data.

Example: infodyn analyze heart breath --data sfi.csv --cond chest -p 500 --seed 42`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			channels := run.ChannelSet{Source: args[0], Dest: args[1], Conds: conds}
			return runAnalyze(cmd.Context(), flags, channels, withLocals)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&flags.measureName, "measure", "m", "", "Measure: transfer_entropy, conditional_transfer_entropy, mutual_information")
	cmd.Flags().StringSliceVar(&conds, "cond", nil, "Conditioning channel names")
	cmd.Flags().BoolVar(&withLocals, "locals", false, "Store per-observation local values")

	return cmd
}

func newSweepCmd() *cobra.Command {
	var flags estimatorFlags
	var concurrency int

	cmd := &cobra.Command{
		Use:   "sweep [channels...]",
		Short: "Estimate a measure over every ordered channel pair",
		Long: `Run the measure over every ordered pair of channels and print the
result matrix. With no arguments every channel of the recording is swept;
naming channels restricts the sweep to that subset.

For conditional transfer entropy each pair is conditioned on all other
swept channels, which separates direct couplings from mediated ones.

Example: infodyn sweep --data sfi.csv -m conditional_transfer_entropy -p 200 --seed 42`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweepCmd(cmd.Context(), flags, args, concurrency)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&flags.measureName, "measure", "m", string(measure.TransferEntropy), "Measure: transfer_entropy, conditional_transfer_entropy, mutual_information")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Concurrent pair estimations; 0 uses one per CPU")

	return cmd
}

func newReportCmd() *cobra.Command {
	var format string
	var save bool

	cmd := &cobra.Command{
		Use:   "report [run-or-sweep-id]",
		Short: "Render a stored run or sweep as Markdown or HTML",
		Long: `Fetch a record from the ledger by ID and render it. Requires the
postgres ledger backend, since the in-memory ledger does not outlive the
process that wrote it.

Example: infodyn report 7f3a... --format html --save`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd.Context(), args[0], format, save)
		},
	}

	cmd.Flags().StringVar(&format, "format", "markdown", "Output format: markdown or html")
	cmd.Flags().BoolVar(&save, "save", false, "Write the report to REPORT_DIR instead of stdout")

	return cmd
}

func runAnalyze(ctx context.Context, flags estimatorFlags, channels run.ChannelSet, withLocals bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	rec, err := loadRecording(ctx, cfg, flags.dataFile, flags.sheet)
	if err != nil {
		return err
	}

	params, err := flags.params(len(channels.Conds))
	if err != nil {
		return err
	}

	ledger, closeLedger, err := openLedger(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeLedger()

	svc := app.NewAnalysisService(ledger, rng.New(), internal.NewDefaultLogger())
	record, err := svc.Run(ctx, rec, app.AnalysisRequest{
		Channels:   channels,
		Params:     params,
		Workers:    cfg.Analysis.Workers,
		WithLocals: withLocals,
	})
	if err != nil {
		return err
	}

	if err := printRecord(record, flags.asJSON); err != nil {
		return err
	}
	if flags.saveReport {
		path, err := report.NewStorage(cfg.Paths.ReportDir).SaveRun(record)
		if err != nil {
			return err
		}
		fmt.Printf("\nReport saved to %s\n", path)
	}
	return nil
}

func runSweepCmd(ctx context.Context, flags estimatorFlags, channels []string, concurrency int) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	rec, err := loadRecording(ctx, cfg, flags.dataFile, flags.sheet)
	if err != nil {
		return err
	}

	params, err := flags.params(0)
	if err != nil {
		return err
	}

	ledger, closeLedger, err := openLedger(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeLedger()

	svc := app.NewSweepService(ledger, rng.New(), internal.NewDefaultLogger())
	sweep, err := svc.Run(ctx, rec, app.SweepRequest{
		Params:      params,
		Channels:    channels,
		Concurrency: concurrency,
	})
	if err != nil {
		return err
	}

	if err := printSweep(sweep, flags.asJSON); err != nil {
		return err
	}
	if flags.saveReport {
		path, err := report.NewStorage(cfg.Paths.ReportDir).SaveSweep(sweep)
		if err != nil {
			return err
		}
		fmt.Printf("\nReport saved to %s\n", path)
	}
	return nil
}

func runReport(ctx context.Context, id, format string, save bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ledger, closeLedger, err := openLedger(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeLedger()

	md, saveMd, err := renderByID(ctx, ledger, cfg, id)
	if err != nil {
		return err
	}

	if save {
		path, err := saveMd()
		if err != nil {
			return err
		}
		fmt.Printf("Report saved to %s\n", path)
		return nil
	}

	switch format {
	case "markdown":
		fmt.Print(md)
	case "html":
		os.Stdout.Write(report.ToHTML(md))
	default:
		return fmt.Errorf("unknown format %q (use markdown or html)", format)
	}
	return nil
}

// renderByID resolves an ID against runs first, then sweeps.
func renderByID(ctx context.Context, ledger ports.LedgerPort, cfg *config.Config, id string) (string, func() (string, error), error) {
	storage := report.NewStorage(cfg.Paths.ReportDir)

	if rec, err := ledger.GetRun(ctx, core.RunID(id)); err == nil {
		return report.RunMarkdown(rec), func() (string, error) { return storage.SaveRun(rec) }, nil
	} else if !core.IsNotFoundError(err) {
		return "", nil, err
	}

	sw, err := ledger.GetSweep(ctx, core.SweepID(id))
	if err != nil {
		return "", nil, err
	}
	return report.SweepMarkdown(sw), func() (string, error) { return storage.SaveSweep(sw) }, nil
}

// loadRecording reads the CSV or XLSX file named by the flag or DATA_FILE.
func loadRecording(ctx context.Context, cfg *config.Config, dataFile, sheet string) (*series.Recording, error) {
	if dataFile == "" {
		dataFile = cfg.Paths.DataFile
	}
	if dataFile == "" {
		return nil, errors.ConfigInvalid("no data file: pass --data or set DATA_FILE")
	}
	reader := excel.NewDataReader(dataFile)
	if sheet != "" {
		reader = reader.WithSheet(sheet)
	}
	rec, err := reader.Load(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load recording")
	}
	fmt.Printf("Loaded %s: %d channels, %d epochs\n", reader.Describe(), len(rec.Names), len(rec.Epochs))
	return rec, nil
}

// openLedger selects the run store configured by LEDGER_BACKEND.
func openLedger(ctx context.Context, cfg *config.Config) (ports.LedgerPort, func(), error) {
	if cfg.Ledger.Backend != "postgres" {
		return memory.NewLedger(), func() {}, nil
	}
	db, err := sqlx.Connect("postgres", cfg.Ledger.URL)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to connect to postgres ledger")
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		db.Close()
		return nil, nil, err
	}
	return postgres.NewRunRepository(db), func() { db.Close() }, nil
}

func printRecord(rec *run.Record, asJSON bool) error {
	if asJSON {
		return printJSON(rec)
	}

	fmt.Printf("\n=== ANALYSIS RESULT ===\n")
	fmt.Printf("Run ID: %s\n", rec.ID)
	fmt.Printf("Channels: %s\n", rec.Channels.Key())
	fmt.Printf("Measure: %s\n", rec.Params.Measure)
	fmt.Printf("Status: %s\n", rec.Status)

	if rec.Status == run.StatusFailed {
		fmt.Printf("Error: %s\n", rec.Error)
		return nil
	}

	fmt.Printf("Average: %.6f %s over %d observations\n",
		rec.Result.AverageValue, rec.Result.Units, rec.Result.NumObservations)
	if len(rec.Result.LocalValues) > 0 {
		fmt.Printf("Local Values: %d stored\n", len(rec.Result.LocalValues))
	}

	if sig := rec.Significance; sig != nil {
		fmt.Printf("\n=== SIGNIFICANCE ===\n")
		fmt.Printf("P-Value: %.4f (%d surrogates)\n", sig.PValue, sig.Permutations)
		fmt.Printf("Z-Score: %.3f\n", sig.ZScore)
		fmt.Printf("Null: mean %.6f, sd %.6f, p95 %.6f\n", sig.Null.Mean, sig.Null.StdDev, sig.Null.Percentile95)
		fmt.Printf("Surrogate Seed: %d\n", sig.Seed)
	}

	fmt.Printf("\n=== FINGERPRINT ===\n")
	fmt.Printf("Data Hash: %s\n", rec.DataHash)
	fmt.Printf("Fingerprint: %s\n", rec.Fingerprint)
	fmt.Printf("Runtime: %d ms\n", rec.RuntimeMs)
	return nil
}

func printSweep(sw *run.SweepRecord, asJSON bool) error {
	if asJSON {
		return printJSON(sw)
	}

	fmt.Printf("\n=== SWEEP RESULT ===\n")
	fmt.Printf("Sweep ID: %s\n", sw.ID)
	fmt.Printf("Measure: %s\n", sw.Params.Measure)
	fmt.Printf("Channels: %s\n", strings.Join(sw.Channels, ", "))
	fmt.Printf("Pairs: %d\n", len(sw.Pairs))
	fmt.Printf("Runtime: %d ms\n", sw.RuntimeMs)

	width := 12
	for _, name := range sw.Channels {
		if len(name)+2 > width {
			width = len(name) + 2
		}
	}

	fmt.Printf("\n=== MATRIX (source rows, dest columns) ===\n")
	matrix := sw.Matrix()
	fmt.Printf("%*s", width, "")
	for _, name := range sw.Channels {
		fmt.Printf("%*s", width, name)
	}
	fmt.Println()
	for i, src := range sw.Channels {
		fmt.Printf("%*s", width, src)
		for j := range sw.Channels {
			if i == j {
				fmt.Printf("%*s", width, "-")
			} else {
				fmt.Printf("%*.4f", width, matrix[i][j])
			}
		}
		fmt.Println()
	}

	failed := 0
	for _, p := range sw.Pairs {
		if p.Error != "" {
			failed++
		}
	}
	if failed > 0 {
		fmt.Printf("\n=== FAILED PAIRS ===\n")
		for _, p := range sw.Pairs {
			if p.Error != "" {
				fmt.Printf("%s -> %s: %s\n", p.Source, p.Dest, p.Error)
			}
		}
	}

	if sw.Params.Permutations > 0 {
		fmt.Printf("\n=== SIGNIFICANT PAIRS (p < 0.05) ===\n")
		found := 0
		for _, p := range sw.Pairs {
			if p.Error == "" && p.Significance != nil && p.Significance.PValue < 0.05 {
				fmt.Printf("%s -> %s: %.6f (p = %.4f)\n", p.Source, p.Dest, p.Value, p.Significance.PValue)
				found++
			}
		}
		if found == 0 {
			fmt.Println("none")
		}
	}
	return nil
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
