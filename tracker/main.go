package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bench-track/bench-track/tracker/analysis"
	"github.com/bench-track/bench-track/tracker/api"
	"github.com/bench-track/bench-track/tracker/collector"
	"github.com/bench-track/bench-track/tracker/config"
	"github.com/bench-track/bench-track/tracker/exporter"
	"github.com/bench-track/bench-track/tracker/parser"
	"github.com/bench-track/bench-track/tracker/storage"
	"github.com/bench-track/bench-track/tracker/types"
)

// Exit codes: 0 success / no regressions, 1 regressions detected, 2 malformed
// input or operational failure.
const (
	exitOK          = 0
	exitRegressions = 1
	exitFailure     = 2
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		usage()
		return exitFailure
	}

	command := args[0]
	args = args[1:]

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	app := &app{log: log}

	var err error
	switch command {
	case "import":
		err = app.cmdImport(args)
	case "set-baseline":
		err = app.cmdSetBaseline(args)
	case "detect":
		var fired bool
		fired, err = app.cmdDetect(args)
		if err == nil && fired {
			return exitRegressions
		}
	case "trend":
		err = app.cmdTrend(args)
	case "compare":
		err = app.cmdCompare(args)
	case "alerts":
		err = app.cmdAlerts(args)
	case "resolve":
		err = app.cmdResolve(args)
	case "prune":
		err = app.cmdPrune(args)
	case "serve":
		err = app.cmdServe(args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", command)
		usage()
		return exitFailure
	}

	if err != nil {
		log.WithError(err).Error("Command failed")
		return exitFailure
	}
	return exitOK
}

func usage() {
	fmt.Fprint(os.Stderr, `Usage: tracker <command> [flags]

Commands:
  import        Import benchmark results from a JSON or criterion output file
  set-baseline  Set the active baseline for a component/benchmark pair
  detect        Ingest results and detect regressions against baselines
  trend         Report trend statistics for one component
  compare       Compare mean performance between two versions
  alerts        List regression alerts
  resolve       Mark an alert resolved
  prune         Delete measurements older than a retention window
  serve         Run the HTTP API server

Run "tracker <command> -h" for command flags.
`)
}

// app carries flag state shared by every subcommand.
type app struct {
	log *logrus.Logger
}

// commonFlags registers the flags every subcommand accepts.
func (a *app) commonFlags(fs *flag.FlagSet) (configPath, dbPath *string, verbose *bool) {
	configPath = fs.String("config", "", "Path to YAML configuration file")
	dbPath = fs.String("db", "", "Override the database file path")
	verbose = fs.Bool("v", false, "Enable debug logging")
	return
}

// setup loads config and opens the store after a subcommand's flags parsed.
func (a *app) setup(configPath, dbPath string, verbose bool) (*config.Config, *storage.Store, error) {
	if verbose {
		a.log.SetLevel(logrus.DebugLevel)
	}

	cfg, err := config.Load(configPath, a.log)
	if err != nil {
		return nil, nil, err
	}
	if dbPath != "" {
		cfg.Database.Driver = "sqlite3"
		cfg.Database.Path = dbPath
	}

	store, err := storage.Open(&cfg.Database, a.log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, store, nil
}

// loadRecords reads records from a result file, using the criterion text
// parser when -component is given and JSON otherwise.
func loadRecords(path, component, version string) ([]types.Record, error) {
	if component != "" {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open benchmark output: %w", err)
		}
		defer file.Close()
		return parser.ParseBenchmarkOutput(file, component, version)
	}
	return parser.LoadResultsFile(path)
}

func (a *app) cmdImport(args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	configPath, dbPath, verbose := a.commonFlags(fs)
	component := fs.String("component", "", "Parse the file as criterion text output for this component")
	version := fs.String("version", "", "Version identifier to tag parsed text output with")
	withEnv := fs.Bool("env", false, "Attach host environment metadata to imported records")
	fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("import requires exactly one result file argument")
	}

	records, err := loadRecords(fs.Arg(0), *component, *version)
	if err != nil {
		return err
	}

	if *withEnv {
		env := collector.EnvironmentMetadata()
		for i := range records {
			records[i].Metadata = collector.Merge(records[i].Metadata, env)
		}
	}

	_, store, err := a.setup(*configPath, *dbPath, *verbose)
	if err != nil {
		return err
	}
	defer store.Close()

	accepted, rejected, err := store.InsertRecords(context.Background(), records)
	if err != nil {
		return err
	}

	fmt.Printf("Imported %d records (%d rejected)\n", accepted, rejected)
	return nil
}

func (a *app) cmdSetBaseline(args []string) error {
	fs := flag.NewFlagSet("set-baseline", flag.ExitOnError)
	configPath, dbPath, verbose := a.commonFlags(fs)
	component := fs.String("component", "", "Component name")
	benchmark := fs.String("benchmark", "", "Benchmark name")
	duration := fs.Int64("duration", 0, "Baseline duration in nanoseconds")
	version := fs.String("version", "", "Version identifier, e.g. a commit hash")
	fs.Parse(args)

	_, store, err := a.setup(*configPath, *dbPath, *verbose)
	if err != nil {
		return err
	}
	defer store.Close()

	manager := analysis.NewBaselineManager(store, a.log)
	if err := manager.Set(context.Background(), *component, *benchmark, *duration, *version); err != nil {
		return err
	}

	fmt.Printf("Baseline set: %s/%s = %dns\n", *component, *benchmark, *duration)
	return nil
}

func (a *app) cmdDetect(args []string) (bool, error) {
	fs := flag.NewFlagSet("detect", flag.ExitOnError)
	configPath, dbPath, verbose := a.commonFlags(fs)
	component := fs.String("component", "", "Parse the file as criterion text output for this component")
	version := fs.String("version", "", "Version identifier to tag parsed text output with")
	threshold := fs.Float64("threshold", 0, "Regression threshold percent (overrides config)")
	fs.Parse(args)

	if fs.NArg() != 1 {
		return false, fmt.Errorf("detect requires exactly one result file argument")
	}

	records, err := loadRecords(fs.Arg(0), *component, *version)
	if err != nil {
		return false, err
	}

	cfg, store, err := a.setup(*configPath, *dbPath, *verbose)
	if err != nil {
		return false, err
	}
	defer store.Close()

	if *threshold > 0 {
		cfg.Detection.ThresholdPercent = *threshold
	}

	ctx := context.Background()
	accepted, rejected, err := store.InsertRecords(ctx, records)
	if err != nil {
		return false, err
	}

	detector := analysis.NewRegressionDetector(store, cfg.Detection, a.log)
	summary, err := detector.Detect(ctx, records)
	if err != nil {
		return false, err
	}

	fmt.Printf("Processed %d records (%d rejected, %d without baseline)\n", accepted, rejected, summary.Skipped)
	if len(summary.Alerts) == 0 {
		fmt.Println("No regressions detected")
		return false, nil
	}

	fmt.Printf("Detected %d regressions:\n", len(summary.Alerts))
	printAlertsBySeverity(summary.Alerts)
	return true, nil
}

// printAlertsBySeverity groups alerts worst severity first, preserving the
// worst-change-first order inside each group.
func printAlertsBySeverity(alerts []*types.RegressionAlert) {
	for _, severity := range types.SeverityOrder {
		var header bool
		for _, alert := range alerts {
			if alert.Severity != severity {
				continue
			}
			if !header {
				fmt.Printf("\n%s:\n", severity)
				header = true
			}
			fmt.Printf("  - %s/%s: +%.1f%% (%dns -> %dns)\n",
				alert.ComponentName, alert.BenchmarkName, alert.ChangePercent,
				alert.BaselineDurationNs, alert.CurrentDurationNs)
		}
	}
}

func (a *app) cmdTrend(args []string) error {
	fs := flag.NewFlagSet("trend", flag.ExitOnError)
	configPath, dbPath, verbose := a.commonFlags(fs)
	component := fs.String("component", "", "Component name")
	days := fs.Int("days", 0, "Analysis window in days (default from config)")
	output := fs.String("output", "", "Write the report as JSON to this file")
	fs.Parse(args)

	if *component == "" {
		return fmt.Errorf("trend requires -component")
	}

	cfg, store, err := a.setup(*configPath, *dbPath, *verbose)
	if err != nil {
		return err
	}
	defer store.Close()

	analyzer := analysis.NewTrendAnalyzer(store, cfg.Analysis, a.log)
	report, err := analyzer.Trends(context.Background(), *component, *days)
	if err != nil {
		return err
	}

	if *output != "" {
		if err := exporter.WriteJSON(*output, report); err != nil {
			return err
		}
		fmt.Printf("Trend report written to %s\n", *output)
		return nil
	}

	fmt.Printf("Trend report for %s (last %d days): %d benchmarks, %d runs\n",
		report.ComponentName, report.PeriodDays, report.TotalBenchmarks, report.TotalRuns)
	for name, stats := range report.Benchmarks {
		line := fmt.Sprintf("  %s: n=%d mean=%.0fns median=%.0fns stddev=%.0fns",
			name, stats.Count, stats.MeanNs, stats.MedianNs, stats.StdDevNs)
		if stats.HasTrend {
			direction := "stable"
			if stats.IsDegrading {
				direction = "degrading"
			} else if stats.IsImproving {
				direction = "improving"
			}
			line += fmt.Sprintf(" trend=%s (slope=%.2f, p=%.3f)", direction, stats.Slope, stats.PValue)
		}
		fmt.Println(line)
	}
	return nil
}

func (a *app) cmdCompare(args []string) error {
	fs := flag.NewFlagSet("compare", flag.ExitOnError)
	configPath, dbPath, verbose := a.commonFlags(fs)
	base := fs.String("base-version", "", "Base version identifier")
	current := fs.String("current-version", "", "Current version identifier")
	output := fs.String("output", "", "Write the report as JSON to this file")
	fs.Parse(args)

	if *base == "" || *current == "" {
		return fmt.Errorf("compare requires -base-version and -current-version")
	}

	cfg, store, err := a.setup(*configPath, *dbPath, *verbose)
	if err != nil {
		return err
	}
	defer store.Close()

	analyzer := analysis.NewComparisonAnalyzer(store, cfg.Analysis, a.log)
	report, err := analyzer.Compare(context.Background(), *base, *current)
	if err != nil {
		return err
	}

	if *output != "" {
		if err := exporter.WriteJSON(*output, report); err != nil {
			return err
		}
		fmt.Printf("Comparison report written to %s\n", *output)
		return nil
	}

	fmt.Printf("Comparison %s vs %s: %d pairs (%d improvements, %d regressions, %d stable)\n",
		report.BaseVersion, report.CurrentVersion, report.TotalComparisons,
		report.Improvements, report.Regressions, report.Stable)
	for _, entry := range report.Entries {
		fmt.Printf("  %-12s %s/%s: %+.1f%% (%.0fns -> %.0fns)\n",
			entry.Status, entry.ComponentName, entry.BenchmarkName,
			entry.ChangePercent, entry.BaseMeanNs, entry.CurrentMeanNs)
	}
	return nil
}

func (a *app) cmdAlerts(args []string) error {
	fs := flag.NewFlagSet("alerts", flag.ExitOnError)
	configPath, dbPath, verbose := a.commonFlags(fs)
	unresolved := fs.Bool("unresolved", false, "Show only unresolved alerts")
	limit := fs.Int("limit", 50, "Maximum number of alerts to list")
	fs.Parse(args)

	_, store, err := a.setup(*configPath, *dbPath, *verbose)
	if err != nil {
		return err
	}
	defer store.Close()

	alerts, err := store.ListAlerts(context.Background(), *unresolved, *limit)
	if err != nil {
		return err
	}

	if len(alerts) == 0 {
		fmt.Println("No alerts")
		return nil
	}
	for _, alert := range alerts {
		state := " "
		if alert.Resolved {
			state = "resolved"
		}
		fmt.Printf("%s  %-8s %s/%s +%.1f%% %s %s\n",
			alert.Timestamp.Format(time.RFC3339), alert.Severity,
			alert.ComponentName, alert.BenchmarkName, alert.ChangePercent,
			alert.ID, state)
	}
	return nil
}

func (a *app) cmdResolve(args []string) error {
	fs := flag.NewFlagSet("resolve", flag.ExitOnError)
	configPath, dbPath, verbose := a.commonFlags(fs)
	fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("resolve requires exactly one alert id argument")
	}

	_, store, err := a.setup(*configPath, *dbPath, *verbose)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.ResolveAlert(context.Background(), fs.Arg(0)); err != nil {
		var notFound *types.NotFoundError
		if errors.As(err, &notFound) {
			return fmt.Errorf("no alert with id %s", fs.Arg(0))
		}
		return err
	}
	fmt.Printf("Alert %s resolved\n", fs.Arg(0))
	return nil
}

func (a *app) cmdPrune(args []string) error {
	fs := flag.NewFlagSet("prune", flag.ExitOnError)
	configPath, dbPath, verbose := a.commonFlags(fs)
	days := fs.Int("days", 90, "Delete measurements older than this many days")
	fs.Parse(args)

	if *days <= 0 {
		return fmt.Errorf("prune requires a positive -days")
	}

	_, store, err := a.setup(*configPath, *dbPath, *verbose)
	if err != nil {
		return err
	}
	defer store.Close()

	count, err := store.PruneRecords(context.Background(), time.Now().AddDate(0, 0, -*days))
	if err != nil {
		return err
	}
	fmt.Printf("Deleted %d measurements older than %d days\n", count, *days)
	return nil
}

func (a *app) cmdServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath, dbPath, verbose := a.commonFlags(fs)
	addr := fs.String("addr", "", "Listen address (overrides config)")
	fs.Parse(args)

	cfg, store, err := a.setup(*configPath, *dbPath, *verbose)
	if err != nil {
		return err
	}
	defer store.Close()

	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	server := api.NewServer(
		cfg.Server.Addr,
		store,
		analysis.NewBaselineManager(store, a.log),
		analysis.NewRegressionDetector(store, cfg.Detection, a.log),
		analysis.NewTrendAnalyzer(store, cfg.Analysis, a.log),
		analysis.NewComparisonAnalyzer(store, cfg.Analysis, a.log),
		a.log,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.Start(ctx)
}
