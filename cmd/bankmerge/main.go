// Command bankmerge merges bank exports into one reconciled ledger.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"bankmerge/internal/backend"
	"bankmerge/internal/cli"
	"bankmerge/internal/config"
	"bankmerge/internal/core"
	"bankmerge/internal/ingest"
	"bankmerge/internal/log"
	"bankmerge/internal/normalize"
	"bankmerge/internal/pipeline"
	"bankmerge/internal/services"
)

const (
	exitOK            = 0
	exitFailure       = 1
	exitAllSourcesBad = 2 // also used when no source had any input
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("bankmerge", flag.ContinueOnError)
	input := fs.String("input", "", "input directory with one sub-directory per bank (overrides INPUT_DIR)")
	output := fs.String("output", "", "output directory for CSV reports (overrides OUTPUT_DIR)")
	backends := fs.String("backends", "", "comma separated output backends: csv,sqlite,sheets,memory (overrides OUTPUT_BACKENDS)")
	dryRun := fs.Bool("dry-run", false, "run the merge without writing output or publishing")
	if err := fs.Parse(args); err != nil {
		return exitFailure
	}

	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig(func(c *config.Config) {
		if *input != "" {
			c.InputDir = *input
		}
		if *output != "" {
			c.OutputDir = *output
		}
		if *backends != "" {
			c.OutputBackends = config.ParseBackends(*backends)
		}
		if *dryRun {
			c.OutputBackends = []string{config.BackendMemory}
			c.AMQPURL = ""
		}
	})
	if err != nil {
		cli.SetupLogger(os.Getenv("LOG_LEVEL")).Error("Configuration validation failed", log.FieldError, err)
		return exitFailure
	}
	logger := cli.SetupLogger(cfg.LogLevel)

	logger.Info("Starting bankmerge",
		log.FieldOperation, log.OpStartup,
		"input", cfg.InputDir,
		"backends", cfg.OutputBackends,
		"dry_run", *dryRun)

	ctx, stop := cli.SignalContext()
	defer stop()

	eras, err := core.ParseEraTable(cfg.EraTable)
	if err != nil {
		logger.Error("Invalid era table", log.FieldError, err)
		return exitFailure
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		return exitFailure
	}
	factory := backend.NewFactory(logger)
	sinks, err := factory.CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize output backends", log.FieldError, err)
		return exitFailure
	}
	defer func() {
		if err := sinks.Cleanup(); err != nil {
			logger.Error("Failed to release output backends", log.FieldError, err)
		}
	}()

	var publisher services.Publisher
	if client := factory.CreatePublisher(backendCfg); client != nil {
		publisher = client
	}

	p := pipeline.New(
		normalize.DefaultRegistry(eras, logger),
		pipeline.Options{Parallel: cfg.ParallelNormalize},
		logger)
	svc := services.NewRunService(p, sinks.Sink, publisher, logger)
	defer svc.Close()

	out, err := svc.RunFromDir(ctx, ingest.NewReader(cfg.InputDir, logger))
	if errors.Is(err, services.ErrNoInput) {
		logger.Error("No source exports found, no ledger produced",
			"input", cfg.InputDir,
			"expected", "<input>/{smbc,mufg,shinsei}/*.csv")
		return exitAllSourcesBad
	}
	if errors.Is(err, services.ErrAllSourcesFailed) {
		printSummary(out)
		logger.Error("Every source failed, no ledger produced", log.FieldRunID, out.RunID)
		return exitAllSourcesBad
	}
	if err != nil {
		logger.Error("Run failed", log.FieldError, err)
		return exitFailure
	}

	printSummary(out)
	logger.Info("Run completed",
		log.FieldOperation, log.OpShutdown,
		log.FieldRunID, out.RunID,
		log.FieldEntries, len(out.Result.Ledger))
	return exitOK
}

func printSummary(out services.Outcome) {
	res := out.Result
	fmt.Printf("run %s: %d entries, %d months, %d mismatches, %d duplicates\n",
		out.RunID, len(res.Ledger), len(res.Monthly),
		res.Count(core.KindReconciliationMismatch), res.Count(core.KindDuplicateRecord))
	for _, d := range res.Diagnostics {
		if d.Kind == core.KindSourceFailed {
			fmt.Printf("  %s failed: %s\n", d.Source, d.Message)
		}
	}
}
