// Command export builds the snapshot of one lifecycle model, optionally
// solves it, and writes snapshot.json and result.csv to a directory.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/OFFIS-RIT/lcaexport/backend/internal/config"
	"github.com/OFFIS-RIT/lcaexport/backend/internal/export"
	"github.com/OFFIS-RIT/lcaexport/backend/internal/util"
	"github.com/OFFIS-RIT/lcaexport/backend/pkg/logger"
)

type options struct {
	ModelID  string
	Version  string
	Commit   string
	Solve    bool
	OutDir   string
	Fixtures string
}

var errUsage = errors.New("usage")

func parseArgs(args []string, output io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Usage = func() {
		fmt.Fprint(output, "Usage:\n  export -model <id> [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	fs.StringVar(&opts.ModelID, "model", "", "Lifecycle model id.")
	fs.StringVar(&opts.Version, "version", "", "Model version. Empty selects the latest.")
	fs.StringVar(&opts.Commit, "commit", "", "Commit recorded in the snapshot.")
	fs.BoolVar(&opts.Solve, "solve", false, "Run the LCIA solver and write result.csv.")
	fs.StringVar(&opts.OutDir, "out", ".", "Output directory.")
	fs.StringVar(&opts.Fixtures, "fixtures", "", "Read datasets from <dir>/<kind>/<id>.json instead of DATASET_SOURCE.")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if opts.ModelID == "" {
		fs.Usage()
		return options{}, errUsage
	}
	return opts, nil
}

func run(ctx context.Context, cfg config.Config, opts options) ([]string, error) {
	if opts.Fixtures != "" {
		cfg.DatasetSource = config.SourceFixtures
		cfg.FixturesDir = opts.Fixtures
	}

	datasets, closeDatasets, err := config.OpenDatasets(ctx, cfg, nil)
	if err != nil {
		return nil, err
	}
	defer closeDatasets()

	pipeline := &export.Pipeline{Builder: config.NewBuilder(cfg, datasets)}
	if opts.Solve {
		pipeline.Solver = config.NewSolver(cfg)
		if pipeline.Indicators, err = config.LoadIndicators(cfg); err != nil {
			return nil, err
		}
	}

	out, err := pipeline.Run(ctx, export.Request{
		ModelID: opts.ModelID,
		Version: opts.Version,
		Commit:  opts.Commit,
		Solve:   opts.Solve,
	})
	if err != nil {
		return nil, err
	}
	artifacts, err := out.Artifacts()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}
	written := make([]string, 0, len(artifacts))
	for _, a := range artifacts {
		path := filepath.Join(opts.OutDir, a.Name)
		if err := os.WriteFile(path, a.Body, 0o644); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", path, err)
		}
		written = append(written, path)
	}
	return written, nil
}

func main() {
	util.LoadEnv()

	opts, err := parseArgs(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		os.Exit(2)
	}

	cfg := config.Load()
	if err := config.InitLogger(cfg, "export"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	files, err := run(ctx, cfg, opts)
	if err != nil {
		logger.Error("Export failed", "model", opts.ModelID, "err", err)
		logger.Sync()
		os.Exit(1)
	}
	for _, f := range files {
		logger.Info("Wrote file", "path", f)
	}
}
