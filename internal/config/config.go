// Package config reads the service settings from the environment and builds
// the shared collaborators of the binaries.
package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/OFFIS-RIT/lcaexport/backend/internal/util"
	"github.com/OFFIS-RIT/lcaexport/backend/pkg/dataset"
	"github.com/OFFIS-RIT/lcaexport/backend/pkg/dataset/memory"
	pgdataset "github.com/OFFIS-RIT/lcaexport/backend/pkg/dataset/pgx"
	"github.com/OFFIS-RIT/lcaexport/backend/pkg/dataset/sqlite"
	"github.com/OFFIS-RIT/lcaexport/backend/pkg/logger"
	"github.com/OFFIS-RIT/lcaexport/backend/pkg/logger/console"
	"github.com/OFFIS-RIT/lcaexport/backend/pkg/logger/jsonlog"
	"github.com/OFFIS-RIT/lcaexport/backend/pkg/report"
	"github.com/OFFIS-RIT/lcaexport/backend/pkg/snapshot"
	"github.com/OFFIS-RIT/lcaexport/backend/pkg/solver"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	SourcePostgres = "postgres"
	SourceSQLite   = "sqlite"
	SourceFixtures = "fixtures"
)

type Config struct {
	DatasetSource    string
	DatabaseURL      string
	SQLitePath       string
	FixturesDir      string
	FetchParallelism int

	SolverURL      string
	SolverTimeout  time.Duration
	IndicatorTable string

	Port      string
	LogFormat string
	Debug     bool
}

func Load() Config {
	return Config{
		DatasetSource:    strings.ToLower(util.GetEnvString("DATASET_SOURCE", SourcePostgres)),
		DatabaseURL:      util.GetEnv("DATABASE_URL"),
		SQLitePath:       util.GetEnvString("SQLITE_PATH", "datasets.db"),
		FixturesDir:      util.GetEnv("FIXTURES_DIR"),
		FetchParallelism: util.GetEnvInt("FETCH_PARALLELISM", snapshot.DefaultParallelism),
		SolverURL:        util.GetEnvString("LCIA_SOLVER_URL", solver.DefaultEndpoint),
		SolverTimeout:    util.GetEnvDuration("SOLVER_TIMEOUT", 5*time.Minute),
		IndicatorTable:   util.GetEnv("INDICATOR_TABLE"),
		Port:             util.GetEnvString("PORT", "8080"),
		LogFormat:        strings.ToLower(util.GetEnvString("LOG_FORMAT", "console")),
		Debug:            util.GetEnvBool("DEBUG", false),
	}
}

// InitLogger installs the console or JSON backend. service names the binary.
func InitLogger(cfg Config, service string) error {
	switch cfg.LogFormat {
	case "json":
		l, err := jsonlog.NewJSONLogger(jsonlog.JSONLoggerParams{Debug: cfg.Debug, Service: service})
		if err != nil {
			return fmt.Errorf("failed to create json logger: %w", err)
		}
		logger.Init(l)
	case "console", "":
		logger.Init(console.NewConsoleLogger(console.ConsoleLoggerParams{Debug: cfg.Debug, Prefix: service}))
	default:
		return fmt.Errorf("unknown LOG_FORMAT %q", cfg.LogFormat)
	}
	return nil
}

// OpenDatasets opens the configured dataset source. For postgres the given
// pool is reused; a nil pool opens one from DATABASE_URL. The returned close
// function releases whatever was opened here.
func OpenDatasets(ctx context.Context, cfg Config, pool *pgxpool.Pool) (dataset.Client, func(), error) {
	noop := func() {}
	switch cfg.DatasetSource {
	case SourcePostgres:
		if pool != nil {
			return pgdataset.New(pool), noop, nil
		}
		if cfg.DatabaseURL == "" {
			return nil, noop, fmt.Errorf("DATABASE_URL is required for dataset source %q", cfg.DatasetSource)
		}
		p, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to connect to database: %w", err)
		}
		return pgdataset.New(p), p.Close, nil
	case SourceSQLite:
		c, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, noop, err
		}
		return c, func() { _ = c.Close() }, nil
	case SourceFixtures:
		c, err := memory.LoadDir(cfg.FixturesDir)
		if err != nil {
			return nil, noop, err
		}
		return c, noop, nil
	}
	return nil, noop, fmt.Errorf("unknown DATASET_SOURCE %q", cfg.DatasetSource)
}

// NewBuilder wraps client so concurrent builds share in-flight lookups.
func NewBuilder(cfg Config, client dataset.Client) *snapshot.Builder {
	return snapshot.NewBuilder(snapshot.NewBuilderParams{
		Client:      dataset.NewSharedClient(client),
		Parallelism: cfg.FetchParallelism,
	})
}

func NewSolver(cfg Config) *solver.Client {
	return solver.NewClient(solver.NewClientParams{
		Endpoint: cfg.SolverURL,
		Timeout:  cfg.SolverTimeout,
	})
}

// LoadIndicators returns an empty table when INDICATOR_TABLE is unset.
func LoadIndicators(cfg Config) (report.IndicatorTable, error) {
	if cfg.IndicatorTable == "" {
		return report.IndicatorTable{}, nil
	}
	return report.LoadIndicatorTable(cfg.IndicatorTable)
}
