package ontoscore

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/soundprediction/ontoscore"
	"github.com/soundprediction/ontoscore/pkg/alert"
	"github.com/soundprediction/ontoscore/pkg/config"
	"github.com/soundprediction/ontoscore/pkg/driver"
	"github.com/soundprediction/ontoscore/pkg/logger"
	"github.com/soundprediction/ontoscore/pkg/predictor"
	"github.com/soundprediction/ontoscore/pkg/scoring"
	"github.com/soundprediction/ontoscore/pkg/taxonomy"
	"github.com/soundprediction/ontoscore/pkg/telemetry"
	"github.com/soundprediction/ontoscore/pkg/types"
)

// fanoutSink feeds every configured audit sink. The first error wins.
type fanoutSink []scoring.AuditSink

func (f fanoutSink) Record(ctx context.Context, result *types.RiskScoreResult) error {
	for _, sink := range f {
		if err := sink.Record(ctx, result); err != nil {
			return err
		}
	}
	return nil
}

// initClient builds the ontoscore client from configuration. The returned
// cleanup flushes telemetry and closes the driver.
func initClient(cfg *config.Config) (*ontoscore.Client, func(), error) {
	log := buildLogger(cfg)

	d, err := buildDriver(cfg)
	if err != nil {
		return nil, nil, err
	}

	table := taxonomy.DefaultTable()
	if cfg.Taxonomy.TablePath != "" {
		table, err = taxonomy.LoadTable(cfg.Taxonomy.TablePath)
		if err != nil {
			d.Close()
			return nil, nil, fmt.Errorf("load taxonomy table: %w", err)
		}
	}

	clientCfg := &ontoscore.Config{
		TaxonomyTable:     table,
		Scoring:           cfg.Scoring.EngineConfig(),
		NeighborhoodTTL:   cfg.Cache.NeighborhoodTTL,
		IngestConcurrency: cfg.Ingest.Concurrency,
	}
	clientCfg.Detection.MaxHops = cfg.Detection.MaxHops
	clientCfg.Detection.MaxVisited = cfg.Detection.MaxVisited

	if cfg.Predictor.Enabled {
		p, err := predictor.NewClient(cfg.Predictor.Client, log)
		if err != nil {
			d.Close()
			return nil, nil, fmt.Errorf("predictor client: %w", err)
		}
		clientCfg.Predictor = p
	}

	var sinks []scoring.AuditSink
	var audit *telemetry.ScoreAudit
	if cfg.Telemetry.ParquetPath != "" {
		audit, err = telemetry.NewScoreAudit(cfg.Telemetry.ParquetPath)
		if err != nil {
			fmt.Printf("Warning: failed to initialize score audit: %v\n", err)
		} else {
			sinks = append(sinks, audit)
		}
	}
	if cfg.Alert.Enabled {
		sinks = append(sinks, alert.NewSink(alert.NewEmailAlerter(cfg.Alert), cfg.Alert.MinLevel))
	}
	if len(sinks) == 1 {
		clientCfg.Audit = sinks[0]
	} else if len(sinks) > 1 {
		clientCfg.Audit = fanoutSink(sinks)
	}

	client, err := ontoscore.NewClient(d, clientCfg, log)
	if err != nil {
		d.Close()
		return nil, nil, err
	}

	cleanup := func() {
		if audit != nil {
			if err := audit.Close(); err != nil {
				log.Warn("score audit close failed", "error", err)
			}
		}
		if err := d.Close(); err != nil {
			log.Warn("driver close failed", "error", err)
		}
	}
	fmt.Printf("OntoScore initialized with driver: %s\n", cfg.Database.Driver)
	return client, cleanup, nil
}

// buildDriver selects the storage backend, wrapped with bounded retries.
func buildDriver(cfg *config.Config) (driver.Driver, error) {
	var (
		d   driver.Driver
		err error
	)
	switch cfg.Database.Driver {
	case "memory":
		d = driver.NewMemoryDriver()
	case "badger":
		d, err = driver.NewBadgerDriver(cfg.Database.URI)
		if err != nil {
			return nil, fmt.Errorf("failed to create badger driver: %w", err)
		}
	case "neo4j":
		d, err = driver.NewNeo4jDriver(cfg.Database.URI, cfg.Database.Username, cfg.Database.Password, cfg.Database.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
	}
	return driver.NewRetryDriver(d, nil), nil
}

// buildLogger builds the colored logger, chained into error telemetry
// when a parquet path is configured.
func buildLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Log.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	colorHandler := logger.NewColorHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	if cfg.Telemetry.ParquetPath != "" {
		parquetHandler, err := telemetry.NewParquetHandler(colorHandler, cfg.Telemetry.ParquetPath)
		if err != nil {
			fmt.Printf("Warning: failed to initialize error tracking: %v\n", err)
		} else {
			return slog.New(parquetHandler)
		}
	}
	return slog.New(colorHandler)
}
