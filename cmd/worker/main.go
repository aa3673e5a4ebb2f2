package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/OFFIS-RIT/lcaexport/backend/internal/config"
	"github.com/OFFIS-RIT/lcaexport/backend/internal/export"
	"github.com/OFFIS-RIT/lcaexport/backend/internal/jobs"
	"github.com/OFFIS-RIT/lcaexport/backend/internal/queue"
	"github.com/OFFIS-RIT/lcaexport/backend/internal/storage"
	"github.com/OFFIS-RIT/lcaexport/backend/internal/util"
	"github.com/OFFIS-RIT/lcaexport/backend/pkg/exportlock"
	"github.com/OFFIS-RIT/lcaexport/backend/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	util.LoadEnv()

	cfg := config.Load()
	if err := config.InitLogger(cfg, "worker"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Init s3 client
	s3Client, err := storage.NewS3Client(ctx)
	if err != nil {
		logger.Fatal("Could not create S3 client", "err", err)
	}

	// Init pgx client
	pgConn, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Unable to connect to database", "err", err)
	}
	defer pgConn.Close()

	datasets, closeDatasets, err := config.OpenDatasets(ctx, cfg, pgConn)
	if err != nil {
		logger.Fatal("Failed to open dataset source", "source", cfg.DatasetSource, "err", err)
	}
	defer closeDatasets()

	indicators, err := config.LoadIndicators(cfg)
	if err != nil {
		logger.Fatal("Failed to load indicator table", "path", cfg.IndicatorTable, "err", err)
	}

	// Init rabbitmq
	conn, err := queue.Init()
	if err != nil {
		logger.Fatal("Failed to connect to queue", "err", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer ch.Close()

	if err := queue.SetupQueues(ch, []string{queue.ExportQueue}); err != nil {
		logger.Fatal("Failed to set up queues", "err", err)
	}

	hostname, _ := os.Hostname()
	worker := &queue.Worker{
		Pipeline: &export.Pipeline{
			Builder:    config.NewBuilder(cfg, datasets),
			Solver:     config.NewSolver(cfg),
			Indicators: indicators,
		},
		Jobs:      jobs.NewPgStore(pgConn),
		Artifacts: storage.NewS3Store(s3Client),
		Locker:    exportlock.New(pgConn),
		Events:    ch,
		Holder:    hostname + "-",
	}

	// Exports run one at a time per worker.
	consumerCh, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open consumer channel", "err", err)
	}
	defer consumerCh.Close()

	if err := consumerCh.Qos(1, 0, false); err != nil {
		logger.Fatal("Failed to set QoS", "err", err)
	}

	msgs, err := consumerCh.Consume(
		queue.ExportQueue,
		"export_queue_consumer",
		false, // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,   // args
	)
	if err != nil {
		logger.Fatal("Failed to start consuming", "queue", queue.ExportQueue, "err", err)
	}

	logger.Info("Listening for messages", "queue", queue.ExportQueue)

	for {
		select {
		case <-ctx.Done():
			logger.Info("Shutdown signal received, exiting...")
			return
		case msg, ok := <-msgs:
			if !ok {
				logger.Info("Message channel closed", "queue", queue.ExportQueue)
				return
			}
			startTime := time.Now()
			logger.Info("Received message", "queue", queue.ExportQueue)

			if err := worker.ProcessExportMessage(ctx, msg.Body, queue.FinalAttempt(msg)); err != nil {
				logger.Error("Error processing message", "queue", queue.ExportQueue, "err", err)
				queue.HandleProcessingError(context.WithoutCancel(ctx), consumerCh, msg, queue.ExportQueue, err)
			} else {
				if err := msg.Ack(false); err != nil {
					logger.Error("Failed to ack message", "err", err)
				}
				logger.Info("Message processed successfully", "queue", queue.ExportQueue)
			}

			logger.Info("Processing time", "duration", time.Since(startTime).Round(time.Millisecond))
			logger.Info("Waiting for next message")
		}
	}
}
