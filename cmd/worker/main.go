package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/OFFIS-RIT/dematel/internal/history"
	"github.com/OFFIS-RIT/dematel/internal/queue"
	"github.com/OFFIS-RIT/dematel/internal/storage"
	"github.com/OFFIS-RIT/dematel/internal/util"
	"github.com/OFFIS-RIT/dematel/pkg/leaselock"
	"github.com/OFFIS-RIT/dematel/pkg/logger"
	"github.com/OFFIS-RIT/dematel/pkg/logger/console"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	util.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// logger
	debug := util.GetEnvBool("DEBUG", false)
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	// Init s3 archive
	archive, err := storage.NewArchive(ctx)
	if err != nil {
		logger.Fatal("Could not configure S3", "err", err)
	}

	// Init pgx pool
	pgConn, err := pgxpool.New(ctx, util.GetEnv("DATABASE_URL"))
	if err != nil {
		logger.Fatal("Unable to connect to database", "err", err)
	}
	defer pgConn.Close()

	deps := queue.ReportDeps{
		History:  history.NewStore(pgConn),
		Archive:  archive,
		Locks:    leaselock.New(pgConn),
		Location: util.GetEnvLocation("REPORT_TZ"),
	}

	// Init rabbitmq
	conn, err := queue.Init()
	if err != nil {
		logger.Fatal("Could not connect to RabbitMQ", "err", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer ch.Close()

	if err := queue.SetupQueues(ch, []string{queue.ReportQueue}); err != nil {
		logger.Fatal("Failed to declare queues", "err", err)
	}

	// prefetch=1 keeps one rebuild in flight per worker
	if err := ch.Qos(1, 0, false); err != nil {
		logger.Fatal("Failed to set QoS", "err", err)
	}

	msgs, err := ch.Consume(
		queue.ReportQueue,
		fmt.Sprintf("%s_consumer", queue.ReportQueue),
		false, // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,   // args
	)
	if err != nil {
		logger.Fatal("Failed to start consuming", "queue", queue.ReportQueue, "err", err)
	}

	logger.Info("Listening for messages", "queue", queue.ReportQueue)

	for {
		select {
		case <-ctx.Done():
			logger.Info("Shutdown signal received, exiting...")
			return
		case msg, ok := <-msgs:
			if !ok {
				logger.Info("Message channel closed", "queue", queue.ReportQueue)
				return
			}

			startTime := time.Now()
			if err := queue.ProcessReportMessage(ctx, deps, msg.Body); err != nil {
				logger.Error("Error processing message", "queue", queue.ReportQueue, "err", err)
				queue.HandleProcessingError(ch, msg, queue.ReportQueue)
				continue
			}
			if err := msg.Ack(false); err != nil {
				logger.Error("Failed to ack message", "err", err)
			}
			logger.Info("Message processed successfully", "queue", queue.ReportQueue, "duration", time.Since(startTime).Round(time.Millisecond))
		}
	}
}
