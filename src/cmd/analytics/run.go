package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gocarina/gocsv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jiaming2012/analytics-sim/src/analytics/models"
	"github.com/jiaming2012/analytics-sim/src/analytics/services"
	"github.com/jiaming2012/analytics-sim/src/eventpubsub"
)

type RunArgs struct {
	Bars      []string
	CsvOutput string
	GroupBy   string
}

func newRunCmd() *cobra.Command {
	args := RunArgs{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Replays the configured runners over bar CSV files and prints a summary",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			return run(cfg, args)
		},
	}

	cmd.Flags().StringSliceVar(&args.Bars, "bars", nil, "Bar CSV files (symbol,timeframe,epoch,open,high,low,close,volume).")
	cmd.Flags().StringVar(&args.CsvOutput, "csv", "", "Write closed trades to this CSV file.")
	cmd.Flags().StringVar(&args.GroupBy, "group-by", "year,strategy,timeframe", "Summary grouping.")
	cmd.MarkFlagRequired("bars")

	return cmd
}

func run(cfg *services.Config, args RunArgs) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	groupBy, err := models.ParseGroupBy(args.GroupBy)
	if err != nil {
		return err
	}

	repo := models.NewBarRepository()
	if err := loadBars(repo, args.Bars); err != nil {
		return err
	}

	db := models.NewMockDatabase(repo, 1)
	if err := seedRunners(ctx, db, cfg.Runners); err != nil {
		return err
	}

	// headless runs tick as fast as possible
	cfg.TickInterval = time.Millisecond
	if cfg.TicksPerCycle < 1000 {
		cfg.TicksPerCycle = 1000
	}

	completed := make(chan *services.SimulationCompletedEvent, 1)
	publisher := eventpubsub.NewPublisher()
	if err := publisher.Subscribe(eventpubsub.SimulationCompleted, func(ev *services.SimulationCompletedEvent) {
		completed <- ev
	}); err != nil {
		return err
	}

	scheduler := services.NewScheduler(cfg, db, repo, services.WithPublisher(publisher))
	if err := scheduler.Init(ctx); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- scheduler.Run(runCtx)
	}()

	resp, err := scheduler.Start(ctx)
	if err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}

	log.Infof("simulation %s", resp.Message)
	started := time.Now()

	var ev *services.SimulationCompletedEvent
	select {
	case ev = <-completed:
	case <-ctx.Done():
		cancel()
		<-done
		return ctx.Err()
	}

	log.WithFields(log.Fields{
		"processed": ev.Counters.Processed,
		"buys":      ev.Counters.Buys,
		"sells":     ev.Counters.Sells,
		"errors":    ev.Counters.Errors,
	}).Infof("simulation completed in %s", time.Since(started).Round(time.Millisecond))

	summary, err := scheduler.ResultsSummary(ctx, groupBy, models.ResultFilter{})
	if err != nil {
		return err
	}

	metrics, err := scheduler.PerformanceMetrics(ctx, models.ResultFilter{})
	if err != nil {
		return err
	}

	cancel()
	<-done

	buckets := make([]models.SummaryBucket, 0, len(summary))
	for _, b := range summary {
		buckets = append(buckets, *b)
	}

	strategyMetrics := make([]models.StrategyMetrics, 0, len(metrics))
	for _, m := range metrics {
		strategyMetrics = append(strategyMetrics, *m)
	}

	models.RenderSummary(os.Stdout, buckets)
	models.RenderMetrics(os.Stdout, strategyMetrics)

	if args.CsvOutput != "" {
		return exportTrades(ctx, db, args.CsvOutput)
	}

	return nil
}

func exportTrades(ctx context.Context, db models.IDatabaseService, path string) error {
	records, err := db.FetchResultRecords(ctx, models.ResultFilter{})
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	if err := gocsv.MarshalFile(&records, f); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	log.Infof("wrote %d trades to %s", len(records), path)
	return nil
}
