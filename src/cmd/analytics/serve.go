package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/uptrace/opentelemetry-go-extra/otellogrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/jiaming2012/analytics-sim/src/analytics/models"
	"github.com/jiaming2012/analytics-sim/src/analytics/router"
	"github.com/jiaming2012/analytics-sim/src/analytics/services"
	"github.com/jiaming2012/analytics-sim/src/data"
	"github.com/jiaming2012/analytics-sim/src/dbutils"
	"github.com/jiaming2012/analytics-sim/src/eventpubsub"
	"github.com/jiaming2012/analytics-sim/src/telemetry"
)

type ServeArgs struct {
	Bars  []string
	Users int64
}

func newServeCmd() *cobra.Command {
	args := ServeArgs{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Runs the simulation scheduler behind the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			return serve(cfg, args)
		},
	}

	cmd.Flags().StringSliceVar(&args.Bars, "bars", nil, "Bar CSV files to load when no database is configured.")
	cmd.Flags().Int64Var(&args.Users, "users", 1, "User count reported by the in-memory database.")

	return cmd
}

func serve(cfg *services.Config, args ServeArgs) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "" {
		log.AddHook(otellogrus.NewHook(otellogrus.WithLevels(
			log.PanicLevel,
			log.FatalLevel,
			log.ErrorLevel,
			log.WarnLevel,
			log.InfoLevel,
		)))

		otelShutdown, otelErr := telemetry.SetupOTelSDK(ctx, "analytics-sim")
		if otelErr != nil {
			return fmt.Errorf("failed to setup otel sdk: %w", otelErr)
		}

		defer func() {
			err = errors.Join(err, otelShutdown(context.Background()))
		}()
	}

	db, feed, closeStore, err := openStore(ctx, cfg, args)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := seedRunners(ctx, db, cfg.Runners); err != nil {
		return err
	}

	publisher := eventpubsub.NewPublisher()
	if err := publisher.Subscribe(eventpubsub.SimulationStateChanged, func(snap *models.ProgressSnapshot) {
		log.WithField("state", snap.State).Infof("simulation state changed (%.2f%%)", snap.ProgressPercent)
	}); err != nil {
		return err
	}

	scheduler := services.NewScheduler(cfg, db, feed, services.WithPublisher(publisher))
	if err := scheduler.Init(ctx); err != nil {
		return err
	}

	r := mux.NewRouter()
	router.SetupHandler(r, router.NewHandler(scheduler, cfg.HTTP.StreamInterval))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           otelhttp.NewHandler(r, "/"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		if err := scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
	}()

	go func() {
		log.Infof("listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err = <-errCh:
		log.Errorf("server error: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return errors.Join(err, srv.Shutdown(shutdownCtx))
}

// openStore connects to postgres when a database url is configured and
// otherwise serves from memory. ClickHouse replaces the bar source when an
// address is configured.
func openStore(ctx context.Context, cfg *services.Config, args ServeArgs) (models.IDatabaseService, models.IBarFeed, func(), error) {
	closeStore := func() {}

	var (
		db   models.IDatabaseService
		feed models.IBarFeed
	)

	if cfg.Database.URL != "" {
		conn, err := dbutils.InitPostgresWithUrl(cfg.Database.URL)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to init db: %w", err)
		}

		svc := data.NewDatabaseService(conn)
		db, feed = svc, svc

		if cfg.ClickHouse.Addr != "" {
			ch, err := data.NewClickHouseBarFeed(ctx, data.ClickHouseOptions{
				Addr:     cfg.ClickHouse.Addr,
				Database: cfg.ClickHouse.Database,
				Username: cfg.ClickHouse.Username,
				Password: cfg.ClickHouse.Password,
				Table:    cfg.ClickHouse.Table,
			})
			if err != nil {
				return nil, nil, nil, err
			}

			svc.WithBarStats(ch)
			feed = ch
			closeStore = func() {
				if err := ch.Close(); err != nil {
					log.Warnf("failed to close clickhouse: %v", err)
				}
			}
		}

		return db, feed, closeStore, nil
	}

	repo := models.NewBarRepository()
	if err := loadBars(repo, args.Bars); err != nil {
		return nil, nil, nil, err
	}

	log.Warn("no database configured, using in-memory store")
	return models.NewMockDatabase(repo, args.Users), repo, closeStore, nil
}

// seedRunners saves configured runners that the store does not know yet.
func seedRunners(ctx context.Context, db models.IDatabaseService, runners []*models.Runner) error {
	existing, err := db.LoadRunners(ctx)
	if err != nil {
		return fmt.Errorf("failed to load runners: %w", err)
	}

	known := make(map[string]bool, len(existing))
	for _, r := range existing {
		known[r.Name] = true
	}

	for _, r := range runners {
		if known[r.Name] {
			continue
		}

		if err := r.Validate(); err != nil {
			return fmt.Errorf("runner %s: %w", r.Name, err)
		}

		if err := db.SaveRunner(ctx, r); err != nil {
			return fmt.Errorf("failed to save runner %s: %w", r.Name, err)
		}

		log.Infof("seeded runner %s", r.Name)
	}

	return nil
}
