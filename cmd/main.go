package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/vesseleye/internal/alert"
	"github.com/vesseleye/internal/api"
	"github.com/vesseleye/internal/auth"
	"github.com/vesseleye/internal/clock"
	"github.com/vesseleye/internal/config"
	"github.com/vesseleye/internal/database"
	"github.com/vesseleye/internal/geofence"
	"github.com/vesseleye/internal/logger"
	"github.com/vesseleye/internal/monitor"
	"github.com/vesseleye/internal/notify"
	"github.com/vesseleye/internal/report"
	"github.com/vesseleye/internal/store"
	"github.com/vesseleye/internal/tracking"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/gomail.v2"
	"gorm.io/gorm"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "vesseleye",
		Short: "VesselEye - fleet telemetry monitoring service",
		Long: `VesselEye polls vessel telemetry from the tracking API, evaluates alert
rules and geofences against every new report and serves the REST API.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file (default ./config.yaml)")

	root.AddCommand(newServeCommand(), newMigrateCommand(), newSeedCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads configuration, builds the logger and opens a migrated
// database.
func setup() (*config.Config, *zap.Logger, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to build logger: %w", err)
	}
	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := database.Migrate(db); err != nil {
		_ = database.Close(db)
		return nil, nil, nil, err
	}
	return cfg, log, db, nil
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, log, db, err := setup()
			if err != nil {
				return err
			}
			defer database.Close(db)
			log.Info("database migrated")
			return nil
		},
	}
}

func newSeedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "seed [fixture.json]",
		Short: "Import vessels, rules, geofences and users from a fixture file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, log, db, err := setup()
			if err != nil {
				return err
			}
			defer database.Close(db)
			if err := database.ImportFixtureFile(db, args[0]); err != nil {
				return err
			}
			log.Info("fixture imported", zap.String("file", args[0]))
			return nil
		},
	}
}

func newServeCommand() *cobra.Command {
	var seed string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the fetcher and the REST API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, db, err := setup()
			if err != nil {
				return err
			}
			defer database.Close(db)
			defer log.Sync()

			if seed != "" {
				if err := database.ImportFixtureFile(db, seed); err != nil {
					return err
				}
				log.Info("fixture imported", zap.String("file", seed))
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, log, db)
		},
	}

	cmd.Flags().StringVar(&seed, "seed", "", "Import a fixture file before starting")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, log *zap.Logger, db *gorm.DB) error {
	clk := clock.System{}

	var redisStore *store.RedisStore
	if cfg.Redis.Addr != "" {
		rs, err := store.NewRedisStore(ctx, cfg.Redis)
		switch {
		case err == nil:
			redisStore = rs
			defer rs.Close()
			log.Info("connected to redis", zap.String("addr", cfg.Redis.Addr))
		case cfg.Redis.IdentityCache:
			return fmt.Errorf("redis is required for the shared identity cache: %w", err)
		default:
			log.Warn("redis unavailable, continuing without live state and pub/sub", zap.Error(err))
		}
	}

	notifier := buildNotifier(cfg, redisStore, log)

	var shared tracking.SharedStore
	if redisStore != nil && cfg.Redis.IdentityCache {
		shared = redisStore
	}
	cache := tracking.NewIdentityCache(cfg.Tracking.CacheTTL, cfg.Tracking.NegativeCacheTTL, clk, shared, log)
	trackingClient := tracking.NewClient(cfg.Tracking, cache, log)

	alerts := alert.NewAlertManager(db, log, alert.WithNotifier(notifier), alert.WithClock(clk))
	evaluator := alert.NewRuleEvaluator(db, alerts, log)
	rules := alert.NewRuleManager(evaluator, db, log)

	geofences := geofence.NewEvaluator(db, log)

	fetcherOpts := []monitor.Option{monitor.WithClock(clk)}
	if redisStore != nil {
		fetcherOpts = append(fetcherOpts, monitor.WithStatePublisher(redisStore))
	}
	if cfg.Fetcher.EvaluateGeofences {
		sink := geofence.Sinks{geofence.NewLogSink(log), geofence.NewNotifierSink(notifier, clk)}
		fetcherOpts = append(fetcherOpts, monitor.WithGeofenceChecker(geofence.NewChecker(geofences, sink, log)))
	}
	fetcher := monitor.NewFetcher(db, trackingClient, evaluator, monitor.Config{
		PollingInterval:      cfg.Fetcher.PollingInterval(),
		VesselDelay:          cfg.Fetcher.VesselDelay,
		HistoryWindowMinutes: cfg.Tracking.HistoryWindowMinutes,
		HistoryLimit:         cfg.Tracking.HistoryLimit,
	}, log, fetcherOpts...)

	secret := cfg.Server.JWTSecret
	if secret == "" {
		secret = uuid.NewString()
		log.Warn("server.jwt_secret is not set, issued tokens will not survive a restart")
	}

	reports := report.NewGenerator(db)
	deps := api.Deps{
		DB:        db,
		Fetcher:   fetcher,
		Alerts:    alerts,
		Rules:     rules,
		Geofences: geofences,
		Reports:   reports,
		Auth:      auth.NewAuthenticator(db, secret, cfg.Server.APIKeyHashes, clk),
		Cache:     trackingClient,
		Directory: trackingClient,
		PageLimit: cfg.Tracking.VesselPageLimit,
		Clock:     clk,
	}
	if redisStore != nil {
		deps.Locator = redisStore
	}
	if email := cfg.Alert.Email; email.SMTPHost != "" && len(email.ToReceivers) > 0 {
		dialer := gomail.NewDialer(email.SMTPHost, email.SMTPPort, email.From, email.Password)
		deps.Mailer = report.NewMailer(reports, dialer, email.From, email.ToReceivers)
	}
	server := api.NewServer(deps, log)

	if cfg.Fetcher.Autostart {
		fetcher.Start()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(cfg.Server.Port)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		err := server.Shutdown(shutdownCtx)

		fetcher.Stop()
		fetcher.Wait()
		return err
	})
	return g.Wait()
}

func buildNotifier(cfg *config.Config, rs *store.RedisStore, log *zap.Logger) notify.Notifier {
	var notifiers notify.Multi

	if s := cfg.Alert.Slack; s.WebhookURL != "" || s.Token != "" {
		notifiers = append(notifiers, notify.NewSlackNotifier(s.Token, s.Channel, s.WebhookURL))
		log.Info("slack notifications enabled", zap.String("channel", s.Channel))
	}
	if e := cfg.Alert.Email; e.SMTPHost != "" && len(e.ToReceivers) > 0 {
		notifiers = append(notifiers, notify.NewEmailNotifier(e.SMTPHost, e.SMTPPort, e.From, e.Password, e.ToReceivers))
		log.Info("email notifications enabled", zap.Strings("to", e.ToReceivers))
	}
	if rs != nil {
		notifiers = append(notifiers, notify.NewRedisNotifier(rs))
	}

	if len(notifiers) == 0 {
		return notify.Nop{}
	}
	return notifiers
}
