// Package main provides the entry point for the outreach orchestrator API and scheduler
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amirphl/outreach-orchestrator/app/handlers"
	"github.com/amirphl/outreach-orchestrator/app/jobs"
	"github.com/amirphl/outreach-orchestrator/app/router"
	"github.com/amirphl/outreach-orchestrator/app/scheduler"
	"github.com/amirphl/outreach-orchestrator/app/services"
	businessflow "github.com/amirphl/outreach-orchestrator/business_flow"
	"github.com/amirphl/outreach-orchestrator/config"
	"github.com/amirphl/outreach-orchestrator/models"
	"github.com/amirphl/outreach-orchestrator/repository"
	"github.com/amirphl/outreach-orchestrator/utils"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Application represents the main application structure
type Application struct {
	router    router.Router
	scheduler *scheduler.SequenceScheduler
	scrapes   *jobs.ScrapeManager
	logger    *logrus.Logger
	stopFuncs []func()
}

func main() {
	root := &cobra.Command{
		Use:           "outreach",
		Short:         "Multi-channel outreach campaign orchestrator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serveCommand(), migrateCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCommand() *cobra.Command {
	var noScheduler bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the dispatch scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadProductionConfig()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if noScheduler {
				cfg.Scheduler.Enabled = false
			}
			return serve(cfg)
		},
	}
	cmd.Flags().BoolVar(&noScheduler, "no-scheduler", false, "serve the API without running dispatch ticks")
	return cmd
}

func migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadProductionConfig()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			logger := newLogger(cfg.Logging)
			db, err := initializeDatabase(cfg.Database, logger)
			if err != nil {
				return err
			}
			if err := db.AutoMigrate(models.All()...); err != nil {
				return fmt.Errorf("failed to migrate database: %w", err)
			}
			logger.Info("Database schema is up to date")
			return nil
		},
	}
}

func serve(cfg *config.ProductionConfig) error {
	logger := newLogger(cfg.Logging)
	logger.WithFields(logrus.Fields{
		"environment": cfg.Deployment.Environment,
		"version":     cfg.Deployment.Version,
	}).Info("Starting outreach orchestrator")

	flushSentry, err := utils.InitSentry(cfg.Sentry.DSN, cfg.Deployment.Environment, cfg.Deployment.Version)
	if err != nil {
		return fmt.Errorf("failed to initialize sentry: %w", err)
	}
	defer flushSentry()

	app, err := initializeApplication(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	app.router.SetupRoutes()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		serverErr <- app.router.Start(address)
	}()

	select {
	case sig := <-sigChan:
		logger.WithField("signal", sig.String()).Info("Shutting down gracefully...")
	case err := <-serverErr:
		if err != nil {
			logger.WithError(err).Error("HTTP server stopped unexpectedly")
		}
	}

	if err := app.router.Shutdown(); err != nil {
		logger.WithError(err).Error("Error during HTTP shutdown")
	}

	// Background workers stop after the API so no new jobs arrive mid-shutdown
	for i := len(app.stopFuncs) - 1; i >= 0; i-- {
		app.stopFuncs[i]()
	}

	logger.Info("Server stopped")
	return nil
}

func newLogger(cfg config.LoggingConfig) *logrus.Logger {
	return utils.NewLogger(utils.LoggerOptions{
		Level:      cfg.Level,
		Format:     cfg.Format,
		Output:     cfg.Output,
		FilePath:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	})
}

// initializeDatabase opens postgres or sqlite and configures connection pooling
func initializeDatabase(cfg config.DatabaseConfig, logger *logrus.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.SQLitePath + "?_foreign_keys=on&_busy_timeout=5000")
	default:
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)
		dialector = postgres.Open(dsn)
	}

	level := gormlogger.Silent
	if cfg.SlowQueryLog {
		level = gormlogger.Warn
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.New(logger, gormlogger.Config{
			SlowThreshold:             cfg.SlowQueryTime,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		}),
		NowFunc: utils.UTCNow,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if cfg.Driver == "sqlite" {
		// sqlite serializes writers; one connection avoids SQLITE_BUSY under the scheduler
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"driver":         cfg.Driver,
		"max_open_conns": cfg.MaxOpenConns,
	}).Info("Database connection established")

	return db, nil
}

// initializeCache initializes the Redis client and verifies connectivity
func initializeCache(cfg config.CacheConfig, logger *logrus.Logger) (*redis.Client, error) {
	if !cfg.Enabled || cfg.Provider != "redis" {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.WithField("db", cfg.RedisDB).Info("Redis connection established")
	return rc, nil
}

// initializeChannels builds one adapter per channel according to the configured providers
func initializeChannels(cfg *config.ProductionConfig, rc *redis.Client, logger *logrus.Logger) (*services.ChannelRegistry, func()) {
	registry := services.NewChannelRegistry()
	stop := func() {}

	switch cfg.LinkedIn.Provider {
	case "mock":
		registry.Register(services.NewMockChannel(models.ChannelLinkedIn))
	default:
		registry.Register(services.NewLinkedInClient(cfg.LinkedIn))
	}

	switch cfg.Email.Provider {
	case "mock":
		registry.Register(services.NewMockChannel(models.ChannelEmail))
	default:
		var store services.JobResultStore
		if rc != nil {
			store = services.NewRedisJobResultStore(rc, cfg.Cache.RedisPrefix+"email:", cfg.Email.ResultTTL)
		} else {
			store = services.NewMemoryJobResultStore()
		}
		email := services.NewEmailChannel(cfg.Email, store, logger)
		registry.Register(email)
		stop = email.Wait
	}

	switch cfg.SMS.Provider {
	case "mock":
		registry.Register(services.NewMockChannel(models.ChannelSMS))
	default:
		registry.Register(services.NewSMSClient(cfg.SMS))
	}

	return registry, stop
}

func initializeGenerator(cfg config.GeneratorConfig, logger *logrus.Logger) services.ContentGenerator {
	if cfg.Provider != "gemini" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	gen, err := services.NewGeminiGenerator(ctx, cfg)
	if err != nil {
		// Drafting falls back to step templates
		logger.WithError(err).Warn("Content generator unavailable")
		return nil
	}
	return gen
}

func initializeScraper(cfg config.ScraperConfig) services.ContactScraper {
	if cfg.Provider == "mock" {
		return &services.MockScraper{}
	}
	return services.NewHTTPScraper(cfg)
}

func initializePublisher(cfg config.RabbitMQConfig, logger *logrus.Logger) (services.ActivityPublisher, func()) {
	if !cfg.Enabled {
		return services.NoopPublisher{}, func() {}
	}
	pub, err := services.NewRabbitMQPublisher(cfg.URL, cfg.ActivityQueue)
	if err != nil {
		logger.WithError(err).Warn("Activity publisher unavailable, activity is kept in the database only")
		return services.NoopPublisher{}, func() {}
	}
	return pub, func() {
		if err := pub.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close activity publisher")
		}
	}
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.ProductionConfig, logger *logrus.Logger) (*Application, error) {
	var stopFuncs []func()

	db, err := initializeDatabase(cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(models.All()...); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	rc, err := initializeCache(cfg.Cache, logger)
	if err != nil {
		return nil, err
	}
	if rc != nil {
		stopFuncs = append(stopFuncs, func() { _ = rc.Close() })
	}

	repos := scheduler.NewRepositories(db)
	leadRepo := repository.NewLeadRepository(db)
	scrapeJobRepo := repository.NewScrapeJobRepository(db)

	channels, stopChannels := initializeChannels(cfg, rc, logger)
	stopFuncs = append(stopFuncs, stopChannels)

	composer := services.NewContentComposer(initializeGenerator(cfg.Generator, logger), logger)

	publisher, closePublisher := initializePublisher(cfg.RabbitMQ, logger)
	stopFuncs = append(stopFuncs, closePublisher)

	opts := []scheduler.Option{
		scheduler.WithArgDefaults(services.ArgDefaults{
			LinkedInSessionCookie: cfg.LinkedIn.SessionCookie,
			EmailFromName:         cfg.Email.FromName,
			SMSSender:             cfg.SMS.SourceNumber,
		}),
	}
	if rc != nil {
		opts = append(opts, scheduler.WithTickLock(scheduler.NewRedisTickLock(rc, cfg.Cache.RedisPrefix, cfg.Scheduler.LockTTL)))
	}
	sched := scheduler.NewSequenceScheduler(db, repos, channels, composer, publisher, cfg.Scheduler, cfg.Retry, logger, opts...)

	scrapes := jobs.NewScrapeManager(scrapeJobRepo, leadRepo, initializeScraper(cfg.Scraper), cfg.Scheduler.ScrapeConcurrency, logger)
	recoverCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	recovered, err := scrapes.RecoverInterrupted(recoverCtx)
	cancel()
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("failed to recover interrupted scrape jobs: %w", err)
	}
	if recovered > 0 {
		logger.WithField("jobs", recovered).Warn("Marked interrupted scrape jobs as failed")
	}
	stopFuncs = append(stopFuncs, scrapes.Close)

	if cfg.Scheduler.Enabled {
		stopFuncs = append(stopFuncs, sched.Start(context.Background()))
		logger.WithField("interval", cfg.Scheduler.Interval).Info("Scheduler started")
	}

	campaignFlow := businessflow.NewCampaignFlow(repos.Campaigns, repos.Steps, leadRepo, repos.CampaignLeads, scheduler.NewRateGuard(repos.Counters), db, logger)
	sequenceFlow := businessflow.NewSequenceFlow(repos.Campaigns, repos.Steps, db, logger)
	approvalFlow := businessflow.NewApprovalFlow(repos.Items, repos.CampaignLeads, repos.Steps, composer, logger)
	leadFlow := businessflow.NewLeadFlow(repos.CampaignLeads, repos.Steps, repos.Items, logger)
	scrapeFlow := businessflow.NewScrapeFlow(scrapes, logger)
	activityFlow := businessflow.NewActivityFlow(repos.Events)

	r := router.NewFiberRouter(router.Handlers{
		Campaign:  handlers.NewCampaignHandler(campaignFlow, logger),
		Sequence:  handlers.NewSequenceHandler(sequenceFlow, logger),
		Lead:      handlers.NewLeadHandler(leadFlow, logger),
		Approval:  handlers.NewApprovalHandler(approvalFlow, logger),
		ScrapeJob: handlers.NewScrapeJobHandler(scrapeFlow, logger),
		Activity:  handlers.NewActivityHandler(activityFlow, logger),
	}, cfg, logger)

	return &Application{
		router:    r,
		scheduler: sched,
		scrapes:   scrapes,
		logger:    logger,
		stopFuncs: stopFuncs,
	}, nil
}
