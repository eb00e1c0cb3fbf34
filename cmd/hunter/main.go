package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"apartmenthunter/config"
	"apartmenthunter/internal/api"
	"apartmenthunter/internal/database"
	"apartmenthunter/internal/extractor"
	"apartmenthunter/internal/fetcher"
	"apartmenthunter/internal/filter"
	"apartmenthunter/internal/notify"
	"apartmenthunter/internal/queue"
	"apartmenthunter/internal/scheduler"
	"apartmenthunter/internal/scraping"
)

const usage = `usage: hunter <command>

commands:
  scan     run a single scan cycle
  run      scan continuously on SCAN_INTERVAL_MINUTES
  serve    scan continuously and serve the HTTP API on API_PORT
  status   print store statistics and recent sessions`

// app holds the wired components shared by all commands.
type app struct {
	cfg       *config.Config
	logger    *logrus.Logger
	db        *database.Database
	manager   *scraping.Manager
	scheduler *scheduler.Scheduler
	queue     *queue.ListingQueue
	closers   []func()
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	command := os.Args[1]
	switch command {
	case "scan", "run", "serve", "status":
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	logger := config.NewLogger(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The store is the only dependency whose failure is fatal.
	db, err := database.NewDatabase(database.Config{
		Driver: cfg.Database.Driver,
		Path:   cfg.Database.Path,
		DSN:    cfg.Database.URL,
	}, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize database")
	}
	defer db.Close()

	if command == "status" {
		if err := printStatus(ctx, db); err != nil {
			logger.WithError(err).Fatal("Failed to read status")
		}
		return
	}

	a, err := newApp(cfg, db, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize scanner")
	}
	defer a.close()

	switch command {
	case "scan":
		res, err := a.scheduler.RunOnce(ctx)
		if err != nil {
			logger.WithError(err).Error("Scan did not run")
			return
		}
		logger.WithFields(logrus.Fields{
			"scraped":  res.Scraped,
			"new":      res.New,
			"saved":    res.Saved,
			"filtered": res.Filtered,
			"blocked":  res.Blocked,
			"success":  res.Success,
		}).Info("Scan complete")
		if res.Message != "" {
			logger.Info(res.Message)
		}
	case "run":
		a.scheduler.Run(ctx)
	case "serve":
		a.serve(ctx)
	}
}

func newApp(cfg *config.Config, db *database.Database, logger *logrus.Logger) (*app, error) {
	search, err := config.LoadSearchConfig(cfg.SearchConfigPath, logger)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, db: db}

	var f fetcher.Fetcher
	switch cfg.Scan.Backend {
	case "browser":
		bf := fetcher.NewBrowserFetcher(cfg.FetchTimeout(), cfg.Scan.UserAgent, logger)
		a.closers = append(a.closers, bf.Close)
		f = bf
	default:
		f = fetcher.NewHTTPFetcher(fetcher.HTTPConfig{
			Timeout:   cfg.FetchTimeout(),
			UserAgent: cfg.Scan.UserAgent,
		}, logger)
	}

	x := newExtractor(cfg, search, logger)

	urls := scraping.BuildSearchURLs(cfg.Source.SearchURL, search.Criteria, search.City, logger)
	a.manager = scraping.NewManager(f, x, db, filter.NewRuleFilter(search.Criteria), scraping.Options{
		Source:       cfg.Source.Name,
		URLs:         urls,
		Retries:      cfg.Scan.RetryAttempts,
		InitialDelay: fetcher.NewDelay(cfg.Scan.InitialDelayMinSeconds, cfg.Scan.InitialDelayMaxSeconds),
		Delay:        fetcher.NewDelay(cfg.Scan.DelayMinSeconds, cfg.Scan.DelayMaxSeconds),
	}, logger)

	notifiers := []notify.Notifier{notify.NewLogNotifier(logger)}
	if cfg.Notify.TelegramEnabled {
		tg, err := notify.NewTelegramNotifier(notify.TelegramConfig{
			BotToken: cfg.Notify.TelegramToken,
			ChatID:   cfg.Notify.TelegramChatID,
		}, logger)
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, tg)
	}
	dispatcher := notify.NewDispatcher(db, cfg.Notify.Limit, logger, notifiers...)

	a.queue = queue.NewListingQueue(cfg.Notify.QueueSize, logger)
	a.queue.Subscribe(dispatcher.Handle)
	a.queue.Start()
	a.manager.SetSink(a.queue)

	a.scheduler = scheduler.NewScheduler(a.manager, cfg.Interval(), logger)

	logger.WithFields(logrus.Fields{
		"source":   cfg.Source.Name,
		"urls":     len(urls),
		"backend":  cfg.Scan.Backend,
		"telegram": cfg.Notify.TelegramEnabled,
	}).Info("Scanner initialized")
	return a, nil
}

// newExtractor matches card text against the criteria locations before any
// other known neighborhood.
func newExtractor(cfg *config.Config, search config.SearchConfig, logger *logrus.Logger) *extractor.Extractor {
	return extractor.New(extractor.Config{
		BaseURL:       cfg.Source.BaseURL,
		Source:        cfg.Source.Name,
		Locations:     search.KnownLocations(),
		CityName:      search.City.Name,
		MaxCandidates: cfg.Extract.MaxCandidatesPerPage,
		PriceMin:      cfg.Extract.PricePlausibleMin,
		PriceMax:      cfg.Extract.PricePlausibleMax,
		RoomsMin:      cfg.Extract.RoomsPlausibleMin,
		RoomsMax:      cfg.Extract.RoomsPlausibleMax,
	}, logger)
}

// close drains pending notifications before releasing the fetch backend.
func (a *app) close() {
	if a.queue != nil {
		_ = a.queue.Close()
	}
	for _, c := range a.closers {
		c()
	}
}

func (a *app) serve(ctx context.Context) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	api.SetupRoutes(router, api.NewHandler(a.db, a.scheduler, a.logger))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.cfg.APIPort),
		Handler: router,
	}

	a.scheduler.Start(ctx)
	defer a.scheduler.Stop()

	go func() {
		a.logger.Infof("Starting server on port %d", a.cfg.APIPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.WithError(err).Error("Server failed")
		}
	}()

	<-ctx.Done()
	a.logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Error("Server shutdown failed")
	}
}

func printStatus(ctx context.Context, db *database.Database) error {
	stats, err := db.Stats(ctx)
	if err != nil {
		return err
	}
	sessions, err := db.ListSessions(ctx, 10)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]interface{}{
		"stats":    stats,
		"sessions": sessions,
	})
}
