package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dbehnke/sir-codec/pkg/capture"
	"github.com/dbehnke/sir-codec/pkg/config"
	"github.com/dbehnke/sir-codec/pkg/database"
	"github.com/dbehnke/sir-codec/pkg/ircode"
	"github.com/dbehnke/sir-codec/pkg/learner"
	"github.com/dbehnke/sir-codec/pkg/library"
	"github.com/dbehnke/sir-codec/pkg/logger"
	"github.com/dbehnke/sir-codec/pkg/metrics"
	"github.com/dbehnke/sir-codec/pkg/web"
)

var (
	version   = "dev"
	gitCommit = "unknown"
	buildTime = "unknown"
)

func main() {
	// Parse command line flags
	configFile := flag.String("config", "config.yaml", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	validate := flag.Bool("validate", false, "Validate configuration and exit")
	listPorts := flag.Bool("ports", false, "List serial ports and exit")
	flag.Parse()

	// Show version
	if *showVersion {
		fmt.Printf("sir-codec %s\n", version)
		fmt.Printf("Git Commit: %s\n", gitCommit)
		fmt.Printf("Built: %s\n", buildTime)
		os.Exit(0)
	}

	// Initialize basic logger for startup
	log := logger.New(logger.Config{
		Level:  "info",
		Format: "text",
	})

	if *listPorts {
		ports, err := learner.Ports()
		if err != nil {
			log.Error("Failed to list serial ports", logger.Error(err))
			os.Exit(1)
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		os.Exit(0)
	}

	log.Info("Starting sir-codec",
		logger.String("version", version),
		logger.String("commit", gitCommit),
		logger.String("build_time", buildTime))

	// Load configuration
	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Error("Failed to load configuration", logger.Error(err))
		os.Exit(1)
	}

	// Validate only mode
	if *validate {
		log.Info("Configuration is valid")
		os.Exit(0)
	}

	// Reinitialize logger with config settings
	log = logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	log.Info("Configuration loaded successfully",
		logger.String("config_file", *configFile))
	log.Debug("Debug logging enabled")

	web.SetBuildInfo(web.BuildInfo{Version: version, Commit: gitCommit, BuildTime: buildTime})

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Initialize wait group for goroutines
	var wg sync.WaitGroup

	// Initialize metrics collector
	metricsCollector := metrics.NewCollector()

	// Start Prometheus metrics server if enabled
	if cfg.Metrics.Enabled && cfg.Metrics.Prometheus.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			metricsServer := metrics.NewPrometheusServer(
				metrics.PrometheusConfig{
					Enabled: cfg.Metrics.Prometheus.Enabled,
					Port:    cfg.Metrics.Prometheus.Port,
					Path:    cfg.Metrics.Prometheus.Path,
				},
				metricsCollector,
				log.WithComponent("metrics"),
			)
			if err := metricsServer.Start(ctx); err != nil && err != context.Canceled {
				log.Error("Prometheus metrics server error", logger.Error(err))
			}
		}()
		log.Info("Prometheus metrics server started",
			logger.Int("port", cfg.Metrics.Prometheus.Port),
			logger.String("path", cfg.Metrics.Prometheus.Path))
	}

	// Open the command library
	var db *database.DB
	if cfg.Database.Enabled {
		db, err = database.NewDB(database.Config{Path: cfg.Database.Path}, log.WithComponent("database"))
		if err != nil {
			log.Error("Failed to open database", logger.Error(err))
			os.Exit(1)
		}
		defer func() {
			if err := db.Close(); err != nil {
				log.Error("Failed to close database", logger.Error(err))
			}
		}()
		log.Info("Command library opened", logger.String("path", cfg.Database.Path))

		wg.Add(1)
		go func() {
			defer wg.Done()
			db.RunRetention(ctx, cfg.Database.CaptureRetention, time.Hour)
		}()

		if cfg.Database.Sync.URL != "" {
			syncer := library.NewSyncer(cfg.Database.Sync.URL, cfg.Database.Sync.Interval, db.Commands(), log)
			wg.Add(1)
			go func() {
				defer wg.Done()
				syncer.Start(ctx)
			}()
		}
	}

	codec := ircode.New(ircode.WithLogger(log), ircode.WithMetrics(metricsCollector))

	// Web server
	deps := web.Deps{
		Codec:     codec,
		Collector: metricsCollector,
		Defaults:  cfg.Codec,
	}
	if db != nil {
		deps.Commands = db.Commands()
		deps.Captures = db.Captures()
	}
	webServer := web.NewServer(cfg.Web, deps, log)

	// Learner
	if cfg.Learner.Enabled {
		if err := startLearner(ctx, &wg, cfg, db, codec, metricsCollector, webServer, log); err != nil {
			log.Error("Failed to set up learner", logger.Error(err))
			os.Exit(1)
		}
	}

	if cfg.Web.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := webServer.Start(ctx); err != nil && err != context.Canceled {
				log.Error("Web server error", logger.Error(err))
			}
		}()
		log.Info("Web server started",
			logger.String("host", cfg.Web.Host),
			logger.Int("port", cfg.Web.Port))
	}

	log.Info("sir-codec initialized",
		logger.Bool("learner", cfg.Learner.Enabled),
		logger.Bool("web", cfg.Web.Enabled),
		logger.Bool("database", cfg.Database.Enabled))

	// Wait for shutdown signal
	sig := <-sigChan
	log.Info("Received shutdown signal",
		logger.String("signal", sig.String()))

	// Cancel context to trigger graceful shutdown
	cancel()

	// Wait for all components to stop
	wg.Wait()

	log.Info("sir-codec stopped")
}

// startLearner wires the serial learner to the capture processor and starts
// it. The learner reconnects after a failure until ctx is cancelled.
func startLearner(ctx context.Context, wg *sync.WaitGroup, cfg *config.Config, db *database.DB,
	codec *ircode.Codec, collector *metrics.Collector, webServer *web.Server, log *logger.Logger) error {

	opts := []capture.Option{}
	if db != nil {
		opts = append(opts, capture.WithCaptureLog(db.Captures()))
		if cfg.Learner.AutoConvert {
			opts = append(opts, capture.WithLibrary(db.Commands()))
		}
	}
	if cfg.Web.Enabled {
		opts = append(opts, capture.WithBroadcaster(webServer.GetHub()))
	}

	processor, err := capture.NewProcessor(capture.Config{
		PauseThreshold: cfg.Codec.PauseThreshold,
		MaxFrames:      cfg.Codec.MaxFrames,
		Normalize:      cfg.Codec.Normalize,
		CodeType:       ircode.CodeType(cfg.Codec.CodeType),
		Repeat:         cfg.Codec.Repeat,
		Channel:        cfg.Codec.Channel,
		AutoConvert:    cfg.Learner.AutoConvert,
		TagPrefix:      cfg.Learner.TagPrefix,
	}, codec, log, opts...)
	if err != nil {
		return err
	}

	l := learner.New(learner.Config{
		PortPath:    cfg.Learner.PortPath,
		BaudRate:    cfg.Learner.BaudRate,
		ReadTimeout: time.Duration(cfg.Learner.ReadTimeoutMS) * time.Millisecond,
	}, collector, log)

	l.OnCapture(func(raw string) {
		if _, err := processor.Handle(raw); err != nil {
			log.Warn("Capture not converted", logger.Error(err))
		}
	})
	if cfg.Web.Enabled {
		hub := webServer.GetHub()
		l.OnStateChange(hub.BroadcastLearnerState)
	}
	webServer.GetAPI().SetLearner(l)

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			err := l.Start(ctx)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				log.Error("Learner error", logger.Error(err))
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
				log.Info("Reconnecting to learner", logger.String("port", cfg.Learner.PortPath))
			}
		}
	}()
	log.Info("Learner started",
		logger.String("port", cfg.Learner.PortPath),
		logger.Bool("auto_convert", cfg.Learner.AutoConvert))
	return nil
}
