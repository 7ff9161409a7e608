package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/iwvelando/leverage-forecast/internal/config"
	"github.com/iwvelando/leverage-forecast/internal/metrics"
	"github.com/iwvelando/leverage-forecast/internal/position"
	"github.com/iwvelando/leverage-forecast/internal/price"
	"github.com/iwvelando/leverage-forecast/internal/server"
	"github.com/iwvelando/leverage-forecast/pkg/constants"
	"github.com/iwvelando/leverage-forecast/pkg/validation"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// initializeLogger creates a zap logger based on configuration and CLI override
func initializeLogger(loggingConfig config.LoggingConfig, logLevelOverride string) (*zap.Logger, error) {
	// CLI override takes precedence
	level := loggingConfig.Level
	if logLevelOverride != "" {
		level = logLevelOverride
	}
	zapLevel, err := validation.ParseLogLevel(level)
	if err != nil {
		return nil, err
	}

	format := loggingConfig.Format
	if err := validation.ValidateLogFormat(format); err != nil {
		return nil, err
	}

	var zapConfig zap.Config
	if format == validation.LogFormatConsole {
		zapConfig = zap.NewDevelopmentConfig()
	} else {
		zapConfig = zap.NewProductionConfig()
	}
	zapConfig.Level = zap.NewAtomicLevelAt(zapLevel)

	if loggingConfig.OutputFile != "" {
		if dir := filepath.Dir(loggingConfig.OutputFile); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create log directory %s: %v", dir, err)
			}
		}

		// Fail early if the file cannot be written
		file, err := os.OpenFile(loggingConfig.OutputFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %v", loggingConfig.OutputFile, err)
		}
		_ = file.Close()

		zapConfig.OutputPaths = []string{loggingConfig.OutputFile}
		zapConfig.ErrorOutputPaths = []string{loggingConfig.OutputFile}
	}

	return zapConfig.Build()
}

// loadConfiguration reads path. An empty path uses config.yaml when present
// and the built-in defaults otherwise.
func loadConfiguration(path string) (*config.Configuration, error) {
	if path == "" {
		if _, err := os.Stat(constants.DefaultConfigFile); errors.Is(err, os.ErrNotExist) {
			return config.Default()
		}
		path = constants.DefaultConfigFile
	}
	return config.LoadConfiguration(path)
}

// newPriceResolver builds the configured price source behind retries and a
// cache. The candle source is returned when the source serves candles.
func newPriceResolver(conf config.PriceConfig, logger *zap.Logger) (*price.Resolver, server.CandleSource, error) {
	timeout := time.Duration(conf.TimeoutSeconds) * time.Second
	client := price.NewHTTPClient(timeout)

	var source price.Source
	var candles server.CandleSource
	switch strings.ToLower(conf.Source) {
	case "", price.CoinGeckoName:
		source = price.NewCoinGecko(conf.CoinGeckoURL, client, logger)
		// Candles are always read from the klines API.
		candles = price.NewKlines(conf.KlinesURL, client, logger)
	case price.KlinesName:
		klines := price.NewKlines(conf.KlinesURL, client, logger)
		source = klines
		candles = klines
	default:
		return nil, nil, fmt.Errorf("unknown price source %q", conf.Source)
	}

	resolver, err := price.NewResolver(
		price.NewRetrying(source, conf.Retries, timeout, logger),
		price.ResolverOptions{
			TTL:           time.Duration(conf.CacheSeconds) * time.Second,
			Size:          constants.PriceCacheSize,
			FallbackPrice: conf.FallbackPrice,
		},
		logger,
	)
	if err != nil {
		return nil, nil, err
	}
	return resolver, candles, nil
}

func main() {
	configLocation := flag.String("config", "", "path to configuration file (default config.yaml when present)")
	serverConfigLocation := flag.String("server-config", constants.DefaultServerConfigFile, "path to server configuration file")
	logLevel := flag.String("log-level", "", "log level override (debug, info, warn, error)")
	address := flag.String("address", "", "listen address override, e.g. :8080")
	showVersion := flag.Bool("version", false, "print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}

	// A missing .env file is expected outside development.
	envErr := godotenv.Load()

	conf, err := loadConfiguration(*configLocation)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to load configuration at %s\", \"error\": \"%v\"}\n", *configLocation, err)
		os.Exit(1)
	}

	serverConf, err := server.LoadConfig(*serverConfigLocation)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to load server configuration at %s\", \"error\": \"%v\"}\n", *serverConfigLocation, err)
		os.Exit(1)
	}

	// Server logging settings override the forecast configuration.
	loggingConfig := conf.Logging
	if serverConf.Logging.Level != "" {
		loggingConfig.Level = serverConf.Logging.Level
	}
	if serverConf.Logging.Format != "" {
		loggingConfig.Format = serverConf.Logging.Format
	}
	if serverConf.Logging.OutputFile != "" {
		loggingConfig.OutputFile = serverConf.Logging.OutputFile
	}

	logger, err := initializeLogger(loggingConfig, *logLevel)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to initialize logger\", \"error\": \"%v\"}\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	if envErr != nil {
		logger.Debug(".env file not loaded; using process environment",
			zap.String("op", "main"),
			zap.Error(envErr),
		)
	}

	for _, warning := range conf.ValidateConfiguration() {
		logger.Warn("Configuration warning: "+warning,
			zap.String("op", "main"),
		)
	}

	resolver, candles, err := newPriceResolver(conf.Price, logger)
	if err != nil {
		logger.Fatal("failed to build price source",
			zap.String("op", "main"),
			zap.Error(err),
		)
	}

	var positions position.Source
	if conf.Position.URLTemplate != "" {
		positions = position.NewHTTPSource(conf.Position.URLTemplate, nil)
	}

	handler, err := server.NewHandler(server.Options{
		Logger:        logger,
		MaxUploadSize: serverConf.UploadSizeBytes(),
		Version:       version,
		Config:        conf,
		Prices:        resolver,
		Positions:     positions,
		Candles:       candles,
		Registry:      metrics.Init(logger),
	})
	if err != nil {
		logger.Fatal("failed to build HTTP handler",
			zap.String("op", "main"),
			zap.Error(err),
		)
	}

	listen := serverConf.Address
	if *address != "" {
		listen = *address
	}
	timeouts := serverConf.Timeouts()
	srv := &http.Server{
		Addr:              listen,
		Handler:           handler,
		ReadHeaderTimeout: timeouts.Read,
		ReadTimeout:       timeouts.Read,
		WriteTimeout:      timeouts.Write,
		IdleTimeout:       timeouts.Idle,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting web server",
			zap.String("op", "main"),
			zap.String("address", listen),
			zap.String("version", version),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			logger.Fatal("web server failed",
				zap.String("op", "main"),
				zap.Error(err),
			)
		}
	case <-ctx.Done():
		logger.Info("shutting down web server", zap.String("op", "main"))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed",
				zap.String("op", "main"),
				zap.Error(err),
			)
		}
	}
}
