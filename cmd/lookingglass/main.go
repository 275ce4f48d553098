package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/akamensky/argparse"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"lookingglass/handlers"
	"lookingglass/pkg/cache"
	"lookingglass/pkg/config"
	"lookingglass/pkg/mirror"
)

func main() {
	parser := argparse.NewParser("lookingglass", "Mirrors a web page and rewrites its resource references so it renders from this origin")
	port := parser.Int("p", "port", &argparse.Options{Help: "Port to listen on"})
	configPath := parser.String("c", "config", &argparse.Options{Help: "Path to YAML config file"})
	verbose := parser.Flag("v", "verbose", &argparse.Options{Help: "Enable debug logging"})
	if err := parser.Parse(os.Args); err != nil {
		fmt.Fprint(os.Stderr, parser.Usage(err))
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "lookingglass: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *verbose {
		cfg.Log.Level = "debug"
	}

	log := newLogger(cfg.Log)

	gw, err := newCache(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("initializing cache")
	}

	eng := mirror.New(mirror.Config{
		UserAgent:       cfg.UserAgent,
		Timeout:         time.Duration(cfg.TimeoutSeconds) * time.Second,
		MaxBodyBytes:    cfg.MaxBodyBytes,
		UpgradeInsecure: cfg.UpgradeInsecure,
		AllowedDomains:  cfg.AllowedDomains,
		Cache:           gw,
		Logger:          log,
	})

	app := handlers.NewApp(eng, log)
	log.Info().Int("port", cfg.Port).Str("cache", cfg.Cache.Backend).Msg("listening")
	if err := app.Listen(fmt.Sprintf(":%d", cfg.Port)); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func newLogger(cfg config.LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	var w io.Writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	if cfg.File != "" {
		w = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    50, // megabytes
			MaxBackups: 3,
		}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

func newCache(cfg *config.Config, log zerolog.Logger) (cache.Gateway, error) {
	ttl := time.Duration(cfg.Cache.TTLSeconds) * time.Second
	switch cfg.Cache.Backend {
	case "", "memory":
		return cache.NewMemory(ttl), nil
	case "sqlite":
		return cache.OpenSQLite(cfg.Cache.Path, ttl, log)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
}
