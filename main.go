package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog/log"

	"github.com/kwv/countyatlas/geo"
)

// Version is set at build time via -ldflags
var Version = "dev"

// Options holds all command line flags.
type Options struct {
	Logger LoggerOptions `group:"Logger options"`

	ConfigFile string `short:"c" long:"config" env:"CONFIG_FILE"    description:"Path to configuration file" default:""`
	Addr       string `short:"a" long:"addr"   env:"LISTEN_ADDRESS" description:"Address to listen on"`
	Port       int    `short:"p" long:"port"   env:"LISTEN_PORT"    description:"Port to listen on"`

	Serve   bool `long:"serve"   description:"Run the county map HTTP service"`
	Version bool `long:"version" description:"Print version and exit"`

	Optimize OptimizeOptions `group:"Optimizer options"`
}

func main() {
	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	opts.Logger.Setup()

	if opts.Version {
		fmt.Printf("countyatlas version: %s\n", Version)
		return
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if opts.Optimize.Input != "" {
		if err := runOptimize(opts.Optimize); err != nil {
			log.Fatal().Err(err).Msg("Optimization failed")
		}
		return
	}

	if opts.Serve {
		runService(cfg)
		return
	}

	fmt.Printf("countyatlas version: %s\n", Version)
	fmt.Println("Use --serve to run the county map HTTP service")
	fmt.Println("Use --optimize FILE to pre-generate detail levels from a source GeoJSON")
}

// loadConfig resolves the effective configuration. CLI flags override the
// file; no file means built-in defaults.
func loadConfig(opts Options) (*geo.Config, error) {
	cfg := geo.DefaultConfig()
	if opts.ConfigFile != "" {
		loaded, err := geo.LoadConfig(opts.ConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
		log.Info().Str("path", opts.ConfigFile).Msg("Loaded configuration")
	}

	if opts.Addr != "" {
		cfg.Server.Host = opts.Addr
	}
	if opts.Port != 0 {
		cfg.Server.Port = opts.Port
	}
	return cfg, cfg.Validate()
}

// runService starts the HTTP service and blocks until interrupted.
func runService(cfg *geo.Config) {
	app, err := NewApp(cfg, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize service")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := app.Preload(ctx); err != nil {
		log.Warn().Err(err).Msg("Preload incomplete; levels load on demand")
	}

	handler := RequestLogger(app.Routes())
	listenAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{Addr: listenAddr, Handler: handler}

	go func() {
		log.Info().
			Str("addr", listenAddr).
			Str("projection", cfg.Map.Projection).
			Msg("Web server started")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("Shutting down service")
	if err := server.Shutdown(context.Background()); err != nil {
		log.Error().Err(err).Msg("Shutdown error")
	}
}
