package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alejandrodnm/neuroarena/config"
	"github.com/alejandrodnm/neuroarena/internal/adapters/binance"
	"github.com/alejandrodnm/neuroarena/internal/adapters/notify"
	"github.com/alejandrodnm/neuroarena/internal/adapters/openrouter"
	"github.com/alejandrodnm/neuroarena/internal/adapters/storage"
	"github.com/alejandrodnm/neuroarena/internal/engine"
	"github.com/alejandrodnm/neuroarena/internal/observability"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	fresh := flag.Bool("fresh", false, "ignore the saved snapshot and start a new competition")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	slog.Info("neuroarena starting",
		"config", *configPath,
		"symbol", cfg.Arena.Symbol,
		"agents", len(cfg.Agents),
		"session", cfg.SessionDuration(),
		"fresh", *fresh,
	)

	oracle, err := openrouter.NewClient(openrouter.Config{
		BaseURL: cfg.OpenRouter.BaseURL,
		APIKey:  cfg.OpenRouter.APIKey,
		Model:   cfg.OpenRouter.Model,
		Title:   "NeuroArena",
	})
	if err != nil {
		slog.Error("failed to create oracle client", "err", err)
		os.Exit(1)
	}

	store, err := storage.NewSQLiteStore(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	feed := binance.NewFeed(binance.Config{
		URL:    cfg.Feed.URL,
		Symbol: cfg.Arena.Symbol,
	})

	eng := engine.New(
		buildParams(cfg),
		buildRoster(cfg),
		feed,
		oracle,
		notify.NewConsole(),
		store,
		observability.NewMetrics(""),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if !*fresh {
		blob, err := store.LoadSnapshot(ctx)
		if err != nil {
			slog.Error("failed to load snapshot", "err", err)
			os.Exit(1)
		}
		if blob != nil {
			if err := eng.Restore(blob); err != nil {
				slog.Error("failed to restore snapshot", "err", err)
				os.Exit(1)
			}
			slog.Info("competition state restored")
		}
	}

	srv := serveHTTP(cfg.Metrics.Addr, eng)
	defer func() {
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		srv.Shutdown(shutdownCtx)
	}()

	if err := eng.Run(ctx); err != nil {
		slog.Error("engine exited with error", "err", err)
		os.Exit(1)
	}

	slog.Info("neuroarena stopped cleanly")
}

// serveHTTP exposes metrics and the operator endpoints.
func serveHTTP(addr string, eng *engine.Engine) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())

	mux.HandleFunc("POST /refinance", func(w http.ResponseWriter, r *http.Request) {
		agent := r.URL.Query().Get("agent")
		if agent == "" {
			http.Error(w, "missing agent parameter", http.StatusBadRequest)
			return
		}
		if err := eng.Refinance(r.Context(), agent); err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET /snapshot", func(w http.ResponseWriter, r *http.Request) {
		blob, err := eng.Snapshot(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(blob)
	})

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		slog.Info("http listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "err", err)
		}
	}()
	return srv
}

func buildParams(cfg *config.Config) engine.Params {
	p := engine.DefaultParams()
	p.Symbol = cfg.Arena.Symbol
	p.InitialBalance = cfg.Arena.InitialBalance
	p.RestartBalance = cfg.Arena.InitialBalance
	p.EliminationFloor = cfg.Arena.EliminationFloor
	p.ActiveSeconds = cfg.Arena.ActiveSeconds
	p.DiscussionSeconds = cfg.Arena.DiscussionSeconds
	p.DecisionInterval = cfg.Arena.DecisionIntervalSecs
	p.SessionSeconds = int(cfg.SessionDuration().Seconds())
	p.MaxHolding = cfg.MaxHolding()
	return p
}

func buildRoster(cfg *config.Config) []engine.AgentSpec {
	specs := make([]engine.AgentSpec, 0, len(cfg.Agents))
	for _, a := range cfg.Agents {
		specs = append(specs, engine.AgentSpec{
			ID:               a.ID,
			Name:             a.Name,
			Style:            a.Style,
			Model:            a.Model,
			DecisionInterval: a.DecisionInterval,
			InitialCountdown: a.InitialCountdown,
		})
	}
	return specs
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
