package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"radio-engine/internal/broadcast"
	"radio-engine/internal/platform/config"
	"radio-engine/internal/platform/logger"
	"radio-engine/internal/platform/metrics"

	"github.com/go-chi/chi/v5"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = config.Load()

	port := config.GetEnv("PORT", "8080")
	windowHours := config.GetEnvInt("WINDOW_HOURS", broadcast.DefaultWindowHours)
	blockMinutes := config.GetEnvInt("BLOCK_MINUTES", broadcast.DefaultBlockMinutes)
	sessionTTL := config.GetEnvDuration("SESSION_TTL", broadcast.DefaultSessionTTL)
	generateTimeout := config.GetEnvDuration("GENERATE_TIMEOUT", broadcast.DefaultGenerateTimeout)
	logLevel := config.GetEnv("LOG_LEVEL", "info")
	logFormat := config.GetEnv("LOG_FORMAT", "json")

	log := logger.New(logLevel, logFormat)

	var backend broadcast.SessionBackend
	if addr := config.GetEnv("REDIS_ADDR", ""); addr != "" {
		rb, err := broadcast.NewRedisBackend(
			addr,
			config.GetEnv("REDIS_PASSWORD", ""),
			config.GetEnvInt("REDIS_DB", 0),
			config.GetEnv("SESSION_KEY", broadcast.DefaultSessionKey),
			2*sessionTTL,
		)
		if err != nil {
			log.Error("redis connection failed", "error", err)
			os.Exit(1)
		}
		defer rb.Close()
		backend = rb
		log.Info("using redis session backend", "addr", addr)
	} else {
		backend = broadcast.NewMemoryBackend()
		log.Info("using in-memory session backend")
	}

	// Provider integrations (LLM content generation, music catalog, speech
	// synthesis, calendar) plug in here; without them the engine runs fully
	// rule-based on the known-good track pools.
	tracks := broadcast.StaticTrackPool{}

	store := broadcast.NewSessionStore(backend, sessionTTL, log)
	resolver := broadcast.NewResolver(nil, generateTimeout, log)
	assembler := broadcast.NewAssembler(tracks, nil, broadcast.ExploreBalanced, log)
	scheduler := broadcast.NewScheduler(resolver, assembler, log)
	met := metrics.New()

	svc := broadcast.NewService(broadcast.ServiceConfig{
		Store:        store,
		Scheduler:    scheduler,
		Tracks:       tracks,
		WindowHours:  windowHours,
		BlockMinutes: blockMinutes,
		Metrics:      met,
		Log:          log,
	})
	h := broadcast.NewHandler(svc, log, met)

	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		met.Handler(func() { met.SetSessionBlocks(svc.SessionBlockCount(r.Context())) }).ServeHTTP(w, r)
	})
	r.Route("/broadcast", func(r chi.Router) {
		r.Get("/live", h.Live)
		r.Get("/upnext", h.UpNext)
		r.Get("/schedule", h.Schedule)
		r.Post("/regenerate", h.Regenerate)
		r.Post("/shuffle", h.Shuffle)
	})

	addr := ":" + port
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("server starting",
		"port", port,
		"window_hours", windowHours,
		"block_minutes", blockMinutes,
		"session_ttl", sessionTTL.String(),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, draining connections")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}
