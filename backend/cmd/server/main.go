package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/user/papertrade/backend/internal/auth"
	"github.com/user/papertrade/backend/internal/config"
	"github.com/user/papertrade/backend/internal/database"
	"github.com/user/papertrade/backend/internal/database/memstore"
	"github.com/user/papertrade/backend/internal/handlers"
	"github.com/user/papertrade/backend/internal/ledger"
	"github.com/user/papertrade/backend/internal/logger"
	"github.com/user/papertrade/backend/internal/quote"
	internalws "github.com/user/papertrade/backend/internal/websocket"
)

// stores is what both storage backends provide.
type stores interface {
	ledger.Store
	auth.UserStore
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Development())
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("Server stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	hub := internalws.NewHub(log)
	go hub.Run(ctx)

	quotes, closeQuotes, err := openQuotes(ctx, cfg, hub, log)
	if err != nil {
		return err
	}
	defer closeQuotes()

	engine := ledger.NewEngine(store, quotes, log)
	accounts := auth.NewService(store, cfg.Ledger.StartingCash, log)
	tokens := auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	app := fiber.New(fiber.Config{
		AppName:               "papertrade",
		DisableStartupMessage: !cfg.Development(),
	})
	app.Use(logger.Requests(log))
	handlers.New(engine, accounts, tokens, hub, log).Routes(app)

	errCh := make(chan error, 1)
	go func() {
		log.Info("Starting server", zap.String("port", cfg.Server.Port), zap.String("env", cfg.Server.Env))
		errCh <- app.Listen(":" + cfg.Server.Port)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return app.ShutdownWithContext(shutdownCtx)
}

func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (stores, func(), error) {
	if cfg.Database.Storage == config.StorageMemory {
		log.Warn("Using in-memory storage, data is lost on exit")
		return memstore.New(), func() {}, nil
	}

	pool, err := database.Connect(ctx, cfg.Database.URL, log)
	if err != nil {
		return nil, nil, err
	}
	if err := database.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return database.New(pool), pool.Close, nil
}

// openQuotes picks the live provider when an API key is configured and the
// simulated market otherwise, optionally behind the redis cache.
func openQuotes(ctx context.Context, cfg *config.Config, hub *internalws.Hub, log *zap.Logger) (quote.Provider, func(), error) {
	var provider quote.Provider
	if cfg.Quote.APIKey != "" {
		provider = quote.NewHTTPProvider(cfg.Quote.BaseURL, cfg.Quote.APIKey, cfg.Quote.Timeout)
		log.Info("Using live quotes", zap.String("base_url", cfg.Quote.BaseURL))
	} else {
		sim := quote.NewSimulated(quote.DefaultListings, log)
		go sim.Run(ctx, cfg.Quote.TickInterval)
		go hub.ForwardPrices(ctx, sim.Updates)
		provider = sim
		log.Warn("QUOTE_API_KEY not set, using simulated quotes")
	}

	if cfg.Quote.RedisURL == "" || cfg.Quote.CacheTTL <= 0 {
		return provider, func() {}, nil
	}

	client, err := quote.ConnectRedis(ctx, cfg.Quote.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	log.Info("Caching quotes in redis", zap.Duration("ttl", cfg.Quote.CacheTTL))
	return quote.NewCached(provider, client, cfg.Quote.CacheTTL, log), func() { client.Close() }, nil
}
