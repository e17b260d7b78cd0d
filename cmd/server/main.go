package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/broadcast-mailer/internal/api"
	"github.com/ignite/broadcast-mailer/internal/config"
	"github.com/ignite/broadcast-mailer/internal/notify"
	"github.com/ignite/broadcast-mailer/internal/pkg/logger"
	"github.com/ignite/broadcast-mailer/internal/repository/postgres"
	"github.com/ignite/broadcast-mailer/internal/service/command"
)

func main() {
	if err := run(); err != nil {
		logger.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadFromEnv(configPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.SetLevel(logger.ParseLevel(cfg.Log.Level))
	logger.SetRedactPII(cfg.Log.Redact())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	db, err := postgres.Open(openCtx, cfg.Database)
	cancel()
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("database connected", "max_open_conns", cfg.Database.MaxOpenConns)

	redisClient := connectRedis(ctx, cfg.Redis.URL)
	if redisClient != nil {
		defer redisClient.Close()
	}

	engine := command.New(
		postgres.NewStore(db),
		notify.NewPublisher(redisClient, db, cfg.Mailing.NotifyChannel),
		command.Config{
			DefaultFrom:      cfg.Mailing.DefaultFrom,
			SignupSubscribed: cfg.Mailing.SignupSubscribed,
			SearchLimit:      cfg.Mailing.SearchLimit,
		},
	)

	handlers := api.NewHandlers(engine, api.Options{
		LinkHosts:      cfg.Mailing.LinkHosts,
		RequireConsent: cfg.Mailing.ConsentRequired(),
	})
	addr := fmt.Sprintf("%s:%d", cfg.Server.GetHost(), cfg.Server.Port)
	server := api.NewServer(cfg.Server, addr, handlers, api.NewHealthChecker(db, redisClient))

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", server.Addr())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout())
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

func configPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "config/config.yaml"
}

// connectRedis returns nil when no Redis is configured or it is
// unreachable; the delivery signal then falls back to Postgres NOTIFY.
func connectRedis(ctx context.Context, url string) *redis.Client {
	client, err := notify.DialRedis(ctx, url)
	switch {
	case err != nil:
		logger.Warn("redis unreachable, falling back to postgres notify", "err", err)
	case client == nil:
		logger.Info("redis not configured, broadcast signal uses postgres notify")
	default:
		logger.Info("redis connected", "addr", client.Options().Addr)
	}
	return client
}
