package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ignite/broadcast-mailer/internal/config"
	"github.com/ignite/broadcast-mailer/internal/notify"
	"github.com/ignite/broadcast-mailer/internal/pkg/distlock"
	"github.com/ignite/broadcast-mailer/internal/pkg/logger"
	"github.com/ignite/broadcast-mailer/internal/repository/postgres"
)

func main() {
	dir := "migrations"
	listOnly := false
	for _, a := range os.Args[1:] {
		if a == "--list" {
			listOnly = true
		} else {
			dir = a
		}
	}

	cfg, err := config.LoadFromEnv(os.Getenv("CONFIG_PATH"))
	if err != nil {
		fatal("load config", err)
	}
	logger.SetLevel(logger.ParseLevel(cfg.Log.Level))

	ctx := context.Background()
	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		fatal("connect", err)
	}
	defer db.Close()
	logger.Info("connected to database")

	if listOnly {
		tables, err := postgres.Tables(ctx, db)
		if err != nil {
			fatal("list tables", err)
		}
		for _, t := range tables {
			fmt.Println(" ", t)
		}
		fmt.Printf("Total: %d tables\n", len(tables))
		return
	}

	redisClient, err := notify.DialRedis(ctx, cfg.Redis.URL)
	if err != nil {
		logger.Warn("redis unreachable, locking with postgres advisory lock", "err", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	var applied int
	lock := distlock.NewLock(redisClient, db, "migrate", 10*time.Minute)
	err = distlock.WithLock(ctx, lock, func() error {
		var err error
		applied, err = postgres.Migrate(ctx, db, dir)
		return err
	})
	if err != nil {
		logger.Error("migration failed", "applied", applied, "err", err)
		db.Close()
		os.Exit(1)
	}
	logger.Info("migrations complete", "applied", applied)
}

func fatal(msg string, err error) {
	logger.Error(msg, "err", err)
	os.Exit(1)
}
