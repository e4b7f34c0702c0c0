package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"tictactoe/internal/adapter/dynamo"
	adapthttp "tictactoe/internal/adapter/http"
	"tictactoe/internal/adapter/memory"
	"tictactoe/internal/adapter/postgres"
	"tictactoe/internal/adapter/redis"
	"tictactoe/internal/app"
	"tictactoe/internal/domain"
	"tictactoe/internal/logger"
	"tictactoe/internal/notify"
)

const timeout = 10 * time.Second

type store interface {
	domain.UserRepository
	domain.SessionRepository
	domain.AuditLog
}

// openStore connects the configured backend. The returned func releases it.
func openStore(cfg *Config) (store, func() error, error) {
	nop := func() error { return nil }

	switch cfg.store {
	case storePostgres:
		db, err := postgres.Open(cfg.databaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres: %w", err)
		}
		return db, db.Close, nil
	case storeRedis:
		c, err := redis.New(cfg.redisAddr, cfg.redisPassword)
		if err != nil {
			return nil, nil, fmt.Errorf("redis: %w", err)
		}
		s := redis.NewStore(c)
		return s, s.Close, nil
	case storeDynamo:
		s, err := dynamo.Open(cfg.awsRegion, cfg.dynamoEndpoint, cfg.dynamoTable)
		if err != nil {
			return nil, nil, err
		}
		return s, nop, nil
	default:
		return memory.New(), nop, nil
	}
}

func serve(ctx context.Context, cfg *Config) error {
	logger.Init(cfg.verbose)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Error("store close failed", logger.Fields{"error": err})
		}
	}()

	bus := notify.New(cfg.subscriberBuffer)
	defer bus.Close()

	eng := app.New(st, st, bus, app.Options{
		TurnTimeout:  cfg.turnTimeout,
		StoreTimeout: cfg.storeTimeout,
		Audit:        st,
	})
	defer eng.Close()

	resumed, err := eng.Resume(ctx)
	if err != nil {
		return err
	}
	if resumed > 0 {
		logger.Info("turn timers resumed", logger.Fields{"games": resumed})
	}

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.bind, strconv.Itoa(cfg.port)),
		Handler:           adapthttp.New(eng, bus, cfg.publicURL).Handler(),
		IdleTimeout:       10 * time.Minute,
		ReadTimeout:       timeout,
		ReadHeaderTimeout: timeout,
	}

	errs := make(chan error, 1)
	go func() {
		logger.Info("tictactoe started", logger.Fields{
			"version":      releaseVersion,
			"addr":         srv.Addr,
			"store":        cfg.store,
			"turn_timeout": cfg.turnTimeout.String(),
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
		close(errs)
	}()

	select {
	case err := <-errs:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Closing the bus ends live streams so their handlers can return.
	eng.Close()
	bus.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	logger.Info("tictactoe stopped cleanly", nil)
	return nil
}
