// Package store opens the rates.Store selected by configuration.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/JonMunkholm/vendorrates/internal/config"
	"github.com/JonMunkholm/vendorrates/internal/rates"
	"github.com/JonMunkholm/vendorrates/internal/store/memory"
	"github.com/JonMunkholm/vendorrates/internal/store/postgres"
	"github.com/JonMunkholm/vendorrates/internal/store/redisstore"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Open connects to the configured driver and verifies the connection.
func Open(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (rates.Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Driver {
	case config.DriverMemory:
		logger.Warn("using in-memory store; data is lost on restart")
		return memory.New(), nil
	case config.DriverPostgres:
		return openPostgres(ctx, cfg, logger)
	case config.DriverRedis:
		return openRedis(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

func openPostgres(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (rates.Store, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := postgres.New(pool, logger, cfg.ReconnectDelay)
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	if u, err := url.Parse(cfg.URL); err == nil {
		logger.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		logger.Info("connected to database")
	}
	return s, nil
}

func openRedis(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (rates.Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.RedisAddr, err)
	}

	logger.Info("connected to redis", "addr", cfg.RedisAddr, "db", cfg.RedisDB)
	return redisstore.New(client, logger, cfg.ReconnectDelay), nil
}
