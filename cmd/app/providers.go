package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/valkey-io/valkey-go"

	"github.com/efficiencynow/efficiencynow/internal/bootstrap"
	"github.com/efficiencynow/efficiencynow/internal/domain/auth"
	"github.com/efficiencynow/efficiencynow/internal/infra/config"
	"github.com/efficiencynow/efficiencynow/internal/infra/credential"
	"github.com/efficiencynow/efficiencynow/internal/infra/sessionstore"
	"github.com/efficiencynow/efficiencynow/internal/infra/userrepo"
)

// provideUserRepository connects to Postgres when a DSN is configured. An
// unreachable database is fatal because the user index is loaded from it.
func provideUserRepository(cfg *config.Config, logger *slog.Logger) (auth.Repository, func(), error) {
	dsn := strings.TrimSpace(cfg.Postgres.DSN)
	if dsn == "" {
		logger.Warn("postgres dsn not set, using memory repository")
		return userrepo.NewMemoryRepository(), func() {}, nil
	}
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.Postgres.MaxConns > 0 {
		poolConfig.MaxConns = cfg.Postgres.MaxConns
	}
	if cfg.Postgres.MinConns > 0 {
		poolConfig.MinConns = cfg.Postgres.MinConns
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("create postgres pool: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping postgres: %w", err)
	}
	if cfg.Postgres.Migrate {
		if err := userrepo.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
	}
	logger.Info("postgres user repository enabled")
	return userrepo.NewPostgresRepository(pool), pool.Close, nil
}

func provideUserIndex(cfg *config.Config, repo auth.Repository, logger *slog.Logger) (*auth.UserIndex, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Auth.LoadTimeout)
	defer cancel()
	return bootstrap.LoadUserIndex(ctx, repo, logger)
}

func provideCredentialHasher(cfg *config.Config) auth.CredentialHasher {
	return credential.NewBcryptHasher(cfg.Auth.BcryptCost)
}

func provideSessionStore(cfg *config.Config, logger *slog.Logger) (auth.SessionStore, func()) {
	fallback := func() (auth.SessionStore, func()) {
		return sessionstore.NewMemoryStore(cfg.Auth.SessionShards, cfg.Auth.SessionTTL), func() {}
	}
	if !cfg.Valkey.Enabled {
		return fallback()
	}
	opt, err := buildValkeyOptions(cfg)
	if err != nil {
		logger.Error("invalid valkey configuration, falling back to memory store", "error", err)
		return fallback()
	}
	client, err := valkey.NewClient(opt)
	if err != nil {
		logger.Error("failed to create valkey client, falling back to memory store", "error", err)
		return fallback()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		logger.Error("valkey ping failed, falling back to memory store", "error", err)
		client.Close()
		return fallback()
	}
	logger.Info("valkey session store enabled", "addr", cfg.Valkey.Addr)
	return sessionstore.NewValkeyStore(client, cfg.Valkey.Prefix, cfg.Auth.SessionTTL, logger), client.Close
}

func buildValkeyOptions(cfg *config.Config) (valkey.ClientOption, error) {
	if strings.Contains(cfg.Valkey.Addr, "://") {
		return valkey.ParseURL(cfg.Valkey.Addr)
	}
	return valkey.ClientOption{InitAddress: []string{cfg.Valkey.Addr}}, nil
}
