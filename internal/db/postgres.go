package db

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"time"

	"yt-hotness/internal/config"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const (
	connectAttempts = 5
	connectBackoff  = 2 * time.Second
)

var (
	parsePoolConfig = pgxpool.ParseConfig
	newPool         = pgxpool.NewWithConfig
	pingPool        = func(ctx context.Context, pool *pgxpool.Pool) error {
		return pool.Ping(ctx)
	}
	sleepFunc = time.Sleep
)

// Connect opens the shared pgx pool using the TLS mode resolved in cfg and
// retries until the database answers a ping.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	if cfg.URL == "" {
		return nil, errors.New("database url is empty")
	}

	poolCfg, err := parsePoolConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	tlsCfg, err := TLSConfig(cfg, poolCfg.ConnConfig.Host)
	if err != nil {
		return nil, err
	}
	poolCfg.ConnConfig.TLSConfig = tlsCfg
	// sslmode=prefer fallbacks would silently downgrade to plaintext
	poolCfg.ConnConfig.Fallbacks = nil

	var pool *pgxpool.Pool
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		pool, err = newPool(ctx, poolCfg)
		if err == nil {
			err = pingPool(ctx, pool)
			if err == nil {
				zap.L().Info("connected to postgres", zap.String("mode", cfg.Mode))
				return pool, nil
			}
			pool.Close()
		}
		zap.L().Warn("postgres not ready", zap.Int("attempt", attempt), zap.Error(err))
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt < connectAttempts {
			sleepFunc(connectBackoff)
		}
	}
	return nil, fmt.Errorf("could not connect to Postgres after %d attempts: %w", connectAttempts, err)
}

// TLSConfig maps the configured mode to a client TLS config. A nil config
// means plaintext.
func TLSConfig(cfg config.DatabaseConfig, host string) (*tls.Config, error) {
	switch cfg.Mode {
	case config.DBModeDisable:
		return nil, nil
	case config.DBModePooled:
		// poolers present publicly trusted certificates
		return &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}, nil
	case config.DBModeDirect:
		if cfg.CACert != "" {
			roots := x509.NewCertPool()
			if !roots.AppendCertsFromPEM([]byte(cfg.CACert)) {
				return nil, errors.New("database CA certificate is not valid PEM")
			}
			return &tls.Config{ServerName: host, RootCAs: roots, MinVersion: tls.VersionTLS12}, nil
		}
		if cfg.Insecure {
			zap.L().Warn("database TLS verification disabled")
			return &tls.Config{ServerName: host, InsecureSkipVerify: true}, nil
		}
		return nil, errors.New("direct database mode requires a CA certificate or explicit insecure mode")
	default:
		return nil, fmt.Errorf("unsupported database mode %q", cfg.Mode)
	}
}
