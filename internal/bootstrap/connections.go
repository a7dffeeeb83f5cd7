package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/redis/go-redis/v9"
	"github.com/target/detectq/config"
	awsx "github.com/target/detectq/internal/adapters/aws"
)

// LoadAWSConfig resolves credentials through the default chain for the configured region.
func LoadAWSConfig(ctx context.Context, cfg config.AWSConfig) (aws.Config, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return awsCfg, nil
}

// Connections holds the shared clients opened at startup.
type Connections struct {
	AWS   awsx.Clients
	DB    *sql.DB               // nil unless the postgres result backend is selected
	Redis redis.UniversalClient // nil unless a redis-backed component is enabled

	closers []namedCloser
}

type namedCloser struct {
	name  string
	close func() error
}

// addCloser registers fn to run on Close, in reverse registration order.
func (c *Connections) addCloser(name string, fn func() error) {
	c.closers = append(c.closers, namedCloser{name: name, close: fn})
}

// Close releases every registered client. It is safe to call more than once.
func (c *Connections) Close() error {
	if c == nil {
		return nil
	}
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i].close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", c.closers[i].name, err))
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

// NeedsPostgres reports whether any enabled component reads Postgres.
func NeedsPostgres(cfg *config.AppConfig) bool {
	return cfg.Results.Backend == config.ResultsBackendPostgres
}

// NeedsRedis reports whether any enabled component uses Redis.
func NeedsRedis(cfg *config.AppConfig) bool {
	return cfg.Queue.Backend == config.QueueBackendRedis || cfg.Acceptance.Enabled
}

// OpenConnections connects to exactly the backing services cfg selects.
func OpenConnections(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) (*Connections, error) {
	awsCfg, err := LoadAWSConfig(ctx, cfg.AWS)
	if err != nil {
		return nil, err
	}
	conns := &Connections{
		AWS: awsx.NewClients(awsCfg, awsx.ClientOptions{
			EndpointURL:    cfg.AWS.EndpointURL,
			S3UsePathStyle: cfg.AWS.S3UsePathStyle,
		}),
	}

	if NeedsPostgres(cfg) {
		db, dbErr := ConnectDB(ctx, cfg.Postgres, logger)
		if dbErr != nil {
			return nil, fmt.Errorf("connect db: %w", dbErr)
		}
		conns.DB = db
		conns.addCloser("database", db.Close)
	}

	if NeedsRedis(cfg) {
		client, redisErr := ConnectRedis(ctx, cfg.Redis, logger)
		if redisErr != nil {
			if closeErr := conns.Close(); closeErr != nil {
				redisErr = errors.Join(redisErr, closeErr)
			}
			return nil, fmt.Errorf("connect redis: %w", redisErr)
		}
		conns.Redis = client
		conns.addCloser("redis", client.Close)
	}

	return conns, nil
}
