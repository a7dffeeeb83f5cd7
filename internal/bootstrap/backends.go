package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/target/detectq/config"
	awsx "github.com/target/detectq/internal/adapters/aws"
	"github.com/target/detectq/internal/adapters/rabbitmq"
	"github.com/target/detectq/internal/core"
	"github.com/target/detectq/internal/data"
)

// Backends are the port implementations selected by configuration.
type Backends struct {
	Objects    core.ObjectStore
	Queue      core.JobQueue
	Results    core.ResultStore
	Acceptance core.AcceptanceStore // nil when acceptance markers are disabled
	Fleet      core.FleetSizeSource
}

// BackendDeps groups dependencies for BuildBackends.
type BackendDeps struct {
	Config *config.AppConfig
	Conns  *Connections
	Logger *slog.Logger
}

// BuildBackends wires each port to the adapter cfg selects. Resources that
// need closing are registered on deps.Conns.
func BuildBackends(ctx context.Context, deps BackendDeps) (*Backends, error) {
	if deps.Config == nil || deps.Conns == nil {
		return nil, errors.New("config and connections are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config
	b := &Backends{}

	queue, err := buildQueue(ctx, cfg.Queue, deps.Conns, logger)
	if err != nil {
		return nil, err
	}
	b.Queue = queue

	if cfg.Storage.Bucket != "" {
		store, storeErr := awsx.NewS3ObjectStore(deps.Conns.AWS.S3, cfg.Storage.Bucket)
		if storeErr != nil {
			return nil, fmt.Errorf("build object store: %w", storeErr)
		}
		b.Objects = store
	}

	results, err := buildResultStore(cfg.Results, deps.Conns)
	if err != nil {
		return nil, err
	}
	b.Results = results

	if cfg.Acceptance.Enabled {
		b.Acceptance = data.NewAcceptanceRepo(data.AcceptanceRepoOptions{
			Cache: data.NewRedisCacheRepo(deps.Conns.Redis),
			TTL:   cfg.Acceptance.TTL,
		})
	}

	fleet, err := awsx.NewAutoScalingFleet(deps.Conns.AWS.AutoScaling)
	if err != nil {
		return nil, fmt.Errorf("build fleet source: %w", err)
	}
	b.Fleet = fleet

	logger.InfoContext(ctx, "backends selected",
		"queue_backend", cfg.Queue.Backend,
		"results_backend", cfg.Results.Backend,
		"acceptance_markers", cfg.Acceptance.Enabled,
	)
	return b, nil
}

//nolint:ireturn // the queue backend is chosen at runtime.
func buildQueue(ctx context.Context, cfg config.QueueConfig, conns *Connections, logger *slog.Logger) (core.JobQueue, error) {
	switch cfg.Backend {
	case config.QueueBackendRedis:
		q, err := data.NewRedisJobQueue(data.RedisJobQueueOptions{Client: conns.Redis, Name: cfg.Name, Logger: logger})
		if err != nil {
			return nil, fmt.Errorf("build redis queue: %w", err)
		}
		return q, nil
	case config.QueueBackendRabbitMQ:
		q, err := rabbitmq.Dial(rabbitmq.Options{
			URL:        cfg.RabbitMQURL,
			Exchange:   cfg.RabbitMQExchange,
			Queue:      cfg.Name,
			RoutingKey: cfg.RabbitMQRoutingKey,
			Logger:     logger,
		})
		if err != nil {
			return nil, fmt.Errorf("build rabbitmq queue: %w", err)
		}
		conns.addCloser("rabbitmq", q.Close)
		return q, nil
	default:
		q, err := awsx.NewSQSQueue(ctx, awsx.SQSQueueOptions{
			Client: conns.AWS.SQS,
			URL:    cfg.URL,
			Name:   cfg.Name,
			Logger: logger,
		})
		if err != nil {
			return nil, fmt.Errorf("build sqs queue: %w", err)
		}
		return q, nil
	}
}

//nolint:ireturn // the result backend is chosen at runtime.
func buildResultStore(cfg config.ResultsConfig, conns *Connections) (core.ResultStore, error) {
	if cfg.Backend == config.ResultsBackendPostgres {
		if conns.DB == nil {
			return nil, errors.New("postgres result backend requires a database connection")
		}
		return data.NewJobResultRepo(conns.DB), nil
	}
	store, err := awsx.NewDynamoResultStore(conns.AWS.DynamoDB, cfg.Table, cfg.KeyAttribute)
	if err != nil {
		return nil, fmt.Errorf("build dynamodb result store: %w", err)
	}
	return store, nil
}
