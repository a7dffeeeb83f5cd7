// Command detectq-admin runs one-off operator tasks against the same
// backends the detectq service uses.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/target/detectq/config"
	"github.com/target/detectq/internal/bootstrap"
)

const defaultCommandTimeout = 2 * time.Minute

type commandContext struct {
	Ctx    context.Context
	Logger *slog.Logger
	Config config.AppConfig
	Out    io.Writer

	loadConfig  func() (config.AppConfig, error)
	openSession func(ctx context.Context, cmdCtx *commandContext) (*session, error)
}

// session holds the backends a command works against.
type session struct {
	Deps  *bootstrap.ServiceDeps
	close func() error
}

func (s *session) Close() error {
	if s == nil || s.close == nil {
		return nil
	}
	return s.close()
}

func main() {
	logger := bootstrap.InitLogger(os.Getenv("LOG_LEVEL"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	cmdCtx := &commandContext{
		Ctx:         ctx,
		Logger:      logger,
		Out:         os.Stdout,
		loadConfig:  bootstrap.LoadConfig,
		openSession: openBackendSession,
	}

	root := newRootCommand(cmdCtx)
	if err := root.ExecuteContext(ctx); err != nil {
		stop()
		logger.ErrorContext(ctx, "command failed", "command", commandName(root), "error", err)
		os.Exit(1) //nolint:forbidigo // CLI must propagate command execution failure to callers
	}
	stop()
}

func newRootCommand(cmdCtx *commandContext) *cobra.Command {
	root := &cobra.Command{
		Use:           "detectq-admin",
		Short:         "Operator commands for detectq",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Context() != nil {
				cmdCtx.Ctx = cmd.Context()
			}
			cfg, err := cmdCtx.loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cmdCtx.Config = cfg
			return nil
		},
	}
	root.AddCommand(
		newMigrateCommand(cmdCtx),
		newSubmitCommand(cmdCtx),
		newResultsCommand(cmdCtx),
		newBacklogCommand(cmdCtx),
		newFleetCommand(cmdCtx),
	)
	return root
}

func commandName(root *cobra.Command) string {
	cmd, _, err := root.Find(os.Args[1:])
	if err != nil || cmd == nil {
		return root.Name()
	}
	return cmd.CommandPath()
}

// withSession opens the configured backends for the duration of fn.
func (c *commandContext) withSession(timeout time.Duration, fn func(ctx context.Context, s *session) error) error {
	ctx, cancel := context.WithTimeout(c.Ctx, timeout)
	defer cancel()

	s, err := c.openSession(ctx, c)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := s.Close(); closeErr != nil {
			c.Logger.Warn("close backends failed", "error", closeErr)
		}
	}()
	return fn(ctx, s)
}

// openBackendSession connects to the backends cfg selects. Failure
// notifications are left unwired so operator runs never page.
func openBackendSession(ctx context.Context, cmdCtx *commandContext) (*session, error) {
	cfg := &cmdCtx.Config
	conns, err := bootstrap.OpenConnections(ctx, cfg, cmdCtx.Logger)
	if err != nil {
		return nil, err
	}

	obs := bootstrap.BuildObservability(cmdCtx.Logger, cfg.Observability)
	obs.FailureNotifier = nil
	closeAll := func() error {
		return errors.Join(obs.Close(), conns.Close())
	}

	backends, err := bootstrap.BuildBackends(ctx, bootstrap.BackendDeps{
		Config: cfg,
		Conns:  conns,
		Logger: cmdCtx.Logger,
	})
	if err != nil {
		return nil, errors.Join(fmt.Errorf("build backends: %w", err), closeAll())
	}

	return &session{
		Deps: &bootstrap.ServiceDeps{
			Config:        cfg,
			Backends:      backends,
			Conns:         conns,
			Observability: obs,
			Logger:        cmdCtx.Logger,
		},
		close: closeAll,
	}, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}
