package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/target/detectq/internal/bootstrap"
	"github.com/target/detectq/internal/domain/model"
)

type submitOptions struct {
	CallerRef   string
	ContentType string
	Metadata    map[string]string
	Path        string
	Timeout     time.Duration
}

func newSubmitCommand(cmdCtx *commandContext) *cobra.Command {
	opts := submitOptions{}
	cmd := &cobra.Command{
		Use:   "submit <file>",
		Short: "Upload a payload and enqueue a detection job",
		Long:  "Upload a payload and enqueue a detection job. Use - to read the payload from stdin.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Path = args[0]
			return runSubmit(cmdCtx, cmd.InOrStdin(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.CallerRef, "caller", "", "caller reference recorded with the job (required)")
	cmd.Flags().StringVar(&opts.ContentType, "content-type", "", "payload media type (default: guessed from the file extension)")
	cmd.Flags().StringToStringVar(&opts.Metadata, "metadata", nil, "extra key=value metadata carried on the job")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", defaultCommandTimeout, "maximum time for upload and enqueue")
	_ = cmd.MarkFlagRequired("caller")
	return cmd
}

func runSubmit(cmdCtx *commandContext, stdin io.Reader, opts submitOptions) error {
	payload, err := readPayload(stdin, opts.Path)
	if err != nil {
		return err
	}
	contentType := opts.ContentType
	if contentType == "" && opts.Path != "-" {
		contentType = mime.TypeByExtension(filepath.Ext(opts.Path))
	}

	return cmdCtx.withSession(opts.Timeout, func(ctx context.Context, s *session) error {
		dispatcher, err := bootstrap.NewDispatcher(s.Deps.Backends, s.Deps.Config.Storage, s.Deps.Observability, cmdCtx.Logger)
		if err != nil {
			return err
		}
		handle, err := dispatcher.Submit(ctx, &model.WorkRequest{
			CallerRef:   opts.CallerRef,
			Payload:     payload,
			ContentType: contentType,
			Metadata:    opts.Metadata,
		})
		if err != nil {
			return err
		}
		return printJSON(cmdCtx.Out, handle)
	})
}

func readPayload(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return b, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	return b, nil
}

func newResultsCommand(cmdCtx *commandContext) *cobra.Command {
	cmd := &cobra.Command{Use: "results", Short: "Inspect and write job results"}
	cmd.AddCommand(newResultsGetCommand(cmdCtx), newResultsPutCommand(cmdCtx))
	return cmd
}

func newResultsGetCommand(cmdCtx *commandContext) *cobra.Command {
	var summaryOnly bool
	cmd := &cobra.Command{
		Use:   "get <job-id>",
		Short: "Resolve the current status of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runResultsGet(cmdCtx, args[0], summaryOnly)
		},
	}
	cmd.Flags().BoolVar(&summaryOnly, "summary", false, "print only the text summary of a completed job")
	return cmd
}

func runResultsGet(cmdCtx *commandContext, jobID string, summaryOnly bool) error {
	return cmdCtx.withSession(defaultCommandTimeout, func(ctx context.Context, s *session) error {
		resolver, err := bootstrap.NewResolver(s.Deps.Backends, s.Deps.Observability, cmdCtx.Logger)
		if err != nil {
			return err
		}
		res, err := resolver.Resolve(ctx, jobID)
		if err != nil {
			return err
		}
		if summaryOnly {
			if res.Status != model.ResolutionComplete {
				return writef(cmdCtx.Out, "%s\n", res.Status)
			}
			return writef(cmdCtx.Out, "%s", res.Summary)
		}
		return printJSON(cmdCtx.Out, res)
	})
}

func newResultsPutCommand(cmdCtx *commandContext) *cobra.Command {
	var labels []string
	cmd := &cobra.Command{
		Use:   "put <job-id>",
		Short: "Write a result record for a job, as a worker would",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			parsed, err := parseLabels(labels)
			if err != nil {
				return err
			}
			return runResultsPut(cmdCtx, args[0], parsed)
		},
	}
	cmd.Flags().StringArrayVar(&labels, "label", nil, "detected label as name=count; repeatable")
	return cmd
}

func runResultsPut(cmdCtx *commandContext, jobID string, labels map[string]int) error {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return errors.New("job id is required")
	}
	return cmdCtx.withSession(defaultCommandTimeout, func(ctx context.Context, s *session) error {
		rec := &model.ResultRecord{
			JobID:       jobID,
			Labels:      labels,
			CompletedAt: time.Now().UTC(),
		}
		if err := s.Deps.Backends.Results.Put(ctx, rec); err != nil {
			return err
		}
		cmdCtx.Logger.Info("result written", "job_id", jobID, "labels", len(labels))
		return writef(cmdCtx.Out, "%s", model.FormatSummary(labels))
	})
}

// parseLabels turns repeated name=count flags into label counts. Repeated
// names are summed.
func parseLabels(raw []string) (map[string]int, error) {
	out := make(map[string]int, len(raw))
	for _, item := range raw {
		name, countStr, ok := strings.Cut(item, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid label %q: want name=count", item)
		}
		count, err := strconv.Atoi(strings.TrimSpace(countStr))
		if err != nil || count < 0 {
			return nil, fmt.Errorf("invalid count for label %q: want a non-negative integer", name)
		}
		out[name] += count
	}
	return out, nil
}
