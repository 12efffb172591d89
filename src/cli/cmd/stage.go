package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/spf13/cobra"

	"github.com/sofmeright/edgefreight/src/azure"
	"github.com/sofmeright/edgefreight/src/config"
	"github.com/sofmeright/edgefreight/src/credentials"
	"github.com/sofmeright/edgefreight/src/gitver"
	"github.com/sofmeright/edgefreight/src/logging"
	"github.com/sofmeright/edgefreight/src/output"
	"github.com/sofmeright/edgefreight/src/pipeline"
	"github.com/sofmeright/edgefreight/src/process"
	"github.com/sofmeright/edgefreight/src/telemetry"
	"github.com/sofmeright/edgefreight/src/version"
)

// stageFunc is one of the pipeline.Runner stage methods.
type stageFunc func(r *pipeline.Runner, ctx context.Context, cfg *config.Config) (pipeline.Outcome, error)

// runStage wires the production collaborators, runs one stage and flushes
// telemetry and metrics. The stage error is returned as is.
func runStage(cmd *cobra.Command, stage stageFunc) error {
	ctx := cmd.Context()
	w := os.Stdout
	color := output.UseColor()
	logger := logging.New(os.Stderr, verbose)

	v, err := gitver.DetectVersion(cfg.WorkspaceDir())
	if err != nil {
		level.Debug(logger).Log("msg", "no git context", "err", err)
	}

	output.CIHeader(w)
	output.Banner(w, output.NewBannerInfo(version.Version, version.Commit, ""), color)
	if v != nil {
		output.ContextBlock(w, []output.KV{
			{Key: "branch", Value: v.Branch},
			{Key: "commit", Value: v.ShortSHA()},
		})
	}

	store, err := credentials.Open(ctx, cfg.Credentials)
	if err != nil {
		return fmt.Errorf("opening credential store: %w", err)
	}

	timeout := telemetryTimeout(cfg.Telemetry, logger)
	sink := newSink(cfg.Telemetry, timeout, logger)
	metrics := telemetry.NewMetrics()

	runner := &pipeline.Runner{
		Credentials: credentials.NewResolver(store),
		Registries:  azure.NewRegistries(),
		Exec:        process.NewExecutor(w, logger),
		Sink:        sink,
		Metrics:     metrics,
		Out:         w,
		Color:       color,
		JobName:     gitver.JobName(cfg.WorkspaceDir(), v),
		Logger:      logger,
	}

	_, stageErr := stage(runner, ctx, cfg)

	// flush with a fresh context so an interrupted stage still reports
	flushCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := sink.Close(flushCtx); err != nil {
		level.Warn(logger).Log("msg", "telemetry flush incomplete", "err", err)
	}
	if cfg.Metrics.Pushgateway != "" {
		if err := metrics.Push(flushCtx, cfg.Metrics.Pushgateway, cfg.Metrics.Job); err != nil {
			level.Warn(logger).Log("msg", "metrics push failed", "gateway", cfg.Metrics.Pushgateway, "err", err)
		}
	}

	return stageErr
}

func newSink(tc config.TelemetryConfig, timeout time.Duration, logger log.Logger) telemetry.Sink {
	switch {
	case tc.Disabled:
		return telemetry.NopSink{}
	case tc.Endpoint != "":
		return telemetry.NewHTTPSink(tc.Endpoint, timeout, logger)
	default:
		return telemetry.NewLogSink(logger)
	}
}

func telemetryTimeout(tc config.TelemetryConfig, logger log.Logger) time.Duration {
	const fallback = 5 * time.Second
	if tc.Timeout == "" {
		return fallback
	}
	d, err := time.ParseDuration(tc.Timeout)
	if err != nil || d <= 0 {
		level.Warn(logger).Log("msg", "invalid telemetry timeout, using default", "timeout", tc.Timeout, "default", fallback)
		return fallback
	}
	return d
}
