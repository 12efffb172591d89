// Package pipeline composes the build, push and deploy stages.
//
// Each stage is a fixed, linear sequence of steps with a single error
// boundary: the first failing step ends the stage, exactly one outcome is
// reported whatever happened, and the originating error is returned
// unchanged. Stages share nothing in memory; only the .env descriptor and
// the deployment manifest on disk cross stage boundaries.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"

	"github.com/sofmeright/edgefreight/src/build"
	"github.com/sofmeright/edgefreight/src/config"
	"github.com/sofmeright/edgefreight/src/credentials"
	"github.com/sofmeright/edgefreight/src/deploy"
	"github.com/sofmeright/edgefreight/src/envfile"
	"github.com/sofmeright/edgefreight/src/gitver"
	"github.com/sofmeright/edgefreight/src/logging"
	"github.com/sofmeright/edgefreight/src/output"
	"github.com/sofmeright/edgefreight/src/process"
	"github.com/sofmeright/edgefreight/src/registry"
	"github.com/sofmeright/edgefreight/src/telemetry"
)

// Stage names.
const (
	StageBuild  = "build"
	StagePush   = "push"
	StageDeploy = "deploy"
)

// Outcome is the result of one stage, reported for observability only.
type Outcome struct {
	Stage          string
	Success        bool
	ErrorMessage   string
	SubscriptionID string
	HubURL         string
	Duration       time.Duration
}

// HubOpener signs in to the hub's management tooling for one stage. The
// returned close function ends the session.
type HubOpener func(ctx context.Context, cfg *config.Config, sp credentials.ServicePrincipal) (deploy.Hub, func() error, error)

// Runner executes pipeline stages. Stages share nothing through the
// Runner except its collaborators.
type Runner struct {
	Credentials *credentials.Resolver
	Registries  registry.Cloud
	Exec        process.Runner

	// OpenHub defaults to an Azure CLI session.
	OpenHub HubOpener

	Sink    telemetry.Sink
	Metrics *telemetry.Metrics

	// Out is the job log.
	Out   io.Writer
	Color bool

	// JobName is reported with every outcome.
	JobName string

	Logger log.Logger
}

// report accumulates what a stage learned for its outcome.
type report struct {
	subscriptionID string
	hubURL         string
	rows           []output.KV
	warnings       []string
}

func (r *report) add(key, value string) {
	r.rows = append(r.rows, output.KV{Key: key, Value: value})
}

func (r *report) warn(format string, args ...any) {
	r.warnings = append(r.warnings, fmt.Sprintf(format, args...))
}

// run is the error boundary shared by all stages.
func (r *Runner) run(ctx context.Context, stage string, fn func(ctx context.Context, rep *report) error) (Outcome, error) {
	logger := log.With(logging.OrNop(r.Logger), "stage", stage)
	w := r.out()

	output.SectionStart(w, "edgefreight_"+stage, "edgefreight "+stage)
	start := time.Now()

	rep := &report{}
	err := fn(ctx, rep)

	outcome := Outcome{
		Stage:          stage,
		Success:        err == nil,
		SubscriptionID: rep.subscriptionID,
		HubURL:         rep.hubURL,
		Duration:       time.Since(start),
	}
	if err != nil {
		outcome.ErrorMessage = err.Error()
		level.Error(logger).Log("msg", "stage failed", "err", err)
	} else {
		level.Info(logger).Log("msg", "stage succeeded", "duration", outcome.Duration)
	}

	r.render(w, outcome, rep)
	output.SectionEnd(w, "edgefreight_"+stage)
	r.emit(outcome)

	return outcome, err
}

func (r *Runner) render(w io.Writer, o Outcome, rep *report) {
	status := "success"
	if !o.Success {
		status = "failed"
	}

	sec := output.NewSection(w, stageTitle(o.Stage), o.Duration, r.Color)
	for _, kv := range rep.rows {
		output.RowKV(sec, kv.Key, kv.Value)
	}
	if len(rep.warnings) > 0 {
		sec.Separator()
		for _, msg := range rep.warnings {
			sec.Row("%s %s", output.StatusIcon("warning", r.Color), output.Warning(msg, r.Color))
		}
	}
	sec.Separator()
	if o.Success {
		output.SummaryRow(w, o.Stage, status, "", r.Color)
	} else {
		output.SummaryRow(w, o.Stage, status, output.Failure(o.ErrorMessage, r.Color), r.Color)
	}
	sec.Close()
}

func (r *Runner) emit(o Outcome) {
	if r.Metrics != nil {
		r.Metrics.Observe(o.Stage, o.Success, o.Duration)
	}
	if r.Sink == nil {
		return
	}
	e := telemetry.NewEvent(o.Stage)
	e.Success = o.Success
	e.ErrorMessage = o.ErrorMessage
	e.JobName = r.JobName
	e.SubscriptionID = o.SubscriptionID
	e.HubURL = o.HubURL
	e.Duration = o.Duration.Seconds()
	r.Sink.Send(e)
}

func (r *Runner) out() io.Writer {
	if r.Out == nil {
		return os.Stdout
	}
	return r.Out
}

func (r *Runner) tool(cfg *config.Config) *build.Tool {
	return build.NewTool(cfg.Tool.Binary, r.Exec)
}

// preflight checks the installed iotedgedev against the configured minimum.
func (r *Runner) preflight(ctx context.Context, cfg *config.Config, rep *report) error {
	if cfg.Tool.MinVersion == "" {
		return nil
	}
	tool := r.tool(cfg)
	if err := tool.CheckVersion(ctx, cfg.Tool.MinVersion); err != nil {
		return err
	}
	rep.add("tool", fmt.Sprintf("%s >= %s", tool.Binary, cfg.Tool.MinVersion))
	return nil
}

// containerTag expands the configured tag template. Git context is only
// read when the template asks for it.
func containerTag(cfg *config.Config) (string, error) {
	tmpl := cfg.Tool.ContainerTag
	if tmpl == "" {
		return "", nil
	}
	var v *gitver.VersionInfo
	if gitver.NeedsGit(tmpl) {
		var err error
		v, err = gitver.DetectVersion(cfg.WorkspaceDir())
		if err != nil {
			return "", fmt.Errorf("resolving container tag %q: %w", tmpl, err)
		}
	}
	return gitver.ResolveTemplate(tmpl, v), nil
}

func (r *Runner) writeDescriptor(cfg *config.Config, d envfile.Descriptor) error {
	path := envfile.Path(cfg.WorkspaceDir())
	if err := envfile.Write(path, d); err != nil {
		return err
	}
	level.Debug(logging.OrNop(r.Logger)).Log("msg", "wrote descriptor", "path", path)
	return nil
}

func stageTitle(stage string) string {
	switch stage {
	case StageBuild:
		return "Build"
	case StagePush:
		return "Push"
	case StageDeploy:
		return "Deploy"
	default:
		return stage
	}
}
