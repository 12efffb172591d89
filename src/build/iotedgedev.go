// Package build drives iotedgedev, the IoT Edge module build tool, for the
// build and push stages.
package build

import (
	"context"
	"fmt"
	"time"

	"github.com/sofmeright/edgefreight/src/process"
)

// Tool wraps iotedgedev commands.
type Tool struct {
	// Binary is the iotedgedev executable, "iotedgedev" on PATH by default.
	Binary string
	Runner process.Runner
}

// NewTool creates a Tool running binary through runner.
func NewTool(binary string, runner process.Runner) *Tool {
	if binary == "" {
		binary = "iotedgedev"
	}
	return &Tool{Binary: binary, Runner: runner}
}

// Step describes one iotedgedev invocation.
type Step struct {
	// Manifest is the deployment template, relative to Dir or absolute.
	Manifest string
	Platform string

	// Dir is the workspace holding the modules and the .env descriptor.
	Dir string

	// Env is added to the child environment only. Registry credentials
	// travel here and nowhere else.
	Env map[string]string

	// Redact lists values scrubbed from the job log.
	Redact []string
}

// Build compiles the modules named in the manifest for the target platform.
func (t *Tool) Build(ctx context.Context, step Step) (*StepResult, error) {
	args := []string{"build", "--file", step.Manifest, "--platform", step.Platform}
	return t.run(ctx, "build", args, step)
}

// Push publishes the already built module images. The build is not rerun.
func (t *Tool) Push(ctx context.Context, step Step) (*StepResult, error) {
	args := []string{"push", "--no-build", "--file", step.Manifest, "--platform", step.Platform}
	return t.run(ctx, "push", args, step)
}

func (t *Tool) run(ctx context.Context, name string, args []string, step Step) (*StepResult, error) {
	start := time.Now()
	result := &StepResult{Name: name}

	// iotedgedev reports failures such as a rejected registry login as an
	// "ERROR:" line and still exits 0.
	res, err := t.Runner.Run(ctx, process.Command{
		Name:               t.Binary,
		Args:               args,
		Dir:                step.Dir,
		Env:                step.Env,
		Redact:             step.Redact,
		CaptureCloudErrors: true,
	})
	if res != nil {
		result.Modules = ParseToolOutput(res.Lines)
	}
	result.Duration = time.Since(start)

	if err != nil {
		result.Status = StatusFailed
		result.Error = fmt.Errorf("%s %s failed: %w", t.Binary, name, err)
		return result, result.Error
	}

	result.Status = StatusSuccess
	return result, nil
}
