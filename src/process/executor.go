// Package process runs external commands for the pipeline stages.
//
// Output is streamed to the job log line by line while the child runs, so
// long builds show progress. The exit status and any Azure CLI error
// marker in the output are classified into ToolError and CloudError.
// There are no retries and no timeouts beyond the caller's context.
package process

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"golang.org/x/sync/errgroup"

	"github.com/sofmeright/edgefreight/src/logging"
)

// cloudErrorRe matches the Azure CLI error marker.
var cloudErrorRe = regexp.MustCompile(`^\s*ERROR:\s*(.+?)\s*$`)

const redacted = "****"

// maxLineSize bounds a single output line; longer runs without a line
// break are cut into maxLineSize pieces.
const maxLineSize = 1024 * 1024

// DefaultWaitDelay is how long output is still read after the child exits
// or the context ends. Grandchildren that keep the pipes open past it are
// cut off.
const DefaultWaitDelay = 5 * time.Second

// Command describes one external process invocation.
type Command struct {
	Name string
	Args []string

	// Dir is the working directory, normally the job workspace.
	Dir string

	// Env overrides the job environment for the child only.
	Env map[string]string

	// CaptureCloudErrors turns an Azure CLI "ERROR:" line into a
	// CloudError even when the exit status is zero.
	CaptureCloudErrors bool

	// Redact lists secret values scrubbed from everything logged or
	// returned.
	Redact []string

	// Quiet suppresses streaming to the job log; output is still captured.
	Quiet bool
}

// Line renders the command for display, with secrets scrubbed.
func (c Command) Line() string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, c.Name)
	for _, a := range c.Args {
		if a == "" || strings.ContainsAny(a, " \t\"'") {
			a = fmt.Sprintf("%q", a)
		}
		parts = append(parts, a)
	}
	return redact(strings.Join(parts, " "), c.Redact)
}

// Result is the outcome of a command that ran to completion.
type Result struct {
	ExitCode   int
	Lines      []string
	Diagnostic string
	Duration   time.Duration
}

// Runner runs commands. Executor is the production implementation.
type Runner interface {
	Run(ctx context.Context, cmd Command) (*Result, error)
}

// Executor runs commands as child processes.
type Executor struct {
	// Log receives the streamed output, normally the job log.
	Log io.Writer

	// Environ supplies the job environment. Defaults to os.Environ.
	Environ func() []string

	Logger log.Logger

	// WaitDelay overrides DefaultWaitDelay.
	WaitDelay time.Duration
}

// NewExecutor creates an executor streaming to w.
func NewExecutor(w io.Writer, logger log.Logger) *Executor {
	return &Executor{Log: w, Environ: os.Environ, Logger: logging.OrNop(logger)}
}

// Run starts cmd, streams its output and waits for it to exit.
func (e *Executor) Run(ctx context.Context, cmd Command) (*Result, error) {
	logger := logging.OrNop(e.Logger)
	display := cmd.Line()
	start := time.Now()

	child := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	child.Dir = cmd.Dir
	child.Env = MergeEnv(e.environ(), cmd.Env)
	child.WaitDelay = e.waitDelay()

	// exec copies the OS pipes into these writers and gives up on them
	// after WaitDelay, so a grandchild holding a pipe open cannot stall Wait.
	stdout, stdoutW := io.Pipe()
	stderr, stderrW := io.Pipe()
	child.Stdout = stdoutW
	child.Stderr = stderrW

	sink := &lineSink{redact: cmd.Redact}
	if !cmd.Quiet && e.Log != nil {
		sink.w = e.Log
		fmt.Fprintf(e.Log, "exec: %s\n", display)
	}
	level.Debug(logger).Log("msg", "starting command", "cmd", display, "dir", cmd.Dir)

	if err := child.Start(); err != nil {
		stdoutW.Close()
		stderrW.Close()
		return nil, &ToolError{
			Command:    cmd.Name,
			ExitCode:   -1,
			Diagnostic: redact(err.Error(), cmd.Redact),
			Err:        err,
		}
	}

	// Both pipes are drained while the child runs, otherwise a chatty
	// child blocks on a full pipe buffer.
	var g errgroup.Group
	g.Go(func() error { return sink.consume(stdout) })
	g.Go(func() error { return sink.consume(stderr) })
	waitErr := child.Wait()
	stdoutW.Close()
	stderrW.Close()
	readErr := g.Wait()

	if errors.Is(waitErr, exec.ErrWaitDelay) {
		level.Warn(logger).Log("msg", "output still open after exit, stopped reading", "cmd", cmd.Name, "wait_delay", child.WaitDelay)
		waitErr = nil
	}

	result := &Result{
		Lines:      sink.lines,
		Diagnostic: sink.diagnostic(),
		Duration:   time.Since(start),
	}

	var exitErr *exec.ExitError
	switch {
	case waitErr == nil:
		result.ExitCode = 0
	case errors.As(waitErr, &exitErr):
		result.ExitCode = exitErr.ExitCode()
	default:
		result.ExitCode = -1
	}

	level.Debug(logger).Log("msg", "command exited", "cmd", cmd.Name, "code", result.ExitCode, "duration", result.Duration)

	if readErr != nil && waitErr == nil {
		return result, fmt.Errorf("reading output of %s: %w", cmd.Name, readErr)
	}

	var toolErr error
	if waitErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, fmt.Errorf("%s interrupted: %w", cmd.Name, ctxErr)
		}
		toolErr = &ToolError{
			Command:    cmd.Name,
			ExitCode:   result.ExitCode,
			Diagnostic: result.Diagnostic,
		}
	}

	if cmd.CaptureCloudErrors && sink.cloudMessage != "" {
		return result, &CloudError{Message: sink.cloudMessage, Err: toolErr}
	}
	if toolErr != nil {
		return result, toolErr
	}
	return result, nil
}

func (e *Executor) waitDelay() time.Duration {
	if e.WaitDelay > 0 {
		return e.WaitDelay
	}
	return DefaultWaitDelay
}

func (e *Executor) environ() []string {
	if e.Environ == nil {
		return os.Environ()
	}
	return e.Environ()
}

// MergeEnv overlays overrides on base ("KEY=value" entries). Keys already
// in base keep their position; new keys are appended in sorted order. The
// parent process environment is never modified.
func MergeEnv(base []string, overrides map[string]string) []string {
	if len(overrides) == 0 {
		return append([]string(nil), base...)
	}

	merged := make([]string, 0, len(base)+len(overrides))
	seen := make(map[string]bool, len(overrides))
	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if v, ok := overrides[key]; ok {
			if seen[key] {
				continue
			}
			merged = append(merged, key+"="+v)
			seen[key] = true
			continue
		}
		merged = append(merged, kv)
	}

	var extra []string
	for k := range overrides {
		if !seen[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	for _, k := range extra {
		merged = append(merged, k+"="+overrides[k])
	}
	return merged
}

// lineSink serializes lines from both pipes into the job log and keeps
// what classification needs.
type lineSink struct {
	mu     sync.Mutex
	w      io.Writer
	redact []string

	lines        []string
	lastLine     string
	cloudMessage string
}

// consume reads r to EOF. After a read error the rest is discarded so
// the writer never blocks.
func (s *lineSink) consume(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	scanner.Split(scanLines)
	for scanner.Scan() {
		s.add(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		_, _ = io.Copy(io.Discard, r)
		return err
	}
	return nil
}

// scanLines splits on "\n", "\r\n" and a bare "\r", the redraw used by
// progress bars. A run of maxLineSize bytes without a break is returned
// as one line.
func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		if data[i] == '\n' {
			return i + 1, data[:i], nil
		}
		// "\r": swallow a following "\n", wait for it if it may still come
		switch {
		case i+1 < len(data):
			if data[i+1] == '\n' {
				return i + 2, data[:i], nil
			}
			return i + 1, data[:i], nil
		case atEOF || len(data) >= maxLineSize:
			return i + 1, data[:i], nil
		default:
			return 0, nil, nil
		}
	}
	if len(data) >= maxLineSize {
		return maxLineSize, data[:maxLineSize], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

func (s *lineSink) add(raw string) {
	line := redact(raw, s.redact)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.lines = append(s.lines, line)
	if s.w != nil {
		fmt.Fprintln(s.w, line)
	}
	if strings.TrimSpace(line) != "" {
		s.lastLine = strings.TrimSpace(line)
	}
	if m := cloudErrorRe.FindStringSubmatch(line); m != nil {
		s.cloudMessage = m[1]
	}
}

// diagnostic prefers the cloud error line over the last line printed.
func (s *lineSink) diagnostic() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cloudMessage != "" {
		return s.cloudMessage
	}
	return s.lastLine
}

func redact(s string, secrets []string) string {
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		s = strings.ReplaceAll(s, secret, redacted)
	}
	return s
}
