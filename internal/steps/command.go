package steps

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"gantry/internal/account"
	"gantry/internal/config"
	"gantry/internal/pipeline"
	"gantry/internal/pool"
)

// Payload is the JSON document written to a step command's stdin.
type Payload struct {
	Stage   string           `json:"stage"`
	Account account.Snapshot `json:"account"`
	Session SessionInfo      `json:"session"`
}

// SessionInfo tells the step which browser to attach to.
type SessionInfo struct {
	ID       string `json:"id"`
	Endpoint string `json:"ws_endpoint"`
}

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, argv []string, stdin []byte) ([]byte, error)
}

// Option configures the runner.
type Option func(*Runner)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(r *Runner) {
		if exec != nil {
			r.exec = exec
		}
	}
}

// Runner builds pipeline step functions that shell out to the automation
// commands configured per stage. Each command receives the stage payload on
// stdin and reports its outcome as JSON on stdout:
//
//	{"outcome":"success|ineligible|failure","message":"...","data":{...}}
type Runner struct {
	cfg  *config.Config
	exec Executor
}

// NewRunner constructs a step runner over the configured commands.
func NewRunner(cfg *config.Config, opts ...Option) *Runner {
	runner := &Runner{cfg: cfg, exec: commandExecutor{}}
	for _, opt := range opts {
		opt(runner)
	}
	return runner
}

// Bindings returns the stage-to-step map for the registry. Stages without a
// configured command are omitted; registry validation turns that into a
// startup error.
func (r *Runner) Bindings() map[account.Stage]pipeline.StepFunc {
	bindings := make(map[account.Stage]pipeline.StepFunc)
	for _, stage := range account.AllStages() {
		argv := r.cfg.StepCommand(string(stage))
		if len(argv) == 0 {
			continue
		}
		bindings[stage] = r.step(stage, argv)
	}
	return bindings
}

func (r *Runner) step(stage account.Stage, argv []string) pipeline.StepFunc {
	return func(ctx context.Context, snapshot account.Snapshot, session *pool.Session) (account.Outcome, error) {
		payload, err := json.Marshal(Payload{
			Stage:   string(stage),
			Account: snapshot,
			Session: SessionInfo{ID: session.ID, Endpoint: session.Endpoint},
		})
		if err != nil {
			return account.Outcome{}, fmt.Errorf("encode step payload: %w", err)
		}

		stdout, err := r.exec.Run(ctx, argv, payload)
		if err != nil {
			return account.Outcome{}, fmt.Errorf("run %s: %w", argv[0], err)
		}
		return ParseOutcome(stdout)
	}
}

// ParseOutcome decodes a step's stdout into an outcome. The outcome document
// is the last non-empty line so steps may print diagnostics above it.
func ParseOutcome(stdout []byte) (account.Outcome, error) {
	lines := strings.Split(strings.TrimSpace(string(stdout)), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		var outcome account.Outcome
		if err := json.Unmarshal([]byte(line), &outcome); err != nil {
			return account.Outcome{}, fmt.Errorf("decode step outcome %q: %w", line, err)
		}
		kind, ok := account.ParseOutcomeKind(string(outcome.Kind))
		if !ok {
			return account.Outcome{}, fmt.Errorf("unknown step outcome %q", outcome.Kind)
		}
		outcome.Kind = kind
		return outcome, nil
	}
	return account.Outcome{}, fmt.Errorf("step produced no outcome")
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, argv []string, stdin []byte) ([]byte, error) {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...) //nolint:gosec
	cmd.Stdin = bytes.NewReader(stdin)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return stdout.Bytes(), fmt.Errorf("%w: %s", err, lastLines(detail, 3))
		}
		return stdout.Bytes(), err
	}
	return stdout.Bytes(), nil
}

func lastLines(text string, n int) string {
	lines := strings.Split(text, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}
