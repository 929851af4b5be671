package fix

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/jeryldev/patingin/internal/ir"
)

var claudeCommands = []string{"claude-code", "claude"}

// ClaudeFixer shells out to the Claude CLI in print mode.
type ClaudeFixer struct {
	Command string
	Logger  *slog.Logger
}

// DetectClaude resolves the CLI binary. A non-empty override is looked up
// alone.
func DetectClaude(override string) (string, error) {
	candidates := claudeCommands
	if override != "" {
		candidates = []string{override}
	}
	for _, c := range candidates {
		if p, err := exec.LookPath(c); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: none of %s on PATH", ErrFixerUnavailable, strings.Join(candidates, ", "))
}

func NewClaudeFixer(override string, logger *slog.Logger) (*ClaudeFixer, error) {
	cmd, err := DetectClaude(override)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ClaudeFixer{Command: cmd, Logger: logger}, nil
}

// Version reports the CLI's --version output, or "" when it fails.
func (c *ClaudeFixer) Version(ctx context.Context) string {
	out, err := exec.CommandContext(ctx, c.Command, "--version").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

func (c *ClaudeFixer) Fix(ctx context.Context, req ir.FixRequest) (string, error) {
	cmd := exec.CommandContext(ctx, c.Command, "-p", BuildPrompt(req))
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	c.Logger.Debug("running fixer", "command", c.Command, "rule", req.Violation.RuleID,
		"file", req.Violation.FilePath, "line", req.Violation.LineNumber)

	err := cmd.Run()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "", ErrFixTimeout
	}
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", &FixerError{Backend: "claude", Err: errors.New(msg)}
	}
	code := ExtractCode(stdout.String())
	if code == "" {
		return "", &FixerError{Backend: "claude", Err: errors.New("empty response")}
	}
	return code, nil
}
