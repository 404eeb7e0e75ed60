package llm

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// ClaudeCLI rates impact by running `claude -p` as a subprocess.
type ClaudeCLI struct {
	binary  string
	model   string
	timeout time.Duration
}

// NewClaudeCLI creates a client that runs the claude binary on PATH.
func NewClaudeCLI(model string) *ClaudeCLI {
	return &ClaudeCLI{binary: "claude", model: model, timeout: ratingTimeout}
}

// Complete pipes the prompt to the CLI and returns the first line it prints.
func (c *ClaudeCLI) Complete(ctx context.Context, prompt string) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.binary, "-p", "--model", c.model, "--max-turns", "1", "--output-format", "text")
	cmd.Stdin = strings.NewReader(prompt)
	cmd.Env = filterEnv(os.Environ())

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("claude cli: %w (stderr: %s)", err, strings.TrimSpace(stderr.String()))
	}

	out := strings.TrimSpace(stdout.String())
	if i := strings.IndexByte(out, '\n'); i >= 0 {
		out = strings.TrimSpace(out[:i])
	}
	return &Response{Content: out, Provider: "claude-cli"}, nil
}

// filterEnv drops CLAUDE_* variables so the subprocess does not attach to a
// parent session.
func filterEnv(env []string) []string {
	filtered := make([]string, 0, len(env))
	for _, e := range env {
		if !strings.HasPrefix(e, "CLAUDE_") {
			filtered = append(filtered, e)
		}
	}
	return filtered
}
