package claudecli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"os/exec"
)

// Runner executes the claude CLI in print mode and parses its JSON output
type Runner struct {
	Bin     string
	Timeout time.Duration
}

// Usage carries token accounting from the CLI response
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Response represents the JSON response from claude
type Response struct {
	Type       string  `json:"type"`
	Subtype    string  `json:"subtype"`
	IsError    bool    `json:"is_error"`
	DurationMs int     `json:"duration_ms"`
	Result     string  `json:"result"`
	SessionID  string  `json:"session_id"`
	TotalCost  float64 `json:"total_cost_usd"`
	Usage      Usage   `json:"usage"`
	UUID       string  `json:"uuid"`
}

// RunOptions contains options for claude execution
type RunOptions struct {
	Model           string   // Model to request (--model)
	AllowedTools    []string // Tools to allow (e.g. "Read", "Edit", "Bash")
	DisallowedTools []string // Tools to disallow
	WorkingDir      string   // Directory to execute in
}

// Run executes claude with the prompt and returns the parsed response
func (r Runner) Run(ctx context.Context, prompt string, extraArgs ...string) (*Response, error) {
	return r.RunWithOptions(ctx, prompt, nil, extraArgs...)
}

// RunWithOptions executes claude with explicit options. Output is requested
// in JSON format for structured results; when the output is not valid JSON
// it is returned as-is in Result for backward compatibility.
func (r Runner) RunWithOptions(ctx context.Context, prompt string, opts *RunOptions, extraArgs ...string) (*Response, error) {
	args := []string{"-p", "--output-format", "json"}

	if opts != nil {
		if opts.Model != "" {
			args = append(args, "--model", opts.Model)
		}
		if len(opts.AllowedTools) > 0 {
			args = append(args, "--allowed-tools", strings.Join(opts.AllowedTools, ","))
		}
		if len(opts.DisallowedTools) > 0 {
			args = append(args, "--disallowed-tools", strings.Join(opts.DisallowedTools, ","))
		}
	}

	args = append(args, extraArgs...)
	args = append(args, prompt)

	cctx := ctx
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(cctx, r.Bin, args...)
	if opts != nil && opts.WorkingDir != "" {
		cmd.Dir = opts.WorkingDir
	}

	out, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("claude execution failed: %w (output: %s)", err, truncate(string(out), 1000))
	}

	var response Response
	if err := json.Unmarshal(out, &response); err != nil {
		return &Response{Result: string(out)}, nil
	}

	if response.IsError {
		return nil, fmt.Errorf("claude returned error: %s", response.Result)
	}

	return &response, nil
}

// truncate bounds diagnostic output embedded in error messages
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "... (truncated)"
}
