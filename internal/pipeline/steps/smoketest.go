// Copyright 2025 ByteDance Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package steps

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"

	"github.com/cloudwego/i18nagent/internal/log"
	"github.com/cloudwego/i18nagent/internal/pipeline"
)

const defaultSmokeTimeout = 2 * time.Minute

// CommandResult is the outcome of one smoke test command.
type CommandResult struct {
	Command  string        `json:"command"`
	Passed   bool          `json:"passed"`
	ExitCode int           `json:"exit_code"`
	Stderr   string        `json:"stderr,omitempty"`
	Duration time.Duration `json:"duration"`
}

// SmokeTest runs the configured shell commands in the workspace root. Exit
// status 0 passes.
type SmokeTest struct {
	W        *Workspace
	Commands []string
	// Timeout bounds all commands together.
	Timeout time.Duration
}

var _ pipeline.Tool = (*SmokeTest)(nil)

// Execute implements pipeline.Tool. Failing commands make the outcome a
// recoverable error carrying the first stderr.
func (s *SmokeTest) Execute(ctx context.Context, st pipeline.AgentState) (*pipeline.ToolResult, error) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = defaultSmokeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var (
		results  []CommandResult
		passed   int
		firstErr error
	)
	for _, c := range s.Commands {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		r := s.run(ctx, c)
		results = append(results, r)
		if r.Passed {
			passed++
			log.Info("testing: %q passed in %s", c, r.Duration)
			continue
		}
		log.Warn("testing: %q failed with exit code %d", c, r.ExitCode)
		if firstErr == nil {
			msg := r.Stderr
			if msg == "" {
				msg = fmt.Sprintf("exit code %d", r.ExitCode)
			}
			firstErr = errors.Errorf("smoke test %q failed: %s", c, msg)
		}
	}

	failed := len(results) - passed
	res := &pipeline.ToolResult{
		Summary: fmt.Sprintf("%d of %d smoke tests passed", passed, len(results)),
		Context: map[string]any{
			pipeline.KeyTestsPassed: passed,
			pipeline.KeyTestsFailed: failed,
			pipeline.KeyTestResults: results,
		},
	}
	if firstErr != nil {
		return res, pipeline.Recoverable(firstErr)
	}
	return res, nil
}

func (s *SmokeTest) run(ctx context.Context, command string) CommandResult {
	start := time.Now()
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = s.W.Root
	// Own process group so a timeout kills the whole tree.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = 3 * time.Second
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	r := CommandResult{
		Command:  command,
		Passed:   err == nil,
		Stderr:   strings.TrimSpace(stderr.String()),
		Duration: time.Since(start),
	}
	if err != nil {
		r.ExitCode = -1
		var exit *exec.ExitError
		if errors.As(err, &exit) {
			r.ExitCode = exit.ExitCode()
		}
		if r.Stderr == "" {
			r.Stderr = err.Error()
		}
	}
	return r
}
