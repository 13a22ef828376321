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

// Package steps implements the tools the orchestration loop dispatches to.
// Tools read the state copy they are given and return their outcome; they
// never write the store. Tools that change files track them in the active
// snapshot first.
package steps

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pkg/errors"

	"github.com/cloudwego/i18nagent/internal/fsutil"
	"github.com/cloudwego/i18nagent/internal/pipeline"
	"github.com/cloudwego/i18nagent/lang/jsx"
	"github.com/cloudwego/i18nagent/llm/prompt"
)

// Workspace is what the tools of one run share.
type Workspace struct {
	// Root is the absolute working tree.
	Root string
	// Guard protects files before they are written. Nil disables tracking.
	Guard   pipeline.SnapshotGuard
	Scanner *jsx.Scanner
	// Oracle is optional; without it the tools use their deterministic path.
	Oracle    pipeline.Oracle
	Templates *prompt.Templates
}

// Path returns the absolute path of a slash separated relative path.
func (w *Workspace) Path(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(w.Root, filepath.FromSlash(rel))
}

// Read returns the content of rel.
func (w *Workspace) Read(rel string) ([]byte, error) {
	data, err := os.ReadFile(w.Path(rel))
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", rel)
	}
	return data, nil
}

// Write tracks rel in the run snapshot and then replaces it atomically.
func (w *Workspace) Write(ctx context.Context, st pipeline.AgentState, rel string, data []byte) error {
	if err := pipeline.Guard(ctx, w.Guard, st, rel); err != nil {
		return errors.Wrapf(err, "protect %s", rel)
	}
	return fsutil.AtomicWrite(w.Path(rel), data, 0o644)
}

func (w *Workspace) scanner() *jsx.Scanner {
	if w.Scanner == nil {
		w.Scanner = jsx.NewScanner()
	}
	return w.Scanner
}

// ask renders template name with data and sends it to the oracle.
func (w *Workspace) ask(ctx context.Context, name string, data any) (string, error) {
	tpl := w.Templates
	if tpl == nil {
		tpl = prompt.Default()
	}
	input, err := tpl.Render(name, data)
	if err != nil {
		return "", err
	}
	return w.Oracle.Call(ctx, input)
}

var fencedCode = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*\\n(.*?)```")

// extractCode returns the first fenced code block of text.
func extractCode(text string) (string, bool) {
	m := fencedCode.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return strings.TrimRight(m[1], " \t"), true
}
