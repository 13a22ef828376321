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
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cloudwego/i18nagent/internal/pipeline"
)

const headerSrc = `import React from 'react';

export default function Header() {
  return (
    <div className="header">
      <h1>Welcome back</h1>
      <button title="Save your work">Save changes</button>
    </div>
  );
}
`

// recordingGuard remembers which files were tracked before being written.
type recordingGuard struct {
	ids     []string
	tracked []string
}

func (g *recordingGuard) Track(ctx context.Context, id string, files []string) error {
	g.ids = append(g.ids, id)
	g.tracked = append(g.tracked, files...)
	return nil
}

// fakeOracle answers every prompt with respond, or with out when respond is nil.
type fakeOracle struct {
	out     string
	err     error
	respond func(prompt string) (string, error)
	prompts []string
}

func (o *fakeOracle) Call(ctx context.Context, input string) (string, error) {
	o.prompts = append(o.prompts, input)
	if o.respond != nil {
		return o.respond(input)
	}
	return o.out, o.err
}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

func readTree(t *testing.T, root, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

func newWorkspace(t *testing.T, files map[string]string) (*Workspace, *recordingGuard) {
	t.Helper()
	root := t.TempDir()
	writeTree(t, root, files)
	g := &recordingGuard{}
	return &Workspace{Root: root, Guard: g}, g
}

// runState is a state copy of a run whose snapshot is active.
func runState(ctx map[string]any) pipeline.AgentState {
	st := pipeline.NewStore("es").State()
	st.Context[pipeline.KeySnapshotID] = "snap-1"
	for k, v := range ctx {
		st.Context[k] = v
	}
	return st
}

// merge applies a tool result to st the way the loop does.
func merge(st pipeline.AgentState, res *pipeline.ToolResult) pipeline.AgentState {
	if res == nil {
		return st
	}
	for k, v := range res.Context {
		st.Context[k] = v
	}
	return st
}

func countPrompts(o *fakeOracle, marker string) int {
	n := 0
	for _, p := range o.prompts {
		if strings.Contains(p, marker) {
			n++
		}
	}
	return n
}
