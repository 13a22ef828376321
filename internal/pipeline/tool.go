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

package pipeline

import (
	"context"

	"github.com/pkg/errors"
)

// Tool is one unit of work. It reads the state copy it is given and returns
// its outcome; the loop merges ToolResult.Context into the store. A tool may
// return a partial result together with an error.
type Tool interface {
	Execute(ctx context.Context, st AgentState) (*ToolResult, error)
}

// ToolFunc adapts a function to Tool.
type ToolFunc func(ctx context.Context, st AgentState) (*ToolResult, error)

func (f ToolFunc) Execute(ctx context.Context, st AgentState) (*ToolResult, error) {
	return f(ctx, st)
}

// ToolResult is what a tool produced.
type ToolResult struct {
	Summary string
	Context map[string]any
}

// SnapshotGuard is implemented by the snapshot store. Tools that write
// files call Track with the paths before writing them.
type SnapshotGuard interface {
	Track(ctx context.Context, id string, files []string) error
}

// Guard tracks files in the run's active snapshot.
func Guard(ctx context.Context, g SnapshotGuard, st AgentState, files ...string) error {
	if g == nil || len(files) == 0 {
		return nil
	}
	id := st.Context.String(KeySnapshotID)
	if id == "" {
		return errors.New("no active snapshot to protect file changes")
	}
	return g.Track(ctx, id, files)
}

// Toolset is the dispatch table from actions to tools.
type Toolset struct {
	Discovery      Tool
	Analysis       Tool
	Transformation Tool
	Translation    Tool
	Locale         Tool
	Setup          Tool
	Integration    Tool
	Validation     Tool
	Testing        Tool
	Reporting      Tool
	Rollback       Tool
}

// For returns the tool bound to a.
func (ts *Toolset) For(a Action) (Tool, error) {
	var t Tool
	switch a {
	case ActionDiscovery:
		t = ts.Discovery
	case ActionAnalysis:
		t = ts.Analysis
	case ActionTransformation:
		t = ts.Transformation
	case ActionTranslation:
		t = ts.Translation
	case ActionLocale:
		t = ts.Locale
	case ActionSetup:
		t = ts.Setup
	case ActionIntegration:
		t = ts.Integration
	case ActionValidation:
		t = ts.Validation
	case ActionTesting:
		t = ts.Testing
	case ActionReporting:
		t = ts.Reporting
	case ActionRollback:
		t = ts.Rollback
	default:
		return nil, errors.Errorf("action %q has no tool", a)
	}
	if t == nil {
		return nil, errors.Errorf("no tool registered for %s", a)
	}
	return t, nil
}

// Validate checks that every tool action is bound.
func (ts *Toolset) Validate() error {
	for _, a := range Actions {
		if !a.IsTool() {
			continue
		}
		if _, err := ts.For(a); err != nil {
			return err
		}
	}
	return nil
}
