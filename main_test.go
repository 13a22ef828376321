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

package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudwego/i18nagent/internal/config"
	"github.com/cloudwego/i18nagent/internal/pipeline"
)

func TestNewPipeline_Deterministic(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "App.jsx"),
		[]byte("export default function App() {\n  return <h1>Hello there</h1>;\n}\n"), 0o644))

	cfg := config.Default()
	cfg.Root = root
	p, metrics, err := newPipeline(context.Background(), cfg, "run-test")
	require.NoError(t, err)
	require.NoError(t, p.Tools.Validate())
	assert.Nil(t, p.Decider.(*pipeline.Decider).Oracle)

	sum, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, pipeline.PhaseCompleted, sum.Phase, sum.Reason)
	assert.Contains(t, readFile(t, root, "src/App.jsx"), "{t('common.hello_there')}")

	out := filepath.Join(t.TempDir(), "run.prom")
	require.NoError(t, metrics.WriteFile(out))
	assert.FileExists(t, out)
}

func TestNewPipeline_BadSkipPattern(t *testing.T) {
	cfg := config.Default()
	cfg.Root = t.TempDir()
	cfg.SkipPatterns = []string{"("}
	_, _, err := newPipeline(context.Background(), cfg, "run-test")
	assert.ErrorContains(t, err, "invalid skip pattern")
}

func readFile(t *testing.T, root, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}
