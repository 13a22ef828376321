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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudwego/i18nagent/internal/config"
	"github.com/cloudwego/i18nagent/internal/pipeline"
)

func discoveryFor(w *Workspace, cfg *config.Config) *Discovery {
	return &Discovery{W: w, Dirs: cfg.SearchDirs(), Extensions: cfg.Discovery.Extensions, Exclude: cfg.Discovery.Exclude}
}

func TestDiscovery_FindsComponents(t *testing.T) {
	w, _ := newWorkspace(t, map[string]string{
		"src/Header.jsx":                 headerSrc,
		"src/util.js":                    "export const add = (a, b) => a + b;\n",
		"src/Header.test.jsx":            "it('renders', () => render(<Header />));\n",
		"src/__tests__/App.jsx":          "export const A = () => <p>x</p>;\n",
		"src/node_modules/lib/index.jsx": "export const L = () => <p>lib</p>;\n",
		"components/Nav.tsx":             "export const Nav = () => <nav>Home</nav>;\n",
		"docs/guide.jsx":                 "export const G = () => <p>Guide</p>;\n",
		"test-i18n/Page.jsx":             "export const P = () => <p>Sandbox</p>;\n",
	})

	res, err := discoveryFor(w, config.Default()).Execute(context.Background(), runState(nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"components/Nav.tsx", "src/Header.jsx"}, res.Context[pipeline.KeyFilesToProcess])
}

func TestDiscovery_TestMode(t *testing.T) {
	w, _ := newWorkspace(t, map[string]string{
		"src/Header.jsx":     headerSrc,
		"test-i18n/Page.jsx": "export const P = () => <p>Sandbox</p>;\n",
	})
	cfg := config.Default()
	cfg.TestMode = true

	res, err := discoveryFor(w, cfg).Execute(context.Background(), runState(nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"test-i18n/Page.jsx"}, res.Context[pipeline.KeyFilesToProcess])
}

func TestDiscovery_EmptyTree(t *testing.T) {
	w, _ := newWorkspace(t, nil)
	res, err := discoveryFor(w, config.Default()).Execute(context.Background(), runState(nil))
	require.NoError(t, err)
	assert.Empty(t, res.Context[pipeline.KeyFilesToProcess])
}

func TestDiscovery_ReusesKnownFiles(t *testing.T) {
	w, _ := newWorkspace(t, nil)
	st := runState(map[string]any{pipeline.KeyFilesToProcess: []string{"src/App.jsx"}})
	res, err := discoveryFor(w, config.Default()).Execute(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, []string{"src/App.jsx"}, res.Context[pipeline.KeyFilesToProcess])
}

func TestDiscovery_InvalidExclude(t *testing.T) {
	w, _ := newWorkspace(t, map[string]string{"src/Header.jsx": headerSrc})
	d := &Discovery{W: w, Dirs: []string{"src"}, Extensions: []string{".jsx"}, Exclude: []string{"src/[a-"}}
	_, err := d.Execute(context.Background(), runState(nil))
	assert.ErrorContains(t, err, "invalid exclude pattern")
}
