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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func readFile(t *testing.T, root, rel string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(b)
}

func stepClock() func() time.Time {
	t0 := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	n := 0
	return func() time.Time {
		n++
		return t0.Add(time.Duration(n) * time.Second)
	}
}

func newSnapshots(t *testing.T) (*SnapshotStore, string) {
	t.Helper()
	root := t.TempDir()
	s, err := NewSnapshotStore(root, ".i18n-backups", WithRunID("run-1"), WithSnapshotClock(stepClock()))
	require.NoError(t, err)
	return s, root
}

func TestSnapshot_CreateRestore(t *testing.T) {
	ctx := context.Background()
	s, root := newSnapshots(t)
	writeFile(t, root, "src/App.jsx", "<h1>Hello</h1>")
	writeFile(t, root, "src/Nav.jsx", "<nav>Home</nav>")
	writeFile(t, root, "node_modules/x/index.js", "module.exports = 1")

	snap, err := s.Create(ctx, []string{"src/App.jsx", "src/Nav.jsx", "src/Missing.jsx"})
	require.NoError(t, err)
	assert.Equal(t, "run-1", snap.RunID)
	assert.Equal(t, []string{"src/App.jsx", "src/Nav.jsx"}, snap.Existing)
	require.Len(t, snap.Files, 2)
	assert.Equal(t, "src/App.jsx", snap.Files[0].Path)
	assert.Equal(t, int64(len("<h1>Hello</h1>")), snap.Files[0].Size)
	assert.Equal(t, []string{"src/Missing.jsx"}, snap.Absent)

	writeFile(t, root, "src/App.jsx", "<h1>{t('hello')}</h1>")
	writeFile(t, root, "locales/es/common.json", "{}")
	writeFile(t, root, "src/Missing.jsx", "new")

	res, err := s.Restore(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Restored)
	assert.Equal(t, 1, res.Unchanged)
	assert.ElementsMatch(t, []string{"locales/es/common.json", "src/Missing.jsx"}, res.Deleted)

	assert.Equal(t, "<h1>Hello</h1>", readFile(t, root, "src/App.jsx"))
	assert.Equal(t, "<nav>Home</nav>", readFile(t, root, "src/Nav.jsx"))
	assert.NoFileExists(t, filepath.Join(root, "src/Missing.jsx"))
	assert.NoDirExists(t, filepath.Join(root, "locales"))
	assert.FileExists(t, filepath.Join(root, "node_modules/x/index.js"))
	assert.DirExists(t, filepath.Join(s.Dir(), snap.ID))
}

func TestSnapshot_EmptyWorkspace(t *testing.T) {
	ctx := context.Background()
	s, root := newSnapshots(t)

	snap, err := s.Create(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, snap.Files)
	assert.Empty(t, snap.Existing)

	writeFile(t, root, "lib/i18n.js", "export default {}")
	res, err := s.Restore(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Restored)
	assert.Equal(t, []string{"lib/i18n.js"}, res.Deleted)
	assert.NoDirExists(t, filepath.Join(root, "lib"))
}

func TestSnapshot_Track(t *testing.T) {
	ctx := context.Background()
	s, root := newSnapshots(t)
	writeFile(t, root, "pages/_app.jsx", "original")
	writeFile(t, root, "src/App.jsx", "app")

	snap, err := s.Create(ctx, []string{"src/App.jsx"})
	require.NoError(t, err)

	require.NoError(t, s.Track(ctx, snap.ID, []string{"pages/_app.jsx", filepath.Join(root, "lib/i18n.js")}))
	writeFile(t, root, "pages/_app.jsx", "wrapped")
	writeFile(t, root, "lib/i18n.js", "config")

	// tracking again keeps the first capture
	require.NoError(t, s.Track(ctx, snap.ID, []string{"pages/_app.jsx"}))

	loaded, err := s.Load(snap.ID)
	require.NoError(t, err)
	assert.Len(t, loaded.Files, 2)
	assert.Equal(t, []string{"lib/i18n.js"}, loaded.Absent)

	_, err = s.Restore(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, "original", readFile(t, root, "pages/_app.jsx"))
	assert.NoFileExists(t, filepath.Join(root, "lib/i18n.js"))

	assert.Error(t, s.Track(ctx, snap.ID, []string{"../outside.js"}))
	assert.Error(t, s.Track(ctx, "nope", []string{"src/App.jsx"}))
}

func TestSnapshot_CorruptBackup(t *testing.T) {
	ctx := context.Background()
	s, root := newSnapshots(t)
	writeFile(t, root, "a.jsx", "a")
	writeFile(t, root, "b.jsx", "b")
	snap, err := s.Create(ctx, []string{"a.jsx", "b.jsx"})
	require.NoError(t, err)

	writeFile(t, s.Dir(), snap.ID+"/files/a.jsx", "tampered")
	writeFile(t, root, "a.jsx", "changed")
	writeFile(t, root, "b.jsx", "changed")

	res, err := s.Restore(ctx, snap.ID)
	require.Error(t, err)
	var rerr *RestoreError
	require.ErrorAs(t, err, &rerr)
	require.Len(t, rerr.Errs, 1)
	assert.Equal(t, "a.jsx", rerr.Errs[0].Path)
	assert.Equal(t, 1, res.Restored)
	assert.Equal(t, "b", readFile(t, root, "b.jsx"))
	assert.Equal(t, "changed", readFile(t, root, "a.jsx"))
}

func TestSnapshot_ListDeletePrune(t *testing.T) {
	ctx := context.Background()
	s, root := newSnapshots(t)
	writeFile(t, root, "a.jsx", "a")

	var ids []string
	for i := 0; i < 3; i++ {
		snap, err := s.Create(ctx, []string{"a.jsx"})
		require.NoError(t, err)
		ids = append(ids, snap.ID)
	}

	all, err := s.List()
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, ids[2], all[0].ID)
	assert.Equal(t, ids[0], all[2].ID)

	pruned, err := s.Prune(1)
	require.NoError(t, err)
	assert.Equal(t, []string{ids[1], ids[0]}, pruned)

	all, err = s.List()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, ids[2], all[0].ID)

	require.NoError(t, s.Delete(ids[2]))
	assert.Error(t, s.Delete(ids[2]))
	assert.Error(t, s.Delete("../x"))
	_, err = s.Restore(ctx, ids[2])
	assert.Error(t, err)
}

func TestSnapshot_ListMissingDir(t *testing.T) {
	s, _ := newSnapshots(t)
	all, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestSnapshot_SkipDirs(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s, err := NewSnapshotStore(root, ".i18n-backups", WithSkipDirs("dist"))
	require.NoError(t, err)

	snap, err := s.Create(ctx, nil)
	require.NoError(t, err)
	writeFile(t, root, "dist/bundle.js", "built")
	writeFile(t, root, "src/new.js", "new")

	res, err := s.Restore(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"src/new.js"}, res.Deleted)
	assert.FileExists(t, filepath.Join(root, "dist/bundle.js"))
}
