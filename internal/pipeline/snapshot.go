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
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/cloudwego/i18nagent/internal/fsutil"
	"github.com/cloudwego/i18nagent/internal/log"
)

const (
	manifestName = "manifest.json"
	filesDir     = "files"
	idLayout     = "20060102T150405.000000000Z"
)

// DefaultSkipDirs are never listed, captured or cleaned by snapshots.
var DefaultSkipDirs = []string{"node_modules", ".git", ".next", "__pycache__", ".venv", "venv"}

// FileEntry is one captured file.
type FileEntry struct {
	Path string      `json:"path"` // slash separated, relative to the workspace root
	Hash string      `json:"hash"` // hex-encoded sha256 of the captured bytes
	Size int64       `json:"size"`
	Mode fs.FileMode `json:"mode"`
}

// Snapshot is the manifest of a backup. Files holds captured content,
// Absent the requested paths that did not exist, Existing the complete
// workspace listing at creation time.
type Snapshot struct {
	ID        string      `json:"id"`
	RunID     string      `json:"run_id,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	Root      string      `json:"root"`
	Files     []FileEntry `json:"files"`
	Absent    []string    `json:"absent,omitempty"`
	Existing  []string    `json:"existing"`
}

// FileError is a per-file restore failure.
type FileError struct {
	Path string `json:"path"`
	Err  string `json:"error"`
}

// RestoreResult reports what a restore did.
type RestoreResult struct {
	ID        string      `json:"id"`
	Restored  int         `json:"restored"`
	Unchanged int         `json:"unchanged,omitempty"`
	Deleted   []string    `json:"deleted,omitempty"`
	Errors    []FileError `json:"errors,omitempty"`
}

// RestoreError collects the per-file failures of a restore.
type RestoreError struct {
	Errs []FileError
}

func (e *RestoreError) Error() string {
	if len(e.Errs) == 1 {
		return fmt.Sprintf("restore %s: %s", e.Errs[0].Path, e.Errs[0].Err)
	}
	parts := make([]string, 0, len(e.Errs))
	for _, fe := range e.Errs {
		parts = append(parts, fe.Path+": "+fe.Err)
	}
	return fmt.Sprintf("restore failed for %d files: %s", len(e.Errs), strings.Join(parts, "; "))
}

type SnapshotOption func(*SnapshotStore)

func WithRunID(id string) SnapshotOption {
	return func(s *SnapshotStore) { s.runID = id }
}

func WithSkipDirs(dirs ...string) SnapshotOption {
	return func(s *SnapshotStore) { s.skip = append(s.skip, dirs...) }
}

func WithSnapshotClock(now func() time.Time) SnapshotOption {
	return func(s *SnapshotStore) { s.now = now }
}

// SnapshotStore keeps file backups of a workspace under a backup directory.
type SnapshotStore struct {
	mu    sync.Mutex
	root  string
	dir   string
	runID string
	skip  []string
	now   func() time.Time
}

// NewSnapshotStore stores snapshots of root under backupDir. A relative
// backupDir is resolved against root.
func NewSnapshotStore(root, backupDir string, opts ...SnapshotOption) (*SnapshotStore, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve workspace %s", root)
	}
	if !filepath.IsAbs(backupDir) {
		backupDir = filepath.Join(absRoot, backupDir)
	}
	s := &SnapshotStore{
		root: absRoot,
		dir:  filepath.Clean(backupDir),
		skip: append([]string(nil), DefaultSkipDirs...),
		now:  time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Root returns the absolute workspace root.
func (s *SnapshotStore) Root() string { return s.root }

// Dir returns the absolute backup directory.
func (s *SnapshotStore) Dir() string { return s.dir }

// Create captures files and the current workspace listing. Paths that do
// not exist are recorded as absent.
func (s *SnapshotStore) Create(ctx context.Context, files []string) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create backup directory")
	}
	id, err := s.newID()
	if err != nil {
		return nil, err
	}
	snap := &Snapshot{ID: id, RunID: s.runID, CreatedAt: s.now().UTC(), Root: s.root}
	if snap.Existing, err = s.listWorkspace(); err != nil {
		return nil, err
	}
	existing := toSet(snap.Existing)
	for _, f := range dedupe(files) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := s.capture(snap, f, existing); err != nil {
			return nil, err
		}
	}
	if err := s.save(snap); err != nil {
		return nil, err
	}
	log.Info("snapshot %s created: %d files captured, %d absent", snap.ID, len(snap.Files), len(snap.Absent))
	return snap, nil
}

// Track adds files to snapshot id before they are mutated. Files already
// captured keep their original content.
func (s *SnapshotStore) Track(ctx context.Context, id string, files []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.load(id)
	if err != nil {
		return err
	}
	existing := toSet(snap.Existing)
	known := toSet(snap.Absent)
	for _, e := range snap.Files {
		known[e.Path] = true
	}
	changed := false
	for _, f := range dedupe(files) {
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := s.rel(f)
		if err != nil {
			return err
		}
		if known[rel] {
			continue
		}
		known[rel] = true
		changed = true
		if !existing[rel] {
			// created after the snapshot; restore deletes it
			snap.Absent = append(snap.Absent, rel)
			continue
		}
		if err := s.capture(snap, rel, existing); err != nil {
			return err
		}
	}
	if !changed {
		return nil
	}
	return s.save(snap)
}

func (s *SnapshotStore) capture(snap *Snapshot, file string, existing map[string]bool) error {
	rel, err := s.rel(file)
	if err != nil {
		return err
	}
	src := filepath.Join(s.root, filepath.FromSlash(rel))
	fi, err := os.Stat(src)
	if os.IsNotExist(err) || (err == nil && !existing[rel]) {
		snap.Absent = append(snap.Absent, rel)
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "snapshot %s", rel)
	}
	if !fi.Mode().IsRegular() {
		return nil
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return errors.Wrapf(err, "snapshot %s", rel)
	}
	dst := filepath.Join(s.dir, snap.ID, filesDir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return errors.Wrapf(err, "snapshot %s", rel)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return errors.Wrapf(err, "snapshot %s", rel)
	}
	snap.Files = append(snap.Files, FileEntry{
		Path: rel,
		Hash: fsutil.HashBytes(data),
		Size: int64(len(data)),
		Mode: fi.Mode().Perm(),
	})
	return nil
}

// Restore writes every captured file back and removes files that did not
// exist when the snapshot was taken. Per-file failures do not stop the
// restore; they are returned together as a *RestoreError.
func (s *SnapshotStore) Restore(ctx context.Context, id string) (*RestoreResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.load(id)
	if err != nil {
		return nil, err
	}
	res := &RestoreResult{ID: id}
	fail := func(path string, err error) {
		log.Error("restore %s: %v", path, err)
		res.Errors = append(res.Errors, FileError{Path: path, Err: err.Error()})
	}

	for _, e := range snap.Files {
		backup := filepath.Join(s.dir, id, filesDir, filepath.FromSlash(e.Path))
		data, err := os.ReadFile(backup)
		if err != nil {
			fail(e.Path, err)
			continue
		}
		if sum := fsutil.HashBytes(data); sum != e.Hash {
			fail(e.Path, errors.Errorf("backup hash mismatch: want %s, got %s", e.Hash, sum))
			continue
		}
		mode := e.Mode
		if mode == 0 {
			mode = 0o644
		}
		target := filepath.Join(s.root, filepath.FromSlash(e.Path))
		if sum, _, err := fsutil.HashFile(target); err == nil && sum == e.Hash {
			res.Unchanged++
			continue
		}
		if err := fsutil.AtomicWrite(target, data, mode); err != nil {
			fail(e.Path, err)
			continue
		}
		res.Restored++
	}

	current, err := s.listWorkspace()
	if err != nil {
		fail(".", err)
	}
	existing := toSet(snap.Existing)
	keepDirs := map[string]bool{".": true}
	for _, p := range snap.Existing {
		for d := filepath.ToSlash(filepath.Dir(p)); d != "." && !keepDirs[d]; d = filepath.ToSlash(filepath.Dir(d)) {
			keepDirs[d] = true
		}
	}
	for _, p := range current {
		if existing[p] {
			continue
		}
		if err := os.Remove(filepath.Join(s.root, filepath.FromSlash(p))); err != nil && !os.IsNotExist(err) {
			fail(p, err)
			continue
		}
		res.Deleted = append(res.Deleted, p)
		for d := filepath.ToSlash(filepath.Dir(p)); d != "." && !keepDirs[d]; d = filepath.ToSlash(filepath.Dir(d)) {
			if os.Remove(filepath.Join(s.root, filepath.FromSlash(d))) != nil {
				break
			}
		}
	}

	log.Info("snapshot %s restored: %d files, %d unchanged, %d removed, %d errors", id, res.Restored, res.Unchanged, len(res.Deleted), len(res.Errors))
	if len(res.Errors) > 0 {
		return res, &RestoreError{Errs: res.Errors}
	}
	return res, nil
}

// Load reads the manifest of id.
func (s *SnapshotStore) Load(id string) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(id)
}

// List returns all snapshots, newest first. Directories without a manifest
// (such as reports) and unreadable manifests are skipped.
func (s *SnapshotStore) List() ([]Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "list snapshots")
	}
	var out []Snapshot
	for _, e := range entries {
		if !e.IsDir() || !fsutil.Exists(filepath.Join(s.dir, e.Name(), manifestName)) {
			continue
		}
		snap, err := s.load(e.Name())
		if err != nil {
			log.Warn("skip snapshot %s: %v", e.Name(), err)
			continue
		}
		out = append(out, *snap)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// Delete removes snapshot id.
func (s *SnapshotStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	path, err := s.path(id)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err != nil {
		return errors.Wrapf(err, "delete snapshot %s", id)
	}
	if err := os.RemoveAll(path); err != nil {
		return errors.Wrapf(err, "delete snapshot %s", id)
	}
	log.Debug("snapshot %s deleted", id)
	return nil
}

// Prune keeps the newest keep snapshots and deletes the rest.
func (s *SnapshotStore) Prune(keep int) ([]string, error) {
	all, err := s.List()
	if err != nil {
		return nil, err
	}
	if keep < 0 {
		keep = 0
	}
	var deleted []string
	for i := keep; i < len(all); i++ {
		if err := s.Delete(all[i].ID); err != nil {
			return deleted, err
		}
		deleted = append(deleted, all[i].ID)
	}
	return deleted, nil
}

func (s *SnapshotStore) newID() (string, error) {
	base := s.now().UTC().Format(idLayout)
	id := base
	for n := 1; ; n++ {
		_, err := os.Stat(filepath.Join(s.dir, id))
		if os.IsNotExist(err) {
			return id, nil
		}
		if err != nil {
			return "", errors.Wrap(err, "allocate snapshot id")
		}
		id = fmt.Sprintf("%s-%d", base, n)
	}
}

func (s *SnapshotStore) path(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return "", errors.Errorf("invalid snapshot id %q", id)
	}
	return filepath.Join(s.dir, id), nil
}

func (s *SnapshotStore) load(id string) (*Snapshot, error) {
	path, err := s.path(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(path, manifestName))
	if err != nil {
		return nil, errors.Wrapf(err, "snapshot %s not found", id)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, errors.Wrapf(err, "decode snapshot %s", id)
	}
	return &snap, nil
}

func (s *SnapshotStore) save(snap *Snapshot) error {
	sort.Slice(snap.Files, func(i, j int) bool { return snap.Files[i].Path < snap.Files[j].Path })
	sort.Strings(snap.Absent)
	if err := fsutil.AtomicWriteJSON(filepath.Join(s.dir, snap.ID, manifestName), snap); err != nil {
		return errors.Wrapf(err, "write snapshot %s", snap.ID)
	}
	return nil
}

func (s *SnapshotStore) rel(p string) (string, error) {
	abs := p
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(s.root, p)
	}
	r, err := filepath.Rel(s.root, filepath.Clean(abs))
	if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", errors.Errorf("path %s is outside the workspace", p)
	}
	return filepath.ToSlash(r), nil
}

// listWorkspace returns all regular files below root except skipped dirs
// and the backup directory.
func (s *SnapshotStore) listWorkspace() ([]string, error) {
	skip := toSet(s.skip)
	var out []string
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != s.root && (skip[d.Name()] || path == s.dir) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "list workspace")
	}
	sort.Strings(out)
	return out, nil
}

func toSet(items []string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, it := range items {
		m[it] = true
	}
	return m
}

func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		if !seen[it] {
			seen[it] = true
			out = append(out, it)
		}
	}
	return out
}
