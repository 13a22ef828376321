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
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pkg/errors"

	"github.com/cloudwego/i18nagent/internal/log"
	"github.com/cloudwego/i18nagent/internal/pipeline"
)

// Discovery lists the React sources of the tree. Files already known from a
// previous run of the tool are reused.
type Discovery struct {
	W *Workspace
	// Dirs are searched relative to the root; missing ones are ignored.
	Dirs       []string
	Extensions []string
	// Exclude holds doublestar globs matched against root relative paths.
	Exclude []string
}

var _ pipeline.Tool = (*Discovery)(nil)

// Execute implements pipeline.Tool.
func (d *Discovery) Execute(ctx context.Context, st pipeline.AgentState) (*pipeline.ToolResult, error) {
	if known := st.Context.Strings(pipeline.KeyFilesToProcess); len(known) > 0 {
		return &pipeline.ToolResult{
			Summary: fmt.Sprintf("using %d known files", len(known)),
			Context: map[string]any{pipeline.KeyFilesToProcess: known},
		}, nil
	}
	for _, p := range d.Exclude {
		if !doublestar.ValidatePattern(p) {
			return nil, errors.Errorf("invalid exclude pattern %q", p)
		}
	}

	seen := map[string]bool{}
	files := []string{}
	var walkErrs []string
	for _, dir := range d.Dirs {
		start := d.W.Path(dir)
		if fi, err := os.Stat(start); err != nil || !fi.IsDir() {
			log.Debug("discovery: skip %s (not a directory)", dir)
			continue
		}
		err := filepath.WalkDir(start, func(path string, e fs.DirEntry, err error) error {
			if err != nil {
				walkErrs = append(walkErrs, err.Error())
				if e != nil && e.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if cerr := ctx.Err(); cerr != nil {
				return cerr
			}
			rel, rerr := filepath.Rel(d.W.Root, path)
			if rerr != nil {
				return rerr
			}
			rel = filepath.ToSlash(rel)
			if e.IsDir() {
				if path != start && (isSkippedDir(e.Name()) || d.excluded(rel)) {
					return filepath.SkipDir
				}
				return nil
			}
			if seen[rel] || !e.Type().IsRegular() || !d.wanted(rel) || d.excluded(rel) {
				return nil
			}
			seen[rel] = true
			ok, err := d.isComponent(ctx, rel)
			if err != nil {
				log.Debug("discovery: skip %s: %v", rel, err)
				return nil
			}
			if ok {
				files = append(files, rel)
			}
			return nil
		})
		if err != nil {
			return nil, errors.Wrapf(err, "search %s", dir)
		}
	}
	sort.Strings(files)

	res := &pipeline.ToolResult{
		Summary: fmt.Sprintf("discovered %d files with JSX", len(files)),
		Context: map[string]any{pipeline.KeyFilesToProcess: files},
	}
	if len(walkErrs) > 0 {
		return res, errors.Errorf("search incomplete: %s", strings.Join(walkErrs, "; "))
	}
	return res, nil
}

func (d *Discovery) wanted(rel string) bool {
	ext := strings.ToLower(filepath.Ext(rel))
	for _, e := range d.Extensions {
		if strings.EqualFold(e, ext) {
			return true
		}
	}
	return false
}

func (d *Discovery) excluded(rel string) bool {
	for _, p := range d.Exclude {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

func (d *Discovery) isComponent(ctx context.Context, rel string) (bool, error) {
	src, err := d.W.Read(rel)
	if err != nil {
		return false, err
	}
	return d.W.scanner().ContainsJSX(ctx, rel, src)
}

func isSkippedDir(name string) bool {
	for _, s := range pipeline.DefaultSkipDirs {
		if s == name {
			return true
		}
	}
	return false
}
