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
	"path/filepath"
	"sort"

	"github.com/cloudwego/i18nagent/internal/config"
	"github.com/cloudwego/i18nagent/internal/log"
	"github.com/cloudwego/i18nagent/internal/pipeline"
)

// NewToolset binds every action of a run configured by cfg to its tool.
func NewToolset(cfg *config.Config, w *Workspace, snaps *pipeline.SnapshotStore) *pipeline.Toolset {
	return &pipeline.Toolset{
		Discovery: &Discovery{
			W:          w,
			Dirs:       cfg.SearchDirs(),
			Extensions: cfg.Discovery.Extensions,
			Exclude:    cfg.Discovery.Exclude,
		},
		Analysis:       &Analysis{W: w},
		Transformation: &Transformation{W: w},
		Translation: &Translation{
			W:              w,
			SourceLanguage: cfg.SourceLanguage,
			TargetLanguage: cfg.TargetLanguage,
		},
		Locale: &Locale{W: w, Dir: cfg.LocalesDir},
		Setup: &Setup{
			W:              w,
			ConfigFile:     cfg.Setup.ConfigFile,
			ProviderFile:   cfg.Setup.ProviderFile,
			LocalesDir:     cfg.LocalesDir,
			SourceLanguage: cfg.SourceLanguage,
			TargetLanguage: cfg.TargetLanguage,
		},
		Integration: &Integration{
			W:            w,
			AppFile:      cfg.Integration.AppFile,
			ProviderFile: cfg.Setup.ProviderFile,
			ConfigFile:   cfg.Setup.ConfigFile,
		},
		Validation: &Validation{W: w},
		Testing:    &SmokeTest{W: w, Commands: cfg.SmokeTests.Commands, Timeout: cfg.SmokeTests.Timeout},
		Reporting:  &Report{Dir: filepath.Join(snaps.Dir(), "reports")},
		Rollback:   &Rollback{Snapshots: snaps},
	}
}

// FallbackOptions enables the optional stages cfg turns on.
func FallbackOptions(cfg *config.Config) pipeline.FallbackOptions {
	return pipeline.FallbackOptions{
		MaxRetries:  cfg.Loop.MaxRetries,
		Setup:       cfg.Setup.Enabled,
		Integration: cfg.Integration.Enabled,
		Testing:     len(cfg.SmokeTests.Commands) > 0,
	}
}

// BackupSet returns the files the initial snapshot must cover: the sources
// discovery will find plus every file the run may generate.
func BackupSet(cfg *config.Config, w *Workspace) func(context.Context) ([]string, error) {
	return func(ctx context.Context) ([]string, error) {
		d := &Discovery{
			W:          w,
			Dirs:       cfg.SearchDirs(),
			Extensions: cfg.Discovery.Extensions,
			Exclude:    cfg.Discovery.Exclude,
		}
		res, err := d.Execute(ctx, pipeline.AgentState{})
		if res == nil {
			return nil, err
		}
		files := pipeline.Context(res.Context).Strings(pipeline.KeyFilesToProcess)
		files = append(files,
			LocaleFile(cfg.LocalesDir, cfg.TargetLanguage),
			LocaleFile(cfg.LocalesDir, cfg.SourceLanguage),
		)
		if cfg.Setup.Enabled {
			files = append(files, cfg.Setup.ConfigFile, cfg.Setup.ProviderFile)
		}
		if cfg.Integration.Enabled {
			files = append(files, cfg.Integration.AppFile)
		}
		if err != nil {
			log.Warn("backup set may be incomplete: %v", err)
		}
		sort.Strings(files)
		return files, nil
	}
}
