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
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/cloudwego/i18nagent/internal/config"
	"github.com/cloudwego/i18nagent/internal/log"
	"github.com/cloudwego/i18nagent/internal/pipeline"
	"github.com/cloudwego/i18nagent/internal/pipeline/steps"
	"github.com/cloudwego/i18nagent/lang/jsx"
	"github.com/cloudwego/i18nagent/llm"
	"github.com/cloudwego/i18nagent/llm/prompt"
)

var (
	runLang     string
	runTestMode bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the agent until the project is internationalized",
	Long: `Runs the decide / act loop over the project:
  discovery -> analysis -> transformation -> translation -> locale
  -> setup -> integration -> testing -> validation -> completed

Without a model configured every decision and transformation is made
deterministically. A failed run leaves the tree as it was.

Example:
  i18nagent run --lang fr --test-mode`,
	Args: cobra.NoArgs,
	RunE: runAgent,
}

func init() {
	runCmd.Flags().StringVarP(&runLang, "lang", "l", "", "Target language code (e.g. es, fr, de)")
	runCmd.Flags().BoolVar(&runTestMode, "test-mode", false, "Only transform the sandbox directory")
}

func runAgent(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runLang != "" {
		cfg.TargetLanguage = runLang
	}
	if runTestMode {
		cfg.TestMode = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runID := uuid.NewString()
	p, metrics, err := newPipeline(ctx, cfg, runID)
	if err != nil {
		return err
	}

	sum, runErr := p.Run(ctx)
	if cfg.MetricsFile != "" {
		if err := metrics.WriteFile(cfg.MetricsFile); err != nil {
			log.Warn("write metrics: %v", err)
		}
	}
	if sum == nil {
		return runErr
	}
	if rep, ok := sum.Report.(steps.RunReport); ok {
		fmt.Fprintln(os.Stdout, steps.RenderReport(rep))
		if rep.JSONFile != "" {
			fmt.Fprintf(os.Stdout, "report: %s\n", rep.JSONFile)
		}
	}
	if runErr != nil {
		return errors.Wrapf(runErr, "run %s failed", runID)
	}
	if sum.Phase != pipeline.PhaseCompleted {
		return errors.Errorf("run %s failed: %s", runID, sum.Reason)
	}
	return nil
}

// newPipeline wires the stores, tools and decision function of one run.
func newPipeline(ctx context.Context, cfg *config.Config, runID string) (*pipeline.Pipeline, *pipeline.Metrics, error) {
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, nil, errors.Wrap(err, "resolve root")
	}
	snaps, err := pipeline.NewSnapshotStore(root, cfg.BackupDir,
		pipeline.WithRunID(runID), pipeline.WithSkipDirs(cfg.ExcludedDirs()...))
	if err != nil {
		return nil, nil, err
	}
	filter, err := jsx.NewFilter(cfg.SkipPatterns)
	if err != nil {
		return nil, nil, err
	}
	tpl, err := prompt.Load(cfg.PromptDir)
	if err != nil {
		return nil, nil, err
	}
	goal, err := pipeline.NewGoal(cfg.Loop.Goal)
	if err != nil {
		return nil, nil, err
	}

	w := &steps.Workspace{
		Root:      root,
		Guard:     snaps,
		Scanner:   jsx.NewScanner(jsx.WithFilter(filter)),
		Templates: tpl,
	}
	decider := &pipeline.Decider{Goal: goal, Fallback: steps.FallbackOptions(cfg), Templates: tpl}
	if cfg.OracleEnabled() {
		sys, err := tpl.Render(prompt.System, nil)
		if err != nil {
			return nil, nil, err
		}
		gen, err := llm.NewGenerator(ctx, cfg.Model, sys)
		if err != nil {
			return nil, nil, errors.Wrap(err, "create model")
		}
		w.Oracle = gen
		decider.Oracle = gen
		log.Info("using %s model %s", cfg.Model.APIType, cfg.Model.ModelName)
	} else {
		log.Info("no model configured, running deterministically")
	}

	store := pipeline.NewStore(cfg.TargetLanguage, pipeline.WithMaxRetries(cfg.Loop.MaxRetries))
	metrics := pipeline.NewMetrics()
	return &pipeline.Pipeline{
		Store:     store,
		Snapshots: snaps,
		Tools:     steps.NewToolset(cfg, w, snaps),
		Decider:   decider,
		Policy: &pipeline.DefaultPolicy{
			Store:   store,
			Backoff: pipeline.Backoff{Base: cfg.Loop.RetryBaseDelay, Max: cfg.Loop.RetryMaxDelay},
		},
		Goal:          goal,
		Metrics:       metrics,
		RunID:         runID,
		MaxIterations: cfg.Loop.MaxIterations,
		Timeout:       cfg.Loop.Timeout,
		KeepSnapshots: cfg.KeepSnapshots,
		BackupSet:     steps.BackupSet(cfg, w),
	}, metrics, nil
}
