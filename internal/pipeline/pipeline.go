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
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/cloudwego/i18nagent/internal/log"
)

const (
	DefaultMaxIterations = 50
	DefaultTimeout       = 5 * time.Minute
)

// DecisionMaker chooses the next action for a state.
type DecisionMaker interface {
	Decide(ctx context.Context, st AgentState) Decision
}

// Pipeline is the orchestration loop: decide, dispatch, merge, check the
// goal, until the run completes or a bound is hit. State is mutated only
// through Store.
type Pipeline struct {
	Store     *Store
	Snapshots *SnapshotStore
	Tools     *Toolset
	Decider   DecisionMaker
	Policy    ErrorPolicy
	Goal      *Goal
	Metrics   *Metrics

	RunID         string
	MaxIterations int
	Timeout       time.Duration
	// KeepSnapshots prunes older snapshots after the run when > 0.
	KeepSnapshots int
	// BackupSet lists the files captured by the initial snapshot.
	BackupSet func(ctx context.Context) ([]string, error)

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// RunSummary describes how a run ended.
type RunSummary struct {
	RunID      string        `json:"run_id"`
	Phase      Phase         `json:"phase"`
	Iterations int           `json:"iterations"`
	Elapsed    time.Duration `json:"elapsed"`
	Reason     string        `json:"reason"`
	SnapshotID string        `json:"snapshot_id,omitempty"`
	Restored   bool          `json:"restored,omitempty"`
	Report     any           `json:"report,omitempty"`
}

func (p *Pipeline) init() error {
	if p.Store == nil || p.Snapshots == nil || p.Tools == nil {
		return errors.New("pipeline needs a store, a snapshot store and tools")
	}
	if err := p.Tools.Validate(); err != nil {
		return err
	}
	if p.Goal == nil {
		g, err := NewGoal(DefaultGoal)
		if err != nil {
			return err
		}
		p.Goal = g
	}
	if p.Decider == nil {
		p.Decider = &Decider{Goal: p.Goal, Fallback: FallbackOptions{MaxRetries: p.Store.MaxRetries()}}
	}
	if p.Policy == nil {
		p.Policy = &DefaultPolicy{Store: p.Store, Backoff: DefaultBackoff}
	}
	if p.Metrics == nil {
		p.Metrics = NewMetrics()
	}
	if p.MaxIterations <= 0 {
		p.MaxIterations = DefaultMaxIterations
	}
	if p.Timeout <= 0 {
		p.Timeout = DefaultTimeout
	}
	if p.BackupSet == nil {
		p.BackupSet = func(context.Context) ([]string, error) { return nil, nil }
	}
	if p.sleep == nil {
		p.sleep = sleepCtx
	}
	if p.now == nil {
		p.now = time.Now
	}
	return nil
}

// Run drives the loop to a terminal phase. The returned error is non-nil
// when the run stopped on a critical failure or a tool panic; a failed run
// that simply ran out of options returns a nil error and Phase failed.
// Either way the working tree of a failed run has been restored and a final
// report produced.
func (p *Pipeline) Run(ctx context.Context) (*RunSummary, error) {
	if err := p.init(); err != nil {
		return nil, err
	}
	start := p.now()
	deadline := start.Add(p.Timeout)
	sum := &RunSummary{RunID: p.RunID}
	log.Info("run %s started: target=%s max_iterations=%d timeout=%s",
		p.RunID, p.Store.State().TargetLanguage, p.MaxIterations, p.Timeout)

	runErr := p.snapshot(ctx, sum)
	rolledBack := false
	if runErr != nil {
		sum.Reason = "initial snapshot failed"
	} else {
		sum.Reason, rolledBack, runErr = p.loop(ctx, sum, deadline)
	}

	if p.Store.State().Phase != PhaseCompleted {
		if !rolledBack && sum.SnapshotID != "" {
			p.rollback(ctx, sum, "run failed")
		}
		_ = p.Store.SetPhase(PhaseFailed)
	}
	p.releaseSnapshot(sum)
	if p.KeepSnapshots > 0 {
		if pruned, err := p.Snapshots.Prune(p.KeepSnapshots); err != nil {
			log.Warn("prune snapshots: %v", err)
		} else if len(pruned) > 0 {
			log.Debug("pruned snapshots %v", pruned)
		}
	}

	p.report(ctx)
	st := p.Store.State()
	sum.Phase = st.Phase
	sum.Elapsed = p.now().Sub(start)
	sum.Report = st.Context[KeyReport]
	log.Info("run %s finished: phase=%s iterations=%d elapsed=%s reason=%s",
		p.RunID, sum.Phase, sum.Iterations, sum.Elapsed.Round(time.Millisecond), sum.Reason)
	return sum, runErr
}

// releaseSnapshot deletes the run snapshot once it is no longer needed: the
// run completed or the tree was restored from it. A snapshot whose restore
// failed is kept for a manual restore.
func (p *Pipeline) releaseSnapshot(sum *RunSummary) {
	if sum.SnapshotID == "" {
		return
	}
	if p.Store.State().Phase != PhaseCompleted && !sum.Restored {
		log.Warn("keeping snapshot %s: the tree was not fully restored", sum.SnapshotID)
		return
	}
	if err := p.Snapshots.Delete(sum.SnapshotID); err != nil {
		log.Warn("delete snapshot %s: %v", sum.SnapshotID, err)
	}
}

func (p *Pipeline) snapshot(ctx context.Context, sum *RunSummary) error {
	files, err := p.BackupSet(ctx)
	if err != nil {
		return Critical(errors.Wrap(err, "list files to back up"))
	}
	snap, err := p.Snapshots.Create(ctx, files)
	if err != nil {
		return Critical(errors.Wrap(err, "create snapshot"))
	}
	sum.SnapshotID = snap.ID
	p.Store.UpdateContext(map[string]any{KeySnapshotID: snap.ID})
	return nil
}

func (p *Pipeline) loop(ctx context.Context, sum *RunSummary, deadline time.Time) (reason string, rolledBack bool, runErr error) {
	var pending Action
	for {
		switch {
		case p.Store.ShouldStop():
			return reason, false, nil
		case sum.Iterations >= p.MaxIterations:
			return fmt.Sprintf("max iterations (%d) reached", p.MaxIterations), false, nil
		case !p.now().Before(deadline):
			return fmt.Sprintf("timeout (%s) reached", p.Timeout), false, nil
		case ctx.Err() != nil:
			return "cancelled", false, ctx.Err()
		}
		sum.Iterations++
		p.Metrics.iterations.Set(float64(sum.Iterations))

		action := pending
		pending = ""
		if action == "" {
			dec := p.Decider.Decide(ctx, p.Store.State())
			p.Metrics.decisions.WithLabelValues(string(dec.Source)).Inc()
			log.Info("iteration %d: %s (%s) %s", sum.Iterations, dec.Action, dec.Source, dec.Reasoning)
			action = dec.Action
		} else {
			log.Info("iteration %d: %s (policy)", sum.Iterations, action)
		}

		switch action {
		case ActionComplete:
			if p.goalReached() {
				_ = p.Store.SetPhase(PhaseCompleted)
				return "goal reached", false, nil
			}
			return "no action left and goal not reached", false, nil
		case ActionRollback:
			p.rollback(ctx, sum, "requested")
			return "rollback requested", true, nil
		}

		_ = p.Store.SetPhase(action.Phase())
		res, err, panicked := p.execute(ctx, action)
		if res != nil {
			p.Store.UpdateContext(res.Context)
		}
		if panicked {
			p.rollback(ctx, sum, "panic")
			return fmt.Sprintf("%s panicked", action), true, err
		}
		if err == nil {
			p.Store.AddCompletedTask(string(action))
			p.Store.ClearFailedAttempts(string(action))
			p.Store.AddMemory(MemorySuccess, map[string]any{"action": string(action), "summary": summaryOf(res)})
			if p.goalReached() {
				_ = p.Store.SetPhase(PhaseCompleted)
				return "goal reached", false, nil
			}
			continue
		}

		h := p.Policy.HandleError(ctx, action, err)
		p.Metrics.policy.WithLabelValues(string(h.Strategy), string(h.ErrorType)).Inc()
		p.Store.AddMemory(MemoryFailure, map[string]any{
			"action": string(action), "error": err.Error(), "strategy": string(h.Strategy),
		})
		switch h.Strategy {
		case StrategyStop:
			if h.Rollback {
				p.rollback(ctx, sum, "critical error")
			}
			return fmt.Sprintf("%s failed critically: %v", action, err), h.Rollback, err
		case StrategyRetry:
			delay := h.Delay
			if left := deadline.Sub(p.now()); delay > left {
				delay = left
			}
			if delay > 0 {
				if err := p.sleep(ctx, delay); err != nil {
					return "cancelled", false, err
				}
			}
			pending = h.NextAction
		case StrategyAlternative:
			pending = h.NextAction
		}
	}
}

// execute runs the tool bound to action and turns a panic into an error.
func (p *Pipeline) execute(ctx context.Context, action Action) (res *ToolResult, err error, panicked bool) {
	tool, err := p.Tools.For(action)
	if err != nil {
		return nil, err, false
	}
	start := p.now()
	defer func() {
		outcome := "ok"
		if r := recover(); r != nil {
			log.Error("tool %s panicked: %v", action, r)
			res, err, panicked = nil, errors.Errorf("tool %s panicked: %v", action, r), true
			outcome = "panic"
		} else if err != nil {
			outcome = "error"
		}
		p.Metrics.toolRuns.WithLabelValues(string(action), outcome).Inc()
		p.Metrics.toolSeconds.WithLabelValues(string(action)).Observe(p.now().Sub(start).Seconds())
	}()
	res, err = tool.Execute(ctx, p.Store.State())
	if err == nil && res != nil && res.Summary != "" {
		log.Info("%s: %s", action, res.Summary)
	}
	return res, err, false
}

// rollback restores the initial snapshot through the rollback tool. Errors
// are logged; the run is failing already.
func (p *Pipeline) rollback(ctx context.Context, sum *RunSummary, reason string) {
	log.Warn("rolling back: %s", reason)
	p.Metrics.rollbacks.WithLabelValues(reason).Inc()
	res, err, _ := p.execute(ctx, ActionRollback)
	if res != nil {
		p.Store.UpdateContext(res.Context)
	}
	sum.Restored = err == nil
	if err != nil {
		log.Error("rollback failed: %v", err)
	}
}

// report runs the reporting tool. It never fails the run.
func (p *Pipeline) report(ctx context.Context) {
	res, err, _ := p.execute(ctx, ActionReporting)
	if res != nil {
		p.Store.UpdateContext(res.Context)
	}
	if err != nil {
		log.Error("report failed: %v", err)
	}
}

func (p *Pipeline) goalReached() bool {
	ok, err := p.Goal.Satisfied(p.Store.State())
	if err != nil {
		log.Error("goal check: %v", err)
		return false
	}
	return ok
}

func summaryOf(res *ToolResult) string {
	if res == nil {
		return ""
	}
	return res.Summary
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
