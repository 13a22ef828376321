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
	"sort"
	"time"

	"github.com/cloudwego/i18nagent/internal/log"
)

// Strategy is how the loop reacts to a tool failure.
type Strategy string

const (
	StrategyStop        Strategy = "stop"
	StrategyRetry       Strategy = "retry"
	StrategyAlternative Strategy = "alternative"
	StrategySkip        Strategy = "skip"
)

// Handling is the policy decision for one failure. NextAction is empty for
// StrategySkip (ask the decision function again) and StrategyStop.
type Handling struct {
	Strategy   Strategy      `json:"strategy"`
	NextAction Action        `json:"next_action,omitempty"`
	Delay      time.Duration `json:"delay,omitempty"`
	Rollback   bool          `json:"rollback,omitempty"`
	ErrorType  ErrorType     `json:"error_type"`
	Critical   bool          `json:"critical"`
	Attempts   int           `json:"attempts"`
}

// ErrorPolicy decides what to do after a tool failed. It only schedules;
// it never touches files.
type ErrorPolicy interface {
	HandleError(ctx context.Context, tool Action, err error) Handling
}

// DefaultPolicy stops on critical errors, retries with exponential backoff
// while the store allows it, then moves on to the tool's alternative.
type DefaultPolicy struct {
	Store   *Store
	Backoff Backoff
}

var _ ErrorPolicy = (*DefaultPolicy)(nil)

// HandleError implements ErrorPolicy. The failure is recorded before any
// decision is made.
func (p *DefaultPolicy) HandleError(ctx context.Context, tool Action, err error) Handling {
	p.Store.RecordFailedAttempt(string(tool), err)
	h := Handling{
		ErrorType: Classify(err),
		Critical:  IsCritical(err),
		Attempts:  p.Store.RetryCount(string(tool)),
	}

	switch {
	case h.Critical:
		h.Strategy = StrategyStop
		h.Rollback = true
	case p.Store.ShouldRetry(string(tool)):
		h.Strategy = StrategyRetry
		h.NextAction = tool
		h.Delay = p.backoff().Delay(h.Attempts - 1)
	default:
		if alt, ok := tool.Alternative(); ok {
			h.Strategy = StrategyAlternative
			h.NextAction = alt
		} else {
			h.Strategy = StrategySkip
		}
	}
	log.Warn("%s failed (%s, attempt %d): %v -> %s %s", tool, h.ErrorType, h.Attempts, err, h.Strategy, h.NextAction)
	return h
}

func (p *DefaultPolicy) backoff() Backoff {
	if p.Backoff.Base <= 0 {
		return DefaultBackoff
	}
	return p.Backoff
}

// ToolErrors is the per-tool part of an ErrorSummary.
type ToolErrors struct {
	Tool         string    `json:"tool"`
	Count        int       `json:"count"`
	Critical     int       `json:"critical"`
	LastError    string    `json:"last_error"`
	ErrorType    ErrorType `json:"error_type"`
	SuggestedFix string    `json:"suggested_fix"`
}

// ErrorSummary aggregates outstanding failures of a run.
type ErrorSummary struct {
	Total     int          `json:"total"`
	Critical  int          `json:"critical"`
	Retryable int          `json:"retryable"`
	Tools     []ToolErrors `json:"tools,omitempty"`
}

// Summarize builds an ErrorSummary from the failures still recorded in st.
func Summarize(st AgentState) ErrorSummary {
	var sum ErrorSummary
	for tool, attempts := range st.FailedAttempts {
		if len(attempts) == 0 {
			continue
		}
		te := ToolErrors{Tool: tool, Count: len(attempts)}
		for _, a := range attempts {
			if IsCritical(errorString(a.Error)) {
				te.Critical++
			}
		}
		last := attempts[len(attempts)-1].Error
		te.LastError = last
		te.ErrorType = Classify(errorString(last))
		te.SuggestedFix = SuggestedFix(te.ErrorType)
		sum.Total += te.Count
		sum.Critical += te.Critical
		sum.Retryable += te.Count - te.Critical
		sum.Tools = append(sum.Tools, te)
	}
	sort.Slice(sum.Tools, func(i, j int) bool { return sum.Tools[i].Tool < sum.Tools[j].Tool })
	return sum
}

type errorString string

func (e errorString) Error() string { return string(e) }
