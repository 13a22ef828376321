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
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/cloudwego/i18nagent/internal/log"
)

// Phase is the coarse position of a run in the transformation pipeline.
type Phase string

const (
	PhaseInitializing Phase = "initializing"
	PhaseSearching    Phase = "searching"
	PhaseAnalyzing    Phase = "analyzing"
	PhaseTransforming Phase = "transforming"
	PhaseTranslating  Phase = "translating"
	PhaseLocale       Phase = "locale"
	PhaseSetup        Phase = "setup"
	PhaseIntegrating  Phase = "integrating"
	PhaseValidating   Phase = "validating"
	PhaseTesting      Phase = "testing"
	PhaseReporting    Phase = "reporting"
	PhaseCompleted    Phase = "completed"
	PhaseFailed       Phase = "failed"
)

// IsTerminal reports whether no further transition is allowed.
func (p Phase) IsTerminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

// ErrTerminalPhase is returned when a terminal phase would be left.
var ErrTerminalPhase = errors.New("phase is terminal")

// TaskRecord is an immutable log entry for one successful tool run.
type TaskRecord struct {
	Task      string    `json:"task"`
	Timestamp time.Time `json:"timestamp"`
	Phase     Phase     `json:"phase"`
}

// FailedAttempt is one failed tool run.
type FailedAttempt struct {
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
	Phase     Phase     `json:"phase"`
}

// Memory is advisory, append-only knowledge gathered during a run.
type Memory struct {
	SuccessfulStrategies []any `json:"successful_strategies"`
	FailedStrategies     []any `json:"failed_strategies"`
	LearnedPatterns      []any `json:"learned_patterns"`
}

type MemoryKind string

const (
	MemorySuccess MemoryKind = "successful_strategies"
	MemoryFailure MemoryKind = "failed_strategies"
	MemoryPattern MemoryKind = "learned_patterns"
)

// AgentState is the single source of truth of a run. Values handed out by
// Store.State are copies; mutate only through the Store.
type AgentState struct {
	Phase          Phase                      `json:"phase"`
	TargetLanguage string                     `json:"target_language"`
	CurrentGoal    string                     `json:"current_goal,omitempty"`
	CompletedTasks []TaskRecord               `json:"completed_tasks"`
	FailedAttempts map[string][]FailedAttempt `json:"failed_attempts"`
	Context        Context                    `json:"context"`
	Memory         Memory                     `json:"memory"`
}

// CompletedCount returns how many times task finished successfully.
func (s AgentState) CompletedCount(task string) int {
	n := 0
	for _, t := range s.CompletedTasks {
		if t.Task == task {
			n++
		}
	}
	return n
}

// StateUpdate is a partial update; nil fields are left untouched.
type StateUpdate struct {
	Phase       *Phase
	CurrentGoal *string
}

// Event describes one store mutation, for observers.
type Event struct {
	Kind string
	Tool string
	From Phase
	To   Phase
	Keys []string
	Time time.Time
}

type StoreOption func(*Store)

// WithMaxRetries overrides the default retry bound of 3.
func WithMaxRetries(n int) StoreOption {
	return func(s *Store) {
		if n > 0 {
			s.maxRetries = n
		}
	}
}

// WithObserver registers fn to be called after every mutation.
func WithObserver(fn func(Event)) StoreOption {
	return func(s *Store) { s.observers = append(s.observers, fn) }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// Store owns the AgentState. It is the only legal write path.
type Store struct {
	mu         sync.RWMutex
	st         AgentState
	maxRetries int
	observers  []func(Event)
	now        func() time.Time
}

const DefaultMaxRetries = 3

func NewStore(targetLanguage string, opts ...StoreOption) *Store {
	s := &Store{
		st: AgentState{
			Phase:          PhaseInitializing,
			TargetLanguage: targetLanguage,
			FailedAttempts: map[string][]FailedAttempt{},
			Context:        Context{},
		},
		maxRetries: DefaultMaxRetries,
		now:        time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// MaxRetries returns the retry bound per tool.
func (s *Store) MaxRetries() int {
	return s.maxRetries
}

// State returns a copy of the current state.
func (s *Store) State() AgentState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.clone()
}

func (st AgentState) clone() AgentState {
	out := st
	out.CompletedTasks = append([]TaskRecord(nil), st.CompletedTasks...)
	out.FailedAttempts = make(map[string][]FailedAttempt, len(st.FailedAttempts))
	for k, v := range st.FailedAttempts {
		out.FailedAttempts[k] = append([]FailedAttempt(nil), v...)
	}
	out.Context = st.Context.clone()
	out.Memory = Memory{
		SuccessfulStrategies: copyEntries(st.Memory.SuccessfulStrategies),
		FailedStrategies:     copyEntries(st.Memory.FailedStrategies),
		LearnedPatterns:      copyEntries(st.Memory.LearnedPatterns),
	}
	return out
}

func copyEntries(in []any) []any {
	if in == nil {
		return nil
	}
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = deepCopy(v)
	}
	return out
}

// Update merges the non-nil fields of u. A phase change goes through the
// same terminal check as SetPhase.
func (s *Store) Update(u StateUpdate) error {
	if u.Phase != nil {
		if err := s.SetPhase(*u.Phase); err != nil {
			return err
		}
	}
	if u.CurrentGoal != nil {
		s.mu.Lock()
		s.st.CurrentGoal = *u.CurrentGoal
		s.mu.Unlock()
		s.emit(Event{Kind: "update", Keys: []string{"current_goal"}})
	}
	return nil
}

// UpdateContext shallow-merges patch into the context. Values are deep
// copied so the caller keeps no reference into the store.
func (s *Store) UpdateContext(patch map[string]any) {
	if len(patch) == 0 {
		return
	}
	keys := make([]string, 0, len(patch))
	s.mu.Lock()
	for k, v := range patch {
		s.st.Context[k] = deepCopy(v)
		keys = append(keys, k)
	}
	s.mu.Unlock()
	log.Debug("context updated: %v", keys)
	s.emit(Event{Kind: "context", Keys: keys})
}

// AddCompletedTask appends a task record stamped with the current phase.
func (s *Store) AddCompletedTask(task string) {
	s.mu.Lock()
	s.st.CompletedTasks = append(s.st.CompletedTasks, TaskRecord{
		Task:      task,
		Timestamp: s.now(),
		Phase:     s.st.Phase,
	})
	s.mu.Unlock()
	log.Debug("task completed: %s", task)
	s.emit(Event{Kind: "completed", Tool: task})
}

// RecordFailedAttempt appends err to the failure list of tool.
func (s *Store) RecordFailedAttempt(tool string, err error) {
	msg := errStr(err)
	s.mu.Lock()
	s.st.FailedAttempts[tool] = append(s.st.FailedAttempts[tool], FailedAttempt{
		Error:     msg,
		Timestamp: s.now(),
		Phase:     s.st.Phase,
	})
	n := len(s.st.FailedAttempts[tool])
	s.mu.Unlock()
	log.Debug("failed attempt %d for %s: %s", n, tool, msg)
	s.emit(Event{Kind: "failed", Tool: tool})
}

// ClearFailedAttempts forgets the failures of tool after it succeeded.
func (s *Store) ClearFailedAttempts(tool string) {
	s.mu.Lock()
	_, had := s.st.FailedAttempts[tool]
	delete(s.st.FailedAttempts, tool)
	s.mu.Unlock()
	if had {
		s.emit(Event{Kind: "cleared", Tool: tool})
	}
}

// RetryCount is the number of recorded failures of tool.
func (s *Store) RetryCount(tool string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.st.FailedAttempts[tool])
}

// ShouldRetry reports whether tool has failed fewer than MaxRetries times.
func (s *Store) ShouldRetry(tool string) bool {
	return s.RetryCount(tool) < s.maxRetries
}

// SetPhase moves the run to p. Leaving a terminal phase is an error;
// setting the same terminal phase again is a no-op.
func (s *Store) SetPhase(p Phase) error {
	s.mu.Lock()
	from := s.st.Phase
	if from.IsTerminal() {
		s.mu.Unlock()
		if from == p {
			return nil
		}
		return errors.Wrapf(ErrTerminalPhase, "cannot move from %s to %s", from, p)
	}
	s.st.Phase = p
	s.mu.Unlock()
	if from != p {
		log.Info("phase: %s -> %s", from, p)
		s.emit(Event{Kind: "phase", From: from, To: p})
	}
	return nil
}

// ShouldStop reports whether the run reached a terminal phase.
func (s *Store) ShouldStop() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.Phase.IsTerminal()
}

// AddMemory appends an advisory entry.
func (s *Store) AddMemory(kind MemoryKind, data any) {
	data = deepCopy(data)
	s.mu.Lock()
	switch kind {
	case MemorySuccess:
		s.st.Memory.SuccessfulStrategies = append(s.st.Memory.SuccessfulStrategies, data)
	case MemoryFailure:
		s.st.Memory.FailedStrategies = append(s.st.Memory.FailedStrategies, data)
	default:
		s.st.Memory.LearnedPatterns = append(s.st.Memory.LearnedPatterns, data)
	}
	s.mu.Unlock()
}

func (s *Store) emit(ev Event) {
	if len(s.observers) == 0 {
		return
	}
	ev.Time = s.now()
	for _, fn := range s.observers {
		fn(ev)
	}
}

func errStr(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
