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
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		msg  string
		want ErrorType
	}{
		{"Syntax error near line 4", ErrorSyntax},
		{"failed to parse response", ErrorSyntax},
		{"open src/App.jsx: no such file or directory", ErrorFileNotFound},
		{"open /etc/x: permission denied", ErrorPermission},
		{"dial tcp: connection refused", ErrorNetwork},
		{"request timed out", ErrorNetwork},
		{"api call failed: status code 500", ErrorAPI},
		{"rate limit exceeded", ErrorAPI},
		{"invalid locale file", ErrorValidation},
		{"something odd", ErrorUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(errors.New(tt.msg)))
		})
	}
	assert.Equal(t, ErrorUnknown, Classify(nil))
}

func TestIsCritical(t *testing.T) {
	assert.True(t, IsCritical(errors.New("EACCES: permission denied, open 'a.jsx'")))
	assert.True(t, IsCritical(errors.New("no space left on device")))
	assert.True(t, IsCritical(errors.Wrap(errors.New("Syntax Error: unexpected token"), "validate")))
	assert.False(t, IsCritical(errors.New("api timeout")))
	assert.False(t, IsCritical(nil))

	assert.True(t, IsCritical(Critical(errors.New("2 files failed validation"))))
	assert.True(t, IsCritical(errors.Wrap(Critical(errors.New("x")), "wrapped")))
	assert.False(t, IsCritical(Recoverable(errors.New("npm test: permission denied"))))
	assert.Nil(t, Critical(nil))
	assert.Nil(t, Recoverable(nil))
}

func TestBackoff(t *testing.T) {
	var got []time.Duration
	for n := 0; n < 6; n++ {
		got = append(got, DefaultBackoff.Delay(n))
	}
	assert.Equal(t, []time.Duration{
		time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 8 * time.Second, 8 * time.Second,
	}, got)
	assert.Equal(t, time.Second, DefaultBackoff.Delay(-1))
	assert.Equal(t, 40*time.Millisecond, Backoff{Base: 10 * time.Millisecond, Max: time.Second}.Delay(2))
}

func TestDefaultPolicy_RetryThenAlternative(t *testing.T) {
	ctx := context.Background()
	s := NewStore("es")
	p := &DefaultPolicy{Store: s, Backoff: DefaultBackoff}
	err := errors.New("api timeout")

	for i, want := range []time.Duration{time.Second, 2 * time.Second} {
		h := p.HandleError(ctx, ActionAnalysis, err)
		assert.Equal(t, StrategyRetry, h.Strategy)
		assert.Equal(t, ActionAnalysis, h.NextAction)
		assert.Equal(t, want, h.Delay)
		assert.Equal(t, i+1, h.Attempts)
		assert.Equal(t, ErrorNetwork, h.ErrorType)
		assert.False(t, h.Rollback)
	}

	h := p.HandleError(ctx, ActionAnalysis, err)
	assert.Equal(t, StrategyAlternative, h.Strategy)
	assert.Equal(t, ActionTransformation, h.NextAction)
	assert.Equal(t, 3, h.Attempts)
	assert.Equal(t, 3, s.RetryCount(string(ActionAnalysis)))
}

func TestDefaultPolicy_Critical(t *testing.T) {
	s := NewStore("es")
	p := &DefaultPolicy{Store: s}
	h := p.HandleError(context.Background(), ActionDiscovery, errors.New("open src: permission denied"))
	assert.Equal(t, StrategyStop, h.Strategy)
	assert.True(t, h.Rollback)
	assert.True(t, h.Critical)
	assert.Equal(t, ErrorPermission, h.ErrorType)
	assert.Empty(t, h.NextAction)
	assert.Equal(t, 1, s.RetryCount(string(ActionDiscovery)))
}

func TestDefaultPolicy_Skip(t *testing.T) {
	s := NewStore("es", WithMaxRetries(1))
	p := &DefaultPolicy{Store: s}
	h := p.HandleError(context.Background(), ActionReporting, errors.New("render failed"))
	assert.Equal(t, StrategySkip, h.Strategy)
	assert.Empty(t, h.NextAction)
}

func TestAction(t *testing.T) {
	for _, in := range []string{"analyze", "Analysis", " analysis "} {
		a, ok := ParseAction(in)
		require.True(t, ok, in)
		assert.Equal(t, ActionAnalysis, a)
	}
	a, ok := ParseAction("done")
	assert.True(t, ok)
	assert.Equal(t, ActionComplete, a)
	_, ok = ParseAction("deploy")
	assert.False(t, ok)

	assert.False(t, ActionComplete.IsTool())
	assert.True(t, ActionRollback.IsTool())
	assert.Equal(t, PhaseSearching, ActionDiscovery.Phase())

	// following alternatives always reaches completed
	for _, start := range Actions {
		seen := map[Action]bool{}
		for cur := start; ; {
			next, ok := cur.Alternative()
			if !ok || next == ActionComplete {
				break
			}
			require.False(t, seen[next], "alternative cycle from %s", start)
			seen[next] = true
			cur = next
		}
	}
}

func TestSummarize(t *testing.T) {
	s := NewStore("es")
	s.RecordFailedAttempt("translation", errors.New("api timeout"))
	s.RecordFailedAttempt("translation", errors.New("rate limit exceeded"))
	s.RecordFailedAttempt("discovery", errors.New("permission denied"))

	sum := Summarize(s.State())
	assert.Equal(t, 3, sum.Total)
	assert.Equal(t, 1, sum.Critical)
	assert.Equal(t, 2, sum.Retryable)
	require.Len(t, sum.Tools, 2)
	assert.Equal(t, "discovery", sum.Tools[0].Tool)
	assert.Equal(t, "translation", sum.Tools[1].Tool)
	assert.Equal(t, 2, sum.Tools[1].Count)
	assert.Equal(t, "rate limit exceeded", sum.Tools[1].LastError)
	assert.Equal(t, ErrorAPI, sum.Tools[1].ErrorType)
	assert.NotEmpty(t, sum.Tools[1].SuggestedFix)
}
