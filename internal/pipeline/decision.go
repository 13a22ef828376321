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
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
	sjsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/cloudwego/i18nagent/internal/log"
	"github.com/cloudwego/i18nagent/llm/prompt"
)

type DecisionSource string

const (
	SourceOracle    DecisionSource = "oracle"
	SourceExtracted DecisionSource = "extracted"
	SourceFallback  DecisionSource = "fallback"
)

// Decision is the next action chosen by the decision function.
type Decision struct {
	Action          Action         `json:"action"`
	Reasoning       string         `json:"reasoning,omitempty"`
	Confidence      float64        `json:"confidence,omitempty"`
	ExpectedOutcome string         `json:"expected_outcome,omitempty"`
	FallbackAction  Action         `json:"fallback_action,omitempty"`
	Source          DecisionSource `json:"source"`
}

// Oracle is the external text generator consulted for decisions.
type Oracle interface {
	Call(ctx context.Context, input string) (string, error)
}

// decisionPayload is the wire shape the oracle is asked to produce.
type decisionPayload struct {
	Action          string  `json:"action" jsonschema:"enum=discovery,enum=analysis,enum=transformation,enum=translation,enum=locale,enum=setup,enum=integration,enum=validation,enum=testing,enum=reporting,enum=rollback,enum=completed,description=The next action to take"`
	Reasoning       string  `json:"reasoning,omitempty" jsonschema:"description=Why this action is the best next step"`
	Confidence      float64 `json:"confidence,omitempty" jsonschema:"minimum=0,maximum=1"`
	ExpectedOutcome string  `json:"expected_outcome,omitempty"`
	FallbackAction  string  `json:"fallback_action,omitempty"`
}

var (
	schemaOnce     sync.Once
	schemaText     string
	schemaCompiled *sjsonschema.Schema
	schemaErr      error
)

func decisionSchema() (string, *sjsonschema.Schema, error) {
	schemaOnce.Do(func() {
		r := &jsonschema.Reflector{
			Anonymous:                 true,
			DoNotReference:            true,
			AllowAdditionalProperties: true,
		}
		b, err := json.Marshal(r.Reflect(&decisionPayload{}))
		if err != nil {
			schemaErr = errors.Wrap(err, "marshal decision schema")
			return
		}
		schemaText = string(b)
		c := sjsonschema.NewCompiler()
		if err := c.AddResource("decision.json", strings.NewReader(schemaText)); err != nil {
			schemaErr = errors.Wrap(err, "add decision schema")
			return
		}
		schemaCompiled, schemaErr = c.Compile("decision.json")
	})
	return schemaText, schemaCompiled, schemaErr
}

// DecisionParseError is returned when an oracle response is not a valid
// decision.
type DecisionParseError struct {
	Reason string
	Raw    string
}

func (e *DecisionParseError) Error() string {
	return "unparseable decision: " + e.Reason
}

var fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// ExtractJSONObject returns the first fenced JSON object of text, or the
// span between its first '{' and last '}'.
func ExtractJSONObject(text string) (string, bool) {
	if m := fencedJSON.FindStringSubmatch(text); m != nil {
		return m[1], true
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

// ParseDecision strictly parses an oracle response: it must contain a JSON
// object that validates against the decision schema.
func ParseDecision(text string) (Decision, error) {
	raw, ok := ExtractJSONObject(text)
	if !ok {
		return Decision{}, &DecisionParseError{Reason: "no JSON object found", Raw: text}
	}
	var generic interface{}
	if err := json.Unmarshal([]byte(raw), &generic); err != nil {
		return Decision{}, &DecisionParseError{Reason: err.Error(), Raw: text}
	}
	_, sch, err := decisionSchema()
	if err != nil {
		return Decision{}, err
	}
	if err := sch.Validate(generic); err != nil {
		return Decision{}, &DecisionParseError{Reason: err.Error(), Raw: text}
	}
	var p decisionPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return Decision{}, &DecisionParseError{Reason: err.Error(), Raw: text}
	}
	a, ok := ParseAction(p.Action)
	if !ok {
		return Decision{}, &DecisionParseError{Reason: fmt.Sprintf("unknown action %q", p.Action), Raw: text}
	}
	d := Decision{
		Action:          a,
		Reasoning:       p.Reasoning,
		Confidence:      p.Confidence,
		ExpectedOutcome: p.ExpectedOutcome,
		Source:          SourceOracle,
	}
	if fb, ok := ParseAction(p.FallbackAction); ok {
		d.FallbackAction = fb
	}
	return d, nil
}

var (
	looseAction    = regexp.MustCompile(`(?i)action["\s]*:["\s]*([a-z_]+)`)
	looseReasoning = regexp.MustCompile(`(?i)reasoning["\s]*:["\s]*"([^"]+)"`)
)

// ExtractDecision pulls an action (and reasoning when present) out of
// free-form text. It is used when ParseDecision fails.
func ExtractDecision(text string) (Decision, bool) {
	m := looseAction.FindStringSubmatch(text)
	if m == nil {
		return Decision{}, false
	}
	a, ok := ParseAction(m[1])
	if !ok {
		return Decision{}, false
	}
	d := Decision{Action: a, Confidence: 0.5, Source: SourceExtracted}
	if r := looseReasoning.FindStringSubmatch(text); r != nil {
		d.Reasoning = r[1]
	}
	return d, true
}

// Decider picks the next action: the oracle when configured and parseable,
// FallbackDecision otherwise.
type Decider struct {
	Oracle    Oracle
	Goal      *Goal
	Fallback  FallbackOptions
	Templates *prompt.Templates
}

// Decide never fails; every oracle problem degrades to the fallback.
func (d *Decider) Decide(ctx context.Context, st AgentState) Decision {
	fallback := FallbackDecision(st, d.Fallback)
	if d.Oracle == nil {
		return fallback
	}
	input, err := d.prompt(st)
	if err != nil {
		log.Warn("render decision prompt: %v", err)
		return fallback
	}
	out, err := d.Oracle.Call(ctx, input)
	if err != nil {
		log.Warn("decision oracle failed, using fallback: %v", err)
		return fallback
	}
	dec, err := ParseDecision(out)
	if err != nil {
		var ok bool
		if dec, ok = ExtractDecision(out); !ok {
			log.Warn("decision oracle response unusable, using fallback: %v", err)
			return fallback
		}
	}
	if dec.Action == ActionComplete && d.Goal != nil {
		if done, gerr := d.Goal.Satisfied(st); gerr != nil || !done {
			log.Info("oracle chose %s before the goal holds, using fallback", dec.Action)
			return fallback
		}
	}
	return dec
}

func (d *Decider) prompt(st AgentState) (string, error) {
	schema, _, err := decisionSchema()
	if err != nil {
		return "", err
	}
	tpl := d.Templates
	if tpl == nil {
		tpl = prompt.Default()
	}
	sum := Summarize(st)
	data := SummarizeState(st)
	data.Schema = schema
	data.Failures = sum.Tools
	return tpl.Render(prompt.Decision, data)
}

// Count is one progress counter shown to the oracle.
type Count struct {
	Key   string
	Value int
}

// StateSummary is the view of the state rendered into the decision prompt.
type StateSummary struct {
	Phase          Phase
	TargetLanguage string
	Counts         []Count
	RecentTasks    []string
	Failures       []ToolErrors
	Stuck          bool
	StuckReason    string
	Actions        []string
	Schema         string
}

var summaryCounters = []string{
	KeyStringsFound, KeyFilesTransformed, KeyStringsTranslated, KeyLocaleFilesCreated,
	KeyConfigFilesCreated, KeyValidFiles, KeyInvalidFiles, KeyTestsPassed, KeyTestsFailed,
}

// SummarizeState condenses st for the oracle, including stuck detection:
// the same task three times in a row or more than ten outstanding failures.
func SummarizeState(st AgentState) StateSummary {
	s := StateSummary{Phase: st.Phase, TargetLanguage: st.TargetLanguage}
	s.Counts = append(s.Counts, Count{Key: KeyFilesToProcess, Value: len(st.Context.Strings(KeyFilesToProcess))})
	for _, k := range summaryCounters {
		if st.Context.Has(k) {
			s.Counts = append(s.Counts, Count{Key: k, Value: st.Context.Int(k)})
		}
	}
	for i := len(st.CompletedTasks) - 1; i >= 0 && len(s.RecentTasks) < 5; i-- {
		s.RecentTasks = append(s.RecentTasks, st.CompletedTasks[i].Task)
	}
	if n := len(st.CompletedTasks); n >= 3 {
		last := st.CompletedTasks[n-1].Task
		if st.CompletedTasks[n-2].Task == last && st.CompletedTasks[n-3].Task == last {
			s.Stuck = true
			s.StuckReason = fmt.Sprintf("%s completed three times in a row", last)
		}
	}
	failures := 0
	for _, v := range st.FailedAttempts {
		failures += len(v)
	}
	if failures > 10 {
		s.Stuck = true
		s.StuckReason = fmt.Sprintf("%d outstanding failures", failures)
	}
	for _, a := range Actions {
		s.Actions = append(s.Actions, string(a))
	}
	sort.Strings(s.Actions)
	return s
}
