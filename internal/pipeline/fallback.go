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

import "fmt"

// FallbackOptions enables the optional stages of the deterministic order.
type FallbackOptions struct {
	MaxRetries  int
	Setup       bool
	Integration bool
	Testing     bool
}

func (o FallbackOptions) maxRetries() int {
	if o.MaxRetries <= 0 {
		return DefaultMaxRetries
	}
	return o.MaxRetries
}

// FallbackDecision picks the next action from the context alone. It is total
// and deterministic: equal states give equal decisions. An action that
// already completed MaxRetries times without moving the run forward, or
// that has MaxRetries outstanding failures, is escalated to its alternative.
func FallbackDecision(st AgentState, opts FallbackOptions) Decision {
	a, why := wantedAction(st, opts)
	for a != ActionComplete {
		runs := st.CompletedCount(string(a))
		failed := len(st.FailedAttempts[string(a)])
		if runs < opts.maxRetries() && failed < opts.maxRetries() {
			break
		}
		next, ok := a.Alternative()
		if !ok {
			next = ActionComplete
		}
		if failed >= opts.maxRetries() {
			why = fmt.Sprintf("%s failed %d times, moving on to %s", a, failed, next)
		} else {
			why = fmt.Sprintf("%s made no progress after %d runs, moving on to %s", a, runs, next)
		}
		a = next
	}
	return Decision{
		Action:          a,
		Reasoning:       why,
		Confidence:      1,
		ExpectedOutcome: expectedOutcome(a),
		Source:          SourceFallback,
	}
}

func wantedAction(st AgentState, opts FallbackOptions) (Action, string) {
	c := st.Context
	switch {
	case len(c.Strings(KeyFilesToProcess)) == 0:
		return ActionDiscovery, "no files to process yet"
	case !c.Has(KeyAnalysisResults) || c.Int(KeyStringsFound) == 0:
		return ActionAnalysis, "files found but no translatable strings identified"
	case !c.Has(KeyTransformResults) || c.Int(KeyFilesTransformed) == 0:
		return ActionTransformation, "strings identified but no file transformed"
	case !c.Has(KeyTranslateResults) || c.Int(KeyStringsTranslated) == 0:
		return ActionTranslation, "files transformed but strings not translated"
	case !c.Has(KeyLocaleResults):
		return ActionLocale, "translations ready but no locale files written"
	case opts.Setup && !c.Has(KeySetupResults):
		return ActionSetup, "locale files written but i18n runtime not configured"
	case opts.Integration && !c.Has(KeyIntegrateResults):
		return ActionIntegration, "i18n runtime configured but not wired into the app"
	case opts.Testing && !c.Has(KeyTestResults):
		return ActionTesting, "smoke tests not run yet"
	case !c.Has(KeyValidateResults):
		return ActionValidation, "changes not validated yet"
	case c.Int(KeyInvalidFiles) == 0 && c.Int(KeyValidFiles) > 0:
		return ActionComplete, "validation passed with no invalid files"
	}
	return ActionValidation, "validation left no valid file"
}

func expectedOutcome(a Action) string {
	switch a {
	case ActionDiscovery:
		return "list of source files with JSX"
	case ActionAnalysis:
		return "translatable strings with keys"
	case ActionTransformation:
		return "source files rewritten to use t()"
	case ActionTranslation:
		return "translated strings for the target language"
	case ActionLocale:
		return "locale JSON files"
	case ActionSetup:
		return "i18n configuration files"
	case ActionIntegration:
		return "provider wired into the app"
	case ActionTesting:
		return "smoke test results"
	case ActionValidation:
		return "validated files"
	case ActionComplete:
		return "run completed"
	}
	return ""
}
