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

import "strings"

// Action is the closed set of things the loop can do next.
type Action string

const (
	ActionDiscovery      Action = "discovery"
	ActionAnalysis       Action = "analysis"
	ActionTransformation Action = "transformation"
	ActionTranslation    Action = "translation"
	ActionLocale         Action = "locale"
	ActionSetup          Action = "setup"
	ActionIntegration    Action = "integration"
	ActionValidation     Action = "validation"
	ActionTesting        Action = "testing"
	ActionReporting      Action = "reporting"
	ActionRollback       Action = "rollback"
	ActionComplete       Action = "completed"
)

// Actions lists every action, tools first.
var Actions = []Action{
	ActionDiscovery, ActionAnalysis, ActionTransformation, ActionTranslation,
	ActionLocale, ActionSetup, ActionIntegration, ActionValidation,
	ActionTesting, ActionReporting, ActionRollback, ActionComplete,
}

var actionAliases = map[string]Action{
	"search":    ActionDiscovery,
	"discover":  ActionDiscovery,
	"analyze":   ActionAnalysis,
	"analyse":   ActionAnalysis,
	"transform": ActionTransformation,
	"translate": ActionTranslation,
	"locales":   ActionLocale,
	"integrate": ActionIntegration,
	"validate":  ActionValidation,
	"test":      ActionTesting,
	"report":    ActionReporting,
	"complete":  ActionComplete,
	"done":      ActionComplete,
}

// ParseAction maps a canonical name or a known alias to an Action.
func ParseAction(s string) (Action, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, a := range Actions {
		if string(a) == s {
			return a, true
		}
	}
	a, ok := actionAliases[s]
	return a, ok
}

// IsTool reports whether a is executed through the dispatch table.
func (a Action) IsTool() bool {
	return a != ActionComplete && a != ""
}

// Phase is the phase the run enters while a executes.
func (a Action) Phase() Phase {
	switch a {
	case ActionDiscovery:
		return PhaseSearching
	case ActionAnalysis:
		return PhaseAnalyzing
	case ActionTransformation:
		return PhaseTransforming
	case ActionTranslation:
		return PhaseTranslating
	case ActionLocale:
		return PhaseLocale
	case ActionSetup:
		return PhaseSetup
	case ActionIntegration:
		return PhaseIntegrating
	case ActionValidation:
		return PhaseValidating
	case ActionTesting:
		return PhaseTesting
	case ActionReporting:
		return PhaseReporting
	case ActionComplete:
		return PhaseCompleted
	}
	return ""
}

// Alternative is the next action tried once a has exhausted its retries.
// The boolean is false when a has no alternative and should be skipped.
func (a Action) Alternative() (Action, bool) {
	switch a {
	case ActionDiscovery:
		return ActionAnalysis, true
	case ActionAnalysis:
		return ActionTransformation, true
	case ActionTransformation:
		return ActionTranslation, true
	case ActionTranslation:
		return ActionLocale, true
	case ActionLocale:
		return ActionValidation, true
	case ActionSetup:
		return ActionIntegration, true
	case ActionIntegration, ActionTesting:
		return ActionValidation, true
	case ActionValidation:
		return ActionComplete, true
	}
	return "", false
}
