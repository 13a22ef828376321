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
	"github.com/Knetic/govaluate"
	"github.com/pkg/errors"
)

// DefaultGoal is satisfied once at least one file was transformed, at least
// one string translated and at least one file validated.
const DefaultGoal = "filesTransformed > 0 && stringsTranslated > 0 && validFiles > 0"

// Goal is a boolean expression over numeric and boolean context values.
// Unknown or absent variables evaluate as 0.
type Goal struct {
	src  string
	expr *govaluate.EvaluableExpression
}

func NewGoal(expression string) (*Goal, error) {
	if expression == "" {
		expression = DefaultGoal
	}
	expr, err := govaluate.NewEvaluableExpression(expression)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid goal expression %q", expression)
	}
	return &Goal{src: expression, expr: expr}, nil
}

func (g *Goal) String() string { return g.src }

// Satisfied evaluates the goal against the context of st.
func (g *Goal) Satisfied(st AgentState) (bool, error) {
	params := make(map[string]interface{}, len(g.expr.Vars()))
	for _, v := range g.expr.Vars() {
		switch val := st.Context[v].(type) {
		case bool:
			params[v] = val
		case []string:
			params[v] = float64(len(val))
		default:
			params[v] = float64(st.Context.Int(v))
		}
	}
	out, err := g.expr.Evaluate(params)
	if err != nil {
		return false, errors.Wrapf(err, "evaluate goal %q", g.src)
	}
	ok, isBool := out.(bool)
	if !isBool {
		return false, errors.Errorf("goal %q evaluated to %T, want bool", g.src, out)
	}
	return ok, nil
}
