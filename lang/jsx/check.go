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

package jsx

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// Severity tells whether an issue is structural (the file must not be kept)
// or merely worth reporting.
type Severity string

const (
	SeverityFatal       Severity = "fatal"
	SeverityRecoverable Severity = "recoverable"
)

// Issue is a single finding with the 1-based line it refers to (0 when unknown).
type Issue struct {
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
	Line     int      `json:"line,omitempty"`
}

// CheckResult aggregates the issues of one file. Severity is fatal if any
// issue is fatal.
type CheckResult struct {
	Ok        bool     `json:"ok"`
	Issues    []Issue  `json:"issues,omitempty"`
	Severity  Severity `json:"severity,omitempty"`
	UsesT     bool     `json:"uses_t"`
	HasImport bool     `json:"has_import"`
	Hardcoded int      `json:"hardcoded"`
}

// Fatal returns the fatal issues only.
func (r CheckResult) Fatal() []Issue {
	var out []Issue
	for _, it := range r.Issues {
		if it.Severity == SeverityFatal {
			out = append(out, it)
		}
	}
	return out
}

// CheckError collects multiple failures so callers can see all issues at once.
type CheckError struct {
	Errs []string
}

func (e *CheckError) Error() string {
	if len(e.Errs) == 0 {
		return "validation failed"
	}
	if len(e.Errs) == 1 {
		return e.Errs[0]
	}
	return fmt.Sprintf("validation failed (%d errors): %s", len(e.Errs), strings.Join(e.Errs, "; "))
}

var i18nImportRE = regexp.MustCompile(`(?m)^\s*import\s[^;]*from\s+['"](react-i18next|i18next|next-i18next)['"]`)

// HasTranslationImport reports whether src imports from an i18next package.
func HasTranslationImport(src []byte) bool {
	return i18nImportRE.Match(src)
}

var (
	openers = map[string]int{"{": 0, "${": 0, "(": 1, "[": 2}
	closers = map[string]int{"}": 0, ")": 1, "]": 2}
)

// Check parses src and reports structural problems: parse errors, unbalanced
// brackets and t() calls without an i18next import. Remaining hardcoded
// strings are reported as recoverable.
func (s *Scanner) Check(ctx context.Context, path string, src []byte) (CheckResult, error) {
	tree, err := s.parse(ctx, path, src)
	if err != nil {
		return CheckResult{}, err
	}
	defer tree.Close()
	root := tree.RootNode()

	var res CheckResult
	res.HasImport = HasTranslationImport(src)

	var depth [3]int
	firstErrLine := 0
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n.Type() == "ERROR" || n.IsMissing() {
			if firstErrLine == 0 {
				firstErrLine = int(n.StartPoint().Row) + 1
			}
		}
		if n.ChildCount() == 0 && !n.IsMissing() {
			if idx, ok := openers[n.Type()]; ok {
				depth[idx]++
			} else if idx, ok := closers[n.Type()]; ok {
				depth[idx]--
			}
		}
		if n.Type() == "call_expression" {
			if fn := n.ChildByFieldName("function"); fn != nil && fn.Content(src) == "t" {
				res.UsesT = true
			}
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			if child := n.Child(i); child != nil {
				walk(child)
			}
		}
	}
	walk(root)

	if root.HasError() {
		if firstErrLine == 0 {
			firstErrLine = int(root.StartPoint().Row) + 1
		}
		res.Issues = append(res.Issues, Issue{
			Message:  fmt.Sprintf("syntax error near line %d", firstErrLine),
			Severity: SeverityFatal,
			Line:     firstErrLine,
		})
	}
	for i, name := range []string{"braces", "parentheses", "brackets"} {
		if depth[i] != 0 {
			res.Issues = append(res.Issues, Issue{
				Message:  fmt.Sprintf("unbalanced %s (%+d)", name, depth[i]),
				Severity: SeverityFatal,
			})
		}
	}
	if res.UsesT && !res.HasImport {
		res.Issues = append(res.Issues, Issue{
			Message:  "missing translation import for t()",
			Severity: SeverityFatal,
		})
	}
	if !res.UsesT {
		res.Issues = append(res.Issues, Issue{
			Message:  "no translation calls found",
			Severity: SeverityRecoverable,
		})
	}

	candidates, err := s.Scan(ctx, path, src)
	if err != nil {
		return CheckResult{}, err
	}
	res.Hardcoded = len(candidates)
	for _, c := range candidates {
		res.Issues = append(res.Issues, Issue{
			Message:  fmt.Sprintf("hardcoded string %q", c.Text),
			Severity: SeverityRecoverable,
			Line:     c.Line,
		})
	}

	res.Ok = len(res.Fatal()) == 0
	switch {
	case len(res.Issues) == 0:
	case res.Ok:
		res.Severity = SeverityRecoverable
	default:
		res.Severity = SeverityFatal
	}
	return res, nil
}
