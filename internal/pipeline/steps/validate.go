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

package steps

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cloudwego/i18nagent/internal/log"
	"github.com/cloudwego/i18nagent/internal/pipeline"
	"github.com/cloudwego/i18nagent/lang/jsx"
)

// FileValidation is the verdict on one transformed or generated file.
type FileValidation struct {
	File   string      `json:"file"`
	Valid  bool        `json:"valid"`
	Issues []jsx.Issue `json:"issues,omitempty"`
}

// Validation re-parses every transformed file and every locale file. Only
// transformed sources are counted as valid or invalid; locale files add
// issues. Any structurally broken file makes the outcome critical so the run
// is rolled back.
type Validation struct {
	W *Workspace
}

var _ pipeline.Tool = (*Validation)(nil)

// Execute implements pipeline.Tool.
func (v *Validation) Execute(ctx context.Context, st pipeline.AgentState) (*pipeline.ToolResult, error) {
	var (
		results []FileValidation
		issues  []string
		broken  []string
		valid   int
		invalid int
	)
	record := func(fv FileValidation) {
		for _, it := range fv.Issues {
			msg := fmt.Sprintf("%s: %s", fv.File, it.Message)
			if it.Line > 0 {
				msg = fmt.Sprintf("%s:%d: %s", fv.File, it.Line, it.Message)
			}
			issues = append(issues, msg)
			if it.Severity == jsx.SeverityFatal {
				broken = append(broken, msg)
			}
		}
		results = append(results, fv)
	}

	for _, tr := range TransformResults(st) {
		if tr.Status != StatusTransformed {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fv := v.source(ctx, tr.File)
		if fv.Valid {
			valid++
		} else {
			invalid++
		}
		record(fv)
	}
	if lr, ok := st.Context[pipeline.KeyLocaleResults].(LocaleResult); ok {
		for _, f := range lr.Files {
			record(v.locale(f))
		}
	}

	res := &pipeline.ToolResult{
		Summary: fmt.Sprintf("%d valid, %d invalid files, %d issues", valid, invalid, len(issues)),
		Context: map[string]any{
			pipeline.KeyValidFiles:      valid,
			pipeline.KeyInvalidFiles:    invalid,
			pipeline.KeyIssues:          issues,
			pipeline.KeyValidateResults: results,
		},
	}
	if len(broken) > 0 {
		log.Error("validation: %d files are broken", len(results)-countValid(results))
		return res, pipeline.Critical(&jsx.CheckError{Errs: broken})
	}
	return res, nil
}

func (v *Validation) source(ctx context.Context, file string) FileValidation {
	fv := FileValidation{File: file}
	src, err := v.W.Read(file)
	if err != nil {
		fv.Issues = []jsx.Issue{{Message: err.Error(), Severity: jsx.SeverityFatal}}
		return fv
	}
	chk, err := v.W.scanner().Check(ctx, file, src)
	if err != nil {
		fv.Issues = []jsx.Issue{{Message: err.Error(), Severity: jsx.SeverityFatal}}
		return fv
	}
	fv.Issues = chk.Issues
	fv.Valid = len(chk.Fatal()) == 0
	return fv
}

func (v *Validation) locale(file string) FileValidation {
	fv := FileValidation{File: file}
	data, err := v.W.Read(file)
	if err == nil {
		var doc map[string]any
		err = json.Unmarshal(data, &doc)
	}
	if err != nil {
		fv.Issues = []jsx.Issue{{Message: "invalid locale JSON: " + err.Error(), Severity: jsx.SeverityFatal}}
		return fv
	}
	fv.Valid = true
	return fv
}

func countValid(results []FileValidation) int {
	n := 0
	for _, fv := range results {
		if fv.Valid {
			n++
		}
	}
	return n
}
