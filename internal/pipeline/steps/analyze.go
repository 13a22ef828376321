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
	"regexp"
	"strings"

	"github.com/pkg/errors"

	"github.com/cloudwego/i18nagent/internal/log"
	"github.com/cloudwego/i18nagent/internal/pipeline"
	"github.com/cloudwego/i18nagent/lang/jsx"
	"github.com/cloudwego/i18nagent/llm/prompt"
)

const (
	SourceOracle  = "oracle"
	SourceScanner = "scanner"
)

// FileAnalysis lists the translatable strings of one file with their keys.
type FileAnalysis struct {
	File    string            `json:"file"`
	Phrases []jsx.Replacement `json:"phrases"`
	Source  string            `json:"source"`
}

// AnalysisResults returns the analysis stored in the context of st.
func AnalysisResults(st pipeline.AgentState) []FileAnalysis {
	v, _ := st.Context[pipeline.KeyAnalysisResults].([]FileAnalysis)
	return v
}

// Analysis scans every file to process for user facing strings. With an
// oracle the candidates are filtered and keyed by the model; otherwise keys
// are derived from the text.
type Analysis struct {
	W *Workspace
}

var _ pipeline.Tool = (*Analysis)(nil)

var validKey = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*(\.[A-Za-z0-9_-]+)*$`)

// Execute implements pipeline.Tool. When the oracle fails the deterministic
// analysis is returned together with the error.
func (a *Analysis) Execute(ctx context.Context, st pipeline.AgentState) (*pipeline.ToolResult, error) {
	files := st.Context.Strings(pipeline.KeyFilesToProcess)
	keys := jsx.NewKeys()
	results := []FileAnalysis{}
	total := 0
	var failed []string
	var oracleErr error

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		src, err := a.W.Read(f)
		if err != nil {
			failed = append(failed, err.Error())
			continue
		}
		cands, err := a.W.scanner().Scan(ctx, f, src)
		if err != nil {
			failed = append(failed, err.Error())
			continue
		}

		fa := FileAnalysis{File: f, Source: SourceScanner}
		var picked map[string]string
		if a.W.Oracle != nil && len(cands) > 0 {
			if picked, err = a.classify(ctx, f, cands); err != nil {
				log.Warn("analysis: oracle failed for %s: %v", f, err)
				oracleErr = err
			} else {
				fa.Source = SourceOracle
			}
		}
		for _, c := range cands {
			key := ""
			if fa.Source == SourceOracle {
				k, ok := picked[c.Text]
				if !ok {
					continue
				}
				if validKey.MatchString(k) && keys.Reserve(k, c.Text) {
					key = k
				}
			}
			if key == "" {
				key = keys.For(c)
			}
			fa.Phrases = append(fa.Phrases, jsx.Replacement{Candidate: c, Key: key})
		}
		log.Debug("analysis: %s: %d of %d candidates", f, len(fa.Phrases), len(cands))
		total += len(fa.Phrases)
		results = append(results, fa)
	}

	res := &pipeline.ToolResult{
		Summary: fmt.Sprintf("found %d translatable strings in %d files", total, len(results)),
		Context: map[string]any{
			pipeline.KeyStringsFound:    total,
			pipeline.KeyAnalysisResults: results,
		},
	}
	if oracleErr != nil {
		return res, errors.Wrap(oracleErr, "analysis oracle")
	}
	if len(failed) > 0 {
		if len(results) == 0 {
			return res, errors.Errorf("analysis failed: %s", strings.Join(failed, "; "))
		}
		log.Warn("analysis: %d files skipped: %s", len(failed), strings.Join(failed, "; "))
	}
	return res, nil
}

type analysisAnswer struct {
	Phrases []struct {
		Text string `json:"text"`
		Key  string `json:"key"`
	} `json:"phrases"`
}

// classify asks the oracle which candidates are user visible; the result
// maps text to the proposed key.
func (a *Analysis) classify(ctx context.Context, file string, cands []jsx.Candidate) (map[string]string, error) {
	out, err := a.W.ask(ctx, prompt.Analyze, map[string]any{"File": file, "Candidates": cands})
	if err != nil {
		return nil, err
	}
	raw, ok := pipeline.ExtractJSONObject(out)
	if !ok {
		return nil, errors.New("unparseable analysis response: no JSON object")
	}
	var ans analysisAnswer
	if err := json.Unmarshal([]byte(raw), &ans); err != nil {
		return nil, errors.Wrap(err, "unparseable analysis response")
	}
	picked := make(map[string]string, len(ans.Phrases))
	for _, p := range ans.Phrases {
		picked[p.Text] = p.Key
	}
	return picked, nil
}
