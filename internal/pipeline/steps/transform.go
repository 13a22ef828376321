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
	"bytes"
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/cloudwego/i18nagent/internal/log"
	"github.com/cloudwego/i18nagent/internal/pipeline"
	"github.com/cloudwego/i18nagent/lang/jsx"
	"github.com/cloudwego/i18nagent/llm/prompt"
)

// Transform statuses.
const (
	StatusTransformed = "transformed"
	StatusNoChanges   = "no_changes"
	StatusFailed      = "failed"
)

// TransformResult is the outcome for one file.
type TransformResult struct {
	File    string `json:"file"`
	Status  string `json:"status"`
	Applied int    `json:"applied,omitempty"`
	Source  string `json:"source,omitempty"`
	Error   string `json:"error,omitempty"`
}

// TransformResults returns the transform results stored in the context of st.
func TransformResults(st pipeline.AgentState) []TransformResult {
	v, _ := st.Context[pipeline.KeyTransformResults].([]TransformResult)
	return v
}

// Transformation rewrites the analysed files so every phrase goes through t().
type Transformation struct {
	W *Workspace
}

var _ pipeline.Tool = (*Transformation)(nil)

// Execute implements pipeline.Tool.
func (t *Transformation) Execute(ctx context.Context, st pipeline.AgentState) (*pipeline.ToolResult, error) {
	var (
		results     []TransformResult
		transformed int
		writeErr    error
	)
	for _, fa := range AnalysisResults(st) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r, err := t.file(ctx, st, fa)
		if err != nil && writeErr == nil {
			writeErr = err
		}
		if r.Status == StatusTransformed {
			transformed++
		}
		results = append(results, r)
	}

	res := &pipeline.ToolResult{
		Summary: fmt.Sprintf("transformed %d of %d files", transformed, len(results)),
		Context: map[string]any{
			pipeline.KeyFilesTransformed: transformed,
			pipeline.KeyTransformResults: results,
		},
	}
	if writeErr != nil {
		return res, writeErr
	}
	return res, nil
}

// file transforms one file. The error is set only when writing failed.
func (t *Transformation) file(ctx context.Context, st pipeline.AgentState, fa FileAnalysis) (TransformResult, error) {
	r := TransformResult{File: fa.File}
	src, err := t.W.Read(fa.File)
	if err != nil {
		r.Status, r.Error = StatusFailed, err.Error()
		return r, nil
	}

	out, source, applied := t.rewrite(ctx, fa, src)
	if out == nil {
		r.Status, r.Error = StatusFailed, "rewritten source failed the structural check"
		return r, nil
	}
	r.Source, r.Applied = source, applied

	if bytes.Equal(out, src) {
		// A file converted by an earlier run still counts.
		if chk, err := t.W.scanner().Check(ctx, fa.File, src); err == nil && chk.UsesT && chk.HasImport {
			r.Status = StatusTransformed
			return r, nil
		}
		r.Status = StatusNoChanges
		return r, nil
	}
	if err := t.W.Write(ctx, st, fa.File, out); err != nil {
		r.Status, r.Error = StatusFailed, err.Error()
		return r, err
	}
	log.Info("transformation: %s: %d replacements (%s)", fa.File, applied, source)
	r.Status = StatusTransformed
	return r, nil
}

// rewrite returns the new source. Oracle output is used only when it passes
// the structural check; otherwise the deterministic rewrite applies. A nil
// result means neither produced a sound file.
func (t *Transformation) rewrite(ctx context.Context, fa FileAnalysis, src []byte) ([]byte, string, int) {
	if len(fa.Phrases) == 0 {
		return src, SourceScanner, 0
	}
	if t.W.Oracle != nil {
		out, err := t.oracleRewrite(ctx, fa, src)
		if err == nil {
			return out, SourceOracle, len(fa.Phrases)
		}
		log.Warn("transformation: oracle output for %s rejected: %v", fa.File, err)
	}

	out, applied := jsx.Rewrite(src, fa.Phrases)
	out, err := t.W.scanner().EnsureImport(ctx, fa.File, out)
	if err != nil {
		log.Error("transformation: %s: %v", fa.File, err)
		return nil, SourceScanner, 0
	}
	if !t.sound(ctx, fa.File, out) {
		return nil, SourceScanner, 0
	}
	return out, SourceScanner, applied
}

func (t *Transformation) oracleRewrite(ctx context.Context, fa FileAnalysis, src []byte) ([]byte, error) {
	answer, err := t.W.ask(ctx, prompt.Transform, map[string]any{
		"File":         fa.File,
		"Replacements": fa.Phrases,
		"Source":       string(src),
	})
	if err != nil {
		return nil, err
	}
	code, ok := extractCode(answer)
	if !ok {
		return nil, errors.New("no code block in answer")
	}
	out := []byte(code)
	if !bytes.HasSuffix(out, []byte("\n")) && bytes.HasSuffix(src, []byte("\n")) {
		out = append(out, '\n')
	}
	if bytes.Equal(bytes.TrimSpace(out), bytes.TrimSpace(src)) {
		return src, nil
	}
	if !t.sound(ctx, fa.File, out) {
		return nil, errors.New("structural check failed")
	}
	return out, nil
}

func (t *Transformation) sound(ctx context.Context, path string, src []byte) bool {
	chk, err := t.W.scanner().Check(ctx, path, src)
	if err != nil {
		return false
	}
	return len(chk.Fatal()) == 0
}
