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
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudwego/i18nagent/internal/pipeline"
	"github.com/cloudwego/i18nagent/lang/jsx"
)

func keysOf(fa FileAnalysis) []string {
	var keys []string
	for _, p := range fa.Phrases {
		keys = append(keys, p.Key)
	}
	return keys
}

func analysed(t *testing.T, w *Workspace) pipeline.AgentState {
	t.Helper()
	st := runState(map[string]any{pipeline.KeyFilesToProcess: []string{"src/Header.jsx"}})
	res, err := (&Analysis{W: w}).Execute(context.Background(), st)
	require.NoError(t, err)
	return merge(st, res)
}

func TestAnalysis_DeterministicKeys(t *testing.T) {
	w, _ := newWorkspace(t, map[string]string{"src/Header.jsx": headerSrc})
	st := analysed(t, w)

	assert.Equal(t, 3, st.Context.Int(pipeline.KeyStringsFound))
	got := AnalysisResults(st)
	require.Len(t, got, 1)
	assert.Equal(t, SourceScanner, got[0].Source)
	assert.Equal(t, []string{"common.welcome_back", "title.save_your_work", "common.save_changes"}, keysOf(got[0]))
}

func TestAnalysis_OracleSelectsAndKeys(t *testing.T) {
	w, _ := newWorkspace(t, map[string]string{"src/Header.jsx": headerSrc})
	o := &fakeOracle{out: "Here you go:\n```json\n" +
		`{"phrases": [{"text": "Welcome back", "key": "header.title"}, {"text": "Save changes", "key": "not a key!"}]}` +
		"\n```"}
	w.Oracle = o
	st := runState(map[string]any{pipeline.KeyFilesToProcess: []string{"src/Header.jsx"}})

	res, err := (&Analysis{W: w}).Execute(context.Background(), st)
	require.NoError(t, err)
	st = merge(st, res)

	got := AnalysisResults(st)
	require.Len(t, got, 1)
	assert.Equal(t, SourceOracle, got[0].Source)
	assert.Equal(t, []string{"header.title", "common.save_changes"}, keysOf(got[0]))
	assert.Equal(t, 2, st.Context.Int(pipeline.KeyStringsFound))
	require.Len(t, o.prompts, 1)
	assert.Contains(t, o.prompts[0], `"Save your work"`)
	assert.Contains(t, o.prompts[0], "src/Header.jsx")
}

func TestAnalysis_OracleFailureKeepsDeterministicResult(t *testing.T) {
	for name, o := range map[string]*fakeOracle{
		"call":     {err: errors.New("api request failed: 503")},
		"response": {out: "I could not find any strings."},
	} {
		t.Run(name, func(t *testing.T) {
			w, _ := newWorkspace(t, map[string]string{"src/Header.jsx": headerSrc})
			w.Oracle = o
			st := runState(map[string]any{pipeline.KeyFilesToProcess: []string{"src/Header.jsx"}})

			res, err := (&Analysis{W: w}).Execute(context.Background(), st)
			require.Error(t, err)
			require.NotNil(t, res)
			assert.Equal(t, 3, res.Context[pipeline.KeyStringsFound])
			assert.False(t, pipeline.IsCritical(err))
		})
	}
}

func TestAnalysis_UnreadableFiles(t *testing.T) {
	w, _ := newWorkspace(t, nil)
	st := runState(map[string]any{pipeline.KeyFilesToProcess: []string{"src/Missing.jsx"}})
	_, err := (&Analysis{W: w}).Execute(context.Background(), st)
	assert.ErrorContains(t, err, "analysis failed")
}

func TestTransformation_Deterministic(t *testing.T) {
	w, g := newWorkspace(t, map[string]string{"src/Header.jsx": headerSrc})
	st := analysed(t, w)

	res, err := (&Transformation{W: w}).Execute(context.Background(), st)
	require.NoError(t, err)
	st = merge(st, res)

	assert.Equal(t, 1, st.Context.Int(pipeline.KeyFilesTransformed))
	results := TransformResults(st)
	require.Len(t, results, 1)
	assert.Equal(t, StatusTransformed, results[0].Status)
	assert.Equal(t, 3, results[0].Applied)
	assert.Equal(t, []string{"src/Header.jsx"}, g.tracked)
	assert.Equal(t, []string{"snap-1"}, g.ids)

	out := readTree(t, w.Root, "src/Header.jsx")
	assert.Contains(t, out, jsx.ImportLine)
	assert.Contains(t, out, "<h1>{t('common.welcome_back')}</h1>")
	assert.Contains(t, out, "title={t('title.save_your_work')}")
}

func TestTransformation_AlreadyConverted(t *testing.T) {
	w, _ := newWorkspace(t, map[string]string{"src/Header.jsx": headerSrc})
	st := analysed(t, w)
	_, err := (&Transformation{W: w}).Execute(context.Background(), st)
	require.NoError(t, err)
	converted := readTree(t, w.Root, "src/Header.jsx")

	st = analysed(t, w)
	assert.Zero(t, st.Context.Int(pipeline.KeyStringsFound))
	res, err := (&Transformation{W: w}).Execute(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Context[pipeline.KeyFilesTransformed])
	assert.Equal(t, converted, readTree(t, w.Root, "src/Header.jsx"))
}

func TestTransformation_OracleRewrite(t *testing.T) {
	rewritten := `import React from 'react';
import { useTranslation } from 'react-i18next';

export default function Header() {
  const { t } = useTranslation();
  return <h1>{t('common.welcome_back')}</h1>;
}
`
	w, _ := newWorkspace(t, map[string]string{"src/Header.jsx": headerSrc})
	st := analysed(t, w)
	o := &fakeOracle{out: "```jsx\n" + rewritten + "```\n"}
	w.Oracle = o

	res, err := (&Transformation{W: w}).Execute(context.Background(), st)
	require.NoError(t, err)
	results := res.Context[pipeline.KeyTransformResults].([]TransformResult)
	require.Len(t, results, 1)
	assert.Equal(t, SourceOracle, results[0].Source)
	assert.Equal(t, rewritten, readTree(t, w.Root, "src/Header.jsx"))
	assert.Contains(t, o.prompts[0], `"Welcome back" -> common.welcome_back`)
}

func TestTransformation_BrokenOracleOutputFallsBack(t *testing.T) {
	w, _ := newWorkspace(t, map[string]string{"src/Header.jsx": headerSrc})
	st := analysed(t, w)
	w.Oracle = &fakeOracle{out: "```jsx\nexport default function Header() {\n  return (<div>{t('x')};\n```"}

	res, err := (&Transformation{W: w}).Execute(context.Background(), st)
	require.NoError(t, err)
	results := res.Context[pipeline.KeyTransformResults].([]TransformResult)
	assert.Equal(t, SourceScanner, results[0].Source)
	assert.Equal(t, StatusTransformed, results[0].Status)
	assert.Contains(t, readTree(t, w.Root, "src/Header.jsx"), jsx.ImportLine)
}

func TestTransformation_UnchangedOracleOutput(t *testing.T) {
	w, g := newWorkspace(t, map[string]string{"src/Header.jsx": headerSrc})
	st := analysed(t, w)
	w.Oracle = &fakeOracle{out: "```jsx\n" + headerSrc + "```"}

	res, err := (&Transformation{W: w}).Execute(context.Background(), st)
	require.NoError(t, err)
	results := res.Context[pipeline.KeyTransformResults].([]TransformResult)
	assert.Equal(t, StatusNoChanges, results[0].Status)
	assert.Zero(t, res.Context[pipeline.KeyFilesTransformed])
	assert.Empty(t, g.tracked)
	assert.Equal(t, headerSrc, readTree(t, w.Root, "src/Header.jsx"))
}
