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
	"sort"

	"github.com/pkg/errors"

	"github.com/cloudwego/i18nagent/internal/log"
	"github.com/cloudwego/i18nagent/internal/pipeline"
	"github.com/cloudwego/i18nagent/llm/prompt"
)

var languageNames = map[string]string{
	"en": "English",
	"es": "Spanish",
	"fr": "French",
	"de": "German",
	"it": "Italian",
	"pt": "Portuguese",
	"ru": "Russian",
	"ja": "Japanese",
	"ko": "Korean",
	"zh": "Chinese",
	"ar": "Arabic",
}

// LanguageName returns the English name of a language code, or the code.
func LanguageName(code string) string {
	if n, ok := languageNames[code]; ok {
		return n
	}
	return code
}

// Entry is one key with its source text and translation.
type Entry struct {
	Key  string `json:"key"`
	Text string `json:"text"`
	// Translation falls back to Text when the oracle gave none.
	Translation string `json:"translation"`
	Fallback    bool   `json:"fallback,omitempty"`
}

// Translations is the translate result consumed by locale emission.
type Translations struct {
	Source  string  `json:"source"`
	Target  string  `json:"target"`
	Entries []Entry `json:"entries"`
}

// TranslateResults returns the translations stored in the context of st.
func TranslateResults(st pipeline.AgentState) (Translations, bool) {
	v, ok := st.Context[pipeline.KeyTranslateResults].(Translations)
	return v, ok
}

const defaultBatchSize = 20

// Translation translates every analysed phrase into the target language.
type Translation struct {
	W              *Workspace
	SourceLanguage string
	TargetLanguage string
	BatchSize      int
}

var _ pipeline.Tool = (*Translation)(nil)

// Execute implements pipeline.Tool. Without an oracle, or when source and
// target are the same language, every translation is the source text.
func (t *Translation) Execute(ctx context.Context, st pipeline.AgentState) (*pipeline.ToolResult, error) {
	entries := uniqueEntries(AnalysisResults(st))
	out := Translations{Source: t.SourceLanguage, Target: t.TargetLanguage, Entries: entries}

	missing := 0
	if t.W.Oracle != nil && t.SourceLanguage != t.TargetLanguage {
		size := t.BatchSize
		if size <= 0 {
			size = defaultBatchSize
		}
		for i := 0; i < len(entries); i += size {
			end := min(i+size, len(entries))
			got, err := t.batch(ctx, entries[i:end])
			if err != nil {
				return nil, errors.Wrapf(err, "translate batch %d-%d", i, end)
			}
			for j := i; j < end; j++ {
				if tr, ok := got[entries[j].Key]; ok && tr != "" {
					entries[j].Translation = tr
					continue
				}
				log.Warn("translation: no %s text for %s, keeping source", t.TargetLanguage, entries[j].Key)
				entries[j].Fallback = true
				missing++
			}
		}
	}

	return &pipeline.ToolResult{
		Summary: fmt.Sprintf("translated %d strings to %s (%d kept in source language)",
			len(entries), LanguageName(t.TargetLanguage), missing),
		Context: map[string]any{
			pipeline.KeyStringsTranslated: len(entries),
			pipeline.KeyTranslateResults:  out,
		},
	}, nil
}

func (t *Translation) batch(ctx context.Context, entries []Entry) (map[string]string, error) {
	answer, err := t.W.ask(ctx, prompt.Translate, map[string]any{
		"SourceLanguageName": LanguageName(t.SourceLanguage),
		"TargetLanguageName": LanguageName(t.TargetLanguage),
		"Entries":            entries,
	})
	if err != nil {
		return nil, err
	}
	raw, ok := pipeline.ExtractJSONObject(answer)
	if !ok {
		return nil, errors.New("unparseable translation response: no JSON object")
	}
	var parsed struct {
		Translations map[string]string `json:"translations"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, errors.Wrap(err, "unparseable translation response")
	}
	return parsed.Translations, nil
}

// uniqueEntries flattens the analysis into one entry per key, sorted by key.
func uniqueEntries(analysis []FileAnalysis) []Entry {
	seen := map[string]bool{}
	var entries []Entry
	for _, fa := range analysis {
		for _, p := range fa.Phrases {
			if seen[p.Key] {
				continue
			}
			seen[p.Key] = true
			entries = append(entries, Entry{Key: p.Key, Text: p.Text, Translation: p.Text})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries
}
