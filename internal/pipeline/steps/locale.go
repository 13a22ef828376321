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
	"encoding/json"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/pkg/errors"

	"github.com/cloudwego/i18nagent/internal/log"
	"github.com/cloudwego/i18nagent/internal/pipeline"
)

// Namespace is the single i18next namespace the agent writes.
const Namespace = "common"

// LocaleFile returns the slash separated path of the namespace file of lang.
func LocaleFile(dir, lang string) string {
	return path.Join(dir, lang, Namespace+".json")
}

// LocaleResult lists the locale files written and the keys they hold.
type LocaleResult struct {
	Files []string `json:"files"`
	Keys  int      `json:"keys"`
}

type localeValues struct {
	lang   string
	values map[string]string
}

// Locale writes the translations as nested i18next resource files for the
// target and source language, merging with files that already exist.
type Locale struct {
	W   *Workspace
	Dir string
}

var _ pipeline.Tool = (*Locale)(nil)

// Execute implements pipeline.Tool.
func (l *Locale) Execute(ctx context.Context, st pipeline.AgentState) (*pipeline.ToolResult, error) {
	tr, ok := TranslateResults(st)
	if !ok {
		return nil, errors.New("no translations to emit")
	}
	if len(tr.Entries) == 0 {
		return &pipeline.ToolResult{
			Summary: "no translations, nothing written",
			Context: map[string]any{
				pipeline.KeyLocaleFilesCreated: 0,
				pipeline.KeyLocaleResults:      LocaleResult{},
			},
		}, nil
	}

	target := map[string]string{}
	source := map[string]string{}
	for _, e := range tr.Entries {
		target[e.Key] = e.Translation
		source[e.Key] = e.Text
	}
	files := []localeValues{{tr.Target, target}}
	if tr.Source != "" && tr.Source != tr.Target {
		files = append(files, localeValues{tr.Source, source})
	}

	res := LocaleResult{Keys: len(tr.Entries)}
	for _, f := range files {
		rel := LocaleFile(l.Dir, f.lang)
		if err := l.write(ctx, st, rel, f.values); err != nil {
			return &pipeline.ToolResult{Context: map[string]any{
				pipeline.KeyLocaleFilesCreated: len(res.Files),
				pipeline.KeyLocaleResults:      res,
			}}, err
		}
		log.Info("locale: wrote %d keys to %s", len(f.values), rel)
		res.Files = append(res.Files, rel)
	}

	return &pipeline.ToolResult{
		Summary: fmt.Sprintf("wrote %d locale files with %d keys", len(res.Files), res.Keys),
		Context: map[string]any{
			pipeline.KeyLocaleFilesCreated: len(res.Files),
			pipeline.KeyLocaleResults:      res,
		},
	}, nil
}

func (l *Locale) write(ctx context.Context, st pipeline.AgentState, rel string, values map[string]string) error {
	doc := map[string]any{}
	if data, err := l.W.Read(rel); err == nil {
		if err := json.Unmarshal(data, &doc); err != nil {
			return errors.Wrapf(err, "parse existing %s", rel)
		}
	} else if !os.IsNotExist(errors.Cause(err)) {
		return err
	}
	for k, v := range values {
		setNested(doc, strings.Split(k, "."), v)
	}
	data, err := encodeJSON(doc)
	if err != nil {
		return errors.Wrapf(err, "encode %s", rel)
	}
	return l.W.Write(ctx, st, rel, data)
}

// setNested stores v under the dotted path parts. When a prefix is already a
// plain string the remaining parts are kept as one dotted key at that level.
func setNested(doc map[string]any, parts []string, v string) {
	cur := doc
	for i, p := range parts[:len(parts)-1] {
		next, ok := cur[p].(map[string]any)
		if !ok {
			if _, taken := cur[p]; taken {
				cur[strings.Join(parts[i:], ".")] = v
				return
			}
			next = map[string]any{}
			cur[p] = next
		}
		cur = next
	}
	leaf := parts[len(parts)-1]
	if _, isMap := cur[leaf].(map[string]any); isMap {
		return
	}
	cur[leaf] = v
}

// encodeJSON indents doc with sorted keys and leaves HTML characters as is.
func encodeJSON(doc any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReadLocale returns the flattened keys of a locale file.
func ReadLocale(w *Workspace, rel string) (map[string]string, error) {
	data, err := w.Read(rel)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(err, "parse %s", rel)
	}
	out := map[string]string{}
	flatten("", doc, out)
	return out, nil
}

func flatten(prefix string, doc map[string]any, out map[string]string) {
	for k, v := range doc {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch v := v.(type) {
		case map[string]any:
			flatten(key, v, out)
		case string:
			out[key] = v
		}
	}
}
