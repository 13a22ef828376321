/**
 * Copyright 2025 ByteDance Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package prompt

import (
	"bytes"
	"embed"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/pkg/errors"
)

// Template names.
const (
	System    = "system.md"
	Decision  = "decision.md"
	Analyze   = "analyze.md"
	Transform = "transform.md"
	Translate = "translate.md"
)

//go:embed *.md
var builtin embed.FS

var funcs = template.FuncMap{
	"join":  strings.Join,
	"quote": func(s string) string { return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"` },
}

// Templates renders the prompts sent to the model.
type Templates struct {
	tpl *template.Template
}

// Default returns the embedded templates.
func Default() *Templates {
	return &Templates{tpl: template.Must(template.New("").Funcs(funcs).ParseFS(builtin, "*.md"))}
}

// Load returns the embedded templates overridden by any *.md file of the
// same name found in dir.
func Load(dir string) (*Templates, error) {
	t := Default()
	if dir == "" {
		return t, nil
	}
	matches, err := filepath.Glob(filepath.Join(dir, "*.md"))
	if err != nil {
		return nil, errors.Wrap(err, "glob prompt dir")
	}
	for _, m := range matches {
		body, err := os.ReadFile(m)
		if err != nil {
			return nil, errors.Wrapf(err, "read prompt %s", m)
		}
		if _, err := t.tpl.New(filepath.Base(m)).Parse(string(body)); err != nil {
			return nil, errors.Wrapf(err, "parse prompt %s", m)
		}
	}
	return t, nil
}

// Render executes template name with data.
func (t *Templates) Render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.tpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", errors.Wrapf(err, "render prompt %s", name)
	}
	return buf.String(), nil
}
