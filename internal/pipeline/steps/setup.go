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
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/pkg/errors"

	"github.com/cloudwego/i18nagent/internal/log"
	"github.com/cloudwego/i18nagent/internal/pipeline"
)

var i18nConfigTemplate = template.Must(template.New("i18n.js").Parse(`import i18n from 'i18next';
import { initReactI18next } from 'react-i18next';

{{range .Languages}}import {{.Ident}} from '{{.Import}}';
{{end}}
const resources = {
{{- range .Languages}}
  {{.Code}}: {
    common: {{.Ident}}
  },
{{- end}}
};

i18n
  .use(initReactI18next)
  .init({
    resources,
    lng: '{{.Target}}',
    fallbackLng: '{{.Source}}',
    debug: process.env.NODE_ENV === 'development',
    interpolation: {
      escapeValue: false,
    },
    defaultNS: 'common',
    ns: ['common'],
  });

export default i18n;
`))

var providerTemplate = template.Must(template.New("I18nProvider.jsx").Parse(`import React from 'react';
import { I18nextProvider } from 'react-i18next';
import i18n from '{{.Config}}';

const I18nProvider = ({ children }) => {
  return (
    <I18nextProvider i18n={i18n}>
      {children}
    </I18nextProvider>
  );
};

export default I18nProvider;
`))

// Setup statuses.
const (
	StatusCreated = "created"
	StatusExists  = "exists"
)

// SetupResult maps every generated file to its status.
type SetupResult struct {
	Files map[string]string `json:"files"`
}

// Setup writes the i18next configuration module and the provider component.
// Files that already initialise i18next are left alone.
type Setup struct {
	W              *Workspace
	ConfigFile     string
	ProviderFile   string
	LocalesDir     string
	SourceLanguage string
	TargetLanguage string
}

var _ pipeline.Tool = (*Setup)(nil)

type languageImport struct {
	Code, Ident, Import string
}

// Execute implements pipeline.Tool.
func (s *Setup) Execute(ctx context.Context, st pipeline.AgentState) (*pipeline.ToolResult, error) {
	config, err := s.render(i18nConfigTemplate, map[string]any{
		"Languages": s.languages(),
		"Source":    s.SourceLanguage,
		"Target":    s.TargetLanguage,
	})
	if err != nil {
		return nil, err
	}
	provider, err := s.render(providerTemplate, map[string]any{
		"Config": stripExt(relImport(s.ProviderFile, s.ConfigFile)),
	})
	if err != nil {
		return nil, err
	}

	res := SetupResult{Files: map[string]string{}}
	for _, f := range []struct {
		rel, marker string
		data        []byte
	}{
		{s.ConfigFile, "initReactI18next", config},
		{s.ProviderFile, "I18nextProvider", provider},
	} {
		status, err := s.ensure(ctx, st, f.rel, f.marker, f.data)
		if err != nil {
			return &pipeline.ToolResult{Context: map[string]any{
				pipeline.KeyConfigFilesCreated: len(res.Files),
				pipeline.KeySetupResults:       res,
			}}, err
		}
		res.Files[f.rel] = status
	}

	return &pipeline.ToolResult{
		Summary: fmt.Sprintf("i18n setup ready (%s, %s)", s.ConfigFile, s.ProviderFile),
		Context: map[string]any{
			pipeline.KeyConfigFilesCreated: len(res.Files),
			pipeline.KeySetupResults:       res,
		},
	}, nil
}

func (s *Setup) ensure(ctx context.Context, st pipeline.AgentState, rel, marker string, data []byte) (string, error) {
	existing, err := s.W.Read(rel)
	switch {
	case err == nil && bytes.Contains(existing, []byte(marker)):
		log.Debug("setup: %s already present", rel)
		return StatusExists, nil
	case err != nil && !os.IsNotExist(errors.Cause(err)):
		return "", err
	}
	if err := s.W.Write(ctx, st, rel, data); err != nil {
		return "", err
	}
	log.Info("setup: wrote %s", rel)
	return StatusCreated, nil
}

func (s *Setup) languages() []languageImport {
	codes := []string{s.SourceLanguage}
	if s.TargetLanguage != s.SourceLanguage {
		codes = append(codes, s.TargetLanguage)
	}
	out := make([]languageImport, 0, len(codes))
	for _, c := range codes {
		out = append(out, languageImport{
			Code:   c,
			Ident:  identFor(c) + "Common",
			Import: relImport(s.ConfigFile, LocaleFile(s.LocalesDir, c)),
		})
	}
	return out
}

func (s *Setup) render(t *template.Template, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return nil, errors.Wrapf(err, "render %s", t.Name())
	}
	return buf.Bytes(), nil
}

// relImport returns the ES module specifier of target as seen from the file from.
func relImport(from, target string) string {
	rel, err := filepath.Rel(filepath.Dir(filepath.FromSlash(from)), filepath.FromSlash(target))
	if err != nil {
		return target
	}
	rel = filepath.ToSlash(rel)
	if !strings.HasPrefix(rel, ".") {
		rel = "./" + rel
	}
	return rel
}

// identFor turns a language code such as pt-BR into ptBR.
func identFor(code string) string {
	var b strings.Builder
	for _, r := range code {
		if r == '-' || r == '_' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
