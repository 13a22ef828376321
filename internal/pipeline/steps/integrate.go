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
	"path"
	"regexp"
	"strings"

	"github.com/pkg/errors"

	"github.com/cloudwego/i18nagent/internal/log"
	"github.com/cloudwego/i18nagent/internal/pipeline"
)

// Integration statuses.
const (
	StatusIntegrated = "integrated"
	StatusMissing    = "missing"
	StatusNoTarget   = "no_wrap_target"
)

// IntegrateResult reports what happened to the app entry file.
type IntegrateResult struct {
	File   string `json:"file"`
	Status string `json:"status"`
}

var (
	cacheOpenRE  = regexp.MustCompile(`return\s*\(\s*<CacheProvider`)
	cacheCloseRE = regexp.MustCompile(`</CacheProvider>\s*\);`)
	componentRE  = regexp.MustCompile(`<Component\s+\{\.\.\.pageProps\}\s*/>`)
)

// Integration wires the provider into the app entry file: it imports the
// provider and the i18n configuration and wraps the page component.
type Integration struct {
	W            *Workspace
	AppFile      string
	ProviderFile string
	ConfigFile   string
}

var _ pipeline.Tool = (*Integration)(nil)

// Execute implements pipeline.Tool. A missing app file is not an error; the
// integration is then reported as incomplete.
func (in *Integration) Execute(ctx context.Context, st pipeline.AgentState) (*pipeline.ToolResult, error) {
	res := IntegrateResult{File: in.AppFile}
	result := func(summary string, complete bool) *pipeline.ToolResult {
		return &pipeline.ToolResult{
			Summary: summary,
			Context: map[string]any{
				pipeline.KeyIntegrationComplete: complete,
				pipeline.KeyIntegrateResults:    res,
			},
		}
	}

	src, err := in.W.Read(in.AppFile)
	if err != nil {
		if os.IsNotExist(errors.Cause(err)) {
			res.Status = StatusMissing
			log.Warn("integration: %s not found", in.AppFile)
			return result(in.AppFile+" not found, nothing to integrate", false), nil
		}
		return nil, err
	}

	providerImport := stripExt(relImport(in.AppFile, in.ProviderFile))
	configImport := stripExt(relImport(in.AppFile, in.ConfigFile))
	if bytes.Contains(src, []byte("<I18nProvider")) && bytes.Contains(src, []byte(configImport)) {
		res.Status = StatusExists
		return result(in.AppFile+" already integrated", true), nil
	}

	out, wrapped := wrapProvider(src)
	out, err = in.W.scanner().AddImports(ctx, in.AppFile, out,
		fmt.Sprintf("import I18nProvider from '%s';", providerImport),
		fmt.Sprintf("import '%s';", configImport),
	)
	if err != nil {
		return nil, err
	}
	chk, err := in.W.scanner().Check(ctx, in.AppFile, out)
	if err != nil {
		return nil, err
	}
	if fatal := chk.Fatal(); len(fatal) > 0 {
		return nil, pipeline.Recoverable(errors.Errorf("integrated %s does not parse: %s", in.AppFile, fatal[0].Message))
	}
	if err := in.W.Write(ctx, st, in.AppFile, out); err != nil {
		return nil, err
	}

	if !wrapped {
		res.Status = StatusNoTarget
		log.Warn("integration: no page component to wrap in %s", in.AppFile)
		return result("imported i18n into "+in.AppFile+" but found nothing to wrap", false), nil
	}
	res.Status = StatusIntegrated
	log.Info("integration: wrapped %s in I18nProvider", in.AppFile)
	return result("integrated i18n into "+in.AppFile, true), nil
}

// wrapProvider surrounds the outermost CacheProvider, or else the page
// component, with I18nProvider.
func wrapProvider(src []byte) ([]byte, bool) {
	if cacheOpenRE.Match(src) && cacheCloseRE.Match(src) {
		out := cacheOpenRE.ReplaceAll(src, []byte("return (\n    <I18nProvider>\n      <CacheProvider"))
		out = cacheCloseRE.ReplaceAll(out, []byte("</CacheProvider>\n    </I18nProvider>\n  );"))
		return out, true
	}
	if componentRE.Match(src) {
		return componentRE.ReplaceAll(src, []byte("<I18nProvider>${0}</I18nProvider>")), true
	}
	return src, false
}

func stripExt(p string) string {
	return strings.TrimSuffix(p, path.Ext(p))
}
