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
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/cloudwego/i18nagent/internal/fsutil"
	"github.com/cloudwego/i18nagent/internal/log"
	"github.com/cloudwego/i18nagent/internal/pipeline"
)

// RunReport is the final account of a run.
type RunReport struct {
	GeneratedAt       time.Time             `json:"generated_at"`
	Phase             pipeline.Phase        `json:"phase"`
	TargetLanguage    string                `json:"target_language"`
	FilesDiscovered   int                   `json:"files_discovered"`
	StringsFound      int                   `json:"strings_found"`
	FilesTransformed  int                   `json:"files_transformed"`
	StringsTranslated int                   `json:"strings_translated"`
	LocaleFiles       int                   `json:"locale_files"`
	ValidFiles        int                   `json:"valid_files"`
	InvalidFiles      int                   `json:"invalid_files"`
	TestsPassed       int                   `json:"tests_passed"`
	TestsFailed       int                   `json:"tests_failed"`
	CompletedTasks    []string              `json:"completed_tasks"`
	Issues            []string              `json:"issues,omitempty"`
	Errors            pipeline.ErrorSummary `json:"errors"`
	JSONFile          string                `json:"-"`
	TextFile          string                `json:"-"`
}

// Report writes the run report as JSON and as rendered text into Dir. It
// never fails: write errors are logged and the report is still returned.
type Report struct {
	Dir string
	Now func() time.Time
}

var _ pipeline.Tool = (*Report)(nil)

// Execute implements pipeline.Tool.
func (r *Report) Execute(ctx context.Context, st pipeline.AgentState) (*pipeline.ToolResult, error) {
	rep := BuildReport(st, r.now())
	stamp := rep.GeneratedAt.UTC().Format("20060102-150405")
	rep.JSONFile = filepath.Join(r.Dir, "report-"+stamp+".json")
	rep.TextFile = filepath.Join(r.Dir, "report-"+stamp+".txt")

	if err := fsutil.AtomicWriteJSON(rep.JSONFile, rep); err != nil {
		log.Error("reporting: %v", err)
		rep.JSONFile = ""
	}
	if err := fsutil.AtomicWrite(rep.TextFile, []byte(RenderReport(rep)+"\n"), 0o644); err != nil {
		log.Error("reporting: %v", err)
		rep.TextFile = ""
	}

	return &pipeline.ToolResult{
		Summary: fmt.Sprintf("run %s: %d files transformed, %d strings translated, %d errors",
			rep.Phase, rep.FilesTransformed, rep.StringsTranslated, rep.Errors.Total),
		Context: map[string]any{pipeline.KeyReport: rep},
	}, nil
}

func (r *Report) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// BuildReport collects the report figures from st.
func BuildReport(st pipeline.AgentState, at time.Time) RunReport {
	c := st.Context
	rep := RunReport{
		GeneratedAt:       at,
		Phase:             st.Phase,
		TargetLanguage:    st.TargetLanguage,
		FilesDiscovered:   len(c.Strings(pipeline.KeyFilesToProcess)),
		StringsFound:      c.Int(pipeline.KeyStringsFound),
		FilesTransformed:  c.Int(pipeline.KeyFilesTransformed),
		StringsTranslated: c.Int(pipeline.KeyStringsTranslated),
		LocaleFiles:       c.Int(pipeline.KeyLocaleFilesCreated),
		ValidFiles:        c.Int(pipeline.KeyValidFiles),
		InvalidFiles:      c.Int(pipeline.KeyInvalidFiles),
		TestsPassed:       c.Int(pipeline.KeyTestsPassed),
		TestsFailed:       c.Int(pipeline.KeyTestsFailed),
		Issues:            c.Strings(pipeline.KeyIssues),
		Errors:            pipeline.Summarize(st),
	}
	for _, t := range st.CompletedTasks {
		rep.CompletedTasks = append(rep.CompletedTasks, t.Task)
	}
	return rep
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#8BC34A"))
	labelStyle = lipgloss.NewStyle().Width(22)
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#E06C75"))
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// RenderReport formats rep for a terminal.
func RenderReport(rep RunReport) string {
	var b strings.Builder
	row := func(label string, v any) {
		b.WriteString(labelStyle.Render(label) + fmt.Sprint(v) + "\n")
	}
	b.WriteString(titleStyle.Render("i18n run report") + "\n\n")
	row("Phase", rep.Phase)
	row("Target language", fmt.Sprintf("%s (%s)", LanguageName(rep.TargetLanguage), rep.TargetLanguage))
	row("Files discovered", rep.FilesDiscovered)
	row("Strings found", rep.StringsFound)
	row("Files transformed", rep.FilesTransformed)
	row("Strings translated", rep.StringsTranslated)
	row("Locale files", rep.LocaleFiles)
	row("Valid / invalid", fmt.Sprintf("%d / %d", rep.ValidFiles, rep.InvalidFiles))
	if rep.TestsPassed+rep.TestsFailed > 0 {
		row("Smoke tests", fmt.Sprintf("%d passed, %d failed", rep.TestsPassed, rep.TestsFailed))
	}
	row("Tasks", strings.Join(rep.CompletedTasks, ", "))

	if rep.Errors.Total > 0 {
		b.WriteString("\n" + errorStyle.Render(fmt.Sprintf("%d errors (%d critical)", rep.Errors.Total, rep.Errors.Critical)) + "\n")
		for _, te := range rep.Errors.Tools {
			fmt.Fprintf(&b, "  %s: %d x %s, last: %s\n    fix: %s\n", te.Tool, te.Count, te.ErrorType, te.LastError, te.SuggestedFix)
		}
	}
	if len(rep.Issues) > 0 {
		b.WriteString("\nIssues\n")
		for _, is := range rep.Issues {
			b.WriteString("  - " + is + "\n")
		}
	}
	return boxStyle.Render(strings.TrimRight(b.String(), "\n"))
}
