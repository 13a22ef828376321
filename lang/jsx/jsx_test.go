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

package jsx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const headerSrc = `import React from 'react';

export default function Header() {
  return (
    <div className="header">
      <h1>Welcome back</h1>
      <button title="Save your work">Save changes</button>
    </div>
  );
}
`

func TestScanner_Scan(t *testing.T) {
	s := NewScanner()
	got, err := s.Scan(context.Background(), "Header.jsx", []byte(headerSrc))
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "Welcome back", got[0].Text)
	assert.Equal(t, KindText, got[0].Kind)
	assert.Equal(t, 6, got[0].Line)

	assert.Equal(t, "Save your work", got[1].Text)
	assert.Equal(t, KindAttribute, got[1].Kind)
	assert.Equal(t, "title", got[1].Attribute)

	assert.Equal(t, "Save changes", got[2].Text)
	assert.Equal(t, 7, got[2].Line)
	assert.Equal(t, "Save changes", headerSrc[got[2].StartByte:got[2].EndByte])
}

func TestScanner_ScanMessages(t *testing.T) {
	src := `export function save() {
  alert("Saved successfully");
  console.log("debug output here");
}
`
	got, err := NewScanner().Scan(context.Background(), "save.js", []byte(src))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, KindMessage, got[0].Kind)
	assert.Equal(t, "Saved successfully", got[0].Text)
	assert.Equal(t, `"Saved successfully"`, src[got[0].StartByte:got[0].EndByte])
}

func TestScanner_ContainsJSX(t *testing.T) {
	s := NewScanner()
	ok, err := s.ContainsJSX(context.Background(), "Header.jsx", []byte(headerSrc))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.ContainsJSX(context.Background(), "util.js", []byte("export const x = 1;\n"))
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.ContainsJSX(context.Background(), "main.py", []byte("x = 1"))
	assert.Error(t, err)
	assert.False(t, Supported("main.py"))
	assert.True(t, Supported("App.tsx"))
}

func TestRewriteAndCheck(t *testing.T) {
	ctx := context.Background()
	s := NewScanner()
	src := []byte(headerSrc)

	before, err := s.Check(ctx, "Header.jsx", src)
	require.NoError(t, err)
	assert.True(t, before.Ok)
	assert.False(t, before.UsesT)
	assert.Equal(t, 3, before.Hardcoded)

	cands, err := s.Scan(ctx, "Header.jsx", src)
	require.NoError(t, err)
	keys := NewKeys()
	var reps []Replacement
	for _, c := range cands {
		reps = append(reps, Replacement{Candidate: c, Key: keys.For(c)})
	}
	out, applied := Rewrite(src, reps)
	assert.Equal(t, 3, applied)

	out, err = s.EnsureImport(ctx, "Header.jsx", out)
	require.NoError(t, err)
	text := string(out)
	assert.Contains(t, text, "import React from 'react';\n"+ImportLine)
	assert.Contains(t, text, "<h1>{t('common.welcome_back')}</h1>")
	assert.Contains(t, text, `title={t('title.save_your_work')}`)
	assert.Contains(t, text, ">{t('common.save_changes')}</button>")

	after, err := s.Check(ctx, "Header.jsx", out)
	require.NoError(t, err)
	assert.True(t, after.Ok)
	assert.True(t, after.UsesT)
	assert.True(t, after.HasImport)
	assert.Zero(t, after.Hardcoded)
	assert.Empty(t, after.Issues)

	again, err := s.EnsureImport(ctx, "Header.jsx", out)
	require.NoError(t, err)
	assert.Equal(t, out, again)
}

func TestCheck_Structural(t *testing.T) {
	ctx := context.Background()
	s := NewScanner()

	broken := "export default function A() {\n  return (<div>Hi</div>;\n"
	res, err := s.Check(ctx, "A.jsx", []byte(broken))
	require.NoError(t, err)
	assert.False(t, res.Ok)
	assert.Equal(t, SeverityFatal, res.Severity)
	assert.NotEmpty(t, res.Fatal())

	noImport := "export function label() {\n  return t('common.ok');\n}\n"
	res, err = s.Check(ctx, "label.js", []byte(noImport))
	require.NoError(t, err)
	assert.False(t, res.Ok)
	require.Len(t, res.Fatal(), 1)
	assert.Contains(t, res.Fatal()[0].Message, "missing translation import")

	tmpl := "import { t } from 'i18next';\nexport const f = (n) => `${n} ${t('common.items')}`;\n"
	res, err = s.Check(ctx, "f.js", []byte(tmpl))
	require.NoError(t, err)
	assert.True(t, res.Ok, "%+v", res.Issues)
}

func TestFilter_SkipReason(t *testing.T) {
	f, err := NewFilter([]string{`^TODO`})
	require.NoError(t, err)

	for _, tc := range []struct {
		text, attr string
		skip       bool
	}{
		{"Welcome back", "", false},
		{"Admin", "", false},
		{"Save", "title", false},
		{"https://example.com", "", true},
		{"btn-primary", "", true},
		{"userName", "", true},
		{"user@example.com", "", true},
		{"12px", "", true},
		{"1,024", "", true},
		{"center", "", true},
		{"undefined", "", true},
		{"/images/logo.png", "", true},
		{"Profile picture", "className", true},
		{"Hello", "data-test", true},
		{"x", "", true},
		{"TODO fix me", "", true},
	} {
		got := f.SkipReason(tc.text, tc.attr)
		assert.Equal(t, tc.skip, got != "", "%q attr=%q reason=%q", tc.text, tc.attr, got)
	}

	_, err = NewFilter([]string{"("})
	assert.Error(t, err)
}

func TestKeys(t *testing.T) {
	k := NewKeys()
	c := Candidate{Text: "Save changes", Kind: KindText}
	assert.Equal(t, "common.save_changes", k.For(c))
	assert.Equal(t, "common.save_changes", k.For(c))
	assert.Equal(t, "common.save_changes_2", k.For(Candidate{Text: "Save changes!", Kind: KindText}))
	assert.Equal(t, "placeholder.your_email", k.For(Candidate{Text: "Your email", Kind: KindAttribute, Attribute: "placeholder"}))
	assert.Equal(t, "label.close", k.For(Candidate{Text: "Close", Kind: KindAttribute, Attribute: "aria-label"}))

	assert.True(t, k.Reserve("menu.logout", "Log out"))
	assert.False(t, k.Reserve("menu.logout", "Sign out"))
	assert.Equal(t, "menu.logout", k.For(Candidate{Text: "Log out"}))

	assert.Equal(t, "hello_world_how_are_you", Slug("Hello, World! How are you today friend"))
	assert.Equal(t, "text", Slug("!!!"))
}

func TestAddImports(t *testing.T) {
	ctx := context.Background()
	s := NewScanner()

	src := "import React from 'react';\nimport './app.css';\n\nexport default function App() {\n  return <main />;\n}\n"
	out, err := s.AddImports(ctx, "App.jsx", []byte(src), "import a from './a';", "import './b';")
	require.NoError(t, err)
	assert.Equal(t, "import React from 'react';\nimport './app.css';\nimport a from './a';\nimport './b';\n\nexport default function App() {\n  return <main />;\n}\n", string(out))

	out, err = s.AddImports(ctx, "plain.js", []byte("export const x = 1;\n"), "import a from './a';")
	require.NoError(t, err)
	assert.Equal(t, "import a from './a';\nexport const x = 1;\n", string(out))
}
