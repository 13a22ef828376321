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

// Package jsx finds user facing strings in JavaScript/JSX/TSX sources and
// performs the structural checks used to accept or reject rewritten files.
package jsx

import (
	"context"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

type Kind string

const (
	KindText      Kind = "jsx_text"
	KindAttribute Kind = "jsx_attribute"
	KindMessage   Kind = "call_argument"
)

// Candidate is one translatable string. StartByte/EndByte cover the bytes a
// rewrite replaces: the trimmed text for KindText and the quoted literal
// otherwise.
type Candidate struct {
	Text      string `json:"text"`
	Kind      Kind   `json:"kind"`
	Attribute string `json:"attribute,omitempty"`
	Line      int    `json:"line"`
	Context   string `json:"context,omitempty"`
	StartByte uint32 `json:"start_byte"`
	EndByte   uint32 `json:"end_byte"`
}

// functions whose first string argument is shown to the user
var messageCallees = map[string]bool{
	"alert":         true,
	"confirm":       true,
	"notify":        true,
	"toast":         true,
	"toast.success": true,
	"toast.error":   true,
	"toast.info":    true,
	"message.error": true,
	"message.info":  true,
}

// Scanner parses sources with tree-sitter. It is safe for sequential use
// only; create one per goroutine.
type Scanner struct {
	filter *Filter
}

type Option func(*Scanner)

func WithFilter(f *Filter) Option {
	return func(s *Scanner) { s.filter = f }
}

func NewScanner(opts ...Option) *Scanner {
	s := &Scanner{}
	for _, o := range opts {
		o(s)
	}
	if s.filter == nil {
		s.filter, _ = NewFilter(nil)
	}
	return s
}

// Supported reports whether path has an extension the scanner can parse.
func Supported(path string) bool {
	return languageFor(path) != nil
}

func languageFor(path string) *sitter.Language {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".js", ".jsx", ".mjs", ".cjs":
		return javascript.GetLanguage()
	case ".tsx":
		return tsx.GetLanguage()
	case ".ts":
		return typescript.GetLanguage()
	}
	return nil
}

func (s *Scanner) parse(ctx context.Context, path string, src []byte) (*sitter.Tree, error) {
	lang := languageFor(path)
	if lang == nil {
		return nil, errors.Errorf("unsupported file type: %s", path)
	}
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lang)
	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	return tree, nil
}

// Scan returns the user facing strings of src ordered by position.
func (s *Scanner) Scan(ctx context.Context, path string, src []byte) ([]Candidate, error) {
	tree, err := s.parse(ctx, path, src)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	lines := strings.Split(string(src), "\n")
	var out []Candidate
	add := func(c Candidate) {
		if s.filter.SkipReason(c.Text, c.Attribute) != "" {
			return
		}
		if c.Line-1 < len(lines) {
			c.Context = strings.TrimSpace(lines[c.Line-1])
		}
		out = append(out, c)
	}

	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		switch n.Type() {
		case "comment", "import_statement":
			return
		case "jsx_text":
			raw := n.Content(src)
			trimmed := strings.TrimSpace(raw)
			if trimmed == "" {
				return
			}
			lead := len(raw) - len(strings.TrimLeft(raw, " \t\r\n"))
			start := n.StartByte() + uint32(lead)
			add(Candidate{
				Text:      strings.Join(strings.Fields(trimmed), " "),
				Kind:      KindText,
				Line:      lineOf(src, start),
				StartByte: start,
				EndByte:   start + uint32(len(trimmed)),
			})
			return
		case "jsx_attribute":
			if c, ok := attributeCandidate(n, src); ok {
				add(c)
			}
			return
		case "call_expression":
			if c, ok := messageCandidate(n, src); ok {
				add(c)
			}
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			if child := n.Child(i); child != nil {
				walk(child)
			}
		}
	}
	walk(tree.RootNode())

	sort.Slice(out, func(i, j int) bool { return out[i].StartByte < out[j].StartByte })
	return out, nil
}

func attributeCandidate(n *sitter.Node, src []byte) (Candidate, bool) {
	var name string
	var value *sitter.Node
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child == nil {
			continue
		}
		switch child.Type() {
		case "property_identifier", "jsx_namespace_name", "identifier":
			if name == "" {
				name = child.Content(src)
			}
		case "string":
			value = child
		}
	}
	if name == "" || value == nil {
		return Candidate{}, false
	}
	return Candidate{
		Text:      unquote(value.Content(src)),
		Kind:      KindAttribute,
		Attribute: name,
		Line:      int(value.StartPoint().Row) + 1,
		StartByte: value.StartByte(),
		EndByte:   value.EndByte(),
	}, true
}

func messageCandidate(n *sitter.Node, src []byte) (Candidate, bool) {
	fn := n.ChildByFieldName("function")
	args := n.ChildByFieldName("arguments")
	if fn == nil || args == nil || !messageCallees[fn.Content(src)] {
		return Candidate{}, false
	}
	first := args.NamedChild(0)
	if first == nil || first.Type() != "string" {
		return Candidate{}, false
	}
	return Candidate{
		Text:      unquote(first.Content(src)),
		Kind:      KindMessage,
		Line:      int(first.StartPoint().Row) + 1,
		StartByte: first.StartByte(),
		EndByte:   first.EndByte(),
	}, true
}

// ContainsJSX reports whether src has at least one JSX element.
func (s *Scanner) ContainsJSX(ctx context.Context, path string, src []byte) (bool, error) {
	tree, err := s.parse(ctx, path, src)
	if err != nil {
		return false, err
	}
	defer tree.Close()
	found := false
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if found {
			return
		}
		switch n.Type() {
		case "jsx_element", "jsx_self_closing_element", "jsx_fragment":
			found = true
			return
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			if child := n.Child(i); child != nil {
				walk(child)
			}
		}
	}
	walk(tree.RootNode())
	return found, nil
}

func unquote(s string) string {
	if len(s) >= 2 {
		q := s[0]
		if (q == '"' || q == '\'' || q == '`') && s[len(s)-1] == q {
			return s[1 : len(s)-1]
		}
	}
	return s
}

func lineOf(src []byte, offset uint32) int {
	if int(offset) > len(src) {
		offset = uint32(len(src))
	}
	return strings.Count(string(src[:offset]), "\n") + 1
}
