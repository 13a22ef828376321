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
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// ImportLine is inserted into files that call t() without an i18next import.
const ImportLine = "import { t } from 'i18next';"

// Replacement binds a candidate to the key that replaces it.
type Replacement struct {
	Candidate
	Key string `json:"key"`
}

// Expression returns the source text that replaces the candidate bytes.
func (r Replacement) Expression() string {
	switch r.Kind {
	case KindText, KindAttribute:
		return fmt.Sprintf("{t('%s')}", r.Key)
	default:
		return fmt.Sprintf("t('%s')", r.Key)
	}
}

// Rewrite substitutes every replacement in src. Overlapping or out of range
// replacements are skipped; the number applied is returned.
func Rewrite(src []byte, reps []Replacement) ([]byte, int) {
	sorted := make([]Replacement, len(reps))
	copy(sorted, reps)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].StartByte > sorted[j].StartByte })

	out := append([]byte(nil), src...)
	applied := 0
	limit := uint32(len(src))
	for _, r := range sorted {
		if r.StartByte > r.EndByte || r.EndByte > limit {
			continue
		}
		var buf []byte
		buf = append(buf, out[:r.StartByte]...)
		buf = append(buf, r.Expression()...)
		buf = append(buf, out[r.EndByte:]...)
		out = buf
		limit = r.StartByte
		applied++
	}
	return out, applied
}

// EnsureImport adds ImportLine after the last top level import of src, or at
// the top when there is none. Sources that already import from an i18next
// package are returned unchanged.
func (s *Scanner) EnsureImport(ctx context.Context, path string, src []byte) ([]byte, error) {
	if HasTranslationImport(src) {
		return src, nil
	}
	return s.AddImports(ctx, path, src, ImportLine)
}

// AddImports inserts lines after the last top level import statement of src.
func (s *Scanner) AddImports(ctx context.Context, path string, src []byte, lines ...string) ([]byte, error) {
	tree, err := s.parse(ctx, path, src)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	root := tree.RootNode()
	at := -1
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		if child != nil && child.Type() == "import_statement" {
			at = int(child.EndByte())
		}
	}
	block := strings.Join(lines, "\n")
	var out []byte
	if at < 0 {
		out = append(out, block+"\n"...)
		return append(out, src...), nil
	}
	out = append(out, src[:at]...)
	out = append(out, "\n"+block...)
	return append(out, src[at:]...), nil
}

// Keys assigns stable, unique i18n keys to texts.
type Keys struct {
	byText map[string]string
	used   map[string]string
}

func NewKeys() *Keys {
	return &Keys{byText: map[string]string{}, used: map[string]string{}}
}

// Reserve records a key chosen elsewhere (e.g. by the oracle). It reports
// false when the key already names a different text.
func (k *Keys) Reserve(key, text string) bool {
	if prev, ok := k.used[key]; ok && prev != text {
		return false
	}
	k.used[key] = text
	k.byText[text] = key
	return true
}

// For returns the key of text, generating one from its words when needed.
func (k *Keys) For(c Candidate) string {
	if key, ok := k.byText[c.Text]; ok {
		return key
	}
	base := prefixFor(c) + "." + Slug(c.Text)
	key := base
	for n := 2; ; n++ {
		if _, taken := k.used[key]; !taken {
			break
		}
		key = fmt.Sprintf("%s_%d", base, n)
	}
	k.Reserve(key, c.Text)
	return key
}

func prefixFor(c Candidate) string {
	switch c.Kind {
	case KindAttribute:
		return strings.ToLower(strings.TrimPrefix(c.Attribute, "aria-"))
	case KindMessage:
		return "message"
	}
	return "common"
}

// Slug turns text into a lower_snake identifier of at most five words.
func Slug(text string) string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(words) > 5 {
		words = words[:5]
	}
	s := strings.Join(words, "_")
	if rs := []rune(s); len(rs) > 40 {
		s = strings.TrimRight(string(rs[:40]), "_")
	}
	if s == "" {
		s = "text"
	}
	return s
}
