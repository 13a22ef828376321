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
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

var (
	kebabRE   = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)
	camelRE   = regexp.MustCompile(`^[a-z][a-zA-Z0-9]*$`)
	measureRE = regexp.MustCompile(`^\d+(\.\d+)?(px|em|rem|%|vh|vw|pt|pc|in|cm|mm|s|ms)$`)
	digitsRE  = regexp.MustCompile(`^[\d\s.,:+-]+$`)
	pathExts  = []string{".js", ".jsx", ".ts", ".tsx", ".css", ".scss", ".png", ".jpg", ".jpeg", ".svg", ".gif", ".json"}
)

var cssValues = map[string]bool{
	"nowrap": true, "wrap": true, "pre": true, "pre-wrap": true, "pre-line": true,
	"hidden": true, "visible": true, "block": true, "inline": true, "flex": true,
	"grid": true, "absolute": true, "relative": true, "fixed": true, "static": true,
	"sticky": true, "left": true, "right": true, "center": true, "justify": true,
	"start": true, "end": true, "space-between": true, "space-around": true,
	"space-evenly": true, "baseline": true, "stretch": true, "normal": true,
	"bold": true, "italic": true, "underline": true, "none": true, "auto": true,
}

var keywords = map[string]bool{
	"true": true, "false": true, "null": true, "undefined": true, "nan": true,
	"infinity": true, "function": true, "const": true, "let": true, "var": true,
	"return": true, "if": true, "else": true, "for": true, "while": true, "do": true,
	"switch": true, "case": true, "default": true, "break": true, "continue": true,
	"try": true, "catch": true, "finally": true, "throw": true, "new": true,
	"this": true, "super": true, "class": true, "extends": true, "import": true,
	"export": true, "from": true, "as": true, "async": true, "await": true,
	"yield": true, "typeof": true, "instanceof": true, "in": true, "of": true,
	"delete": true, "void": true,
}

// technical attributes never carry user visible text
var technicalAttrs = map[string]bool{
	"className": true, "class": true, "style": true, "id": true, "key": true,
	"ref": true, "href": true, "src": true, "type": true, "name": true,
	"htmlFor": true, "role": true, "target": true, "rel": true, "method": true,
	"action": true, "variant": true, "color": true, "size": true, "as": true,
	"to": true, "xmlns": true, "viewBox": true, "fill": true, "d": true,
}

// Filter decides whether a string literal is user facing text.
type Filter struct {
	skip []*regexp.Regexp
}

// NewFilter compiles extra skip patterns; a match anywhere marks the string technical.
func NewFilter(patterns []string) (*Filter, error) {
	f := &Filter{}
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid skip pattern %q", p)
		}
		f.skip = append(f.skip, re)
	}
	return f, nil
}

// SkipReason returns why text should stay untouched, or "" when it is UI text.
func (f *Filter) SkipReason(text, attr string) string {
	if attr != "" && (technicalAttrs[attr] || strings.HasPrefix(attr, "data-")) {
		return "non-UI attribute " + attr
	}
	trimmed := strings.TrimSpace(text)
	if len([]rune(trimmed)) < 2 {
		return "too short"
	}
	if f != nil {
		for _, re := range f.skip {
			if re.MatchString(trimmed) {
				return "matches skip pattern " + re.String()
			}
		}
	}
	if isTechnical(trimmed) {
		return "technical string"
	}
	return ""
}

func isTechnical(s string) bool {
	switch {
	case strings.HasPrefix(s, "http://"), strings.HasPrefix(s, "https://"),
		strings.HasPrefix(s, "//"), strings.HasPrefix(s, "www."),
		strings.HasPrefix(s, "mailto:"):
		return true
	case strings.HasPrefix(s, "data-"):
		return true
	case strings.HasPrefix(s, "/") || strings.HasPrefix(s, "./") || strings.HasPrefix(s, "../"):
		return !strings.Contains(s, " ")
	case kebabRE.MatchString(s) && strings.Contains(s, "-"):
		return true
	case camelRE.MatchString(s) && len(s) > 3:
		return true
	case strings.Contains(s, "@") && strings.Contains(s, ".") && !strings.Contains(s, " "):
		return true
	case digitsRE.MatchString(s):
		return true
	case cssValues[s], keywords[strings.ToLower(s)]:
		return true
	case measureRE.MatchString(s):
		return true
	}
	if strings.Contains(s, "/") && !strings.Contains(s, " ") {
		for _, ext := range pathExts {
			if strings.HasSuffix(s, ext) {
				return true
			}
		}
	}
	return false
}
