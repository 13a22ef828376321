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

package pipeline

import "reflect"

// Well known context keys. Tools write their outcome under the *Results key
// and the counters the decision function and goal predicate read.
const (
	KeyFilesToProcess      = "filesToProcess"
	KeyStringsFound        = "stringsFound"
	KeyAnalysisResults     = "analysisResults"
	KeyFilesTransformed    = "filesTransformed"
	KeyTransformResults    = "transformResults"
	KeyStringsTranslated   = "stringsTranslated"
	KeyTranslateResults    = "translateResults"
	KeyLocaleFilesCreated  = "localeFilesCreated"
	KeyLocaleResults       = "localeResults"
	KeyConfigFilesCreated  = "configFilesCreated"
	KeySetupResults        = "setupResults"
	KeyIntegrationComplete = "integrationComplete"
	KeyIntegrateResults    = "integrateResults"
	KeyValidFiles          = "validFiles"
	KeyInvalidFiles        = "invalidFiles"
	KeyIssues              = "issues"
	KeyValidateResults     = "validateResults"
	KeyTestsPassed         = "testsPassed"
	KeyTestsFailed         = "testsFailed"
	KeyTestResults         = "testResults"
	KeySnapshotID          = "snapshotID"
	KeyRollbackResults     = "rollbackResults"
	KeyReport              = "report"
)

// Context is the free-form artifact map of a run.
type Context map[string]any

func (c Context) clone() Context {
	out := make(Context, len(c))
	for k, v := range c {
		out[k] = deepCopy(v)
	}
	return out
}

// deepCopy copies slices, maps, pointers and the exported fields of structs
// reachable from v. Unexported struct fields are copied shallowly.
func deepCopy(v any) any {
	if v == nil {
		return nil
	}
	return copyValue(reflect.ValueOf(v)).Interface()
}

func copyValue(v reflect.Value) reflect.Value {
	switch v.Kind() {
	case reflect.Slice:
		if v.IsNil() {
			return v
		}
		out := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(copyValue(v.Index(i)))
		}
		return out
	case reflect.Array:
		out := reflect.New(v.Type()).Elem()
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(copyValue(v.Index(i)))
		}
		return out
	case reflect.Map:
		if v.IsNil() {
			return v
		}
		out := reflect.MakeMapWithSize(v.Type(), v.Len())
		it := v.MapRange()
		for it.Next() {
			out.SetMapIndex(it.Key(), copyValue(it.Value()))
		}
		return out
	case reflect.Pointer:
		if v.IsNil() {
			return v
		}
		out := reflect.New(v.Type().Elem())
		out.Elem().Set(copyValue(v.Elem()))
		return out
	case reflect.Interface:
		if v.IsNil() {
			return v
		}
		out := reflect.New(v.Type()).Elem()
		out.Set(copyValue(v.Elem()))
		return out
	case reflect.Struct:
		out := reflect.New(v.Type()).Elem()
		out.Set(v)
		for i := 0; i < v.NumField(); i++ {
			if f := out.Field(i); f.CanSet() {
				f.Set(copyValue(v.Field(i)))
			}
		}
		return out
	}
	return v
}

// Has reports whether key is present.
func (c Context) Has(key string) bool {
	_, ok := c[key]
	return ok
}

// Int returns the numeric value of key, or 0.
func (c Context) Int(key string) int {
	switch v := c[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func (c Context) Bool(key string) bool {
	b, _ := c[key].(bool)
	return b
}

func (c Context) String(key string) string {
	s, _ := c[key].(string)
	return s
}

// Strings returns the string items of key; non-string items of a []any
// are dropped.
func (c Context) Strings(key string) []string {
	switch v := c[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, it := range v {
			if s, ok := it.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
