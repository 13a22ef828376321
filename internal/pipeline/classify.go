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

import (
	"strings"

	"github.com/pkg/errors"
)

// ErrorType is the coarse class of a tool failure.
type ErrorType string

const (
	ErrorSyntax       ErrorType = "syntax_error"
	ErrorFileNotFound ErrorType = "file_not_found"
	ErrorPermission   ErrorType = "permission_error"
	ErrorNetwork      ErrorType = "network_error"
	ErrorAPI          ErrorType = "api_error"
	ErrorValidation   ErrorType = "validation_error"
	ErrorUnknown      ErrorType = "unknown_error"
)

var classes = []struct {
	typ      ErrorType
	patterns []string
}{
	{ErrorSyntax, []string{"syntax", "parse"}},
	{ErrorFileNotFound, []string{"not found", "no such file", "missing"}},
	{ErrorPermission, []string{"permission", "access denied", "access is denied"}},
	{ErrorNetwork, []string{"network", "timeout", "timed out", "connection"}},
	{ErrorAPI, []string{"api", "rate limit", "status code"}},
	{ErrorValidation, []string{"validation", "invalid"}},
}

// Classify maps an error to its ErrorType by message. The first matching
// class wins.
func Classify(err error) ErrorType {
	if err == nil {
		return ErrorUnknown
	}
	msg := strings.ToLower(err.Error())
	for _, c := range classes {
		for _, p := range c.patterns {
			if strings.Contains(msg, p) {
				return c.typ
			}
		}
	}
	return ErrorUnknown
}

var criticalPatterns = []string{
	"cannot read property",
	"undefined is not a function",
	"nil pointer dereference",
	"syntax error",
	"permission denied",
	"disk space",
	"no space left",
	"out of memory",
}

type criticalError struct{ error }

func (e criticalError) Unwrap() error { return e.error }

type recoverableError struct{ error }

func (e recoverableError) Unwrap() error { return e.error }

// Critical marks err as requiring an immediate stop and rollback.
func Critical(err error) error {
	if err == nil {
		return nil
	}
	return criticalError{err}
}

// Recoverable marks err as an ordinary failure even if its message looks
// critical, e.g. the stderr of an external command.
func Recoverable(err error) error {
	if err == nil {
		return nil
	}
	return recoverableError{err}
}

// IsCritical reports whether err must stop the run.
func IsCritical(err error) bool {
	if err == nil {
		return false
	}
	var r recoverableError
	if errors.As(err, &r) {
		return false
	}
	var c criticalError
	if errors.As(err, &c) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, p := range criticalPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// SuggestedFix is a human hint per error class, used by reports.
func SuggestedFix(t ErrorType) string {
	switch t {
	case ErrorSyntax:
		return "Check the generated code for syntax errors and re-run validation"
	case ErrorFileNotFound:
		return "Verify the include directories and file paths"
	case ErrorPermission:
		return "Check file permissions of the working tree"
	case ErrorNetwork:
		return "Check the network connection and retry"
	case ErrorAPI:
		return "Check the model API key and rate limits"
	case ErrorValidation:
		return "Review the validation issues in the report"
	}
	return "Inspect the error message and retry"
}
