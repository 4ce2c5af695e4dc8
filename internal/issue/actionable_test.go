// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"strings"
	"testing"
)

func TestActionableError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *ActionableError
		expected string
	}{
		{
			name: "operation only",
			err: &ActionableError{
				Operation: "resolve script path",
			},
			expected: "failed to resolve script path",
		},
		{
			name: "operation with resource",
			err: &ActionableError{
				Operation: "resolve script path",
				Resource:  "flux_train_network.py",
			},
			expected: "failed to resolve script path: flux_train_network.py",
		},
		{
			name: "operation with cause",
			err: &ActionableError{
				Operation: "spawn training process",
				Cause:     errors.New("permission denied"),
			},
			expected: "failed to spawn training process: permission denied",
		},
		{
			name: "operation with resource and cause",
			err: &ActionableError{
				Operation: "spawn training process",
				Resource:  "/opt/python/bin/python",
				Cause:     errors.New("permission denied"),
			},
			expected: "failed to spawn training process: /opt/python/bin/python: permission denied",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestActionableError_Unwrap(t *testing.T) {
	cause := errors.New("underlying failure")
	err := &ActionableError{
		Operation: "start training",
		Cause:     cause,
	}

	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
}

func TestActionableError_Format_Suggestions(t *testing.T) {
	err := &ActionableError{
		Operation:   "locate training script",
		Suggestions: []string{"install sd-scripts", "pass an absolute path"},
	}

	got := err.Format(false)
	if !strings.Contains(got, "• install sd-scripts") {
		t.Errorf("Format() missing first suggestion: %q", got)
	}
	if !strings.Contains(got, "• pass an absolute path") {
		t.Errorf("Format() missing second suggestion: %q", got)
	}
}

func TestActionableError_Format_VerboseChain(t *testing.T) {
	inner := errors.New("no such file")
	err := &ActionableError{
		Operation: "read launcher template",
		Cause:     WrapWithOperation(inner, "open file"),
	}

	got := err.Format(true)
	if !strings.Contains(got, "Error chain:") {
		t.Errorf("verbose Format() missing error chain: %q", got)
	}
	if !strings.Contains(got, "no such file") {
		t.Errorf("verbose Format() missing innermost cause: %q", got)
	}
}

func TestErrorContext_Build(t *testing.T) {
	cause := errors.New("boom")
	err := NewErrorContext().
		WithOperation("spawn training process").
		WithResource("train.py").
		WithSuggestion("check permissions").
		Wrap(cause).
		Build()

	if err == nil {
		t.Fatal("Build() returned nil with operation set")
	}
	if err.Operation != "spawn training process" {
		t.Errorf("Operation = %q", err.Operation)
	}
	if err.Resource != "train.py" {
		t.Errorf("Resource = %q", err.Resource)
	}
	if len(err.Suggestions) != 1 {
		t.Errorf("Suggestions = %v, want 1 entry", err.Suggestions)
	}
	if !errors.Is(err, cause) {
		t.Error("cause not wrapped")
	}
}

func TestErrorContext_Build_RequiresOperation(t *testing.T) {
	if err := NewErrorContext().WithResource("x").Build(); err != nil {
		t.Errorf("Build() without operation = %v, want nil", err)
	}
	if err := NewErrorContext().BuildError(); err != nil {
		t.Errorf("BuildError() without operation = %v, want nil", err)
	}
}

func TestWrapWithOperation_NilError(t *testing.T) {
	if got := WrapWithOperation(nil, "anything"); got != nil {
		t.Errorf("WrapWithOperation(nil) = %v, want nil", got)
	}
	if got := WrapWithContext(nil, "anything", "res"); got != nil {
		t.Errorf("WrapWithContext(nil) = %v, want nil", got)
	}
}
