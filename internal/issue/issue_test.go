// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"strings"
	"testing"
)

func TestId_Constants(t *testing.T) {
	// Verify all IDs are unique and sequential
	ids := []Id{
		ScriptNotFoundId,
		SpawnFailedId,
		PackagesMissingId,
		EmbeddedRuntimeId,
		ConfigLoadFailedId,
		ServerUnreachableId,
	}

	seen := make(map[Id]bool)
	for _, id := range ids {
		if seen[id] {
			t.Errorf("duplicate ID: %d", id)
		}
		seen[id] = true
	}

	// Verify IDs start at 1 (iota + 1)
	if ScriptNotFoundId != 1 {
		t.Errorf("ScriptNotFoundId = %d, want 1", ScriptNotFoundId)
	}
}

func TestGet_AllIdsRegistered(t *testing.T) {
	for _, id := range []Id{
		ScriptNotFoundId,
		SpawnFailedId,
		PackagesMissingId,
		EmbeddedRuntimeId,
		ConfigLoadFailedId,
		ServerUnreachableId,
	} {
		issue := Get(id)
		if issue == nil {
			t.Errorf("Get(%d) returned nil", id)
			continue
		}
		if issue.Id() != id {
			t.Errorf("issue.Id() = %d, want %d", issue.Id(), id)
		}
		if issue.MarkdownMsg() == "" {
			t.Errorf("issue %d has empty markdown message", id)
		}
	}
}

func TestGet_UnknownIdReturnsNil(t *testing.T) {
	if issue := Get(Id(999)); issue != nil {
		t.Errorf("Get(999) = %v, want nil", issue)
	}
}

func TestValues_ReturnsAllIssues(t *testing.T) {
	values := Values()
	if len(values) != len(issues) {
		t.Errorf("Values() returned %d issues, want %d", len(values), len(issues))
	}
}

func TestScriptNotFoundIssue_MentionsCandidateOrder(t *testing.T) {
	issue := Get(ScriptNotFoundId)
	msg := string(issue.MarkdownMsg())

	// The candidate list in the guide must match resolver precedence
	first := strings.Index(msg, "working directory itself")
	second := strings.Index(msg, "sd-scripts")
	if first == -1 || second == -1 {
		t.Fatal("script-not-found guide missing candidate locations")
	}
	if first > second {
		t.Error("guide lists candidates out of precedence order")
	}
}
