// SPDX-License-Identifier: MPL-2.0

package trainenv

import (
	"os"
	"strings"
	"testing"

	"trainctl/internal/resolve"
)

func sep() string { return string(os.PathListSeparator) }

// TestBuilder_InterfaceContract verifies both builders satisfy Builder.
func TestBuilder_InterfaceContract(t *testing.T) {
	t.Parallel()

	var _ Builder = &DefaultBuilder{}
	var _ Builder = &MockBuilder{}
}

// TestBuild_FixedTableApplied verifies the closed override table is set
// unconditionally, overwriting base values.
func TestBuild_FixedTableApplied(t *testing.T) {
	t.Parallel()

	base := []string{
		"HOME=/home/u",
		"PYTHONUNBUFFERED=0", // must be overwritten
	}
	env := NewDefaultBuilder().Build(base, &resolve.ResolvedPaths{ScriptDir: "/s", WorkDir: "/w"}, "")

	if env["ACCELERATE_MIXED_PRECISION"] != "bf16" {
		t.Errorf("ACCELERATE_MIXED_PRECISION = %q, want bf16", env["ACCELERATE_MIXED_PRECISION"])
	}
	if env["PYTHONIOENCODING"] != "utf-8" {
		t.Errorf("PYTHONIOENCODING = %q, want utf-8", env["PYTHONIOENCODING"])
	}
	if env["PYTHONUNBUFFERED"] != "1" {
		t.Errorf("PYTHONUNBUFFERED = %q, fixed table must overwrite base", env["PYTHONUNBUFFERED"])
	}
	if env["PYTORCH_CUDA_ALLOC_CONF"] != "max_split_size_mb:512" {
		t.Errorf("PYTORCH_CUDA_ALLOC_CONF = %q", env["PYTORCH_CUDA_ALLOC_CONF"])
	}
}

// TestBuild_NeverDeletesBaseEntries verifies every base entry survives.
func TestBuild_NeverDeletesBaseEntries(t *testing.T) {
	t.Parallel()

	base := []string{"HOME=/home/u", "LANG=C.UTF-8", "CUDA_VISIBLE_DEVICES=0"}
	env := NewDefaultBuilder().Build(base, &resolve.ResolvedPaths{ScriptDir: "/s", WorkDir: "/w"}, "")

	for _, e := range base {
		k, v, _ := strings.Cut(e, "=")
		if env[k] != v {
			t.Errorf("base entry %s lost or changed: got %q", e, env[k])
		}
	}
}

// TestComposeSearchPath_PrependNoDuplicate covers the associativity property:
// existing "A:B" with resolved dir "C" composes to "C:A:B", and a resolved
// dir already present in the existing value is not duplicated.
func TestComposeSearchPath_PrependNoDuplicate(t *testing.T) {
	t.Parallel()

	paths := &resolve.ResolvedPaths{ScriptDir: "C", WorkDir: "C"}

	got := ComposeSearchPath("A"+sep()+"B", paths, "")
	if want := "C" + sep() + "A" + sep() + "B"; got != want {
		t.Errorf("ComposeSearchPath = %q, want %q", got, want)
	}

	// C already in the existing value: first (highest-priority) occurrence wins
	got = ComposeSearchPath("A"+sep()+"C"+sep()+"B", paths, "")
	if want := "C" + sep() + "A" + sep() + "B"; got != want {
		t.Errorf("ComposeSearchPath with duplicate = %q, want %q", got, want)
	}
}

// TestComposeSearchPath_IsolatedDirHighestPriority verifies the isolated
// package directory lands first, before script and working dirs.
func TestComposeSearchPath_IsolatedDirHighestPriority(t *testing.T) {
	t.Parallel()

	paths := &resolve.ResolvedPaths{ScriptDir: "/tool", WorkDir: "/proj"}
	got := ComposeSearchPath("/old", paths, "/libs")

	want := strings.Join([]string{"/libs", "/tool", "/proj", "/old"}, sep())
	if got != want {
		t.Errorf("ComposeSearchPath = %q, want %q", got, want)
	}
}

// TestComposeSearchPath_EmptyComponentsSkipped verifies empty existing values
// and an absent isolated dir contribute nothing.
func TestComposeSearchPath_EmptyComponentsSkipped(t *testing.T) {
	t.Parallel()

	paths := &resolve.ResolvedPaths{ScriptDir: "/tool", WorkDir: "/proj"}
	got := ComposeSearchPath("", paths, "")

	want := "/tool" + sep() + "/proj"
	if got != want {
		t.Errorf("ComposeSearchPath = %q, want %q", got, want)
	}
}

// TestMockBuilder_ReturnsCopy verifies mutations of a returned map do not
// leak into subsequent builds.
func TestMockBuilder_ReturnsCopy(t *testing.T) {
	t.Parallel()

	mock := &MockBuilder{Env: map[string]string{"KEY": "value"}}

	env1 := mock.Build(nil, nil, "")
	env1["KEY"] = "mutated"

	env2 := mock.Build(nil, nil, "")
	if env2["KEY"] != "value" {
		t.Errorf("MockBuilder.Build() must return a copy; got %q", env2["KEY"])
	}
}

// TestFromSlice_ToSlice verifies parse/serialize behavior including malformed
// entries and deterministic ordering.
func TestFromSlice_ToSlice(t *testing.T) {
	t.Parallel()

	env := FromSlice([]string{"B=2", "A=1", "MALFORMED", "C=x=y"})
	if env["A"] != "1" || env["B"] != "2" {
		t.Errorf("FromSlice basic entries wrong: %v", env)
	}
	if env["C"] != "x=y" {
		t.Errorf("FromSlice must split on first '=': %q", env["C"])
	}
	if _, ok := env["MALFORMED"]; !ok {
		t.Error("malformed entry dropped, want kept with empty value")
	}

	out := ToSlice(map[string]string{"B": "2", "A": "1"})
	if len(out) != 2 || out[0] != "A=1" || out[1] != "B=2" {
		t.Errorf("ToSlice = %v, want sorted [A=1 B=2]", out)
	}
}
