// SPDX-License-Identifier: MPL-2.0

package launcher

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"trainctl/internal/resolve"
	"trainctl/internal/stub"
)

// TestGenerate_RenderedContent verifies the bootstrap carries the blocked
// table, search-path entries, and the resolved script path.
func TestGenerate_RenderedContent(t *testing.T) {
	t.Parallel()

	reg := stub.NewRegistry()
	reg.InstallWithReason("triton", "GPU compiler unavailable")
	reg.InstallWithReason("bitsandbytes", "needs compiled extension")

	g := New(reg)
	g.TempDir = t.TempDir()

	paths := &resolve.ResolvedPaths{
		WorkDir:    "/proj",
		ScriptDir:  "/proj/sd-scripts",
		ScriptPath: "/proj/sd-scripts/train.py",
	}

	path, cleanup, err := g.Generate(paths, "/proj/training_libs")
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	defer cleanup()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	src := string(data)

	for _, want := range []string{
		`"triton": "GPU compiler unavailable"`,
		`"bitsandbytes": "needs compiled extension"`,
		`sys.path.insert(0, "/proj/training_libs")`,
		`sys.path.insert(0, "/proj/sd-scripts")`,
		`sys.path.insert(0, "/proj")`,
		`_script = "/proj/sd-scripts/train.py"`,
	} {
		if !strings.Contains(src, want) {
			t.Errorf("bootstrap missing %q", want)
		}
	}

	// Isolated dir must be inserted last, giving it the highest priority.
	isolated := strings.Index(src, `"/proj/training_libs")`)
	script := strings.Index(src, `sys.path.insert(0, "/proj/sd-scripts")`)
	if isolated < script {
		t.Error("isolated package dir must be inserted after the script dir")
	}
}

// TestGenerate_LibraryVerificationConditional verifies the support-library
// check is rendered only when resolution found one.
func TestGenerate_LibraryVerificationConditional(t *testing.T) {
	t.Parallel()

	g := New(stub.NewRegistry())
	g.TempDir = t.TempDir()

	without := &resolve.ResolvedPaths{ScriptDir: "/tool", ScriptPath: "/tool/train.py"}
	path, cleanup, err := g.Generate(without, "")
	if err != nil {
		t.Fatal(err)
	}
	defer cleanup()
	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), "_library_dir") {
		t.Error("library check rendered without a support library")
	}

	with := &resolve.ResolvedPaths{ScriptDir: "/tool", ScriptPath: "/tool/train.py", HasLibrary: true}
	path, cleanup, err = g.Generate(with, "")
	if err != nil {
		t.Fatal(err)
	}
	defer cleanup()
	data, _ = os.ReadFile(path)
	if !strings.Contains(string(data), `_library_dir = `+`"`+filepath.Join("/tool", "library")+`"`) {
		t.Errorf("library check missing: %s", data)
	}
}

// TestGenerate_CleanupRemovesFile verifies the cleanup func deletes the
// bootstrap and tolerates repeated calls.
func TestGenerate_CleanupRemovesFile(t *testing.T) {
	t.Parallel()

	g := New(stub.DefaultRegistry())
	g.TempDir = t.TempDir()

	path, cleanup, err := g.Generate(&resolve.ResolvedPaths{ScriptPath: "/x/train.py"}, "")
	if err != nil {
		t.Fatal(err)
	}

	cleanup()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("bootstrap %s still exists after cleanup", path)
	}
	cleanup() // second call must not panic
}

// TestMaybeGenerate_Unrestricted verifies the no-bootstrap cases return an
// empty path and a callable cleanup.
func TestMaybeGenerate_Unrestricted(t *testing.T) {
	t.Parallel()

	g := New(stub.DefaultRegistry())
	paths := &resolve.ResolvedPaths{ScriptPath: "/x/train.py"}

	for _, tc := range []struct {
		name       string
		restricted bool
		paths      *resolve.ResolvedPaths
	}{
		{"full interpreter", false, paths},
		{"nil paths", true, nil},
		{"no script argument", true, &resolve.ResolvedPaths{}},
	} {
		path, cleanup, err := g.MaybeGenerate(tc.restricted, tc.paths, "")
		if err != nil {
			t.Errorf("%s: MaybeGenerate() error: %v", tc.name, err)
		}
		if path != "" {
			t.Errorf("%s: MaybeGenerate() = %q, want empty", tc.name, path)
		}
		cleanup()
	}
}

// TestSubstitute replaces the first script argument and leaves the input
// slice untouched.
func TestSubstitute(t *testing.T) {
	t.Parallel()

	command := []string{"python", "train.py", "--config", "net.py.toml"}
	got := Substitute(command, "/tmp/boot.py")

	if got[1] != "/tmp/boot.py" {
		t.Errorf("Substitute()[1] = %q, want bootstrap path", got[1])
	}
	if got[3] != "net.py.toml" {
		t.Errorf("Substitute() touched a non-script argument: %q", got[3])
	}
	if command[1] != "train.py" {
		t.Error("Substitute() must not mutate its input")
	}

	noScript := Substitute([]string{"python", "-m", "accelerate"}, "/tmp/boot.py")
	if noScript[2] != "accelerate" {
		t.Errorf("Substitute() without script arg = %v", noScript)
	}

	unchanged := Substitute(command, "")
	if unchanged[1] != "train.py" {
		t.Error("Substitute() with empty bootstrap must be a no-op")
	}
}

// TestVerifyPatchOrder covers the ordering self-check on well-formed and
// damaged sources.
func TestVerifyPatchOrder(t *testing.T) {
	t.Parallel()

	good := "sys.meta_path.insert(0, f)\nexec(compile(src, p, 'exec'), g)\n"
	if err := verifyPatchOrder(good); err != nil {
		t.Errorf("verifyPatchOrder(good) = %v", err)
	}

	for name, src := range map[string]string{
		"missing interception": "exec(compile(src, p, 'exec'), g)\n",
		"missing execution":    "sys.meta_path.insert(0, f)\n",
		"inverted order":       "exec(compile(src, p, 'exec'), g)\nsys.meta_path.insert(0, f)\n",
	} {
		if err := verifyPatchOrder(src); err == nil {
			t.Errorf("verifyPatchOrder(%s) accepted damaged source", name)
		}
	}
}
