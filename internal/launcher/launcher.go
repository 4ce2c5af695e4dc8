// SPDX-License-Identifier: MPL-2.0

package launcher

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/template"

	"github.com/charmbracelet/log"

	"trainctl/internal/resolve"
	"trainctl/internal/stub"
)

//go:embed launcher.py.tmpl
var launcherSource string

// PatchInstallationWarning is logged when the rendered bootstrap fails the
// ordering self-check. The run proceeds: a mis-ordered bootstrap degrades to
// running the script directly, which is exactly what an unrestricted host
// does anyway.
const PatchInstallationWarning = "import interception is not installed ahead of script execution; blocked modules may load"

// interceptMarker and execMarker are the ordering probes for the rendered
// bootstrap: interception must be installed strictly before the script body
// runs.
const (
	interceptMarker = "sys.meta_path.insert"
	execMarker      = "exec(compile("
)

type (
	// blockedEntry is one name/reason pair rendered into the bootstrap.
	blockedEntry struct {
		Name   string
		Reason string
	}

	// templateParams is the typed input to the bootstrap template.
	templateParams struct {
		Blocked     []blockedEntry
		SearchPaths []string
		LibraryDir  string
		ScriptPath  string
	}

	// Generator renders bootstrap programs for a fixed blocked-module set.
	Generator struct {
		// Registry supplies the blocked module names and reasons.
		Registry *stub.Registry
		// Logger receives the self-check warning; nil means the default logger.
		Logger *log.Logger
		// TempDir overrides the bootstrap file location; empty means os.TempDir.
		TempDir string

		tmpl *template.Template
	}
)

// New creates a Generator over the given registry.
func New(registry *stub.Registry) *Generator {
	tmpl := template.Must(template.New("launcher").
		Funcs(template.FuncMap{"pystr": pyString}).
		Parse(launcherSource))
	return &Generator{Registry: registry, tmpl: tmpl}
}

// MaybeGenerate renders a bootstrap only when the host is restricted and a
// concrete script was resolved. The empty path means "run the script
// directly"; callers must not treat it as an error.
func (g *Generator) MaybeGenerate(restricted bool, paths *resolve.ResolvedPaths, isolatedLibsDir string) (string, func(), error) {
	if !restricted || paths == nil || paths.ScriptPath == "" {
		return "", func() {}, nil
	}
	return g.Generate(paths, isolatedLibsDir)
}

// Generate renders the bootstrap to a temporary file and returns its path
// together with a cleanup func that removes it. The cleanup func is safe to
// call on every exit path, including after failures.
func (g *Generator) Generate(paths *resolve.ResolvedPaths, isolatedLibsDir string) (string, func(), error) {
	params := templateParams{
		Blocked:    g.blockedEntries(),
		ScriptPath: paths.ScriptPath,
	}

	// The template installs each entry at position zero, so emit in reverse
	// priority: the last entry written ends up first on the search path.
	for _, dir := range []string{paths.WorkDir, paths.ScriptDir, isolatedLibsDir} {
		if dir != "" {
			params.SearchPaths = append(params.SearchPaths, dir)
		}
	}
	if paths.HasLibrary {
		params.LibraryDir = paths.LibraryDir()
	}

	var sb strings.Builder
	if err := g.tmpl.Execute(&sb, params); err != nil {
		return "", func() {}, fmt.Errorf("rendering bootstrap: %w", err)
	}
	rendered := sb.String()

	if err := verifyPatchOrder(rendered); err != nil {
		g.logger().Warn(PatchInstallationWarning, "cause", err)
	}

	f, err := os.CreateTemp(g.TempDir, "trainctl-launcher-*.py")
	if err != nil {
		return "", func() {}, fmt.Errorf("creating bootstrap file: %w", err)
	}
	path := f.Name()
	cleanup := func() { _ = os.Remove(path) }

	if _, err := f.WriteString(rendered); err != nil {
		_ = f.Close()
		cleanup()
		return "", func() {}, fmt.Errorf("writing bootstrap file: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", func() {}, fmt.Errorf("writing bootstrap file: %w", err)
	}

	return path, cleanup, nil
}

// Substitute returns a copy of command with the first script argument
// replaced by the bootstrap path. A command without a script argument is
// returned unchanged; an empty bootstrap path is a no-op.
func Substitute(command []string, launcherPath string) []string {
	out := make([]string, len(command))
	copy(out, command)
	if launcherPath == "" {
		return out
	}
	for i, arg := range out {
		if strings.HasSuffix(arg, resolve.ScriptExt) {
			out[i] = launcherPath
			return out
		}
	}
	return out
}

func (g *Generator) blockedEntries() []blockedEntry {
	if g.Registry == nil {
		return nil
	}
	names := g.Registry.Names()
	entries := make([]blockedEntry, 0, len(names))
	for _, name := range names {
		entries = append(entries, blockedEntry{Name: name, Reason: g.Registry.Reason(name)})
	}
	return entries
}

func (g *Generator) logger() *log.Logger {
	if g.Logger != nil {
		return g.Logger
	}
	return log.Default()
}

// verifyPatchOrder checks that interception is installed before the script
// body executes in the rendered source.
func verifyPatchOrder(rendered string) error {
	patch := strings.Index(rendered, interceptMarker)
	exec := strings.Index(rendered, execMarker)
	switch {
	case patch < 0:
		return fmt.Errorf("no interception block in rendered bootstrap")
	case exec < 0:
		return fmt.Errorf("no execution block in rendered bootstrap")
	case patch > exec:
		return fmt.Errorf("interception block after execution block")
	}
	return nil
}

// pyString renders s as a Python string literal. Go quoting uses only
// escapes Python also accepts.
func pyString(s string) string {
	return strconv.Quote(s)
}
