// SPDX-License-Identifier: MPL-2.0

package resolve

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// ScriptExt is the extension that marks a command argument as the
	// training script.
	ScriptExt = ".py"

	// LibraryDirName is the support-library directory the trainer resolves
	// via relative lookup (kohya sd-scripts ships it as "library/"). Its
	// presence is the secondary signal when the script file itself cannot be
	// located under the expected name.
	LibraryDirName = "library"
)

// DefaultToolDirs is the ordered default candidate list, as subpaths relative
// to the working-directory hint. An empty entry means the hint itself.
// The membership is empirically tuned to common host-app layouts and is meant
// to be overridden from configuration, not edited here.
var DefaultToolDirs = []string{
	"",
	"sd-scripts",
	filepath.Join("kohya_ss", "sd-scripts"),
	filepath.Join("kohya_train", "kohya_ss", "sd-scripts"),
	filepath.Join("custom_nodes", "sd-scripts"),
	filepath.Join("..", "sd-scripts"),
}

type (
	// ResolvedPaths is the outcome of one resolution. Derived once per start
	// call; not persisted.
	ResolvedPaths struct {
		// WorkDir is the absolutized working-directory hint.
		WorkDir string
		// ScriptDir is the absolute directory that contains the script (and,
		// when HasLibrary is true, the support library). The child process
		// runs from here.
		ScriptDir string
		// ScriptPath is the absolute script path. Empty when the command
		// carries no script argument.
		ScriptPath string
		// HasLibrary reports whether ScriptDir contains the support library.
		HasLibrary bool
	}

	// Resolver finds the script directory for a command. The zero value uses
	// DefaultToolDirs.
	Resolver struct {
		// ToolDirs overrides the candidate subpath list when non-nil.
		ToolDirs []string
	}

	// ScriptNotFoundError reports that no candidate directory contained the
	// expected script, with every path that was attempted.
	ScriptNotFoundError struct {
		// Script is the script name extracted from the command.
		Script string
		// Attempted lists every candidate path checked, in order.
		Attempted []string
	}
)

// LibraryDir returns the support-library path under ScriptDir. Meaningful
// only when HasLibrary is true.
func (p *ResolvedPaths) LibraryDir() string {
	return filepath.Join(p.ScriptDir, LibraryDirName)
}

// Error implements the error interface.
func (e *ScriptNotFoundError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "training script not found: %s (tried %d locations)", e.Script, len(e.Attempted))
	for _, p := range e.Attempted {
		b.WriteString("\n  - ")
		b.WriteString(p)
	}
	return b.String()
}

// Resolve locates the script named in command and returns the resolved
// directories. When the script argument was relative and a candidate matched,
// the command slice is mutated in place so the spawned process's view of the
// script is unambiguous regardless of its eventual working directory.
//
// Candidate order is fixed: the hint itself, then each configured tool
// subpath. The first match wins. The literal script file is checked across
// all candidates before falling back to support-library presence, which
// covers a script checked out under an unexpected name.
func (r *Resolver) Resolve(command []string, workDirHint string) (*ResolvedPaths, error) {
	hint, err := filepath.Abs(workDirHint)
	if err != nil {
		return nil, fmt.Errorf("absolutize working dir hint %q: %w", workDirHint, err)
	}

	scriptIdx := -1
	for i, arg := range command {
		if strings.HasSuffix(arg, ScriptExt) {
			scriptIdx = i
			break
		}
	}

	// No script argument at all: the hint is the best answer we have.
	// The trainer may be invoked as a module (-m); spawn proceeds as-is.
	if scriptIdx == -1 {
		return &ResolvedPaths{
			WorkDir:    hint,
			ScriptDir:  hint,
			HasLibrary: dirExists(filepath.Join(hint, LibraryDirName)),
		}, nil
	}

	scriptArg := command[scriptIdx]

	// A path that already exists as given settles the question immediately.
	if fileExists(scriptArg) {
		abs, err := filepath.Abs(scriptArg)
		if err != nil {
			return nil, fmt.Errorf("absolutize script path %q: %w", scriptArg, err)
		}
		command[scriptIdx] = abs
		dir := filepath.Dir(abs)
		return &ResolvedPaths{
			WorkDir:    hint,
			ScriptDir:  dir,
			ScriptPath: abs,
			HasLibrary: dirExists(filepath.Join(dir, LibraryDirName)),
		}, nil
	}

	scriptName := filepath.Base(scriptArg)
	candidates := r.candidates(hint)

	var attempted []string

	// First pass: the literal script file.
	for _, dir := range candidates {
		candidate := filepath.Join(dir, scriptName)
		attempted = append(attempted, candidate)
		if fileExists(candidate) {
			command[scriptIdx] = candidate
			return &ResolvedPaths{
				WorkDir:    hint,
				ScriptDir:  dir,
				ScriptPath: candidate,
				HasLibrary: dirExists(filepath.Join(dir, LibraryDirName)),
			}, nil
		}
	}

	// Second pass: support-library presence. The script may exist under a
	// different name than expected; the library directory pins the layout.
	for _, dir := range candidates {
		if dirExists(filepath.Join(dir, LibraryDirName)) {
			candidate := filepath.Join(dir, scriptName)
			command[scriptIdx] = candidate
			return &ResolvedPaths{
				WorkDir:    hint,
				ScriptDir:  dir,
				ScriptPath: candidate,
				HasLibrary: true,
			}, nil
		}
	}

	return nil, &ScriptNotFoundError{Script: scriptName, Attempted: attempted}
}

// candidates expands the configured tool subpaths against the hint into
// cleaned absolute directories, preserving order.
func (r *Resolver) candidates(hint string) []string {
	dirs := r.ToolDirs
	if dirs == nil {
		dirs = DefaultToolDirs
	}

	out := make([]string, 0, len(dirs))
	for _, sub := range dirs {
		if sub == "" {
			out = append(out, hint)
			continue
		}
		out = append(out, filepath.Clean(filepath.Join(hint, sub)))
	}
	return out
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
