// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"maps"
	"slices"

	"github.com/charmbracelet/glamour"
)

type Id int

const (
	ScriptNotFoundId Id = iota + 1
	SpawnFailedId
	PackagesMissingId
	EmbeddedRuntimeId
	ConfigLoadFailedId
	ServerUnreachableId
)

type MarkdownMsg string

type Issue struct {
	id    Id          // ID used to look up the issue
	mdMsg MarkdownMsg // Markdown text that will be rendered
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) Render(stylePath string) (string, error) {
	return render(string(i.mdMsg), stylePath)
}

var (
	render = glamour.Render

	scriptNotFoundIssue = &Issue{
		id: ScriptNotFoundId,
		mdMsg: `
# Training script not found!

None of the candidate directories contained the training script.

## Search locations (in order of precedence):
1. The working directory itself
2. <workdir>/sd-scripts
3. <workdir>/kohya_ss/sd-scripts
4. <workdir>/kohya_train/kohya_ss/sd-scripts
5. <workdir>/custom_nodes/sd-scripts
6. One directory above the working directory

## Things you can try:
- Download sd-scripts:
~~~
$ git clone https://github.com/kohya-ss/sd-scripts
~~~
  and place it under your working directory.

- Pass the absolute script path in the command instead of a bare name.

- Extend the candidate list in your config file:
~~~cue
tool_dirs: ["sd-scripts", "my/custom/layout"]
~~~`,
	}

	spawnFailedIssue = &Issue{
		id: SpawnFailedId,
		mdMsg: `
# Failed to start the training process!

The operating system refused to create the child process.

## Common causes:
- The interpreter in the command's first argument does not exist
- The interpreter is not executable (permissions)
- The working directory disappeared between resolution and spawn

## Things you can try:
- Verify the interpreter path:
~~~
$ <interpreter> --version
~~~
- Check permissions on the script and its directory
- Run with verbose mode for the composed environment:
~~~
$ trainctl --verbose run ...
~~~`,
	}

	packagesMissingIssue = &Issue{
		id: PackagesMissingId,
		mdMsg: `
# Training packages missing!

The isolated package directory is absent or incomplete.

## Things you can try:
- Install the pinned package set (5-10 minutes on first run):
~~~
$ trainctl setup
~~~
- Force a clean reinstall:
~~~
$ trainctl setup --force
~~~
- Check disk space (the package set needs ~2 GB)`,
	}

	embeddedRuntimeIssue = &Issue{
		id: EmbeddedRuntimeId,
		mdMsg: `
# Embedded Python detected

Your interpreter ships without compiler headers (no include/Python.h).
Optional native extensions (triton, bitsandbytes) would try to compile on
import and fail hard.

trainctl handles this automatically: a generated launcher substitutes those
modules with inert stand-ins before the trainer's own imports run. Training
proceeds without quantization and without triton kernels.

No action needed; this note is informational.`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

Could not load the trainctl configuration file.

## Configuration file locations:
- Linux: ~/.config/trainctl/config.cue
- macOS: ~/Library/Application Support/trainctl/config.cue
- Windows: %APPDATA%\trainctl\config.cue

## Things you can try:
- Check the configuration syntax against the schema
- Remove the config file to fall back to defaults

## Example configuration:
~~~cue
stop_grace_seconds: 5
use_pty:            true
blocked_modules: ["triton", "bitsandbytes"]
~~~`,
	}

	serverUnreachableIssue = &Issue{
		id: ServerUnreachableId,
		mdMsg: `
# Cannot reach the trainctl server!

The stop/status/logs commands talk to a running ` + "`trainctl serve`" + ` instance.

## Things you can try:
- Start the server:
~~~
$ trainctl serve
~~~
- Check the address and token printed at server startup
- Pass them explicitly:
~~~
$ trainctl status --addr http://127.0.0.1:7878 --token <token>
~~~`,
	}

	issues = map[Id]*Issue{
		scriptNotFoundIssue.Id():    scriptNotFoundIssue,
		spawnFailedIssue.Id():       spawnFailedIssue,
		packagesMissingIssue.Id():   packagesMissingIssue,
		embeddedRuntimeIssue.Id():   embeddedRuntimeIssue,
		configLoadFailedIssue.Id():  configLoadFailedIssue,
		serverUnreachableIssue.Id(): serverUnreachableIssue,
	}
)

func Values() []*Issue {
	return slices.Collect(maps.Values(issues))
}

func Get(id Id) *Issue {
	return issues[id]
}
