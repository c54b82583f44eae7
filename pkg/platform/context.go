// Package platform is the orchestrator's collaborator layer: filesystem,
// process launch, dynamic-module loading, GUID generation and path
// algebra. Every other package depends on it through narrow interfaces
// instead of calling os/os-exec directly, so tests can substitute fakes.
package platform

import "log/slog"

// Context threads the ambient state the original C++ kept as module-wide
// globals (allocators, the verbose flag, path resolution) through every
// public entry point, per spec.md §9 ("Global mutable state").
type Context struct {
	// WorkDir is the directory relative paths in a build description are
	// resolved against — normally the description file's own directory.
	WorkDir string

	// Verbose enables the scanner's unreadable-file and missing-include
	// warnings and the Clang/GCC backend's failed-compile output.
	Verbose bool

	// VisualStudioBuild is set when the IDE invoked the orchestrator
	// (spec.md §6 --visual-studio-build). It selects the plain
	// non-interactive log handler; paths are resolved the same way as for
	// a command-line run.
	VisualStudioBuild bool

	Log *slog.Logger

	FS      FileSystem
	Proc    ProcessLauncher
	Dynload DynamicLoader
}

// New builds a Context wired to the real OS-backed collaborators.
func New(workDir string, verbose bool, log *slog.Logger) *Context {
	return &Context{
		WorkDir: workDir,
		Verbose: verbose,
		Log:     log,
		FS:      OSFileSystem{},
		Proc:    OSProcessLauncher{},
		Dynload: NewDynamicLoader(),
	}
}
