// Package vsgen implements the Visual Studio Generator of spec.md §4.7:
// it emits .sln/.vcxproj/.vcxproj.user/.vcxproj.filters files whose
// build/rebuild/clean commands re-invoke the orchestrator. Struct shapes
// and the encoding/xml + GUID approach are grounded directly on
// other_examples/70f9e611_qobs-build-qobs__internal-builder-gen-vs2022.go.go,
// a standalone VS2022 project/solution generator retrieved for this spec;
// solution-folder nesting and the .vcxproj.user file are additions this
// package makes on top of that file, which only emitted flat native
// projects.
package vsgen

import "github.com/containifyci/builder/pkg/config"

// Solution is the generator's top-level input, per spec.md §3.
type Solution struct {
	Name      string
	Path      string
	Platforms []string
	Projects  []*Project
}

// Project owns its (possibly slash-separated, solution-folder-nesting)
// name, the folders to enumerate for source discovery, the extensions to
// pick up, and its per-VS-config tuples.
type Project struct {
	Name           string
	CodeFolders    []string
	FileExtensions []string
	Configs        []ProjectConfig
}

// ProjectConfig pairs a VS-facing configuration name with the underlying
// BuildConfig and IDE debugger metadata, per spec.md §3's VS Config.
type ProjectConfig struct {
	Name          string
	Underlying    *config.BuildConfig
	DebuggerArgs  []string
}

var defaultPlatforms = map[string]bool{
	"x64":   true,
	"x86":   true,
	"ARM64": true,
}
