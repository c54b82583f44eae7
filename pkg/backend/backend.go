// Package backend implements the Compiler Backend Interface of spec.md
// §4.4: an abstract "compile one translation unit, link intermediates,
// query include dependencies" contract with three concrete
// implementations (Clang, GCC, MSVC). The registry/selection pattern is
// grounded on the teacher's pkg/cri/manager.go (ContainerManager
// interface + InitContainerRuntime/getRuntime switch), generalised here
// from docker/podman/host selection to clang/gcc/msvc selection.
package backend

import (
	"fmt"
	"runtime"

	"github.com/containifyci/builder/pkg/config"
	"github.com/containifyci/builder/pkg/platform"
)

// Name identifies a concrete backend.
type Name string

const (
	Clang Name = "clang"
	GCC   Name = "gcc"
	MSVC  Name = "msvc"
)

// Archetype is the compiler-invariant command-line prefix for a config
// under a backend: compiler path, language-standard flag, optimisation
// flag, debug-info flag, warning-group enables, warnings-as-errors, and
// every define/include/libpath/lib rendered in the backend's syntax, per
// spec.md §4.4.
type Archetype struct {
	BaseArgs   []string
	DepFlags   []string
	OutputFlag string
}

// CompilationDatabaseEntry records one compilation for the optional
// compile_commands.json database, per spec.md §4.5 step 7 and the
// clang JSON-compilation-database schema (SPEC_FULL.md supplement §5).
type CompilationDatabaseEntry struct {
	Directory string   `json:"directory"`
	File      string   `json:"file"`
	Arguments []string `json:"arguments"`
	Output    string   `json:"output"`
}

// Backend is the per-compiler adapter emitting concrete command lines and
// running them, per spec.md §4.4. Implementations must be safe for
// concurrent calls that do not share mutable backend state (spec.md §5
// "Scheduling").
type Backend interface {
	Init() error
	Shutdown() error

	CompilerPath() string
	CompilerVersion() string

	CommandArchetypeFor(cfg *config.BuildConfig) Archetype

	// CompileOne compiles sourceFile to an object/binary per cfg and
	// returns the compiler's exit code verbatim. recordDB receives the
	// compilation-database entry when the caller wants one recorded.
	CompileOne(ctx *platform.Context, workDir string, cfg *config.BuildConfig, sourceFile, outputFile string, recordDB func(CompilationDatabaseEntry)) (exitCode int, err error)

	// LinkIntermediates links the compiled objects/archives of cfg into
	// its final binary and returns the linker's exit code verbatim.
	LinkIntermediates(ctx *platform.Context, workDir string, cfg *config.BuildConfig, intermediates []string, outputFile string) (exitCode int, err error)

	// ArchiveStatic builds a static-library archive from object files.
	ArchiveStatic(ctx *platform.Context, workDir string, objects []string, outputFile string) (exitCode int, err error)

	// CollectIncludeDependencies parses the compiler-emitted dependency
	// listing (e.g. a .d file) produced by the most recent CompileOne
	// call for sourceFile and returns the include paths it names.
	CollectIncludeDependencies(ctx *platform.Context, workDir, sourceFile string) ([]string, error)
}

// DefaultName picks the host's native toolchain when the description
// module does not request one via compiler_path_override: MSVC on
// Windows, Clang everywhere else. The original ships a portable Clang
// install as its true default (SPEC_FULL.md's first-run-installer
// collaborator, out of scope per spec.md §1); this picks the equivalent
// already on PATH instead.
func DefaultName() Name {
	if runtime.GOOS == "windows" {
		return MSVC
	}
	return Clang
}

// Overridable is implemented by backends that accept a compiler path/
// version override from the description module's set_builder_options
// call, per spec.md §4.4's MSVC-discovery rule and §6's compiler_path_
// override/compiler_version_override fields.
type Overridable interface {
	Override(ctx *platform.Context, path, version string) error
}

// New selects a concrete backend by name, the factory-switch pattern
// grounded on pkg/cri/manager.go's getRuntime.
func New(name Name) (Backend, error) {
	switch name {
	case Clang:
		return newClangLike(Clang), nil
	case GCC:
		return newClangLike(GCC), nil
	case MSVC:
		return newMSVC(), nil
	default:
		return nil, fmt.Errorf("unknown compiler backend %q", name)
	}
}

// gccStdFlag renders cfg.Language for the gcc/clang family.
func gccStdFlag(l config.LanguageVersion) string {
	switch l {
	case config.C89:
		return "-std=c89"
	case config.C99:
		return "-std=c99"
	case config.C11:
		return "-std=c11"
	case config.C17:
		return "-std=c17"
	case config.C23:
		return "-std=c23"
	case config.CXX11:
		return "-std=c++11"
	case config.CXX14:
		return "-std=c++14"
	case config.CXX17:
		return "-std=c++17"
	case config.CXX20:
		return "-std=c++20"
	case config.CXX23:
		return "-std=c++23"
	default:
		return ""
	}
}

func gccOptFlag(o config.OptimisationLevel) string {
	switch o {
	case config.O0:
		return "-O0"
	case config.O1:
		return "-O1"
	case config.O2:
		return "-O2"
	case config.O3:
		return "-O3"
	default:
		return "-O0"
	}
}
