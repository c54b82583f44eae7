package backend

import (
	"path/filepath"
	"runtime"
	"strings"

	"github.com/containifyci/builder/pkg/config"
	"github.com/containifyci/builder/pkg/errs"
	"github.com/containifyci/builder/pkg/platform"
)

// msvcBackend implements spec.md §4.4's MSVC section: /std:, /Od|/O1|/O2
// (O3 folds to O2, see DESIGN.md's Open Questions resolution), /I, /D,
// /LIBPATH:, /wd<n>, /Fo, /Fe, linker /DLL for dynamic libraries, and
// lib.exe for static libraries.
type msvcBackend struct {
	compilerPath    string
	compilerVersion string
	discovery       *Discovery
}

func newMSVC() *msvcBackend {
	return &msvcBackend{compilerPath: "cl.exe", discovery: NewDiscovery()}
}

func (b *msvcBackend) Init() error     { return nil }
func (b *msvcBackend) Shutdown() error { return nil }

func (b *msvcBackend) CompilerPath() string    { return b.compilerPath }
func (b *msvcBackend) CompilerVersion() string { return b.compilerVersion }

// ResolveInstallation implements spec.md §4.4's MSVC-only rule: when
// compilerPath is literally "cl" or "cl.exe" together with a requested
// version, locate the matching installation via the discovery layer;
// a mismatched advertised vs detected version warns but does not fail.
func (b *msvcBackend) ResolveInstallation(ctx *platform.Context, requestedPath, requestedVersion string) error {
	if requestedPath != "cl" && requestedPath != "cl.exe" {
		b.compilerPath = requestedPath
		b.compilerVersion = requestedVersion
		return nil
	}
	install, err := b.discovery.Find(ctx, requestedVersion)
	if err != nil {
		return errs.Wrap(errs.Module, "locate MSVC installation", err)
	}
	if requestedVersion != "" && install.Version != requestedVersion {
		ctx.Log.Warn("advertised MSVC version does not match detected installation", "advertised", requestedVersion, "detected", install.Version)
	}
	b.compilerPath = install.ClPath
	b.compilerVersion = install.Version
	return nil
}

// Override satisfies backend.Overridable, delegating to ResolveInstallation
// so an MSVC compiler_path_override of "cl"/"cl.exe" still triggers vendor
// discovery, per spec.md §4.4.
func (b *msvcBackend) Override(ctx *platform.Context, path, version string) error {
	return b.ResolveInstallation(ctx, path, version)
}

func (b *msvcBackend) optFlag(o config.OptimisationLevel) string {
	switch o {
	case config.O0:
		return "/Od"
	case config.O1:
		return "/O1"
	case config.O2, config.O3:
		// O3 has no MSVC equivalent; fold to /O2 per spec.md §4.4 and
		// §9's open question, resolved in DESIGN.md.
		return "/O2"
	default:
		return "/Od"
	}
}

func (b *msvcBackend) stdFlag(l config.LanguageVersion) string {
	switch l {
	case config.C11:
		return "/std:c11"
	case config.C17:
		return "/std:c17"
	case config.CXX14:
		return "/std:c++14"
	case config.CXX17:
		return "/std:c++17"
	case config.CXX20:
		return "/std:c++20"
	default:
		return ""
	}
}

func (b *msvcBackend) CommandArchetypeFor(cfg *config.BuildConfig) Archetype {
	var args []string
	if std := b.stdFlag(cfg.Language); std != "" {
		args = append(args, std)
	}
	args = append(args, b.optFlag(cfg.Optimisation))
	if cfg.WarningsAsErrors {
		args = append(args, "/WX")
	}
	for _, w := range cfg.IgnoreWarnings {
		args = append(args, "/wd"+w)
	}
	for _, d := range cfg.Defines {
		args = append(args, "/D"+d)
	}
	for _, inc := range cfg.AdditionalIncludes {
		args = append(args, "/I"+inc)
	}
	for _, lp := range cfg.AdditionalLibPaths {
		args = append(args, "/LIBPATH:"+lp)
	}
	for _, lib := range cfg.AdditionalLibs {
		args = append(args, lib+".lib")
	}
	args = append(args, cfg.ExtraArgs...)

	return Archetype{BaseArgs: args, OutputFlag: "/Fe"}
}

func (b *msvcBackend) CompileOne(ctx *platform.Context, workDir string, cfg *config.BuildConfig, sourceFile, outputFile string, recordDB func(CompilationDatabaseEntry)) (int, error) {
	arch := b.CommandArchetypeFor(cfg)
	argv := []string{b.compilerPath, "/c", "/showIncludes"}
	argv = append(argv, arch.BaseArgs...)
	argv = append(argv, sourceFile, "/Fo"+outputFile)

	if recordDB != nil {
		recordDB(CompilationDatabaseEntry{Directory: workDir, File: sourceFile, Arguments: argv, Output: outputFile})
	}

	res, err := ctx.Proc.Run(workDir, argv)
	if err != nil {
		return -1, errs.Wrap(errs.Compile, "invoke "+b.compilerPath, err)
	}
	sidecar := filepath.Join(workDir, showIncludesSidecar(sourceFile))
	if werr := ctx.FS.WriteFile(sidecar, res.Output, 0o644); werr != nil {
		return res.ExitCode, errs.Wrap(errs.Io, "write /showIncludes sidecar", werr)
	}
	return res.ExitCode, nil
}

func (b *msvcBackend) LinkIntermediates(ctx *platform.Context, workDir string, cfg *config.BuildConfig, intermediates []string, outputFile string) (int, error) {
	arch := b.CommandArchetypeFor(cfg)
	argv := []string{b.compilerPath}
	argv = append(argv, arch.BaseArgs...)
	argv = append(argv, intermediates...)
	if cfg.Kind == config.DynamicLibrary {
		argv = append(argv, "/LD")
	}
	argv = append(argv, "/Fe"+outputFile)

	res, err := ctx.Proc.Run(workDir, argv)
	if err != nil {
		return -1, errs.Wrap(errs.Link, "invoke "+b.compilerPath, err)
	}
	return res.ExitCode, nil
}

// ArchiveStatic uses lib.exe on a real Windows/MSVC host. When cross-
// linking from a non-Windows host (no lib.exe available) it falls back
// to lld-link /lib, matching original_source's conditional rather than
// hard-coding lld-link unconditionally (DESIGN.md Open Questions).
func (b *msvcBackend) ArchiveStatic(ctx *platform.Context, workDir string, objects []string, outputFile string) (int, error) {
	argv := []string{"lib.exe"}
	if runtime.GOOS != "windows" {
		argv = []string{"lld-link", "/lib"}
	}
	argv = append(argv, "/OUT:"+outputFile)
	argv = append(argv, objects...)

	res, err := ctx.Proc.Run(workDir, argv)
	if err != nil {
		return -1, errs.Wrap(errs.Link, "archive static library", err)
	}
	return res.ExitCode, nil
}

// showIncludesSidecar names the file CompileOne writes /showIncludes'
// captured stdout to, mirroring clang/gcc's on-disk .d file approach
// rather than keeping per-compile state on the backend itself (backend.go
// requires implementations be safe for concurrent calls sharing no
// mutable state).
func showIncludesSidecar(sourceFile string) string {
	return sourceFile + ".showincludes"
}

// showIncludesNotePrefix is the line prefix cl.exe emits per included
// header under /showIncludes on an English-locale toolchain.
const showIncludesNotePrefix = "Note: including file:"

func (b *msvcBackend) CollectIncludeDependencies(ctx *platform.Context, workDir, sourceFile string) ([]string, error) {
	data, err := ctx.FS.ReadFile(filepath.Join(workDir, showIncludesSidecar(sourceFile)))
	if err != nil {
		return nil, nil
	}
	return parseShowIncludes(string(data)), nil
}

func parseShowIncludes(output string) []string {
	var paths []string
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, "\r")
		idx := strings.Index(line, showIncludesNotePrefix)
		if idx < 0 {
			continue
		}
		path := strings.TrimSpace(line[idx+len(showIncludesNotePrefix):])
		if path != "" {
			paths = append(paths, path)
		}
	}
	return paths
}
