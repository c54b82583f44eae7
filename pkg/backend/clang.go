package backend

import (
	"path/filepath"
	"runtime"
	"strings"

	"github.com/containifyci/builder/pkg/config"
	"github.com/containifyci/builder/pkg/errs"
	"github.com/containifyci/builder/pkg/platform"
)

// clangLike implements the Clang and GCC backends, which spec.md §4.4
// describes with an identical flag syntax differing only in compiler
// path (per §8 property 6: "Backend parity").
type clangLike struct {
	name    Name
	path    string
	version string
}

func newClangLike(name Name) *clangLike {
	path := "clang"
	if name == GCC {
		path = "gcc"
	}
	return &clangLike{name: name, path: path}
}

func (b *clangLike) Init() error     { return nil }
func (b *clangLike) Shutdown() error { return nil }

func (b *clangLike) CompilerPath() string    { return b.path }
func (b *clangLike) CompilerVersion() string { return b.version }

// Override applies a description-supplied compiler path/version, per
// spec.md §6. Clang/GCC have no vendor-discovery step, unlike MSVC, so
// this is a plain assignment.
func (b *clangLike) Override(ctx *platform.Context, path, version string) error {
	if path != "" {
		b.path = path
	}
	b.version = version
	return nil
}

func (b *clangLike) CommandArchetypeFor(cfg *config.BuildConfig) Archetype {
	args := []string{}
	if std := gccStdFlag(cfg.Language); std != "" {
		args = append(args, std)
	}
	args = append(args, gccOptFlag(cfg.Optimisation), "-g")
	if cfg.WarningsAsErrors {
		args = append(args, "-Werror")
	}
	for _, wg := range cfg.WarningGroups {
		args = append(args, "-W"+wg)
	}
	for _, w := range cfg.IgnoreWarnings {
		args = append(args, "-Wno-"+w)
	}
	for _, d := range cfg.Defines {
		args = append(args, "-D"+d)
	}
	for _, inc := range cfg.AdditionalIncludes {
		args = append(args, "-I"+inc)
	}
	for _, lp := range cfg.AdditionalLibPaths {
		args = append(args, "-L"+lp)
	}
	for _, lib := range cfg.AdditionalLibs {
		args = append(args, "-l"+lib)
	}
	if cfg.Kind == config.DynamicLibrary {
		args = append(args, "-shared")
	}
	args = append(args, cfg.ExtraArgs...)

	return Archetype{
		BaseArgs:   args,
		DepFlags:   []string{"-MD", "-MF"},
		OutputFlag: "-o",
	}
}

func (b *clangLike) CompileOne(ctx *platform.Context, workDir string, cfg *config.BuildConfig, sourceFile, outputFile string, recordDB func(CompilationDatabaseEntry)) (int, error) {
	arch := b.CommandArchetypeFor(cfg)
	depFile := sourceFile + ".d"

	argv := []string{b.path}
	argv = append(argv, arch.BaseArgs...)
	argv = append(argv, "-c", sourceFile, arch.DepFlags[0], arch.DepFlags[1], depFile, arch.OutputFlag, outputFile)

	if recordDB != nil {
		recordDB(CompilationDatabaseEntry{Directory: workDir, File: sourceFile, Arguments: argv, Output: outputFile})
	}

	res, err := ctx.Proc.Run(workDir, argv)
	if err != nil {
		return -1, errs.Wrap(errs.Compile, "invoke "+b.path, err)
	}
	if res.ExitCode != 0 && ctx.Verbose {
		ctx.Log.Warn("compile failed", "source", sourceFile, "output", string(res.Output))
	}
	return res.ExitCode, nil
}

func (b *clangLike) LinkIntermediates(ctx *platform.Context, workDir string, cfg *config.BuildConfig, intermediates []string, outputFile string) (int, error) {
	arch := b.CommandArchetypeFor(cfg)
	argv := []string{b.path}
	argv = append(argv, arch.BaseArgs...)
	argv = append(argv, intermediates...)
	argv = append(argv, arch.OutputFlag, outputFile)

	res, err := ctx.Proc.Run(workDir, argv)
	if err != nil {
		return -1, errs.Wrap(errs.Link, "invoke "+b.path, err)
	}
	return res.ExitCode, nil
}

// ArchiveStatic links the archive with lld-link /lib /OUT:... on
// Windows, or ar elsewhere, per spec.md §4.4's Clang/GCC section.
func (b *clangLike) ArchiveStatic(ctx *platform.Context, workDir string, objects []string, outputFile string) (int, error) {
	var argv []string
	if runtime.GOOS == "windows" {
		argv = append([]string{"lld-link", "/lib", "/OUT:" + outputFile}, objects...)
	} else {
		argv = append([]string{"ar", "rcs", outputFile}, objects...)
	}
	res, err := ctx.Proc.Run(workDir, argv)
	if err != nil {
		return -1, errs.Wrap(errs.Link, "archive static library", err)
	}
	return res.ExitCode, nil
}

// CollectIncludeDependencies parses a compiler-emitted .d file: skip to
// the first ':', then tokenise space-separated paths honouring
// backslash-escaped spaces and line continuations, per spec.md §4.4.
func (b *clangLike) CollectIncludeDependencies(ctx *platform.Context, workDir, sourceFile string) ([]string, error) {
	depFile := sourceFile + ".d"
	data, err := ctx.FS.ReadFile(filepath.Join(workDir, depFile))
	if err != nil {
		return nil, nil
	}
	return parseDepFile(string(data)), nil
}

func parseDepFile(contents string) []string {
	idx := strings.IndexByte(contents, ':')
	if idx < 0 {
		return nil
	}
	rest := contents[idx+1:]
	rest = strings.ReplaceAll(rest, "\\\r\n", " ")
	rest = strings.ReplaceAll(rest, "\\\n", " ")

	var paths []string
	var cur strings.Builder
	tokens := strings.Fields(rest)
	for _, tok := range tokens {
		if strings.HasSuffix(tok, `\`) && !strings.HasSuffix(tok, `\\`) {
			cur.WriteString(strings.TrimSuffix(tok, `\`))
			cur.WriteByte(' ')
			continue
		}
		cur.WriteString(tok)
		paths = append(paths, strings.ReplaceAll(cur.String(), `\ `, " "))
		cur.Reset()
	}
	return paths
}
