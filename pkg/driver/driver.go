// Package driver implements the Build Driver of spec.md §4.5: for a
// chosen set of configs, decide skip-vs-rebuild, order and compile
// translation units, link, write the new build-info, and optionally emit
// a compilation-command database. Ordering and first-error propagation
// are grounded on the teacher's pkg/build/build.go BuildSteps
// (category-ordered Run with BuildResult{Loop, Error, IDs} short-
// circuiting on the first failure), generalised here from CI build
// categories to config dependency order.
package driver

import (
	"encoding/json"
	"path/filepath"

	"github.com/containifyci/builder/pkg/backend"
	"github.com/containifyci/builder/pkg/buildinfo"
	"github.com/containifyci/builder/pkg/config"
	"github.com/containifyci/builder/pkg/errs"
	"github.com/containifyci/builder/pkg/platform"
	"github.com/containifyci/builder/pkg/scanner"
)

// Options controls one driver run.
type Options struct {
	ForceRebuild               bool
	GenerateCompilationDB      bool
	AppDir                     string // injected as an additional include path, spec.md §4.1
	CRTLibs                    []string
}

// Result summarises one config's build outcome.
type Result struct {
	Config  *config.BuildConfig
	Skipped bool
	ExitCode int
}

// Run builds every config in order (dependencies before dependents, per
// spec.md §4.5), aborting the remaining configs on the first failure.
func Run(ctx *platform.Context, root string, be backend.Backend, ordered []*config.BuildConfig, prior *buildinfo.BuildInfo, opts Options) ([]Result, *buildinfo.BuildInfo, error) {
	newInfo := &buildinfo.BuildInfo{}
	var results []Result
	db := &compilationDB{}

	for _, cfg := range ordered {
		config.AddBuiltinDefaults(cfg, opts.AppDir, opts.CRTLibs)
		resolveRelativePaths(root, cfg)

		scanResult, err := scanner.Scan(ctx, root, cfg)
		if err != nil {
			return results, nil, err
		}

		priorRecord := findRecord(prior, cfg.Name)
		skip := !opts.ForceRebuild && canSkip(ctx, root, cfg, scanResult, priorRecord)

		res := Result{Config: cfg, Skipped: skip}
		if skip {
			ctx.Log.Info("Skipped", "config", cfg.Name)
			results = append(results, res)
			newInfo.Configs = append(newInfo.Configs, priorRecord)
			continue
		}

		if err := ctx.FS.MkdirAll(filepath.Join(root, cfg.BinaryFolder)); err != nil {
			return results, nil, errs.Wrap(errs.Io, "create binary folder", err)
		}

		exitCode, err := build(ctx, root, be, cfg, scanResult, opts, db)
		res.ExitCode = exitCode
		results = append(results, res)
		if err != nil {
			return results, nil, err
		}
		if exitCode != 0 {
			return results, nil, errs.WithExitCode(errs.Compile, "build failed for config "+cfg.Name, exitCode)
		}

		record := buildRecord(ctx, root, cfg, scanResult)
		newInfo.Configs = append(newInfo.Configs, record)
	}

	if opts.GenerateCompilationDB {
		if err := writeCompilationDatabase(ctx, root, db.Get()); err != nil {
			return results, nil, err
		}
	}

	return results, newInfo, nil
}

func resolveRelativePaths(root string, cfg *config.BuildConfig) {
	for i, inc := range cfg.AdditionalIncludes {
		if !filepath.IsAbs(inc) {
			cfg.AdditionalIncludes[i] = filepath.Join(root, inc)
		}
	}
	for i, lp := range cfg.AdditionalLibPaths {
		if !filepath.IsAbs(lp) {
			cfg.AdditionalLibPaths[i] = filepath.Join(root, lp)
		}
	}
}

// canSkip implements spec.md §4.5 step 4 and §8 property 4 (skip
// determinism): skip iff the binary exists and every tracked file's
// current write time matches the stored one and the config's structural
// hash is unchanged (DESIGN.md's Open Questions resolution folds the
// hash into the check alongside mtimes).
func canSkip(ctx *platform.Context, root string, cfg *config.BuildConfig, scan *scanner.Result, prior *buildinfo.ConfigRecord) bool {
	if prior == nil {
		return false
	}
	if prior.NameHash != config.NameHash(cfg.Name) {
		return false
	}
	if prior.ConfigHash != config.StructuralHash(cfg) {
		return false
	}
	binaryPath := filepath.Join(root, cfg.BinaryFolder, effectiveBinaryFileName(cfg))
	if !ctx.FS.Exists(binaryPath) {
		return false
	}
	stored := map[string]int64{}
	for _, tf := range prior.TrackedFiles {
		stored[tf.Path] = tf.LastWriteTime
	}
	if len(stored) != len(scan.Tracked) {
		return false
	}
	for _, path := range scan.Tracked {
		t, err := ctx.FS.LastWriteTime(filepath.Join(root, path))
		if err != nil {
			return false
		}
		want, ok := stored[path]
		if !ok || want != t {
			return false
		}
	}
	return true
}

func build(ctx *platform.Context, root string, be backend.Backend, cfg *config.BuildConfig, scan *scanner.Result, opts Options, db *compilationDB) (int, error) {
	binaryPath := filepath.Join(cfg.BinaryFolder, effectiveBinaryFileName(cfg))

	if cfg.Kind == config.StaticLibrary {
		return buildStaticLibrary(ctx, root, be, cfg, scan, opts, db, binaryPath)
	}

	recordDB := dbRecorder(opts, db)
	if len(scan.Sources) == 1 {
		return be.CompileOne(ctx, root, cfg, scan.Sources[0], binaryPath, recordDB)
	}

	// Multiple TUs for an executable/dynamic library: compile then link.
	objects, code, err := compileAll(ctx, root, be, cfg, scan.Sources, opts, db)
	if err != nil || code != 0 {
		return code, err
	}
	return be.LinkIntermediates(ctx, root, cfg, objects, binaryPath)
}

func buildStaticLibrary(ctx *platform.Context, root string, be backend.Backend, cfg *config.BuildConfig, scan *scanner.Result, opts Options, db *compilationDB, binaryPath string) (int, error) {
	objects, code, err := compileAll(ctx, root, be, cfg, scan.Sources, opts, db)
	if err != nil || code != 0 {
		return code, err
	}
	return be.ArchiveStatic(ctx, root, objects, binaryPath)
}

// compileAll compiles every source through the worker pool, per spec.md
// §5: stable ordering by source-file-list position, first non-zero exit
// code wins.
func compileAll(ctx *platform.Context, root string, be backend.Backend, cfg *config.BuildConfig, sources []string, opts Options, db *compilationDB) ([]string, int, error) {
	pool := newWorkerPool()
	jobs := make([]compileJob, len(sources))
	objects := make([]string, len(sources))
	for i, src := range sources {
		obj := filepath.Join(cfg.BinaryFolder, objectFileName(src))
		objects[i] = obj
		jobs[i] = compileJob{index: i, sourceFile: src, outputFile: obj}
	}

	recordDB := dbRecorder(opts, db)
	entries := make([][]backend.CompilationDatabaseEntry, len(sources))
	results := pool.run(jobs, func(j compileJob) (int, error) {
		var rec func(backend.CompilationDatabaseEntry)
		if recordDB != nil {
			rec = func(e backend.CompilationDatabaseEntry) { entries[j.index] = append(entries[j.index], e) }
		}
		return be.CompileOne(ctx, root, cfg, j.sourceFile, j.outputFile, rec)
	})
	for _, perJob := range entries {
		for _, e := range perJob {
			recordDB(e)
		}
	}

	firstNonZero := 0
	var firstErr error
	for _, r := range results {
		if r.err != nil && firstErr == nil {
			firstErr = r.err
		}
		if r.exitCode != 0 && firstNonZero == 0 {
			firstNonZero = r.exitCode
		}
	}
	return objects, firstNonZero, firstErr
}

func dbRecorder(opts Options, db *compilationDB) func(backend.CompilationDatabaseEntry) {
	if !opts.GenerateCompilationDB {
		return nil
	}
	return db.Add
}

func objectFileName(source string) string {
	ext := filepath.Ext(source)
	return source[:len(source)-len(ext)] + ".o"
}

func effectiveBinaryFileName(cfg *config.BuildConfig) string {
	if cfg.DropFileExtension {
		return cfg.BinaryName
	}
	switch cfg.Kind {
	case config.DynamicLibrary:
		return cfg.BinaryName + dynlibExt()
	case config.StaticLibrary:
		return cfg.BinaryName + ".a"
	default:
		return cfg.BinaryName
	}
}

func findRecord(info *buildinfo.BuildInfo, name string) *buildinfo.ConfigRecord {
	if info == nil {
		return nil
	}
	for _, rec := range info.Configs {
		if rec.Config.Name == name {
			return rec
		}
	}
	return nil
}

func buildRecord(ctx *platform.Context, root string, cfg *config.BuildConfig, scan *scanner.Result) *buildinfo.ConfigRecord {
	tracked := make([]buildinfo.TrackedFile, 0, len(scan.Tracked))
	for _, path := range scan.Tracked {
		t, err := ctx.FS.LastWriteTime(filepath.Join(root, path))
		if err != nil {
			continue
		}
		tracked = append(tracked, buildinfo.TrackedFile{Path: path, LastWriteTime: t})
	}
	names := make([]string, 0, len(cfg.Dependencies))
	for _, d := range cfg.Dependencies {
		names = append(names, d.Name)
	}
	return &buildinfo.ConfigRecord{
		Config:         cfg,
		DependsOnNames: names,
		NameHash:       config.NameHash(cfg.Name),
		ConfigHash:     config.StructuralHash(cfg),
		TrackedFiles:   tracked,
	}
}

func writeCompilationDatabase(ctx *platform.Context, root string, entries []backend.CompilationDatabaseEntry) error {
	if entries == nil {
		entries = []backend.CompilationDatabaseEntry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return errs.Wrap(errs.Internal, "marshal compilation database", err)
	}
	if err := ctx.FS.WriteFile(filepath.Join(root, "compile_commands.json"), data, 0o644); err != nil {
		return errs.Wrap(errs.Io, "write compile_commands.json", err)
	}
	return nil
}

func dynlibExt() string {
	return platformDynlibExt
}
