// Package bootstrap implements the two-phase bootstrap of spec.md §4.6:
// locate the user's build description, synthesise an internal config
// that compiles it into a dynamic module in a cache folder, load it, call
// set_builder_options, and collect the pre/post-build hooks. Grounded on
// the teacher's cmd/engine.go GetBuild/CallPlugin flow for the *shape* of
// "load an external description, call into it, get build data back" —
// not for its RPC mechanism, which spec.md's in-process shared-struct ABI
// rules out (see DESIGN.md).
package bootstrap

import (
	"bytes"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/containifyci/builder/pkg/abi"
	"github.com/containifyci/builder/pkg/backend"
	"github.com/containifyci/builder/pkg/buildinfo"
	"github.com/containifyci/builder/pkg/config"
	"github.com/containifyci/builder/pkg/driver"
	"github.com/containifyci/builder/pkg/errs"
	"github.com/containifyci/builder/pkg/platform"
	"github.com/hashicorp/go-hclog"
)

// CacheDirName is the hidden cache directory adjacent to the input file
// where the compiled description module and its build-info live, per
// spec.md §4.6.
const CacheDirName = ".builder"

// UserConfigBuildDefine is injected so the description source can
// selectively export set_builder_options only when built as the
// description module itself, per spec.md §4.6.
const UserConfigBuildDefine = "BUILDER_DOING_USER_CONFIG_BUILD"

// Result is what bootstrapping produces: the decoded build options and
// the handle needed to call the optional pre/post-build hooks later.
type Result struct {
	Options *abi.Loaded
	Handle  platform.ModuleHandle
	IsFromBuildInfo bool
	ModulePath      string
}

// Run performs the bootstrap for inputPath, which must end in .c, .cpp
// or .build_info per spec.md §6.
func Run(ctx *platform.Context, be backend.Backend, selfOptLevel config.OptimisationLevel, inputPath string) (*Result, error) {
	diag := hclog.New(&hclog.LoggerOptions{Name: "bootstrap", Level: hclog.Warn})

	ext := strings.ToLower(filepath.Ext(inputPath))
	switch ext {
	case ".c", ".cpp":
		return runFromSource(ctx, be, selfOptLevel, inputPath, diag)
	case ".build_info":
		return runFromBuildInfo(ctx, be, inputPath, diag)
	default:
		return nil, errs.New(errs.Usage, "input file must be .c, .cpp or .build_info, got "+ext)
	}
}

func runFromSource(ctx *platform.Context, be backend.Backend, selfOptLevel config.OptimisationLevel, inputPath string, diag hclog.Logger) (*Result, error) {
	dir := filepath.Dir(inputPath)
	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	cacheDir := filepath.Join(dir, CacheDirName)
	if err := ctx.FS.MkdirAll(cacheDir); err != nil {
		return nil, errs.Wrap(errs.Io, "create cache dir", err)
	}

	modulePath := filepath.Join(cacheDir, base+dynlibExt())
	cacheInfoPath := filepath.Join(cacheDir, base+".build_info")

	descCfg := &config.BuildConfig{
		Name:         base,
		Sources:      []string{filepath.Base(inputPath)},
		Defines:      []string{UserConfigBuildDefine},
		BinaryName:   base,
		BinaryFolder: CacheDirName,
		Kind:         config.DynamicLibrary,
		Optimisation: selfOptLevel,
	}

	var prior *buildinfo.BuildInfo
	if data, err := ctx.FS.ReadFile(cacheInfoPath); err == nil {
		if info, err := buildinfo.Load(bytes.NewReader(data)); err == nil {
			prior = info
		}
	}

	diag.Debug("compiling description module", "source", inputPath, "module", modulePath)
	results, newInfo, err := driver.Run(ctx, dir, be, []*config.BuildConfig{descCfg}, prior, driver.Options{
		AppDir: appDir(),
	})
	if err != nil {
		return nil, errs.Wrap(errs.Module, "compile description module", err)
	}
	if len(results) > 0 && results[0].ExitCode != 0 {
		return nil, errs.WithExitCode(errs.Module, "description module failed to compile", results[0].ExitCode)
	}
	if results[0].Skipped {
		diag.Debug("description module unchanged, skipping recompile", "module", modulePath)
	}

	newInfo.BuildSourceFile = inputPath
	newInfo.ModulePath = modulePath
	var buf bytes.Buffer
	if err := buildinfo.Save(&buf, newInfo); err != nil {
		return nil, err
	}
	if err := ctx.FS.WriteFile(cacheInfoPath, buf.Bytes(), 0o644); err != nil {
		return nil, errs.Wrap(errs.Io, "write description build-info", err)
	}

	return loadModule(ctx, modulePath, diag, false)
}

func runFromBuildInfo(ctx *platform.Context, be backend.Backend, inputPath string, diag hclog.Logger) (*Result, error) {
	data, err := ctx.FS.ReadFile(inputPath)
	if err != nil {
		return nil, errs.Wrap(errs.Io, "read build-info", err)
	}
	info, err := buildinfo.Load(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if !ctx.FS.Exists(info.ModulePath) {
		diag.Warn("cached description module missing, recompiling from source", "module", info.ModulePath)
		return runFromSource(ctx, be, config.O0, info.BuildSourceFile, diag)
	}
	result, err := loadModule(ctx, info.ModulePath, diag, true)
	if err != nil {
		return nil, err
	}
	if result.Options == nil {
		result.Options = &abi.Loaded{}
	}
	if len(result.Options.Configs) == 0 {
		// VS-driven re-invocation: configs come from the build-info
		// file itself rather than a fresh set_builder_options call.
		for _, rec := range info.Configs {
			result.Options.Configs = append(result.Options.Configs, rec.Config)
		}
	}
	return result, nil
}

func loadModule(ctx *platform.Context, modulePath string, diag hclog.Logger, fromBuildInfo bool) (*Result, error) {
	handle, err := ctx.Dynload.Open(modulePath)
	if err != nil {
		return nil, errs.Wrap(errs.Module, "load description module", err)
	}

	loaded, found, err := abi.LoadBuilderOptions(handle)
	if err != nil {
		return nil, errs.Wrap(errs.Module, "call set_builder_options", err)
	}
	if !found && !fromBuildInfo {
		return nil, errs.New(errs.Module, "set_builder_options symbol not found in description module")
	}

	if !abi.CallPreBuild(handle) {
		diag.Debug("on_pre_build not found, skipping pre-build hook call")
	}

	return &Result{Options: loaded, Handle: handle, IsFromBuildInfo: fromBuildInfo, ModulePath: modulePath}, nil
}

// RunPostBuild invokes on_post_build once after all configs build
// successfully, per spec.md §4.5.
func RunPostBuild(handle platform.ModuleHandle) {
	if !abi.CallPostBuild(handle) {
		hclog.New(&hclog.LoggerOptions{Name: "bootstrap", Level: hclog.Warn}).Debug("on_post_build not found, skipping post-build hook call")
	}
}

func appDir() string {
	exe, err := filepath.Abs(CacheDirName)
	if err != nil {
		return CacheDirName
	}
	return filepath.Dir(exe)
}

func dynlibExt() string {
	switch runtime.GOOS {
	case "windows":
		return ".dll"
	case "darwin":
		return ".dylib"
	default:
		return ".so"
	}
}
