package cmd

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/containifyci/builder/pkg/abi"
	"github.com/containifyci/builder/pkg/backend"
	"github.com/containifyci/builder/pkg/bootstrap"
	"github.com/containifyci/builder/pkg/buildinfo"
	"github.com/containifyci/builder/pkg/config"
	"github.com/containifyci/builder/pkg/driver"
	"github.com/containifyci/builder/pkg/errs"
	"github.com/containifyci/builder/pkg/logger"
	"github.com/containifyci/builder/pkg/platform"
	"github.com/containifyci/builder/pkg/vsgen"

	"github.com/spf13/cobra"
)

type rootCmdArgs struct {
	version           VersionInfo
	Config            string
	Nuke              string
	Verbose           bool
	VisualStudioBuild bool
}

type VersionInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
	Repo    string `json:"repo"`
}

var RootArgs = &rootCmdArgs{}

// rootCmd is the orchestrator's single entry point, per spec.md §6: a
// positional input file plus the handful of flags the CLI-parser
// collaborator exposes to the engine.
var rootCmd = &cobra.Command{
	Use:           "builder <input.c|input.cpp|input.build_info>",
	Short:         "Compile a build description and drive the native toolchain it describes",
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runBuild,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main(). It only needs to happen
// once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.Flags().BoolVarP(&RootArgs.Verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.Flags().StringVar(&RootArgs.Config, "config", "", "Select a config by name")
	rootCmd.Flags().StringVar(&RootArgs.Nuke, "nuke", "", "Recursively delete a folder's contents and exit")
	rootCmd.Flags().BoolVar(&RootArgs.VisualStudioBuild, "visual-studio-build", false, "Advisory flag set when Visual Studio invokes the orchestrator")
}

func SetVersionInfo(version, commit, date, repo string) string {
	rootCmd.Version = fmt.Sprintf("%s (Built on %s from Git SHA %s of %s)", version, date, commit, repo)
	RootArgs.version = VersionInfo{Version: version, Commit: commit, Date: date, Repo: repo}
	return rootCmd.Version
}

func RootCmd() *cobra.Command {
	return rootCmd
}

func newContext(workDir string) *platform.Context {
	logOpts := slog.HandlerOptions{Level: slog.LevelInfo}
	progress := logger.ProgressPretty
	if RootArgs.VisualStudioBuild {
		progress = logger.ProgressCI
	}
	if RootArgs.Verbose {
		logOpts.Level = slog.LevelDebug
		logOpts.AddSource = true
	}
	log := slog.New(logger.New(progress, logOpts))
	ctx := platform.New(workDir, RootArgs.Verbose, log)
	ctx.VisualStudioBuild = RootArgs.VisualStudioBuild
	return ctx
}

func runBuild(cmd *cobra.Command, args []string) error {
	if RootArgs.Nuke != "" {
		root := "."
		if len(args) == 1 {
			root = filepath.Dir(args[0])
		}
		if err := validateNukeTarget(root, RootArgs.Nuke); err != nil {
			return err
		}
		ctx := newContext(root)
		if err := ctx.FS.RemoveContents(RootArgs.Nuke); err != nil {
			return errs.Wrap(errs.Io, "nuke "+RootArgs.Nuke, err)
		}
		return nil
	}

	if len(args) != 1 {
		return errs.New(errs.Usage, "exactly one input file is required")
	}
	inputPath := args[0]

	workDir := filepath.Dir(inputPath)
	ctx := newContext(workDir)

	be, err := backend.New(backend.DefaultName())
	if err != nil {
		return errs.Wrap(errs.Internal, "select default compiler backend", err)
	}

	result, err := bootstrap.Run(ctx, be, config.O0, inputPath)
	if err != nil {
		return err
	}

	if result.Options != nil && result.Options.CompilerPathOverride != "" {
		if ov, ok := be.(backend.Overridable); ok {
			if err := ov.Override(ctx, result.Options.CompilerPathOverride, result.Options.CompilerVersionOverride); err != nil {
				return err
			}
		}
	}

	if result.Options != nil && result.Options.GenerateSolution {
		if result.Options.Solution == nil {
			return errs.New(errs.Validation, "generate_solution is set but no Visual Studio solution was provided")
		}
		orchestratorPath, _ := os.Executable()
		return vsgen.Generate(ctx, result.Options.Solution, orchestratorPath, inputPath)
	}

	return runConfigs(ctx, be, workDir, result.Options, result.Handle, inputPath)
}

// runConfigs implements the config-selection half of spec.md §4.5: the
// closure of the named config (--config=<name>), or the sole config if
// only one exists, else ValidationError.
func runConfigs(ctx *platform.Context, be backend.Backend, workDir string, opts *abi.Loaded, handle platform.ModuleHandle, inputPath string) error {
	if opts == nil || len(opts.Configs) == 0 {
		return errs.New(errs.Validation, "description exported no configs")
	}

	var selected *config.BuildConfig
	if RootArgs.Config != "" {
		for _, c := range opts.Configs {
			if c.Name == RootArgs.Config {
				selected = c
				break
			}
		}
		if selected == nil {
			return errs.New(errs.Validation, "no config named "+RootArgs.Config)
		}
	} else if len(opts.Configs) == 1 {
		selected = opts.Configs[0]
	} else {
		return errs.New(errs.Validation, "multiple configs exported; --config=<name> is required")
	}

	if err := config.ValidateNoSelfDependency(selected); err != nil {
		return err
	}

	ordered := config.AddWithDependencies(nil, selected)
	if err := config.ValidateUnique(ordered); err != nil {
		return err
	}

	inputBase := baseNameNoExt(inputPath)
	for _, c := range ordered {
		c.BinaryName = config.EffectiveBinaryName(c, inputBase)
	}

	cacheDir := filepath.Join(workDir, bootstrap.CacheDirName)
	if err := ctx.FS.MkdirAll(cacheDir); err != nil {
		return errs.Wrap(errs.Io, "create cache dir", err)
	}
	cachePath := filepath.Join(cacheDir, inputBase+"_"+selected.Name+".build_info")

	var prior *buildinfo.BuildInfo
	if data, err := ctx.FS.ReadFile(cachePath); err == nil {
		if info, err := buildinfo.Load(bytes.NewReader(data)); err == nil {
			prior = info
		}
	}

	_, newInfo, err := driver.Run(ctx, workDir, be, ordered, prior, driver.Options{
		ForceRebuild:          opts.ForceRebuild,
		GenerateCompilationDB: opts.GenerateCompilationDB,
	})
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := buildinfo.Save(&buf, newInfo); err != nil {
		return err
	}
	if err := ctx.FS.WriteFile(cachePath, buf.Bytes(), 0o644); err != nil {
		return errs.Wrap(errs.Io, "write build-info", err)
	}

	bootstrap.RunPostBuild(handle)
	return nil
}

// validateNukeTarget rejects a --nuke target outside root (the input
// file's directory, or cwd when nuke is invoked standalone), per
// SPEC_FULL.md's supplemented nuke safety check: a typo'd --nuke must not
// be able to delete unrelated paths on the machine.
func validateNukeTarget(root, target string) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return errs.Wrap(errs.Validation, "resolve nuke root", err)
	}
	absTarget, err := filepath.Abs(target)
	if err != nil {
		return errs.Wrap(errs.Validation, "resolve nuke target", err)
	}
	rel, err := filepath.Rel(absRoot, absTarget)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return errs.New(errs.Validation, "--nuke target "+target+" is outside the project directory tree")
	}
	return nil
}

func baseNameNoExt(path string) string {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	return base[:len(base)-len(ext)]
}
