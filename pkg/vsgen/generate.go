package vsgen

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/containifyci/builder/pkg/buildinfo"
	"github.com/containifyci/builder/pkg/config"
	"github.com/containifyci/builder/pkg/errs"
	"github.com/containifyci/builder/pkg/platform"
)

const solutionFolderKind = "2150E333-8FDC-42A3-9474-1A3956D46DE8"
const vcxProjectKind = "8BC9CEB8-8B4A-11D0-8D11-00A0C91BC942"

const xmlHeader = `<?xml version="1.0" encoding="utf-8"?>` + "\n"

// Generate emits the solution and, per project, its .vcxproj/.vcxproj.user/
// .vcxproj.filters, plus a build-info file, per spec.md §4.7. orchestratorPath
// and inputFile are embedded verbatim into each NMake command line so the
// IDE can shell back to the orchestrator.
func Generate(ctx *platform.Context, sol *Solution, orchestratorPath, inputFile string) error {
	if err := Validate(ctx, sol); err != nil {
		return err
	}

	outDir := filepath.Dir(sol.Path)
	if err := ctx.FS.MkdirAll(outDir); err != nil {
		return errs.Wrap(errs.Io, "create solution directory", err)
	}
	if err := cleanStaleFiles(ctx, outDir); err != nil {
		return err
	}

	projectGUIDs := map[string]string{}
	folderGUIDs := map[string]string{}
	for _, proj := range sol.Projects {
		projectGUIDs[proj.Name] = platform.NewGUID()
		parents := solutionFolders(proj.Name)
		for i := range parents {
			folder := strings.Join(parents[:i+1], "/")
			if _, ok := folderGUIDs[folder]; !ok {
				folderGUIDs[folder] = platform.NewGUID()
			}
		}
	}

	var allConfigs []*config.BuildConfig
	for _, proj := range sol.Projects {
		files, err := discoverFiles(ctx, outDir, proj)
		if err != nil {
			return err
		}
		if err := writeProject(ctx, outDir, sol.Platforms, proj, projectGUIDs[proj.Name], orchestratorPath, inputFile, files); err != nil {
			return err
		}
		if err := writeUserFile(ctx, outDir, sol.Platforms, proj); err != nil {
			return err
		}
		if err := writeFiltersFile(ctx, outDir, proj, files); err != nil {
			return err
		}
		for _, pc := range proj.Configs {
			allConfigs = append(allConfigs, config.AddBuiltinDefaults(pc.Underlying, filepath.Dir(orchestratorPath), nil))
		}
	}

	if err := writeSolutionFile(ctx, sol, projectGUIDs, folderGUIDs); err != nil {
		return err
	}

	return writeSolutionBuildInfo(ctx, sol, inputFile, allConfigs)
}

// cleanStaleFiles deletes any previously generated .sln, .vcxproj,
// .vcxproj.user, .vcxproj.filters and the .vs folder, per spec.md §4.7
// ("it does not touch anything else").
func cleanStaleFiles(ctx *platform.Context, outDir string) error {
	staleSuffixes := []string{".sln", ".vcxproj", ".vcxproj.user", ".vcxproj.filters"}
	var stale []string
	err := ctx.FS.Walk(outDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			return nil
		}
		for _, suffix := range staleSuffixes {
			if strings.HasSuffix(path, suffix) {
				stale = append(stale, path)
				break
			}
		}
		return nil
	})
	if err != nil {
		return errs.Wrap(errs.Io, "walk output directory for stale files", err)
	}
	for _, path := range stale {
		if err := ctx.FS.Remove(path); err != nil {
			return errs.Wrap(errs.Io, "remove stale file "+path, err)
		}
	}
	vsDir := filepath.Join(outDir, ".vs")
	if err := ctx.FS.RemoveContents(vsDir); err != nil {
		return err
	}
	return ctx.FS.Remove(vsDir)
}

func solutionFolders(projectName string) []string {
	parts := strings.Split(projectName, "/")
	if len(parts) <= 1 {
		return nil
	}
	return parts[:len(parts)-1]
}

func leafName(projectName string) string {
	parts := strings.Split(projectName, "/")
	return parts[len(parts)-1]
}

// discoveredFiles buckets a project's on-disk sources by their role in the
// generated .vcxproj, per spec.md §4.7 (compiled sources vs. headers vs.
// everything else the IDE should still show).
type discoveredFiles struct {
	ClCompile []string
	ClInclude []string
	None      []string
}

var compileExts = map[string]bool{".c": true, ".cpp": true, ".cc": true, ".cxx": true}
var headerExts = map[string]bool{".h": true, ".hpp": true, ".hh": true, ".hxx": true}

// discoverFiles walks proj.CodeFolders (relative to outDir) and classifies
// every file matching proj.FileExtensions into compiled sources, headers,
// or other tracked files.
func discoverFiles(ctx *platform.Context, outDir string, proj *Project) (*discoveredFiles, error) {
	wanted := map[string]bool{}
	for _, ext := range proj.FileExtensions {
		wanted[ext] = true
	}

	files := &discoveredFiles{}
	for _, folder := range proj.CodeFolders {
		root := filepath.Join(outDir, folder)
		err := ctx.FS.Walk(root, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				if os.IsNotExist(err) {
					return nil
				}
				return err
			}
			if info.IsDir() {
				return nil
			}
			ext := filepath.Ext(path)
			if len(wanted) > 0 && !wanted[ext] {
				return nil
			}
			rel, relErr := filepath.Rel(outDir, path)
			if relErr != nil {
				rel = path
			}
			switch {
			case compileExts[ext]:
				files.ClCompile = append(files.ClCompile, rel)
			case headerExts[ext]:
				files.ClInclude = append(files.ClInclude, rel)
			default:
				files.None = append(files.None, rel)
			}
			return nil
		})
		if err != nil {
			return nil, errs.Wrap(errs.Io, "walk code folder "+folder, err)
		}
	}
	sort.Strings(files.ClCompile)
	sort.Strings(files.ClInclude)
	sort.Strings(files.None)
	return files, nil
}

func writeProject(ctx *platform.Context, outDir string, platforms []string, proj *Project, guid, orchestratorPath, inputFile string, files *discoveredFiles) error {
	proj1 := &vcxProject{
		DefaultTargets: "Build",
		Xmlns:          "http://schemas.microsoft.com/developer/msbuild/2003",
	}

	var configsGroup vcxItemGroup
	configsGroup.Label = "ProjectConfigurations"
	for _, pc := range proj.Configs {
		for _, plat := range platforms {
			configsGroup.ProjectConfigs = append(configsGroup.ProjectConfigs, vcxProjectConfig{
				Include:       pc.Name + "|" + plat,
				Configuration: pc.Name,
				Platform:      plat,
			})
		}
	}
	proj1.ItemGroups = append(proj1.ItemGroups, configsGroup)

	proj1.PropertyGroups = append(proj1.PropertyGroups, vcxPropertyGrp{
		Label:            "Globals",
		VCProjectVersion: "17.0",
		ProjectGuid:      "{" + guid + "}",
		RootNamespace:    leafName(proj.Name),
	})

	for _, pc := range proj.Configs {
		for _, plat := range platforms {
			cond := fmt.Sprintf("'$(Configuration)|$(Platform)'=='%s|%s'", pc.Name, plat)
			proj1.PropertyGroups = append(proj1.PropertyGroups, vcxPropertyGrp{
				Condition:         cond,
				Label:             "Configuration",
				ConfigurationType: "Makefile",
				PlatformToolset:   "v143",
			})
		}
	}

	proj1.Imports = append(proj1.Imports, vcxImport{Project: "$(VCTargetsPath)\\Microsoft.Cpp.Default.props"})

	for _, pc := range proj.Configs {
		for _, plat := range platforms {
			cond := fmt.Sprintf("'$(Configuration)|$(Platform)'=='%s|%s'", pc.Name, plat)
			binary := binaryOutputPath(pc)
			proj1.PropertyGroups = append(proj1.PropertyGroups, vcxPropertyGrp{
				Condition:             cond,
				NMakeBuildCommandLine: fmt.Sprintf("%s %s --config=%s", orchestratorPath, inputFile, pc.Underlying.Name),
				NMakeReBuildCommandLine: fmt.Sprintf("%s %s --nuke %s && %s %s --config=%s",
					orchestratorPath, inputFile, pc.Underlying.BinaryFolder, orchestratorPath, inputFile, pc.Underlying.Name),
				NMakeCleanCommandLine:  fmt.Sprintf("%s %s --nuke %s", orchestratorPath, inputFile, pc.Underlying.BinaryFolder),
				NMakeOutput:            binary,
				NMakePreprocessorDefs:  strings.Join(pc.Underlying.Defines, ";"),
				NMakeIncludeSearchPath: strings.Join(pc.Underlying.AdditionalIncludes, ";"),
			})
		}
	}

	proj1.Imports = append(proj1.Imports, vcxImport{Project: "$(VCTargetsPath)\\Microsoft.Cpp.targets"})

	var sourceGroup vcxItemGroup
	for _, f := range files.ClCompile {
		sourceGroup.ClCompile = append(sourceGroup.ClCompile, vcxFileRef{Include: f})
	}
	for _, f := range files.ClInclude {
		sourceGroup.ClInclude = append(sourceGroup.ClInclude, vcxFileRef{Include: f})
	}
	for _, f := range files.None {
		sourceGroup.None = append(sourceGroup.None, vcxFileRef{Include: f})
	}
	if len(sourceGroup.ClCompile)+len(sourceGroup.ClInclude)+len(sourceGroup.None) > 0 {
		proj1.ItemGroups = append(proj1.ItemGroups, sourceGroup)
	}

	return writeXML(ctx, filepath.Join(outDir, leafName(proj.Name)+".vcxproj"), proj1)
}

func writeUserFile(ctx *platform.Context, outDir string, platforms []string, proj *Project) error {
	user := &vcxUserProject{Xmlns: "http://schemas.microsoft.com/developer/msbuild/2003"}
	for _, pc := range proj.Configs {
		for _, plat := range platforms {
			cond := fmt.Sprintf("'$(Configuration)|$(Platform)'=='%s|%s'", pc.Name, plat)
			user.PropertyGroups = append(user.PropertyGroups, vcxUserPropGrp{
				Condition:                     cond,
				LocalDebuggerCommand:          binaryOutputPath(pc),
				LocalDebuggerWorkingDirectory: "$(ProjectDir)",
				LocalDebuggerCommandArguments: strings.Join(pc.DebuggerArgs, " "),
				DebuggerFlavor:                "WindowsLocalDebugger",
			})
		}
	}
	return writeXML(ctx, filepath.Join(outDir, leafName(proj.Name)+".vcxproj.user"), user)
}

func writeFiltersFile(ctx *platform.Context, outDir string, proj *Project, files *discoveredFiles) error {
	filtersProj := &vcxFiltersProject{Xmlns: "http://schemas.microsoft.com/developer/msbuild/2003"}

	folderSet := map[string]bool{}
	addFolders := func(rel string) {
		dir := filepath.Dir(rel)
		for dir != "." && dir != "/" && dir != "" {
			folderSet[dir] = true
			dir = filepath.Dir(dir)
		}
	}
	for _, f := range files.ClCompile {
		addFolders(f)
	}
	for _, f := range files.ClInclude {
		addFolders(f)
	}
	for _, f := range files.None {
		addFolders(f)
	}

	var folders []string
	for f := range folderSet {
		folders = append(folders, f)
	}
	sort.Strings(folders)

	var folderGroup vcxFiltersItemGrp
	for _, f := range folders {
		folderGroup.Filters = append(folderGroup.Filters, vcxFilter{
			Include:          filepath.ToSlash(f),
			UniqueIdentifier: "{" + platform.NewGUID() + "}",
		})
	}
	if len(folderGroup.Filters) > 0 {
		filtersProj.ItemGroups = append(filtersProj.ItemGroups, folderGroup)
	}

	var filesGroup vcxFiltersItemGrp
	for _, f := range files.ClCompile {
		filesGroup.ClCompile = append(filesGroup.ClCompile, vcxFilteredRef{Include: f, Filter: filepath.ToSlash(filepath.Dir(f))})
	}
	for _, f := range files.ClInclude {
		filesGroup.ClInclude = append(filesGroup.ClInclude, vcxFilteredRef{Include: f, Filter: filepath.ToSlash(filepath.Dir(f))})
	}
	if len(filesGroup.ClCompile)+len(filesGroup.ClInclude) > 0 {
		filtersProj.ItemGroups = append(filtersProj.ItemGroups, filesGroup)
	}

	return writeXML(ctx, filepath.Join(outDir, leafName(proj.Name)+".vcxproj.filters"), filtersProj)
}

func writeSolutionFile(ctx *platform.Context, sol *Solution, projectGUIDs, folderGUIDs map[string]string) error {
	var b strings.Builder
	b.WriteString("Microsoft Visual Studio Solution File, Format Version 12.00\n")
	b.WriteString("# Visual Studio Version 17\n")

	var folderNames []string
	for name := range folderGUIDs {
		folderNames = append(folderNames, name)
	}
	sort.Strings(folderNames)
	for _, name := range folderNames {
		fmt.Fprintf(&b, "Project(\"{%s}\") = \"%s\", \"%s\", \"{%s}\"\nEndProject\n",
			solutionFolderKind, filepath.Base(name), filepath.Base(name), folderGUIDs[name])
	}

	for _, proj := range sol.Projects {
		leaf := leafName(proj.Name)
		fmt.Fprintf(&b, "Project(\"{%s}\") = \"%s\", \"%s.vcxproj\", \"{%s}\"\nEndProject\n",
			vcxProjectKind, leaf, leaf, projectGUIDs[proj.Name])
	}

	b.WriteString("Global\n")
	b.WriteString("\tGlobalSection(SolutionConfigurationPlatforms) = preSolution\n")
	seen := map[string]bool{}
	for _, proj := range sol.Projects {
		for _, pc := range proj.Configs {
			for _, plat := range sol.Platforms {
				key := pc.Name + "|" + plat
				if seen[key] {
					continue
				}
				seen[key] = true
				fmt.Fprintf(&b, "\t\t%s = %s\n", key, key)
			}
		}
	}
	b.WriteString("\tEndGlobalSection\n")

	b.WriteString("\tGlobalSection(ProjectConfigurationPlatforms) = postSolution\n")
	for _, proj := range sol.Projects {
		guid := projectGUIDs[proj.Name]
		for _, pc := range proj.Configs {
			for _, plat := range sol.Platforms {
				key := pc.Name + "|" + plat
				fmt.Fprintf(&b, "\t\t{%s}.%s.ActiveCfg = %s\n", guid, key, key)
				fmt.Fprintf(&b, "\t\t{%s}.%s.Build.0 = %s\n", guid, key, key)
			}
		}
	}
	b.WriteString("\tEndGlobalSection\n")

	if len(folderGUIDs) > 0 {
		b.WriteString("\tGlobalSection(NestedProjects) = preSolution\n")
		for _, proj := range sol.Projects {
			parents := solutionFolders(proj.Name)
			if len(parents) == 0 {
				continue
			}
			immediate := strings.Join(parents, "/")
			fmt.Fprintf(&b, "\t\t{%s} = {%s}\n", projectGUIDs[proj.Name], folderGUIDs[immediate])
			for i := 1; i < len(parents); i++ {
				child := strings.Join(parents[:i+1], "/")
				parent := strings.Join(parents[:i], "/")
				fmt.Fprintf(&b, "\t\t{%s} = {%s}\n", folderGUIDs[child], folderGUIDs[parent])
			}
		}
		b.WriteString("\tEndGlobalSection\n")
	}
	b.WriteString("EndGlobal\n")

	if err := ctx.FS.WriteFile(sol.Path, []byte(b.String()), 0o644); err != nil {
		return errs.Wrap(errs.Io, "write solution file", err)
	}
	return nil
}

// writeSolutionBuildInfo persists the merged set of BuildConfigs (with
// defaults already folded in) alongside the solution, in the same
// build-info format the regular driver path produces, so an orchestrator
// invocation given this .build_info file as its input can load it without
// recompiling the description, per spec.md §4.7. The generated NMake
// command lines pass the original input file, not this one.
func writeSolutionBuildInfo(ctx *platform.Context, sol *Solution, inputFile string, configs []*config.BuildConfig) error {
	info := &buildinfo.BuildInfo{BuildSourceFile: inputFile}
	for _, c := range configs {
		var depNames []string
		for _, dep := range c.Dependencies {
			depNames = append(depNames, dep.Name)
		}
		info.Configs = append(info.Configs, &buildinfo.ConfigRecord{
			Config:         c,
			DependsOnNames: depNames,
			NameHash:       config.NameHash(c.Name),
		})
	}

	path := strings.TrimSuffix(sol.Path, filepath.Ext(sol.Path)) + ".build_info"
	var buf strings.Builder
	if err := buildinfo.Save(&buf, info); err != nil {
		return err
	}
	if err := ctx.FS.WriteFile(path, []byte(buf.String()), 0o644); err != nil {
		return errs.Wrap(errs.Io, "write solution build-info", err)
	}
	return nil
}

func writeXML(ctx *platform.Context, path string, v interface{}) error {
	data, err := xml.MarshalIndent(v, "", "  ")
	if err != nil {
		return errs.Wrap(errs.Internal, "marshal "+path, err)
	}
	out := append([]byte(xmlHeader), data...)
	if err := ctx.FS.WriteFile(path, out, 0o644); err != nil {
		return errs.Wrap(errs.Io, "write "+path, err)
	}
	return nil
}

func binaryOutputPath(pc ProjectConfig) string {
	name := config.EffectiveBinaryName(pc.Underlying, pc.Underlying.Name)
	return filepath.Join(pc.Underlying.BinaryFolder, name)
}
