// Package abi decodes the shared C struct the description module
// populates via set_builder_options, per spec.md §4.6/§6 and
// include/builder.h. It owns the translation from the flat, pointer-based
// C layout (builder_options/builder_config) into the engine's own
// pkg/config.BuildConfig graph.
package abi

import (
	"unsafe"

	"github.com/containifyci/builder/pkg/config"
	"github.com/containifyci/builder/pkg/vsgen"
)

// Loaded is what Bootstrap gets back after calling set_builder_options
// and decoding the resulting builder_options struct.
type Loaded struct {
	CompilerPathOverride    string
	CompilerVersionOverride string
	Configs                 []*config.BuildConfig
	Solution                *vsgen.Solution
	ForceRebuild            bool
	GenerateSolution        bool
	GenerateCompilationDB   bool
}

// cBuilderOptions/cBuilderConfig mirror include/builder.h's
// builder_options/builder_config byte-for-byte: a pointer + u64 count for
// every array, enums as C int (4 bytes), flags as C int. Field order and
// widths must track the header exactly since both sides are compiled
// independently.
type cStringArray struct {
	items unsafe.Pointer
	count uint64
}

type cBuilderConfig struct {
	name                        *byte
	dependencies                unsafe.Pointer
	dependencyCount             uint64
	sources                     cStringArray
	defines                     cStringArray
	additionalIncludes          cStringArray
	additionalLibPaths          cStringArray
	additionalLibs              cStringArray
	warningLevels               cStringArray
	ignoreWarnings              cStringArray
	additionalCompilerArguments cStringArray
	binaryName                  *byte
	binaryFolder                *byte
	kind                        int32
	optimisation                int32
	language                    int32
	stripSymbols                int32
	dropFileExtension           int32
	warningsAsErrors            int32
}

type cVSConfig struct {
	name                *byte
	options             *cBuilderConfig
	debuggerArguments   cStringArray
}

type cVSProject struct {
	configs        unsafe.Pointer
	configCount    uint64
	codeFolders    cStringArray
	fileExtensions cStringArray
	name           *byte
}

type cVSSolution struct {
	projects     unsafe.Pointer
	projectCount uint64
	platforms    cStringArray
	name         *byte
	path         *byte
}

type cBuilderOptions struct {
	compilerPathOverride    *byte
	compilerVersionOverride *byte
	configs                 unsafe.Pointer
	configCount             uint64
	solution                cVSSolution
	forceRebuild            int32
	generateSolution        int32
	generateCompilationDB   int32
}

// decode walks the raw builder_options memory the description module
// populated and produces the engine's own config graph, resolving each
// builder_config's dependency pointer array into *config.BuildConfig
// pointers (spec.md §9: "replace pointer copies... with indices into an
// owned config pool, or name-keyed lookups").
func decode(raw *cBuilderOptions) *Loaded {
	byPtr := map[unsafe.Pointer]*config.BuildConfig{}
	rawConfigs := make([]*cBuilderConfig, 0, raw.configCount)

	configPtrs := unsafe.Slice((**cBuilderConfig)(raw.configs), int(raw.configCount))
	for _, rc := range configPtrs {
		rawConfigs = append(rawConfigs, rc)
		cfg := &config.BuildConfig{
			Name:               goString(rc.name),
			Sources:            goStringArray(rc.sources),
			Defines:            goStringArray(rc.defines),
			AdditionalIncludes: goStringArray(rc.additionalIncludes),
			AdditionalLibPaths: goStringArray(rc.additionalLibPaths),
			AdditionalLibs:     goStringArray(rc.additionalLibs),
			IgnoreWarnings:     goStringArray(rc.ignoreWarnings),
			WarningGroups:      goStringArray(rc.warningLevels),
			ExtraArgs:          goStringArray(rc.additionalCompilerArguments),
			BinaryName:         goString(rc.binaryName),
			BinaryFolder:       goString(rc.binaryFolder),
			Kind:               config.BinaryKind(rc.kind),
			Optimisation:       config.OptimisationLevel(rc.optimisation),
			Language:           config.LanguageVersion(rc.language),
			StripSymbols:       rc.stripSymbols != 0,
			DropFileExtension:  rc.dropFileExtension != 0,
			WarningsAsErrors:   rc.warningsAsErrors != 0,
		}
		byPtr[unsafe.Pointer(rc)] = cfg
	}

	for i, rc := range rawConfigs {
		if rc.dependencyCount == 0 {
			continue
		}
		depPtrs := unsafe.Slice((**cBuilderConfig)(rc.dependencies), int(rc.dependencyCount))
		cfg := byPtr[unsafe.Pointer(rc)]
		for _, dp := range depPtrs {
			if dep, ok := byPtr[unsafe.Pointer(dp)]; ok {
				cfg.Dependencies = append(cfg.Dependencies, dep)
			}
		}
		_ = i
	}

	configs := make([]*config.BuildConfig, 0, len(rawConfigs))
	for _, rc := range rawConfigs {
		configs = append(configs, byPtr[unsafe.Pointer(rc)])
	}

	return &Loaded{
		CompilerPathOverride:    goString(raw.compilerPathOverride),
		CompilerVersionOverride: goString(raw.compilerVersionOverride),
		Configs:                 configs,
		Solution:                decodeSolution(&raw.solution),
		ForceRebuild:            raw.forceRebuild != 0,
		GenerateSolution:        raw.generateSolution != 0,
		GenerateCompilationDB:   raw.generateCompilationDB != 0,
	}
}

// decodeSolution walks the raw builder_vs_solution memory into the
// generator's own vsgen.Solution, independently of decode()'s config-pool
// (a VS config's BuildConfig is never a dependency target, so no pointer
// resolution pass is needed here).
func decodeSolution(raw *cVSSolution) *vsgen.Solution {
	if raw.projectCount == 0 && raw.name == nil {
		return nil
	}

	sol := &vsgen.Solution{
		Name:      goString(raw.name),
		Path:      goString(raw.path),
		Platforms: goStringArray(raw.platforms),
	}

	projPtrs := unsafe.Slice((**cVSProject)(raw.projects), int(raw.projectCount))
	for _, rp := range projPtrs {
		proj := &vsgen.Project{
			Name:           goString(rp.name),
			CodeFolders:    goStringArray(rp.codeFolders),
			FileExtensions: goStringArray(rp.fileExtensions),
		}

		cfgPtrs := unsafe.Slice((**cVSConfig)(rp.configs), int(rp.configCount))
		for _, rc := range cfgPtrs {
			proj.Configs = append(proj.Configs, vsgen.ProjectConfig{
				Name:         goString(rc.name),
				Underlying:   decodeOne(rc.options),
				DebuggerArgs: goStringArray(rc.debuggerArguments),
			})
		}
		sol.Projects = append(sol.Projects, proj)
	}
	return sol
}

// decodeOne decodes a single builder_config with no dependency-pointer
// resolution, the shape VisualStudioConfig::options uses (it is never
// itself a dependency target).
func decodeOne(rc *cBuilderConfig) *config.BuildConfig {
	if rc == nil {
		return &config.BuildConfig{}
	}
	return &config.BuildConfig{
		Name:               goString(rc.name),
		Sources:            goStringArray(rc.sources),
		Defines:            goStringArray(rc.defines),
		AdditionalIncludes: goStringArray(rc.additionalIncludes),
		AdditionalLibPaths: goStringArray(rc.additionalLibPaths),
		AdditionalLibs:     goStringArray(rc.additionalLibs),
		IgnoreWarnings:     goStringArray(rc.ignoreWarnings),
		WarningGroups:      goStringArray(rc.warningLevels),
		ExtraArgs:          goStringArray(rc.additionalCompilerArguments),
		BinaryName:         goString(rc.binaryName),
		BinaryFolder:       goString(rc.binaryFolder),
		Kind:               config.BinaryKind(rc.kind),
		Optimisation:       config.OptimisationLevel(rc.optimisation),
		Language:           config.LanguageVersion(rc.language),
		StripSymbols:       rc.stripSymbols != 0,
		DropFileExtension:  rc.dropFileExtension != 0,
		WarningsAsErrors:   rc.warningsAsErrors != 0,
	}
}

func goString(p *byte) string {
	if p == nil {
		return ""
	}
	n := 0
	for {
		b := *(*byte)(unsafe.Pointer(uintptr(unsafe.Pointer(p)) + uintptr(n)))
		if b == 0 {
			break
		}
		n++
	}
	return unsafe.String(p, n)
}

func goStringArray(arr cStringArray) []string {
	if arr.count == 0 {
		return nil
	}
	ptrs := unsafe.Slice((**byte)(arr.items), int(arr.count))
	out := make([]string, len(ptrs))
	for i, p := range ptrs {
		out[i] = goString(p)
	}
	return out
}
