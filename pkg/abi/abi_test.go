package abi

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cstr returns a pointer to a NUL-terminated copy of s. The backing slice
// is kept alive for the duration of the test by the caller holding a
// reference through the surrounding stack frame, matching how a real
// dlopen'd module's static string data stays resident for the process
// lifetime.
func cstr(s string) *byte {
	b := append([]byte(s), 0)
	return &b[0]
}

func cStrArray(items ...string) cStringArray {
	if len(items) == 0 {
		return cStringArray{}
	}
	ptrs := make([]*byte, len(items))
	for i, s := range items {
		ptrs[i] = cstr(s)
	}
	return cStringArray{items: unsafe.Pointer(&ptrs[0]), count: uint64(len(ptrs))}
}

func TestDecode_SingleConfigNoDependencies(t *testing.T) {
	cfg := &cBuilderConfig{
		name:       cstr("app"),
		sources:    cStrArray("main.c"),
		binaryName: cstr("app"),
		kind:       0,
	}
	configPtrs := []*cBuilderConfig{cfg}

	raw := &cBuilderOptions{
		configs:     unsafe.Pointer(&configPtrs[0]),
		configCount: 1,
	}

	loaded := decode(raw)
	require.Len(t, loaded.Configs, 1)
	assert.Equal(t, "app", loaded.Configs[0].Name)
	assert.Equal(t, []string{"main.c"}, loaded.Configs[0].Sources)
	assert.Nil(t, loaded.Solution)
}

func TestDecode_ResolvesDependencyPointers(t *testing.T) {
	dep := &cBuilderConfig{name: cstr("lib")}
	top := &cBuilderConfig{name: cstr("app")}

	depPtrs := []*cBuilderConfig{dep}
	top.dependencies = unsafe.Pointer(&depPtrs[0])
	top.dependencyCount = 1

	configPtrs := []*cBuilderConfig{dep, top}
	raw := &cBuilderOptions{
		configs:     unsafe.Pointer(&configPtrs[0]),
		configCount: 2,
	}

	loaded := decode(raw)
	require.Len(t, loaded.Configs, 2)

	var found bool
	for _, c := range loaded.Configs {
		if c.Name == "app" {
			found = true
			require.Len(t, c.Dependencies, 1)
			assert.Equal(t, "lib", c.Dependencies[0].Name)
		}
	}
	assert.True(t, found)
}

func TestDecode_PopulatesWarningGroupsAndExtraArgs(t *testing.T) {
	cfg := &cBuilderConfig{
		name:                        cstr("app"),
		binaryName:                  cstr("app"),
		warningLevels:               cStrArray("all", "extra"),
		additionalCompilerArguments: cStrArray("-fsanitize=address"),
	}
	configPtrs := []*cBuilderConfig{cfg}
	raw := &cBuilderOptions{configs: unsafe.Pointer(&configPtrs[0]), configCount: 1}

	loaded := decode(raw)
	require.Len(t, loaded.Configs, 1)
	assert.Equal(t, []string{"all", "extra"}, loaded.Configs[0].WarningGroups)
	assert.Equal(t, []string{"-fsanitize=address"}, loaded.Configs[0].ExtraArgs)
}

func TestDecode_EmptyOptionsProducesNoConfigsAndNoSolution(t *testing.T) {
	raw := &cBuilderOptions{}
	loaded := decode(raw)
	assert.Empty(t, loaded.Configs)
	assert.Nil(t, loaded.Solution)
	assert.False(t, loaded.ForceRebuild)
}

func TestDecodeSolution_WalksProjectsAndConfigs(t *testing.T) {
	opts := &cBuilderConfig{name: cstr("app_debug")}
	vsCfg := &cVSConfig{
		name:              cstr("Debug"),
		options:           opts,
		debuggerArguments: cStrArray("--flag"),
	}
	vsCfgPtrs := []*cVSConfig{vsCfg}

	proj := &cVSProject{
		name:           cstr("app"),
		codeFolders:    cStrArray("src"),
		fileExtensions: cStrArray(".c", ".h"),
		configs:        unsafe.Pointer(&vsCfgPtrs[0]),
		configCount:    1,
	}
	projPtrs := []*cVSProject{proj}

	raw := &cVSSolution{
		name:         cstr("Demo"),
		path:         cstr("Demo.sln"),
		platforms:    cStrArray("x64"),
		projects:     unsafe.Pointer(&projPtrs[0]),
		projectCount: 1,
	}

	sol := decodeSolution(raw)
	require.NotNil(t, sol)
	assert.Equal(t, "Demo", sol.Name)
	require.Len(t, sol.Projects, 1)
	assert.Equal(t, "app", sol.Projects[0].Name)
	require.Len(t, sol.Projects[0].Configs, 1)
	assert.Equal(t, "Debug", sol.Projects[0].Configs[0].Name)
	assert.Equal(t, "app_debug", sol.Projects[0].Configs[0].Underlying.Name)
	assert.Equal(t, []string{"--flag"}, sol.Projects[0].Configs[0].DebuggerArgs)
}

func TestDecodeSolution_NilWhenEmpty(t *testing.T) {
	assert.Nil(t, decodeSolution(&cVSSolution{}))
}

func TestDecodeOne_NilOptionsReturnsEmptyConfig(t *testing.T) {
	cfg := decodeOne(nil)
	require.NotNil(t, cfg)
	assert.Equal(t, "", cfg.Name)
}
