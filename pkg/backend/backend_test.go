package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/containifyci/builder/pkg/config"
	"github.com/containifyci/builder/pkg/platform"
)

func TestNew_SelectsBackendByName(t *testing.T) {
	clang, err := New(Clang)
	require.NoError(t, err)
	assert.Equal(t, "clang", clang.CompilerPath())

	gcc, err := New(GCC)
	require.NoError(t, err)
	assert.Equal(t, "gcc", gcc.CompilerPath())

	_, err = New(Name("tcc"))
	assert.Error(t, err)
}

func TestClangLike_CommandArchetypeFor_RendersAllFlagKinds(t *testing.T) {
	b, err := New(Clang)
	require.NoError(t, err)

	cfg := &config.BuildConfig{
		Language:         config.C17,
		Optimisation:     config.O2,
		WarningsAsErrors: true,
		WarningGroups:    []string{"all"},
		IgnoreWarnings:   []string{"unused-variable"},
		Defines:          []string{"FOO=1"},
		AdditionalIncludes: []string{"inc"},
		AdditionalLibPaths: []string{"lib"},
		AdditionalLibs:     []string{"m"},
		Kind:               config.DynamicLibrary,
	}

	arch := b.CommandArchetypeFor(cfg)

	assert.Contains(t, arch.BaseArgs, "-std=c17")
	assert.Contains(t, arch.BaseArgs, "-O2")
	assert.Contains(t, arch.BaseArgs, "-Werror")
	assert.Contains(t, arch.BaseArgs, "-Wall")
	assert.Contains(t, arch.BaseArgs, "-Wno-unused-variable")
	assert.Contains(t, arch.BaseArgs, "-DFOO=1")
	assert.Contains(t, arch.BaseArgs, "-Iinc")
	assert.Contains(t, arch.BaseArgs, "-Llib")
	assert.Contains(t, arch.BaseArgs, "-lm")
	assert.Contains(t, arch.BaseArgs, "-shared")
}

func TestClangLike_Override_KeepsPathWhenEmpty(t *testing.T) {
	b, err := New(Clang)
	require.NoError(t, err)

	require.NoError(t, b.(Overridable).Override(nil, "", "17.0.0"))
	assert.Equal(t, "clang", b.CompilerPath())
	assert.Equal(t, "17.0.0", b.CompilerVersion())

	require.NoError(t, b.(Overridable).Override(nil, "/opt/llvm/bin/clang", ""))
	assert.Equal(t, "/opt/llvm/bin/clang", b.CompilerPath())
}

func TestParseDepFile_SplitsOnBackslashContinuation(t *testing.T) {
	contents := "main.o: main.c header1.h \\\n  header2.h\n"
	paths := parseDepFile(contents)
	assert.Contains(t, paths, "main.c")
	assert.Contains(t, paths, "header1.h")
	assert.Contains(t, paths, "header2.h")
}

func TestParseDepFile_NoColonReturnsNil(t *testing.T) {
	assert.Nil(t, parseDepFile("garbage no colon"))
}

type fakeProcessLauncher struct {
	lastArgv []string
	result   *platform.ProcessResult
	err      error
}

func (f *fakeProcessLauncher) Run(dir string, argv []string) (*platform.ProcessResult, error) {
	f.lastArgv = argv
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func TestMSVCBackend_CommandArchetypeFor_RendersMSVCSyntax(t *testing.T) {
	be, err := New(MSVC)
	require.NoError(t, err)

	cfg := &config.BuildConfig{
		Language:         config.CXX17,
		Optimisation:     config.O3,
		WarningsAsErrors: true,
		IgnoreWarnings:   []string{"4996"},
		Defines:          []string{"FOO"},
		AdditionalIncludes: []string{"inc"},
		AdditionalLibPaths: []string{"lib"},
		AdditionalLibs:     []string{"kernel32"},
	}

	arch := be.CommandArchetypeFor(cfg)

	assert.Contains(t, arch.BaseArgs, "/std:c++17")
	assert.Contains(t, arch.BaseArgs, "/O2", "O3 has no MSVC flag and must fold to /O2")
	assert.Contains(t, arch.BaseArgs, "/WX")
	assert.Contains(t, arch.BaseArgs, "/wd4996")
	assert.Contains(t, arch.BaseArgs, "/DFOO")
	assert.Contains(t, arch.BaseArgs, "/Iinc")
	assert.Contains(t, arch.BaseArgs, "/LIBPATH:lib")
	assert.Contains(t, arch.BaseArgs, "kernel32.lib")
}

func TestMSVCBackend_Override_NonClExePathSkipsDiscovery(t *testing.T) {
	be, err := New(MSVC)
	require.NoError(t, err)

	require.NoError(t, be.(Overridable).Override(nil, "C:\\custom\\cl.exe", "19.40"))
	assert.Equal(t, "C:\\custom\\cl.exe", be.CompilerPath())
	assert.Equal(t, "19.40", be.CompilerVersion())
}

func TestMSVCBackend_CompileOne_WritesShowIncludesSidecar(t *testing.T) {
	be, err := New(MSVC)
	require.NoError(t, err)

	output := "Note: including file: C:\\inc\\a.h\r\nNote: including file:  C:\\inc\\b.h\r\nsome warning text\r\n"
	fp := &fakeProcessLauncher{result: &platform.ProcessResult{ExitCode: 0, Output: []byte(output)}}
	ctx := &platform.Context{FS: platform.OSFileSystem{}, Proc: fp}
	dir := t.TempDir()

	code, err := be.CompileOne(ctx, dir, &config.BuildConfig{}, "main.cpp", "main.obj", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Contains(t, fp.lastArgv, "/showIncludes")

	deps, err := be.CollectIncludeDependencies(ctx, dir, "main.cpp")
	require.NoError(t, err)
	assert.Contains(t, deps, "C:\\inc\\a.h")
	assert.Contains(t, deps, "C:\\inc\\b.h")
}

func TestMSVCBackend_CollectIncludeDependencies_MissingSidecarIsNotAnError(t *testing.T) {
	be, err := New(MSVC)
	require.NoError(t, err)
	ctx := &platform.Context{FS: platform.OSFileSystem{}}

	deps, err := be.CollectIncludeDependencies(ctx, t.TempDir(), "missing.cpp")
	require.NoError(t, err)
	assert.Nil(t, deps)
}

func TestClangLike_CompileOne_PropagatesExitCode(t *testing.T) {
	b, err := New(Clang)
	require.NoError(t, err)

	fp := &fakeProcessLauncher{result: &platform.ProcessResult{ExitCode: 1}}
	ctx := &platform.Context{FS: platform.OSFileSystem{}, Proc: fp}

	code, err := b.CompileOne(ctx, ".", &config.BuildConfig{}, "main.c", "main.o", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, code)
	assert.Contains(t, fp.lastArgv, "-c")
	assert.Contains(t, fp.lastArgv, "main.c")
}
