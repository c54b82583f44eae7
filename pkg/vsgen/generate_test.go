package vsgen

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/containifyci/builder/pkg/config"
)

func TestGenerate_WritesSolutionAndProjectFiles(t *testing.T) {
	ctx := newTestContext(t)
	outDir := ctx.WorkDir

	require.NoError(t, os.MkdirAll(filepath.Join(outDir, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(outDir, "src", "main.c"), []byte("int main(){return 0;}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(outDir, "src", "main.h"), []byte("// header"), 0o644))

	sol := &Solution{
		Name:      "Demo",
		Path:      filepath.Join(outDir, "Demo.sln"),
		Platforms: []string{"x64"},
		Projects: []*Project{
			{
				Name:           "app",
				CodeFolders:    []string{"src"},
				FileExtensions: []string{".c", ".h"},
				Configs: []ProjectConfig{
					{
						Name:       "Debug",
						Underlying: &config.BuildConfig{Name: "app", Kind: config.Executable, BinaryFolder: "bin", BinaryName: "app"},
					},
				},
			},
		},
	}

	err := Generate(ctx, sol, "/usr/local/bin/builder", filepath.Join(outDir, "build.c"))
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(outDir, "Demo.sln"))
	assert.FileExists(t, filepath.Join(outDir, "app.vcxproj"))
	assert.FileExists(t, filepath.Join(outDir, "app.vcxproj.user"))
	assert.FileExists(t, filepath.Join(outDir, "app.vcxproj.filters"))

	slnContents, err := os.ReadFile(filepath.Join(outDir, "Demo.sln"))
	require.NoError(t, err)
	assert.Contains(t, string(slnContents), "app.vcxproj")

	vcxContents, err := os.ReadFile(filepath.Join(outDir, "app.vcxproj"))
	require.NoError(t, err)
	assert.Contains(t, string(vcxContents), "--config=app")
}

func TestGenerate_CleansStaleFilesFromPreviousRun(t *testing.T) {
	ctx := newTestContext(t)
	outDir := ctx.WorkDir

	stale := filepath.Join(outDir, "leftover.vcxproj")
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o644))

	sol := &Solution{
		Name:      "Demo",
		Path:      filepath.Join(outDir, "Demo.sln"),
		Platforms: []string{"x64"},
		Projects: []*Project{
			{
				Name: "app",
				Configs: []ProjectConfig{
					{Name: "Debug", Underlying: &config.BuildConfig{Name: "app", Kind: config.Executable, BinaryFolder: "bin", BinaryName: "app"}},
				},
			},
		},
	}

	require.NoError(t, Generate(ctx, sol, "/usr/local/bin/builder", filepath.Join(outDir, "build.c")))
	assert.NoFileExists(t, stale)
}

func TestGenerate_RejectsInvalidSolution(t *testing.T) {
	ctx := newTestContext(t)
	err := Generate(ctx, &Solution{}, "builder", "build.c")
	require.Error(t, err)
}

func TestGenerate_NestsSolutionFoldersForSlashSeparatedProjectNames(t *testing.T) {
	ctx := newTestContext(t)
	outDir := ctx.WorkDir

	sol := &Solution{
		Name:      "Demo",
		Path:      filepath.Join(outDir, "Demo.sln"),
		Platforms: []string{"x64"},
		Projects: []*Project{
			{
				Name: "libs/core",
				Configs: []ProjectConfig{
					{Name: "Debug", Underlying: &config.BuildConfig{Name: "core", Kind: config.StaticLibrary, BinaryFolder: "bin", BinaryName: "core"}},
				},
			},
		},
	}

	require.NoError(t, Generate(ctx, sol, "/usr/local/bin/builder", filepath.Join(outDir, "build.c")))
	assert.FileExists(t, filepath.Join(outDir, "core.vcxproj"))

	slnContents, err := os.ReadFile(filepath.Join(outDir, "Demo.sln"))
	require.NoError(t, err)
	assert.Contains(t, string(slnContents), "NestedProjects")
}
