package vsgen

import (
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/containifyci/builder/pkg/config"
	"github.com/containifyci/builder/pkg/platform"
)

func newTestContext(t *testing.T) *platform.Context {
	t.Helper()
	return platform.New(t.TempDir(), false, slog.New(slog.NewTextHandler(os.Stderr, nil)))
}

func validSolution() *Solution {
	return &Solution{
		Name:      "Demo",
		Path:      "Demo.sln",
		Platforms: []string{"x64"},
		Projects: []*Project{
			{
				Name: "app",
				Configs: []ProjectConfig{
					{Name: "Debug", Underlying: &config.BuildConfig{Name: "app", Kind: config.Executable, BinaryFolder: "bin"}},
				},
			},
		},
	}
}

func TestValidate_AcceptsWellFormedSolution(t *testing.T) {
	ctx := newTestContext(t)
	require.NoError(t, Validate(ctx, validSolution()))
}

func TestValidate_RejectsMissingName(t *testing.T) {
	ctx := newTestContext(t)
	sol := validSolution()
	sol.Name = ""
	err := Validate(ctx, sol)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "solution name")
}

func TestValidate_RejectsNoPlatforms(t *testing.T) {
	ctx := newTestContext(t)
	sol := validSolution()
	sol.Platforms = nil
	require.Error(t, Validate(ctx, sol))
}

func TestValidate_RejectsProjectWithNoConfigs(t *testing.T) {
	ctx := newTestContext(t)
	sol := validSolution()
	sol.Projects[0].Configs = nil
	err := Validate(ctx, sol)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must declare at least one config")
}

func TestValidate_RejectsExecutableMissingBinaryFolder(t *testing.T) {
	ctx := newTestContext(t)
	sol := validSolution()
	sol.Projects[0].Configs[0].Underlying.BinaryFolder = ""
	err := Validate(ctx, sol)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing a binary folder")
}

func TestValidate_RejectsDuplicateUnderlyingConfigNames(t *testing.T) {
	ctx := newTestContext(t)
	sol := validSolution()
	sol.Projects = append(sol.Projects, &Project{
		Name: "app2",
		Configs: []ProjectConfig{
			{Name: "Debug", Underlying: &config.BuildConfig{Name: "app", Kind: config.Executable, BinaryFolder: "bin"}},
		},
	})
	err := Validate(ctx, sol)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate underlying config name")
}
