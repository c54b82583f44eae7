package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStructuralHash_IdenticalConfigsCollapse(t *testing.T) {
	a := &BuildConfig{Name: "a", Sources: []string{"main.c"}, BinaryName: "a"}
	b := &BuildConfig{Name: "a", Sources: []string{"main.c"}, BinaryName: "a"}

	assert.Equal(t, StructuralHash(a), StructuralHash(b))

	list := AddUnique(a, nil)
	list = AddUnique(b, list)
	assert.Len(t, list, 1, "structurally identical configs must collapse into one entry")
}

func TestStructuralHash_DiffersOnSources(t *testing.T) {
	a := &BuildConfig{Name: "a", Sources: []string{"main.c"}}
	b := &BuildConfig{Name: "a", Sources: []string{"other.c"}}
	assert.NotEqual(t, StructuralHash(a), StructuralHash(b))
}

func TestStructuralHash_IncludesDependencies(t *testing.T) {
	dep1 := &BuildConfig{Name: "dep", Sources: []string{"dep.c"}}
	dep2 := &BuildConfig{Name: "dep", Sources: []string{"dep2.c"}}
	withDep1 := &BuildConfig{Name: "top", Dependencies: []*BuildConfig{dep1}}
	withDep2 := &BuildConfig{Name: "top", Dependencies: []*BuildConfig{dep2}}

	assert.NotEqual(t, StructuralHash(withDep1), StructuralHash(withDep2))
}

func TestAddWithDependencies_TopologicalOrder(t *testing.T) {
	leaf := &BuildConfig{Name: "leaf", Sources: []string{"leaf.c"}}
	mid := &BuildConfig{Name: "mid", Sources: []string{"mid.c"}, Dependencies: []*BuildConfig{leaf}}
	top := &BuildConfig{Name: "top", Sources: []string{"top.c"}, Dependencies: []*BuildConfig{mid}}

	ordered := AddWithDependencies(nil, top)

	require.Len(t, ordered, 3)
	assert.Equal(t, "leaf", ordered[0].Name)
	assert.Equal(t, "mid", ordered[1].Name)
	assert.Equal(t, "top", ordered[2].Name)
}

func TestAddWithDependencies_SharedDependencyAppearsOnce(t *testing.T) {
	shared := &BuildConfig{Name: "shared", Sources: []string{"shared.c"}}
	left := &BuildConfig{Name: "left", Dependencies: []*BuildConfig{shared}}
	right := &BuildConfig{Name: "right", Dependencies: []*BuildConfig{shared}}
	top := &BuildConfig{Name: "top", Dependencies: []*BuildConfig{left, right}}

	ordered := AddWithDependencies(nil, top)

	count := 0
	for _, c := range ordered {
		if c.Name == "shared" {
			count++
		}
	}
	assert.Equal(t, 1, count, "a diamond dependency must only be built once")
}

func TestValidateUnique_RejectsDuplicateNames(t *testing.T) {
	configs := []*BuildConfig{
		{Name: "a"},
		{Name: "a"},
	}
	err := ValidateUnique(configs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate config name")
}

func TestValidateNoSelfDependency(t *testing.T) {
	c := &BuildConfig{Name: "a"}
	c.Dependencies = append(c.Dependencies, c)

	err := ValidateNoSelfDependency(c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "depends on itself")
}

func TestAddBuiltinDefaults_IsIdempotent(t *testing.T) {
	c := &BuildConfig{Name: "a"}
	AddBuiltinDefaults(c, "/app", []string{"c"})
	firstLen := len(c.AdditionalIncludes)

	AddBuiltinDefaults(c, "/app", []string{"c"})

	assert.Equal(t, firstLen, len(c.AdditionalIncludes), "a second call must be a no-op")
	assert.Equal(t, "bin", c.BinaryFolder)
}

func TestAddBuiltinDefaults_DoesNotOverrideExplicitBinaryFolder(t *testing.T) {
	c := &BuildConfig{Name: "a", BinaryFolder: "out"}
	AddBuiltinDefaults(c, "/app", nil)
	assert.Equal(t, "out", c.BinaryFolder)
}

func TestEffectiveBinaryName(t *testing.T) {
	withName := &BuildConfig{BinaryName: "custom"}
	assert.Equal(t, "custom", EffectiveBinaryName(withName, "input"))

	blank := &BuildConfig{}
	assert.Equal(t, "input", EffectiveBinaryName(blank, "input"))
}

func TestAddDependency_RejectsSelf(t *testing.T) {
	c := &BuildConfig{Name: "a"}
	err := AddDependency(c, c)
	require.Error(t, err)
}

func TestNameHash_StableForSameName(t *testing.T) {
	assert.Equal(t, NameHash("foo"), NameHash("foo"))
	assert.NotEqual(t, NameHash("foo"), NameHash("bar"))
}
