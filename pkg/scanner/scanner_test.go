package scanner

import (
	"log/slog"
	"os"
	"path/filepath"
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

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestScan_FollowsQuotedIncludesTransitively(t *testing.T) {
	ctx := newTestContext(t)
	root := ctx.WorkDir

	writeFile(t, root, "main.c", `#include "util.h"
int main() { return 0; }
`)
	writeFile(t, root, "util.h", `#include "inner.h"
`)
	writeFile(t, root, "inner.h", `// leaf header
`)

	result, err := Scan(ctx, root, &config.BuildConfig{Sources: []string{"main.c"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"main.c"}, result.Sources)
	assert.ElementsMatch(t, []string{"main.c", "util.h", "inner.h"}, result.Tracked)
}

func TestScan_AngleIncludeSearchesAdditionalIncludesInOrder(t *testing.T) {
	ctx := newTestContext(t)
	root := ctx.WorkDir

	writeFile(t, root, "main.c", `#include <widget.h>
`)
	writeFile(t, root, "vendor_a/widget.h", "// wrong one\n")
	writeFile(t, root, "vendor_b/widget.h", "// right one\n")

	cfg := &config.BuildConfig{
		Sources:            []string{"main.c"},
		AdditionalIncludes: []string{"vendor_b", "vendor_a"},
	}
	result, err := Scan(ctx, root, cfg)
	require.NoError(t, err)

	assert.Contains(t, result.Tracked, filepath.Join("vendor_b", "widget.h"))
	assert.NotContains(t, result.Tracked, filepath.Join("vendor_a", "widget.h"))
}

func TestScan_IgnoresCommentedOutIncludeLines(t *testing.T) {
	ctx := newTestContext(t)
	root := ctx.WorkDir

	writeFile(t, root, "main.c", `// #include "ghost.h"
int x;
`)

	result, err := Scan(ctx, root, &config.BuildConfig{Sources: []string{"main.c"}})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"main.c"}, result.Tracked)
}

func TestScan_HandlesCRLFAndEscapedSpaces(t *testing.T) {
	ctx := newTestContext(t)
	root := ctx.WorkDir

	writeFile(t, root, "main.c", "#include \"my\\ header.h\"\r\n")
	writeFile(t, root, "my header.h", "// ok\n")

	result, err := Scan(ctx, root, &config.BuildConfig{Sources: []string{"main.c"}})
	require.NoError(t, err)
	assert.Contains(t, result.Tracked, "my header.h")
}

func TestScan_MissingIncludeIsSkippedNotFatal(t *testing.T) {
	ctx := newTestContext(t)
	root := ctx.WorkDir

	writeFile(t, root, "main.c", `#include "does_not_exist.h"
`)

	result, err := Scan(ctx, root, &config.BuildConfig{Sources: []string{"main.c"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"main.c"}, result.Tracked)
}

func TestScan_ExpandsWildcardSourceSpec(t *testing.T) {
	ctx := newTestContext(t)
	root := ctx.WorkDir

	writeFile(t, root, "src/a.c", "")
	writeFile(t, root, "src/b.c", "")
	writeFile(t, root, "src/readme.txt", "")

	result, err := Scan(ctx, root, &config.BuildConfig{Sources: []string{"src/*.c"}})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{filepath.Join("src", "a.c"), filepath.Join("src", "b.c")}, result.Sources)
}
