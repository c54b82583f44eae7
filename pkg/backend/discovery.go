package backend

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/containifyci/builder/pkg/platform"
	"gopkg.in/yaml.v3"
)

// Installation is one discovered MSVC toolchain.
type Installation struct {
	Version string `yaml:"version"`
	ClPath  string `yaml:"cl_path"`
}

// Discovery caches MSVC installation probing on disk so repeated
// `--config` invocations don't re-run vswhere-style discovery every time.
// Grounded directly on the teacher's pkg/filesystem.FileCache
// (LoadResultsFromYAML/SaveResultsAsYAML), generalised from "cached
// proto-file search results" to "cached compiler installation lookups".
type Discovery struct {
	CachePath string
	cache     map[string]Installation
}

func NewDiscovery() *Discovery {
	return &Discovery{CachePath: filepath.Join(".builder", "msvc_discovery.yaml")}
}

func (d *Discovery) load(ctx *platform.Context) {
	if d.cache != nil {
		return
	}
	d.cache = map[string]Installation{}
	data, err := ctx.FS.ReadFile(d.CachePath)
	if err != nil {
		return
	}
	_ = yaml.Unmarshal(data, &d.cache)
}

func (d *Discovery) save(ctx *platform.Context) error {
	data, err := yaml.Marshal(d.cache)
	if err != nil {
		return err
	}
	return ctx.FS.WriteFile(d.CachePath, data, 0o644)
}

// Find returns the MSVC installation matching version, probing via
// vswhere.exe on first use and caching the result thereafter.
func (d *Discovery) Find(ctx *platform.Context, version string) (*Installation, error) {
	d.load(ctx)
	key := version
	if key == "" {
		key = "latest"
	}
	if inst, ok := d.cache[key]; ok {
		return &inst, nil
	}

	inst, err := probeVSWhere(ctx, version)
	if err != nil {
		return nil, err
	}
	d.cache[key] = *inst
	_ = d.save(ctx)
	return inst, nil
}

func probeVSWhere(ctx *platform.Context, version string) (*Installation, error) {
	res, err := ctx.Proc.Run(".", []string{"vswhere", "-latest", "-products", "*",
		"-requires", "Microsoft.VisualStudio.Component.VC.Tools.x86.x64",
		"-property", "installationPath"})
	if err != nil {
		return nil, fmt.Errorf("vswhere discovery failed: %w", err)
	}
	if res.ExitCode != 0 {
		return nil, fmt.Errorf("vswhere discovery failed with exit code %d: %s", res.ExitCode, string(res.Output))
	}
	root := strings.TrimSpace(string(res.Output))
	if root == "" {
		return nil, fmt.Errorf("no MSVC installation found")
	}
	return &Installation{
		Version: version,
		ClPath:  filepath.Join(root, "VC", "Tools", "MSVC", version, "bin", "Hostx64", "x64", "cl.exe"),
	}, nil
}
