package vsgen

import (
	"fmt"

	"github.com/containifyci/builder/pkg/config"
	"github.com/containifyci/builder/pkg/errs"
	"github.com/containifyci/builder/pkg/platform"
)

// Validate enforces spec.md §4.7's fatal preconditions (checked before any
// file is written) and logs the non-fatal "non-default platform name"
// warning.
func Validate(ctx *platform.Context, sol *Solution) error {
	if sol.Name == "" {
		return errs.New(errs.Validation, "solution name is required")
	}
	if len(sol.Platforms) == 0 {
		return errs.New(errs.Validation, "solution must declare at least one platform")
	}
	if len(sol.Projects) == 0 {
		return errs.New(errs.Validation, "solution must declare at least one project")
	}
	for _, plat := range sol.Platforms {
		if plat == "" {
			return errs.New(errs.Validation, "unrecognised (empty) platform name")
		}
		if !defaultPlatforms[plat] {
			ctx.Log.Warn("non-default Visual Studio platform name", "platform", plat)
		}
	}
	for _, proj := range sol.Projects {
		if len(proj.Configs) == 0 {
			return errs.New(errs.Validation, fmt.Sprintf("project %q must declare at least one config", proj.Name))
		}
		for _, pc := range proj.Configs {
			if pc.Underlying == nil || pc.Underlying.Name == "" {
				return errs.New(errs.Validation, fmt.Sprintf("project %q has an unnamed config", proj.Name))
			}
			if pc.Underlying.Kind == config.Executable && pc.Underlying.BinaryFolder == "" {
				return errs.New(errs.Validation, fmt.Sprintf("executable config %q is missing a binary folder", pc.Underlying.Name))
			}
		}
	}
	return checkGloballyUniqueNames(sol)
}

// checkGloballyUniqueNames enforces spec.md §3's invariant that each VS
// config's underlying BuildConfig name is globally unique among
// orchestrator configs.
func checkGloballyUniqueNames(sol *Solution) error {
	seen := map[string]bool{}
	for _, proj := range sol.Projects {
		for _, pc := range proj.Configs {
			if seen[pc.Underlying.Name] {
				return errs.New(errs.Validation, fmt.Sprintf("duplicate underlying config name %q across VS projects", pc.Underlying.Name))
			}
			seen[pc.Underlying.Name] = true
		}
	}
	return nil
}
