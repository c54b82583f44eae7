package platform

// DynamicLoader loads a dynamic module (.so/.dylib/.dll) and resolves a
// named symbol to a callable address, the contract spec.md §1 names for
// the dynamic-module-loading collaborator and spec.md §4.6/§9 elaborates
// as the plugin-host relationship: host and plugin are both native
// binaries sharing a C-linkage ABI, loaded in-process with no sandboxing.
//
// This is deliberately NOT an RPC/subprocess boundary (unlike the
// teacher's hashicorp/go-plugin-based description loading) — see
// DESIGN.md for why go-plugin was rejected for this role.
type DynamicLoader interface {
	// Open loads the module at path and returns an opaque handle.
	Open(path string) (ModuleHandle, error)
	// Close unloads a previously opened module.
	Close(h ModuleHandle) error
}

// ModuleHandle is an opaque loaded-module reference plus symbol
// resolution, kept together because every real dlopen API pairs a handle
// with dlsym(handle, name).
type ModuleHandle interface {
	// Symbol resolves name to a function pointer value usable by the abi
	// package to construct a callable. Returns false if the symbol is
	// absent — per spec.md §4.6, missing optional hooks are not errors.
	Symbol(name string) (uintptr, bool)
}
