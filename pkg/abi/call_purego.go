//go:build !cgo

package abi

import (
	"unsafe"

	"github.com/containifyci/builder/pkg/platform"
)

// LoadBuilderOptions calls set_builder_options(&options) in the loaded
// description module and decodes the populated struct, per spec.md
// §4.6's mandatory-symbol requirement.
func LoadBuilderOptions(handle platform.ModuleHandle) (*Loaded, bool, error) {
	addr, ok := handle.Symbol("set_builder_options")
	if !ok {
		return nil, false, nil
	}
	var raw cBuilderOptions
	callVoidPtr(addr, unsafe.Pointer(&raw))
	return decode(&raw), true, nil
}

// CallPreBuild/CallPostBuild invoke the optional no-argument hooks.
// Missing symbols are not an error, per spec.md §4.6.
func CallPreBuild(handle platform.ModuleHandle) bool {
	addr, ok := handle.Symbol("on_pre_build")
	if !ok {
		return false
	}
	callVoid(addr)
	return true
}

func CallPostBuild(handle platform.ModuleHandle) bool {
	addr, ok := handle.Symbol("on_post_build")
	if !ok {
		return false
	}
	callVoid(addr)
	return true
}
