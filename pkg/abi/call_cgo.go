//go:build cgo

package abi

/*
#include <stdint.h>

typedef void (*builder_void_fn)(void);
typedef void (*builder_options_fn)(void *);

static void builder_call_void(void *fn) {
	((builder_void_fn)fn)();
}

static void builder_call_options(void *fn, void *options) {
	((builder_options_fn)fn)(options);
}
*/
import "C"

import (
	"unsafe"

	"github.com/containifyci/builder/pkg/platform"
)

// LoadBuilderOptions calls set_builder_options(&options) through a cgo
// trampoline (real function-pointer call, matching the literal mechanism
// a native host calling into a dlopen'd module uses).
func LoadBuilderOptions(handle platform.ModuleHandle) (*Loaded, bool, error) {
	addr, ok := handle.Symbol("set_builder_options")
	if !ok {
		return nil, false, nil
	}
	var raw cBuilderOptions
	C.builder_call_options(unsafe.Pointer(addr), unsafe.Pointer(&raw))
	return decode(&raw), true, nil
}

func CallPreBuild(handle platform.ModuleHandle) bool {
	addr, ok := handle.Symbol("on_pre_build")
	if !ok {
		return false
	}
	C.builder_call_void(unsafe.Pointer(addr))
	return true
}

func CallPostBuild(handle platform.ModuleHandle) bool {
	addr, ok := handle.Symbol("on_post_build")
	if !ok {
		return false
	}
	C.builder_call_void(unsafe.Pointer(addr))
	return true
}
