//go:build cgo

package platform

/*
#cgo LDFLAGS: -ldl
#include <dlfcn.h>
#include <stdlib.h>
*/
import "C"

import (
	"fmt"
	"unsafe"
)

// NewDynamicLoader returns the cgo dlfcn.h-backed loader, the literal
// mechanism original_source/include/builder.h assumes (dlopen/dlsym).
// Preferred over the purego path whenever cgo is available because it
// matches the original implementation's linkage exactly.
func NewDynamicLoader() DynamicLoader {
	return cgoLoader{}
}

type cgoLoader struct{}

func (cgoLoader) Open(path string) (ModuleHandle, error) {
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))

	handle := C.dlopen(cpath, C.RTLD_NOW|C.RTLD_GLOBAL)
	if handle == nil {
		return nil, fmt.Errorf("dlopen %s: %s", path, C.GoString(C.dlerror()))
	}
	return cgoHandle{handle: handle}, nil
}

func (cgoLoader) Close(h ModuleHandle) error {
	ch, ok := h.(cgoHandle)
	if !ok {
		return fmt.Errorf("not a cgo module handle")
	}
	if C.dlclose(ch.handle) != 0 {
		return fmt.Errorf("dlclose: %s", C.GoString(C.dlerror()))
	}
	return nil
}

type cgoHandle struct {
	handle unsafe.Pointer
}

func (h cgoHandle) Symbol(name string) (uintptr, bool) {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))

	C.dlerror() // clear any pending error
	sym := C.dlsym(h.handle, cname)
	if sym == nil {
		return 0, false
	}
	return uintptr(sym), true
}
