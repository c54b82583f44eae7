//go:build !cgo

package platform

import (
	"fmt"

	"github.com/ebitengine/purego"
)

// NewDynamicLoader returns the purego-backed loader, used on builds
// without cgo. purego is pulled from the retrieved corpus (lazydocker's
// podman/storage vendor tree uses it as a cgo-free dlopen fallback on
// platforms where linking libdl is undesirable); here it plays the same
// role for loading the compiled build-description module.
func NewDynamicLoader() DynamicLoader {
	return pureGoLoader{}
}

type pureGoLoader struct{}

func (pureGoLoader) Open(path string) (ModuleHandle, error) {
	handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, fmt.Errorf("dlopen %s: %w", path, err)
	}
	return pureGoHandle{handle: handle}, nil
}

func (pureGoLoader) Close(h ModuleHandle) error {
	ph, ok := h.(pureGoHandle)
	if !ok {
		return fmt.Errorf("not a purego module handle")
	}
	return purego.Dlclose(ph.handle)
}

type pureGoHandle struct {
	handle uintptr
}

func (h pureGoHandle) Symbol(name string) (uintptr, bool) {
	addr, err := purego.Dlsym(h.handle, name)
	if err != nil || addr == 0 {
		return 0, false
	}
	return addr, true
}
