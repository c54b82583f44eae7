//go:build !cgo

package abi

import (
	"unsafe"

	"github.com/ebitengine/purego"
)

// callVoid/callVoidPtr wrap purego.SyscallN for the two call shapes the
// builder.h ABI needs: a bare no-argument call and a single-pointer-
// argument call.
func callVoid(addr uintptr) {
	purego.SyscallN(addr)
}

func callVoidPtr(addr uintptr, arg unsafe.Pointer) {
	purego.SyscallN(addr, uintptr(arg))
}
