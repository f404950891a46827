//go:build windows

package secret

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

// pin locks the pages backing p into RAM so they cannot be swapped out.
func pin(p []byte) error {
	return windows.VirtualLock(uintptr(unsafe.Pointer(&p[0])), uintptr(len(p)))
}

// unpin releases the page lock taken by pin.
func unpin(p []byte) error {
	return windows.VirtualUnlock(uintptr(unsafe.Pointer(&p[0])), uintptr(len(p)))
}
