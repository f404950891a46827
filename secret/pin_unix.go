//go:build unix

package secret

import "golang.org/x/sys/unix"

// pin locks the pages backing p into RAM so they cannot be swapped out.
func pin(p []byte) error {
	return unix.Mlock(p)
}

// unpin releases the page lock taken by pin.
func unpin(p []byte) error {
	return unix.Munlock(p)
}
