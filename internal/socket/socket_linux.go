//go:build linux && !386

package socket

import (
	"syscall"
	"unsafe"
)

// bind and setsockopt on every Linux architecture except 386 go through
// the direct SYS_BIND/SYS_SETSOCKOPT syscalls; 386 alone multiplexes
// socket calls through socketcall(2), handled separately.
func bind(s int, addr unsafe.Pointer, addrlen socklen) error {
	_, _, e := syscall.Syscall(syscall.SYS_BIND, uintptr(s), uintptr(addr), uintptr(addrlen))
	if e != 0 {
		return e
	}
	return nil
}

func setsockopt(s, level, name int, val unsafe.Pointer, vallen uintptr) error {
	_, _, e := syscall.Syscall6(syscall.SYS_SETSOCKOPT, uintptr(s), uintptr(level), uintptr(name), uintptr(val), vallen, 0)
	if e != 0 {
		return e
	}
	return nil
}
