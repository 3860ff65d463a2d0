//go:build linux && 386

package socket

import (
	"syscall"
	"unsafe"
)

const (
	sysBind       = 2
	sysSetsockopt = 14
)

func bind(s int, addr unsafe.Pointer, addrlen socklen) error {
	_, e1 := socketcall(sysBind, uintptr(s), uintptr(addr), uintptr(addrlen), 0, 0, 0)
	if e1 != 0 {
		return e1
	}
	return nil
}

func setsockopt(s, level, name int, val unsafe.Pointer, vallen uintptr) error {
	_, e1 := socketcall(sysSetsockopt, uintptr(s), uintptr(level), uintptr(name), uintptr(val), vallen, 0)
	if e1 != 0 {
		return e1
	}
	return nil
}

func socketcall(call int, a0, a1, a2, a3, a4, a5 uintptr) (n int, err syscall.Errno)
