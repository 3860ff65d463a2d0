// Package socket binds a raw HCI_CHANNEL_USER socket, the kernel
// interface that hands a single process exclusive ownership of one
// Bluetooth controller and lets it speak the HCI wire protocol
// directly, bypassing BlueZ's own host stack. The standard library has
// no support for AF_BLUETOOTH, so this package fills the gap the same
// way the teacher package did for its userspace L2CAP socket.
package socket

import (
	"syscall"
	"time"
	"unsafe"
)

// AF_BLUETOOTH is not defined anywhere in the standard library's
// syscall package; 31 is its value on Linux (include/linux/socket.h).
const AF_BLUETOOTH = 31

// Bluetooth protocol families, see include/net/bluetooth/bluetooth.h.
const (
	BTPROTO_L2CAP  = 0
	BTPROTO_HCI    = 1
	BTPROTO_SCO    = 2
	BTPROTO_RFCOMM = 3
	BTPROTO_BNEP   = 4
	BTPROTO_CMTP   = 5
	BTPROTO_HIDP   = 6
	BTPROTO_AVDTP  = 7
)

// HCI socket channels; HCI_CHANNEL_USER grants exclusive access to the
// controller and suppresses BlueZ's own management of it.
const (
	HCIChannelRaw     = 0
	HCIChannelUser    = 1
	HCIChannelMonitor = 2
	HCIChannelControl = 3
)

type socklen uint32

type Sockaddr interface {
	sockaddr() (ptr unsafe.Pointer, len socklen, err error)
}

type rawSockaddrHCI struct {
	Family  uint16
	Dev     uint16
	Channel uint16
}

// SockaddrHCI addresses a specific controller (by HCI device index) and
// channel on the AF_BLUETOOTH/BTPROTO_HCI socket family.
type SockaddrHCI struct {
	Dev     int
	Channel uint16
	raw     rawSockaddrHCI
}

const sizeofSockaddrHCI = unsafe.Sizeof(rawSockaddrHCI{})

func (sa *SockaddrHCI) sockaddr() (unsafe.Pointer, socklen, error) {
	if sa.Dev < 0 || sa.Dev > 0xFFFF {
		return nil, 0, syscall.EINVAL
	}
	sa.raw.Family = AF_BLUETOOTH
	sa.raw.Dev = uint16(sa.Dev)
	sa.raw.Channel = sa.Channel
	return unsafe.Pointer(&sa.raw), socklen(sizeofSockaddrHCI), nil
}

// Socket opens a raw AF_BLUETOOTH socket, retrying briefly on EBUSY —
// BlueZ's own hci0 binding can transiently hold the device right after
// the adapter powers on.
func Socket(domain, typ, proto int) (int, error) {
	var fd int
	var err error
	for i := 0; i < 5; i++ {
		if fd, err = syscall.Socket(domain, typ, proto); err == nil || err != syscall.EBUSY {
			return fd, err
		}
		time.Sleep(time.Second)
	}
	return 0, syscall.EBUSY
}

// Bind binds fd to sa, retrying on EBUSY for the same reason as Socket.
func Bind(fd int, sa Sockaddr) error {
	ptr, n, err := sa.sockaddr()
	if err != nil {
		return err
	}
	for i := 0; i < 5; i++ {
		if err = bind(fd, ptr, n); err == nil || err != syscall.EBUSY {
			return err
		}
		time.Sleep(time.Second)
	}
	return syscall.EBUSY
}

// HCI socket option level/names, see bluetooth/hci_sock.h.
const (
	SOL_HCI = 0
)

const (
	HCI_DATA_DIR   = 1
	HCI_FILTER     = 2
	HCI_TIME_STAMP = 3
)

// HCIFilter selects which event and packet types HCI_CHANNEL_RAW
// delivers; HCI_CHANNEL_USER ignores it but the option is kept for
// parity with BlueZ tooling and for tests run against a raw channel.
type HCIFilter struct {
	TypeMask  uint32
	EventMask [2]uint32
	Opcode    uint16
}

func SetsockoptFilter(fd int, f *HCIFilter) error {
	return setsockopt(fd, SOL_HCI, HCI_FILTER, unsafe.Pointer(f), unsafe.Sizeof(*f))
}
