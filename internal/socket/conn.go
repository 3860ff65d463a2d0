package socket

import (
	"io"
	"sync"
	"syscall"
)

// conn is a raw HCI_CHANNEL_USER file descriptor wrapped as an
// io.ReadWriteCloser. Reads and writes are independently serialized so
// a single conn can be shared between the event-reader goroutine and
// whatever goroutine is flushing queued ACL data.
type conn struct {
	fd  int
	rmu sync.Mutex
	wmu sync.Mutex
}

// Open binds HCI_CHANNEL_USER on controller index dev, giving the
// caller exclusive raw access to its command/event/ACL streams.
func Open(dev int) (io.ReadWriteCloser, error) {
	fd, err := Socket(AF_BLUETOOTH, syscall.SOCK_RAW, BTPROTO_HCI)
	if err != nil {
		return nil, err
	}
	sa := &SockaddrHCI{Dev: dev, Channel: HCIChannelUser}
	if err := Bind(fd, sa); err != nil {
		syscall.Close(fd)
		return nil, err
	}
	return &conn{fd: fd}, nil
}

func (c *conn) Read(b []byte) (int, error) {
	c.rmu.Lock()
	defer c.rmu.Unlock()
	return syscall.Read(c.fd, b)
}

func (c *conn) Write(b []byte) (int, error) {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return syscall.Write(c.fd, b)
}

func (c *conn) Close() error {
	return syscall.Close(c.fd)
}
