package acl

import (
	"sync"

	"github.com/google/uuid"
)

// Role is the link-layer role of the local device on one connection.
type Role uint8

const (
	Master Role = iota
	Slave
)

// Connection is the handle a client holds for one live link. Its
// exported fields are immutable after creation. The methods below are
// safe from any goroutine: Send goes straight to the bounded outbound
// queue and the callback setters take a lock; none of them posts to
// the manager's serial executor.
type Connection struct {
	// id is a purely local log-correlation aid threaded through a
	// client's own executor boundary; it is never sent on the wire and
	// never used as a lookup key (Handle is, always).
	id uuid.UUID

	Handle       uint16
	LinkType     LinkType
	Role         Role
	LocalAddress Address
	RemoteAddr   AddressWithType

	assembler *assembler
	outbound  *queuePair
	up        upEnd
	inbound   chan []byte
	notify    func()

	creditsInUse int

	mgmtMu     sync.Mutex
	classicMgmt ConnectionManagementCallbacks
	leMgmt      LeConnectionManagementCallbacks
}

// ID returns the connection's local correlation id for log joins
// across goroutine/executor boundaries.
func (c *Connection) ID() uuid.UUID { return c.id }

// Send enqueues one complete L2CAP PDU for the scheduler to transmit.
// It never blocks; a full outbound queue is reported as
// ResourceExhaustion rather than silently dropped.
func (c *Connection) Send(pdu []byte) error {
	if err := c.up.TrySend(pdu); err != nil {
		return err
	}
	if c.notify != nil {
		c.notify()
	}
	return nil
}

// inboundQueueDepth bounds how many reassembled PDUs a slow consumer can
// leave pending before the demux starts dropping them.
const inboundQueueDepth = 16

// Inbound returns the channel of complete, reassembled L2CAP PDUs
// arriving on this connection. Closed once the connection is torn down.
func (c *Connection) Inbound() <-chan []byte { return c.inbound }

// deliver is called from the HCI reader goroutine (via the demux) each
// time the assembler completes a PDU. A full inbound queue drops the
// PDU rather than blocking the reader that feeds every other link.
func (c *Connection) deliver(pdu []byte) {
	select {
	case c.inbound <- pdu:
	default:
		c.assembler.log.WithField("handle", c.Handle).Warn("acl: inbound queue full, dropping PDU")
	}
}

// SetManagementCallbacks registers the per-link event sink for a
// Classic connection. Only valid when LinkType == Classic.
func (c *Connection) SetManagementCallbacks(cb ConnectionManagementCallbacks) {
	c.mgmtMu.Lock()
	c.classicMgmt = cb
	c.mgmtMu.Unlock()
}

// SetLeManagementCallbacks registers the per-link event sink for an LE
// connection. Only valid when LinkType == LE.
func (c *Connection) SetLeManagementCallbacks(cb LeConnectionManagementCallbacks) {
	c.mgmtMu.Lock()
	c.leMgmt = cb
	c.mgmtMu.Unlock()
}

func (c *Connection) classicCallbacks() ConnectionManagementCallbacks {
	c.mgmtMu.Lock()
	defer c.mgmtMu.Unlock()
	return c.classicMgmt
}

func (c *Connection) leCallbacks() LeConnectionManagementCallbacks {
	c.mgmtMu.Lock()
	defer c.mgmtMu.Unlock()
	return c.leMgmt
}

func newCorrelationID() uuid.UUID { return uuid.New() }
