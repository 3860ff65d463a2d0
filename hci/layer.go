// Package hci is the thin façade the ACL connection manager is built
// against: it turns a raw HCI transport (a socket, a log file, a test
// pipe) into command/response correlation, event dispatch, and ACL
// data framing, the same three jobs the teacher's linux.HCI did for a
// single BLE peripheral — generalized here to run Classic and LE
// simultaneously and to carry arbitrary peer-initiated traffic instead
// of just the device's own advertisements.
package hci

import (
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/aclhost/aclmgr/internal/cmd"
	"github.com/aclhost/aclmgr/internal/event"
	ihci "github.com/aclhost/aclmgr/internal/hci"
)

// Layer is what the acl package depends on. Keeping it an interface
// lets manager tests run against a fake transport without touching a
// real controller.
type Layer interface {
	EnqueueCommand(p cmd.Param) (cmd.Result, error)
	SendAndCheck(p cmd.Param, acceptable []byte) error
	SubscribeEvent(code event.Code, h event.Handler)
	// SubscribeLEMeta registers the single owner of every LE meta
	// sub-event; the LE meta payload (sub-event code as its first byte,
	// then parameters) is handed to h unfiltered, so h's own dispatch
	// can implement an exhaustive switch over sub-event codes.
	SubscribeLEMeta(h event.Handler)
	SubscribeACL(h ACLHandler)
	SendACL(handle uint16, pb, bc uint8, payload []byte) error
	Start() error
	Stop() error
}

// ACLHandler receives one inbound ACL fragment exactly as it arrived
// on the wire; reassembly into complete PDUs is the acl package's job.
type ACLHandler func(handle uint16, pb, bc uint8, payload []byte)

// HCI is the concrete Layer implementation.
type HCI struct {
	dev    io.ReadWriteCloser
	sender *cmd.Sender
	disp   *event.Dispatcher
	log    *logrus.Entry

	leMu  sync.RWMutex
	leH   event.Handler

	aclMu sync.RWMutex
	aclH  ACLHandler

	wg   sync.WaitGroup
	stop chan struct{}
}

// New wraps dev (already bound to the controller) in a Layer. Callers
// on Linux typically obtain dev via internal/socket.Open.
func New(dev io.ReadWriteCloser, log *logrus.Entry) *HCI {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	h := &HCI{
		dev:  dev,
		disp: event.NewDispatcher(),
		log:  log,
		stop: make(chan struct{}),
	}
	h.sender = cmd.NewSender(dev)
	h.disp.Handle(event.CommandComplete, event.HandlerFunc(h.sender.HandleComplete))
	h.disp.Handle(event.CommandStatus, event.HandlerFunc(h.sender.HandleStatus))
	h.disp.Handle(event.LEMeta, event.HandlerFunc(h.handleLEMeta))
	h.disp.HandleDefault(event.HandlerFunc(h.handleUnrouted))
	return h
}

func (h *HCI) EnqueueCommand(p cmd.Param) (cmd.Result, error) { return h.sender.Send(p) }

func (h *HCI) SendAndCheck(p cmd.Param, acceptable []byte) error {
	return h.sender.SendAndCheck(p, acceptable)
}

func (h *HCI) SubscribeEvent(code event.Code, handler event.Handler) {
	h.disp.Handle(code, handler)
}

func (h *HCI) SubscribeLEMeta(handler event.Handler) {
	h.leMu.Lock()
	defer h.leMu.Unlock()
	h.leH = handler
}

func (h *HCI) SubscribeACL(handler ACLHandler) {
	h.aclMu.Lock()
	defer h.aclMu.Unlock()
	h.aclH = handler
}

// SendACL writes one ACL fragment. Splitting a PDU across the
// controller's negotiated MTU is the caller's responsibility (the
// acl package's scheduler owns that).
func (h *HCI) SendACL(handle uint16, pb, bc uint8, payload []byte) error {
	b := make([]byte, 1+4+len(payload))
	b[0] = byte(ihci.TypACLDataPkt)
	hb := (handle & 0x0FFF) | (uint16(pb) << 12) | (uint16(bc) << 14)
	b[1], b[2] = byte(hb), byte(hb>>8)
	b[3], b[4] = byte(len(payload)), byte(len(payload)>>8)
	copy(b[5:], payload)
	_, err := h.dev.Write(b)
	return err
}

// Start begins the single reader goroutine that pumps the transport
// and dispatches each packet by its leading H4 type byte.
func (h *HCI) Start() error {
	h.wg.Add(1)
	go h.readLoop()
	return nil
}

// Stop closes the transport, which unblocks the reader goroutine's
// blocking Read, then waits for it to exit.
func (h *HCI) Stop() error {
	close(h.stop)
	err := h.dev.Close()
	h.wg.Wait()
	return err
}

func (h *HCI) readLoop() {
	defer h.wg.Done()
	buf := make([]byte, 4096)
	for {
		n, err := h.dev.Read(buf)
		if err != nil {
			select {
			case <-h.stop:
			default:
				h.log.WithError(err).Warn("hci: transport read failed, reader exiting")
			}
			return
		}
		if n == 0 {
			continue
		}
		pkt := make([]byte, n)
		copy(pkt, buf[:n])
		h.handlePacket(pkt)
	}
}

func (h *HCI) handlePacket(b []byte) {
	if len(b) == 0 {
		return
	}
	typ, b := ihci.PacketType(b[0]), b[1:]
	switch typ {
	case ihci.TypEventPkt:
		if err := h.disp.Dispatch(b); err != nil {
			h.log.WithError(err).Debug("hci: event dispatch failed")
		}
	case ihci.TypACLDataPkt:
		h.handleACL(b)
	default:
		h.log.WithField("type", typ).Debug("hci: unhandled packet type")
	}
}

func (h *HCI) handleACL(b []byte) {
	if len(b) < 4 {
		return
	}
	hb := uint16(b[0]) | uint16(b[1])<<8
	handle := hb & 0x0FFF
	pb := uint8((hb >> 12) & 0x3)
	bc := uint8((hb >> 14) & 0x3)
	plen := int(uint16(b[2]) | uint16(b[3])<<8)
	b = b[4:]
	if plen > len(b) {
		h.log.WithField("handle", handle).Warn("hci: ACL length exceeds packet")
		return
	}
	if handle == ihci.QualcommDebugHandle {
		return
	}
	h.aclMu.RLock()
	handler := h.aclH
	h.aclMu.RUnlock()
	if handler != nil {
		handler(handle, pb, bc, b[:plen])
	}
}

func (h *HCI) handleLEMeta(b []byte) error {
	if len(b) < 1 {
		return fmt.Errorf("hci: empty LE meta event")
	}
	h.leMu.RLock()
	handler := h.leH
	h.leMu.RUnlock()
	if handler == nil {
		h.log.WithField("subevent", event.LESubCode(b[0])).Debug("hci: no LE meta owner registered")
		return nil
	}
	return handler.HandleEvent(b)
}

func (h *HCI) handleUnrouted(b []byte) error {
	if len(b) < 1 {
		return nil
	}
	h.log.WithField("event", event.Code(b[0])).Debug("hci: unhandled event")
	return nil
}
