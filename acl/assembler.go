package acl

import (
	"github.com/sirupsen/logrus"

	ihci "github.com/aclhost/aclmgr/internal/hci"
)

// assembler reassembles one link's ACL fragments into complete L2CAP
// PDUs: an L2CAP header is a 2-byte little-endian length followed by a
// 2-byte channel id, and the PDU is complete once that many information
// bytes (plus the 4-byte header) have been received.
type assembler struct {
	log     *logrus.Entry
	buf     []byte
	expect  int
	pending bool
}

func newAssembler(log *logrus.Entry) *assembler {
	return &assembler{log: log}
}

// Feed processes one ACL fragment. It returns a complete PDU (the full
// 4-byte L2CAP header plus information payload) when the fragment
// completes one, or nil otherwise.
func (a *assembler) Feed(pb, bc uint8, payload []byte) []byte {
	if bc != ihci.BCPointToPoint {
		a.log.WithField("bc", bc).Warn("assembler: dropping non point-to-point fragment")
		return nil
	}

	switch pb {
	case ihci.PBFirstNonFlushable, ihci.PBFirstFlushable:
		if a.pending {
			a.log.Warn("assembler: first fragment arrived with PDU in progress, dropping it")
		}
		return a.startPDU(payload)
	case ihci.PBContinuing:
		if !a.pending {
			a.log.Warn("assembler: continuing fragment with no PDU in progress, dropping it")
			return nil
		}
		return a.continuePDU(payload)
	default:
		a.log.WithField("pb", pb).Warn("assembler: unexpected packet-boundary flag, dropping fragment")
		return nil
	}
}

func (a *assembler) startPDU(payload []byte) []byte {
	if len(payload) < 2 {
		a.log.Warn("assembler: first fragment too short for L2CAP length, dropping")
		a.reset()
		return nil
	}
	l2capLen := int(payload[0]) | int(payload[1])<<8
	a.expect = l2capLen + 4
	a.buf = make([]byte, 0, a.expect)
	a.buf = append(a.buf, payload...)
	a.pending = true
	return a.checkComplete()
}

func (a *assembler) continuePDU(payload []byte) []byte {
	a.buf = append(a.buf, payload...)
	return a.checkComplete()
}

func (a *assembler) checkComplete() []byte {
	switch {
	case len(a.buf) == a.expect:
		pdu := a.buf
		a.reset()
		return pdu
	case len(a.buf) > a.expect:
		a.log.WithField("received", len(a.buf)).WithField("expected", a.expect).
			Warn("assembler: received more than expected, dropping PDU")
		a.reset()
		return nil
	default:
		return nil
	}
}

func (a *assembler) reset() {
	a.buf = nil
	a.expect = 0
	a.pending = false
}
