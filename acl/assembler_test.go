package acl

import (
	"testing"

	"github.com/stretchr/testify/assert"

	ihci "github.com/aclhost/aclmgr/internal/hci"
)

func TestAssemblerReassemblesFragmentedPDU(t *testing.T) {
	a := newAssembler(discardLog())

	// L2CAP header: length=4, cid=0x0004, then 2 bytes of a 4-byte payload
	first := []byte{0x04, 0x00, 0x04, 0x00, 0x01, 0x02}
	rest := []byte{0x03, 0x04}

	pdu := a.Feed(ihci.PBFirstNonFlushable, ihci.BCPointToPoint, first)
	assert.Nil(t, pdu)

	pdu = a.Feed(ihci.PBContinuing, ihci.BCPointToPoint, rest)
	assert.Equal(t, []byte{0x04, 0x00, 0x04, 0x00, 0x01, 0x02, 0x03, 0x04}, pdu)
}

func TestAssemblerSinglesFragmentPDU(t *testing.T) {
	a := newAssembler(discardLog())
	whole := []byte{0x02, 0x00, 0x04, 0x00, 0xAA, 0xBB}
	pdu := a.Feed(ihci.PBFirstFlushable, ihci.BCPointToPoint, whole)
	assert.Equal(t, whole, pdu)
}

func TestAssemblerDropsNonPointToPointBroadcast(t *testing.T) {
	a := newAssembler(discardLog())
	pdu := a.Feed(ihci.PBFirstNonFlushable, ihci.BCActiveSlave, []byte{0x02, 0x00, 0x04, 0x00, 0xAA, 0xBB})
	assert.Nil(t, pdu)
}

func TestAssemblerDropsOrphanContinuation(t *testing.T) {
	a := newAssembler(discardLog())
	pdu := a.Feed(ihci.PBContinuing, ihci.BCPointToPoint, []byte{0x01, 0x02})
	assert.Nil(t, pdu)
}

func TestAssemblerResetsOnUnexpectedRestart(t *testing.T) {
	a := newAssembler(discardLog())
	pdu := a.Feed(ihci.PBFirstNonFlushable, ihci.BCPointToPoint, []byte{0x06, 0x00, 0x04, 0x00, 0x01, 0x02})
	assert.Nil(t, pdu)

	// a second "first" fragment arrives before the first PDU completed
	whole := []byte{0x02, 0x00, 0x04, 0x00, 0xAA, 0xBB}
	pdu = a.Feed(ihci.PBFirstFlushable, ihci.BCPointToPoint, whole)
	assert.Equal(t, whole, pdu)
}
