// Package hci defines the wire-level constants of the HCI transport
// framing: the one-byte packet type that precedes every command, event,
// ACL data and SCO data packet on the shared UART/USB/vsock channel.
package hci

// PacketType is the one-byte H4 packet indicator prefixing every HCI
// packet on the wire.
type PacketType uint8

// HCI packet types, see Bluetooth Core Spec Vol 4, Part A.
const (
	TypCommandPkt PacketType = 0x01
	TypACLDataPkt PacketType = 0x02
	TypSCODataPkt PacketType = 0x03
	TypEventPkt   PacketType = 0x04
	TypVendorPkt  PacketType = 0xFF
)

func (t PacketType) String() string {
	switch t {
	case TypCommandPkt:
		return "Command"
	case TypACLDataPkt:
		return "ACL Data"
	case TypSCODataPkt:
		return "SCO Data"
	case TypEventPkt:
		return "Event"
	case TypVendorPkt:
		return "Vendor"
	default:
		return "Unknown"
	}
}

// ACL packet-boundary flags (bits 4-5 of the second header byte).
const (
	PBFirstNonFlushable uint8 = 0x00
	PBContinuing        uint8 = 0x01
	PBFirstFlushable    uint8 = 0x02
	PBComplete          uint8 = 0x03
)

// ACL broadcast flags (bits 6-7 of the second header byte).
const (
	BCPointToPoint uint8 = 0x00
	BCActiveSlave  uint8 = 0x01
)

// QualcommDebugHandle is a reserved connection handle used by some
// controllers for vendor debug traffic; it must never be treated as a
// real ACL link.
const QualcommDebugHandle uint16 = 0x0EDC
