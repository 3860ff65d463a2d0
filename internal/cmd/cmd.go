// Package cmd implements HCI command opcodes, their little-endian
// parameter encodings, and FIFO correlation of submitted commands with
// the CommandComplete/CommandStatus event that answers them — grown
// from the teacher package's peripheral-only command set into the full
// set a Classic + LE initiator needs.
package cmd

import (
	"bytes"
	"container/list"
	"fmt"
	"sync"

	"github.com/aclhost/aclmgr/internal/event"
	"github.com/aclhost/aclmgr/internal/hci"
)

// Param is one marshalable HCI command parameter block.
type Param interface {
	Marshal([]byte)
	Opcode() Opcode
	Len() int
}

// Result is what a submitted command resolves to: either a
// CommandComplete's return parameters, or (for commands answered by
// CommandStatus alone, i.e. "pending") nil return parameters plus the
// status byte.
type Result struct {
	Status           uint8
	ReturnParameters []byte
}

type pending struct {
	op   Opcode
	done chan Result
}

// Sender issues HCI command packets to the controller and correlates
// the CommandComplete/CommandStatus events that answer them. Commands
// are issued in submission order; the controller is assumed to answer
// in that same order per opcode, per the HCI layer's contract.
type Sender struct {
	mu   sync.Mutex
	dev  writer
	sent *list.List // of *pending
}

type writer interface {
	Write([]byte) (int, error)
}

func NewSender(d writer) *Sender {
	return &Sender{dev: d, sent: list.New()}
}

func (s *Sender) marshal(p Param) []byte {
	b := make([]byte, 1+2+1+p.Len())
	b[0] = byte(hci.TypCommandPkt)
	op := p.Opcode()
	b[1], b[2] = byte(op), byte(op>>8)
	b[3] = byte(p.Len())
	p.Marshal(b[4:])
	return b
}

// Send writes p to the controller and blocks until the matching
// CommandComplete or CommandStatus event resolves it.
func (s *Sender) Send(p Param) (Result, error) {
	raw := s.marshal(p)
	pd := &pending{op: p.Opcode(), done: make(chan Result, 1)}

	s.mu.Lock()
	s.sent.PushBack(pd)
	s.mu.Unlock()

	if n, err := s.dev.Write(raw); err != nil {
		return Result{}, err
	} else if n != len(raw) {
		return Result{}, fmt.Errorf("cmd: short write sending %s", p.Opcode())
	}
	return <-pd.done, nil
}

// SendAndCheck sends p and requires the resulting status byte be one of
// the bytes in exp (an empty exp accepts any status).
func (s *Sender) SendAndCheck(p Param, exp []byte) error {
	r, err := s.Send(p)
	if err != nil {
		return err
	}
	if len(exp) == 0 {
		return nil
	}
	if !bytes.Contains(exp, []byte{r.Status}) {
		return fmt.Errorf("cmd: %s returned status 0x%02X, expected one of %X", p.Opcode(), r.Status, exp)
	}
	return nil
}

// HandleComplete is registered against event.CommandComplete.
func (s *Sender) HandleComplete(b []byte) error {
	var ep event.CommandCompleteEP
	if err := ep.Unmarshal(b); err != nil {
		return err
	}
	return s.resolve(ep.CommandOpcode, Result{
		Status:           statusFrom(ep.ReturnParameters),
		ReturnParameters: ep.ReturnParameters,
	})
}

// HandleStatus is registered against event.CommandStatus.
func (s *Sender) HandleStatus(b []byte) error {
	var ep event.CommandStatusEP
	if err := ep.Unmarshal(b); err != nil {
		return err
	}
	return s.resolve(ep.CommandOpcode, Result{Status: ep.Status})
}

func statusFrom(rp []byte) uint8 {
	if len(rp) == 0 {
		return 0
	}
	return rp[0]
}

func (s *Sender) resolve(opcode uint16, r Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for e := s.sent.Front(); e != nil; e = e.Next() {
		pd := e.Value.(*pending)
		if uint16(pd.op) == opcode {
			s.sent.Remove(e)
			pd.done <- r
			return nil
		}
	}
	return fmt.Errorf("cmd: no pending command for opcode 0x%04X", opcode)
}

// Opcode groups (OGF) and full opcodes (OGF<<10 | OCF).
const (
	ogfLinkCtl    = 0x01
	ogfLinkPolicy = 0x02
	ogfHostCtl    = 0x03
	ogfLECtl      = 0x08
)

type Opcode uint16

func (op Opcode) OGF() uint8  { return uint8((uint16(op) & 0xFC00) >> 10) }
func (op Opcode) OCF() uint16 { return uint16(op) & 0x03FF }
func (op Opcode) String() string {
	if s, ok := opName[op]; ok {
		return s
	}
	return fmt.Sprintf("Opcode(0x%04X)", uint16(op))
}

const (
	OpCreateConnection        = Opcode(ogfLinkCtl<<10 | 0x0005)
	OpDisconnect              = Opcode(ogfLinkCtl<<10 | 0x0006)
	OpCreateConnectionCancel  = Opcode(ogfLinkCtl<<10 | 0x0008)
	OpAcceptConnectionRequest = Opcode(ogfLinkCtl<<10 | 0x0009)
	OpRejectConnectionRequest = Opcode(ogfLinkCtl<<10 | 0x000A)
	OpLinkKeyRequestReply     = Opcode(ogfLinkCtl<<10 | 0x000B)
	OpLinkKeyRequestNegReply  = Opcode(ogfLinkCtl<<10 | 0x000C)
	OpPINCodeRequestReply     = Opcode(ogfLinkCtl<<10 | 0x000D)
	OpPINCodeRequestNegReply  = Opcode(ogfLinkCtl<<10 | 0x000E)
	OpAuthenticationRequested = Opcode(ogfLinkCtl<<10 | 0x0011)
	OpSetConnectionEncryption = Opcode(ogfLinkCtl<<10 | 0x0013)
	OpMasterLinkKey           = Opcode(ogfLinkCtl<<10 | 0x0017)
	OpIOCapabilityReply       = Opcode(ogfLinkCtl<<10 | 0x002B)
	OpUserConfirmationReply   = Opcode(ogfLinkCtl<<10 | 0x002C)
	OpUserConfirmationNegReply = Opcode(ogfLinkCtl<<10 | 0x002D)
	OpIOCapabilityNegReply    = Opcode(ogfLinkCtl<<10 | 0x0034)

	OpHoldMode              = Opcode(ogfLinkPolicy<<10 | 0x0001)
	OpSniffMode             = Opcode(ogfLinkPolicy<<10 | 0x0003)
	OpExitSniffMode         = Opcode(ogfLinkPolicy<<10 | 0x0004)
	OpParkMode              = Opcode(ogfLinkPolicy<<10 | 0x0005)
	OpExitParkMode          = Opcode(ogfLinkPolicy<<10 | 0x0006)
	OpQoSSetup              = Opcode(ogfLinkPolicy<<10 | 0x0007)
	OpRoleDiscovery         = Opcode(ogfLinkPolicy<<10 | 0x0009)
	OpSwitchRole            = Opcode(ogfLinkPolicy<<10 | 0x000B)
	OpReadLinkPolicy        = Opcode(ogfLinkPolicy<<10 | 0x000C)
	OpWriteLinkPolicy       = Opcode(ogfLinkPolicy<<10 | 0x000D)
	OpReadDefaultLinkPolicy = Opcode(ogfLinkPolicy<<10 | 0x000E)
	OpWriteDefaultLinkPolicy = Opcode(ogfLinkPolicy<<10 | 0x000F)
	OpFlowSpecification     = Opcode(ogfLinkPolicy<<10 | 0x0010)

	OpSetEventMask = Opcode(ogfHostCtl<<10 | 0x0001)
	OpReset        = Opcode(ogfHostCtl<<10 | 0x0003)

	OpLESetRandomAddress         = Opcode(ogfLECtl<<10 | 0x0005)
	OpLESetEventMask             = Opcode(ogfLECtl<<10 | 0x0001)
	OpLECreateConnection         = Opcode(ogfLECtl<<10 | 0x000D)
	OpLECreateConnectionCancel   = Opcode(ogfLECtl<<10 | 0x000E)
	OpLEConnectionUpdate         = Opcode(ogfLECtl<<10 | 0x0013)
	OpLEReadLocalSupportedFeatures = Opcode(ogfLECtl<<10 | 0x0003)
	OpLEExtendedCreateConnection = Opcode(ogfLECtl<<10 | 0x0043)
)

var opName = map[Opcode]string{
	OpCreateConnection:        "Create Connection",
	OpDisconnect:              "Disconnect",
	OpCreateConnectionCancel:  "Create Connection Cancel",
	OpAcceptConnectionRequest: "Accept Connection Request",
	OpRejectConnectionRequest: "Reject Connection Request",
	OpLinkKeyRequestReply:     "Link Key Request Reply",
	OpLinkKeyRequestNegReply:  "Link Key Request Negative Reply",
	OpPINCodeRequestReply:     "PIN Code Request Reply",
	OpPINCodeRequestNegReply:  "PIN Code Request Negative Reply",
	OpAuthenticationRequested: "Authentication Requested",
	OpSetConnectionEncryption: "Set Connection Encryption",
	OpMasterLinkKey:           "Master Link Key",
	OpIOCapabilityReply:       "IO Capability Request Reply",
	OpUserConfirmationReply:   "User Confirmation Request Reply",
	OpUserConfirmationNegReply: "User Confirmation Request Negative Reply",
	OpIOCapabilityNegReply:    "IO Capability Request Negative Reply",
	OpHoldMode:                "Hold Mode",
	OpSniffMode:               "Sniff Mode",
	OpExitSniffMode:           "Exit Sniff Mode",
	OpParkMode:                "Park Mode",
	OpExitParkMode:            "Exit Park Mode",
	OpQoSSetup:                "QoS Setup",
	OpRoleDiscovery:           "Role Discovery",
	OpSwitchRole:              "Switch Role",
	OpReadLinkPolicy:          "Read Link Policy Settings",
	OpWriteLinkPolicy:         "Write Link Policy Settings",
	OpReadDefaultLinkPolicy:   "Read Default Link Policy Settings",
	OpWriteDefaultLinkPolicy:  "Write Default Link Policy Settings",
	OpFlowSpecification:       "Flow Specification",
	OpSetEventMask:            "Set Event Mask",
	OpReset:                   "Reset",
	OpLESetRandomAddress:      "LE Set Random Address",
	OpLESetEventMask:          "LE Set Event Mask",
	OpLECreateConnection:      "LE Create Connection",
	OpLECreateConnectionCancel: "LE Create Connection Cancel",
	OpLEConnectionUpdate:      "LE Connection Update",
	OpLEReadLocalSupportedFeatures: "LE Read Local Supported Features",
	OpLEExtendedCreateConnection:   "LE Extended Create Connection",
}

// order is the little-endian byte-order helper the teacher package
// used; kept as a value receiver so zero-value order{} works anywhere.
type order struct{}

func (order) PutUint16(b []byte, v uint16) { b[0] = byte(v); b[1] = byte(v >> 8) }
func (order) PutUint32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}
func (order) PutMAC(b []byte, mac [6]byte) {
	// HCI addresses travel least-significant-octet first.
	for i := 0; i < 6; i++ {
		b[i] = mac[5-i]
	}
}

var o order

// --- Classic command parameters ---

type CreateConnection struct {
	BDAddr                 [6]byte
	PacketType             uint16
	PageScanRepetitionMode uint8
	ClockOffset            uint16
	AllowRoleSwitch        uint8
}

func (c CreateConnection) Opcode() Opcode { return OpCreateConnection }
func (c CreateConnection) Len() int       { return 13 }
func (c CreateConnection) Marshal(b []byte) {
	o.PutMAC(b[0:], c.BDAddr)
	o.PutUint16(b[6:], c.PacketType)
	b[8] = c.PageScanRepetitionMode
	b[9] = 0 // reserved
	o.PutUint16(b[10:], c.ClockOffset)
	b[12] = c.AllowRoleSwitch
}

type CreateConnectionCancel struct{ BDAddr [6]byte }

func (c CreateConnectionCancel) Opcode() Opcode   { return OpCreateConnectionCancel }
func (c CreateConnectionCancel) Len() int         { return 6 }
func (c CreateConnectionCancel) Marshal(b []byte) { o.PutMAC(b, c.BDAddr) }

type Disconnect struct {
	ConnectionHandle uint16
	Reason           uint8
}

func (c Disconnect) Opcode() Opcode { return OpDisconnect }
func (c Disconnect) Len() int       { return 3 }
func (c Disconnect) Marshal(b []byte) {
	o.PutUint16(b[0:], c.ConnectionHandle)
	b[2] = c.Reason
}

type AcceptConnectionRequest struct {
	BDAddr []byte
	Role   uint8
}

func (c AcceptConnectionRequest) Opcode() Opcode { return OpAcceptConnectionRequest }
func (c AcceptConnectionRequest) Len() int       { return 7 }
func (c AcceptConnectionRequest) Marshal(b []byte) {
	var a [6]byte
	copy(a[:], c.BDAddr)
	o.PutMAC(b[0:], a)
	b[6] = c.Role
}

type RejectConnectionRequest struct {
	BDAddr []byte
	Reason uint8
}

func (c RejectConnectionRequest) Opcode() Opcode { return OpRejectConnectionRequest }
func (c RejectConnectionRequest) Len() int       { return 7 }
func (c RejectConnectionRequest) Marshal(b []byte) {
	var a [6]byte
	copy(a[:], c.BDAddr)
	o.PutMAC(b[0:], a)
	b[6] = c.Reason
}

type AuthenticationRequested struct{ ConnectionHandle uint16 }

func (c AuthenticationRequested) Opcode() Opcode   { return OpAuthenticationRequested }
func (c AuthenticationRequested) Len() int         { return 2 }
func (c AuthenticationRequested) Marshal(b []byte) { o.PutUint16(b, c.ConnectionHandle) }

type SetConnectionEncryption struct {
	ConnectionHandle  uint16
	EncryptionEnable  uint8
}

func (c SetConnectionEncryption) Opcode() Opcode { return OpSetConnectionEncryption }
func (c SetConnectionEncryption) Len() int       { return 3 }
func (c SetConnectionEncryption) Marshal(b []byte) {
	o.PutUint16(b[0:], c.ConnectionHandle)
	b[2] = c.EncryptionEnable
}

type SwitchRole struct {
	BDAddr [6]byte
	Role   uint8
}

func (c SwitchRole) Opcode() Opcode { return OpSwitchRole }
func (c SwitchRole) Len() int       { return 7 }
func (c SwitchRole) Marshal(b []byte) {
	o.PutMAC(b[0:], c.BDAddr)
	b[6] = c.Role
}

type MasterLinkKey struct{ KeyFlag uint8 }

func (c MasterLinkKey) Opcode() Opcode   { return OpMasterLinkKey }
func (c MasterLinkKey) Len() int         { return 1 }
func (c MasterLinkKey) Marshal(b []byte) { b[0] = c.KeyFlag }

type HoldMode struct {
	ConnectionHandle uint16
	HoldModeMaxInterval uint16
	HoldModeMinInterval uint16
}

func (c HoldMode) Opcode() Opcode { return OpHoldMode }
func (c HoldMode) Len() int       { return 6 }
func (c HoldMode) Marshal(b []byte) {
	o.PutUint16(b[0:], c.ConnectionHandle)
	o.PutUint16(b[2:], c.HoldModeMaxInterval)
	o.PutUint16(b[4:], c.HoldModeMinInterval)
}

type SniffMode struct {
	ConnectionHandle  uint16
	SniffMaxInterval  uint16
	SniffMinInterval  uint16
	SniffAttempt      uint16
	SniffTimeout      uint16
}

func (c SniffMode) Opcode() Opcode { return OpSniffMode }
func (c SniffMode) Len() int       { return 10 }
func (c SniffMode) Marshal(b []byte) {
	o.PutUint16(b[0:], c.ConnectionHandle)
	o.PutUint16(b[2:], c.SniffMaxInterval)
	o.PutUint16(b[4:], c.SniffMinInterval)
	o.PutUint16(b[6:], c.SniffAttempt)
	o.PutUint16(b[8:], c.SniffTimeout)
}

type ExitSniffMode struct{ ConnectionHandle uint16 }

func (c ExitSniffMode) Opcode() Opcode   { return OpExitSniffMode }
func (c ExitSniffMode) Len() int         { return 2 }
func (c ExitSniffMode) Marshal(b []byte) { o.PutUint16(b, c.ConnectionHandle) }

type ParkMode struct {
	ConnectionHandle    uint16
	BeaconMaxInterval   uint16
	BeaconMinInterval   uint16
}

func (c ParkMode) Opcode() Opcode { return OpParkMode }
func (c ParkMode) Len() int       { return 6 }
func (c ParkMode) Marshal(b []byte) {
	o.PutUint16(b[0:], c.ConnectionHandle)
	o.PutUint16(b[2:], c.BeaconMaxInterval)
	o.PutUint16(b[4:], c.BeaconMinInterval)
}

type ExitParkMode struct{ ConnectionHandle uint16 }

func (c ExitParkMode) Opcode() Opcode   { return OpExitParkMode }
func (c ExitParkMode) Len() int         { return 2 }
func (c ExitParkMode) Marshal(b []byte) { o.PutUint16(b, c.ConnectionHandle) }

type QoSSetup struct {
	ConnectionHandle uint16
	Flags            uint8
	ServiceType      uint8
	TokenRate        uint32
	PeakBandwidth    uint32
	Latency          uint32
	DelayVariation   uint32
}

func (c QoSSetup) Opcode() Opcode { return OpQoSSetup }
func (c QoSSetup) Len() int       { return 20 }
func (c QoSSetup) Marshal(b []byte) {
	o.PutUint16(b[0:], c.ConnectionHandle)
	b[2] = c.Flags
	b[3] = c.ServiceType
	o.PutUint32(b[4:], c.TokenRate)
	o.PutUint32(b[8:], c.PeakBandwidth)
	o.PutUint32(b[12:], c.Latency)
	o.PutUint32(b[16:], c.DelayVariation)
}

type FlowSpecification struct {
	ConnectionHandle uint16
	Flags            uint8
	FlowDirection    uint8
	ServiceType      uint8
	TokenRate        uint32
	TokenBucketSize  uint32
	PeakBandwidth    uint32
	AccessLatency    uint32
}

func (c FlowSpecification) Opcode() Opcode { return OpFlowSpecification }
func (c FlowSpecification) Len() int       { return 21 }
func (c FlowSpecification) Marshal(b []byte) {
	o.PutUint16(b[0:], c.ConnectionHandle)
	b[2] = c.Flags
	b[3] = c.FlowDirection
	b[4] = c.ServiceType
	o.PutUint32(b[5:], c.TokenRate)
	o.PutUint32(b[9:], c.TokenBucketSize)
	o.PutUint32(b[13:], c.PeakBandwidth)
	o.PutUint32(b[17:], c.AccessLatency)
}

type RoleDiscovery struct{ ConnectionHandle uint16 }

func (c RoleDiscovery) Opcode() Opcode   { return OpRoleDiscovery }
func (c RoleDiscovery) Len() int         { return 2 }
func (c RoleDiscovery) Marshal(b []byte) { o.PutUint16(b, c.ConnectionHandle) }

type ReadLinkPolicySettings struct{ ConnectionHandle uint16 }

func (c ReadLinkPolicySettings) Opcode() Opcode   { return OpReadLinkPolicy }
func (c ReadLinkPolicySettings) Len() int         { return 2 }
func (c ReadLinkPolicySettings) Marshal(b []byte) { o.PutUint16(b, c.ConnectionHandle) }

type WriteLinkPolicySettings struct {
	ConnectionHandle   uint16
	LinkPolicySettings uint16
}

func (c WriteLinkPolicySettings) Opcode() Opcode { return OpWriteLinkPolicy }
func (c WriteLinkPolicySettings) Len() int       { return 4 }
func (c WriteLinkPolicySettings) Marshal(b []byte) {
	o.PutUint16(b[0:], c.ConnectionHandle)
	o.PutUint16(b[2:], c.LinkPolicySettings)
}

type ReadDefaultLinkPolicySettings struct{}

func (c ReadDefaultLinkPolicySettings) Opcode() Opcode   { return OpReadDefaultLinkPolicy }
func (c ReadDefaultLinkPolicySettings) Len() int         { return 0 }
func (c ReadDefaultLinkPolicySettings) Marshal(b []byte) {}

type WriteDefaultLinkPolicySettings struct{ DefaultLinkPolicySettings uint16 }

func (c WriteDefaultLinkPolicySettings) Opcode() Opcode { return OpWriteDefaultLinkPolicy }
func (c WriteDefaultLinkPolicySettings) Len() int       { return 2 }
func (c WriteDefaultLinkPolicySettings) Marshal(b []byte) {
	o.PutUint16(b, c.DefaultLinkPolicySettings)
}

type LinkKeyRequestReply struct {
	BDAddr  [6]byte
	LinkKey [16]byte
}

func (c LinkKeyRequestReply) Opcode() Opcode { return OpLinkKeyRequestReply }
func (c LinkKeyRequestReply) Len() int       { return 22 }
func (c LinkKeyRequestReply) Marshal(b []byte) {
	o.PutMAC(b[0:], c.BDAddr)
	copy(b[6:], c.LinkKey[:])
}

type LinkKeyRequestNegativeReply struct{ BDAddr [6]byte }

func (c LinkKeyRequestNegativeReply) Opcode() Opcode   { return OpLinkKeyRequestNegReply }
func (c LinkKeyRequestNegativeReply) Len() int         { return 6 }
func (c LinkKeyRequestNegativeReply) Marshal(b []byte) { o.PutMAC(b, c.BDAddr) }

type PINCodeRequestNegativeReply struct{ BDAddr [6]byte }

func (c PINCodeRequestNegativeReply) Opcode() Opcode   { return OpPINCodeRequestNegReply }
func (c PINCodeRequestNegativeReply) Len() int         { return 6 }
func (c PINCodeRequestNegativeReply) Marshal(b []byte) { o.PutMAC(b, c.BDAddr) }

type IOCapabilityReply struct {
	BDAddr          []byte
	IOCapability    uint8
	OOBDataPresent  uint8
	AuthRequirement uint8
}

func (c IOCapabilityReply) Opcode() Opcode { return OpIOCapabilityReply }
func (c IOCapabilityReply) Len() int       { return 9 }
func (c IOCapabilityReply) Marshal(b []byte) {
	var a [6]byte
	copy(a[:], c.BDAddr)
	o.PutMAC(b[0:], a)
	b[6] = c.IOCapability
	b[7] = c.OOBDataPresent
	b[8] = c.AuthRequirement
}

type IOCapabilityRequestNegativeReply struct {
	BDAddr []byte
	Reason uint8
}

func (c IOCapabilityRequestNegativeReply) Opcode() Opcode { return OpIOCapabilityNegReply }
func (c IOCapabilityRequestNegativeReply) Len() int       { return 7 }
func (c IOCapabilityRequestNegativeReply) Marshal(b []byte) {
	var a [6]byte
	copy(a[:], c.BDAddr)
	o.PutMAC(b[0:], a)
	b[6] = c.Reason
}

type UserConfirmationRequestReply struct{ BDAddr []byte }

func (c UserConfirmationRequestReply) Opcode() Opcode { return OpUserConfirmationReply }
func (c UserConfirmationRequestReply) Len() int       { return 6 }
func (c UserConfirmationRequestReply) Marshal(b []byte) {
	var a [6]byte
	copy(a[:], c.BDAddr)
	o.PutMAC(b, a)
}

type UserConfirmationRequestNegativeReply struct{ BDAddr []byte }

func (c UserConfirmationRequestNegativeReply) Opcode() Opcode {
	return OpUserConfirmationNegReply
}
func (c UserConfirmationRequestNegativeReply) Len() int { return 6 }
func (c UserConfirmationRequestNegativeReply) Marshal(b []byte) {
	var a [6]byte
	copy(a[:], c.BDAddr)
	o.PutMAC(b, a)
}

type SetEventMask struct{ EventMask uint64 }

func (c SetEventMask) Opcode() Opcode { return OpSetEventMask }
func (c SetEventMask) Len() int       { return 8 }
func (c SetEventMask) Marshal(b []byte) {
	for i := 0; i < 8; i++ {
		b[i] = byte(c.EventMask >> (8 * uint(i)))
	}
}

type Reset struct{}

func (c Reset) Opcode() Opcode   { return OpReset }
func (c Reset) Len() int         { return 0 }
func (c Reset) Marshal(b []byte) {}

// --- LE command parameters ---

type LESetRandomAddress struct{ RandomAddress [6]byte }

func (c LESetRandomAddress) Opcode() Opcode   { return OpLESetRandomAddress }
func (c LESetRandomAddress) Len() int         { return 6 }
func (c LESetRandomAddress) Marshal(b []byte) { o.PutMAC(b, c.RandomAddress) }

type LESetEventMask struct{ LEEventMask uint64 }

func (c LESetEventMask) Opcode() Opcode { return OpLESetEventMask }
func (c LESetEventMask) Len() int       { return 8 }
func (c LESetEventMask) Marshal(b []byte) {
	for i := 0; i < 8; i++ {
		b[i] = byte(c.LEEventMask >> (8 * uint(i)))
	}
}

type LEReadLocalSupportedFeatures struct{}

func (c LEReadLocalSupportedFeatures) Opcode() Opcode   { return OpLEReadLocalSupportedFeatures }
func (c LEReadLocalSupportedFeatures) Len() int         { return 0 }
func (c LEReadLocalSupportedFeatures) Marshal(b []byte) {}

type LECreateConnection struct {
	LEScanInterval        uint16
	LEScanWindow          uint16
	InitiatorFilterPolicy uint8
	PeerAddressType       uint8
	PeerAddress           [6]byte
	OwnAddressType        uint8
	ConnIntervalMin       uint16
	ConnIntervalMax       uint16
	ConnLatency           uint16
	SupervisionTimeout    uint16
	MinimumCELength       uint16
	MaximumCELength       uint16
}

func (c LECreateConnection) Opcode() Opcode { return OpLECreateConnection }
func (c LECreateConnection) Len() int       { return 25 }
func (c LECreateConnection) Marshal(b []byte) {
	o.PutUint16(b[0:], c.LEScanInterval)
	o.PutUint16(b[2:], c.LEScanWindow)
	b[4] = c.InitiatorFilterPolicy
	b[5] = c.PeerAddressType
	o.PutMAC(b[6:], c.PeerAddress)
	b[12] = c.OwnAddressType
	o.PutUint16(b[13:], c.ConnIntervalMin)
	o.PutUint16(b[15:], c.ConnIntervalMax)
	o.PutUint16(b[17:], c.ConnLatency)
	o.PutUint16(b[19:], c.SupervisionTimeout)
	o.PutUint16(b[21:], c.MinimumCELength)
	o.PutUint16(b[23:], c.MaximumCELength)
}

type LECreateConnectionCancel struct{}

func (c LECreateConnectionCancel) Opcode() Opcode   { return OpLECreateConnectionCancel }
func (c LECreateConnectionCancel) Len() int         { return 0 }
func (c LECreateConnectionCancel) Marshal(b []byte) {}

// LEExtendedCreateConnection covers the single-PHY-entry case this ACL
// core needs (spec: "one PHY entry (1M PHY)"); the general multi-PHY
// framing the full HCI command supports is out of scope.
type LEExtendedCreateConnection struct {
	InitiatorFilterPolicy uint8
	OwnAddressType        uint8
	PeerAddressType       uint8
	PeerAddress           [6]byte
	InitiatingPHYs        uint8
	ScanInterval          uint16
	ScanWindow            uint16
	ConnIntervalMin       uint16
	ConnIntervalMax       uint16
	ConnLatency           uint16
	SupervisionTimeout    uint16
	MinimumCELength       uint16
	MaximumCELength       uint16
}

func (c LEExtendedCreateConnection) Opcode() Opcode { return OpLEExtendedCreateConnection }
func (c LEExtendedCreateConnection) Len() int        { return 10 + 16 }
func (c LEExtendedCreateConnection) Marshal(b []byte) {
	b[0] = c.InitiatorFilterPolicy
	b[1] = c.OwnAddressType
	b[2] = c.PeerAddressType
	o.PutMAC(b[3:], c.PeerAddress)
	b[9] = c.InitiatingPHYs
	o.PutUint16(b[10:], c.ScanInterval)
	o.PutUint16(b[12:], c.ScanWindow)
	o.PutUint16(b[14:], c.ConnIntervalMin)
	o.PutUint16(b[16:], c.ConnIntervalMax)
	o.PutUint16(b[18:], c.ConnLatency)
	o.PutUint16(b[20:], c.SupervisionTimeout)
	o.PutUint16(b[22:], c.MinimumCELength)
	o.PutUint16(b[24:], c.MaximumCELength)
}

type LEConnectionUpdate struct {
	ConnectionHandle   uint16
	ConnIntervalMin    uint16
	ConnIntervalMax    uint16
	ConnLatency        uint16
	SupervisionTimeout uint16
	MinimumCELength    uint16
	MaximumCELength    uint16
}

func (c LEConnectionUpdate) Opcode() Opcode { return OpLEConnectionUpdate }
func (c LEConnectionUpdate) Len() int       { return 14 }
func (c LEConnectionUpdate) Marshal(b []byte) {
	o.PutUint16(b[0:], c.ConnectionHandle)
	o.PutUint16(b[2:], c.ConnIntervalMin)
	o.PutUint16(b[4:], c.ConnIntervalMax)
	o.PutUint16(b[6:], c.ConnLatency)
	o.PutUint16(b[8:], c.SupervisionTimeout)
	o.PutUint16(b[10:], c.MinimumCELength)
	o.PutUint16(b[12:], c.MaximumCELength)
}
