// Package event implements HCI event-code dispatch and the parameter
// structures of the event and LE-meta-event subevent family this ACL
// core needs, in the unmarshal style of the teacher package this was
// grown from: one struct per event, one Unmarshal([]byte) error method,
// little-endian wire order throughout.
package event

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// Handler dispatches one fully-framed event body (header already
// stripped) to its registered owner.
type Handler interface {
	HandleEvent(b []byte) error
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(b []byte) error

func (f HandlerFunc) HandleEvent(b []byte) error { return f(b) }

// Dispatcher routes raw event packets to per-code handlers, falling
// back to a default handler (or a no-op) when no specific handler is
// registered for the code.
type Dispatcher struct {
	handlers map[Code]Handler
	fallback Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: map[Code]Handler{}}
}

func (d *Dispatcher) Handle(c Code, h Handler) { d.handlers[c] = h }

func (d *Dispatcher) HandleDefault(h Handler) { d.fallback = h }

// Dispatch parses the event header from b and routes the remaining
// parameter bytes to the handler registered for the event code.
func (d *Dispatcher) Dispatch(b []byte) error {
	var h Header
	if err := h.Unmarshal(b); err != nil {
		return err
	}
	b = b[2:]
	if f, found := d.handlers[h.Code]; found {
		return f.HandleEvent(b)
	}
	if d.fallback != nil {
		return d.fallback.HandleEvent(b)
	}
	return nil
}

// Code is an HCI event code (the first byte of an Event packet's header).
type Code uint8

const (
	InquiryComplete                      Code = 0x01
	InquiryResult                        Code = 0x02
	ConnectionComplete                   Code = 0x03
	ConnectionRequest                    Code = 0x04
	DisconnectionComplete                Code = 0x05
	AuthenticationComplete               Code = 0x06
	RemoteNameReqComplete                Code = 0x07
	EncryptionChange                     Code = 0x08
	ChangeConnectionLinkKeyComplete      Code = 0x09
	MasterLinkKeyComplete                Code = 0x0A
	ReadRemoteSupportedFeaturesComplete  Code = 0x0B
	ReadRemoteVersionInformationComplete Code = 0x0C
	QoSSetupComplete                     Code = 0x0D
	CommandComplete                      Code = 0x0E
	CommandStatus                       Code = 0x0F
	HardwareError                       Code = 0x10
	RoleChange                          Code = 0x12
	NumberOfCompletedPkts               Code = 0x13
	ModeChange                          Code = 0x14
	PINCodeRequest                      Code = 0x16
	LinkKeyRequest                      Code = 0x17
	LinkKeyNotification                 Code = 0x18
	IOCapabilityRequest                 Code = 0x31
	IOCapabilityResponse                Code = 0x32
	UserConfirmationRequest             Code = 0x33
	SimplePairingComplete               Code = 0x36
	LEMeta                              Code = 0x3E
)

var codeName = map[Code]string{
	InquiryComplete:                      "Inquiry Complete",
	InquiryResult:                        "Inquiry Result",
	ConnectionComplete:                   "Connection Complete",
	ConnectionRequest:                    "Connection Request",
	DisconnectionComplete:                "Disconnection Complete",
	AuthenticationComplete:               "Authentication Complete",
	RemoteNameReqComplete:                "Remote Name Request Complete",
	EncryptionChange:                     "Encryption Change",
	ChangeConnectionLinkKeyComplete:      "Change Connection Link Key Complete",
	MasterLinkKeyComplete:                "Master Link Key Complete",
	ReadRemoteSupportedFeaturesComplete:  "Read Remote Supported Features Complete",
	ReadRemoteVersionInformationComplete: "Read Remote Version Information Complete",
	QoSSetupComplete:                     "QoS Setup Complete",
	CommandComplete:                      "Command Complete",
	CommandStatus:                        "Command Status",
	HardwareError:                        "Hardware Error",
	RoleChange:                           "Role Change",
	NumberOfCompletedPkts:                "Number Of Completed Packets",
	ModeChange:                           "Mode Change",
	PINCodeRequest:                       "PIN Code Request",
	LinkKeyRequest:                       "Link Key Request",
	LinkKeyNotification:                  "Link Key Notification",
	IOCapabilityRequest:                  "IO Capability Request",
	IOCapabilityResponse:                 "IO Capability Response",
	UserConfirmationRequest:              "User Confirmation Request",
	SimplePairingComplete:                "Simple Pairing Complete",
	LEMeta:                               "LE Meta",
}

func (c Code) String() string {
	if s, ok := codeName[c]; ok {
		return s
	}
	return fmt.Sprintf("Code(0x%02X)", uint8(c))
}

// LESubCode is the first parameter byte of an LE meta-event, selecting
// which LE subevent follows.
type LESubCode uint8

const (
	LEConnectionComplete               LESubCode = 0x01
	LEAdvertisingReport                LESubCode = 0x02
	LEConnectionUpdateComplete         LESubCode = 0x03
	LEReadRemoteUsedFeaturesComplete   LESubCode = 0x04
	LELTKRequest                       LESubCode = 0x05
	LERemoteConnectionParameterRequest LESubCode = 0x06
	LEEnhancedConnectionComplete       LESubCode = 0x0A
)

var leSubName = map[LESubCode]string{
	LEConnectionComplete:               "LE Connection Complete",
	LEAdvertisingReport:                "LE Advertising Report",
	LEConnectionUpdateComplete:         "LE Connection Update Complete",
	LEReadRemoteUsedFeaturesComplete:   "LE Read Remote Used Features Complete",
	LELTKRequest:                       "LE Long Term Key Request",
	LERemoteConnectionParameterRequest: "LE Remote Connection Parameter Request",
	LEEnhancedConnectionComplete:       "LE Enhanced Connection Complete",
}

func (c LESubCode) String() string {
	if s, ok := leSubName[c]; ok {
		return s
	}
	return fmt.Sprintf("LESubCode(0x%02X)", uint8(c))
}

// Header is the 2-byte event header: event code + parameter length.
type Header struct {
	Code Code
	Plen uint8
}

func (h *Header) Unmarshal(b []byte) error {
	if len(b) < 2 {
		return errors.New("event: malformed header")
	}
	h.Code = Code(b[0])
	h.Plen = b[1]
	if uint8(len(b)) != 2+h.Plen {
		return fmt.Errorf("event: length mismatch for %s: plen %d, got %d bytes", h.Code, h.Plen, len(b)-2)
	}
	return nil
}

// --- Event parameters ---

type ConnectionCompleteEP struct {
	Status            uint8
	ConnectionHandle  uint16
	BDAddr            [6]byte
	LinkType          uint8
	EncryptionEnabled uint8
}

func (ep *ConnectionCompleteEP) Unmarshal(b []byte) error {
	return binary.Read(bytes.NewBuffer(b), binary.LittleEndian, ep)
}

type ConnectionRequestEP struct {
	BDAddr        [6]byte
	ClassOfDevice [3]byte
	LinkType      uint8
}

func (ep *ConnectionRequestEP) Unmarshal(b []byte) error {
	return binary.Read(bytes.NewBuffer(b), binary.LittleEndian, ep)
}

type DisconnectionCompleteEP struct {
	Status           uint8
	ConnectionHandle uint16
	Reason           uint8
}

func (ep *DisconnectionCompleteEP) Unmarshal(b []byte) error {
	return binary.Read(bytes.NewBuffer(b), binary.LittleEndian, ep)
}

type AuthenticationCompleteEP struct {
	Status           uint8
	ConnectionHandle uint16
}

func (ep *AuthenticationCompleteEP) Unmarshal(b []byte) error {
	return binary.Read(bytes.NewBuffer(b), binary.LittleEndian, ep)
}

type EncryptionChangeEP struct {
	Status            uint8
	ConnectionHandle  uint16
	EncryptionEnabled uint8
}

func (ep *EncryptionChangeEP) Unmarshal(b []byte) error {
	return binary.Read(bytes.NewBuffer(b), binary.LittleEndian, ep)
}

type ReadRemoteSupportedFeaturesCompleteEP struct {
	Status           uint8
	ConnectionHandle uint16
	LMPFeatures      [8]byte
}

func (ep *ReadRemoteSupportedFeaturesCompleteEP) Unmarshal(b []byte) error {
	return binary.Read(bytes.NewBuffer(b), binary.LittleEndian, ep)
}

type QoSSetupCompleteEP struct {
	Status           uint8
	ConnectionHandle uint16
	Flags            uint8
	ServiceType      uint8
	TokenRate        uint32
	PeakBandwidth    uint32
	Latency          uint32
	DelayVariation   uint32
}

func (ep *QoSSetupCompleteEP) Unmarshal(b []byte) error {
	return binary.Read(bytes.NewBuffer(b), binary.LittleEndian, ep)
}

type RoleChangeEP struct {
	Status   uint8
	BDAddr   [6]byte
	NewRole  uint8
}

func (ep *RoleChangeEP) Unmarshal(b []byte) error {
	return binary.Read(bytes.NewBuffer(b), binary.LittleEndian, ep)
}

type ModeChangeEP struct {
	Status            uint8
	ConnectionHandle  uint16
	CurrentMode       uint8
	Interval          uint16
}

func (ep *ModeChangeEP) Unmarshal(b []byte) error {
	return binary.Read(bytes.NewBuffer(b), binary.LittleEndian, ep)
}

type LinkKeyRequestEP struct {
	BDAddr [6]byte
}

func (ep *LinkKeyRequestEP) Unmarshal(b []byte) error {
	return binary.Read(bytes.NewBuffer(b), binary.LittleEndian, ep)
}

type PINCodeRequestEP struct {
	BDAddr [6]byte
}

func (ep *PINCodeRequestEP) Unmarshal(b []byte) error {
	return binary.Read(bytes.NewBuffer(b), binary.LittleEndian, ep)
}

type IOCapabilityRequestEP struct {
	BDAddr [6]byte
}

func (ep *IOCapabilityRequestEP) Unmarshal(b []byte) error {
	return binary.Read(bytes.NewBuffer(b), binary.LittleEndian, ep)
}

type IOCapabilityResponseEP struct {
	BDAddr         [6]byte
	IOCapability   uint8
	OOBDataPresent uint8
	AuthRequirement uint8
}

func (ep *IOCapabilityResponseEP) Unmarshal(b []byte) error {
	return binary.Read(bytes.NewBuffer(b), binary.LittleEndian, ep)
}

type UserConfirmationRequestEP struct {
	BDAddr          [6]byte
	NumericValue    uint32
}

func (ep *UserConfirmationRequestEP) Unmarshal(b []byte) error {
	return binary.Read(bytes.NewBuffer(b), binary.LittleEndian, ep)
}

type SimplePairingCompleteEP struct {
	Status uint8
	BDAddr [6]byte
}

func (ep *SimplePairingCompleteEP) Unmarshal(b []byte) error {
	return binary.Read(bytes.NewBuffer(b), binary.LittleEndian, ep)
}

type CommandCompleteEP struct {
	NumHCICommandPackets uint8
	CommandOpcode        uint16
	ReturnParameters      []byte
}

func (ep *CommandCompleteEP) Unmarshal(b []byte) error {
	buf := bytes.NewBuffer(b)
	if err := binary.Read(buf, binary.LittleEndian, &ep.NumHCICommandPackets); err != nil {
		return err
	}
	if err := binary.Read(buf, binary.LittleEndian, &ep.CommandOpcode); err != nil {
		return err
	}
	ep.ReturnParameters = buf.Bytes()
	return nil
}

type CommandStatusEP struct {
	Status               uint8
	NumHCICommandPackets uint8
	CommandOpcode        uint16
}

func (ep *CommandStatusEP) Unmarshal(b []byte) error {
	return binary.Read(bytes.NewBuffer(b), binary.LittleEndian, ep)
}

type completedPkt struct {
	ConnectionHandle   uint16
	NumOfCompletedPkts uint16
}

type NumberOfCompletedPktsEP struct {
	NumberOfHandles uint8
	Packets         []completedPkt
}

func (ep *NumberOfCompletedPktsEP) Unmarshal(b []byte) error {
	if len(b) < 1 {
		return errors.New("event: malformed number-of-completed-packets")
	}
	ep.NumberOfHandles = b[0]
	n := int(ep.NumberOfHandles)
	buf := bytes.NewBuffer(b[1:])
	ep.Packets = make([]completedPkt, n)
	for i := 0; i < n; i++ {
		if err := binary.Read(buf, binary.LittleEndian, &ep.Packets[i]); err != nil {
			return err
		}
		ep.Packets[i].ConnectionHandle &= 0x0FFF
	}
	return nil
}

func (p completedPkt) Handle() uint16 { return p.ConnectionHandle }
func (p completedPkt) Count() uint16  { return p.NumOfCompletedPkts }

// Handles returns the connection handles reported by the event, in
// order; Counts returns the matching completed-packet counts. Both are
// plain slices so callers outside the package don't need the
// unexported completedPkt type.
func (ep *NumberOfCompletedPktsEP) Handles() []uint16 {
	hs := make([]uint16, len(ep.Packets))
	for i, p := range ep.Packets {
		hs[i] = p.ConnectionHandle
	}
	return hs
}

func (ep *NumberOfCompletedPktsEP) Counts() []uint16 {
	cs := make([]uint16, len(ep.Packets))
	for i, p := range ep.Packets {
		cs[i] = p.NumOfCompletedPkts
	}
	return cs
}

// --- LE meta subevent parameters ---

type LEConnectionCompleteEP struct {
	SubeventCode        uint8
	Status              uint8
	ConnectionHandle    uint16
	Role                uint8
	PeerAddressType     uint8
	PeerAddress         [6]byte
	ConnInterval        uint16
	ConnLatency         uint16
	SupervisionTimeout  uint16
	MasterClockAccuracy uint8
}

func (ep *LEConnectionCompleteEP) Unmarshal(b []byte) error {
	return binary.Read(bytes.NewBuffer(b), binary.LittleEndian, ep)
}

// LEEnhancedConnectionCompleteEP is the LE Enhanced Connection Complete
// subevent, carrying the peer's resolvable private address (all-zero
// when the peer didn't resolve one) in addition to the fields of the
// plain Connection Complete subevent.
type LEEnhancedConnectionCompleteEP struct {
	SubeventCode              uint8
	Status                    uint8
	ConnectionHandle          uint16
	Role                      uint8
	PeerAddressType           uint8
	PeerAddress               [6]byte
	LocalResolvablePrivateAddress [6]byte
	PeerResolvablePrivateAddress  [6]byte
	ConnInterval              uint16
	ConnLatency               uint16
	SupervisionTimeout        uint16
	MasterClockAccuracy       uint8
}

func (ep *LEEnhancedConnectionCompleteEP) Unmarshal(b []byte) error {
	return binary.Read(bytes.NewBuffer(b), binary.LittleEndian, ep)
}

// PeerResolvableAddressPresent reports whether the controller reported
// a non-zero resolvable private address for the peer.
func (ep *LEEnhancedConnectionCompleteEP) PeerResolvableAddressPresent() bool {
	return ep.PeerResolvablePrivateAddress != [6]byte{}
}

type LEConnectionUpdateCompleteEP struct {
	SubeventCode       uint8
	Status             uint8
	ConnectionHandle   uint16
	ConnInterval       uint16
	ConnLatency        uint16
	SupervisionTimeout uint16
}

func (ep *LEConnectionUpdateCompleteEP) Unmarshal(b []byte) error {
	return binary.Read(bytes.NewBuffer(b), binary.LittleEndian, ep)
}
