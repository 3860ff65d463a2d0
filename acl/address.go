package acl

import "fmt"

// Address is a 48-bit Bluetooth device address, stored most-significant
// byte first the way net.HardwareAddr prints, even though the wire
// carries it least-significant-octet first.
type Address [6]byte

func (a Address) String() string {
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X", a[0], a[1], a[2], a[3], a[4], a[5])
}

// AddressType distinguishes public/random and device/identity address
// kinds, matching the four-way split the controller reports.
type AddressType uint8

const (
	PublicDevice AddressType = iota
	RandomDevice
	PublicIdentity
	RandomIdentity
)

func (t AddressType) String() string {
	switch t {
	case PublicDevice:
		return "PublicDevice"
	case RandomDevice:
		return "RandomDevice"
	case PublicIdentity:
		return "PublicIdentity"
	case RandomIdentity:
		return "RandomIdentity"
	default:
		return "Unknown"
	}
}

// AddressWithType is Go-comparable and so usable directly as a map key,
// which the connecting-peer set invariant requires.
type AddressWithType struct {
	Address Address
	Type    AddressType
}

func (a AddressWithType) String() string {
	return fmt.Sprintf("%s/%s", a.Address, a.Type)
}
