package acl

import "time"

// Config holds the manager's fixed configuration. There is no flag
// parsing, no environment lookup and nothing persisted: a caller
// constructs one Config value and passes it to New.
type Config struct {
	// HandlePrefixMask is carried in the configuration but not read by
	// the manager: handles from events and ACL headers are always masked
	// with 0x0FFF, whatever this field holds. The Qualcomm debug handle
	// (0x0EDC) is dropped by the HCI layer on inbound ACL data.
	HandlePrefixMask uint16

	// DefaultLinkPolicySettings is ReadDefaultLinkPolicySettings' value
	// before any WriteDefaultLinkPolicySettings; it is not written to the
	// controller at startup.
	DefaultLinkPolicySettings uint16

	// RPARotationInterval draws each rotation delay uniformly from
	// [Min, Min+RandomSpan).
	RPARotationInterval struct {
		Min        time.Duration
		RandomSpan time.Duration
	}

	// ControllerCredits describes the buffer pool the scheduler
	// multiplexes onto; LE may alias Classic's pool on controllers that
	// don't report a dedicated LE buffer count.
	ControllerCredits struct {
		TotalACLClassic uint16
		TotalACLLE      uint16
		MTUClassic      uint16
		MTULE           uint16
	}
}

// DefaultConfig matches spec defaults: RPA rotation drawn from
// [7min, 15min).
func DefaultConfig() Config {
	var c Config
	c.HandlePrefixMask = 0x0FFF
	c.DefaultLinkPolicySettings = 0
	c.RPARotationInterval.Min = 420 * time.Second
	c.RPARotationInterval.RandomSpan = 480 * time.Second
	c.ControllerCredits.TotalACLClassic = 8
	c.ControllerCredits.TotalACLLE = 8
	c.ControllerCredits.MTUClassic = 1021
	c.ControllerCredits.MTULE = 251
	return c
}
