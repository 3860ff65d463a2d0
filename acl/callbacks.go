package acl

// ConnectionCallbacks is the Classic connect-attempt outcome sink,
// registered once via RegisterCallbacks.
type ConnectionCallbacks interface {
	OnConnectSuccess(conn *Connection)
	OnConnectFail(addr Address, reason uint8)
}

// LeConnectionCallbacks is the LE connect-attempt outcome sink,
// registered once via RegisterLeCallbacks.
type LeConnectionCallbacks interface {
	OnLeConnectSuccess(addr AddressWithType, conn *Connection)
	OnLeConnectFail(addr AddressWithType, reason uint8)
}

// ConnectionManagementCallbacks receives per-link Classic events for
// the lifetime of one connection.
type ConnectionManagementCallbacks interface {
	OnDisconnection(reason uint8)
	OnAuthenticationComplete(status uint8)
	OnEncryptionChange(enabled uint8)
	OnReadRemoteSupportedFeaturesComplete(features [8]byte)
	OnRoleChange(newRole uint8)
	OnModeChange(mode uint8, interval uint16)
	OnLinkKeyRequest()
	OnPinCodeRequest()
	OnIoCapabilityRequest()
	OnIoCapabilityResponse(ioCapability, oobDataPresent, authRequirement uint8)
	OnUserConfirmationRequest(numericValue uint32)
	OnSimplePairingComplete(status uint8)
	OnQosSetupComplete(status uint8)
}

// LeConnectionManagementCallbacks receives per-link LE events for the
// lifetime of one LE connection.
type LeConnectionManagementCallbacks interface {
	OnDisconnection(reason uint8)
	OnConnectionUpdate(interval, latency, timeout uint16)
}

// NopConnectionManagementCallbacks is embeddable by callers that only
// care about a subset of ConnectionManagementCallbacks.
type NopConnectionManagementCallbacks struct{}

func (NopConnectionManagementCallbacks) OnDisconnection(uint8)                      {}
func (NopConnectionManagementCallbacks) OnAuthenticationComplete(uint8)             {}
func (NopConnectionManagementCallbacks) OnEncryptionChange(uint8)                   {}
func (NopConnectionManagementCallbacks) OnReadRemoteSupportedFeaturesComplete([8]byte) {}
func (NopConnectionManagementCallbacks) OnRoleChange(uint8)                         {}
func (NopConnectionManagementCallbacks) OnModeChange(uint8, uint16)                 {}
func (NopConnectionManagementCallbacks) OnLinkKeyRequest()                          {}
func (NopConnectionManagementCallbacks) OnPinCodeRequest()                          {}
func (NopConnectionManagementCallbacks) OnIoCapabilityRequest()                     {}
func (NopConnectionManagementCallbacks) OnIoCapabilityResponse(uint8, uint8, uint8)  {}
func (NopConnectionManagementCallbacks) OnUserConfirmationRequest(uint32)           {}
func (NopConnectionManagementCallbacks) OnSimplePairingComplete(uint8)              {}
func (NopConnectionManagementCallbacks) OnQosSetupComplete(uint8)                   {}

// NopLeConnectionManagementCallbacks is the LE analogue of
// NopConnectionManagementCallbacks.
type NopLeConnectionManagementCallbacks struct{}

func (NopLeConnectionManagementCallbacks) OnDisconnection(uint8)             {}
func (NopLeConnectionManagementCallbacks) OnConnectionUpdate(uint16, uint16, uint16) {}

// SecurityHook lets a registered Security subsystem answer pairing
// events; if unset, the sub-manager answers with a negative reply
// command instead.
type SecurityHook interface {
	HandleLinkKeyRequest(addr Address) (accepted bool, linkKey [16]byte)
	HandlePinCodeRequest(addr Address) (accepted bool)
	HandleIoCapabilityRequest(addr Address) (accepted bool)
	HandleUserConfirmationRequest(addr Address) (accept bool)
}
