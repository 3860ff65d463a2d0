package acl

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/aclhost/aclmgr/internal/cmd"
	"github.com/aclhost/aclmgr/internal/event"
	"github.com/aclhost/aclmgr/hci"
)

// defaultPacketType is the allowed packet-type mask for Classic
// CreateConnection: DM1/DM3/DM5/DH1/DH3/DH5, no 2/3-Mbps-only types.
const defaultPacketType = 0xCC18

// classicManager owns every live Classic (BR/EDR) connection and the
// set of addresses with an outstanding connect attempt.
type classicManager struct {
	log   *logrus.Entry
	layer hci.Layer
	exec  *serialExecutor
	sched *scheduler
	demux *aclDemux
	cfg   Config

	conns      map[uint16]*Connection
	connecting map[Address]struct{}

	callbacks ConnectionCallbacks
	security  SecurityHook

	defaultLinkPolicy uint16
}

func newClassicManager(log *logrus.Entry, layer hci.Layer, exec *serialExecutor, sched *scheduler, demux *aclDemux, cfg Config) *classicManager {
	m := &classicManager{
		log:               log.WithField("component", "classic"),
		layer:             layer,
		exec:              exec,
		sched:             sched,
		demux:             demux,
		cfg:               cfg,
		conns:             make(map[uint16]*Connection),
		connecting:        make(map[Address]struct{}),
		defaultLinkPolicy: cfg.DefaultLinkPolicySettings,
	}
	m.subscribe()
	return m
}

func (m *classicManager) subscribe() {
	sub := func(code event.Code, f func([]byte)) {
		m.layer.SubscribeEvent(code, event.HandlerFunc(func(b []byte) error {
			m.exec.Post(func() { f(b) })
			return nil
		}))
	}
	sub(event.ConnectionRequest, m.onConnectionRequest)
	sub(event.ConnectionComplete, m.onConnectionComplete)
	// DisconnectionComplete carries no link-type tag, so the façade owns
	// that subscription and demultiplexes by handle ownership; see
	// manager.go.
	sub(event.AuthenticationComplete, m.onAuthenticationComplete)
	sub(event.EncryptionChange, m.onEncryptionChange)
	sub(event.ReadRemoteSupportedFeaturesComplete, m.onReadRemoteSupportedFeaturesComplete)
	sub(event.QoSSetupComplete, m.onQoSSetupComplete)
	sub(event.RoleChange, m.onRoleChange)
	sub(event.ModeChange, m.onModeChange)
	sub(event.LinkKeyRequest, m.onLinkKeyRequest)
	sub(event.PINCodeRequest, m.onPinCodeRequest)
	sub(event.IOCapabilityRequest, m.onIoCapabilityRequest)
	sub(event.IOCapabilityResponse, m.onIoCapabilityResponse)
	sub(event.UserConfirmationRequest, m.onUserConfirmationRequest)
	sub(event.SimplePairingComplete, m.onSimplePairingComplete)
}

// --- public operations (always called already on the executor) ---

func (m *classicManager) RegisterCallbacks(cb ConnectionCallbacks) error {
	if m.callbacks != nil {
		return &ClientMisuse{Reason: "classic connection callbacks already registered"}
	}
	m.callbacks = cb
	return nil
}

func (m *classicManager) SetSecurityModule(hook SecurityHook) { m.security = hook }

func (m *classicManager) CreateConnection(addr Address) error {
	if _, ok := m.connecting[addr]; ok {
		m.log.WithField("addr", addr).Warn("classic: create_connection already outstanding, ignoring")
		return nil
	}
	m.connecting[addr] = struct{}{}
	_, err := m.layer.EnqueueCommand(cmd.CreateConnection{
		BDAddr:                 addr,
		PacketType:             defaultPacketType,
		PageScanRepetitionMode: 0x01, // R1
		ClockOffset:            0,
		AllowRoleSwitch:        1,
	})
	if err != nil {
		delete(m.connecting, addr)
	}
	return err
}

func (m *classicManager) CancelConnect(addr Address) error {
	if _, ok := m.connecting[addr]; !ok {
		return nil
	}
	_, err := m.layer.EnqueueCommand(cmd.CreateConnectionCancel{BDAddr: addr})
	return err
}

// allowedDisconnectReasons is the set of HCI error codes the Core spec
// permits as the Reason parameter of the Disconnect command.
var allowedDisconnectReasons = map[uint8]struct{}{
	0x05: {}, // Authentication Failure
	0x13: {}, // Remote User Terminated Connection
	0x14: {}, // Remote Device Terminated Connection due to Low Resources
	0x15: {}, // Remote Device Terminated Connection due to Power Off
	0x1A: {}, // Unsupported Remote Feature
	0x29: {}, // Pairing With Unit Key Not Supported
	0x3B: {}, // Unacceptable Connection Parameters
}

func (m *classicManager) Disconnect(handle uint16, reason uint8) error {
	if _, ok := m.conns[handle]; !ok {
		return &ClientMisuse{Reason: "disconnect on unknown handle"}
	}
	if _, ok := allowedDisconnectReasons[reason]; !ok {
		return &ClientMisuse{Reason: fmt.Sprintf("disconnect reason 0x%02X not allowed", reason)}
	}
	_, err := m.layer.EnqueueCommand(cmd.Disconnect{ConnectionHandle: handle, Reason: reason})
	return err
}

func (m *classicManager) AuthenticationRequested(handle uint16) error {
	_, err := m.layer.EnqueueCommand(cmd.AuthenticationRequested{ConnectionHandle: handle})
	return err
}

func (m *classicManager) SetConnectionEncryption(handle uint16, enable uint8) error {
	_, err := m.layer.EnqueueCommand(cmd.SetConnectionEncryption{ConnectionHandle: handle, EncryptionEnable: enable})
	return err
}

func (m *classicManager) SwitchRole(addr Address, role uint8) error {
	_, err := m.layer.EnqueueCommand(cmd.SwitchRole{BDAddr: addr, Role: role})
	return err
}

func (m *classicManager) MasterLinkKey(flag uint8) error {
	_, err := m.layer.EnqueueCommand(cmd.MasterLinkKey{KeyFlag: flag})
	return err
}

func (m *classicManager) ReadLinkPolicySettings(handle uint16) error {
	_, err := m.layer.EnqueueCommand(cmd.ReadLinkPolicySettings{ConnectionHandle: handle})
	return err
}

func (m *classicManager) WriteLinkPolicySettings(handle uint16, settings uint16) error {
	_, err := m.layer.EnqueueCommand(cmd.WriteLinkPolicySettings{ConnectionHandle: handle, LinkPolicySettings: settings})
	return err
}

func (m *classicManager) ReadDefaultLinkPolicySettings() (uint16, error) {
	return m.defaultLinkPolicy, nil
}

func (m *classicManager) WriteDefaultLinkPolicySettings(settings uint16) error {
	_, err := m.layer.EnqueueCommand(cmd.WriteDefaultLinkPolicySettings{DefaultLinkPolicySettings: settings})
	if err == nil {
		m.defaultLinkPolicy = settings
	}
	return err
}

func (m *classicManager) HoldMode(handle uint16, maxInterval, minInterval uint16) error {
	_, err := m.layer.EnqueueCommand(cmd.HoldMode{ConnectionHandle: handle, HoldModeMaxInterval: maxInterval, HoldModeMinInterval: minInterval})
	return err
}

func (m *classicManager) SniffMode(handle uint16, maxInterval, minInterval, attempt, timeout uint16) error {
	_, err := m.layer.EnqueueCommand(cmd.SniffMode{
		ConnectionHandle: handle, SniffMaxInterval: maxInterval, SniffMinInterval: minInterval,
		SniffAttempt: attempt, SniffTimeout: timeout,
	})
	return err
}

func (m *classicManager) ExitSniffMode(handle uint16) error {
	_, err := m.layer.EnqueueCommand(cmd.ExitSniffMode{ConnectionHandle: handle})
	return err
}

func (m *classicManager) ParkMode(handle uint16, maxInterval, minInterval uint16) error {
	_, err := m.layer.EnqueueCommand(cmd.ParkMode{ConnectionHandle: handle, BeaconMaxInterval: maxInterval, BeaconMinInterval: minInterval})
	return err
}

func (m *classicManager) ExitParkMode(handle uint16) error {
	_, err := m.layer.EnqueueCommand(cmd.ExitParkMode{ConnectionHandle: handle})
	return err
}

func (m *classicManager) QosSetup(handle uint16, flags, serviceType uint8, tokenRate, peakBandwidth, latency, delayVariation uint32) error {
	_, err := m.layer.EnqueueCommand(cmd.QoSSetup{
		ConnectionHandle: handle, Flags: flags, ServiceType: serviceType,
		TokenRate: tokenRate, PeakBandwidth: peakBandwidth, Latency: latency, DelayVariation: delayVariation,
	})
	return err
}

func (m *classicManager) FlowSpecification(handle uint16, flags, direction, serviceType uint8, tokenRate, bucketSize, peakBandwidth, accessLatency uint32) error {
	_, err := m.layer.EnqueueCommand(cmd.FlowSpecification{
		ConnectionHandle: handle, Flags: flags, FlowDirection: direction, ServiceType: serviceType,
		TokenRate: tokenRate, TokenBucketSize: bucketSize, PeakBandwidth: peakBandwidth, AccessLatency: accessLatency,
	})
	return err
}

func (m *classicManager) RoleDiscovery(handle uint16) error {
	_, err := m.layer.EnqueueCommand(cmd.RoleDiscovery{ConnectionHandle: handle})
	return err
}

// --- event handlers (run on the executor) ---

func (m *classicManager) onConnectionRequest(b []byte) {
	var ep event.ConnectionRequestEP
	if err := ep.Unmarshal(b); err != nil {
		m.log.WithError(err).Warn("classic: malformed ConnectionRequest")
		return
	}
	// auto-accept with role switch allowed, per the resolved open question.
	_, err := m.layer.EnqueueCommand(cmd.AcceptConnectionRequest{BDAddr: ep.BDAddr[:], Role: 0x01})
	if err != nil {
		m.log.WithError(err).Warn("classic: AcceptConnectionRequest failed")
	}
}

func (m *classicManager) onConnectionComplete(b []byte) {
	var ep event.ConnectionCompleteEP
	if err := ep.Unmarshal(b); err != nil {
		m.log.WithError(err).Warn("classic: malformed ConnectionComplete")
		return
	}
	delete(m.connecting, ep.BDAddr)

	if ep.Status != 0 {
		if m.callbacks != nil {
			m.callbacks.OnConnectFail(ep.BDAddr, ep.Status)
		}
		return
	}

	handle := ep.ConnectionHandle & 0x0FFF
	if _, exists := m.conns[handle]; exists {
		m.log.WithField("handle", handle).Error("classic: handle already present on ConnectionComplete")
		return
	}

	conn := &Connection{
		id:         newCorrelationID(),
		Handle:     handle,
		LinkType:   Classic,
		Role:       Master,
		RemoteAddr: AddressWithType{Address: ep.BDAddr, Type: PublicDevice},
		assembler:  newAssembler(m.log),
		outbound:   newQueuePair(),
		inbound:    make(chan []byte, inboundQueueDepth),
	}
	conn.up = conn.outbound.upEnd()
	conn.notify = m.sched.Notify
	m.conns[handle] = conn
	m.demux.Register(handle, conn)
	m.sched.Register(handle, Classic, conn.outbound.downEnd())

	if m.callbacks != nil {
		m.callbacks.OnConnectSuccess(conn)
	}
}

// onDisconnectionComplete is invoked by the façade (which demultiplexes
// DisconnectionComplete to whichever sub-manager owns the handle, since
// that event carries no link-type tag of its own). Runs on the executor.
func (m *classicManager) onDisconnectionComplete(handle uint16, reason uint8) bool {
	conn, ok := m.conns[handle]
	if !ok {
		return false
	}
	delete(m.conns, handle)
	m.demux.Unregister(handle)
	m.sched.Unregister(handle)
	close(conn.inbound)
	if cb := conn.classicCallbacks(); cb != nil {
		cb.OnDisconnection(reason)
	}
	return true
}

func (m *classicManager) withConn(handle uint16, f func(*Connection, ConnectionManagementCallbacks)) {
	conn, ok := m.conns[handle]
	if !ok {
		return
	}
	f(conn, conn.classicCallbacks())
}

func (m *classicManager) onAuthenticationComplete(b []byte) {
	var ep event.AuthenticationCompleteEP
	if err := ep.Unmarshal(b); err != nil {
		return
	}
	m.withConn(ep.ConnectionHandle&0x0FFF, func(_ *Connection, cb ConnectionManagementCallbacks) {
		if cb != nil {
			cb.OnAuthenticationComplete(ep.Status)
		}
	})
}

func (m *classicManager) onEncryptionChange(b []byte) {
	var ep event.EncryptionChangeEP
	if err := ep.Unmarshal(b); err != nil {
		return
	}
	m.withConn(ep.ConnectionHandle&0x0FFF, func(_ *Connection, cb ConnectionManagementCallbacks) {
		if cb != nil {
			cb.OnEncryptionChange(ep.EncryptionEnabled)
		}
	})
}

func (m *classicManager) onReadRemoteSupportedFeaturesComplete(b []byte) {
	var ep event.ReadRemoteSupportedFeaturesCompleteEP
	if err := ep.Unmarshal(b); err != nil {
		return
	}
	m.withConn(ep.ConnectionHandle&0x0FFF, func(_ *Connection, cb ConnectionManagementCallbacks) {
		if cb != nil {
			cb.OnReadRemoteSupportedFeaturesComplete(ep.LMPFeatures)
		}
	})
}

func (m *classicManager) onQoSSetupComplete(b []byte) {
	var ep event.QoSSetupCompleteEP
	if err := ep.Unmarshal(b); err != nil {
		return
	}
	m.withConn(ep.ConnectionHandle&0x0FFF, func(_ *Connection, cb ConnectionManagementCallbacks) {
		if cb != nil {
			cb.OnQosSetupComplete(ep.Status)
		}
	})
}

func (m *classicManager) onRoleChange(b []byte) {
	var ep event.RoleChangeEP
	if err := ep.Unmarshal(b); err != nil {
		return
	}
	for _, conn := range m.conns {
		if conn.RemoteAddr.Address == ep.BDAddr {
			if cb := conn.classicCallbacks(); cb != nil {
				cb.OnRoleChange(ep.NewRole)
			}
			return
		}
	}
}

func (m *classicManager) onModeChange(b []byte) {
	var ep event.ModeChangeEP
	if err := ep.Unmarshal(b); err != nil {
		return
	}
	m.withConn(ep.ConnectionHandle&0x0FFF, func(_ *Connection, cb ConnectionManagementCallbacks) {
		if cb != nil {
			cb.OnModeChange(ep.CurrentMode, ep.Interval)
		}
	})
}

// classicCallbacksFor finds the ConnectionManagementCallbacks for the
// connection matching addr, if one is registered. Used by the pairing
// handlers below to notify the connection owner once the SecurityHook
// path (the primary way these requests are answered) is bypassed.
func (m *classicManager) classicCallbacksFor(addr Address) ConnectionManagementCallbacks {
	for _, conn := range m.conns {
		if conn.RemoteAddr.Address == addr {
			return conn.classicCallbacks()
		}
	}
	return nil
}

func (m *classicManager) onLinkKeyRequest(b []byte) {
	var ep event.LinkKeyRequestEP
	if err := ep.Unmarshal(b); err != nil {
		return
	}
	if m.security != nil {
		if accepted, key := m.security.HandleLinkKeyRequest(ep.BDAddr); accepted {
			m.layer.EnqueueCommand(cmd.LinkKeyRequestReply{BDAddr: ep.BDAddr, LinkKey: key})
			return
		}
		m.layer.EnqueueCommand(cmd.LinkKeyRequestNegativeReply{BDAddr: ep.BDAddr})
		return
	}
	if cb := m.classicCallbacksFor(ep.BDAddr); cb != nil {
		cb.OnLinkKeyRequest()
	}
	m.layer.EnqueueCommand(cmd.LinkKeyRequestNegativeReply{BDAddr: ep.BDAddr})
}

func (m *classicManager) onPinCodeRequest(b []byte) {
	var ep event.PINCodeRequestEP
	if err := ep.Unmarshal(b); err != nil {
		return
	}
	if m.security != nil {
		if m.security.HandlePinCodeRequest(ep.BDAddr) {
			return
		}
		m.layer.EnqueueCommand(cmd.PINCodeRequestNegativeReply{BDAddr: ep.BDAddr})
		return
	}
	if cb := m.classicCallbacksFor(ep.BDAddr); cb != nil {
		cb.OnPinCodeRequest()
	}
	m.layer.EnqueueCommand(cmd.PINCodeRequestNegativeReply{BDAddr: ep.BDAddr})
}

func (m *classicManager) onIoCapabilityRequest(b []byte) {
	var ep event.IOCapabilityRequestEP
	if err := ep.Unmarshal(b); err != nil {
		return
	}
	if m.security != nil {
		if m.security.HandleIoCapabilityRequest(ep.BDAddr) {
			m.layer.EnqueueCommand(cmd.IOCapabilityReply{
				BDAddr:          ep.BDAddr[:],
				IOCapability:    0x03, // NoInputNoOutput
				OOBDataPresent:  0x00,
				AuthRequirement: 0x00, // no MITM, no bonding
			})
			return
		}
		m.layer.EnqueueCommand(cmd.IOCapabilityRequestNegativeReply{BDAddr: ep.BDAddr[:], Reason: 0x05 /* pairing not allowed */})
		return
	}
	if cb := m.classicCallbacksFor(ep.BDAddr); cb != nil {
		cb.OnIoCapabilityRequest()
	}
	m.layer.EnqueueCommand(cmd.IOCapabilityRequestNegativeReply{BDAddr: ep.BDAddr[:], Reason: 0x05 /* pairing not allowed */})
}

func (m *classicManager) onIoCapabilityResponse(b []byte) {
	var ep event.IOCapabilityResponseEP
	if err := ep.Unmarshal(b); err != nil {
		return
	}
	for _, conn := range m.conns {
		if conn.RemoteAddr.Address == ep.BDAddr {
			if cb := conn.classicCallbacks(); cb != nil {
				cb.OnIoCapabilityResponse(ep.IOCapability, ep.OOBDataPresent, ep.AuthRequirement)
			}
			return
		}
	}
}

func (m *classicManager) onUserConfirmationRequest(b []byte) {
	var ep event.UserConfirmationRequestEP
	if err := ep.Unmarshal(b); err != nil {
		return
	}
	if m.security != nil {
		if m.security.HandleUserConfirmationRequest(ep.BDAddr) {
			m.layer.EnqueueCommand(cmd.UserConfirmationRequestReply{BDAddr: ep.BDAddr[:]})
			return
		}
		m.layer.EnqueueCommand(cmd.UserConfirmationRequestNegativeReply{BDAddr: ep.BDAddr[:]})
		return
	}
	for _, conn := range m.conns {
		if conn.RemoteAddr.Address == ep.BDAddr {
			if cb := conn.classicCallbacks(); cb != nil {
				cb.OnUserConfirmationRequest(ep.NumericValue)
			}
			break
		}
	}
	m.layer.EnqueueCommand(cmd.UserConfirmationRequestNegativeReply{BDAddr: ep.BDAddr[:]})
}

func (m *classicManager) onSimplePairingComplete(b []byte) {
	var ep event.SimplePairingCompleteEP
	if err := ep.Unmarshal(b); err != nil {
		return
	}
	for _, conn := range m.conns {
		if conn.RemoteAddr.Address == ep.BDAddr {
			if cb := conn.classicCallbacks(); cb != nil {
				cb.OnSimplePairingComplete(ep.Status)
			}
			return
		}
	}
}
