package acl

import (
	"crypto/aes"
	"crypto/rand"
	"math/big"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/aclhost/aclmgr/internal/cmd"
	"github.com/aclhost/aclmgr/internal/event"
	"github.com/aclhost/aclmgr/hci"
)

// leExtendedCreateConnectionFeatureBit is bit 4 of the LE local
// supported features octet 0: LL Privacy / Extended Advertising.
const leExtendedCreateConnectionFeatureBit = 0x10

// leManager owns every live LE connection, the set of peers with an
// outstanding connect attempt, and the local LE initiator identity
// including its RPA rotation.
type leManager struct {
	log   *logrus.Entry
	layer hci.Layer
	exec  *serialExecutor
	sched *scheduler
	demux *aclDemux
	cfg   Config

	conns      map[uint16]*Connection
	connecting map[AddressWithType]struct{}

	callbacks LeConnectionCallbacks

	supportsExtendedCreate bool

	mu             sync.Mutex
	irk            [16]byte
	initiatorAddr  AddressWithType
	initiatorFixed bool
	rotationTimer  *time.Timer
}

func newLeManager(log *logrus.Entry, layer hci.Layer, exec *serialExecutor, sched *scheduler, demux *aclDemux, cfg Config) *leManager {
	m := &leManager{
		log:        log.WithField("component", "le"),
		layer:      layer,
		exec:       exec,
		sched:      sched,
		demux:      demux,
		cfg:        cfg,
		conns:      make(map[uint16]*Connection),
		connecting: make(map[AddressWithType]struct{}),
	}
	rand.Read(m.irk[:])
	m.initiatorAddr = AddressWithType{Type: RandomDevice}
	rand.Read(m.initiatorAddr.Address[:])
	m.layer.SubscribeLEMeta(event.HandlerFunc(m.onLEMeta))
	return m
}

// start probes the controller's LE feature bits and arms RPA rotation
// if the initiator address is still of type RandomDevice.
func (m *leManager) start() {
	res, err := m.layer.EnqueueCommand(cmd.LEReadLocalSupportedFeatures{})
	if err == nil && len(res.ReturnParameters) >= 9 {
		m.supportsExtendedCreate = res.ReturnParameters[1]&leExtendedCreateConnectionFeatureBit != 0
	}
	m.mu.Lock()
	if m.initiatorAddr.Type == RandomDevice && !m.initiatorFixed {
		m.armRotationLocked()
	}
	m.mu.Unlock()
}

func (m *leManager) stop() {
	m.mu.Lock()
	if m.rotationTimer != nil {
		m.rotationTimer.Stop()
	}
	m.mu.Unlock()
}

// --- public operations ---

func (m *leManager) RegisterCallbacks(cb LeConnectionCallbacks) error {
	if m.callbacks != nil {
		return &ClientMisuse{Reason: "LE connection callbacks already registered"}
	}
	m.callbacks = cb
	return nil
}

func (m *leManager) CreateLeConnection(peer AddressWithType) error {
	if _, ok := m.connecting[peer]; ok {
		m.log.WithField("peer", peer).Warn("le: create_le_connection already outstanding, ignoring")
		return nil
	}
	m.connecting[peer] = struct{}{}

	var err error
	if m.supportsExtendedCreate {
		_, err = m.layer.EnqueueCommand(cmd.LEExtendedCreateConnection{
			InitiatorFilterPolicy: 0x01, // USE_PEER_ADDRESS
			OwnAddressType:        uint8(RandomDevice),
			PeerAddressType:       uint8(peer.Type),
			PeerAddress:           peer.Address,
			InitiatingPHYs:        0x01, // 1M PHY only
			ScanInterval:          0x0060,
			ScanWindow:            0x0030,
			ConnIntervalMin:       0x0018,
			ConnIntervalMax:       0x0028,
			ConnLatency:           0x0000,
			SupervisionTimeout:    0x01F4,
			MinimumCELength:       0x0002,
			MaximumCELength:       0x0C00,
		})
	} else {
		_, err = m.layer.EnqueueCommand(cmd.LECreateConnection{
			LEScanInterval:        0x0060,
			LEScanWindow:          0x0030,
			InitiatorFilterPolicy: 0x01,
			PeerAddressType:       uint8(peer.Type),
			PeerAddress:           peer.Address,
			OwnAddressType:        uint8(RandomDevice),
			ConnIntervalMin:       0x0018,
			ConnIntervalMax:       0x0028,
			ConnLatency:           0x0000,
			SupervisionTimeout:    0x01F4,
			MinimumCELength:       0x0002,
			MaximumCELength:       0x0C00,
		})
	}
	if err != nil {
		delete(m.connecting, peer)
	}
	return err
}

// SetLeInitiatorAddress fixes the initiator address to addr, which must
// be RandomDevice; it cancels any pending rotation.
func (m *leManager) SetLeInitiatorAddress(addr AddressWithType) error {
	if addr.Type != RandomDevice {
		return &ClientMisuse{Reason: "LE initiator address must be RandomDevice"}
	}
	_, err := m.layer.EnqueueCommand(cmd.LESetRandomAddress{RandomAddress: addr.Address})
	if err != nil {
		return err
	}
	m.mu.Lock()
	if m.rotationTimer != nil {
		m.rotationTimer.Stop()
		m.rotationTimer = nil
	}
	m.initiatorAddr = addr
	m.initiatorFixed = true
	m.mu.Unlock()
	return nil
}

// --- RPA rotation ---

func (m *leManager) armRotationLocked() {
	d := m.cfg.RPARotationInterval.Min
	span := m.cfg.RPARotationInterval.RandomSpan
	if span > 0 {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(span)))
		if err == nil {
			d += time.Duration(n.Int64())
		}
	}
	m.rotationTimer = time.AfterFunc(d, func() {
		m.exec.Post(m.rotateRandomAddress)
	})
}

// rotateRandomAddress derives a fresh RPA from the current IRK and
// re-arms the timer. Runs on the executor.
func (m *leManager) rotateRandomAddress() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.initiatorFixed {
		return
	}
	wire, err := generateRPA(m.irk)
	if err != nil {
		m.log.WithError(err).Error("le: RPA generation failed")
		m.armRotationLocked()
		return
	}
	// generateRPA yields transmission order; Address values are kept
	// most-significant octet first and LESetRandomAddress reverses them.
	var addr Address
	for i := range wire {
		addr[i] = wire[5-i]
	}
	if _, err := m.layer.EnqueueCommand(cmd.LESetRandomAddress{RandomAddress: addr}); err != nil {
		m.log.WithError(err).Warn("le: LeSetRandomAddress failed")
	}
	m.initiatorAddr = AddressWithType{Address: addr, Type: RandomDevice}
	m.armRotationLocked()
}

// generateRPA derives a resolvable private address from irk and 24 bits
// of fresh randomness, per the Bluetooth Core Spec's ah() function: the
// top two bits of prand[2] are forced to 0b01 marking "resolvable
// random"; hash = AES-128(irk, prand padded to 16 bytes)[0:3]; the
// address on the wire is [hash[0] hash[1] hash[2] prand[0] prand[1]
// prand[2]], and the returned array holds the octets in that wire order
// (not the most-significant-first order of other Address values).
func generateRPA(irk [16]byte) (Address, error) {
	var prand [3]byte
	if _, err := rand.Read(prand[:]); err != nil {
		return Address{}, err
	}
	prand[2] = (prand[2] & 0x3F) | 0x40
	return rpaFromPrand(irk, prand)
}

func rpaFromPrand(irk [16]byte, prand [3]byte) (Address, error) {
	block, err := aes.NewCipher(irk[:])
	if err != nil {
		return Address{}, err
	}
	var input, hash [16]byte
	copy(input[:3], prand[:])
	block.Encrypt(hash[:], input[:])

	var addr Address
	copy(addr[0:3], hash[0:3])
	copy(addr[3:6], prand[:])
	return addr, nil
}

// --- event handling: the LE sub-manager is the sole owner of every LE
// meta sub-event and implements the exhaustive switch itself. ---

func (m *leManager) onLEMeta(b []byte) error {
	m.exec.Post(func() { m.dispatchLEMeta(b) })
	return nil
}

func (m *leManager) dispatchLEMeta(b []byte) {
	sub := event.LESubCode(b[0])
	switch sub {
	case event.LEConnectionComplete:
		m.onConnectionComplete(b)
	case event.LEEnhancedConnectionComplete:
		m.onEnhancedConnectionComplete(b)
	case event.LEConnectionUpdateComplete:
		m.onConnectionUpdateComplete(b)
	case event.LEAdvertisingReport, event.LEReadRemoteUsedFeaturesComplete,
		event.LELTKRequest, event.LERemoteConnectionParameterRequest:
		// Scanning, LTK/SMP and connection-parameter negotiation belong to
		// other modules per this core's non-goals; harmless to see but
		// nothing here consumes them.
		m.log.WithField("subevent", sub).Debug("le: subevent out of ACL core scope, ignoring")
	default:
		m.log.WithField("subevent", sub).Panic("le: unhandled LE subevent in exhaustive dispatch")
	}
}

func (m *leManager) onConnectionComplete(b []byte) {
	var ep event.LEConnectionCompleteEP
	if err := ep.Unmarshal(b); err != nil {
		m.log.WithError(err).Warn("le: malformed LEConnectionComplete")
		return
	}
	peer := AddressWithType{Address: ep.PeerAddress, Type: AddressType(ep.PeerAddressType)}
	delete(m.connecting, peer)

	if ep.Status != 0 {
		if m.callbacks != nil {
			m.callbacks.OnLeConnectFail(peer, ep.Status)
		}
		return
	}
	m.createConnection(ep.ConnectionHandle&0x0FFF, peer, ep.Role)
}

func (m *leManager) onEnhancedConnectionComplete(b []byte) {
	var ep event.LEEnhancedConnectionCompleteEP
	if err := ep.Unmarshal(b); err != nil {
		m.log.WithError(err).Warn("le: malformed LEEnhancedConnectionComplete")
		return
	}
	peer := AddressWithType{Address: ep.PeerAddress, Type: AddressType(ep.PeerAddressType)}
	delete(m.connecting, peer)

	if ep.Status != 0 {
		if m.callbacks != nil {
			m.callbacks.OnLeConnectFail(peer, ep.Status)
		}
		return
	}

	remote := peer
	if ep.PeerResolvableAddressPresent() {
		remote = AddressWithType{Address: ep.PeerResolvablePrivateAddress, Type: RandomDevice}
	}
	m.createConnection(ep.ConnectionHandle&0x0FFF, remote, ep.Role)
}

func (m *leManager) createConnection(handle uint16, remote AddressWithType, role uint8) {
	if _, exists := m.conns[handle]; exists {
		m.log.WithField("handle", handle).Error("le: handle already present on connection complete")
		return
	}
	r := Master
	if role == 1 {
		r = Slave
	}
	conn := &Connection{
		id:         newCorrelationID(),
		Handle:     handle,
		LinkType:   LE,
		Role:       r,
		RemoteAddr: remote,
		assembler:  newAssembler(m.log),
		outbound:   newQueuePair(),
		inbound:    make(chan []byte, inboundQueueDepth),
	}
	conn.up = conn.outbound.upEnd()
	conn.notify = m.sched.Notify
	m.conns[handle] = conn
	m.demux.Register(handle, conn)
	m.sched.Register(handle, LE, conn.outbound.downEnd())

	if m.callbacks != nil {
		m.callbacks.OnLeConnectSuccess(remote, conn)
	}
}

func (m *leManager) onConnectionUpdateComplete(b []byte) {
	var ep event.LEConnectionUpdateCompleteEP
	if err := ep.Unmarshal(b); err != nil {
		m.log.WithError(err).Warn("le: malformed LEConnectionUpdateComplete")
		return
	}
	if ep.Status != 0 {
		return
	}
	conn, ok := m.conns[ep.ConnectionHandle&0x0FFF]
	if !ok {
		return
	}
	if cb := conn.leCallbacks(); cb != nil {
		cb.OnConnectionUpdate(ep.ConnInterval, ep.ConnLatency, ep.SupervisionTimeout)
	}
}

// onDisconnectionComplete is invoked by the façade (which demultiplexes
// DisconnectionComplete to whichever sub-manager owns the handle, since
// that event carries no link-type tag of its own).
func (m *leManager) onDisconnectionComplete(handle uint16, reason uint8) bool {
	conn, ok := m.conns[handle]
	if !ok {
		return false
	}
	delete(m.conns, handle)
	m.demux.Unregister(handle)
	m.sched.Unregister(handle)
	close(conn.inbound)
	if cb := conn.leCallbacks(); cb != nil {
		cb.OnDisconnection(reason)
	}
	return true
}
