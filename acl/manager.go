package acl

import (
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/aclhost/aclmgr/internal/event"
	"github.com/aclhost/aclmgr/hci"
)

// aclDemux routes inbound ACL fragments to the connection that owns a
// handle, without giving the Classic and
// LE sub-managers visibility into each other's tables. It is consulted
// from the HCI reader goroutine, so it carries its own lock rather than
// relying on the serial executor.
type aclDemux struct {
	mu    sync.RWMutex
	conns map[uint16]*Connection
}

func newACLDemux() *aclDemux {
	return &aclDemux{conns: make(map[uint16]*Connection)}
}

func (d *aclDemux) Register(handle uint16, c *Connection) {
	d.mu.Lock()
	d.conns[handle] = c
	d.mu.Unlock()
}

func (d *aclDemux) Unregister(handle uint16) {
	d.mu.Lock()
	delete(d.conns, handle)
	d.mu.Unlock()
}

func (d *aclDemux) lookup(handle uint16) (*Connection, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.conns[handle]
	return c, ok
}

// Manager is the public façade for the ACL connection manager: one
// instance owns both the Classic and LE sub-managers, the shared
// outbound scheduler, and the single serial executor that every
// mutation of connection state runs on.
type Manager struct {
	log   *logrus.Entry
	layer hci.Layer
	cfg   Config

	exec  *serialExecutor
	sched *scheduler
	demux *aclDemux

	classic *classicManager
	le      *leManager

	schedStop chan struct{}
	eg        errgroup.Group
}

// New builds a Manager bound to layer. Call Start to begin processing.
func New(layer hci.Layer, log *logrus.Entry, cfg Config) *Manager {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	m := &Manager{
		log:       log,
		layer:     layer,
		cfg:       cfg,
		exec:      newSerialExecutor(log),
		demux:     newACLDemux(),
		schedStop: make(chan struct{}),
	}
	m.sched = newScheduler(log.WithField("component", "scheduler"), cfg, layer.SendACL)
	m.classic = newClassicManager(log, layer, m.exec, m.sched, m.demux, cfg)
	m.le = newLeManager(log, layer, m.exec, m.sched, m.demux, cfg)

	layer.SubscribeEvent(event.DisconnectionComplete, event.HandlerFunc(m.onDisconnectionComplete))
	layer.SubscribeEvent(event.NumberOfCompletedPkts, event.HandlerFunc(m.onNumberOfCompletedPackets))
	layer.SubscribeACL(m.onACL)
	return m
}

// Start arms LE address rotation and begins servicing the outbound
// scheduler and the HCI transport's own reader loop.
func (m *Manager) Start() error {
	m.exec.Post(m.le.start)
	m.eg.Go(func() error {
		m.sched.Run(m.schedStop)
		return nil
	})
	return m.layer.Start()
}

// Stop tears the manager down in order: stop taking new inbound work,
// drain everything already queued on the executor, then release the
// scheduler goroutine and the underlying transport.
func (m *Manager) Stop() error {
	m.exec.Post(m.le.stop)
	drained := make(chan struct{})
	m.exec.Post(func() { close(drained) })
	m.exec.stop()
	<-drained
	close(m.schedStop)
	m.eg.Wait()
	return m.layer.Stop()
}

// onDisconnectionComplete is the one subscriber for an event that, on
// the wire, carries no link-type tag: it tries Classic first, then LE.
func (m *Manager) onDisconnectionComplete(b []byte) error {
	var ep event.DisconnectionCompleteEP
	if err := ep.Unmarshal(b); err != nil {
		return nil
	}
	if ep.Status != 0 {
		return nil
	}
	handle := ep.ConnectionHandle & 0x0FFF
	m.exec.Post(func() {
		if m.classic.onDisconnectionComplete(handle, ep.Reason) {
			return
		}
		if !m.le.onDisconnectionComplete(handle, ep.Reason) {
			m.log.WithField("handle", handle).Warn("acl: DisconnectionComplete for unknown handle, dropping")
		}
	})
	return nil
}

// onNumberOfCompletedPackets feeds controller credit returns straight
// to the scheduler; it never touches connection state, so it runs
// inline rather than on the executor.
func (m *Manager) onNumberOfCompletedPackets(b []byte) error {
	var ep event.NumberOfCompletedPktsEP
	if err := ep.Unmarshal(b); err != nil {
		return nil
	}
	m.sched.OnNumberOfCompletedPackets(ep.Handles(), ep.Counts())
	return nil
}

// onACL reassembles one inbound fragment and, once a complete PDU is
// available, delivers it to the owning connection. Runs on the HCI
// reader goroutine; must never block.
func (m *Manager) onACL(handle uint16, pb, bc uint8, payload []byte) {
	conn, ok := m.demux.lookup(handle)
	if !ok {
		m.log.WithField("handle", handle).Debug("acl: fragment for unknown handle, dropping")
		return
	}
	if pdu := conn.assembler.Feed(pb, bc, payload); pdu != nil {
		conn.deliver(pdu)
	}
}

// --- façade operations, each posted onto the serial executor ---

func (m *Manager) RegisterCallbacks(cb ConnectionCallbacks) error {
	return m.postErr(func() error { return m.classic.RegisterCallbacks(cb) })
}

func (m *Manager) RegisterLeCallbacks(cb LeConnectionCallbacks) error {
	return m.postErr(func() error { return m.le.RegisterCallbacks(cb) })
}

func (m *Manager) SetSecurityModule(hook SecurityHook) {
	m.exec.Post(func() { m.classic.SetSecurityModule(hook) })
}

func (m *Manager) CreateConnection(addr Address) error {
	return m.postErr(func() error { return m.classic.CreateConnection(addr) })
}

func (m *Manager) CancelConnect(addr Address) error {
	return m.postErr(func() error { return m.classic.CancelConnect(addr) })
}

func (m *Manager) Disconnect(handle uint16, reason uint8) error {
	return m.postErr(func() error { return m.classic.Disconnect(handle, reason) })
}

func (m *Manager) CreateLeConnection(peer AddressWithType) error {
	return m.postErr(func() error { return m.le.CreateLeConnection(peer) })
}

func (m *Manager) SetLeInitiatorAddress(addr AddressWithType) error {
	return m.postErr(func() error { return m.le.SetLeInitiatorAddress(addr) })
}

func (m *Manager) MasterLinkKey(flag uint8) error {
	return m.postErr(func() error { return m.classic.MasterLinkKey(flag) })
}

func (m *Manager) SwitchRole(addr Address, role uint8) error {
	return m.postErr(func() error { return m.classic.SwitchRole(addr, role) })
}

func (m *Manager) ReadDefaultLinkPolicySettings() (uint16, error) {
	type result struct {
		v   uint16
		err error
	}
	done := make(chan result, 1)
	m.exec.Post(func() {
		v, err := m.classic.ReadDefaultLinkPolicySettings()
		done <- result{v, err}
	})
	r := <-done
	return r.v, r.err
}

func (m *Manager) WriteDefaultLinkPolicySettings(settings uint16) error {
	return m.postErr(func() error { return m.classic.WriteDefaultLinkPolicySettings(settings) })
}

// postErr runs f on the executor and blocks the caller for its error.
// ReadDefaultLinkPolicySettings waits the same way for its value;
// SetSecurityModule is the only façade operation that is fire-and-forget,
// matching the teacher's own command/response split between "posted"
// and "awaited" calls.
func (m *Manager) postErr(f func() error) error {
	done := make(chan error, 1)
	m.exec.Post(func() { done <- f() })
	return <-done
}
