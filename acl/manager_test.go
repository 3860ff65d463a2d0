package acl

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aclhost/aclmgr/hci"
	"github.com/aclhost/aclmgr/internal/cmd"
	"github.com/aclhost/aclmgr/internal/event"
	ihci "github.com/aclhost/aclmgr/internal/hci"
)

// fakeLayer is a minimal hci.Layer double: it records every command sent
// and lets a test fire events back into the manager synchronously.
type fakeLayer struct {
	mu       sync.Mutex
	handlers map[event.Code]event.Handler
	leH      event.Handler
	aclH     hci.ACLHandler
	sent     []cmd.Param
}

func newFakeLayer() *fakeLayer {
	return &fakeLayer{handlers: make(map[event.Code]event.Handler)}
}

func (f *fakeLayer) EnqueueCommand(p cmd.Param) (cmd.Result, error) {
	f.mu.Lock()
	f.sent = append(f.sent, p)
	f.mu.Unlock()
	return cmd.Result{}, nil
}

func (f *fakeLayer) SendAndCheck(p cmd.Param, acceptable []byte) error {
	_, err := f.EnqueueCommand(p)
	return err
}

func (f *fakeLayer) SubscribeEvent(code event.Code, h event.Handler) {
	f.mu.Lock()
	f.handlers[code] = h
	f.mu.Unlock()
}

func (f *fakeLayer) SubscribeLEMeta(h event.Handler) {
	f.mu.Lock()
	f.leH = h
	f.mu.Unlock()
}

func (f *fakeLayer) SubscribeACL(h hci.ACLHandler) {
	f.mu.Lock()
	f.aclH = h
	f.mu.Unlock()
}

func (f *fakeLayer) SendACL(handle uint16, pb, bc uint8, payload []byte) error { return nil }
func (f *fakeLayer) Start() error                                             { return nil }
func (f *fakeLayer) Stop() error                                              { return nil }

func (f *fakeLayer) fire(code event.Code, b []byte) {
	f.mu.Lock()
	h := f.handlers[code]
	f.mu.Unlock()
	if h == nil {
		panic("fakeLayer: no handler registered for event code")
	}
	_ = h.HandleEvent(b)
}

func (f *fakeLayer) fireLEMeta(b []byte) {
	f.mu.Lock()
	h := f.leH
	f.mu.Unlock()
	_ = h.HandleEvent(b)
}

func (f *fakeLayer) lastSent() cmd.Param {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return nil
	}
	return f.sent[len(f.sent)-1]
}

type classicCB struct {
	mu        sync.Mutex
	connected *Connection
	failed    bool
}

func (c *classicCB) OnConnectSuccess(conn *Connection) {
	c.mu.Lock()
	c.connected = conn
	c.mu.Unlock()
}
func (c *classicCB) OnConnectFail(addr Address, status uint8) {
	c.mu.Lock()
	c.failed = true
	c.mu.Unlock()
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition never became true")
}

func TestClassicConnectAndDisconnect(t *testing.T) {
	layer := newFakeLayer()
	cfg := testConfig()
	m := New(layer, discardLog(), cfg)
	require.NoError(t, m.Start())
	defer m.Stop()

	cb := &classicCB{}
	require.NoError(t, m.RegisterCallbacks(cb))

	addr := Address{0x01, 0x02, 0x03, 0x04, 0x05, 0x06}
	require.NoError(t, m.CreateConnection(addr))
	waitFor(t, func() bool { return layer.lastSent() != nil })
	_, ok := layer.lastSent().(cmd.CreateConnection)
	require.True(t, ok)

	handle := uint16(0x0001)
	ep := make([]byte, 11)
	ep[0] = 0x00 // status success
	ep[1], ep[2] = byte(handle), byte(handle>>8)
	copy(ep[3:9], addr[:])
	ep[9] = 0x01 // link type ACL

	layer.fire(event.ConnectionComplete, ep)
	waitFor(t, func() bool { cb.mu.Lock(); defer cb.mu.Unlock(); return cb.connected != nil })
	assert.Equal(t, handle, cb.connected.Handle)
	assert.Equal(t, Classic, cb.connected.LinkType)

	disc := []byte{0x00, byte(handle), byte(handle >> 8), 0x13}
	layer.fire(event.DisconnectionComplete, disc)

	gone := make(chan bool, 1)
	waitFor(t, func() bool {
		done := make(chan struct{})
		m.exec.Post(func() {
			_, stillPresent := m.classic.conns[handle]
			gone <- !stillPresent
			close(done)
		})
		<-done
		return <-gone
	})
}

type leCB struct {
	mu        sync.Mutex
	connected *Connection
	peer      AddressWithType
}

func (c *leCB) OnLeConnectSuccess(peer AddressWithType, conn *Connection) {
	c.mu.Lock()
	c.connected, c.peer = conn, peer
	c.mu.Unlock()
}
func (c *leCB) OnLeConnectFail(peer AddressWithType, status uint8) {}

func TestLEEnhancedConnectionCompleteUsesResolvedPeerAddress(t *testing.T) {
	layer := newFakeLayer()
	m := New(layer, discardLog(), testConfig())
	require.NoError(t, m.Start())
	defer m.Stop()

	cb := &leCB{}
	require.NoError(t, m.RegisterLeCallbacks(cb))

	peer := AddressWithType{Address: Address{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}, Type: RandomDevice}
	require.NoError(t, m.CreateLeConnection(peer))

	handle := uint16(0x0042)
	rpa := [6]byte{0x40, 0x01, 0x02, 0x03, 0x04, 0x05}
	b := make([]byte, 31)
	b[0] = byte(event.LEEnhancedConnectionComplete)
	b[1] = 0x00 // status
	b[2], b[3] = byte(handle), byte(handle>>8)
	b[4] = 0x00 // role: master
	b[5] = byte(RandomDevice)
	copy(b[6:12], peer.Address[:])
	copy(b[18:24], rpa[:]) // PeerResolvablePrivateAddress

	layer.fireLEMeta(b)

	waitFor(t, func() bool { cb.mu.Lock(); defer cb.mu.Unlock(); return cb.connected != nil })
	assert.Equal(t, handle, cb.connected.Handle)
	assert.Equal(t, LE, cb.connected.LinkType)
	assert.Equal(t, Address(rpa), cb.connected.RemoteAddr.Address)
	assert.Equal(t, RandomDevice, cb.connected.RemoteAddr.Type)
}

func TestACLFragmentForDebugHandleIsDropped(t *testing.T) {
	layer := newFakeLayer()
	m := New(layer, discardLog(), testConfig())
	require.NoError(t, m.Start())
	defer m.Stop()

	// the debug handle never has a registered connection, so delivery
	// must be a no-op rather than panicking on a nil lookup
	assert.NotPanics(t, func() {
		layer.aclH(ihci.QualcommDebugHandle, ihci.PBFirstNonFlushable, ihci.BCPointToPoint, []byte{0x02, 0x00, 0x00, 0x00, 0xAA, 0xBB})
	})
}
