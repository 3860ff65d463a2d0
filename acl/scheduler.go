package acl

import (
	"sync"

	"github.com/sirupsen/logrus"

	ihci "github.com/aclhost/aclmgr/internal/hci"
)

// LinkType distinguishes which credit pool and MTU a registered link
// draws from.
type LinkType uint8

const (
	Classic LinkType = iota
	LE
)

type schedLink struct {
	handle      uint16
	linkType    LinkType
	out         downEnd
	creditsUsed int
}

// scheduler is the sole writer to the HCI layer's outbound ACL path. It
// walks registered links in strict round-robin order, fragmenting one
// L2CAP PDU per turn at the relevant MTU and respecting per-link-type
// controller credits.
type scheduler struct {
	mu   sync.Mutex
	log  *logrus.Entry
	send func(handle uint16, pb, bc uint8, payload []byte) error

	order      []uint16 // insertion order of registered handles
	links      map[uint16]*schedLink
	lastServed int // index into order of the last link served

	creditsClassic, creditsLE         int
	totalCreditsClassic, totalCreditsLE int
	mtuClassic, mtuLE                 int

	wake chan struct{}
}

func newScheduler(log *logrus.Entry, cfg Config, send func(uint16, uint8, uint8, []byte) error) *scheduler {
	s := &scheduler{
		log:                 log,
		send:                send,
		links:               make(map[uint16]*schedLink),
		lastServed:          -1,
		creditsClassic:      int(cfg.ControllerCredits.TotalACLClassic),
		creditsLE:           int(cfg.ControllerCredits.TotalACLLE),
		totalCreditsClassic: int(cfg.ControllerCredits.TotalACLClassic),
		totalCreditsLE:      int(cfg.ControllerCredits.TotalACLLE),
		mtuClassic:          int(cfg.ControllerCredits.MTUClassic),
		mtuLE:               int(cfg.ControllerCredits.MTULE),
		wake:                make(chan struct{}, 1),
	}
	return s
}

// Register adds a new link's outbound queue to the round-robin order.
func (s *scheduler) Register(handle uint16, lt LinkType, out downEnd) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.links[handle] = &schedLink{handle: handle, linkType: lt, out: out}
	s.order = append(s.order, handle)
	s.kick()
}

// Unregister removes handle from scheduling, e.g. on disconnect.
func (s *scheduler) Unregister(handle uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.links, handle)
	for i, h := range s.order {
		if h == handle {
			s.order = append(s.order[:i], s.order[i+1:]...)
			if s.lastServed >= i {
				s.lastServed--
			}
			break
		}
	}
}

// Notify wakes the scheduler to attempt delivery; called whenever a
// link's outbound queue receives new work.
func (s *scheduler) Notify() { s.kick() }

func (s *scheduler) kick() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// OnNumberOfCompletedPackets returns credits for each (handle, count)
// pair the controller reported; unknown handles are silently ignored,
// since they may refer to a link that just disconnected.
func (s *scheduler) OnNumberOfCompletedPackets(handles, counts []uint16) {
	s.mu.Lock()
	for i, h := range handles {
		n := int(counts[i])
		l, ok := s.links[h]
		if !ok {
			continue
		}
		l.creditsUsed -= n
		if l.creditsUsed < 0 {
			l.creditsUsed = 0
		}
		switch l.linkType {
		case Classic:
			s.creditsClassic += n
			if s.creditsClassic > s.totalCreditsClassic {
				s.creditsClassic = s.totalCreditsClassic
			}
		case LE:
			s.creditsLE += n
			if s.creditsLE > s.totalCreditsLE {
				s.creditsLE = s.totalCreditsLE
			}
		}
	}
	s.mu.Unlock()
	s.kick()
}

// Run drives send_next until stop is closed. Callers run this on its
// own goroutine; it never blocks the controller, only waits on
// Notify/OnNumberOfCompletedPackets wakeups between sweeps.
func (s *scheduler) Run(stop <-chan struct{}) {
	for {
		for s.sendNext() {
		}
		select {
		case <-stop:
			return
		case <-s.wake:
		}
	}
}

// sendNext performs one step of send_next: dequeue at most one PDU from
// the next eligible link and transmit all of its fragments. Returns true
// if it sent something (so the caller should try again immediately).
func (s *scheduler) sendNext() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.order)
	if n == 0 {
		return false
	}
	for i := 1; i <= n; i++ {
		idx := (s.lastServed + i) % n
		handle := s.order[idx]
		l := s.links[handle]
		if l == nil {
			continue
		}
		if !s.creditAvailable(l.linkType) {
			continue
		}
		if l.out.Empty() {
			continue
		}
		pdu, ok := l.out.TryDequeue()
		if !ok {
			continue
		}
		s.lastServed = idx
		s.fragmentAndSend(l, pdu)
		return true
	}
	return false
}

func (s *scheduler) creditAvailable(lt LinkType) bool {
	switch lt {
	case Classic:
		return s.creditsClassic > 0
	case LE:
		return s.creditsLE > 0
	}
	return false
}

func (s *scheduler) fragmentAndSend(l *schedLink, pdu []byte) {
	mtu := s.mtuClassic
	if l.linkType == LE {
		mtu = s.mtuLE
	}
	pb := uint8(ihci.PBFirstNonFlushable)
	for offset := 0; offset < len(pdu); {
		end := offset + mtu
		if end > len(pdu) {
			end = len(pdu)
		}
		frag := pdu[offset:end]
		if err := s.send(l.handle, pb, ihci.BCPointToPoint, frag); err != nil {
			s.log.WithError(err).WithField("handle", l.handle).Warn("scheduler: send failed")
		}
		l.creditsUsed++
		switch l.linkType {
		case Classic:
			s.creditsClassic--
		case LE:
			s.creditsLE--
		}
		offset = end
		pb = ihci.PBContinuing
	}
}
