package acl

// queuePair is a bounded outbound FIFO of L2CAP PDUs shared between a
// connection's client-facing producer and the scheduler's consumer.
// Rather than handing out the shared channel itself — the source's
// shared_ptr<Queue> reflecting three co-owners — each side gets its own
// endpoint value so each side's role stays unambiguous: the connection
// record owns upEnd and only ever writes to it; the scheduler only ever
// reads from downEnd. Neither end closes the channel; it is simply
// dropped with the connection on teardown.
type queuePair struct {
	ch chan []byte
}

const outboundQueueDepth = 10

func newQueuePair() *queuePair {
	return &queuePair{ch: make(chan []byte, outboundQueueDepth)}
}

// upEnd is the producer-facing handle: the client, or the sub-manager
// acting for it, pushes complete L2CAP PDUs here.
type upEnd struct{ qp *queuePair }

func (q *queuePair) upEnd() upEnd { return upEnd{q} }

// TrySend enqueues pdu without blocking. It reports ResourceExhaustion
// when the bounded queue is already full rather than silently dropping
// the PDU or blocking the caller.
func (u upEnd) TrySend(pdu []byte) error {
	select {
	case u.qp.ch <- pdu:
		return nil
	default:
		return &ResourceExhaustion{Resource: "connection outbound queue"}
	}
}

// downEnd is the scheduler-facing consumer handle.
type downEnd struct{ qp *queuePair }

func (q *queuePair) downEnd() downEnd { return downEnd{q} }

// TryDequeue pops one pending PDU without blocking.
func (d downEnd) TryDequeue() ([]byte, bool) {
	select {
	case pdu := <-d.qp.ch:
		return pdu, true
	default:
		return nil, false
	}
}

// Empty reports whether the queue currently has no pending PDU.
func (d downEnd) Empty() bool { return len(d.qp.ch) == 0 }
