package acl

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	c := DefaultConfig()
	c.ControllerCredits.TotalACLClassic = 1
	c.ControllerCredits.TotalACLLE = 1
	c.ControllerCredits.MTUClassic = 64
	c.ControllerCredits.MTULE = 64
	return c
}

func discardLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func TestSchedulerRoundRobinsBetweenLinks(t *testing.T) {
	var sent []uint16
	sched := newScheduler(discardLog(), testConfig(), func(handle uint16, pb, bc uint8, payload []byte) error {
		sent = append(sent, handle)
		return nil
	})
	// give the scheduler unlimited classic credit so queue depth, not
	// controller credit, is what's under test
	sched.creditsClassic = 100
	sched.totalCreditsClassic = 100

	qa, qb := newQueuePair(), newQueuePair()
	sched.Register(1, Classic, qa.downEnd())
	sched.Register(2, Classic, qb.downEnd())

	require.NoError(t, qa.upEnd().TrySend([]byte{0x01, 0x00, 0x00, 0x00, 0xAA}))
	require.NoError(t, qb.upEnd().TrySend([]byte{0x01, 0x00, 0x00, 0x00, 0xBB}))
	require.NoError(t, qa.upEnd().TrySend([]byte{0x01, 0x00, 0x00, 0x00, 0xCC}))

	stop := make(chan struct{})
	close(stop) // Run drains the current backlog, then returns immediately
	sched.Run(stop)

	assert.Equal(t, []uint16{1, 2, 1}, sent)
}

func TestSchedulerRespectsCredits(t *testing.T) {
	var sent int
	sched := newScheduler(discardLog(), testConfig(), func(handle uint16, pb, bc uint8, payload []byte) error {
		sent++
		return nil
	})

	qa := newQueuePair()
	sched.Register(1, Classic, qa.downEnd())
	require.NoError(t, qa.upEnd().TrySend([]byte{0x01, 0x00, 0x00, 0x00, 0xAA}))
	require.NoError(t, qa.upEnd().TrySend([]byte{0x01, 0x00, 0x00, 0x00, 0xBB}))

	assert.True(t, sched.sendNext())
	assert.False(t, sched.sendNext(), "only one controller credit, second PDU must wait")

	sched.OnNumberOfCompletedPackets([]uint16{1}, []uint16{1})
	assert.True(t, sched.sendNext())
	assert.Equal(t, 2, sent)
}

func TestSchedulerFragmentsAtMTU(t *testing.T) {
	var frags [][]byte
	sched := newScheduler(discardLog(), testConfig(), func(handle uint16, pb, bc uint8, payload []byte) error {
		frags = append(frags, payload)
		return nil
	})
	sched.creditsClassic = 10
	sched.totalCreditsClassic = 10

	qa := newQueuePair()
	sched.Register(1, Classic, qa.downEnd())
	pdu := make([]byte, 100) // > 64-byte MTU, must split in two
	require.NoError(t, qa.upEnd().TrySend(pdu))

	assert.True(t, sched.sendNext())
	assert.Len(t, frags, 2)
	assert.Len(t, frags[0], 64)
	assert.Len(t, frags[1], 36)
}
