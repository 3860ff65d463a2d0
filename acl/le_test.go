package acl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRPAPrandTopBitsMarkedResolvable(t *testing.T) {
	var irk [16]byte
	addr, err := generateRPA(irk)
	require.NoError(t, err)
	// prand occupies octets 3-5 of the wire-order address (its most
	// significant octets); its top two bits
	// must read 0b01 to mark the address as resolvable private.
	assert.Equal(t, byte(0x40), addr[5]&0xC0)
}

func TestRPADerivationIsReproducibleForSamePrand(t *testing.T) {
	var irk [16]byte
	prand := [3]byte{0x11, 0x22, 0x43}

	a, err := rpaFromPrand(irk, prand)
	require.NoError(t, err)
	b, err := rpaFromPrand(irk, prand)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, prand[:], []byte(a[3:6]))
}

func TestRPADerivationDiffersAcrossIRKs(t *testing.T) {
	var irkA [16]byte
	irkB := [16]byte{1}
	prand := [3]byte{0x01, 0x02, 0x43}

	a, err := rpaFromPrand(irkA, prand)
	require.NoError(t, err)
	b, err := rpaFromPrand(irkB, prand)
	require.NoError(t, err)

	assert.NotEqual(t, a[0:3], b[0:3])
}
