// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vrf

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ava-labs/praos/crypto"
)

func TestProveVerify(t *testing.T) {
	require := require.New(t)

	sk, err := GeneratePrivateKey()
	require.NoError(err)

	proof, output, err := Prove(sk, []byte("slot-1"))
	require.NoError(err)

	verified, err := Verify(sk.PublicKey(), proof, []byte("slot-1"))
	require.NoError(err)
	require.Equal(output, verified)

	_, err = Verify(sk.PublicKey(), proof, []byte("slot-2"))
	require.ErrorIs(err, crypto.ErrInvalidProof)

	other, err := GeneratePrivateKey()
	require.NoError(err)
	_, err = Verify(other.PublicKey(), proof, []byte("slot-1"))
	require.ErrorIs(err, crypto.ErrInvalidProof)
}

func TestProveDeterministic(t *testing.T) {
	require := require.New(t)

	sk, err := PrivateKeyFromSeed(make([]byte, 32))
	require.NoError(err)

	p1, o1, err := Prove(sk, []byte("input"))
	require.NoError(err)
	p2, o2, err := Prove(sk, []byte("input"))
	require.NoError(err)
	require.Equal(p1, p2)
	require.Equal(o1, o2)
}

func TestThresholdRange(t *testing.T) {
	require := require.New(t)

	var zero Output
	require.Zero(zero.Threshold())

	var max Output
	for i := range max {
		max[i] = 0xff
	}
	require.Less(max.Threshold(), 1.0+1e-9)
	require.Greater(max.Threshold(), 0.99)
}
