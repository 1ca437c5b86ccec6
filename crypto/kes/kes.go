// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package kes signs Genesis Praos headers. A signature commits to the
// key period it was produced in so a verifier can reject signatures
// produced outside the period the block date falls in.
package kes

import (
	"encoding/binary"

	"github.com/ava-labs/praos/consts"
	"github.com/ava-labs/praos/crypto/ed25519"
)

const SignatureLen = consts.Uint32Len + ed25519.SignatureLen

type (
	PublicKey  = ed25519.PublicKey
	PrivateKey = ed25519.PrivateKey
)

// Signature is period:32 || ed25519 signature over msg || period.
type Signature [SignatureLen]byte

func (s Signature) Period() uint32 {
	return binary.BigEndian.Uint32(s[:consts.Uint32Len])
}

func signedBytes(msg []byte, period uint32) []byte {
	b := make([]byte, len(msg)+consts.Uint32Len)
	copy(b, msg)
	binary.BigEndian.PutUint32(b[len(msg):], period)
	return b
}

// Sign signs [msg] for [period].
func Sign(sk PrivateKey, period uint32, msg []byte) Signature {
	var s Signature
	binary.BigEndian.PutUint32(s[:consts.Uint32Len], period)
	sig := ed25519.Sign(signedBytes(msg, period), sk)
	copy(s[consts.Uint32Len:], sig[:])
	return s
}

// Verify reports whether [s] signs [msg] under [pk] in [period].
func Verify(pk PublicKey, period uint32, msg []byte, s Signature) bool {
	if s.Period() != period {
		return false
	}
	var sig ed25519.Signature
	copy(sig[:], s[consts.Uint32Len:])
	return ed25519.Verify(signedBytes(msg, period), pk, sig)
}

// Period is the key period covering [seconds] elapsed since block0 when
// keys evolve every [updateSpeed] seconds.
func Period(seconds uint64, updateSpeed uint32) uint32 {
	if updateSpeed == 0 {
		return 0
	}
	return uint32(seconds / uint64(updateSpeed))
}
