// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package vrf implements the ECVRF-EDWARDS25519-SHA512-ELL2 verifiable
// random function used by the Genesis Praos lottery.
package vrf

import (
	"encoding/binary"
	"fmt"

	"github.com/oasisprotocol/curve25519-voi/primitives/ed25519"
	"github.com/oasisprotocol/curve25519-voi/primitives/ed25519/extra/ecvrf"

	"github.com/ava-labs/praos/crypto"
)

const (
	PublicKeyLen  = ed25519.PublicKeySize
	PrivateKeyLen = ed25519.PrivateKeySize
	ProofLen      = ecvrf.ProofSize
	OutputLen     = ecvrf.OutputSize
)

type (
	PublicKey  [PublicKeyLen]byte
	PrivateKey [PrivateKeyLen]byte
	Proof      [ProofLen]byte
	Output     [OutputLen]byte
)

var (
	EmptyPublicKey = PublicKey{}
	EmptyProof     = Proof{}
)

func GeneratePrivateKey() (PrivateKey, error) {
	_, sk, err := ed25519.GenerateKey(nil)
	if err != nil {
		return PrivateKey{}, err
	}
	return PrivateKey(sk), nil
}

// PrivateKeyFromSeed derives the VRF key for a 32-byte [seed].
func PrivateKeyFromSeed(seed []byte) (PrivateKey, error) {
	if len(seed) != ed25519.SeedSize {
		return PrivateKey{}, fmt.Errorf("%w: seed has %d bytes", crypto.ErrInvalidPrivateKey, len(seed))
	}
	return PrivateKey(ed25519.NewKeyFromSeed(seed)), nil
}

func (sk PrivateKey) PublicKey() PublicKey {
	return PublicKey(sk[ed25519.SeedSize:])
}

// Prove evaluates the VRF on [input].
func Prove(sk PrivateKey, input []byte) (Proof, Output, error) {
	pi := ecvrf.Prove(ed25519.PrivateKey(sk[:]), input)
	beta, err := ecvrf.ProofToHash(pi)
	if err != nil {
		return Proof{}, Output{}, err
	}
	return Proof(pi), Output(beta), nil
}

// Verify checks [proof] for [input] under [pk] and returns the VRF output.
func Verify(pk PublicKey, proof Proof, input []byte) (Output, error) {
	ok, beta := ecvrf.Verify(ed25519.PublicKey(pk[:]), proof[:], input)
	if !ok {
		return Output{}, crypto.ErrInvalidProof
	}
	return Output(beta), nil
}

// Threshold maps the output onto [0, 1) using its first 8 bytes.
func (o Output) Threshold() float64 {
	return float64(binary.BigEndian.Uint64(o[:8])) / (1 << 64)
}

// Output returns the VRF output carried by [p] without verifying it.
func (p Proof) Output() (Output, error) {
	beta, err := ecvrf.ProofToHash(p[:])
	if err != nil {
		return Output{}, fmt.Errorf("%w: %w", crypto.ErrInvalidProof, err)
	}
	return Output(beta), nil
}
