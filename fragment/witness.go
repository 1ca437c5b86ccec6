// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package fragment

import (
	"encoding/binary"
	"fmt"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/set"

	"github.com/ava-labs/praos/codec"
	"github.com/ava-labs/praos/consts"
	"github.com/ava-labs/praos/crypto/ed25519"
)

type WitnessKind uint8

const (
	WitnessOldUtxo  WitnessKind = 0
	WitnessUtxo     WitnessKind = 1
	WitnessAccount  WitnessKind = 2
	WitnessMultisig WitnessKind = 3

	MaxMultisigSigners = 255
)

// IndexedSignature is a signature by the key at Index of an owner list.
type IndexedSignature struct {
	Index     uint8
	Signature ed25519.Signature
}

// Witness proves the right to spend one input. Every input of a
// transaction has the witness at the same position.
type Witness struct {
	Kind WitnessKind
	// PublicKey is only set for legacy utxo witnesses, whose address is
	// the digest of the key.
	PublicKey ed25519.PublicKey
	Signature ed25519.Signature
	// Multisig holds the owner signatures of multisig witnesses.
	Multisig []IndexedSignature
}

// UtxoWitnessData is what utxo and legacy utxo witnesses sign.
func UtxoWitnessData(block0 ids.ID, signDataHash ids.ID) []byte {
	b := make([]byte, 0, 2*consts.IDLen)
	b = append(b, block0[:]...)
	return append(b, signDataHash[:]...)
}

// AccountWitnessData is what account witnesses sign. [counter] must be
// the spending counter of the account at the time of spending.
func AccountWitnessData(block0 ids.ID, signDataHash ids.ID, counter uint32) []byte {
	return counterWitnessData(byte(WitnessAccount), block0, signDataHash, counter)
}

// MultisigWitnessData is what each owner of a multisig account signs.
func MultisigWitnessData(block0 ids.ID, signDataHash ids.ID, counter uint32) []byte {
	return counterWitnessData(byte(WitnessMultisig), block0, signDataHash, counter)
}

func counterWitnessData(tag byte, block0 ids.ID, signDataHash ids.ID, counter uint32) []byte {
	b := make([]byte, 0, 1+2*consts.IDLen+consts.Uint32Len)
	b = append(b, tag)
	b = append(b, block0[:]...)
	b = append(b, signDataHash[:]...)
	return binary.BigEndian.AppendUint32(b, counter)
}

func NewUtxoWitness(block0, signDataHash ids.ID, sk ed25519.PrivateKey) Witness {
	return Witness{
		Kind:      WitnessUtxo,
		Signature: ed25519.Sign(UtxoWitnessData(block0, signDataHash), sk),
	}
}

func NewOldUtxoWitness(block0, signDataHash ids.ID, sk ed25519.PrivateKey) Witness {
	return Witness{
		Kind:      WitnessOldUtxo,
		PublicKey: sk.PublicKey(),
		Signature: ed25519.Sign(UtxoWitnessData(block0, signDataHash), sk),
	}
}

func NewAccountWitness(block0, signDataHash ids.ID, counter uint32, sk ed25519.PrivateKey) Witness {
	return Witness{
		Kind:      WitnessAccount,
		Signature: ed25519.Sign(AccountWitnessData(block0, signDataHash, counter), sk),
	}
}

// NewMultisigWitness signs with each key of [signers], keyed by its index
// in the declaration's owner list.
func NewMultisigWitness(block0, signDataHash ids.ID, counter uint32, signers map[uint8]ed25519.PrivateKey) Witness {
	msg := MultisigWitnessData(block0, signDataHash, counter)
	w := Witness{Kind: WitnessMultisig}
	for i := 0; i < MaxMultisigSigners; i++ {
		sk, ok := signers[uint8(i)]
		if !ok {
			continue
		}
		w.Multisig = append(w.Multisig, IndexedSignature{Index: uint8(i), Signature: ed25519.Sign(msg, sk)})
	}
	return w
}

func (w Witness) marshal(p *codec.Packer) {
	p.PackByte(byte(w.Kind))
	switch w.Kind {
	case WitnessOldUtxo:
		p.PackFixedBytes(w.PublicKey[:])
		p.PackFixedBytes(w.Signature[:])
	case WitnessUtxo, WitnessAccount:
		p.PackFixedBytes(w.Signature[:])
	case WitnessMultisig:
		marshalIndexedSignatures(p, w.Multisig)
	default:
		p.AddErr(fmt.Errorf("%w: %d", ErrUnknownWitness, w.Kind))
	}
}

func unmarshalWitness(p *codec.Packer) (Witness, error) {
	w := Witness{Kind: WitnessKind(p.UnpackByte())}
	switch w.Kind {
	case WitnessOldUtxo:
		unpackArray(p, w.PublicKey[:])
		unpackArray(p, w.Signature[:])
	case WitnessUtxo, WitnessAccount:
		unpackArray(p, w.Signature[:])
	case WitnessMultisig:
		sigs, err := unmarshalIndexedSignatures(p)
		if err != nil {
			return Witness{}, err
		}
		w.Multisig = sigs
	default:
		if err := p.Err(); err != nil {
			return Witness{}, err
		}
		return Witness{}, fmt.Errorf("%w: %d", ErrUnknownWitness, w.Kind)
	}
	return w, p.Err()
}

func marshalIndexedSignatures(p *codec.Packer, sigs []IndexedSignature) {
	if len(sigs) > MaxMultisigSigners {
		p.AddErr(fmt.Errorf("%w: %d signatures", ErrTooManyItems, len(sigs)))
		return
	}
	p.PackByte(byte(len(sigs)))
	for _, s := range sigs {
		p.PackByte(s.Index)
		p.PackFixedBytes(s.Signature[:])
	}
}

func unmarshalIndexedSignatures(p *codec.Packer) ([]IndexedSignature, error) {
	count := int(p.UnpackByte())
	if err := p.Err(); err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}
	sigs := make([]IndexedSignature, count)
	for i := range sigs {
		sigs[i].Index = p.UnpackByte()
		unpackArray(p, sigs[i].Signature[:])
	}
	return sigs, p.Err()
}

func unpackArray(p *codec.Packer, dest []byte) {
	var b []byte
	p.UnpackFixedBytes(len(dest), &b)
	copy(dest, b)
}

// VerifyQuorum checks that [sigs] holds at least [threshold] valid
// signatures of [msg] by distinct keys of [keys]. A duplicate or out of
// range index fails the check regardless of the other signatures.
func VerifyQuorum(keys []ed25519.PublicKey, threshold int, sigs []IndexedSignature, msg []byte) error {
	if threshold <= 0 || threshold > len(keys) {
		return fmt.Errorf("%w: %d of %d", ErrInvalidThreshold, threshold, len(keys))
	}
	seen := set.NewSet[uint8](len(sigs))
	for _, s := range sigs {
		if int(s.Index) >= len(keys) {
			return fmt.Errorf("%w: %d >= %d", ErrSignerOutOfRange, s.Index, len(keys))
		}
		if seen.Contains(s.Index) {
			return fmt.Errorf("%w: %d", ErrDuplicateSigner, s.Index)
		}
		seen.Add(s.Index)
		if !ed25519.Verify(msg, keys[s.Index], s.Signature) {
			return fmt.Errorf("%w: signer %d", ErrInvalidSignature, s.Index)
		}
	}
	if seen.Len() < threshold {
		return fmt.Errorf("%w: %d < %d", ErrQuorumNotMet, seen.Len(), threshold)
	}
	return nil
}
