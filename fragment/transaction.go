// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package fragment

import (
	"fmt"

	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/praos/address"
	"github.com/ava-labs/praos/codec"
	"github.com/ava-labs/praos/consts"
	"github.com/ava-labs/praos/utils"

	safemath "github.com/ava-labs/avalanchego/utils/math"
)

const (
	// InputAccount and InputMultisig mark inputs spending from an account
	// balance. Any other value is the output index of a utxo.
	InputAccount  byte = 0xff
	InputMultisig byte = 0xfe

	inputLen = consts.ByteLen + consts.Uint64Len + consts.IDLen
)

// Input references the value being spent: a utxo (by fragment id and
// output index) or an account (by account identifier).
type Input struct {
	IndexOrKind byte
	Value       uint64
	Ref         ids.ID
}

func UtxoInput(fragmentID ids.ID, index uint8, value uint64) Input {
	return Input{IndexOrKind: index, Value: value, Ref: fragmentID}
}

func AccountInput(account ids.ID, value uint64) Input {
	return Input{IndexOrKind: InputAccount, Value: value, Ref: account}
}

func MultisigInput(id ids.ID, value uint64) Input {
	return Input{IndexOrKind: InputMultisig, Value: value, Ref: id}
}

func (i Input) IsAccount() bool  { return i.IndexOrKind == InputAccount }
func (i Input) IsMultisig() bool { return i.IndexOrKind == InputMultisig }
func (i Input) IsUtxo() bool     { return !i.IsAccount() && !i.IsMultisig() }

// UtxoPointer identifies one output of a transaction fragment.
type UtxoPointer struct {
	FragmentID  ids.ID
	OutputIndex uint8
}

func (u UtxoPointer) String() string {
	return fmt.Sprintf("%s@%d", u.FragmentID, u.OutputIndex)
}

func (i Input) UtxoPointer() UtxoPointer {
	return UtxoPointer{FragmentID: i.Ref, OutputIndex: i.IndexOrKind}
}

type Output struct {
	Address address.Address
	Value   uint64
}

// Transaction moves value from inputs to outputs. Certificate-bearing
// fragments are transactions whose Certificate is set; Auth carries the
// certificate-specific authentication.
type Transaction struct {
	Inputs      []Input
	Outputs     []Output
	Certificate Certificate
	Auth        Auth
	Witnesses   []Witness
}

func (tx *Transaction) Tag() Tag {
	if tx.Certificate == nil {
		return TagTransaction
	}
	return tx.Certificate.Tag()
}

func (tx *Transaction) marshalBody(p *codec.Packer) {
	if len(tx.Inputs) > int(consts.MaxUint16) || len(tx.Outputs) > int(consts.MaxUint16) {
		p.AddErr(fmt.Errorf("%w: %d inputs %d outputs", ErrTooManyItems, len(tx.Inputs), len(tx.Outputs)))
		return
	}
	p.PackUint16(uint16(len(tx.Inputs)))
	p.PackUint16(uint16(len(tx.Outputs)))
	for _, in := range tx.Inputs {
		p.PackByte(in.IndexOrKind)
		p.PackUint64(in.Value)
		p.PackID(in.Ref)
	}
	for _, out := range tx.Outputs {
		out.Address.Marshal(p)
		p.PackUint64(out.Value)
	}
	if tx.Certificate != nil {
		tx.Certificate.marshal(p)
	}
}

func (tx *Transaction) marshal(p *codec.Packer) {
	tx.marshalBody(p)
	if tx.Certificate != nil {
		marshalAuth(p, tx.Certificate.authKind(), tx.Auth)
	} else if tx.Auth != nil {
		p.AddErr(ErrUnexpectedAuth)
	}
	if len(tx.Witnesses) > int(consts.MaxUint16) {
		p.AddErr(fmt.Errorf("%w: %d witnesses", ErrTooManyItems, len(tx.Witnesses)))
		return
	}
	p.PackUint16(uint16(len(tx.Witnesses)))
	for _, w := range tx.Witnesses {
		w.marshal(p)
	}
}

// SignData is the byte string witnesses and certificate authentications
// commit to: the tag followed by the inputs, outputs and certificate.
func (tx *Transaction) SignData() ([]byte, error) {
	p := codec.NewWriter(256, consts.MaxBlockSize)
	p.PackByte(byte(tx.Tag()))
	tx.marshalBody(p)
	return p.Bytes(), p.Err()
}

// SignDataHash is the digest of SignData.
func (tx *Transaction) SignDataHash() (ids.ID, error) {
	b, err := tx.SignData()
	if err != nil {
		return ids.Empty, err
	}
	return utils.ToID(b), nil
}

func (tx *Transaction) TotalInput() (uint64, error) {
	var total uint64
	for _, in := range tx.Inputs {
		var err error
		total, err = safemath.Add(total, in.Value)
		if err != nil {
			return 0, err
		}
	}
	return total, nil
}

func (tx *Transaction) TotalOutput() (uint64, error) {
	var total uint64
	for _, out := range tx.Outputs {
		var err error
		total, err = safemath.Add(total, out.Value)
		if err != nil {
			return 0, err
		}
	}
	return total, nil
}

func unmarshalTransaction(tag Tag, p *codec.Packer) (*Transaction, error) {
	nInputs := int(p.UnpackUint16())
	nOutputs := int(p.UnpackUint16())
	if err := p.Err(); err != nil {
		return nil, err
	}
	if nInputs*inputLen > p.Remaining() {
		return nil, fmt.Errorf("%w: %d inputs", codec.ErrInsufficientLength, nInputs)
	}
	tx := &Transaction{}
	if nInputs > 0 {
		tx.Inputs = make([]Input, nInputs)
	}
	for i := range tx.Inputs {
		tx.Inputs[i].IndexOrKind = p.UnpackByte()
		tx.Inputs[i].Value = p.UnpackUint64(false)
		p.UnpackID(false, &tx.Inputs[i].Ref)
	}
	for i := 0; i < nOutputs; i++ {
		addr, err := address.Unmarshal(p)
		if err != nil {
			return nil, err
		}
		tx.Outputs = append(tx.Outputs, Output{Address: addr, Value: p.UnpackUint64(false)})
	}
	if err := p.Err(); err != nil {
		return nil, err
	}

	if tag != TagTransaction {
		cert, err := unmarshalCertificate(tag, p)
		if err != nil {
			return nil, err
		}
		tx.Certificate = cert
		auth, err := unmarshalAuth(p, cert.authKind())
		if err != nil {
			return nil, err
		}
		tx.Auth = auth
	}

	nWitnesses := int(p.UnpackUint16())
	if err := p.Err(); err != nil {
		return nil, err
	}
	if nWitnesses > p.Remaining() {
		return nil, fmt.Errorf("%w: %d witnesses", codec.ErrInsufficientLength, nWitnesses)
	}
	if nWitnesses > 0 {
		tx.Witnesses = make([]Witness, nWitnesses)
	}
	for i := range tx.Witnesses {
		w, err := unmarshalWitness(p)
		if err != nil {
			return nil, err
		}
		tx.Witnesses[i] = w
	}
	return tx, p.Err()
}
