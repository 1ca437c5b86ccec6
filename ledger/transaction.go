// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ledger

import (
	"fmt"
	"math"

	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/praos/address"
	"github.com/ava-labs/praos/crypto/ed25519"
	"github.com/ava-labs/praos/fragment"

	safemath "github.com/ava-labs/avalanchego/utils/math"
)

const (
	MaxInputs    = 256
	MaxOutputs   = 254
	MaxWitnesses = 256
)

// applyTransaction moves the value of a transaction: it checks the
// balance, consumes the inputs, creates the outputs and collects the fee.
// Certificate effects are applied by the caller.
func (l *Ledger) applyTransaction(p Parameters, id ids.ID, hash ids.ID, tx *fragment.Transaction) error {
	switch {
	case len(tx.Inputs) > MaxInputs:
		return fmt.Errorf("%w: %d", ErrTooManyInputs, len(tx.Inputs))
	case len(tx.Outputs) > MaxOutputs:
		return fmt.Errorf("%w: %d", ErrTooManyOutputs, len(tx.Outputs))
	case len(tx.Witnesses) > MaxWitnesses:
		return fmt.Errorf("%w: %d", ErrTooManyWitnesses, len(tx.Witnesses))
	case len(tx.Inputs) != len(tx.Witnesses):
		return fmt.Errorf("%w: %d inputs, %d witnesses", ErrNotEnoughSignatures, len(tx.Inputs), len(tx.Witnesses))
	}

	fee, err := p.Fees.Calculate(tx.Certificate != nil, len(tx.Inputs), len(tx.Outputs))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFeeCalculation, err)
	}
	in, err := tx.TotalInput()
	if err != nil {
		return err
	}
	out, err := tx.TotalOutput()
	if err != nil {
		return err
	}
	need, err := safemath.Add(out, fee)
	if err != nil {
		return err
	}
	if in != need {
		return &NotBalancedError{Inputs: in, Outputs: need}
	}

	for i, input := range tx.Inputs {
		w := tx.Witnesses[i]
		switch {
		case input.IsAccount():
			err = l.spendAccount(input, w, hash)
		case input.IsMultisig():
			err = l.spendMultisig(input, w, hash)
		default:
			err = l.spendUtxo(input, w, hash)
		}
		if err != nil {
			return fmt.Errorf("input %d: %w", i, err)
		}
	}
	if err := l.applyOutputs(id, tx.Outputs); err != nil {
		return err
	}
	fees, err := safemath.Add(l.pots.Fees, fee)
	if err != nil {
		return err
	}
	l.pots.Fees = fees
	return nil
}

func (l *Ledger) spendUtxo(in fragment.Input, w fragment.Witness, hash ids.ID) error {
	ptr := in.UtxoPointer()
	msg := fragment.UtxoWitnessData(l.static.Block0ID, hash)
	if out, ok := l.utxos.get(ptr); ok {
		if out.Value != in.Value {
			return &UtxoValueNotMatchingError{Expected: in.Value, Value: out.Value}
		}
		if w.Kind != fragment.WitnessUtxo {
			return ErrExpectingUtxoWitness
		}
		if !ed25519.Verify(msg, out.Address.SpendingKey(), w.Signature) {
			return fmt.Errorf("%w: %s", ErrUtxoInvalidSignature, ptr)
		}
		l.utxos.delete(ptr)
		return nil
	}
	if out, ok := l.legacy.get(ptr); ok {
		if out.Value != in.Value {
			return &UtxoValueNotMatchingError{Expected: in.Value, Value: out.Value}
		}
		if w.Kind != fragment.WitnessOldUtxo {
			return ErrExpectingUtxoWitness
		}
		if fragment.LegacyAddress(w.PublicKey[:]) != out.Address {
			return fmt.Errorf("%w: %s", ErrOldUtxoInvalidPublicKey, ptr)
		}
		if !ed25519.Verify(msg, w.PublicKey, w.Signature) {
			return fmt.Errorf("%w: %s", ErrUtxoInvalidSignature, ptr)
		}
		l.legacy.delete(ptr)
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUtxoNotFound, ptr)
}

func (l *Ledger) spendAccount(in fragment.Input, w fragment.Witness, hash ids.ID) error {
	acct, ok := l.accounts.get(in.Ref)
	if !ok {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, in.Ref)
	}
	if w.Kind != fragment.WitnessAccount {
		return ErrExpectingAccountWitness
	}
	msg := fragment.AccountWitnessData(l.static.Block0ID, hash, acct.Counter)
	if !ed25519.Verify(msg, ed25519.PublicKey(in.Ref), w.Signature) {
		return fmt.Errorf("%w: %s", ErrAccountInvalidSignature, in.Ref)
	}
	value, err := safemath.Sub(acct.Value, in.Value)
	if err != nil {
		return fmt.Errorf("%w: %d < %d", ErrAccountNotEnoughValue, acct.Value, in.Value)
	}
	if acct.Counter == math.MaxUint32 {
		return ErrSpendingCounterOverflow
	}
	acct.Value = value
	acct.Counter++
	l.accounts.set(in.Ref, acct)
	return nil
}

func (l *Ledger) spendMultisig(in fragment.Input, w fragment.Witness, hash ids.ID) error {
	acct, ok := l.multisig.get(in.Ref)
	if !ok {
		return fmt.Errorf("%w: %s", ErrMultisigAccountNotFound, in.Ref)
	}
	if w.Kind != fragment.WitnessMultisig {
		return ErrExpectingAccountWitness
	}
	msg := fragment.MultisigWitnessData(l.static.Block0ID, hash, acct.Counter)
	decl := acct.Declaration
	if err := fragment.VerifyQuorum(decl.Owners, int(decl.Threshold), w.Multisig, msg); err != nil {
		return fmt.Errorf("%w: %w", ErrMultisigInvalidSignature, err)
	}
	value, err := safemath.Sub(acct.Value, in.Value)
	if err != nil {
		return fmt.Errorf("%w: %d < %d", ErrAccountNotEnoughValue, acct.Value, in.Value)
	}
	if acct.Counter == math.MaxUint32 {
		return ErrSpendingCounterOverflow
	}
	acct.Value = value
	acct.Counter++
	l.multisig.set(in.Ref, acct)
	return nil
}

func (l *Ledger) applyOutputs(id ids.ID, outputs []fragment.Output) error {
	for i, out := range outputs {
		if out.Value == 0 {
			return fmt.Errorf("%w: output %d", ErrZeroOutput, i)
		}
		if out.Address.Discrimination != l.static.Discrimination {
			return fmt.Errorf("%w: output %d is %s", ErrInvalidDiscrimination, i, out.Address.Discrimination)
		}
		ptr := fragment.UtxoPointer{FragmentID: id, OutputIndex: uint8(i)}
		switch out.Address.Kind {
		case address.KindSingle:
			l.utxos.set(ptr, out)
		case address.KindGroup:
			if !l.accounts.has(out.Address.Group) {
				l.accounts.set(out.Address.Group, Account{})
			}
			l.utxos.set(ptr, out)
		case address.KindAccount:
			acct, _ := l.accounts.get(out.Address.Spending)
			acct, err := acct.credit(out.Value)
			if err != nil {
				return err
			}
			l.accounts.set(out.Address.Spending, acct)
		case address.KindMultisig:
			acct, ok := l.multisig.get(out.Address.Spending)
			if !ok {
				return fmt.Errorf("%w: %s", ErrMultisigAccountNotFound, out.Address.Spending)
			}
			value, err := safemath.Add(acct.Value, out.Value)
			if err != nil {
				return err
			}
			acct.Value = value
			l.multisig.set(out.Address.Spending, acct)
		}
	}
	return nil
}
