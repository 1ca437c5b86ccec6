// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ledger

import (
	"errors"
	"fmt"

	"github.com/ava-labs/praos/block"
	"github.com/ava-labs/praos/chaintime"
)

// ErrBlock0 wraps every error that makes block0 unusable.
var ErrBlock0 = errors.New("invalid block0")

var (
	ErrExpectingInitialMessage    = errors.New("expected an initial fragment")
	ErrInitialMessageMissing      = errors.New("initial fragment is missing")
	ErrInitialMessageMany         = errors.New("only one initial fragment is allowed")
	ErrInitialMessageNoDate       = errors.New("missing block0 date in the initial fragment")
	ErrInitialMessageNoDiscrim    = errors.New("missing address discrimination in the initial fragment")
	ErrInitialMessageNoSlotDur    = errors.New("missing slot duration in the initial fragment")
	ErrInitialMessageNoSlotsEpoch = errors.New("missing slots per epoch in the initial fragment")
	ErrInitialMessageNoKesSpeed   = errors.New("missing KES update speed in the initial fragment")
	ErrInitialMessageNoLeader     = errors.New("missing consensus leader id in the initial fragment")
	ErrInitialMessageDuplicate    = errors.New("duplicate block0 parameter in the initial fragment")
	ErrTransactionHasInput        = errors.New("transaction should not have inputs in block0")
	ErrTransactionHasWitnesses    = errors.New("transaction should not have witnesses in block0")
	ErrCertTransactionHasInput    = errors.New("certificate should not have inputs in block0")
	ErrCertTransactionHasOutput   = errors.New("certificate should not have outputs in block0")
	ErrHasOwnerStakeDelegation    = errors.New("owner stake delegations are not valid in block0")
	ErrHasUpdateProposal          = errors.New("update proposals are not valid in block0")
	ErrHasUpdateVote              = errors.New("update votes are not valid in block0")
	ErrHasPoolManagement          = errors.New("pool management is not valid in block0")
	ErrHasVoting                  = errors.New("vote casts and tallies are not valid in block0")
	ErrUtxoTotalValueTooBig       = errors.New("total initial value is too big")
)

var (
	ErrBlock0OnlyFragmentReceived = errors.New("initial and old utxo fragments are only valid in block0")
	ErrWrongChainLength           = errors.New("wrong chain length")
	ErrNonMonotonicDate           = errors.New("non monotonic date")
	ErrTooManyFragments           = errors.New("too many fragments in block")
	ErrReadOnlySetting            = errors.New("setting can only be set in block0")

	ErrTooManyInputs         = errors.New("too many inputs")
	ErrTooManyOutputs        = errors.New("too many outputs")
	ErrTooManyWitnesses      = errors.New("too many witnesses")
	ErrNotEnoughSignatures   = errors.New("number of witnesses does not match number of inputs")
	ErrNotBalanced           = errors.New("inputs, outputs and fees are not balanced")
	ErrFeeCalculation        = errors.New("cannot compute fee")
	ErrZeroOutput            = errors.New("output with zero value")
	ErrInvalidDiscrimination = errors.New("invalid discrimination")

	ErrUtxoNotFound            = errors.New("utxo not found")
	ErrUtxoValueNotMatching    = errors.New("utxo value does not match")
	ErrUtxoInvalidSignature    = errors.New("utxo witness with invalid signature")
	ErrOldUtxoInvalidPublicKey = errors.New("legacy utxo witness with invalid public key")
	ErrExpectingUtxoWitness    = errors.New("expected a utxo witness")
	ErrExpectingAccountWitness = errors.New("expected an account witness")

	ErrAccountNotFound            = errors.New("account not found")
	ErrAccountNotEnoughValue      = errors.New("account does not hold enough value")
	ErrAccountInvalidSignature    = errors.New("account witness with invalid signature")
	ErrSpendingCounterOverflow    = errors.New("spending counter overflow")
	ErrMultisigAccountNotFound    = errors.New("multisig account not found")
	ErrMultisigAccountExists      = errors.New("multisig account already exists")
	ErrMultisigInvalidDeclaration = errors.New("invalid multisig declaration")
	ErrMultisigInvalidSignature   = errors.New("multisig witness with invalid signature")

	ErrCertificateInvalidAuth                   = errors.New("invalid certificate authentication")
	ErrStakeDelegationSignatureFailed           = errors.New("stake delegation signature failed")
	ErrStakeDelegationPoolKeyIsInvalid          = errors.New("stake delegation to unknown pool")
	ErrOwnerStakeDelegationInvalidTx            = errors.New("owner stake delegation expects one account input and no output")
	ErrPoolRegistrationHasNoOwner               = errors.New("pool registration with no owner")
	ErrPoolRegistrationManagementThresholdZero  = errors.New("pool registration management threshold is zero")
	ErrPoolRegistrationManagementThresholdAbove = errors.New("pool registration management threshold above owners")
	ErrPoolRegistrationSignatureFailed          = errors.New("pool registration signature failed")
	ErrPoolRetirementSignatureFailed            = errors.New("pool retirement signature failed")
	ErrPoolUpdateSignatureFailed                = errors.New("pool update signature failed")
	ErrPoolUpdateLastHashMismatch               = errors.New("pool update does not replace the current registration")
	ErrPoolAlreadyExists                        = errors.New("pool already registered")
	ErrPoolNotFound                             = errors.New("pool not found")

	ErrUpdateProposalSignatureFailed = errors.New("update proposal signature failed")
	ErrUpdateVoteSignatureFailed     = errors.New("update vote signature failed")
	ErrBadProposer                   = errors.New("proposer is not a bft leader")
	ErrBadVoter                      = errors.New("voter is not a bft leader")
	ErrDuplicateProposal             = errors.New("duplicate update proposal")
	ErrDuplicateVote                 = errors.New("duplicate update vote")
	ErrVoteForMissingProposal        = errors.New("vote for missing update proposal")

	ErrNotCommitteeMember      = errors.New("signer is not a committee member")
	ErrVotePlanSignatureFailed = errors.New("vote plan signature failed")
	ErrVotePlanInvalid         = errors.New("invalid vote plan")
	ErrVotePlanExists          = errors.New("vote plan already exists")
	ErrVotePlanNotFound        = errors.New("vote plan not found")
	ErrVoteOutsideWindow       = errors.New("vote outside of the voting window")
	ErrInvalidVote             = errors.New("invalid vote")
	ErrAlreadyVoted            = errors.New("account already voted on proposal")
	ErrTallyOutsideWindow      = errors.New("tally outside of the committee window")
	ErrAlreadyTallied          = errors.New("vote plan already tallied")
)

func block0Error(err error) error {
	return fmt.Errorf("%w: %w", ErrBlock0, err)
}

// NotBalancedError reports the value entering and leaving a transaction.
// Outputs includes the fee.
type NotBalancedError struct {
	Inputs  uint64
	Outputs uint64
}

func (e *NotBalancedError) Error() string {
	return fmt.Sprintf("%s: %d input, %d output", ErrNotBalanced, e.Inputs, e.Outputs)
}

func (*NotBalancedError) Unwrap() error { return ErrNotBalanced }

type WrongChainLengthError struct {
	Actual   block.ChainLength
	Expected block.ChainLength
}

func (e *WrongChainLengthError) Error() string {
	return fmt.Sprintf("%s: expected %d but received %d", ErrWrongChainLength, e.Expected, e.Actual)
}

func (*WrongChainLengthError) Unwrap() error { return ErrWrongChainLength }

type NonMonotonicDateError struct {
	BlockDate chaintime.BlockDate
	ChainDate chaintime.BlockDate
}

func (e *NonMonotonicDateError) Error() string {
	return fmt.Sprintf("%s: chain is at %s but the block is at %s", ErrNonMonotonicDate, e.ChainDate, e.BlockDate)
}

func (*NonMonotonicDateError) Unwrap() error { return ErrNonMonotonicDate }

type UtxoValueNotMatchingError struct {
	Expected uint64
	Value    uint64
}

func (e *UtxoValueNotMatchingError) Error() string {
	return fmt.Sprintf("%s: input declares %d, utxo holds %d", ErrUtxoValueNotMatching, e.Expected, e.Value)
}

func (*UtxoValueNotMatchingError) Unwrap() error { return ErrUtxoValueNotMatching }
