// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package blockchain

import (
	"errors"

	"github.com/ava-labs/praos/storage"
)

var (
	ErrBlock0AlreadyInStorage    = errors.New("block0 already in storage")
	ErrBlock0NotInStorage        = errors.New("block0 not in storage")
	ErrBlock0InitialLedger       = errors.New("block0 does not build a valid ledger")
	ErrBlock0NotGenesis          = errors.New("block0 header is not a genesis header")
	ErrNoTag                     = errors.New("tag not in storage")
	ErrNotLoaded                 = errors.New("blockchain is not loaded")
	ErrNonMonotonicDate          = errors.New("block date is not after the parent date")
	ErrInvalidChainLength        = errors.New("chain length does not follow the parent")
	ErrNotTheParent              = errors.New("header does not follow the given parent")
	ErrHeaderVerificationFailed  = errors.New("header verification failed")
	ErrCannotApplyBlock          = errors.New("cannot apply block")
	ErrBlockMismatch             = errors.New("block does not match the checked header")
	ErrMissingParentFromStorage  = errors.New("parent of a stored block is missing")
	ErrUnexpectedStoredBlock     = errors.New("stored block already present while loading")
	ErrPrecomputedLedgerMismatch = errors.New("precomputed ledger does not match the header")
	ErrSlotOutOfEpoch            = errors.New("block slot is past the end of its epoch")

	// ErrBlockExists is what [Storage.Put] fails with for a block it
	// already holds.
	ErrBlockExists = storage.ErrBlockExists
)
