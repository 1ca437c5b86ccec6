// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package fragment

import "errors"

var (
	ErrUnknownTag          = errors.New("unknown fragment tag")
	ErrInvalidPadding      = errors.New("fragment padding tag is not zero")
	ErrUnknownWitness      = errors.New("unknown witness kind")
	ErrUnexpectedAuth      = errors.New("unexpected payload authentication")
	ErrTooManyItems        = errors.New("too many items")
	ErrTooManyOwners       = errors.New("too many owners")
	ErrEmptyDeclaration    = errors.New("empty old utxo declaration")
	ErrNotTransaction      = errors.New("fragment does not carry a transaction")
	ErrQuorumNotMet        = errors.New("signature quorum not met")
	ErrDuplicateSigner     = errors.New("duplicate signer index")
	ErrSignerOutOfRange    = errors.New("signer index out of range")
	ErrInvalidSignature    = errors.New("invalid signature")
	ErrInvalidThreshold    = errors.New("invalid threshold")
	ErrInvalidPlanInterval = errors.New("invalid vote plan interval")
)
