// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package address

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/praos/codec"
	"github.com/ava-labs/praos/consts"
	"github.com/ava-labs/praos/crypto/ed25519"
)

var (
	ErrUnknownKind           = errors.New("unknown address kind")
	ErrUnknownDiscrimination = errors.New("unknown discrimination")
	ErrMalformed             = errors.New("malformed address")
)

type Discrimination uint8

const (
	Production Discrimination = 1
	Test       Discrimination = 2
)

func (d Discrimination) Valid() bool {
	return d == Production || d == Test
}

func (d Discrimination) String() string {
	switch d {
	case Production:
		return "production"
	case Test:
		return "test"
	default:
		return fmt.Sprintf("discrimination(%d)", uint8(d))
	}
}

type Kind uint8

const (
	KindSingle   Kind = 3
	KindGroup    Kind = 4
	KindAccount  Kind = 5
	KindMultisig Kind = 6

	testBit  = 0x80
	kindMask = 0x7f
)

// Address is where value is sent. Single and Group addresses are backed
// by utxos, the Group address additionally names the account whose
// delegation the utxo value follows. Account and Multisig addresses
// credit an account balance directly.
type Address struct {
	Discrimination Discrimination
	Kind           Kind
	// Spending is the spending key of Single and Group addresses, the
	// account key of Account addresses and the identifier of Multisig
	// addresses.
	Spending ids.ID
	// Group is the delegation account of Group addresses.
	Group ids.ID
}

func Single(d Discrimination, spending ed25519.PublicKey) Address {
	return Address{Discrimination: d, Kind: KindSingle, Spending: spending.ID()}
}

func Group(d Discrimination, spending ed25519.PublicKey, account ed25519.PublicKey) Address {
	return Address{Discrimination: d, Kind: KindGroup, Spending: spending.ID(), Group: account.ID()}
}

func Account(d Discrimination, account ed25519.PublicKey) Address {
	return Address{Discrimination: d, Kind: KindAccount, Spending: account.ID()}
}

func Multisig(d Discrimination, id ids.ID) Address {
	return Address{Discrimination: d, Kind: KindMultisig, Spending: id}
}

// SpendingKey returns the key that must witness spending a utxo held at
// this address.
func (a Address) SpendingKey() ed25519.PublicKey {
	return ed25519.PublicKey(a.Spending)
}

// AccountKey returns the account credited by an Account address or the
// delegation account of a Group address.
func (a Address) AccountKey() (ids.ID, bool) {
	switch a.Kind {
	case KindAccount:
		return a.Spending, true
	case KindGroup:
		return a.Group, true
	default:
		return ids.Empty, false
	}
}

func (a Address) MultisigID() (ids.ID, bool) {
	if a.Kind != KindMultisig {
		return ids.Empty, false
	}
	return a.Spending, true
}

func (a Address) Size() int {
	if a.Kind == KindGroup {
		return consts.ByteLen + 2*consts.IDLen
	}
	return consts.ByteLen + consts.IDLen
}

func (a Address) Marshal(p *codec.Packer) {
	head := byte(a.Kind) & kindMask
	if a.Discrimination == Test {
		head |= testBit
	}
	p.PackByte(head)
	p.PackID(a.Spending)
	if a.Kind == KindGroup {
		p.PackID(a.Group)
	}
}

func Unmarshal(p *codec.Packer) (Address, error) {
	head := p.UnpackByte()
	a := Address{
		Discrimination: Production,
		Kind:           Kind(head & kindMask),
	}
	if head&testBit != 0 {
		a.Discrimination = Test
	}
	switch a.Kind {
	case KindSingle, KindAccount, KindMultisig:
		p.UnpackID(true, &a.Spending)
	case KindGroup:
		p.UnpackID(true, &a.Spending)
		p.UnpackID(true, &a.Group)
	default:
		if p.Err() != nil {
			return Address{}, p.Err()
		}
		return Address{}, fmt.Errorf("%w: %d", ErrUnknownKind, a.Kind)
	}
	return a, p.Err()
}

func (a Address) String() string {
	switch a.Kind {
	case KindGroup:
		return fmt.Sprintf("%s:group:%s:%s", a.Discrimination, a.Spending, a.Group)
	case KindAccount:
		return fmt.Sprintf("%s:account:%s", a.Discrimination, a.Spending)
	case KindMultisig:
		return fmt.Sprintf("%s:multisig:%s", a.Discrimination, a.Spending)
	default:
		return fmt.Sprintf("%s:single:%s", a.Discrimination, a.Spending)
	}
}

// Parse reads the textual form produced by String.
func Parse(s string) (Address, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 3 {
		return Address{}, fmt.Errorf("%w: %q", ErrMalformed, s)
	}
	var a Address
	switch parts[0] {
	case "production":
		a.Discrimination = Production
	case "test":
		a.Discrimination = Test
	default:
		return Address{}, fmt.Errorf("%w: %q", ErrUnknownDiscrimination, parts[0])
	}
	want := 3
	switch parts[1] {
	case "single":
		a.Kind = KindSingle
	case "group":
		a.Kind = KindGroup
		want = 4
	case "account":
		a.Kind = KindAccount
	case "multisig":
		a.Kind = KindMultisig
	default:
		return Address{}, fmt.Errorf("%w: %q", ErrUnknownKind, parts[1])
	}
	if len(parts) != want {
		return Address{}, fmt.Errorf("%w: %q", ErrMalformed, s)
	}
	var err error
	if a.Spending, err = ids.FromString(parts[2]); err != nil {
		return Address{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if a.Kind == KindGroup {
		if a.Group, err = ids.FromString(parts[3]); err != nil {
			return Address{}, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
	}
	return a, nil
}
