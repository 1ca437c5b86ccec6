// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package address

import (
	"testing"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/praos/codec"
	"github.com/ava-labs/praos/crypto/ed25519"
)

func TestAddressRoundTrip(t *testing.T) {
	spending, err := ed25519.GeneratePrivateKey()
	require.NoError(t, err)
	account, err := ed25519.GeneratePrivateKey()
	require.NoError(t, err)

	tests := []struct {
		name string
		addr Address
	}{
		{"single", Single(Test, spending.PublicKey())},
		{"group", Group(Production, spending.PublicKey(), account.PublicKey())},
		{"account", Account(Test, account.PublicKey())},
		{"multisig", Multisig(Production, ids.GenerateTestID())},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)

			p := codec.NewWriter(tt.addr.Size(), tt.addr.Size())
			tt.addr.Marshal(p)
			require.NoError(p.Err())
			require.Len(p.Bytes(), tt.addr.Size())

			rp := codec.NewReader(p.Bytes(), tt.addr.Size())
			decoded, err := Unmarshal(rp)
			require.NoError(err)
			require.NoError(rp.Done())
			require.Equal(tt.addr, decoded)
		})
	}
}

func TestAddressUnknownKind(t *testing.T) {
	require := require.New(t)

	rp := codec.NewReader(append([]byte{0x09}, make([]byte, 32)...), 33)
	_, err := Unmarshal(rp)
	require.ErrorIs(err, ErrUnknownKind)
}

func TestDiscriminationValid(t *testing.T) {
	require := require.New(t)

	require.True(Production.Valid())
	require.True(Test.Valid())
	require.False(Discrimination(0).Valid())
}

func TestAccountKey(t *testing.T) {
	require := require.New(t)

	spending, err := ed25519.GeneratePrivateKey()
	require.NoError(err)
	account, err := ed25519.GeneratePrivateKey()
	require.NoError(err)

	id, ok := Group(Test, spending.PublicKey(), account.PublicKey()).AccountKey()
	require.True(ok)
	require.Equal(account.PublicKey().ID(), id)

	id, ok = Account(Test, account.PublicKey()).AccountKey()
	require.True(ok)
	require.Equal(account.PublicKey().ID(), id)

	_, ok = Single(Test, spending.PublicKey()).AccountKey()
	require.False(ok)

	msig := ids.GenerateTestID()
	id, ok = Multisig(Test, msig).MultisigID()
	require.True(ok)
	require.Equal(msig, id)
	_, ok = Single(Test, spending.PublicKey()).MultisigID()
	require.False(ok)
}

func TestParse(t *testing.T) {
	require := require.New(t)

	spending, err := ed25519.GeneratePrivateKey()
	require.NoError(err)
	account, err := ed25519.GeneratePrivateKey()
	require.NoError(err)

	for _, a := range []Address{
		Single(Production, spending.PublicKey()),
		Group(Test, spending.PublicKey(), account.PublicKey()),
		Account(Test, account.PublicKey()),
		Multisig(Production, ids.GenerateTestID()),
	} {
		parsed, err := Parse(a.String())
		require.NoError(err)
		require.Equal(a, parsed)
	}

	_, err = Parse("test:account")
	require.ErrorIs(err, ErrMalformed)
	_, err = Parse("main:account:" + ids.Empty.String())
	require.ErrorIs(err, ErrUnknownDiscrimination)
	_, err = Parse("test:script:" + ids.Empty.String())
	require.ErrorIs(err, ErrUnknownKind)
	_, err = Parse("test:group:" + ids.Empty.String())
	require.ErrorIs(err, ErrMalformed)
	_, err = Parse("test:account:nothex")
	require.ErrorIs(err, ErrMalformed)
}
