// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package fragment

import (
	"testing"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/praos/address"
	"github.com/ava-labs/praos/chaintime"
	"github.com/ava-labs/praos/codec"
	"github.com/ava-labs/praos/crypto/ed25519"
	"github.com/ava-labs/praos/params"
)

func newKey(t *testing.T) ed25519.PrivateKey {
	sk, err := ed25519.GeneratePrivateKey()
	require.NoError(t, err)
	return sk
}

func roundTrip(t *testing.T, c Content) *Fragment {
	require := require.New(t)

	f, err := New(c)
	require.NoError(err)
	require.Equal(byte(0), f.Bytes()[0])
	require.Equal(byte(c.Tag()), f.Bytes()[1])

	decoded, err := Unmarshal(f.Bytes())
	require.NoError(err)
	require.Equal(f.ID(), decoded.ID())
	require.Equal(c, decoded.Content())
	return decoded
}

func TestInitialRoundTrip(t *testing.T) {
	roundTrip(t, &Initial{Params: params.ConfigParams{
		params.Block0Date(1_700_000_000),
		params.Discrimination(address.Test),
		params.Consensus(params.ConsensusBft),
		params.SlotsPerEpoch(60),
		params.SlotDuration(2),
		params.KESUpdateSpeed(3600),
		params.AddBftLeader(ids.GenerateTestID()),
	}})
}

func TestOldUtxoDeclaration(t *testing.T) {
	require := require.New(t)

	sk := newKey(t)
	pk := sk.PublicKey()
	roundTrip(t, &OldUtxoDeclaration{Outputs: []LegacyOutput{
		{Address: LegacyAddress(pk[:]), Value: 100},
		{Address: ids.GenerateTestID(), Value: 5},
	}})

	_, err := New(&OldUtxoDeclaration{})
	require.ErrorIs(err, ErrTooManyItems)

	_, err = Unmarshal([]byte{0, byte(TagOldUtxoDeclaration), 0})
	require.ErrorIs(err, ErrEmptyDeclaration)
}

func TestTransactionRoundTrip(t *testing.T) {
	require := require.New(t)

	sender := newKey(t)
	receiver := newKey(t)
	tx := &Transaction{
		Inputs: []Input{
			UtxoInput(ids.GenerateTestID(), 1, 40),
			AccountInput(sender.PublicKey().ID(), 60),
		},
		Outputs: []Output{
			{Address: address.Single(address.Test, receiver.PublicKey()), Value: 90},
			{Address: address.Group(address.Test, receiver.PublicKey(), sender.PublicKey()), Value: 5},
		},
	}
	hash, err := tx.SignDataHash()
	require.NoError(err)
	block0 := ids.GenerateTestID()
	tx.Witnesses = []Witness{
		NewUtxoWitness(block0, hash, sender),
		NewAccountWitness(block0, hash, 0, sender),
	}

	decoded := roundTrip(t, tx)
	decodedTx, ok := decoded.Transaction()
	require.True(ok)
	require.Equal(TagTransaction, decoded.Tag())

	decodedHash, err := decodedTx.SignDataHash()
	require.NoError(err)
	require.Equal(hash, decodedHash)

	in, err := decodedTx.TotalInput()
	require.NoError(err)
	require.Equal(uint64(100), in)
	out, err := decodedTx.TotalOutput()
	require.NoError(err)
	require.Equal(uint64(95), out)

	require.True(decodedTx.Inputs[0].IsUtxo())
	require.Equal(uint8(1), decodedTx.Inputs[0].UtxoPointer().OutputIndex)
	require.True(decodedTx.Inputs[1].IsAccount())
}

func TestTransactionWitnessesNotInSignData(t *testing.T) {
	require := require.New(t)

	tx := &Transaction{
		Inputs:  []Input{AccountInput(ids.GenerateTestID(), 10)},
		Outputs: []Output{{Address: address.Account(address.Test, newKey(t).PublicKey()), Value: 10}},
	}
	before, err := tx.SignData()
	require.NoError(err)
	tx.Witnesses = []Witness{NewAccountWitness(ids.Empty, ids.Empty, 3, newKey(t))}
	after, err := tx.SignData()
	require.NoError(err)
	require.Equal(before, after)
	require.Equal(byte(TagTransaction), before[0])
}

func TestCertificateRoundTrip(t *testing.T) {
	owner := newKey(t)
	registration := PoolRegistration{
		StartValidity:       10,
		ManagementThreshold: 1,
		Owners:              []ed25519.PublicKey{owner.PublicKey()},
		Rewards:             params.TaxType{Fixed: 5, Ratio: params.Ratio{Numerator: 1, Denominator: 10}},
	}
	registration.Serial[0] = 1
	registration.VRF[0] = 2
	registration.KES = owner.PublicKey()

	sig := ed25519.Sign([]byte("msg"), owner)
	owners := OwnersSignature{Signatures: []IndexedSignature{{Index: 0, Signature: sig}}}
	account := AccountInput(owner.PublicKey().ID(), 1)

	tests := []struct {
		name string
		cert Certificate
		auth Auth
	}{
		{"stake delegation", &StakeDelegation{Account: owner.PublicKey().ID(), Pool: ids.GenerateTestID()}, AccountSignature{Signature: sig}},
		{"owner stake delegation", &OwnerStakeDelegation{Pool: ids.GenerateTestID()}, nil},
		{"pool registration", &registration, owners},
		{"pool retirement", &PoolRetirement{Pool: ids.GenerateTestID(), RetirementTime: 77}, owners},
		{"pool update", &PoolUpdate{Pool: ids.GenerateTestID(), LastRegistration: ids.GenerateTestID(), Registration: registration}, owners},
		{
			"update proposal",
			&UpdateProposal{Proposer: owner.PublicKey().ID(), Changes: params.ConfigParams{params.SlotDuration(5)}},
			AccountSignature{Signature: sig},
		},
		{"update vote", &UpdateVote{Proposal: ids.GenerateTestID(), Voter: owner.PublicKey().ID()}, AccountSignature{Signature: sig}},
		{
			"vote plan",
			&VotePlan{
				VoteStart:    chaintime.BlockDate{Epoch: 1},
				VoteEnd:      chaintime.BlockDate{Epoch: 2},
				CommitteeEnd: chaintime.BlockDate{Epoch: 3},
				Options:      3,
				Proposals:    []ids.ID{ids.GenerateTestID()},
			},
			SignerSignature{Signer: owner.PublicKey().ID(), Signature: sig},
		},
		{"vote cast", &VoteCast{Plan: ids.GenerateTestID(), Proposal: 0, Choice: 2}, nil},
		{"vote tally", &VoteTally{Plan: ids.GenerateTestID()}, SignerSignature{Signer: owner.PublicKey().ID(), Signature: sig}},
		{"multisig declaration", &MultisigDeclaration{Threshold: 1, Owners: []ed25519.PublicKey{owner.PublicKey()}}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := &Transaction{
				Inputs:      []Input{account},
				Certificate: tt.cert,
				Auth:        tt.auth,
				Witnesses:   []Witness{NewAccountWitness(ids.Empty, ids.Empty, 0, owner)},
			}
			f := roundTrip(t, tx)
			require.Equal(t, tt.cert.Tag(), f.Tag())
		})
	}
}

func TestCertificateAuthMismatch(t *testing.T) {
	require := require.New(t)

	_, err := New(&Transaction{Certificate: &PoolRetirement{Pool: ids.GenerateTestID()}})
	require.ErrorIs(err, ErrUnexpectedAuth)

	_, err = New(&Transaction{
		Certificate: &PoolRetirement{Pool: ids.GenerateTestID()},
		Auth:        AccountSignature{},
	})
	require.ErrorIs(err, ErrUnexpectedAuth)

	_, err = New(&Transaction{Auth: AccountSignature{}})
	require.ErrorIs(err, ErrUnexpectedAuth)
}

func TestPoolRegistrationID(t *testing.T) {
	require := require.New(t)

	r := &PoolRegistration{ManagementThreshold: 1, Owners: []ed25519.PublicKey{newKey(t).PublicKey()}, Rewards: params.ZeroTax()}
	id1, err := r.ID()
	require.NoError(err)
	id2, err := r.ID()
	require.NoError(err)
	require.Equal(id1, id2)

	r.StartValidity = 1
	id3, err := r.ID()
	require.NoError(err)
	require.NotEqual(id1, id3)

	r.Owners = make([]ed25519.PublicKey, MaxPoolOwners+1)
	_, err = r.ID()
	require.ErrorIs(err, ErrTooManyOwners)
}

func TestVotePlanInterval(t *testing.T) {
	require := require.New(t)

	plan := &VotePlan{
		VoteStart:    chaintime.BlockDate{Epoch: 2},
		VoteEnd:      chaintime.BlockDate{Epoch: 1},
		CommitteeEnd: chaintime.BlockDate{Epoch: 3},
	}
	f, err := New(&Transaction{Certificate: plan, Auth: SignerSignature{Signer: ids.GenerateTestID()}})
	require.NoError(err)
	_, err = Unmarshal(f.Bytes())
	require.ErrorIs(err, ErrInvalidPlanInterval)
}

func TestUnmarshalErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
		err  error
	}{
		{"empty", nil, nil},
		{"bad padding", []byte{1, byte(TagTransaction)}, ErrInvalidPadding},
		{"unknown tag", []byte{0, 99}, ErrUnknownTag},
		{"trailing bytes", []byte{0, byte(TagTransaction), 0, 0, 0, 0, 0, 0, 1}, codec.ErrTrailingBytes},
		{"unknown witness", []byte{0, byte(TagTransaction), 0, 0, 0, 0, 0, 1, 9}, ErrUnknownWitness},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Unmarshal(tt.raw)
			require.Error(t, err)
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
			}
		})
	}
}

func TestVerifyQuorum(t *testing.T) {
	keys := []ed25519.PrivateKey{newKey(t), newKey(t), newKey(t)}
	pks := make([]ed25519.PublicKey, len(keys))
	for i, k := range keys {
		pks[i] = k.PublicKey()
	}
	msg := MultisigWitnessData(ids.Empty, ids.GenerateTestID(), 4)
	sign := func(i uint8) IndexedSignature {
		return IndexedSignature{Index: i, Signature: ed25519.Sign(msg, keys[i])}
	}

	tests := []struct {
		name      string
		threshold int
		sigs      []IndexedSignature
		err       error
	}{
		{"quorum", 2, []IndexedSignature{sign(0), sign(2)}, nil},
		{"all", 3, []IndexedSignature{sign(0), sign(1), sign(2)}, nil},
		{"below threshold", 2, []IndexedSignature{sign(1)}, ErrQuorumNotMet},
		{"duplicate", 2, []IndexedSignature{sign(1), sign(1)}, ErrDuplicateSigner},
		{"out of range", 1, []IndexedSignature{{Index: 3}}, ErrSignerOutOfRange},
		{"wrong key", 1, []IndexedSignature{{Index: 0, Signature: sign(1).Signature}}, ErrInvalidSignature},
		{"zero threshold", 0, []IndexedSignature{sign(0)}, ErrInvalidThreshold},
		{"threshold above owners", 4, []IndexedSignature{sign(0)}, ErrInvalidThreshold},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.ErrorIs(t, VerifyQuorum(pks, tt.threshold, tt.sigs, msg), tt.err)
		})
	}
}

func TestMultisigWitness(t *testing.T) {
	require := require.New(t)

	keys := []ed25519.PrivateKey{newKey(t), newKey(t)}
	decl := &MultisigDeclaration{Threshold: 2, Owners: []ed25519.PublicKey{keys[0].PublicKey(), keys[1].PublicKey()}}
	id, err := decl.ID()
	require.NoError(err)

	tx := &Transaction{Inputs: []Input{MultisigInput(id, 5)}}
	hash, err := tx.SignDataHash()
	require.NoError(err)
	block0 := ids.GenerateTestID()
	w := NewMultisigWitness(block0, hash, 0, map[uint8]ed25519.PrivateKey{1: keys[1], 0: keys[0]})
	require.Len(w.Multisig, 2)
	require.Equal(uint8(0), w.Multisig[0].Index)
	require.NoError(VerifyQuorum(decl.Owners, int(decl.Threshold), w.Multisig, MultisigWitnessData(block0, hash, 0)))
	require.ErrorIs(VerifyQuorum(decl.Owners, int(decl.Threshold), w.Multisig, MultisigWitnessData(block0, hash, 1)), ErrInvalidSignature)

	tx.Witnesses = []Witness{w}
	roundTrip(t, tx)
}
