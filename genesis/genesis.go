// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package genesis

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/ids"
	"gopkg.in/yaml.v2"

	"github.com/ava-labs/praos/address"
	"github.com/ava-labs/praos/block"
	"github.com/ava-labs/praos/chaintime"
	"github.com/ava-labs/praos/consts"
	"github.com/ava-labs/praos/crypto/ed25519"
	"github.com/ava-labs/praos/crypto/kes"
	"github.com/ava-labs/praos/crypto/vrf"
	"github.com/ava-labs/praos/fragment"
	"github.com/ava-labs/praos/params"
)

// maxFunds is bounded by the one-byte utxo output index.
const maxFunds = 255

var (
	ErrMissingRules = errors.New("missing blockchain_configuration")
	ErrNoLeaders    = errors.New("no consensus leader ids")
	ErrInvalidKey   = errors.New("invalid key")
	ErrEmptyInitial = errors.New("initial entry declares nothing")
	ErrMixedInitial = errors.New("initial entry declares more than one kind")
	ErrTooManyFunds = errors.New("too many outputs in one fund entry")
)

// Genesis is the YAML description of block0.
type Genesis struct {
	Rules   *Rules     `yaml:"blockchain_configuration"`
	Initial []*Initial `yaml:"initial"`
}

// Initial is one block0 entry. Exactly one field is set.
type Initial struct {
	Fund             []*Fund              `yaml:"fund,omitempty"`
	LegacyFund       []*LegacyFund        `yaml:"legacy_fund,omitempty"`
	PoolRegistration *PoolRegistration    `yaml:"pool_registration,omitempty"`
	Delegation       *Delegation          `yaml:"delegation,omitempty"`
	Multisig         *MultisigDeclaration `yaml:"multisig,omitempty"`
}

type Fund struct {
	Address string `yaml:"address"`
	Value   uint64 `yaml:"value"`
}

// LegacyFund is a utxo inherited from a previous chain, spendable by the
// key whose legacy address is Address.
type LegacyFund struct {
	Address string `yaml:"address"`
	Value   uint64 `yaml:"value"`
}

type PoolRegistration struct {
	Serial              uint64         `yaml:"serial"`
	StartValidity       uint64         `yaml:"start_validity"`
	ManagementThreshold uint8          `yaml:"management_threshold"`
	Owners              []string       `yaml:"owners"`
	Rewards             params.TaxType `yaml:"rewards"`
	VRF                 string         `yaml:"vrf"`
	KES                 string         `yaml:"kes"`
}

type Delegation struct {
	Account string `yaml:"account"`
	Pool    string `yaml:"pool"`
}

type MultisigDeclaration struct {
	Threshold uint8    `yaml:"threshold"`
	Owners    []string `yaml:"owners"`
}

func NewDefaultGenesis(leaders ...ed25519.PublicKey) *Genesis {
	rules := NewDefaultRules()
	for _, l := range leaders {
		rules.LeaderIDs = append(rules.LeaderIDs, l.ID().String())
	}
	return &Genesis{Rules: rules}
}

// Parse reads a YAML genesis.
func Parse(raw []byte) (*Genesis, error) {
	g := &Genesis{}
	if err := yaml.UnmarshalStrict(raw, g); err != nil {
		return nil, err
	}
	if g.Rules == nil {
		return nil, ErrMissingRules
	}
	return g, nil
}

func (g *Genesis) Marshal() ([]byte, error) {
	return yaml.Marshal(g)
}

// Fragments returns the Initial fragment followed by one fragment per
// initial entry.
func (g *Genesis) Fragments() ([]*fragment.Fragment, error) {
	cp, err := g.Rules.ConfigParams()
	if err != nil {
		return nil, err
	}
	initial, err := fragment.New(&fragment.Initial{Params: cp})
	if err != nil {
		return nil, err
	}
	frags := []*fragment.Fragment{initial}
	for i, entry := range g.Initial {
		content, err := entry.content()
		if err != nil {
			return nil, fmt.Errorf("initial entry %d: %w", i, err)
		}
		f, err := fragment.New(content)
		if err != nil {
			return nil, fmt.Errorf("initial entry %d: %w", i, err)
		}
		frags = append(frags, f)
	}
	return frags, nil
}

// Block0 builds the unsigned genesis block.
func (g *Genesis) Block0() (*block.Block, error) {
	frags, err := g.Fragments()
	if err != nil {
		return nil, err
	}
	contents, err := block.NewContents(frags...)
	if err != nil {
		return nil, err
	}
	header, err := block.NewHeaderBuilder(block.VersionUnsigned, contents).
		Genesis().
		Date(chaintime.BlockDate{}).
		Unsigned()
	if err != nil {
		return nil, err
	}
	return &block.Block{Header: header, Contents: contents}, nil
}

func (i *Initial) content() (fragment.Content, error) {
	var (
		content fragment.Content
		set     int
		err     error
	)
	if len(i.Fund) > 0 {
		set++
		content, err = fundTransaction(i.Fund)
	}
	if len(i.LegacyFund) > 0 {
		set++
		content, err = legacyDeclaration(i.LegacyFund)
	}
	if i.PoolRegistration != nil {
		set++
		content, err = i.PoolRegistration.transaction()
	}
	if i.Delegation != nil {
		set++
		content, err = i.Delegation.transaction()
	}
	if i.Multisig != nil {
		set++
		content, err = i.Multisig.transaction()
	}
	switch {
	case set == 0:
		return nil, ErrEmptyInitial
	case set > 1:
		return nil, ErrMixedInitial
	}
	return content, err
}

func fundTransaction(funds []*Fund) (*fragment.Transaction, error) {
	if len(funds) > maxFunds {
		return nil, fmt.Errorf("%w: %d", ErrTooManyFunds, len(funds))
	}
	tx := &fragment.Transaction{Outputs: make([]fragment.Output, len(funds))}
	for i, f := range funds {
		a, err := address.Parse(f.Address)
		if err != nil {
			return nil, err
		}
		tx.Outputs[i] = fragment.Output{Address: a, Value: f.Value}
	}
	return tx, nil
}

func legacyDeclaration(funds []*LegacyFund) (*fragment.OldUtxoDeclaration, error) {
	if len(funds) > maxFunds {
		return nil, fmt.Errorf("%w: %d", ErrTooManyFunds, len(funds))
	}
	d := &fragment.OldUtxoDeclaration{Outputs: make([]fragment.LegacyOutput, len(funds))}
	for i, f := range funds {
		id, err := parseID(f.Address)
		if err != nil {
			return nil, err
		}
		d.Outputs[i] = fragment.LegacyOutput{Address: id, Value: f.Value}
	}
	return d, nil
}

func (r *PoolRegistration) transaction() (*fragment.Transaction, error) {
	owners, err := parseKeys(r.Owners)
	if err != nil {
		return nil, err
	}
	vrfKey, err := parseID(r.VRF)
	if err != nil {
		return nil, err
	}
	kesKey, err := parseID(r.KES)
	if err != nil {
		return nil, err
	}
	reg := &fragment.PoolRegistration{
		StartValidity:       r.StartValidity,
		ManagementThreshold: r.ManagementThreshold,
		Owners:              owners,
		Rewards:             r.Rewards,
		VRF:                 vrf.PublicKey(vrfKey),
		KES:                 kes.PublicKey(kesKey),
	}
	binary.BigEndian.PutUint64(reg.Serial[consts.Uint64Len:], r.Serial)
	return &fragment.Transaction{Certificate: reg, Auth: fragment.OwnersSignature{}}, nil
}

func (d *Delegation) transaction() (*fragment.Transaction, error) {
	account, err := parseID(d.Account)
	if err != nil {
		return nil, err
	}
	pool, err := parseID(d.Pool)
	if err != nil {
		return nil, err
	}
	return &fragment.Transaction{
		Certificate: &fragment.StakeDelegation{Account: account, Pool: pool},
		Auth:        fragment.AccountSignature{},
	}, nil
}

func (m *MultisigDeclaration) transaction() (*fragment.Transaction, error) {
	owners, err := parseKeys(m.Owners)
	if err != nil {
		return nil, err
	}
	return &fragment.Transaction{
		Certificate: &fragment.MultisigDeclaration{Threshold: m.Threshold, Owners: owners},
	}, nil
}

func parseID(s string) (ids.ID, error) {
	id, err := ids.FromString(s)
	if err != nil {
		return ids.Empty, fmt.Errorf("%w: %q: %w", ErrInvalidKey, s, err)
	}
	return id, nil
}

func parseKeys(ss []string) ([]ed25519.PublicKey, error) {
	keys := make([]ed25519.PublicKey, len(ss))
	for i, s := range ss {
		id, err := parseID(s)
		if err != nil {
			return nil, err
		}
		keys[i] = ed25519.PublicKey(id)
	}
	return keys, nil
}
