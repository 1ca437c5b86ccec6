// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ledger

import (
	"fmt"
	"slices"
	"time"

	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/praos/address"
	"github.com/ava-labs/praos/block"
	"github.com/ava-labs/praos/chaintime"
	"github.com/ava-labs/praos/fragment"
	"github.com/ava-labs/praos/params"
	"github.com/ava-labs/praos/utils"

	safemath "github.com/ava-labs/avalanchego/utils/math"
)

// Ledger is an immutable snapshot of the chain state after some block.
// Every transition returns a new Ledger and leaves the receiver untouched,
// so a Ledger may be shared between branches and goroutines.
type Ledger struct {
	static    *StaticParameters
	settings  *Settings
	era       *chaintime.TimeEra
	timeFrame *chaintime.TimeFrame

	utxos      table[fragment.UtxoPointer, fragment.Output]
	legacy     table[fragment.UtxoPointer, fragment.LegacyOutput]
	accounts   table[ids.ID, Account]
	multisig   table[ids.ID, MultisigAccount]
	pools      table[ids.ID, Pool]
	proposals  table[ids.ID, Proposal]
	votePlans  table[ids.ID, *VotePlanState]
	leadersLog table[ids.ID, uint32]
	pots       Pots

	nonce       ids.ID
	date        chaintime.BlockDate
	chainLength block.ChainLength
	// protocolEpoch is the last epoch whose protocol changes were
	// applied.
	protocolEpoch uint32
}

func empty() *Ledger {
	return &Ledger{
		utxos:      newUtxoTable[fragment.Output](),
		legacy:     newUtxoTable[fragment.LegacyOutput](),
		accounts:   newIDTable[Account](),
		multisig:   newIDTable[MultisigAccount](),
		pools:      newIDTable[Pool](),
		proposals:  newIDTable[Proposal](),
		votePlans:  newIDTable[*VotePlanState](),
		leadersLog: newIDTable[uint32](),
	}
}

// clone returns a working copy that can be mutated without affecting [l].
// Table values are either plain values or replaced as a whole on change.
func (l *Ledger) clone() *Ledger {
	c := *l
	c.utxos = l.utxos.clone()
	c.legacy = l.legacy.clone()
	c.accounts = l.accounts.clone()
	c.multisig = l.multisig.clone()
	c.pools = l.pools.clone()
	c.proposals = l.proposals.clone()
	c.votePlans = l.votePlans.clone()
	c.leadersLog = l.leadersLog.clone()
	return &c
}

// New builds the ledger of block0. The first fragment must be the Initial
// fragment, the rest may only declare initial value and stake.
func New(block0ID ids.ID, fragments []*fragment.Fragment) (*Ledger, error) {
	if len(fragments) == 0 {
		return nil, block0Error(ErrInitialMessageMissing)
	}
	initial, ok := fragments[0].Content().(*fragment.Initial)
	if !ok {
		return nil, block0Error(ErrExpectingInitialMessage)
	}

	l := empty()
	if err := l.applyInitial(block0ID, initial.Params); err != nil {
		return nil, block0Error(err)
	}
	for _, f := range fragments[1:] {
		if err := l.applyBlock0Fragment(f); err != nil {
			return nil, block0Error(fmt.Errorf("fragment %s: %w", f.ID(), err))
		}
	}
	if _, err := l.TotalValue(); err != nil {
		return nil, block0Error(fmt.Errorf("%w: %w", ErrUtxoTotalValueTooBig, err))
	}
	return l, nil
}

func (l *Ledger) applyInitial(block0ID ids.ID, cp params.ConfigParams) error {
	var (
		static  = &StaticParameters{Block0ID: block0ID}
		seen    = make(map[params.Tag]bool, len(cp))
		regular params.ConfigParams
	)
	for _, p := range cp {
		switch v := p.(type) {
		case params.Block0Date, params.Discrimination, params.SlotDuration,
			params.SlotsPerEpoch, params.KESUpdateSpeed:
			if seen[p.Tag()] {
				return fmt.Errorf("%w: tag %d", ErrInitialMessageDuplicate, p.Tag())
			}
			seen[p.Tag()] = true
			switch v := v.(type) {
			case params.Block0Date:
				static.Block0Date = uint64(v)
			case params.Discrimination:
				static.Discrimination = address.Discrimination(v)
			case params.SlotDuration:
				static.SlotDuration = uint8(v)
			case params.SlotsPerEpoch:
				static.SlotsPerEpoch = uint32(v)
			case params.KESUpdateSpeed:
				static.KESUpdateSpeed = uint32(v)
			}
		case params.TreasuryAdd:
			treasury, err := safemath.Add(l.pots.Treasury, uint64(v))
			if err != nil {
				return err
			}
			l.pots.Treasury = treasury
		case params.RewardPot:
			rewards, err := safemath.Add(l.pots.Rewards, uint64(v))
			if err != nil {
				return err
			}
			l.pots.Rewards = rewards
		default:
			regular = append(regular, p)
		}
	}
	switch {
	case !seen[params.TagBlock0Date]:
		return ErrInitialMessageNoDate
	case !seen[params.TagDiscrimination]:
		return ErrInitialMessageNoDiscrim
	case !seen[params.TagSlotDuration]:
		return ErrInitialMessageNoSlotDur
	case !seen[params.TagSlotsPerEpoch]:
		return ErrInitialMessageNoSlotsEpoch
	case !seen[params.TagKESUpdateSpeed]:
		return ErrInitialMessageNoKesSpeed
	}

	settings, err := NewSettings().Apply(regular)
	if err != nil {
		return err
	}
	if len(settings.BftLeaders) == 0 {
		return ErrInitialMessageNoLeader
	}
	era, err := chaintime.NewEra(0, 0, static.SlotsPerEpoch)
	if err != nil {
		return err
	}
	tf, err := chaintime.NewTimeFrame(
		time.Unix(int64(static.Block0Date), 0).UTC(),
		time.Duration(static.SlotDuration)*time.Second,
	)
	if err != nil {
		return err
	}
	l.static = static
	l.settings = settings
	l.era = era
	l.timeFrame = tf
	l.nonce = block0ID
	return nil
}

func (l *Ledger) applyBlock0Fragment(f *fragment.Fragment) error {
	switch c := f.Content().(type) {
	case *fragment.Initial:
		return ErrInitialMessageMany
	case *fragment.OldUtxoDeclaration:
		for i, o := range c.Outputs {
			l.legacy.set(fragment.UtxoPointer{FragmentID: f.ID(), OutputIndex: uint8(i)}, o)
		}
		return nil
	case *fragment.Transaction:
		return l.applyBlock0Transaction(f.ID(), c)
	default:
		return fmt.Errorf("%w: %s", fragment.ErrUnknownTag, f.Tag())
	}
}

func (l *Ledger) applyBlock0Transaction(id ids.ID, tx *fragment.Transaction) error {
	if tx.Certificate == nil {
		if len(tx.Inputs) != 0 {
			return ErrTransactionHasInput
		}
		if len(tx.Witnesses) != 0 {
			return ErrTransactionHasWitnesses
		}
		return l.applyOutputs(id, tx.Outputs)
	}

	switch tx.Certificate.(type) {
	case *fragment.OwnerStakeDelegation:
		return ErrHasOwnerStakeDelegation
	case *fragment.UpdateProposal:
		return ErrHasUpdateProposal
	case *fragment.UpdateVote:
		return ErrHasUpdateVote
	case *fragment.PoolRetirement, *fragment.PoolUpdate:
		return ErrHasPoolManagement
	case *fragment.VoteCast, *fragment.VoteTally:
		return ErrHasVoting
	}
	if len(tx.Inputs) != 0 {
		return ErrCertTransactionHasInput
	}
	if len(tx.Outputs) != 0 {
		return ErrCertTransactionHasOutput
	}
	switch c := tx.Certificate.(type) {
	case *fragment.StakeDelegation:
		return l.delegate(c.Account, c.Pool)
	case *fragment.PoolRegistration:
		return l.registerPool(c)
	case *fragment.MultisigDeclaration:
		return l.declareMultisig(c)
	case *fragment.VotePlan:
		return l.addVotePlan(c, chaintime.BlockDate{})
	default:
		return fmt.Errorf("%w: %s", fragment.ErrUnknownTag, tx.Tag())
	}
}

// ApplyBlock applies the fragments of a block whose header produced
// [ctx]. The chain length must follow the ledger's and the date must be
// after the ledger's.
func (l *Ledger) ApplyBlock(p Parameters, fragments []*fragment.Fragment, ctx block.ContentEvalContext) (*Ledger, error) {
	next, err := l.chainLength.Next()
	if err != nil {
		return nil, err
	}
	if ctx.ChainLength != next {
		return nil, &WrongChainLengthError{Actual: ctx.ChainLength, Expected: next}
	}
	if !l.date.Less(ctx.Date) {
		return nil, &NonMonotonicDateError{BlockDate: ctx.Date, ChainDate: l.date}
	}
	if uint64(len(fragments)) > uint64(l.settings.MaxTxPerBlock) {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyFragments, len(fragments), l.settings.MaxTxPerBlock)
	}

	c := l.clone()
	if ctx.Date.Epoch > l.protocolEpoch {
		if err := c.processProposals(ctx.Date); err != nil {
			return nil, err
		}
	}
	for _, f := range fragments {
		if err := c.applyFragment(p, f, ctx.Date); err != nil {
			return nil, fmt.Errorf("fragment %s: %w", f.ID(), err)
		}
	}
	c.date = ctx.Date
	c.chainLength = next
	if praos := ctx.Praos; praos != nil {
		c.nonce = utils.ToID(c.nonce[:], praos.Nonce[:])
		n, _ := c.leadersLog.get(praos.Pool)
		c.leadersLog.set(praos.Pool, n+1)
	}
	return c, nil
}

// ApplyFragment applies a single fragment as if included in a block at
// [date]. It is used to validate fragments before block production.
func (l *Ledger) ApplyFragment(p Parameters, f *fragment.Fragment, date chaintime.BlockDate) (*Ledger, error) {
	c := l.clone()
	if err := c.applyFragment(p, f, date); err != nil {
		return nil, err
	}
	return c, nil
}

func (l *Ledger) applyFragment(p Parameters, f *fragment.Fragment, date chaintime.BlockDate) error {
	switch c := f.Content().(type) {
	case *fragment.Initial, *fragment.OldUtxoDeclaration:
		return ErrBlock0OnlyFragmentReceived
	case *fragment.Transaction:
		return l.applyTransactionFragment(p, f.ID(), c, date)
	default:
		return fmt.Errorf("%w: %s", fragment.ErrUnknownTag, f.Tag())
	}
}

// ApplyProtocolChanges adopts the accepted update proposals and drops the
// expired ones, as happens on the first block of a new epoch. It returns
// [l] itself when the changes of [date]'s epoch are already applied.
func (l *Ledger) ApplyProtocolChanges(date chaintime.BlockDate) (*Ledger, error) {
	if date.Epoch <= l.protocolEpoch {
		return l, nil
	}
	c := l.clone()
	if err := c.processProposals(date); err != nil {
		return nil, err
	}
	return c, nil
}

// processProposals runs once per epoch: the quorum is taken from the
// leaders of the previous epoch.
func (l *Ledger) processProposals(date chaintime.BlockDate) error {
	quorum := len(l.settings.BftLeaders) / 2
	for _, id := range l.proposals.keys() {
		p, _ := l.proposals.get(id)
		switch {
		case p.Votes.Len() > quorum:
			settings, err := l.settings.Apply(p.Changes)
			if err != nil {
				return fmt.Errorf("proposal %s: %w", id, err)
			}
			l.settings = settings
			l.proposals.delete(id)
		case uint64(p.Date.Epoch)+uint64(l.settings.ProposalExpiration) < uint64(date.Epoch):
			l.proposals.delete(id)
		}
	}
	l.protocolEpoch = date.Epoch
	return nil
}

// TotalValue sums every value held by the ledger.
func (l *Ledger) TotalValue() (uint64, error) {
	total, err := l.pots.total()
	if err != nil {
		return 0, err
	}
	add := func(v uint64) bool {
		total, err = safemath.Add(total, v)
		return err == nil
	}
	l.utxos.ascend(func(_ fragment.UtxoPointer, o fragment.Output) bool { return add(o.Value) })
	if err == nil {
		l.legacy.ascend(func(_ fragment.UtxoPointer, o fragment.LegacyOutput) bool { return add(o.Value) })
	}
	if err == nil {
		l.accounts.ascend(func(_ ids.ID, a Account) bool { return add(a.Value) })
	}
	if err == nil {
		l.multisig.ascend(func(_ ids.ID, a MultisigAccount) bool { return add(a.Value) })
	}
	return total, err
}

func (l *Ledger) Parameters() Parameters {
	return Parameters{
		Fees:         l.settings.Fees,
		TreasuryTax:  l.settings.TreasuryTax,
		RewardParams: l.settings.RewardParams,
		FeesGoTo:     l.settings.FeesGoTo,
	}
}

// Settings must not be modified by the caller.
func (l *Ledger) Settings() *Settings                    { return l.settings }
func (l *Ledger) Static() StaticParameters               { return *l.static }
func (l *Ledger) Era() *chaintime.TimeEra                { return l.era }
func (l *Ledger) TimeFrame() *chaintime.TimeFrame        { return l.timeFrame }
func (l *Ledger) Consensus() params.ConsensusVersion     { return l.settings.Consensus }
func (l *Ledger) Date() chaintime.BlockDate              { return l.date }
func (l *Ledger) ChainLength() block.ChainLength         { return l.chainLength }
func (l *Ledger) Pots() Pots                             { return l.pots }
func (l *Ledger) Block0ID() ids.ID                       { return l.static.Block0ID }
func (l *Ledger) Discrimination() address.Discrimination { return l.static.Discrimination }

// Nonce is the consensus nonce: the block0 id folded with the VRF nonce of
// every Praos block applied since.
func (l *Ledger) Nonce() ids.ID { return l.nonce }

func (l *Ledger) Utxo(ptr fragment.UtxoPointer) (fragment.Output, bool) {
	o, ok := l.utxos.get(ptr)
	return o, ok
}

func (l *Ledger) LegacyUtxo(ptr fragment.UtxoPointer) (fragment.LegacyOutput, bool) {
	o, ok := l.legacy.get(ptr)
	return o, ok
}

func (l *Ledger) Account(id ids.ID) (Account, bool) {
	a, ok := l.accounts.get(id)
	return a, ok
}

func (l *Ledger) Multisig(id ids.ID) (MultisigAccount, bool) {
	a, ok := l.multisig.get(id)
	return a, ok
}

func (l *Ledger) Pool(id ids.ID) (Pool, bool) {
	p, ok := l.pools.get(id)
	return p, ok
}

// Pools returns the registered pool ids in ascending order.
func (l *Ledger) Pools() []ids.ID {
	return l.pools.keys()
}

func (l *Ledger) Proposal(id ids.ID) (Proposal, bool) {
	p, ok := l.proposals.get(id)
	return p, ok
}

func (l *Ledger) VotePlan(id ids.ID) (*VotePlanState, bool) {
	v, ok := l.votePlans.get(id)
	return v, ok
}

// LeadersLog returns how many blocks each pool produced in the current
// epoch.
func (l *Ledger) LeadersLog() map[ids.ID]uint32 {
	log := make(map[ids.ID]uint32, l.leadersLog.len())
	l.leadersLog.ascend(func(pool ids.ID, n uint32) bool {
		log[pool] = n
		return true
	})
	return log
}

func sortedIDs(list []ids.ID) []ids.ID {
	slices.SortFunc(list, compareIDs)
	return list
}
