// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ledger

import (
	"fmt"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/set"

	"github.com/ava-labs/praos/chaintime"
	"github.com/ava-labs/praos/crypto/ed25519"
	"github.com/ava-labs/praos/fragment"
)

// applyTransactionFragment checks the certificate authentication, moves
// the transaction value and then applies the certificate. Every check
// that does not depend on the value movement runs first.
func (l *Ledger) applyTransactionFragment(p Parameters, id ids.ID, tx *fragment.Transaction, date chaintime.BlockDate) error {
	hash, err := tx.SignDataHash()
	if err != nil {
		return err
	}
	if tx.Certificate == nil {
		return l.applyTransaction(p, id, hash, tx)
	}

	switch c := tx.Certificate.(type) {
	case *fragment.StakeDelegation:
		if !verifyAccountAuth(tx.Auth, c.Account, hash) {
			return ErrStakeDelegationSignatureFailed
		}
		if err := l.applyTransaction(p, id, hash, tx); err != nil {
			return err
		}
		return l.delegate(c.Account, c.Pool)

	case *fragment.OwnerStakeDelegation:
		owner, err := singleAccountInput(tx)
		if err != nil {
			return err
		}
		if err := l.applyTransaction(p, id, hash, tx); err != nil {
			return err
		}
		return l.delegate(owner, c.Pool)

	case *fragment.PoolRegistration:
		if err := validateRegistration(c); err != nil {
			return err
		}
		if err := verifyOwnersAuth(tx.Auth, c, hash); err != nil {
			return fmt.Errorf("%w: %w", ErrPoolRegistrationSignatureFailed, err)
		}
		if err := l.applyTransaction(p, id, hash, tx); err != nil {
			return err
		}
		return l.registerPool(c)

	case *fragment.PoolRetirement:
		pool, ok := l.pools.get(c.Pool)
		if !ok {
			return fmt.Errorf("%w: %s", ErrPoolNotFound, c.Pool)
		}
		if err := verifyOwnersAuth(tx.Auth, pool.Registration, hash); err != nil {
			return fmt.Errorf("%w: %w", ErrPoolRetirementSignatureFailed, err)
		}
		if err := l.applyTransaction(p, id, hash, tx); err != nil {
			return err
		}
		l.pools.delete(c.Pool)
		return nil

	case *fragment.PoolUpdate:
		pool, ok := l.pools.get(c.Pool)
		if !ok {
			return fmt.Errorf("%w: %s", ErrPoolNotFound, c.Pool)
		}
		if c.LastRegistration != pool.RegistrationID {
			return fmt.Errorf("%w: %s != %s", ErrPoolUpdateLastHashMismatch, c.LastRegistration, pool.RegistrationID)
		}
		if err := validateRegistration(&c.Registration); err != nil {
			return err
		}
		if err := verifyOwnersAuth(tx.Auth, pool.Registration, hash); err != nil {
			return fmt.Errorf("%w: %w", ErrPoolUpdateSignatureFailed, err)
		}
		if err := l.applyTransaction(p, id, hash, tx); err != nil {
			return err
		}
		return l.updatePool(c, pool)

	case *fragment.UpdateProposal:
		if !l.settings.IsBftLeader(c.Proposer) {
			return fmt.Errorf("%w: %s", ErrBadProposer, c.Proposer)
		}
		if !verifyAccountAuth(tx.Auth, c.Proposer, hash) {
			return ErrUpdateProposalSignatureFailed
		}
		if l.proposals.has(id) {
			return fmt.Errorf("%w: %s", ErrDuplicateProposal, id)
		}
		if _, err := l.settings.Apply(c.Changes); err != nil {
			return err
		}
		if err := l.applyTransaction(p, id, hash, tx); err != nil {
			return err
		}
		l.proposals.set(id, Proposal{
			Proposer: c.Proposer,
			Changes:  c.Changes,
			Date:     date,
			Votes:    set.NewSet[ids.ID](len(l.settings.BftLeaders)),
		})
		return nil

	case *fragment.UpdateVote:
		if !l.settings.IsBftLeader(c.Voter) {
			return fmt.Errorf("%w: %s", ErrBadVoter, c.Voter)
		}
		if !verifyAccountAuth(tx.Auth, c.Voter, hash) {
			return ErrUpdateVoteSignatureFailed
		}
		proposal, ok := l.proposals.get(c.Proposal)
		if !ok {
			return fmt.Errorf("%w: %s", ErrVoteForMissingProposal, c.Proposal)
		}
		if proposal.Votes.Contains(c.Voter) {
			return fmt.Errorf("%w: %s on %s", ErrDuplicateVote, c.Voter, c.Proposal)
		}
		if err := l.applyTransaction(p, id, hash, tx); err != nil {
			return err
		}
		votes := set.Of(proposal.Votes.List()...)
		votes.Add(c.Voter)
		proposal.Votes = votes
		l.proposals.set(c.Proposal, proposal)
		return nil

	case *fragment.VotePlan:
		if err := l.verifyCommitteeAuth(tx.Auth, hash); err != nil {
			return err
		}
		if err := l.applyTransaction(p, id, hash, tx); err != nil {
			return err
		}
		return l.addVotePlan(c, date)

	case *fragment.VoteCast:
		voter, err := singleAccountInput(tx)
		if err != nil {
			return err
		}
		if err := l.applyTransaction(p, id, hash, tx); err != nil {
			return err
		}
		return l.castVote(voter, c, date)

	case *fragment.VoteTally:
		if err := l.verifyCommitteeAuth(tx.Auth, hash); err != nil {
			return err
		}
		if err := l.applyTransaction(p, id, hash, tx); err != nil {
			return err
		}
		return l.tally(c, date)

	case *fragment.MultisigDeclaration:
		if err := l.applyTransaction(p, id, hash, tx); err != nil {
			return err
		}
		return l.declareMultisig(c)

	default:
		return fmt.Errorf("%w: %s", fragment.ErrUnknownTag, tx.Tag())
	}
}

func verifyAccountAuth(auth fragment.Auth, signer ids.ID, hash ids.ID) bool {
	sig, ok := auth.(fragment.AccountSignature)
	return ok && ed25519.Verify(hash[:], ed25519.PublicKey(signer), sig.Signature)
}

func verifyOwnersAuth(auth fragment.Auth, reg *fragment.PoolRegistration, hash ids.ID) error {
	sigs, ok := auth.(fragment.OwnersSignature)
	if !ok {
		return ErrCertificateInvalidAuth
	}
	return fragment.VerifyQuorum(reg.Owners, int(reg.ManagementThreshold), sigs.Signatures, hash[:])
}

func (l *Ledger) verifyCommitteeAuth(auth fragment.Auth, hash ids.ID) error {
	sig, ok := auth.(fragment.SignerSignature)
	if !ok {
		return ErrCertificateInvalidAuth
	}
	if !l.settings.IsCommitteeMember(sig.Signer) {
		return fmt.Errorf("%w: %s", ErrNotCommitteeMember, sig.Signer)
	}
	if !ed25519.Verify(hash[:], ed25519.PublicKey(sig.Signer), sig.Signature) {
		return ErrVotePlanSignatureFailed
	}
	return nil
}

// singleAccountInput returns the account of transactions funded by
// exactly one account input and sending nothing.
func singleAccountInput(tx *fragment.Transaction) (ids.ID, error) {
	if len(tx.Inputs) != 1 || len(tx.Outputs) != 0 || tx.Inputs[0].IsUtxo() {
		return ids.Empty, fmt.Errorf("%w: %d inputs, %d outputs", ErrOwnerStakeDelegationInvalidTx, len(tx.Inputs), len(tx.Outputs))
	}
	return tx.Inputs[0].Ref, nil
}

// delegate sets the delegation of an account or multisig account.
func (l *Ledger) delegate(account ids.ID, pool ids.ID) error {
	if !l.pools.has(pool) {
		return fmt.Errorf("%w: %s", ErrStakeDelegationPoolKeyIsInvalid, pool)
	}
	if acct, ok := l.accounts.get(account); ok {
		acct.Delegation = pool
		l.accounts.set(account, acct)
		return nil
	}
	if acct, ok := l.multisig.get(account); ok {
		acct.Delegation = pool
		l.multisig.set(account, acct)
		return nil
	}
	return fmt.Errorf("%w: %s", ErrAccountNotFound, account)
}

func validateRegistration(r *fragment.PoolRegistration) error {
	switch {
	case len(r.Owners) == 0:
		return ErrPoolRegistrationHasNoOwner
	case r.ManagementThreshold == 0:
		return ErrPoolRegistrationManagementThresholdZero
	case int(r.ManagementThreshold) > len(r.Owners):
		return fmt.Errorf("%w: %d > %d", ErrPoolRegistrationManagementThresholdAbove, r.ManagementThreshold, len(r.Owners))
	}
	return nil
}

func (l *Ledger) registerPool(r *fragment.PoolRegistration) error {
	if err := validateRegistration(r); err != nil {
		return err
	}
	id, err := r.ID()
	if err != nil {
		return err
	}
	if l.pools.has(id) {
		return fmt.Errorf("%w: %s", ErrPoolAlreadyExists, id)
	}
	l.pools.set(id, Pool{Registration: r, RegistrationID: id})
	return nil
}

func (l *Ledger) updatePool(u *fragment.PoolUpdate, current Pool) error {
	reg := u.Registration
	regID, err := reg.ID()
	if err != nil {
		return err
	}
	l.pools.set(u.Pool, Pool{
		Registration:   &reg,
		RegistrationID: regID,
		LastRewards:    current.LastRewards,
	})
	return nil
}

func (l *Ledger) declareMultisig(d *fragment.MultisigDeclaration) error {
	if d.Threshold == 0 || int(d.Threshold) > len(d.Owners) {
		return fmt.Errorf("%w: threshold %d of %d", ErrMultisigInvalidDeclaration, d.Threshold, len(d.Owners))
	}
	id, err := d.ID()
	if err != nil {
		return err
	}
	if l.multisig.has(id) {
		return fmt.Errorf("%w: %s", ErrMultisigAccountExists, id)
	}
	l.multisig.set(id, MultisigAccount{Declaration: d})
	return nil
}

func (l *Ledger) addVotePlan(v *fragment.VotePlan, date chaintime.BlockDate) error {
	if v.Options == 0 || len(v.Proposals) == 0 {
		return fmt.Errorf("%w: %d options, %d proposals", ErrVotePlanInvalid, v.Options, len(v.Proposals))
	}
	if v.VoteStart.Less(date) {
		return fmt.Errorf("%w: starts at %s before %s", ErrVotePlanInvalid, v.VoteStart, date)
	}
	id, err := v.ID()
	if err != nil {
		return err
	}
	if l.votePlans.has(id) {
		return fmt.Errorf("%w: %s", ErrVotePlanExists, id)
	}
	state := &VotePlanState{
		Plan:    v,
		Voters:  make([]set.Set[ids.ID], len(v.Proposals)),
		Choices: make([][]uint64, len(v.Proposals)),
	}
	for i := range v.Proposals {
		state.Voters[i] = set.NewSet[ids.ID](0)
		state.Choices[i] = make([]uint64, v.Options)
	}
	l.votePlans.set(id, state)
	return nil
}

func (l *Ledger) castVote(voter ids.ID, c *fragment.VoteCast, date chaintime.BlockDate) error {
	state, ok := l.votePlans.get(c.Plan)
	if !ok {
		return fmt.Errorf("%w: %s", ErrVotePlanNotFound, c.Plan)
	}
	plan := state.Plan
	if date.Less(plan.VoteStart) || !date.Less(plan.VoteEnd) {
		return fmt.Errorf("%w: %s not in [%s, %s)", ErrVoteOutsideWindow, date, plan.VoteStart, plan.VoteEnd)
	}
	if int(c.Proposal) >= len(plan.Proposals) || c.Choice >= plan.Options {
		return fmt.Errorf("%w: proposal %d choice %d", ErrInvalidVote, c.Proposal, c.Choice)
	}
	if state.Voters[c.Proposal].Contains(voter) {
		return fmt.Errorf("%w: %s", ErrAlreadyVoted, voter)
	}
	next := state.clone()
	next.Voters[c.Proposal].Add(voter)
	next.Choices[c.Proposal][c.Choice]++
	l.votePlans.set(c.Plan, next)
	return nil
}

func (l *Ledger) tally(c *fragment.VoteTally, date chaintime.BlockDate) error {
	state, ok := l.votePlans.get(c.Plan)
	if !ok {
		return fmt.Errorf("%w: %s", ErrVotePlanNotFound, c.Plan)
	}
	plan := state.Plan
	if date.Less(plan.VoteEnd) || !date.Less(plan.CommitteeEnd) {
		return fmt.Errorf("%w: %s not in [%s, %s)", ErrTallyOutsideWindow, date, plan.VoteEnd, plan.CommitteeEnd)
	}
	if state.Tallied {
		return fmt.Errorf("%w: %s", ErrAlreadyTallied, c.Plan)
	}
	next := state.clone()
	next.Tallied = true
	l.votePlans.set(c.Plan, next)
	return nil
}
