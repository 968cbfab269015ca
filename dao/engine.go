// Package dao implements the treasury governance engine: stakeholders propose
// disbursements from the pooled treasury, vote on them once each, and a passing,
// matured proposal is paid out exactly once.
package dao

import (
	"fmt"
	"sync"
	"time"

	"github.com/calehh/dao-app/types"
	"github.com/cometbft/cometbft/crypto"
	cmtlog "github.com/cometbft/cometbft/libs/log"
)

// Ledger is the value ledger the treasury is held in.
type Ledger interface {
	BalanceOf(addr crypto.Address) (uint64, error)
	// Transfer moves amount from one account to another, entirely or not at all.
	Transfer(from, to crypto.Address, amount uint64) error
}

// Store keeps the proposal catalogue and the vote record.
type Store interface {
	ProposalCount() uint64
	// GetProposal returns nil without error for an unknown index.
	GetProposal(idx uint64) (*types.Proposal, error)
	// AddProposal stores p under p.Index, which is always ProposalCount().
	AddProposal(p *types.Proposal) error
	SetProposal(p *types.Proposal) error
	HasVoted(voter crypto.Address, idx uint64) (bool, error)
	AddVote(voter crypto.Address, idx uint64, support bool) error
	// VotesOf lists the proposals voter voted on, in the order the votes were cast.
	VotesOf(voter crypto.Address) ([]uint64, error)
}

type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

type Option func(e *Engine)

func WithClock(clock Clock) Option {
	return func(e *Engine) {
		e.clock = clock
	}
}

func WithMetrics(m *Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

type Engine struct {
	mtx sync.Mutex

	logger  cmtlog.Logger
	ledger  Ledger
	store   Store
	account crypto.Address
	params  types.Params
	clock   Clock
	metrics *Metrics
}

// NewEngine returns an engine whose treasury is the ledger balance of account.
func NewEngine(ledger Ledger, store Store, account crypto.Address, params types.Params, logger cmtlog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = cmtlog.NewNopLogger()
	}
	e := &Engine{
		logger:  logger.With("module", "dao"),
		ledger:  ledger,
		store:   store,
		account: account,
		params:  params,
		clock:   ClockFunc(time.Now),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) isStakeholder(addr crypto.Address) (bool, error) {
	balance, err := e.ledger.BalanceOf(addr)
	if err != nil {
		return false, err
	}
	return balance > 0, nil
}

// IsStakeholder reports whether addr currently holds a positive balance.
func (e *Engine) IsStakeholder(addr crypto.Address) (bool, error) {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	return e.isStakeholder(addr)
}

func (e *Engine) treasuryBalance() (uint64, error) {
	return e.ledger.BalanceOf(e.account)
}

func (e *Engine) TreasuryBalance() (uint64, error) {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	return e.treasuryBalance()
}

func (e *Engine) CreateProposal(caller crypto.Address, description string, amount uint64) (idx uint64, event *types.EventNewProposal, err error) {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	defer func() {
		if err != nil {
			e.metrics.reject("create_proposal", err)
		}
	}()

	ok, err := e.isStakeholder(caller)
	if err != nil {
		return 0, nil, err
	}
	if !ok {
		return 0, nil, ErrNotStakeholder
	}
	treasury, err := e.treasuryBalance()
	if err != nil {
		return 0, nil, err
	}
	if amount > treasury {
		return 0, nil, ErrAmountExceedsTreasury
	}

	now := e.clock.Now().UTC()
	proposal := &types.Proposal{
		Index:       e.store.ProposalCount(),
		Proposer:    caller,
		Amount:      amount,
		Description: description,
		Created:     now,
		Deadline:    now.Add(e.params.VotingPeriod),
	}
	if err = e.store.AddProposal(proposal); err != nil {
		return 0, nil, err
	}
	e.logger.Info("proposal created", "proposal", proposal.Index, "proposer", caller, "amount", amount, "deadline", proposal.Deadline)
	if e.metrics != nil {
		e.metrics.ProposalsCreated.Inc()
	}

	event = &types.EventNewProposal{
		Proposal:    proposal.Index,
		Proposer:    caller.String(),
		Amount:      amount,
		Description: description,
		Deadline:    proposal.Deadline,
	}
	return proposal.Index, event, nil
}

func (e *Engine) getProposal(idx uint64) (*types.Proposal, error) {
	if idx >= e.store.ProposalCount() {
		return nil, ErrProposalNoexists
	}
	proposal, err := e.store.GetProposal(idx)
	if err != nil {
		return nil, err
	}
	if proposal == nil {
		return nil, ErrProposalNoexists
	}
	return proposal, nil
}

func (e *Engine) Vote(caller crypto.Address, idx uint64, support bool) (event *types.EventVote, err error) {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	defer func() {
		if err != nil {
			e.metrics.reject("vote", err)
		}
	}()

	proposal, err := e.getProposal(idx)
	if err != nil {
		return nil, err
	}
	ok, err := e.isStakeholder(caller)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotStakeholder
	}
	if proposal.Closed {
		return nil, ErrProposalClosed
	}
	voted, err := e.store.HasVoted(caller, idx)
	if err != nil {
		return nil, err
	}
	if voted {
		return nil, ErrAlreadyVoted
	}

	updated := proposal.Clone()
	if support {
		updated.VotesFor += 1
	} else {
		updated.VotesAgainst += 1
	}
	if err = e.store.SetProposal(updated); err != nil {
		return nil, err
	}
	if err = e.store.AddVote(caller, idx, support); err != nil {
		if err1 := e.store.SetProposal(proposal); err1 != nil {
			e.logger.Error("restore tally fail", "proposal", idx, "err", err1)
		}
		return nil, err
	}
	e.logger.Info("vote cast", "proposal", idx, "voter", caller, "support", support,
		"for", updated.VotesFor, "against", updated.VotesAgainst)
	if e.metrics != nil {
		e.metrics.VotesCast.WithLabelValues(fmt.Sprintf("%v", support)).Inc()
	}

	return &types.EventVote{
		Proposal: idx,
		Voter:    caller.String(),
		Support:  support,
	}, nil
}

// PayProposal pays a passing, matured proposal to its proposer. The checks run in
// the order: exists, open, majority, deadline.
func (e *Engine) PayProposal(idx uint64) (event *types.EventPaymentMade, err error) {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	defer func() {
		if err != nil {
			e.metrics.reject("pay_proposal", err)
		}
	}()

	proposal, err := e.getProposal(idx)
	if err != nil {
		return nil, err
	}
	if proposal.Closed {
		return nil, ErrProposalClosed
	}
	if !proposal.Passing() {
		return nil, ErrInsufficientVotes
	}
	if !proposal.Matured(e.clock.Now()) {
		return nil, ErrProposalNotMatured
	}

	if err = e.ledger.Transfer(e.account, proposal.Proposer, proposal.Amount); err != nil {
		return nil, fmt.Errorf("pay proposal %d: %w", idx, err)
	}
	updated := proposal.Clone()
	updated.Closed = true
	updated.Paid = true
	if err = e.store.SetProposal(updated); err != nil {
		if err1 := e.ledger.Transfer(proposal.Proposer, e.account, proposal.Amount); err1 != nil {
			e.logger.Error("refund treasury fail", "proposal", idx, "err", err1)
		}
		return nil, err
	}
	e.logger.Info("payment made", "proposal", idx, "proposer", proposal.Proposer, "amount", proposal.Amount)
	if e.metrics != nil {
		e.metrics.Payments.Inc()
		e.metrics.AmountPaid.Add(float64(proposal.Amount))
	}

	return &types.EventPaymentMade{
		Proposal: idx,
		Proposer: proposal.Proposer.String(),
		Amount:   proposal.Amount,
	}, nil
}

// StakeholderVotes lists the proposals caller voted on, in cast order.
func (e *Engine) StakeholderVotes(caller crypto.Address) ([]uint64, error) {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	votes, err := e.store.VotesOf(caller)
	if err != nil {
		return nil, err
	}
	if votes == nil {
		votes = []uint64{}
	}
	return votes, nil
}

func (e *Engine) Proposal(idx uint64) (*types.Proposal, error) {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	proposal, err := e.getProposal(idx)
	if err != nil {
		return nil, err
	}
	return proposal.Clone(), nil
}

func (e *Engine) ProposalCount() uint64 {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	return e.store.ProposalCount()
}
