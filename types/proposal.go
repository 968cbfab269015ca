package types

import (
	"time"

	"github.com/cometbft/cometbft/crypto"
)

type Proposal struct {
	Index        uint64         `json:"index"`
	Proposer     crypto.Address `json:"proposer"`
	Amount       uint64         `json:"amount"`
	Description  string         `json:"description"`
	VotesFor     uint64         `json:"votes_for"`
	VotesAgainst uint64         `json:"votes_against"`
	Created      time.Time      `json:"created"`
	Deadline     time.Time      `json:"deadline"`
	Closed       bool           `json:"closed"`
	Paid         bool           `json:"paid"`
}

// Passing reports a strict majority of the votes cast so far.
func (p *Proposal) Passing() bool {
	return p.VotesFor > p.VotesAgainst
}

// Matured reports whether now has reached the proposal deadline.
func (p *Proposal) Matured(now time.Time) bool {
	return !now.Before(p.Deadline)
}

func (p *Proposal) Clone() *Proposal {
	n := *p
	if p.Proposer != nil {
		n.Proposer = make(crypto.Address, len(p.Proposer))
		copy(n.Proposer, p.Proposer)
	}
	return &n
}

// Params are the governance parameters fixed at genesis.
type Params struct {
	VotingPeriod time.Duration `json:"voting_period"`
}

const DefaultVotingPeriod = 7 * 24 * time.Hour

func DefaultParams() Params {
	return Params{VotingPeriod: DefaultVotingPeriod}
}
