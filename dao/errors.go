package dao

import (
	"errors"
	"fmt"
)

// Error kinds. Every engine error wraps exactly one of them.
var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrCapacity       = errors.New("capacity exceeded")
	ErrNotFound       = errors.New("not found")
	ErrClosed         = errors.New("closed")
	ErrDuplicate      = errors.New("duplicate action")
	ErrUnmetCondition = errors.New("unmet condition")
)

var (
	ErrNotStakeholder        = fmt.Errorf("%w: only stakeholders may propose or vote", ErrUnauthorized)
	ErrAmountExceedsTreasury = fmt.Errorf("%w: amount exceeds treasury", ErrCapacity)
	ErrProposalNoexists      = fmt.Errorf("%w: proposal noexists", ErrNotFound)
	ErrProposalClosed        = fmt.Errorf("%w: proposal is no longer valid", ErrClosed)
	ErrAlreadyVoted          = fmt.Errorf("%w: stakeholder already voted on this proposal", ErrDuplicate)
	ErrInsufficientVotes     = fmt.Errorf("%w: proposal does not have enough votes to pass", ErrUnmetCondition)
	ErrProposalNotMatured    = fmt.Errorf("%w: proposal has not reached its deadline", ErrUnmetCondition)
)

// Kind returns the error kind err belongs to, or nil when it is not an engine error.
func Kind(err error) error {
	for _, kind := range []error{ErrUnauthorized, ErrCapacity, ErrNotFound, ErrClosed, ErrDuplicate, ErrUnmetCondition} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
