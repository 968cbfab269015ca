package tx

import (
	"errors"
)

type DAOTxType uint8

const (
	DAOTxTypeUnknown        DAOTxType = 0
	DAOTxTypeTransfer       DAOTxType = 1
	DAOTxTypeCreateProposal DAOTxType = 2
	DAOTxTypeVote           DAOTxType = 3
	DAOTxTypePayProposal    DAOTxType = 4
)

func (t DAOTxType) String() string {
	switch t {
	case DAOTxTypeTransfer:
		return "transfer"
	case DAOTxTypeCreateProposal:
		return "create_proposal"
	case DAOTxTypeVote:
		return "vote"
	case DAOTxTypePayProposal:
		return "pay_proposal"
	default:
		return "unknown"
	}
}

const (
	DAOTxVersion0 uint8 = 0
)

var (
	ErrUnsupportedTxType    = errors.New("unsupported tx type")
	ErrUnmatchedTxType      = errors.New("unmatched tx type")
	ErrUnsupportedTxVersion = errors.New("unsupported tx version")
)
