package handler

import (
	"strconv"

	"github.com/calehh/dao-app/dao"
	"github.com/calehh/dao-app/state"
	"github.com/calehh/dao-app/tx"
	"github.com/calehh/dao-app/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
)

func NewCreateProposalTxHandler(logger cmtlog.Logger, metrics *dao.Metrics) TxHandler {
	return newBaseHandler(logger, metrics, tx.DAOTxTypeCreateProposal, processCreateProposal)
}

func processCreateProposal(_ *state.State, e *dao.Engine, sender []byte, btx *tx.DAOTx) (*abcitypes.ExecTxResult, error) {
	ptx := btx.Tx.(*tx.CreateProposalTx)
	idx, event, err := e.CreateProposal(sender, ptx.Description, ptx.Amount)
	if err != nil {
		return rejected(err), nil
	}
	return &abcitypes.ExecTxResult{
		Data:   []byte(strconv.FormatUint(idx, 10)),
		Events: []abcitypes.Event{types.EncodeEventNewProposal(event)},
	}, nil
}

func NewPayProposalTxHandler(logger cmtlog.Logger, metrics *dao.Metrics) TxHandler {
	return newBaseHandler(logger, metrics, tx.DAOTxTypePayProposal, processPayProposal)
}

// Anyone may trigger the payment; it only ever goes to the proposer.
func processPayProposal(_ *state.State, e *dao.Engine, _ []byte, btx *tx.DAOTx) (*abcitypes.ExecTxResult, error) {
	ptx := btx.Tx.(*tx.PayProposalTx)
	event, err := e.PayProposal(ptx.Proposal)
	if err != nil {
		return rejected(err), nil
	}
	return &abcitypes.ExecTxResult{
		Events: []abcitypes.Event{types.EncodeEventPaymentMade(event)},
	}, nil
}
