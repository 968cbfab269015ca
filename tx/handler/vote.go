package handler

import (
	"github.com/calehh/dao-app/dao"
	"github.com/calehh/dao-app/state"
	"github.com/calehh/dao-app/tx"
	"github.com/calehh/dao-app/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
)

func NewVoteTxHandler(logger cmtlog.Logger, metrics *dao.Metrics) TxHandler {
	return newBaseHandler(logger, metrics, tx.DAOTxTypeVote, processVote)
}

func processVote(_ *state.State, e *dao.Engine, sender []byte, btx *tx.DAOTx) (*abcitypes.ExecTxResult, error) {
	vtx := btx.Tx.(*tx.VoteTx)
	event, err := e.Vote(sender, vtx.Proposal, vtx.Support)
	if err != nil {
		return rejected(err), nil
	}
	return &abcitypes.ExecTxResult{
		Events: []abcitypes.Event{types.EncodeEventVote(event)},
	}, nil
}
