package handler

import (
	"fmt"

	"github.com/calehh/dao-app/dao"
	"github.com/calehh/dao-app/state"
	"github.com/calehh/dao-app/tx"
	"github.com/calehh/dao-app/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	"github.com/cometbft/cometbft/crypto"
	cmtlog "github.com/cometbft/cometbft/libs/log"
)

// NewTransferTxHandler moves ledger value between accounts. Sending to the treasury
// address funds the treasury.
func NewTransferTxHandler(logger cmtlog.Logger, metrics *dao.Metrics) TxHandler {
	return newBaseHandler(logger, metrics, tx.DAOTxTypeTransfer, processTransfer)
}

func processTransfer(st *state.State, _ *dao.Engine, sender []byte, btx *tx.DAOTx) (*abcitypes.ExecTxResult, error) {
	ttx := btx.Tx.(*tx.TransferTx)
	if len(ttx.To) != crypto.AddressSize {
		return rejected(fmt.Errorf("%w: %v", state.ErrInvalidAddress, ttx.To)), nil
	}
	if err := st.Transfer(sender, crypto.Address(ttx.To), ttx.Amount); err != nil {
		return rejected(err), nil
	}
	event := &types.EventTransfer{
		From:   crypto.Address(sender).String(),
		To:     crypto.Address(ttx.To).String(),
		Amount: ttx.Amount,
	}
	return &abcitypes.ExecTxResult{
		Events: []abcitypes.Event{types.EncodeEventTransfer(event)},
	}, nil
}
