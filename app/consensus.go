package app

import (
	"context"
	"errors"
	"time"

	"github.com/calehh/dao-app/state"
	"github.com/calehh/dao-app/tx"
	"github.com/calehh/dao-app/tx/handler"
	abcitypes "github.com/cometbft/cometbft/abci/types"
)

var (
	ErrUnexpectedTxProcess = errors.New("unexpected tx process")
	ErrNoBlockState        = errors.New("commit without finalized block")
)

func (app *DAOApp) getState(blockTime time.Time) (st *state.State) {
	st = app.db.NewState()
	st.SetBlockTime(blockTime)
	return
}

func (app *DAOApp) parseTx(st *state.State, txDat []byte, allowNonceGap bool) (btx *tx.DAOTx, err error) {
	btx, err = tx.UnmarshalDAOTx(txDat)
	if err != nil {
		return
	}
	_, err = st.Verify(btx, allowNonceGap)
	return
}

func (app *DAOApp) CheckTx(ctx context.Context, check *abcitypes.RequestCheckTx) (res *abcitypes.ResponseCheckTx, err error) {
	res = &abcitypes.ResponseCheckTx{Code: 0}
	st := app.db.State()
	btx, err := app.parseTx(st, check.Tx, true)
	if err != nil {
		app.logger.Info("parse tx fail", "err", err)
		res.Code = handler.CodeInternal
		res.Codespace = handler.Codespace
		res.Log = err.Error()
		return res, nil
	}
	h, ok := app.txHdlrs[btx.Type]
	if !ok {
		app.logger.Error("unsupported tx", "type", btx.Type)
		res.Code = handler.CodeInternal
		res.Log = tx.ErrUnsupportedTxType.Error()
		return res, nil
	}
	res, err = h.Check(ctx, st, btx)
	if err != nil {
		app.logger.Error("check tx fail", "err", err)
		res = &abcitypes.ResponseCheckTx{Code: handler.CodeInternal, Codespace: handler.Codespace, Log: err.Error()}
		err = nil
	}
	return
}

// deliverTx executes stx on a copy of st and returns the state to continue with. When
// the tx fails only the sender nonce is consumed. valid is false for a tx that cannot
// be parsed or verified. st itself is never modified.
func (app *DAOApp) deliverTx(ctx context.Context, hdlrs map[tx.DAOTxType]handler.TxHandler, st *state.State, stx []byte) (next *state.State, res *abcitypes.ExecTxResult, valid bool) {
	btx, err := app.parseTx(st, stx, false)
	if err != nil {
		app.logger.Info("invalid tx", "err", err)
		return st, &abcitypes.ExecTxResult{Code: handler.CodeInternal, Codespace: handler.Codespace, Log: err.Error()}, false
	}
	h, ok := hdlrs[btx.Type]
	if !ok {
		return st, &abcitypes.ExecTxResult{Code: handler.CodeInternal, Codespace: handler.Codespace, Log: tx.ErrUnsupportedTxType.Error()}, false
	}
	next = st.Clone()
	res, err = h.Process(ctx, next, btx)
	if err != nil || res == nil {
		app.logger.Error("unexpected process tx fail", "type", btx.Type, "err", err)
		if err == nil {
			err = ErrUnexpectedTxProcess
		}
		res = &abcitypes.ExecTxResult{Code: handler.CodeInternal, Codespace: handler.Codespace, Log: err.Error()}
	}
	if res.Code != handler.CodeOK {
		next = st.Clone()
	}
	if err = next.IncNonce(btx.PubKey); err != nil {
		app.logger.Error("inc nonce fail", "err", err)
		return st, &abcitypes.ExecTxResult{Code: handler.CodeInternal, Codespace: handler.Codespace, Log: err.Error()}, false
	}
	return next, res, true
}

func (app *DAOApp) PrepareProposal(ctx context.Context, proposal *abcitypes.RequestPrepareProposal) (res *abcitypes.ResponsePrepareProposal, err error) {
	st := app.getState(proposal.Time)
	txs := make([][]byte, 0, len(proposal.Txs))
	var size int64
	for _, stx := range proposal.Txs {
		if proposal.MaxTxBytes > 0 && size+int64(len(stx)) > proposal.MaxTxBytes {
			break
		}
		next, result, valid := app.deliverTx(ctx, app.dryHdlrs, st, stx)
		if !valid || result.Code != handler.CodeOK {
			app.logger.Info("prepare drop tx", "code", result.Code, "log", result.Log)
			continue
		}
		st = next
		size += int64(len(stx))
		txs = append(txs, stx)
	}
	app.logger.Info("PrepareProposal", "height", proposal.Height, "txs", len(txs), "dropped", len(proposal.Txs)-len(txs))
	return &abcitypes.ResponsePrepareProposal{Txs: txs}, nil
}

func (app *DAOApp) ProcessProposal(ctx context.Context, proposal *abcitypes.RequestProcessProposal) (res *abcitypes.ResponseProcessProposal, err error) {
	res = &abcitypes.ResponseProcessProposal{Status: abcitypes.ResponseProcessProposal_REJECT}
	st := app.getState(proposal.Time)
	for i, stx := range proposal.Txs {
		next, result, valid := app.deliverTx(ctx, app.dryHdlrs, st, stx)
		if !valid {
			app.logger.Error("proposal rejected", "height", proposal.Height, "tx", i, "log", result.Log)
			return res, nil
		}
		st = next
	}
	res.Status = abcitypes.ResponseProcessProposal_ACCEPT
	app.logger.Info("proposal accepted", "height", proposal.Height, "txs", len(proposal.Txs))
	return res, nil
}

func (app *DAOApp) FinalizeBlock(ctx context.Context, req *abcitypes.RequestFinalizeBlock) (*abcitypes.ResponseFinalizeBlock, error) {
	app.logger.Info("FinalizeBlock", "height", req.Height, "txs", len(req.Txs))
	app.lastBlk.Set(req)
	st := app.getState(req.Time)
	res := make([]*abcitypes.ExecTxResult, len(req.Txs))
	for i, stx := range req.Txs {
		st, res[i], _ = app.deliverTx(ctx, app.txHdlrs, st, stx)
	}
	h, err := st.Update()
	if err != nil {
		app.logger.Error("state update hash fail", "err", err)
		return nil, err
	}
	app.st = st
	return &abcitypes.ResponseFinalizeBlock{
		TxResults: res,
		AppHash:   h.Bytes(),
	}, nil
}

func (app *DAOApp) Commit(ctx context.Context, commit *abcitypes.RequestCommit) (*abcitypes.ResponseCommit, error) {
	if app.st == nil {
		return nil, ErrNoBlockState
	}
	_, err := app.db.SetState(app.st)
	if err != nil {
		return nil, err
	}
	app.st = nil
	app.logger.Info("Commit", "height", app.lastBlk.Height)
	return &abcitypes.ResponseCommit{}, nil
}
