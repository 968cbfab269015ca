package handler

import (
	"context"
	"errors"

	"github.com/calehh/dao-app/dao"
	"github.com/calehh/dao-app/state"
	"github.com/calehh/dao-app/tx"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
)

const Codespace = "dao"

// Result codes of rejected transactions.
const (
	CodeOK                  uint32 = 0
	CodeInternal            uint32 = 1
	CodeUnauthorized        uint32 = 2
	CodeCapacity            uint32 = 3
	CodeNotFound            uint32 = 4
	CodeClosed              uint32 = 5
	CodeDuplicate           uint32 = 6
	CodeUnmetCondition      uint32 = 7
	CodeInsufficientBalance uint32 = 8
)

// TxHandler executes one transaction type against a block working set. Check runs
// against a throwaway copy; Process mutates st. A non-nil error means the tx could
// not be interpreted at all, a rejected tx is reported through a non-zero result code.
type TxHandler interface {
	Check(ctx context.Context, st *state.State, btx *tx.DAOTx) (res *abcitypes.ResponseCheckTx, err error)
	Process(ctx context.Context, st *state.State, btx *tx.DAOTx) (res *abcitypes.ExecTxResult, err error)
}

// ErrorCode maps a rejection to its result code.
func ErrorCode(err error) uint32 {
	if err == nil {
		return CodeOK
	}
	switch dao.Kind(err) {
	case dao.ErrUnauthorized:
		return CodeUnauthorized
	case dao.ErrCapacity:
		return CodeCapacity
	case dao.ErrNotFound:
		return CodeNotFound
	case dao.ErrClosed:
		return CodeClosed
	case dao.ErrDuplicate:
		return CodeDuplicate
	case dao.ErrUnmetCondition:
		return CodeUnmetCondition
	}
	if errors.Is(err, state.ErrInsufficientBalance) {
		return CodeInsufficientBalance
	}
	return CodeInternal
}

func rejected(err error) *abcitypes.ExecTxResult {
	return &abcitypes.ExecTxResult{
		Code:      ErrorCode(err),
		Codespace: Codespace,
		Log:       err.Error(),
	}
}

func checkResult(res *abcitypes.ExecTxResult) *abcitypes.ResponseCheckTx {
	return &abcitypes.ResponseCheckTx{
		Code:      res.Code,
		Codespace: res.Codespace,
		Log:       res.Log,
	}
}

type processFunc func(st *state.State, e *dao.Engine, sender []byte, btx *tx.DAOTx) (*abcitypes.ExecTxResult, error)

// baseHandler runs a processFunc for Process and, on a copy of the state without
// metrics, for Check.
type baseHandler struct {
	logger  cmtlog.Logger
	metrics *dao.Metrics
	tp      tx.DAOTxType
	fn      processFunc
}

func newBaseHandler(logger cmtlog.Logger, metrics *dao.Metrics, tp tx.DAOTxType, fn processFunc) *baseHandler {
	return &baseHandler{
		logger:  logger.With("module", tp.String()+"Tx"),
		metrics: metrics,
		tp:      tp,
		fn:      fn,
	}
}

func (h *baseHandler) run(st *state.State, btx *tx.DAOTx, metrics *dao.Metrics) (*abcitypes.ExecTxResult, error) {
	if btx.Type != h.tp {
		return nil, tx.ErrUnmatchedTxType
	}
	e := st.Engine(h.logger, dao.WithMetrics(metrics))
	return h.fn(st, e, btx.Sender(), btx)
}

func (h *baseHandler) Check(ctx context.Context, st *state.State, btx *tx.DAOTx) (res *abcitypes.ResponseCheckTx, err error) {
	result, err := h.run(st.Clone(), btx, nil)
	if err != nil {
		return nil, err
	}
	if result.Code != CodeOK {
		h.logger.Info("CheckTx rejected", "code", result.Code, "log", result.Log)
	}
	return checkResult(result), nil
}

func (h *baseHandler) Process(ctx context.Context, st *state.State, btx *tx.DAOTx) (res *abcitypes.ExecTxResult, err error) {
	return h.run(st, btx, h.metrics)
}

// NewHandlers returns the handler of every supported tx type.
func NewHandlers(logger cmtlog.Logger, metrics *dao.Metrics) map[tx.DAOTxType]TxHandler {
	return map[tx.DAOTxType]TxHandler{
		tx.DAOTxTypeTransfer:       NewTransferTxHandler(logger, metrics),
		tx.DAOTxTypeCreateProposal: NewCreateProposalTxHandler(logger, metrics),
		tx.DAOTxTypeVote:           NewVoteTxHandler(logger, metrics),
		tx.DAOTxTypePayProposal:    NewPayProposalTxHandler(logger, metrics),
	}
}
