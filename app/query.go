package app

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/calehh/dao-app/state"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	"github.com/cometbft/cometbft/crypto"
	cmtbytes "github.com/cometbft/cometbft/libs/bytes"
	cmtlog "github.com/cometbft/cometbft/libs/log"
)

const (
	QueryCodeNotFound uint32 = 1
	QueryCodeInvalid  uint32 = 2
	QueryCodeInternal uint32 = 3
	QueryCodeNoPath   uint32 = 404
)

type Querier interface {
	Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error)
}

func (app *DAOApp) Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error) {
	path := req.Path
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	q, ok := app.queriers[path]
	if !ok {
		res = &abcitypes.ResponseQuery{}
		res.Code = QueryCodeNoPath
		return
	}
	res, err = q.Query(ctx, req)
	return
}

// DecodeIndex reads a proposal index sent as up to 8 big-endian bytes.
func DecodeIndex(dat []byte) (idx uint64, ok bool) {
	if len(dat) == 0 || len(dat) > 8 {
		return 0, false
	}
	for _, v := range dat {
		idx <<= 8
		idx |= uint64(v)
	}
	return idx, true
}

func EncodeIndex(idx uint64) []byte {
	dat := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		dat[i] = byte(idx)
		idx >>= 8
	}
	return dat
}

func respond(res *abcitypes.ResponseQuery, height uint64, v any, err error) {
	if err != nil {
		res.Code = QueryCodeInternal
		res.Log = err.Error()
		return
	}
	res.Height = int64(height)
	res.Value, err = json.Marshal(v)
	if err != nil {
		res.Code = QueryCodeInternal
		res.Log = err.Error()
	}
}

type AccountQuerier struct {
	db     *state.StateDB
	logger cmtlog.Logger
}

func NewAccountQuerier(db *state.StateDB, logger cmtlog.Logger) (q *AccountQuerier) {
	q = &AccountQuerier{
		db:     db,
		logger: logger,
	}
	return
}

func (q *AccountQuerier) Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error) {
	res = &abcitypes.ResponseQuery{}
	if len(req.Data) != crypto.AddressSize {
		res.Code = QueryCodeInvalid
		return
	}
	a, height, err := q.db.GetAccount(req.Data)
	if err == nil && a == nil {
		res.Code = QueryCodeNotFound
		return res, nil
	}
	respond(res, height, a, err)
	return res, nil
}

type ProposalQuerier struct {
	db     *state.StateDB
	logger cmtlog.Logger
}

func NewProposalQuerier(db *state.StateDB, logger cmtlog.Logger) (q *ProposalQuerier) {
	q = &ProposalQuerier{
		db:     db,
		logger: logger,
	}
	return
}

func (q *ProposalQuerier) Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error) {
	res = &abcitypes.ResponseQuery{}
	idx, ok := DecodeIndex(req.Data)
	if !ok {
		res.Code = QueryCodeInvalid
		return
	}
	p, height, err := q.db.GetProposal(idx)
	if err == nil && p == nil {
		res.Code = QueryCodeNotFound
		return res, nil
	}
	respond(res, height, p, err)
	return res, nil
}

type Treasury struct {
	Address   cmtbytes.HexBytes `json:"address"`
	Balance   uint64            `json:"balance"`
	Proposals uint64            `json:"proposals"`
}

type TreasuryQuerier struct {
	db     *state.StateDB
	logger cmtlog.Logger
}

func NewTreasuryQuerier(db *state.StateDB, logger cmtlog.Logger) (q *TreasuryQuerier) {
	q = &TreasuryQuerier{
		db:     db,
		logger: logger,
	}
	return
}

func (q *TreasuryQuerier) Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error) {
	res = &abcitypes.ResponseQuery{}
	balance, proposals, height, err := q.db.GetTreasury()
	respond(res, height, &Treasury{
		Address:   cmtbytes.HexBytes(state.TreasuryAddress),
		Balance:   balance,
		Proposals: proposals,
	}, err)
	return res, nil
}

type VotesQuerier struct {
	db     *state.StateDB
	logger cmtlog.Logger
}

func NewVotesQuerier(db *state.StateDB, logger cmtlog.Logger) (q *VotesQuerier) {
	q = &VotesQuerier{
		db:     db,
		logger: logger,
	}
	return
}

func (q *VotesQuerier) Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error) {
	res = &abcitypes.ResponseQuery{}
	if len(req.Data) != crypto.AddressSize {
		res.Code = QueryCodeInvalid
		return
	}
	votes, height, err := q.db.GetVotes(req.Data)
	respond(res, height, votes, err)
	return res, nil
}

type ParamsQuerier struct {
	db     *state.StateDB
	logger cmtlog.Logger
}

func NewParamsQuerier(db *state.StateDB, logger cmtlog.Logger) (q *ParamsQuerier) {
	q = &ParamsQuerier{
		db:     db,
		logger: logger,
	}
	return
}

func (q *ParamsQuerier) Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error) {
	res = &abcitypes.ResponseQuery{}
	params, height := q.db.GetParams()
	respond(res, height, params, nil)
	return res, nil
}
