package app

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/calehh/dao-app/config"
	"github.com/calehh/dao-app/dao"
	"github.com/calehh/dao-app/state"
	"github.com/calehh/dao-app/tx"
	"github.com/calehh/dao-app/tx/handler"
	"github.com/calehh/dao-app/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	"github.com/cometbft/cometbft/crypto/ed25519"
	cmtbytes "github.com/cometbft/cometbft/libs/bytes"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testChainId = "dao-test"

type testChain struct {
	t       *testing.T
	app     *DAOApp
	metrics *dao.Metrics
	height  int64
	genesis time.Time
	alice   ed25519.PrivKey
	bob     ed25519.PrivKey
	nonces  map[string]uint64
}

func newTestChain(t *testing.T) *testChain {
	t.Helper()
	c := &testChain{
		t:       t,
		metrics: dao.NewMetrics(prometheus.NewRegistry()),
		genesis: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
		alice:   ed25519.GenPrivKey(),
		bob:     ed25519.GenPrivKey(),
		nonces:  make(map[string]uint64),
	}
	var err error
	c.app, err = NewDAOApp(config.DefaultAppConfig(t.TempDir()), cmtlog.NewNopLogger(), c.metrics)
	require.NoError(t, err)
	t.Cleanup(c.app.Stop)

	genesis := &types.AppGenesis{
		Accounts: []types.GenesisAccount{
			{PubKey: cmtbytes.HexBytes(c.alice.PubKey().Bytes()), Balance: 10},
			{PubKey: cmtbytes.HexBytes(c.bob.PubKey().Bytes()), Balance: 10},
		},
		Treasury: 1000,
		Params:   types.Params{VotingPeriod: time.Hour},
	}
	appState, err := json.Marshal(genesis)
	require.NoError(t, err)
	res, err := c.app.InitChain(context.Background(), &abcitypes.RequestInitChain{
		Time:          c.genesis,
		ChainId:       testChainId,
		AppStateBytes: appState,
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.AppHash)
	return c
}

func (c *testChain) signTx(key ed25519.PrivKey, tp tx.DAOTxType, payload any) []byte {
	c.t.Helper()
	addr := key.PubKey().Address().String()
	btx := &tx.DAOTx{
		Type:   tp,
		Nonce:  c.nonces[addr],
		PubKey: key.PubKey().Bytes(),
		Tx:     payload,
	}
	require.NoError(c.t, btx.Sign(key, testChainId))
	c.nonces[addr]++
	dat, err := tx.MarshalDAOTx(btx)
	require.NoError(c.t, err)
	return dat
}

func (c *testChain) block(at time.Duration, txs ...[]byte) []*abcitypes.ExecTxResult {
	c.t.Helper()
	c.height++
	ctx := context.Background()
	res, err := c.app.FinalizeBlock(ctx, &abcitypes.RequestFinalizeBlock{
		Txs:    txs,
		Height: c.height,
		Time:   c.genesis.Add(at),
	})
	require.NoError(c.t, err)
	require.Len(c.t, res.TxResults, len(txs))
	_, err = c.app.Commit(ctx, &abcitypes.RequestCommit{})
	require.NoError(c.t, err)
	return res.TxResults
}

func (c *testChain) query(path string, data []byte, v any) uint32 {
	c.t.Helper()
	res, err := c.app.Query(context.Background(), &abcitypes.RequestQuery{Path: path, Data: data})
	require.NoError(c.t, err)
	if res.Code == 0 {
		require.NoError(c.t, json.Unmarshal(res.Value, v))
	}
	return res.Code
}

func TestTreasuryLifecycle(t *testing.T) {
	c := newTestChain(t)
	alice := c.alice.PubKey().Address()
	bob := c.bob.PubKey().Address()

	results := c.block(time.Second,
		c.signTx(c.alice, tx.DAOTxTypeCreateProposal, &tx.CreateProposalTx{Description: "conference travel", Amount: 100}),
		c.signTx(c.bob, tx.DAOTxTypeVote, &tx.VoteTx{Proposal: 0, Support: true}),
	)
	for _, r := range results {
		require.Equal(t, handler.CodeOK, r.Code, r.Log)
	}

	var p types.Proposal
	require.Equal(t, uint32(0), c.query("/proposals/", EncodeIndex(0), &p))
	assert.Equal(t, uint64(1), p.VotesFor)
	assert.Equal(t, uint64(100), p.Amount)
	assert.True(t, p.Deadline.Equal(c.genesis.Add(time.Second+time.Hour)))

	results = c.block(2*time.Second, c.signTx(c.alice, tx.DAOTxTypePayProposal, &tx.PayProposalTx{Proposal: 0}))
	assert.Equal(t, handler.CodeUnmetCondition, results[0].Code)

	// the rejected payment still consumed alice's nonce
	results = c.block(time.Hour+time.Second, c.signTx(c.alice, tx.DAOTxTypePayProposal, &tx.PayProposalTx{Proposal: 0}))
	require.Equal(t, handler.CodeOK, results[0].Code, results[0].Log)
	require.Len(t, results[0].Events, 1)
	assert.Equal(t, types.EventPaymentMadeType, results[0].Events[0].Type)

	var treasury Treasury
	require.Equal(t, uint32(0), c.query("/treasury/", nil, &treasury))
	assert.Equal(t, uint64(900), treasury.Balance)
	assert.Equal(t, uint64(1), treasury.Proposals)

	var acnt state.Account
	require.Equal(t, uint32(0), c.query("/accounts/", alice, &acnt))
	assert.Equal(t, uint64(110), acnt.Balance)
	assert.Equal(t, uint64(3), acnt.Nonce)

	var votes []uint64
	require.Equal(t, uint32(0), c.query("/votes/", bob, &votes))
	assert.Equal(t, []uint64{0}, votes)

	var params types.Params
	require.Equal(t, uint32(0), c.query("/params/", nil, &params))
	assert.Equal(t, time.Hour, params.VotingPeriod)

	assert.Equal(t, QueryCodeNotFound, c.query("/proposals/", EncodeIndex(1), &p))
	assert.Equal(t, QueryCodeNoPath, c.query("/validators/", nil, &p))

	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.ProposalsCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.Payments))
	assert.Equal(t, 100.0, testutil.ToFloat64(c.metrics.AmountPaid))

	info, err := c.app.Info(context.Background(), &abcitypes.RequestInfo{})
	require.NoError(t, err)
	assert.Equal(t, c.height, info.LastBlockHeight)
}

func TestFailedTxKeepsState(t *testing.T) {
	c := newTestChain(t)
	outsider := ed25519.GenPrivKey()

	results := c.block(time.Second,
		c.signTx(outsider, tx.DAOTxTypeCreateProposal, &tx.CreateProposalTx{Amount: 1}),
		c.signTx(c.alice, tx.DAOTxTypeCreateProposal, &tx.CreateProposalTx{Amount: 5000}),
	)
	assert.Equal(t, handler.CodeUnauthorized, results[0].Code)
	assert.Equal(t, handler.CodeCapacity, results[1].Code)

	var treasury Treasury
	require.Equal(t, uint32(0), c.query("/treasury/", nil, &treasury))
	assert.Equal(t, uint64(0), treasury.Proposals)

	var acnt state.Account
	require.Equal(t, uint32(0), c.query("/accounts/", outsider.PubKey().Address(), &acnt))
	assert.Equal(t, uint64(1), acnt.Nonce)
	assert.Equal(t, uint64(0), acnt.Balance)
}

func TestCheckTx(t *testing.T) {
	c := newTestChain(t)
	ctx := context.Background()

	res, err := c.app.CheckTx(ctx, &abcitypes.RequestCheckTx{Tx: c.signTx(c.alice, tx.DAOTxTypeCreateProposal, &tx.CreateProposalTx{Amount: 3})})
	require.NoError(t, err)
	assert.Equal(t, handler.CodeOK, res.Code, res.Log)

	res, err = c.app.CheckTx(ctx, &abcitypes.RequestCheckTx{Tx: c.signTx(ed25519.GenPrivKey(), tx.DAOTxTypeVote, &tx.VoteTx{Proposal: 0})})
	require.NoError(t, err)
	assert.Equal(t, handler.CodeNotFound, res.Code)

	res, err = c.app.CheckTx(ctx, &abcitypes.RequestCheckTx{Tx: []byte("garbage")})
	require.NoError(t, err)
	assert.Equal(t, handler.CodeInternal, res.Code)

	dat := c.signTx(c.bob, tx.DAOTxTypeTransfer, &tx.TransferTx{To: []byte(state.TreasuryAddress), Amount: 1})
	forged, err := tx.UnmarshalDAOTx(dat)
	require.NoError(t, err)
	forged.Tx.(*tx.TransferTx).Amount = 10
	dat, err = tx.MarshalDAOTx(forged)
	require.NoError(t, err)
	res, err = c.app.CheckTx(ctx, &abcitypes.RequestCheckTx{Tx: dat})
	require.NoError(t, err)
	assert.Equal(t, handler.CodeInternal, res.Code)
	assert.Contains(t, res.Log, state.ErrTxSigInvalid.Error())
}

func TestPrepareAndProcessProposal(t *testing.T) {
	c := newTestChain(t)
	ctx := context.Background()
	good := c.signTx(c.alice, tx.DAOTxTypeCreateProposal, &tx.CreateProposalTx{Amount: 1})
	vote := c.signTx(c.alice, tx.DAOTxTypeVote, &tx.VoteTx{Proposal: 0, Support: true})
	failing := c.signTx(c.bob, tx.DAOTxTypePayProposal, &tx.PayProposalTx{Proposal: 3})

	prep, err := c.app.PrepareProposal(ctx, &abcitypes.RequestPrepareProposal{
		Txs:        [][]byte{good, failing, vote, []byte("garbage")},
		Height:     1,
		Time:       c.genesis.Add(time.Second),
		MaxTxBytes: 1 << 20,
	})
	require.NoError(t, err)
	assert.Equal(t, [][]byte{good, vote}, prep.Txs)

	proc, err := c.app.ProcessProposal(ctx, &abcitypes.RequestProcessProposal{
		Txs:    [][]byte{good, failing, vote},
		Height: 1,
		Time:   c.genesis.Add(time.Second),
	})
	require.NoError(t, err)
	assert.Equal(t, abcitypes.ResponseProcessProposal_ACCEPT, proc.Status)

	proc, err = c.app.ProcessProposal(ctx, &abcitypes.RequestProcessProposal{
		Txs:    [][]byte{vote},
		Height: 1,
		Time:   c.genesis.Add(time.Second),
	})
	require.NoError(t, err)
	assert.Equal(t, abcitypes.ResponseProcessProposal_REJECT, proc.Status)

	assert.Equal(t, 0.0, testutil.ToFloat64(c.metrics.ProposalsCreated))
}

func TestCommitWithoutFinalize(t *testing.T) {
	c := newTestChain(t)
	_, err := c.app.Commit(context.Background(), &abcitypes.RequestCommit{})
	assert.ErrorIs(t, err, ErrNoBlockState)
}

func TestIndexEncoding(t *testing.T) {
	for _, idx := range []uint64{0, 1, 255, 256, 1 << 40} {
		got, ok := DecodeIndex(EncodeIndex(idx))
		require.True(t, ok)
		assert.Equal(t, idx, got)
	}
	_, ok := DecodeIndex(nil)
	assert.False(t, ok)
}

func TestQueryReadsCommittedBlock(t *testing.T) {
	c := newTestChain(t)
	ctx := context.Background()
	alice := c.alice.PubKey().Address()

	c.height++
	res, err := c.app.FinalizeBlock(ctx, &abcitypes.RequestFinalizeBlock{
		Txs: [][]byte{
			c.signTx(c.alice, tx.DAOTxTypeTransfer, &tx.TransferTx{To: []byte(state.TreasuryAddress), Amount: 5}),
			c.signTx(c.alice, tx.DAOTxTypeCreateProposal, &tx.CreateProposalTx{Description: "docs", Amount: 3}),
		},
		Height: c.height,
		Time:   c.genesis.Add(time.Second),
	})
	require.NoError(t, err)
	for _, r := range res.TxResults {
		require.Equal(t, handler.CodeOK, r.Code, r.Log)
	}

	var treasury Treasury
	require.Equal(t, uint32(0), c.query("/treasury/", nil, &treasury))
	assert.Equal(t, uint64(1000), treasury.Balance)
	assert.Equal(t, uint64(0), treasury.Proposals)
	var acnt state.Account
	require.Equal(t, uint32(0), c.query("/accounts/", alice, &acnt))
	assert.Equal(t, uint64(10), acnt.Balance)
	assert.Equal(t, uint64(0), acnt.Nonce)

	_, err = c.app.Commit(ctx, &abcitypes.RequestCommit{})
	require.NoError(t, err)

	require.Equal(t, uint32(0), c.query("/treasury/", nil, &treasury))
	assert.Equal(t, uint64(1005), treasury.Balance)
	assert.Equal(t, uint64(1), treasury.Proposals)
	require.Equal(t, uint32(0), c.query("/accounts/", alice, &acnt))
	assert.Equal(t, uint64(5), acnt.Balance)
	assert.Equal(t, uint64(2), acnt.Nonce)
}
