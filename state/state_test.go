package state

import (
	"testing"
	"time"

	"github.com/calehh/dao-app/dao"
	"github.com/calehh/dao-app/tx"
	"github.com/calehh/dao-app/types"
	"github.com/cometbft/cometbft/crypto/ed25519"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *StateDB {
	t.Helper()
	db, err := NewStateDB(t.TempDir(), cmtlog.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func commit(t *testing.T, db *StateDB, st *State) common.Hash {
	t.Helper()
	h, err := st.Update()
	require.NoError(t, err)
	saved, err := db.SetState(st)
	require.NoError(t, err)
	require.Equal(t, h, saved)
	return saved
}

func TestTransfer(t *testing.T) {
	db := newTestDB(t)
	alice := ed25519.GenPrivKey().PubKey().Address()
	bob := ed25519.GenPrivKey().PubKey().Address()

	st := db.NewState()
	require.NoError(t, st.Mint(alice, 100))
	require.NoError(t, st.Transfer(alice, bob, 40))
	commit(t, db, st)

	st = db.NewState()
	balance, err := st.BalanceOf(alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(60), balance)
	balance, err = st.BalanceOf(bob)
	require.NoError(t, err)
	assert.Equal(t, uint64(40), balance)

	err = st.Transfer(bob, alice, 41)
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	balance, _ = st.BalanceOf(bob)
	assert.Equal(t, uint64(40), balance)

	unknown, err := db.State().GetAccount(ed25519.GenPrivKey().PubKey().Address())
	require.NoError(t, err)
	assert.Nil(t, unknown)
}

func TestMintOverflow(t *testing.T) {
	db := newTestDB(t)
	addr := ed25519.GenPrivKey().PubKey().Address()
	st := db.NewState()
	require.NoError(t, st.Mint(addr, ^uint64(0)))
	assert.ErrorIs(t, st.Mint(addr, 1), ErrBalanceOverflow)
}

func TestCloneIsolation(t *testing.T) {
	db := newTestDB(t)
	alice := ed25519.GenPrivKey().PubKey().Address()
	st := db.NewState()
	require.NoError(t, st.Mint(alice, 10))

	clone := st.Clone()
	require.NoError(t, clone.Transfer(alice, TreasuryAddress, 10))

	balance, _ := st.BalanceOf(alice)
	assert.Equal(t, uint64(10), balance)
	treasury, _ := st.Treasury()
	assert.Equal(t, uint64(0), treasury)
	treasury, _ = clone.Treasury()
	assert.Equal(t, uint64(10), treasury)
}

func TestGovernancePersists(t *testing.T) {
	db := newTestDB(t)
	alice := ed25519.GenPrivKey().PubKey().Address()
	bob := ed25519.GenPrivKey().PubKey().Address()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	st := db.NewState()
	st.SetBlockTime(start)
	st.SetParams(types.Params{VotingPeriod: time.Hour})
	require.NoError(t, st.Mint(alice, 5))
	require.NoError(t, st.Mint(bob, 5))
	require.NoError(t, st.Mint(TreasuryAddress, 100))
	commit(t, db, st)

	st = db.NewState()
	st.SetBlockTime(start)
	e := st.Engine(cmtlog.NewNopLogger())
	idx, _, err := e.CreateProposal(alice, "tooling", 30)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), idx)
	_, err = e.Vote(bob, idx, true)
	require.NoError(t, err)
	_, err = e.Vote(bob, idx, true)
	assert.ErrorIs(t, err, dao.ErrAlreadyVoted)
	commit(t, db, st)

	p, _, err := db.GetProposal(idx)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, uint64(1), p.VotesFor)
	assert.Equal(t, "tooling", p.Description)
	assert.True(t, p.Deadline.Equal(start.Add(time.Hour)))
	assert.Equal(t, types.Params{VotingPeriod: time.Hour}, db.State().Params())

	votes, _, err := db.GetVotes(bob)
	require.NoError(t, err)
	assert.Equal(t, []uint64{0}, votes)
	votes, _, err = db.GetVotes(alice)
	require.NoError(t, err)
	assert.Empty(t, votes)

	st = db.NewState()
	st.SetBlockTime(start.Add(time.Hour))
	_, err = st.Engine(cmtlog.NewNopLogger()).PayProposal(idx)
	require.NoError(t, err)
	commit(t, db, st)

	treasury, _, _, err := db.GetTreasury()
	require.NoError(t, err)
	assert.Equal(t, uint64(70), treasury)
	acnt, _, err := db.GetAccount(alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(35), acnt.Balance)
	p, _, _ = db.GetProposal(idx)
	assert.True(t, p.Closed)
}

func TestStateSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	db, err := NewStateDB(dir, cmtlog.NewNopLogger())
	require.NoError(t, err)
	alice := ed25519.GenPrivKey().PubKey().Address()
	bob := ed25519.GenPrivKey().PubKey().Address()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	params := types.Params{VotingPeriod: time.Hour}

	st := db.NewState()
	st.SetChainId("dao-test")
	st.SetBlockTime(start)
	st.SetParams(params)
	require.NoError(t, st.Mint(alice, 5))
	require.NoError(t, st.Mint(bob, 5))
	require.NoError(t, st.Mint(TreasuryAddress, 100))
	commit(t, db, st)

	st = db.NewState()
	st.SetBlockTime(start)
	e := st.Engine(cmtlog.NewNopLogger())
	idx, _, err := e.CreateProposal(alice, "tooling", 30)
	require.NoError(t, err)
	_, err = e.Vote(bob, idx, true)
	require.NoError(t, err)
	hash := commit(t, db, st)
	header := db.Header()
	require.NoError(t, db.Close())

	db, err = NewStateDB(dir, cmtlog.NewNopLogger())
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, hash.Bytes(), db.Header().Hash)
	assert.Equal(t, header.Height, db.Header().Height)
	assert.Equal(t, "dao-test", db.Header().ChainId)
	assert.Equal(t, params, db.State().Params())
	assert.Equal(t, uint64(1), db.State().ProposalCount())

	votes, _, err := db.GetVotes(bob)
	require.NoError(t, err)
	assert.Equal(t, []uint64{0}, votes)
	treasury, _, _, err := db.GetTreasury()
	require.NoError(t, err)
	assert.Equal(t, uint64(100), treasury)

	st = db.NewState()
	assert.Equal(t, header.Height+1, st.Header().Height)
	st.SetBlockTime(start.Add(time.Minute))
	e = st.Engine(cmtlog.NewNopLogger())
	_, err = e.Vote(bob, idx, false)
	assert.ErrorIs(t, err, dao.ErrDuplicate)
	next, _, err := e.CreateProposal(bob, "audit", 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), next)
	p, err := e.Proposal(idx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), p.VotesFor)
	assert.True(t, p.Deadline.Equal(start.Add(time.Hour)))
}

func TestHeightAdvances(t *testing.T) {
	db := newTestDB(t)
	st := db.NewState()
	assert.Equal(t, uint64(0), st.Header().Height)
	commit(t, db, st)
	st = db.NewState()
	assert.Equal(t, uint64(1), st.Header().Height)
	commit(t, db, st)
	assert.Equal(t, uint64(1), db.Header().Height)
	assert.NotEmpty(t, db.Header().Hash)
}

func TestDeterministicHash(t *testing.T) {
	alice := ed25519.GenPrivKey().PubKey().Address()
	bob := ed25519.GenPrivKey().PubKey().Address()
	run := func() common.Hash {
		db := newTestDB(t)
		st := db.NewState()
		st.SetChainId("dao-test")
		require.NoError(t, st.Mint(bob, 3))
		require.NoError(t, st.Mint(alice, 7))
		require.NoError(t, st.Mint(TreasuryAddress, 50))
		return commit(t, db, st)
	}
	assert.Equal(t, run(), run())
}

func signedTx(t *testing.T, key ed25519.PrivKey, nonce uint64, chainId string) *tx.DAOTx {
	t.Helper()
	btx := &tx.DAOTx{
		Type:   tx.DAOTxTypeVote,
		Nonce:  nonce,
		PubKey: key.PubKey().Bytes(),
		Tx:     &tx.VoteTx{Proposal: 0, Support: true},
	}
	require.NoError(t, btx.Sign(key, chainId))
	return btx
}

func TestVerify(t *testing.T) {
	db := newTestDB(t)
	key := ed25519.GenPrivKey()
	st := db.NewState()
	st.SetChainId("dao-test")

	addr, err := st.Verify(signedTx(t, key, 0, "dao-test"), false)
	require.NoError(t, err)
	assert.Equal(t, key.PubKey().Address(), addr)

	_, err = st.Verify(signedTx(t, key, 0, "other-chain"), false)
	assert.ErrorIs(t, err, ErrTxSigInvalid)

	_, err = st.Verify(signedTx(t, key, 2, "dao-test"), false)
	assert.ErrorIs(t, err, ErrTxNonceInvalid)
	_, err = st.Verify(signedTx(t, key, 2, "dao-test"), true)
	assert.NoError(t, err)

	require.NoError(t, st.IncNonce(key.PubKey().Bytes()))
	_, err = st.Verify(signedTx(t, key, 0, "dao-test"), true)
	assert.ErrorIs(t, err, ErrTxNonceInvalid)
	_, err = st.Verify(signedTx(t, key, 1, "dao-test"), false)
	assert.NoError(t, err)

	acnt, err := st.GetAccount(addr)
	require.NoError(t, err)
	assert.Equal(t, []byte(key.PubKey().Bytes()), acnt.PubKey)

	forged := signedTx(t, key, 1, "dao-test")
	forged.PubKey = ed25519.GenPrivKey().PubKey().Bytes()
	_, err = st.Verify(forged, false)
	assert.Error(t, err)
}

func TestAddAccountRecordsPubKey(t *testing.T) {
	db := newTestDB(t)
	key := ed25519.GenPrivKey()
	st := db.NewState()
	require.NoError(t, st.AddAccount(key.PubKey().Bytes(), key.PubKey().Address(), 9))
	commit(t, db, st)

	acnt, _, err := db.GetAccount(key.PubKey().Address())
	require.NoError(t, err)
	require.NotNil(t, acnt)
	assert.Equal(t, uint64(9), acnt.Balance)
	assert.Equal(t, []byte(key.PubKey().Bytes()), acnt.PubKey)

	other := ed25519.GenPrivKey()
	st = db.NewState()
	err = st.AddAccount(other.PubKey().Bytes(), other.PubKey().Address()[:4], 1)
	assert.ErrorIs(t, err, ErrInvalidAddress)
	require.NoError(t, st.AddAccount(other.PubKey().Bytes(), other.PubKey().Address(), 0))
	acnt, err = st.GetAccount(other.PubKey().Address())
	require.NoError(t, err)
	require.NotNil(t, acnt)
	assert.Equal(t, uint64(0), acnt.Balance)
	assert.Equal(t, []byte(other.PubKey().Bytes()), acnt.PubKey)
}
