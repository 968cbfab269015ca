package state

import (
	"sync"

	"github.com/calehh/dao-app/types"
	cmtcrypto "github.com/cometbft/cometbft/crypto"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/cosmos/iavl"
	dbm "github.com/cosmos/iavl/db"
	"github.com/ethereum/go-ethereum/common"
)

type StateDB struct {
	mtx sync.RWMutex

	dir    string
	logger cmtlog.Logger
	ldb    dbm.DB
	db     *iavl.MutableTree

	state *State
}

func NewStateDB(dir string, logger cmtlog.Logger) (db *StateDB, err error) {
	logger = logger.With("module", "daodb")
	ldb, err := dbm.NewDB("dao", "goleveldb", dir)
	if err != nil {
		return nil, err
	}
	tdb := iavl.NewMutableTree(ldb, 128, true, Cometbft2CosmosLogger(logger))
	version, err := tdb.Load()
	if err != nil {
		ldb.Close()
		return nil, err
	}
	logger.Info("load db success", "version", version)
	st := newState(tdb, logger)
	st.dbVer = version
	st.readVer = version
	err = st.load()
	if err != nil {
		logger.Error("from daodb load fail", "err", err)
		ldb.Close()
		return nil, err
	}
	db = &StateDB{
		dir:    dir,
		logger: logger,
		ldb:    ldb,
		db:     tdb,
		state:  st,
	}
	return
}

// Close releases the tree and the leveldb handle underneath it.
func (db *StateDB) Close() (err error) {
	db.mtx.Lock()
	defer db.mtx.Unlock()
	err = db.db.Close()
	if cerr := db.ldb.Close(); err == nil {
		err = cerr
	}
	return
}

func (db *StateDB) Header() (header *StateHeader) {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	header = db.state.Header().Clone()
	return
}

// State is the last committed state. Callers must not write to it.
func (db *StateDB) State() *State {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	return db.state
}

// NewState opens the working set of the next block.
func (db *StateDB) NewState() (st *State) {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	st = db.state.nextState()
	return
}

// SetState commits st, which must have been flushed with Update.
func (db *StateDB) SetState(st *State) (hash common.Hash, err error) {
	db.mtx.Lock()
	defer db.mtx.Unlock()
	hash, err = st.save()
	if err != nil {
		return
	}
	db.state = st
	return
}

func (db *StateDB) GetAccount(addr cmtcrypto.Address) (acnt *Account, height uint64, err error) {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	acnt, err = db.state.GetAccount(addr)
	height = db.state.header.Height
	return
}

func (db *StateDB) GetProposal(idx uint64) (proposal *types.Proposal, height uint64, err error) {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	proposal, err = db.state.GetProposal(idx)
	height = db.state.header.Height
	return
}

// GetTreasury returns the treasury balance and the proposal count of the same committed block.
func (db *StateDB) GetTreasury() (balance uint64, proposals uint64, height uint64, err error) {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	balance, err = db.state.Treasury()
	proposals = db.state.ProposalCount()
	height = db.state.header.Height
	return
}

func (db *StateDB) GetVotes(voter cmtcrypto.Address) (votes []uint64, height uint64, err error) {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	votes, err = db.state.VotesOf(voter)
	height = db.state.header.Height
	return
}

func (db *StateDB) GetParams() (params types.Params, height uint64) {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	return db.state.Params(), db.state.header.Height
}
