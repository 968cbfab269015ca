package state

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/calehh/dao-app/dao"
	"github.com/calehh/dao-app/tx"
	"github.com/calehh/dao-app/types"
	cmtcrypto "github.com/cometbft/cometbft/crypto"
	"github.com/cometbft/cometbft/crypto/ed25519"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/cosmos/iavl"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/syndtr/goleveldb/leveldb"
)

const (
	ModifiedFlagNew = 1 << 0
	ModifiedFlagMod = 1 << 1
	ModifiedFlagPK  = 1 << 2
)

// TreasuryAddress is the ledger account holding the pooled treasury. No key controls it.
var TreasuryAddress = cmtcrypto.AddressHash([]byte("dao/treasury"))

var (
	KeyState         = "s"
	KeyParams        = "params"
	KeyAccountBody   = "a%x"
	KeyProposalBody  = "p%v"
	KeyProposalIndex = "pi"
	KeyVote          = "v%x/%v"
	KeyVoterList     = "vl%x"
)

var (
	ErrNotFound              = errors.New("not found")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrBalanceOverflow       = errors.New("balance overflow")
	ErrTxNonceInvalid        = errors.New("nonce invalid")
	ErrTxSigInvalid          = errors.New("signature invalid")
	ErrTxPubKeyInvalid       = errors.New("public key invalid")
	ErrTxPubKeyMismatch      = errors.New("public key mismatch")
	ErrProposalIndexMismatch = errors.New("proposal index mismatch")
	ErrInvalidAddress        = errors.New("invalid address")
)

// StateHeader is the committed summary of the state, stored under KeyState.
type StateHeader struct {
	ChainId   string
	Height    uint64
	BlockTime uint64
	RootHash  []byte
	Hash      []byte
}

func (h *StateHeader) GetHash() []byte {
	if h == nil {
		return nil
	}
	return h.Hash
}

func (h *StateHeader) Clone() *StateHeader {
	n := *h
	if h.RootHash != nil {
		n.RootHash = append([]byte(nil), h.RootHash...)
	}
	if h.Hash != nil {
		n.Hash = append([]byte(nil), h.Hash...)
	}
	return &n
}

// State is the working set of one block over the committed iavl tree. Writes are
// cached until Update flushes them into the tree.
type State struct {
	logger  cmtlog.Logger
	db      *iavl.MutableTree
	dbVer   int64
	readVer int64

	header      *StateHeader
	params      types.Params
	paramsDirty bool

	acnts         map[string]*Account
	modifiedAcnts map[string]uint32

	proposalCount uint64
	proposals     map[uint64]*types.Proposal
	votes         map[string]bool
	voteLists     map[string][]uint64
}

var _ dao.Ledger = &State{}
var _ dao.Store = &State{}
var _ dao.Clock = &State{}

func newState(db *iavl.MutableTree, logger cmtlog.Logger) *State {
	s := &State{
		logger:        logger,
		db:            db,
		dbVer:         0,
		header:        new(StateHeader),
		params:        types.DefaultParams(),
		acnts:         make(map[string]*Account),
		modifiedAcnts: make(map[string]uint32),
		proposals:     make(map[uint64]*types.Proposal),
		votes:         make(map[string]bool),
		voteLists:     make(map[string][]uint64),
	}
	return s
}

func (s *State) nextState() *State {
	n := newState(s.db, s.logger)
	n.dbVer = s.dbVer
	n.params = s.params
	n.proposalCount = s.proposalCount
	n.header = s.header.Clone()
	if s.header.GetHash() != nil {
		n.header.Height = s.header.Height + 1
	}
	return n
}

func deepCopyMap[K comparable, V any](source map[K]V) map[K]V {
	res := make(map[K]V, len(source))
	for k, v := range source {
		switch x := any(v).(type) {
		case *Account:
			res[k] = any(x.Clone()).(V)
		case *types.Proposal:
			res[k] = any(x.Clone()).(V)
		case []uint64:
			res[k] = any(append([]uint64(nil), x...)).(V)
		default:
			res[k] = v
		}
	}
	return res
}

// Clone returns an isolated copy of the working set sharing the same tree.
func (s *State) Clone() *State {
	return &State{
		logger:        s.logger,
		db:            s.db,
		dbVer:         s.dbVer,
		readVer:       s.readVer,
		header:        s.header.Clone(),
		params:        s.params,
		paramsDirty:   s.paramsDirty,
		acnts:         deepCopyMap(s.acnts),
		modifiedAcnts: deepCopyMap(s.modifiedAcnts),
		proposalCount: s.proposalCount,
		proposals:     deepCopyMap(s.proposals),
		votes:         deepCopyMap(s.votes),
		voteLists:     deepCopyMap(s.voteLists),
	}
}

// get reads key from the working tree, or from the saved version readVer when the
// state is a committed snapshot.
func (s *State) get(key string) (val []byte, err error) {
	if s.readVer > 0 {
		val, err = s.db.GetVersioned([]byte(key), s.readVer)
	} else {
		val, err = s.db.Get([]byte(key))
	}
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return val, nil
}

func (s *State) load() (err error) {
	val, err := s.get(KeyProposalIndex)
	if err != nil {
		return err
	}
	if val != nil {
		if err = rlp.DecodeBytes(val, &s.proposalCount); err != nil {
			return err
		}
	}
	val, err = s.get(KeyParams)
	if err != nil {
		return err
	}
	if val != nil {
		if err = json.Unmarshal(val, &s.params); err != nil {
			return err
		}
	}
	val, err = s.get(KeyState)
	if err != nil {
		return err
	}
	if val != nil {
		err = rlp.DecodeBytes(val, s.header)
		if err != nil {
			return
		}
		h := s.db.Hash()
		if h != nil {
			s.calcHash(h, true)
		}
	}
	return
}

func (s *State) calcHash(rootHash []byte, update bool) (h common.Hash) {
	h = crypto.Keccak256Hash(rootHash)
	if update {
		s.header.RootHash = append(s.header.RootHash[:0], rootHash...)
		s.header.Hash = append(s.header.Hash[:0], h[:]...)
	}
	return
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Update flushes the working set into the tree and returns the resulting app hash.
func (s *State) Update() (h common.Hash, err error) {
	var hash []byte
	defer func() {
		if hash == nil {
			s.db.Rollback()
		}
	}()
	var val []byte
	val, err = rlp.EncodeToBytes(s.header)
	if err != nil {
		return
	}
	_, err = s.db.Set([]byte(KeyState), val)
	if err != nil {
		return
	}

	if s.paramsDirty {
		val, err = json.Marshal(s.params)
		if err != nil {
			return
		}
		_, err = s.db.Set([]byte(KeyParams), val)
		if err != nil {
			return
		}
	}

	if len(s.proposals) != 0 {
		val, err = rlp.EncodeToBytes(s.proposalCount)
		if err != nil {
			return
		}
		_, err = s.db.Set([]byte(KeyProposalIndex), val)
		if err != nil {
			return
		}
		idxs := make([]uint64, 0, len(s.proposals))
		for idx := range s.proposals {
			idxs = append(idxs, idx)
		}
		sort.Slice(idxs, func(i, j int) bool {
			return idxs[i] < idxs[j]
		})
		for _, idx := range idxs {
			key := fmt.Sprintf(KeyProposalBody, idx)
			val, err = json.Marshal(s.proposals[idx])
			if err != nil {
				return
			}
			_, err = s.db.Set([]byte(key), val)
			if err != nil {
				return
			}
		}
	}

	for _, key := range sortedKeys(s.votes) {
		val = []byte{0}
		if s.votes[key] {
			val = []byte{1}
		}
		_, err = s.db.Set([]byte(key), val)
		if err != nil {
			return
		}
	}
	for _, key := range sortedKeys(s.voteLists) {
		val, err = rlp.EncodeToBytes(s.voteLists[key])
		if err != nil {
			return
		}
		_, err = s.db.Set([]byte(key), val)
		if err != nil {
			return
		}
	}

	for _, key := range sortedKeys(s.modifiedAcnts) {
		acnt := s.acnts[key]
		val, err = acnt.encode()
		if err != nil {
			return
		}
		_, err = s.db.Set([]byte(key), val)
		if err != nil {
			return
		}
	}
	hash = s.db.WorkingHash()
	h = s.calcHash(hash, false)

	s.paramsDirty = false
	s.acnts = make(map[string]*Account)
	s.modifiedAcnts = make(map[string]uint32)
	s.proposals = make(map[uint64]*types.Proposal)
	s.votes = make(map[string]bool)
	s.voteLists = make(map[string][]uint64)
	return
}

func (s *State) save() (h common.Hash, err error) {
	hash, ver, err := s.db.SaveVersion()
	if err != nil {
		return h, err
	}

	s.dbVer = ver
	s.readVer = ver
	h = s.calcHash(hash, true)

	return
}

func (s *State) Header() *StateHeader {
	return s.header
}

func (s *State) Hash() (h common.Hash) {
	if s.header.Hash != nil {
		copy(h[:], s.header.Hash)
	}
	return
}

func (s *State) SetChainId(chainId string) {
	s.header.ChainId = chainId
}

func (s *State) ChainId() string {
	return s.header.ChainId
}

// SetBlockTime sets the clock the governance engine sees while executing this block.
func (s *State) SetBlockTime(t time.Time) {
	s.header.BlockTime = uint64(t.UnixNano())
}

// Now is the time of the block being executed.
func (s *State) Now() time.Time {
	return time.Unix(0, int64(s.header.BlockTime)).UTC()
}

func (s *State) Params() types.Params {
	return s.params
}

func (s *State) SetParams(params types.Params) {
	s.params = params
	s.paramsDirty = true
}

// Engine returns a governance engine reading and writing this working set.
func (s *State) Engine(logger cmtlog.Logger, opts ...dao.Option) *dao.Engine {
	opts = append([]dao.Option{dao.WithClock(s)}, opts...)
	return dao.NewEngine(s, s, TreasuryAddress, s.params, logger, opts...)
}

func accountKey(addr cmtcrypto.Address) string {
	return fmt.Sprintf(KeyAccountBody, []byte(addr))
}

func (s *State) getAccount(addr cmtcrypto.Address) (acnt *Account, err error) {
	if len(addr) != cmtcrypto.AddressSize {
		return nil, ErrInvalidAddress
	}
	key := accountKey(addr)
	if acnt = s.acnts[key]; acnt != nil {
		return
	}
	val, err := s.get(key)
	if err != nil {
		return nil, err
	}
	if val == nil {
		return nil, nil
	}
	return decodeAccount(val)
}

// GetAccount returns a copy of the account at addr, or nil when it does not exist.
func (s *State) GetAccount(addr cmtcrypto.Address) (*Account, error) {
	acnt, err := s.getAccount(addr)
	if err != nil || acnt == nil {
		return nil, err
	}
	return acnt.Clone(), nil
}

func (s *State) loadOrNewAccount(addr cmtcrypto.Address) (acnt *Account, flag uint32, err error) {
	acnt, err = s.getAccount(addr)
	if err != nil {
		return nil, 0, err
	}
	if acnt == nil {
		return &Account{Address: append([]byte(nil), addr...)}, ModifiedFlagNew, nil
	}
	return acnt.Clone(), ModifiedFlagMod, nil
}

func (s *State) putAccount(acnt *Account, flag uint32) {
	key := accountKey(acnt.Addr())
	s.acnts[key] = acnt
	s.modifiedAcnts[key] |= flag
}

func (s *State) BalanceOf(addr cmtcrypto.Address) (uint64, error) {
	acnt, err := s.getAccount(addr)
	if err != nil {
		return 0, err
	}
	if acnt == nil {
		return 0, nil
	}
	return acnt.Balance, nil
}

// Transfer moves amount between two accounts. It changes nothing when it fails.
func (s *State) Transfer(from, to cmtcrypto.Address, amount uint64) error {
	fromAcc, fromFlag, err := s.loadOrNewAccount(from)
	if err != nil {
		return err
	}
	if fromAcc.Balance < amount {
		return fmt.Errorf("%w: %v has %d, needs %d", ErrInsufficientBalance, from, fromAcc.Balance, amount)
	}
	if bytes.Equal(from, to) {
		return nil
	}
	toAcc, toFlag, err := s.loadOrNewAccount(to)
	if err != nil {
		return err
	}
	if toAcc.Balance+amount < toAcc.Balance {
		return ErrBalanceOverflow
	}
	fromAcc.Balance -= amount
	toAcc.Balance += amount
	s.putAccount(fromAcc, fromFlag)
	s.putAccount(toAcc, toFlag)
	return nil
}

// Mint credits amount to addr out of nothing. Only genesis mints.
func (s *State) Mint(addr cmtcrypto.Address, amount uint64) error {
	acnt, flag, err := s.loadOrNewAccount(addr)
	if err != nil {
		return err
	}
	if acnt.Balance+amount < acnt.Balance {
		return ErrBalanceOverflow
	}
	acnt.Balance += amount
	s.putAccount(acnt, flag)
	return nil
}

// AddAccount registers a genesis account with its public key and balance.
func (s *State) AddAccount(pubkey []byte, addr cmtcrypto.Address, balance uint64) error {
	if err := s.Mint(addr, balance); err != nil {
		return err
	}
	if len(pubkey) == 0 {
		return nil
	}
	acnt, flag, err := s.loadOrNewAccount(addr)
	if err != nil {
		return err
	}
	acnt.SetPubKey(pubkey)
	s.putAccount(acnt, flag|ModifiedFlagPK)
	return nil
}

// IncNonce consumes the sender nonce and records its public key on first use.
func (s *State) IncNonce(pubkey []byte) error {
	addr := ed25519.PubKey(pubkey).Address()
	acnt, flag, err := s.loadOrNewAccount(addr)
	if err != nil {
		return err
	}
	if len(acnt.PubKey) == 0 {
		acnt.SetPubKey(pubkey)
		flag |= ModifiedFlagPK
	}
	acnt.Nonce += 1
	s.putAccount(acnt, flag)
	return nil
}

// Verify checks the signature and nonce of btx and returns the sender address.
func (s *State) Verify(btx *tx.DAOTx, allowNonceGap bool) (addr cmtcrypto.Address, err error) {
	if len(btx.PubKey) != ed25519.PubKeySize {
		return nil, ErrTxPubKeyInvalid
	}
	addr = btx.Sender()
	a, err := s.getAccount(addr)
	if err != nil {
		return nil, err
	}
	signer := &Account{Address: addr, PubKey: btx.PubKey}
	if a != nil {
		if len(a.PubKey) != 0 && !ed25519.PubKey(a.PubKey).Equals(ed25519.PubKey(btx.PubKey)) {
			return nil, ErrTxPubKeyMismatch
		}
		signer.Nonce = a.Nonce
	}
	if !(signer.Nonce == btx.Nonce || (allowNonceGap && signer.Nonce < btx.Nonce)) {
		return nil, ErrTxNonceInvalid
	}
	dat, err := btx.SigData([]byte(s.header.ChainId))
	if err != nil {
		return nil, err
	}
	if !signer.Verify(dat, btx.Sig) {
		return nil, ErrTxSigInvalid
	}
	return addr, nil
}

func (s *State) ProposalCount() uint64 {
	return s.proposalCount
}

func (s *State) GetProposal(idx uint64) (*types.Proposal, error) {
	if idx >= s.proposalCount {
		return nil, nil
	}
	if proposal, ok := s.proposals[idx]; ok {
		return proposal.Clone(), nil
	}
	val, err := s.get(fmt.Sprintf(KeyProposalBody, idx))
	if err != nil {
		return nil, err
	}
	if val == nil {
		return nil, nil
	}
	proposal := new(types.Proposal)
	if err = json.Unmarshal(val, proposal); err != nil {
		return nil, err
	}
	return proposal, nil
}

func (s *State) AddProposal(p *types.Proposal) error {
	if p.Index != s.proposalCount {
		return fmt.Errorf("%w: got %d, next is %d", ErrProposalIndexMismatch, p.Index, s.proposalCount)
	}
	s.proposals[p.Index] = p.Clone()
	s.proposalCount += 1
	return nil
}

func (s *State) SetProposal(p *types.Proposal) error {
	if p.Index >= s.proposalCount {
		return fmt.Errorf("%w: %d", ErrNotFound, p.Index)
	}
	s.proposals[p.Index] = p.Clone()
	return nil
}

func voteKey(voter cmtcrypto.Address, idx uint64) string {
	return fmt.Sprintf(KeyVote, []byte(voter), idx)
}

func voterListKey(voter cmtcrypto.Address) string {
	return fmt.Sprintf(KeyVoterList, []byte(voter))
}

func (s *State) HasVoted(voter cmtcrypto.Address, idx uint64) (bool, error) {
	key := voteKey(voter, idx)
	if _, ok := s.votes[key]; ok {
		return true, nil
	}
	val, err := s.get(key)
	if err != nil {
		return false, err
	}
	return val != nil, nil
}

func (s *State) AddVote(voter cmtcrypto.Address, idx uint64, support bool) error {
	votes, err := s.VotesOf(voter)
	if err != nil {
		return err
	}
	s.votes[voteKey(voter, idx)] = support
	s.voteLists[voterListKey(voter)] = append(votes, idx)
	return nil
}

func (s *State) VotesOf(voter cmtcrypto.Address) ([]uint64, error) {
	key := voterListKey(voter)
	if votes, ok := s.voteLists[key]; ok {
		return append([]uint64(nil), votes...), nil
	}
	val, err := s.get(key)
	if err != nil {
		return nil, err
	}
	votes := []uint64{}
	if val != nil {
		if err = rlp.DecodeBytes(val, &votes); err != nil {
			return nil, err
		}
	}
	return votes, nil
}

// Treasury is the balance held by TreasuryAddress.
func (s *State) Treasury() (uint64, error) {
	return s.BalanceOf(TreasuryAddress)
}
