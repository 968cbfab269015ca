package state

import (
	"encoding/json"

	"github.com/cometbft/cometbft/crypto"
	"github.com/cometbft/cometbft/crypto/ed25519"
	cmtbytes "github.com/cometbft/cometbft/libs/bytes"
	"github.com/ethereum/go-ethereum/rlp"
)

// Account is a ledger entry. PubKey is empty until the account signs its first tx.
type Account struct {
	Address []byte
	PubKey  []byte
	Balance uint64
	Nonce   uint64
}

type accountSt struct {
	Address cmtbytes.HexBytes `json:"address"`
	PubKey  cmtbytes.HexBytes `json:"pubKey"`
	Balance uint64            `json:"balance"`
	Nonce   uint64            `json:"nonce"`
}

func (a *Account) MarshalJSON() (dat []byte, err error) {
	o := accountSt{
		Address: a.Address,
		PubKey:  a.PubKey,
		Balance: a.Balance,
		Nonce:   a.Nonce,
	}
	return json.Marshal(o)
}

func (a *Account) UnmarshalJSON(dat []byte) (err error) {
	var o accountSt
	err = json.Unmarshal(dat, &o)
	if err != nil {
		return
	}
	a.Address = o.Address
	a.PubKey = o.PubKey
	a.Balance = o.Balance
	a.Nonce = o.Nonce
	return
}

func (a *Account) encode() ([]byte, error) {
	return rlp.EncodeToBytes(a)
}

func decodeAccount(dat []byte) (*Account, error) {
	a := new(Account)
	if err := rlp.DecodeBytes(dat, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Account) Clone() *Account {
	n := &Account{
		Balance: a.Balance,
		Nonce:   a.Nonce,
	}
	n.Address = append([]byte(nil), a.Address...)
	if a.PubKey != nil {
		n.PubKey = append([]byte(nil), a.PubKey...)
	}
	return n
}

func (a *Account) SetPubKey(pkey []byte) {
	if a.PubKey == nil {
		a.PubKey = make([]byte, len(pkey))
	}
	copy(a.PubKey, pkey)
}

func (a *Account) Addr() crypto.Address {
	return crypto.Address(a.Address)
}

func (a *Account) Verify(msg []byte, sigs [][]byte) (succ bool) {
	if len(sigs) != 1 || len(a.PubKey) != ed25519.PubKeySize {
		return false
	}
	pk := ed25519.PubKey(a.PubKey[:])
	return pk.VerifySignature(msg, sigs[0])
}
