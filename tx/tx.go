package tx

import (
	"encoding/json"
	"fmt"

	"github.com/cometbft/cometbft/crypto"
	"github.com/cometbft/cometbft/crypto/ed25519"
	cmtbytes "github.com/cometbft/cometbft/libs/bytes"
)

// DAOTx is the signed envelope of every transaction. The sender is derived from PubKey.
type DAOTx struct {
	Version uint8             `json:"version"`
	Type    DAOTxType         `json:"type"`
	Nonce   uint64            `json:"nonce"`
	PubKey  cmtbytes.HexBytes `json:"pubKey"`
	Tx      any               `json:"tx"`
	Sig     [][]byte          `json:"sig"`
}

type TransferTx struct {
	To     cmtbytes.HexBytes `json:"to"`
	Amount uint64            `json:"amount"`
}

type CreateProposalTx struct {
	Description string `json:"description"`
	Amount      uint64 `json:"amount"`
}

type VoteTx struct {
	Proposal uint64 `json:"proposal"`
	Support  bool   `json:"support"`
}

type PayProposalTx struct {
	Proposal uint64 `json:"proposal"`
}

type daoTxTmpl[Tx any] struct {
	Version uint8             `json:"version"`
	Type    DAOTxType         `json:"type"`
	Nonce   uint64            `json:"nonce"`
	PubKey  cmtbytes.HexBytes `json:"pubKey"`
	Tx      Tx                `json:"tx"`
	Sig     [][]byte          `json:"sig"`
}

// Sender is the account address of the signing key.
func (tx *DAOTx) Sender() crypto.Address {
	return ed25519.PubKey(tx.PubKey).Address()
}

// SigData is the message signed by the sender: the tx with its signatures replaced by ext.
func (tx *DAOTx) SigData(ext []byte) (dat []byte, err error) {
	ntx := *tx
	ntx.Sig = [][]byte{ext}
	dat, err = json.Marshal(ntx)
	return
}

// Sign replaces the signatures of tx with one made by key over SigData(chainId).
func (tx *DAOTx) Sign(key crypto.PrivKey, chainId string) error {
	dat, err := tx.SigData([]byte(chainId))
	if err != nil {
		return err
	}
	sig, err := key.Sign(dat)
	if err != nil {
		return err
	}
	tx.Sig = [][]byte{sig}
	return nil
}

func parseDAOTxType(dat []byte) DAOTxType {
	var tx struct {
		Type DAOTxType `json:"type"`
	}
	err := json.Unmarshal(dat, &tx)
	if err != nil {
		return DAOTxTypeUnknown
	}
	return tx.Type
}

func unmarshalDAOTx[Tx any](dat []byte) (btx *DAOTx, err error) {
	var txt daoTxTmpl[Tx]
	err = json.Unmarshal(dat, &txt)
	if err != nil {
		return
	}
	if txt.Version != DAOTxVersion0 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedTxVersion, txt.Version)
	}
	btx = new(DAOTx)
	btx.Version = txt.Version
	btx.Type = txt.Type
	btx.Nonce = txt.Nonce
	btx.PubKey = txt.PubKey
	btx.Tx = &txt.Tx
	btx.Sig = txt.Sig
	return
}

func UnmarshalDAOTx(dat []byte) (btx *DAOTx, err error) {
	tp := parseDAOTxType(dat)
	switch tp {
	case DAOTxTypeTransfer:
		return unmarshalDAOTx[TransferTx](dat)
	case DAOTxTypeCreateProposal:
		return unmarshalDAOTx[CreateProposalTx](dat)
	case DAOTxTypeVote:
		return unmarshalDAOTx[VoteTx](dat)
	case DAOTxTypePayProposal:
		return unmarshalDAOTx[PayProposalTx](dat)
	default:
		err = ErrUnsupportedTxType
	}
	return
}

func MarshalDAOTx(btx *DAOTx) (dat []byte, err error) {
	return json.Marshal(btx)
}
