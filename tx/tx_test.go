package tx

import (
	"testing"

	"github.com/cometbft/cometbft/crypto/ed25519"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshalDAOTx(t *testing.T) {
	key := ed25519.GenPrivKey()
	btx := &DAOTx{
		Type:   DAOTxTypeCreateProposal,
		Nonce:  3,
		PubKey: key.PubKey().Bytes(),
		Tx:     &CreateProposalTx{Description: "audit", Amount: 12},
	}
	require.NoError(t, btx.Sign(key, "dao-test"))
	dat, err := MarshalDAOTx(btx)
	require.NoError(t, err)

	got, err := UnmarshalDAOTx(dat)
	require.NoError(t, err)
	assert.Equal(t, DAOTxTypeCreateProposal, got.Type)
	assert.Equal(t, uint64(3), got.Nonce)
	assert.Equal(t, key.PubKey().Address(), got.Sender())
	ptx, ok := got.Tx.(*CreateProposalTx)
	require.True(t, ok)
	assert.Equal(t, CreateProposalTx{Description: "audit", Amount: 12}, *ptx)

	sigData, err := got.SigData([]byte("dao-test"))
	require.NoError(t, err)
	require.Len(t, got.Sig, 1)
	assert.True(t, key.PubKey().VerifySignature(sigData, got.Sig[0]))
}

func TestUnmarshalDAOTxRejects(t *testing.T) {
	_, err := UnmarshalDAOTx([]byte(`{"type":9,"tx":{}}`))
	assert.ErrorIs(t, err, ErrUnsupportedTxType)

	_, err = UnmarshalDAOTx([]byte(`not json`))
	assert.ErrorIs(t, err, ErrUnsupportedTxType)

	_, err = UnmarshalDAOTx([]byte(`{"version":7,"type":3,"tx":{"proposal":1,"support":true}}`))
	assert.ErrorIs(t, err, ErrUnsupportedTxVersion)
}

func TestSigDataBindsChain(t *testing.T) {
	btx := &DAOTx{Type: DAOTxTypePayProposal, Tx: &PayProposalTx{Proposal: 1}}
	a, err := btx.SigData([]byte("chain-a"))
	require.NoError(t, err)
	b, err := btx.SigData([]byte("chain-b"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
