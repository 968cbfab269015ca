package types

import (
	"encoding/json"
	"testing"
	"time"

	abci "github.com/cometbft/cometbft/abci/types"
	"github.com/cometbft/cometbft/crypto/ed25519"
	cmtbytes "github.com/cometbft/cometbft/libs/bytes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventNewProposal(t *testing.T) {
	deadline := time.Date(2024, 2, 29, 23, 59, 59, 500, time.FixedZone("x", 3600))
	ev := &EventNewProposal{Proposal: 4, Proposer: "AB", Amount: 7, Description: "a=b, c", Deadline: deadline}
	encoded := EncodeEventNewProposal(ev)
	assert.Equal(t, EventNewProposalType, encoded.Type)

	got := DecodeEventNewProposal(encoded)
	require.NotNil(t, got)
	assert.True(t, got.Deadline.Equal(deadline))
	assert.Equal(t, time.UTC, got.Deadline.Location())
	got.Deadline = deadline
	assert.Equal(t, ev, got)
}

func TestDecodeMalformedEvents(t *testing.T) {
	bad := abci.Event{Attributes: []abci.EventAttribute{{Key: "proposal", Value: "-1"}}}
	assert.Nil(t, DecodeEventNewProposal(bad))
	assert.Nil(t, DecodeEventVote(bad))
	assert.Nil(t, DecodeEventPaymentMade(bad))

	support := abci.Event{Attributes: []abci.EventAttribute{{Key: "support", Value: "maybe"}}}
	assert.Nil(t, DecodeEventVote(support))

	amount := abci.Event{Attributes: []abci.EventAttribute{{Key: "amount", Value: "x"}}}
	assert.Nil(t, DecodeEventTransfer(amount))
}

func TestProposalPredicates(t *testing.T) {
	now := time.Now()
	p := &Proposal{Deadline: now}
	assert.False(t, p.Passing())
	assert.True(t, p.Matured(now))
	assert.False(t, p.Matured(now.Add(-time.Nanosecond)))

	p.VotesFor, p.VotesAgainst = 2, 2
	assert.False(t, p.Passing())
	p.VotesFor = 3
	assert.True(t, p.Passing())
}

func TestAppGenesis(t *testing.T) {
	g, err := DecodeAppGenesis(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultVotingPeriod, g.Params.VotingPeriod)

	key := ed25519.GenPrivKey().PubKey()
	dat, err := json.Marshal(&AppGenesis{
		Accounts: []GenesisAccount{{PubKey: cmtbytes.HexBytes(key.Bytes()), Balance: 3}},
		Treasury: 10,
	})
	require.NoError(t, err)
	g, err = DecodeAppGenesis(dat)
	require.NoError(t, err)
	assert.Equal(t, key.Address(), g.Accounts[0].AccountAddress())

	dup := `{"accounts":[{"address":"` + key.Address().String() + `","balance":1},{"pub_key":"` +
		cmtbytes.HexBytes(key.Bytes()).String() + `","balance":2}]}`
	_, err = DecodeAppGenesis([]byte(dup))
	assert.Error(t, err)

	mismatch := `{"accounts":[{"address":"` + ed25519.GenPrivKey().PubKey().Address().String() +
		`","pub_key":"` + cmtbytes.HexBytes(key.Bytes()).String() + `","balance":1}]}`
	_, err = DecodeAppGenesis([]byte(mismatch))
	assert.Error(t, err)
}
