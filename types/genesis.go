package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cometbft/cometbft/crypto"
	"github.com/cometbft/cometbft/crypto/ed25519"
	cmtbytes "github.com/cometbft/cometbft/libs/bytes"
	cmtjson "github.com/cometbft/cometbft/libs/json"
	cmttypes "github.com/cometbft/cometbft/types"
)

type GenesisValidator struct {
	Address crypto.Address `json:"address"`
	PubKey  crypto.PubKey  `json:"pub_key"`
	Power   int64          `json:"power"`
	Name    string         `json:"name"`
}

// GenesisDoc defines the initial conditions for a CometBFT blockchain, in particular its validator set.
type GenesisDoc struct {
	GenesisTime     time.Time                 `json:"genesis_time"`
	ChainID         string                    `json:"chain_id"`
	InitialHeight   int64                     `json:"initial_height"`
	ConsensusParams *cmttypes.ConsensusParams `json:"consensus_params,omitempty"`
	Validators      []GenesisValidator        `json:"validators"`
	AppHash         []byte                    `json:"app_hash"`
	AppState        json.RawMessage           `json:"app_state"`
}

// SaveAs is a utility method for saving GenensisDoc as a JSON file.
func (genDoc *GenesisDoc) SaveAs(file string) error {
	genDocBytes, err := cmtjson.MarshalIndent(genDoc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(file, genDocBytes, 0o600)
}

func (ag *GenesisDoc) ValidateAndComplete() error {
	if ag.ChainID == "" {
		return errors.New("genesis doc must include non-empty chain_id")
	}

	if ag.InitialHeight < 0 {
		return fmt.Errorf("initial_height cannot be negative (got %v)", ag.InitialHeight)
	}

	if ag.InitialHeight == 0 {
		ag.InitialHeight = 1
	}

	if ag.GenesisTime.IsZero() {
		ag.GenesisTime = time.Now().Round(0).UTC()
	}

	return nil
}

func ExportGenesisFile(genesis *GenesisDoc, genFile string) error {
	if err := genesis.ValidateAndComplete(); err != nil {
		return err
	}
	return genesis.SaveAs(genFile)
}

// GenesisAccount seeds one ledger balance. Address may be omitted when PubKey is set.
type GenesisAccount struct {
	Address crypto.Address    `json:"address,omitempty"`
	PubKey  cmtbytes.HexBytes `json:"pub_key,omitempty"`
	Balance uint64            `json:"balance"`
}

func (a *GenesisAccount) AccountAddress() crypto.Address {
	if len(a.Address) == 0 && len(a.PubKey) == ed25519.PubKeySize {
		return ed25519.PubKey(a.PubKey).Address()
	}
	return a.Address
}

// AppGenesis is the app_state section of the genesis document.
type AppGenesis struct {
	Accounts []GenesisAccount `json:"accounts"`
	Treasury uint64           `json:"treasury"`
	Params   Params           `json:"params"`
}

func DefaultAppGenesis() *AppGenesis {
	return &AppGenesis{
		Accounts: []GenesisAccount{},
		Params:   DefaultParams(),
	}
}

func (g *AppGenesis) Validate() error {
	if g.Params.VotingPeriod < 0 {
		return fmt.Errorf("voting period cannot be negative (got %v)", g.Params.VotingPeriod)
	}
	seen := make(map[string]bool, len(g.Accounts))
	for i := range g.Accounts {
		acc := &g.Accounts[i]
		if len(acc.PubKey) != 0 && len(acc.PubKey) != ed25519.PubKeySize {
			return fmt.Errorf("genesis account %d: invalid pub_key size %d", i, len(acc.PubKey))
		}
		addr := acc.AccountAddress()
		if len(addr) != crypto.AddressSize {
			return fmt.Errorf("genesis account %d: invalid address", i)
		}
		if len(acc.Address) != 0 && len(acc.PubKey) != 0 && !bytes.Equal(ed25519.PubKey(acc.PubKey).Address(), acc.Address) {
			return fmt.Errorf("genesis account %d: address does not match pub_key", i)
		}
		if seen[addr.String()] {
			return fmt.Errorf("genesis account %d: duplicate address %v", i, addr)
		}
		seen[addr.String()] = true
	}
	return nil
}

func DecodeAppGenesis(dat []byte) (*AppGenesis, error) {
	g := DefaultAppGenesis()
	if len(dat) == 0 {
		return g, nil
	}
	if err := json.Unmarshal(dat, g); err != nil {
		return nil, err
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

const DAOModuleName = "dao"
const DefaultPower = 1000
