package crypto

import (
	"fmt"
	"os"

	"github.com/calehh/dao-app/tx"
	"github.com/cometbft/cometbft/crypto"
	cmtjson "github.com/cometbft/cometbft/libs/json"
	"github.com/cometbft/cometbft/privval"
)

// PV signs transactions with the key of a CometBFT priv_validator_key.json file.
type PV struct {
	privateKey crypto.PrivKey
	publicKey  crypto.PubKey
}

func NewPV(key crypto.PrivKey) *PV {
	return &PV{
		privateKey: key,
		publicKey:  key.PubKey(),
	}
}

func LoadFilePV(keyFilePath string) (*PV, error) {
	keyJSONBytes, err := os.ReadFile(keyFilePath)
	if err != nil {
		return nil, err
	}
	pvKey := privval.FilePVKey{}
	err = cmtjson.Unmarshal(keyJSONBytes, &pvKey)
	if err != nil {
		return nil, fmt.Errorf("reading PrivValidator key from %v: %w", keyFilePath, err)
	}
	return NewPV(pvKey.PrivKey), nil
}

func (k *PV) PublicKey() []byte {
	return k.publicKey.Bytes()
}

func (k *PV) Address() crypto.Address {
	return k.publicKey.Address()
}

func (k *PV) Sign(data []byte) ([]byte, error) {
	return k.privateKey.Sign(data)
}

// SignTx fills in the public key of btx and signs it for chainId.
func (k *PV) SignTx(btx *tx.DAOTx, chainId string) error {
	btx.PubKey = k.PublicKey()
	return btx.Sign(k.privateKey, chainId)
}
