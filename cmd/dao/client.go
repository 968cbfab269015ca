package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/calehh/dao-app/app"
	"github.com/calehh/dao-app/crypto"
	"github.com/calehh/dao-app/state"
	"github.com/calehh/dao-app/tx"
	cmtcrypto "github.com/cometbft/cometbft/crypto"
	"github.com/cometbft/cometbft/rpc/client/http"
	"github.com/spf13/cobra"
)

func newClient(url string) (*http.HTTP, error) {
	cli, err := http.New(url, "/websocket")
	if err != nil {
		return nil, fmt.Errorf("new client: %w", err)
	}
	return cli, nil
}

func parseAddress(address string) (cmtcrypto.Address, error) {
	dat, err := hex.DecodeString(address)
	if err != nil || len(dat) != cmtcrypto.AddressSize {
		return nil, fmt.Errorf("invalid address %q", address)
	}
	return dat, nil
}

// query runs an ABCI query and decodes the JSON answer into v.
func query(ctx context.Context, cli *http.HTTP, path string, data []byte, v any) error {
	res, err := cli.ABCIQuery(ctx, path, data)
	if err != nil {
		return err
	}
	if res.Response.Code != 0 {
		return &queryError{Path: path, Code: res.Response.Code, Log: res.Response.Log}
	}
	return json.Unmarshal(res.Response.Value, v)
}

type queryError struct {
	Path string
	Code uint32
	Log  string
}

func (e *queryError) Error() string {
	return fmt.Sprintf("query %s: code %d %s", e.Path, e.Code, e.Log)
}

// accountNonce is the nonce the next tx of an account must carry. Only an account
// the chain has never seen starts at 0.
func accountNonce(act *state.Account, err error) (uint64, error) {
	var qerr *queryError
	if errors.As(err, &qerr) && qerr.Code == app.QueryCodeNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query account nonce: %w", err)
	}
	return act.Nonce, nil
}

func queryAccount(ctx context.Context, cli *http.HTTP, addr cmtcrypto.Address) (*state.Account, error) {
	var act state.Account
	if err := query(ctx, cli, "/accounts/", addr, &act); err != nil {
		return nil, err
	}
	return &act, nil
}

type sendArguments struct {
	Url    string
	Skey   string
	Nonce  int64
	NoSend bool
}

func sendFlags(cmd *cobra.Command, args *sendArguments) {
	urlFlag(cmd, &args.Url)
	keyFlag(cmd, &args.Skey)
	nonceFlag(cmd, &args.Nonce)
	cmd.Flags().BoolVarP(&args.NoSend, "nosend", "", false, "print the signed transaction instead of sending it")
}

// sendTx signs a tx carrying payload with the key at args.Skey and broadcasts it.
func sendTx(args *sendArguments, tp tx.DAOTxType, payload any) error {
	cli, err := newClient(args.Url)
	if err != nil {
		return err
	}
	ctx := context.Background()
	gres, err := cli.Genesis(ctx)
	if err != nil {
		return fmt.Errorf("get chain genesis: %w", err)
	}
	pv, err := crypto.LoadFilePV(args.Skey)
	if err != nil {
		return err
	}
	nonce := uint64(args.Nonce)
	if args.Nonce < 0 {
		nonce, err = accountNonce(queryAccount(ctx, cli, pv.Address()))
		if err != nil {
			return err
		}
	}
	btx := &tx.DAOTx{
		Version: tx.DAOTxVersion0,
		Type:    tp,
		Nonce:   nonce,
		Tx:      payload,
	}
	if err = pv.SignTx(btx, gres.Genesis.ChainID); err != nil {
		return fmt.Errorf("sign tx: %w", err)
	}
	dat, err := tx.MarshalDAOTx(btx)
	if err != nil {
		return err
	}
	fmt.Println("address:", pv.Address())
	if args.NoSend {
		fmt.Println(string(dat))
		return nil
	}
	res, err := cli.BroadcastTxSync(ctx, dat)
	if err != nil {
		return fmt.Errorf("broadcast tx: %w", err)
	}
	out, _ := json.Marshal(res)
	fmt.Println(string(out))
	if res.Code != 0 {
		return fmt.Errorf("tx rejected: code %d %s", res.Code, res.Log)
	}
	return nil
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
