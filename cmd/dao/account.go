package main

import (
	"context"
	"fmt"

	"github.com/calehh/dao-app/crypto"
	"github.com/spf13/cobra"
)

type accountArguments struct {
	Url     string
	Address string
	Skey    string
}

var accountArgs accountArguments

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Show an account, by default the one of the local key",
	Args:  cobra.NoArgs,
	RunE:  accountRun,
}

func init() {
	urlFlag(accountCmd, &accountArgs.Url)
	keyFlag(accountCmd, &accountArgs.Skey)
	accountCmd.Flags().StringVarP(&accountArgs.Address, "address", "a", "", "account address")
	keyFlag(pubkeyCmd, &pubkeyArgs.Skey)
	accountCmd.AddCommand(pubkeyCmd)
}

func accountRun(cmd *cobra.Command, args []string) error {
	address := accountArgs.Address
	if address == "" {
		pv, err := crypto.LoadFilePV(accountArgs.Skey)
		if err != nil {
			return err
		}
		address = pv.Address().String()
	}
	addr, err := parseAddress(address)
	if err != nil {
		return err
	}
	cli, err := newClient(accountArgs.Url)
	if err != nil {
		return err
	}
	act, err := queryAccount(context.Background(), cli, addr)
	if err != nil {
		return err
	}
	return printJSON(act)
}

type pubkeyArguments struct {
	Skey string
}

var pubkeyArgs pubkeyArguments

var pubkeyCmd = &cobra.Command{
	Use:   "pubkey",
	Short: "Print the public key and address of the local key",
	Args:  cobra.NoArgs,
	RunE:  pubkeyRun,
}

func pubkeyRun(cmd *cobra.Command, args []string) error {
	pv, err := crypto.LoadFilePV(pubkeyArgs.Skey)
	if err != nil {
		return err
	}
	fmt.Printf("pubkey: %X\n", pv.PublicKey())
	fmt.Printf("address: %v\n", pv.Address())
	return nil
}
