package main

import (
	"strconv"

	"github.com/calehh/dao-app/state"
	"github.com/calehh/dao-app/tx"
	"github.com/spf13/cobra"
)

type transferArguments struct {
	sendArguments
	ToTreasury bool
}

var transferArgs transferArguments

var transferCmd = &cobra.Command{
	Use:   "transfer [to] <amount>",
	Short: "Transfer balance to another account or, with --treasury, into the treasury",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  transferRun,
}

func init() {
	sendFlags(transferCmd, &transferArgs.sendArguments)
	transferCmd.Flags().BoolVarP(&transferArgs.ToTreasury, "treasury", "t", false, "fund the treasury")
}

func transferRun(cmd *cobra.Command, args []string) error {
	var ttx tx.TransferTx
	if transferArgs.ToTreasury {
		if len(args) != 1 {
			return cmd.Usage()
		}
		ttx.To = []byte(state.TreasuryAddress)
	} else {
		if len(args) != 2 {
			return cmd.Usage()
		}
		to, err := parseAddress(args[0])
		if err != nil {
			return err
		}
		ttx.To = []byte(to)
		args = args[1:]
	}
	amount, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return err
	}
	ttx.Amount = amount
	return sendTx(&transferArgs.sendArguments, tx.DAOTxTypeTransfer, &ttx)
}
