package main

import (
	"strconv"

	"github.com/calehh/dao-app/tx"
	"github.com/spf13/cobra"
)

type proposeArguments struct {
	sendArguments
	Description string
}

var proposeArgs proposeArguments

var proposeCmd = &cobra.Command{
	Use:   "propose <amount>",
	Short: "Propose paying amount from the treasury to yourself",
	Args:  cobra.ExactArgs(1),
	RunE:  proposeRun,
}

func init() {
	sendFlags(proposeCmd, &proposeArgs.sendArguments)
	proposeCmd.Flags().StringVarP(&proposeArgs.Description, "description", "m", "", "proposal description")
}

func proposeRun(cmd *cobra.Command, args []string) error {
	amount, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return err
	}
	return sendTx(&proposeArgs.sendArguments, tx.DAOTxTypeCreateProposal, &tx.CreateProposalTx{
		Description: proposeArgs.Description,
		Amount:      amount,
	})
}

type voteArguments struct {
	sendArguments
	Against bool
}

var voteArgs voteArguments

var voteCmd = &cobra.Command{
	Use:   "vote <proposal>",
	Short: "Vote for a proposal, or against it with --against",
	Args:  cobra.ExactArgs(1),
	RunE:  voteRun,
}

func init() {
	sendFlags(voteCmd, &voteArgs.sendArguments)
	voteCmd.Flags().BoolVarP(&voteArgs.Against, "against", "", false, "vote against the proposal")
}

func voteRun(cmd *cobra.Command, args []string) error {
	idx, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return err
	}
	return sendTx(&voteArgs.sendArguments, tx.DAOTxTypeVote, &tx.VoteTx{
		Proposal: idx,
		Support:  !voteArgs.Against,
	})
}

var payArgs sendArguments

var payCmd = &cobra.Command{
	Use:   "pay <proposal>",
	Short: "Pay out a passing proposal whose voting period is over",
	Args:  cobra.ExactArgs(1),
	RunE:  payRun,
}

func init() {
	sendFlags(payCmd, &payArgs)
}

func payRun(cmd *cobra.Command, args []string) error {
	idx, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return err
	}
	return sendTx(&payArgs, tx.DAOTxTypePayProposal, &tx.PayProposalTx{Proposal: idx})
}
