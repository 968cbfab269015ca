package main

import (
	"context"
	"strconv"

	"github.com/calehh/dao-app/app"
	"github.com/calehh/dao-app/types"
	"github.com/spf13/cobra"
)

type queryArguments struct {
	Url string
}

var proposalArgs queryArguments

var proposalCmd = &cobra.Command{
	Use:   "proposal <index>",
	Short: "Show a proposal",
	Args:  cobra.ExactArgs(1),
	RunE:  proposalRun,
}

func init() {
	urlFlag(proposalCmd, &proposalArgs.Url)
}

func proposalRun(cmd *cobra.Command, args []string) error {
	idx, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return err
	}
	cli, err := newClient(proposalArgs.Url)
	if err != nil {
		return err
	}
	var p types.Proposal
	if err = query(context.Background(), cli, "/proposals/", app.EncodeIndex(idx), &p); err != nil {
		return err
	}
	return printJSON(&p)
}

var treasuryArgs queryArguments

var treasuryCmd = &cobra.Command{
	Use:   "treasury",
	Short: "Show the treasury balance",
	Args:  cobra.NoArgs,
	RunE:  treasuryRun,
}

func init() {
	urlFlag(treasuryCmd, &treasuryArgs.Url)
}

func treasuryRun(cmd *cobra.Command, args []string) error {
	cli, err := newClient(treasuryArgs.Url)
	if err != nil {
		return err
	}
	var t app.Treasury
	if err = query(context.Background(), cli, "/treasury/", nil, &t); err != nil {
		return err
	}
	return printJSON(&t)
}

var votesArgs queryArguments

var votesCmd = &cobra.Command{
	Use:   "votes <address>",
	Short: "List the proposals an account voted on",
	Args:  cobra.ExactArgs(1),
	RunE:  votesRun,
}

func init() {
	urlFlag(votesCmd, &votesArgs.Url)
}

func votesRun(cmd *cobra.Command, args []string) error {
	addr, err := parseAddress(args[0])
	if err != nil {
		return err
	}
	cli, err := newClient(votesArgs.Url)
	if err != nil {
		return err
	}
	votes := []uint64{}
	if err = query(context.Background(), cli, "/votes/", addr, &votes); err != nil {
		return err
	}
	return printJSON(votes)
}
