package main

import (
	"fmt"
	"os"
)

func main() {
	clCmd.AddCommand(initCmd)
	clCmd.AddCommand(accountCmd)
	clCmd.AddCommand(transferCmd)
	clCmd.AddCommand(proposeCmd)
	clCmd.AddCommand(voteCmd)
	clCmd.AddCommand(payCmd)
	clCmd.AddCommand(proposalCmd)
	clCmd.AddCommand(treasuryCmd)
	clCmd.AddCommand(votesCmd)
	clCmd.AddCommand(versionCmd)
	if err := clCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
