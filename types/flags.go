package types

const (
	FlagOverwrite    = "overwrite"
	FlagChainID      = "chain-id"
	FlagHome         = "home"
	FlagBalance      = "balance"
	FlagTreasury     = "treasury"
	FlagVotingPeriod = "voting-period"
)
