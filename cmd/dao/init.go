package main

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	app_config "github.com/calehh/dao-app/config"
	"github.com/calehh/dao-app/types"
	cmtbytes "github.com/cometbft/cometbft/libs/bytes"
	cmttypes "github.com/cometbft/cometbft/types"
	"github.com/spf13/cobra"
)

const flagAccount = "account"

type printInfo struct {
	Moniker    string          `json:"moniker" yaml:"moniker"`
	ChainID    string          `json:"chain_id" yaml:"chain_id"`
	NodeID     string          `json:"node_id" yaml:"node_id"`
	AppMessage json.RawMessage `json:"app_message" yaml:"app_message"`
}

func newPrintInfo(moniker, chainID, nodeID string, appMessage json.RawMessage) printInfo {
	return printInfo{
		Moniker:    moniker,
		ChainID:    chainID,
		NodeID:     nodeID,
		AppMessage: appMessage,
	}
}

func displayInfo(info printInfo) error {
	out, err := json.MarshalIndent(info, "", " ")
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(os.Stderr, "%s\n", out)

	return err
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize private validator, p2p, genesis, and application configuration files",
	Long: `Initialize validators's and node's configuration files.

The validator key doubles as the first stakeholder account and receives --balance.
More stakeholders are added with --account <hex address>=<balance>.`,
	Args: cobra.ExactArgs(0),
	RunE: initRun,
}

func init() {
	initCmd.Flags().BoolP(types.FlagOverwrite, "o", false, "overwrite the genesis.json file")
	initCmd.Flags().String(types.FlagChainID, "", "genesis file chain-id, if left blank will be randomly created")
	initCmd.Flags().String(types.FlagHome, "", "home directory")
	initCmd.Flags().Uint64(types.FlagBalance, 1000, "genesis balance of the validator account")
	initCmd.Flags().Uint64(types.FlagTreasury, 0, "genesis treasury balance")
	initCmd.Flags().Duration(types.FlagVotingPeriod, types.DefaultVotingPeriod, "time a proposal stays open before it can be paid")
	initCmd.Flags().StringSlice(flagAccount, nil, "extra genesis account as address=balance")
}

func parseGenesisAccount(s string) (types.GenesisAccount, error) {
	addr, balance, ok := strings.Cut(s, "=")
	if !ok {
		return types.GenesisAccount{}, fmt.Errorf("invalid account %q, want address=balance", s)
	}
	var a types.GenesisAccount
	if err := a.Address.UnmarshalJSON([]byte(strconv.Quote(addr))); err != nil {
		return a, fmt.Errorf("invalid account address %q: %w", addr, err)
	}
	amount, err := strconv.ParseUint(balance, 10, 64)
	if err != nil {
		return a, fmt.Errorf("invalid account balance %q: %w", balance, err)
	}
	a.Balance = amount
	return a, nil
}

func initRun(cmd *cobra.Command, args []string) error {
	home, _ := cmd.Flags().GetString(types.FlagHome)
	chainID, _ := cmd.Flags().GetString(types.FlagChainID)
	overwrite, _ := cmd.Flags().GetBool(types.FlagOverwrite)
	balance, _ := cmd.Flags().GetUint64(types.FlagBalance)
	treasury, _ := cmd.Flags().GetUint64(types.FlagTreasury)
	votingPeriod, _ := cmd.Flags().GetDuration(types.FlagVotingPeriod)
	extra, _ := cmd.Flags().GetStringSlice(flagAccount)

	if chainID == "" {
		chainID = fmt.Sprintf("test-chain-%v", rand.Uint64())
	}
	appConfig := app_config.DefaultConfig(home)

	genFile := appConfig.GenesisFile()
	if _, err := os.Stat(genFile); err == nil && !overwrite {
		return fmt.Errorf("genesis file %s already exists, use --%s to replace it", genFile, types.FlagOverwrite)
	}

	nodeID, pk, err := app_config.InitializeNodeValidatorFiles(appConfig, nil)
	if err != nil {
		return err
	}

	appGenesis := types.DefaultAppGenesis()
	appGenesis.Treasury = treasury
	appGenesis.Params.VotingPeriod = votingPeriod
	appGenesis.Accounts = append(appGenesis.Accounts, types.GenesisAccount{
		Address: pk.Address(),
		PubKey:  cmtbytes.HexBytes(pk.Bytes()),
		Balance: balance,
	})
	for _, s := range extra {
		a, err := parseGenesisAccount(s)
		if err != nil {
			return err
		}
		appGenesis.Accounts = append(appGenesis.Accounts, a)
	}
	if err = appGenesis.Validate(); err != nil {
		return err
	}
	appState, err := json.Marshal(appGenesis)
	if err != nil {
		return err
	}

	genesis := &types.GenesisDoc{
		GenesisTime:     time.Now(),
		ChainID:         chainID,
		ConsensusParams: cmttypes.DefaultConsensusParams(),
		InitialHeight:   1,
		Validators: []types.GenesisValidator{
			{Address: pk.Address(), PubKey: pk, Power: types.DefaultPower},
		},
		AppState: appState,
	}
	if err = types.ExportGenesisFile(genesis, genFile); err != nil {
		return fmt.Errorf("Failed to export genesis file %v", err)
	}
	if err = app_config.WriteConfigFile(filepath.Join(appConfig.RootDir, "config", "config.toml"), appConfig); err != nil {
		return err
	}
	toPrint := newPrintInfo(appConfig.Moniker, chainID, nodeID, genesis.AppState)
	return displayInfo(toPrint)
}
