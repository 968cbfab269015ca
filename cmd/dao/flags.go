package main

import "github.com/spf13/cobra"

const DefaultKeyPath = "./config/priv_validator_key.json"

func urlFlag(cmd *cobra.Command, url *string) {
	cmd.Flags().StringVarP(url, "url", "u", "http://127.0.0.1:26657", "dao node rpc url")
}

func keyFlag(cmd *cobra.Command, skey *string) {
	cmd.Flags().StringVarP(skey, "skeyPath", "s", DefaultKeyPath, "private key path")
}

func nonceFlag(cmd *cobra.Command, nonce *int64) {
	cmd.Flags().Int64VarP(nonce, "nonce", "n", -1, "account nonce, queried from the node when negative")
}
