package state

import (
	cosmoslog "cosmossdk.io/log"
	cmtlog "github.com/cometbft/cometbft/libs/log"
)

// iavlLogger hands the node logger to iavl, which expects a cosmos logger.
type iavlLogger struct {
	logger cmtlog.Logger
}

func Cometbft2CosmosLogger(lg cmtlog.Logger) cosmoslog.Logger {
	return iavlLogger{logger: lg.With("module", "iavl")}
}

func (l iavlLogger) Info(msg string, keyVals ...any) {
	l.logger.Info(msg, keyVals...)
}

// Warn has no cometbft counterpart and is logged at error level.
func (l iavlLogger) Warn(msg string, keyVals ...any) {
	l.logger.Error(msg, keyVals...)
}

func (l iavlLogger) Error(msg string, keyVals ...any) {
	l.logger.Error(msg, keyVals...)
}

func (l iavlLogger) Debug(msg string, keyVals ...any) {
	l.logger.Debug(msg, keyVals...)
}

func (l iavlLogger) With(keyVals ...any) cosmoslog.Logger {
	return iavlLogger{l.logger.With(keyVals...)}
}

func (l iavlLogger) Impl() any {
	return l.logger
}
