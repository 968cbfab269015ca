package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	cmtconfig "github.com/cometbft/cometbft/config"
	"github.com/cometbft/cometbft/crypto"
	"github.com/cometbft/cometbft/p2p"
	"github.com/cometbft/cometbft/privval"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DefaultHomeDir             = "$HOME/.dao"
	DefaultIndexerListenAddr   = "127.0.0.1:8686"
	DefaultIndexerPollInterval = 2 * time.Second
	EnvPrefix                  = "DAO"
)

type AppConfig struct {
	Home                string        `mapstructure:"-"`
	IndexerEnable       bool          `mapstructure:"indexer_enable"`
	IndexerListenAddr   string        `mapstructure:"indexer_listen_addr"`
	IndexerPollInterval time.Duration `mapstructure:"indexer_poll_interval"`
}

func DefaultAppConfig(home string) *AppConfig {
	return &AppConfig{
		Home:                home,
		IndexerEnable:       true,
		IndexerListenAddr:   DefaultIndexerListenAddr,
		IndexerPollInterval: DefaultIndexerPollInterval,
	}
}

func (cfg *AppConfig) ValidateBasic() error {
	if cfg.IndexerEnable && cfg.IndexerListenAddr == "" {
		return fmt.Errorf("indexer_listen_addr is required when the indexer is enabled")
	}
	if cfg.IndexerPollInterval <= 0 {
		return fmt.Errorf("indexer_poll_interval must be positive")
	}
	return nil
}

func (cfg *AppConfig) DataDir() string {
	return filepath.Join(cfg.Home, "data")
}

type Config struct {
	*cmtconfig.Config `mapstructure:",squash"`

	App *AppConfig `mapstructure:"app"`
}

func ExpandHome(home string) string {
	if len(home) == 0 {
		home = os.ExpandEnv(DefaultHomeDir)
	}
	return home
}

func DefaultConfig(home string) *Config {
	home = ExpandHome(home)
	config := &Config{
		DefaultDAOCometConfig(),
		DefaultAppConfig(home),
	}
	config.SetRoot(home)
	_ = os.MkdirAll(filepath.Join(home, "config"), 0755)
	return config
}

func DefaultDAOCometConfig() *cmtconfig.Config {
	cometConfig := cmtconfig.DefaultConfig()
	cometConfig.Consensus.TimeoutPropose = time.Second * 3
	cometConfig.Consensus.TimeoutPrevote = time.Second * 1
	cometConfig.Consensus.TimeoutPrecommit = time.Second * 1
	cometConfig.Consensus.TimeoutCommit = time.Millisecond * 1200
	return cometConfig
}

func (cfg *Config) ValidateBasic() error {
	if err := cfg.Config.ValidateBasic(); err != nil {
		return err
	}
	return cfg.App.ValidateBasic()
}

// Load reads <home>/config/config.toml. A .env file in the working directory or home
// is loaded first, and DAO_ prefixed environment variables override file values,
// e.g. DAO_APP_INDEXER_ENABLE=false.
func Load(home string) (*Config, error) {
	home = ExpandHome(home)
	for _, f := range []string{".env", filepath.Join(home, ".env")} {
		if _, err := os.Stat(f); err == nil {
			if err = godotenv.Load(f); err != nil {
				return nil, fmt.Errorf("load %s: %w", f, err)
			}
		}
	}

	cfg := DefaultConfig(home)
	v := viper.New()
	v.SetConfigFile(filepath.Join(home, "config", "config.toml"))
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.SetRoot(home)
	cfg.App.Home = home
	if err := cfg.ValidateBasic(); err != nil {
		return nil, fmt.Errorf("invalid configuration data: %w", err)
	}
	return cfg, nil
}

func InitializeNodeValidatorFiles(config *Config, privKey crypto.PrivKey) (nodeID string, pk crypto.PubKey, err error) {
	nodeKey, err := p2p.LoadOrGenNodeKey(config.NodeKeyFile())
	if err != nil {
		return "", nil, err
	}
	nodeID = string(nodeKey.ID())

	pvKeyFile := config.PrivValidatorKeyFile()
	if err := os.MkdirAll(filepath.Dir(pvKeyFile), 0o777); err != nil {
		return "", nil, fmt.Errorf("could not create directory %q: %w", filepath.Dir(pvKeyFile), err)
	}

	pvStateFile := config.PrivValidatorStateFile()
	if err := os.MkdirAll(filepath.Dir(pvStateFile), 0o777); err != nil {
		return "", nil, fmt.Errorf("could not create directory %q: %w", filepath.Dir(pvStateFile), err)
	}

	var filePV *privval.FilePV
	if privKey == nil {
		filePV = privval.LoadOrGenFilePV(pvKeyFile, pvStateFile)
	} else {
		filePV = privval.NewFilePV(privKey, pvKeyFile, pvStateFile)
		filePV.Save()
	}
	pukey, err := filePV.GetPubKey()
	if err != nil {
		return "", nil, err
	}

	return nodeID, pukey, nil
}
