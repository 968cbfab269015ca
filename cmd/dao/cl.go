package main

import (
	"context"
	"log"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/calehh/dao-app/app"
	app_config "github.com/calehh/dao-app/config"
	"github.com/calehh/dao-app/dao"
	"github.com/calehh/dao-app/indexer"
	cmtconfig "github.com/cometbft/cometbft/config"
	cmtflags "github.com/cometbft/cometbft/libs/cli/flags"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	nm "github.com/cometbft/cometbft/node"
	"github.com/cometbft/cometbft/p2p"
	"github.com/cometbft/cometbft/privval"
	"github.com/cometbft/cometbft/proxy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

var homeDir string

var clCmd = &cobra.Command{
	Use:   "dao",
	Short: "dao runs a treasury governance chain",
	Long: `Stakeholders propose disbursements from a shared treasury,
vote on them, and passing proposals are paid out after their voting period.`,
	Run: func(cmd *cobra.Command, args []string) {
		run(cmd, args)
	},
}

func init() {
	clCmd.Flags().StringVarP(&homeDir, "homedir", "d", "", "home directory")
}

func run(cmd *cobra.Command, args []string) {
	appConfig, err := app_config.Load(homeDir)
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}

	pv := privval.LoadFilePV(
		appConfig.PrivValidatorKeyFile(),
		appConfig.PrivValidatorStateFile(),
	)

	nodeKey, err := p2p.LoadNodeKey(appConfig.NodeKeyFile())
	if err != nil {
		log.Fatalf("failed to load node's key: %v", err)
	}

	logger := cmtlog.NewTMLogger(cmtlog.NewSyncWriter(os.Stdout))
	logger, err = cmtflags.ParseLogLevel(appConfig.LogLevel, logger, cmtconfig.DefaultLogLevel)
	if err != nil {
		log.Fatalf("failed to parse log level: %v", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := dao.NewMetrics(registry)

	daoApp, err := app.NewDAOApp(appConfig.App, logger, metrics)
	if err != nil {
		log.Fatalf("new App err:%v", err)
	}

	node, err := nm.NewNode(
		appConfig.Config,
		pv,
		nodeKey,
		proxy.NewLocalClientCreator(daoApp),
		nm.DefaultGenesisDocProviderFunc(appConfig.Config),
		cmtconfig.DefaultDBProvider,
		nm.DefaultMetricsProvider(appConfig.Instrumentation),
		logger,
	)
	if err != nil {
		log.Fatalf("Creating node: %v", err)
	}

	daoApp.Start(node.BlockStore())
	err = node.Start()
	if err != nil {
		log.Fatalf("start comet node err %s", err.Error())
	}

	ctx, cancel := context.WithCancel(context.Background())
	var (
		chainIndexer *indexer.ChainIndexer
		service      *indexer.Service
	)
	if appConfig.App.IndexerEnable {
		chainIndexer, service = startIndexer(ctx, appConfig, logger, registry)
	}

	defer func() {
		log.Println("shut done...")
		cancel()
		done := make(chan struct{})
		go func() {
			defer close(done)
			if service != nil {
				stopCtx, stopCancel := context.WithTimeout(context.Background(), 3*time.Second)
				if err := service.Stop(stopCtx); err != nil {
					log.Printf("stop indexer service err %s", err.Error())
				}
				stopCancel()
			}
			if chainIndexer != nil {
				chainIndexer.Close()
			}
			err = node.Stop()
			if err != nil {
				log.Fatalf("stop comet node err %s", err.Error())
			}
			node.Wait()
			daoApp.Stop()
		}()
		timer := time.NewTimer(time.Second * 10)
		select {
		case <-timer.C:
			os.Exit(1)
		case <-done:
			return
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
}

func startIndexer(ctx context.Context, appConfig *app_config.Config, logger cmtlog.Logger, registry *prometheus.Registry) (*indexer.ChainIndexer, *indexer.Service) {
	rpcUrl, err := url.Parse(appConfig.RPC.ListenAddress)
	if err != nil {
		log.Fatalf("new parse url err %s", err.Error())
	}
	rpcUrl.Scheme = "http"
	src, err := indexer.NewHTTPSource(rpcUrl.String())
	if err != nil {
		log.Fatalf("new rpc client err %s", err.Error())
	}
	dbPath := filepath.Join(appConfig.RootDir, "indexer.db")
	chainIndexer, err := indexer.NewChainIndexer(logger, dbPath, src, appConfig.App.IndexerPollInterval)
	if err != nil {
		log.Fatalf("new chain indexer err %s", err.Error())
	}
	if err = chainIndexer.Register(registry); err != nil {
		log.Fatalf("register indexer metrics err %s", err.Error())
	}
	chainIndexer.Start(ctx)

	service := indexer.NewService(appConfig.App.IndexerListenAddr, chainIndexer, registry)
	go func() {
		if err := service.Start(); err != nil {
			logger.Error("indexer service stopped", "err", err)
		}
	}()
	return chainIndexer, service
}
