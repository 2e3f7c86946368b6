package main

import (
	"flag"
	"os"
	"path/filepath"

	"kaiwu/config"
	"kaiwu/core"
	"kaiwu/core/types"
	"kaiwu/observability/logging"
	"kaiwu/rpc"
	"kaiwu/storage"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to the node configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := logging.Setup("kaiwud", cfg.Environment)

	var db storage.Database
	if cfg.DataDir == "" {
		logger.Warn("no data directory configured, using in-memory storage")
		db = storage.NewMemDB()
	} else {
		leveldb, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "ledger"))
		if err != nil {
			logger.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		db = leveldb
	}
	defer db.Close()

	node := core.NewNode(db, logger)

	if cfg.Operator != "" {
		operator, err := types.ParseAddress(cfg.Operator)
		if err != nil {
			logger.Error("invalid operator address", "error", err)
			os.Exit(1)
		}
		if err := node.GrantOperator(operator); err != nil {
			logger.Error("failed to grant operator role", "error", err)
			os.Exit(1)
		}
	}

	server := rpc.NewServer(node, cfg.RateLimitPerMinute, cfg.RateLimitBurst)
	logger.Info("starting JSON-RPC server", "addr", cfg.ListenAddress, "network", cfg.NetworkName)
	if err := server.Start(cfg.ListenAddress); err != nil {
		logger.Error("rpc server exited", "error", err)
		os.Exit(1)
	}
}
