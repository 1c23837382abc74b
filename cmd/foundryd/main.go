package main

import (
	"log"
	"os"
	"time"

	"github.com/seantiz/foundry/internal/config"
	"github.com/seantiz/foundry/internal/ledger"
	"github.com/seantiz/foundry/internal/scheduler"
	"github.com/seantiz/foundry/internal/service"
	"github.com/seantiz/foundry/internal/spawn"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	logger := config.NewLogger(os.Stdout, cfg.LogLevel)

	logger.Info("foundry: starting",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"pool_limit", cfg.PoolLimit,
	)

	db, err := ledger.NewSQLiteLedger(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	reg := spawn.NewRegistry()
	registerBuiltins(reg)

	host := spawn.NewHost(reg, logger)
	sched := scheduler.New(host, host, cfg.PoolLimit, logger)

	srv := service.NewServer(cfg.ListenAddr, sched, db, reg, logger)

	if err := srv.Run(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

// registerBuiltins installs the handlers the daemon ships with. Library
// users embed the scheduler directly and register their own.
func registerBuiltins(reg *spawn.Registry) {
	// echo exits immediately with its arguments as the result.
	reg.Register("echo", func(env *spawn.Env) {
		env.Exit(env.Args())
	})

	// sleep waits for args.ms milliseconds (default 1000), publishing its
	// ID to the shared store on the way in and out.
	reg.Register("sleep", func(env *spawn.Env) {
		ms := 1000.0
		if args, ok := env.Args().(map[string]any); ok {
			// Numbers arrive in the boundary codec's decoded forms.
			switch v := args["ms"].(type) {
			case float64:
				ms = v
			case int64:
				ms = float64(v)
			case uint64:
				ms = float64(v)
			}
		}
		if ms <= 0 {
			ms = 1000
		}

		env.Set("sleep:"+env.ID(), "started")
		select {
		case <-time.After(time.Duration(ms) * time.Millisecond):
		case <-env.Done():
			return
		}
		env.Set("sleep:"+env.ID(), "finished")
		env.Exit(nil)
	})
}
