package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"dicehouse/internal/cache"
	"dicehouse/internal/chain"
	"dicehouse/internal/config"
	"dicehouse/internal/contract"
	"dicehouse/internal/database"
	"dicehouse/internal/server"
	"dicehouse/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("[SERVER] %v", err)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	backend, cacheSvc, err := openBackend(cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	c := chain.New(backend, cfg.Contract.Address)
	if err := instantiateOnce(ctx, c, cfg.Contract); err != nil {
		return err
	}

	var db database.Service
	if cfg.IndexerEnabled {
		db, err = startIndexer(ctx, cfg, c)
		if err != nil {
			return err
		}
	}

	srv := server.New(server.Options{
		Chain:         c,
		Cache:         cacheSvc,
		DB:            db,
		JWTSecret:     []byte(cfg.JWTSecret),
		FaucetEnabled: cfg.FaucetEnabled,
		Denom:         cfg.Contract.Denom,
		RateLimit:     cfg.RateLimit,
	})
	srv.RegisterFiberRoutes()

	listenErr := make(chan error, 1)
	go func() {
		listenErr <- srv.Listen(fmt.Sprintf(":%d", cfg.Port))
	}()
	log.Printf("[SERVER] Listening on :%d (store %s, contract %s)", cfg.Port, cfg.StoreBackend, c.ContractAddress())

	select {
	case <-ctx.Done():
		log.Println("[SERVER] Signal received")
	case err := <-listenErr:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	}

	return srv.Shutdown()
}

// openBackend returns the configured store. The cache service is returned
// only for the redis backend so the server can report its health.
func openBackend(cfg config.Config) (store.Backend, cache.Service, error) {
	switch cfg.StoreBackend {
	case config.BackendRedis:
		svc, err := cache.New(cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		return store.NewRedis(svc.GetClient()), svc, nil

	case config.BackendSQLite:
		s, err := store.NewSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		log.Printf("[STORE] Using sqlite at %s", cfg.SQLitePath)
		return s, nil, nil

	default:
		log.Println("[STORE] Using in-memory store; state is lost on exit")
		return store.NewMemory(), nil, nil
	}
}

func instantiateOnce(ctx context.Context, c *chain.Chain, cc config.ContractConfig) error {
	ok, err := c.Instantiated(ctx)
	if err != nil {
		return fmt.Errorf("read contract state: %w", err)
	}
	if ok {
		log.Printf("[CHAIN] Contract %s already instantiated", c.ContractAddress())
		return nil
	}

	if _, err := c.Instantiate(ctx, cc.Admin, cc.InstantiateMsg()); err != nil {
		return fmt.Errorf("instantiate contract: %w", err)
	}
	log.Printf("[CHAIN] Contract %s instantiated by %s", c.ContractAddress(), cc.Admin)
	return nil
}

// startIndexer migrates the round schema and feeds committed round results
// into Postgres until ctx is done.
func startIndexer(ctx context.Context, cfg config.Config, c *chain.Chain) (database.Service, error) {
	migrationDB, err := database.Open(cfg.Database)
	if err != nil {
		return nil, err
	}
	err = database.RunMigrations(migrationDB, cfg.MigrationsPath)
	migrationDB.Close()
	if err != nil {
		return nil, err
	}

	db, err := database.New(cfg.Database)
	if err != nil {
		return nil, err
	}

	ix := database.NewIndexer(db)
	go ix.Run(ctx)

	c.OnEvent(func(block chain.Block, _ string, ev contract.Event) {
		if ev.Type != contract.EventRoundResult {
			return
		}
		r, err := database.RoundFromEvent(c.ContractAddress(), block.Height, block.Entropy, ev)
		if err != nil {
			log.Printf("[INDEXER] Skipping event at height %d: %v", block.Height, err)
			return
		}
		ix.Enqueue(r)
	})

	log.Println("[INDEXER] Recording round results")
	return db, nil
}
