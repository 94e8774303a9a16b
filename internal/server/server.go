package server

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"dicehouse/internal/cache"
	"dicehouse/internal/chain"
	"dicehouse/internal/database"
)

// Options wires the server to its collaborators. Cache and DB are optional.
type Options struct {
	Chain         *chain.Chain
	Cache         cache.Service
	DB            database.Service
	JWTSecret     []byte
	FaucetEnabled bool
	// Denom is the coin the faucet mints.
	Denom string
	// RateLimit caps requests per client per minute; zero disables it.
	RateLimit int
}

type FiberServer struct {
	*fiber.App

	chain  *chain.Chain
	cache  cache.Service
	db     database.Service
	feed   *Hub
	cancel context.CancelFunc

	jwtSecret     []byte
	faucetEnabled bool
	denom         string
}

func New(opts Options) *FiberServer {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub()

	server := &FiberServer{
		App: fiber.New(fiber.Config{
			ServerHeader:  "dicehouse",
			AppName:       "dicehouse",
			ReadTimeout:   10 * time.Second,
			WriteTimeout:  10 * time.Second,
			IdleTimeout:   120 * time.Second,
			StrictRouting: false,
			ErrorHandler:  errorHandler,
		}),

		chain:         opts.Chain,
		cache:         opts.Cache,
		db:            opts.DB,
		feed:          hub,
		cancel:        cancel,
		jwtSecret:     opts.JWTSecret,
		faucetEnabled: opts.FaucetEnabled,
		denom:         opts.Denom,
	}

	server.App.Use(recover.New())
	if opts.RateLimit > 0 {
		server.App.Use(limiter.New(limiter.Config{
			Max:        opts.RateLimit,
			Expiration: 1 * time.Minute,
		}))
	}

	opts.Chain.OnEvent(server.publishEvent)
	go hub.Run(ctx)

	log.Println("[SERVER] Round feed started")
	return server
}

// Shutdown stops the HTTP listener and the round feed, then closes the
// optional connections.
func (s *FiberServer) Shutdown() error {
	log.Println("[SERVER] Shutting down...")

	err := s.App.ShutdownWithTimeout(10 * time.Second)
	s.cancel()

	if s.cache != nil {
		s.cache.Close()
	}
	if s.db != nil {
		s.db.Close()
	}

	return err
}
