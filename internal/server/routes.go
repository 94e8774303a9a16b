package server

import (
	"context"
	"encoding/json"
	"log"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"dicehouse/internal/chain"
	"dicehouse/internal/contract"
	"dicehouse/internal/database"
	"dicehouse/internal/game"
)

// faucetLimit caps a single faucet request.
var faucetLimit = game.NewAmount(1_000_000)

func (s *FiberServer) RegisterFiberRoutes() {
	s.App.Use(cors.New(cors.Config{
		AllowOrigins:     "*",
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Accept,Authorization,Content-Type",
		AllowCredentials: false, // credentials require explicit origins
		MaxAge:           300,
	}))

	s.App.Get("/health", s.healthHandler)

	api := s.App.Group("/api/v1")

	api.Post("/execute", s.requireSender, s.executeHandler)
	api.Post("/query", s.queryHandler)
	api.Get("/config", s.queryRoute(contract.GetConfig{}))
	api.Get("/odds", s.queryRoute(contract.GetOdds{}))
	api.Get("/house/balance", s.queryRoute(contract.GetHouseBalance{}))
	api.Get("/rounds/nonce", s.queryRoute(contract.GetRoundNonce{}))
	api.Get("/rounds", s.listRoundsHandler)
	api.Get("/bank/:address", s.bankHandler)
	api.Post("/faucet", s.requireSender, s.faucetHandler)

	s.App.Use("/ws", s.upgradeHandler)
	s.App.Get("/ws", websocket.New(s.feedHandler))
}

func (s *FiberServer) healthHandler(c *fiber.Ctx) error {
	height, err := s.chain.Height(c.UserContext())
	if err != nil {
		return writeError(c, err)
	}
	instantiated, err := s.chain.Instantiated(c.UserContext())
	if err != nil {
		return writeError(c, err)
	}

	health := fiber.Map{
		"chain": fiber.Map{
			"contract":     s.chain.ContractAddress(),
			"height":       height,
			"instantiated": instantiated,
		},
		"feed": fiber.Map{
			"status":            "running",
			"connected_clients": s.feed.GetClientCount(),
		},
	}
	if s.db != nil {
		health["database"] = s.db.Health()
	}
	if s.cache != nil {
		health["cache"] = s.cache.Health()
	}
	return c.JSON(health)
}

type executeRequest struct {
	Msg   json.RawMessage `json:"msg"`
	Funds []contract.Coin `json:"funds"`
}

// executeHandler runs one execute message as the token's sender.
func (s *FiberServer) executeHandler(c *fiber.Ctx) error {
	var req executeRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, game.Wrap(game.CodeInvalidMessage, "invalid request body", err))
	}
	if len(req.Msg) == 0 {
		return writeError(c, game.Errorf(game.CodeInvalidMessage, "msg is required"))
	}

	msg, err := contract.DecodeExecuteMsg(req.Msg)
	if err != nil {
		return writeError(c, err)
	}

	res, err := s.chain.Execute(c.UserContext(), senderOf(c), req.Funds, msg)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(res)
}

func (s *FiberServer) queryHandler(c *fiber.Ctx) error {
	msg, err := contract.DecodeQueryMsg(c.Body())
	if err != nil {
		return writeError(c, err)
	}
	return s.sendQuery(c, msg)
}

func (s *FiberServer) queryRoute(msg contract.QueryMsg) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return s.sendQuery(c, msg)
	}
}

func (s *FiberServer) sendQuery(c *fiber.Ctx, msg contract.QueryMsg) error {
	raw, err := s.chain.Query(c.UserContext(), msg)
	if err != nil {
		return writeError(c, err)
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(raw)
}

func (s *FiberServer) bankHandler(c *fiber.Ctx) error {
	address := c.Params("address")
	balances, err := s.chain.Balance(c.UserContext(), address)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{
		"address":  address,
		"balances": balances.Coins(),
	})
}

func (s *FiberServer) listRoundsHandler(c *fiber.Ctx) error {
	if s.db == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "round indexer is disabled")
	}

	rounds, err := s.db.ListRounds(c.UserContext(), database.RoundFilter{
		Player: c.Query("player"),
		Limit:  c.QueryInt("limit", 0),
	})
	if err != nil {
		return writeError(c, err)
	}
	if rounds == nil {
		rounds = []database.Round{}
	}
	return c.JSON(fiber.Map{"rounds": rounds})
}

type faucetRequest struct {
	Amount game.Amount `json:"amount"`
}

// faucetHandler mints development funds to the token's sender.
func (s *FiberServer) faucetHandler(c *fiber.Ctx) error {
	if !s.faucetEnabled {
		return fiber.NewError(fiber.StatusNotFound, "faucet is disabled")
	}

	var req faucetRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, game.Wrap(game.CodeInvalidMessage, "invalid request body", err))
	}
	if req.Amount.IsZero() || req.Amount.Cmp(faucetLimit) > 0 {
		return writeError(c, game.WithMetadata(game.CodeInvalidFunds, "faucet amount out of range",
			map[string]string{"amount": req.Amount.String(), "limit": faucetLimit.String()}))
	}

	sender := senderOf(c)
	if err := s.chain.Mint(c.UserContext(), sender, []contract.Coin{{Denom: s.denom, Amount: req.Amount}}); err != nil {
		return writeError(c, err)
	}

	balances, err := s.chain.Balance(c.UserContext(), sender)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{
		"address":  sender,
		"balances": balances.Coins(),
	})
}

// upgradeHandler admits websocket upgrades. A valid token names the
// subscriber; the feed itself is public.
func (s *FiberServer) upgradeHandler(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	sender := "anonymous"
	if token, err := bearerToken(c); err == nil && token != "" {
		if sub, err := ParseToken(s.jwtSecret, token); err == nil {
			sender = sub
		}
	}
	c.Locals(localSender, sender)
	return c.Next()
}

type roundMessage struct {
	Type   string            `json:"type"`
	Height uint64            `json:"height"`
	Sender string            `json:"sender"`
	Data   map[string]string `json:"data"`
}

// publishEvent forwards committed round results to the feed.
func (s *FiberServer) publishEvent(block chain.Block, sender string, ev contract.Event) {
	if ev.Type != contract.EventRoundResult {
		return
	}
	data := make(map[string]string, len(ev.Attributes))
	for _, a := range ev.Attributes {
		data[a.Key] = a.Value
	}
	s.feed.Broadcast(roundMessage{
		Type:   ev.Type,
		Height: block.Height,
		Sender: sender,
		Data:   data,
	})
}

func (s *FiberServer) feedHandler(conn *websocket.Conn) {
	sender, _ := conn.Locals(localSender).(string)
	client := s.feed.RegisterClient(conn, sender)

	height, err := s.chain.Height(context.Background())
	if err != nil {
		log.Printf("[WS] Height lookup failed: %v", err)
	}
	client.send(fiber.Map{
		"type": "hello",
		"data": fiber.Map{
			"contract": s.chain.ContractAddress(),
			"height":   height,
		},
	})

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			log.Printf("[WS] Read error for client %s: %v", client.id, err)
			s.feed.UnregisterClient(client)
			break
		}

		if messageType != websocket.TextMessage {
			continue
		}

		var clientMsg struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(message, &clientMsg); err != nil {
			continue
		}
		if clientMsg.Type == "ping" {
			client.send(map[string]string{"type": "pong"})
		}
	}
}
