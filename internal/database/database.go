// Package database is the optional Postgres index of settled rounds. The
// contract never reads it; it exists for audit and player history.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"dicehouse/internal/config"
)

// Round is one indexed round_result event.
type Round struct {
	ID           uuid.UUID `json:"id"`
	Contract     string    `json:"contract"`
	RoundID      uint64    `json:"round_id"`
	Height       uint64    `json:"height"`
	Player       string    `json:"player"`
	Stake        string    `json:"stake"`
	GuessLow     int64     `json:"guess_low"`
	GuessHigh    int64     `json:"guess_high"`
	Outcome      int64     `json:"outcome"`
	Won          bool      `json:"won"`
	Payout       string    `json:"payout"`
	Seed         string    `json:"seed"`
	BlockEntropy string    `json:"block_entropy"`
	CreatedAt    time.Time `json:"created_at"`
}

// RoundFilter narrows ListRounds. An empty Player lists every player.
type RoundFilter struct {
	Player string
	Limit  int
}

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

type Service interface {
	Health() map[string]string
	Close() error
	RecordRound(ctx context.Context, r Round) error
	ListRounds(ctx context.Context, f RoundFilter) ([]Round, error)
}

type service struct {
	db *sql.DB
}

// Open returns a pgx-backed *sql.DB for cfg without checking connectivity.
func Open(cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.URL())
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return db, nil
}

// New connects to Postgres and verifies the connection.
func New(cfg config.DatabaseConfig) (Service, error) {
	db, err := Open(cfg)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres %s: %w", cfg.Host, err)
	}

	log.Printf("[DB] Connected to %s/%s", cfg.Host, cfg.Database)
	return &service{db: db}, nil
}

func (s *service) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	stats := make(map[string]string)

	if err := s.db.PingContext(ctx); err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db down: %v", err)
		return stats
	}

	stats["status"] = "up"
	stats["message"] = "It's healthy"

	dbStats := s.db.Stats()
	stats["open_connections"] = strconv.Itoa(dbStats.OpenConnections)
	stats["in_use"] = strconv.Itoa(dbStats.InUse)
	stats["idle"] = strconv.Itoa(dbStats.Idle)
	stats["wait_count"] = strconv.FormatInt(dbStats.WaitCount, 10)

	return stats
}

func (s *service) Close() error {
	log.Println("[DB] Disconnecting from Postgres")
	return s.db.Close()
}

// RecordRound inserts r. Recording the same contract round twice is a no-op.
func (s *service) RecordRound(ctx context.Context, r Round) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rounds (id, contract, round_id, height, player, stake, guess_low, guess_high,
		                    outcome, won, payout, seed, block_entropy)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8, $9, $10, $11::numeric, $12, $13)
		ON CONFLICT (contract, round_id) DO NOTHING`,
		r.ID, r.Contract, int64(r.RoundID), int64(r.Height), r.Player, r.Stake,
		r.GuessLow, r.GuessHigh, r.Outcome, r.Won, r.Payout, r.Seed, r.BlockEntropy,
	)
	if err != nil {
		return fmt.Errorf("insert round %d: %w", r.RoundID, err)
	}
	return nil
}

// ListRounds returns the newest rounds first.
func (s *service) ListRounds(ctx context.Context, f RoundFilter) ([]Round, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, contract, round_id, height, player, stake::text, guess_low, guess_high,
		       outcome, won, payout::text, seed, block_entropy, created_at
		FROM rounds
		WHERE $1 = '' OR player = $1
		ORDER BY round_id DESC
		LIMIT $2`, f.Player, limit)
	if err != nil {
		return nil, fmt.Errorf("list rounds: %w", err)
	}
	defer rows.Close()

	var out []Round
	for rows.Next() {
		var r Round
		var roundID, height int64
		if err := rows.Scan(&r.ID, &r.Contract, &roundID, &height, &r.Player, &r.Stake,
			&r.GuessLow, &r.GuessHigh, &r.Outcome, &r.Won, &r.Payout, &r.Seed, &r.BlockEntropy, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan round: %w", err)
		}
		r.RoundID, r.Height = uint64(roundID), uint64(height)
		out = append(out, r)
	}
	return out, rows.Err()
}

func newMigrate(db *sql.DB, migrationsPath string) (*migrate.Migrate, error) {
	driver, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		return nil, fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance("file://"+migrationsPath, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("migration source %s: %w", migrationsPath, err)
	}
	return m, nil
}

// RunMigrations applies every pending up migration. db stays owned by the
// caller.
func RunMigrations(db *sql.DB, migrationsPath string) error {
	m, err := newMigrate(db, migrationsPath)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// RollbackMigration reverts the most recent migration.
func RollbackMigration(db *sql.DB, migrationsPath string) error {
	m, err := newMigrate(db, migrationsPath)
	if err != nil {
		return err
	}
	if err := m.Steps(-1); err != nil {
		return fmt.Errorf("migrate down: %w", err)
	}
	return nil
}

// GetMigrationVersion reports the applied version; 0 means none.
func GetMigrationVersion(db *sql.DB, migrationsPath string) (uint, bool, error) {
	m, err := newMigrate(db, migrationsPath)
	if err != nil {
		return 0, false, err
	}
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("migrate version: %w", err)
	}
	return version, dirty, nil
}
