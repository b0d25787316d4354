package db

import (
	"context"
	"fmt"
	"log"
	"time"

	"chat-core/internal/utils"

	"github.com/jackc/pgx/v5/pgxpool"
)

var Pool *pgxpool.Pool

// InitDB initializes the PostgreSQL connection pool. Pool sizing is
// env-tunable; the defaults suit a single relay instance where most
// traffic stays on the websocket path and the pool only absorbs
// history reads and message upserts.
func InitDB(connString string) error {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return fmt.Errorf("unable to parse connection string: %w", err)
	}

	config.MaxConns = int32(utils.GetEnvInt("DB_MAX_CONNS", 10))
	config.MinConns = int32(utils.GetEnvInt("DB_MIN_CONNS", 2))
	config.MaxConnLifetime = utils.GetEnvDuration("DB_CONN_LIFETIME", time.Hour)
	config.MaxConnIdleTime = utils.GetEnvDuration("DB_CONN_IDLE_TIME", 30*time.Minute)

	Pool, err = pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return fmt.Errorf("unable to create connection pool: %w", err)
	}

	// Test connection
	if err := Pool.Ping(context.Background()); err != nil {
		return fmt.Errorf("unable to ping database: %w", err)
	}

	log.Println("Connected to PostgreSQL")
	return nil
}

// CloseDB closes the database connection pool
func CloseDB() {
	if Pool != nil {
		Pool.Close()
	}
}
