package db

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/config"
)

// ConnectReporting opens the small database/sql pool used by the read-only
// dashboard queries.
func ConnectReporting(cfg config.PostgresConfig) (*sqlx.DB, error) {
	conn, err := sqlx.Connect("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect reporting pool: %w", err)
	}

	conn.SetMaxOpenConns(2)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(cfg.MaxConnLifetime)

	log.Info().Str("host", cfg.Host).Str("dbname", cfg.DBName).Msg("Connected reporting pool")
	return conn, nil
}
