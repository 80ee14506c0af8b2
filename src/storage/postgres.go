package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/ryawaa/twinkle/src/helpers"
	"github.com/ryawaa/twinkle/src/logger"
	"github.com/ryawaa/twinkle/src/models"
)

type PostgresStore struct {
	Config *models.MConfig
	DB     *sql.DB
	Schema string
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewPostgresStore(cfg *models.MConfig, log *logger.Logger) *PostgresStore {
	return &PostgresStore{
		Config: cfg,
		Schema: cfg.Storage.Schema,
		Logger: log,
	}
}

// -----------------------------------------------------------------------------

func (d *PostgresStore) Initialize(ctx context.Context) error {
	dsn := d.Config.Storage.DBConnectionString
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return helpers.NewDatabaseError("failed to open postgres", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return helpers.NewDatabaseError("failed to reach postgres", err)
	}

	d.DB = db

	// Create Schema
	if _, err := d.DB.ExecContext(ctx, fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS "%s"`, d.Schema)); err != nil {
		return helpers.NewDatabaseError(fmt.Sprintf("failed to create schema %s", d.Schema), err)
	}

	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			symbol TEXT PRIMARY KEY,
			price DOUBLE PRECISION NOT NULL,
			volume DOUBLE PRECISION NOT NULL,
			timestamp BIGINT NOT NULL,
			conditions JSONB NOT NULL DEFAULT '[]',
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`, d.table())
	if _, err := d.DB.ExecContext(ctx, query); err != nil {
		return helpers.NewDatabaseError("failed to create latest_trades", err)
	}

	d.Logger.Info("PostgresStore initialized successfully (Schema: %s)", d.Schema)
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresStore) table() string {
	return fmt.Sprintf(`"%s"."latest_trades"`, d.Schema)
}

// -----------------------------------------------------------------------------

func (d *PostgresStore) SaveLatestTrade(ctx context.Context, trade models.MTrade) error {
	conditions, err := encodeConditions(trade.Conditions)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (symbol, price, volume, timestamp, conditions, updated_at)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6)
		ON CONFLICT (symbol) DO UPDATE SET
			price = EXCLUDED.price,
			volume = EXCLUDED.volume,
			timestamp = EXCLUDED.timestamp,
			conditions = EXCLUDED.conditions,
			updated_at = EXCLUDED.updated_at
	`, d.table())
	if _, err := d.DB.ExecContext(ctx, query,
		trade.Symbol, trade.Price, trade.Volume, trade.Timestamp, conditions, time.Now().UTC()); err != nil {
		return helpers.NewDatabaseError(fmt.Sprintf("failed to save latest trade for %s", trade.Symbol), err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresStore) GetLatestTrade(ctx context.Context, symbol string) (*models.MTrade, error) {
	query := fmt.Sprintf(
		`SELECT symbol, price, volume, timestamp, conditions::text FROM %s WHERE symbol = $1`, d.table())

	var trade models.MTrade
	var conditions string
	err := d.DB.QueryRowContext(ctx, query, symbol).
		Scan(&trade.Symbol, &trade.Price, &trade.Volume, &trade.Timestamp, &conditions)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, helpers.NewDatabaseError(fmt.Sprintf("failed to load latest trade for %s", symbol), err)
	}

	codes, err := decodeConditions(conditions)
	if err != nil {
		return nil, helpers.NewDatabaseError("corrupt conditions column", err)
	}
	trade.Conditions = codes
	return &trade, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresStore) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
