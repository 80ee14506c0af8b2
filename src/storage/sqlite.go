package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ryawaa/twinkle/src/helpers"
	"github.com/ryawaa/twinkle/src/logger"
	"github.com/ryawaa/twinkle/src/models"
)

type SQLiteStore struct {
	Config *models.MConfig
	DB     *sql.DB
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewSQLiteStore(cfg *models.MConfig, log *logger.Logger) *SQLiteStore {
	return &SQLiteStore{
		Config: cfg,
		Logger: log,
	}
}

// -----------------------------------------------------------------------------

func (d *SQLiteStore) Initialize(ctx context.Context) error {
	dsn := d.Config.Storage.DBPath

	// Open DB
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return helpers.NewDatabaseError("failed to open sqlite", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return helpers.NewDatabaseError("failed to reach sqlite", err)
	}

	// One writer at a time; the subscription goroutines share this handle.
	db.SetMaxOpenConns(1)
	d.DB = db

	// PRAGMA optimizations
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		d.Logger.Warning("Failed to set WAL mode: %v", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA synchronous = NORMAL;"); err != nil {
		d.Logger.Warning("Failed to set synchronous mode: %v", err)
	}

	return d.createTables(ctx)
}

// -----------------------------------------------------------------------------

func (d *SQLiteStore) createTables(ctx context.Context) error {
	// SQLite types: INTEGER for int64, REAL for float64, TEXT for string
	query := `
		CREATE TABLE IF NOT EXISTS latest_trades (
			symbol TEXT PRIMARY KEY,
			price REAL NOT NULL,
			volume REAL NOT NULL,
			timestamp INTEGER NOT NULL,
			conditions TEXT NOT NULL DEFAULT '[]',
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`
	if _, err := d.DB.ExecContext(ctx, query); err != nil {
		return helpers.NewDatabaseError("failed to create latest_trades", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteStore) SaveLatestTrade(ctx context.Context, trade models.MTrade) error {
	conditions, err := encodeConditions(trade.Conditions)
	if err != nil {
		return err
	}

	_, err = d.DB.ExecContext(ctx, `
		INSERT INTO latest_trades (symbol, price, volume, timestamp, conditions, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (symbol) DO UPDATE SET
			price = excluded.price,
			volume = excluded.volume,
			timestamp = excluded.timestamp,
			conditions = excluded.conditions,
			updated_at = excluded.updated_at
	`, trade.Symbol, trade.Price, trade.Volume, trade.Timestamp, conditions, time.Now().UTC())
	if err != nil {
		return helpers.NewDatabaseError(fmt.Sprintf("failed to save latest trade for %s", trade.Symbol), err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteStore) GetLatestTrade(ctx context.Context, symbol string) (*models.MTrade, error) {
	row := d.DB.QueryRowContext(ctx,
		"SELECT symbol, price, volume, timestamp, conditions FROM latest_trades WHERE symbol = ?", symbol)

	var trade models.MTrade
	var conditions string
	if err := row.Scan(&trade.Symbol, &trade.Price, &trade.Volume, &trade.Timestamp, &conditions); err != nil {
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

func (d *SQLiteStore) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
