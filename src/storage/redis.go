package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/ryawaa/twinkle/src/helpers"
	"github.com/ryawaa/twinkle/src/logger"
	"github.com/ryawaa/twinkle/src/models"
)

const redisKeyPrefix = "twinkle:latest:"

type RedisStore struct {
	Config *models.MConfig
	Client *redis.Client
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewRedisStore(cfg *models.MConfig, log *logger.Logger) *RedisStore {
	return &RedisStore{Config: cfg, Logger: log}
}

// -----------------------------------------------------------------------------

func (r *RedisStore) Initialize(ctx context.Context) error {
	client := redis.NewClient(&redis.Options{
		Addr:     r.Config.Storage.RedisAddr,
		Password: r.Config.Storage.RedisPassword,
		DB:       r.Config.Storage.RedisDB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return helpers.NewDatabaseError("failed to reach redis", err)
	}

	r.Client = client
	r.Logger.Info("RedisStore connected to %s", r.Config.Storage.RedisAddr)
	return nil
}

// -----------------------------------------------------------------------------

func (r *RedisStore) SaveLatestTrade(ctx context.Context, trade models.MTrade) error {
	data, err := json.Marshal(trade)
	if err != nil {
		return err
	}
	if err := r.Client.Set(ctx, redisKeyPrefix+trade.Symbol, data, 0).Err(); err != nil {
		return helpers.NewDatabaseError(fmt.Sprintf("failed to save latest trade for %s", trade.Symbol), err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (r *RedisStore) GetLatestTrade(ctx context.Context, symbol string) (*models.MTrade, error) {
	data, err := r.Client.Get(ctx, redisKeyPrefix+symbol).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, helpers.NewDatabaseError(fmt.Sprintf("failed to load latest trade for %s", symbol), err)
	}

	var trade models.MTrade
	if err := json.Unmarshal(data, &trade); err != nil {
		return nil, helpers.NewDatabaseError("corrupt latest trade entry", err)
	}
	return &trade, nil
}

// -----------------------------------------------------------------------------

func (r *RedisStore) Close() error {
	if r.Client != nil {
		return r.Client.Close()
	}
	return nil
}
