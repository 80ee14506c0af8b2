package storage

import (
	"encoding/json"
	"fmt"

	"github.com/ryawaa/twinkle/src/interfaces"
	"github.com/ryawaa/twinkle/src/logger"
	"github.com/ryawaa/twinkle/src/models"
)

// NewTradeStore builds the latest-tick store selected by storage.db_type.
// The store still needs Initialize.
func NewTradeStore(cfg *models.MConfig, log *logger.Logger) (interfaces.ITradeStore, error) {
	switch cfg.Storage.DBType {
	case "sqlite":
		return NewSQLiteStore(cfg, log), nil
	case "postgres":
		return NewPostgresStore(cfg, log), nil
	case "redis":
		return NewRedisStore(cfg, log), nil
	case "memory", "":
		return NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("unsupported database type: %s", cfg.Storage.DBType)
}

// -----------------------------------------------------------------------------

func encodeConditions(codes models.MConditionCodes) (string, error) {
	if codes == nil {
		codes = models.MConditionCodes{}
	}
	data, err := json.Marshal([]int(codes))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeConditions(raw string) (models.MConditionCodes, error) {
	if raw == "" {
		return nil, nil
	}
	var codes models.MConditionCodes
	if err := json.Unmarshal([]byte(raw), &codes); err != nil {
		return nil, err
	}
	if len(codes) == 0 {
		return nil, nil
	}
	return codes, nil
}
