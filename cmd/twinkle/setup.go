package main

import (
	"context"
	"time"

	"github.com/ryawaa/twinkle/src/bridge"
	"github.com/ryawaa/twinkle/src/interfaces"
	"github.com/ryawaa/twinkle/src/logger"
	"github.com/ryawaa/twinkle/src/models"
	"github.com/ryawaa/twinkle/src/network"
	"github.com/ryawaa/twinkle/src/server"
	"github.com/ryawaa/twinkle/src/sparkle"
	"github.com/ryawaa/twinkle/src/storage"
	"github.com/ryawaa/twinkle/src/ticker"
	"github.com/ryawaa/twinkle/src/utils"
)

// -----------------------------------------------------------------------------

// setupStore opens the latest-tick store selected in config
func setupStore(config *models.MConfig, appLogger *logger.Logger) (interfaces.ITradeStore, error) {
	store, err := storage.NewTradeStore(config, appLogger.Named("Storage"))
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(config.Network.RequestTimeout)*time.Second)
	defer cancel()
	if err := store.Initialize(ctx); err != nil {
		return nil, err
	}

	appLogger.Info("Latest-trade store ready (%s)", config.Storage.DBType)
	return store, nil
}

// -----------------------------------------------------------------------------

// setupDependencies wires the sparkle client, bridge and calendar for the server
func setupDependencies(config *models.MConfig, appLogger *logger.Logger, store interfaces.ITradeStore) server.Dependencies {
	networkManager := network.NewNetworkManager(config, appLogger.Named("NetworkManager"))
	client := sparkle.NewClient(config, networkManager, appLogger.Named("Sparkle"))

	tradesURL, err := client.TradesURL()
	if err != nil {
		appLogger.Critical("Invalid sparkle base url: %v", err)
	}
	appLogger.Info("Trade socket at %s", tradesURL)

	return server.Dependencies{
		Sparkle: client,
		Bridge:  bridge.NewBootstrapper(client, config, appLogger.Named("Bridge")),
		Store:   store,
		Markets: utils.NewMarketScheduler(config.Calendar.MIC, appLogger.Named("Calendar")),
		Dialer:  ticker.NewWSDialer(time.Duration(config.Sparkle.Timeout)*time.Second, networkManager.ProxyManager.GetUserAgent()),
	}
}
