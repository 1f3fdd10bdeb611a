// Command kitchen consumes order events from the broker and appends a
// ticket line per event to the kitchen log.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/iliyamo/table-ordering/internal/config"
	"github.com/iliyamo/table-ordering/internal/logger"
	"github.com/iliyamo/table-ordering/internal/queue"
)

func main() {
	config.LoadDotEnv()
	log := logger.New("kitchen", os.Getenv("LOG_LEVEL"))
	ncfg := config.LoadNotifyConfig()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	k := queue.NewKitchen(ncfg.AMQPURL, ncfg.Exchange, ncfg.KitchenQueue, ncfg.KitchenLog, log)
	log.Info("service_started", "kitchen consumer starting", "queue", ncfg.KitchenQueue, "log", ncfg.KitchenLog)
	if err := k.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("service_failed", "kitchen consumer stopped", err)
		os.Exit(1)
	}
	log.Info("service_stopped", "kitchen consumer stopped")
}
