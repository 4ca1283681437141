package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/alejandrodnm/poolbid/internal/adapters/notify"
	"github.com/alejandrodnm/poolbid/internal/adapters/storage"
)

func runReport(dsn string) {
	store, err := storage.NewSQLiteStorage(dsn)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", dsn)
		os.Exit(1)
	}
	defer store.Close()

	bids, err := store.ListBids(context.Background())
	if err != nil {
		slog.Error("failed to list bids", "err", err)
		os.Exit(1)
	}

	notify.NewConsole().PrintBids(bids, time.Now())
}
