package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/ujpm/GGH-website-sub000/internal/config"
	"github.com/ujpm/GGH-website-sub000/internal/funding"
	"github.com/ujpm/GGH-website-sub000/internal/logging"
	"github.com/ujpm/GGH-website-sub000/internal/models"
	"github.com/ujpm/GGH-website-sub000/internal/storage"
)

func main() {
	asJSON := flag.Bool("json", false, "print the result as JSON")
	timeout := flag.Duration("timeout", 30*time.Minute, "overall timeout")
	flag.Parse()

	cfg, err := config.Load(".")
	if err != nil {
		logging.Must("production", "info").Sugar().Fatalf("config: %v", err)
	}
	logger := logging.Must(cfg.AppEnv, cfg.LogLevel)
	defer logger.Sync()
	log := logger.Sugar()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	stores, err := storage.Open(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer stores.Close(context.Background())

	svc := funding.NewService(stores.Calls, logger, funding.Options{})
	started := time.Now()
	res, err := svc.RecomputeStatuses(ctx)
	if err != nil {
		log.Fatalf("recompute failed: %v", err)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			log.Fatal(err)
		}
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Status", "Calls"})
	for _, s := range models.Statuses {
		t.AppendRow(table.Row{s, res.StatusCounts[s]})
	}
	t.AppendFooter(table.Row{"Updated", res.Updated})
	t.SetCaption("scanned %d calls on %s in %s", res.Scanned, stores.Driver, time.Since(started).Round(time.Millisecond))
	t.Render()
}
