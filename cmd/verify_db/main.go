package main

import (
	"context"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/ujpm/GGH-website-sub000/internal/config"
	"github.com/ujpm/GGH-website-sub000/internal/funding"
	"github.com/ujpm/GGH-website-sub000/internal/logging"
	"github.com/ujpm/GGH-website-sub000/internal/models"
	"github.com/ujpm/GGH-website-sub000/internal/status"
	"github.com/ujpm/GGH-website-sub000/internal/storage"
)

// verify_db connects to the configured store, applies pending schema changes
// and prints call counts by type and status, flagging stored statuses that
// have drifted from their deadlines.
func main() {
	cfg, err := config.Load(".")
	if err != nil {
		logging.Must("production", "info").Sugar().Fatalf("config: %v", err)
	}
	logger := logging.Must(cfg.AppEnv, cfg.LogLevel)
	defer logger.Sync()
	log := logger.Sugar()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	stores, err := storage.Open(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer stores.Close(context.Background())

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	header := table.Row{"Type"}
	for _, s := range models.Statuses {
		header = append(header, s)
	}
	t.AppendHeader(append(header, "Total"))

	for _, ct := range models.CallTypes {
		row := table.Row{ct}
		total := 0
		for _, s := range models.Statuses {
			n, err := stores.Calls.Count(ctx, funding.Filter{Type: &ct, Status: &s})
			if err != nil {
				log.Fatalf("count %s/%s: %v", ct, s, err)
			}
			row = append(row, n)
			total += n
		}
		t.AppendRow(append(row, total))
	}

	stale, scanned, err := countStale(ctx, stores.Calls)
	if err != nil {
		log.Fatalf("scan: %v", err)
	}
	t.SetCaption("%s store: %d calls, %d with a stale status", stores.Driver, scanned, stale)
	t.Render()
}

func countStale(ctx context.Context, repo funding.Repository) (stale, scanned int, err error) {
	now := time.Now()
	const batch = 500
	for skip := 0; ; skip += batch {
		calls, err := repo.Find(ctx, funding.Filter{}, funding.Sort{Field: funding.SortCreatedAt}, skip, batch)
		if err != nil {
			return stale, scanned, err
		}
		for i := range calls {
			if status.Derive(calls[i].Deadline, now) != calls[i].Status {
				stale++
			}
		}
		scanned += len(calls)
		if len(calls) < batch {
			return stale, scanned, nil
		}
	}
}
