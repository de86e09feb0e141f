package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/ujpm/GGH-website-sub000/internal/config"
	"github.com/ujpm/GGH-website-sub000/internal/funding"
	"github.com/ujpm/GGH-website-sub000/internal/logging"
	"github.com/ujpm/GGH-website-sub000/internal/storage"
)

func main() {
	file := flag.String("file", "", "YAML seed file (default: built-in demo calls)")
	dryRun := flag.Bool("dry-run", false, "validate the seed file without writing")
	flag.Parse()

	cfg, err := config.Load(".")
	if err != nil {
		logging.Must("production", "info").Sugar().Fatalf("config: %v", err)
	}
	logger := logging.Must(cfg.AppEnv, cfg.LogLevel)
	defer logger.Sync()
	log := logger.Sugar()

	var seed *funding.SeedFile
	if *file == "" {
		seed, err = funding.DemoSeed()
	} else {
		seed, err = funding.LoadSeed(*file)
	}
	if err != nil {
		log.Fatalf("load seed: %v", err)
	}

	ctx := context.Background()
	now := time.Now().UTC()
	inputs := seed.Inputs(now)

	if *dryRun {
		invalid := 0
		for _, in := range inputs {
			if err := funding.Validate(in); err != nil {
				invalid++
				log.Warnw("invalid seed entry", "title", in.Title, "error", err)
			}
		}
		log.Infof("%d entries, %d invalid", len(inputs), invalid)
		if invalid > 0 {
			os.Exit(1)
		}
		return
	}

	stores, err := storage.Open(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer stores.Close(context.Background())

	svc := funding.NewService(stores.Calls, logger, funding.Options{})

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Title", "Type", "Status", "Deadline", "Result"})
	failed := 0
	for _, in := range inputs {
		call, err := svc.Create(ctx, in)
		if err != nil {
			failed++
			t.AppendRow(table.Row{in.Title, in.Type, "", "", err.Error()})
			continue
		}
		t.AppendRow(table.Row{call.Title, call.Type, call.Status, call.Deadline.Format("2006-01-02"), call.ID})
	}
	t.Render()
	if failed > 0 {
		log.Fatalf("%d of %d entries failed", failed, len(inputs))
	}
}
