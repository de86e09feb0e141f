package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ujpm/GGH-website-sub000/internal/client"
	"github.com/ujpm/GGH-website-sub000/internal/funding"
	"github.com/ujpm/GGH-website-sub000/internal/linkcheck"
	"github.com/ujpm/GGH-website-sub000/internal/logging"
)

func main() {
	apiURL := flag.String("api", "http://localhost:8081", "API base URL")
	callStatus := flag.String("status", "", "only check calls with this status")
	parallel := flag.Int("parallel", 4, "concurrent requests")
	timeout := flag.Duration("timeout", 20*time.Second, "per-request timeout")
	onlyBroken := flag.Bool("broken", false, "only print broken links")
	flag.Parse()

	logger := logging.Must(os.Getenv("APP_ENV"), os.Getenv("LOG_LEVEL"))
	defer logger.Sync()
	log := logger.Sugar()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	api := client.New(*apiURL, nil)
	var targets []linkcheck.Target
	for page := 1; ; page++ {
		res, err := api.ListCalls(ctx, funding.ListParams{Status: *callStatus, Page: page, Limit: 100})
		if err != nil {
			log.Fatalf("list page %d: %v", page, err)
		}
		for _, c := range res.Calls {
			targets = append(targets, linkcheck.Target{ID: c.ID, Title: c.Title, URL: c.ApplicationURL})
		}
		if page >= res.Pagination.Pages {
			break
		}
	}
	log.Infof("checking %d application links", len(targets))

	checker := linkcheck.NewChecker()
	checker.Parallelism = *parallel
	checker.RequestTimeout = *timeout
	checker.Logger = logger
	results := checker.Check(ctx, targets)

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Call", "URL", "Status", "Page title / error", "Time"})
	broken := 0
	for _, r := range results {
		if !r.OK() {
			broken++
		} else if *onlyBroken {
			continue
		}
		code := text.FgGreen.Sprint(r.StatusCode)
		detail := r.PageTitle
		if !r.OK() {
			code = text.FgRed.Sprint(r.StatusCode)
			detail = r.Err
		}
		t.AppendRow(table.Row{
			text.Trim(r.Title, 40),
			text.Trim(r.URL, 60),
			code,
			text.Trim(detail, 50),
			r.Elapsed.Round(time.Millisecond),
		})
	}
	t.SetCaption("%d checked, %d broken", len(results), broken)
	t.Render()
	if broken > 0 {
		os.Exit(1)
	}
}
