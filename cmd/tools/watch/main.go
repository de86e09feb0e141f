package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ujpm/GGH-website-sub000/internal/client"
	"github.com/ujpm/GGH-website-sub000/internal/funding"
	"github.com/ujpm/GGH-website-sub000/internal/logging"
	"github.com/ujpm/GGH-website-sub000/internal/models"
	"github.com/ujpm/GGH-website-sub000/internal/status"
)

func main() {
	apiURL := flag.String("api", "http://localhost:8081", "API base URL")
	callType := flag.String("type", "", "grant, scholarship or resource")
	callStatus := flag.String("status", "", "open, closing_soon or closed")
	featured := flag.String("featured", "", "true or false")
	search := flag.String("search", "", "search text")
	page := flag.Int("page", 1, "page")
	limit := flag.Int("limit", 10, "page size")
	refresh := flag.Duration("refresh", 5*time.Minute, "refetch interval (0 disables)")
	reconcile := flag.Duration("reconcile", client.DefaultReconcileInterval, "local status reconcile interval")
	once := flag.Bool("once", false, "fetch, print and exit")
	flag.Parse()

	logger := logging.Must(os.Getenv("APP_ENV"), os.Getenv("LOG_LEVEL"))
	defer logger.Sync()
	log := logger.Sugar()

	params := funding.ListParams{
		Type:   *callType,
		Status: *callStatus,
		Search: *search,
		Page:   *page,
		Limit:  *limit,
	}
	if *featured != "" {
		b, err := strconv.ParseBool(*featured)
		if err != nil {
			log.Fatalf("invalid -featured %q", *featured)
		}
		params.Featured = &b
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mirror := client.NewMirror(client.New(*apiURL, nil), client.NewCache(), nil)
	var renderMu sync.Mutex
	render := func() {
		renderMu.Lock()
		defer renderMu.Unlock()
		printListing(mirror.Cache())
	}

	if _, err := mirror.Refresh(ctx, params); err != nil {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && len(apiErr.Details) > 0 {
			log.Fatalf("%v %v", apiErr, apiErr.Details)
		}
		log.Fatalf("fetch listing: %v", err)
	}
	render()
	if *once {
		return
	}

	reconciler := client.NewReconciler(mirror.Cache(), client.ReconcilerOptions{
		Interval: *reconcile,
		Logger:   logger,
		OnChange: func(int) { render() },
	})
	if err := reconciler.Start(ctx); err != nil {
		log.Fatal(err)
	}
	defer reconciler.Stop()

	var tick <-chan time.Time
	if *refresh > 0 {
		ticker := time.NewTicker(*refresh)
		defer ticker.Stop()
		tick = ticker.C
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			if _, err := mirror.Refresh(ctx, params); err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Warnf("refresh failed, keeping previous listing: %v", err)
				continue
			}
			render()
		}
	}
}

func printListing(cache *client.Cache) {
	now := time.Now()
	p := cache.Pagination()

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Title", "Organization", "Type", "Status", "Deadline", "Days", "Amount"})
	for _, call := range cache.Snapshot() {
		amount := call.FundingInfo.Amount
		if amount != "" {
			amount = call.FundingInfo.Currency + " " + amount
		}
		t.AppendRow(table.Row{
			text.Trim(call.Title, 48),
			text.Trim(call.Organization, 28),
			call.Type,
			colorStatus(call.Status),
			call.Deadline.Local().Format("2006-01-02"),
			status.DaysUntil(call.Deadline, now),
			amount,
		})
	}
	t.SetCaption("page %d/%d, %d total, fetched %s", p.Page, p.Pages, p.Total, cache.FetchedAt().Local().Format(time.Kitchen))
	t.Render()
}

func colorStatus(s models.Status) string {
	switch s {
	case models.StatusOpen:
		return text.FgGreen.Sprint(s)
	case models.StatusClosingSoon:
		return text.FgYellow.Sprint(s)
	default:
		return text.FgRed.Sprint(s)
	}
}
