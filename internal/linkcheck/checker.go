// Package linkcheck visits the application URLs of funding calls and reports
// which ones no longer resolve.
package linkcheck

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
)

type Target struct {
	ID    string
	Title string
	URL   string
}

type Result struct {
	Target
	StatusCode int
	PageTitle  string
	Err        string
	Elapsed    time.Duration
}

func (r Result) OK() bool {
	return r.Err == "" && r.StatusCode >= 200 && r.StatusCode < 400
}

// Checker wraps a colly collector tuned for one GET per link.
type Checker struct {
	UserAgent      string
	Parallelism    int
	RequestTimeout time.Duration
	DomainDelay    time.Duration
	MaxRetries     int
	MaxBodySize    int
	RespectRobots  bool

	Logger *zap.Logger
}

func NewChecker() *Checker {
	return &Checker{
		UserAgent:      "ggh-linkcheck/1.0",
		Parallelism:    4,
		RequestTimeout: 20 * time.Second,
		DomainDelay:    500 * time.Millisecond,
		MaxRetries:     1,
		MaxBodySize:    512 * 1024,
	}
}

func (c *Checker) collector() *colly.Collector {
	opts := []colly.CollectorOption{
		colly.UserAgent(c.UserAgent),
		colly.MaxBodySize(c.MaxBodySize),
		colly.AllowURLRevisit(),
		colly.Async(true),
	}
	if !c.RespectRobots {
		opts = append(opts, colly.IgnoreRobotsTxt())
	}
	col := colly.NewCollector(opts...)
	_ = col.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: max(c.Parallelism, 1),
		Delay:       c.DomainDelay,
	})
	col.SetRequestTimeout(c.RequestTimeout)
	return col
}

// Check visits every target and returns one result per target, in input
// order. Targets with an unparseable URL are reported without a request.
// Cancelling ctx aborts requests that have not started yet.
func (c *Checker) Check(ctx context.Context, targets []Target) []Result {
	log := c.Logger
	if log == nil {
		log = zap.NewNop()
	}

	results := make([]Result, len(targets))
	started := make([]time.Time, len(targets))
	var mu sync.Mutex

	col := c.collector()

	index := func(r *colly.Request) int {
		i, _ := r.Ctx.GetAny("idx").(int)
		return i
	}

	col.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
			i := index(r)
			mu.Lock()
			results[i].Err = ctx.Err().Error()
			mu.Unlock()
			return
		}
		mu.Lock()
		started[index(r)] = time.Now()
		mu.Unlock()
	})

	col.OnHTML("head > title", func(e *colly.HTMLElement) {
		i := index(e.Request)
		mu.Lock()
		if results[i].PageTitle == "" {
			results[i].PageTitle = strings.Join(strings.Fields(e.Text), " ")
		}
		mu.Unlock()
	})

	col.OnResponse(func(r *colly.Response) {
		i := index(r.Request)
		mu.Lock()
		results[i].StatusCode = r.StatusCode
		results[i].Err = ""
		results[i].Elapsed = time.Since(started[i])
		mu.Unlock()
	})

	col.OnError(func(r *colly.Response, err error) {
		i := index(r.Request)
		// Transport failures are retried; an HTTP status is a definite answer.
		if r.StatusCode == 0 && ctx.Err() == nil {
			retries, _ := r.Request.Ctx.GetAny("retries").(int)
			if retries < c.MaxRetries {
				r.Request.Ctx.Put("retries", retries+1)
				log.Debug("retrying link", zap.String("url", r.Request.URL.String()), zap.Error(err))
				if rerr := r.Request.Retry(); rerr == nil {
					return
				}
			}
		}
		mu.Lock()
		results[i].StatusCode = r.StatusCode
		results[i].Err = err.Error()
		results[i].Elapsed = time.Since(started[i])
		mu.Unlock()
	})

	for i, t := range targets {
		results[i].Target = t
		u, err := url.Parse(strings.TrimSpace(t.URL))
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			results[i].Err = "invalid url"
			continue
		}
		rctx := colly.NewContext()
		rctx.Put("idx", i)
		if err := col.Request("GET", u.String(), nil, rctx, nil); err != nil {
			results[i].Err = fmt.Sprintf("request: %v", err)
		}
	}
	col.Wait()

	broken := 0
	for _, r := range results {
		if !r.OK() {
			broken++
		}
	}
	log.Info("link check finished", zap.Int("checked", len(results)), zap.Int("broken", broken))
	return results
}
