/*
scheduler.go - Periodic pacing digest

PURPOSE:
  Periodically computes the three tracker views for the current month and
  logs how many subjects are behind pace. Gives operators a heartbeat of
  the month without anyone opening the dashboard.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Builds a fresh quota.Tracker on every run (no cached state)
  - Only logs; nothing is written back to the store

CONFIGURATION:
  - CheckInterval: How often to run (default: 1 hour)
  - Enabled: Whether the digest is active (default: true)

USAGE:
  scheduler := NewDigestScheduler(store)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - quota/tracker.go: the views being summarized
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/warp/capacity-engine/calendar"
	"github.com/warp/capacity-engine/quota"
)

// DigestScheduler logs a pacing summary on a fixed interval.
type DigestScheduler struct {
	Source        quota.Source
	CheckInterval time.Duration
	Enabled       bool
	Now           func() calendar.Date

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// Digest is the outcome of one run.
type Digest struct {
	Month  calendar.Month
	Scope  quota.Scope
	Total  int
	Behind int
	Met    int
}

// NewDigestScheduler creates a new scheduler.
func NewDigestScheduler(src quota.Source) *DigestScheduler {
	return &DigestScheduler{
		Source:        src,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		Now:           calendar.Today,
		stop:          make(chan bool),
	}
}

// Start begins the scheduler.
func (ds *DigestScheduler) Start() {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if !ds.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	ds.ticker = time.NewTicker(ds.CheckInterval)
	ds.wg.Add(1)

	go ds.run()

	log.Printf("[Scheduler] Started with check interval: %v", ds.CheckInterval)
}

// Stop stops the scheduler.
func (ds *DigestScheduler) Stop() {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if ds.ticker != nil {
		ds.ticker.Stop()
		close(ds.stop)
		ds.wg.Wait()
		ds.ticker = nil
		log.Println("[Scheduler] Stopped")
	}
}

func (ds *DigestScheduler) run() {
	defer ds.wg.Done()

	// Run immediately on start
	ds.RunOnce(context.Background())

	for {
		select {
		case <-ds.ticker.C:
			ds.RunOnce(context.Background())
		case <-ds.stop:
			return
		}
	}
}

// RunOnce computes and logs one digest per scope. Scopes whose view fails
// are logged and left out of the result.
func (ds *DigestScheduler) RunOnce(ctx context.Context) []Digest {
	today := ds.Now()
	month := calendar.MonthOf(today)
	tracker := quota.NewTracker(ds.Source).At(today)

	views := []struct {
		scope quota.Scope
		fn    func(context.Context, calendar.Month) ([]quota.TrackerResult, error)
	}{
		{quota.ScopeResource, tracker.ResourceTracker},
		{quota.ScopeClient, tracker.ClientTracker},
		{quota.ScopeSubAccount, func(ctx context.Context, m calendar.Month) ([]quota.TrackerResult, error) {
			return tracker.AccountTracker(ctx, m, "")
		}},
	}

	var digests []Digest
	for _, v := range views {
		rows, err := v.fn(ctx, month)
		if err != nil {
			log.Printf("[Scheduler] Error computing %s view for %s: %v", v.scope, month, err)
			continue
		}
		d := Digest{Month: month, Scope: v.scope, Total: len(rows)}
		for _, r := range rows {
			switch r.Status {
			case quota.PaceBehind:
				d.Behind++
			case quota.PaceMet:
				d.Met++
			}
		}
		log.Printf("[Scheduler] %s %s: %d tracked, %d behind, %d met", month, v.scope, d.Total, d.Behind, d.Met)
		digests = append(digests, d)
	}
	return digests
}
