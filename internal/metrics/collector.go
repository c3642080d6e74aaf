package metrics

import (
	"context"
	"runtime"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/agrilink/usermgmt/internal/accounts"
	"github.com/agrilink/usermgmt/internal/logger"
	"github.com/agrilink/usermgmt/internal/store"
)

// Collector samples process and account statistics into SystemMetric rows.
type Collector struct {
	db        *store.DB
	reg       *Registry
	interval  time.Duration
	retention time.Duration
	started   time.Time
	now       func() time.Time
}

func NewCollector(db *store.DB, reg *Registry, interval time.Duration, retentionDays int) *Collector {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if retentionDays <= 0 {
		retentionDays = 7
	}
	return &Collector{
		db:        db,
		reg:       reg,
		interval:  interval,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		started:   time.Now(),
		now:       time.Now,
	}
}

// Run samples every interval until ctx is cancelled.
func (c *Collector) Run(ctx context.Context) {
	t := time.NewTicker(c.interval)
	defer t.Stop()
	for {
		if _, err := c.CollectOnce(ctx); err != nil {
			logger.Warn("metrics: collect failed: %v", err)
		}
		if _, err := c.Prune(); err != nil {
			logger.Warn("metrics: prune failed: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// CollectOnce records one sample of every metric and returns the new rows.
func (c *Collector) CollectOnce(ctx context.Context) ([]accounts.SystemMetric, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := c.now().UTC()

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	values := map[string]float64{
		"uptime_seconds":   now.Sub(c.started).Seconds(),
		"goroutines":       float64(runtime.NumGoroutine()),
		"heap_alloc_bytes": float64(ms.HeapAlloc),
	}
	if c.reg != nil {
		values["http_requests_total"] = float64(c.reg.RequestsTotal())
	}

	err := c.db.Accounts.View(func(tx store.Tx) error {
		var farmers, experts int
		users, err := store.Users(tx).List(func(u *accounts.User) bool {
			switch u.Role {
			case accounts.RoleFarmer:
				farmers++
			case accounts.RoleExpert:
				experts++
			}
			return true
		})
		if err != nil {
			return err
		}
		pending, err := store.Posts(tx).Count(func(p *accounts.CommunityPost) bool { return !p.IsApproved })
		if err != nil {
			return err
		}
		values["users_total"] = float64(len(users))
		values["farmers_total"] = float64(farmers)
		values["experts_total"] = float64(experts)
		values["pending_posts"] = float64(pending)
		return nil
	})
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(values))
	for k := range values {
		names = append(names, k)
	}
	sort.Strings(names)

	rows := make([]accounts.SystemMetric, 0, len(names))
	for _, name := range names {
		rows = append(rows, accounts.SystemMetric{
			ID:         uuid.NewString(),
			MetricName: name,
			Value:      values[name],
			RecordedAt: now,
		})
	}
	err = c.db.System.Update(func(tx store.Tx) error {
		repo := store.Metrics(tx)
		for i := range rows {
			if err := repo.Put(&rows[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Prune deletes samples older than the retention window.
func (c *Collector) Prune() (int, error) {
	cutoff := c.now().UTC().Add(-c.retention)
	removed := 0
	err := c.db.System.Update(func(tx store.Tx) error {
		repo := store.Metrics(tx)
		old, err := repo.List(func(m *accounts.SystemMetric) bool { return m.RecordedAt.Before(cutoff) })
		if err != nil {
			return err
		}
		for _, m := range old {
			if err := repo.Delete(m.ID); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	return removed, err
}
