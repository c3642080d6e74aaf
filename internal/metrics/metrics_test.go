package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrilink/usermgmt/internal/accounts"
	"github.com/agrilink/usermgmt/internal/store"
)

func TestRegistryCountersAndHandler(t *testing.T) {
	r := NewRegistry()
	r.ObserveRequest("/api/auth/login/", http.MethodPost, 200, 10*time.Millisecond)
	r.ObserveRequest("", http.MethodGet, 404, time.Millisecond)
	r.Registered("farmer")
	r.PointsAwarded("community_post", 5)
	r.EmailResult(true)
	r.EmailResult(false)
	r.Booked()

	assert.Equal(t, int64(2), r.RequestsTotal())
	assert.Equal(t, 1.0, testutil.ToFloat64(r.requests.WithLabelValues("unmatched", "GET", "404")))
	assert.Equal(t, 5.0, testutil.ToFloat64(r.points.WithLabelValues("community_post")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.emails.WithLabelValues("failed")))

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), "usermgmt_registrations_total")
	assert.Contains(t, string(body), "usermgmt_bookings_total 1")
}

func seed(t *testing.T, db *store.DB) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, db.Accounts.Update(func(tx store.Tx) error {
		users := store.Users(tx)
		for i, role := range []accounts.Role{accounts.RoleFarmer, accounts.RoleFarmer, accounts.RoleExpert, accounts.RoleAdmin} {
			u := &accounts.User{
				ID:         string(rune('a' + i)),
				Email:      string(rune('a'+i)) + "@example.com",
				Username:   string(rune('a' + i)),
				Role:       role,
				DateJoined: now,
			}
			if err := users.Create(u); err != nil {
				return err
			}
		}
		posts := store.Posts(tx)
		if err := posts.Put(&accounts.CommunityPost{ID: "p1", IsApproved: false}); err != nil {
			return err
		}
		return posts.Put(&accounts.CommunityPost{ID: "p2", IsApproved: true})
	}))
}

func TestCollectOnceRecordsRows(t *testing.T) {
	db := store.OpenMemoryDB()
	defer db.Close()
	seed(t, db)

	reg := NewRegistry()
	reg.ObserveRequest("/x", "GET", 200, 0)
	c := NewCollector(db, reg, time.Second, 7)

	rows, err := c.CollectOnce(context.Background())
	require.NoError(t, err)

	got := map[string]float64{}
	for _, r := range rows {
		got[r.MetricName] = r.Value
	}
	assert.Equal(t, 4.0, got["users_total"])
	assert.Equal(t, 2.0, got["farmers_total"])
	assert.Equal(t, 1.0, got["experts_total"])
	assert.Equal(t, 1.0, got["pending_posts"])
	assert.Equal(t, 1.0, got["http_requests_total"])
	assert.Greater(t, got["goroutines"], 0.0)

	require.NoError(t, db.System.View(func(tx store.Tx) error {
		n, err := store.Metrics(tx).Count(nil)
		assert.Equal(t, len(rows), n)
		return err
	}))
}

func TestPruneDropsExpiredRows(t *testing.T) {
	db := store.OpenMemoryDB()
	defer db.Close()
	c := NewCollector(db, nil, time.Second, 1)
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	require.NoError(t, db.System.Update(func(tx store.Tx) error {
		m := store.Metrics(tx)
		if err := m.Put(&accounts.SystemMetric{ID: "old", MetricName: "x", RecordedAt: now.Add(-48 * time.Hour)}); err != nil {
			return err
		}
		return m.Put(&accounts.SystemMetric{ID: "new", MetricName: "x", RecordedAt: now.Add(-time.Hour)})
	}))

	n, err := c.Prune()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.NoError(t, db.System.View(func(tx store.Tx) error {
		_, err := store.Metrics(tx).Get("old")
		assert.ErrorIs(t, err, store.ErrNotFound)
		_, err = store.Metrics(tx).Get("new")
		return err
	}))
}

func TestRunStopsOnCancel(t *testing.T) {
	db := store.OpenMemoryDB()
	defer db.Close()
	c := NewCollector(db, nil, 10*time.Millisecond, 7)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()
	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("collector did not stop")
	}
}
