package source

import (
	"context"
	"os"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap/zaptest"

	"github.com/xela07ax/sitesboard/internal/domain"
	"github.com/xela07ax/sitesboard/internal/infra"
	"github.com/xela07ax/sitesboard/internal/metrics"
)

func TestInvalidationPatterns(t *testing.T) {
	tests := []struct {
		payload string
		want    []string
		wantErr bool
	}{
		{payload: "*", want: []string{"sitesboard:summary:*", "sitesboard:lastdate:*"}},
		{payload: " * ", want: []string{"sitesboard:summary:*", "sitesboard:lastdate:*"}},
		{payload: "day:2026-10-18", want: []string{"sitesboard:summary:day:2026-10-18:*", "sitesboard:lastdate:day:*"}},
		{payload: "range:2026-10-01,2026-10-18", want: []string{"sitesboard:summary:range:2026-10-01,2026-10-18:*", "sitesboard:lastdate:range:*"}},
		{payload: "day", wantErr: true},
		{payload: ":2026-10-18", wantErr: true},
		{payload: "day:", wantErr: true},
	}

	for _, tt := range tests {
		got, err := invalidationPatterns(tt.payload)
		if tt.wantErr {
			if err == nil {
				t.Errorf("%q: expected error", tt.payload)
			}
			continue
		}
		if err != nil {
			t.Errorf("%q: %v", tt.payload, err)
			continue
		}
		if !slices.Equal(got, tt.want) {
			t.Errorf("%q: got %v, want %v", tt.payload, got, tt.want)
		}
	}
}

func testRedis(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("SITESBOARD_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("SITESBOARD_TEST_REDIS_ADDR not set; skipping redis integration test")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	t.Cleanup(func() { rdb.Close() })
	return rdb
}

func TestCache_HitAfterMiss(t *testing.T) {
	rdb := testRedis(t)
	ctx := context.Background()

	// Уникальная дата, чтобы не пересекаться с другими прогонами
	q := domain.Query{Period: "day", Date: "test-" + time.Now().Format("150405.000000000")}
	t.Cleanup(func() { rdb.Del(ctx, infra.SummaryKey(q.Period, q.Date, q.Segment)) })

	fake := &fakeSource{table: sampleTable()}
	m := metrics.New(prometheus.NewRegistry())
	c := NewCache(fake, rdb, time.Minute, m, zaptest.NewLogger(t))

	for range 2 {
		table, err := c.FetchSummary(ctx, q)
		if err != nil {
			t.Fatalf("FetchSummary: %v", err)
		}
		if table.TotalVisits != 15 || len(table.Sites) != 2 {
			t.Fatalf("unexpected table: %+v", table)
		}
		if !table.TotalRevenue.Equal(sampleTable().TotalRevenue) {
			t.Errorf("revenue = %s, want 1.5", table.TotalRevenue)
		}
	}

	if got := fake.calls.Load(); got != 1 {
		t.Errorf("source calls = %d, want 1", got)
	}
	if got := testutil.ToFloat64(m.CacheResults.WithLabelValues("hit")); got != 1 {
		t.Errorf("hits = %v, want 1", got)
	}

	if err := c.Invalidate(ctx, q.Period+":"+q.Date); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if _, err := c.FetchSummary(ctx, q); err != nil {
		t.Fatalf("FetchSummary after invalidate: %v", err)
	}
	if got := fake.calls.Load(); got != 2 {
		t.Errorf("source calls after invalidate = %d, want 2", got)
	}
}

func TestCache_CollapsesConcurrentMisses(t *testing.T) {
	rdb := testRedis(t)
	ctx := context.Background()

	q := domain.Query{Period: "week", Date: "test-" + time.Now().Format("150405.000000000")}
	t.Cleanup(func() { rdb.Del(ctx, infra.SummaryKey(q.Period, q.Date, q.Segment)) })

	fake := &fakeSource{table: sampleTable(), release: make(chan struct{})}
	c := NewCache(fake, rdb, time.Minute, nil, zaptest.NewLogger(t))

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.FetchSummary(ctx, q); err != nil {
				t.Errorf("FetchSummary: %v", err)
			}
		}()
	}

	// Даем горутинам встать в очередь singleflight
	time.Sleep(50 * time.Millisecond)
	close(fake.release)
	wg.Wait()

	if got := fake.calls.Load(); got != 1 {
		t.Errorf("source calls = %d, want 1", got)
	}
}
