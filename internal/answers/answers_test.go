package answers

import (
	"context"
	"testing"
)

// openTestLog opens an in-memory SQLiteLog for use in tests.
func openTestLog(t *testing.T) *SQLiteLog {
	t.Helper()
	l, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open in-memory log: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func Test_Log_AppendAndRecent(t *testing.T) {
	t.Parallel()
	l := openTestLog(t)
	ctx := context.Background()

	if err := l.Append(ctx, Record{
		Question:  "what is the refund window",
		Answer:    "30 days",
		Model:     "qwen/qwen2.5-7b-instruct",
		LatencyMS: 1200,
	}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := l.Append(ctx, Record{
		Question:  "what is the refund window",
		Answer:    "30 days",
		Model:     "qwen/qwen2.5-7b-instruct",
		LatencyMS: 3,
		CacheHit:  true,
	}); err != nil {
		t.Fatalf("append: %v", err)
	}

	recs, err := l.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("want 2 records, got %d", len(recs))
	}
	// Newest first.
	if !recs[0].CacheHit || recs[1].CacheHit {
		t.Errorf("unexpected order or cache flags: %+v", recs)
	}
	if recs[0].Answer != "30 days" {
		t.Errorf("answer: got %q", recs[0].Answer)
	}
}

func Test_Log_RecentLimitRespected(t *testing.T) {
	t.Parallel()
	l := openTestLog(t)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		if err := l.Append(ctx, Record{Question: "q", Answer: "a", Model: "m", LatencyMS: 10}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	recs, err := l.Recent(ctx, 4)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recs) != 4 {
		t.Errorf("want 4 records, got %d", len(recs))
	}
}

func Test_Log_Stats(t *testing.T) {
	t.Parallel()
	l := openTestLog(t)
	ctx := context.Background()

	records := []Record{
		{Question: "q1", Answer: "a1", Model: "m", LatencyMS: 100},
		{Question: "q2", Answer: "a2", Model: "m", LatencyMS: 300},
		{Question: "q1", Answer: "a1", Model: "m", LatencyMS: 2, CacheHit: true},
	}
	for _, rec := range records {
		if err := l.Append(ctx, rec); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	s, err := l.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if s.Total != 3 {
		t.Errorf("total: got %d, want 3", s.Total)
	}
	if s.CacheHits != 1 {
		t.Errorf("cache hits: got %d, want 1", s.CacheHits)
	}
	if s.AvgLatencyMS != 134 {
		t.Errorf("avg latency: got %v, want 134", s.AvgLatencyMS)
	}
}

func Test_Log_StatsEmpty(t *testing.T) {
	t.Parallel()
	l := openTestLog(t)

	s, err := l.Stats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if s.Total != 0 || s.CacheHits != 0 || s.AvgLatencyMS != 0 {
		t.Errorf("want zero stats, got %+v", s)
	}
}
