package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ppiankov/readdigest/internal/digest"
	"github.com/ppiankov/readdigest/internal/source"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "archive", "readdigest.db")
	st, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st, path
}

func sampleResult(generated time.Time) digest.Result {
	published := generated.Add(-3 * time.Hour)
	return digest.Result{
		GeneratedAt: generated,
		WindowStart: generated.Add(-30 * time.Hour),
		NewPosts: []digest.Post{
			{SourceID: "alpha", SourceName: "Alpha", Title: "First", URL: "https://alpha.example/1", PublishedAt: &published, Excerpt: "one"},
			{SourceID: "alpha", SourceName: "Alpha", Title: "Undated", URL: "https://alpha.example/2"},
			{SourceID: "alpha", SourceName: "Alpha", Title: "Dup", URL: "https://alpha.example/1"},
		},
		Sources: []digest.SourceReport{
			{SourceID: "alpha", SourceName: "Alpha", Feed: "https://alpha.example/feed", FetchedCount: 4, NewCount: 2},
			{SourceID: "beta", SourceName: "Beta", Feed: "https://beta.example/feed", Error: "fetch https://beta.example/feed: HTTP 503"},
		},
		HNTop: []source.Story{{Rank: 1, ID: 7, Title: "Story"}},
	}
}

func TestOpenAndMigrate(t *testing.T) {
	st, path := openTestStore(t)

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("db file not created: %v", err)
	}

	var version string
	if err := st.db.QueryRow("SELECT value FROM metadata WHERE key = 'schema_version'").Scan(&version); err != nil {
		t.Fatalf("read schema version: %v", err)
	}
	if version != "1" {
		t.Fatalf("unexpected schema version: %s", version)
	}
}

func TestOpen_Reopen(t *testing.T) {
	st, path := openTestStore(t)
	if _, err := st.RecordRun(context.Background(), sampleResult(time.Now().UTC())); err != nil {
		t.Fatalf("record: %v", err)
	}
	_ = st.Close()

	again, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = again.Close() }()

	runs, err := again.RecentRuns(context.Background(), 5)
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("runs = %d, want 1", len(runs))
	}
}

func TestOpen_NewerSchemaRejected(t *testing.T) {
	st, path := openTestStore(t)
	if _, err := st.db.Exec("UPDATE metadata SET value = '99' WHERE key = 'schema_version'"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	_ = st.Close()

	if _, err := Open(path); err == nil {
		t.Fatal("expected error for newer schema")
	}
}

func TestOpen_EmptyPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestRecordRun(t *testing.T) {
	st, _ := openTestStore(t)
	ctx := context.Background()
	generated := time.Now().UTC().Truncate(time.Second)

	id, err := st.RecordRun(ctx, sampleResult(generated))
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if id == 0 {
		t.Fatal("expected non-zero run id")
	}

	runs, err := st.RecentRuns(ctx, 10)
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("runs = %d, want 1", len(runs))
	}
	r := runs[0]
	if r.ID != id || !r.GeneratedAt.Equal(generated) {
		t.Errorf("run = %+v", r)
	}
	if r.NewPosts != 3 || r.Sources != 2 || r.FailedSources != 1 || r.HNStories != 1 {
		t.Errorf("counts = %+v", r)
	}

	posts, err := st.PostsSince(ctx, generated.Add(-time.Minute))
	if err != nil {
		t.Fatalf("posts: %v", err)
	}
	if len(posts) != 2 {
		t.Fatalf("posts = %d, want 2 (duplicate url collapsed)", len(posts))
	}
	if posts[0].Title != "First" || posts[0].PublishedAt == nil {
		t.Errorf("first post = %+v", posts[0])
	}
	if posts[1].PublishedAt != nil {
		t.Errorf("undated post has published_at %v", posts[1].PublishedAt)
	}
}

func TestRecentRuns_Order(t *testing.T) {
	st, _ := openTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC()

	for i := 0; i < 3; i++ {
		if _, err := st.RecordRun(ctx, sampleResult(base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}

	runs, err := st.RecentRuns(ctx, 2)
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("runs = %d, want 2", len(runs))
	}
	if !runs[0].GeneratedAt.After(runs[1].GeneratedAt) {
		t.Errorf("runs not newest first: %v, %v", runs[0].GeneratedAt, runs[1].GeneratedAt)
	}
}

func TestGetSourceStats(t *testing.T) {
	st, _ := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := st.RecordRun(ctx, sampleResult(now.Add(-2*time.Hour))); err != nil {
		t.Fatalf("record: %v", err)
	}
	if _, err := st.RecordRun(ctx, digest.Result{
		GeneratedAt: now.Add(-time.Hour),
		WindowStart: now.Add(-3 * time.Hour),
		Sources: []digest.SourceReport{
			{SourceID: "alpha", SourceName: "Alpha", FetchedCount: 4},
			{SourceID: "beta", SourceName: "Beta", Error: "unsupported feed format"},
		},
	}); err != nil {
		t.Fatalf("record: %v", err)
	}

	stats, err := st.GetSourceStats(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("stats = %d, want 2", len(stats))
	}

	alpha, beta := stats[0], stats[1]
	if alpha.SourceID != "alpha" || alpha.Runs != 2 || alpha.Fetched != 8 || alpha.New != 2 || alpha.Errors != 0 {
		t.Errorf("alpha = %+v", alpha)
	}
	if alpha.LastPostAt == nil {
		t.Error("alpha last post should be set")
	}
	if beta.Errors != 2 || beta.LastError != "unsupported feed format" {
		t.Errorf("beta = %+v", beta)
	}
	if beta.LastPostAt != nil {
		t.Errorf("beta last post = %v, want nil", beta.LastPostAt)
	}

	none, err := st.GetSourceStats(ctx, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("stats after cutoff = %d, want 0", len(none))
	}
}

func TestPruneOld(t *testing.T) {
	st, _ := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := st.RecordRun(ctx, sampleResult(now.AddDate(0, 0, -40))); err != nil {
		t.Fatalf("record old: %v", err)
	}
	if _, err := st.RecordRun(ctx, sampleResult(now.Add(-time.Hour))); err != nil {
		t.Fatalf("record recent: %v", err)
	}

	n, err := st.PruneOld(ctx, 30)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if n != 1 {
		t.Fatalf("pruned %d runs, want 1", n)
	}

	var posts, reports int
	if err := st.db.QueryRow("SELECT COUNT(*) FROM posts").Scan(&posts); err != nil {
		t.Fatalf("count posts: %v", err)
	}
	if err := st.db.QueryRow("SELECT COUNT(*) FROM source_reports").Scan(&reports); err != nil {
		t.Fatalf("count reports: %v", err)
	}
	if posts != 2 || reports != 2 {
		t.Errorf("posts = %d, reports = %d, want 2 and 2", posts, reports)
	}
}

func TestPruneOld_ZeroDays(t *testing.T) {
	st, _ := openTestStore(t)
	ctx := context.Background()

	if _, err := st.RecordRun(ctx, sampleResult(time.Now().AddDate(-1, 0, 0))); err != nil {
		t.Fatalf("record: %v", err)
	}
	n, err := st.PruneOld(ctx, 0)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if n != 0 {
		t.Errorf("pruned %d, want 0", n)
	}
}

func TestNilStore(t *testing.T) {
	var st *Store
	ctx := context.Background()
	if err := st.Close(); err != nil {
		t.Errorf("close: %v", err)
	}
	if _, err := st.RecordRun(ctx, digest.Result{}); err == nil {
		t.Error("expected error from nil store")
	}
	if _, err := st.RecentRuns(ctx, 1); err == nil {
		t.Error("expected error from nil store")
	}
}
