package bulkhead

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"bulkhead-gateway/middleware/bulkhead/application"
	"bulkhead-gateway/middleware/bulkhead/domain"
	"bulkhead-gateway/middleware/bulkhead/infra"
)

func TestNew_RejectsInvalidConfig(t *testing.T) {
	_, err := New(Options{Config: application.Config{MaxConcurrent: 0}})
	if !errors.Is(err, application.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestMiddleware_DefaultOptionsPassesResponseThrough(t *testing.T) {
	mw, err := Middleware(DefaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Upstream", "yes")
		w.WriteHeader(http.StatusTeapot)
		_, _ = io.WriteString(w, "ok")
	})

	w := serve(mw(next), "/")
	if w.Code != http.StatusTeapot {
		t.Fatalf("expected downstream status, got %d", w.Code)
	}
	if w.Header().Get("X-Upstream") != "yes" || w.Body.String() != "ok" {
		t.Fatalf("expected downstream response unchanged, got headers=%v body=%q", w.Header(), w.Body.String())
	}
}

func TestBulkhead_SequentialRequestsNeverExhaustPool(t *testing.T) {
	b := mustNew(t, Options{Config: application.Config{MaxConcurrent: 2, MaxWaiting: 0}})
	h := b.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 10; i++ {
		if w := serve(h, "/"); w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, w.Code)
		}
	}
	snap := b.Snapshot()
	if len(snap.Partitions) != 1 || snap.Partitions[0].InUse != 0 {
		t.Fatalf("expected a single idle partition, got %+v", snap.Partitions)
	}
}

func TestBulkhead_ReleasesSlotWhenHandlerPanics(t *testing.T) {
	b := mustNew(t, Options{Config: application.Config{MaxConcurrent: 1, MaxWaiting: 0}})

	calls := 0
	h := b.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			panic("boom")
		}
		w.WriteHeader(http.StatusOK)
	}))

	func() {
		defer func() {
			// o panic do handler atravessa o bulkhead sem ser convertido
			if rec := recover(); rec != "boom" {
				t.Fatalf("expected downstream panic to propagate, got %v", rec)
			}
		}()
		serve(h, "/")
	}()

	if w := serve(h, "/"); w.Code != http.StatusOK {
		t.Fatalf("expected slot to be released after panic, got %d", w.Code)
	}
}

func TestBulkhead_ExcludedPathsBypassGate(t *testing.T) {
	hold := newHolder()
	mux := http.NewServeMux()
	mux.Handle("/", hold)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/internal", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	b := mustNew(t, Options{
		Config:       application.Config{MaxConcurrent: 1, MaxWaiting: 0},
		ExcludePaths: []string{"/healthz"},
		Skip:         func(r *http.Request) bool { return r.Header.Get("X-Internal") == "1" },
	})
	h := b.Handler(mux)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		serve(h, "/work")
	}()
	hold.waitStarted(t, 1)

	if w := serve(h, "/work"); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected saturated gate to reject, got %d", w.Code)
	}
	if w := serve(h, "/healthz"); w.Code != http.StatusOK {
		t.Fatalf("expected excluded path to pass, got %d", w.Code)
	}

	r := httptest.NewRequest(http.MethodGet, "http://example/internal", nil)
	r.Header.Set("X-Internal", "1")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("expected Skip to bypass gate, got %d", w.Code)
	}

	close(hold.release)
	wg.Wait()
}

func TestBulkhead_RecordsStatsPerOutcome(t *testing.T) {
	stats := infra.NewMemoryStatsStore(infra.WithTrackPaths(true))
	hold := newHolder()
	b := mustNew(t, Options{
		Config: application.Config{MaxConcurrent: 1, MaxWaiting: 0},
		Stats:  stats,
	})
	h := b.Handler(hold)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		serve(h, "/x")
	}()
	hold.waitStarted(t, 1)
	serve(h, "/x")
	close(hold.release)
	wg.Wait()
	b.Close()

	total := stats.Total()
	if total.Admitted != 1 || total.Overloaded != 1 {
		t.Fatalf("unexpected totals: %+v", total)
	}
	if got := stats.ByPartition()[domain.GlobalKey]; got.Overloaded != 1 {
		t.Fatalf("expected overload counted on global partition, got %+v", got)
	}
	if got := stats.ByRoute()["GET /x"]; got.Admitted != 1 {
		t.Fatalf("expected admitted counted on route, got %+v", got)
	}
}

func TestBulkhead_CustomRetryAfterAndFIFOPool(t *testing.T) {
	hold := newHolder()
	b := mustNew(t, Options{
		Config:     application.Config{MaxConcurrent: 1, MaxWaiting: 0, Timeout: time.Second},
		Pool:       infra.NewFIFOPool,
		RetryAfter: 2500 * time.Millisecond,
	})
	h := b.Handler(hold)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		serve(h, "/")
	}()
	hold.waitStarted(t, 1)

	w := serve(h, "/")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "2" {
		// int(2.5s.Seconds()) == 2
		t.Fatalf("expected Retry-After=2, got %q", got)
	}

	close(hold.release)
	wg.Wait()
}

func TestBulkhead_SnapshotHandler(t *testing.T) {
	b := mustNew(t, Options{Config: application.Config{
		MaxConcurrent: 3,
		MaxWaiting:    7,
		PerPath:       true,
		PathLimits:    map[string]int{"/a": 1},
	}})
	h := b.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	serve(h, "/b")
	serve(h, "/a")

	w := serve(b.SnapshotHandler(), "/bulkhead")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var snap domain.Snapshot
	if err := json.NewDecoder(w.Body).Decode(&snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.MaxWaiting != 7 || len(snap.Partitions) != 2 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if snap.Partitions[0].Key != "/a" || snap.Partitions[0].Capacity != 1 {
		t.Fatalf("expected /a first with capacity 1, got %+v", snap.Partitions[0])
	}
	if snap.Partitions[1].Key != "/b" || snap.Partitions[1].Capacity != 3 {
		t.Fatalf("expected /b with default capacity 3, got %+v", snap.Partitions[1])
	}
}

func TestBulkhead_StartJanitorRequiresIdleTTL(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if mustNew(t, DefaultOptions()).StartJanitor(ctx) {
		t.Fatal("expected janitor disabled without IdleTTL")
	}

	opts := DefaultOptions()
	opts.IdleTTL = time.Minute
	if !mustNew(t, opts).StartJanitor(ctx) {
		t.Fatal("expected janitor started with IdleTTL")
	}
}
