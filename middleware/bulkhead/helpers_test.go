package bulkhead

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// holder é um handler que segura a vaga até liberarmos.
type holder struct {
	started chan struct{}
	release chan struct{}
}

func newHolder() *holder {
	return &holder{
		started: make(chan struct{}, 64),
		release: make(chan struct{}),
	}
}

func (h *holder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.started <- struct{}{}
	<-h.release
	w.WriteHeader(http.StatusOK)
}

func (h *holder) waitStarted(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-h.started:
		case <-time.After(2 * time.Second):
			t.Fatalf("timeout waiting request %d to start", i+1)
		}
	}
}

func serve(h http.Handler, path string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodGet, "http://example"+path, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

// eventually checa cond até 2s.
func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met: %s", msg)
}

func mustNew(t *testing.T, opts Options) *Bulkhead {
	t.Helper()
	b, err := New(opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return b
}
