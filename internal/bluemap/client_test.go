package bluemap

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

type recordingSleeper struct {
	delays []time.Duration
}

func (r *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return ctx.Err()
}

// scriptedServer answers /players with the given responses in order, repeating the last one.
func scriptedServer(t *testing.T, responses ...func(w http.ResponseWriter)) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/players" || r.Method != http.MethodGet {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		n := int(atomic.AddInt32(&calls, 1)) - 1
		if n >= len(responses) {
			n = len(responses) - 1
		}
		responses[n](w)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func body(s string) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(s))
	}
}

func status(code int) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) { w.WriteHeader(code) }
}

func newTestClient(baseURL string, s *recordingSleeper) *Client {
	return NewClient(baseURL, WithSleeper(s.sleep), WithTimeout(2*time.Second))
}

func TestLookupTruncatesAndDefaultsMissing(t *testing.T) {
	srv, calls := scriptedServer(t, body(`[{"name":"Alex","position":{"x":1,"y":2,"z":3}},{"name":"Bob","position":{"x":12.7,"y":"","z":5.0}}]`))
	s := &recordingSleeper{}
	pos, err := newTestClient(srv.URL, s).Lookup(context.Background(), "Bob")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if pos.X != 12 || pos.Y != 0 || pos.Z != 5 {
		t.Fatalf("unexpected position: %+v", pos)
	}
	if pos.String() != "12 0 5" {
		t.Fatalf("unexpected String(): %q", pos.String())
	}
	if *calls != 1 || len(s.delays) != 0 {
		t.Fatalf("expected single attempt, calls=%d delays=%d", *calls, len(s.delays))
	}
}

func TestLookupTruncatesTowardZero(t *testing.T) {
	srv, _ := scriptedServer(t, body(`[{"name":"Neg","position":{"x":-12.7,"y":-0.4,"z":63.99}}]`))
	pos, err := newTestClient(srv.URL, &recordingSleeper{}).Lookup(context.Background(), "Neg")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if pos.X != -12 || pos.Y != 0 || pos.Z != 63 {
		t.Fatalf("expected truncation toward zero, got %+v", pos)
	}
}

func TestLookupMissingPositionObject(t *testing.T) {
	srv, _ := scriptedServer(t, body(`[{"name":"Ghost"}]`))
	pos, err := newTestClient(srv.URL, &recordingSleeper{}).Lookup(context.Background(), "Ghost")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if pos.X != 0 || pos.Y != 0 || pos.Z != 0 {
		t.Fatalf("expected origin, got %+v", pos)
	}
}

func TestLookupFirstMatchWinsAndExactName(t *testing.T) {
	srv, _ := scriptedServer(t, body(`[{"name":"bob","position":{"x":9}},{"name":7},{"name":"Bob","position":{"x":1}},{"name":"Bob","position":{"x":2}}]`))
	pos, err := newTestClient(srv.URL, &recordingSleeper{}).Lookup(context.Background(), "Bob")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if pos.X != 1 {
		t.Fatalf("expected first exact match, got %+v", pos)
	}
}

func TestLookupRetriesThenNotFoundIsNotRetried(t *testing.T) {
	srv, calls := scriptedServer(t,
		status(http.StatusBadGateway),
		body(`not json`),
		body(`[{"name":"Bob","position":{"x":1,"y":2,"z":3}}]`),
	)
	s := &recordingSleeper{}
	_, err := newTestClient(srv.URL, s).Lookup(context.Background(), "Carol")
	if !errors.Is(err, ErrPlayerNotFound) {
		t.Fatalf("expected ErrPlayerNotFound, got %v", err)
	}
	if errors.Is(err, ErrLookupFailed) {
		t.Fatalf("not-found must not be reported as lookup failure")
	}
	if *calls != 3 {
		t.Fatalf("expected 3 requests, got %d", *calls)
	}
	if len(s.delays) != 2 {
		t.Fatalf("expected 2 retry delays, got %d", len(s.delays))
	}
	for _, d := range s.delays {
		if d != 2*time.Second {
			t.Fatalf("expected fixed 2s delay, got %v", d)
		}
	}
}

func TestLookupExhaustsAttempts(t *testing.T) {
	srv, calls := scriptedServer(t, status(http.StatusServiceUnavailable))
	s := &recordingSleeper{}
	_, err := newTestClient(srv.URL, s).Lookup(context.Background(), "Bob")
	if !errors.Is(err, ErrLookupFailed) {
		t.Fatalf("expected ErrLookupFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "503") {
		t.Fatalf("expected last cause in error, got %q", err.Error())
	}
	if *calls != 3 || len(s.delays) != 2 {
		t.Fatalf("expected 3 attempts and 2 delays, got calls=%d delays=%d", *calls, len(s.delays))
	}
}

func TestLookupNonArrayIsRetried(t *testing.T) {
	srv, calls := scriptedServer(t, body(`{"players":[]}`), body(`null`), body(`[]`))
	s := &recordingSleeper{}
	_, err := newTestClient(srv.URL, s).Lookup(context.Background(), "Bob")
	if !errors.Is(err, ErrPlayerNotFound) {
		t.Fatalf("expected ErrPlayerNotFound after recovering, got %v", err)
	}
	if *calls != 3 || len(s.delays) != 2 {
		t.Fatalf("expected 3 attempts and 2 delays, got calls=%d delays=%d", *calls, len(s.delays))
	}
}

func TestLookupTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	s := &recordingSleeper{}
	c := NewClient(url, WithSleeper(s.sleep), WithMaxAttempts(2), WithRetryDelay(time.Millisecond), WithTimeout(time.Second))
	_, err := c.Lookup(context.Background(), "Bob")
	if !errors.Is(err, ErrLookupFailed) {
		t.Fatalf("expected ErrLookupFailed, got %v", err)
	}
	if len(s.delays) != 1 || s.delays[0] != time.Millisecond {
		t.Fatalf("expected one configured delay, got %v", s.delays)
	}
}

func TestLookupStopsOnCanceledContext(t *testing.T) {
	srv, calls := scriptedServer(t, status(http.StatusInternalServerError))
	ctx, cancel := context.WithCancel(context.Background())
	c := NewClient(srv.URL, WithSleeper(func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}))
	_, err := c.Lookup(ctx, "Bob")
	if !errors.Is(err, ErrLookupFailed) {
		t.Fatalf("expected ErrLookupFailed, got %v", err)
	}
	if *calls != 1 {
		t.Fatalf("expected lookup to stop after first attempt, got %d", *calls)
	}
}

func TestPlayers(t *testing.T) {
	srv, _ := scriptedServer(t, body(`[{"name":"A","position":{"x":1.5}},{"foo":1},{"name":"B"}]`))
	list, err := NewClient(srv.URL).Players(context.Background())
	if err != nil {
		t.Fatalf("Players: %v", err)
	}
	if len(list) != 2 || list[0].Name != "A" || list[0].X != 1 || list[1].Name != "B" {
		t.Fatalf("unexpected roster: %+v", list)
	}
}

func TestTruncateSaturates(t *testing.T) {
	cases := map[float64]int{
		1e12:  2147483647,
		-1e12: -2147483648,
		-3.9:  -3,
	}
	for in, want := range cases {
		if got := truncate(in); got != want {
			t.Errorf("truncate(%v)=%d want %d", in, got, want)
		}
	}
}
