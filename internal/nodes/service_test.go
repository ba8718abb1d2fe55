package nodes

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/tornodes/internal/model"
	"github.com/nao1215/tornodes/internal/refresh"
	"github.com/nao1215/tornodes/internal/source"
	"github.com/nao1215/tornodes/internal/store"
)

const exitListBody = `ExitAddress 1.2.3.4 2024-01-01 00:00:00
ExitAddress 5.6.7.8 2024-01-01 00:00:01
`

const relaySummaryBody = `{"relays":[
 {"n":"exit1","f":"AAAA","a":["10.0.0.1"],"r":true,"s":["Exit","Fast"],"bw":100,"c":"us"},
 {"n":"mid1","f":"BBBB","r":true,"s":["Fast"],"bw":50,"c":"de"},
 {"n":"down","f":"CCCC","r":false,"s":[],"c":"us"}
]}`

var errUpstream = errors.New("upstream down")

// stubFetcher parses fixed upstream bodies and counts fetches.
type stubFetcher struct {
	mu       sync.Mutex
	exitBody string
	relays   string
	err      error

	exitCalls     atomic.Int32
	detailedCalls atomic.Int32
}

func (f *stubFetcher) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *stubFetcher) FetchExitAddresses(context.Context) ([]model.ExitAddress, error) {
	f.exitCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return source.ParseExitAddresses([]byte(f.exitBody))
}

func (f *stubFetcher) FetchDetailedRelays(context.Context) ([]model.Relay, error) {
	f.detailedCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return source.ParseRelaySummary([]byte(f.relays))
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Add(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestService(t *testing.T, f refresh.Fetcher) (*Service, *testClock) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := &testClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	st, err := store.Open(t.TempDir(), store.WithClock(clock.Now), store.WithLogger(logger))
	if err != nil {
		t.Fatalf("store.Open() failed: %v", err)
	}
	coord := refresh.New(st, f, refresh.WithLogger(logger))
	return NewService(coord, WithLogger(logger)), clock
}

func newStubFetcher() *stubFetcher {
	return &stubFetcher{exitBody: exitListBody, relays: relaySummaryBody}
}

// TestExitIPs tests the exit list scenario end to end.
func TestExitIPs(t *testing.T) {
	t.Parallel()

	f := newStubFetcher()
	svc, _ := newTestService(t, f)
	ctx := context.Background()

	first, err := svc.ExitIPs(ctx)
	if err != nil {
		t.Fatalf("ExitIPs() failed: %v", err)
	}
	want := []string{"1.2.3.4", "5.6.7.8"}
	if !slices.Equal(first, want) {
		t.Errorf("ExitIPs() = %v, want %v", first, want)
	}

	second, err := svc.ExitIPs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(first, second) {
		t.Errorf("second call = %v, want %v", second, first)
	}
	if f.exitCalls.Load() != 1 {
		t.Errorf("upstream fetched %d times, want 1", f.exitCalls.Load())
	}

	info := svc.ExitInfo()
	if !info.Exists || info.ItemCount != 2 || info.NeedsUpdate {
		t.Errorf("unexpected info: %+v", info)
	}
}

// TestExitList tests that the IPs and their save time come together.
func TestExitList(t *testing.T) {
	t.Parallel()

	f := newStubFetcher()
	svc, clock := newTestService(t, f)
	ctx := context.Background()
	saved := clock.Now()

	ips, lastUpdate, err := svc.ExitList(ctx)
	if err != nil {
		t.Fatalf("ExitList() failed: %v", err)
	}
	if want := []string{"1.2.3.4", "5.6.7.8"}; !slices.Equal(ips, want) {
		t.Errorf("ExitList() = %v, want %v", ips, want)
	}
	if lastUpdate == nil || !lastUpdate.Equal(saved) {
		t.Errorf("lastUpdate = %v, want %v", lastUpdate, saved)
	}

	clock.Add(time.Minute)
	_, again, err := svc.ExitList(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if again == nil || !again.Equal(saved) {
		t.Errorf("lastUpdate moved to %v without a refresh", again)
	}
}

// TestRelayFilters tests the derived relay views.
func TestRelayFilters(t *testing.T) {
	t.Parallel()

	f := newStubFetcher()
	svc, _ := newTestService(t, f)
	ctx := context.Background()

	all, err := svc.DetailedRelays(ctx)
	if err != nil {
		t.Fatalf("DetailedRelays() failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d relays, want 3", len(all))
	}

	exits, err := svc.ExitRelays(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(exits) != 1 || exits[0].Nickname != "exit1" || !exits[0].IsExit {
		t.Errorf("unexpected exit relays: %+v", exits)
	}

	running, err := svc.RunningRelays(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(running) != 2 {
		t.Errorf("got %d running relays, want 2", len(running))
	}

	for _, code := range []string{"US", "us", "uS"} {
		us, err := svc.RelaysByCountry(ctx, code)
		if err != nil {
			t.Fatalf("RelaysByCountry(%q) failed: %v", code, err)
		}
		if len(us) != 2 {
			t.Errorf("RelaysByCountry(%q) returned %d relays, want 2", code, len(us))
		}
	}

	none, err := svc.RelaysByCountry(ctx, "fr")
	if err != nil {
		t.Fatal(err)
	}
	if none == nil || len(none) != 0 {
		t.Errorf("RelaysByCountry(fr) = %#v, want empty", none)
	}

	if f.detailedCalls.Load() != 1 {
		t.Errorf("upstream fetched %d times, want 1", f.detailedCalls.Load())
	}
}

// TestRelaysByCountryValidation checks that bad codes never reach the cache.
func TestRelaysByCountryValidation(t *testing.T) {
	t.Parallel()

	f := newStubFetcher()
	svc, _ := newTestService(t, f)

	for _, code := range []string{"", "U", "USA", "1A", "u$", "日本"} {
		t.Run(code, func(t *testing.T) {
			_, err := svc.RelaysByCountry(context.Background(), code)
			if !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("RelaysByCountry(%q) = %v, want ErrInvalidArgument", code, err)
			}
		})
	}
	if f.detailedCalls.Load() != 0 {
		t.Errorf("invalid codes triggered %d fetches", f.detailedCalls.Load())
	}
}

// TestNoData tests reads of caches that never held data.
func TestNoData(t *testing.T) {
	t.Parallel()

	f := newStubFetcher()
	f.setErr(errUpstream)
	svc, _ := newTestService(t, f)
	ctx := context.Background()

	if _, err := svc.ExitIPs(ctx); !errors.Is(err, ErrNoData) || !errors.Is(err, errUpstream) {
		t.Errorf("ExitIPs() = %v, want ErrNoData wrapping the upstream error", err)
	}
	if _, err := svc.Statistics(ctx); !errors.Is(err, ErrNoData) {
		t.Errorf("Statistics() = %v, want ErrNoData", err)
	}
}

// TestStaleServedOnFailure tests that the last good snapshot outlives a failed refresh.
func TestStaleServedOnFailure(t *testing.T) {
	t.Parallel()

	f := newStubFetcher()
	svc, clock := newTestService(t, f)
	ctx := context.Background()

	if _, err := svc.ExitIPs(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.DetailedRelays(ctx); err != nil {
		t.Fatal(err)
	}

	clock.Add(store.DefaultExitTTL + time.Second)
	f.setErr(errUpstream)

	ips, err := svc.ExitIPs(ctx)
	if err != nil {
		t.Fatalf("ExitIPs() failed: %v", err)
	}
	if len(ips) != 2 {
		t.Errorf("got %d ips, want 2", len(ips))
	}
	relays, err := svc.DetailedRelays(ctx)
	if err != nil {
		t.Fatalf("DetailedRelays() failed: %v", err)
	}
	if len(relays) != 3 {
		t.Errorf("got %d relays, want 3", len(relays))
	}
	if !svc.ExitInfo().NeedsUpdate {
		t.Error("exit cache should still need an update")
	}
}

// TestEmptyUpstream tests that an empty list is data, not an error.
func TestEmptyUpstream(t *testing.T) {
	t.Parallel()

	f := &stubFetcher{exitBody: "# nothing here\n", relays: `{"relays":[]}`}
	svc, _ := newTestService(t, f)
	ctx := context.Background()

	ips, err := svc.ExitIPs(ctx)
	if err != nil || len(ips) != 0 {
		t.Errorf("ExitIPs() = %v, %v; want empty list", ips, err)
	}
	if !svc.ExitInfo().Exists {
		t.Error("empty list should exist")
	}
	if _, err := svc.ExitIPs(ctx); err != nil {
		t.Fatal(err)
	}
	if f.exitCalls.Load() != 1 {
		t.Errorf("empty fresh list refetched: %d calls", f.exitCalls.Load())
	}

	stats, err := svc.Statistics(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalNodes != 0 || stats.LastUpdated == nil {
		t.Errorf("unexpected statistics: %+v", stats)
	}
}
