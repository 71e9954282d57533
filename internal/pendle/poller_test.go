package pendle

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Mak300079/MT-watchers/internal/model"
	"github.com/Mak300079/MT-watchers/internal/notify"
)

type fakeLister struct {
	assets []model.Asset
	err    error
	calls  int
}

func (f *fakeLister) FetchAssets(_ context.Context) ([]model.Asset, error) {
	f.calls++
	return f.assets, f.err
}

type fakeStore struct {
	upserted [][]model.Asset
	err      error
}

func (f *fakeStore) UpsertAssets(_ context.Context, assets []model.Asset) error {
	f.upserted = append(f.upserted, assets)
	return f.err
}

type captureNotifier struct {
	lines []string
}

func (c *captureNotifier) Notify(_ context.Context, text string) error {
	c.lines = append(c.lines, text)
	return nil
}

func asset(addr, symbol string) model.Asset {
	return model.Asset{Address: addr, Symbol: symbol, Name: symbol + " Token", ChainID: 1}
}

func TestDetectNew(t *testing.T) {
	prev := keySet([]model.Asset{asset("0xAA", "PT-A"), asset("0xBB", "PT-B")})
	curr := []model.Asset{
		asset("0xaa", "PT-A"), // same key, case-insensitive address
		asset("0xBB", "PT-B"),
		asset("0xCC", "PT-C"),
	}

	fresh := detectNew(prev, curr)
	if len(fresh) != 1 || fresh[0].Address != "0xCC" {
		t.Fatalf("diff mismatch: %+v", fresh)
	}
}

func TestCycleNotifiesAndPersistsBaseline(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "assets.json")
	lister := &fakeLister{assets: []model.Asset{asset("0xAA", "PT-A")}}
	store := &fakeStore{}
	sink := &captureNotifier{}

	p := NewPoller(PollerConfig{}, lister, store, nil, NewStateStore(statePath), []notify.Notifier{sink}, nil)

	if err := p.cycleOnce(context.Background()); err != nil {
		t.Fatalf("first cycle: %v", err)
	}
	if len(sink.lines) != 1 || !strings.Contains(sink.lines[0], "1 new assets") {
		t.Fatalf("expected one listing alert, got %v", sink.lines)
	}
	if len(store.upserted) != 1 {
		t.Fatalf("expected full listing upsert, got %d", len(store.upserted))
	}

	// Unchanged listing: no new alert.
	if err := p.cycleOnce(context.Background()); err != nil {
		t.Fatalf("second cycle: %v", err)
	}
	if len(sink.lines) != 1 {
		t.Fatalf("unchanged listing should not re-alert: %v", sink.lines)
	}

	// A fresh poller resumes the baseline from disk.
	lister.assets = append(lister.assets, asset("0xBB", "PT-B"))
	restarted := NewPoller(PollerConfig{}, lister, store, nil, NewStateStore(statePath), []notify.Notifier{sink}, nil)
	if err := restarted.cycleOnce(context.Background()); err != nil {
		t.Fatalf("restart cycle: %v", err)
	}
	if len(sink.lines) != 2 || !strings.Contains(sink.lines[1], "PT-B") {
		t.Fatalf("restart should only report the listing added meanwhile: %v", sink.lines)
	}
}

func TestCycleSurvivesStoreFailure(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "assets.json")
	lister := &fakeLister{assets: []model.Asset{asset("0xAA", "PT-A")}}
	store := &fakeStore{err: errors.New("connection refused")}

	p := NewPoller(PollerConfig{}, lister, store, nil, NewStateStore(statePath), nil, nil)
	if err := p.cycleOnce(context.Background()); err != nil {
		t.Fatalf("db failure must not fail the cycle: %v", err)
	}
}

func TestCycleSurfacesFetchError(t *testing.T) {
	lister := &fakeLister{err: errors.New("status 502")}
	p := NewPoller(PollerConfig{}, lister, nil, nil, nil, nil, nil)

	if err := p.cycleOnce(context.Background()); err == nil {
		t.Fatalf("expected fetch error to surface")
	}
}
