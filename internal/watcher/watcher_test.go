package watcher

import (
	"context"
	"errors"
	"math/big"
	"reflect"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/Mak300079/MT-watchers/internal/aave"
	"github.com/Mak300079/MT-watchers/internal/model"
	"github.com/Mak300079/MT-watchers/internal/notify"
)

type fetchCall struct {
	from uint64
	to   uint64
}

type fakeChain struct {
	head      uint64
	headErr   error
	logs      map[uint64][]types.Log // keyed by window from-block
	fetchErrs []error                // consumed one per FilterLogs call
	calls     []fetchCall
}

func (f *fakeChain) BlockNumber(_ context.Context) (uint64, error) {
	return f.head, f.headErr
}

func (f *fakeChain) FilterLogs(_ context.Context, from, to uint64, _ common.Address, _ []common.Hash) ([]types.Log, error) {
	f.calls = append(f.calls, fetchCall{from: from, to: to})
	if len(f.fetchErrs) > 0 {
		err := f.fetchErrs[0]
		f.fetchErrs = f.fetchErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return f.logs[from], nil
}

func (f *fakeChain) BlockTimestamp(_ context.Context, _ uint64) (uint64, error) {
	return 1700000000, nil
}

type fakeLabels struct{}

func (fakeLabels) Resolve(_ context.Context, asset common.Address) string {
	return "TOK"
}

type captureNotifier struct {
	lines []string
}

func (c *captureNotifier) Notify(_ context.Context, text string) error {
	c.lines = append(c.lines, text)
	return nil
}

func supplyCapLog(block uint64, oldCap, newCap int64) types.Log {
	data := make([]byte, 64)
	big.NewInt(oldCap).FillBytes(data[:32])
	big.NewInt(newCap).FillBytes(data[32:])
	return types.Log{
		Address: aave.DefaultConfigurator,
		Topics: []common.Hash{
			aave.TopicSupplyCapChanged,
			common.BytesToHash(common.HexToAddress("0x0abc").Bytes()),
		},
		Data:        data,
		BlockNumber: block,
		TxHash:      common.HexToHash("0x1"),
	}
}

func newTestWatcher(chainSource ChainSource, sink *captureNotifier, startBlock uint64) *Watcher {
	return New(Config{
		Contract:      aave.DefaultConfigurator,
		Confirmations: 3,
		MaxSpan:       10,
		StartBlock:    startBlock,
	}, chainSource, fakeLabels{}, []notify.Notifier{sink}, nil)
}

func TestCatchUpUsesMinimumWindows(t *testing.T) {
	chainSource := &fakeChain{head: 128} // safe head 125
	w := newTestWatcher(chainSource, &captureNotifier{}, 100)

	if err := w.start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := w.runOnce(context.Background()); err != nil {
		t.Fatalf("runOnce: %v", err)
	}

	want := []fetchCall{{100, 109}, {110, 119}, {120, 125}}
	if !reflect.DeepEqual(chainSource.calls, want) {
		t.Fatalf("window sequence mismatch: %+v != %+v", chainSource.calls, want)
	}
	if w.cursor != 126 {
		t.Fatalf("cursor should advance to safe head + 1, got %d", w.cursor)
	}
}

func TestTransientFailureKeepsCursor(t *testing.T) {
	chainSource := &fakeChain{
		head:      128,
		fetchErrs: []error{errors.New("read timeout")},
	}
	w := newTestWatcher(chainSource, &captureNotifier{}, 100)

	if err := w.start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := w.runOnce(context.Background()); err == nil {
		t.Fatalf("expected fetch error to surface")
	}
	if w.cursor != 100 {
		t.Fatalf("cursor must not move on failure, got %d", w.cursor)
	}

	// The retry re-requests the identical window.
	if err := w.runOnce(context.Background()); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if chainSource.calls[0] != chainSource.calls[1] {
		t.Fatalf("retry requested a different window: %+v vs %+v", chainSource.calls[0], chainSource.calls[1])
	}
	if w.cursor != 126 {
		t.Fatalf("cursor should advance after recovery, got %d", w.cursor)
	}
}

func TestDecodeFailureDoesNotStallWindow(t *testing.T) {
	bad := supplyCapLog(101, 0, 0)
	bad.Data = bad.Data[:16]

	chainSource := &fakeChain{
		head: 108, // safe head 105, single window
		logs: map[uint64][]types.Log{
			100: {supplyCapLog(100, 1000, 2000), bad, supplyCapLog(102, 5, 7)},
		},
	}
	sink := &captureNotifier{}
	w := newTestWatcher(chainSource, sink, 100)

	if err := w.start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := w.runOnce(context.Background()); err != nil {
		t.Fatalf("runOnce: %v", err)
	}

	if len(sink.lines) != 2 {
		t.Fatalf("expected 2 alerts, got %d: %v", len(sink.lines), sink.lines)
	}
	if w.cursor != 106 {
		t.Fatalf("cursor should pass the window despite the bad log, got %d", w.cursor)
	}
}

func TestUnknownTopicIsSkippedSilently(t *testing.T) {
	odd := supplyCapLog(100, 1, 2)
	odd.Topics[0] = common.HexToHash("0xdead")

	chainSource := &fakeChain{
		head: 108,
		logs: map[uint64][]types.Log{100: {odd}},
	}
	sink := &captureNotifier{}
	w := newTestWatcher(chainSource, sink, 100)

	if err := w.start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := w.runOnce(context.Background()); err != nil {
		t.Fatalf("runOnce: %v", err)
	}

	if len(sink.lines) != 0 {
		t.Fatalf("unknown events must not be notified: %v", sink.lines)
	}
	if w.cursor != 106 {
		t.Fatalf("cursor should still advance, got %d", w.cursor)
	}
}

func TestIdleWhenSafeHeadBehindCursor(t *testing.T) {
	chainSource := &fakeChain{head: 128}
	w := newTestWatcher(chainSource, &captureNotifier{}, 200)

	if err := w.start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := w.runOnce(context.Background()); err != nil {
		t.Fatalf("runOnce: %v", err)
	}
	if len(chainSource.calls) != 0 {
		t.Fatalf("no fetch expected while idle: %+v", chainSource.calls)
	}
	if w.cursor != 200 {
		t.Fatalf("cursor must not move while idle, got %d", w.cursor)
	}
}

func TestStartDerivesCursorFromHead(t *testing.T) {
	chainSource := &fakeChain{head: 128}
	w := newTestWatcher(chainSource, &captureNotifier{}, 0)

	if err := w.start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if w.cursor != 125 {
		t.Fatalf("cursor should be head - confirmations, got %d", w.cursor)
	}
}

func TestRunFailsFastOnStartupError(t *testing.T) {
	chainSource := &fakeChain{headErr: errors.New("dns failure")}
	w := newTestWatcher(chainSource, &captureNotifier{}, 0)

	if err := w.Run(context.Background()); err == nil {
		t.Fatalf("expected startup error to be terminal")
	}
}

func TestRunStopsAtSleepPoint(t *testing.T) {
	chainSource := &fakeChain{head: 10}
	w := newTestWatcher(chainSource, &captureNotifier{}, 8)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("unexpected run error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("watcher did not stop after cancellation")
	}
}

func TestFormatAlert(t *testing.T) {
	event := model.CapChangeEvent{
		Kind:        model.KindSupplyCapChanged,
		BlockNumber: 19000123,
		AssetLabel:  "USDC",
		OldCap:      big.NewInt(1000),
		NewCap:      big.NewInt(2000),
		Timestamp:   time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC),
	}

	got := FormatAlert(event)
	want := "2024-03-01 12:30:00 UTC | Block 19000123 | SupplyCapChanged | Asset USDC | 1000 -> 2000"
	if got != want {
		t.Fatalf("alert line mismatch:\n got %q\nwant %q", got, want)
	}
}
