package clock

import (
	"testing"
	"time"
)

func TestManualAdvanceMovesNowAndTicks(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clk := NewManual(start)
	ticker := clk.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	got := make(chan time.Time, 1)
	go func() { got <- <-ticker.C() }()

	clk.Advance(time.Second)
	if want := start.Add(time.Second); !clk.Now().Equal(want) {
		t.Fatalf("now = %v, want %v", clk.Now(), want)
	}
	select {
	case tick := <-got:
		if !tick.Equal(start.Add(time.Second)) {
			t.Fatalf("tick = %v, want %v", tick, start.Add(time.Second))
		}
	case <-time.After(time.Second):
		t.Fatalf("tick not delivered")
	}
}

func TestManualAdvanceSkipsStoppedTickers(t *testing.T) {
	clk := NewManual(time.Unix(0, 0))
	ticker := clk.NewTicker(time.Millisecond)
	ticker.Stop()

	done := make(chan struct{})
	go func() {
		clk.Advance(time.Second)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("advance blocked on a stopped ticker")
	}
	if n := clk.Tickers(); n != 0 {
		t.Fatalf("live tickers = %d, want 0", n)
	}
}
