package indicator

import (
	"math"
	"testing"

	talib "github.com/markcheno/go-talib"

	"trading-signalcore/internal/model"
)

// ────────────────────────────────────────────────────────────
// Helper
// ────────────────────────────────────────────────────────────

func closeBar(c float64) model.Bar {
	return model.Bar{Open: c, High: c + 0.0005, Low: c - 0.0005, Close: c}
}

func assertClose(t *testing.T, label string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s: got %.6f, want %.6f (tol=%.6f, diff=%.6f)", label, got, want, tol, math.Abs(got-want))
	}
}

// wave is a deterministic non-trivial close sequence.
func wave(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 1.1 + 0.01*math.Sin(float64(i)/3) + 0.0001*float64(i%7)
	}
	return out
}

// ────────────────────────────────────────────────────────────
// SMA Correctness
// ────────────────────────────────────────────────────────────

func TestSMA_Correctness_Period3(t *testing.T) {
	// Closes: 100, 102, 104, 103, 105
	// SMA after bar 3: (100+102+104)/3 = 102
	// SMA after bar 4: (102+104+103)/3 = 103
	// SMA after bar 5: (104+103+105)/3 = 104
	sma := NewSMA(3)
	prices := []float64{100, 102, 104, 103, 105}
	expected := []float64{0, 0, 102.0, 103.0, 104.0}
	ready := []bool{false, false, true, true, true}

	for i, p := range prices {
		sma.Update(closeBar(p))
		if sma.Ready() != ready[i] {
			t.Errorf("bar %d: Ready()=%v, want %v", i, sma.Ready(), ready[i])
		}
		if ready[i] {
			assertClose(t, "SMA(3)", sma.Value(), expected[i], 1e-9)
		}
	}
}

func TestSMA_Name(t *testing.T) {
	if got := NewSMA(14).Name(); got != "SMA(14)" {
		t.Errorf("Name() = %q, want SMA(14)", got)
	}
}

func TestSMA_MatchesTalib(t *testing.T) {
	closes := wave(300)
	want := talib.Sma(closes, 14)

	sma := NewSMA(14)
	for i, c := range closes {
		sma.Add(c)
		if i >= 13 {
			assertClose(t, "SMA(14) vs talib", sma.Value(), want[i], 1e-9)
		}
	}
}

func TestSMA_ResumKeepsPrecision(t *testing.T) {
	// Long run crossing several resum boundaries must stay exact.
	sma := NewSMA(5)
	var last []float64
	for i := 0; i < 5000; i++ {
		x := 1.0 + float64(i%13)*0.0001
		sma.Add(x)
		last = append(last, x)
		if len(last) > 5 {
			last = last[1:]
		}
	}
	sum := 0.0
	for _, v := range last {
		sum += v
	}
	assertClose(t, "SMA after 5000 updates", sma.Value(), sum/5, 1e-12)
}

// ────────────────────────────────────────────────────────────
// EMA Correctness
// ────────────────────────────────────────────────────────────

func TestEMA_SeededBySMA(t *testing.T) {
	// EMA(3): k = 0.5
	// seed after 3 bars: (2+4+6)/3 = 4
	// bar 4 (8): 8*0.5 + 4*0.5 = 6
	// bar 5 (2): 2*0.5 + 6*0.5 = 4
	ema := NewEMA(3)
	for _, p := range []float64{2, 4} {
		ema.Add(p)
		if ema.Ready() {
			t.Fatal("EMA ready before period values")
		}
	}
	ema.Add(6)
	assertClose(t, "EMA seed", ema.Value(), 4, 1e-12)
	ema.Add(8)
	assertClose(t, "EMA bar 4", ema.Value(), 6, 1e-12)
	ema.Add(2)
	assertClose(t, "EMA bar 5", ema.Value(), 4, 1e-12)
}

func TestEMA_MatchesTalib(t *testing.T) {
	closes := wave(300)
	want := talib.Ema(closes, 10)

	ema := NewEMA(10)
	for i, c := range closes {
		ema.Add(c)
		if i >= 9 {
			assertClose(t, "EMA(10) vs talib", ema.Value(), want[i], 1e-9)
		}
	}
}

func TestEMA_ConstantPriceConverges(t *testing.T) {
	ema := NewEMA(20)
	for i := 0; i < 200; i++ {
		ema.Add(1.2345)
	}
	assertClose(t, "EMA constant", ema.Value(), 1.2345, 1e-12)
}

// ────────────────────────────────────────────────────────────
// SMMA / ATR
// ────────────────────────────────────────────────────────────

func TestSMMA_Wilder(t *testing.T) {
	// SMMA(2): seed (1+3)/2 = 2, then (2*1 + 6)/2 = 4
	s := NewSMMA(2)
	s.Add(1)
	s.Add(3)
	assertClose(t, "SMMA seed", s.Value(), 2, 1e-12)
	s.Add(6)
	assertClose(t, "SMMA step", s.Value(), 4, 1e-12)
}

func TestATR_TrueRange(t *testing.T) {
	atr, err := NewATR(2, MASimple)
	if err != nil {
		t.Fatal(err)
	}
	// bar 1: TR = H-L = 0.0010
	atr.Update(model.Bar{High: 1.1010, Low: 1.1000, Close: 1.1005})
	if atr.Ready() {
		t.Fatal("ATR(2) ready after one bar")
	}
	// bar 2 gaps up: TR = max(0.0005, |1.1030-1.1005|, |1.1025-1.1005|) = 0.0025
	atr.Update(model.Bar{High: 1.1030, Low: 1.1025, Close: 1.1028})
	assertClose(t, "ATR(2)", atr.Value(), (0.0010+0.0025)/2, 1e-12)
	if atr.Name() != "ATR(2,SMA)" {
		t.Errorf("Name() = %q", atr.Name())
	}
}

func TestATR_ConstantRange(t *testing.T) {
	atr, err := NewATR(14, MAExponential)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 50; i++ {
		atr.Update(model.Bar{High: 1.1020, Low: 1.1000, Close: 1.1010})
	}
	assertClose(t, "ATR constant", atr.Value(), 0.0020, 1e-12)
}

// ────────────────────────────────────────────────────────────
// Parabolic SAR
// ────────────────────────────────────────────────────────────

func TestParabolicSAR_UptrendThenReversal(t *testing.T) {
	sar, err := NewParabolicSAR(0.02, 0.2)
	if err != nil {
		t.Fatal(err)
	}
	bars := []model.Bar{
		{High: 1.1, Low: 1.0, Close: 1.05},
		{High: 1.2, Low: 1.1, Close: 1.15},
		{High: 1.3, Low: 1.2, Close: 1.25},
		{High: 1.4, Low: 1.3, Close: 1.35},
		{High: 1.35, Low: 0.9, Close: 0.95},
	}

	sar.Update(bars[0])
	if sar.Ready() || sar.Trend() != model.SideNone {
		t.Fatal("SAR ready after one bar")
	}

	sar.Update(bars[1])
	assertClose(t, "SAR bar 2", sar.Value(), 1.0, 1e-12)
	if sar.Trend() != model.SideBuy {
		t.Fatalf("trend = %v, want BUY", sar.Trend())
	}

	// 1.0 + 0.02*(1.2-1.0) = 1.004, clamped to the prior lows (1.0)
	sar.Update(bars[2])
	assertClose(t, "SAR bar 3", sar.Value(), 1.0, 1e-12)
	assertClose(t, "AF after new high", sar.AccelerationFactor(), 0.04, 1e-12)

	// 1.0 + 0.04*(1.3-1.0) = 1.012
	sar.Update(bars[3])
	assertClose(t, "SAR bar 4", sar.Value(), 1.012, 1e-12)

	// low pierces SAR: flips short at the prior extreme
	sar.Update(bars[4])
	assertClose(t, "SAR bar 5", sar.Value(), 1.4, 1e-12)
	if sar.Trend() != model.SideSell {
		t.Fatalf("trend = %v, want SELL", sar.Trend())
	}
	assertClose(t, "AF reset", sar.AccelerationFactor(), 0.02, 1e-12)
}

func TestParabolicSAR_AFCapped(t *testing.T) {
	sar, err := NewParabolicSAR(0.02, 0.2)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 40; i++ {
		p := 1.0 + float64(i)*0.01
		sar.Update(model.Bar{High: p + 0.005, Low: p - 0.005, Close: p})
	}
	assertClose(t, "AF cap", sar.AccelerationFactor(), 0.2, 1e-12)
	if sar.Value() >= 1.39 {
		t.Errorf("SAR %.4f should trail below price", sar.Value())
	}
}

func TestParabolicSAR_InvalidSettings(t *testing.T) {
	for _, c := range []struct{ step, max float64 }{{0, 0.2}, {0.3, 0.2}, {-0.02, 0.2}} {
		if _, err := NewParabolicSAR(c.step, c.max); err == nil {
			t.Errorf("step %.2f max %.2f: expected error", c.step, c.max)
		}
	}
}
