package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeVolume(t *testing.T) {
	sym := SymbolInfo{LotStep: 1000, MinVolume: 1000, MaxVolume: 100000}
	cases := []struct {
		name string
		in   float64
		want float64
	}{
		{"rounds down to step", 12999, 12000},
		{"exact step", 5000, 5000},
		{"below minimum", 999, 0},
		{"clamped to maximum", 250000, 100000},
		{"zero", 0, 0},
		{"negative", -5000, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, sym.NormalizeVolume(tc.in))
		})
	}
}

func TestNormalizeVolumeFractionalStep(t *testing.T) {
	sym := SymbolInfo{LotStep: 0.01, MinVolume: 0.01}
	assert.Equal(t, 0.29, sym.NormalizeVolume(0.2999))
	assert.Equal(t, 0.0, sym.NormalizeVolume(0.009))
}

func TestPipConversions(t *testing.T) {
	sym := SymbolInfo{PipSize: 0.0001, Spread: 0.0003}
	assert.InDelta(t, 3, sym.SpreadPips(), 1e-9)
	assert.InDelta(t, 25, sym.ToPips(0.0025), 1e-9)
	assert.InDelta(t, 0.0010, sym.PipsToPrice(10), 1e-12)

	var zero SymbolInfo
	assert.Zero(t, zero.SpreadPips())
	assert.Zero(t, zero.ToPips(1))
}

func TestPipsBetween(t *testing.T) {
	sym := SymbolInfo{PipSize: 0.0001}
	for _, ask := range []float64{1.1001, 1.2345, 1.0850, 1.3000} {
		assert.Equal(t, 10.0, sym.PipsBetween(ask+0.0010, ask), "ask %.4f", ask)
		assert.Equal(t, 10.0, sym.PipsBetween(ask-0.0010, ask), "ask %.4f", ask)
	}
	assert.Equal(t, 10.0, sym.ToPips(1.1011-1.1001))
	assert.Zero(t, SymbolInfo{}.PipsBetween(1, 2))
}

func TestExceedsByPips(t *testing.T) {
	assert.True(t, ExceedsByPips(2.0001, 2, 0.0001))
	assert.True(t, ExceedsByPips(3, 2, 0.0001))
	assert.False(t, ExceedsByPips(2.00009, 2, 0.0001))
	assert.False(t, ExceedsByPips(2, 2, 0.0001))
}

func TestSide(t *testing.T) {
	assert.Equal(t, SideSell, SideBuy.Opposite())
	assert.Equal(t, SideBuy, SideSell.Opposite())
	assert.Equal(t, SideNone, SideNone.Opposite())
	assert.False(t, SideNone.Valid())
	assert.Equal(t, SideBuy, ParseSide(SideBuy.String()))
	assert.Equal(t, SideSell, ParseSide("sell"))
	assert.Equal(t, SideNone, ParseSide("long"))
}

func TestBarShape(t *testing.T) {
	up := Bar{Open: 1.0, High: 1.5, Low: 0.8, Close: 1.3}
	assert.True(t, up.IsBullish())
	assert.False(t, up.IsBearish())
	assert.InDelta(t, 0.3, up.Body(), 1e-12)
	assert.InDelta(t, 0.7, up.Range(), 1e-12)

	doji := Bar{Open: 1, Close: 1}
	assert.False(t, doji.IsBullish())
	assert.False(t, doji.IsBearish())
}

func TestDecodeEvent(t *testing.T) {
	ts := time.Date(2024, 3, 4, 9, 30, 0, 0, time.UTC)
	ev := BarEvent("EURUSD", Bar{OpenTime: ts, Open: 1, High: 2, Low: 0.5, Close: 1.5})

	got, err := DecodeEvent(ev.JSON())
	require.NoError(t, err)
	assert.Equal(t, EventBar, got.Kind)
	assert.Equal(t, ts, got.TS())
	assert.Equal(t, 1.5, got.Bar.Close)

	q, err := DecodeEvent([]byte(`{"type":"quote","symbol":"EURUSD","quote":{"bid":1.1,"ask":1.1001}}`))
	require.NoError(t, err)
	assert.Equal(t, 1.1, q.Quote.Bid)

	for _, bad := range []string{
		`not json`,
		`{"type":"bar"}`,
		`{"type":"quote"}`,
		`{"type":"tick","quote":{"bid":1}}`,
	} {
		_, err := DecodeEvent([]byte(bad))
		assert.Error(t, err, bad)
	}
}
