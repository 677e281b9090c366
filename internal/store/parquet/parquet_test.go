package parquet

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trading-signalcore/internal/model"
)

func TestWriteReadBars(t *testing.T) {
	t0 := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	var bars []model.Bar
	for i := 4; i >= 0; i-- { // written newest first
		c := 1.1 + float64(i)*0.001
		bars = append(bars, model.Bar{
			OpenTime: t0.Add(time.Duration(i) * time.Minute),
			Open:     c, High: c + 0.0005, Low: c - 0.0005, Close: c + 0.0002,
			Volume: float64(100 + i),
		})
	}
	path := filepath.Join(t.TempDir(), "EURUSD_1m.parquet")
	require.NoError(t, WriteBars(path, bars))

	all, err := ReadBars(path, 0)
	require.NoError(t, err)
	require.Len(t, all, 5)
	for i := 1; i < len(all); i++ {
		assert.True(t, all[i].OpenTime.After(all[i-1].OpenTime), "sorted by open time")
	}
	assert.True(t, all[0].OpenTime.Equal(t0))
	assert.InDelta(t, 1.1002, all[0].Close, 1e-12)
	assert.Equal(t, 100.0, all[0].Volume)

	tail, err := ReadBars(path, 2)
	require.NoError(t, err)
	require.Len(t, tail, 2)
	assert.True(t, tail[1].OpenTime.Equal(t0.Add(4*time.Minute)))
}

func TestReadBars_MissingFile(t *testing.T) {
	_, err := ReadBars(filepath.Join(t.TempDir(), "absent.parquet"), 0)
	assert.Error(t, err)
}
