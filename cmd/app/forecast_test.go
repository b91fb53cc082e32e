package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinCast/pkg/config"
)

func rampCSV(n int, header bool) string {
	var b strings.Builder
	if header {
		b.WriteString("timestamp,value\n")
	}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "%s,%d\n", start.Add(time.Duration(i)*time.Minute).Format(time.RFC3339), i+1)
	}
	return b.String()
}

func TestReadSeries(t *testing.T) {
	data, err := readSeries(strings.NewReader(rampCSV(5, true)))
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3, 4, 5}, data.Values)
	assert.Len(t, data.Timestamps, 5)
	assert.Equal(t, "csv", data.Metadata["source"])
}

func TestReadSeriesErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"bad value after header", "ts,value\n2024-01-01T00:00:00Z,1\n2024-01-01T00:01:00Z,x\n"},
		{"bad timestamp", "yesterday,1\n2024-01-01T00:01:00Z,2\n"},
		{"too short", "2024-01-01T00:00:00Z,1\n"},
		{"not increasing", "2024-01-01T00:01:00Z,1\n2024-01-01T00:00:00Z,2\n"},
		{"wrong column count", "2024-01-01T00:00:00Z,1,2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := readSeries(strings.NewReader(tt.in))
			assert.Error(t, err)
		})
	}
}

func TestRunForecastOnRamp(t *testing.T) {
	data, err := readSeries(strings.NewReader(rampCSV(20, false)))
	require.NoError(t, err)

	out, err := runForecast(context.Background(), config.Default(), "ramp", data, 3)
	require.NoError(t, err)
	require.NotNil(t, out.Training)
	require.NotNil(t, out.Forecast)

	assert.Equal(t, "ramp", out.Forecast.Key)
	require.Len(t, out.Forecast.Predictions, 3)
	assert.InDelta(t, 21, out.Forecast.Predictions[0], 0.01)
	assert.InDelta(t, 23, out.Forecast.Predictions[2], 0.01)
	assert.InDelta(t, 1, sum(out.Training.ModelWeights), 1e-9)
}

func TestForecastCommand(t *testing.T) {
	cmd := forecastCMD()
	var stdout bytes.Buffer
	cmd.SetIn(strings.NewReader(rampCSV(12, true)))
	cmd.SetOut(&stdout)
	cmd.SetArgs([]string{"--horizon", "2", "--key", "stdin"})
	require.NoError(t, cmd.Execute())

	var out forecastOutput
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &out))
	require.NotNil(t, out.Forecast)
	assert.Equal(t, 2, out.Forecast.Horizon)
	assert.Equal(t, "stdin", out.Forecast.Key)
}

func sum(m map[string]float64) float64 {
	var s float64
	for _, v := range m {
		s += v
	}
	return s
}
