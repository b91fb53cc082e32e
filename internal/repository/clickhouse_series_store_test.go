package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
)

func TestForecastRows(t *testing.T) {
	gen := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	res := &models.ForecastResult{
		RunID:           "run-1",
		Key:             "AAPL",
		Predictions:     []float64{10, 11, 12},
		Timestamps:      []time.Time{gen.Add(time.Minute), gen.Add(2 * time.Minute)},
		ConfidenceScore: 0.7,
		ModelWeights:    map[string]float64{"naive": 1},
		GeneratedAt:     gen,
	}

	rows := forecastRows(res)
	require.Len(t, rows, 3)
	assert.Equal(t, uint16(1), rows[0].Step)
	assert.Equal(t, gen.Add(time.Minute), *rows[0].TS)
	assert.Nil(t, rows[2].TS)
	assert.Equal(t, 12.0, rows[2].Value)
	assert.Equal(t, []string{"naive"}, rows[1].Models)
	assert.Equal(t, "AAPL", rows[1].Key)

	assert.Nil(t, forecastRows(nil))
}

func TestLatestCandlesQuery(t *testing.T) {
	for _, tf := range []domrepo.Timeframe{domrepo.TF1s, domrepo.TF1m, domrepo.TF5m} {
		q, err := latestCandlesQuery(tf)
		require.NoError(t, err)
		assert.Contains(t, q, "LIMIT ?")
	}
	_, err := latestCandlesQuery("1h")
	assert.Error(t, err)
}
