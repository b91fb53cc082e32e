package ensemble

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinCast/internal/services/ensemble/ensembletest"
)

func TestRegistry(t *testing.T) {
	reg, err := NewRegistry(ensembletest.Constant("naive", 1), ensembletest.Constant("drift", 2))
	require.NoError(t, err)

	assert.Equal(t, []string{"drift", "naive"}, reg.Names())
	assert.Equal(t, "naive", reg.All()[0].Name())
	assert.Equal(t, 2, reg.Len())

	m, err := reg.Get("drift")
	require.NoError(t, err)
	assert.Equal(t, "drift", m.Name())

	_, err = reg.Get("arima")
	assert.ErrorIs(t, err, ErrModelNotFound)
}

func TestRegistryRejectsBadInput(t *testing.T) {
	_, err := NewRegistry()
	assert.ErrorIs(t, err, ErrValidation)

	_, err = NewRegistry(ensembletest.Constant("a", 1), ensembletest.Constant("a", 2))
	assert.ErrorIs(t, err, ErrDuplicateModel)

	_, err = NewRegistry(ensembletest.Constant("", 1))
	assert.ErrorIs(t, err, ErrValidation)
}
