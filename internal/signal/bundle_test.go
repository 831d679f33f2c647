package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrecipDaily(t *testing.T) {
	t.Parallel()

	b := Bundle{PrecipTotal: Float(300), ValidDays: 30}
	daily := b.PrecipDaily()
	require.NotNil(t, daily)
	assert.InDelta(t, 10.0, *daily, 1e-9)
}

func TestPrecipDaily_Absent(t *testing.T) {
	t.Parallel()

	assert.Nil(t, Bundle{}.PrecipDaily())
	assert.Nil(t, Bundle{PrecipTotal: Float(300)}.PrecipDaily())
	assert.Nil(t, Bundle{ValidDays: 10}.PrecipDaily())
}

func TestAbsenceIsDistinctFromZero(t *testing.T) {
	t.Parallel()

	var b Bundle
	assert.Nil(t, b.NDVI)

	b.NDVI = Float(0)
	require.NotNil(t, b.NDVI)
	assert.Zero(t, *b.NDVI)
}
