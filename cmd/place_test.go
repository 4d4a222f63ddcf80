package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fieldcast/core/container"
)

func TestCandidates(t *testing.T) {
	c, err := candidates(container.NewIndex([2]string{"x1", "x2"}, []float64{0.1, 0.2}, []float64{0.3, 0.4}))
	require.NoError(t, err)
	r, n := c.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 2, n)
	assert.Equal(t, 0.4, c.At(1, 1))

	g, err := candidates(container.NewGrid([]float64{0, 1}, []float64{0, 1, 2}))
	require.NoError(t, err)
	_, n = g.Dims()
	assert.Equal(t, 6, n)

	_, err = candidates(nil)
	assert.Error(t, err)
}
