package agg

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAvgIgnoresNaN(t *testing.T) {
	assert.Equal(t, 2.0, Avg([]float64{1, 3, math.NaN()}))
	assert.True(t, math.IsNaN(Avg([]float64{math.NaN(), math.NaN()})))
}

func TestSumMinMaxLast(t *testing.T) {
	w := []float64{math.NaN(), 1, 5, math.NaN(), 3}
	assert.Equal(t, 9.0, Sum(w))
	assert.Equal(t, 1.0, Min(w))
	assert.Equal(t, 5.0, Max(w))
	assert.Equal(t, 3.0, Last(w))
}

func TestParseRulesAndDefault(t *testing.T) {
	r, err := Parse(`^hisser\.=sum,^stats\.counters\.=last:avg`)
	require.NoError(t, err)

	assert.Equal(t, 9.0, r.MethodFor("hisser.flushed-points")([]float64{1, 3, 5}))
	assert.Equal(t, 3.0, r.MethodFor("stats.counters.foo")([]float64{1, 3, math.NaN()}))
	assert.Equal(t, 2.0, r.MethodFor("some.other.metric")([]float64{1, 3}))
}

func TestParseRejectsUnknownMethod(t *testing.T) {
	_, err := Parse("^x=bogus:avg")
	require.Error(t, err)
}
