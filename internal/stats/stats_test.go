package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPercentile(t *testing.T) {
	tests := []struct {
		name    string
		samples []float64
		p       float64
		want    float64
	}{
		{"odd sample median", []float64{10, 20, 30}, 50, 20},
		{"odd sample max rank", []float64{10, 20, 30}, 100, 30},
		{"odd sample min rank", []float64{10, 20, 30}, 0, 10},
		{"even sample interpolates", []float64{10, 20, 30, 40}, 50, 25},
		{"p75 of four", []float64{10, 20, 30, 40}, 75, 32.5},
		{"single sample", []float64{42}, 99, 42},
		{"empty", nil, 95, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Percentile(tt.samples, tt.p), 1e-9)
		})
	}
}

func TestAggregate(t *testing.T) {
	input := []float64{30, 10, 40, 20}
	s := Aggregate(input)

	assert.Equal(t, 4, s.Count)
	assert.Equal(t, 25.0, s.Avg)
	assert.Equal(t, 10.0, s.Min)
	assert.Equal(t, 40.0, s.Max)
	assert.Equal(t, 25.0, s.P50)
	assert.InDelta(t, 38.5, s.P95, 1e-9)

	// caller's slice keeps its order
	assert.Equal(t, []float64{30, 10, 40, 20}, input)
}

func TestAggregateEmpty(t *testing.T) {
	assert.Equal(t, Summary{}, Aggregate(nil))
	assert.Equal(t, Summary{}, Aggregate([]float64{}))
}

func TestAggregateSingleSample(t *testing.T) {
	s := Aggregate([]float64{7.5})

	assert.Equal(t, 1, s.Count)
	for _, v := range []float64{s.Avg, s.Min, s.Max, s.P50, s.P75, s.P90, s.P95, s.P99} {
		assert.Equal(t, 7.5, v)
	}
}

func TestSummaryPercentileLookup(t *testing.T) {
	s := Summary{P50: 1, P75: 2, P90: 3, P95: 4, P99: 5}

	v, ok := s.Percentile(95)
	assert.True(t, ok)
	assert.Equal(t, 4.0, v)

	_, ok = s.Percentile(80)
	assert.False(t, ok)
}
