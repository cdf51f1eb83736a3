package hotspot

import (
	"math"
	"sort"

	"tracelens/internal/models"
)

const (
	// MaxBottlenecks caps every finding list.
	MaxBottlenecks = 10

	varianceMinSamples    = 5
	varianceThreshold     = 0.5
	degradationMinSamples = 10
	trendWindow           = 5
	spikeMinSamples       = 5
	spikeFactor           = 3.0
)

type opGroup struct {
	operation string
	spans     []models.Span
	total     float64
	min       float64
	max       float64
}

func (g *opGroup) avg() float64 {
	return g.total / float64(len(g.spans))
}

// groupSpans buckets valid spans by normalized operation in first-seen order.
func groupSpans(spans []models.Span) []*opGroup {
	idx := make(map[string]*opGroup)
	groups := make([]*opGroup, 0)
	for _, s := range spans {
		if !s.Valid() {
			continue
		}
		key := Normalize(s.Operation)
		g, ok := idx[key]
		if !ok {
			g = &opGroup{operation: key, min: s.DurationMs, max: s.DurationMs}
			idx[key] = g
			groups = append(groups, g)
		}
		g.spans = append(g.spans, s)
		g.total += s.DurationMs
		g.min = math.Min(g.min, s.DurationMs)
		g.max = math.Max(g.max, s.DurationMs)
	}
	return groups
}

// FindBottlenecks runs every bottleneck pass over one span set.
func FindBottlenecks(spans []models.Span) models.Bottlenecks {
	groups := groupSpans(spans)
	return models.Bottlenecks{
		HighVariance:         highVariance(groups),
		DegradingPerformance: degrading(groups),
		PerformanceSpikes:    spikes(groups),
		ExpensiveCallChains:  expensiveChains(spans),
		TotalTimeConsumers:   timeConsumers(groups),
	}
}

// highVariance reports operations whose coefficient of variation exceeds 0.5.
func highVariance(groups []*opGroup) []models.VarianceFinding {
	findings := make([]models.VarianceFinding, 0)
	for _, g := range groups {
		if len(g.spans) < varianceMinSamples {
			continue
		}
		mean := g.avg()
		if mean <= 0 {
			continue
		}
		var sq float64
		for _, s := range g.spans {
			sq += (s.DurationMs - mean) * (s.DurationMs - mean)
		}
		sd := math.Sqrt(sq / float64(len(g.spans)))
		cv := sd / mean
		if cv <= varianceThreshold {
			continue
		}
		findings = append(findings, models.VarianceFinding{
			Operation:              g.operation,
			AvgDurationMs:          mean,
			StdDeviationMs:         sd,
			CoefficientOfVariation: cv,
			MinDurationMs:          g.min,
			MaxDurationMs:          g.max,
			SampleCount:            len(g.spans),
		})
	}
	sort.SliceStable(findings, func(i, j int) bool {
		return findings[i].CoefficientOfVariation > findings[j].CoefficientOfVariation
	})
	return capped(findings)
}

// degrading fits a least-squares line through durations in time order and
// reports operations with a positive slope.
func degrading(groups []*opGroup) []models.DegradationFinding {
	findings := make([]models.DegradationFinding, 0)
	for _, g := range groups {
		n := len(g.spans)
		if n < degradationMinSamples {
			continue
		}
		ordered := make([]models.Span, n)
		copy(ordered, g.spans)
		sort.SliceStable(ordered, func(i, j int) bool {
			return ordered[i].Timestamp.Before(ordered[j].Timestamp)
		})

		var sumX, sumY, sumXY, sumX2 float64
		for i, s := range ordered {
			x := float64(i)
			sumX += x
			sumY += s.DurationMs
			sumXY += x * s.DurationMs
			sumX2 += x * x
		}
		fn := float64(n)
		slope := (fn*sumXY - sumX*sumY) / (fn*sumX2 - sumX*sumX)
		if slope <= 0 {
			continue
		}

		findings = append(findings, models.DegradationFinding{
			Operation:       g.operation,
			DegradationRate: slope,
			StartAvgMs:      meanDuration(ordered[:trendWindow]),
			EndAvgMs:        meanDuration(ordered[n-trendWindow:]),
			SampleCount:     n,
		})
	}
	sort.SliceStable(findings, func(i, j int) bool {
		return findings[i].DegradationRate > findings[j].DegradationRate
	})
	return capped(findings)
}

// spikes reports operations with calls above three times their average.
func spikes(groups []*opGroup) []models.SpikeFinding {
	findings := make([]models.SpikeFinding, 0)
	for _, g := range groups {
		if len(g.spans) < spikeMinSamples {
			continue
		}
		avg := g.avg()
		if avg <= 0 {
			continue
		}
		count := 0
		var worst float64
		for _, s := range g.spans {
			if s.DurationMs > avg*spikeFactor {
				count++
				worst = math.Max(worst, s.DurationMs)
			}
		}
		if count == 0 {
			continue
		}
		findings = append(findings, models.SpikeFinding{
			Operation:     g.operation,
			AvgDurationMs: avg,
			SpikeCount:    count,
			MaxSpikeMs:    worst,
			SpikeRatio:    worst / avg,
		})
	}
	sort.SliceStable(findings, func(i, j int) bool {
		return findings[i].SpikeCount > findings[j].SpikeCount
	})
	return capped(findings)
}

// expensiveChains sums span time per trace. Single-span traces are skipped.
func expensiveChains(spans []models.Span) []models.ChainCost {
	idx := make(map[string]int)
	chains := make([]models.ChainCost, 0)
	for _, s := range spans {
		if s.TraceID == "" || !s.Valid() {
			continue
		}
		i, ok := idx[s.TraceID]
		if !ok {
			i = len(chains)
			idx[s.TraceID] = i
			chains = append(chains, models.ChainCost{TraceID: s.TraceID})
		}
		c := &chains[i]
		c.TotalDurationMs += s.DurationMs
		c.SpanCount++
		c.Operations = append(c.Operations, s.Operation)
		if c.RootOperation == "" && s.IsRoot() {
			c.RootOperation = s.Operation
		}
	}

	multi := chains[:0]
	for _, c := range chains {
		if c.SpanCount >= 2 {
			multi = append(multi, c)
		}
	}
	sort.SliceStable(multi, func(i, j int) bool {
		return multi[i].TotalDurationMs > multi[j].TotalDurationMs
	})
	return capped(multi)
}

func timeConsumers(groups []*opGroup) []models.TimeConsumer {
	consumers := make([]models.TimeConsumer, 0, len(groups))
	for _, g := range groups {
		consumers = append(consumers, models.TimeConsumer{
			Operation:     g.operation,
			TotalTimeMs:   g.total,
			AvgDurationMs: g.avg(),
			CallCount:     len(g.spans),
			MaxDurationMs: g.max,
		})
	}
	sort.SliceStable(consumers, func(i, j int) bool {
		return consumers[i].TotalTimeMs > consumers[j].TotalTimeMs
	})
	return capped(consumers)
}

func meanDuration(spans []models.Span) float64 {
	if len(spans) == 0 {
		return 0
	}
	var total float64
	for _, s := range spans {
		total += s.DurationMs
	}
	return total / float64(len(spans))
}

func capped[T any](items []T) []T {
	if len(items) > MaxBottlenecks {
		return items[:MaxBottlenecks]
	}
	return items
}
