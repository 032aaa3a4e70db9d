package stats

// updateMean applies one step of the incremental (Welford) mean:
// new_avg = old_avg + (value - old_avg) / n, where n already counts value.
func updateMean(mean, value float64, n int) float64 {
	return mean + (value-mean)/float64(n)
}
