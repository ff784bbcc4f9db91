package sweep

// BatchSize returns the heuristic batch size for n tickers.
// ≤4 → 1, ≤20 → 2, 그 외 n/8 (최소 1)
func BatchSize(n int) int {
	switch {
	case n <= 4:
		return 1
	case n <= 20:
		return 2
	}
	if size := n / 8; size > 1 {
		return size
	}
	return 1
}

// Batch splits tickers into ordered, disjoint sub-slices. size <= 0 uses BatchSize.
// Every ticker appears in exactly one batch, in input order.
func Batch(tickers []string, size int) [][]string {
	if len(tickers) == 0 {
		return [][]string{}
	}
	if size <= 0 {
		size = BatchSize(len(tickers))
	}

	batches := make([][]string, 0, (len(tickers)+size-1)/size)
	for start := 0; start < len(tickers); start += size {
		end := start + size
		if end > len(tickers) {
			end = len(tickers)
		}
		batches = append(batches, tickers[start:end:end])
	}
	return batches
}
