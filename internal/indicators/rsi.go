package indicators

// DefaultRSIPeriod is the lookback used when callers pass a non-positive period.
const DefaultRSIPeriod = 14

// NeutralRSI is returned when there is not enough history to say anything.
const NeutralRSI = 50.0

// RSI computes Wilder's Relative Strength Index over closes ordered oldest first.
// With period or fewer closes the result is NeutralRSI.
func RSI(closes []float64, period int) float64 {
	if period <= 0 {
		period = DefaultRSIPeriod
	}
	if len(closes) <= period {
		return NeutralRSI
	}

	p := float64(period)
	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		gain, loss := split(closes[i] - closes[i-1])
		avgGain += gain
		avgLoss += loss
	}
	avgGain /= p
	avgLoss /= p
	if avgLoss == 0 {
		// No losses in the seed window ends the calculation.
		return 100
	}
	rsi := wilder(avgGain, avgLoss)

	for i := period + 1; i < len(closes); i++ {
		gain, loss := split(closes[i] - closes[i-1])
		avgGain = (avgGain*(p-1) + gain) / p
		avgLoss = (avgLoss*(p-1) + loss) / p
		rsi = wilder(avgGain, avgLoss)
	}

	return clamp(rsi, 0, 100)
}

// Closes extracts closing prices in input order.
func Closes[T any](rows []T, close func(T) float64) []float64 {
	out := make([]float64, 0, len(rows))
	for _, r := range rows {
		out = append(out, close(r))
	}
	return out
}

func split(delta float64) (gain, loss float64) {
	switch {
	case delta > 0:
		return delta, 0
	case delta < 0:
		return 0, -delta
	}
	return 0, 0
}

func wilder(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	return 100 - 100/(1+avgGain/avgLoss)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
