package frame

import "math"

// RollingMean returns the trailing mean over the given window along the
// date axis. Cells with fewer than window prior observations, or any NaN
// inside the window, are NaN.
func (f *Frame) RollingMean(window int) *Frame {
	out := New(f.dates, f.instruments)
	if window <= 0 {
		return out
	}
	for i := range f.instruments {
		for t := window - 1; t < len(f.values); t++ {
			sum := 0.0
			ok := true
			for k := t - window + 1; k <= t; k++ {
				v := f.values[k][i]
				if math.IsNaN(v) {
					ok = false
					break
				}
				sum += v
			}
			if ok {
				out.values[t][i] = sum / float64(window)
			}
		}
	}
	return out
}
