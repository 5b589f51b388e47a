// ABOUTME: Fixed-capacity rolling sample window
// ABOUTME: Evicts oldest samples on overflow and derives avg/max
package monitor

// rollingWindow keeps the most recent N samples
type rollingWindow struct {
	capacity int
	samples  []float64
}

func newRollingWindow(capacity int) *rollingWindow {
	return &rollingWindow{
		capacity: capacity,
		samples:  make([]float64, 0, capacity),
	}
}

// Push appends a sample, evicting the oldest when full
func (w *rollingWindow) Push(v float64) {
	if len(w.samples) >= w.capacity {
		w.samples = w.samples[1:]
	}
	w.samples = append(w.samples, v)
}

func (w *rollingWindow) Len() int {
	return len(w.samples)
}

// Avg returns the mean of the window, 0 when empty
func (w *rollingWindow) Avg() float64 {
	if len(w.samples) == 0 {
		return 0
	}
	var sum float64
	for _, v := range w.samples {
		sum += v
	}
	return sum / float64(len(w.samples))
}

// Max returns the largest sample in the window, 0 when empty
func (w *rollingWindow) Max() float64 {
	var max float64
	for _, v := range w.samples {
		if v > max {
			max = v
		}
	}
	return max
}

func (w *rollingWindow) Clear() {
	w.samples = w.samples[:0]
}
