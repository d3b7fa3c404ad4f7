package health

// EWMA is an exponentially weighted moving average.
// Not safe for concurrent use; the monitor guards it with its own lock.
type EWMA struct {
	alpha float64
	value float64
}

// NewEWMA creates an EWMA seeded with an initial value
func NewEWMA(alpha, initial float64) *EWMA {
	if alpha <= 0 || alpha > 1 {
		alpha = 1
	}
	return &EWMA{alpha: alpha, value: initial}
}

// Observe folds a sample into the average and returns the new value
func (e *EWMA) Observe(sample float64) float64 {
	e.value = e.alpha*sample + (1-e.alpha)*e.value
	return e.value
}

// Value returns the current average
func (e *EWMA) Value() float64 {
	return e.value
}
