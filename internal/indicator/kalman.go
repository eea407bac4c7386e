package indicator

// Kalman is a scalar price smoother with fixed process and measurement
// variance. The zero value is not usable; use NewKalman.
type Kalman struct {
	q, r     float64
	estimate float64
	errCov   float64
}

// Default Kalman variances.
const (
	KalmanProcessVariance     = 1e-5
	KalmanMeasurementVariance = 1e-1
)

// NewKalman returns a filter starting at estimate 0 with error covariance 1.
func NewKalman(processVar, measurementVar float64) *Kalman {
	return &Kalman{q: processVar, r: measurementVar, errCov: 1}
}

// Update folds in one measurement and returns the new estimate.
func (k *Kalman) Update(measurement float64) float64 {
	prioriErr := k.errCov + k.q
	gain := prioriErr / (prioriErr + k.r)
	k.estimate += gain * (measurement - k.estimate)
	k.errCov = (1 - gain) * prioriErr
	return k.estimate
}

// Estimate returns the current estimate.
func (k *Kalman) Estimate() float64 { return k.estimate }

// Reset returns the filter to its initial state.
func (k *Kalman) Reset() {
	k.estimate = 0
	k.errCov = 1
}
