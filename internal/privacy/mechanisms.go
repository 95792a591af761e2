package privacy

import (
	"math"
	"math/rand"
)

// SampleLaplace draws Laplace(0, scale) noise from the given source using the
// inverse-CDF transform. The scale comes from Controller.AllocateLaplace, so
// every draw is metered.
func SampleLaplace(r *rand.Rand, scale float64) float64 {
	if scale <= 0 {
		return 0
	}
	u := r.Float64() - 0.5
	if u == 0 {
		return 0
	}
	sign := 1.0
	if u < 0 {
		sign = -1.0
	}
	return -scale * sign * math.Log(1-2*math.Abs(u))
}

// SampleGaussian draws N(0, sigma^2) noise from the given source. The sigma
// comes from Controller.AllocateGaussian.
func SampleGaussian(r *rand.Rand, sigma float64) float64 {
	if sigma <= 0 {
		return 0
	}
	return r.NormFloat64() * sigma
}

// Clamp restricts v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
