package track

import "math"

// WrapPhi wraps an azimuth into [-pi, pi).
func WrapPhi(phi float64) float64 {
	w := math.Mod(phi+math.Pi, 2*math.Pi)
	if w < 0 {
		w += 2 * math.Pi
	}
	return w - math.Pi
}

// NormalizePhiTheta folds a polar angle back into [0, pi] and keeps
// the direction intact by flipping the azimuth when theta crosses a
// pole.
func NormalizePhiTheta(phi, theta float64) (float64, float64) {
	t := math.Mod(theta, 2*math.Pi)
	if t < 0 {
		t += 2 * math.Pi
	}
	if t > math.Pi {
		t = 2*math.Pi - t
		phi += math.Pi
	}
	return WrapPhi(phi), t
}

// CorrectBound re-ranges the angular bound parameters after a
// numerical perturbation. It is applied whenever bound parameters are
// written.
func CorrectBound(v *BoundVector) {
	v[BoundPhi], v[BoundTheta] = NormalizePhiTheta(v[BoundPhi], v[BoundTheta])
}
