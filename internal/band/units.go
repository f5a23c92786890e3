package band

import "math"

// Conversion divisors. They must match the band firmware exactly.
const (
	// AccelDivisor converts raw acceleration counts to g.
	AccelDivisor = 1_000_000.0 / 488
	// GyroDivisor converts raw angular-rate counts to deg/s.
	GyroDivisor = 360_000.0 / 70
)

// Vec3 is a three-axis vector in physical units.
type Vec3 [3]float64

// Norm returns the Euclidean length of v.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

// Raw3 is a three-axis vector of raw sensor counts.
type Raw3 [3]int32

// Sub returns r - o, component-wise.
func (r Raw3) Sub(o Raw3) Raw3 {
	return Raw3{r[0] - o[0], r[1] - o[1], r[2] - o[2]}
}

// AccelFromRaw converts raw acceleration counts to g.
func AccelFromRaw(r Raw3) Vec3 {
	return Vec3{
		float64(r[0]) / AccelDivisor,
		float64(r[1]) / AccelDivisor,
		float64(r[2]) / AccelDivisor,
	}
}

// GyroFromRaw converts raw angular-rate counts to deg/s.
func GyroFromRaw(r Raw3) Vec3 {
	return Vec3{
		float64(r[0]) / GyroDivisor,
		float64(r[1]) / GyroDivisor,
		float64(r[2]) / GyroDivisor,
	}
}
