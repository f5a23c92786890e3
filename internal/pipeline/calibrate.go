package pipeline

import (
	"math"

	"github.com/OmniChip/bandgame/internal/band"
	"github.com/OmniChip/bandgame/internal/device"
)

// Offset is a zero offset in raw counts, subtracted from every sample once
// calibration completes.
type Offset struct {
	Accel band.Raw3
	Gyro  band.Raw3
}

// Calibrator consumes raw samples of a band at rest until it can produce a
// zero offset.
type Calibrator interface {
	// Process feeds one sample and reports whether calibration is complete.
	Process(r device.Reading) bool
	// Offset returns the computed zero offset. Valid once Process returned true.
	Offset() Offset
}

// averagingCalibrator averages a fixed number of samples. The gyro offset is
// the mean angular rate; the accel offset removes the difference between
// the mean acceleration and a 1g vector pointing the same way.
type averagingCalibrator struct {
	want  int
	n     int
	accel [3]int64
	gyro  [3]int64
}

// NewAveragingCalibrator returns a calibrator averaging the given number of
// samples (at least one).
func NewAveragingCalibrator(samples int) Calibrator {
	if samples < 1 {
		samples = 1
	}
	return &averagingCalibrator{want: samples}
}

func (c *averagingCalibrator) Process(r device.Reading) bool {
	if c.n >= c.want {
		return true
	}
	for i := 0; i < 3; i++ {
		c.accel[i] += int64(r.Accel[i])
		c.gyro[i] += int64(r.Gyro[i])
	}
	c.n++
	return c.n >= c.want
}

func (c *averagingCalibrator) Offset() Offset {
	if c.n == 0 {
		return Offset{}
	}

	var mean [3]float64
	var off Offset
	for i := 0; i < 3; i++ {
		mean[i] = float64(c.accel[i]) / float64(c.n)
		off.Gyro[i] = int32(math.Round(float64(c.gyro[i]) / float64(c.n)))
	}

	norm := math.Sqrt(mean[0]*mean[0] + mean[1]*mean[1] + mean[2]*mean[2])
	if norm == 0 {
		return off
	}
	scale := band.AccelDivisor / norm
	for i := 0; i < 3; i++ {
		off.Accel[i] = int32(math.Round(mean[i] - mean[i]*scale))
	}
	return off
}
