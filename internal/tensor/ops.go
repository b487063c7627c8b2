package tensor

import "math"

// Add accumulates src into dst.
func Add(dst, src []float32) {
	for i := range dst {
		dst[i] += src[i]
	}
}

func Dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// Softmax turns logits into a distribution in place, accumulating in float64.
func Softmax(x []float32) {
	if len(x) == 0 {
		return
	}
	peak := x[0]
	for _, v := range x[1:] {
		peak = max(peak, v)
	}
	var total float64
	for i, v := range x {
		e := math.Exp(float64(v - peak))
		x[i] = float32(e)
		total += e
	}
	if total == 0 {
		return
	}
	scale := float32(1 / total)
	for i := range x {
		x[i] *= scale
	}
}

// Sigmoid squashes x into (0, 1) in place.
func Sigmoid(x []float32) {
	for i, v := range x {
		x[i] = float32(1 / (1 + math.Exp(float64(-v))))
	}
}

func Tanh(x []float32) {
	for i, v := range x {
		x[i] = float32(math.Tanh(float64(v)))
	}
}

// LeakyReLU scales negative entries by slope in place.
func LeakyReLU(x []float32, slope float32) {
	for i, v := range x {
		if v < 0 {
			x[i] = v * slope
		}
	}
}
