package tensor

// MatVec computes dst = w * x. dst must hold at least w.R values and x at
// least w.C.
func MatVec(dst []float32, w *Mat, x []float32) {
	if w.R == 0 || w.C == 0 {
		return
	}
	if len(dst) < w.R || len(x) < w.C {
		panic("matvec shape mismatch")
	}
	for r := 0; r < w.R; r++ {
		dst[r] = Dot(w.Data[r*w.Stride:r*w.Stride+w.C], x[:w.C])
	}
}

// Affine computes dst = w * x + bias.
func Affine(dst []float32, w *Mat, x, bias []float32) {
	MatVec(dst, w, x)
	if bias != nil {
		Add(dst[:w.R], bias[:w.R])
	}
}
