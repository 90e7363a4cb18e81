package frame

import (
	"image"
	"math"
	"sync"
)

type blurFilter struct {
	sigma float64
}

func (blurFilter) ID() FilterID { return Blur }

// Apply scales src into dst and then runs a separable gaussian pass, first
// horizontally into a float scratch buffer and then vertically back into dst.
// Edge pixels are clamped.
func (f blurFilter) Apply(src image.Image, dst *image.RGBA) {
	scaleInto(src, dst)
	b := dst.Bounds()
	width, height := b.Dx(), b.Dy()
	if width == 0 || height == 0 || f.sigma <= 0 {
		return
	}
	kernel := gaussianKernel(f.sigma)
	half := len(kernel) / 2

	scratch := getScratch(width * height * 4)
	defer putScratch(scratch)

	for y := 0; y < height; y++ {
		row := dst.Pix[dst.PixOffset(b.Min.X, b.Min.Y+y):]
		for x := 0; x < width; x++ {
			var acc [4]float32
			for k, w := range kernel {
				kx := min(max(x+k-half, 0), width-1) * 4
				acc[0] += float32(row[kx]) * w
				acc[1] += float32(row[kx+1]) * w
				acc[2] += float32(row[kx+2]) * w
				acc[3] += float32(row[kx+3]) * w
			}
			copy(scratch[(y*width+x)*4:], acc[:])
		}
	}

	for y := 0; y < height; y++ {
		out := dst.Pix[dst.PixOffset(b.Min.X, b.Min.Y+y):]
		for x := 0; x < width; x++ {
			var acc [4]float32
			for k, w := range kernel {
				idx := (min(max(y+k-half, 0), height-1)*width + x) * 4
				acc[0] += scratch[idx] * w
				acc[1] += scratch[idx+1] * w
				acc[2] += scratch[idx+2] * w
				acc[3] += scratch[idx+3] * w
			}
			o := x * 4
			out[o] = clampUint8(acc[0])
			out[o+1] = clampUint8(acc[1])
			out[o+2] = clampUint8(acc[2])
			out[o+3] = clampUint8(acc[3])
		}
	}
}

var kernels sync.Map

// gaussianKernel returns a normalized kernel spanning three standard
// deviations either side of the centre.
func gaussianKernel(sigma float64) []float32 {
	if cached, ok := kernels.Load(sigma); ok {
		return cached.([]float32)
	}
	half := int(math.Ceil(sigma * 3))
	kernel := make([]float32, half*2+1)
	twoSigmaSq := 2 * sigma * sigma
	var sum float64
	weights := make([]float64, len(kernel))
	for i := range kernel {
		x := float64(i - half)
		weights[i] = math.Exp(-(x * x) / twoSigmaSq)
		sum += weights[i]
	}
	for i, w := range weights {
		kernel[i] = float32(w / sum)
	}
	kernels.Store(sigma, kernel)
	return kernel
}

var scratchPool sync.Pool

func getScratch(n int) []float32 {
	if buf, ok := scratchPool.Get().(*[]float32); ok && cap(*buf) >= n {
		return (*buf)[:n]
	}
	return make([]float32, n)
}

func putScratch(buf []float32) {
	scratchPool.Put(&buf)
}
