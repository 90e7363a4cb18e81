package frame

import (
	"image"
	"math"
)

// colorMatrix is a row-major 3x4 transform over straight (non-premultiplied)
// RGB in 0..255: each output channel is r*m0 + g*m1 + b*m2 + m3. Alpha is
// carried through unchanged.
type colorMatrix [12]float32

var identityMatrix = colorMatrix{
	1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, 1, 0,
}

var sepiaMatrix = colorMatrix{
	0.393, 0.769, 0.189, 0,
	0.349, 0.686, 0.168, 0,
	0.272, 0.534, 0.131, 0,
}

var invertMatrix = colorMatrix{
	-1, 0, 0, 255,
	0, -1, 0, 255,
	0, 0, -1, 255,
}

func saturationMatrix(factor float32) colorMatrix {
	const lumR, lumG, lumB = 0.2126, 0.7152, 0.0722
	inv := 1 - factor
	return colorMatrix{
		lumR*inv + factor, lumG * inv, lumB * inv, 0,
		lumR * inv, lumG*inv + factor, lumB * inv, 0,
		lumR * inv, lumG * inv, lumB*inv + factor, 0,
	}
}

func contrastMatrix(factor float32) colorMatrix {
	offset := 128 * (1 - factor)
	return colorMatrix{
		factor, 0, 0, offset,
		0, factor, 0, offset,
		0, 0, factor, offset,
	}
}

func hueRotateMatrix(degrees float64) colorMatrix {
	rad := degrees * math.Pi / 180
	c, s := float32(math.Cos(rad)), float32(math.Sin(rad))
	const lumR, lumG, lumB = 0.213, 0.715, 0.072
	return colorMatrix{
		lumR + c*(1-lumR) - s*lumR, lumG - c*lumG - s*lumG, lumB - c*lumB + s*(1-lumB), 0,
		lumR - c*lumR + s*0.143, lumG + c*(1-lumG) + s*0.140, lumB - c*lumB - s*0.283, 0,
		lumR - c*lumR - s*(1-lumR), lumG - c*lumG + s*lumG, lumB + c*(1-lumB) + s*lumB, 0,
	}
}

func (m *colorMatrix) isIdentity() bool {
	return *m == identityMatrix
}

type matrixFilter struct {
	id FilterID
	m  colorMatrix
}

func (f matrixFilter) ID() FilterID { return f.id }

func (f matrixFilter) Apply(src image.Image, dst *image.RGBA) {
	scaleInto(src, dst)
	if f.m.isIdentity() {
		return
	}
	f.m.transform(dst)
}

// transform rewrites dst in place. image.RGBA stores premultiplied color, so
// translucent pixels are unpremultiplied before the matrix and restored after.
func (m *colorMatrix) transform(dst *image.RGBA) {
	b := dst.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := dst.Pix[dst.PixOffset(b.Min.X, y):dst.PixOffset(b.Max.X, y)]
		for i := 0; i+3 < len(row); i += 4 {
			a := float32(row[i+3])
			if a == 0 {
				continue
			}
			r, g, bl := float32(row[i]), float32(row[i+1]), float32(row[i+2])
			if a < 255 {
				r, g, bl = r*255/a, g*255/a, bl*255/a
			}
			nr := m[0]*r + m[1]*g + m[2]*bl + m[3]
			ng := m[4]*r + m[5]*g + m[6]*bl + m[7]
			nb := m[8]*r + m[9]*g + m[10]*bl + m[11]
			if a < 255 {
				k := a / 255
				nr, ng, nb = nr*k, ng*k, nb*k
			}
			row[i] = clampUint8(nr)
			row[i+1] = clampUint8(ng)
			row[i+2] = clampUint8(nb)
		}
	}
}

func clampUint8(v float32) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(v + 0.5)
	}
}
