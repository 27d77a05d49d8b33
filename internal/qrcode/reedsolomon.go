package qrcode

// GF(256) arithmetic over the QR code's primitive polynomial x^8+x^4+x^3+x^2+1 (0x11D).
var (
	gfExp [512]byte
	gfLog [256]byte
)

func init() {
	x := 1
	for i := 0; i < 255; i++ {
		gfExp[i] = byte(x)
		gfLog[x] = byte(i)
		x <<= 1
		if x&0x100 != 0 {
			x ^= 0x11D
		}
	}
	for i := 255; i < 512; i++ {
		gfExp[i] = gfExp[i-255]
	}
}

func gfMul(a, b byte) byte {
	if a == 0 || b == 0 {
		return 0
	}
	return gfExp[int(gfLog[a])+int(gfLog[b])]
}

// generatorPoly returns the Reed-Solomon generator polynomial of the given
// degree, coefficients highest-order first.
func generatorPoly(degree int) []byte {
	poly := []byte{1}
	for i := 0; i < degree; i++ {
		poly = polyMulMonomial(poly, gfExp[i])
	}
	return poly
}

// polyMulMonomial multiplies poly by (x - gfExp[i]), i.e. (x + root) in GF(2^8).
func polyMulMonomial(poly []byte, root byte) []byte {
	result := make([]byte, len(poly)+1)
	for i, coef := range poly {
		result[i] ^= gfMul(coef, root)
		result[i+1] ^= coef
	}
	return result
}

// rsEncode computes eccCount Reed-Solomon error-correction codewords for data.
func rsEncode(data []byte, eccCount int) []byte {
	generator := generatorPoly(eccCount)

	remainder := make([]byte, len(data)+eccCount)
	copy(remainder, data)

	for i := 0; i < len(data); i++ {
		coef := remainder[i]
		if coef == 0 {
			continue
		}
		for j, g := range generator {
			remainder[i+j] ^= gfMul(g, coef)
		}
	}

	return remainder[len(data):]
}
