// Package imagesim provides the raw similarity primitives used for drift
// scoring: perceptual hashing, structural similarity and embedding cosine.
// All functions are pure; normalization into drift space happens upstream.
package imagesim

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"math"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

var ErrUndecodable = errors.New("image data not decodable")

// Decode parses raw encoded image bytes (png, jpeg or gif).
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, ErrUndecodable
	}
	return img, nil
}

// HashBits is the size of a perceptual hash in bits.
const HashBits = 64

// PerceptualHash computes a 64-bit DCT-based perceptual hash: the image is
// reduced to 32x32 grayscale, transformed, and the low-frequency 8x8 block
// (DC term excluded from the median) is thresholded against its median.
func PerceptualHash(img image.Image) uint64 {
	gray := resizeGray(img, 32, 32)

	freq := dct2d(gray)

	// Median over the low-frequency block, skipping the DC coefficient.
	low := make([]float64, 0, 64)
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			if x == 0 && y == 0 {
				continue
			}
			low = append(low, freq[y][x])
		}
	}
	median := medianOf(low)

	var hash uint64
	bit := 0
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			if freq[y][x] > median {
				hash |= 1 << uint(bit)
			}
			bit++
		}
	}
	return hash
}

// HammingDistance counts differing bits between two hashes.
func HammingDistance(a, b uint64) int {
	return popcount(a ^ b)
}

func popcount(v uint64) int {
	n := 0
	for v != 0 {
		v &= v - 1
		n++
	}
	return n
}

// SSIMSize is the edge length images are normalized to before comparison.
const SSIMSize = 512

// SSIM computes the mean structural similarity of two images over 8x8
// windows after normalizing both to SSIMSize grayscale. The result lies in
// [-1, 1]; identical images score 1.
func SSIM(a, b image.Image) float64 {
	const window = 8
	const l = 255.0
	c1 := (0.01 * l) * (0.01 * l)
	c2 := (0.03 * l) * (0.03 * l)

	ga := resizeGray(a, SSIMSize, SSIMSize)
	gb := resizeGray(b, SSIMSize, SSIMSize)

	var total float64
	var windows int
	for wy := 0; wy+window <= SSIMSize; wy += window {
		for wx := 0; wx+window <= SSIMSize; wx += window {
			var sumA, sumB float64
			for y := wy; y < wy+window; y++ {
				for x := wx; x < wx+window; x++ {
					sumA += ga[y][x]
					sumB += gb[y][x]
				}
			}
			n := float64(window * window)
			muA := sumA / n
			muB := sumB / n

			var varA, varB, cov float64
			for y := wy; y < wy+window; y++ {
				for x := wx; x < wx+window; x++ {
					da := ga[y][x] - muA
					db := gb[y][x] - muB
					varA += da * da
					varB += db * db
					cov += da * db
				}
			}
			varA /= n - 1
			varB /= n - 1
			cov /= n - 1

			num := (2*muA*muB + c1) * (2*cov + c2)
			den := (muA*muA + muB*muB + c1) * (varA + varB + c2)
			total += num / den
			windows++
		}
	}
	if windows == 0 {
		return 0
	}
	return total / float64(windows)
}

// Cosine returns the cosine similarity of two embedding vectors in [-1, 1].
// Mismatched lengths or zero vectors yield 0.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// resizeGray scales img to w x h using box sampling and returns luminance
// values in [0, 255].
func resizeGray(img image.Image, w, h int) [][]float64 {
	bounds := img.Bounds()
	srcW := bounds.Dx()
	srcH := bounds.Dy()
	out := make([][]float64, h)

	for y := 0; y < h; y++ {
		out[y] = make([]float64, w)
		y0 := bounds.Min.Y + y*srcH/h
		y1 := bounds.Min.Y + (y+1)*srcH/h
		if y1 <= y0 {
			y1 = y0 + 1
		}
		for x := 0; x < w; x++ {
			x0 := bounds.Min.X + x*srcW/w
			x1 := bounds.Min.X + (x+1)*srcW/w
			if x1 <= x0 {
				x1 = x0 + 1
			}
			var sum float64
			var count int
			for sy := y0; sy < y1; sy++ {
				for sx := x0; sx < x1; sx++ {
					sum += luminance(img.At(sx, sy))
					count++
				}
			}
			out[y][x] = sum / float64(count)
		}
	}
	return out
}

func luminance(c color.Color) float64 {
	r, g, b, _ := c.RGBA()
	// ITU-R BT.601 weights over 16-bit channel values.
	return (0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)) / 257.0
}

// dct2d applies a separable type-II DCT to a square matrix.
func dct2d(in [][]float64) [][]float64 {
	n := len(in)
	tmp := make([][]float64, n)
	for i := range tmp {
		tmp[i] = dct1d(in[i])
	}
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, n)
	}
	col := make([]float64, n)
	for x := 0; x < n; x++ {
		for y := 0; y < n; y++ {
			col[y] = tmp[y][x]
		}
		freq := dct1d(col)
		for y := 0; y < n; y++ {
			out[y][x] = freq[y]
		}
	}
	return out
}

func dct1d(in []float64) []float64 {
	n := len(in)
	out := make([]float64, n)
	for k := 0; k < n; k++ {
		var sum float64
		for i := 0; i < n; i++ {
			sum += in[i] * math.Cos(math.Pi*float64(k)*(2*float64(i)+1)/(2*float64(n)))
		}
		out[k] = sum
	}
	return out
}

func medianOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1] > sorted[j]; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
