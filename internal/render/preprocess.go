// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package render

import (
	"image"
	"image/color"
	"math"
	"slices"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/pdiddy/pdf2md/pkg/types"
)

const (
	// MaxSide caps the longer edge of a rendered page. Larger pages are
	// scaled down before encoding.
	MaxSide = 3000

	// contentLevel is the gray level below which a pixel counts as ink
	// when cropping.
	contentLevel = 245

	cropMargin = 16

	// maxSkew and skewStep bound the deskew search, in degrees.
	maxSkew  = 5.0
	skewStep = 0.5
)

// Preprocess applies profile to a rendered page. ProfileNone only bounds the
// size. Light converts to grayscale and crops the blank margins. Aggressive
// also denoises, binarizes and deskews before cropping.
func Preprocess(img image.Image, profile types.Profile) image.Image {
	switch profile {
	case types.ProfileLight:
		img = cropToContent(toGray(img), contentLevel, cropMargin)
	case types.ProfileAggressive:
		g := deskew(binarize(median3(toGray(img))))
		img = cropToContent(g, contentLevel, cropMargin)
	}
	return fitMax(img, MaxSide)
}

func toGray(src image.Image) *image.Gray {
	b := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}

// median3 replaces each pixel with the median of its 3x3 neighbourhood.
// Edge pixels use the clamped neighbourhood.
func median3(src *image.Gray) *image.Gray {
	b := src.Bounds()
	dst := image.NewGray(b)
	var win [9]uint8
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			n := 0
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					px := min(max(x+dx, b.Min.X), b.Max.X-1)
					py := min(max(y+dy, b.Min.Y), b.Max.Y-1)
					win[n] = src.GrayAt(px, py).Y
					n++
				}
			}
			s := win[:]
			slices.Sort(s)
			dst.SetGray(x, y, color.Gray{Y: s[4]})
		}
	}
	return dst
}

// binarize thresholds at Otsu's level.
func binarize(src *image.Gray) *image.Gray {
	t := otsu(src)
	b := src.Bounds()
	dst := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			v := uint8(255)
			if src.GrayAt(x, y).Y <= t {
				v = 0
			}
			dst.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return dst
}

func otsu(src *image.Gray) uint8 {
	var hist [256]int
	b := src.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			hist[src.GrayAt(x, y).Y]++
		}
	}

	total := b.Dx() * b.Dy()
	var sum float64
	for i, c := range hist {
		sum += float64(i * c)
	}

	var sumB, best float64
	var wB int
	var threshold uint8
	for i, c := range hist {
		wB += c
		if wB == 0 {
			continue
		}
		wF := total - wB
		if wF == 0 {
			break
		}
		sumB += float64(i * c)
		mB := sumB / float64(wB)
		mF := (sum - sumB) / float64(wF)
		between := float64(wB) * float64(wF) * (mB - mF) * (mB - mF)
		if between > best {
			best = between
			threshold = uint8(i)
		}
	}
	return threshold
}

// deskew rotates a binarized page so its text lines run horizontally.
func deskew(src *image.Gray) *image.Gray {
	angle := skewAngle(src)
	if angle == 0 {
		return src
	}

	b := src.Bounds()
	rad := angle * math.Pi / 180
	sin, cos := math.Sincos(rad)
	cx := float64(b.Min.X) + float64(b.Dx())/2
	cy := float64(b.Min.Y) + float64(b.Dy())/2

	dst := image.NewGray(b)
	draw.Draw(dst, b, image.White, image.Point{}, draw.Src)
	m := f64.Aff3{
		cos, sin, cx - cos*cx - sin*cy,
		-sin, cos, cy + sin*cx - cos*cy,
	}
	draw.NearestNeighbor.Transform(dst, m, src, b, draw.Src, nil)
	return dst
}

// skewAngle estimates the slope of the text lines in degrees, positive when
// lines descend to the right. Each candidate angle projects the ink pixels
// onto the axis perpendicular to it; the angle whose row histogram is most
// concentrated wins. Ties keep the smaller correction.
func skewAngle(src *image.Gray) float64 {
	b := src.Bounds()
	cx := float64(b.Dx()) / 2
	cy := float64(b.Dy()) / 2

	var xs, ys []float64
	for y := b.Min.Y; y < b.Max.Y; y += 2 {
		for x := b.Min.X; x < b.Max.X; x += 2 {
			if src.GrayAt(x, y).Y < 128 {
				xs = append(xs, float64(x-b.Min.X)-cx)
				ys = append(ys, float64(y-b.Min.Y)-cy)
			}
		}
	}
	if len(xs) == 0 {
		return 0
	}

	offset := (b.Dx()+b.Dy())/2 + 1
	bins := make([]int, 2*offset+1)
	score := func(deg float64) int {
		clear(bins)
		sin, cos := math.Sincos(deg * math.Pi / 180)
		for i := range xs {
			bins[int(math.Round(ys[i]*cos-xs[i]*sin))+offset]++
		}
		total := 0
		for _, n := range bins {
			total += n * n
		}
		return total
	}

	best, bestScore := 0.0, score(0)
	for step := skewStep; step <= maxSkew; step += skewStep {
		for _, deg := range []float64{step, -step} {
			if s := score(deg); s > bestScore {
				best, bestScore = deg, s
			}
		}
	}
	return best
}

// cropToContent trims rows and columns with no pixel darker than level,
// keeping margin pixels around the content. Blank pages are returned as is.
func cropToContent(src *image.Gray, level uint8, margin int) image.Image {
	b := src.Bounds()
	box := image.Rectangle{}
	found := false
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if src.GrayAt(x, y).Y >= level {
				continue
			}
			p := image.Rect(x, y, x+1, y+1)
			if !found {
				box, found = p, true
				continue
			}
			box = box.Union(p)
		}
	}
	if !found {
		return src
	}
	box = image.Rect(box.Min.X-margin, box.Min.Y-margin, box.Max.X+margin, box.Max.Y+margin).Intersect(b)
	return src.SubImage(box)
}

// fitMax scales img down so neither side exceeds maxSide.
func fitMax(img image.Image, maxSide int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxSide && h <= maxSide {
		return img
	}
	if w >= h {
		h = h * maxSide / w
		w = maxSide
	} else {
		w = w * maxSide / h
		h = maxSide
	}
	dst := image.NewRGBA(image.Rect(0, 0, max(w, 1), max(h, 1)))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}
