// Package scale produces resized copies of sample images and the scale
// levels an experiment sweeps.
package scale

import (
	"image"
	"math"
	"sort"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

var ErrInvalidFactor = errors.New("scale factor must be a positive finite number")

// Image returns img resized by factor on both axes. Downscaling averages
// source pixels (box filter) and upscaling uses Catmull-Rom so neither adds
// aliasing of its own. A factor of 1 returns an identical copy.
func Image(img image.Image, factor float64) (*image.NRGBA, error) {
	if !validFactor(factor) {
		return nil, errors.Wrapf(ErrInvalidFactor, "got %v", factor)
	}
	if factor == 1 {
		return imaging.Clone(img), nil
	}
	b := img.Bounds()
	w := scaledDim(b.Dx(), factor)
	h := scaledDim(b.Dy(), factor)
	filter := imaging.CatmullRom
	if factor < 1 {
		filter = imaging.Box
	}
	return imaging.Resize(img, w, h, filter), nil
}

// Dims reports the size Image would produce.
func Dims(width, height int, factor float64) (int, int) {
	if factor == 1 {
		return width, height
	}
	return scaledDim(width, factor), scaledDim(height, factor)
}

func scaledDim(n int, factor float64) int {
	return max(1, int(math.Round(float64(n)*factor)))
}

func validFactor(f float64) bool {
	return f > 0 && !math.IsInf(f, 0) && !math.IsNaN(f)
}

// Linspace returns n evenly spaced levels from min to max inclusive,
// rounded to six decimals so levels survive a JSON round trip unchanged.
func Linspace(min, max float64, n int) ([]float64, error) {
	if n < 1 {
		return nil, errors.Errorf("level count must be at least 1, got %d", n)
	}
	if !validFactor(min) || !validFactor(max) {
		return nil, errors.Wrapf(ErrInvalidFactor, "range %v..%v", min, max)
	}
	if n == 1 {
		return []float64{round6(min)}, nil
	}
	levels := make([]float64, n)
	step := (max - min) / float64(n-1)
	for i := range levels {
		levels[i] = round6(min + step*float64(i))
	}
	levels[n-1] = round6(max)
	return Normalize(levels)
}

// Normalize validates levels and returns them sorted ascending without
// duplicates.
func Normalize(levels []float64) ([]float64, error) {
	if len(levels) == 0 {
		return nil, errors.New("no scale levels")
	}
	out := make([]float64, 0, len(levels))
	for _, l := range levels {
		if !validFactor(l) {
			return nil, errors.Wrapf(ErrInvalidFactor, "got %v", l)
		}
		out = append(out, l)
	}
	sort.Float64s(out)
	uniq := out[:1]
	for _, l := range out[1:] {
		if l != uniq[len(uniq)-1] {
			uniq = append(uniq, l)
		}
	}
	return uniq, nil
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
