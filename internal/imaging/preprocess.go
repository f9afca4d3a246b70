package imaging

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/anthonynsimon/bild/adjust"
	"github.com/anthonynsimon/bild/effect"
	"github.com/anthonynsimon/bild/segment"
	"github.com/anthonynsimon/bild/transform"
	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
)

// PreprocessOptions selects the clean-up steps applied before recognition.
// Steps run in field order; zero values skip a step.
type PreprocessOptions struct {
	// Region crops to this rectangle first, in source image coordinates.
	Region *image.Rectangle `json:"-"`

	// Scale resizes by a factor (Lanczos). Upscaling small text to roughly
	// 30px cap height helps the recognizer most.
	Scale float64 `json:"scale,omitempty"`

	// MaxDimension shrinks the image so neither side exceeds it.
	MaxDimension int `json:"max_dimension,omitempty"`

	// DeskewRadians rotates by the negated angle, the value an orientation
	// query reports for the block.
	DeskewRadians float64 `json:"deskew_radians,omitempty"`

	// Denoise applies a median filter of this radius.
	Denoise float64 `json:"denoise,omitempty"`

	// Contrast changes contrast by a percentage in [-100, 100].
	Contrast float64 `json:"contrast,omitempty"`

	// Grayscale converts to gray; Perceptual uses CIE L* lightness instead
	// of the Rec. 601 luma weights.
	Grayscale  bool `json:"grayscale,omitempty"`
	Perceptual bool `json:"perceptual,omitempty"`

	// Binarize thresholds to black and white. Threshold 0 picks one with
	// Otsu's method.
	Binarize  bool  `json:"binarize,omitempty"`
	Threshold uint8 `json:"threshold,omitempty"`

	// Invert swaps light and dark, for light text on a dark background.
	Invert bool `json:"invert,omitempty"`
}

// Preprocess applies opts to a copy of img. The source is never modified.
// The result is anchored at (0, 0).
func Preprocess(img image.Image, opts PreprocessOptions) (image.Image, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("empty image")
	}

	var out image.Image = Clone(img)
	if opts.Region != nil {
		sub, err := SubImage(img, *opts.Region)
		if err != nil {
			return nil, err
		}
		out = sub
	}
	if opts.Scale < 0 {
		return nil, fmt.Errorf("invalid scale %g", opts.Scale)
	}
	if opts.Scale > 0 && opts.Scale != 1 {
		b := out.Bounds()
		w := int(math.Round(float64(b.Dx()) * opts.Scale))
		h := int(math.Round(float64(b.Dy()) * opts.Scale))
		out = Scale(out, w, h)
	}
	if opts.MaxDimension > 0 {
		out = imaging.Fit(out, opts.MaxDimension, opts.MaxDimension, imaging.Lanczos)
	}
	if opts.DeskewRadians != 0 {
		out = Deskew(out, opts.DeskewRadians)
	}
	if opts.Denoise > 0 {
		out = effect.Median(out, opts.Denoise)
	}
	if opts.Contrast != 0 {
		if opts.Contrast < -100 || opts.Contrast > 100 {
			return nil, fmt.Errorf("contrast %g outside [-100, 100]", opts.Contrast)
		}
		out = adjust.Contrast(out, opts.Contrast/100)
	}
	if opts.Perceptual {
		out = PerceptualGray(out)
	} else if opts.Grayscale {
		out = Gray(out)
	}
	if opts.Binarize {
		out = Binarize(out, opts.Threshold)
	}
	if opts.Invert {
		out = imaging.Invert(out)
	}
	return out, nil
}

// Clone returns a deep copy of img anchored at (0, 0).
func Clone(img image.Image) *image.NRGBA {
	return imaging.Clone(img)
}

// SubImage copies the rectangle r of img. r must lie inside the image.
func SubImage(img image.Image, r image.Rectangle) (*image.NRGBA, error) {
	r = r.Canon()
	if r.Empty() || !r.In(img.Bounds()) {
		return nil, fmt.Errorf("region %v outside image bounds %v", r, img.Bounds())
	}
	return imaging.Crop(img, r), nil
}

// Scale resizes img to exactly width x height.
func Scale(img image.Image, width, height int) *image.NRGBA {
	return imaging.Resize(img, width, height, imaging.Lanczos)
}

// Gray converts img to 8-bit gray with the Rec. 601 luma weights.
func Gray(img image.Image) *image.Gray {
	b := img.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	src := imaging.Grayscale(img)
	for y := 0; y < b.Dy(); y++ {
		row := src.Pix[y*src.Stride:]
		for x := 0; x < b.Dx(); x++ {
			g.Pix[y*g.Stride+x] = row[x*4]
		}
	}
	return g
}

// PerceptualGray converts img to gray by CIE L* lightness, which keeps
// colored text on colored backgrounds apart better than luma.
func PerceptualGray(img image.Image) *image.Gray {
	b := img.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c, ok := colorful.MakeColor(img.At(x, y))
			if !ok {
				// Fully transparent: treat as background.
				g.Pix[(y-b.Min.Y)*g.Stride+(x-b.Min.X)] = 0xff
				continue
			}
			l, _, _ := c.Lab()
			g.Pix[(y-b.Min.Y)*g.Stride+(x-b.Min.X)] = uint8(math.Round(clamp01(l) * 255))
		}
	}
	return g
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// Binarize maps pixels at or above threshold to white and the rest to black.
// A zero threshold is replaced by OtsuThreshold(img).
func Binarize(img image.Image, threshold uint8) *image.Gray {
	if threshold == 0 {
		threshold = OtsuThreshold(img)
	}
	return anchorGray(segment.Threshold(img, threshold))
}

// anchorGray moves g to the origin when it is not already there.
func anchorGray(g *image.Gray) *image.Gray {
	if g.Rect.Min == (image.Point{}) {
		return g
	}
	out := image.NewGray(image.Rect(0, 0, g.Rect.Dx(), g.Rect.Dy()))
	for y := 0; y < g.Rect.Dy(); y++ {
		copy(out.Pix[y*out.Stride:(y+1)*out.Stride], g.Pix[g.PixOffset(g.Rect.Min.X, g.Rect.Min.Y+y):])
	}
	return out
}

// OtsuThreshold picks the gray level that best separates a bimodal
// histogram, which suits dark text on a light page.
func OtsuThreshold(img image.Image) uint8 {
	var hist [256]int
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			hist[color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y]++
		}
	}
	total := b.Dx() * b.Dy()
	if total == 0 {
		return 128
	}

	var sum float64
	for i, n := range hist {
		sum += float64(i * n)
	}
	var (
		sumB, best float64
		weightB    int
		threshold  = 128
	)
	for i, n := range hist {
		weightB += n
		if weightB == 0 {
			continue
		}
		weightF := total - weightB
		if weightF == 0 {
			break
		}
		sumB += float64(i * n)
		meanB := sumB / float64(weightB)
		meanF := (sum - sumB) / float64(weightF)
		between := float64(weightB) * float64(weightF) * (meanB - meanF) * (meanB - meanF)
		if between > best {
			best = between
			threshold = i + 1
		}
	}
	if threshold > 255 {
		threshold = 255
	}
	return uint8(threshold)
}

// Deskew rotates img by -radians, growing the canvas to keep the corners.
// New corner pixels are opaque white, the page background.
func Deskew(img image.Image, radians float64) *image.NRGBA {
	degrees := -radians * 180 / math.Pi
	rotated := transform.Rotate(img, degrees, &transform.RotationOptions{ResizeBounds: true})
	b := rotated.Bounds()
	page := imaging.New(b.Dx(), b.Dy(), color.White)
	return imaging.Overlay(page, rotated, image.Point{}, 1)
}
