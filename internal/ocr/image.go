package ocr

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"runtime"
)

// Depth is the number of bits per pixel of an ImageBuffer.
type Depth int

const (
	// DepthBinary packs eight pixels per byte, most significant bit first,
	// with 1 meaning white.
	DepthBinary Depth = 1
	// DepthGray is one byte of luminance per pixel.
	DepthGray Depth = 8
	// DepthRGB is three bytes per pixel in R, G, B order.
	DepthRGB Depth = 24
	// DepthRGBA is four bytes per pixel in R, G, B, A order.
	DepthRGBA Depth = 32
)

// Guards against dimension products that overflow the native int math.
const (
	maxImageDimension = 1 << 16
	maxImagePixels    = 1 << 28
)

func (d Depth) valid() bool {
	switch d {
	case DepthBinary, DepthGray, DepthRGB, DepthRGBA:
		return true
	}
	return false
}

// BytesPerPixel is the value the native SetImage expects: 0 for binary
// images, otherwise depth/8.
func (d Depth) BytesPerPixel() int {
	if d == DepthBinary {
		return 0
	}
	return int(d) / 8
}

// rowBytes is the minimum bytes per line for width pixels.
func (d Depth) rowBytes(width int) int {
	if d == DepthBinary {
		return (width + 7) / 8
	}
	return width * int(d) / 8
}

// ImageBuffer is an uncompressed image in the layout the native library
// reads directly. The engine does not copy Pix: it stays pinned and must not
// be modified until the next SetImage, Clear, End or Close.
type ImageBuffer struct {
	Pix          []byte
	Width        int
	Height       int
	Depth        Depth
	BytesPerLine int
}

// Validate checks the buffer geometry against Pix.
func (b *ImageBuffer) Validate() error {
	if b == nil {
		return fmt.Errorf("%w: nil buffer", ErrInvalidImage)
	}
	if b.Width <= 0 || b.Height <= 0 {
		return fmt.Errorf("%w: dimensions %dx%d", ErrInvalidImage, b.Width, b.Height)
	}
	if b.Width > maxImageDimension || b.Height > maxImageDimension || b.Width*b.Height > maxImagePixels {
		return fmt.Errorf("%w: dimensions %dx%d exceed limits", ErrInvalidImage, b.Width, b.Height)
	}
	if !b.Depth.valid() {
		return fmt.Errorf("%w: unsupported depth %d", ErrInvalidImage, int(b.Depth))
	}
	row := b.Depth.rowBytes(b.Width)
	if b.BytesPerLine < row {
		return fmt.Errorf("%w: %d bytes per line, need at least %d", ErrInvalidImage, b.BytesPerLine, row)
	}
	if need := b.BytesPerLine*(b.Height-1) + row; len(b.Pix) < need {
		return fmt.Errorf("%w: %d bytes of pixel data, need %d", ErrInvalidImage, len(b.Pix), need)
	}
	return nil
}

// Bounds returns the image rectangle anchored at the origin.
func (b *ImageBuffer) Bounds() image.Rectangle {
	return image.Rect(0, 0, b.Width, b.Height)
}

// BytesPerPixel is Depth.BytesPerPixel.
func (b *ImageBuffer) BytesPerPixel() int {
	return b.Depth.BytesPerPixel()
}

// NewImageBuffer converts img into the given depth. Gray and NRGBA images
// whose layout already matches are wrapped without copying.
func NewImageBuffer(img image.Image, depth Depth) (*ImageBuffer, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: nil image", ErrInvalidImage)
	}
	r := img.Bounds()
	if r.Empty() {
		return nil, fmt.Errorf("%w: empty image", ErrInvalidImage)
	}

	var buf *ImageBuffer
	switch depth {
	case DepthGray:
		g := toGray(img)
		buf = &ImageBuffer{Pix: g.Pix[g.PixOffset(r.Min.X, r.Min.Y):], Width: r.Dx(), Height: r.Dy(), Depth: DepthGray, BytesPerLine: g.Stride}
	case DepthRGBA:
		n := toNRGBA(img)
		buf = &ImageBuffer{Pix: n.Pix[n.PixOffset(r.Min.X, r.Min.Y):], Width: r.Dx(), Height: r.Dy(), Depth: DepthRGBA, BytesPerLine: n.Stride}
	case DepthRGB:
		n := toNRGBA(img)
		w, h := r.Dx(), r.Dy()
		pix := make([]byte, w*h*3)
		for y := 0; y < h; y++ {
			src := n.Pix[n.PixOffset(r.Min.X, r.Min.Y+y):]
			dst := pix[y*w*3:]
			for x := 0; x < w; x++ {
				copy(dst[x*3:x*3+3], src[x*4:x*4+3])
			}
		}
		buf = &ImageBuffer{Pix: pix, Width: w, Height: h, Depth: DepthRGB, BytesPerLine: w * 3}
	case DepthBinary:
		g := toGray(img)
		w, h := r.Dx(), r.Dy()
		white := make([]bool, w*h)
		for y := 0; y < h; y++ {
			row := g.Pix[g.PixOffset(r.Min.X, r.Min.Y+y):]
			for x := 0; x < w; x++ {
				white[y*w+x] = row[x] >= 128
			}
		}
		pix, bpl, err := PackBits(white, w, h)
		if err != nil {
			return nil, err
		}
		buf = &ImageBuffer{Pix: pix, Width: w, Height: h, Depth: DepthBinary, BytesPerLine: bpl}
	default:
		return nil, fmt.Errorf("%w: unsupported depth %d", ErrInvalidImage, int(depth))
	}
	return buf, buf.Validate()
}

func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	g := image.NewGray(img.Bounds())
	draw.Draw(g, g.Bounds(), img, img.Bounds().Min, draw.Src)
	return g
}

func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok {
		return n
	}
	n := image.NewNRGBA(img.Bounds())
	draw.Draw(n, n.Bounds(), img, img.Bounds().Min, draw.Src)
	return n
}

// Image returns a copy of the buffer as a Go image: *image.Gray for binary
// and gray buffers, *image.NRGBA otherwise.
func (b *ImageBuffer) Image() (image.Image, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	switch b.Depth {
	case DepthBinary:
		white, err := UnpackBits(b.Pix, b.Width, b.Height, b.BytesPerLine)
		if err != nil {
			return nil, err
		}
		g := image.NewGray(b.Bounds())
		for i, w := range white {
			if w {
				g.Pix[i] = 0xff
			}
		}
		return g, nil
	case DepthGray:
		g := image.NewGray(b.Bounds())
		for y := 0; y < b.Height; y++ {
			copy(g.Pix[y*g.Stride:y*g.Stride+b.Width], b.Pix[y*b.BytesPerLine:])
		}
		return g, nil
	case DepthRGB:
		n := image.NewNRGBA(b.Bounds())
		for y := 0; y < b.Height; y++ {
			src := b.Pix[y*b.BytesPerLine:]
			for x := 0; x < b.Width; x++ {
				n.SetNRGBA(x, y, color.NRGBA{R: src[x*3], G: src[x*3+1], B: src[x*3+2], A: 0xff})
			}
		}
		return n, nil
	default:
		n := image.NewNRGBA(b.Bounds())
		for y := 0; y < b.Height; y++ {
			copy(n.Pix[y*n.Stride:y*n.Stride+b.Width*4], b.Pix[y*b.BytesPerLine:])
		}
		return n, nil
	}
}

// PackBits packs a row-major white mask into 1-bit rows, most significant
// bit first, each row padded to a whole byte.
func PackBits(white []bool, width, height int) (pix []byte, bytesPerLine int, err error) {
	if width <= 0 || height <= 0 {
		return nil, 0, fmt.Errorf("%w: dimensions %dx%d", ErrInvalidImage, width, height)
	}
	if len(white) < width*height {
		return nil, 0, fmt.Errorf("%w: %d pixels for %dx%d", ErrInvalidImage, len(white), width, height)
	}
	bytesPerLine = (width + 7) / 8
	pix = make([]byte, bytesPerLine*height)
	for y := 0; y < height; y++ {
		row := pix[y*bytesPerLine:]
		for x := 0; x < width; x++ {
			if white[y*width+x] {
				row[x/8] |= 0x80 >> (x % 8)
			}
		}
	}
	return pix, bytesPerLine, nil
}

// UnpackBits is the inverse of PackBits.
func UnpackBits(pix []byte, width, height, bytesPerLine int) ([]bool, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: dimensions %dx%d", ErrInvalidImage, width, height)
	}
	if bytesPerLine < (width+7)/8 || len(pix) < bytesPerLine*(height-1)+(width+7)/8 {
		return nil, fmt.Errorf("%w: %d bytes for %dx%d at %d bytes per line", ErrInvalidImage, len(pix), width, height, bytesPerLine)
	}
	white := make([]bool, width*height)
	for y := 0; y < height; y++ {
		row := pix[y*bytesPerLine:]
		for x := 0; x < width; x++ {
			white[y*width+x] = row[x/8]&(0x80>>(x%8)) != 0
		}
	}
	return white, nil
}

// SetImage hands buf to the engine and makes the whole image the recognition
// rectangle. Pix is pinned, not copied, until the next SetImage, Clear, End
// or Close. Previous results and iterators are invalidated.
func (e *Engine) SetImage(buf *ImageBuffer) error {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.leave()
	return e.setImage(buf)
}

func (e *Engine) setImage(buf *ImageBuffer) error {
	if err := e.requireInit(); err != nil {
		return err
	}
	if err := buf.Validate(); err != nil {
		return err
	}

	e.invalidate()
	p := new(runtime.Pinner)
	p.Pin(&buf.Pix[0])
	e.api.setImage(buf.Pix, buf.Width, buf.Height, buf.BytesPerPixel(), buf.BytesPerLine)
	if e.pinner != nil {
		e.pinner.Unpin()
	}
	e.pinner = p
	e.img = buf
	e.rect = buf.Bounds()
	e.state = stateImageSet
	return nil
}

// SetImageFrom converts img to the given depth and sets it.
func (e *Engine) SetImageFrom(img image.Image, depth Depth) error {
	buf, err := NewImageBuffer(img, depth)
	if err != nil {
		return err
	}
	return e.SetImage(buf)
}

// SetRectangle restricts recognition to r, which must lie inside the image.
// Results for the previous rectangle are invalidated.
func (e *Engine) SetRectangle(r image.Rectangle) error {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.leave()
	return e.setRectangle(r)
}

func (e *Engine) setRectangle(r image.Rectangle) error {
	if err := e.requireImage(); err != nil {
		return err
	}
	r = r.Canon()
	if r.Empty() || !r.In(e.img.Bounds()) {
		return fmt.Errorf("%w: %v not inside %v", ErrRectangle, r, e.img.Bounds())
	}
	e.invalidate()
	e.api.setRectangle(r.Min.X, r.Min.Y, r.Dx(), r.Dy())
	e.rect = r
	e.state = stateImageSet
	return nil
}

// Rectangle returns the current recognition rectangle.
func (e *Engine) Rectangle() (image.Rectangle, error) {
	if err := e.enter(); err != nil {
		return image.Rectangle{}, err
	}
	defer e.leave()
	if err := e.requireImage(); err != nil {
		return image.Rectangle{}, err
	}
	return e.rect, nil
}

// SetSourceResolution tells the engine the scan resolution in pixels per
// inch, which scales its size heuristics.
func (e *Engine) SetSourceResolution(ppi int) error {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.leave()
	if err := e.requireImage(); err != nil {
		return err
	}
	if ppi <= 0 {
		return fmt.Errorf("invalid source resolution %d", ppi)
	}
	e.api.setSourceResolution(ppi)
	e.invalidateIfRecognized()
	return nil
}
