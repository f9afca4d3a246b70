package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"io"
	"os"
	"path/filepath"
	"sync"

	_ "golang.org/x/image/bmp"  // Register BMP format decoder
	_ "golang.org/x/image/tiff" // Register TIFF format decoder
	_ "golang.org/x/image/webp" // Register WebP format decoder
)

// MaxFileSize bounds how much of an image file is read.
const MaxFileSize = 256 << 20

type cachedImage struct {
	img    image.Image
	format string
	size   int64
}

// ImageCache keeps decoded page images keyed by absolute path, so repeated
// OCR calls on one scan skip disk reads and decoding.
//
// ImageCache is safe for concurrent use. Cached images stay in memory until
// Evict or Clear; a long-running server should evict pages it is done with.
type ImageCache struct {
	mu     sync.RWMutex
	images map[string]cachedImage
}

// NewImageCache creates an empty cache.
func NewImageCache() *ImageCache {
	return &ImageCache{
		images: make(map[string]cachedImage),
	}
}

// Load returns the cached image for path, reading and decoding it on the
// first call. Supported formats are PNG, JPEG, GIF, TIFF, BMP and WebP.
// Relative and absolute spellings of one file share an entry.
func (c *ImageCache) Load(path string) (image.Image, error) {
	entry, err := c.load(path)
	if err != nil {
		return nil, err
	}
	return entry.img, nil
}

func (c *ImageCache) load(path string) (cachedImage, error) {
	key, err := filepath.Abs(path)
	if err != nil {
		return cachedImage{}, fmt.Errorf("failed to resolve path: %w", err)
	}

	c.mu.RLock()
	entry, ok := c.images[key]
	c.mu.RUnlock()
	if ok {
		return entry, nil
	}

	f, err := os.Open(key)
	if err != nil {
		return cachedImage{}, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return cachedImage{}, fmt.Errorf("failed to stat file: %w", err)
	}
	if stat.Size() > MaxFileSize {
		return cachedImage{}, fmt.Errorf("image file %s is %d bytes, limit is %d", path, stat.Size(), MaxFileSize)
	}

	img, format, err := image.Decode(f)
	if err != nil {
		return cachedImage{}, fmt.Errorf("failed to decode image: %w", err)
	}
	entry = cachedImage{img: img, format: format, size: stat.Size()}

	c.mu.Lock()
	c.images[key] = entry
	c.mu.Unlock()

	return entry, nil
}

// Len reports how many images are cached.
func (c *ImageCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.images)
}

// Clear removes all images from the cache.
func (c *ImageCache) Clear() {
	c.mu.Lock()
	c.images = make(map[string]cachedImage)
	c.mu.Unlock()
}

// Evict removes the image loaded from path. Unknown paths are ignored.
func (c *ImageCache) Evict(path string) {
	key, err := filepath.Abs(path)
	if err != nil {
		return
	}
	c.mu.Lock()
	delete(c.images, key)
	c.mu.Unlock()
}

// Decode decodes an in-memory image without caching it and reports the
// format name the decoder registered.
func Decode(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", fmt.Errorf("empty image data")
	}
	img, format, err := image.Decode(io.LimitReader(bytes.NewReader(data), MaxFileSize))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}
	return img, format, nil
}

// ImageInfo describes a loaded page image.
type ImageInfo struct {
	Width  int `json:"width"`
	Height int `json:"height"`

	// Format is the decoder name: "png", "jpeg", "gif", "tiff", "bmp" or "webp".
	Format string `json:"format"`

	// ColorDepth is "1-bit", "8-bit" or "16-bit" per channel.
	ColorDepth string `json:"color_depth"`

	HasAlpha  bool `json:"has_alpha"`
	Grayscale bool `json:"grayscale"`

	FileSizeBytes int64 `json:"file_size_bytes,omitempty"`

	// SuggestedDepth is the pixel depth (1, 8, 24 or 32) that hands this
	// image to the recognizer without losing information.
	SuggestedDepth int `json:"suggested_depth"`
}

// LoadImageInfo loads path through cache and describes it.
func LoadImageInfo(cache *ImageCache, path string) (*ImageInfo, error) {
	entry, err := cache.load(path)
	if err != nil {
		return nil, err
	}
	info := Describe(entry.img, entry.format)
	info.FileSizeBytes = entry.size
	return info, nil
}

// Describe reports metadata for an already decoded image.
func Describe(img image.Image, format string) *ImageInfo {
	b := img.Bounds()
	info := &ImageInfo{
		Width:      b.Dx(),
		Height:     b.Dy(),
		Format:     format,
		ColorDepth: "8-bit",
	}

	switch m := img.(type) {
	case *image.Gray:
		info.Grayscale = true
	case *image.Gray16:
		info.Grayscale = true
		info.ColorDepth = "16-bit"
	case *image.RGBA, *image.NRGBA:
		info.HasAlpha = !opaque(img)
	case *image.RGBA64, *image.NRGBA64:
		info.HasAlpha = !opaque(img)
		info.ColorDepth = "16-bit"
	case *image.Paletted:
		if len(m.Palette) <= 2 {
			info.ColorDepth = "1-bit"
		}
		info.Grayscale = paletteIsGray(m)
	}

	switch {
	case info.ColorDepth == "1-bit":
		info.SuggestedDepth = 1
	case info.Grayscale:
		info.SuggestedDepth = 8
	case info.HasAlpha:
		info.SuggestedDepth = 32
	default:
		info.SuggestedDepth = 24
	}
	return info
}

// opaque reports whether every pixel is fully opaque. The PNG decoder
// returns RGBA images for truecolor files without an alpha channel.
func opaque(img image.Image) bool {
	o, ok := img.(interface{ Opaque() bool })
	return ok && o.Opaque()
}

func paletteIsGray(m *image.Paletted) bool {
	for _, c := range m.Palette {
		r, g, b, _ := c.RGBA()
		if r != g || g != b {
			return false
		}
	}
	return true
}
