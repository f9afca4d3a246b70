// Package imaging loads page images and prepares them for text recognition.
//
// The recognizer does best on upright, high-contrast text around 30 pixels
// tall. This package provides the clean-up steps that get scans and
// screenshots there: region selection, scaling, deskew, denoise, contrast,
// grayscale and binarization. Results are handed to the ocr package as
// image.Image values; ocr.NewImageBuffer packs them for the native side.
//
// # Coordinate System
//
// All pixel coordinates are 0-based with the origin at the top-left:
//   - X increases rightward, Y increases downward
//   - For regions, (x1,y1) is inclusive (top-left), (x2,y2) is exclusive (bottom-right)
//
// Preprocess and the helpers it calls return images anchored at (0, 0), so
// coordinates reported by recognition on a preprocessed region are relative
// to that region, scaled by the applied factor.
//
// # Thread Safety
//
// ImageCache is safe for concurrent use. All other functions are stateless
// and never modify their input image.
//
// # Formats
//
// Load and Decode understand PNG, JPEG, GIF, TIFF, BMP and WebP. The format
// reported in ImageInfo comes from the decoder, not the file extension.
package imaging
