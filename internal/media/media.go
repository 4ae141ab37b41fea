// Package media handles image classification, thumbnailing and capture
// metadata for the selector UI.
package media

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// imageExts is the set of extensions the grid will display. Matching is
// case-insensitive, so JPG/JPEG variants are covered.
var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
}

// IsImage reports whether the filename has a displayable image extension.
func IsImage(name string) bool {
	return imageExts[strings.ToLower(filepath.Ext(name))]
}

// ContentType returns the MIME type for the file based on its extension,
// falling back to application/octet-stream.
func ContentType(name string) string {
	ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(name)))
	if ct == "" {
		return "application/octet-stream"
	}
	return ct
}

// Thumbnail decodes the image at path and returns a JPEG scaled to fit
// within maxW x maxH, preserving the aspect ratio and never upscaling.
// Returns nil, nil for files that are not decodable images.
func Thumbnail(path string, maxW, maxH int) ([]byte, error) {
	if !IsImage(path) {
		return nil, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", path, err)
	}
	defer f.Close()

	// All supported formats register decoders through the blank imports
	// above; an undecodable file means "no thumbnail", not an error.
	src, _, err := image.Decode(f)
	if err != nil {
		return nil, nil
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, scaleToFit(src, maxW, maxH), &jpeg.Options{Quality: 75}); err != nil {
		return nil, fmt.Errorf("encode thumbnail for %q: %w", path, err)
	}
	return buf.Bytes(), nil
}

// scaleToFit shrinks src to fit the bounding box using bilinear
// interpolation. Images already inside the box pass through untouched.
func scaleToFit(src image.Image, maxW, maxH int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return src
	}

	scale := float64(maxW) / float64(w)
	if s := float64(maxH) / float64(h); s < scale {
		scale = s
	}
	if scale >= 1.0 {
		return src
	}

	dw := int(float64(w) * scale)
	dh := int(float64(h) * scale)
	if dw < 1 {
		dw = 1
	}
	if dh < 1 {
		dh = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}
