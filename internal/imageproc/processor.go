package imageproc

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// Default thumbnail bounds, matching the catalogue's card size.
const (
	DefaultThumbWidth  = 300
	DefaultThumbHeight = 300
)

// DefaultMaxPixels bounds width*height of an accepted original. A decoded
// RGBA raster of this size is about 200 MB.
const DefaultMaxPixels = 50_000_000

var (
	// ErrUnsupportedFormat is returned for bytes that are not jpeg, png, gif or webp.
	ErrUnsupportedFormat = errors.New("unsupported or unrecognized image format")
	// ErrCorruptImage is returned when the header matches a format but the data
	// does not decode.
	ErrCorruptImage = errors.New("corrupt image data")
	// ErrTooManyPixels is returned when the declared dimensions exceed the
	// pixel limit. The pixels are never decoded.
	ErrTooManyPixels = errors.New("image dimensions exceed pixel limit")
)

// Info describes a probed original image.
type Info struct {
	Format   string
	MimeType string
	Width    int
	Height   int
}

// DetectFormat inspects the raw bytes and returns the image format:
// "jpeg", "png", "gif", "webp", or "" if unknown.
func DetectFormat(data []byte) string {
	// JPEG: starts with FF D8 FF
	if len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return "jpeg"
	}

	// PNG: starts with 89 50 4E 47 0D 0A 1A 0A
	if len(data) >= 8 && data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 &&
		data[4] == 0x0D && data[5] == 0x0A && data[6] == 0x1A && data[7] == 0x0A {
		return "png"
	}

	// GIF: starts with GIF87a or GIF89a
	if len(data) >= 6 && data[0] == 'G' && data[1] == 'I' && data[2] == 'F' {
		return "gif"
	}

	// WebP: starts with RIFF....WEBP
	if len(data) >= 12 && data[0] == 'R' && data[1] == 'I' && data[2] == 'F' && data[3] == 'F' &&
		data[8] == 'W' && data[9] == 'E' && data[10] == 'B' && data[11] == 'P' {
		return "webp"
	}

	return ""
}

// Extension returns the file extension (with dot) used for a format.
func Extension(format string) string {
	switch format {
	case "jpeg":
		return ".jpg"
	case "png":
		return ".png"
	case "gif":
		return ".gif"
	case "webp":
		return ".webp"
	}
	return ""
}

// ContentType returns the MIME type for a format.
func ContentType(format string) string {
	switch format {
	case "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	}
	return "application/octet-stream"
}

// Probe checks that data is a supported image and reads its dimensions
// without decoding the pixels. Images above DefaultMaxPixels are rejected.
func Probe(data []byte) (Info, error) {
	return probe(data, DefaultMaxPixels)
}

func probe(data []byte, maxPixels int64) (Info, error) {
	format := DetectFormat(data)
	if format == "" {
		return Info{}, ErrUnsupportedFormat
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrCorruptImage, err)
	}
	if px := int64(cfg.Width) * int64(cfg.Height); px > maxPixels {
		return Info{}, fmt.Errorf("%w: %dx%d", ErrTooManyPixels, cfg.Width, cfg.Height)
	}
	return Info{
		Format:   format,
		MimeType: ContentType(format),
		Width:    cfg.Width,
		Height:   cfg.Height,
	}, nil
}

// Thumbnailer produces bounded previews of gallery images.
type Thumbnailer struct {
	Width   int
	Height  int
	Quality int
	// MaxPixels bounds the originals it will decode.
	MaxPixels int64
}

// NewThumbnailer returns a Thumbnailer fitting images into width x height.
func NewThumbnailer(width, height int) *Thumbnailer {
	if width <= 0 {
		width = DefaultThumbWidth
	}
	if height <= 0 {
		height = DefaultThumbHeight
	}
	return &Thumbnailer{Width: width, Height: height, Quality: 85, MaxPixels: DefaultMaxPixels}
}

// Probe implements the gallery's image probe.
func (t *Thumbnailer) Probe(data []byte) (Info, error) {
	return probe(data, t.maxPixels())
}

func (t *Thumbnailer) maxPixels() int64 {
	if t.MaxPixels <= 0 {
		return DefaultMaxPixels
	}
	return t.MaxPixels
}

// Generate decodes data, fits it into the thumbnail bounds preserving the
// aspect ratio (never enlarging) and encodes the result. PNG sources stay
// PNG to keep transparency; everything else becomes JPEG. It returns the
// encoded bytes and their format. Oversized sources are refused before the
// raster is allocated.
func (t *Thumbnailer) Generate(data []byte) ([]byte, string, error) {
	info, err := probe(data, t.maxPixels())
	if err != nil {
		return nil, "", err
	}
	format := info.Format

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrCorruptImage, err)
	}

	img = fitScaleDown(img, t.Width, t.Height)

	outFormat := "jpeg"
	if format == "png" {
		outFormat = "png"
	}
	out, err := t.encode(img, outFormat)
	if err != nil {
		return nil, "", fmt.Errorf("encoding thumbnail: %w", err)
	}
	return out, outFormat, nil
}

// fitScaleDown resizes to fit within width x height, preserving aspect ratio.
// Only shrinks, never enlarges.
func fitScaleDown(img image.Image, targetW, targetH int) image.Image {
	b := img.Bounds()
	if b.Dx() <= targetW && b.Dy() <= targetH {
		// Already fits; do not enlarge.
		return img
	}
	return imaging.Fit(img, targetW, targetH, imaging.Lanczos)
}

func (t *Thumbnailer) encode(img image.Image, format string) ([]byte, error) {
	var buf bytes.Buffer
	switch format {
	case "jpeg":
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: t.Quality}); err != nil {
			return nil, err
		}
	case "png":
		if err := png.Encode(&buf, img); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
	return buf.Bytes(), nil
}
