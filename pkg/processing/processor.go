package processing

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	xdraw "golang.org/x/image/draw"

	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/luckcal/food-analyzer/pkg/types"
)

// Defaults for the transmission payload
const (
	DefaultMaxDimension    = 640
	DefaultQuality         = 85
	DefaultMaxSourcePixels = 250_000_000
)

// ErrDecode marks every failure to turn the input into an image
var ErrDecode = errors.New("image cannot be decoded")

// ErrSourceTooLarge is returned for sources above MaxSourcePixels. The image
// may be valid; it is refused before its pixels are allocated.
var ErrSourceTooLarge = errors.New("source image exceeds pixel limit")

// DecodeError reports that the raw image could not be normalized
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	if e.Err == nil {
		return ErrDecode.Error()
	}
	return fmt.Sprintf("%s: %v", ErrDecode, e.Err)
}

// Is lets errors.Is match ErrDecode
func (e *DecodeError) Is(target error) bool {
	return target == ErrDecode
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Config holds normalizer settings
type Config struct {
	MaxDimension    int
	Quality         int
	MaxSourcePixels int
}

// Processor turns raw photos into bounded JPEG payloads
type Processor struct {
	config  Config
	client  *http.Client
	surface *surfacePool
}

// NewProcessor creates a processor with the default 640px / q85 settings
func NewProcessor() *Processor {
	return NewProcessorWithConfig(Config{
		MaxDimension:    DefaultMaxDimension,
		Quality:         DefaultQuality,
		MaxSourcePixels: DefaultMaxSourcePixels,
	})
}

// NewProcessorWithConfig creates a processor, filling zero fields with defaults
func NewProcessorWithConfig(config Config) *Processor {
	if config.MaxDimension <= 0 {
		config.MaxDimension = DefaultMaxDimension
	}
	if config.Quality <= 0 || config.Quality > 100 {
		config.Quality = DefaultQuality
	}
	if config.MaxSourcePixels <= 0 {
		config.MaxSourcePixels = DefaultMaxSourcePixels
	}
	return &Processor{
		config:  config,
		client:  &http.Client{Timeout: 30 * time.Second},
		surface: newSurfacePool(),
	}
}

// TargetSize computes the payload dimensions for a w x h source.
// The long side is capped at limit; the other side is scaled and rounded.
func TargetSize(w, h, limit int) (int, int) {
	switch {
	case w > h && w > limit:
		factor := float64(limit) / float64(w)
		return limit, atLeastOne(math.Round(float64(h) * factor))
	case h > limit:
		factor := float64(limit) / float64(h)
		return atLeastOne(math.Round(float64(w) * factor)), limit
	}
	return w, h
}

func atLeastOne(v float64) int {
	if v < 1 {
		return 1
	}
	return int(v)
}

// Normalize decodes raw, downsizes it if needed and re-encodes it as JPEG.
// Re-encoding happens even when no resize is needed.
func (p *Processor) Normalize(raw []byte) (*types.Payload, error) {
	src, err := p.decode(raw)
	if errors.Is(err, ErrSourceTooLarge) {
		return nil, err
	}
	if err != nil {
		return nil, &DecodeError{Err: err}
	}

	b := src.Bounds()
	srcW, srcH := b.Dx(), b.Dy()
	dstW, dstH := TargetSize(srcW, srcH, p.config.MaxDimension)

	dst := p.surface.acquire(dstW, dstH)
	defer p.surface.release(dst)

	// Transparent sources land on white instead of JPEG's implicit black
	xdraw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, xdraw.Src)
	if dstW == srcW && dstH == srcH {
		xdraw.Draw(dst, dst.Bounds(), src, b.Min, xdraw.Over)
	} else {
		xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, b, xdraw.Over, nil)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: p.config.Quality}); err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}

	return &types.Payload{
		Data:         buf.Bytes(),
		Width:        dstW,
		Height:       dstH,
		SourceWidth:  srcW,
		SourceHeight: srcH,
		Resized:      dstW != srcW || dstH != srcH,
	}, nil
}

// decode validates the header before decoding the full image, honoring
// EXIF orientation for camera photos
func (p *Processor) decode(raw []byte) (image.Image, error) {
	if len(raw) == 0 {
		return nil, errors.New("empty input")
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err == nil {
		if cfg.Width <= 0 || cfg.Height <= 0 {
			return nil, fmt.Errorf("invalid %s dimensions %dx%d", format, cfg.Width, cfg.Height)
		}
		if cfg.Width*cfg.Height > p.config.MaxSourcePixels {
			return nil, fmt.Errorf("%w: %dx%d > %d", ErrSourceTooLarge, cfg.Width, cfg.Height, p.config.MaxSourcePixels)
		}
	}

	img, decodeErr := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if decodeErr == nil {
		return checkBounds(img)
	}

	// Fallback: explicit WebP decode for variants the registered decoder rejects
	if img, err := webp.Decode(bytes.NewReader(raw)); err == nil {
		return checkBounds(img)
	}

	return nil, decodeErr
}

func checkBounds(img image.Image) (image.Image, error) {
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("invalid image dimensions %dx%d", b.Dx(), b.Dy())
	}
	return img, nil
}

// LoadImage reads an image file without decoding it
func (p *Processor) LoadImage(filePath string) (types.RawImage, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return types.RawImage{}, fmt.Errorf("failed to read image file: %w", err)
	}
	return types.RawImage{Data: data, Name: filepath.Base(filePath)}, nil
}

// LoadImageFromURL downloads an image without decoding it
func (p *Processor) LoadImageFromURL(imageURL string) (types.RawImage, error) {
	parsedURL, err := url.Parse(imageURL)
	if err != nil {
		return types.RawImage{}, fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return types.RawImage{}, fmt.Errorf("unsupported URL scheme: %s (only http and https are supported)", parsedURL.Scheme)
	}

	req, err := http.NewRequest(http.MethodGet, imageURL, nil)
	if err != nil {
		return types.RawImage{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Food-Analyzer/1.0")

	resp, err := p.client.Do(req)
	if err != nil {
		return types.RawImage{}, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return types.RawImage{}, fmt.Errorf("failed to download image: HTTP %d %s", resp.StatusCode, resp.Status)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return types.RawImage{}, fmt.Errorf("URL does not point to an image (Content-Type: %s)", contentType)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.RawImage{}, fmt.Errorf("failed to read image data: %w", err)
	}

	return types.RawImage{Data: data, Name: path.Base(parsedURL.Path)}, nil
}

// LoadImageSmart loads an image from either a file path or URL
func (p *Processor) LoadImageSmart(source string) (types.RawImage, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return p.LoadImageFromURL(source)
	}
	return p.LoadImage(source)
}

// SavePayload writes the encoded payload to disk
func (p *Processor) SavePayload(payload *types.Payload, filePath string) error {
	if payload == nil || len(payload.Data) == 0 {
		return errors.New("empty payload")
	}
	if err := os.WriteFile(filePath, payload.Data, 0o644); err != nil {
		return fmt.Errorf("failed to write payload: %w", err)
	}
	return nil
}
