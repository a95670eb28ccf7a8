package metadata

import (
	"errors"
	"fmt"
	"image"

	"golang.org/x/image/draw"

	"github.com/spaghettifunk/anima-gl/engine/math"
)

/** @brief The pixel layouts a texture payload can carry. */
type PixelFormat int

const (
	/** @brief 8 bits per channel, red/green/blue/alpha. */
	PixelFormatRGBA8 PixelFormat = iota
	/** @brief 8 bits per channel, red/green/blue. */
	PixelFormatRGB8
	/** @brief A single 8 bit channel (masks, alpha-only images). */
	PixelFormatR8
)

// BytesPerPixel returns the size of a single pixel in this format.
func (f PixelFormat) BytesPerPixel() uint32 {
	switch f {
	case PixelFormatRGBA8:
		return 4
	case PixelFormatRGB8:
		return 3
	case PixelFormatR8:
		return 1
	default:
		return 0
	}
}

func (f PixelFormat) String() string {
	switch f {
	case PixelFormatRGBA8:
		return "RGBA8"
	case PixelFormatRGB8:
		return "RGB8"
	case PixelFormatR8:
		return "R8"
	default:
		return fmt.Sprintf("PixelFormat(%d)", int(f))
	}
}

/** @brief Represents supported texture filtering modes. */
type TextureFilter int

const (
	/** @brief Linear (i.e. bilinear) filtering.*/
	TextureFilterModeLinear TextureFilter = iota
	/** @brief Nearest-neighbor filtering. */
	TextureFilterModeNearest
)

type TextureRepeat int

const (
	TextureRepeatClampToEdge TextureRepeat = iota
	TextureRepeatRepeat
	TextureRepeatMirroredRepeat
)

/**
 * @brief Backend independent texture payload.
 */
type TextureData struct {
	/** @brief The texture Width. */
	Width uint32
	/** @brief The texture Height. */
	Height uint32
	/** @brief The pixel layout of Pixels. */
	Format PixelFormat
	/** @brief Tightly packed rows, top row first. */
	Pixels []uint8

	/** @brief Texture filtering mode for minification. */
	MinFilter TextureFilter
	/** @brief Texture filtering mode for magnification. */
	MagFilter TextureFilter
	/** @brief The repeat mode on the U axis (or X, or S) */
	WrapS TextureRepeat
	/** @brief The repeat mode on the V axis (or Y, or T) */
	WrapT TextureRepeat
	/** @brief Generate a mip chain after upload. */
	Mipmaps bool
}

func (t *TextureData) Validate() error {
	if t == nil {
		return errors.New("missing texture payload")
	}
	if t.Width == 0 || t.Height == 0 {
		return fmt.Errorf("texture size %dx%d must be non-zero", t.Width, t.Height)
	}
	bpp := t.Format.BytesPerPixel()
	if bpp == 0 {
		return fmt.Errorf("unsupported pixel format %s", t.Format)
	}
	want := uint64(t.Width) * uint64(t.Height) * uint64(bpp)
	if uint64(len(t.Pixels)) != want {
		return fmt.Errorf("%s %dx%d needs %d bytes of pixels, got %d", t.Format, t.Width, t.Height, want, len(t.Pixels))
	}
	return nil
}

/** @brief The name of the placeholder texture used when a texture fails to materialize. */
const PLACEHOLDER_TEXTURE_NAME string = "placeholder"

// NewPlaceholderTextureData returns a 1x1 opaque white texture.
func NewPlaceholderTextureData() *TextureData {
	return &TextureData{
		Width:     1,
		Height:    1,
		Format:    PixelFormatRGBA8,
		Pixels:    []uint8{255, 255, 255, 255},
		MinFilter: TextureFilterModeNearest,
		MagFilter: TextureFilterModeNearest,
	}
}

// NewCheckerboardTextureData builds a size x size blue/white checkerboard.
// Handy as a visible "missing texture" marker.
func NewCheckerboardTextureData(size uint32) *TextureData {
	channels := uint32(4)
	pixels := make([]uint8, size*size*channels)
	for row := uint32(0); row < size; row++ {
		for col := uint32(0); col < size; col++ {
			i := (row*size + col) * channels
			pixels[i+0] = 255
			pixels[i+1] = 255
			pixels[i+2] = 255
			pixels[i+3] = 255
			if (row+col)%2 == 0 {
				pixels[i+0] = 0
				pixels[i+1] = 0
			}
		}
	}
	return &TextureData{
		Width:     size,
		Height:    size,
		Format:    PixelFormatRGBA8,
		Pixels:    pixels,
		MinFilter: TextureFilterModeNearest,
		MagFilter: TextureFilterModeNearest,
		WrapS:     TextureRepeatRepeat,
		WrapT:     TextureRepeatRepeat,
	}
}

// FitWithin returns a copy of t scaled down so neither side exceeds limit,
// or t itself when it already fits. Only RGBA8 payloads can be scaled; the
// receiver is never modified.
func (t *TextureData) FitWithin(limit uint32) (*TextureData, error) {
	if limit == 0 || (t.Width <= limit && t.Height <= limit) {
		return t, nil
	}
	if t.Format != PixelFormatRGBA8 {
		return nil, fmt.Errorf("%s texture %dx%d exceeds the maximum size %d", t.Format, t.Width, t.Height, limit)
	}
	width, height := math.FitWithin(t.Width, t.Height, limit)

	src := &image.RGBA{
		Pix:    t.Pixels,
		Stride: int(t.Width) * 4,
		Rect:   image.Rect(0, 0, int(t.Width), int(t.Height)),
	}
	dst := image.NewRGBA(image.Rect(0, 0, int(width), int(height)))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	scaled := *t
	scaled.Width = width
	scaled.Height = height
	scaled.Pixels = dst.Pix
	return &scaled, nil
}
