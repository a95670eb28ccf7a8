package assets

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"

	"github.com/spaghettifunk/anima-gl/engine/renderer/metadata"
)

// TextureFromImage converts any decoded image into an RGBA8 texture payload.
// Rows are stored top row first unless flipY is set.
func TextureFromImage(img image.Image, flipY bool) *metadata.TextureData {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)

	if flipY {
		row := make([]uint8, dst.Stride)
		for top, bottom := 0, b.Dy()-1; top < bottom; top, bottom = top+1, bottom-1 {
			t := dst.Pix[top*dst.Stride : (top+1)*dst.Stride]
			bt := dst.Pix[bottom*dst.Stride : (bottom+1)*dst.Stride]
			copy(row, t)
			copy(t, bt)
			copy(bt, row)
		}
	}

	return &metadata.TextureData{
		Width:     uint32(b.Dx()),
		Height:    uint32(b.Dy()),
		Format:    metadata.PixelFormatRGBA8,
		Pixels:    dst.Pix,
		MinFilter: metadata.TextureFilterModeLinear,
		MagFilter: metadata.TextureFilterModeLinear,
		WrapS:     metadata.TextureRepeatRepeat,
		WrapT:     metadata.TextureRepeatRepeat,
	}
}

// LoadTexture decodes a png, jpeg or bmp file into a texture resource named
// after the file.
func LoadTexture(path string, flipY bool) (*metadata.CPUResource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return metadata.NewTexture(name, TextureFromImage(img, flipY))
}
