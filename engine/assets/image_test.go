package assets

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func twoRowImage() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.NRGBA{R: 255, A: 255})
	img.Set(1, 0, color.NRGBA{R: 255, A: 255})
	img.Set(0, 1, color.NRGBA{B: 255, A: 255})
	img.Set(1, 1, color.NRGBA{B: 255, A: 255})
	return img
}

func TestTextureFromImage(t *testing.T) {
	tests := []struct {
		name     string
		flipY    bool
		wantTopR uint8
		wantTopB uint8
	}{
		{name: "top row first", flipY: false, wantTopR: 255, wantTopB: 0},
		{name: "flipped", flipY: true, wantTopR: 0, wantTopB: 255},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tex := TextureFromImage(twoRowImage(), tt.flipY)
			if err := tex.Validate(); err != nil {
				t.Fatalf("Validate() = %v", err)
			}
			if tex.Width != 2 || tex.Height != 2 {
				t.Errorf("size = %dx%d, want 2x2", tex.Width, tex.Height)
			}
			if r, b := tex.Pixels[0], tex.Pixels[2]; r != tt.wantTopR || b != tt.wantTopB {
				t.Errorf("top-left = (r=%d, b=%d), want (r=%d, b=%d)", r, b, tt.wantTopR, tt.wantTopB)
			}
		})
	}
}

func TestTextureFromImageSubBounds(t *testing.T) {
	img := image.NewRGBA(image.Rect(10, 20, 13, 21))
	img.Set(10, 20, color.RGBA{G: 200, A: 255})
	tex := TextureFromImage(img, false)
	if tex.Width != 3 || tex.Height != 1 {
		t.Fatalf("size = %dx%d, want 3x1", tex.Width, tex.Height)
	}
	if tex.Pixels[1] != 200 {
		t.Errorf("first pixel green = %d, want 200", tex.Pixels[1])
	}
}

func TestLoadTexture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bricks.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, twoRowImage()); err != nil {
		t.Fatal(err)
	}
	f.Close()

	res, err := LoadTexture(path, false)
	if err != nil {
		t.Fatalf("LoadTexture() = %v", err)
	}
	if res.Name != "bricks" || res.Texture.Width != 2 {
		t.Errorf("LoadTexture() = %s %dx%d, want \"bricks\" 2x2", res, res.Texture.Width, res.Texture.Height)
	}

	bad := filepath.Join(t.TempDir(), "bad.png")
	if err := os.WriteFile(bad, []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadTexture(bad, false); err == nil {
		t.Error("LoadTexture(garbage) = nil, want error")
	}
}
