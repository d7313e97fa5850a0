package avatar

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

// createTestPNG generates a w x h PNG filled with a solid color.
func createTestPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 40, B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode test PNG: %v", err)
	}
	return buf.Bytes()
}

func TestImageProcessor_Process_Tiny(t *testing.T) {
	processor := NewProcessor()

	for _, dims := range [][2]int{{400, 400}, {640, 200}, {16, 48}} {
		out, contentType, err := processor.Process(createTestPNG(t, dims[0], dims[1]), TinyPreset)
		if err != nil {
			t.Fatalf("%v: Process failed: %v", dims, err)
		}
		if contentType != "image/jpeg" {
			t.Errorf("%v: expected image/jpeg, got %q", dims, contentType)
		}

		img, err := jpeg.Decode(bytes.NewReader(out))
		if err != nil {
			t.Fatalf("%v: output is not a JPEG: %v", dims, err)
		}
		if b := img.Bounds(); b.Dx() != 32 || b.Dy() != 32 {
			t.Errorf("%v: expected 32x32, got %dx%d", dims, b.Dx(), b.Dy())
		}
	}
}

func TestImageProcessor_Process_KeepsTransparency(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 255, G: 255, B: 255, A: 0})
		}
	}
	var src bytes.Buffer
	if err := png.Encode(&src, img); err != nil {
		t.Fatalf("failed to encode test PNG: %v", err)
	}

	out, contentType, err := NewProcessor().Process(src.Bytes(), TinyPreset)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if contentType != "image/png" {
		t.Fatalf("expected image/png for a transparent source, got %q", contentType)
	}

	decoded, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("output is not a PNG: %v", err)
	}
	if b := decoded.Bounds(); b.Dx() != 32 || b.Dy() != 32 {
		t.Errorf("expected 32x32, got %dx%d", b.Dx(), b.Dy())
	}
	if _, _, _, a := decoded.At(16, 16).RGBA(); a != 0 {
		t.Errorf("expected transparent pixel, got alpha %d", a)
	}
}

func TestImageProcessor_Process_Errors(t *testing.T) {
	processor := NewProcessor()

	if _, _, err := processor.Process(nil, TinyPreset); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("empty input: expected ErrUnsupportedFormat, got %v", err)
	}
	if _, _, err := processor.Process([]byte("<svg></svg>"), TinyPreset); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("svg input: expected ErrUnsupportedFormat, got %v", err)
	}
	if _, _, err := processor.Process(createTestPNG(t, 4, 4), Preset{Name: "bad"}); !errors.Is(err, ErrInvalidPreset) {
		t.Errorf("invalid preset: expected ErrInvalidPreset, got %v", err)
	}
}

func TestGetPreset(t *testing.T) {
	p, err := GetPreset("tiny")
	if err != nil {
		t.Fatalf("GetPreset failed: %v", err)
	}
	if p.Width != 32 || p.Height != 32 || p.Fit != FitCover {
		t.Errorf("unexpected tiny preset: %+v", p)
	}

	if _, err := GetPreset("huge"); !errors.Is(err, ErrInvalidPreset) {
		t.Errorf("expected ErrInvalidPreset, got %v", err)
	}
}
