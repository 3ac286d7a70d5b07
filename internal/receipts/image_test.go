package receipts

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/disintegration/imaging"

	"crm/internal/validate"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := imaging.New(w, h, color.NRGBA{R: 200, G: 40, B: 40, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func decodeURI(t *testing.T, uri string) image.Image {
	t.Helper()
	payload, ok := strings.CutPrefix(uri, "data:image/jpeg;base64,")
	if !ok {
		t.Fatalf("unexpected uri prefix %.40q", uri)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		t.Fatal(err)
	}
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	return img
}

func TestImageDataURIScalesLargeImages(t *testing.T) {
	uri, err := ImageDataURI(pngBytes(t, 3200, 800))
	if err != nil {
		t.Fatalf("ImageDataURI: %v", err)
	}
	b := decodeURI(t, uri).Bounds()
	if b.Dx() != MaxImageSide || b.Dy() != 400 {
		t.Errorf("size = %dx%d, want %dx400", b.Dx(), b.Dy(), MaxImageSide)
	}
}

func TestImageDataURIKeepsSmallImages(t *testing.T) {
	uri, err := ImageDataURI(pngBytes(t, 120, 80))
	if err != nil {
		t.Fatalf("ImageDataURI: %v", err)
	}
	if b := decodeURI(t, uri).Bounds(); b.Dx() != 120 || b.Dy() != 80 {
		t.Errorf("size = %dx%d, want 120x80", b.Dx(), b.Dy())
	}
}

func TestImageDataURIRejectsNonImages(t *testing.T) {
	_, err := ImageDataURI([]byte("%PDF-1.4 not an image"))
	if !validate.IsValidation(err) {
		t.Errorf("err = %v, want validation error", err)
	}
}
