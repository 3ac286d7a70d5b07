package receipts

import (
	"bytes"
	"encoding/base64"
	"fmt"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"

	"crm/internal/validate"
)

// MaxImageSide bounds the longest side of stored receipt images.
const MaxImageSide = 1600

var imageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
}

// ImageDataURI turns an uploaded receipt image into the data URI kept on
// the receipt. Images larger than MaxImageSide are scaled down and every
// image is re-encoded as JPEG.
func ImageDataURI(data []byte) (string, error) {
	const op = "ImageDataURI"

	mime := mimetype.Detect(data)
	if !imageTypes[mime.String()] {
		return "", validate.New("imageUrl", fmt.Sprintf("unsupported image type %s", mime.String()))
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("%s: failed to decode image: %w", op, err)
	}
	if b := img.Bounds(); b.Dx() > MaxImageSide || b.Dy() > MaxImageSide {
		img = imaging.Fit(img, MaxImageSide, MaxImageSide, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return "", fmt.Errorf("%s: failed to encode image: %w", op, err)
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
