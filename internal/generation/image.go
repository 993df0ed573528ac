package generation

import (
	"fmt"
	"os"

	"github.com/gabriel-vasile/mimetype"
)

// SupportedImageTypes lists the MIME types accepted for design uploads.
var SupportedImageTypes = []string{"image/png", "image/jpeg"}

// DetectImage sniffs the content type of data and wraps it as an Image.
// Only PNG and JPEG are accepted.
func DetectImage(data []byte) (Image, error) {
	if len(data) == 0 {
		return Image{}, fmt.Errorf("%w: empty image data", ErrInvalidImage)
	}

	mtype := mimetype.Detect(data)
	if !mimetype.EqualsAny(mtype.String(), SupportedImageTypes...) {
		return Image{}, fmt.Errorf("%w: %s", ErrUnsupportedImage, mtype.String())
	}

	return Image{Data: data, MIMEType: mtype.String()}, nil
}

// LoadImage reads path and sniffs it with DetectImage.
func LoadImage(path string) (Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Image{}, fmt.Errorf("failed to read image %s: %w", path, err)
	}

	img, err := DetectImage(data)
	if err != nil {
		return Image{}, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}
