package analyzer

import (
	"fmt"
	"net/http"
	"os"
)

// Media types the model accepts
var supportedMediaTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// LoadImage reads a screenshot and sniffs its media type
func LoadImage(path string) (Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Image{}, fmt.Errorf("read image: %w", err)
	}
	return NewImage(data)
}

// NewImage wraps encoded image bytes, rejecting unsupported formats
func NewImage(data []byte) (Image, error) {
	mediaType := http.DetectContentType(data)
	if !supportedMediaTypes[mediaType] {
		return Image{}, fmt.Errorf("unsupported image type: %s", mediaType)
	}
	return Image{MediaType: mediaType, Data: data}, nil
}
