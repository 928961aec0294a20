package objectstore

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"strings"
)

var extensions = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/gif":  "gif",
}

// inspect sniffs the content type of data and checks that it decodes as an
// image. The declared type is only used when sniffing is inconclusive.
func inspect(data []byte, declared string) (contentType, ext string, err error) {
	if len(data) == 0 {
		return "", "", fmt.Errorf("image is empty")
	}

	contentType = http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		contentType = strings.TrimSpace(strings.SplitN(declared, ";", 2)[0])
	}
	ext, ok := extensions[contentType]
	if !ok {
		return "", "", fmt.Errorf("unsupported content type %q", contentType)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", "", fmt.Errorf("not a valid image: %w", err)
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return "", "", fmt.Errorf("image has zero size")
	}
	return contentType, ext, nil
}
