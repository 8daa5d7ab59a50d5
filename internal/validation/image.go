package validation

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/recgen/recgen/internal/errors"
)

// allowedImageTypes are the sniffed content types accepted for upload.
var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// ImageValidationResult contains the outcome of an upload check
type ImageValidationResult struct {
	IsValid     bool   `json:"is_valid"`
	ContentType string `json:"content_type"`
	Name        string `json:"name"`
	Reason      string `json:"reason"`
}

// QuickValidateImage sniffs the upload's content type and checks its size.
// The declared content type is ignored; browsers get it wrong often enough.
func QuickValidateImage(name string, data []byte, maxBytes int64) ImageValidationResult {
	name = cleanName(name)

	if len(data) == 0 {
		return ImageValidationResult{Name: name, Reason: "No image data provided"}
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return ImageValidationResult{
			Name:   name,
			Reason: fmt.Sprintf("Image too large (%d bytes). Maximum is %d bytes.", len(data), maxBytes),
		}
	}

	contentType := http.DetectContentType(data)
	ext, ok := allowedImageTypes[contentType]
	if !ok {
		return ImageValidationResult{
			Name:        name,
			ContentType: contentType,
			Reason:      fmt.Sprintf("Unsupported file type %q", contentType),
		}
	}
	if name == "" {
		name = "image" + ext
	}

	return ImageValidationResult{
		IsValid:     true,
		ContentType: contentType,
		Name:        name,
		Reason:      "Image passed validation",
	}
}

// ValidateImage is QuickValidateImage as an error.
func ValidateImage(name string, data []byte, maxBytes int64) (ImageValidationResult, error) {
	res := QuickValidateImage(name, data, maxBytes)
	if !res.IsValid {
		return res, errors.NewValidationError(res.Reason, "INVALID_IMAGE", "Upload a JPEG, PNG, GIF or WebP photo.")
	}
	return res, nil
}

func cleanName(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	if name == "" {
		return ""
	}
	base := filepath.Base(name)
	if base == "." || base == "/" {
		return ""
	}
	return base
}
