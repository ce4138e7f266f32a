package constants

import "strings"

// Image formats accepted for extraction.
const (
	PNG  = "PNG"
	JPEG = "JPEG"
	GIF  = "GIF"
	BMP  = "BMP"
	TIFF = "TIFF"
	WEBP = "WEBP"
	HEIC = "HEIC"
)

// AllowedExtensions holds the image extensions accepted from the camera and the gallery.
var AllowedExtensions = map[string]string{
	"png":  PNG,
	"jpg":  JPEG,
	"jpeg": JPEG,
	"gif":  GIF,
	"bmp":  BMP,
	"tif":  TIFF,
	"tiff": TIFF,
	"webp": WEBP,
	"heic": HEIC,
	"heif": HEIC,
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToFormat returns the image format for an extension, or "" when unsupported.
func MapExtToFormat(ext string) string {
	return AllowedExtensions[NormalizeExt(ext)]
}

// IsHEICExt reports whether the extension needs conversion before OCR.
func IsHEICExt(ext string) bool {
	return MapExtToFormat(ext) == HEIC
}
