package acquire

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

type probeResult struct {
	format string
	width  int
	height int
}

// probeImage decodes only the image header so corrupt or non-image files are
// rejected before they reach the OCR engine.
func probeImage(path string) (probeResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return probeResult{}, err
	}
	defer f.Close()
	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return probeResult{}, fmt.Errorf("decode image header %s: %w", path, err)
	}
	return probeResult{format: format, width: cfg.Width, height: cfg.Height}, nil
}

// hashFile returns the hex sha256 of a file's content.
func hashFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()
	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}
