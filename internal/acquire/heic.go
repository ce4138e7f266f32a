package acquire

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joseph-ayodele/scansmart/internal/runner"
)

// convertHEICtoPNG converts a HEIC/HEIF file to PNG and persists it at
//
//	{cacheDir}/{hashHex}.png
//
// so the returned path stays valid for the process lifetime. An existing
// cached PNG is reused.
// converter: "heif-convert" | "magick" | "sips"
func convertHEICtoPNG(ctx context.Context, r runner.Runner, logger *slog.Logger, converter, in, cacheDir, hashHex string) (string, error) {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return "", err
	}
	out := filepath.Join(cacheDir, hashHex+".png")
	if st, err := os.Stat(out); err == nil && !st.IsDir() && st.Size() > 0 {
		logger.Debug("using cached heic->png", "cache", out)
		return out, nil
	}

	var errb []byte
	var err error
	switch converter {
	case "heif-convert":
		_, errb, err = r.Run(ctx, "heif-convert", in, out)
	case "magick":
		_, errb, err = r.Run(ctx, "magick", in, out)
	case "sips":
		_, errb, err = r.Run(ctx, "sips", "-s", "format", "png", in, "--out", out)
	default:
		return "", fmt.Errorf("HEIC not supported: set HEIC_CONVERTER to one of: heif-convert | magick | sips")
	}
	if err != nil {
		return "", fmt.Errorf("%s failed: %w (%s)", converter, err, runner.Truncate(string(errb), 512))
	}

	if _, statErr := os.Stat(out); statErr != nil {
		return "", fmt.Errorf("HEIC conversion produced no output: %w", statErr)
	}
	logger.Debug("cached heic->png", "cache", out)
	return out, nil
}
