//go:build !gosseract

package app

import (
	"errors"
	"log/slog"

	"github.com/joseph-ayodele/scansmart/internal/common"
	"github.com/joseph-ayodele/scansmart/internal/ocr"
)

func newGosseractFactory(common.OCRConfig, *slog.Logger) (ocr.WorkerFactory, error) {
	return nil, errors.New("OCR_ENGINE=gosseract needs a binary built with -tags gosseract")
}
