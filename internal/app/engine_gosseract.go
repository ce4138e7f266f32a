//go:build gosseract

package app

import (
	"log/slog"

	"github.com/joseph-ayodele/scansmart/internal/common"
	"github.com/joseph-ayodele/scansmart/internal/ocr"
	"github.com/joseph-ayodele/scansmart/internal/ocr/gosseract"
)

func newGosseractFactory(c common.OCRConfig, logger *slog.Logger) (ocr.WorkerFactory, error) {
	return gosseract.NewFactory(gosseract.Config{TessdataDir: c.TessdataDir, PSM: c.PSM}, logger), nil
}
