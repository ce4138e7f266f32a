//go:build gosseract

// Package gosseract provides an in-process Tesseract engine through libtesseract (cgo).
package gosseract

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/otiai10/gosseract/v2"

	"github.com/joseph-ayodele/scansmart/internal/ocr"
)

type Config struct {
	TessdataDir string
	PSM         int
}

// Factory creates one gosseract client per worker.
type Factory struct {
	cfg    Config
	logger *slog.Logger
}

func NewFactory(cfg Config, logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{cfg: cfg, logger: logger}
}

func (f *Factory) Name() string { return "gosseract" }

func (f *Factory) NewWorker(_ context.Context) (ocr.Worker, error) {
	f.logger.Debug("creating tesseract client", "version", gosseract.Version())
	return &worker{client: gosseract.NewClient(), cfg: f.cfg}, nil
}

type worker struct {
	client *gosseract.Client
	cfg    Config
	lang   string
	ready  bool
	closed bool
}

func (w *worker) LoadLanguage(_ context.Context, code string) error {
	if w.closed {
		return ocr.ErrTerminated
	}
	if w.cfg.TessdataDir != "" {
		if err := w.client.SetTessdataPrefix(w.cfg.TessdataDir); err != nil {
			return fmt.Errorf("set tessdata prefix: %w", err)
		}
	}
	if langs, err := w.availableLanguages(); err == nil && !slices.Contains(langs, code) {
		return fmt.Errorf("%w: %q", ocr.ErrLanguageMissing, code)
	}
	if err := w.client.SetLanguage(code); err != nil {
		return fmt.Errorf("set language: %w", err)
	}
	w.lang = code
	return nil
}

// availableLanguages looks where the client will load from: the configured
// tessdata dir, or the library default.
func (w *worker) availableLanguages() ([]string, error) {
	if w.cfg.TessdataDir != "" {
		return ocr.InstalledLanguages(w.cfg.TessdataDir)
	}
	return gosseract.GetAvailableLanguages()
}

func (w *worker) Initialize(_ context.Context, code string) error {
	if w.closed {
		return ocr.ErrTerminated
	}
	if code != w.lang {
		return ocr.ErrLanguageMismatch
	}
	if w.cfg.PSM > 0 {
		if err := w.client.SetPageSegMode(gosseract.PageSegMode(w.cfg.PSM)); err != nil {
			return fmt.Errorf("set psm: %w", err)
		}
	}
	w.ready = true
	return nil
}

func (w *worker) Recognize(ctx context.Context, path string) (ocr.Recognition, error) {
	if w.closed {
		return ocr.Recognition{}, ocr.ErrTerminated
	}
	if !w.ready {
		return ocr.Recognition{}, ocr.ErrNotInitialized
	}
	if err := ctx.Err(); err != nil {
		return ocr.Recognition{}, err
	}
	start := time.Now()
	if err := w.client.SetImage(path); err != nil {
		return ocr.Recognition{}, fmt.Errorf("set image: %w", err)
	}
	text, err := w.client.Text()
	if err != nil {
		return ocr.Recognition{}, fmt.Errorf("recognize text: %w", err)
	}
	return ocr.Recognition{
		Text:       ocr.Normalize(text),
		Language:   w.lang,
		Engine:     "gosseract",
		Confidence: w.meanWordConfidence(),
		Duration:   time.Since(start),
	}, nil
}

func (w *worker) meanWordConfidence() float32 {
	boxes, err := w.client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil || len(boxes) == 0 {
		return 0
	}
	var sum float64
	var n int
	for _, b := range boxes {
		if strings.TrimSpace(b.Word) == "" {
			continue
		}
		sum += b.Confidence
		n++
	}
	if n == 0 {
		return 0
	}
	return float32(sum / float64(n) / 100.0)
}

func (w *worker) Terminate() error {
	if w.closed {
		return ocr.ErrTerminated
	}
	w.closed = true
	return w.client.Close()
}
