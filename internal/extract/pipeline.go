// Package extract runs one OCR pass over an acquired image with a scoped
// engine instance: create, load language, initialize, recognize, terminate.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/scansmart/constants"
	"github.com/joseph-ayodele/scansmart/internal/acquire"
	"github.com/joseph-ayodele/scansmart/internal/cache"
	"github.com/joseph-ayodele/scansmart/internal/common"
	"github.com/joseph-ayodele/scansmart/internal/metrics"
	"github.com/joseph-ayodele/scansmart/internal/ocr"
)

type Pipeline struct {
	factory  ocr.WorkerFactory
	language string
	cache    cache.Cache
	metrics  *metrics.Recorder
	logger   *slog.Logger
}

type Option func(*Pipeline)

// WithCache serves repeated images from c instead of running the engine.
func WithCache(c cache.Cache) Option {
	return func(p *Pipeline) { p.cache = c }
}

func WithMetrics(m *metrics.Recorder) Option {
	return func(p *Pipeline) { p.metrics = m }
}

func WithLanguage(code string) Option {
	return func(p *Pipeline) {
		if code != "" {
			p.language = code
		}
	}
}

func NewPipeline(factory ocr.WorkerFactory, logger *slog.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pipeline{factory: factory, language: constants.DefaultLanguage, logger: logger}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Extract never retries. Every failure comes back as *ExtractionError.
func (p *Pipeline) Extract(ctx context.Context, ref acquire.ImageRef) (res Result, err error) {
	start := time.Now()
	log := common.LoggerWith(ctx, p.logger).With("path", ref.Path)

	if text, ok := p.cached(ctx, ref.Hash, log); ok {
		p.metrics.Extraction(metrics.OutcomeCacheHit, time.Since(start))
		return Result{Text: text, Language: p.language, Engine: p.factory.Name(), Cached: true, Duration: time.Since(start)}, nil
	}

	defer func() {
		if r := recover(); r != nil {
			res, err = Result{}, newExtractionError("engine", fmt.Errorf("ocr engine panic: %v", r))
		}
		outcome := metrics.OutcomeSuccess
		if err != nil {
			outcome = metrics.OutcomeFailure
			log.Error("text extraction failed", "error", err, "duration_ms", time.Since(start).Milliseconds())
		}
		p.metrics.Extraction(outcome, time.Since(start))
	}()

	w, err := p.factory.NewWorker(ctx)
	if err != nil {
		return Result{}, newExtractionError("create", err)
	}
	defer func() {
		if terr := w.Terminate(); terr != nil {
			log.Warn("ocr worker terminate failed", "error", terr)
		}
	}()

	if err := w.LoadLanguage(ctx, p.language); err != nil {
		return Result{}, newExtractionError("load_language", err)
	}
	if err := w.Initialize(ctx, p.language); err != nil {
		return Result{}, newExtractionError("initialize", err)
	}
	rec, err := w.Recognize(ctx, ref.Path)
	if err != nil {
		return Result{}, newExtractionError("recognize", err)
	}

	res = Result{
		Text:       rec.Text,
		Language:   rec.Language,
		Engine:     rec.Engine,
		Confidence: rec.Confidence,
		Duration:   time.Since(start),
		Warnings:   rec.Warnings,
	}
	p.store(ctx, ref.Hash, res.Text, log)
	log.Info("text extraction OK",
		"engine", res.Engine,
		"bytes", len(res.Text),
		"confidence", res.Confidence,
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

func (p *Pipeline) cached(ctx context.Context, key string, log *slog.Logger) (string, bool) {
	if p.cache == nil || key == "" {
		return "", false
	}
	text, ok, err := p.cache.Get(ctx, key)
	if err != nil {
		log.Warn("ocr cache read failed", "error", err)
		return "", false
	}
	return text, ok
}

func (p *Pipeline) store(ctx context.Context, key, text string, log *slog.Logger) {
	if p.cache == nil || key == "" {
		return
	}
	if err := p.cache.Set(ctx, key, text); err != nil {
		log.Warn("ocr cache write failed", "error", err)
	}
}
