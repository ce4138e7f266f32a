// Package app builds the scan session and its collaborators from configuration.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/joseph-ayodele/scansmart/constants"
	"github.com/joseph-ayodele/scansmart/internal/acquire"
	"github.com/joseph-ayodele/scansmart/internal/async"
	"github.com/joseph-ayodele/scansmart/internal/cache"
	"github.com/joseph-ayodele/scansmart/internal/common"
	"github.com/joseph-ayodele/scansmart/internal/export"
	"github.com/joseph-ayodele/scansmart/internal/extract"
	"github.com/joseph-ayodele/scansmart/internal/metrics"
	"github.com/joseph-ayodele/scansmart/internal/ocr"
	"github.com/joseph-ayodele/scansmart/internal/permission"
	"github.com/joseph-ayodele/scansmart/internal/repository"
	"github.com/joseph-ayodele/scansmart/internal/runner"
	"github.com/joseph-ayodele/scansmart/internal/session"
)

// App owns everything a command needs. Close releases it.
type App struct {
	Config   *common.Config
	Logger   *slog.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Recorder
	Acquirer *acquire.Acquirer
	Gallery  *acquire.DirectoryGallery
	Pipeline *extract.Pipeline
	Exporter *export.Service
	Session  *session.Session
	DB       *repository.DB
	Scans    repository.ScanRepository
	Exports  repository.ExportRepository

	closers []func()
}

// Build wires the application. A nil prompt gate denies "prompt" policies.
func Build(ctx context.Context, cfg *common.Config, prompt permission.Gate, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger, Registry: prometheus.NewRegistry()}
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.Metrics = metrics.NewRecorder(a.Registry)

	if err := a.openHistory(ctx); err != nil {
		a.Close(ctx)
		return nil, err
	}

	textCache, err := a.openCache(ctx)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	factory, err := a.ocrFactory()
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	opts := []extract.Option{extract.WithLanguage(cfg.OCR.Language), extract.WithMetrics(a.Metrics)}
	if textCache != nil {
		opts = append(opts, extract.WithCache(textCache))
	}
	a.Pipeline = extract.NewPipeline(factory, logger, opts...)

	if a.Acquirer, a.Gallery, err = a.acquirer(prompt); err != nil {
		a.Close(ctx)
		return nil, err
	}
	if a.Exporter, err = a.exporter(); err != nil {
		a.Close(ctx)
		return nil, err
	}

	a.Session = session.New(a.Acquirer, a.Pipeline, a.Exporter, logger,
		session.WithMetrics(a.Metrics),
		session.WithHistory(a.Scans, a.Exports),
		session.WithQueue(
			async.WithWorkers(cfg.OCR.Workers),
			async.WithQueueSize(cfg.OCR.QueueSize),
			async.WithProcessTimeout(cfg.OCR.Timeout),
		),
	)
	return a, nil
}

// Close shuts the session down first, then its stores.
func (a *App) Close(ctx context.Context) {
	if a.Session != nil {
		a.Session.Close(ctx)
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) openHistory(ctx context.Context) error {
	db := a.Config.Database
	if db.DSN == "" {
		a.Logger.Debug("scan history disabled")
		return nil
	}
	conn, err := repository.Open(ctx, repository.Config{
		Driver:           db.Driver,
		DSN:              db.DSN,
		MaxConns:         db.MaxConns,
		MinConns:         db.MinConns,
		MaxConnLifetime:  db.MaxConnLifetime,
		MaxConnIdleTime:  db.MaxConnIdleTime,
		DialTimeout:      db.DialTimeout,
		StatementTimeout: db.StatementTimeout,
	}, a.Logger)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	a.closers = append(a.closers, conn.Close)
	if err := conn.HealthCheck(ctx, 5*time.Second); err != nil {
		return fmt.Errorf("ping history: %w", err)
	}
	if err := conn.Migrate(ctx); err != nil {
		return err
	}
	a.DB = conn
	a.Scans = repository.NewScanRepository(conn, a.Logger)
	a.Exports = repository.NewExportRepository(conn, a.Logger)
	return nil
}

func (a *App) openCache(ctx context.Context) (cache.Cache, error) {
	c := a.Config.Cache
	switch c.Backend {
	case "":
		return nil, nil
	case "memory":
		return cache.NewMemory(c.TTL), nil
	case "redis":
		r, err := cache.DialRedis(ctx, c.RedisAddr, c.RedisDB, c.TTL)
		if err != nil {
			return nil, fmt.Errorf("connect redis cache: %w", err)
		}
		a.closers = append(a.closers, func() {
			if err := r.Close(); err != nil {
				a.Logger.Warn("close redis cache", "error", err)
			}
		})
		return r, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", c.Backend)
	}
}

func (a *App) ocrFactory() (ocr.WorkerFactory, error) {
	c := a.Config.OCR
	switch c.Engine {
	case "gosseract":
		return newGosseractFactory(c, a.Logger)
	case "cli", "":
		return ocr.NewCLIFactory(ocr.CLIConfig{
			Tesseract:           c.Tesseract,
			TessdataDir:         c.TessdataDir,
			EnableTSVConfidence: c.TSVConfidence,
			PSM:                 c.PSM,
			OEM:                 c.OEM,
		}, runner.Exec{Logger: a.Logger}, a.Logger), nil
	default:
		return nil, fmt.Errorf("unknown ocr engine %q", c.Engine)
	}
}

func (a *App) acquirer(prompt permission.Gate) (*acquire.Acquirer, *acquire.DirectoryGallery, error) {
	c := a.Config.Acquire
	gate := permission.NewPolicyGate(c.CameraAccess, c.GalleryAccess, prompt, a.Logger)
	r := runner.Exec{Logger: a.Logger}

	gallery, err := acquire.NewDirectoryGallery(c.GalleryDir)
	if err != nil {
		return nil, nil, err
	}
	var camera acquire.Camera
	if len(c.CameraCommand) > 0 {
		camera = acquire.NewCommandCamera(c.CameraCommand, c.ArtifactCacheDir, r, a.Logger)
	}
	return acquire.NewAcquirer(gate, camera, gallery, r, acquire.Config{
		HeicConverter:    c.HeicConverter,
		ArtifactCacheDir: c.ArtifactCacheDir,
	}, a.Logger), gallery, nil
}

func (a *App) exporter() (*export.Service, error) {
	c := a.Config.Export
	var pdfOpts []export.PDFOption
	if c.PDFFont != "" {
		pdfOpts = append(pdfOpts, export.WithUTF8Font(c.PDFFont))
	}
	renderer, err := export.RendererFor(constants.ExportFormat(c.Format), c.OutputDir, pdfOpts...)
	if err != nil {
		return nil, err
	}
	var sharer export.Sharer
	switch c.Share {
	case "dir":
		sharer = export.DirectorySharer{Outbox: c.OutboxDir}
	case "command":
		sharer = export.CommandSharer{Command: c.OpenCmd, Runner: runner.Exec{Logger: a.Logger}}
	default:
		sharer = export.LogSharer{Logger: a.Logger}
	}
	return export.NewService(export.TemplateFor(c.Template), renderer, sharer, a.Metrics, a.Logger), nil
}

// NewLogger builds the process logger: JSON for daemons, text otherwise.
func NewLogger(level slog.Level, json bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if json {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
