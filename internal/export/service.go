// Package export turns recognized text into a shareable document:
// template, render to file, hand to the sharing collaborator.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/scansmart/constants"
	"github.com/joseph-ayodele/scansmart/internal/common"
	"github.com/joseph-ayodele/scansmart/internal/metrics"
)

// Service is a tiny façade over template, renderer and sharer.
type Service struct {
	template Template
	renderer Renderer
	sharer   Sharer
	metrics  *metrics.Recorder
	logger   *slog.Logger
}

func NewService(template Template, renderer Renderer, sharer Sharer, m *metrics.Recorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if template == nil {
		template = PreTemplate{}
	}
	if sharer == nil {
		sharer = LogSharer{Logger: logger}
	}
	return &Service{template: template, renderer: renderer, sharer: sharer, metrics: m, logger: logger}
}

// Export renders text into a new artifact and shares it. Any failure, panics
// in collaborators included, comes back as *ExportError.
func (s *Service) Export(ctx context.Context, text string) (a Artifact, err error) {
	start := time.Now()
	format := string(s.renderer.Format())
	log := common.LoggerWith(ctx, s.logger).With("format", format)

	defer func() {
		if r := recover(); r != nil {
			a, err = Artifact{}, &ExportError{Stage: "render", Cause: fmt.Errorf("panic: %v", r)}
		}
		if err != nil {
			s.metrics.Export(format, metrics.OutcomeFailure)
			log.Error("export failed", "error", err)
			return
		}
		s.metrics.Export(format, metrics.OutcomeSuccess)
		log.Info("export."+format+".ok",
			"artifact_id", a.ID.String(),
			"path", a.Path,
			"bytes", a.Size,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	}()

	markup, err := s.template.Wrap(text)
	if err != nil {
		return Artifact{}, &ExportError{Stage: "template", Cause: err}
	}
	a, err = s.renderer.RenderToFile(ctx, markup)
	if err != nil {
		return Artifact{}, &ExportError{Stage: "render", Cause: err}
	}
	if err := s.sharer.Share(ctx, a); err != nil {
		return a, &ExportError{Stage: "share", Cause: err}
	}
	return a, nil
}

// RendererFor builds the renderer for a configured format. pdfOpts only apply to PDF.
func RendererFor(format constants.ExportFormat, dir string, pdfOpts ...PDFOption) (Renderer, error) {
	switch format {
	case constants.ExportPDF, "":
		return NewPDFRenderer(dir, pdfOpts...), nil
	case constants.ExportHTML:
		return NewHTMLRenderer(dir), nil
	case constants.ExportXLSX:
		return NewXLSXRenderer(dir), nil
	default:
		return nil, common.NewAppError("EXPORT_FORMAT", fmt.Sprintf("unknown export format %q", format), common.ErrInvalidInput)
	}
}

// ExportError matches common.ErrExportFailed. A share failure still carries the rendered artifact.
type ExportError struct {
	Stage string // template | render | share
	Cause error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export failed at %s: %v", e.Stage, e.Cause)
}

func (e *ExportError) Unwrap() error { return e.Cause }

func (e *ExportError) Is(target error) bool { return target == common.ErrExportFailed }

// Notice is the user-visible alert for the failure.
func (e *ExportError) Notice() string { return constants.ExportFailedMessage }
