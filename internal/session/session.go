// Package session drives one scan screen: acquire an image, extract its text
// in the background, show the result and export it on request.
//
// Only the latest acquisition may change the displayed text. Starting a new
// one cancels the previous run and its result is dropped on arrival.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/scansmart/constants"
	"github.com/joseph-ayodele/scansmart/internal/acquire"
	"github.com/joseph-ayodele/scansmart/internal/async"
	"github.com/joseph-ayodele/scansmart/internal/common"
	"github.com/joseph-ayodele/scansmart/internal/export"
	"github.com/joseph-ayodele/scansmart/internal/extract"
	"github.com/joseph-ayodele/scansmart/internal/metrics"
	"github.com/joseph-ayodele/scansmart/internal/repository"
	"github.com/joseph-ayodele/scansmart/internal/scan"
)

var ErrClosed = errors.New("session closed")

// Acquirer is the part of acquire.Acquirer the session drives.
type Acquirer interface {
	CaptureFromCamera(ctx context.Context) (acquire.CaptureResult, error)
	PickFromGallery(ctx context.Context, selection string) (acquire.CaptureResult, error)
}

type Exporter interface {
	Export(ctx context.Context, text string) (export.Artifact, error)
}

type Session struct {
	acquirer  Acquirer
	extractor extract.TextExtractor
	exporter  Exporter
	store     *scan.Store
	queue     async.Queue
	scans     repository.ScanRepository
	exports   repository.ExportRepository
	metrics   *metrics.Recorder
	logger    *slog.Logger
	newRunID  func() string
	queueOpts []async.Option

	base     context.Context
	stopBase context.CancelFunc
	inflight sync.WaitGroup

	mu        sync.Mutex
	closed    bool
	runID     string
	cancelRun context.CancelFunc
}

type Option func(*Session)

// WithHistory records every run and export. Either repository may be nil.
func WithHistory(scans repository.ScanRepository, exports repository.ExportRepository) Option {
	return func(s *Session) { s.scans, s.exports = scans, exports }
}

func WithMetrics(m *metrics.Recorder) Option {
	return func(s *Session) { s.metrics = m }
}

// WithQueue tunes the background extraction queue.
func WithQueue(opts ...async.Option) Option {
	return func(s *Session) { s.queueOpts = append(s.queueOpts, opts...) }
}

func WithStore(store *scan.Store) Option {
	return func(s *Session) { s.store = store }
}

func New(acquirer Acquirer, extractor extract.TextExtractor, exporter Exporter, logger *slog.Logger, opts ...Option) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		acquirer:  acquirer,
		extractor: extractor,
		exporter:  exporter,
		logger:    logger,
		newRunID:  func() string { return uuid.NewString() },
	}
	for _, o := range opts {
		o(s)
	}
	if s.store == nil {
		s.store = scan.NewStore(logger)
	}
	s.base, s.stopBase = context.WithCancel(context.Background())
	s.queue = async.NewWorkerQueue(s.runExtraction, logger, s.queueOpts...)
	return s
}

// State returns the displayed state.
func (s *Session) State() scan.State { return s.store.Snapshot() }

// Subscribe registers a re-render callback. See scan.Store.Subscribe.
func (s *Session) Subscribe(l scan.Listener) func() { return s.store.Subscribe(l) }

// ClearNotice dismisses the current alert.
func (s *Session) ClearNotice() { s.store.Dispatch(scan.NoticeCleared{}) }

// TakePhoto captures from the camera and starts extraction on success.
// A denial raises a notice and returns an error matching common.ErrPermissionDenied;
// a cancellation returns a cancelled result and changes nothing.
func (s *Session) TakePhoto(ctx context.Context) (acquire.CaptureResult, error) {
	res, err := s.acquirer.CaptureFromCamera(ctx)
	return s.handleAcquisition(ctx, "camera", res, err)
}

// PickImage resolves selection through the gallery and starts extraction on success.
func (s *Session) PickImage(ctx context.Context, selection string) (acquire.CaptureResult, error) {
	res, err := s.acquirer.PickFromGallery(ctx, selection)
	return s.handleAcquisition(ctx, "gallery", res, err)
}

func (s *Session) handleAcquisition(ctx context.Context, source string, res acquire.CaptureResult, err error) (acquire.CaptureResult, error) {
	log := common.LoggerWith(ctx, s.logger).With("source", source)
	var denied *acquire.DeniedError
	switch {
	case errors.As(err, &denied):
		s.metrics.Acquisition(source, metrics.OutcomeDenied)
		s.store.Dispatch(scan.NoticeRaised{Message: denied.Notice()})
		return res, err
	case err != nil:
		s.metrics.Acquisition(source, metrics.OutcomeFailure)
		log.Warn("acquisition failed", "error", err)
		return res, err
	case res.Cancelled():
		s.metrics.Acquisition(source, metrics.OutcomeCancelled)
		return res, nil
	}
	s.metrics.Acquisition(source, metrics.OutcomeSuccess)
	if err := s.startRun(ctx, res.Image); err != nil {
		return res, err
	}
	return res, nil
}

// startRun shows the image, opens a run that supersedes any in-flight one and queues it.
func (s *Session) startRun(ctx context.Context, ref acquire.ImageRef) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.cancelRun != nil {
		s.logger.Info("superseding extraction", "run_id", s.runID)
		s.cancelRun()
	}
	runID := s.newRunID()
	runCtx, cancel := context.WithCancel(s.base)
	s.runID, s.cancelRun = runID, cancel
	s.inflight.Add(1)
	s.store.Dispatch(scan.ImageAcquired{Image: ref})
	s.store.Dispatch(scan.ExtractionStarted{RunID: runID})
	s.mu.Unlock()

	log := common.LoggerWith(ctx, s.logger).With("run_id", runID)
	s.recordStart(runID, ref, log)

	job := async.Job{RunID: runID, Image: ref}
	if err := s.queue.Enqueue(runCtx, job); err != nil {
		log.Error("could not queue extraction", "error", err)
		s.finishRun(job, extract.Result{}, &extract.ExtractionError{
			Reason: constants.ExtractionFailedMessage, Stage: "queue", Cause: err,
		})
		s.inflight.Done()
		return fmt.Errorf("queue extraction: %w", err)
	}
	log.Info("extraction queued", "path", ref.Path)
	return nil
}

// runExtraction is the queue handler. It runs once per queued job.
func (s *Session) runExtraction(ctx context.Context, job async.Job) {
	defer s.inflight.Done()
	if err := ctx.Err(); err != nil {
		s.finishRun(job, extract.Result{}, err)
		return
	}
	res, err := s.extractor.Extract(common.WithRunID(ctx, job.RunID), job.Image)
	s.finishRun(job, res, err)
}

func (s *Session) finishRun(job async.Job, res extract.Result, err error) {
	log := s.logger.With("run_id", job.RunID)

	var ev scan.Event
	status, errMsg := constants.StatusSucceeded, ""
	if err != nil {
		ev = scan.ExtractionFailed{RunID: job.RunID, Reason: failureReason(err)}
		status, errMsg = constants.StatusFailed, err.Error()
	} else {
		ev = scan.ExtractionSucceeded{RunID: job.RunID, Text: res.Text}
	}

	historyStatus := string(status)
	if !s.store.Dispatch(ev) {
		s.metrics.StaleDiscarded()
		log.Info("discarding result of superseded run", "outcome", status)
		historyStatus = repository.StatusSuperseded
	}

	s.mu.Lock()
	if s.runID == job.RunID && s.cancelRun != nil {
		s.cancelRun()
		s.cancelRun = nil
	}
	s.mu.Unlock()

	s.recordFinish(job.RunID, historyStatus, res.Engine, res.Text, errMsg, log)
}

// failureReason is the user-visible text for a failed run. Causes are never shown.
func failureReason(err error) string {
	var xe *extract.ExtractionError
	if errors.As(err, &xe) && xe.Reason != "" {
		return xe.Reason
	}
	return constants.ExtractionFailedMessage
}

// Export renders the displayed text and shares it. It refuses while extracting
// or when there is no recognized text. When only sharing fails the rendered
// artifact is returned together with the error.
func (s *Session) Export(ctx context.Context) (export.Artifact, error) {
	st := s.store.Snapshot()
	if st.Status != constants.StatusSucceeded || strings.TrimSpace(st.Text) == "" {
		return export.Artifact{}, common.NewAppError("NOTHING_TO_EXPORT",
			fmt.Sprintf("status %s has no text to export", st.Status), common.ErrNothingToExport)
	}
	a, err := s.exporter.Export(common.WithRunID(ctx, st.RunID), st.Text)
	if err != nil {
		notice := constants.ExportFailedMessage
		var xe *export.ExportError
		if errors.As(err, &xe) {
			notice = xe.Notice()
		}
		s.store.Dispatch(scan.NoticeRaised{Message: notice})
	}
	// a failed share still leaves a rendered document behind
	if a.Path != "" {
		s.recordExport(ctx, st.RunID, a)
	}
	return a, err
}

func (s *Session) recordExport(ctx context.Context, runID string, a export.Artifact) {
	if s.exports == nil {
		return
	}
	rec := repository.ExportRecord{
		ID:        a.ID.String(),
		RunID:     runID,
		Format:    string(a.Format),
		Path:      a.Path,
		MIMEType:  a.Descriptor.MIMEType,
		Size:      a.Size,
		CreatedAt: a.CreatedAt,
	}
	if err := s.exports.Record(ctx, rec); err != nil {
		s.logger.Warn("could not record export", "artifact_id", rec.ID, "error", err)
	}
}

// Wait blocks until every started run has finished or ctx ends.
func (s *Session) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() { defer close(done); s.inflight.Wait() }()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels the in-flight run, stops accepting acquisitions and drains the queue.
func (s *Session) Close(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.stopBase()
	s.queue.Shutdown(ctx)
}

func (s *Session) recordStart(runID string, ref acquire.ImageRef, log *slog.Logger) {
	if s.scans == nil {
		return
	}
	err := s.scans.Start(s.base, repository.Scan{
		RunID:     runID,
		Source:    string(ref.Source),
		ImagePath: ref.Path,
		ImageHash: ref.Hash,
		Status:    string(constants.StatusExtracting),
	})
	if err != nil {
		log.Warn("could not record scan", "error", err)
	}
}

func (s *Session) recordFinish(runID, status, engine, text, errMsg string, log *slog.Logger) {
	if s.scans == nil {
		return
	}
	// the base context may already be cancelled by Close
	if err := s.scans.Finish(context.WithoutCancel(s.base), runID, status, engine, text, errMsg); err != nil {
		log.Warn("could not finish scan record", "error", err)
	}
}
