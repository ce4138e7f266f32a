// Package acquire obtains a single image from the camera or the gallery and
// turns it into a stable ImageRef for extraction and display.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/scansmart/constants"
	"github.com/joseph-ayodele/scansmart/internal/common"
	"github.com/joseph-ayodele/scansmart/internal/permission"
	"github.com/joseph-ayodele/scansmart/internal/runner"
)

// Outcome tags a CaptureResult.
type Outcome string

const (
	OutcomeCaptured  Outcome = "CAPTURED"
	OutcomeCancelled Outcome = "CANCELLED"
)

// ImageRef identifies an acquired image. Path stays valid for the process lifetime.
type ImageRef struct {
	Path       string
	Source     permission.Kind
	Format     string // decoder name: png, jpeg, gif, bmp, tiff, webp
	Hash       string // hex sha256 of the acquired file
	Size       int64
	Width      int
	Height     int
	AcquiredAt time.Time
}

// IsZero reports whether no image is referenced.
func (r ImageRef) IsZero() bool { return r.Path == "" }

// CaptureResult is produced by one acquisition and consumed once by extraction.
type CaptureResult struct {
	Outcome Outcome
	Image   ImageRef
}

func (r CaptureResult) Cancelled() bool { return r.Outcome == OutcomeCancelled }

func captured(ref ImageRef) CaptureResult {
	return CaptureResult{Outcome: OutcomeCaptured, Image: ref}
}

func cancelled() CaptureResult {
	return CaptureResult{Outcome: OutcomeCancelled}
}

// Camera captures one photo. Returning common.ErrAcquisitionCancelled means the user backed out.
type Camera interface {
	Capture(ctx context.Context) (path string, err error)
}

// Gallery resolves one user selection to a file. An empty selection is a cancellation.
type Gallery interface {
	Pick(ctx context.Context, selection string) (path string, err error)
}

type Config struct {
	HeicConverter    string
	ArtifactCacheDir string
}

type Acquirer struct {
	gate    permission.Gate
	camera  Camera
	gallery Gallery
	runner  runner.Runner
	cfg     Config
	logger  *slog.Logger
	now     func() time.Time
}

func NewAcquirer(gate permission.Gate, camera Camera, gallery Gallery, r runner.Runner, cfg Config, logger *slog.Logger) *Acquirer {
	if logger == nil {
		logger = slog.Default()
	}
	if r == nil {
		r = runner.Exec{Logger: logger}
	}
	if cfg.ArtifactCacheDir == "" {
		cfg.ArtifactCacheDir = "./tmp"
	}
	return &Acquirer{gate: gate, camera: camera, gallery: gallery, runner: r, cfg: cfg, logger: logger, now: time.Now}
}

// CaptureFromCamera asks the camera gate, then the camera collaborator.
func (a *Acquirer) CaptureFromCamera(ctx context.Context) (CaptureResult, error) {
	if err := a.checkAccess(ctx, permission.Camera); err != nil {
		return CaptureResult{}, err
	}
	if a.camera == nil {
		return CaptureResult{}, common.NewAppError("ACQUIRE_ERROR", "no camera configured", common.ErrInvalidInput)
	}
	path, err := a.camera.Capture(ctx)
	return a.finish(ctx, permission.Camera, path, err)
}

// PickFromGallery asks the gallery gate, then resolves selection through the gallery collaborator.
func (a *Acquirer) PickFromGallery(ctx context.Context, selection string) (CaptureResult, error) {
	if err := a.checkAccess(ctx, permission.Gallery); err != nil {
		return CaptureResult{}, err
	}
	if a.gallery == nil {
		return CaptureResult{}, common.NewAppError("ACQUIRE_ERROR", "no gallery configured", common.ErrInvalidInput)
	}
	path, err := a.gallery.Pick(ctx, selection)
	return a.finish(ctx, permission.Gallery, path, err)
}

func (a *Acquirer) checkAccess(ctx context.Context, kind permission.Kind) error {
	decision, err := a.gate.RequestAccess(ctx, kind)
	if err != nil {
		return fmt.Errorf("request %s access: %w", kind, err)
	}
	if decision != permission.Granted {
		a.logger.Info("acquisition blocked", "kind", kind)
		return &DeniedError{Kind: kind}
	}
	return nil
}

func (a *Acquirer) finish(ctx context.Context, kind permission.Kind, path string, err error) (CaptureResult, error) {
	if errors.Is(err, common.ErrAcquisitionCancelled) {
		a.logger.Info("acquisition cancelled", "kind", kind)
		return cancelled(), nil
	}
	if err != nil {
		return CaptureResult{}, fmt.Errorf("acquire from %s: %w", kind, err)
	}
	ref, err := a.resolve(ctx, path)
	if err != nil {
		return CaptureResult{}, err
	}
	ref.Source = kind
	a.logger.Info("image acquired", "kind", kind, "path", ref.Path, "format", ref.Format, "width", ref.Width, "height", ref.Height)
	return captured(ref), nil
}

// resolve converts HEIC when needed, validates the header and fingerprints the file.
func (a *Acquirer) resolve(ctx context.Context, path string) (ImageRef, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return ImageRef{}, err
	}
	ext := filepath.Ext(abs)
	if constants.MapExtToFormat(ext) == "" {
		return ImageRef{}, common.NewAppError("UNSUPPORTED_IMAGE", fmt.Sprintf("unsupported extension %q", ext), common.ErrInvalidInput)
	}
	hashHex, size, err := hashFile(abs)
	if err != nil {
		return ImageRef{}, fmt.Errorf("hash image: %w", err)
	}
	if constants.IsHEICExt(ext) {
		abs, err = convertHEICtoPNG(ctx, a.runner, a.logger, a.cfg.HeicConverter, abs, a.cfg.ArtifactCacheDir, hashHex)
		if err != nil {
			return ImageRef{}, err
		}
	}
	probe, err := probeImage(abs)
	if err != nil {
		return ImageRef{}, common.NewAppError("UNSUPPORTED_IMAGE", "not a readable image", err)
	}
	return ImageRef{
		Path:       abs,
		Format:     probe.format,
		Hash:       hashHex,
		Size:       size,
		Width:      probe.width,
		Height:     probe.height,
		AcquiredAt: a.now().UTC(),
	}, nil
}

// DeniedError carries which gate refused. It matches common.ErrPermissionDenied.
type DeniedError struct {
	Kind permission.Kind
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("%s access denied", e.Kind)
}

func (e *DeniedError) Is(target error) bool { return target == common.ErrPermissionDenied }

// Notice is the single user-visible alert for the denial.
func (e *DeniedError) Notice() string {
	if e.Kind == permission.Camera {
		return constants.CameraDeniedMessage
	}
	return constants.GalleryDeniedMessage
}
