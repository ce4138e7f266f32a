package session

import (
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/scansmart/constants"
	"github.com/joseph-ayodele/scansmart/internal/acquire"
	"github.com/joseph-ayodele/scansmart/internal/common"
	"github.com/joseph-ayodele/scansmart/internal/export"
	"github.com/joseph-ayodele/scansmart/internal/extract"
	"github.com/joseph-ayodele/scansmart/internal/metrics"
	"github.com/joseph-ayodele/scansmart/internal/ocr/ocrtest"
	"github.com/joseph-ayodele/scansmart/internal/permission"
	"github.com/joseph-ayodele/scansmart/internal/repository"
	"github.com/joseph-ayodele/scansmart/internal/scan"
)

func writePNG(t *testing.T, path string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, image.NewGray(image.Rect(0, 0, 4, 4))))
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name {
			return mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	return 0
}

// stillCamera "captures" a file that already exists.
type stillCamera struct{ path string }

func (c stillCamera) Capture(context.Context) (string, error) {
	if c.path == "" {
		return "", common.ErrAcquisitionCancelled
	}
	return c.path, nil
}

type fixture struct {
	dir     string
	gallery *acquire.DirectoryGallery
	factory *ocrtest.Factory
	outDir  string
}

func newFixture(t *testing.T, names ...string) *fixture {
	t.Helper()
	dir := t.TempDir()
	for _, n := range names {
		writePNG(t, filepath.Join(dir, n))
	}
	g, err := acquire.NewDirectoryGallery(dir)
	require.NoError(t, err)
	return &fixture{dir: dir, gallery: g, factory: ocrtest.NewFactory(), outDir: t.TempDir()}
}

func (f *fixture) session(t *testing.T, gate permission.Gate, cam acquire.Camera, opts ...Option) *Session {
	t.Helper()
	a := acquire.NewAcquirer(gate, cam, f.gallery, nil, acquire.Config{ArtifactCacheDir: t.TempDir()}, nil)
	exp := export.NewService(export.PreTemplate{}, export.NewPDFRenderer(f.outDir, export.WithCompression(false)), nil, nil, nil)
	s := New(a, extract.NewPipeline(f.factory, nil), exp, nil, opts...)
	t.Cleanup(func() { s.Close(context.Background()) })
	return s
}

func (f *fixture) path(name string) string { return filepath.Join(f.dir, name) }

func wait(t *testing.T, s *Session) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Wait(ctx))
}

func TestPickExtractExport(t *testing.T) {
	f := newFixture(t, "note.png")
	f.factory.Texts[f.path("note.png")] = "HELLO WORLD"
	s := f.session(t, permission.Static(permission.Granted), nil)
	ctx := context.Background()

	res, err := s.PickImage(ctx, "note.png")
	require.NoError(t, err)
	require.False(t, res.Cancelled())
	wait(t, s)

	st := s.State()
	assert.Equal(t, constants.StatusSucceeded, st.Status)
	assert.Equal(t, "HELLO WORLD", st.Text)
	assert.Equal(t, f.path("note.png"), st.Image.Path)

	a, err := s.Export(ctx)
	require.NoError(t, err)
	body, err := os.ReadFile(a.Path)
	require.NoError(t, err)
	assert.Contains(t, string(body), "HELLO WORLD")
	assert.Equal(t, "application/pdf", a.Descriptor.MIMEType)
}

func TestEachAcquisitionStartsExactlyOneRun(t *testing.T) {
	f := newFixture(t, "a.png", "b.png")
	s := f.session(t, permission.Static(permission.Granted), nil)
	ctx := context.Background()

	_, err := s.PickImage(ctx, "a.png")
	require.NoError(t, err)
	wait(t, s)
	assert.Equal(t, 1, f.factory.Created())

	_, err = s.PickImage(ctx, "b.png")
	require.NoError(t, err)
	wait(t, s)
	assert.Equal(t, 2, f.factory.Created())
	assert.Equal(t, []string{f.path("a.png"), f.path("b.png")}, f.factory.Recognized())
	assert.Equal(t, f.path("b.png"), s.State().Image.Path)
}

func TestExtractingShownBeforeResult(t *testing.T) {
	f := newFixture(t, "a.png")
	release := f.factory.Gate(f.path("a.png"))
	s := f.session(t, permission.Static(permission.Granted), nil)

	var mu sync.Mutex
	var seen []constants.ExtractionStatus
	s.Subscribe(func(st scan.State) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, st.Status)
	})

	_, err := s.PickImage(context.Background(), "a.png")
	require.NoError(t, err)
	st := s.State()
	assert.Equal(t, constants.StatusExtracting, st.Status)
	assert.Equal(t, constants.ExtractingMessage, st.Text)

	close(release)
	wait(t, s)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []constants.ExtractionStatus{
		constants.StatusIdle, // image acquired
		constants.StatusExtracting,
		constants.StatusSucceeded,
	}, seen)
}

func TestCameraDeniedChangesNothing(t *testing.T) {
	f := newFixture(t, "a.png")
	f.factory.Texts[f.path("a.png")] = "first scan"
	gate := permission.NewPolicyGate(permission.PolicyDenied, permission.PolicyGranted, nil, nil)
	s := f.session(t, gate, stillCamera{path: f.path("a.png")})
	ctx := context.Background()

	_, err := s.PickImage(ctx, "a.png")
	require.NoError(t, err)
	wait(t, s)
	before := s.State()

	_, err = s.TakePhoto(ctx)
	require.ErrorIs(t, err, common.ErrPermissionDenied)
	wait(t, s)

	after := s.State()
	assert.Equal(t, before.Image, after.Image)
	assert.Equal(t, before.Text, after.Text)
	assert.Equal(t, before.Status, after.Status)
	assert.Equal(t, before.RunID, after.RunID)
	assert.Equal(t, constants.CameraDeniedMessage, after.Notice)
	assert.Equal(t, 1, f.factory.Created())

	s.ClearNotice()
	assert.Empty(t, s.State().Notice)
}

func TestGalleryDeniedFromIdle(t *testing.T) {
	f := newFixture(t, "a.png")
	s := f.session(t, permission.Static(permission.Denied), nil)

	_, err := s.PickImage(context.Background(), "a.png")
	require.ErrorIs(t, err, common.ErrPermissionDenied)

	st := s.State()
	assert.Equal(t, constants.StatusIdle, st.Status)
	assert.True(t, st.Image.IsZero())
	assert.Empty(t, st.Text)
	assert.Equal(t, constants.GalleryDeniedMessage, st.Notice)
	assert.Equal(t, 0, f.factory.Created())
}

func TestCancelledCaptureChangesNothing(t *testing.T) {
	f := newFixture(t)
	s := f.session(t, permission.Static(permission.Granted), stillCamera{})

	res, err := s.TakePhoto(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Cancelled())
	assert.Equal(t, scan.Initial(), s.State())
	assert.Equal(t, 0, f.factory.Created())
}

func TestTakePhotoRunsExtraction(t *testing.T) {
	f := newFixture(t, "shot.png")
	f.factory.Default = "from camera"
	s := f.session(t, permission.Static(permission.Granted), stillCamera{path: f.path("shot.png")})

	_, err := s.TakePhoto(context.Background())
	require.NoError(t, err)
	wait(t, s)
	assert.Equal(t, "from camera", s.State().Text)
	assert.Equal(t, permission.Camera, s.State().Image.Source)
}

func TestRecognizeFailureShowsGenericMessage(t *testing.T) {
	f := newFixture(t, "a.png")
	f.factory.FailAt = ocrtest.StageRecognize
	s := f.session(t, permission.Static(permission.Granted), nil)

	_, err := s.PickImage(context.Background(), "a.png")
	require.NoError(t, err)
	wait(t, s)

	st := s.State()
	assert.Equal(t, constants.StatusFailed, st.Status)
	assert.Equal(t, constants.ExtractionFailedMessage, st.Text)
	assert.Equal(t, 1, f.factory.Terminated())
}

func TestSupersededRunIsCancelledAndDiscarded(t *testing.T) {
	f := newFixture(t, "first.png", "second.png")
	f.factory.Texts[f.path("first.png")] = "first"
	f.factory.Texts[f.path("second.png")] = "second"
	f.factory.Gate(f.path("first.png"))
	reg := prometheus.NewRegistry()
	s := f.session(t, permission.Static(permission.Granted), nil, WithMetrics(metrics.NewRecorder(reg)))
	ctx := context.Background()

	_, err := s.PickImage(ctx, "first.png")
	require.NoError(t, err)
	_, err = s.PickImage(ctx, "second.png")
	require.NoError(t, err)
	wait(t, s)

	st := s.State()
	assert.Equal(t, constants.StatusSucceeded, st.Status)
	assert.Equal(t, "second", st.Text)
	assert.Equal(t, f.path("second.png"), st.Image.Path)
	assert.Equal(t, f.factory.Created(), f.factory.Terminated())
	assert.Equal(t, 1.0, counterValue(t, reg, "scansmart_stale_results_discarded_total"))
}

// stubbornExtractor ignores cancellation and finishes whenever its gate opens.
type stubbornExtractor struct {
	started chan string
	gates   map[string]chan struct{}
}

func (e *stubbornExtractor) Extract(_ context.Context, ref acquire.ImageRef) (extract.Result, error) {
	e.started <- filepath.Base(ref.Path)
	if g := e.gates[filepath.Base(ref.Path)]; g != nil {
		<-g
	}
	return extract.Result{Text: "text of " + filepath.Base(ref.Path), Engine: "stub"}, nil
}

func TestLateResultOfOlderRunIsDropped(t *testing.T) {
	f := newFixture(t, "first.png", "second.png")
	release := make(chan struct{})
	ex := &stubbornExtractor{started: make(chan string, 2), gates: map[string]chan struct{}{"first.png": release}}
	a := acquire.NewAcquirer(permission.Static(permission.Granted), nil, f.gallery, nil, acquire.Config{ArtifactCacheDir: t.TempDir()}, nil)
	s := New(a, ex, nil, nil, WithQueue())
	defer s.Close(context.Background())
	ctx := context.Background()

	_, err := s.PickImage(ctx, "first.png")
	require.NoError(t, err)
	assert.Equal(t, "first.png", <-ex.started)

	_, err = s.PickImage(ctx, "second.png")
	require.NoError(t, err)
	assert.Equal(t, "second.png", <-ex.started)

	require.Eventually(t, func() bool { return s.State().Status == constants.StatusSucceeded }, 5*time.Second, 5*time.Millisecond)
	close(release)
	wait(t, s)

	st := s.State()
	assert.Equal(t, "text of second.png", st.Text)
	assert.Equal(t, f.path("second.png"), st.Image.Path)
}

func TestExportGuard(t *testing.T) {
	f := newFixture(t, "a.png", "blank.png")
	f.factory.Texts[f.path("blank.png")] = "  "
	release := f.factory.Gate(f.path("a.png"))
	s := f.session(t, permission.Static(permission.Granted), nil)
	ctx := context.Background()

	_, err := s.Export(ctx)
	assert.ErrorIs(t, err, common.ErrNothingToExport)

	_, err = s.PickImage(ctx, "a.png")
	require.NoError(t, err)
	_, err = s.Export(ctx)
	assert.ErrorIs(t, err, common.ErrNothingToExport)
	close(release)
	wait(t, s)

	_, err = s.PickImage(ctx, "blank.png")
	require.NoError(t, err)
	wait(t, s)
	_, err = s.Export(ctx)
	assert.ErrorIs(t, err, common.ErrNothingToExport)
}

type brokenExporter struct{}

func (brokenExporter) Export(context.Context, string) (export.Artifact, error) {
	return export.Artifact{}, &export.ExportError{Stage: "render", Cause: errors.New("no space left")}
}

func TestExportFailureRaisesNotice(t *testing.T) {
	f := newFixture(t, "a.png")
	f.factory.Default = "text"
	a := acquire.NewAcquirer(permission.Static(permission.Granted), nil, f.gallery, nil, acquire.Config{}, nil)
	s := New(a, extract.NewPipeline(f.factory, nil), brokenExporter{}, nil)
	defer s.Close(context.Background())
	ctx := context.Background()

	_, err := s.PickImage(ctx, "a.png")
	require.NoError(t, err)
	wait(t, s)

	_, err = s.Export(ctx)
	require.ErrorIs(t, err, common.ErrExportFailed)
	st := s.State()
	assert.Equal(t, constants.ExportFailedMessage, st.Notice)
	assert.Equal(t, "text", st.Text)
}

func TestHistoryIsRecorded(t *testing.T) {
	ctx := context.Background()
	db, err := repository.Open(ctx, repository.Config{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "h.db")}, nil)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.Migrate(ctx))
	scans := repository.NewScanRepository(db, nil)
	exports := repository.NewExportRepository(db, nil)

	f := newFixture(t, "a.png")
	f.factory.Default = "HELLO WORLD"
	s := f.session(t, permission.Static(permission.Granted), nil, WithHistory(scans, exports))

	_, err = s.PickImage(ctx, "a.png")
	require.NoError(t, err)
	wait(t, s)
	a, err := s.Export(ctx)
	require.NoError(t, err)

	runID := s.State().RunID
	rec, err := scans.Get(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, string(constants.StatusSucceeded), rec.Status)
	assert.Equal(t, "HELLO WORLD", rec.Text)
	assert.Equal(t, "GALLERY", rec.Source)

	exps, err := exports.ListByRun(ctx, runID)
	require.NoError(t, err)
	require.Len(t, exps, 1)
	assert.Equal(t, a.ID.String(), exps[0].ID)
}

type refusingSharer struct{}

func (refusingSharer) Share(context.Context, export.Artifact) error { return errors.New("outbox is read-only") }

func TestShareFailureKeepsAndRecordsArtifact(t *testing.T) {
	ctx := context.Background()
	db, err := repository.Open(ctx, repository.Config{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "h.db")}, nil)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.Migrate(ctx))
	exports := repository.NewExportRepository(db, nil)

	f := newFixture(t, "a.png")
	f.factory.Default = "HELLO WORLD"
	acq := acquire.NewAcquirer(permission.Static(permission.Granted), nil, f.gallery, nil, acquire.Config{ArtifactCacheDir: t.TempDir()}, nil)
	exp := export.NewService(nil, export.NewPDFRenderer(f.outDir, export.WithCompression(false)), refusingSharer{}, nil, nil)
	s := New(acq, extract.NewPipeline(f.factory, nil), exp, nil, WithHistory(nil, exports))
	defer s.Close(ctx)

	_, err = s.PickImage(ctx, "a.png")
	require.NoError(t, err)
	wait(t, s)

	a, err := s.Export(ctx)
	require.ErrorIs(t, err, common.ErrExportFailed)
	require.NotEmpty(t, a.Path)
	assert.FileExists(t, a.Path)
	assert.Equal(t, constants.ExportFailedMessage, s.State().Notice)

	exps, err := exports.ListByRun(ctx, s.State().RunID)
	require.NoError(t, err)
	require.Len(t, exps, 1)
	assert.Equal(t, a.ID.String(), exps[0].ID)
}

func TestClosedSessionRejectsAcquisitions(t *testing.T) {
	f := newFixture(t, "a.png")
	s := f.session(t, permission.Static(permission.Granted), nil)
	s.Close(context.Background())

	_, err := s.PickImage(context.Background(), "a.png")
	assert.ErrorIs(t, err, ErrClosed)
}
