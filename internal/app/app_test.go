package app

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/scansmart/constants"
	"github.com/joseph-ayodele/scansmart/internal/common"
)

func testConfig(t *testing.T) *common.Config {
	t.Helper()
	dir := t.TempDir()
	return &common.Config{
		Database: common.DatabaseConfig{Driver: "sqlite", DSN: filepath.Join(dir, "history.db")},
		OCR: common.OCRConfig{
			Engine: "cli", Tesseract: "tesseract", Language: "eng",
			Timeout: time.Minute, Workers: 1, QueueSize: 4,
		},
		Acquire: common.AcquireConfig{
			CameraAccess: "denied", GalleryAccess: "granted",
			GalleryDir: dir, ArtifactCacheDir: filepath.Join(dir, "cache"),
		},
		Export:   common.ExportConfig{Format: "html", Template: "markdown", OutputDir: filepath.Join(dir, "out"), Share: "log"},
		Cache:    common.CacheConfig{Backend: "memory", TTL: time.Hour},
		LogLevel: slog.LevelInfo,
	}
}

func TestBuild(t *testing.T) {
	ctx := context.Background()
	a, err := Build(ctx, testConfig(t), nil, nil)
	require.NoError(t, err)
	defer a.Close(ctx)

	require.NotNil(t, a.Session)
	require.NotNil(t, a.Scans)
	assert.Equal(t, constants.StatusIdle, a.Session.State().Status)

	_, err = a.Session.TakePhoto(ctx)
	assert.ErrorIs(t, err, common.ErrPermissionDenied)
	assert.Equal(t, constants.CameraDeniedMessage, a.Session.State().Notice)

	scans, err := a.Scans.ListRecent(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, scans)
}

func TestBuildRejectsUnknownEngine(t *testing.T) {
	cfg := testConfig(t)
	cfg.OCR.Engine = "abbyy"
	_, err := Build(context.Background(), cfg, nil, nil)
	assert.Error(t, err)
}

func TestBuildWithoutHistory(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.DSN = ""
	cfg.Cache.Backend = ""
	ctx := context.Background()
	a, err := Build(ctx, cfg, nil, nil)
	require.NoError(t, err)
	defer a.Close(ctx)
	assert.Nil(t, a.DB)
	assert.Nil(t, a.Scans)
}
