package common

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DB_URL", "")
	t.Setenv("OCR_LANG", "")
	t.Setenv("OCR_TIMEOUT", "not-a-duration")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := LoadConfig()
	assert.Equal(t, "eng", cfg.OCR.Language)
	assert.Equal(t, 2*time.Minute, cfg.OCR.Timeout)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, "pdf", cfg.Export.Format)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("OCR_WORKERS", "4")
	t.Setenv("CAMERA_COMMAND", "libcamera-still -n -o")
	t.Setenv("OCR_TSV_CONFIDENCE", "true")

	cfg := LoadConfig()
	assert.Equal(t, 4, cfg.OCR.Workers)
	assert.Equal(t, []string{"libcamera-still", "-n", "-o"}, cfg.Acquire.CameraCommand)
	assert.True(t, cfg.OCR.TSVConfidence)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := LoadConfig()
	cfg.Export.Format = "docx"
	cfg.Acquire.CameraAccess = "maybe"
	cfg.OCR.Workers = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidInput)
	var appErr *AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "CONFIG_ERROR", appErr.Code)
	assert.Contains(t, err.Error(), "EXPORT_FORMAT")
	assert.Contains(t, err.Error(), "SCANSMART_CAMERA_ACCESS")
	assert.Contains(t, err.Error(), "OCR_WORKERS")
}

func TestValidateDriverOnlyWithHistory(t *testing.T) {
	cfg := LoadConfig()
	cfg.Database.Driver = "mysql"
	cfg.Database.DSN = ""
	assert.NoError(t, cfg.Validate())

	cfg.Database.DSN = "file:scans.db"
	assert.Error(t, cfg.Validate())
}

func TestValidatorRules(t *testing.T) {
	v := NewValidator().
		Field("name", " ", Required).
		Field("lang", "abcdef", MaxLength(3)).
		Field("run", "not-a-uuid", UUID).
		Field("ok", "6f1c1f7e-8f0e-4c43-9a55-0a1d2c3b4e5f", UUID)

	require.Len(t, v.Errors(), 3)
	assert.Equal(t, "name", v.Errors()[0].Field)
	assert.Equal(t, "lang", v.Errors()[1].Field)
	assert.Equal(t, "run", v.Errors()[2].Field)
	assert.Error(t, v.Error())
	assert.NoError(t, NewValidator().Field("x", "y", Required).Error())
}

func TestToStatus(t *testing.T) {
	cases := []struct {
		err  error
		code codes.Code
	}{
		{NewAppError("DENIED", "camera", ErrPermissionDenied), codes.PermissionDenied},
		{fmt.Errorf("pick: %w", ErrAcquisitionCancelled), codes.Canceled},
		{NewAppError("NOTHING_TO_EXPORT", "idle", ErrNothingToExport), codes.FailedPrecondition},
		{NewAppError("GALLERY_ERROR", "outside", ErrInvalidInput), codes.InvalidArgument},
		{NewAppError("SCAN", "missing", ErrNotFound), codes.NotFound},
		{errors.New("boom"), codes.Internal},
		{status.Error(codes.Unavailable, "down"), codes.Unavailable},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.code, status.Code(ToStatus(tc.err)), tc.err.Error())
	}
	assert.NoError(t, ToStatus(nil))
}

func TestContextValues(t *testing.T) {
	ctx := WithRunID(WithRequestID(context.Background(), "req-1"), "run-1")
	assert.Equal(t, "req-1", RequestIDFromContext(ctx))
	assert.Equal(t, "run-1", RunIDFromContext(ctx))
	assert.Empty(t, RunIDFromContext(context.Background()))
	assert.NotNil(t, LoggerWith(ctx, nil))
}
