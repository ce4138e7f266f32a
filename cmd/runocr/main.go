package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/scansmart/internal/app"
	"github.com/joseph-ayodele/scansmart/internal/common"
	"github.com/joseph-ayodele/scansmart/internal/permission"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if len(os.Args) != 2 {
		logger.Error("usage", "cmd", "runocr <image-path>")
		os.Exit(2)
	}
	path, err := filepath.Abs(os.Args[1])
	if err != nil {
		logger.Error("invalid image path", "arg", os.Args[1], "error", err)
		os.Exit(2)
	}

	cfg := common.LoadConfig()
	cfg.Acquire.GalleryDir = filepath.Dir(path)
	cfg.Acquire.GalleryAccess = permission.PolicyGranted
	cfg.Database.DSN = ""
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.OCR.Timeout)
	defer cancel()

	a, err := app.Build(ctx, cfg, nil, logger)
	if err != nil {
		logger.Error("build", "error", err)
		os.Exit(1)
	}
	defer a.Close(context.Background())

	res, err := a.Acquirer.PickFromGallery(ctx, filepath.Base(path))
	if err != nil {
		logger.Error("open image", "path", path, "error", err)
		os.Exit(1)
	}

	start := time.Now()
	out, err := a.Pipeline.Extract(ctx, res.Image)
	dur := time.Since(start)
	if err != nil {
		logger.Error("text extraction failed", "error", err, "duration_ms", dur.Milliseconds())
		os.Exit(1)
	}

	logger.Info("text extraction OK",
		"engine", out.Engine,
		"confidence", out.Confidence,
		"cached", out.Cached,
		"bytes", len(out.Text),
		"duration_ms", dur.Milliseconds(),
	)
	fmt.Println(out.Text)
}
