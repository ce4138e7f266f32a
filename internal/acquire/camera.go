package acquire

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/scansmart/internal/common"
	"github.com/joseph-ayodele/scansmart/internal/runner"
)

// CommandCamera captures through an external program such as fswebcam,
// imagesnap or libcamera-still. The output path is appended as the last
// argument. A run that leaves no file behind counts as a cancellation.
type CommandCamera struct {
	command []string
	outDir  string
	runner  runner.Runner
	logger  *slog.Logger
}

func NewCommandCamera(command []string, outDir string, r runner.Runner, logger *slog.Logger) *CommandCamera {
	if logger == nil {
		logger = slog.Default()
	}
	if r == nil {
		r = runner.Exec{Logger: logger}
	}
	return &CommandCamera{command: command, outDir: outDir, runner: r, logger: logger}
}

func (c *CommandCamera) Capture(ctx context.Context) (string, error) {
	if len(c.command) == 0 {
		return "", errors.New("camera command not configured")
	}
	if err := os.MkdirAll(c.outDir, 0o755); err != nil {
		return "", err
	}
	out := filepath.Join(c.outDir, fmt.Sprintf("capture-%s-%s.jpg", time.Now().UTC().Format("20060102T150405"), uuid.NewString()[:8]))

	args := append(append([]string{}, c.command[1:]...), out)
	_, errb, err := c.runner.Run(ctx, c.command[0], args...)
	if ctx.Err() != nil {
		return "", common.ErrAcquisitionCancelled
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w (%s)", c.command[0], err, runner.Truncate(string(errb), 512))
	}
	st, err := os.Stat(out)
	if err != nil || st.Size() == 0 {
		c.logger.Info("camera produced no image", "cmd", c.command[0])
		_ = os.Remove(out)
		return "", common.ErrAcquisitionCancelled
	}
	return out, nil
}
