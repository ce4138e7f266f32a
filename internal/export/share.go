package export

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joseph-ayodele/scansmart/internal/runner"
)

// Sharer hands a finished artifact to whatever the user shares documents with.
type Sharer interface {
	Share(ctx context.Context, a Artifact) error
}

// DirectorySharer copies artifacts into an outbox directory.
type DirectorySharer struct {
	Outbox string
}

func (s DirectorySharer) Share(ctx context.Context, a Artifact) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.Outbox, 0o755); err != nil {
		return fmt.Errorf("create outbox: %w", err)
	}
	src, err := os.Open(a.Path)
	if err != nil {
		return fmt.Errorf("open artifact: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(filepath.Join(s.Outbox, filepath.Base(a.Path)))
	if err != nil {
		return fmt.Errorf("create outbox copy: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("copy artifact: %w", err)
	}
	return dst.Close()
}

// CommandSharer opens the artifact with an external command such as xdg-open.
type CommandSharer struct {
	Command string
	Runner  runner.Runner
}

func (s CommandSharer) Share(ctx context.Context, a Artifact) error {
	_, stderr, err := s.Runner.Run(ctx, s.Command, a.Path)
	if err != nil {
		return fmt.Errorf("%s: %w (stderr=%s)", s.Command, err, runner.Truncate(string(stderr), 300))
	}
	return nil
}

// LogSharer only records that the artifact is ready.
type LogSharer struct {
	Logger *slog.Logger
}

func (s LogSharer) Share(_ context.Context, a Artifact) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("artifact ready to share",
		"artifact_id", a.ID.String(),
		"path", a.Path,
		"uti", a.Descriptor.FileType,
		"mime", a.Descriptor.MIMEType,
		"size", a.Size,
	)
	return nil
}
