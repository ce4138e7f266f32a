package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/scansmart/constants"
)

// Artifact is one rendered document on disk. Every render produces a new one.
type Artifact struct {
	ID         uuid.UUID
	Path       string
	Format     constants.ExportFormat
	Descriptor constants.FileDescriptor
	Size       int64
	CreatedAt  time.Time
}

// Renderer writes markup to a new file in its output directory.
type Renderer interface {
	Format() constants.ExportFormat
	RenderToFile(ctx context.Context, markup string) (Artifact, error)
}

// output allocates a unique file for one render.
type output struct {
	dir string
	now func() time.Time
}

func newOutput(dir string) output {
	if dir == "" {
		dir = os.TempDir()
	}
	return output{dir: dir, now: time.Now}
}

func (o output) allocate(format constants.ExportFormat) (Artifact, error) {
	desc, ok := constants.DescriptorFor(format)
	if !ok {
		return Artifact{}, fmt.Errorf("unknown export format %q", format)
	}
	if err := os.MkdirAll(o.dir, 0o755); err != nil {
		return Artifact{}, fmt.Errorf("create export dir: %w", err)
	}
	id := uuid.New()
	return Artifact{
		ID:         id,
		Path:       filepath.Join(o.dir, "scansmart-"+id.String()+desc.FileType),
		Format:     format,
		Descriptor: desc,
		CreatedAt:  o.now().UTC(),
	}, nil
}

func (a Artifact) withSize() (Artifact, error) {
	st, err := os.Stat(a.Path)
	if err != nil {
		return Artifact{}, fmt.Errorf("stat artifact: %w", err)
	}
	a.Size = st.Size()
	return a, nil
}

// HTMLRenderer writes the markup unchanged.
type HTMLRenderer struct {
	out output
}

func NewHTMLRenderer(dir string) *HTMLRenderer {
	return &HTMLRenderer{out: newOutput(dir)}
}

func (*HTMLRenderer) Format() constants.ExportFormat { return constants.ExportHTML }

func (r *HTMLRenderer) RenderToFile(ctx context.Context, markup string) (Artifact, error) {
	if err := ctx.Err(); err != nil {
		return Artifact{}, err
	}
	a, err := r.out.allocate(constants.ExportHTML)
	if err != nil {
		return Artifact{}, err
	}
	if err := os.WriteFile(a.Path, []byte(markup), 0o644); err != nil {
		return Artifact{}, fmt.Errorf("write html: %w", err)
	}
	return a.withSize()
}
