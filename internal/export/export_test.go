package export

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/scansmart/constants"
	"github.com/joseph-ayodele/scansmart/internal/common"
)

func TestPreTemplateEscapes(t *testing.T) {
	out, err := PreTemplate{}.Wrap(`a < b & "c"`)
	require.NoError(t, err)
	assert.Equal(t, "<html><body><pre>a &lt; b &amp; &#34;c&#34;</pre></body></html>", out)
}

func TestMarkdownTemplate(t *testing.T) {
	out, err := NewMarkdownTemplate().Wrap("# Title\n\nsome *text*")
	require.NoError(t, err)
	assert.Contains(t, out, "<h1>Title</h1>")
	assert.Contains(t, out, "<em>text</em>")
	assert.Equal(t, "markdown", TemplateFor("markdown").Name())
	assert.Equal(t, "pre", TemplateFor("anything").Name())
}

func TestMarkupLines(t *testing.T) {
	lines, err := markupLines("<html><body><pre>HELLO WORLD\n  indented\n\nlast</pre></body></html>")
	require.NoError(t, err)
	assert.Equal(t, []string{"HELLO WORLD", "  indented", "", "last"}, lines)

	lines, err = markupLines("<h1>Title</h1>\n<p>one <em>two</em>\n three</p><ul><li>x</li><li>y</li></ul>")
	require.NoError(t, err)
	assert.Equal(t, []string{"Title", "one two three", "x", "y"}, lines)

	lines, err = markupLines("<html><body><pre></pre></body></html>")
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestPDFRendererWritesText(t *testing.T) {
	r := NewPDFRenderer(t.TempDir(), WithCompression(false))
	markup, _ := PreTemplate{}.Wrap("HELLO WORLD")

	a, err := r.RenderToFile(context.Background(), markup)
	require.NoError(t, err)
	assert.Equal(t, ".pdf", a.Descriptor.FileType)
	assert.Equal(t, "application/pdf", a.Descriptor.MIMEType)

	body, err := os.ReadFile(a.Path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(body, []byte("%PDF")))
	assert.Contains(t, string(body), "HELLO WORLD")
	assert.Equal(t, int64(len(body)), a.Size)
}

func TestPDFRendererRefusesTextOutsideCoreFont(t *testing.T) {
	dir := t.TempDir()
	svc := NewService(nil, NewPDFRenderer(dir, WithCompression(false)), nil, nil, nil)

	_, err := svc.Export(context.Background(), "Привет мир 你好")
	require.Error(t, err)
	assert.ErrorIs(t, err, errUnencodable)
	assert.ErrorIs(t, err, common.ErrExportFailed)
	var xe *ExportError
	require.True(t, errors.As(err, &xe))
	assert.Equal(t, "render", xe.Stage)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPDFRendererKeepsWesternEuropeanText(t *testing.T) {
	r := NewPDFRenderer(t.TempDir(), WithCompression(false))
	markup, _ := PreTemplate{}.Wrap("café costs €5")

	a, err := r.RenderToFile(context.Background(), markup)
	require.NoError(t, err)
	body, err := os.ReadFile(a.Path)
	require.NoError(t, err)
	assert.Contains(t, string(body), "caf\xe9 costs \x805")
}

func TestPDFRendererUTF8Font(t *testing.T) {
	var font string
	for _, p := range []string{
		"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
		"/usr/share/fonts/dejavu/DejaVuSans.ttf",
		"/usr/share/fonts/TTF/DejaVuSans.ttf",
		"/Library/Fonts/Arial Unicode.ttf",
	} {
		if _, err := os.Stat(p); err == nil {
			font = p
			break
		}
	}
	if font == "" {
		t.Skip("no unicode TrueType font installed")
	}
	r := NewPDFRenderer(t.TempDir(), WithUTF8Font(font))
	markup, _ := PreTemplate{}.Wrap("Привет мир")

	a, err := r.RenderToFile(context.Background(), markup)
	require.NoError(t, err)
	assert.Positive(t, a.Size)
}

func TestPDFRendererMissingFont(t *testing.T) {
	r := NewPDFRenderer(t.TempDir(), WithUTF8Font(filepath.Join(t.TempDir(), "missing.ttf")))
	markup, _ := PreTemplate{}.Wrap("text")

	_, err := r.RenderToFile(context.Background(), markup)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestXLSXRenderer(t *testing.T) {
	r := NewXLSXRenderer(t.TempDir())
	markup, _ := PreTemplate{}.Wrap("first\nsecond")

	a, err := r.RenderToFile(context.Background(), markup)
	require.NoError(t, err)
	f, err := excelize.OpenFile(a.Path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(xlsxSheet)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Line", "Text"}, {"1", "first"}, {"2", "second"}}, rows)
}

type memSharer struct {
	shared []Artifact
	err    error
}

func (s *memSharer) Share(_ context.Context, a Artifact) error {
	s.shared = append(s.shared, a)
	return s.err
}

func TestExportTwiceYieldsDistinctArtifacts(t *testing.T) {
	sharer := &memSharer{}
	svc := NewService(PreTemplate{}, NewHTMLRenderer(t.TempDir()), sharer, nil, nil)
	ctx := context.Background()

	first, err := svc.Export(ctx, "same text")
	require.NoError(t, err)
	second, err := svc.Export(ctx, "same text")
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.NotEqual(t, first.Path, second.Path)
	a, _ := os.ReadFile(first.Path)
	b, _ := os.ReadFile(second.Path)
	assert.Equal(t, a, b)
	assert.Len(t, sharer.shared, 2)
}

type failingRenderer struct{ panics bool }

func (failingRenderer) Format() constants.ExportFormat { return constants.ExportPDF }

func (r failingRenderer) RenderToFile(context.Context, string) (Artifact, error) {
	if r.panics {
		panic("renderer blew up")
	}
	return Artifact{}, errors.New("disk full")
}

func TestExportFailuresAreExportErrors(t *testing.T) {
	for name, r := range map[string]failingRenderer{"error": {}, "panic": {panics: true}} {
		t.Run(name, func(t *testing.T) {
			svc := NewService(nil, r, &memSharer{}, nil, nil)
			_, err := svc.Export(context.Background(), "text")
			require.ErrorIs(t, err, common.ErrExportFailed)
			var xe *ExportError
			require.True(t, errors.As(err, &xe))
			assert.Equal(t, "render", xe.Stage)
			assert.Equal(t, constants.ExportFailedMessage, xe.Notice())
		})
	}
}

func TestExportShareFailureKeepsArtifact(t *testing.T) {
	svc := NewService(nil, NewHTMLRenderer(t.TempDir()), &memSharer{err: errors.New("no target")}, nil, nil)
	a, err := svc.Export(context.Background(), "text")
	require.ErrorIs(t, err, common.ErrExportFailed)
	assert.FileExists(t, a.Path)
}

func TestDirectorySharer(t *testing.T) {
	outbox := filepath.Join(t.TempDir(), "outbox")
	svc := NewService(nil, NewHTMLRenderer(t.TempDir()), DirectorySharer{Outbox: outbox}, nil, nil)

	a, err := svc.Export(context.Background(), "HELLO WORLD")
	require.NoError(t, err)
	body, err := os.ReadFile(filepath.Join(outbox, filepath.Base(a.Path)))
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "HELLO WORLD"))
}

type recordRunner struct{ args []string }

func (r *recordRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	r.args = append([]string{name}, args...)
	return nil, nil, nil
}

func TestCommandSharer(t *testing.T) {
	rr := &recordRunner{}
	err := CommandSharer{Command: "xdg-open", Runner: rr}.Share(context.Background(), Artifact{Path: "/tmp/x.pdf"})
	require.NoError(t, err)
	assert.Equal(t, []string{"xdg-open", "/tmp/x.pdf"}, rr.args)
}

func TestRendererFor(t *testing.T) {
	r, err := RendererFor(constants.ExportXLSX, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, constants.ExportXLSX, r.Format())

	_, err = RendererFor("docx", t.TempDir())
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}
