package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/go-pdf/fpdf"

	"github.com/joseph-ayodele/scansmart/constants"
)

const (
	pdfFont       = "Courier"
	pdfUTF8Font   = "body"
	pdfFontSize   = 10
	pdfLineHeight = 5
	pdfMargin     = 15
)

var errUnencodable = errors.New("text cannot be encoded in the pdf font")

// PDFRenderer lays the markup's text out on A4 pages in a monospaced core font.
type PDFRenderer struct {
	out      output
	compress bool
	title    string
	fontFile string
}

type PDFOption func(*PDFRenderer)

// WithCompression toggles page stream compression. On by default.
func WithCompression(on bool) PDFOption {
	return func(r *PDFRenderer) { r.compress = on }
}

// WithUTF8Font renders with a TrueType font file instead of the cp1252 core
// font, so text in any script the font covers survives.
func WithUTF8Font(path string) PDFOption {
	return func(r *PDFRenderer) { r.fontFile = path }
}

func WithTitle(title string) PDFOption {
	return func(r *PDFRenderer) { r.title = title }
}

func NewPDFRenderer(dir string, opts ...PDFOption) *PDFRenderer {
	r := &PDFRenderer{out: newOutput(dir), compress: true, title: "Scanned text"}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (*PDFRenderer) Format() constants.ExportFormat { return constants.ExportPDF }

func (r *PDFRenderer) RenderToFile(ctx context.Context, markup string) (Artifact, error) {
	lines, err := markupLines(markup)
	if err != nil {
		return Artifact{}, err
	}
	if err := ctx.Err(); err != nil {
		return Artifact{}, err
	}
	a, err := r.out.allocate(constants.ExportPDF)
	if err != nil {
		return Artifact{}, err
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(r.compress)
	pdf.SetCreationDate(a.CreatedAt)
	pdf.SetModificationDate(a.CreatedAt)
	pdf.SetTitle(r.title, true)
	pdf.SetCreator("scansmart", true)
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(true, pdfMargin)
	pdf.AddPage()
	encode, err := r.setFont(pdf)
	if err != nil {
		return Artifact{}, err
	}
	for _, line := range lines {
		text, err := encode(expandTabs(line))
		if err != nil {
			return Artifact{}, err
		}
		pdf.MultiCell(0, pdfLineHeight, text, "", "L", false)
	}

	if err := pdf.OutputFileAndClose(a.Path); err != nil {
		return Artifact{}, fmt.Errorf("write pdf: %w", err)
	}
	return a.withSize()
}

// setFont selects the body font and returns the line encoder that goes with it.
func (r *PDFRenderer) setFont(pdf *fpdf.Fpdf) (func(string) (string, error), error) {
	if r.fontFile != "" {
		ttf, err := os.ReadFile(r.fontFile)
		if err != nil {
			return nil, fmt.Errorf("read pdf font: %w", err)
		}
		pdf.AddUTF8FontFromBytes(pdfUTF8Font, "", ttf)
		pdf.SetFont(pdfUTF8Font, "", pdfFontSize)
		if err := pdf.Error(); err != nil {
			return nil, fmt.Errorf("load pdf font %s: %w", r.fontFile, err)
		}
		return func(s string) (string, error) { return s, nil }, nil
	}

	pdf.SetFont(pdfFont, "", pdfFontSize)
	// core fonts are cp1252 encoded; the translator turns anything else into '.'
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	return func(s string) (string, error) {
		for _, c := range s {
			if c >= utf8.RuneSelf && tr(string(c)) == "." {
				return "", fmt.Errorf("%w: %q needs a unicode font (EXPORT_PDF_FONT)", errUnencodable, c)
			}
		}
		return tr(s), nil
	}, nil
}

func expandTabs(s string) string {
	return strings.ReplaceAll(s, "\t", "    ")
}
