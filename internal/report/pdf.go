package report

import (
	"bytes"
	"fmt"
	"os"
	"sync"

	"github.com/go-pdf/fpdf"
)

const (
	coreFamily    = "Helvetica"
	unicodeFamily = "Body"
)

// PDFRenderer draws plans with fpdf. It also measures text for Layout, so
// wrapping always matches the font that is embedded.
type PDFRenderer struct {
	fontBytes []byte

	mu      sync.Mutex
	measure *fpdf.Fpdf
	tr      func(string) string
}

// NewPDFRenderer creates a renderer. A non-empty fontPath names a TrueType
// font embedded for full Unicode text; otherwise the core Helvetica font is
// used and text is transcoded to cp1252.
func NewPDFRenderer(fontPath string) (*PDFRenderer, error) {
	r := &PDFRenderer{}
	if fontPath != "" {
		b, err := os.ReadFile(fontPath)
		if err != nil {
			return nil, fmt.Errorf("read font: %w", err)
		}
		r.fontBytes = b
	}

	pdf, err := r.newDocument()
	if err != nil {
		return nil, err
	}
	r.measure = pdf
	r.tr = func(s string) string { return s }
	if !r.Unicode() {
		r.tr = pdf.UnicodeTranslatorFromDescriptor("")
	}
	return r, nil
}

// Unicode reports whether a TrueType font is embedded.
func (r *PDFRenderer) Unicode() bool { return len(r.fontBytes) > 0 }

// Glyphs returns the status markers the font can draw.
func (r *PDFRenderer) Glyphs() Glyphs {
	if r.Unicode() {
		return UnicodeGlyphs
	}
	return ASCIIGlyphs
}

func (r *PDFRenderer) family() string {
	if r.Unicode() {
		return unicodeFamily
	}
	return coreFamily
}

func style(bold bool) string {
	if bold {
		return "B"
	}
	return ""
}

func (r *PDFRenderer) newDocument() (*fpdf.Fpdf, error) {
	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(Margin, Margin, Margin)
	pdf.SetAutoPageBreak(false, 0)
	if r.Unicode() {
		pdf.AddUTF8FontFromBytes(unicodeFamily, "", r.fontBytes)
		pdf.AddUTF8FontFromBytes(unicodeFamily, "B", r.fontBytes)
	}
	if pdf.Err() {
		return nil, fmt.Errorf("init pdf: %w", pdf.Error())
	}
	return pdf, nil
}

// Width implements Measurer.
func (r *PDFRenderer) Width(text string, size float64, bold bool) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.measure.SetFont(r.family(), style(bold), size)
	return r.measure.GetStringWidth(r.tr(text))
}

// Render writes plan to path. Images missing from images are left out.
func (r *PDFRenderer) Render(plan *Plan, images map[string]*PreparedImage, path string) error {
	pdf, err := r.newDocument()
	if err != nil {
		return err
	}
	pdf.SetTitle(plan.Title, true)
	pdf.SetAuthor("nestcheck", true)
	pdf.SetCreator("nestcheck", true)

	jpg := fpdf.ImageOptions{ImageType: "JPG"}
	registered := make(map[string]bool)

	for _, page := range plan.Pages {
		pdf.AddPage()
		for _, op := range page.Ops {
			switch op.Kind {
			case OpText:
				pdf.SetFont(r.family(), style(op.Bold), op.Size)
				// Op.Y is the top of the line box; fpdf wants the baseline.
				pdf.Text(op.X, op.Y+op.Size*ptToMM, r.tr(op.Text))
			case OpLine:
				pdf.SetLineWidth(0.2)
				pdf.Line(op.X, op.Y, op.X2, op.Y2)
			case OpImage:
				img, ok := images[op.Image]
				if !ok {
					continue
				}
				if !registered[op.Image] {
					pdf.RegisterImageOptionsReader(op.Image, jpg, bytes.NewReader(img.JPEG))
					registered[op.Image] = true
				}
				pdf.ImageOptions(op.Image, op.X, op.Y, op.W, op.H, false, jpg, 0, "")
			}
		}
		if pdf.Err() {
			return pdf.Error()
		}
	}
	return pdf.OutputFileAndClose(path)
}
