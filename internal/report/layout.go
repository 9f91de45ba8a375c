package report

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/nestcheck/internal/store"
)

// Page geometry in millimetres (landscape A4). Y grows downwards from the
// top edge.
const (
	PageWidth    = 297.0
	PageHeight   = 210.0
	Margin       = 15.0
	ContentWidth = PageWidth - 2*Margin

	// Table rows and gallery content stop this far above the page bottom.
	tableBottom   = 40.0
	galleryBottom = 30.0

	rowGap       = 2.0
	imagesPerRow = 3
	cellGap      = 5.0
	cellHeight   = 45.0
	groupGap     = 8.0

	ptToMM = 0.3528

	bodySize = 9.0
)

// TimeLayout formats every timestamp in the document.
const TimeLayout = "2006-01-02 15:04:05"

func lineHeight(size float64) float64 { return (size + 2) * ptToMM }

// Measurer reports rendered text width in millimetres.
type Measurer interface {
	Width(text string, size float64, bold bool) float64
}

// Glyphs are the status markers drawn in the table.
type Glyphs struct {
	Done, Failed, Other string
}

var (
	// UnicodeGlyphs need a font with check mark coverage.
	UnicodeGlyphs = Glyphs{Done: "✓", Failed: "✗", Other: "…"}

	// ASCIIGlyphs work with the PDF core fonts.
	ASCIIGlyphs = Glyphs{Done: "OK", Failed: "X", Other: "..."}
)

func (g Glyphs) For(s store.StepStatus) string {
	switch s {
	case store.StepDone:
		return g.Done
	case store.StepFailed:
		return g.Failed
	}
	return g.Other
}

type column struct {
	title string
	x, w  float64
}

const (
	colBlock = iota
	colItem
	colStatus
	colText
	colStarted
	colFinished
	colDuration
	colCritical
	colOverride
)

var columns = [...]column{
	colBlock:    {"Block", 0, 12},
	colItem:     {"Item", 12, 10},
	colStatus:   {"Status", 22, 12},
	colText:     {"Text", 34, 110},
	colStarted:  {"Started", 144, 32},
	colFinished: {"Finished", 176, 32},
	colDuration: {"Dur., s", 208, 18},
	colCritical: {"Critical", 226, 14},
	colOverride: {"Override", 240, 27},
}

// ImageSize is the pixel size of a prepared image.
type ImageSize struct {
	Width, Height int
}

// Input is everything the layout needs. Steps must already be in
// (block_index, item_index) order.
type Input struct {
	Session          *store.Session
	Steps            []*store.Step
	Photos           map[int64][]string
	Images           map[string]ImageSize
	Seq              int64
	ChecklistVersion string
	Location         *time.Location
	Glyphs           Glyphs
}

// OpKind identifies a drawing operation.
type OpKind string

const (
	OpText  OpKind = "text"
	OpLine  OpKind = "line"
	OpImage OpKind = "image"
)

// Op is one drawing operation. X and Y locate the top-left corner.
type Op struct {
	Kind OpKind
	X, Y float64

	// Line end point.
	X2, Y2 float64

	// Image box.
	W, H float64

	Text  string
	Size  float64
	Bold  bool
	Image string
}

// Page is the ordered operations of one page.
type Page struct {
	Ops []Op
}

// Plan is a complete laid-out document.
type Plan struct {
	Title string
	Pages []*Page
}

type layouter struct {
	m    Measurer
	loc  *time.Location
	plan *Plan
	page *Page
	y    float64

	// onNewPage repaints section furniture, e.g. table column headers.
	onNewPage func()
}

// Layout computes the document for in. It is a pure function of its inputs.
func Layout(in Input, m Measurer) *Plan {
	loc := in.Location
	if loc == nil {
		loc = time.Local
	}
	if in.Glyphs == (Glyphs{}) {
		in.Glyphs = ASCIIGlyphs
	}

	l := &layouter{
		m:    m,
		loc:  loc,
		plan: &Plan{Title: fmt.Sprintf("CNC Checklist Report #%04d", in.Seq)},
	}
	l.newPage()
	l.header(in)
	l.table(in)
	l.gallery(in)
	return l.plan
}

func (l *layouter) newPage() {
	l.page = &Page{}
	l.plan.Pages = append(l.plan.Pages, l.page)
	l.y = Margin
	if l.onNewPage != nil {
		l.onNewPage()
	}
}

func (l *layouter) text(x, y float64, s string, size float64, bold bool) {
	l.page.Ops = append(l.page.Ops, Op{Kind: OpText, X: x, Y: y, Text: s, Size: size, Bold: bold})
}

func (l *layouter) line(x1, y1, x2, y2 float64) {
	l.page.Ops = append(l.page.Ops, Op{Kind: OpLine, X: x1, Y: y1, X2: x2, Y2: y2})
}

func (l *layouter) image(path string, x, y, w, h float64) {
	l.page.Ops = append(l.page.Ops, Op{Kind: OpImage, X: x, Y: y, W: w, H: h, Image: path})
}

func (l *layouter) formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.In(l.loc).Format(TimeLayout)
}

func (l *layouter) header(in Input) {
	s := in.Session
	l.text(Margin, l.y, "CNC Checklist Report: Nesting", 16, true)
	l.y += 10

	started := s.StartedAt
	lines := []string{
		"Order: " + s.OrderNo,
		"Operator: " + s.OperatorName,
		"Started: " + l.formatTime(&started),
		"Finished: " + l.formatTime(s.CompletedAt),
		"Checklist version: " + in.ChecklistVersion,
		fmt.Sprintf("Report No.: %04d", in.Seq),
	}
	for _, ln := range lines {
		l.text(Margin, l.y, ln, 10, false)
		l.y += 5
	}

	l.y += 5
	l.text(Margin, l.y, "Checklist items", 11, true)
	l.y += 6
}

func (l *layouter) columnHeaders() {
	for _, c := range columns {
		l.text(Margin+c.x, l.y, c.title, bodySize, true)
	}
	l.y += 4.5
	l.line(Margin, l.y, PageWidth-Margin, l.y)
	l.y += 2
}

func (l *layouter) table(in Input) {
	l.columnHeaders()
	l.onNewPage = l.columnHeaders
	defer func() { l.onNewPage = nil }()

	lh := lineHeight(bodySize)
	for _, st := range in.Steps {
		textLines := wrap(l.m, st.Text, bodySize, false, columns[colText].w)
		if st.Note != "" {
			textLines = append(textLines, wrap(l.m, "Note: "+st.Note, bodySize, false, columns[colText].w)...)
		}

		override := "-"
		if st.OverrideByMaster {
			override = st.OverrideMasterName
			if override == "" {
				override = "Yes"
			}
		}
		overrideLines := wrap(l.m, override, bodySize, false, columns[colOverride].w)

		h := float64(max(len(textLines), len(overrideLines))) * lh
		if l.y+h > PageHeight-tableBottom {
			l.newPage()
		}

		critical := "-"
		if st.Critical {
			critical = "Yes"
		}
		duration := "-"
		if st.DurationSec != nil {
			duration = strconv.FormatInt(*st.DurationSec, 10)
		}

		l.cell(colBlock, strconv.Itoa(st.BlockIndex+1))
		l.cell(colItem, strconv.Itoa(st.ItemIndex+1))
		l.cell(colStatus, in.Glyphs.For(st.Status))
		l.cellLines(colText, textLines)
		l.cell(colStarted, l.formatTime(st.StartedAt))
		l.cell(colFinished, l.formatTime(st.CompletedAt))
		l.cell(colDuration, duration)
		l.cell(colCritical, critical)
		l.cellLines(colOverride, overrideLines)

		l.y += h + rowGap
	}
}

func (l *layouter) cell(col int, s string) {
	l.text(Margin+columns[col].x, l.y, s, bodySize, false)
}

func (l *layouter) cellLines(col int, lines []string) {
	lh := lineHeight(bodySize)
	for i, s := range lines {
		l.text(Margin+columns[col].x, l.y+float64(i)*lh, s, bodySize, false)
	}
}

func (l *layouter) gallery(in Input) {
	hasPhotos := false
	for _, st := range in.Steps {
		if len(in.Photos[st.ID]) > 0 {
			hasPhotos = true
			break
		}
	}
	if !hasPhotos {
		return
	}

	l.newPage()
	l.text(Margin, l.y, "Photos by step", 12, true)
	l.y += 8

	lh := lineHeight(bodySize)
	cellWidth := ContentWidth/imagesPerRow - cellGap
	bottom := PageHeight - galleryBottom

	for _, st := range in.Steps {
		paths := in.Photos[st.ID]
		if len(paths) == 0 {
			continue
		}

		title := fmt.Sprintf("Block %d, item %d: %s", st.BlockIndex+1, st.ItemIndex+1, st.Text)
		lines := wrap(l.m, title, bodySize, false, ContentWidth)
		titleH := float64(len(lines)) * lh
		if l.y+titleH+1+cellHeight > bottom {
			l.newPage()
		}
		for i, s := range lines {
			l.text(Margin, l.y+float64(i)*lh, s, bodySize, false)
		}
		l.y += titleH + 1

		col := 0
		for _, p := range paths {
			size, ok := in.Images[p]
			if !ok {
				continue
			}
			if col == 0 && l.y+cellHeight > bottom {
				l.newPage()
			}
			w, h := fit(size, cellWidth, cellHeight)
			x := Margin + float64(col)*(cellWidth+cellGap)
			// Anchored bottom-left inside the cell.
			l.image(p, x, l.y+cellHeight-h, w, h)

			col++
			if col == imagesPerRow {
				col = 0
				l.y += cellHeight + cellGap
			}
		}
		if col != 0 {
			l.y += cellHeight + groupGap
		}
	}
}

// fit scales size to the largest box inside boxW×boxH with the same aspect.
func fit(size ImageSize, boxW, boxH float64) (float64, float64) {
	if size.Width <= 0 || size.Height <= 0 {
		return boxW, boxH
	}
	w, h := float64(size.Width), float64(size.Height)
	scale := min(boxW/w, boxH/h)
	return w * scale, h * scale
}

// wrap breaks text into lines no wider than width. A word wider than width
// is split by runes.
func wrap(m Measurer, text string, size float64, bold bool, width float64) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{""}
	}

	var lines []string
	line := ""
	for _, w := range words {
		if m.Width(w, size, bold) > width {
			if line != "" {
				lines = append(lines, line)
			}
			parts := breakWord(m, w, size, bold, width)
			lines = append(lines, parts[:len(parts)-1]...)
			line = parts[len(parts)-1]
			continue
		}
		if line == "" {
			line = w
			continue
		}
		candidate := line + " " + w
		if m.Width(candidate, size, bold) <= width {
			line = candidate
			continue
		}
		lines = append(lines, line)
		line = w
	}
	return append(lines, line)
}

// breakWord cuts w into the longest rune runs that fit width. Every part holds
// at least one rune.
func breakWord(m Measurer, w string, size float64, bold bool, width float64) []string {
	runes := []rune(w)
	var parts []string
	for len(runes) > 0 {
		n := 1
		for n < len(runes) && m.Width(string(runes[:n+1]), size, bold) <= width {
			n++
		}
		parts = append(parts, string(runes[:n]))
		runes = runes[n:]
	}
	return parts
}
