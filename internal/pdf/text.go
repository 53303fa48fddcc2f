package pdf

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/youruser/bannerprint/internal/apperr"
	"github.com/youruser/bannerprint/internal/geometry"
	imagepkg "github.com/youruser/bannerprint/internal/image"
	"github.com/youruser/bannerprint/internal/logging"
)

const (
	// ReferencePreviewWidthPx is assumed when the preview width is unknown.
	ReferencePreviewWidthPx = 600
	DefaultFontSizePx       = 16
	// BaselineFactor moves a top-left text position down to the baseline.
	BaselineFactor = 0.75
	// LayoutPaddingPt is added to a run's natural width to form its layout box.
	LayoutPaddingPt = 20.0
)

// Text is one text run from the design.
type Text struct {
	Content    string
	XPercent   float64
	YPercent   float64
	FontSize   float64 // preview pixels
	FontFamily string
	FontWeight string
	Color      string
	TextAlign  string
}

// PlacedText records where a run was drawn, in points.
type PlacedText struct {
	Index    int
	Content  string
	Family   string
	Style    string
	SizePt   float64
	X, Y     float64
	DrawX    float64
	Baseline float64
	Width    float64
	Clamped  bool
}

// FontScale converts preview pixels to points on a page pageWidthPt wide.
func FontScale(pageWidthPt float64, previewWidthPx int) float64 {
	if previewWidthPx <= 0 {
		previewWidthPx = ReferencePreviewWidthPx
	}
	return pageWidthPt / float64(previewWidthPx)
}

// FontFace maps a CSS family and weight to a core PDF font and style.
func FontFace(family, weight string) (string, string) {
	f := strings.ToLower(family)
	name := "Helvetica"
	switch {
	case strings.Contains(f, "courier") || strings.Contains(f, "mono"):
		name = "Courier"
	case (strings.Contains(f, "times") || strings.Contains(f, "serif")) && !strings.Contains(f, "sans"):
		name = "Times"
	}
	style := ""
	if isBold(weight) {
		style = "B"
	}
	return name, style
}

func isBold(weight string) bool {
	w := strings.ToLower(strings.TrimSpace(weight))
	if w == "bold" || w == "bolder" {
		return true
	}
	n, err := strconv.Atoi(w)
	return err == nil && n >= 600
}

// TextOrigin maps percent-of-banner coordinates to page points. The banner
// area starts one bleed in from the page edge.
func TextOrigin(t Text, g geometry.Geometry) (float64, float64) {
	x := g.BleedPt() + t.XPercent/100*g.BannerWidthIn*geometry.PointsPerInch
	y := g.BleedPt() + t.YPercent/100*g.BannerHeightIn*geometry.PointsPerInch
	return x, y
}

// ClampToPage moves (x, y) to the nearest point on a w×h page.
func ClampToPage(x, y, w, h float64) (float64, float64, bool) {
	cx := math.Min(math.Max(x, 0), w)
	cy := math.Min(math.Max(y, 0), h)
	return cx, cy, cx != x || cy != y
}

// AlignedX is where a run of textW starts inside a layout box of boxW at x.
func AlignedX(x, boxW, textW float64, align string) float64 {
	switch strings.ToLower(align) {
	case "center":
		return x + (boxW-textW)/2
	case "right":
		return x + boxW - textW
	default:
		return x
	}
}

func placeText(doc *gofpdf.Fpdf, tr func(string) string, t Text, g geometry.Geometry, scale float64) (PlacedText, error) {
	if strings.TrimSpace(t.Content) == "" {
		return PlacedText{}, fmt.Errorf("empty content")
	}
	x, y := TextOrigin(t, g)
	if isBad(x) || isBad(y) {
		return PlacedText{}, apperr.Coordinate(fmt.Sprintf("non-finite text position (%v, %v)", x, y))
	}
	cx, cy, clamped := ClampToPage(x, y, g.PageWidthPt(), g.PageHeightPt())
	if clamped {
		logging.Warn("text position clamped to page", "x", x, "y", y, "clamped_x", cx, "clamped_y", cy)
	}

	size := t.FontSize
	if size <= 0 || isBad(size) {
		size = DefaultFontSizePx
	}
	sizePt := size * scale
	family, style := FontFace(t.FontFamily, t.FontWeight)

	c, _ := imagepkg.ParseCSSColor(t.Color) // black when unparsable
	doc.SetFont(family, style, sizePt)
	doc.SetTextColor(int(c.R), int(c.G), int(c.B))

	txt := tr(t.Content)
	width := doc.GetStringWidth(txt)
	drawX := AlignedX(cx, width+LayoutPaddingPt, width, t.TextAlign)
	baseline := cy + BaselineFactor*sizePt
	doc.Text(drawX, baseline, txt)

	return PlacedText{
		Content:  t.Content,
		Family:   family,
		Style:    style,
		SizePt:   sizePt,
		X:        cx,
		Y:        cy,
		DrawX:    drawX,
		Baseline: baseline,
		Width:    width,
		Clamped:  clamped,
	}, nil
}

func isBad(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}
