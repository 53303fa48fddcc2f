package pdf

import (
	"github.com/jung-kurt/gofpdf"

	"github.com/youruser/bannerprint/internal/geometry"
)

const (
	CropMarkLengthPt = 18.0
	// CropMarkOffsetPt is the gap between the trim corner and its marks.
	CropMarkOffsetPt = 9.0
	CropMarkWidthPt  = 0.5
)

// Segment is a straight line in page points.
type Segment struct {
	X1, Y1, X2, Y2 float64
}

// CropMarks returns one horizontal and one vertical mark per trim corner,
// each pointing away from the banner.
func CropMarks(g geometry.Geometry) []Segment {
	b := g.BleedPt()
	left, top := b, b
	right := b + g.BannerWidthIn*geometry.PointsPerInch
	bottom := b + g.BannerHeightIn*geometry.PointsPerInch
	near, far := CropMarkOffsetPt, CropMarkOffsetPt+CropMarkLengthPt

	return []Segment{
		{left - near, top, left - far, top},
		{left, top - near, left, top - far},
		{right + near, top, right + far, top},
		{right, top - near, right, top - far},
		{left - near, bottom, left - far, bottom},
		{left, bottom + near, left, bottom + far},
		{right + near, bottom, right + far, bottom},
		{right, bottom + near, right, bottom + far},
	}
}

func drawCropMarks(doc *gofpdf.Fpdf, marks []Segment) {
	doc.SetDrawColor(0, 0, 0)
	doc.SetLineWidth(CropMarkWidthPt)
	for _, s := range marks {
		doc.Line(s.X1, s.Y1, s.X2, s.Y2)
	}
}
