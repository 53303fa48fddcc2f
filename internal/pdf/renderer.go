// Package pdf writes the single print page: the flattened raster, the text
// runs on top of it and crop marks at the trim line.
package pdf

import (
	"bytes"
	"errors"

	"github.com/jung-kurt/gofpdf"

	"github.com/youruser/bannerprint/internal/apperr"
	"github.com/youruser/bannerprint/internal/geometry"
	"github.com/youruser/bannerprint/internal/logging"
)

const rasterName = "print-raster"

// Page is the input to Render.
type Page struct {
	OrderID string
	// Raster is the flattened print raster as JPEG.
	Raster         []byte
	Geometry       geometry.Geometry
	Texts          []Text
	PreviewWidthPx int
}

// Document is a rendered PDF and what was drawn on it.
type Document struct {
	Bytes        []byte
	PageWidthPt  float64
	PageHeightPt float64
	Texts        []PlacedText
	// Skipped holds indexes of text elements that were not drawn.
	Skipped   []int
	CropMarks []Segment
}

// Render draws p onto a page of the geometry's bleed-inclusive size.
func Render(p Page) (*Document, error) {
	if len(p.Raster) == 0 {
		return nil, apperr.Render(errors.New("print raster is empty"))
	}
	g := p.Geometry
	wPt, hPt := g.PageWidthPt(), g.PageHeightPt()

	doc := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           gofpdf.SizeType{Wd: wPt, Ht: hPt},
	})
	doc.SetMargins(0, 0, 0)
	doc.SetAutoPageBreak(false, 0)
	doc.SetCreator("bannerprint", true)
	doc.AddPage()

	opts := gofpdf.ImageOptions{ImageType: "JPG"}
	doc.RegisterImageOptionsReader(rasterName, opts, bytes.NewReader(p.Raster))
	doc.ImageOptions(rasterName, 0, 0, wPt, hPt, false, opts, 0, "")

	out := &Document{}
	out.PageWidthPt, out.PageHeightPt = doc.GetPageSize()

	tr := doc.UnicodeTranslatorFromDescriptor("")
	scale := FontScale(wPt, p.PreviewWidthPx)
	for i, t := range p.Texts {
		placed, err := placeText(doc, tr, t, g, scale)
		if err != nil {
			logging.Warn("skipping text element", "order_id", p.OrderID, "index", i, "error", err)
			out.Skipped = append(out.Skipped, i)
			continue
		}
		placed.Index = i
		out.Texts = append(out.Texts, placed)
	}

	if g.BleedIn > 0 {
		out.CropMarks = CropMarks(g)
		drawCropMarks(doc, out.CropMarks)
	}

	if doc.Err() {
		return nil, apperr.Render(doc.Error())
	}
	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, apperr.Render(err)
	}
	out.Bytes = buf.Bytes()

	logging.Info("pdf rendered", "order_id", p.OrderID, "width_pt", out.PageWidthPt, "height_pt", out.PageHeightPt,
		"texts", len(out.Texts), "skipped_texts", len(out.Skipped), "bytes", len(out.Bytes))
	return out, nil
}
