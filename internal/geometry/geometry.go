// Package geometry maps a banner's physical size onto the print raster and page.
package geometry

import "math"

const (
	// DefaultDPI is the print resolution used for every banner size.
	DefaultDPI = 150
	// DefaultBleedIn is added on every edge.
	DefaultBleedIn = 0.125
	// PointsPerInch converts inches to PDF points.
	PointsPerInch = 72.0
	// MaxCanvasPixels bounds the print raster, about 640 MB as NRGBA.
	MaxCanvasPixels = 160_000_000
)

// Geometry is the resolved print layout for one banner.
type Geometry struct {
	BannerWidthIn  float64
	BannerHeightIn float64
	BleedIn        float64
	DPI            int

	FinalWidthIn  float64
	FinalHeightIn float64
	TargetPxW     int
	TargetPxH     int
}

// ChooseDPI returns the print resolution for a banner. It is constant today.
func ChooseDPI(widthIn, heightIn float64) int {
	return DefaultDPI
}

// Resolve computes the bleed-inclusive size and raster dimensions.
// A non-positive dpi falls back to ChooseDPI.
func Resolve(bannerWidthIn, bannerHeightIn, bleedIn float64, dpi int) Geometry {
	if dpi <= 0 {
		dpi = ChooseDPI(bannerWidthIn, bannerHeightIn)
	}
	finalW := bannerWidthIn + 2*bleedIn
	finalH := bannerHeightIn + 2*bleedIn
	return Geometry{
		BannerWidthIn:  bannerWidthIn,
		BannerHeightIn: bannerHeightIn,
		BleedIn:        bleedIn,
		DPI:            dpi,
		FinalWidthIn:   finalW,
		FinalHeightIn:  finalH,
		TargetPxW:      int(math.Round(finalW * float64(dpi))),
		TargetPxH:      int(math.Round(finalH * float64(dpi))),
	}
}

// Pixels is the raster area of the print canvas.
func (g Geometry) Pixels() int64 {
	return int64(g.TargetPxW) * int64(g.TargetPxH)
}

// WithinBudget reports whether the canvas fits MaxCanvasPixels.
func (g Geometry) WithinBudget() bool {
	return g.TargetPxW > 0 && g.TargetPxH > 0 && g.Pixels() <= MaxCanvasPixels
}

func (g Geometry) PageWidthPt() float64  { return g.FinalWidthIn * PointsPerInch }
func (g Geometry) PageHeightPt() float64 { return g.FinalHeightIn * PointsPerInch }
func (g Geometry) BleedPt() float64      { return g.BleedIn * PointsPerInch }

// BleedPx is the bleed width on the raster, unrounded.
func (g Geometry) BleedPx() float64 { return g.BleedIn * float64(g.DPI) }

// BannerPxW and BannerPxH are the trim area on the raster, unrounded.
func (g Geometry) BannerPxW() float64 { return g.BannerWidthIn * float64(g.DPI) }
func (g Geometry) BannerPxH() float64 { return g.BannerHeightIn * float64(g.DPI) }
